package fields

import (
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
)

// Longer symbols first so "US$" is not read as "$".
var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"}, {"HK$", "HKD"}, {"S$", "SGD"}, {"A$", "AUD"}, {"C$", "CAD"},
	{"NZ$", "NZD"}, {"R$", "BRL"}, {"RM", "MYR"}, {"Rp", "IDR"}, {"£", "GBP"},
	{"€", "EUR"}, {"¥", "JPY"}, {"₹", "INR"}, {"₩", "KRW"}, {"₱", "PHP"},
	{"฿", "THB"}, {"₺", "TRY"}, {"$", "USD"},
}

var isoToken = regexp.MustCompile(`\b[A-Z]{3}\b`)

// ParseCurrency finds an ISO 4217 currency in text, either as a code
// ("GBP", or "gbp" on its own) or a symbol ("£", "RM"). It returns false when nothing
// recognizable is present.
func ParseCurrency(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", false
	}

	if len(s) == 3 {
		if code := strings.ToUpper(s); money.GetCurrency(code) != nil {
			return code, true
		}
	}
	for _, tok := range isoToken.FindAllString(s, -1) {
		if money.GetCurrency(tok) != nil {
			return tok, true
		}
	}

	for _, cs := range currencySymbols {
		if strings.Contains(s, cs.symbol) {
			return cs.code, true
		}
	}
	return "", false
}
