package fields

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ocrSemicolon = regexp.MustCompile(`(\d);\s*(\d)`)
	ocrColon     = regexp.MustCompile(`(\d):(\d)`)
	plainNumber  = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

	amountReplacer = strings.NewReplacer(
		"\u00a0", " ", "\u202f", " ",
		"\u2212", "-", "\u2013", "-", "\u2014", "-",
		"'", "", "\u2019", "",
	)
)

// ParseAmount converts a printed amount into a signed fixed-point decimal.
//
// Currency symbols and codes are ignored. "(12.50)", "-12.50", "12.50-"
// and "12.50 DR" are negative; "12.50 CR" is positive. Both "1,234.56" and
// "1.234,56" read as 1234.56.
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(amountReplacer.Replace(text))
	if s == "" || isPlaceholder(s) {
		return decimal.Zero, newError(KindEmptyField, "amount", text, "")
	}

	negative := false
	s = strings.TrimSuffix(s, ".")
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "DR"):
		negative = true
		s = s[:len(s)-2]
	case strings.HasSuffix(upper, "CR"):
		s = s[:len(s)-2]
	}

	core := s
	for changed := true; changed; {
		changed = false
		core = strings.TrimFunc(core, isAmountDecoration)
		switch {
		case strings.HasPrefix(core, "(") && strings.HasSuffix(core, ")"):
			negative = true
			core = core[1 : len(core)-1]
			changed = true
		case strings.HasPrefix(core, "-"):
			negative = true
			core = core[1:]
			changed = true
		case strings.HasSuffix(core, "-"):
			negative = true
			core = core[:len(core)-1]
			changed = true
		case strings.HasPrefix(core, "+"):
			core = core[1:]
			changed = true
		}
	}

	core = ocrSemicolon.ReplaceAllString(core, "$1.$2")
	core = ocrColon.ReplaceAllString(core, "$1.$2")
	core = strings.ReplaceAll(core, " ", "")
	if core == "" {
		return decimal.Zero, newError(KindUnparseableAmount, "amount", text, "no digits")
	}

	normalized, ok := normalizeSeparators(core)
	if !ok || !plainNumber.MatchString(normalized) {
		return decimal.Zero, newError(KindUnparseableAmount, "amount", text, "not a number")
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, newError(KindUnparseableAmount, "amount", text, err.Error())
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators decides which of '.' and ',' is the decimal mark and
// drops the thousands separators.
func normalizeSeparators(s string) (string, bool) {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			if commas > 1 {
				return "", false
			}
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1), true
		}
		if dots > 1 {
			return "", false
		}
		return strings.ReplaceAll(s, ",", ""), true
	case commas == 1:
		if decimals := len(s) - strings.Index(s, ",") - 1; decimals == 1 || decimals == 2 {
			return strings.Replace(s, ",", ".", 1), true
		}
		return strings.ReplaceAll(s, ",", ""), true
	case commas > 1:
		return strings.ReplaceAll(s, ",", ""), true
	case dots > 1:
		return strings.ReplaceAll(s, ".", ""), true
	}
	return s, true
}

func isAmountDecoration(r rune) bool {
	return unicode.IsLetter(r) || unicode.Is(unicode.Sc, r) || unicode.IsSpace(r)
}

func isPlaceholder(s string) bool {
	switch strings.ToLower(s) {
	case "-", "--", "n/a", "na", "null", "none", "nil":
		return true
	}
	return false
}
