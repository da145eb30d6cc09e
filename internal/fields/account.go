package fields

import (
	"regexp"
	"strings"
)

var (
	accountLabel   = regexp.MustCompile(`(?i)^(?:account\s*(?:number|no\.?|#)?|a/c\s*(?:no\.?)?|acct\.?\s*(?:no\.?)?)\s*[:#]?\s*`)
	accountPattern = regexp.MustCompile(`^[A-Z0-9*]+$`)
)

// ParseAccountNumber normalizes an account identifier so the same account
// printed as "1234-5678" and "1234 5678" compares equal. Masked digits
// ("****1234") are kept.
func ParseAccountNumber(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" || isPlaceholder(s) || strings.EqualFold(s, "unknown") {
		return "", newError(KindEmptyField, "account_number", text, "")
	}

	s = accountLabel.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '/', '\u00a0':
			return -1
		}
		return r
	}, strings.ToUpper(s))

	if s == "" {
		return "", newError(KindEmptyField, "account_number", text, "")
	}
	if !accountPattern.MatchString(s) || !strings.ContainsAny(s, "0123456789") {
		return "", newError(KindUnparseableAccount, "account_number", text, "no account digits")
	}
	return s, nil
}
