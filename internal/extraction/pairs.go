package extraction

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Canonical label keys.
const (
	labelBank          = "bank"
	labelAccountNumber = "account_number"
	labelAccountName   = "account_name"
	labelCurrency      = "currency"
	labelOpening       = "opening"
	labelClosing       = "closing"
	labelPeriod        = "period"
	labelPeriodStart   = "period_start"
	labelPeriodEnd     = "period_end"
)

var canonicalLabels = map[string]string{
	"bank":                    labelBank,
	"bank name":               labelBank,
	"account number":          labelAccountNumber,
	"account no":              labelAccountNumber,
	"acct no":                 labelAccountNumber,
	"ac no":                   labelAccountNumber,
	"account name":            labelAccountName,
	"account holder":          labelAccountName,
	"account type":            labelAccountName,
	"currency":                labelCurrency,
	"opening balance":         labelOpening,
	"balance brought forward": labelOpening,
	"beginning balance":       labelOpening,
	"previous balance":        labelOpening,
	"start balance":           labelOpening,
	"closing balance":         labelClosing,
	"balance carried forward": labelClosing,
	"ending balance":          labelClosing,
	"new balance":             labelClosing,
	"end balance":             labelClosing,
	"statement period":        labelPeriod,
	"period":                  labelPeriod,
	"period start":            labelPeriodStart,
	"statement from":          labelPeriodStart,
	"from date":               labelPeriodStart,
	"period end":              labelPeriodEnd,
	"statement to":            labelPeriodEnd,
	"to date":                 labelPeriodEnd,
}

// MatchLabel maps a free-form label to its canonical key. Labels that are
// not an exact match are accepted within a small edit distance; the
// returned confidence falls with the distance.
func MatchLabel(label string) (string, float64, bool) {
	norm := normalizeLabel(label)
	if norm == "" {
		return "", 0, false
	}
	if key, ok := canonicalLabels[norm]; ok {
		return key, 1, true
	}

	best, bestDist := "", -1
	for candidate := range canonicalLabels {
		d := levenshtein.ComputeDistance(norm, candidate)
		if bestDist == -1 || d < bestDist || (d == bestDist && candidate < best) {
			best, bestDist = candidate, d
		}
	}
	limit := len(best) / 5
	if limit < 1 {
		limit = 1
	}
	if bestDist > limit {
		return "", 0, false
	}
	return canonicalLabels[best], 1 - float64(bestDist)/float64(len(best)), true
}

func normalizeLabel(label string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case r == '.' || r == '/' || r == '\'':
			// "A/C No." and "Acct." collapse into the word
		default:
			space = true
		}
	}
	return b.String()
}

// adaptPairs turns label/value pairs into metadata and account headers.
// Each account number label starts a new account.
func adaptPairs(pairs []LabelValue, report *FieldReport) partial {
	var p partial
	var current *AccountCandidate
	ensure := func() *AccountCandidate {
		if current == nil {
			p.accounts = append(p.accounts, AccountCandidate{Source: SourcePairs})
			current = &p.accounts[len(p.accounts)-1]
		}
		return current
	}

	for i, pair := range pairs {
		value := strings.TrimSpace(pair.Value)
		key, conf, ok := MatchLabel(pair.Label)
		path := fmt.Sprintf("pairs[%d]", i)
		if !ok {
			report.fail(path, "unknown label %q", pair.Label)
			continue
		}
		if value == "" {
			report.fail(path+"."+key, "empty value")
			continue
		}
		report.ok(path+"."+key, conf)

		switch key {
		case labelBank:
			p.meta.BankNames = append(p.meta.BankNames, Candidate{Text: value, Rank: rankPairs})
		case labelPeriod:
			if start, end, ok := splitPeriod(value); ok {
				p.meta.PeriodStarts = append(p.meta.PeriodStarts, Candidate{Text: start, Rank: rankPairs})
				p.meta.PeriodEnds = append(p.meta.PeriodEnds, Candidate{Text: end, Rank: rankPairs})
			}
		case labelPeriodStart:
			p.meta.PeriodStarts = append(p.meta.PeriodStarts, Candidate{Text: value, Rank: rankPairs})
		case labelPeriodEnd:
			p.meta.PeriodEnds = append(p.meta.PeriodEnds, Candidate{Text: value, Rank: rankPairs})
		case labelAccountNumber:
			if current != nil && current.AccountNumberText != "" {
				current = nil
			}
			ensure().AccountNumberText = value
		case labelAccountName:
			ensure().AccountNameText = value
		case labelCurrency:
			ensure().CurrencyText = value
		case labelOpening:
			ensure().OpeningBalanceText = value
		case labelClosing:
			ensure().ClosingBalanceText = value
		}
	}
	return p
}
