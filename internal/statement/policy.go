package statement

import (
	"strings"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-normalizer/internal/domain"
)

// BankNameCandidate is one extracted guess at the bank's name. Lower Rank
// means a more trusted source (structured model output before page text,
// earlier pages before later ones).
type BankNameCandidate struct {
	Name string
	Rank int
}

// PeriodCandidate is one explicitly extracted statement period. Either
// bound may be zero when it was missing or unparseable.
type PeriodCandidate struct {
	Start civil.Date
	End   civil.Date
}

// BankNamePolicy picks the statement's bank name.
type BankNamePolicy func(candidates []BankNameCandidate) string

// PeriodPolicy picks the statement period from explicit candidates and
// the accounts' transaction dates.
type PeriodPolicy func(explicit []PeriodCandidate, accounts []domain.Account) domain.Period

// FirstNonEmptyLongestTie takes the best-ranked non-empty candidate; among
// equally ranked candidates the longest name wins, then the first seen.
func FirstNonEmptyLongestTie(candidates []BankNameCandidate) string {
	best, bestRank, bestLen := "", 0, -1
	for _, c := range candidates {
		name := strings.Join(strings.Fields(c.Name), " ")
		if name == "" {
			continue
		}
		n := utf8.RuneCountInString(name)
		if bestLen < 0 || c.Rank < bestRank || (c.Rank == bestRank && n > bestLen) {
			best, bestRank, bestLen = name, c.Rank, n
		}
	}
	return best
}

// ExplicitThenTransactions uses the explicit period bounds when they are
// present and start <= end, filling a missing bound from the transaction
// dates. An inverted explicit range is discarded in favour of the
// transaction date range.
func ExplicitThenTransactions(explicit []PeriodCandidate, accounts []domain.Account) domain.Period {
	var start, end civil.Date
	for _, p := range explicit {
		if !p.Start.IsZero() && (start.IsZero() || p.Start.Before(start)) {
			start = p.Start
		}
		if !p.End.IsZero() && (end.IsZero() || p.End.After(end)) {
			end = p.End
		}
	}

	derived := TransactionRange(accounts)
	if start.IsZero() {
		start = derived.Start
	}
	if end.IsZero() {
		end = derived.End
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return derived
	}
	return domain.Period{Start: start, End: end}
}

// TransactionRange is the min/max transaction date across accounts.
func TransactionRange(accounts []domain.Account) domain.Period {
	var p domain.Period
	for _, a := range accounts {
		for _, tx := range a.Transactions {
			if p.Start.IsZero() || tx.Date.Before(p.Start) {
				p.Start = tx.Date
			}
			if p.End.IsZero() || tx.Date.After(p.End) {
				p.End = tx.Date
			}
		}
	}
	return p
}
