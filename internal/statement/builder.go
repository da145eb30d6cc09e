// Package statement aggregates assembled accounts and bank metadata into
// the canonical statement record.
package statement

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/statement-normalizer/internal/assemble"
	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/shopspring/decimal"
)

// Kind classifies a statement-level failure.
type Kind string

const KindNoValidAccounts Kind = "NO_VALID_ACCOUNTS"

// StatementError means no statement could be built at all.
type StatementError struct {
	Kind    Kind
	Message string

	// Dropped holds the account-level errors that led here.
	Dropped []error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StatementError) Unwrap() []error { return e.Dropped }

// Input is everything the builder aggregates.
type Input struct {
	Accounts  []domain.Account
	BankNames []BankNameCandidate
	Periods   []PeriodCandidate

	// Dropped are account errors raised before the builder ran.
	Dropped []error

	ProcessedAt    time.Time
	ProcessingTime time.Duration
}

// Options selects the tie-break policies and the assembler settings used
// when merged accounts are re-validated.
type Options struct {
	BankName BankNamePolicy
	Period   PeriodPolicy
	Assemble assemble.Options
}

func (o Options) withDefaults() Options {
	if o.BankName == nil {
		o.BankName = FirstNonEmptyLongestTie
	}
	if o.Period == nil {
		o.Period = ExplicitThenTransactions
	}
	return o
}

// Build produces the canonical statement. It fails only when no account
// survives.
func Build(in Input, opts Options) (domain.Statement, error) {
	opts = opts.withDefaults()
	dropped := append([]error(nil), in.Dropped...)

	accounts, mergeErrs := mergeAccounts(in.Accounts, opts.Assemble)
	dropped = append(dropped, mergeErrs...)

	if len(accounts) == 0 {
		return domain.Statement{}, &StatementError{
			Kind:    KindNoValidAccounts,
			Message: fmt.Sprintf("no valid accounts (%d dropped)", len(dropped)),
			Dropped: dropped,
		}
	}

	period := opts.Period(in.Periods, accounts)
	for i := range accounts {
		accounts[i] = flagOutsidePeriod(accounts[i], period)
	}

	return domain.Statement{
		BankName:       opts.BankName(in.BankNames),
		Period:         period,
		Accounts:       accounts,
		ProcessedAt:    in.ProcessedAt,
		ProcessingTime: in.ProcessingTime,
	}, nil
}

// mergeAccounts deduplicates by account number in first-seen order.
// Accounts seen more than once are merged and re-assembled.
func mergeAccounts(accounts []domain.Account, opts assemble.Options) ([]domain.Account, []error) {
	var order []string
	groups := make(map[string][]domain.Account)
	for _, a := range accounts {
		if _, seen := groups[a.AccountNumber]; !seen {
			order = append(order, a.AccountNumber)
		}
		groups[a.AccountNumber] = append(groups[a.AccountNumber], a)
	}

	var (
		out  []domain.Account
		errs []error
	)
	for _, number := range order {
		parts := groups[number]
		if len(parts) == 1 {
			out = append(out, parts[0])
			continue
		}
		merged, err := merge(parts, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, merged)
	}
	return out, errs
}

// merge combines sections of the same account. The section whose ledger
// starts earliest supplies the opening balance and the one that ends latest
// supplies the declared closing balance.
func merge(parts []domain.Account, opts assemble.Options) (domain.Account, error) {
	byStart := append([]domain.Account(nil), parts...)
	sort.SliceStable(byStart, func(i, j int) bool {
		return startsBefore(byStart[i], byStart[j])
	})
	first, last := byStart[0], byStart[0]
	for _, p := range byStart[1:] {
		if endsAfterOrWith(p, last) {
			last = p
		}
	}

	var (
		txs   []domain.Transaction
		notes []string
		name  string
		cur   string
	)
	for _, p := range parts {
		txs = append(txs, p.Transactions...)
		if len(p.AccountName) > len(name) {
			name = p.AccountName
		}
		if cur == "" {
			cur = p.Currency
		}
		for _, n := range p.Notes {
			if n != domain.NoteClosingMismatch {
				notes = appendUnique(notes, n)
			}
		}
	}
	notes = appendUnique(notes, domain.NoteMergedFromSources)

	closing := last.ClosingBalance.Amount
	acct, err := assemble.Assemble(assemble.Input{
		AccountNumber:   first.AccountNumber,
		AccountName:     name,
		Currency:        cur,
		Opening:         first.OpeningBalance.Amount,
		DeclaredClosing: &closing,
		Transactions:    txs,
		Notes:           notes,
	}, opts)
	if err != nil {
		return domain.Account{}, fmt.Errorf("merge: account %s: %w", first.AccountNumber, err)
	}
	return acct, nil
}

func startsBefore(a, b domain.Account) bool {
	switch {
	case len(a.Transactions) == 0:
		return false
	case len(b.Transactions) == 0:
		return true
	}
	return a.Transactions[0].Date.Before(b.Transactions[0].Date)
}

func endsAfterOrWith(a, b domain.Account) bool {
	switch {
	case len(a.Transactions) == 0:
		return false
	case len(b.Transactions) == 0:
		return true
	}
	return !a.Transactions[len(a.Transactions)-1].Date.Before(b.Transactions[len(b.Transactions)-1].Date)
}

func flagOutsidePeriod(a domain.Account, p domain.Period) domain.Account {
	var txs []domain.Transaction
	for i, tx := range a.Transactions {
		if p.Contains(tx.Date) {
			continue
		}
		if txs == nil {
			txs = append([]domain.Transaction(nil), a.Transactions...)
		}
		txs[i] = tx.WithNote(domain.NoteOutsidePeriod)
	}
	if txs != nil {
		a.Transactions = txs
	}
	return a
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// IsNoValidAccounts reports whether err is the NO_VALID_ACCOUNTS failure.
func IsNoValidAccounts(err error) bool {
	var se *StatementError
	return errors.As(err, &se) && se.Kind == KindNoValidAccounts
}

// ClosingDelta is the difference between an account's closing balance and
// its opening plus movements; zero for a consistent account.
func ClosingDelta(a domain.Account) decimal.Decimal {
	derived := a.OpeningBalance.Amount
	for _, tx := range a.Transactions {
		if tx.Credit != nil {
			derived = derived.Add(tx.Credit.Amount)
		}
		if tx.Debit != nil {
			derived = derived.Sub(tx.Debit.Amount)
		}
	}
	return a.ClosingBalance.Amount.Sub(derived)
}

// Summary renders a one-line description for logs.
func Summary(s domain.Statement) string {
	parts := make([]string, 0, len(s.Accounts))
	for _, a := range s.Accounts {
		parts = append(parts, fmt.Sprintf("%s(%d)", a.AccountNumber, len(a.Transactions)))
	}
	return fmt.Sprintf("%s [%s]", s.BankName, strings.Join(parts, ", "))
}
