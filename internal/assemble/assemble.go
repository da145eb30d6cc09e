// Package assemble validates one account's reconciled ledger against its
// declared opening and closing balances.
package assemble

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/fields"
	"github.com/dvloznov/statement-normalizer/internal/reconcile"
	"github.com/shopspring/decimal"
)

// Kind classifies an account-level failure.
type Kind string

const (
	KindBalanceMismatch      Kind = "BALANCE_MISMATCH"
	KindMissingAccountNumber Kind = "MISSING_ACCOUNT_NUMBER"
	KindMissingCurrency      Kind = "MISSING_CURRENCY"
)

// AccountError is returned when an account cannot be part of the statement.
type AccountError struct {
	Kind          Kind
	AccountNumber string
	Message       string
	Err           error
}

func (e *AccountError) Error() string {
	if e.AccountNumber != "" {
		return fmt.Sprintf("%s: account %s: %s", e.Kind, e.AccountNumber, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AccountError) Unwrap() error { return e.Err }

// Input is everything known about one account after reconciliation.
type Input struct {
	AccountNumber string
	AccountName   string
	Currency      string

	Opening       decimal.Decimal
	OpeningSource reconcile.OpeningSource

	// DeclaredClosing is the closing balance printed on the statement.
	DeclaredClosing *decimal.Decimal

	Transactions []domain.Transaction
	Notes        []string
}

// Options holds the account-level policy knobs.
type Options struct {
	FallbackCurrency    string
	ToleranceMinorUnits int64

	// StrictBalances turns a closing balance mismatch into a
	// BALANCE_MISMATCH error instead of a note.
	StrictBalances bool
}

// Assemble builds a validated account. A missing account number, a
// currency that cannot be resolved, or a mismatch under StrictBalances is
// an error.
func Assemble(in Input, opts Options) (domain.Account, error) {
	number, err := fields.ParseAccountNumber(in.AccountNumber)
	if err != nil {
		return domain.Account{}, &AccountError{
			Kind:    KindMissingAccountNumber,
			Message: "no usable account number",
			Err:     err,
		}
	}

	currency := ResolveCurrency(in.Currency, nil, opts.FallbackCurrency)
	if currency == "" {
		return domain.Account{}, &AccountError{
			Kind:          KindMissingCurrency,
			AccountNumber: number,
			Message:       "no currency declared and no fallback set",
		}
	}
	scale := domain.CurrencyScale(currency)
	tol := domain.Tolerance(currency, opts.ToleranceMinorUnits)

	txs := make([]domain.Transaction, len(in.Transactions))
	copy(txs, in.Transactions)
	SortTransactions(txs)

	check := reconcile.VerifyChain(in.Opening, txs, tol)
	for _, i := range check.Breaks {
		txs[i] = txs[i].WithNote(domain.NoteChainBreak)
	}

	var closing decimal.Decimal
	switch {
	case in.DeclaredClosing != nil:
		closing = *in.DeclaredClosing
	case len(txs) > 0:
		closing = txs[len(txs)-1].Balance.Amount
	default:
		closing = in.Opening
	}

	notes := append([]string(nil), in.Notes...)
	if in.OpeningSource == reconcile.OpeningAssumed && len(txs) > 0 {
		notes = appendNote(notes, domain.NoteOpeningAssumed)
	}
	if !domain.WithinTolerance(closing, check.Derived, tol) {
		if opts.StrictBalances {
			return domain.Account{}, &AccountError{
				Kind:          KindBalanceMismatch,
				AccountNumber: number,
				Message: fmt.Sprintf("declared closing %s, derived %s",
					closing.StringFixed(scale), check.Derived.StringFixed(scale)),
			}
		}
		notes = appendNote(notes, domain.NoteClosingMismatch)
	}

	return domain.Account{
		AccountNumber:  number,
		AccountName:    strings.Join(strings.Fields(in.AccountName), " "),
		Currency:       currency,
		OpeningBalance: domain.NewMoney(in.Opening, scale),
		ClosingBalance: domain.NewMoney(closing, scale),
		Transactions:   txs,
		Notes:          notes,
	}, nil
}

// SortTransactions orders by date, keeping source order within a day.
func SortTransactions(txs []domain.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.Before(txs[j].Date)
	})
}

// ResolveCurrency picks the declared currency, then the first currency
// found in hints (typically raw amount texts), then the fallback.
func ResolveCurrency(declared string, hints []string, fallback string) string {
	if code, ok := fields.ParseCurrency(declared); ok {
		return code
	}
	for _, h := range hints {
		if code, ok := fields.ParseCurrency(h); ok {
			return code
		}
	}
	if code, ok := fields.ParseCurrency(fallback); ok {
		return code
	}
	return strings.ToUpper(strings.TrimSpace(fallback))
}

func appendNote(notes []string, note string) []string {
	for _, n := range notes {
		if n == note {
			return notes
		}
	}
	return append(notes, note)
}
