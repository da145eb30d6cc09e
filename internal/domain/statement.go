package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Notes attached to transactions and accounts.
const (
	NoteAmountInferred    = "amount inferred from balance delta"
	NoteBalanceInferred   = "balance inferred"
	NoteNoAmount          = "no amount"
	NoteNetted            = "debit and credit both present; netted"
	NoteChainBreak        = "balance chain break"
	NoteOutsidePeriod     = "outside statement period"
	NoteClosingMismatch   = "closing balance mismatch"
	NoteOpeningAssumed    = "opening balance assumed zero"
	NoteMergedFromSources = "merged from multiple extracted sections"
)

// Transaction is one reconciled ledger line.
type Transaction struct {
	Date        civil.Date
	Description string
	Debit       *Money
	Credit      *Money
	Balance     Money
	Notes       []string

	SourceLineIndex int
}

// Note joins the transaction's notes, or returns "" when there are none.
func (t Transaction) Note() string {
	return strings.Join(t.Notes, "; ")
}

// HasNote reports whether note is attached to the transaction.
func (t Transaction) HasNote(note string) bool {
	for _, n := range t.Notes {
		if n == note {
			return true
		}
	}
	return false
}

// WithNote returns a copy of t with note appended, unless already present.
func (t Transaction) WithNote(note string) Transaction {
	if t.HasNote(note) {
		return t
	}
	notes := make([]string, 0, len(t.Notes)+1)
	notes = append(notes, t.Notes...)
	t.Notes = append(notes, note)
	return t
}

// Account is one bank account's ledger within a statement.
type Account struct {
	AccountNumber  string
	AccountName    string
	Currency       string
	OpeningBalance Money
	ClosingBalance Money
	Transactions   []Transaction
	Notes          []string
}

// Flagged reports whether the account carries the closing balance mismatch note.
func (a Account) Flagged() bool {
	for _, n := range a.Notes {
		if n == NoteClosingMismatch {
			return true
		}
	}
	return false
}

// Period is the statement's date range. A zero date means unknown.
type Period struct {
	Start civil.Date
	End   civil.Date
}

// Contains reports whether d falls inside the period. Unknown bounds are open.
func (p Period) Contains(d civil.Date) bool {
	if !p.Start.IsZero() && d.Before(p.Start) {
		return false
	}
	if !p.End.IsZero() && d.After(p.End) {
		return false
	}
	return true
}

// Statement is the canonical record for one processed document.
type Statement struct {
	BankName       string
	Period         Period
	Accounts       []Account
	ProcessedAt    time.Time
	ProcessingTime time.Duration
}

type transactionJSON struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Debit       *Money  `json:"debit"`
	Credit      *Money  `json:"credit"`
	Balance     Money   `json:"balance"`
	Note        *string `json:"note"`
}

type accountJSON struct {
	AccountNumber  string        `json:"account_number"`
	AccountName    string        `json:"account_name"`
	Currency       string        `json:"currency"`
	OpeningBalance Money         `json:"opening_balance"`
	ClosingBalance Money         `json:"closing_balance"`
	Transactions   []Transaction `json:"transactions"`
	Note           *string       `json:"note"`
}

type periodJSON struct {
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

type statementJSON struct {
	BankName              string      `json:"bank_name"`
	StatementPeriod       Period      `json:"statement_period"`
	Accounts              []Account   `json:"accounts"`
	ProcessedAt           string      `json:"processed_at"`
	ProcessingTimeSeconds json.Number `json:"processing_time_seconds"`
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalDate(d civil.Date) *string {
	if d.IsZero() {
		return nil
	}
	s := d.String()
	return &s
}

// MarshalJSON renders the wire shape with a null note when there is none.
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		Date:        t.Date.String(),
		Description: t.Description,
		Debit:       t.Debit,
		Credit:      t.Credit,
		Balance:     t.Balance,
		Note:        optionalString(t.Note()),
	})
}

func (a Account) MarshalJSON() ([]byte, error) {
	txs := a.Transactions
	if txs == nil {
		txs = []Transaction{}
	}
	return json.Marshal(accountJSON{
		AccountNumber:  a.AccountNumber,
		AccountName:    a.AccountName,
		Currency:       a.Currency,
		OpeningBalance: a.OpeningBalance,
		ClosingBalance: a.ClosingBalance,
		Transactions:   txs,
		Note:           optionalString(strings.Join(a.Notes, "; ")),
	})
}

func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodJSON{StartDate: optionalDate(p.Start), EndDate: optionalDate(p.End)})
}

func (s Statement) MarshalJSON() ([]byte, error) {
	accounts := s.Accounts
	if accounts == nil {
		accounts = []Account{}
	}
	return json.Marshal(statementJSON{
		BankName:              s.BankName,
		StatementPeriod:       s.Period,
		Accounts:              accounts,
		ProcessedAt:           s.ProcessedAt.UTC().Format(time.RFC3339),
		ProcessingTimeSeconds: json.Number(strconv.FormatFloat(s.ProcessingTime.Seconds(), 'f', 2, 64)),
	})
}
