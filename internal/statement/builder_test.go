package statement

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-normalizer/internal/assemble"
	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(m, d int) civil.Date { return civil.Date{Year: 2024, Month: time.Month(m), Day: d} }

func money(s string) domain.Money { return domain.NewMoney(decimal.RequireFromString(s), 2) }

func moneyPtr(s string) *domain.Money {
	m := money(s)
	return &m
}

func debit(date civil.Date, desc, amount, balance string) domain.Transaction {
	return domain.Transaction{Date: date, Description: desc, Debit: moneyPtr(amount), Balance: money(balance)}
}

func credit(date civil.Date, desc, amount, balance string) domain.Transaction {
	return domain.Transaction{Date: date, Description: desc, Credit: moneyPtr(amount), Balance: money(balance)}
}

func account(number, opening, closing string, txs ...domain.Transaction) domain.Account {
	return domain.Account{
		AccountNumber:  number,
		Currency:       "USD",
		OpeningBalance: money(opening),
		ClosingBalance: money(closing),
		Transactions:   txs,
	}
}

func TestBuild_MergesSplitAccount(t *testing.T) {
	page2 := account("1234", "900", "850",
		debit(day(1, 20), "Rent", "50", "850"),
	)
	page1 := account("1234", "1000", "900",
		debit(day(1, 5), "Groceries", "60", "940"),
		debit(day(1, 10), "Fuel", "40", "900"),
	)
	page1.AccountName = "Everyday"
	other := account("5678", "10", "10")

	st, err := Build(Input{Accounts: []domain.Account{page2, other, page1}}, Options{})

	require.NoError(t, err)
	require.Len(t, st.Accounts, 2)
	merged := st.Accounts[0]
	assert.Equal(t, "1234", merged.AccountNumber)
	assert.Equal(t, "5678", st.Accounts[1].AccountNumber)
	assert.Equal(t, "Everyday", merged.AccountName)
	assert.Equal(t, "1000.00", merged.OpeningBalance.String())
	assert.Equal(t, "850.00", merged.ClosingBalance.String())
	require.Len(t, merged.Transactions, 3)
	assert.Equal(t, []string{"Groceries", "Fuel", "Rent"}, []string{
		merged.Transactions[0].Description,
		merged.Transactions[1].Description,
		merged.Transactions[2].Description,
	})
	assert.False(t, merged.Flagged())
	assert.Contains(t, merged.Notes, domain.NoteMergedFromSources)
	assert.True(t, ClosingDelta(merged).IsZero())
	for _, tx := range merged.Transactions {
		assert.False(t, tx.HasNote(domain.NoteChainBreak))
	}
}

func TestBuild_MergeWithGapIsRevalidated(t *testing.T) {
	a := account("1234", "1000", "940", debit(day(1, 5), "Groceries", "60", "940"))
	b := account("1234", "900", "850", debit(day(1, 20), "Rent", "50", "850"))

	st, err := Build(Input{Accounts: []domain.Account{a, b}}, Options{})

	require.NoError(t, err)
	merged := st.Accounts[0]
	assert.True(t, merged.Transactions[1].HasNote(domain.NoteChainBreak))
	assert.True(t, merged.Flagged(), "a missing section shows up as a closing mismatch")
}

func TestBuild_NoValidAccounts(t *testing.T) {
	dropped := &assemble.AccountError{Kind: assemble.KindMissingAccountNumber, Message: "no usable account number"}

	_, err := Build(Input{Dropped: []error{dropped}}, Options{})

	require.Error(t, err)
	assert.True(t, IsNoValidAccounts(err))
	var ae *assemble.AccountError
	assert.True(t, errors.As(err, &ae), "dropped account errors stay reachable")
}

func TestBuild_PeriodAndOutsideFlags(t *testing.T) {
	acct := account("1", "100", "70",
		debit(day(1, 31), "Late posting", "10", "90"),
		debit(day(2, 3), "Coffee", "20", "70"),
	)

	st, err := Build(Input{
		Accounts: []domain.Account{acct},
		Periods:  []PeriodCandidate{{Start: day(2, 1), End: day(2, 29)}},
	}, Options{})

	require.NoError(t, err)
	assert.Equal(t, day(2, 1), st.Period.Start)
	assert.Equal(t, day(2, 29), st.Period.End)
	assert.True(t, st.Accounts[0].Transactions[0].HasNote(domain.NoteOutsidePeriod))
	assert.False(t, st.Accounts[0].Transactions[1].HasNote(domain.NoteOutsidePeriod))
	assert.Empty(t, acct.Transactions[0].Notes, "input account must not be mutated")
}

func TestBuild_UsesInjectedPolicies(t *testing.T) {
	acct := account("1", "0", "0")

	st, err := Build(Input{
		Accounts:  []domain.Account{acct},
		BankNames: []BankNameCandidate{{Name: "A"}, {Name: "Bank B"}},
	}, Options{
		BankName: func(c []BankNameCandidate) string { return c[0].Name },
		Period: func([]PeriodCandidate, []domain.Account) domain.Period {
			return domain.Period{Start: day(3, 1)}
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "A", st.BankName)
	assert.Equal(t, day(3, 1), st.Period.Start)
}

func TestFirstNonEmptyLongestTie(t *testing.T) {
	tests := []struct {
		name       string
		candidates []BankNameCandidate
		want       string
	}{
		{"empty", nil, ""},
		{"skips blanks", []BankNameCandidate{{Name: "  "}, {Name: "HSBC", Rank: 1}}, "HSBC"},
		{"better rank wins over length", []BankNameCandidate{{Name: "Barclays Bank UK PLC", Rank: 2}, {Name: "Barclays", Rank: 0}}, "Barclays"},
		{"tie broken by length", []BankNameCandidate{{Name: "Maybank"}, {Name: "Malayan Banking Berhad"}}, "Malayan Banking Berhad"},
		{"equal length keeps first", []BankNameCandidate{{Name: "ABC"}, {Name: "XYZ"}}, "ABC"},
		{"collapses whitespace", []BankNameCandidate{{Name: " Lloyds   Bank "}}, "Lloyds Bank"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstNonEmptyLongestTie(tt.candidates))
		})
	}
}

func TestExplicitThenTransactions(t *testing.T) {
	accounts := []domain.Account{
		account("1", "0", "0", credit(day(1, 3), "x", "1", "1"), credit(day(1, 28), "y", "1", "2")),
		account("2", "0", "0", credit(day(1, 10), "z", "1", "1")),
	}

	tests := []struct {
		name     string
		explicit []PeriodCandidate
		want     domain.Period
	}{
		{"derived only", nil, domain.Period{Start: day(1, 3), End: day(1, 28)}},
		{"explicit wins", []PeriodCandidate{{Start: day(1, 1), End: day(1, 31)}}, domain.Period{Start: day(1, 1), End: day(1, 31)}},
		{"missing end filled", []PeriodCandidate{{Start: day(1, 1)}}, domain.Period{Start: day(1, 1), End: day(1, 28)}},
		{"inverted falls back", []PeriodCandidate{{Start: day(2, 1), End: day(1, 1)}}, domain.Period{Start: day(1, 3), End: day(1, 28)}},
		{"widest explicit", []PeriodCandidate{{Start: day(1, 2), End: day(1, 20)}, {Start: day(1, 1), End: day(1, 31)}}, domain.Period{Start: day(1, 1), End: day(1, 31)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExplicitThenTransactions(tt.explicit, accounts))
		})
	}
}

func TestSummary(t *testing.T) {
	st := domain.Statement{BankName: "HSBC", Accounts: []domain.Account{account("1", "0", "0")}}
	assert.Equal(t, "HSBC [1(0)]", Summary(st))
}
