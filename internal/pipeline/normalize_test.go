package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/extraction"
	"github.com/dvloznov/statement-normalizer/internal/fields"
	"github.com/dvloznov/statement-normalizer/internal/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

const maybankJSON = `{
  "bank_name": "Maybank",
  "statement_period": {"start_date": "2024-01-01", "end_date": "2024-01-31"},
  "accounts": [
    {
      "account_number": "514012345678",
      "account_name": "Savings Account-i",
      "currency": "MYR",
      "opening_balance": 1000.00,
      "closing_balance": 850.50,
      "transactions": [
        {"date": "2024-01-03", "description": "ATM withdrawal", "debit": 200.00, "credit": null, "balance": 800.00},
        {"date": "2024-01-15", "description": "Transfer from J Tan", "debit": null, "credit": 50.50, "balance": 850.50}
      ]
    }
  ]
}`

func decodeJSON(t *testing.T, raw string) any {
	t.Helper()
	v, err := extraction.DecodeModelJSON(raw)
	require.NoError(t, err)
	return v
}

func TestNormalize_StructuredStatement(t *testing.T) {
	st, report, err := Normalize(extraction.ModelOutput{Structured: decodeJSON(t, maybankJSON)}, NormalizeOptions{Clock: fixedClock})
	require.NoError(t, err)

	assert.Equal(t, "Maybank", st.BankName)
	assert.Equal(t, "2024-01-01", st.Period.Start.String())
	assert.Equal(t, "2024-01-31", st.Period.End.String())
	require.Len(t, st.Accounts, 1)

	acct := st.Accounts[0]
	assert.Equal(t, "514012345678", acct.AccountNumber)
	assert.Equal(t, "MYR", acct.Currency)
	assert.Equal(t, "1000.00", acct.OpeningBalance.String())
	assert.Equal(t, "850.50", acct.ClosingBalance.String())
	assert.Empty(t, acct.Notes)
	require.Len(t, acct.Transactions, 2)
	assert.Equal(t, "200.00", acct.Transactions[0].Debit.String())
	assert.Nil(t, acct.Transactions[0].Credit)
	assert.Equal(t, "50.50", acct.Transactions[1].Credit.String())

	assert.Equal(t, extraction.SourceStructured, report.ExtractionMethod)
	assert.Equal(t, 2, report.CandidateRows)
	require.Len(t, report.Accounts, 1)
	assert.Equal(t, 2, report.Accounts[0].Transactions)
	assert.Equal(t, "declared", report.Accounts[0].OpeningSource)
	assert.Zero(t, report.Accounts[0].Corrected)
	assert.Empty(t, report.Dropped)
}

func TestNormalize_IsIdempotent(t *testing.T) {
	out := extraction.ModelOutput{Structured: decodeJSON(t, maybankJSON), Pages: []string{hsbcPage}}
	opts := NormalizeOptions{Clock: fixedClock, Elapsed: 1500 * time.Millisecond}

	first, _, err := Normalize(out, opts)
	require.NoError(t, err)
	second, _, err := Normalize(out, opts)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"processed_at":"2024-02-01T09:30:00Z"`)
	assert.Contains(t, string(a), `"processing_time_seconds":1.50`)
}

func TestNormalize_RoundTripsThroughFieldParsers(t *testing.T) {
	st, _, err := Normalize(extraction.ModelOutput{Structured: decodeJSON(t, maybankJSON)}, NormalizeOptions{Clock: fixedClock})
	require.NoError(t, err)

	dates := fields.DateParser{}
	for _, tx := range st.Accounts[0].Transactions {
		d, err := dates.Parse(tx.Date.String())
		require.NoError(t, err)
		assert.Equal(t, tx.Date, d)

		amount, err := fields.ParseAmount(tx.Balance.String())
		require.NoError(t, err)
		assert.True(t, amount.Equal(tx.Balance.Amount))
	}
}

const hsbcPage = `HSBC UK Bank plc
Statement period: 01 Jan 2024 to 31 Jan 2024
Account Name: Everyday Account Number: 12345678
Currency: GBP
Date Description Paid out Paid in Balance
01 Jan 2024 Balance brought forward 1,000.00
05 Jan 2024 Tesco Stores 60.00 940.00
Card 1234
10 Jan 2024 Salary 500.00 1,440.00
Interest 0.50 1,440.50
Closing balance 1,440.50`

func TestNormalize_PageText(t *testing.T) {
	st, report, err := Normalize(extraction.ModelOutput{Pages: []string{hsbcPage}}, NormalizeOptions{Clock: fixedClock})
	require.NoError(t, err)

	assert.Equal(t, "HSBC", st.BankName)
	require.Len(t, st.Accounts, 1)
	acct := st.Accounts[0]
	assert.Equal(t, "GBP", acct.Currency)
	assert.Equal(t, "1440.50", acct.ClosingBalance.String())
	assert.False(t, acct.Flagged())
	require.Len(t, acct.Transactions, 3)

	tesco := acct.Transactions[0]
	assert.Equal(t, "Tesco Stores Card 1234", tesco.Description)
	assert.Equal(t, "60.00", tesco.Debit.String())
	assert.True(t, tesco.HasNote(domain.NoteAmountInferred))

	assert.Equal(t, extraction.SourcePages, report.ExtractionMethod)
	assert.Equal(t, 1, report.Accounts[0].Corrected)
}

func TestNormalize_ClosingMismatchIsFlaggedNotDropped(t *testing.T) {
	raw := `{"bank_name":"CIMB","statement_period":{"start_date":"2024-03-01","end_date":"2024-03-31"},
	  "accounts":[{"account_number":"800123","currency":"MYR","opening_balance":100,"closing_balance":999,
	  "transactions":[{"date":"2024-03-02","description":"Fee","debit":10,"balance":90}]}]}`

	st, _, err := Normalize(extraction.ModelOutput{Structured: decodeJSON(t, raw)}, NormalizeOptions{Clock: fixedClock})
	require.NoError(t, err)
	require.Len(t, st.Accounts, 1)
	assert.True(t, st.Accounts[0].Flagged())
	assert.Equal(t, "999.00", st.Accounts[0].ClosingBalance.String())

	_, report, err := Normalize(extraction.ModelOutput{Structured: decodeJSON(t, raw)}, NormalizeOptions{Clock: fixedClock, StrictBalances: true})
	require.Error(t, err)
	assert.True(t, statement.IsNoValidAccounts(err))
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, "BALANCE_MISMATCH", report.Dropped[0].Kind)
}

func TestNormalize_MissingAccountNumberDropsOnlyThatAccount(t *testing.T) {
	raw := `{"bank_name":"Public Bank","statement_period":{"start_date":"2024-01-01","end_date":"2024-01-31"},
	  "accounts":[
	    {"account_name":"Mystery","currency":"MYR","opening_balance":10,
	     "transactions":[{"date":"2024-01-02","description":"X","credit":5,"balance":15}]},
	    {"account_number":"3-1234567-89","currency":"MYR","opening_balance":10,
	     "transactions":[{"date":"2024-01-02","description":"Y","credit":5,"balance":15}]}
	  ]}`

	st, report, err := Normalize(extraction.ModelOutput{Structured: decodeJSON(t, raw)}, NormalizeOptions{Clock: fixedClock})
	require.NoError(t, err)
	assert.Len(t, st.Accounts, 1)
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, 0, report.Dropped[0].Index)
	assert.Equal(t, "MISSING_ACCOUNT_NUMBER", report.Dropped[0].Kind)
}

func TestNormalize_NoAccountsIsStatementError(t *testing.T) {
	_, report, err := Normalize(extraction.ModelOutput{Pages: []string{"nothing useful here"}}, NormalizeOptions{Clock: fixedClock})
	require.Error(t, err)
	assert.True(t, statement.IsNoValidAccounts(err))
	assert.Empty(t, report.Accounts)
}

func TestNormalize_FallbackCurrencyAndProbedDateOrder(t *testing.T) {
	raw := `[
	  {"account_number":"111","date":"03/01/2024","description":"A","amount":"-5.00","balance":"95.00"},
	  {"account_number":"111","date":"25/01/2024","description":"B","amount":"10.00","balance":"105.00"}
	]`

	st, report, err := Normalize(extraction.ModelOutput{Structured: decodeJSON(t, raw)}, NormalizeOptions{
		Clock:            fixedClock,
		FallbackCurrency: "MYR",
	})
	require.NoError(t, err)

	assert.Equal(t, "day-first", report.DateOrder)
	require.Len(t, st.Accounts, 1)
	acct := st.Accounts[0]
	assert.Equal(t, "MYR", acct.Currency)
	assert.Equal(t, "2024-01-03", acct.Transactions[0].Date.String())
	assert.Equal(t, "100.00", acct.OpeningBalance.String())
	assert.Equal(t, "first_row", report.Accounts[0].OpeningSource)

	// Without an explicit period the statement spans the transactions.
	assert.Equal(t, "2024-01-03", st.Period.Start.String())
	assert.Equal(t, "2024-01-25", st.Period.End.String())
	assert.Equal(t, "", st.BankName)
}

func TestNormalize_ZeroOptionsUseDefaultFallbackCurrency(t *testing.T) {
	raw := `{"accounts":[{"account_number":"777","opening_balance":"10.00",
	  "transactions":[{"date":"2024-01-05","description":"Fee","debit":"1.00","balance":"9.00"}]}]}`

	st, _, err := Normalize(extraction.ModelOutput{Structured: decodeJSON(t, raw)}, NormalizeOptions{Clock: fixedClock})
	require.NoError(t, err)

	require.Len(t, st.Accounts, 1)
	assert.Equal(t, DefaultFallbackCurrency, st.Accounts[0].Currency)
	assert.Equal(t, "9.00", st.Accounts[0].ClosingBalance.String())
}

func TestNormalize_YearlessDatesTakeThePeriodYear(t *testing.T) {
	raw := `{"bank_name":"RHB","statement_period":{"start_date":"01 Dec 2023","end_date":"31 Dec 2023"},
	  "accounts":[{"account_number":"2123","currency":"MYR","opening_balance":"50.00",
	  "transactions":[{"date":"05 Dec","description":"Kopi","debit":"4.50","balance":"45.50"}]}]}`

	st, _, err := Normalize(extraction.ModelOutput{Structured: decodeJSON(t, raw)}, NormalizeOptions{Clock: fixedClock})
	require.NoError(t, err)
	require.Len(t, st.Accounts[0].Transactions, 1)
	assert.Equal(t, "2023-12-05", st.Accounts[0].Transactions[0].Date.String())
}

func TestPeriodCandidates_KeepsBestRank(t *testing.T) {
	meta := extraction.Metadata{
		PeriodStarts: []extraction.Candidate{{Text: "garbage", Rank: 0}, {Text: "2024-01-01", Rank: 2}, {Text: "2024-01-05", Rank: 1}},
		PeriodEnds:   []extraction.Candidate{{Text: "2024-01-31", Rank: 1}},
	}

	got := periodCandidates(meta, fields.DateParser{})
	require.Len(t, got, 1)
	assert.Equal(t, "2024-01-05", got[0].Start.String())
	assert.Equal(t, "2024-01-31", got[0].End.String())
}
