package extraction

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	v, err := DecodeModelJSON(raw)
	require.NoError(t, err)
	return v
}

func failurePaths(r FieldReport) []string {
	var paths []string
	for _, f := range r.Failures() {
		paths = append(paths, f.Path)
	}
	return paths
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"fenced object", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", "[1,2]"},
		{"prose around array", "Here you go: [1,2] thanks", "[1,2]"},
		{"prose around object", "Result:\n{\"a\":{\"b\":2}}\nDone.", `{"a":{"b":2}}`},
		{"no json", "no json here", "no json here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanModelJSON(tt.raw))
		})
	}
}

func TestDecodeModelJSON(t *testing.T) {
	v := decode(t, "```json\n{\"opening_balance\": 1000.10}\n```")
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("1000.10"), m["opening_balance"])

	_, err := DecodeModelJSON("nothing useful")
	assert.ErrorIs(t, err, ErrNoJSON)

	_, err = DecodeModelJSON(`{"a":1} {"b":2}`)
	assert.Error(t, err)
}

func TestValidateStructure(t *testing.T) {
	valid := decode(t, `{"bank_name":"X","statement_period":{"start_date":"2024-01-01","end_date":"2024-01-31"},"accounts":[]}`)
	assert.Empty(t, ValidateStructure(valid))

	assert.Equal(t, []string{"result must be an object, got array"}, ValidateStructure([]any{}))

	missing := decode(t, `{"bank_name":"X","statement_period":{"start_date":"2024-01-01"}}`)
	problems := ValidateStructure(missing)
	assert.Contains(t, problems, "missing required field: accounts")
	assert.Contains(t, problems, "statement_period must include start_date and end_date")

	wrong := decode(t, `{"bank_name":"X","statement_period":"January","accounts":{}}`)
	problems = ValidateStructure(wrong)
	assert.Contains(t, problems, "statement_period must be an object")
	assert.Contains(t, problems, "accounts must be a list")
}

func TestAdaptStructuredSchema(t *testing.T) {
	raw := `{
	  "bank_name": "Maybank",
	  "statement_period": {"start_date": "2024-01-01", "end_date": "2024-01-31"},
	  "accounts": [{
	    "account_number": "1234-5678",
	    "account_name": "Savings",
	    "currency": "MYR",
	    "opening_balance": 1000.00,
	    "transactions": [
	      {"date": "2024-01-05", "description": "Coffee", "debit": 4.50, "credit": null, "balance": 995.50},
	      {"date": "2024-01-06", "description": "Salary", "debit": null, "credit": 2000, "balance": 2995.50},
	      "garbage"
	    ]
	  }]
	}`

	ex := New(Options{}).Adapt(ModelOutput{Structured: decode(t, raw)})

	assert.Equal(t, SourceStructured, ex.Method)
	require.Len(t, ex.Accounts, 1)
	acc := ex.Accounts[0]
	assert.Equal(t, "1234-5678", acc.AccountNumberText)
	assert.Equal(t, "Savings", acc.AccountNameText)
	assert.Equal(t, "MYR", acc.CurrencyText)
	assert.Equal(t, "1000.00", acc.OpeningBalanceText)
	require.Len(t, acc.Rows, 2)
	assert.Equal(t, "4.50", acc.Rows[0].DebitText)
	assert.Empty(t, acc.Rows[0].CreditText)
	assert.Equal(t, "995.50", acc.Rows[0].BalanceText)
	assert.Equal(t, "2000", acc.Rows[1].CreditText)
	assert.Equal(t, 0, acc.Rows[0].SourceLineIndex)
	assert.Equal(t, 1, acc.Rows[1].SourceLineIndex)

	assert.Equal(t, []Candidate{{Text: "Maybank", Rank: 0}}, ex.Metadata.BankNames)
	assert.Equal(t, []Candidate{{Text: "2024-01-01", Rank: 0}}, ex.Metadata.PeriodStarts)
	assert.Equal(t, []Candidate{{Text: "2024-01-31", Rank: 0}}, ex.Metadata.PeriodEnds)

	paths := failurePaths(ex.Report)
	assert.Contains(t, paths, "accounts[0].closing_balance")
	assert.Contains(t, paths, "accounts[0].transactions[2]")
}

func TestAdaptStructuredFlatArray(t *testing.T) {
	raw := `[
	  {"date": "2024-01-05", "description": "A", "amount": -10, "balance_after": 90, "account_number": "111"},
	  {"date": "2024-01-05", "description": "B", "amount": 5, "balance_after": 205, "account_number": "222"},
	  {"date": "2024-01-06", "description": "C", "amount": -20, "balance_after": 70, "account_number": "111"}
	]`

	ex := New(Options{}).Adapt(ModelOutput{Structured: decode(t, raw)})

	require.Len(t, ex.Accounts, 2)
	assert.Equal(t, "111", ex.Accounts[0].AccountNumberText)
	assert.Equal(t, "222", ex.Accounts[1].AccountNumberText)
	require.Len(t, ex.Accounts[0].Rows, 2)
	assert.Equal(t, "-10", ex.Accounts[0].Rows[0].AmountText)
	assert.Equal(t, "90", ex.Accounts[0].Rows[0].BalanceText)
	assert.Equal(t, "C", ex.Accounts[0].Rows[1].DescriptionText)
	assert.Equal(t, 3, ex.Rows())
}

func TestModelOutput_Empty(t *testing.T) {
	assert.True(t, ModelOutput{}.Empty())
	assert.True(t, ModelOutput{Pages: []string{"", " \n\t"}}.Empty())
	assert.False(t, ModelOutput{Pages: []string{"", "Opening balance 10.00"}}.Empty())
	assert.False(t, ModelOutput{Pairs: []LabelValue{{Label: "Bank", Value: "HSBC"}}}.Empty())
	assert.False(t, ModelOutput{Structured: map[string]any{}}.Empty())
}

func TestMatchLabel(t *testing.T) {
	tests := []struct {
		label   string
		want    string
		exact   bool
		matched bool
	}{
		{"Account No.", labelAccountNumber, true, true},
		{"A/C No.", labelAccountNumber, true, true},
		{"Bank:", labelBank, true, true},
		{"Acount Number", labelAccountNumber, false, true},
		{"Openning Balance", labelOpening, false, true},
		{"Balance", "", false, false},
		{"Date", "", false, false},
		{"", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			key, conf, ok := MatchLabel(tt.label)
			assert.Equal(t, tt.matched, ok)
			assert.Equal(t, tt.want, key)
			if !ok {
				return
			}
			if tt.exact {
				assert.Equal(t, 1.0, conf)
			} else {
				assert.Less(t, conf, 1.0)
				assert.Greater(t, conf, 0.9)
			}
		})
	}
}

func TestAdaptPairsOnly(t *testing.T) {
	pairs := []LabelValue{
		{Label: "Bank Name", Value: "HSBC"},
		{Label: "Account Number", Value: "111"},
		{Label: "Opening Balance", Value: "100.00"},
		{Label: "Account Number", Value: "222"},
		{Label: "Closing Balance", Value: "50.00"},
		{Label: "Statement Period", Value: "01/01/2024 - 31/01/2024"},
		{Label: "Weather", Value: "sunny"},
	}

	ex := New(Options{}).Adapt(ModelOutput{Pairs: pairs})

	assert.Equal(t, SourcePairs, ex.Method)
	require.Len(t, ex.Accounts, 2)
	assert.Equal(t, "111", ex.Accounts[0].AccountNumberText)
	assert.Equal(t, "100.00", ex.Accounts[0].OpeningBalanceText)
	assert.Equal(t, "222", ex.Accounts[1].AccountNumberText)
	assert.Equal(t, "50.00", ex.Accounts[1].ClosingBalanceText)
	assert.Equal(t, []Candidate{{Text: "HSBC", Rank: 1}}, ex.Metadata.BankNames)
	assert.Equal(t, []Candidate{{Text: "01/01/2024", Rank: 1}}, ex.Metadata.PeriodStarts)
	assert.Equal(t, []Candidate{{Text: "31/01/2024", Rank: 1}}, ex.Metadata.PeriodEnds)
	assert.Contains(t, failurePaths(ex.Report), "pairs[6]")
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

func TestAdaptPages(t *testing.T) {
	ex := New(Options{}).Adapt(ModelOutput{Pages: []string{hsbcPage}})

	assert.Equal(t, SourcePages, ex.Method)
	require.Len(t, ex.Accounts, 1)
	acc := ex.Accounts[0]
	assert.Equal(t, "12345678", acc.AccountNumberText)
	assert.Equal(t, "Everyday", acc.AccountNameText)
	assert.Equal(t, "GBP", acc.CurrencyText)
	assert.Equal(t, "1,000.00", acc.OpeningBalanceText)
	assert.Equal(t, "1,440.50", acc.ClosingBalanceText)

	require.Len(t, acc.Rows, 3)
	assert.Equal(t, "05 Jan 2024", acc.Rows[0].DateText)
	assert.Equal(t, "Tesco Stores Card 1234", acc.Rows[0].DescriptionText)
	assert.Equal(t, "60.00", acc.Rows[0].AmountText)
	assert.Equal(t, "940.00", acc.Rows[0].BalanceText)
	assert.Equal(t, 1, acc.Rows[0].Page)
	assert.Equal(t, "Salary", acc.Rows[1].DescriptionText)
	assert.Equal(t, "10 Jan 2024", acc.Rows[2].DateText)
	assert.Equal(t, "Interest", acc.Rows[2].DescriptionText)
	assert.Equal(t, "1,440.50", acc.Rows[2].BalanceText)

	assert.Equal(t, []Candidate{{Text: "HSBC", Rank: 2}}, ex.Metadata.BankNames)
	assert.Equal(t, []Candidate{{Text: "01 Jan 2024", Rank: 2}}, ex.Metadata.PeriodStarts)
	assert.Equal(t, []Candidate{{Text: "31 Jan 2024", Rank: 2}}, ex.Metadata.PeriodEnds)
	assert.Empty(t, ex.Report.Failures())
}

func TestAdaptPagesAccountsAcrossPages(t *testing.T) {
	page1 := "Account No: 111\n01/01/2024 Opening balance 100.00\n02/01/2024 Coffee 5.00 95.00"
	page2 := "Account No: 111\n03/01/2024 Tea 3.00 92.00\nAccount No: 222\n03/01/2024 Rent 50.00 450.00"

	ex := New(Options{}).Adapt(ModelOutput{Pages: []string{page1, page2}})

	require.Len(t, ex.Accounts, 2)
	assert.Equal(t, "111", ex.Accounts[0].AccountNumberText)
	assert.Equal(t, "100.00", ex.Accounts[0].OpeningBalanceText)
	require.Len(t, ex.Accounts[0].Rows, 2)
	assert.Equal(t, 1, ex.Accounts[0].Rows[0].Page)
	assert.Equal(t, 2, ex.Accounts[0].Rows[1].Page)
	assert.Equal(t, "222", ex.Accounts[1].AccountNumberText)
	require.Len(t, ex.Accounts[1].Rows, 1)
	assert.Equal(t, "Rent", ex.Accounts[1].Rows[0].DescriptionText)
}

func TestAdaptPagesTransferDescriptionIsNotAnAccountHeader(t *testing.T) {
	page := "Account No: 111\n02/01/2024 Transfer to A/C 99999999 5.00 95.00"

	ex := New(Options{}).Adapt(ModelOutput{Pages: []string{page}})

	require.Len(t, ex.Accounts, 1)
	require.Len(t, ex.Accounts[0].Rows, 1)
	assert.Equal(t, "Transfer to A/C 99999999", ex.Accounts[0].Rows[0].DescriptionText)
}

func TestAdaptUnreadablePages(t *testing.T) {
	ex := New(Options{}).Adapt(ModelOutput{Pages: []string{"\x00\x01\x02\x03abc", "   "}})

	assert.Empty(t, ex.Accounts)
	assert.Equal(t, SourceNone, ex.Method)
	failures := ex.Report.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, FieldStatus{Path: "pages[0]", Failure: "unreadable text"}, failures[0])
	assert.Equal(t, FieldStatus{Path: "pages[1]", Failure: "empty page"}, failures[1])
}

func TestAdaptPrefersStructuredAndFillsHeadersFromPairs(t *testing.T) {
	raw := `{"bank_name":"X","statement_period":{"start_date":"2024-01-01","end_date":"2024-01-31"},
	  "accounts":[{"account_number":"111","transactions":[
	    {"date":"2024-01-02","description":"A","debit":"5.00","balance":"95.00"}]}]}`

	ex := New(Options{}).Adapt(ModelOutput{
		Structured: decode(t, raw),
		Pairs:      []LabelValue{{Label: "Opening Balance", Value: "100.00"}},
		Pages:      []string{hsbcPage},
	})

	assert.Equal(t, SourceStructured, ex.Method)
	require.Len(t, ex.Accounts, 1)
	assert.Equal(t, "111", ex.Accounts[0].AccountNumberText)
	assert.Equal(t, "100.00", ex.Accounts[0].OpeningBalanceText)
	assert.Len(t, ex.Accounts[0].Rows, 1)
}

func TestAdaptFallsBackToPagesWhenStructuredHasNoRows(t *testing.T) {
	ex := New(Options{}).Adapt(ModelOutput{
		Structured: decode(t, `{"bank_name":"HSBC UK","accounts":[]}`),
		Pages:      []string{hsbcPage},
	})

	assert.Equal(t, SourcePages, ex.Method)
	require.Len(t, ex.Accounts, 1)
	assert.Len(t, ex.Accounts[0].Rows, 3)
	assert.Equal(t, Candidate{Text: "HSBC UK", Rank: 0}, ex.Metadata.BankNames[0])
}

func TestSplitTrailingAmounts(t *testing.T) {
	tests := []struct {
		line    string
		rest    string
		amounts []string
	}{
		{"Tesco 60.00 940.00", "Tesco", []string{"60.00", "940.00"}},
		{"Refund (12.50) 1,012.50 CR", "Refund", []string{"(12.50)", "1,012.50 CR"}},
		{"Invoice 2024", "Invoice 2024", nil},
		{"A 3.00 4.00 5.00 6.00", "A 3.00", []string{"4.00", "5.00", "6.00"}},
		{"Miete 1.234,56", "Miete", []string{"1.234,56"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			rest, amounts := splitTrailingAmounts(tt.line)
			assert.Equal(t, tt.rest, rest)
			assert.Equal(t, tt.amounts, amounts)
		})
	}
}

func TestSplitPeriod(t *testing.T) {
	start, end, ok := splitPeriod("2024-01-01 - 2024-01-31")
	require.True(t, ok)
	assert.Equal(t, "2024-01-01", start)
	assert.Equal(t, "2024-01-31", end)

	_, _, ok = splitPeriod("January to February")
	assert.False(t, ok)
}

func TestSanitizeOCRAmounts(t *testing.T) {
	tests := map[string]string{
		"Coffee 19,720; 15": "Coffee 19,720.15",
		"Rent 1,234:56":     "Rent 1,234.56",
		"Balance 100.00:":   "Balance 100.00",
		"Fee 2.00 NA":       "Fee 2.00",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeOCRAmounts(in), in)
	}
}

func TestReadable(t *testing.T) {
	assert.True(t, readable("01 Jan Coffee 4.50"))
	assert.False(t, readable(strings.Repeat("\x00", 10)+"ab"))
	assert.False(t, readable("...."))
}
