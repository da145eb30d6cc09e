// Package reconcile turns one account's candidate rows into a ledger whose
// running balance chain has been checked and, where possible, repaired.
package reconcile

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/fields"
	"github.com/shopspring/decimal"
)

// OpeningSource records where the chain's starting balance came from.
type OpeningSource string

const (
	OpeningDeclared OpeningSource = "declared"
	OpeningImplied  OpeningSource = "first_row"
	OpeningAssumed  OpeningSource = "assumed_zero"
)

// Options configures a single reconciliation.
type Options struct {
	// Opening is the declared opening balance, nil when the statement
	// did not print one.
	Opening *decimal.Decimal

	Currency string

	// Tolerance is the largest difference still treated as equal. Zero
	// means one minor unit of Currency.
	Tolerance decimal.Decimal

	Dates fields.DateParser
}

// UnresolvedRow is a candidate row that could not become a transaction.
type UnresolvedRow struct {
	SourceLineIndex int
	Row             domain.CandidateRow
	Errors          []error

	// Resynced is set when the row still moved the running balance,
	// either through its printed balance or its amount.
	Resynced bool
}

// Reasons returns the row's error messages.
func (u UnresolvedRow) Reasons() []string {
	out := make([]string, 0, len(u.Errors))
	for _, err := range u.Errors {
		out = append(out, err.Error())
	}
	return out
}

// Report summarizes what reconciliation had to repair.
type Report struct {
	Rows             int
	Corrected        int
	BalancesInferred int
	Unresolved       []UnresolvedRow
}

// Result is the reconciled ledger for one account.
type Result struct {
	Transactions  []domain.Transaction
	Opening       decimal.Decimal
	OpeningSource OpeningSource
	Report        Report
}

type side int

const (
	sideUnknown side = iota
	sideDebit
	sideCredit
)

type parsedRow struct {
	row         domain.CandidateRow
	date        civil.Date
	dateOK      bool
	description string

	delta    decimal.Decimal
	hasDelta bool
	side     side
	netted   bool

	balance    decimal.Decimal
	hasBalance bool

	amountFailed bool
	errs         []error
}

func (p parsedRow) resolvable() bool {
	return p.dateOK && (p.hasDelta || p.hasBalance)
}

// Reconcile walks rows in source order and builds the transaction ledger.
// It never fails as a whole: rows it cannot use are returned in the
// report's unresolved list.
func Reconcile(rows []domain.CandidateRow, opts Options) Result {
	scale := domain.CurrencyScale(opts.Currency)
	tol := opts.Tolerance
	if tol.IsZero() {
		tol = domain.Tolerance(opts.Currency, 1)
	}

	parsed := make([]parsedRow, len(rows))
	for i, row := range rows {
		parsed[i] = parseRow(row, opts.Dates)
	}

	running, source, impliedAt := openingBalance(parsed, opts.Opening)
	res := Result{
		Opening:       running,
		OpeningSource: source,
		Report:        Report{Rows: len(rows)},
	}

	for i, p := range parsed {
		if !p.resolvable() {
			u := UnresolvedRow{SourceLineIndex: p.row.SourceLineIndex, Row: p.row, Errors: p.errs}
			if len(u.Errors) == 0 {
				u.Errors = []error{errNoAmountOrBalance}
			}
			switch {
			case p.hasBalance:
				running = p.balance
				u.Resynced = true
			case p.hasDelta:
				running = running.Add(p.delta)
				u.Resynced = true
			}
			res.Report.Unresolved = append(res.Report.Unresolved, u)
			continue
		}

		tx, next, outcome := settle(p, running, tol, scale, i == impliedAt)
		switch outcome {
		case outcomeCorrected:
			res.Report.Corrected++
		case outcomeBalanceInferred:
			res.Report.BalancesInferred++
		}
		res.Transactions = append(res.Transactions, tx)
		running = next
	}

	return res
}

type outcome int

const (
	outcomeVerified outcome = iota
	outcomeCorrected
	outcomeBalanceInferred
	outcomeNonMonetary
)

// settle checks one row against the running balance and returns the
// transaction plus the new running balance.
func settle(p parsedRow, running, tol decimal.Decimal, scale int32, openingRow bool) (domain.Transaction, decimal.Decimal, outcome) {
	tx := domain.Transaction{
		Date:            p.date,
		Description:     p.description,
		SourceLineIndex: p.row.SourceLineIndex,
	}
	if p.netted {
		tx = tx.WithNote(domain.NoteNetted)
	}

	var (
		delta   decimal.Decimal
		balance decimal.Decimal
		result  = outcomeVerified
	)

	switch {
	case p.hasDelta && p.hasBalance:
		balance = p.balance
		if domain.WithinTolerance(running.Add(p.delta), p.balance, tol) {
			delta = p.delta
		} else {
			delta = p.balance.Sub(running)
			tx = tx.WithNote(domain.NoteAmountInferred)
			result = outcomeCorrected
		}

	case p.hasDelta:
		delta = p.delta
		balance = running.Add(p.delta)
		tx = tx.WithNote(domain.NoteBalanceInferred)
		result = outcomeBalanceInferred

	default:
		balance = p.balance
		delta = p.balance.Sub(running)
		if openingRow || (!p.amountFailed && domain.WithinTolerance(delta, decimal.Zero, tol)) {
			tx.Balance = domain.NewMoney(balance, scale)
			tx = tx.WithNote(domain.NoteNoAmount)
			return tx, balance, outcomeNonMonetary
		}
		tx = tx.WithNote(domain.NoteAmountInferred)
		result = outcomeCorrected
	}

	switch {
	case delta.IsNegative():
		tx.Debit = domain.MoneyPtr(delta.Neg(), scale)
	case delta.IsPositive():
		tx.Credit = domain.MoneyPtr(delta, scale)
	case p.side == sideDebit:
		tx.Debit = domain.MoneyPtr(decimal.Zero, scale)
	default:
		tx.Credit = domain.MoneyPtr(decimal.Zero, scale)
	}
	tx.Balance = domain.NewMoney(balance, scale)
	return tx, balance, result
}

// openingBalance picks the declared opening balance or derives one from
// the first row that prints a balance. impliedAt is the index of a row
// whose balance became the opening because it had no amount, or -1.
func openingBalance(rows []parsedRow, declared *decimal.Decimal) (decimal.Decimal, OpeningSource, int) {
	if declared != nil {
		return *declared, OpeningDeclared, -1
	}

	sum := decimal.Zero
	for i, p := range rows {
		if p.hasBalance {
			switch {
			case p.hasDelta:
				return p.balance.Sub(sum).Sub(p.delta), OpeningImplied, -1
			case p.resolvable():
				return p.balance.Sub(sum), OpeningImplied, i
			default:
				return p.balance.Sub(sum), OpeningImplied, -1
			}
		}
		if p.hasDelta {
			sum = sum.Add(p.delta)
		}
	}
	return decimal.Zero, OpeningAssumed, -1
}

func parseRow(row domain.CandidateRow, dates fields.DateParser) parsedRow {
	p := parsedRow{
		row:         row,
		description: strings.Join(strings.Fields(row.DescriptionText), " "),
	}

	d, err := dates.Parse(row.DateText)
	if err != nil {
		p.errs = append(p.errs, err)
	} else {
		p.date, p.dateOK = d, true
	}

	debit, debitOK := p.amount(row.DebitText)
	credit, creditOK := p.amount(row.CreditText)
	amount, amountOK := p.amount(row.AmountText)

	switch {
	case debitOK && creditOK:
		debit, credit = debit.Abs(), credit.Abs()
		switch {
		case debit.IsZero() && !credit.IsZero():
			p.delta, p.side = credit, sideCredit
		case credit.IsZero() && !debit.IsZero():
			p.delta, p.side = debit.Neg(), sideDebit
		case debit.IsZero() && credit.IsZero():
			p.delta, p.side = decimal.Zero, sideCredit
		default:
			p.delta, p.netted = credit.Sub(debit), true
		}
		p.hasDelta = true
	case debitOK:
		p.delta, p.side, p.hasDelta = debit.Abs().Neg(), sideDebit, true
	case creditOK:
		p.delta, p.side, p.hasDelta = credit.Abs(), sideCredit, true
	case amountOK:
		p.delta, p.hasDelta = amount, true
		p.side = sideCredit
		if amount.IsNegative() {
			p.side = sideDebit
		}
	}

	if b, ok := p.amount(row.BalanceText); ok {
		p.balance, p.hasBalance = b, true
	}
	return p
}

// amount parses an optional amount column. Blank columns are absent, not
// errors; anything else that fails is recorded on the row.
func (p *parsedRow) amount(text string) (decimal.Decimal, bool) {
	if strings.TrimSpace(text) == "" {
		return decimal.Zero, false
	}
	d, err := fields.ParseAmount(text)
	if err != nil {
		if !fields.IsKind(err, fields.KindEmptyField) {
			p.errs = append(p.errs, err)
			p.amountFailed = true
		}
		return decimal.Zero, false
	}
	return d, true
}
