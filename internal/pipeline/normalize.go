package pipeline

import (
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-normalizer/internal/assemble"
	"github.com/dvloznov/statement-normalizer/internal/domain"
	"github.com/dvloznov/statement-normalizer/internal/extraction"
	"github.com/dvloznov/statement-normalizer/internal/fields"
	"github.com/dvloznov/statement-normalizer/internal/reconcile"
	"github.com/dvloznov/statement-normalizer/internal/statement"
	"github.com/shopspring/decimal"
)

// NormalizeOptions configures Normalize. The zero value is usable.
type NormalizeOptions struct {
	// FallbackCurrency defaults to DefaultFallbackCurrency.
	FallbackCurrency    string
	ToleranceMinorUnits int64
	StrictBalances      bool

	// DateOrder fixes how all-numeric dates are read. OrderUnknown probes
	// the statement's own dates.
	DateOrder fields.DateOrder

	BankNamePolicy statement.BankNamePolicy
	PeriodPolicy   statement.PeriodPolicy

	Adapter extraction.Adapter

	// Clock stamps processed_at. Elapsed is time already spent before
	// Normalize was called and is added to processing_time_seconds.
	Clock   func() time.Time
	Elapsed time.Duration
}

func (o NormalizeOptions) assembleOptions() assemble.Options {
	return assemble.Options{
		FallbackCurrency:    o.FallbackCurrency,
		ToleranceMinorUnits: o.ToleranceMinorUnits,
		StrictBalances:      o.StrictBalances,
	}
}

// Report is the diagnostic companion of a statement. It is never part of
// the statement JSON itself.
type Report struct {
	Source           string                   `json:"source,omitempty"`
	ExtractionMethod string                   `json:"extraction_method"`
	CandidateRows    int                      `json:"candidate_rows"`
	DateOrder        string                   `json:"date_order"`
	FieldFailures    []extraction.FieldStatus `json:"field_failures,omitempty"`
	Accounts         []AccountReport          `json:"accounts"`
	Dropped          []DroppedAccount         `json:"dropped_accounts,omitempty"`
}

// AccountReport summarizes reconciliation for one candidate account.
type AccountReport struct {
	AccountNumber    string          `json:"account_number"`
	Rows             int             `json:"rows"`
	Transactions     int             `json:"transactions"`
	Corrected        int             `json:"corrected"`
	BalancesInferred int             `json:"balances_inferred"`
	OpeningSource    string          `json:"opening_source"`
	Problems         []string        `json:"problems,omitempty"`
	Unresolved       []UnresolvedRow `json:"unresolved,omitempty"`
}

// UnresolvedRow is a candidate row that did not become a transaction.
type UnresolvedRow struct {
	SourceLineIndex int      `json:"source_line_index"`
	Page            int      `json:"page,omitempty"`
	Date            string   `json:"date,omitempty"`
	Description     string   `json:"description,omitempty"`
	Reasons         []string `json:"reasons"`
	Resynced        bool     `json:"resynced,omitempty"`
}

// DroppedAccount is an account left out of the statement.
type DroppedAccount struct {
	Index         int    `json:"index"`
	AccountNumber string `json:"account_number,omitempty"`
	Kind          string `json:"kind"`
	Reason        string `json:"reason"`
}

// Counts returns the totals used for run logs and metrics.
func (r Report) Counts() (transactions, unresolved int) {
	for _, a := range r.Accounts {
		transactions += a.Transactions
		unresolved += len(a.Unresolved)
	}
	return transactions, unresolved
}

// Normalize turns untrusted extraction output into a canonical statement.
// It has no side effects; given the same output and a fixed clock it returns
// the same statement.
func Normalize(out extraction.ModelOutput, opts NormalizeOptions) (domain.Statement, Report, error) {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	started := clock()
	if strings.TrimSpace(opts.FallbackCurrency) == "" {
		opts.FallbackCurrency = DefaultFallbackCurrency
	}

	adapter := opts.Adapter
	if adapter == nil {
		adapter = extraction.New(extraction.Options{})
	}
	ex := adapter.Adapt(out)

	report := Report{
		ExtractionMethod: ex.Method,
		CandidateRows:    ex.Rows(),
		FieldFailures:    ex.Report.Failures(),
		Accounts:         []AccountReport{},
	}

	order := opts.DateOrder
	if order == fields.OrderUnknown {
		order = fields.ProbeDateOrder(dateTexts(ex))
	}
	report.DateOrder = order.String()

	dates := fields.DateParser{Order: order}
	dates.DefaultYear = statementYear(ex, dates)
	periods := periodCandidates(ex.Metadata, dates)

	var accounts []domain.Account
	var dropped []error
	for i, cand := range ex.Accounts {
		acct, ar, err := normalizeAccount(cand, dates, opts)
		report.Accounts = append(report.Accounts, ar)
		if err != nil {
			dropped = append(dropped, err)
			report.Dropped = append(report.Dropped, droppedAccount(i, cand, err))
			continue
		}
		accounts = append(accounts, acct)
	}

	bankNames := make([]statement.BankNameCandidate, 0, len(ex.Metadata.BankNames))
	for _, c := range ex.Metadata.BankNames {
		bankNames = append(bankNames, statement.BankNameCandidate{Name: c.Text, Rank: c.Rank})
	}

	finished := clock()
	st, err := statement.Build(statement.Input{
		Accounts:       accounts,
		BankNames:      bankNames,
		Periods:        periods,
		Dropped:        dropped,
		ProcessedAt:    finished,
		ProcessingTime: opts.Elapsed + finished.Sub(started),
	}, statement.Options{
		BankName: opts.BankNamePolicy,
		Period:   opts.PeriodPolicy,
		Assemble: opts.assembleOptions(),
	})
	if err != nil {
		return domain.Statement{}, report, err
	}
	return st, report, nil
}

func normalizeAccount(c extraction.AccountCandidate, dates fields.DateParser, opts NormalizeOptions) (domain.Account, AccountReport, error) {
	ar := AccountReport{
		AccountNumber: strings.TrimSpace(c.AccountNumberText),
		Rows:          len(c.Rows),
	}

	currency := assemble.ResolveCurrency(c.CurrencyText, currencyHints(c), opts.FallbackCurrency)

	opening, err := optionalAmount(c.OpeningBalanceText)
	if err != nil {
		ar.Problems = append(ar.Problems, "opening balance: "+err.Error())
	}
	closing, err := optionalAmount(c.ClosingBalanceText)
	if err != nil {
		ar.Problems = append(ar.Problems, "closing balance: "+err.Error())
	}

	rec := reconcile.Reconcile(c.Rows, reconcile.Options{
		Opening:   opening,
		Currency:  currency,
		Tolerance: domain.Tolerance(currency, opts.ToleranceMinorUnits),
		Dates:     dates,
	})
	ar.Transactions = len(rec.Transactions)
	ar.Corrected = rec.Report.Corrected
	ar.BalancesInferred = rec.Report.BalancesInferred
	ar.OpeningSource = string(rec.OpeningSource)
	for _, u := range rec.Report.Unresolved {
		ar.Unresolved = append(ar.Unresolved, UnresolvedRow{
			SourceLineIndex: u.SourceLineIndex,
			Page:            u.Row.Page,
			Date:            u.Row.DateText,
			Description:     u.Row.DescriptionText,
			Reasons:         u.Reasons(),
			Resynced:        u.Resynced,
		})
	}

	acct, err := assemble.Assemble(assemble.Input{
		AccountNumber:   c.AccountNumberText,
		AccountName:     c.AccountNameText,
		Currency:        currency,
		Opening:         rec.Opening,
		OpeningSource:   rec.OpeningSource,
		DeclaredClosing: closing,
		Transactions:    rec.Transactions,
	}, opts.assembleOptions())
	if err != nil {
		return domain.Account{}, ar, err
	}
	ar.AccountNumber = acct.AccountNumber
	return acct, ar, nil
}

func optionalAmount(text string) (*decimal.Decimal, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	d, err := fields.ParseAmount(text)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// currencyHints are texts that may carry a currency symbol or code.
func currencyHints(c extraction.AccountCandidate) []string {
	hints := []string{c.OpeningBalanceText, c.ClosingBalanceText}
	for _, r := range c.Rows {
		hints = append(hints, r.AmountText, r.DebitText, r.CreditText, r.BalanceText)
	}
	return hints
}

func dateTexts(ex extraction.Extraction) []string {
	var texts []string
	for _, c := range ex.Metadata.PeriodStarts {
		texts = append(texts, c.Text)
	}
	for _, c := range ex.Metadata.PeriodEnds {
		texts = append(texts, c.Text)
	}
	for _, a := range ex.Accounts {
		for _, r := range a.Rows {
			texts = append(texts, r.DateText)
		}
	}
	return texts
}

// statementYear picks the year for dates printed without one: the period
// end, then the period start, then the first row date that carries a year.
func statementYear(ex extraction.Extraction, dates fields.DateParser) int {
	for _, list := range [][]extraction.Candidate{ex.Metadata.PeriodEnds, ex.Metadata.PeriodStarts} {
		for _, c := range list {
			if d, err := dates.Parse(c.Text); err == nil {
				return d.Year
			}
		}
	}
	for _, a := range ex.Accounts {
		for _, r := range a.Rows {
			if d, err := dates.Parse(r.DateText); err == nil {
				return d.Year
			}
		}
	}
	return 0
}

// periodCandidates keeps only the most trusted rank that has at least one
// parseable bound, pairing starts and ends in the order they were found.
func periodCandidates(meta extraction.Metadata, dates fields.DateParser) []statement.PeriodCandidate {
	best := -1
	for _, list := range [][]extraction.Candidate{meta.PeriodStarts, meta.PeriodEnds} {
		for _, c := range list {
			if _, err := dates.Parse(c.Text); err != nil {
				continue
			}
			if best < 0 || c.Rank < best {
				best = c.Rank
			}
		}
	}
	if best < 0 {
		return nil
	}

	starts := parsedAtRank(meta.PeriodStarts, best, dates)
	ends := parsedAtRank(meta.PeriodEnds, best, dates)
	n := max(len(starts), len(ends))
	out := make([]statement.PeriodCandidate, n)
	for i := range out {
		if i < len(starts) {
			out[i].Start = starts[i]
		}
		if i < len(ends) {
			out[i].End = ends[i]
		}
	}
	return out
}

func parsedAtRank(list []extraction.Candidate, rank int, dates fields.DateParser) []civil.Date {
	var out []civil.Date
	for _, c := range list {
		if c.Rank != rank {
			continue
		}
		if d, err := dates.Parse(c.Text); err == nil {
			out = append(out, d)
		}
	}
	return out
}

func droppedAccount(index int, c extraction.AccountCandidate, err error) DroppedAccount {
	d := DroppedAccount{
		Index:         index,
		AccountNumber: strings.TrimSpace(c.AccountNumberText),
		Kind:          "ERROR",
		Reason:        err.Error(),
	}
	var ae *assemble.AccountError
	if errors.As(err, &ae) {
		d.Kind = string(ae.Kind)
		d.Reason = ae.Message
	}
	return d
}
