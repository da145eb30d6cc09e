// Package extraction adapts raw OCR/model output into candidate rows
// grouped by account, plus bank-level metadata candidates. Anything it
// cannot read becomes a report entry rather than an error.
package extraction

import (
	"fmt"
	"strings"

	"github.com/dvloznov/statement-normalizer/internal/domain"
)

// Sources, also used as ranks for metadata candidates.
const (
	SourceStructured = "structured"
	SourcePairs      = "pairs"
	SourcePages      = "pages"
	SourceNone       = "none"
)

const (
	rankStructured = 0
	rankPairs      = 1
	rankPages      = 2
)

// LabelValue is one key/value guess produced by the model or OCR layout
// analysis, e.g. {"Opening Balance", "1,000.00"}.
type LabelValue struct {
	Label string
	Value string
	Page  int
}

// ModelOutput is the untrusted output of the external collaborators. Any
// combination of the three parts may be present.
type ModelOutput struct {
	// Structured is decoded model JSON: an object, or an array of
	// transactions.
	Structured any
	Pairs      []LabelValue
	Pages      []string
}

// Empty reports whether there is nothing to adapt. Blank pages count as
// nothing.
func (o ModelOutput) Empty() bool {
	if o.Structured != nil || len(o.Pairs) > 0 {
		return false
	}
	for _, p := range o.Pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// Candidate is one metadata guess. Lower Rank is more trusted.
type Candidate struct {
	Text string
	Rank int
}

// Metadata holds bank-level candidates, possibly from different pages.
type Metadata struct {
	BankNames    []Candidate
	PeriodStarts []Candidate
	PeriodEnds   []Candidate
}

func (m *Metadata) merge(other Metadata) {
	m.BankNames = append(m.BankNames, other.BankNames...)
	m.PeriodStarts = append(m.PeriodStarts, other.PeriodStarts...)
	m.PeriodEnds = append(m.PeriodEnds, other.PeriodEnds...)
}

// AccountCandidate is everything extracted for one detected account.
type AccountCandidate struct {
	AccountNumberText  string
	AccountNameText    string
	CurrencyText       string
	OpeningBalanceText string
	ClosingBalanceText string
	Rows               []domain.CandidateRow
	Source             string
}

func (a AccountCandidate) empty() bool {
	return a.AccountNumberText == "" && a.AccountNameText == "" && a.OpeningBalanceText == "" &&
		a.ClosingBalanceText == "" && len(a.Rows) == 0
}

// fillFrom copies header fields that a is missing from b.
func (a *AccountCandidate) fillFrom(b AccountCandidate) {
	if a.AccountNumberText == "" {
		a.AccountNumberText = b.AccountNumberText
	}
	if a.AccountNameText == "" {
		a.AccountNameText = b.AccountNameText
	}
	if a.CurrencyText == "" {
		a.CurrencyText = b.CurrencyText
	}
	if a.OpeningBalanceText == "" {
		a.OpeningBalanceText = b.OpeningBalanceText
	}
	if a.ClosingBalanceText == "" {
		a.ClosingBalanceText = b.ClosingBalanceText
	}
}

// FieldStatus is the adapter's confidence in one extracted field.
type FieldStatus struct {
	Path       string  `json:"path"`
	Confidence float64 `json:"confidence"`
	Failure    string  `json:"failure,omitempty"`
}

// FieldReport lists per-field confidence and failures.
type FieldReport struct {
	Fields []FieldStatus `json:"fields"`
}

func (r *FieldReport) ok(path string, confidence float64) {
	r.Fields = append(r.Fields, FieldStatus{Path: path, Confidence: confidence})
}

func (r *FieldReport) fail(path, format string, args ...any) {
	r.Fields = append(r.Fields, FieldStatus{Path: path, Failure: fmt.Sprintf(format, args...)})
}

// Failures returns only the failed fields.
func (r FieldReport) Failures() []FieldStatus {
	var out []FieldStatus
	for _, f := range r.Fields {
		if f.Failure != "" {
			out = append(out, f)
		}
	}
	return out
}

// Extraction is the adapter's output.
type Extraction struct {
	Accounts []AccountCandidate
	Metadata Metadata
	Report   FieldReport

	// Method names the source the accounts came from.
	Method string
}

// Rows returns the total number of candidate rows.
func (e Extraction) Rows() int {
	n := 0
	for _, a := range e.Accounts {
		n += len(a.Rows)
	}
	return n
}

// Adapter turns model output into an Extraction. Tests substitute fakes.
type Adapter interface {
	Adapt(out ModelOutput) Extraction
}

// Options configures the default adapter.
type Options struct {
	// KnownBanks are matched against page text to find the bank name.
	KnownBanks []string
}

// DefaultAdapter reads all three kinds of model output.
type DefaultAdapter struct {
	knownBanks []string
}

// New creates the default adapter.
func New(opts Options) *DefaultAdapter {
	banks := opts.KnownBanks
	if len(banks) == 0 {
		banks = DefaultKnownBanks
	}
	return &DefaultAdapter{knownBanks: banks}
}

// Adapt prefers structured accounts, falls back to page text, and uses
// label/value pairs to fill account headers and metadata.
func (a *DefaultAdapter) Adapt(out ModelOutput) Extraction {
	var ex Extraction
	lines := &lineCounter{}

	structured := adaptStructured(out.Structured, lines, &ex.Report)
	pairs := adaptPairs(out.Pairs, &ex.Report)
	ex.Metadata.merge(structured.meta)
	ex.Metadata.merge(pairs.meta)

	switch {
	case hasRows(structured.accounts):
		ex.Accounts, ex.Method = structured.accounts, SourceStructured
	default:
		pages := adaptPages(out.Pages, a.knownBanks, lines, &ex.Report)
		ex.Metadata.merge(pages.meta)
		switch {
		case hasRows(pages.accounts):
			ex.Accounts, ex.Method = pages.accounts, SourcePages
		case len(structured.accounts) > 0:
			ex.Accounts, ex.Method = structured.accounts, SourceStructured
		case len(pairs.accounts) > 0:
			ex.Accounts, ex.Method = pairs.accounts, SourcePairs
		default:
			ex.Accounts, ex.Method = pages.accounts, SourcePages
		}
	}
	if len(ex.Accounts) == 0 {
		ex.Method = SourceNone
	}

	if ex.Method != SourcePairs {
		fillHeaders(ex.Accounts, pairs.accounts)
	}
	return ex
}

// fillHeaders completes account headers from label/value pairs, matching
// by account number first and by position when the counts agree.
func fillHeaders(accounts, headers []AccountCandidate) {
	used := make([]bool, len(headers))
	for i := range accounts {
		for j, h := range headers {
			if !used[j] && h.AccountNumberText != "" && h.AccountNumberText == accounts[i].AccountNumberText {
				accounts[i].fillFrom(h)
				used[j] = true
				break
			}
		}
	}
	if len(accounts) == len(headers) {
		for i := range accounts {
			if !used[i] {
				accounts[i].fillFrom(headers[i])
			}
		}
	}
}

func hasRows(accounts []AccountCandidate) bool {
	for _, a := range accounts {
		if len(a.Rows) > 0 {
			return true
		}
	}
	return false
}

// lineCounter hands out source line indexes unique within one extraction.
type lineCounter struct{ n int }

func (c *lineCounter) next() int {
	i := c.n
	c.n++
	return i
}

type partial struct {
	accounts []AccountCandidate
	meta     Metadata
}
