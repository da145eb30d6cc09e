package domain

// CandidateRow is one unvalidated transaction guess produced by the
// extraction adapter. Every field is raw text and may be empty or garbage.
//
// AmountText carries a single signed-or-unsigned amount whose column is
// unknown. DebitText and CreditText are set instead when the source kept
// separate paid-out / paid-in columns.
type CandidateRow struct {
	DateText        string
	DescriptionText string
	AmountText      string
	DebitText       string
	CreditText      string
	BalanceText     string

	// SourceLineIndex is the row's position in the extracted source, used
	// as the stable tie-break when sorting by date.
	SourceLineIndex int
	Page            int
}

// HasAmount reports whether any amount column carries text.
func (r CandidateRow) HasAmount() bool {
	return r.AmountText != "" || r.DebitText != "" || r.CreditText != ""
}
