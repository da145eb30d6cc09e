package extraction

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/dvloznov/statement-normalizer/internal/domain"
)

// DefaultKnownBanks is matched against page text when no list is configured.
var DefaultKnownBanks = []string{
	"Maybank", "CIMB", "Public Bank", "RHB", "Hong Leong", "AmBank", "Bank Islam",
	"OCBC", "UOB", "DBS", "Standard Chartered", "HSBC", "Barclays", "Lloyds",
	"NatWest", "Santander", "Halifax", "Nationwide", "Metro Bank", "Monzo",
	"Starling", "Revolut", "Chase", "Bank of America", "Wells Fargo", "Citibank",
}

var (
	leadingDate = regexp.MustCompile(`(?i)^(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}(?:/\d{2,4})?|\d{1,2}[.\-]\d{1,2}[.\-]\d{2,4}|\d{1,2}(?:st|nd|rd|th)?[\s\-](?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?(?:[\s\-]\d{4})?)(?:\s+(.*))?$`)

	trailingAmount = regexp.MustCompile(`(?i)(?:^|\s)(\(?[-+]?(?:[£$€¥₹]|RM\s?)?\d{1,3}(?:[,.']?\d{3})*[.,]\d{2}\)?-?(?:\s?(?:CR|DR))?)\s*$`)

	periodLine  = regexp.MustCompile(`(?i)^(?:statement\s+)?(?:period|from|dated?\s+from)\b\s*:?\s*(.+)$`)
	periodSplit = regexp.MustCompile(`(?i)^\s*(.+?)\s+(?:to|until|through|-|–|—)\s+(.+?)\s*$`)

	accountNumberLine = regexp.MustCompile(`(?i)\b(?:account\s*(?:number|no\.?|#)|acc(?:oun)?t\.?\s*no\.?|a/c\s*(?:no\.?)?)\s*[:#]?\s*([*xX]*\d[\d\-*]*(?:\s\d[\d\-*]*)*)`)
	accountNameLine   = regexp.MustCompile(`(?i)\baccount\s*(?:name|holder|type)\s*[:\-]?\s*(.+?)\s*$`)
	currencyLine      = regexp.MustCompile(`\b(?i:currency)\s*:?\s*([A-Z]{3})\b`)
	sortCodePrefix    = regexp.MustCompile(`(?i)^sort\s*code\b`)

	ocrSemicolon    = regexp.MustCompile(`(\d);(\s*)(\d)`)
	ocrColon        = regexp.MustCompile(`(\d):(\d)`)
	ocrTrailing     = regexp.MustCompile(`(\d):(\s|$)`)
	ocrNotAvailable = regexp.MustCompile(`\s+NA\b`)
)

var (
	openingKeywords = []string{
		"opening balance", "balance brought forward", "brought forward", "balance b/f",
		"start balance", "beginning balance", "previous balance",
	}
	closingKeywords = []string{
		"closing balance", "balance carried forward", "carried forward", "balance c/f",
		"end balance", "ending balance", "new balance",
	}
	summaryKeywords = []string{
		"total paid in", "total paid out", "total payments", "total receipts",
		"total debits", "total credits", "continued",
	}
)

// sanitizeOCRAmounts repairs separators that OCR commonly misreads inside
// numbers, e.g. "19,720; 15" and "1,234:56".
func sanitizeOCRAmounts(line string) string {
	line = ocrSemicolon.ReplaceAllString(line, "$1.$3")
	line = ocrColon.ReplaceAllString(line, "$1.$2")
	line = ocrTrailing.ReplaceAllString(line, "$1$2")
	return ocrNotAvailable.ReplaceAllString(line, "")
}

// splitPeriod splits "A to B" or "A - B" into its two dates. Both sides
// must contain a digit.
func splitPeriod(s string) (string, string, bool) {
	m := periodSplit.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	start, end := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	if !strings.ContainsAny(start, "0123456789") || !strings.ContainsAny(end, "0123456789") {
		return "", "", false
	}
	return start, end, true
}

// splitTrailingAmounts peels up to three amount columns off the end of a
// line and returns the remaining text.
func splitTrailingAmounts(s string) (string, []string) {
	rest := strings.TrimSpace(s)
	var amounts []string
	for len(amounts) < 3 {
		loc := trailingAmount.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		amounts = append([]string{rest[loc[2]:loc[3]]}, amounts...)
		rest = strings.TrimSpace(rest[:loc[0]])
	}
	return rest, amounts
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isHeaderLine(lower string) bool {
	return strings.Contains(lower, "date") &&
		(strings.Contains(lower, "description") || strings.Contains(lower, "details") ||
			strings.Contains(lower, "balance") || strings.Contains(lower, "money out"))
}

func isPageFooter(lower string) bool {
	return strings.HasPrefix(lower, "page ") || containsAny(lower, summaryKeywords)
}

// readable reports whether page text looks like real text rather than
// binary garbage from a broken text layer.
func readable(text string) bool {
	total, good, alnum := 0, 0, 0
	for _, r := range text {
		total++
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			good++
			alnum++
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			good++
		}
	}
	return alnum > 0 && float64(good)/float64(total) >= 0.8
}

// accountHeaderPrefix reports whether the text before an account number
// label belongs to a header line rather than a transaction description.
func accountHeaderPrefix(prefix string) bool {
	prefix = strings.TrimSpace(prefix)
	return prefix == "" || accountNameLine.MatchString(prefix) || sortCodePrefix.MatchString(prefix)
}

func findKnownBank(line string, banks []string) string {
	lower := strings.ToLower(line)
	for _, b := range banks {
		if strings.Contains(lower, strings.ToLower(b)) {
			return b
		}
	}
	return ""
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// pageScanner holds the state carried across lines and pages.
type pageScanner struct {
	banks    []string
	lines    *lineCounter
	accounts []AccountCandidate
	meta     Metadata

	date       string
	pending    string
	lastWasRow bool
	bankFound  bool
}

func (s *pageScanner) current() *AccountCandidate {
	if len(s.accounts) == 0 {
		s.accounts = append(s.accounts, AccountCandidate{Source: SourcePages})
	}
	return &s.accounts[len(s.accounts)-1]
}

func (s *pageScanner) startAccount(number string) {
	cur := s.current()
	switch {
	case cur.AccountNumberText == number:
		return
	case cur.AccountNumberText == "" && len(cur.Rows) == 0:
		cur.AccountNumberText = number
		return
	}
	s.accounts = append(s.accounts, AccountCandidate{Source: SourcePages, AccountNumberText: number})
	s.date, s.pending = "", ""
}

func (s *pageScanner) addRow(page int, date, description string, amounts []string) {
	row := domain.CandidateRow{
		DateText:        date,
		DescriptionText: collapseSpaces(description),
		SourceLineIndex: s.lines.next(),
		Page:            page,
	}
	switch len(amounts) {
	case 1:
		row.AmountText = amounts[0]
	case 2:
		row.AmountText, row.BalanceText = amounts[0], amounts[1]
	case 3:
		row.DebitText, row.CreditText, row.BalanceText = amounts[0], amounts[1], amounts[2]
	}
	cur := s.current()
	cur.Rows = append(cur.Rows, row)
	s.lastWasRow = true
}

func (s *pageScanner) scanLine(page int, raw string) {
	line := strings.ReplaceAll(raw, "→", "  ")
	line = strings.ReplaceAll(line, "|", "  ")
	line = strings.TrimSpace(sanitizeOCRAmounts(line))
	if line == "" {
		return
	}
	lower := strings.ToLower(line)

	if !s.bankFound {
		if bank := findKnownBank(line, s.banks); bank != "" {
			s.meta.BankNames = append(s.meta.BankNames, Candidate{Text: bank, Rank: rankPages})
			s.bankFound = true
		}
	}

	if m := periodLine.FindStringSubmatch(line); m != nil {
		if start, end, ok := splitPeriod(m[1]); ok {
			s.meta.PeriodStarts = append(s.meta.PeriodStarts, Candidate{Text: start, Rank: rankPages})
			s.meta.PeriodEnds = append(s.meta.PeriodEnds, Candidate{Text: end, Rank: rankPages})
			s.lastWasRow = false
			return
		}
	}

	header := false
	if m := accountNumberLine.FindStringSubmatchIndex(line); m != nil && accountHeaderPrefix(line[:m[0]]) {
		s.startAccount(strings.TrimSpace(line[m[2]:m[3]]))
		header = true
		if n := accountNameLine.FindStringSubmatch(line[:m[0]]); n != nil {
			s.current().AccountNameText = n[1]
		}
	} else if n := accountNameLine.FindStringSubmatch(line); n != nil {
		s.current().AccountNameText = n[1]
		header = true
	}
	if c := currencyLine.FindStringSubmatch(line); c != nil {
		s.current().CurrencyText = c[1]
		header = true
	}
	if header {
		s.lastWasRow = false
		return
	}

	if containsAny(lower, openingKeywords) {
		if _, amounts := splitTrailingAmounts(line); len(amounts) > 0 && s.current().OpeningBalanceText == "" {
			s.current().OpeningBalanceText = amounts[len(amounts)-1]
		}
		if m := leadingDate.FindStringSubmatch(line); m != nil {
			s.date = m[1]
		}
		s.lastWasRow = false
		return
	}
	if containsAny(lower, closingKeywords) {
		if _, amounts := splitTrailingAmounts(line); len(amounts) > 0 {
			s.current().ClosingBalanceText = amounts[len(amounts)-1]
		}
		s.lastWasRow = false
		return
	}
	if isHeaderLine(lower) || isPageFooter(lower) {
		s.lastWasRow = false
		return
	}

	if m := leadingDate.FindStringSubmatch(line); m != nil {
		s.date = m[1]
		rest, amounts := splitTrailingAmounts(m[2])
		if len(amounts) == 0 {
			// Date and description on one line, amounts on the next.
			s.pending = rest
			s.lastWasRow = false
			return
		}
		s.pending = ""
		s.addRow(page, s.date, rest, amounts)
		return
	}

	rest, amounts := splitTrailingAmounts(line)
	switch {
	case len(amounts) > 0 && s.date != "":
		description := strings.TrimSpace(s.pending + " " + rest)
		s.pending = ""
		s.addRow(page, s.date, description, amounts)
	case len(amounts) == 0 && s.pending != "":
		s.pending += " " + line
	case len(amounts) == 0 && s.lastWasRow:
		cur := s.current()
		last := &cur.Rows[len(cur.Rows)-1]
		last.DescriptionText = collapseSpaces(last.DescriptionText + " " + line)
	default:
		s.lastWasRow = false
	}
}

func adaptPages(pages []string, banks []string, lines *lineCounter, report *FieldReport) partial {
	s := &pageScanner{banks: banks, lines: lines}
	for i, text := range pages {
		path := fmt.Sprintf("pages[%d]", i)
		if strings.TrimSpace(text) == "" {
			report.fail(path, "empty page")
			continue
		}
		if !readable(text) {
			report.fail(path, "unreadable text")
			continue
		}
		before := 0
		for _, a := range s.accounts {
			before += len(a.Rows)
		}
		for _, line := range strings.Split(text, "\n") {
			s.scanLine(i+1, line)
		}
		after := 0
		for _, a := range s.accounts {
			after += len(a.Rows)
		}
		if after == before {
			report.ok(path, 0.5)
		} else {
			report.ok(path, 1)
		}
		s.lastWasRow = false
	}

	p := partial{meta: s.meta}
	for _, a := range s.accounts {
		if !a.empty() {
			p.accounts = append(p.accounts, a)
		}
	}
	return p
}
