package pdftext

import (
	"strings"
	"unicode"
)

// statementWords appear in virtually every bank statement.
var statementWords = []string{
	"bank", "account", "balance", "date", "payment", "statement",
	"total", "amount", "credit", "debit", "transaction", "transfer",
	"opening", "closing", "period", "paid", "deposit", "withdrawal",
}

// IsReadable reports whether extracted pages look like a real statement
// text layer: enough text, mostly printable, and at least one word that
// statements always contain.
func IsReadable(pages []string) bool {
	if textLen(pages) <= 50 {
		return false
	}
	if Quality(pages) <= 0.6 {
		return false
	}
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, w := range statementWords {
		if strings.Contains(combined, w) {
			return true
		}
	}
	return false
}

// Quality is the share of characters that are ordinary letters, digits,
// whitespace or statement punctuation. Identity-encoded fonts produce
// text that fails this check.
func Quality(pages []string) float64 {
	total, good := 0, 0
	for _, page := range pages {
		for _, r := range page {
			total++
			switch {
			case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)),
				unicode.IsSpace(r),
				strings.ContainsRune(".,-/:;()'\"£$€¥%&@#!?+=*", r):
				good++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(good) / float64(total)
}

func textLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}
