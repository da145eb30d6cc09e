package fields

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DateOrder says how to read an all-numeric date whose first two fields
// could both be a day or a month.
type DateOrder int

const (
	OrderUnknown DateOrder = iota
	OrderDayFirst
	OrderMonthFirst
)

func (o DateOrder) String() string {
	switch o {
	case OrderDayFirst:
		return "day-first"
	case OrderMonthFirst:
		return "month-first"
	default:
		return "auto"
	}
}

// ParseDateOrder reads the configuration spelling of a DateOrder.
func ParseDateOrder(s string) (DateOrder, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day-first", "dmy", "dd/mm":
		return OrderDayFirst, true
	case "month-first", "mdy", "mm/dd":
		return OrderMonthFirst, true
	case "", "auto":
		return OrderUnknown, true
	}
	return OrderUnknown, false
}

var (
	isoDatePattern     = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})(?:[T ].*)?$`)
	numericDatePattern = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{4}|\d{2})$`)
	numericNoYear      = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})$`)
	dayMonthName       = regexp.MustCompile(`^(\d{1,2})[\s\-/]*([A-Za-z]{3,9})\.?,?(?:[\s\-/]*(\d{4}|\d{2}))?$`)
	monthNameDay       = regexp.MustCompile(`^([A-Za-z]{3,9})\.?[\s\-/]*(\d{1,2})(?:,?[\s\-/]+(\d{4}|\d{2}))?$`)
	ordinalSuffix      = regexp.MustCompile(`(\d)(?:st|nd|rd|th)\b`)
	spaces             = regexp.MustCompile(`\s+`)
)

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// DateParser parses statement dates. Order resolves all-numeric dates that
// are valid both day-first and month-first; DefaultYear completes dates
// printed without a year.
type DateParser struct {
	Order       DateOrder
	DefaultYear int
}

// Parse returns the calendar date written in text.
func (p DateParser) Parse(text string) (civil.Date, error) {
	s := normalizeDate(text)
	if s == "" {
		return civil.Date{}, newError(KindEmptyField, "date", text, "")
	}

	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		if d, ok := makeDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return d, nil
		}
		return civil.Date{}, newError(KindUnparseableDate, "date", text, "invalid calendar date")
	}

	if m := numericDatePattern.FindStringSubmatch(s); m != nil {
		return p.resolveNumeric(text, atoi(m[1]), atoi(m[2]), expandYear(m[3]))
	}

	if m := numericNoYear.FindStringSubmatch(s); m != nil {
		if p.DefaultYear == 0 {
			return civil.Date{}, newError(KindAmbiguousDate, "date", text, "no year")
		}
		return p.resolveNumeric(text, atoi(m[1]), atoi(m[2]), p.DefaultYear)
	}

	if m := dayMonthName.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[strings.ToLower(m[2])]; ok {
			return p.named(text, atoi(m[1]), month, m[3])
		}
	}
	if m := monthNameDay.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[strings.ToLower(m[1])]; ok {
			return p.named(text, atoi(m[2]), month, m[3])
		}
	}

	return civil.Date{}, newError(KindUnparseableDate, "date", text, "no known format")
}

func (p DateParser) named(text string, day int, month time.Month, year string) (civil.Date, error) {
	y := p.DefaultYear
	if year != "" {
		y = expandYear(year)
	}
	if y == 0 {
		return civil.Date{}, newError(KindAmbiguousDate, "date", text, "no year")
	}
	if d, ok := makeDate(y, int(month), day); ok {
		return d, nil
	}
	return civil.Date{}, newError(KindUnparseableDate, "date", text, "invalid calendar date")
}

// resolveNumeric reads a/b as day/month and month/day and keeps whichever
// readings are valid calendar dates.
func (p DateParser) resolveNumeric(text string, a, b, year int) (civil.Date, error) {
	dayFirst, dfOK := makeDate(year, b, a)
	monthFirst, mfOK := makeDate(year, a, b)

	switch {
	case dfOK && mfOK:
		if dayFirst == monthFirst {
			return dayFirst, nil
		}
		switch p.Order {
		case OrderDayFirst:
			return dayFirst, nil
		case OrderMonthFirst:
			return monthFirst, nil
		}
		return civil.Date{}, newError(KindAmbiguousDate, "date", text,
			"could be "+dayFirst.String()+" or "+monthFirst.String())
	case dfOK:
		return dayFirst, nil
	case mfOK:
		return monthFirst, nil
	}
	return civil.Date{}, newError(KindUnparseableDate, "date", text, "invalid calendar date")
}

// ProbeDateOrder looks for dates that are only valid under one reading,
// e.g. 15/03/2024 proves day-first. Conflicting or missing evidence
// yields OrderUnknown.
func ProbeDateOrder(texts []string) DateOrder {
	var dayFirst, monthFirst int
	for _, t := range texts {
		s := normalizeDate(t)
		m := numericDatePattern.FindStringSubmatch(s)
		if m == nil {
			m = numericNoYear.FindStringSubmatch(s)
		}
		if m == nil {
			continue
		}
		a, b := atoi(m[1]), atoi(m[2])
		switch {
		case a > 12 && b <= 12:
			dayFirst++
		case b > 12 && a <= 12:
			monthFirst++
		}
	}
	switch {
	case dayFirst > 0 && monthFirst == 0:
		return OrderDayFirst
	case monthFirst > 0 && dayFirst == 0:
		return OrderMonthFirst
	}
	return OrderUnknown
}

func normalizeDate(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimSuffix(s, ".")
	s = ordinalSuffix.ReplaceAllString(s, "$1")
	return spaces.ReplaceAllString(s, " ")
}

func makeDate(year, month, day int) (civil.Date, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1 {
		return civil.Date{}, false
	}
	d := civil.Date{Year: year, Month: time.Month(month), Day: day}
	return d, d.IsValid()
}

// expandYear maps two-digit years the way time.Parse does: 69-99 are 19xx.
func expandYear(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		if y >= 69 {
			return 1900 + y
		}
		return 2000 + y
	}
	return y
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
