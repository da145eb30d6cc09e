package fields

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y, m, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}

func TestDateParser_Parse(t *testing.T) {
	tests := []struct {
		name   string
		parser DateParser
		input  string
		want   civil.Date
		kind   Kind
	}{
		{"iso", DateParser{}, "2024-02-01", date(2024, 2, 1), ""},
		{"iso with time", DateParser{}, "2024-02-01T10:00:00Z", date(2024, 2, 1), ""},
		{"iso slashes", DateParser{}, "2024/12/31", date(2024, 12, 31), ""},
		{"day-first only valid reading", DateParser{}, "15/03/2024", date(2024, 3, 15), ""},
		{"month-first only valid reading", DateParser{}, "03/15/2024", date(2024, 3, 15), ""},
		{"ambiguous without order", DateParser{}, "01/02/2024", civil.Date{}, KindAmbiguousDate},
		{"ambiguous resolved day-first", DateParser{Order: OrderDayFirst}, "01/02/2024", date(2024, 2, 1), ""},
		{"ambiguous resolved month-first", DateParser{Order: OrderMonthFirst}, "01/02/2024", date(2024, 1, 2), ""},
		{"same day both readings", DateParser{}, "05/05/2024", date(2024, 5, 5), ""},
		{"two digit year", DateParser{Order: OrderDayFirst}, "31.01.24", date(2024, 1, 31), ""},
		{"dashes", DateParser{Order: OrderDayFirst}, "31-01-2024", date(2024, 1, 31), ""},
		{"day month name", DateParser{}, "2 Jan 2024", date(2024, 1, 2), ""},
		{"day month name dashes", DateParser{}, "02-Jan-24", date(2024, 1, 2), ""},
		{"ordinal", DateParser{}, "1st March 2024", date(2024, 3, 1), ""},
		{"month name day", DateParser{}, "January 5, 2024", date(2024, 1, 5), ""},
		{"abbreviated with dot", DateParser{}, "Sept. 9 2024", date(2024, 9, 9), ""},
		{"no year uses default", DateParser{DefaultYear: 2023}, "05 Jan", date(2023, 1, 5), ""},
		{"no year without default", DateParser{}, "05 Jan", civil.Date{}, KindAmbiguousDate},
		{"numeric no year", DateParser{Order: OrderDayFirst, DefaultYear: 2024}, "05/01", date(2024, 1, 5), ""},
		{"month year is not a day", DateParser{}, "January 2024", civil.Date{}, KindUnparseableDate},
		{"empty", DateParser{}, "   ", civil.Date{}, KindEmptyField},
		{"garbage", DateParser{}, "Deposit", civil.Date{}, KindUnparseableDate},
		{"impossible date", DateParser{}, "31/02/2024", civil.Date{}, KindUnparseableDate},
		{"impossible iso", DateParser{}, "2024-02-30", civil.Date{}, KindUnparseableDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parser.Parse(tt.input)
			if tt.kind != "" {
				require.Error(t, err)
				assert.True(t, IsKind(err, tt.kind), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProbeDateOrder(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  DateOrder
	}{
		{"day-first evidence", []string{"01/02/2024", "15/02/2024"}, OrderDayFirst},
		{"month-first evidence", []string{"01/02/2024", "02/15/2024"}, OrderMonthFirst},
		{"no evidence", []string{"01/02/2024", "2024-02-15", "Jan 3"}, OrderUnknown},
		{"conflict", []string{"13/01/2024", "01/13/2024"}, OrderUnknown},
		{"empty", nil, OrderUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProbeDateOrder(tt.texts))
		})
	}
}

func TestParseDateOrder(t *testing.T) {
	o, ok := ParseDateOrder("Day-First")
	assert.True(t, ok)
	assert.Equal(t, OrderDayFirst, o)

	o, ok = ParseDateOrder("")
	assert.True(t, ok)
	assert.Equal(t, OrderUnknown, o)

	_, ok = ParseDateOrder("sideways")
	assert.False(t, ok)
}
