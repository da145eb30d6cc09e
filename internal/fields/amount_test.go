package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
		kind  Kind
	}{
		{"100", "100", ""},
		{"1,234.56", "1234.56", ""},
		{"1.234,56", "1234.56", ""},
		{"1 234,56", "1234.56", ""},
		{"1,234", "1234", ""},
		{"12,5", "12.5", ""},
		{"1,234,567.89", "1234567.89", ""},
		{"1.234.567", "1234567", ""},
		{"$1,000.00", "1000", ""},
		{"RM 2,500.10", "2500.1", ""},
		{"£12.00", "12", ""},
		{"12.00 GBP", "12", ""},
		{"(45.10)", "-45.1", ""},
		{"($45.10)", "-45.1", ""},
		{"-5.00", "-5", ""},
		{"-$5.00", "-5", ""},
		{"5.00-", "-5", ""},
		{"5.00 DR", "-5", ""},
		{"5.00Cr", "5", ""},
		{"+7.25", "7.25", ""},
		{"0.00", "0", ""},
		{"19,720; 15", "19720.15", ""},
		{"1,234:56", "1234.56", ""},
		{"1'234.50", "1234.5", ""},
		{"−5.00", "-5", ""},
		{"", "", KindEmptyField},
		{"  ", "", KindEmptyField},
		{"-", "", KindEmptyField},
		{"N/A", "", KindEmptyField},
		{"abc", "", KindUnparseableAmount},
		{"12a34", "", KindUnparseableAmount},
		{"1.2.3,4,5", "", KindUnparseableAmount},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.kind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.kind, KindOf(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
