package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAccountNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
		kind  Kind
	}{
		{"12345678", "12345678", ""},
		{"1234-5678", "12345678", ""},
		{"1234 5678", "12345678", ""},
		{"Account No. 5140 1234 5678", "514012345678", ""},
		{"A/C: 00-11-22", "001122", ""},
		{"****1234", "****1234", ""},
		{"gb29 nwbk 6016 1331 9268 19", "GB29NWBK60161331926819", ""},
		{"", "", KindEmptyField},
		{"null", "", KindEmptyField},
		{"Unknown", "", KindEmptyField},
		{"Account Number:", "", KindEmptyField},
		{"SAVINGS", "", KindUnparseableAccount},
		{"12#34", "", KindUnparseableAccount},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAccountNumber(tt.input)
			if tt.kind != "" {
				assert.Equal(t, tt.kind, KindOf(err), "got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"GBP", "GBP", true},
		{"gbp", "GBP", true},
		{"1,000.00 EUR", "EUR", true},
		{"RM", "MYR", true},
		{"RM 12.00", "MYR", true},
		{"£5", "GBP", true},
		{"US$ 10", "USD", true},
		{"$10", "USD", true},
		{"", "", false},
		{"points", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseCurrency(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
