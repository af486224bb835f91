package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		amount   int64
		currency string
		want     string
	}{
		{10000, "EUR", "100.00 EUR"},
		{1, "eur", "0.01 EUR"},
		{0, "USD", "0.00 USD"},
		{1500, "JPY", "1500 JPY"},
		{250, "", "2.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.amount, tt.currency))
	}
}

func TestFromMinor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "123.45", FromMinor(12345, "EUR").String())
}
