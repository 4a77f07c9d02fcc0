package types

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecimal(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want string
	}{
		{"point", "1234.56", "1234.56"},
		{"german", "1.234,56", "1234.56"},
		{"comma only", "12,5", "12.5"},
		{"integer text", " 42 ", "42"},
		{"float cell", 1500.25, "1500.25"},
		{"int cell", 7, "7"},
		{"float cell keeps precision", 0.299, "0.299"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decimal(tt.cell)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), got.String())
		})
	}
}

func TestDecimalRejects(t *testing.T) {
	tests := []struct {
		name   string
		cell   Cell
		reason string
	}{
		{"thousands dot without comma", "1.234", "more than two decimal places"},
		{"three fraction digits", "0,299", "more than two decimal places"},
		{"empty", "  ", "empty"},
		{"nil", nil, "empty"},
		{"word", "zwölf", "not a number"},
		{"two thousands dots", "1.234.567", "not a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decimal(tt.cell)
			var amountErr *InvalidAmountError
			require.True(t, errors.As(err, &amountErr))
			assert.Equal(t, tt.reason, amountErr.Reason)
		})
	}
}
