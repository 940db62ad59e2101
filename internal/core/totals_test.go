package core_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-engine/internal/core"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(qty, rate, tax string) core.LineItemInput {
	return core.LineItemInput{Description: "item", Quantity: d(qty), Rate: d(rate), ItemTaxRate: d(tax)}
}

func TestComputeTotals_GlobalTax(t *testing.T) {
	totals, err := core.ComputeTotals([]core.LineItemInput{item("2", "500", "0")}, d("18"), d("0"))
	require.NoError(t, err)

	assert.True(t, totals.Subtotal.Equal(d("1000")), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.Tax.Equal(d("180")), "tax %s", totals.Tax)
	assert.True(t, totals.DiscountAmount.IsZero())
	assert.True(t, totals.Total.Equal(d("1180")), "total %s", totals.Total)
}

func TestComputeTotals_ItemAndGlobalTax(t *testing.T) {
	totals, err := core.ComputeTotals([]core.LineItemInput{item("1", "100", "5")}, d("10"), d("0"))
	require.NoError(t, err)

	assert.True(t, totals.ItemTax.Equal(d("5")))
	assert.True(t, totals.GlobalTax.Equal(d("10")))
	assert.True(t, totals.Tax.Equal(d("15")))
	assert.True(t, totals.Total.Equal(d("115")))
}

func TestComputeTotals_FullDiscountNeverNegative(t *testing.T) {
	tests := []struct {
		name      string
		items     []core.LineItemInput
		globalTax string
		wantTotal string
	}{
		{"no tax", []core.LineItemInput{item("2", "500", "0")}, "0", "0"},
		{"global tax survives discount", []core.LineItemInput{item("2", "500", "0")}, "18", "180"},
		{"item tax survives discount", []core.LineItemInput{item("3", "19.99", "12")}, "0", "7.20"},
		{"empty invoice", nil, "18", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals, err := core.ComputeTotals(tt.items, d(tt.globalTax), d("100"))
			require.NoError(t, err)
			assert.False(t, totals.Total.IsNegative())
			assert.True(t, totals.Total.Equal(d(tt.wantTotal)), "total %s", totals.Total)
		})
	}
}

func TestComputeTotals_IdentityHoldsExactly(t *testing.T) {
	tests := []struct {
		items     []core.LineItemInput
		globalTax string
		discount  string
	}{
		{[]core.LineItemInput{item("3", "33.33", "18")}, "0", "7.5"},
		{[]core.LineItemInput{item("0.333", "10.01", "5"), item("7", "0.015", "12.5")}, "18", "3.33"},
		{[]core.LineItemInput{item("1", "0.005", "0")}, "50", "50"},
		{[]core.LineItemInput{item("12.5", "99.99", "28"), item("1", "1", "0")}, "2.25", "99.99"},
	}
	for _, tt := range tests {
		totals, err := core.ComputeTotals(tt.items, d(tt.globalTax), d(tt.discount))
		require.NoError(t, err)

		assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.Tax).Sub(totals.DiscountAmount)),
			"identity broken: %s + %s - %s != %s", totals.Subtotal, totals.Tax, totals.DiscountAmount, totals.Total)
		assert.True(t, totals.Tax.Equal(totals.ItemTax.Add(totals.GlobalTax)))
		for _, v := range []decimal.Decimal{totals.Subtotal, totals.Tax, totals.DiscountAmount, totals.Total} {
			assert.LessOrEqual(t, -v.Exponent(), int32(2), "value %s has more than 2 dp", v)
		}
	}
}

func TestComputeTotals_RoundsHalfToEven(t *testing.T) {
	totals, err := core.ComputeTotals([]core.LineItemInput{item("1", "0.125", "0")}, d("0"), d("0"))
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.Equal(d("0.12")), "subtotal %s", totals.Subtotal)

	totals, err = core.ComputeTotals([]core.LineItemInput{item("1", "0.135", "0")}, d("0"), d("0"))
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.Equal(d("0.14")), "subtotal %s", totals.Subtotal)
}

func TestComputeTotals_Validation(t *testing.T) {
	tests := []struct {
		name      string
		items     []core.LineItemInput
		globalTax string
		discount  string
		wantField string
	}{
		{"zero quantity", []core.LineItemInput{item("0", "10", "0")}, "0", "0", "items[0].quantity"},
		{"negative rate", []core.LineItemInput{item("1", "10", "0"), item("1", "-1", "0")}, "0", "0", "items[1].rate"},
		{"item tax above 100", []core.LineItemInput{item("1", "10", "100.01")}, "0", "0", "items[0].item_tax_rate"},
		{"negative global tax", nil, "-1", "0", "global_tax_rate"},
		{"discount above 100", nil, "0", "101", "discount_rate"},
		{"item tax beyond 2 dp", []core.LineItemInput{item("1", "100", "18.005")}, "0", "0", "items[0].item_tax_rate"},
		{"global tax beyond 2 dp", nil, "12.345", "0", "global_tax_rate"},
		{"discount beyond 2 dp", nil, "0", "5.001", "discount_rate"},
		{"quantity beyond 4 dp", []core.LineItemInput{item("1.00001", "10", "0")}, "0", "0", "items[0].quantity"},
		{"rate beyond 4 dp", []core.LineItemInput{item("1", "0.00005", "0")}, "0", "0", "items[0].rate"},
		{"rate too large", []core.LineItemInput{item("1", "100000000000000", "0")}, "0", "0", "items[0].rate"},
		{"line amount too large", []core.LineItemInput{item("10000", "9999999999999", "0")}, "0", "0", "items[0].rate"},
		{"total too large", []core.LineItemInput{item("1000", "9000000000000", "0"), item("1000", "9000000000000", "0")}, "0", "0", "items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := core.ComputeTotals(tt.items, d(tt.globalTax), d(tt.discount))
			var ve *core.ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestLineAmount(t *testing.T) {
	amount, err := core.LineAmount(item("3", "33.33", "18"))
	require.NoError(t, err)
	assert.True(t, amount.Equal(d("117.99")), "amount %s", amount)

	_, err = core.LineAmount(item("-1", "10", "0"))
	var ve *core.ValidationError
	assert.ErrorAs(t, err, &ve)
}
