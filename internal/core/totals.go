package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// moneyPlaces is the number of decimal places amounts are rounded to.
const moneyPlaces = 2

// roundMoney rounds half-to-even to two decimal places.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(moneyPlaces)
}

// Storage limits: rates and percentages keep 4 and 2 decimals, money columns
// hold up to 16 integer digits. Inputs beyond them would be rounded or rejected
// by the database after totals were computed from the unrounded values.
const (
	quantityPlaces = 4
	percentPlaces  = 2
)

var maxMoney = decimal.New(1, 16)

// maxScale is the decimal digits a quantity or rate may carry before the point.
var maxScale = decimal.New(1, 14)

func hasMorePlaces(v decimal.Decimal, places int32) bool {
	return !v.Equal(v.Truncate(places))
}

func validatePercent(field string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThan(hundred) {
		return newValidationError(field, v.String(), "must be between 0 and 100")
	}
	if hasMorePlaces(v, percentPlaces) {
		return newValidationError(field, v.String(), "must have at most 2 decimal places")
	}
	return nil
}

func validateLineItem(item LineItemInput) error {
	if !item.Quantity.IsPositive() {
		return newValidationError("quantity", item.Quantity.String(), "must be greater than 0")
	}
	if item.Rate.IsNegative() {
		return newValidationError("rate", item.Rate.String(), "cannot be negative")
	}
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{{"quantity", item.Quantity}, {"rate", item.Rate}} {
		if hasMorePlaces(f.v, quantityPlaces) {
			return newValidationError(f.name, f.v.String(), "must have at most 4 decimal places")
		}
		if f.v.GreaterThanOrEqual(maxScale) {
			return newValidationError(f.name, f.v.String(), "is too large")
		}
	}
	if err := validatePercent("item_tax_rate", item.ItemTaxRate); err != nil {
		return err
	}
	gross := item.Quantity.Mul(item.Rate).Mul(decimal.NewFromInt(1).Add(item.ItemTaxRate.Div(hundred)))
	if gross.GreaterThanOrEqual(maxMoney) {
		return newValidationError("rate", item.Rate.String(), "line amount is too large")
	}
	return nil
}

// LineAmount returns quantity * rate * (1 + itemTaxRate/100), rounded half-even
// to 2 dp.
func LineAmount(item LineItemInput) (decimal.Decimal, error) {
	if err := validateLineItem(item); err != nil {
		return decimal.Zero, err
	}
	factor := decimal.NewFromInt(1).Add(item.ItemTaxRate.Div(hundred))
	return roundMoney(item.Quantity.Mul(item.Rate).Mul(factor)), nil
}

// ComputeTotals derives the invoice totals from its items, the global tax rate
// and the discount rate (both percentages). Each component is rounded before
// Total is assembled, so Subtotal + Tax - DiscountAmount == Total exactly, and
// the discount is clamped so Total is never negative.
func ComputeTotals(items []LineItemInput, globalTaxRate, discountRate decimal.Decimal) (Totals, error) {
	if err := validatePercent("global_tax_rate", globalTaxRate); err != nil {
		return Totals{}, err
	}
	if err := validatePercent("discount_rate", discountRate); err != nil {
		return Totals{}, err
	}

	subtotal := decimal.Zero
	itemTax := decimal.Zero
	for i, item := range items {
		if err := validateLineItem(item); err != nil {
			ve := err.(*ValidationError)
			ve.Field = fmt.Sprintf("items[%d].%s", i, ve.Field)
			return Totals{}, ve
		}
		base := item.Quantity.Mul(item.Rate)
		subtotal = subtotal.Add(base)
		itemTax = itemTax.Add(base.Mul(item.ItemTaxRate).Div(hundred))
	}

	t := Totals{
		Subtotal:  roundMoney(subtotal),
		ItemTax:   roundMoney(itemTax),
		GlobalTax: roundMoney(subtotal.Mul(globalTaxRate).Div(hundred)),
	}
	t.Tax = t.ItemTax.Add(t.GlobalTax)

	gross := t.Subtotal.Add(t.Tax)
	if gross.GreaterThanOrEqual(maxMoney) {
		return Totals{}, newValidationError("items", gross.String(), "invoice total is too large")
	}
	t.DiscountAmount = decimal.Min(roundMoney(subtotal.Mul(discountRate).Div(hundred)), gross)
	t.Total = gross.Sub(t.DiscountAmount)
	return t, nil
}

// buildLineItems validates inputs and returns numbered line items with amounts.
func buildLineItems(inputs []LineItemInput) ([]LineItem, error) {
	items := make([]LineItem, 0, len(inputs))
	for i, in := range inputs {
		if in.Description == "" {
			return nil, newValidationError(fmt.Sprintf("items[%d].description", i), "", "is required")
		}
		amount, err := LineAmount(in)
		if err != nil {
			ve := err.(*ValidationError)
			ve.Field = fmt.Sprintf("items[%d].%s", i, ve.Field)
			return nil, ve
		}
		items = append(items, LineItem{
			LineNumber:  i + 1,
			Description: in.Description,
			Quantity:    in.Quantity,
			Rate:        in.Rate,
			ItemTaxRate: in.ItemTaxRate,
			Amount:      amount,
		})
	}
	return items, nil
}

