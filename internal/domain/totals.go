package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Totals are the derived money fields of a document.
type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discountAmount"`
	TaxAmount      float64 `json:"taxAmount"`
	Total          float64 `json:"total"`
}

// ItemAmount returns quantity × rate.
func ItemAmount(quantity, rate float64) float64 {
	return decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(rate)).InexactFloat64()
}

// CalculateTotals derives subtotal, discount, tax and total from line items.
// Discount is applied before tax. No rounding is performed.
func CalculateTotals(items []LineItem, taxRate, discount float64) Totals {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(decimal.NewFromFloat(it.Quantity).Mul(decimal.NewFromFloat(it.Rate)))
	}
	discountAmount := subtotal.Mul(decimal.NewFromFloat(discount)).Div(hundred)
	taxAmount := subtotal.Sub(discountAmount).Mul(decimal.NewFromFloat(taxRate)).Div(hundred)
	total := subtotal.Sub(discountAmount).Add(taxAmount)

	return Totals{
		Subtotal:       subtotal.InexactFloat64(),
		DiscountAmount: discountAmount.InexactFloat64(),
		TaxAmount:      taxAmount.InexactFloat64(),
		Total:          total.InexactFloat64(),
	}
}

func effective(enabled bool, v float64) float64 {
	if !enabled {
		return 0
	}
	return v
}

func withAmounts(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, it := range items {
		it.Amount = ItemAmount(it.Quantity, it.Rate)
		out[i] = it
	}
	return out
}

// Recalculate refreshes item amounts and document totals in place.
// Tax and discount only apply when their enable flag is set.
func (inv *Invoice) Recalculate() {
	inv.Items = withAmounts(inv.Items)
	t := CalculateTotals(inv.Items, effective(inv.EnableTax, inv.TaxRate), effective(inv.EnableDiscount, inv.Discount))
	inv.Subtotal, inv.DiscountAmount, inv.TaxAmount, inv.Total = t.Subtotal, t.DiscountAmount, t.TaxAmount, t.Total
}

// Recalculate refreshes item amounts and document totals in place.
func (q *Quotation) Recalculate() {
	q.Items = withAmounts(q.Items)
	t := CalculateTotals(q.Items, effective(q.EnableTax, q.TaxRate), effective(q.EnableDiscount, q.Discount))
	q.Subtotal, q.DiscountAmount, q.TaxAmount, q.Total = t.Subtotal, t.DiscountAmount, t.TaxAmount, t.Total
}

// TotalsFields are the application keys of a document that drive its totals.
var TotalsFields = []string{"items", "taxRate", "discount", "enableTax", "enableDiscount"}

// DerivedFields are the application keys of a document computed from its
// totals inputs. Patches never set them directly.
var DerivedFields = []string{"subtotal", "taxAmount", "discountAmount", "total"}

// SetsDerived reports whether a document patch names a derived field.
func (p Patch) SetsDerived() bool {
	for _, k := range DerivedFields {
		if p.Has(k) {
			return true
		}
	}
	return false
}

// AffectsTotals reports whether a document patch touches a totals input.
func (p Patch) AffectsTotals() bool {
	for _, k := range TotalsFields {
		if p.Has(k) {
			return true
		}
	}
	return false
}
