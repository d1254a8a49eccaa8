package service

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/cpq-approval/internal/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// PriceItem fills in the item's total. A positive DiscountAmount wins over
// DiscountPercent and never exceeds the line subtotal.
func PriceItem(item *entity.QuoteItem) {
	subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))

	discount := item.DiscountAmount
	if !discount.IsPositive() {
		discount = subtotal.Mul(item.DiscountPercent).Div(hundred)
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	item.TotalPrice = subtotal.Sub(discount).Round(2)
}

// QuoteTotal prices every item and returns the quote total after the
// quote-level discount, rounded to cents
func QuoteTotal(items []entity.QuoteItem, discountPercent decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for i := range items {
		PriceItem(&items[i])
		sum = sum.Add(items[i].TotalPrice)
	}
	factor := hundred.Sub(discountPercent).Div(hundred)
	return sum.Mul(factor).Round(2)
}
