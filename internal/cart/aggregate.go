package cart

import (
	"github.com/shopspring/decimal"

	"cartsync/internal/model"
)

// Total sums unit price times quantity over the items.
// A missing price counts as 0 and a missing quantity as 1.
func Total(items []model.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.UnitPrice()).Mul(decimal.NewFromInt(int64(item.Qty())))
		total = total.Add(line)
	}
	return total
}

// Count sums quantities over the items. A missing quantity counts as 1.
func Count(items []model.CartLineItem) int {
	n := 0
	for _, item := range items {
		n += item.Qty()
	}
	return n
}

// Summary is what the checkout flow consumes.
type Summary struct {
	Items []model.CartLineItem
	Total decimal.Decimal
	Count int
}

// Summarize derives a Summary from one consistent view of the items.
func Summarize(items []model.CartLineItem) Summary {
	return Summary{
		Items: model.CloneItems(items),
		Total: Total(items),
		Count: Count(items),
	}
}
