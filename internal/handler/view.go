package handler

import (
	"github.com/alecthomas/types/optional"
	"github.com/shopspring/decimal"

	"cartsync/internal/cart"
	"cartsync/internal/model"
)

// CartView is the cart as returned to clients.
// Money is rendered with two decimals; TotalCents is what checkout consumes.
type CartView struct {
	Items      []LineItemView `json:"items"`
	Favorites  []FavoriteView `json:"favorites"`
	Total      string         `json:"total"`
	TotalCents int64          `json:"total_cents"`
	Count      int            `json:"count"`
	Loading    bool           `json:"loading"`
	Error      string         `json:"error,omitempty"`
}

// LineItemView is one cart line.
type LineItemView struct {
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	Name         string `json:"name,omitempty"`
	Image        string `json:"image,omitempty"`
	Unit         string `json:"unit,omitempty"`
	UnitPrice    string `json:"unit_price"`
	LineTotal    string `json:"line_total"`
	CountInStock *int   `json:"count_in_stock,omitempty"`
	Pending      bool   `json:"pending,omitempty"` // a mutation for this product is in flight
}

// FavoriteView is one favorites entry. Placeholders carry only the id.
type FavoriteView struct {
	ProductID   string `json:"product_id"`
	Placeholder bool   `json:"placeholder"`
	Name        string `json:"name,omitempty"`
	Image       string `json:"image,omitempty"`
	Unit        string `json:"unit,omitempty"`
	Price       string `json:"price,omitempty"`
}

// newCartView renders one consistent snapshot of a store.
func newCartView(store *cart.Store) *CartView {
	state := store.Snapshot()
	summary := cart.Summarize(state.Items)

	view := &CartView{
		Items:      make([]LineItemView, len(state.Items)),
		Favorites:  make([]FavoriteView, len(state.Favorites)),
		Total:      model.FormatMoney(summary.Total),
		TotalCents: model.ToCents(summary.Total),
		Count:      summary.Count,
		Loading:    state.Loading,
		Error:      state.Error.Default(""),
	}

	for i, item := range state.Items {
		view.Items[i] = newLineItemView(item, store.InFlight(item.ProductRef))
	}
	for i, fav := range state.Favorites {
		view.Favorites[i] = newFavoriteView(fav)
	}
	return view
}

func newLineItemView(item model.CartLineItem, pending bool) LineItemView {
	unit := decimal.NewFromFloat(item.UnitPrice())
	v := LineItemView{
		ProductID: item.ProductRef,
		Quantity:  item.Qty(),
		UnitPrice: model.FormatMoney(unit),
		LineTotal: model.FormatMoney(unit.Mul(decimal.NewFromInt(int64(item.Qty())))),
		Pending:   pending,
	}
	if p, ok := item.Product.Get(); ok {
		v.Name = p.Name
		v.Image = p.Image
		v.Unit = p.Unit
		v.CountInStock = p.CountInStock.Ptr()
	}
	return v
}

func newFavoriteView(fav model.FavoriteItem) FavoriteView {
	v := FavoriteView{ProductID: fav.ProductRef, Placeholder: fav.Placeholder}
	p, err := fav.Detail()
	if err != nil {
		return v
	}
	v.Name = p.Name
	v.Image = p.Image
	v.Unit = p.Unit
	v.Price = formatOptionalPrice(p.Price)
	return v
}

func formatOptionalPrice(price optional.Option[float64]) string {
	if p, ok := price.Get(); ok {
		return model.FormatMoney(decimal.NewFromFloat(p))
	}
	return ""
}
