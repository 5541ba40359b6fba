package model

import (
	"github.com/alecthomas/types/optional"
)

// ProductSnapshot is the partial copy of product attributes as last seen
// from the server. Any field may be missing; consumers must not assume
// a complete product.
type ProductSnapshot struct {
	Name         string
	Price        optional.Option[float64]
	Image        string
	Unit         string
	CountInStock optional.Option[int]
}

// CartLineItem is one entry of the cart.
// ProductRef is the canonical identifier produced by the identity resolver;
// all equality checks go through it.
type CartLineItem struct {
	ProductRef string
	Quantity   optional.Option[int]
	Product    optional.Option[ProductSnapshot]

	// Price carried directly on flat-shaped items. Only consulted when the
	// nested product snapshot has no price.
	Price optional.Option[float64]
}

// UnitPrice returns the snapshot price, the item-level price, or 0.
func (i CartLineItem) UnitPrice() float64 {
	if p, ok := i.Product.Get(); ok {
		if price, ok := p.Price.Get(); ok {
			return price
		}
	}
	return i.Price.Default(0)
}

// Qty returns the quantity, defaulting to 1 when the server omitted it.
func (i CartLineItem) Qty() int {
	return i.Quantity.Default(1)
}

// FavoriteItem is one entry of the favorites list.
//
// A placeholder favorite is displayable but inert: the server returned only
// an identifier, so detail views and removal are refused until the next
// authoritative refresh fills it in.
type FavoriteItem struct {
	ProductRef  string
	Product     optional.Option[ProductSnapshot]
	Placeholder bool
}

// Detail returns the product data behind a favorite, or ErrPlaceholder.
func (f FavoriteItem) Detail() (ProductSnapshot, error) {
	p, ok := f.Product.Get()
	if f.Placeholder || !ok {
		return ProductSnapshot{}, NewPlaceholderError(f.ProductRef)
	}
	return p, nil
}

// CartState is the full contents of the cart store.
// Totals are not stored; they are derived from Items on every read.
type CartState struct {
	Items     []CartLineItem
	Favorites []FavoriteItem
	Loading   bool
	Error     optional.Option[string]
}

// Clone returns a copy whose slices do not alias the receiver's.
func (s CartState) Clone() CartState {
	out := s
	out.Items = CloneItems(s.Items)
	if s.Favorites != nil {
		out.Favorites = make([]FavoriteItem, len(s.Favorites))
		copy(out.Favorites, s.Favorites)
	}
	return out
}

// CloneItems copies a line item slice. Elements are values, so a shallow
// copy is enough to isolate the result.
func CloneItems(items []CartLineItem) []CartLineItem {
	if items == nil {
		return nil
	}
	out := make([]CartLineItem, len(items))
	copy(out, items)
	return out
}
