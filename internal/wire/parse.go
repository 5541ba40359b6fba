package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/alecthomas/types/optional"

	"cartsync/internal/model"
)

// Shape identifies which known wire layout a line item used.
type Shape int

const (
	ShapeUnknown   Shape = iota
	ShapeNested          // product is an object carrying _id and attributes
	ShapeReference       // product is a bare identifier
	ShapeFlat            // productId or id directly on the item
)

func (s Shape) String() string {
	switch s {
	case ShapeNested:
		return "nested"
	case ShapeReference:
		return "reference"
	case ShapeFlat:
		return "flat"
	default:
		return "unknown"
	}
}

// Mode selects how much of a line item must be present for it to be trusted.
type Mode int

const (
	// Lenient requires only a resolvable product identity. Used for the
	// authoritative refresh and for add/remove responses.
	Lenient Mode = iota

	// Strict additionally requires a product or productId field and a
	// numeric quantity. Used to accept an update-quantity response.
	Strict
)

// Rejection describes one element that matched no known shape.
type Rejection struct {
	Field  string
	Index  int
	Reason string
}

func (r Rejection) String() string {
	return fmt.Sprintf("%s[%d]: %s", r.Field, r.Index, r.Reason)
}

// Cart is the normalized content of a response body.
type Cart struct {
	Items     []model.CartLineItem
	Favorites []model.FavoriteItem
	Rejected  []Rejection
}

// ParseCartItems parses a mutation response, which must carry a cartItems list.
// Returns a ShapeError if the body is not an object or cartItems is missing or
// not a list. Individual bad elements are reported in Cart.Rejected.
func ParseCartItems(body []byte, mode Mode) (*Cart, error) {
	fields, ok := decodeObject(body)
	if !ok {
		return nil, model.NewShapeError("response body is not a JSON object")
	}

	elems, err := decodeList(fields, "cartItems")
	if err != nil {
		return nil, err
	}

	cart := &Cart{Items: make([]model.CartLineItem, 0, len(elems))}
	for i, raw := range elems {
		item, _, err := ParseLineItem(raw, mode)
		if err != nil {
			cart.Rejected = append(cart.Rejected, Rejection{Field: "cartItems", Index: i, Reason: err.Error()})
			continue
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, nil
}

// ParseCartAndFavorites parses the combined cart and favorites resource.
// Both cartItems and favorites must be present as lists.
func ParseCartAndFavorites(body []byte) (*Cart, error) {
	cart, err := ParseCartItems(body, Lenient)
	if err != nil {
		return nil, err
	}

	fields, _ := decodeObject(body)
	elems, err := decodeList(fields, "favorites")
	if err != nil {
		return nil, err
	}

	cart.Favorites = make([]model.FavoriteItem, 0, len(elems))
	for i, raw := range elems {
		fav, err := ParseFavorite(raw)
		if err != nil {
			cart.Rejected = append(cart.Rejected, Rejection{Field: "favorites", Index: i, Reason: err.Error()})
			continue
		}
		cart.Favorites = append(cart.Favorites, fav)
	}
	return cart, nil
}

// ParseLineItem converts one raw cart element to a CartLineItem.
func ParseLineItem(raw json.RawMessage, mode Mode) (model.CartLineItem, Shape, error) {
	fields, ok := decodeObject(raw)
	if !ok {
		return model.CartLineItem{}, ShapeUnknown, fmt.Errorf("line item is not an object")
	}

	ref, ok := resolveFields(fields)
	if !ok {
		return model.CartLineItem{}, ShapeUnknown, fmt.Errorf("no product identifier")
	}

	qtyRaw, hasQty := fields["quantity"]
	hasQty = hasQty && !isNull(qtyRaw)

	if mode == Strict {
		if isNull(fields["product"]) && isNull(fields["productId"]) {
			return model.CartLineItem{}, ShapeUnknown, fmt.Errorf("missing product and productId")
		}
		if !hasQty {
			return model.CartLineItem{}, ShapeUnknown, fmt.Errorf("missing quantity")
		}
	}

	item := model.CartLineItem{ProductRef: ref}
	if hasQty {
		qty, ok := parseInt(qtyRaw)
		if !ok {
			return model.CartLineItem{}, ShapeUnknown, fmt.Errorf("quantity is not a number")
		}
		if qty < 1 {
			return model.CartLineItem{}, ShapeUnknown, fmt.Errorf("quantity %d is below 1", qty)
		}
		item.Quantity = optional.Some(qty)
	}
	if price, ok := model.ParsePrice(fields["price"]); ok {
		item.Price = optional.Some(price)
	}

	shape := ShapeFlat
	if nested, ok := decodeObject(fields["product"]); ok {
		shape = ShapeNested
		item.Product = optional.Some(parseSnapshot(nested))
	} else if !isNull(fields["product"]) {
		shape = ShapeReference
	} else if name := stringField(fields["name"]); name != "" {
		// Flat items occasionally inline a few product attributes.
		item.Product = optional.Some(model.ProductSnapshot{
			Name:  name,
			Image: stringField(fields["image"]),
			Unit:  stringField(fields["unit"]),
		})
	}
	return item, shape, nil
}

// ParseFavorite converts one raw favorites element to a FavoriteItem.
//
// Accepted forms: a bare identifier, { product: {...} }, { product: "<id>" },
// or the product object itself. An entry without product attributes becomes
// a placeholder.
func ParseFavorite(raw json.RawMessage) (model.FavoriteItem, error) {
	if ref, ok := coerceID(raw); ok {
		return model.FavoriteItem{ProductRef: ref, Placeholder: true}, nil
	}

	fields, ok := decodeObject(raw)
	if !ok {
		return model.FavoriteItem{}, fmt.Errorf("favorite is neither an identifier nor an object")
	}

	ref, ok := resolveFields(fields)
	if !ok {
		ref, ok = coerceID(fields["_id"])
	}
	if !ok {
		return model.FavoriteItem{}, fmt.Errorf("no product identifier")
	}

	source := fields
	if nested, ok := decodeObject(fields["product"]); ok {
		source = nested
	} else if !isNull(fields["product"]) {
		return model.FavoriteItem{ProductRef: ref, Placeholder: true}, nil
	}

	if !hasProductData(source) {
		return model.FavoriteItem{ProductRef: ref, Placeholder: true}, nil
	}
	return model.FavoriteItem{
		ProductRef: ref,
		Product:    optional.Some(parseSnapshot(source)),
	}, nil
}

func parseSnapshot(fields map[string]json.RawMessage) model.ProductSnapshot {
	snap := model.ProductSnapshot{
		Name:  stringField(fields["name"]),
		Image: stringField(fields["image"]),
		Unit:  stringField(fields["unit"]),
	}
	if price, ok := model.ParsePrice(fields["price"]); ok {
		snap.Price = optional.Some(price)
	}
	if stock, ok := parseInt(fields["countInStock"]); ok {
		snap.CountInStock = optional.Some(stock)
	}
	return snap
}

func hasProductData(fields map[string]json.RawMessage) bool {
	if stringField(fields["name"]) != "" {
		return true
	}
	_, ok := model.ParsePrice(fields["price"])
	return ok
}

// decodeList extracts a required list field. Missing, null or non-list values
// are shape errors.
func decodeList(fields map[string]json.RawMessage, name string) ([]json.RawMessage, error) {
	raw, ok := fields[name]
	if !ok {
		return nil, model.NewShapeError(name + " is missing")
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, model.NewShapeError(name + " is not a list")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, model.NewShapeError(fmt.Sprintf("%s: %v", name, err))
	}
	return elems, nil
}

// parseInt reads a JSON number as an integer, truncating any fraction.
// Values outside the int32 range are refused.
func parseInt(raw json.RawMessage) (int, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func stringField(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
