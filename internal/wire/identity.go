// Package wire normalizes cart service response bodies into model types.
//
// The cart service returns line items in several shapes:
//
//	{ "product": { "_id": "p1", "name": ..., "price": ... }, "quantity": 2 }
//	{ "product": "p1", "quantity": 2 }
//	{ "productId": "p1", "quantity": 2, "price": 4.5 }
//	{ "id": 17, "quantity": 2 }
//
// Every accepted shape is converted to model.CartLineItem at this boundary.
// Elements that match none of the known shapes are rejected and reported,
// never passed further in.
package wire

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeRef canonicalizes a caller-supplied product reference so it
// compares equal to a reference resolved from a response body.
func NormalizeRef(ref string) string {
	return strings.TrimSpace(ref)
}

// ResolveProductRef extracts the canonical product identifier from a raw line item.
//
// Resolution order is fixed: product._id, productId, id, product.id, and
// finally product itself when the server sent an unpopulated reference.
// Numeric identifiers are coerced to their decimal string form. The first
// non-empty candidate wins.
func ResolveProductRef(raw json.RawMessage) (string, bool) {
	fields, ok := decodeObject(raw)
	if !ok {
		return "", false
	}
	return resolveFields(fields)
}

func resolveFields(fields map[string]json.RawMessage) (string, bool) {
	nested, _ := decodeObject(fields["product"])

	candidates := []json.RawMessage{
		nested["_id"],
		fields["productId"],
		fields["id"],
		nested["id"],
		fields["product"],
	}
	for _, c := range candidates {
		if ref, ok := coerceID(c); ok {
			return ref, true
		}
	}
	return "", false
}

// coerceID accepts a JSON string or number and returns it as a trimmed string.
// Objects, arrays, booleans and null are not identifiers.
func coerceID(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", false
	}

	var s string
	switch id := v.(type) {
	case string:
		s = id
	case json.Number:
		s = canonicalNumber(id)
	default:
		return "", false
	}

	s = NormalizeRef(s)
	return s, s != ""
}

// canonicalNumber renders a JSON number without exponent or trailing zeros,
// so 17, 17.0 and 1.7e1 all become "17".
func canonicalNumber(n json.Number) string {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return n.String()
	}
	return d.String()
}

// decodeObject decodes raw as a JSON object. Returns false for any other JSON type.
func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

// isNull reports whether a field is absent or JSON null.
func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
