package wire

import (
	"encoding/json"
	"errors"
	"testing"

	"cartsync/internal/model"
)

func TestParseCartItems_TopLevelShape(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid empty list", `{"cartItems":[]}`, false},
		{"valid items", `{"cartItems":[{"productId":"p1","quantity":1}]}`, false},
		{"missing cartItems", `{"message":"ok"}`, true},
		{"cartItems null", `{"cartItems":null}`, true},
		{"cartItems object", `{"cartItems":{"p1":1}}`, true},
		{"cartItems string", `{"cartItems":"[]"}`, true},
		{"body is a list", `[{"productId":"p1"}]`, true},
		{"body is empty", ``, true},
		{"body is not json", `<html>`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCartItems([]byte(tt.body), Lenient)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCartItems() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, model.ErrShape) {
				t.Errorf("error should wrap ErrShape, got %v", err)
			}
		})
	}
}

func TestParseCartItems_PreservesServerOrder(t *testing.T) {
	body := `{"cartItems":[
		{"productId":"c","quantity":1},
		{"product":{"_id":"a","name":"Apples","price":1.5},"quantity":2},
		{"id":"b","quantity":3}
	]}`

	cart, err := ParseCartItems([]byte(body), Lenient)
	if err != nil {
		t.Fatalf("ParseCartItems() error: %v", err)
	}

	want := []string{"c", "a", "b"}
	if len(cart.Items) != len(want) {
		t.Fatalf("len(Items) = %d, want %d", len(cart.Items), len(want))
	}
	for i, ref := range want {
		if cart.Items[i].ProductRef != ref {
			t.Errorf("Items[%d].ProductRef = %q, want %q", i, cart.Items[i].ProductRef, ref)
		}
	}
}

func TestParseLineItem_Nested(t *testing.T) {
	raw := `{"product":{"_id":"p1","name":"Oat Milk","price":"2.49","image":"milk.png","unit":"1L","countInStock":12},"quantity":3}`

	item, shape, err := ParseLineItem(json.RawMessage(raw), Strict)
	if err != nil {
		t.Fatalf("ParseLineItem() error: %v", err)
	}
	if shape != ShapeNested {
		t.Errorf("shape = %s, want nested", shape)
	}
	if item.Qty() != 3 {
		t.Errorf("Qty = %d, want 3", item.Qty())
	}

	snap, ok := item.Product.Get()
	if !ok {
		t.Fatal("expected product snapshot")
	}
	if snap.Name != "Oat Milk" || snap.Image != "milk.png" || snap.Unit != "1L" {
		t.Errorf("snapshot = %+v", snap)
	}
	if price, _ := snap.Price.Get(); price != 2.49 {
		t.Errorf("Price = %v, want 2.49", price)
	}
	if stock, _ := snap.CountInStock.Get(); stock != 12 {
		t.Errorf("CountInStock = %v, want 12", stock)
	}
}

func TestParseLineItem_FlatAndReference(t *testing.T) {
	item, shape, err := ParseLineItem(json.RawMessage(`{"productId":"p2","quantity":2,"price":4}`), Strict)
	if err != nil {
		t.Fatalf("flat: %v", err)
	}
	if shape != ShapeFlat {
		t.Errorf("shape = %s, want flat", shape)
	}
	if item.UnitPrice() != 4 {
		t.Errorf("UnitPrice = %v, want 4", item.UnitPrice())
	}

	_, shape, err = ParseLineItem(json.RawMessage(`{"product":"p3","quantity":1}`), Strict)
	if err != nil {
		t.Fatalf("reference: %v", err)
	}
	if shape != ShapeReference {
		t.Errorf("shape = %s, want reference", shape)
	}
}

func TestParseLineItem_StrictRules(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		strictOK  bool
		lenientOK bool
	}{
		{"complete nested", `{"product":{"_id":"p1"},"quantity":1}`, true, true},
		{"complete flat", `{"productId":"p1","quantity":1}`, true, true},
		{"missing quantity", `{"productId":"p1"}`, false, true},
		{"null quantity", `{"productId":"p1","quantity":null}`, false, true},
		{"string quantity", `{"productId":"p1","quantity":"2"}`, false, false},
		{"id only", `{"id":"p1","quantity":1}`, false, true},
		{"no identity", `{"quantity":1}`, false, false},
		{"not an object", `42`, false, false},
		{"zero quantity", `{"productId":"p1","quantity":0}`, false, false},
		{"negative quantity", `{"productId":"p1","quantity":-3}`, false, false},
		{"fraction below one", `{"productId":"p1","quantity":0.5}`, false, false},
		{"quantity past int range", `{"productId":"p1","quantity":1e19}`, false, false},
		{"largest quantity", `{"productId":"p1","quantity":2147483647}`, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseLineItem(json.RawMessage(tt.raw), Strict)
			if (err == nil) != tt.strictOK {
				t.Errorf("Strict: err = %v, wantOK %v", err, tt.strictOK)
			}
			_, _, err = ParseLineItem(json.RawMessage(tt.raw), Lenient)
			if (err == nil) != tt.lenientOK {
				t.Errorf("Lenient: err = %v, wantOK %v", err, tt.lenientOK)
			}
		})
	}
}

func TestParseLineItem_FractionalQuantityTruncates(t *testing.T) {
	item, _, err := ParseLineItem(json.RawMessage(`{"productId":"p1","quantity":2.7}`), Strict)
	if err != nil {
		t.Fatalf("ParseLineItem() error: %v", err)
	}
	if item.Qty() != 2 {
		t.Errorf("Qty = %d, want 2", item.Qty())
	}
}

func TestParseCartItems_OutOfRangeQuantityRejected(t *testing.T) {
	for _, qty := range []string{"0", "-3", "1e19"} {
		body := `{"cartItems":[{"productId":"p1","quantity":` + qty + `}]}`
		cart, err := ParseCartItems([]byte(body), Strict)
		if err != nil {
			t.Fatalf("quantity %s: ParseCartItems() error: %v", qty, err)
		}
		if len(cart.Items) != 0 || len(cart.Rejected) != 1 {
			t.Errorf("quantity %s: items = %d, rejected = %d, want 0 and 1",
				qty, len(cart.Items), len(cart.Rejected))
		}
	}
}

func TestParseCartItems_ReportsRejections(t *testing.T) {
	body := `{"cartItems":[{"productId":"p1","quantity":1},{"quantity":4},{"productId":"p3"}]}`

	cart, err := ParseCartItems([]byte(body), Strict)
	if err != nil {
		t.Fatalf("ParseCartItems() error: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Errorf("len(Items) = %d, want 1", len(cart.Items))
	}
	if len(cart.Rejected) != 2 {
		t.Fatalf("len(Rejected) = %d, want 2", len(cart.Rejected))
	}
	if cart.Rejected[0].Index != 1 || cart.Rejected[1].Index != 2 {
		t.Errorf("Rejected = %v", cart.Rejected)
	}
}

func TestParseCartAndFavorites(t *testing.T) {
	body := `{
		"cartItems":[{"product":{"_id":"p1","price":2},"quantity":1}],
		"favorites":[
			{"product":{"_id":"f1","name":"Honey","price":6.5}},
			"f2",
			{"product":"f3"},
			{"_id":"f4","name":"Jam"},
			{"productId":"f5"},
			{"note":"no id"}
		]
	}`

	cart, err := ParseCartAndFavorites([]byte(body))
	if err != nil {
		t.Fatalf("ParseCartAndFavorites() error: %v", err)
	}
	if len(cart.Items) != 1 {
		t.Errorf("len(Items) = %d, want 1", len(cart.Items))
	}

	want := []struct {
		ref         string
		placeholder bool
	}{
		{"f1", false},
		{"f2", true},
		{"f3", true},
		{"f4", false},
		{"f5", true},
	}
	if len(cart.Favorites) != len(want) {
		t.Fatalf("len(Favorites) = %d, want %d", len(cart.Favorites), len(want))
	}
	for i, w := range want {
		got := cart.Favorites[i]
		if got.ProductRef != w.ref || got.Placeholder != w.placeholder {
			t.Errorf("Favorites[%d] = {%s placeholder=%v}, want {%s placeholder=%v}",
				i, got.ProductRef, got.Placeholder, w.ref, w.placeholder)
		}
	}
	if len(cart.Rejected) != 1 || cart.Rejected[0].Field != "favorites" {
		t.Errorf("Rejected = %v, want one favorites rejection", cart.Rejected)
	}
}

func TestParseCartAndFavorites_RequiresBothLists(t *testing.T) {
	tests := []string{
		`{"cartItems":[]}`,
		`{"favorites":[]}`,
		`{"cartItems":[],"favorites":null}`,
		`{"cartItems":{},"favorites":[]}`,
	}
	for _, body := range tests {
		if _, err := ParseCartAndFavorites([]byte(body)); !errors.Is(err, model.ErrShape) {
			t.Errorf("ParseCartAndFavorites(%s) error = %v, want ErrShape", body, err)
		}
	}
}
