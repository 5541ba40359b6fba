package cart

import (
	"testing"

	"github.com/alecthomas/types/optional"
	"github.com/google/go-cmp/cmp"

	"cartsync/internal/model"
)

// cmpOpts lets go-cmp look inside optional fields.
var cmpOpts = cmp.AllowUnexported(
	optional.Option[int]{},
	optional.Option[float64]{},
	optional.Option[string]{},
	optional.Option[model.ProductSnapshot]{},
)

func line(ref string, qty int) model.CartLineItem {
	return model.CartLineItem{ProductRef: ref, Quantity: optional.Some(qty)}
}

func seededStore(items ...model.CartLineItem) *Store {
	s := NewStore()
	ig, fg := s.generations()
	s.applyFetch(ig, fg, items, nil)
	return s
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := seededStore(line("p1", 2))

	snap := s.Snapshot()
	snap.Items[0].ProductRef = "mutated"

	if got, _ := s.Item("p1"); got.ProductRef != "p1" {
		t.Error("Snapshot aliases the store's items")
	}
}

func TestStore_OptimisticAndRollback(t *testing.T) {
	s := seededStore(line("p1", 2), line("p2", 1))
	before := s.Items()

	version, snapshot, gen := s.optimistic("p1", 5)
	if got := s.Count(); got != 6 {
		t.Errorf("Count() after optimistic = %d, want 6", got)
	}
	if !s.InFlight("p1") {
		t.Error("InFlight(p1) = false during mutation")
	}
	if diff := cmp.Diff(before, snapshot, cmpOpts); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	if !s.rollback("p1", version, gen, snapshot) {
		t.Fatal("rollback() = false, want true")
	}
	s.endMutation("p1")

	if diff := cmp.Diff(before, s.Items(), cmpOpts); diff != "" {
		t.Errorf("items after rollback (-want +got):\n%s", diff)
	}
	if s.InFlight("p1") {
		t.Error("InFlight(p1) = true after endMutation")
	}
}

func TestStore_RollbackKeepsOtherProducts(t *testing.T) {
	s := seededStore(line("p1", 2), line("p2", 1))

	v1, snapshot, gen := s.optimistic("p1", 5)

	// A reply for p2 lands while p1's update is outstanding.
	v2 := s.beginMutation("p2")
	if !s.applyItems("p2", v2, []model.CartLineItem{line("p1", 5), line("p2", 4)}) {
		t.Fatal("applyItems(p2) = false")
	}

	if !s.rollback("p1", v1, gen, snapshot) {
		t.Fatal("rollback(p1) = false")
	}

	want := []model.CartLineItem{line("p1", 2), line("p2", 4)}
	if diff := cmp.Diff(want, s.Items(), cmpOpts); diff != "" {
		t.Errorf("items (-want +got):\n%s", diff)
	}
}

func TestStore_StaleVersionDiscarded(t *testing.T) {
	s := seededStore(line("p1", 1))

	older := s.beginMutation("p1")
	newer := s.beginMutation("p1")

	if !s.applyItems("p1", newer, []model.CartLineItem{line("p1", 7)}) {
		t.Fatal("applyItems(newer) = false")
	}
	if s.applyItems("p1", older, []model.CartLineItem{line("p1", 3)}) {
		t.Error("applyItems(older) = true, want stale reply discarded")
	}
	if got, _ := s.Item("p1"); got.Qty() != 7 {
		t.Errorf("quantity = %d, want 7", got.Qty())
	}
}

func TestStore_StaleFetchDiscarded(t *testing.T) {
	s := seededStore(line("p1", 1))
	ig, fg := s.generations()

	v := s.beginMutation("p1")
	s.applyItems("p1", v, []model.CartLineItem{line("p1", 4)})

	favs := []model.FavoriteItem{{ProductRef: "f1", Placeholder: true}}
	itemsApplied, favsApplied := s.applyFetch(ig, fg, []model.CartLineItem{line("p1", 1)}, favs)
	if itemsApplied {
		t.Error("items from a fetch older than the last mutation were applied")
	}
	if !favsApplied {
		t.Error("favorites were not applied although untouched since the fetch started")
	}
	if got, _ := s.Item("p1"); got.Qty() != 4 {
		t.Errorf("quantity = %d, want 4", got.Qty())
	}
	if _, ok := s.Favorite("f1"); !ok {
		t.Error("Favorite(f1) missing")
	}
}

func TestStore_ClearSupersedesInFlight(t *testing.T) {
	s := seededStore(line("p1", 1))

	v := s.beginMutation("p1")
	if n := s.clearItems(); n != 1 {
		t.Errorf("clearItems() = %d, want 1", n)
	}
	if s.applyItems("p1", v, []model.CartLineItem{line("p1", 2)}) {
		t.Error("reply issued before clear was applied")
	}
	if got := len(s.Items()); got != 0 {
		t.Errorf("len(Items()) = %d, want 0", got)
	}
}

func TestStore_ErrorClearedOnSuccess(t *testing.T) {
	s := seededStore()
	s.setError("boom")
	if msg, ok := s.Err().Get(); !ok || msg != "boom" {
		t.Fatalf("Err() = %q, %v", msg, ok)
	}

	v := s.beginMutation("p1")
	s.applyItems("p1", v, nil)

	if _, ok := s.Err().Get(); ok {
		t.Error("Err() still set after a successful apply")
	}
	if s.Items() == nil {
		t.Error("Items() = nil, want empty slice")
	}
}

func TestRestoreLine(t *testing.T) {
	tests := []struct {
		name    string
		current []model.CartLineItem
		before  []model.CartLineItem
		want    []model.CartLineItem
	}{
		{
			name:    "replace",
			current: []model.CartLineItem{line("p1", 9), line("p2", 1)},
			before:  []model.CartLineItem{line("p1", 2)},
			want:    []model.CartLineItem{line("p1", 2), line("p2", 1)},
		},
		{
			name:    "re-add",
			current: []model.CartLineItem{line("p2", 1)},
			before:  []model.CartLineItem{line("p1", 2)},
			want:    []model.CartLineItem{line("p2", 1), line("p1", 2)},
		},
		{
			name:    "drop",
			current: []model.CartLineItem{line("p1", 3), line("p2", 1)},
			before:  []model.CartLineItem{},
			want:    []model.CartLineItem{line("p2", 1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := restoreLine(tt.current, tt.before, "p1")
			if diff := cmp.Diff(tt.want, got, cmpOpts); diff != "" {
				t.Errorf("restoreLine() (-want +got):\n%s", diff)
			}
		})
	}
}
