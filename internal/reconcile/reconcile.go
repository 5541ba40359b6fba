// Package reconcile computes drift between two views of the cart.
// Used by the sync engine to report how an authoritative answer differed from
// what was shown locally: an optimistic guess versus the committed response,
// or the cart before versus after a safety-net refresh.
package reconcile

// LineItemDiff describes how line items changed between two snapshots.
type LineItemDiff struct {
	Added   []Item           // Products in after but not before
	Removed []Item           // Products in before but not after
	Changed []QuantityChange // Products in both with different quantities
}

// Item is the part of a line item that drift is computed over.
type Item struct {
	ProductRef string // Canonical product identifier
	Quantity   int
}

// QuantityChange records a quantity that moved between snapshots.
type QuantityChange struct {
	ProductRef string
	From       int
	To         int
}

// IsEmpty returns true if both snapshots agree.
func (d *LineItemDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffLineItems computes the drift from before to after.
// Matching is by ProductRef. Output follows the order of the input slices so
// repeated runs log identically.
//
// A product listed twice in one snapshot is compared by its summed quantity.
func DiffLineItems(before, after []Item) *LineItemDiff {
	diff := &LineItemDiff{}

	beforeQty, beforeOrder := sumByRef(before)
	afterQty, afterOrder := sumByRef(after)

	for _, ref := range afterOrder {
		qty := afterQty[ref]
		prev, exists := beforeQty[ref]
		switch {
		case !exists:
			diff.Added = append(diff.Added, Item{ProductRef: ref, Quantity: qty})
		case prev != qty:
			diff.Changed = append(diff.Changed, QuantityChange{ProductRef: ref, From: prev, To: qty})
		}
	}

	for _, ref := range beforeOrder {
		if _, exists := afterQty[ref]; !exists {
			diff.Removed = append(diff.Removed, Item{ProductRef: ref, Quantity: beforeQty[ref]})
		}
	}

	return diff
}

func sumByRef(items []Item) (map[string]int, []string) {
	qty := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if _, seen := qty[item.ProductRef]; !seen {
			order = append(order, item.ProductRef)
		}
		qty[item.ProductRef] += item.Quantity
	}
	return qty, order
}

// FavoriteDiff describes how the favorites set changed.
type FavoriteDiff struct {
	Added   []string // Refs in after but not before
	Removed []string // Refs in before but not after
}

// IsEmpty returns true if no favorites changed.
func (d *FavoriteDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// DiffFavorites computes the set difference between two favorite ref lists.
func DiffFavorites(before, after []string) *FavoriteDiff {
	diff := &FavoriteDiff{}

	beforeSet := make(map[string]bool, len(before))
	for _, ref := range before {
		beforeSet[ref] = true
	}

	afterSet := make(map[string]bool, len(after))
	for _, ref := range after {
		afterSet[ref] = true
	}

	for _, ref := range after {
		if !beforeSet[ref] {
			diff.Added = append(diff.Added, ref)
			beforeSet[ref] = true // report duplicates once
		}
	}

	for _, ref := range before {
		if !afterSet[ref] {
			diff.Removed = append(diff.Removed, ref)
			afterSet[ref] = true
		}
	}

	return diff
}
