package cart

import (
	"context"

	"cartsync/internal/model"
	"cartsync/internal/reconcile"
	"cartsync/internal/wire"
)

// UpdateQuantity sets a product's quantity.
//
// A quantity below 1 is a removal. Otherwise the new quantity is shown
// immediately, then:
//
//   - a reply that passes strict validation replaces the items wholesale
//   - a failed request or malformed reply restores the items captured
//     before the optimistic write and returns the error
//
// Either way a safety-net fetch is scheduled, since the captured items are
// only as fresh as the last authoritative read.
func (e *Engine) UpdateQuantity(ctx context.Context, productRef string, quantity int) error {
	if quantity < 1 {
		return e.RemoveFromCart(ctx, productRef)
	}
	ref, err := e.prepare(productRef)
	if err != nil {
		return err
	}

	version, before, gen := e.store.optimistic(ref, quantity)
	defer e.store.endMutation(ref)
	defer e.refresher.Schedule()

	resp, err := e.gw.UpdateQuantity(ctx, ref, quantity)
	var parsed *wire.Cart
	if err == nil {
		parsed, err = parseMutation(resp.Body, wire.Strict)
	}

	if err != nil {
		if !e.store.rollback(ref, version, gen, before) {
			e.logger.Debug("skipping rollback, newer update issued", "product_ref", ref, "version", version)
		}
		e.fail("update_quantity", ref, err)
		return err
	}

	guess := e.store.Items()
	if !e.store.applyItems(ref, version, parsed.Items) {
		e.logger.Debug("discarding stale response", "op", "update_quantity", "product_ref", ref, "version", version)
		return nil
	}
	e.logDrift("update_quantity", ref, guess, parsed.Items)
	return nil
}

// refresh is the safety-net run: an authoritative fetch.
func (e *Engine) refresh(ctx context.Context) error {
	return e.FetchCart(ctx)
}

// logDrift reports how an authoritative answer differed from what was shown.
func (e *Engine) logDrift(op, ref string, shown, authoritative []model.CartLineItem) {
	diff := Drift(shown, authoritative)
	if diff.IsEmpty() {
		return
	}
	e.logger.Debug("cart drift",
		"op", op,
		"product_ref", ref,
		"added", len(diff.Added),
		"removed", len(diff.Removed),
		"changed", len(diff.Changed),
	)
}

// Drift compares two item lists by product ref and quantity.
func Drift(before, after []model.CartLineItem) *reconcile.LineItemDiff {
	return reconcile.DiffLineItems(diffItems(before), diffItems(after))
}

// FavoritesDrift compares two favorites lists by product ref.
func FavoritesDrift(before, after []model.FavoriteItem) *reconcile.FavoriteDiff {
	return reconcile.DiffFavorites(favoriteRefs(before), favoriteRefs(after))
}

func diffItems(items []model.CartLineItem) []reconcile.Item {
	out := make([]reconcile.Item, len(items))
	for i, item := range items {
		out[i] = reconcile.Item{ProductRef: item.ProductRef, Quantity: item.Qty()}
	}
	return out
}

func favoriteRefs(favs []model.FavoriteItem) []string {
	out := make([]string, len(favs))
	for i, f := range favs {
		out[i] = f.ProductRef
	}
	return out
}
