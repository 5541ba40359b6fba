// Package cart keeps a session's cart and favorites in step with the remote
// cart service.
//
// The Engine is the only writer of its Store. Every mutation is sent to the
// gateway and the cartItems list in the reply replaces the local items
// wholesale. Quantity updates are applied optimistically first and rolled
// back on failure (see reconciler.go). Per-product version counters keep a
// late reply from overwriting the result of a newer request for the same
// product.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"cartsync/internal/gateway"
	"cartsync/internal/model"
	"cartsync/internal/wire"
)

// Options configures an Engine.
type Options struct {
	Logger       *slog.Logger
	Clock        clock.Clock   // Default real clock
	RefreshDelay time.Duration // Default 100ms
}

// Engine orchestrates cart and favorites operations for one session.
type Engine struct {
	gw        gateway.Gateway
	creds     gateway.Credentials
	store     *Store
	refresher *Refresher
	logger    *slog.Logger
}

// NewEngine creates an engine with an empty store.
// Call FetchCart to populate it and Close when the session ends.
func NewEngine(gw gateway.Gateway, creds gateway.Credentials, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		gw:     gw,
		creds:  creds,
		store:  NewStore(),
		logger: logger,
	}
	e.refresher = NewRefresher(opts.Clock, opts.RefreshDelay, e.refresh, logger)
	return e
}

// Store returns the engine's store for reading.
func (e *Engine) Store() *Store {
	return e.store
}

// Refresher returns the safety-net refresher.
func (e *Engine) Refresher() *Refresher {
	return e.refresher
}

// Close stops pending and running safety-net refreshes.
func (e *Engine) Close() {
	e.refresher.Close()
}

// Summary returns items, total and count from one consistent read.
func (e *Engine) Summary() Summary {
	return Summarize(e.store.Items())
}

// IsFavorite reports whether the product is in the favorites list.
func (e *Engine) IsFavorite(productRef string) bool {
	_, ok := e.store.Favorite(wire.NormalizeRef(productRef))
	return ok
}

// FetchCart replaces the store with the server's cart and favorites.
//
// A malformed reply resets both lists to empty and is not an error. A failed
// request leaves the state as it was and returns the error. Without
// credentials there is nothing to fetch and the call is a no-op.
func (e *Engine) FetchCart(ctx context.Context) error {
	if !e.authenticated() {
		return nil
	}

	e.store.beginLoading()
	defer e.store.endLoading()

	itemsGen, favsGen := e.store.generations()

	resp, err := e.gw.FetchCart(ctx)
	if err != nil {
		e.logger.Warn("cart fetch failed", "error", err)
		return err
	}

	parsed, err := wire.ParseCartAndFavorites(resp.Body)
	if err != nil {
		e.logger.Warn("malformed cart response, resetting to empty", "error", err)
		e.store.applyFetch(itemsGen, favsGen, nil, nil)
		return nil
	}
	e.logRejected("fetch", parsed.Rejected)

	before, beforeFavs := e.store.Items(), e.store.Favorites()
	itemsApplied, favsApplied := e.store.applyFetch(itemsGen, favsGen, parsed.Items, parsed.Favorites)
	if !itemsApplied || !favsApplied {
		e.logger.Debug("discarding stale fetch",
			"items_applied", itemsApplied,
			"favorites_applied", favsApplied,
		)
	}
	if itemsApplied {
		e.logDrift("fetch", "", before, parsed.Items)
	}
	if favsApplied {
		if diff := FavoritesDrift(beforeFavs, parsed.Favorites); !diff.IsEmpty() {
			e.logger.Debug("favorites drift", "added", len(diff.Added), "removed", len(diff.Removed))
		}
	}
	return nil
}

// AddToCart adds quantity units of a product.
func (e *Engine) AddToCart(ctx context.Context, productRef string, quantity int) error {
	ref, err := e.prepare(productRef)
	if err != nil {
		return err
	}
	if quantity < 1 {
		return model.NewValidationError("quantity", "must be at least 1")
	}
	return e.commit(ctx, "add_to_cart", ref, func(ctx context.Context) (*gateway.Response, error) {
		return e.gw.AddToCart(ctx, ref, quantity)
	})
}

// RemoveFromCart removes a product's line.
func (e *Engine) RemoveFromCart(ctx context.Context, productRef string) error {
	ref, err := e.prepare(productRef)
	if err != nil {
		return err
	}
	return e.commit(ctx, "remove_from_cart", ref, func(ctx context.Context) (*gateway.Response, error) {
		return e.gw.RemoveFromCart(ctx, ref)
	})
}

// ClearCart empties the cart. Local items are cleared only when the server
// answers 200. Any other success status leaves them untouched and schedules
// an authoritative refresh.
func (e *Engine) ClearCart(ctx context.Context) error {
	if !e.authenticated() {
		return model.NewUnauthenticatedError()
	}

	resp, err := e.gw.ClearCart(ctx)
	if err != nil {
		e.fail("clear_cart", "", err)
		return err
	}
	if resp.StatusCode != http.StatusOK {
		e.logger.Warn("clear not confirmed, keeping items", "status", resp.StatusCode)
		e.refresher.Schedule()
		return nil
	}

	if superseded := e.store.clearItems(); superseded > 0 {
		e.logger.Debug("clear superseded in-flight mutations", "count", superseded)
		e.refresher.Schedule()
	}
	return nil
}

// AddFavorite favorites a product and refreshes the favorites list.
func (e *Engine) AddFavorite(ctx context.Context, productRef string) error {
	ref, err := e.prepare(productRef)
	if err != nil {
		return err
	}
	if _, err := e.gw.AddFavorite(ctx, ref); err != nil {
		e.fail("add_favorite", ref, err)
		return err
	}
	e.store.touchFavorites()
	return e.FetchCart(ctx)
}

// RemoveFavorite unfavorites a product and refreshes the favorites list.
// Placeholder favorites are refused without contacting the server.
func (e *Engine) RemoveFavorite(ctx context.Context, productRef string) error {
	ref, err := e.prepare(productRef)
	if err != nil {
		return err
	}
	if fav, ok := e.store.Favorite(ref); ok && fav.Placeholder {
		return model.NewPlaceholderError(ref)
	}
	if _, err := e.gw.RemoveFavorite(ctx, ref); err != nil {
		e.fail("remove_favorite", ref, err)
		return err
	}
	e.store.touchFavorites()
	return e.FetchCart(ctx)
}

// commit runs an add or remove. A well-shaped reply replaces the items. A
// malformed one triggers a single authoritative fetch instead of an error,
// since the mutation most likely went through.
func (e *Engine) commit(ctx context.Context, op, ref string, call func(ctx context.Context) (*gateway.Response, error)) error {
	version := e.store.beginMutation(ref)
	defer e.store.endMutation(ref)

	resp, err := call(ctx)
	if err != nil {
		e.fail(op, ref, err)
		return err
	}

	parsed, err := parseMutation(resp.Body, wire.Lenient)
	if err != nil {
		e.logger.Warn("malformed mutation response, refetching", "op", op, "product_ref", ref, "error", err)
		if err := e.FetchCart(ctx); err != nil {
			e.fail(op, ref, err)
			return err
		}
		return nil
	}

	if !e.store.applyItems(ref, version, parsed.Items) {
		e.logger.Debug("discarding stale response", "op", op, "product_ref", ref, "version", version)
	}
	return nil
}

// parseMutation validates a mutation reply. Unlike a fetch, any element that
// matches no known shape makes the whole reply untrusted.
func parseMutation(body []byte, mode wire.Mode) (*wire.Cart, error) {
	parsed, err := wire.ParseCartItems(body, mode)
	if err != nil {
		return nil, err
	}
	if len(parsed.Rejected) > 0 {
		return nil, model.NewShapeError(fmt.Sprintf("cartItems: %d unrecognized elements, first %s",
			len(parsed.Rejected), parsed.Rejected[0]))
	}
	return parsed, nil
}

// prepare gates a mutation on credentials and normalizes the product ref.
func (e *Engine) prepare(productRef string) (string, error) {
	if !e.authenticated() {
		return "", model.NewUnauthenticatedError()
	}
	ref := wire.NormalizeRef(productRef)
	if ref == "" {
		return "", model.NewValidationError("product", "identifier is required")
	}
	return ref, nil
}

func (e *Engine) authenticated() bool {
	return e.creds != nil && e.creds.Authenticated()
}

// fail records a write failure for display and logs it.
func (e *Engine) fail(op, ref string, err error) {
	e.store.setError(errorMessage(err))
	e.logger.Error("cart operation failed", "op", op, "product_ref", ref, "error", err)
}

func errorMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func (e *Engine) logRejected(op string, rejected []wire.Rejection) {
	for _, r := range rejected {
		e.logger.Warn("dropping unrecognized element", "op", op, "element", r.String())
	}
}
