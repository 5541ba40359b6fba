package gateway

import (
	"context"

	"cartsync/internal/model"
)

// Mock implements Gateway for testing.
// Each method can be configured via function fields.
type Mock struct {
	FetchCartFunc      func(ctx context.Context) (*Response, error)
	AddToCartFunc      func(ctx context.Context, productRef string, quantity int) (*Response, error)
	UpdateQuantityFunc func(ctx context.Context, productRef string, quantity int) (*Response, error)
	RemoveFromCartFunc func(ctx context.Context, productRef string) (*Response, error)
	ClearCartFunc      func(ctx context.Context) (*Response, error)
	AddFavoriteFunc    func(ctx context.Context, productRef string) (*Response, error)
	RemoveFavoriteFunc func(ctx context.Context, productRef string) (*Response, error)
}

// FetchCart calls the configured FetchCartFunc or returns an empty cart.
func (m *Mock) FetchCart(ctx context.Context) (*Response, error) {
	if m.FetchCartFunc != nil {
		return m.FetchCartFunc(ctx)
	}
	return &Response{StatusCode: 200, Body: []byte(`{"cartItems":[],"favorites":[]}`)}, nil
}

// AddToCart calls the configured AddToCartFunc or returns an error.
func (m *Mock) AddToCart(ctx context.Context, productRef string, quantity int) (*Response, error) {
	if m.AddToCartFunc != nil {
		return m.AddToCartFunc(ctx, productRef, quantity)
	}
	return nil, model.NewInternalError(nil)
}

// UpdateQuantity calls the configured UpdateQuantityFunc or returns an error.
func (m *Mock) UpdateQuantity(ctx context.Context, productRef string, quantity int) (*Response, error) {
	if m.UpdateQuantityFunc != nil {
		return m.UpdateQuantityFunc(ctx, productRef, quantity)
	}
	return nil, model.NewInternalError(nil)
}

// RemoveFromCart calls the configured RemoveFromCartFunc or returns an error.
func (m *Mock) RemoveFromCart(ctx context.Context, productRef string) (*Response, error) {
	if m.RemoveFromCartFunc != nil {
		return m.RemoveFromCartFunc(ctx, productRef)
	}
	return nil, model.NewInternalError(nil)
}

// ClearCart calls the configured ClearCartFunc or returns an error.
func (m *Mock) ClearCart(ctx context.Context) (*Response, error) {
	if m.ClearCartFunc != nil {
		return m.ClearCartFunc(ctx)
	}
	return nil, model.NewInternalError(nil)
}

// AddFavorite calls the configured AddFavoriteFunc or returns an error.
func (m *Mock) AddFavorite(ctx context.Context, productRef string) (*Response, error) {
	if m.AddFavoriteFunc != nil {
		return m.AddFavoriteFunc(ctx, productRef)
	}
	return nil, model.NewInternalError(nil)
}

// RemoveFavorite calls the configured RemoveFavoriteFunc or returns an error.
func (m *Mock) RemoveFavorite(ctx context.Context, productRef string) (*Response, error) {
	if m.RemoveFavoriteFunc != nil {
		return m.RemoveFavoriteFunc(ctx, productRef)
	}
	return nil, model.NewInternalError(nil)
}

// Verify Mock implements Gateway interface at compile time.
var _ Gateway = (*Mock)(nil)
