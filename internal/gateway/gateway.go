// Package gateway defines the remote cart service that holds the authoritative
// cart and favorites, and provides an HTTP client for it.
package gateway

import (
	"context"
)

// Gateway abstracts the remote cart service.
//
// Every method returns the raw response so the sync engine can validate its
// shape before trusting it. Transport failures are returned as network errors
// and non-success statuses as server errors; a returned Response always has a
// success status.
type Gateway interface {
	// FetchCart returns the combined resource: { cartItems: [...], favorites: [...] }.
	FetchCart(ctx context.Context) (*Response, error)

	// AddToCart posts { productId, quantity } and returns { cartItems: [...] }.
	AddToCart(ctx context.Context, productRef string, quantity int) (*Response, error)

	// UpdateQuantity puts { productId, quantity } and returns { cartItems: [...] }.
	UpdateQuantity(ctx context.Context, productRef string, quantity int) (*Response, error)

	// RemoveFromCart deletes by product and returns { cartItems: [...] }.
	RemoveFromCart(ctx context.Context, productRef string) (*Response, error)

	// ClearCart empties the cart. No body is required in the response.
	ClearCart(ctx context.Context) (*Response, error)

	// AddFavorite and RemoveFavorite only report a status.
	AddFavorite(ctx context.Context, productRef string) (*Response, error)
	RemoveFavorite(ctx context.Context, productRef string) (*Response, error)
}

// Response is a successful reply from the cart service.
type Response struct {
	StatusCode int
	Body       []byte
}

// Credentials is the session collaborator the engine consumes.
// Only "is the caller authenticated" and the bearer token are needed here;
// login and token refresh live elsewhere.
type Credentials interface {
	Authenticated() bool
	BearerToken() string
}

// StaticToken is a fixed bearer token. The empty token is unauthenticated.
type StaticToken string

// Authenticated implements Credentials.
func (t StaticToken) Authenticated() bool { return t != "" }

// BearerToken implements Credentials.
func (t StaticToken) BearerToken() string { return string(t) }
