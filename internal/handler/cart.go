package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"cartsync/internal/model"
	"cartsync/internal/session"
)

// createSessionRequest is the optional body of POST /sessions.
// The token may instead arrive as an Authorization bearer header.
type createSessionRequest struct {
	Token string `json:"token"`
}

// sessionResponse is returned on login.
type sessionResponse struct {
	SessionID     string    `json:"session_id"`
	Header        string    `json:"header"` // ready-made Cart-Session value
	Authenticated bool      `json:"authenticated"`
	Cart          *CartView `json:"cart"`
}

// addItemRequest is the body of POST /cart/items.
type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// updateItemRequest is the body of PUT /cart/items/{productId}.
type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

// handleCreateSession logs a caller in and returns the populated cart.
// POST /sessions
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := opContext(r.Context())

	token, ok := bearerToken(r)
	if !ok && r.ContentLength != 0 {
		var req createSessionRequest
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, err)
			return
		}
		token = req.Token
	}

	s, err := h.sessions.Create(ctx, token)
	if err != nil {
		h.writeError(w, err)
		return
	}

	header, err := session.FormatHeader(s.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set(session.HeaderName, header)
	h.writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID:     s.ID,
		Header:        header,
		Authenticated: s.Authenticated(),
		Cart:          newCartView(s.Engine.Store()),
	})
}

// handleDestroySession logs a caller out.
// DELETE /sessions/{id}
func (h *Handler) handleDestroySession(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// A session may only end itself.
	if r.PathValue("id") != s.ID {
		h.writeError(w, model.NewNotFoundError("session"))
		return
	}

	if err := h.sessions.Destroy(s.ID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetCart returns the cart. ?refresh=true forces an authoritative fetch.
// GET /cart
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if r.URL.Query().Get("refresh") == "true" {
		if err := s.Engine.FetchCart(opContext(r.Context())); err != nil {
			h.writeError(w, err)
			return
		}
	}

	h.writeJSON(w, http.StatusOK, newCartView(s.Engine.Store()))
}

// handleAddItem adds units of a product.
// POST /cart/items
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	h.logger.InfoContext(r.Context(), "adding to cart",
		slog.String("session_id", s.ID),
		slog.String("product_id", req.ProductID),
		slog.Int("quantity", req.Quantity),
	)

	if err := s.Engine.AddToCart(opContext(r.Context()), req.ProductID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCartView(s.Engine.Store()))
}

// handleUpdateItem sets a product's quantity. Zero or less removes it.
// PUT /cart/items/{productId}
func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	productID := r.PathValue("productId")

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Quantity == nil {
		h.writeError(w, model.NewValidationError("quantity", "required"))
		return
	}

	h.logger.InfoContext(r.Context(), "updating quantity",
		slog.String("session_id", s.ID),
		slog.String("product_id", productID),
		slog.Int("quantity", *req.Quantity),
	)

	if err := s.Engine.UpdateQuantity(opContext(r.Context()), productID, *req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCartView(s.Engine.Store()))
}

// handleRemoveItem removes a product's line.
// DELETE /cart/items/{productId}
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := s.Engine.RemoveFromCart(opContext(r.Context()), r.PathValue("productId")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCartView(s.Engine.Store()))
}

// handleClearCart empties the cart.
// DELETE /cart
func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := s.Engine.ClearCart(opContext(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCartView(s.Engine.Store()))
}

// handleAddFavorite favorites a product.
// POST /favorites/{productId}
func (h *Handler) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := s.Engine.AddFavorite(opContext(r.Context()), r.PathValue("productId")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCartView(s.Engine.Store()))
}

// handleRemoveFavorite unfavorites a product. Placeholders answer 409.
// DELETE /favorites/{productId}
func (h *Handler) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	s, err := currentSession(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := s.Engine.RemoveFavorite(opContext(r.Context()), r.PathValue("productId")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newCartView(s.Engine.Store()))
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
