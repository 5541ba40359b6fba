// MCP transport handler using the official MCP Go SDK.
// Exposes the cart and favorites operations of a session as MCP tools.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"cartsync/internal/model"
	"cartsync/internal/session"
	"cartsync/internal/version"
)

// === MCP Tool Input Types ===
// Every tool names the session it acts on; sessions are created over REST.

// SessionInput is the input schema for tools that only need a session.
type SessionInput struct {
	SessionID string `json:"session_id" jsonschema:"cart session id returned by POST /sessions,required"`
	Refresh   bool   `json:"refresh,omitempty" jsonschema:"fetch the authoritative cart before answering"`
}

// AddToCartInput is the input schema for add_to_cart.
type AddToCartInput struct {
	SessionID string `json:"session_id" jsonschema:"cart session id,required"`
	ProductID string `json:"product_id" jsonschema:"product id,required"`
	Quantity  int    `json:"quantity,omitempty" jsonschema:"units to add (default 1)"`
}

// UpdateQuantityInput is the input schema for update_quantity.
type UpdateQuantityInput struct {
	SessionID string `json:"session_id" jsonschema:"cart session id,required"`
	ProductID string `json:"product_id" jsonschema:"product id,required"`
	Quantity  int    `json:"quantity" jsonschema:"new quantity; below 1 removes the line,required"`
}

// ProductInput is the input schema for tools acting on one product.
type ProductInput struct {
	SessionID string `json:"session_id" jsonschema:"cart session id,required"`
	ProductID string `json:"product_id" jsonschema:"product id,required"`
}

// NewMCPServer creates an MCP server with cart tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "cartsync",
			Version: version.Version,
		},
		&mcp.ServerOptions{
			Instructions: "Grocery cart sync. Log in over REST (POST /sessions) and pass the " +
				"returned session_id to these tools to read and change the cart and favorites.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the cart, favorites and total of a session.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add units of a product to the cart.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_quantity",
		Description: "Set a product's quantity. The change is shown immediately and rolled back if the store rejects it.",
	}, h.mcpUpdateQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_from_cart",
		Description: "Remove a product's line from the cart.",
	}, h.mcpRemoveFromCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cart",
		Description: "Remove every line from the cart.",
	}, h.mcpClearCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_favorite",
		Description: "Add a product to favorites.",
	}, h.mcpAddFavorite)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_favorite",
		Description: "Remove a product from favorites.",
	}, h.mcpRemoveFavorite)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *CartView, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if input.Refresh {
		if err := s.Engine.FetchCart(ctx); err != nil {
			return nil, nil, h.mcpError(err)
		}
	}
	return nil, newCartView(s.Engine.Store()), nil
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddToCartInput,
) (*mcp.CallToolResult, *CartView, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}
	if err := s.Engine.AddToCart(ctx, input.ProductID, qty); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, newCartView(s.Engine.Store()), nil
}

func (h *Handler) mcpUpdateQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateQuantityInput,
) (*mcp.CallToolResult, *CartView, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.Engine.UpdateQuantity(ctx, input.ProductID, input.Quantity); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, newCartView(s.Engine.Store()), nil
}

func (h *Handler) mcpRemoveFromCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ProductInput,
) (*mcp.CallToolResult, *CartView, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.Engine.RemoveFromCart(ctx, input.ProductID); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, newCartView(s.Engine.Store()), nil
}

func (h *Handler) mcpClearCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SessionInput,
) (*mcp.CallToolResult, *CartView, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.Engine.ClearCart(ctx); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, newCartView(s.Engine.Store()), nil
}

func (h *Handler) mcpAddFavorite(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ProductInput,
) (*mcp.CallToolResult, *CartView, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.Engine.AddFavorite(ctx, input.ProductID); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, newCartView(s.Engine.Store()), nil
}

func (h *Handler) mcpRemoveFavorite(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ProductInput,
) (*mcp.CallToolResult, *CartView, error) {
	s, err := h.mcpSession(input.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if err := s.Engine.RemoveFavorite(ctx, input.ProductID); err != nil {
		return nil, nil, h.mcpError(err)
	}
	return nil, newCartView(s.Engine.Store()), nil
}

// mcpSession resolves the session a tool call names.
func (h *Handler) mcpSession(id string) (*session.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		return nil, h.mcpError(err)
	}
	return s, nil
}

// mcpError converts engine errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}
