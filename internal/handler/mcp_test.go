package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cartsync/internal/gateway"
)

// jsonrpcRequest is a JSON-RPC 2.0 request structure for testing.
type jsonrpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// jsonrpcResponse is a JSON-RPC 2.0 response structure for testing.
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toolCallParams represents the params for tools/call method.
type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// callToolResult is the expected result structure from a tool call.
type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	IsError bool `json:"isError,omitempty"`
}

func TestMCPServerCreation(t *testing.T) {
	h, _, _ := testHandler(t, &gateway.Mock{})
	server := h.NewMCPServer()

	if server == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPInitialize(t *testing.T) {
	_, mux, _ := testHandler(t, &gateway.Mock{})

	// MCP initialization request
	req := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]interface{}{
			"protocolVersion": "2026-01-11",
			"clientInfo": map[string]string{
				"name":    "test-client",
				"version": "1.0.0",
			},
			"capabilities": map[string]interface{}{},
		},
	}

	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, "")
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	jsonData, err := parseSSEResponse(w.Body.String())
	if err != nil {
		t.Fatalf("Failed to parse SSE response: %v", err)
	}

	var resp jsonrpcResponse
	if err := json.Unmarshal(jsonData, &resp); err != nil {
		t.Fatalf("Failed to decode response: %v\nBody: %s", err, string(jsonData))
	}

	if resp.Error != nil {
		t.Errorf("Unexpected error: %+v", resp.Error)
	}
	if resp.Result == nil {
		t.Error("Expected result in response")
	}
}

func TestMCPToolsList(t *testing.T) {
	_, mux, _ := testHandler(t, &gateway.Mock{})
	mcpSession := initMCPSession(t, mux)

	resp := mcpCall(t, mux, mcpSession, jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/list",
	})

	var toolsResult struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &toolsResult); err != nil {
		t.Fatalf("Failed to parse tools result: %v", err)
	}

	expectedTools := map[string]bool{
		"get_cart":         false,
		"add_to_cart":      false,
		"update_quantity":  false,
		"remove_from_cart": false,
		"clear_cart":       false,
		"add_favorite":     false,
		"remove_favorite":  false,
	}
	for _, tool := range toolsResult.Tools {
		if _, ok := expectedTools[tool.Name]; ok {
			expectedTools[tool.Name] = true
		}
	}
	for name, found := range expectedTools {
		if !found {
			t.Errorf("Expected tool %q not found in tools list", name)
		}
	}
}

func TestMCPGetCart(t *testing.T) {
	mock := &gateway.Mock{
		FetchCartFunc: func(ctx context.Context) (*gateway.Response, error) {
			return cartReply(seededCart), nil
		},
	}
	_, mux, _ := testHandler(t, mock)
	_, sess := login(t, mux, "tok")
	mcpSession := initMCPSession(t, mux)

	result := callTool(t, mux, mcpSession, "get_cart", map[string]interface{}{
		"session_id": sess.SessionID,
	})
	if result.IsError {
		t.Fatalf("Expected success, got error: %+v", result.Content)
	}

	view := toolCart(t, result)
	if view.Total != "6.25" || view.Count != 3 {
		t.Errorf("cart = total %s count %d, want 6.25 and 3", view.Total, view.Count)
	}
}

func TestMCPAddAndUpdate(t *testing.T) {
	var addQty, updateQty int
	mock := &gateway.Mock{
		AddToCartFunc: func(ctx context.Context, productRef string, quantity int) (*gateway.Response, error) {
			addQty = quantity
			return cartReply(`{"cartItems":[{"productId":"p1","quantity":1,"price":3}]}`), nil
		},
		UpdateQuantityFunc: func(ctx context.Context, productRef string, quantity int) (*gateway.Response, error) {
			updateQty = quantity
			return cartReply(`{"cartItems":[{"productId":"p1","quantity":4,"price":3}]}`), nil
		},
	}
	_, mux, _ := testHandler(t, mock)
	_, sess := login(t, mux, "tok")
	mcpSession := initMCPSession(t, mux)

	result := callTool(t, mux, mcpSession, "add_to_cart", map[string]interface{}{
		"session_id": sess.SessionID,
		"product_id": "p1",
	})
	if result.IsError {
		t.Fatalf("add_to_cart failed: %+v", result.Content)
	}
	if addQty != 1 {
		t.Errorf("add quantity = %d, want default 1", addQty)
	}

	result = callTool(t, mux, mcpSession, "update_quantity", map[string]interface{}{
		"session_id": sess.SessionID,
		"product_id": "p1",
		"quantity":   4,
	})
	if result.IsError {
		t.Fatalf("update_quantity failed: %+v", result.Content)
	}
	if updateQty != 4 {
		t.Errorf("update quantity = %d, want 4", updateQty)
	}
	if view := toolCart(t, result); view.Total != "12.00" {
		t.Errorf("Total = %s, want 12.00", view.Total)
	}
}

func TestMCPToolErrors(t *testing.T) {
	mock := &gateway.Mock{
		FetchCartFunc: func(ctx context.Context) (*gateway.Response, error) {
			return cartReply(`{"cartItems":[],"favorites":["milk"]}`), nil
		},
	}
	_, mux, _ := testHandler(t, mock)
	_, sess := login(t, mux, "tok")
	mcpSession := initMCPSession(t, mux)

	tests := []struct {
		name     string
		tool     string
		args     map[string]interface{}
		wantText string
	}{
		{"unknown session", "get_cart", map[string]interface{}{"session_id": "nope"}, "NOT_FOUND"},
		{"missing session", "clear_cart", map[string]interface{}{"session_id": ""}, "session_id is required"},
		{"placeholder favorite", "remove_favorite", map[string]interface{}{"session_id": sess.SessionID, "product_id": "milk"}, "PLACEHOLDER"},
		{"empty product", "remove_from_cart", map[string]interface{}{"session_id": sess.SessionID, "product_id": " "}, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, mux, mcpSession, tt.tool, tt.args)
			if !result.IsError {
				t.Fatal("Expected error result")
			}
			if len(result.Content) == 0 || !strings.Contains(result.Content[0].Text, tt.wantText) {
				t.Errorf("Content = %+v, want text containing %q", result.Content, tt.wantText)
			}
		})
	}
}

func TestMCPMissingRequiredField(t *testing.T) {
	_, mux, _ := testHandler(t, &gateway.Mock{})
	mcpSession := initMCPSession(t, mux)

	args, _ := json.Marshal(map[string]interface{}{
		"product_id": "p1",
	})
	body, _ := json.Marshal(jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/call",
		Params:  toolCallParams{Name: "add_to_cart", Arguments: args},
	})
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, mcpSession)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	// Should still return 200, with error in the result
	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

// callTool invokes a tool and returns its decoded result.
func callTool(t *testing.T, mux http.Handler, mcpSession, name string, args map[string]interface{}) callToolResult {
	t.Helper()
	raw, _ := json.Marshal(args)
	resp := mcpCall(t, mux, mcpSession, jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "tools/call",
		Params:  toolCallParams{Name: name, Arguments: raw},
	})

	var result callToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("Failed to parse result: %v", err)
	}
	return result
}

// toolCart decodes the cart view carried in a tool result's text content.
func toolCart(t *testing.T, result callToolResult) CartView {
	t.Helper()
	if len(result.Content) == 0 || result.Content[0].Type != "text" {
		t.Fatalf("Expected text content, got %+v", result.Content)
	}
	var view CartView
	if err := json.Unmarshal([]byte(result.Content[0].Text), &view); err != nil {
		t.Fatalf("Failed to parse cart from result: %v", err)
	}
	return view
}

// mcpCall posts one JSON-RPC request and decodes the response.
func mcpCall(t *testing.T, mux http.Handler, mcpSession string, req jsonrpcRequest) jsonrpcResponse {
	t.Helper()
	body, _ := json.Marshal(req)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, mcpSession)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d\nBody: %s", w.Code, http.StatusOK, w.Body.String())
	}

	jsonData, err := parseSSEResponse(w.Body.String())
	if err != nil {
		t.Fatalf("Failed to parse SSE response: %v", err)
	}
	var resp jsonrpcResponse
	if err := json.Unmarshal(jsonData, &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	return resp
}

// setMCPHeaders sets the required headers for MCP Streamable HTTP requests.
func setMCPHeaders(req *http.Request, sessionID string) {
	req.Header.Set("Content-Type", "application/json")
	// MCP Streamable HTTP requires Accept header with both json and event-stream
	req.Header.Set("Accept", "application/json, text/event-stream")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
}

// parseSSEResponse extracts JSON data from SSE formatted response.
// SSE format: "event: message\ndata: {json}\n\n"
func parseSSEResponse(body string) ([]byte, error) {
	lines := strings.Split(body, "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "data: ") {
			return []byte(strings.TrimPrefix(line, "data: ")), nil
		}
	}
	// If no SSE format found, assume plain JSON
	return []byte(body), nil
}

// initMCPSession initializes an MCP session and returns the MCP session ID.
func initMCPSession(t *testing.T, mux http.Handler) string {
	t.Helper()

	initReq := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]interface{}{
			"protocolVersion": "2026-01-11",
			"clientInfo":      map[string]string{"name": "test", "version": "1.0"},
			"capabilities":    map[string]interface{}{},
		},
	}

	body, _ := json.Marshal(initReq)
	httpReq := httptest.NewRequest("POST", "/mcp", bytes.NewReader(body))
	setMCPHeaders(httpReq, "")
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, httpReq)

	if w.Code != http.StatusOK {
		t.Fatalf("Failed to initialize MCP session: %s", w.Body.String())
	}

	return w.Header().Get("Mcp-Session-Id")
}
