package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"cartsync/internal/model"
	"cartsync/internal/transport"
	"cartsync/internal/version"
)

// serviceName labels errors surfaced from this client.
const serviceName = "cart service"

var userAgent = "cartsync/" + version.Version

// maxResponseSize caps response bodies read from the cart service.
const maxResponseSize = 4 << 20

// Config holds cart service client configuration.
type Config struct {
	BaseURL   string
	APIKey    string        // Optional, sent as X-API-Key
	Timeout   time.Duration // Default 30s
	ChromeTLS bool          // Present a browser TLS fingerprint

	// HTTPClient overrides the constructed client. Used by tests.
	HTTPClient *http.Client
}

// Client talks to the cart service over HTTP.
// It is shared across sessions; ForUser binds it to one caller's credentials.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a cart service client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport.New(transport.Options{DialTimeout: timeout, ChromeTLS: cfg.ChromeTLS}),
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}, nil
}

// ForUser returns a Gateway that authenticates as the given caller.
func (c *Client) ForUser(creds Credentials) Gateway {
	return &userGateway{client: c, creds: creds}
}

type userGateway struct {
	client *Client
	creds  Credentials
}

// quantityRequest is the body for add and update calls.
type quantityRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (g *userGateway) FetchCart(ctx context.Context) (*Response, error) {
	return g.client.do(ctx, g.creds, http.MethodGet, "/cart", nil)
}

func (g *userGateway) AddToCart(ctx context.Context, productRef string, quantity int) (*Response, error) {
	return g.client.do(ctx, g.creds, http.MethodPost, "/cart", quantityRequest{ProductID: productRef, Quantity: quantity})
}

func (g *userGateway) UpdateQuantity(ctx context.Context, productRef string, quantity int) (*Response, error) {
	return g.client.do(ctx, g.creds, http.MethodPut, "/cart", quantityRequest{ProductID: productRef, Quantity: quantity})
}

func (g *userGateway) RemoveFromCart(ctx context.Context, productRef string) (*Response, error) {
	return g.client.do(ctx, g.creds, http.MethodDelete, "/cart/"+url.PathEscape(productRef), nil)
}

func (g *userGateway) ClearCart(ctx context.Context) (*Response, error) {
	return g.client.do(ctx, g.creds, http.MethodPut, "/cart/clear", nil)
}

func (g *userGateway) AddFavorite(ctx context.Context, productRef string) (*Response, error) {
	return g.client.do(ctx, g.creds, http.MethodPost, "/favorites/"+url.PathEscape(productRef), nil)
}

func (g *userGateway) RemoveFavorite(ctx context.Context, productRef string) (*Response, error) {
	return g.client.do(ctx, g.creds, http.MethodDelete, "/favorites/"+url.PathEscape(productRef), nil)
}

// do performs one request. A nil body sends no payload.
func (c *Client) do(ctx context.Context, creds Credentials, method, path string, body any) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, creds, body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewNetworkError(serviceName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, model.NewNetworkError(serviceName, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseErrorResponse(resp.StatusCode, respBody)
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

func (c *Client) setHeaders(req *http.Request, creds Credentials, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID(req.Context()))
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if creds != nil && creds.Authenticated() {
		req.Header.Set("Authorization", "Bearer "+creds.BearerToken())
	}
}

// errorResponse is the error body the cart service sends, when it sends one.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// parseErrorResponse converts a failed response to a server error.
func parseErrorResponse(statusCode int, body []byte) error {
	var e errorResponse
	json.Unmarshal(body, &e) // Best effort parse

	detail := e.Message
	if detail == "" {
		detail = e.Error
	}
	return model.NewServerError(serviceName, statusCode, detail)
}

type requestIDKey struct{}

// WithRequestID attaches a request id that outgoing calls will forward.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// requestID returns the forwarded id or a fresh one.
func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
