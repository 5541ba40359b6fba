// cartctl is a CLI tool for exercising a cartsyncd server by hand.
// Each command performs a single operation, making it composable for scripts.
//
// Examples:
//
//	export CARTSYNC_SESSION=$(cartctl login --token "$TOKEN" -q)
//	cartctl add apples --qty 2
//	cartctl update apples 5
//	cartctl fav add eggs
//	cartctl show
//	cartctl logout
//	cartctl status
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"cartsync/internal/session"
	"cartsync/internal/version"
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorCyan, colorGray, colorBold = "", "", ""
}

// CLI is the root command. Global flags apply to every subcommand.
type CLI struct {
	Server  string        `help:"cartsyncd base URL." default:"http://localhost:8080" env:"CARTSYNC_SERVER"`
	Session string        `help:"Session id returned by login." env:"CARTSYNC_SESSION"`
	Timeout time.Duration `help:"Request timeout." default:"30s"`
	Quiet   bool          `short:"q" help:"Quiet mode - only output the essential value."`
	Verbose bool          `short:"v" help:"Show full request/response."`
	NoColor bool          `help:"Disable colored output."`

	Login  loginCmd  `cmd:"" help:"Create a session and print its id."`
	Logout logoutCmd `cmd:"" help:"End the current session."`
	Show   showCmd   `cmd:"" help:"Show the cart and favorites."`
	Add    addCmd    `cmd:"" help:"Add units of a product."`
	Update updateCmd `cmd:"" help:"Set a product's quantity (0 removes it)."`
	Remove removeCmd `cmd:"" help:"Remove a product's line."`
	Clear  clearCmd  `cmd:"" help:"Empty the cart."`
	Fav    favCmd    `cmd:"" help:"Manage favorites."`
	Status statusCmd `cmd:"" help:"Check the server is up and speaks this client's version."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("cartctl"),
		kong.Description("cartsyncd cart and favorites test tool"),
		kong.ShortUsageOnError(),
		kong.HelpOptions{Compact: true, WrapUpperBound: 80},
	)
	if cli.NoColor || os.Getenv("NO_COLOR") != "" {
		disableColors()
	}

	c := &client{
		http:    &http.Client{Timeout: cli.Timeout},
		server:  strings.TrimSuffix(cli.Server, "/"),
		session: cli.Session,
		quiet:   cli.Quiet,
		verbose: cli.Verbose,
	}
	kctx.BindTo(context.Background(), (*context.Context)(nil))
	kctx.Bind(c)

	if err := kctx.Run(); err != nil {
		fatal("%v", err)
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

type loginCmd struct {
	Token string `help:"Bearer token for the cart service. Empty logs in as a guest." env:"CARTSYNC_TOKEN"`
}

func (l *loginCmd) Run(ctx context.Context, c *client) error {
	var body any
	if l.Token != "" {
		body = map[string]string{"token": l.Token}
	}
	resp, err := c.do(ctx, "POST", "/sessions", body, false)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	var out struct {
		SessionID     string    `json:"session_id"`
		Authenticated bool      `json:"authenticated"`
		Cart          *cartView `json:"cart"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if c.quiet {
		fmt.Println(out.SessionID)
		return nil
	}
	printSuccess("Session created")
	fmt.Printf("  ID: %s%s%s\n", colorCyan, out.SessionID, colorReset)
	if !out.Authenticated {
		printWarning("guest session: the cart is read-only")
	}
	if out.Cart != nil {
		printCart(out.Cart)
	}
	return nil
}

type logoutCmd struct{}

func (logoutCmd) Run(ctx context.Context, c *client) error {
	if _, err := c.do(ctx, "DELETE", "/sessions/"+url.PathEscape(c.session), nil, true); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	printSuccess("Session ended")
	return nil
}

type showCmd struct {
	Refresh bool `help:"Fetch the authoritative cart first."`
}

func (s *showCmd) Run(ctx context.Context, c *client) error {
	path := "/cart"
	if s.Refresh {
		path += "?refresh=true"
	}
	return c.cartOp(ctx, "GET", path, nil, "")
}

type addCmd struct {
	Product string `arg:"" help:"Product id."`
	Qty     int    `help:"Units to add." default:"1"`
}

func (a *addCmd) Run(ctx context.Context, c *client) error {
	body := map[string]any{"product_id": a.Product, "quantity": a.Qty}
	return c.cartOp(ctx, "POST", "/cart/items", body, fmt.Sprintf("Added %d × %s", a.Qty, a.Product))
}

type updateCmd struct {
	Product  string `arg:"" help:"Product id."`
	Quantity int    `arg:"" help:"New quantity."`
}

func (u *updateCmd) Run(ctx context.Context, c *client) error {
	body := map[string]any{"quantity": u.Quantity}
	return c.cartOp(ctx, "PUT", "/cart/items/"+url.PathEscape(u.Product), body,
		fmt.Sprintf("%s set to %d", u.Product, u.Quantity))
}

type removeCmd struct {
	Product string `arg:"" help:"Product id."`
}

func (r *removeCmd) Run(ctx context.Context, c *client) error {
	return c.cartOp(ctx, "DELETE", "/cart/items/"+url.PathEscape(r.Product), nil, "Removed "+r.Product)
}

type clearCmd struct{}

func (clearCmd) Run(ctx context.Context, c *client) error {
	return c.cartOp(ctx, "DELETE", "/cart", nil, "Cart cleared")
}

type favCmd struct {
	Add    favAddCmd    `cmd:"" help:"Add a product to favorites."`
	Remove favRemoveCmd `cmd:"" help:"Remove a product from favorites."`
}

type favAddCmd struct {
	Product string `arg:"" help:"Product id."`
}

func (f *favAddCmd) Run(ctx context.Context, c *client) error {
	return c.cartOp(ctx, "POST", "/favorites/"+url.PathEscape(f.Product), nil, "Favorited "+f.Product)
}

type favRemoveCmd struct {
	Product string `arg:"" help:"Product id."`
}

func (f *favRemoveCmd) Run(ctx context.Context, c *client) error {
	return c.cartOp(ctx, "DELETE", "/favorites/"+url.PathEscape(f.Product), nil, "Unfavorited "+f.Product)
}

type statusCmd struct{}

func (statusCmd) Run(ctx context.Context, c *client) error {
	resp, err := c.do(ctx, "GET", "/health", nil, false)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	var health struct {
		Status   string `json:"status"`
		Version  string `json:"version"`
		Sessions int    `json:"sessions"`
	}
	if err := json.Unmarshal(resp, &health); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if !version.Compatible(health.Version, version.Version) {
		return fmt.Errorf("server version %s is incompatible with cartctl %s", health.Version, version.Version)
	}
	if c.quiet {
		fmt.Println(health.Status)
		return nil
	}
	printSuccess("Server %s", health.Status)
	fmt.Printf("  Version: %s%s%s\n", colorCyan, health.Version, colorReset)
	fmt.Printf("  Sessions: %d\n", health.Sessions)
	if version.Newer(health.Version, version.Version) {
		printWarning("server is newer than cartctl %s", version.Version)
	}
	return nil
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

type client struct {
	http    *http.Client
	server  string
	session string
	quiet   bool
	verbose bool
}

// cartView mirrors the fields of the server's cart response that are printed.
type cartView struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
		Name      string `json:"name"`
		LineTotal string `json:"line_total"`
		Pending   bool   `json:"pending"`
	} `json:"items"`
	Favorites []struct {
		ProductID   string `json:"product_id"`
		Placeholder bool   `json:"placeholder"`
		Name        string `json:"name"`
	} `json:"favorites"`
	Total string `json:"total"`
	Count int    `json:"count"`
	Error string `json:"error"`
}

// cartOp performs a request that answers with the cart and prints it.
func (c *client) cartOp(ctx context.Context, method, path string, body any, done string) error {
	resp, err := c.do(ctx, method, path, body, true)
	if err != nil {
		return err
	}

	var view cartView
	if err := json.Unmarshal(resp, &view); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if c.quiet {
		fmt.Println(view.Total)
		return nil
	}
	if done != "" {
		printSuccess("%s", done)
	}
	printCart(&view)
	return nil
}

func (c *client) do(ctx context.Context, method, path string, body any, needSession bool) ([]byte, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.server+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if needSession {
		if c.session == "" {
			return nil, fmt.Errorf("no session: run 'cartctl login' and set CARTSYNC_SESSION or --session")
		}
		header, err := session.FormatHeader(c.session)
		if err != nil {
			return nil, err
		}
		req.Header.Set(session.HeaderName, header)
	}

	if c.verbose {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if c.verbose {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, responseError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// responseError renders the server's error envelope, falling back to the raw body.
func responseError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		return fmt.Errorf("HTTP %d %s: %s", status, envelope.Error.Code, envelope.Error.Message)
	}
	return fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(body)))
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printCart(view *cartView) {
	if view.Error != "" {
		printWarning("last write failed: %s", view.Error)
	}
	if len(view.Items) == 0 {
		fmt.Printf("  %sCart is empty%s\n", colorGray, colorReset)
	}
	for _, item := range view.Items {
		name := item.Name
		if name == "" {
			name = item.ProductID
		}
		pending := ""
		if item.Pending {
			pending = colorGray + " (pending)" + colorReset
		}
		fmt.Printf("  %3d × %-30s %8s%s\n", item.Quantity, name, item.LineTotal, pending)
	}
	fmt.Printf("  %sTotal:%s %s%s%s (%d items)\n", colorBold, colorReset, colorGreen, view.Total, colorReset, view.Count)

	if len(view.Favorites) == 0 {
		return
	}
	fmt.Printf("  %sFavorites:%s\n", colorYellow, colorReset)
	for _, fav := range view.Favorites {
		if fav.Placeholder {
			fmt.Printf("    - %s %s(loading)%s\n", fav.ProductID, colorGray, colorReset)
			continue
		}
		fmt.Printf("    - %s (%s)\n", fav.Name, fav.ProductID)
	}
}

func printRequest(method, path string, body []byte) {
	fmt.Printf("\n%s▶ REQUEST%s %s%s %s%s\n", colorYellow, colorReset, colorBold, method, path, colorReset)
	if body != nil {
		printJSON(body, "  ")
	}
}

func printResponse(status int, body []byte, duration time.Duration) {
	statusColor := colorGreen
	if status >= 400 {
		statusColor = colorRed
	}
	fmt.Printf("\n%s◀ RESPONSE%s %s%d%s (%v)\n", colorCyan, colorReset, statusColor, status, colorReset, duration)
	printJSON(body, "  ")
}

func printJSON(data []byte, prefix string) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, prefix, "  "); err != nil {
		fmt.Printf("%s%s\n", prefix, string(data))
		return
	}
	fmt.Println(pretty.String())
}

func printSuccess(format string, args ...interface{}) {
	fmt.Printf("%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
	os.Exit(1)
}
