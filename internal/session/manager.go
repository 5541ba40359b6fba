// Package session owns the lifecycle of per-user cart engines.
//
// A session is created at login with the caller's bearer token, gets its own
// cart.Engine populated by an initial fetch, and is destroyed at logout or
// after sitting idle. Nothing about the cart lives outside a session.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"cartsync/internal/cart"
	"cartsync/internal/gateway"
	"cartsync/internal/model"
)

// DefaultIdleTTL is how long a session may go unused before it expires.
const DefaultIdleTTL = 30 * time.Minute

// GatewayFactory binds the shared cart service client to one caller.
// *gateway.Client implements it.
type GatewayFactory interface {
	ForUser(creds gateway.Credentials) gateway.Gateway
}

// Session is one logged-in caller and their cart engine.
type Session struct {
	ID        string
	Engine    *cart.Engine
	CreatedAt time.Time

	authenticated bool
	lastSeen      atomic.Int64 // unix nanos
}

// Authenticated reports whether the session carries credentials.
func (s *Session) Authenticated() bool {
	return s.authenticated
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// Config configures a Manager.
type Config struct {
	IdleTTL time.Duration // Default 30m
	Clock   clock.Clock   // Default real clock
	Logger  *slog.Logger
	Engine  cart.Options // Logger and Clock default to the manager's
}

// Manager is the registry of live sessions.
type Manager struct {
	gateways GatewayFactory
	sessions *xsync.MapOf[string, *Session]
	ttl      time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	engine   cart.Options
}

// NewManager creates an empty session registry.
func NewManager(gateways GatewayFactory, cfg Config) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Engine.Logger == nil {
		cfg.Engine.Logger = cfg.Logger
	}
	if cfg.Engine.Clock == nil {
		cfg.Engine.Clock = cfg.Clock
	}

	return &Manager{
		gateways: gateways,
		sessions: xsync.NewMapOf[string, *Session](),
		ttl:      cfg.IdleTTL,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		engine:   cfg.Engine,
	}
}

// Create starts a session for the given bearer token and performs the first
// authoritative fetch. An empty token creates a guest session whose cart
// stays empty and whose mutations are refused.
//
// A failed initial fetch is logged, not returned: the session is still
// usable and the next fetch may succeed.
func (m *Manager) Create(ctx context.Context, token string) (*Session, error) {
	if strings.ContainsAny(token, " \t\r\n") {
		return nil, model.NewValidationError("token", "must not contain whitespace")
	}
	creds := gateway.StaticToken(token)

	id := uuid.NewString()
	opts := m.engine
	opts.Logger = opts.Logger.With("session_id", id)

	now := m.clock.Now()
	s := &Session{
		ID:            id,
		Engine:        cart.NewEngine(m.gateways.ForUser(creds), creds, opts),
		CreatedAt:     now,
		authenticated: creds.Authenticated(),
	}
	s.touch(now)

	if err := s.Engine.FetchCart(ctx); err != nil {
		m.logger.Warn("initial cart fetch failed", "session_id", id, "error", err)
	}

	m.sessions.Store(id, s)
	m.logger.Info("session created", "session_id", id, "authenticated", s.authenticated)
	return s, nil
}

// Get returns a live session and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	s, ok := m.sessions.Load(id)
	if !ok {
		return nil, model.NewNotFoundError("session")
	}
	s.touch(m.clock.Now())
	return s, nil
}

// Destroy ends a session and stops its engine.
func (m *Manager) Destroy(id string) error {
	s, ok := m.sessions.LoadAndDelete(id)
	if !ok {
		return model.NewNotFoundError("session")
	}
	s.Engine.Close()
	m.logger.Info("session destroyed", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Size()
}

// ExpireIdle destroys sessions unused for longer than the idle TTL and
// returns how many were removed.
func (m *Manager) ExpireIdle() int {
	cutoff := m.clock.Now().Add(-m.ttl)

	var expired []string
	m.sessions.Range(func(id string, s *Session) bool {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, id)
		}
		return true
	})

	n := 0
	for _, id := range expired {
		s, ok := m.sessions.LoadAndDelete(id)
		if !ok {
			continue
		}
		s.Engine.Close()
		n++
	}
	if n > 0 {
		m.logger.Info("expired idle sessions", "count", n)
	}
	return n
}

// Run expires idle sessions periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := m.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ExpireIdle()
		}
	}
}

// Close destroys every session.
func (m *Manager) Close() {
	m.sessions.Range(func(id string, s *Session) bool {
		if _, ok := m.sessions.LoadAndDelete(id); ok {
			s.Engine.Close()
		}
		return true
	})
}
