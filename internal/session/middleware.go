package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// Middleware resolves the Cart-Session header to a live session and stores
// it in the request context. Requests without a usable session are rejected
// with 401, except on exempt paths.
func Middleware(m *Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r) {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(HeaderName)
			if header == "" {
				writeSessionError(w, http.StatusUnauthorized, "SESSION_REQUIRED",
					"Cart-Session header is required")
				return
			}

			id, err := ParseHeader(header)
			if err != nil {
				logger.Warn("invalid Cart-Session header",
					slog.String("header", header),
					slog.String("error", err.Error()))
				writeSessionError(w, http.StatusBadRequest, "SESSION_INVALID",
					"Invalid Cart-Session header: "+err.Error())
				return
			}

			s, err := m.Get(id)
			if err != nil {
				writeSessionError(w, http.StatusUnauthorized, "SESSION_EXPIRED",
					"session not found or expired")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// isExempt returns true for requests that run without a session:
// login, health checks, and MCP (whose tools take a session_id argument).
func isExempt(r *http.Request) bool {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/sessions":
		return true
	case r.URL.Path == "/health" || r.URL.Path == "/healthz":
		return true
	case r.URL.Path == "/mcp":
		return true
	default:
		return false
	}
}

func writeSessionError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{}
	resp.Error.Code = code
	resp.Error.Message = message

	json.NewEncoder(w).Encode(resp)
}

// WithSession returns a context carrying the session.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the request's session, or nil on exempt paths.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
