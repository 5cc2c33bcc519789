package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tradeTracker/internal/adapters/logger"
	"tradeTracker/internal/ports"
)

const (
	requestIDHeader = "X-Request-ID"
	passwordHeader  = "X-Site-Password"
	passwordQuery   = "password"
)

// requestID tags each request with an id taken from X-Request-ID or freshly generated.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), logger.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs one line per request once it completes.
func requestLogger(log ports.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug(r.Context(), "HTTP request", map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start).String(),
			})
		})
	}
}

// cors allows the dashboard to be served from another origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+passwordHeader+", "+requestIDHeader)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PasswordGate guards the API with the shared dashboard password.
type PasswordGate struct {
	hash []byte
}

// NewPasswordGate builds a gate from a bcrypt hash or, failing that, a plain
// password. It returns nil when neither is configured, which disables the gate.
func NewPasswordGate(password, hash string) (*PasswordGate, error) {
	switch {
	case hash != "":
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("invalid SITE_PASSWORD_HASH: %w: %w", ports.ErrConfigurationError, err)
		}
		return &PasswordGate{hash: []byte(hash)}, nil
	case password != "":
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing SITE_PASSWORD: %w: %w", ports.ErrConfigurationError, err)
		}
		return &PasswordGate{hash: h}, nil
	default:
		return nil, nil
	}
}

// Check reports whether the supplied password matches.
func (g *PasswordGate) Check(password string) bool {
	if g == nil {
		return true
	}
	if password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(password)) == nil
}

// Middleware rejects requests without the right X-Site-Password header. The
// WebSocket stream may pass it as ?password= since browsers cannot set headers there.
func (g *PasswordGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		password := r.Header.Get(passwordHeader)
		if password == "" {
			password = r.URL.Query().Get(passwordQuery)
		}
		if !g.Check(password) {
			writeError(w, r, fmt.Errorf("wrong or missing site password: %w", ports.ErrPermissionDenied))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor maps application errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrPermissionDenied):
		return http.StatusUnauthorized
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ports.ErrPriceNotLoaded),
		errors.Is(err, ports.ErrExchangeUnavailable),
		errors.Is(err, ports.ErrConnectionFailed),
		errors.Is(err, ports.ErrTimeout),
		errors.Is(err, ports.ErrConfigurationError):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
