package handler

import (
	"context"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
	"github.com/wadjakorntonsri/shortly/pkg/metrics"
	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

const sessionCookie = "auth_token"

type contextKey int

const principalKey contextKey = iota

type Middleware struct {
	sessions ports.SessionIssuer
	logger   *zap.Logger
}

func NewMiddleware(sessions ports.SessionIssuer, log *zap.Logger) *Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &Middleware{sessions: sessions, logger: log}
}

// PrincipalFrom returns the identity RequireSession stored on ctx.
func PrincipalFrom(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*domain.Principal)
	return p, ok
}

// RequireSession verifies the session token from the Authorization header
// or the auth_token cookie. API callers get 401, browsers go to /login.
func (m *Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			m.deny(w, r)
			return
		}

		principal, err := m.sessions.Verify(token)
		if err != nil {
			m.logger.Debug("session rejected", zap.String("path", r.URL.Path), zap.Error(err))
			m.deny(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) deny(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeErrorStatus(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// isAPIRequest tells programmatic callers from browsers: anything asking
// for JSON, carrying an Authorization header, or not a plain GET.
func isAPIRequest(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return true
	}
	if r.Header.Get("Authorization") != "" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// AccessLog logs every request and observes its latency.
func (m *Middleware) AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		metrics.RequestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())
		m.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
			zap.String("ip", clientIP(r)),
		)
	})
}

// Recover turns a panic into a logged 500.
func (m *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				m.logger.Error("panic serving request",
					zap.Any("panic", rv),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				writeErrorStatus(w, http.StatusInternalServerError, errInternal.Error())
			}
		}()
		next.ServeHTTP(w, r)
	})
}
