package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/shortly/pkg/config"
	"github.com/wadjakorntonsri/shortly/pkg/metrics"
	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps is everything the router wires together.
type RouterDeps struct {
	Config   *config.Config
	Links    ports.LinkService
	Users    ports.UserService
	Sessions ports.SessionIssuer
	Health   Pinger
	Limiter  Limiter
	Logger   *zap.Logger
}

// NewRouter creates and configures the main application router
func NewRouter(d RouterDeps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	limiter := d.Limiter
	if limiter == nil {
		limiter = NewBucketLimiter(d.Config.RateLimitPerMinute)
	}

	h := NewLinkHandler(d.Links, d.Config.BaseURL, log)
	authHandler := NewAuthHandler(d.Config, d.Users, d.Sessions, log)
	mw := NewMiddleware(d.Sessions, log)
	limit := RateLimit(limiter, log)
	gate := mw.RequireSession

	mux := http.NewServeMux()

	// Ops
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.Health.Ping(ctx); err != nil {
			log.Error("health check failed", zap.Error(err))
			writeErrorStatus(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	// Auth
	mux.HandleFunc("GET /login", authHandler.LoginPage)
	mux.Handle("POST /login", limit(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("GET /signup", authHandler.SignupPage)
	mux.HandleFunc("POST /signup", authHandler.Signup)
	mux.HandleFunc("GET /logout", authHandler.Logout)
	mux.HandleFunc("GET /auth/{provider}/login", authHandler.OAuthLogin)
	mux.HandleFunc("GET /auth/{provider}/callback", authHandler.OAuthCallback)

	// Protected
	mux.Handle("GET /{$}", gate(http.HandlerFunc(h.Home)))
	mux.Handle("GET /links", gate(http.HandlerFunc(h.List)))
	mux.Handle("POST /links", gate(limit(http.HandlerFunc(h.Create))))
	mux.Handle("GET /links/{code}", gate(http.HandlerFunc(h.Get)))

	// Everything else is a short code. GET also answers HEAD.
	mux.HandleFunc("GET /{code...}", h.Redirect)

	return RealIP(d.Config.TrustedProxies)(mw.AccessLog(mw.Recover(mux)))
}
