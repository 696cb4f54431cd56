package handler

import (
	"net/http"

	"github.com/wadjakorntonsri/shortly/pkg/app"
	"github.com/wadjakorntonsri/shortly/pkg/config"
	"github.com/wadjakorntonsri/shortly/pkg/logger"
)

var mux http.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}

	// Note: On Vercel, a local SQLite file is ephemeral; point DATABASE_URL at Turso or Postgres
	a, err := app.New(cfg, log, app.Options{})
	if err != nil {
		panic(err)
	}
	mux = a.Handler
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
