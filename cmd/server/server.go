// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/themekit/internal/api"
	"github.com/codr1/themekit/internal/api/auth"
	themeapi "github.com/codr1/themekit/internal/api/themes"
	"github.com/codr1/themekit/internal/assets"
	"github.com/codr1/themekit/internal/config"
	"github.com/codr1/themekit/internal/ratelimit"
	"github.com/codr1/themekit/internal/themes"
)

type serverDeps struct {
	service       *themes.Service
	assets        assets.Store
	authenticator *auth.Authenticator
	limiter       *ratelimit.Limiter
}

func newServer(cfg *config.Config, deps serverDeps) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithWriteLimit(deps.limiter, cfg.RateLimit.TrustProxy),
		api.WithAuth(deps.authenticator),
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	// Register routes
	registerRoutes(router, cfg, deps)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, cfg *config.Config, deps serverDeps) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	themeapi.InitHandlers(deps.service, themeapi.Options{
		Assets:        deps.assets,
		AssetMaxBytes: cfg.Assets.MaxBytes,
	})
	themeapi.RegisterRoutes(mux, api.WithPrivilegedAuth)

	// Uploaded logos are served from disk only for the local asset driver.
	local, ok := deps.assets.(*assets.LocalStore)
	if !ok {
		return
	}
	prefix := strings.TrimRight(local.PublicPath(), "/") + "/"
	fs := http.FileServer(http.Dir(local.Dir()))
	mux.Handle("GET "+prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Ctx(r.Context()).Debug().
			Str("path", r.URL.Path).
			Str("assets_dir", local.Dir()).
			Msg("Asset file request")
		http.StripPrefix(prefix, fs).ServeHTTP(w, r)
	}))
}
