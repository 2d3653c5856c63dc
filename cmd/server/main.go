// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/themekit/internal/api/auth"
	"github.com/codr1/themekit/internal/assets"
	"github.com/codr1/themekit/internal/cache"
	"github.com/codr1/themekit/internal/config"
	"github.com/codr1/themekit/internal/db"
	"github.com/codr1/themekit/internal/ratelimit"
	"github.com/codr1/themekit/internal/scheduler"
	"github.com/codr1/themekit/internal/themes"
)

const shutdownTimeout = 30 * time.Second

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func configPath() string {
	path := flag.String("config", "", "Path to config.yaml (default $THEMEKIT_CONFIG or config/config.yaml)")
	flag.Parse()
	if *path != "" {
		return *path
	}
	if env := os.Getenv("THEMEKIT_CONFIG"); env != "" {
		return env
	}
	return "config/config.yaml"
}

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Stack().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer database.Close()

	themeCache := cache.New(cache.Config{
		Enabled: cfg.CacheEnabled(),
		TTL:     cfg.CacheTTL(),
	})

	assetStore, err := assets.NewFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("assets: %w", err)
	}

	svc, err := themes.NewService(themes.Config{
		Variant:     themes.Variant(cfg.Theme.Variant),
		MergePolicy: themes.MergePolicy(cfg.Theme.MergePolicy),
		Assets:      assetStore,
	}, db.NewThemeStore(database), themeCache)
	if err != nil {
		return fmt.Errorf("theme service: %w", err)
	}
	if svc.Variant() == themes.VariantGlobal {
		if err := svc.EnsureGlobal(ctx); err != nil {
			return fmt.Errorf("seed global theme: %w", err)
		}
	}

	if auth.InitClerk(cfg.Secrets.ClerkSecretKey) {
		log.Info().Msg("Clerk session verification enabled")
	}
	authenticator := auth.NewAuthenticator(cfg.Secrets.AppSecretKey, cfg.Auth.TokenTTL, !cfg.IsDevelopment())

	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled() {
		limiter = ratelimit.New(&ratelimit.Config{
			Window:    cfg.RateLimit.Window,
			MaxPerKey: cfg.RateLimit.MaxPerKey,
			MaxPerIP:  cfg.RateLimit.MaxPerIP,
		})
		defer limiter.Close()
	}

	sched, err := scheduler.New()
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if themeCache.Enabled() {
		if _, err := scheduler.RegisterCacheSweep(sched, themeCache, cfg.Cache.SweepCron); err != nil {
			_ = sched.Stop()
			return fmt.Errorf("register cache sweep: %w", err)
		}
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop scheduler")
		}
	}()

	server := newServer(cfg, serverDeps{
		service:       svc,
		assets:        assetStore,
		authenticator: authenticator,
		limiter:       limiter,
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Int("port", cfg.App.Port).
			Str("variant", string(svc.Variant())).
			Str("merge_policy", string(svc.MergePolicy())).
			Bool("cache", themeCache.Enabled()).
			Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}
