package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"jingle-gift/internal/api"
	"jingle-gift/internal/app"
	"jingle-gift/internal/config"
	"jingle-gift/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(cfg, logger)
	if err != nil {
		logger.Error("pipeline init failed", "err", err)
		os.Exit(1)
	}

	store, closeStore, err := app.OpenMailbox(ctx, cfg, logger)
	if err != nil {
		logger.Error("mailbox init failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()

	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, /api/generate will answer 500")
	}

	server := api.New(api.Options{
		Postcards:         components.Postcards,
		GeminiConfigured:  components.Gemini.Configured(),
		Mailbox:           store,
		Pinata:            app.NewPinata(cfg, components.HTTPClient, logger),
		Social:            app.NewFarcaster(cfg, components.HTTPClient, logger),
		RequestTimeout:    cfg.RequestTimeout,
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
		TrustProxyHeaders: cfg.TrustProxy,
		Logger:            logger,
	})

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "err", err)
		}
	}()

	logger.Info("web started",
		"addr", cfg.WebAddr,
		"providers", components.Images.Providers(),
		"redis", cfg.RedisURL != "",
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
	logger.Info("shutting down")
}
