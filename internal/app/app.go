// Package app assembles the postcard pipeline and its integrations from
// configuration. Every entry point builds its components here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"jingle-gift/internal/catalog"
	"jingle-gift/internal/config"
	"jingle-gift/internal/farcaster"
	"jingle-gift/internal/gemini"
	"jingle-gift/internal/greeting"
	"jingle-gift/internal/httpclient"
	"jingle-gift/internal/imagegen"
	"jingle-gift/internal/mailbox"
	"jingle-gift/internal/pinata"
	"jingle-gift/internal/postcard"
	"jingle-gift/internal/prompt"
	"jingle-gift/internal/reference"
	"jingle-gift/internal/scene"
)

type Components struct {
	HTTPClient *http.Client
	Catalog    *catalog.Catalog
	Scenes     *scene.Selector
	Gemini     *gemini.Client
	Images     *imagegen.Orchestrator
	Postcards  *postcard.Service
}

// Build wires the generation pipeline. Missing provider keys do not fail
// here; the providers report them per attempt.
func Build(cfg config.Config, logger *slog.Logger) (*Components, error) {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	scenes, err := scene.NewSelector(cat.Scenes(), scene.Options{})
	if err != nil {
		return nil, err
	}
	prompts, err := prompt.NewBuilder(cat)
	if err != nil {
		return nil, err
	}

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
		UserAgent:  cfg.UserAgent,
	})

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	fetcher := reference.NewFetcher(reference.Options{
		HTTPClient: httpClient,
		Logger:     logger,
	})

	images := imagegen.New(imagegen.Options{
		Providers:   imageProviders(cfg, gem, httpClient),
		Placeholder: placeholder(cfg, fetcher),
		Logger:      logger,
	})

	greetings := greeting.New(greeting.Options{
		Client:          gem,
		Model:           cfg.GeminiTextModel,
		DefaultGreeting: cat.DefaultGreeting,
		Words:           cat.GreetingWords,
		Logger:          logger,
	})

	postcards, err := postcard.New(postcard.Options{
		Scenes:     scenes,
		Prompts:    prompts,
		References: fetcher,
		Images:     images,
		Greetings:  greetings,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &Components{
		HTTPClient: httpClient,
		Catalog:    cat,
		Scenes:     scenes,
		Gemini:     gem,
		Images:     images,
		Postcards:  postcards,
	}, nil
}

func imageProviders(cfg config.Config, gem *gemini.Client, httpClient *http.Client) []imagegen.Provider {
	providers := []imagegen.Provider{
		&imagegen.GeminiReference{Client: gem, Model: cfg.GeminiImageModel, AspectRatio: cfg.ImageAspectRatio},
		&imagegen.Imagen{Client: gem, Model: cfg.ImagenModel, AspectRatio: cfg.ImageAspectRatio},
	}
	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, imagegen.NewOpenAI(imagegen.OpenAIOptions{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIImageModel,
			HTTPClient: httpClient,
		}))
	}
	return providers
}

func placeholder(cfg config.Config, fetcher *reference.Fetcher) *imagegen.Placeholder {
	if !cfg.PlaceholderEnabled {
		return nil
	}
	return &imagegen.Placeholder{URL: cfg.PlaceholderImageURL, Fetcher: fetcher}
}

func NewFarcaster(cfg config.Config, httpClient *http.Client, logger *slog.Logger) *farcaster.Client {
	return farcaster.New(farcaster.Options{
		APIKey:         cfg.NeynarAPIKey,
		BaseURL:        cfg.NeynarBaseURL,
		OpenSeaAPIKey:  cfg.OpenSeaAPIKey,
		OpenSeaBaseURL: cfg.OpenSeaBaseURL,
		ScoreThreshold: cfg.TrustScoreThreshold,
		HTTPClient:     httpClient,
		Logger:         logger,
	})
}

func NewPinata(cfg config.Config, httpClient *http.Client, logger *slog.Logger) *pinata.Client {
	return pinata.New(pinata.Options{
		JWT:        cfg.PinataJWT,
		BaseURL:    cfg.PinataBaseURL,
		GatewayURL: cfg.PinataGatewayURL,
		HTTPClient: httpClient,
		Logger:     logger,
	})
}

// OpenMailbox returns the Redis store when REDIS_URL is set and an
// in-process store otherwise. The returned func releases the connection.
func OpenMailbox(ctx context.Context, cfg config.Config, logger *slog.Logger) (mailbox.Store, func() error, error) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, mailbox is in memory and will not survive restarts")
		return mailbox.NewMemoryStore(mailbox.Options{}), func() error { return nil }, nil
	}

	client, err := mailbox.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open mailbox: %w", err)
	}
	store := mailbox.NewRedisStore(client, mailbox.RedisOptions{
		MaxRetries: cfg.MailboxMaxRetries,
		Logger:     logger,
	})
	return store, client.Close, nil
}
