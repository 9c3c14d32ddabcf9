package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"jingle-gift/internal/metrics"
	"jingle-gift/internal/reference"
)

// ErrNoImage marks a 2xx answer that carried no image payload.
var ErrNoImage = errors.New("no image in response")

type Input struct {
	// Prompt is used by providers that accept reference photos.
	Prompt string
	// FallbackPrompt is the reference-free variant for prompt-only providers.
	FallbackPrompt string
	References     []reference.Image
}

type Image struct {
	Data     string // base64
	MimeType string
	Provider string
}

// Provider makes exactly one attempt per call.
type Provider interface {
	Name() string
	Attempt(ctx context.Context, in Input) (Image, error)
}

type Attempt struct {
	Provider string
	Err      error
	Duration time.Duration
}

// Outcome is the result of walking the chain. Err holds the last failure and
// stays set when a placeholder image is substituted.
type Outcome struct {
	Image       *Image
	Err         error
	Placeholder bool
	Attempts    []Attempt
}

// ErrorText is the diagnostic string for the response body, empty when the
// chain produced a real image.
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

type Options struct {
	Providers   []Provider
	Placeholder *Placeholder
	Logger      *slog.Logger
}

type Orchestrator struct {
	providers   []Provider
	placeholder *Placeholder
	logger      *slog.Logger
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Orchestrator{
		providers:   opts.Providers,
		placeholder: opts.Placeholder,
		logger:      logger,
	}
}

func (o *Orchestrator) Providers() []string {
	names := make([]string, 0, len(o.providers))
	for _, p := range o.providers {
		names = append(names, p.Name())
	}
	return names
}

// Generate tries each provider once in order and stops at the first image.
func (o *Orchestrator) Generate(ctx context.Context, in Input) Outcome {
	var out Outcome
	lastErr := errors.New("no image providers configured")

	for _, p := range o.providers {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		start := time.Now()
		img, err := p.Attempt(ctx, in)
		if err == nil && img.Data == "" {
			err = ErrNoImage
		}
		dur := time.Since(start)

		metrics.RecordImageAttempt(p.Name(), err == nil, dur)
		out.Attempts = append(out.Attempts, Attempt{Provider: p.Name(), Err: err, Duration: dur})

		if err != nil {
			lastErr = fmt.Errorf("%s: %w", p.Name(), err)
			o.logger.Warn("image provider failed", "provider", p.Name(), "dur_ms", dur.Milliseconds(), "err", err)
			continue
		}

		if img.Provider == "" {
			img.Provider = p.Name()
		}
		if img.MimeType == "" {
			img.MimeType = "image/png"
		}
		o.logger.Info("image generated", "provider", img.Provider, "dur_ms", dur.Milliseconds())
		out.Image = &img
		return out
	}

	out.Err = lastErr

	if o.placeholder != nil {
		img := o.placeholder.Image(ctx)
		out.Image = &img
		out.Placeholder = true
	}
	return out
}
