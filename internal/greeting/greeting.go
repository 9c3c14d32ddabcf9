package greeting

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"jingle-gift/internal/catalog"
	"jingle-gift/internal/gemini"
	"jingle-gift/internal/metrics"
)

const (
	defaultTemperature     = 0.9
	defaultMaxOutputTokens = 512
)

var ErrEmptyGreeting = errors.New("model returned empty greeting")

type Options struct {
	Client          *gemini.Client
	Model           string
	Temperature     float64
	MaxOutputTokens int
	DefaultGreeting string
	Words           catalog.WordBand
	Logger          *slog.Logger
}

type Generator struct {
	client          *gemini.Client
	model           string
	temperature     float64
	maxOutputTokens int
	defaultGreeting string
	words           catalog.WordBand
	logger          *slog.Logger
}

func New(opts Options) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	maxTokens := opts.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxOutputTokens
	}
	def := strings.TrimSpace(opts.DefaultGreeting)
	if def == "" {
		def = "Merry Christmas!"
	}

	return &Generator{
		client:          opts.Client,
		model:           opts.Model,
		temperature:     temperature,
		maxOutputTokens: maxTokens,
		defaultGreeting: def,
		words:           opts.Words,
		logger:          logger,
	}
}

// Generate makes one text call. On any failure it returns the caller's
// message, or the default greeting, together with the cause. The returned
// string is never empty.
func (g *Generator) Generate(ctx context.Context, prompt, message string) (string, error) {
	text, err := g.generate(ctx, prompt)
	if err != nil {
		metrics.RecordGreeting(false)
		g.logger.Warn("greeting generation failed", "err", err)
		return g.Fallback(message), err
	}

	metrics.RecordGreeting(true)
	if n := len(strings.Fields(text)); g.words.Max > 0 && (n < g.words.Min || n > g.words.Max) {
		g.logger.Warn("greeting outside word band", "words", n, "min", g.words.Min, "max", g.words.Max)
	}
	return text, nil
}

func (g *Generator) Fallback(message string) string {
	if m := strings.TrimSpace(message); m != "" {
		return m
	}
	return g.defaultGreeting
}

func (g *Generator) generate(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", errors.New("gemini client is nil")
	}

	resp, err := g.client.GenerateContent(ctx, g.model, prompt, nil, gemini.ContentOptions{
		Temperature:     g.temperature,
		MaxOutputTokens: g.maxOutputTokens,
	})
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyGreeting
	}
	return text, nil
}
