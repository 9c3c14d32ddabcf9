package postcard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"jingle-gift/internal/imagegen"
	"jingle-gift/internal/prompt"
	"jingle-gift/internal/reference"
	"jingle-gift/internal/scene"
)

type Request struct {
	SenderName      string `json:"senderName"`
	SenderAvatar    string `json:"senderAvatar,omitempty"`
	RecipientName   string `json:"recipientName,omitempty"`
	RecipientAvatar string `json:"recipientAvatar,omitempty"`
	Message         string `json:"message,omitempty"`
}

// Result is the response contract of a generation. Image and ImageError
// encode as null when absent.
type Result struct {
	Success       bool    `json:"success"`
	Scene         string  `json:"scene"`
	Greeting      string  `json:"greeting"`
	Image         *string `json:"image"`
	ImageMimeType string  `json:"imageMimeType,omitempty"`
	ImageProvider string  `json:"imageProvider,omitempty"`
	ImageError    *string `json:"imageError"`
	scene.Classification
}

type SceneSource interface {
	Pick() string
}

type ReferenceFetcher interface {
	FetchOrNil(ctx context.Context, url string) *reference.Image
}

type ImageGenerator interface {
	Generate(ctx context.Context, in imagegen.Input) imagegen.Outcome
}

type GreetingGenerator interface {
	Generate(ctx context.Context, prompt, message string) (string, error)
}

type Options struct {
	Scenes     SceneSource
	Prompts    *prompt.Builder
	References ReferenceFetcher
	Images     ImageGenerator
	Greetings  GreetingGenerator
	Logger     *slog.Logger
}

type Service struct {
	scenes     SceneSource
	prompts    *prompt.Builder
	references ReferenceFetcher
	images     ImageGenerator
	greetings  GreetingGenerator
	logger     *slog.Logger
}

func New(opts Options) (*Service, error) {
	switch {
	case opts.Scenes == nil:
		return nil, errors.New("scene source is required")
	case opts.Prompts == nil:
		return nil, errors.New("prompt builder is required")
	case opts.References == nil:
		return nil, errors.New("reference fetcher is required")
	case opts.Images == nil:
		return nil, errors.New("image generator is required")
	case opts.Greetings == nil:
		return nil, errors.New("greeting generator is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Service{
		scenes:     opts.Scenes,
		prompts:    opts.Prompts,
		references: opts.References,
		images:     opts.Images,
		greetings:  opts.Greetings,
		logger:     logger,
	}, nil
}

// Generate runs the full pipeline. Provider failures degrade the result and
// never surface as an error; only prompt rendering can fail.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	picked := s.scenes.Pick()

	greetingPrompt, err := s.prompts.Greeting(prompt.GreetingInput{
		Scene:         picked,
		SenderName:    req.SenderName,
		RecipientName: req.RecipientName,
		Message:       req.Message,
	})
	if err != nil {
		return Result{}, err
	}

	var (
		outcome  imagegen.Outcome
		greeting string
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		refs := s.fetchReferences(gctx, req)

		in := prompt.ImageInput{
			Scene:         picked,
			SenderName:    req.SenderName,
			RecipientName: req.RecipientName,
			References:    len(refs),
		}
		imagePrompt, err := s.prompts.Image(in)
		if err != nil {
			return err
		}
		fallbackPrompt, err := s.prompts.Fallback(in)
		if err != nil {
			return err
		}

		outcome = s.images.Generate(gctx, imagegen.Input{
			Prompt:         imagePrompt,
			FallbackPrompt: fallbackPrompt,
			References:     refs,
		})
		return nil
	})

	g.Go(func() error {
		// errors are already logged by the generator; the fallback text is used
		greeting, _ = s.greetings.Generate(gctx, greetingPrompt, req.Message)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(greeting) == "" {
		greeting = fallbackGreeting(req.Message, s.prompts.DefaultGreeting())
	}

	res := Result{
		Success:        true,
		Scene:          picked,
		Greeting:       greeting,
		Classification: scene.Classify(greeting),
	}
	if outcome.Image != nil {
		data := outcome.Image.Data
		res.Image = &data
		res.ImageMimeType = outcome.Image.MimeType
		res.ImageProvider = outcome.Image.Provider
	}
	if text := outcome.ErrorText(); text != "" {
		res.ImageError = &text
	}

	s.logger.Info("postcard generated",
		"scene", picked,
		"scene_type", res.SceneType,
		"image_provider", res.ImageProvider,
		"image_ok", outcome.Err == nil,
		"dur_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// fetchReferences downloads both avatars concurrently. The image prompt
// numbers photos sender first, so a recipient photo is only sent alongside
// a sender photo and is not fetched at all without a sender avatar.
func (s *Service) fetchReferences(ctx context.Context, req Request) []reference.Image {
	if strings.TrimSpace(req.SenderAvatar) == "" {
		return nil
	}

	var sender, recipient *reference.Image

	var g errgroup.Group
	g.Go(func() error {
		sender = s.references.FetchOrNil(ctx, req.SenderAvatar)
		return nil
	})
	g.Go(func() error {
		recipient = s.references.FetchOrNil(ctx, req.RecipientAvatar)
		return nil
	})
	_ = g.Wait()

	if sender == nil {
		if recipient != nil {
			s.logger.Debug("dropping recipient reference without sender reference")
		}
		return nil
	}

	refs := []reference.Image{*sender}
	if recipient != nil {
		refs = append(refs, *recipient)
	}
	return refs
}

func fallbackGreeting(message, def string) string {
	if m := strings.TrimSpace(message); m != "" {
		return m
	}
	if def != "" {
		return def
	}
	return "Merry Christmas!"
}
