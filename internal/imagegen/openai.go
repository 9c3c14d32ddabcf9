package imagegen

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const OpenAIName = "openai"

type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Size       string
	HTTPClient *http.Client
}

// OpenAI is a prompt-only last resort backed by the images API.
type OpenAI struct {
	client *openai.Client
	model  string
	size   string
}

func NewOpenAI(opts OpenAIOptions) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		cfg.BaseURL = base
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}

	model := opts.Model
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	size := opts.Size
	if size == "" {
		size = openai.CreateImageSize1024x1024
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		size:   size,
	}
}

func (p *OpenAI) Name() string { return OpenAIName }

func (p *OpenAI) Attempt(ctx context.Context, in Input) (Image, error) {
	prompt := strings.TrimSpace(in.FallbackPrompt)
	if prompt == "" {
		prompt = strings.TrimSpace(in.Prompt)
	}
	if prompt == "" {
		return Image{}, errors.New("prompt is empty")
	}

	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          p.model,
		N:              1,
		Size:           p.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return Image{}, err
	}

	for _, d := range resp.Data {
		if d.B64JSON != "" {
			return Image{Data: d.B64JSON, MimeType: "image/png", Provider: OpenAIName}, nil
		}
	}
	return Image{}, ErrNoImage
}
