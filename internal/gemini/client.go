package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const maxResponseSize = 32 << 20

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.apiKey) != ""
}

// GenerateContent sends one user turn made of prompt plus inline images.
func (c *Client) GenerateContent(ctx context.Context, model, prompt string, images []ImageInput, opts ContentOptions) (Response, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Response{}, errors.New("prompt is empty")
	}

	parts := []part{{Text: prompt}}
	for _, img := range images {
		if img.DataBase64 == "" {
			continue
		}
		parts = append(parts, part{InlineData: &blob{Data: img.DataBase64, MimeType: img.MimeType}})
	}

	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			Temperature:        opts.Temperature,
			MaxOutputTokens:    opts.MaxOutputTokens,
			ResponseModalities: opts.ResponseModalities,
		},
	}
	if opts.AspectRatio != "" {
		req.GenerationConfig.ImageConfig = &imageConfig{AspectRatio: opts.AspectRatio}
	}

	var decoded generateContentResponse
	if err := c.post(ctx, model+":generateContent", req, &decoded); err != nil {
		return Response{}, err
	}

	text, imgs := extractParts(decoded)
	return Response{Text: text, Images: imgs}, nil
}

// Predict calls an Imagen model, which takes a bare prompt and no references.
func (c *Client) Predict(ctx context.Context, model, prompt string, opts PredictOptions) ([]InlineImage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("prompt is empty")
	}

	sampleCount := opts.SampleCount
	if sampleCount <= 0 {
		sampleCount = 1
	}

	req := predictRequest{
		Instances: []predictInstance{{Prompt: prompt}},
		Parameters: predictParameters{
			SampleCount:       sampleCount,
			AspectRatio:       opts.AspectRatio,
			SafetyFilterLevel: opts.SafetyFilterLevel,
			PersonGeneration:  opts.PersonGeneration,
		},
	}

	var decoded predictResponse
	if err := c.post(ctx, model+":predict", req, &decoded); err != nil {
		return nil, err
	}

	var out []InlineImage
	for _, p := range decoded.Predictions {
		if p.BytesBase64Encoded == "" {
			continue
		}
		mimeType := p.MimeType
		if mimeType == "" {
			mimeType = "image/png"
		}
		out = append(out, InlineImage{Data: p.BytesBase64Encoded, MimeType: mimeType})
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, method string, payload any, out any) error {
	if c.httpClient == nil {
		return errors.New("http client is nil")
	}
	if !c.Configured() {
		return errors.New("gemini api key is empty")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s", c.baseURL, c.apiVersion, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.logger.Debug("gemini call failed", "method", method, "status", httpResp.StatusCode)
		return &APIError{StatusCode: httpResp.StatusCode, Status: httpResp.Status, Body: string(rawBody)}
	}

	if err := json.Unmarshal(rawBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractParts(resp generateContentResponse) (string, []InlineImage) {
	if len(resp.Candidates) == 0 {
		return "", nil
	}

	var textBuilder strings.Builder
	var images []InlineImage

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" {
			mimeType := p.InlineData.MimeType
			if mimeType == "" {
				mimeType = "image/png"
			}
			images = append(images, InlineImage{Data: p.InlineData.Data, MimeType: mimeType})
		}
	}

	return textBuilder.String(), images
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature        float64      `json:"temperature,omitempty"`
	MaxOutputTokens    int          `json:"maxOutputTokens,omitempty"`
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	SampleCount       int    `json:"sampleCount"`
	AspectRatio       string `json:"aspectRatio,omitempty"`
	SafetyFilterLevel string `json:"safetyFilterLevel,omitempty"`
	PersonGeneration  string `json:"personGeneration,omitempty"`
}

type predictResponse struct {
	Predictions []prediction `json:"predictions"`
}

type prediction struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}
