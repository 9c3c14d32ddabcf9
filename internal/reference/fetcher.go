package reference

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strings"
)

const (
	defaultMimeType = "image/jpeg"
	maxBytes        = 10 << 20
)

// Image is a reference photo ready to be inlined into a model request.
type Image struct {
	Data     string // base64, no data: prefix
	MimeType string
}

type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	MaxBytes   int64
}

type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
	maxBytes   int64
}

func NewFetcher(opts Options) *Fetcher {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limit := opts.MaxBytes
	if limit <= 0 {
		limit = maxBytes
	}

	return &Fetcher{
		httpClient: httpClient,
		logger:     logger,
		maxBytes:   limit,
	}
}

// Fetch downloads url and encodes it for inline use. An empty url yields
// (nil, nil) without touching the network. Any failure yields a nil image
// and the cause; callers continue without a reference.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Image, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, nil
	}

	if strings.HasPrefix(url, "data:") {
		img, ok := decodeDataURL(url)
		if !ok {
			return nil, errors.New("invalid data url")
		}
		return img, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch reference: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read reference: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("reference exceeds %d bytes", f.maxBytes)
	}
	if len(body) == 0 {
		return nil, errors.New("reference is empty")
	}

	return &Image{
		Data:     base64.StdEncoding.EncodeToString(body),
		MimeType: resolveMimeType(resp.Header.Get("Content-Type"), body),
	}, nil
}

// FetchOrNil is Fetch with the error logged and dropped.
func (f *Fetcher) FetchOrNil(ctx context.Context, url string) *Image {
	img, err := f.Fetch(ctx, url)
	if err != nil {
		f.logger.Warn("reference fetch failed", "url", redact(url), "err", err)
		return nil
	}
	return img
}

func resolveMimeType(header string, body []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if sniffed := http.DetectContentType(body); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return defaultMimeType
}

var dataURLRegex = regexp.MustCompile(`^data:([^;,]+)?(;[^,]*)?,`)

func decodeDataURL(dataURL string) (*Image, bool) {
	matches := dataURLRegex.FindStringSubmatch(dataURL)
	if matches == nil || !strings.Contains(matches[2], "base64") {
		return nil, false
	}

	data := StripDataURLPrefix(dataURL)
	if data == "" {
		return nil, false
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return nil, false
	}

	mimeType := matches[1]
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	return &Image{Data: data, MimeType: mimeType}, true
}

func StripDataURLPrefix(value string) string {
	if idx := strings.IndexByte(value, ','); idx >= 0 {
		return value[idx+1:]
	}
	return value
}

func redact(url string) string {
	if strings.HasPrefix(url, "data:") {
		return "data:…"
	}
	if idx := strings.IndexByte(url, '?'); idx >= 0 {
		return url[:idx]
	}
	return url
}
