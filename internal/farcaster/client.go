package farcaster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxResponseSize = 8 << 20

var (
	ErrNotConfigured = errors.New("neynar api key not configured")
	ErrUserNotFound  = errors.New("user not found")
)

type Options struct {
	APIKey         string
	BaseURL        string
	OpenSeaAPIKey  string
	OpenSeaBaseURL string
	ScoreThreshold float64
	HTTPClient     *http.Client
	Logger         *slog.Logger
	Now            func() time.Time
}

// Client talks to the Neynar v2 API and, for Warplet checks, to OpenSea.
type Client struct {
	apiKey         string
	baseURL        string
	openSeaAPIKey  string
	openSeaBaseURL string
	scoreThreshold float64
	httpClient     *http.Client
	logger         *slog.Logger
	now            func() time.Time
}

// Raw is an upstream answer relayed as is.
type Raw struct {
	Status int
	Body   json.RawMessage
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.neynar.com"
	}
	openSeaBaseURL := strings.TrimRight(opts.OpenSeaBaseURL, "/")
	if openSeaBaseURL == "" {
		openSeaBaseURL = "https://api.opensea.io"
	}
	threshold := opts.ScoreThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		apiKey:         strings.TrimSpace(opts.APIKey),
		baseURL:        baseURL,
		openSeaAPIKey:  strings.TrimSpace(opts.OpenSeaAPIKey),
		openSeaBaseURL: openSeaBaseURL,
		scoreThreshold: threshold,
		httpClient:     httpClient,
		logger:         logger,
		now:            now,
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) SearchUsers(ctx context.Context, q string, limit int) (Raw, error) {
	if limit <= 0 {
		limit = 10
	}
	return c.get(ctx, "/v2/farcaster/user/search", url.Values{
		"q":     {q},
		"limit": {strconv.Itoa(limit)},
	})
}

func (c *Client) User(ctx context.Context, fid int64) (Raw, error) {
	return c.Users(ctx, []int64{fid})
}

func (c *Client) Users(ctx context.Context, fids []int64) (Raw, error) {
	return c.get(ctx, "/v2/farcaster/user/bulk", url.Values{"fids": {joinFIDs(fids)}})
}

func (c *Client) Following(ctx context.Context, fid int64, limit int) (Raw, error) {
	if limit <= 0 {
		limit = 5
	}
	return c.get(ctx, "/v2/farcaster/following", url.Values{
		"fid":   {strconv.FormatInt(fid, 10)},
		"limit": {strconv.Itoa(limit)},
	})
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (Raw, error) {
	if !c.Configured() {
		return Raw{}, ErrNotConfigured
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Raw{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	return c.do(req)
}

// getOK is get for callers that need a usable body.
func (c *Client) getOK(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	raw, err := c.get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if raw.Status < 200 || raw.Status > 299 {
		return nil, fmt.Errorf("neynar %s: status %d", path, raw.Status)
	}
	return raw.Body, nil
}

func (c *Client) do(req *http.Request) (Raw, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Raw{}, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Raw{}, fmt.Errorf("read response: %w", err)
	}
	if !json.Valid(body) {
		return Raw{Status: resp.StatusCode}, fmt.Errorf("%s: non-JSON response (status %d)", req.URL.Path, resp.StatusCode)
	}
	return Raw{Status: resp.StatusCode, Body: body}, nil
}

func joinFIDs(fids []int64) string {
	parts := make([]string, 0, len(fids))
	for _, fid := range fids {
		parts = append(parts, strconv.FormatInt(fid, 10))
	}
	return strings.Join(parts, ",")
}
