package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const maxResponseSize = 16 << 20

var ErrNotConfigured = errors.New("pinata jwt not configured")

type Options struct {
	JWT        string
	BaseURL    string
	GatewayURL string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	jwt        string
	baseURL    string
	gatewayURL string
	httpClient *http.Client
	logger     *slog.Logger
}

type Metadata struct {
	Name      string            `json:"name"`
	KeyValues map[string]string `json:"keyvalues,omitempty"`
}

type Pin struct {
	IPFSHash string `json:"ipfsHash"`
	URL      string `json:"url"`
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.pinata.cloud"
	}
	gatewayURL := strings.TrimRight(opts.GatewayURL, "/")
	if gatewayURL == "" {
		gatewayURL = "https://gateway.pinata.cloud"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		jwt:        strings.TrimSpace(opts.JWT),
		baseURL:    baseURL,
		gatewayURL: gatewayURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) Configured() bool {
	return c.jwt != ""
}

func (c *Client) GatewayURL(hash string) string {
	return c.gatewayURL + "/ipfs/" + hash
}

// UploadGift pins a postcard document. The pin is named after the gift's id
// (a fresh uuid when absent) and tagged with the sender's username.
func (c *Client) UploadGift(ctx context.Context, gift json.RawMessage) (Pin, error) {
	if !gjson.ValidBytes(gift) {
		return Pin{}, errors.New("gift data is not valid JSON")
	}

	doc := gjson.ParseBytes(gift)
	id := doc.Get("id").String()
	if id == "" {
		id = uuid.NewString()
	}
	sender := doc.Get("sender.username").String()
	if sender == "" {
		sender = "anonymous"
	}

	return c.UploadJSON(ctx, gift, Metadata{
		Name: "Gift-" + id,
		KeyValues: map[string]string{
			"type":   "christmas-gift",
			"sender": sender,
		},
	})
}

func (c *Client) UploadJSON(ctx context.Context, content json.RawMessage, meta Metadata) (Pin, error) {
	if !c.Configured() {
		return Pin{}, ErrNotConfigured
	}

	body, err := json.Marshal(struct {
		Content  json.RawMessage `json:"pinataContent"`
		Metadata Metadata        `json:"pinataMetadata"`
	}{Content: content, Metadata: meta})
	if err != nil {
		return Pin{}, fmt.Errorf("marshal pin request: %w", err)
	}

	c.logger.Debug("pinata upload", "name", meta.Name, "bytes", len(content))
	return c.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(body))
}

func (c *Client) UploadFile(ctx context.Context, name string, data []byte) (Pin, error) {
	if !c.Configured() {
		return Pin{}, ErrNotConfigured
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", name)
	if err != nil {
		return Pin{}, err
	}
	if _, err := fw.Write(data); err != nil {
		return Pin{}, err
	}
	meta, err := json.Marshal(Metadata{Name: name})
	if err != nil {
		return Pin{}, err
	}
	if err := w.WriteField("pinataMetadata", string(meta)); err != nil {
		return Pin{}, err
	}
	if err := w.Close(); err != nil {
		return Pin{}, err
	}

	return c.pin(ctx, "/pinning/pinFileToIPFS", w.FormDataContentType(), &buf)
}

// Fetch reads a pinned JSON document back through the gateway.
func (c *Client) Fetch(ctx context.Context, hash string) (json.RawMessage, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, errors.New("ipfs hash required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GatewayURL(hash), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	raw, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("fetch from IPFS: status %d", status)
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("IPFS content is not JSON")
	}
	return json.RawMessage(raw), nil
}

func (c *Client) pin(ctx context.Context, path, contentType string, body io.Reader) (Pin, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return Pin{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	raw, status, err := c.do(req)
	if err != nil {
		return Pin{}, err
	}
	if status < 200 || status > 299 {
		c.logger.Warn("pinata upload failed", "status", status)
		return Pin{}, fmt.Errorf("upload to IPFS: %d %s", status, strings.TrimSpace(string(raw)))
	}

	hash := gjson.GetBytes(raw, "IpfsHash").String()
	if hash == "" {
		return Pin{}, errors.New("pinata response has no IpfsHash")
	}
	return Pin{IPFSHash: hash, URL: c.GatewayURL(hash)}, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return raw, resp.StatusCode, nil
}
