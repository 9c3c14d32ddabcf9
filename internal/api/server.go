package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"jingle-gift/internal/farcaster"
	"jingle-gift/internal/mailbox"
	"jingle-gift/internal/metrics"
	"jingle-gift/internal/pinata"
	"jingle-gift/internal/postcard"
)

const maxBodyBytes = 8 << 20

type Generator interface {
	Generate(ctx context.Context, req postcard.Request) (postcard.Result, error)
}

type PinStore interface {
	Configured() bool
	UploadGift(ctx context.Context, gift json.RawMessage) (pinata.Pin, error)
	Fetch(ctx context.Context, hash string) (json.RawMessage, error)
}

type SocialGraph interface {
	Configured() bool
	SearchUsers(ctx context.Context, q string, limit int) (farcaster.Raw, error)
	User(ctx context.Context, fid int64) (farcaster.Raw, error)
	Users(ctx context.Context, fids []int64) (farcaster.Raw, error)
	Following(ctx context.Context, fid int64, limit int) (farcaster.Raw, error)
	TopPosts(ctx context.Context, fid int64) ([]farcaster.Post, error)
	BestFriends(ctx context.Context, fid int64) ([]farcaster.Friend, error)
	TrustSignals(ctx context.Context, fid int64) (farcaster.TrustSignals, error)
	Warplet(ctx context.Context, fid int64) (farcaster.Warplet, []string, error)
}

type Options struct {
	Postcards Generator
	// GeminiConfigured gates /api/generate; without a key every request
	// fails fast with 500.
	GeminiConfigured bool
	Mailbox          mailbox.Store
	Pinata           PinStore
	Social           SocialGraph

	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	// TrustProxyHeaders keys the rate limiter on X-Forwarded-For.
	TrustProxyHeaders bool
	Logger            *slog.Logger
}

type Server struct {
	postcards        Generator
	geminiConfigured bool
	mailbox          mailbox.Store
	pinata           PinStore
	social           SocialGraph
	requestTimeout   time.Duration
	limiter          *RateLimiter
	logger           *slog.Logger
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	s := &Server{
		postcards:        opts.Postcards,
		geminiConfigured: opts.GeminiConfigured,
		mailbox:          opts.Mailbox,
		pinata:           opts.Pinata,
		social:           opts.Social,
		requestTimeout:   timeout,
		logger:           logger,
	}
	if opts.RateLimitRPS > 0 {
		s.limiter = NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, opts.TrustProxyHeaders, logger)
	}
	return s
}

// Handler builds the router wrapped in the outer middleware chain.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(metricsMiddleware, accessLogMiddleware(s.logger))
	if s.limiter != nil {
		r.Use(s.limiter.Handler)
	}

	r.HandleFunc("/api/generate", s.handleGenerate)
	r.HandleFunc("/api/gemini", s.handleGenerate)
	r.HandleFunc("/api/mailbox", s.handleMailbox)
	r.HandleFunc("/api/pinata", s.handlePinata)
	r.HandleFunc("/api/neynar", s.handleNeynar)
	r.HandleFunc("/api/warplet", s.handleWarplet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "Not found"})
	})

	return recoveryMiddleware(s.logger)(requestIDMiddleware(corsMiddleware(r)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
