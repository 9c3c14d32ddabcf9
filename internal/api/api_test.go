package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jingle-gift/internal/farcaster"
	"jingle-gift/internal/mailbox"
	"jingle-gift/internal/pinata"
	"jingle-gift/internal/postcard"
)

type fakeGenerator struct {
	got   postcard.Request
	res   postcard.Result
	err   error
	panic bool
}

func (f *fakeGenerator) Generate(_ context.Context, req postcard.Request) (postcard.Result, error) {
	if f.panic {
		panic("boom")
	}
	f.got = req
	return f.res, f.err
}

type fakePins struct {
	configured bool
	uploaded   json.RawMessage
	data       json.RawMessage
	err        error
}

func (f *fakePins) Configured() bool { return f.configured }

func (f *fakePins) UploadGift(_ context.Context, gift json.RawMessage) (pinata.Pin, error) {
	f.uploaded = gift
	if f.err != nil {
		return pinata.Pin{}, f.err
	}
	return pinata.Pin{IPFSHash: "QmGift", URL: "https://gateway.example/ipfs/QmGift"}, nil
}

func (f *fakePins) Fetch(_ context.Context, hash string) (json.RawMessage, error) {
	return f.data, f.err
}

type fakeSocial struct {
	configured bool
	posts      []farcaster.Post
	postsErr   error
	friends    []farcaster.Friend
	signals    farcaster.TrustSignals
	warplet    farcaster.Warplet
	addrs      []string
	err        error
	gotFIDs    []int64
}

func (f *fakeSocial) Configured() bool { return f.configured }

func (f *fakeSocial) SearchUsers(_ context.Context, q string, limit int) (farcaster.Raw, error) {
	return farcaster.Raw{Status: http.StatusOK, Body: json.RawMessage(`{"result":{"users":[{"username":"` + q + `"}]}}`)}, nil
}

func (f *fakeSocial) User(_ context.Context, fid int64) (farcaster.Raw, error) {
	return farcaster.Raw{Status: http.StatusNotFound, Body: json.RawMessage(`{"message":"nope"}`)}, nil
}

func (f *fakeSocial) Users(_ context.Context, fids []int64) (farcaster.Raw, error) {
	f.gotFIDs = fids
	return farcaster.Raw{Status: http.StatusOK, Body: json.RawMessage(`{"users":[]}`)}, nil
}

func (f *fakeSocial) Following(_ context.Context, fid int64, limit int) (farcaster.Raw, error) {
	return farcaster.Raw{}, errors.New("upstream down")
}

func (f *fakeSocial) TopPosts(_ context.Context, fid int64) ([]farcaster.Post, error) {
	return f.posts, f.postsErr
}

func (f *fakeSocial) BestFriends(_ context.Context, fid int64) ([]farcaster.Friend, error) {
	return f.friends, f.err
}

func (f *fakeSocial) TrustSignals(_ context.Context, fid int64) (farcaster.TrustSignals, error) {
	return f.signals, f.err
}

func (f *fakeSocial) Warplet(_ context.Context, fid int64) (farcaster.Warplet, []string, error) {
	return f.warplet, f.addrs, f.err
}

func newTestHandler(opts Options) http.Handler {
	if opts.Mailbox == nil {
		opts.Mailbox = mailbox.NewMemoryStore(mailbox.Options{
			Now: func() time.Time { return time.UnixMilli(1766599201000) },
		})
	}
	return New(opts).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("content-type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestGenerateRequiresGeminiKey(t *testing.T) {
	h := newTestHandler(Options{Postcards: &fakeGenerator{}})

	rec, body := do(t, h, http.MethodPost, "/api/generate", `{"action":"generateCard"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Gemini API key not configured", body["error"])
}

func TestGenerateValidation(t *testing.T) {
	h := newTestHandler(Options{Postcards: &fakeGenerator{}, GeminiConfigured: true})

	rec, body := do(t, h, http.MethodGet, "/api/generate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", body["error"])

	rec, body = do(t, h, http.MethodPost, "/api/gemini", `{"action":"paint"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid action", body["error"])

	rec, _ = do(t, h, http.MethodPost, "/api/generate", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateReturnsResult(t *testing.T) {
	img := "aGVsbG8="
	gen := &fakeGenerator{res: postcard.Result{Success: true, Scene: "a snowy village", Greeting: "Merry Christmas, Bob!", Image: &img}}
	h := newTestHandler(Options{Postcards: gen, GeminiConfigured: true})

	rec, body := do(t, h, http.MethodPost, "/api/generate",
		`{"action":"generateCard","senderName":"Alice","recipientName":"Bob","message":"cheers"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "Alice", gen.got.SenderName)
	assert.Equal(t, "Bob", gen.got.RecipientName)
	assert.Equal(t, "cheers", gen.got.Message)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Merry Christmas, Bob!", body["greeting"])
	assert.Equal(t, img, body["image"])
	assert.Contains(t, body, "imageError")
	assert.Nil(t, body["imageError"])
}

func TestGenerateUnexpectedErrorIs500(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("template exploded")}
	h := newTestHandler(Options{Postcards: gen, GeminiConfigured: true})

	rec, body := do(t, h, http.MethodPost, "/api/generate", `{"action":"generateCard","senderName":"A"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "API request failed", body["error"])
	assert.Equal(t, "template exploded", body["details"])
}

func TestPanicIsRecovered(t *testing.T) {
	h := newTestHandler(Options{Postcards: &fakeGenerator{panic: true}, GeminiConfigured: true})

	rec, body := do(t, h, http.MethodPost, "/api/generate", `{"action":"generateCard"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", body["message"])
}

func TestPreflightAndCORS(t *testing.T) {
	h := newTestHandler(Options{})

	rec, _ := do(t, h, http.MethodOptions, "/api/mailbox", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestRequestIDPropagates(t *testing.T) {
	h := newTestHandler(Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec, _ = do(t, h, http.MethodGet, "/healthz", "")
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestMailboxFlow(t *testing.T) {
	h := newTestHandler(Options{})

	rec, body := do(t, h, http.MethodPost, "/api/mailbox", `{"action":"send","recipientFid":42,"ipfsHash":"QmA"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Postcard delivered to mailbox", body["message"])

	// string and number ids address the same mailbox
	rec, _ = do(t, h, http.MethodPost, "/api/mailbox", `{"action":"send","recipientFid":"42","ipfsHash":"QmB"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, h, http.MethodPost, "/api/mailbox", `{"action":"list","userFid":42}`)
	require.Equal(t, http.StatusOK, rec.Code)
	postcards := body["postcards"].([]any)
	require.Len(t, postcards, 2)
	first := postcards[0].(map[string]any)
	assert.Equal(t, "QmB", first["ipfsHash"])
	assert.EqualValues(t, 1766599201000, first["sentAt"])
	assert.Equal(t, false, first["read"])

	rec, body = do(t, h, http.MethodPost, "/api/mailbox", `{"action":"markRead","userFid":"42","ipfsHashes":["QmA"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Postcards marked as read", body["message"])
	assert.EqualValues(t, 1, body["marked"])

	_, body = do(t, h, http.MethodPost, "/api/mailbox", `{"action":"list","userFid":42}`)
	postcards = body["postcards"].([]any)
	assert.Equal(t, false, postcards[0].(map[string]any)["read"])
	assert.Equal(t, true, postcards[1].(map[string]any)["read"])
}

func TestMailboxEmptyListHasPostcards(t *testing.T) {
	h := newTestHandler(Options{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/mailbox", strings.NewReader(`{"action":"list","userFid":7}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"postcards":[]}`, rec.Body.String())
}

func TestMailboxValidation(t *testing.T) {
	h := newTestHandler(Options{})

	cases := []struct {
		name   string
		method string
		body   string
		status int
		err    string
	}{
		{"method", http.MethodGet, "", http.StatusMethodNotAllowed, "Method not allowed"},
		{"no action", http.MethodPost, `{}`, http.StatusBadRequest, "Missing action"},
		{"send without hash", http.MethodPost, `{"action":"send","recipientFid":1}`, http.StatusBadRequest, "Missing recipientFid or ipfsHash"},
		{"send zero fid", http.MethodPost, `{"action":"send","recipientFid":0,"ipfsHash":"Qm"}`, http.StatusBadRequest, "Missing recipientFid or ipfsHash"},
		{"list without fid", http.MethodPost, `{"action":"list"}`, http.StatusBadRequest, "Missing userFid"},
		{"markRead not array", http.MethodPost, `{"action":"markRead","userFid":1,"ipfsHashes":"Qm"}`, http.StatusBadRequest, "Missing userFid or ipfsHashes array"},
		{"markRead missing", http.MethodPost, `{"action":"markRead","userFid":1}`, http.StatusBadRequest, "Missing userFid or ipfsHashes array"},
		{"unknown", http.MethodPost, `{"action":"burn"}`, http.StatusBadRequest, "Unknown action: burn"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := do(t, h, tc.method, "/api/mailbox", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.err, body["error"])
		})
	}
}

type failingStore struct{ mailbox.Store }

func (failingStore) List(context.Context, string) ([]mailbox.Record, error) {
	return nil, errors.New("redis: connection refused")
}

func TestMailboxStoreFailureIs500(t *testing.T) {
	h := newTestHandler(Options{Mailbox: failingStore{}})

	rec, body := do(t, h, http.MethodPost, "/api/mailbox", `{"action":"list","userFid":1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, "redis: connection refused", body["message"])
}

func TestPinata(t *testing.T) {
	pins := &fakePins{configured: true, data: json.RawMessage(`{"id":"g1"}`)}
	h := newTestHandler(Options{Pinata: pins})

	rec, body := do(t, h, http.MethodPost, "/api/pinata", `{"action":"upload","data":{"id":"g1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "QmGift", body["ipfsHash"])
	assert.Equal(t, "https://gateway.example/ipfs/QmGift", body["url"])
	assert.JSONEq(t, `{"id":"g1"}`, string(pins.uploaded))

	rec, body = do(t, h, http.MethodPost, "/api/pinata", `{"action":"get","ipfsHash":"QmGift"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"id": "g1"}, body["data"])

	rec, body = do(t, h, http.MethodPost, "/api/pinata", `{"action":"pin"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid action", body["error"])

	rec, _ = do(t, h, http.MethodGet, "/api/pinata", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPinataNotConfigured(t *testing.T) {
	h := newTestHandler(Options{Pinata: &fakePins{}})

	rec, body := do(t, h, http.MethodPost, "/api/pinata", `{"action":"upload","data":{}}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Pinata JWT not configured", body["error"])
}

func TestNeynarPassthroughAndActions(t *testing.T) {
	social := &fakeSocial{
		configured: true,
		posts:      []farcaster.Post{{Image: "https://i.example/a.png", Likes: 3}},
		friends:    []farcaster.Friend{{FID: 9, Username: "pal", Score: 60}},
	}
	h := newTestHandler(Options{Social: social})

	rec, body := do(t, h, http.MethodGet, "/api/neynar?action=search&q=alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, body["result"])

	rec, _ = do(t, h, http.MethodGet, "/api/neynar?action=user&fid=5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/neynar?action=users&fids=1,2,3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{1, 2, 3}, social.gotFIDs)

	rec, body = do(t, h, http.MethodGet, "/api/neynar?action=following&fid=5", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "API request failed", body["error"])

	rec, body = do(t, h, http.MethodGet, "/api/neynar?action=top_casts&fid=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["images"], 1)

	rec, body = do(t, h, http.MethodGet, "/api/neynar?action=best_friends&fid=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["users"], 1)

	rec, body = do(t, h, http.MethodGet, "/api/neynar?action=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid action", body["error"])
}

func TestNeynarTopCastsDegrades(t *testing.T) {
	h := newTestHandler(Options{Social: &fakeSocial{configured: true, postsErr: errors.New("timeout")}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/neynar?action=top_casts&fid=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"images":[]}`, rec.Body.String())
}

func TestNeynarRequiresKey(t *testing.T) {
	h := newTestHandler(Options{Social: &fakeSocial{}})

	rec, body := do(t, h, http.MethodGet, "/api/neynar?action=search&q=a", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "API key not configured", body["error"])

	rec, body = do(t, h, http.MethodGet, "/api/warplet?fid=1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Neynar API key not configured", body["error"])
}

func TestWarplet(t *testing.T) {
	found := &fakeSocial{configured: true, addrs: []string{"0xabc"}, warplet: farcaster.Warplet{
		HasWarplet: true, TokenID: "77", ContractAddress: farcaster.WarpletContract, Address: "0xabc",
	}}
	rec, body := do(t, newTestHandler(Options{Social: found}), http.MethodGet, "/api/warplet?fid=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["hasWarplet"])
	assert.Equal(t, "77", body["tokenId"])

	missing := &fakeSocial{configured: true, addrs: []string{"0xabc"}}
	rec, body = do(t, newTestHandler(Options{Social: missing}), http.MethodGet, "/api/warplet?fid=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["hasWarplet"])
	assert.Equal(t, "No Warplet NFT found for this user", body["message"])
	assert.Equal(t, "base", body["debug"].(map[string]any)["chain"])

	noAddrs := &fakeSocial{configured: true}
	rec, _ = do(t, newTestHandler(Options{Social: noAddrs}), http.MethodGet, "/api/warplet?fid=3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	unknown := &fakeSocial{configured: true, err: farcaster.ErrUserNotFound}
	rec, body = do(t, newTestHandler(Options{Social: unknown}), http.MethodGet, "/api/warplet?fid=3", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", body["error"])

	rec, body = do(t, newTestHandler(Options{Social: found}), http.MethodGet, "/api/warplet", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FID required", body["error"])
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(Options{RateLimitRPS: 0.001, RateLimitBurst: 2})

	for i := 0; i < 2; i++ {
		rec, _ := do(t, h, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, body := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", body["error"])

	// a forged forwarding header does not buy a fresh bucket
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	spoofed := httptest.NewRecorder()
	h.ServeHTTP(spoofed, req)
	assert.Equal(t, http.StatusTooManyRequests, spoofed.Code)
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	h := newTestHandler(Options{RateLimitRPS: 0.001, RateLimitBurst: 1, TrustProxyHeaders: true})

	get := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, get("203.0.113.9, 10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, get("203.0.113.9"))
	assert.Equal(t, http.StatusOK, get("198.51.100.4"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	assert.Equal(t, "192.0.2.7", clientIP(req, false))
	assert.Equal(t, "203.0.113.9", clientIP(req, true))
}

func TestFIDUnmarshal(t *testing.T) {
	var v struct{ F FID }
	require.NoError(t, json.Unmarshal([]byte(`{"F":12345}`), &v))
	assert.Equal(t, FID("12345"), v.F)
	require.NoError(t, json.Unmarshal([]byte(`{"F":" 77 "}`), &v))
	assert.Equal(t, FID("77"), v.F)
	require.NoError(t, json.Unmarshal([]byte(`{"F":null}`), &v))
	assert.True(t, v.F.Missing())
	assert.Error(t, json.Unmarshal([]byte(`{"F":1.5}`), &v))
}
