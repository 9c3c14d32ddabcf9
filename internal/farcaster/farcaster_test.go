package farcaster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreWeights(t *testing.T) {
	cases := []struct {
		name string
		in   Interaction
		want int
	}{
		{"likes", Interaction{Likes: 4}, 4},
		{"recasts", Interaction{Recasts: 2}, 6},
		{"replies", Interaction{Replies: 3}, 15},
		{"mentions", Interaction{Mentions: 1}, 4},
		{"mutual", Interaction{Following: true, FollowedBy: true}, 50},
		{"following only", Interaction{Following: true}, 20},
		{"followed by only", Interaction{FollowedBy: true}, 0},
		{"mixed", Interaction{Likes: 1, Recasts: 1, Replies: 1, Mentions: 1, Following: true, FollowedBy: true}, 63},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(tc.in))
		})
	}
}

func TestRankFriendsOrderAndLimit(t *testing.T) {
	friends := RankFriends([]Interaction{
		{FID: 9, Likes: 10},
		{FID: 3, Replies: 2},
		{FID: 7, Likes: 10},
		{FID: 1},
		{FID: 4, Following: true, FollowedBy: true},
		{FID: 5, Mentions: 1},
		{FID: 6, Recasts: 1},
		{FID: 2, Following: true},
	}, 5)

	got := make([]int64, 0, len(friends))
	for _, f := range friends {
		got = append(got, f.FID)
	}
	assert.Equal(t, []int64{4, 2, 3, 7, 9}, got)
	assert.Equal(t, 50, friends[0].Score)
}

type fakeNeynar struct {
	t        *testing.T
	handlers map[string]string
	statuses map[string]int
	queries  map[string]string
}

func (f *fakeNeynar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	require.Equal(f.t, "neynar-key", r.Header.Get("x-api-key"))
	if f.queries != nil {
		f.queries[r.URL.Path] = r.URL.RawQuery
	}
	if status, ok := f.statuses[r.URL.Path]; ok {
		w.WriteHeader(status)
		w.Write([]byte(`{"message":"nope"}`))
		return
	}
	body, ok := f.handlers[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"not found"}`))
		return
	}
	w.Write([]byte(body))
}

func newClient(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts.APIKey = "neynar-key"
	opts.BaseURL = srv.URL
	if opts.OpenSeaBaseURL == "" {
		opts.OpenSeaBaseURL = srv.URL
	}
	opts.HTTPClient = srv.Client()
	return New(opts)
}

func TestPassthroughKeepsStatus(t *testing.T) {
	fake := &fakeNeynar{
		t:        t,
		handlers: map[string]string{"/v2/farcaster/user/search": `{"result":{"users":[]}}`},
		statuses: map[string]int{"/v2/farcaster/following": http.StatusTooManyRequests},
		queries:  map[string]string{},
	}
	c := newClient(t, fake, Options{})

	raw, err := c.SearchUsers(context.Background(), "ali ce", 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, raw.Status)
	assert.JSONEq(t, `{"result":{"users":[]}}`, string(raw.Body))
	assert.Equal(t, "limit=10&q=ali+ce", fake.queries["/v2/farcaster/user/search"])

	raw, err = c.Following(context.Background(), 3, 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, raw.Status)
	assert.Equal(t, "fid=3&limit=5", fake.queries["/v2/farcaster/following"])

	_, err = c.Users(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "fids=1%2C2", fake.queries["/v2/farcaster/user/bulk"])
}

func TestNotConfigured(t *testing.T) {
	c := New(Options{})
	_, err := c.SearchUsers(context.Background(), "x", 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.TopPosts(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTopPosts(t *testing.T) {
	casts := `{"casts":[
		{"hash":"0xold","timestamp":"2024-12-30T10:00:00.000Z","text":"old","embeds":[{"url":"https://i.imgur.com/a.png"}],"reactions":{"likes_count":999,"recasts_count":0}},
		{"hash":"0xnoimg","timestamp":"2025-02-01T10:00:00Z","text":"text only","embeds":[{"url":"https://example.com/post"}],"reactions":{"likes_count":500}},
		{"hash":"0xa","timestamp":"2025-03-01T10:00:00Z","text":"` + strings.Repeat("é", 120) + `","embeds":[{"cast_id":{}},{"url":"https://imagedelivery.net/x/y"}],"reactions":{"likes_count":5,"recasts_count":5}},
		{"hash":"0xb","timestamp":"2025-04-01T10:00:00Z","text":"b","embeds":[{"url":"https://cdn/pic.jpg"}],"reactions":{"likes_count":30,"recasts_count":1}},
		{"hash":"0xc","timestamp":"2025-05-01T10:00:00Z","text":"c","embeds":[{"url":"https://cdn/pic.webp"}],"reactions":{"likes_count":1}},
		{"hash":"0xd","timestamp":"2025-06-01T10:00:00Z","text":"d","embeds":[{"url":"https://cdn/anim.gif"}],"reactions":{"likes_count":12,"recasts_count":0}}
	]}`
	fake := &fakeNeynar{t: t, handlers: map[string]string{"/v2/farcaster/feed/user/casts": casts}, queries: map[string]string{}}
	c := newClient(t, fake, Options{Now: func() time.Time { return time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC) }})

	posts, err := c.TopPosts(context.Background(), 77)
	require.NoError(t, err)

	require.Len(t, posts, 3)
	assert.Equal(t, "0xb", posts[0].Hash)
	assert.Equal(t, "0xd", posts[1].Hash)
	assert.Equal(t, "0xa", posts[2].Hash)
	assert.Equal(t, "https://imagedelivery.net/x/y", posts[2].Image)
	assert.Equal(t, 100, len([]rune(posts[2].Text)))
	assert.Contains(t, fake.queries["/v2/farcaster/feed/user/casts"], "include_replies=false")
	assert.Contains(t, fake.queries["/v2/farcaster/feed/user/casts"], "limit=150")
}

func TestBestFriendsNative(t *testing.T) {
	fake := &fakeNeynar{t: t, handlers: map[string]string{
		"/v2/farcaster/user/best_friends": `{"users":[{"fid":5,"username":"bob","mutual_affinity_score":0.42}]}`,
	}}
	c := newClient(t, fake, Options{})

	friends, err := c.BestFriends(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []Friend{{FID: 5, Username: "bob", Score: 42}}, friends)
}

func TestBestFriendsFromInteractions(t *testing.T) {
	fake := &fakeNeynar{t: t, handlers: map[string]string{
		"/v2/farcaster/user/reactions": `{"reactions":[
			{"reaction_type":"like","cast":{"author":{"fid":10,"username":"ten"}}},
			{"reaction_type":"like","cast":{"author":{"fid":10,"username":"ten"}}},
			{"reaction_type":"recast","cast":{"author":{"fid":11,"username":"eleven"}}},
			{"reaction_type":"like","cast":{"author":{"fid":1,"username":"me"}}}
		]}`,
		"/v2/farcaster/feed/user/casts": `{"casts":[
			{"parent_author":{"fid":12},"mentioned_profiles":[{"fid":13,"username":"thirteen"}]},
			{"parent_author":{"fid":null},"mentioned_profiles":[]}
		]}`,
		"/v2/farcaster/following": `{"users":[
			{"user":{"fid":14,"username":"fourteen","viewer_context":{"followed_by":true}}},
			{"user":{"fid":15,"username":"fifteen","viewer_context":{"followed_by":false}}},
			{"user":{"fid":10,"username":"ten","viewer_context":{"followed_by":false}}}
		]}`,
	}}
	c := newClient(t, fake, Options{})

	friends, err := c.BestFriends(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []Friend{
		{FID: 14, Username: "fourteen", Score: 50},
		{FID: 10, Username: "ten", Score: 22},
		{FID: 15, Username: "fifteen", Score: 20},
		{FID: 12, Score: 5},
		{FID: 13, Username: "thirteen", Score: 4},
	}, friends)
}

func TestTrustSignals(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/farcaster/user/bulk", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("fids") {
		case "1":
			w.Write([]byte(`{"users":[{"fid":1,"username":"alice","power_badge":false,"experimental":{"neynar_user_score":0.31},
				"verified_addresses":{"eth_addresses":["0xAAA","0xaaa"]},"custody_address":"0xCCC"}]}`))
		case "2":
			w.Write([]byte(`{"users":[{"fid":2,"username":"bob","score":0.9,"custody_address":"0xBBB"}]}`))
		default:
			w.Write([]byte(`{"users":[]}`))
		}
	})
	var openSeaCalls []string
	mux.HandleFunc("/api/v2/chain/base/account/", func(w http.ResponseWriter, r *http.Request) {
		openSeaCalls = append(openSeaCalls, r.URL.Path)
		assert.Equal(t, WarpletContract, r.URL.Query().Get("contract_addresses"))
		if strings.HasSuffix(r.URL.Path, "/0xCCC/nfts") {
			w.Write([]byte(`{"nfts":[{"identifier":"77","display_image_url":"https://img/77.png"}]}`))
			return
		}
		if strings.HasSuffix(r.URL.Path, "/0xAAA/nfts") {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{"nfts":[]}`))
	})

	c := newClient(t, withKeyCheck(t, mux), Options{})

	ts, err := c.TrustSignals(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0.31, ts.Score)
	assert.Equal(t, []string{"0xAAA", "0xCCC"}, ts.Addresses)
	assert.True(t, ts.Warplet.HasWarplet)
	assert.Equal(t, "Warplet #77", ts.Warplet.Name)
	assert.Equal(t, "https://img/77.png", ts.Warplet.ImageURL)
	assert.Equal(t, "0xCCC", ts.Warplet.Address)
	assert.True(t, ts.Eligible)
	assert.Len(t, openSeaCalls, 2)

	ts, err = c.TrustSignals(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ts.Warplet.HasWarplet)
	assert.True(t, ts.Eligible)

	_, err = c.TrustSignals(context.Background(), 3)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestEligibilityThreshold(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/farcaster/user/bulk", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"users":[{"fid":4,"score":0.49}]}`))
	})
	c := newClient(t, withKeyCheck(t, mux), Options{})

	ts, err := c.TrustSignals(context.Background(), 4)
	require.NoError(t, err)
	assert.Empty(t, ts.Addresses)
	assert.False(t, ts.Eligible)

	c = newClient(t, withKeyCheck(t, mux), Options{ScoreThreshold: 0.4})
	ts, err = c.TrustSignals(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, ts.Eligible)
}

func withKeyCheck(t *testing.T, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v2/") {
			require.Equal(t, "neynar-key", r.Header.Get("x-api-key"))
		}
		next.ServeHTTP(w, r)
	})
}
