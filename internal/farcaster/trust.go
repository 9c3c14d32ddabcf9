package farcaster

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	WarpletContract = "0x699727f9e01a822efdcf7333073f0461e5914b4e"
	WarpletChain    = "base"
)

type Warplet struct {
	HasWarplet      bool   `json:"hasWarplet"`
	ImageURL        string `json:"imageUrl,omitempty"`
	TokenID         string `json:"tokenId,omitempty"`
	Name            string `json:"name,omitempty"`
	ContractAddress string `json:"contractAddress"`
	Address         string `json:"address,omitempty"`
}

type TrustSignals struct {
	FID        int64    `json:"fid"`
	Username   string   `json:"username,omitempty"`
	Score      float64  `json:"score"`
	PowerBadge bool     `json:"powerBadge"`
	Addresses  []string `json:"addresses"`
	Warplet    Warplet  `json:"warplet"`
	Eligible   bool     `json:"eligible"`
}

// TrustSignals gathers the reputation and ownership checks that gate free
// features. A user is eligible with a score at or above the threshold, a
// power badge, or a Warplet.
func (c *Client) TrustSignals(ctx context.Context, fid int64) (TrustSignals, error) {
	user, err := c.lookupUser(ctx, fid)
	if err != nil {
		return TrustSignals{}, err
	}

	score := user.Get("score")
	if !score.Exists() {
		score = user.Get("experimental.neynar_user_score")
	}

	ts := TrustSignals{
		FID:        fid,
		Username:   user.Get("username").String(),
		Score:      score.Float(),
		PowerBadge: user.Get("power_badge").Bool(),
		Addresses:  addresses(user),
	}
	ts.Warplet = c.findWarplet(ctx, ts.Addresses)
	ts.Eligible = ts.Score >= c.scoreThreshold || ts.PowerBadge || ts.Warplet.HasWarplet
	return ts, nil
}

// Warplet checks only the NFT holding.
func (c *Client) Warplet(ctx context.Context, fid int64) (Warplet, []string, error) {
	user, err := c.lookupUser(ctx, fid)
	if err != nil {
		return Warplet{}, nil, err
	}
	addrs := addresses(user)
	return c.findWarplet(ctx, addrs), addrs, nil
}

func (c *Client) lookupUser(ctx context.Context, fid int64) (gjson.Result, error) {
	body, err := c.getOK(ctx, "/v2/farcaster/user/bulk", url.Values{"fids": {joinFIDs([]int64{fid})}})
	if err != nil {
		return gjson.Result{}, err
	}
	user := gjson.GetBytes(body, "users.0")
	if !user.Exists() {
		return gjson.Result{}, ErrUserNotFound
	}
	return user, nil
}

// addresses returns verified eth addresses followed by the custody address,
// deduplicated case-insensitively.
func addresses(user gjson.Result) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(a string) {
		key := strings.ToLower(strings.TrimSpace(a))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, a)
	}
	for _, a := range user.Get("verified_addresses.eth_addresses").Array() {
		add(a.String())
	}
	add(user.Get("custody_address").String())
	return out
}

func (c *Client) findWarplet(ctx context.Context, addrs []string) Warplet {
	for _, addr := range addrs {
		w, err := c.warpletFor(ctx, addr)
		if err != nil {
			c.logger.Warn("warplet lookup failed", "address", addr, "err", err)
			continue
		}
		if w.HasWarplet {
			return w
		}
	}
	return Warplet{ContractAddress: WarpletContract}
}

func (c *Client) warpletFor(ctx context.Context, addr string) (Warplet, error) {
	u := fmt.Sprintf("%s/api/v2/chain/%s/account/%s/nfts?%s", c.openSeaBaseURL, WarpletChain, url.PathEscape(addr),
		url.Values{"contract_addresses": {WarpletContract}, "limit": {"1"}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Warplet{}, err
	}
	req.Header.Set("accept", "application/json")
	if c.openSeaAPIKey != "" {
		req.Header.Set("x-api-key", c.openSeaAPIKey)
	}

	raw, err := c.do(req)
	if err != nil {
		return Warplet{}, err
	}
	if raw.Status < 200 || raw.Status > 299 {
		return Warplet{}, fmt.Errorf("opensea: status %d", raw.Status)
	}

	nft := gjson.GetBytes(raw.Body, "nfts.0")
	if !nft.Exists() {
		return Warplet{ContractAddress: WarpletContract}, nil
	}

	image := firstNonEmpty(
		nft.Get("image_url").String(),
		nft.Get("display_image_url").String(),
		nft.Get("display_animation_url").String(),
		nft.Get("metadata.image").String(),
	)
	tokenID := nft.Get("identifier").String()
	name := nft.Get("name").String()
	if name == "" {
		name = "Warplet #" + tokenID
	}

	return Warplet{
		HasWarplet:      true,
		ImageURL:        image,
		TokenID:         tokenID,
		Name:            name,
		ContractAddress: WarpletContract,
		Address:         addr,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
