package farcaster

import (
	"context"
	"net/url"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const (
	likeWeight    = 1
	recastWeight  = 3
	replyWeight   = 5
	mentionWeight = 4
	mutualBonus   = 50
	followBonus   = 20

	bestFriendsLimit = 5
)

// Interaction is what a user did towards one other account.
type Interaction struct {
	FID        int64
	Username   string
	Likes      int
	Recasts    int
	Replies    int
	Mentions   int
	Following  bool // the user follows FID
	FollowedBy bool // FID follows the user
}

type Friend struct {
	FID      int64  `json:"fid"`
	Username string `json:"username,omitempty"`
	Score    int    `json:"score"`
}

func Score(i Interaction) int {
	s := i.Likes*likeWeight + i.Recasts*recastWeight + i.Replies*replyWeight + i.Mentions*mentionWeight
	switch {
	case i.Following && i.FollowedBy:
		s += mutualBonus
	case i.Following:
		s += followBonus
	}
	return s
}

// RankFriends scores every interaction, drops zero scores, and returns the
// top limit by score descending with ties broken by fid ascending.
func RankFriends(interactions []Interaction, limit int) []Friend {
	friends := make([]Friend, 0, len(interactions))
	for _, in := range interactions {
		if s := Score(in); s > 0 {
			friends = append(friends, Friend{FID: in.FID, Username: in.Username, Score: s})
		}
	}

	sort.Slice(friends, func(i, j int) bool {
		if friends[i].Score != friends[j].Score {
			return friends[i].Score > friends[j].Score
		}
		return friends[i].FID < friends[j].FID
	})

	if limit > 0 && len(friends) > limit {
		friends = friends[:limit]
	}
	return friends
}

// BestFriends prefers the provider's own ranking and falls back to scoring
// the user's recent interactions.
func (c *Client) BestFriends(ctx context.Context, fid int64) ([]Friend, error) {
	if friends, err := c.nativeBestFriends(ctx, fid); err == nil && len(friends) > 0 {
		return friends, nil
	} else if err != nil {
		c.logger.Debug("native best friends unavailable", "fid", fid, "err", err)
	}

	interactions, err := c.collectInteractions(ctx, fid)
	if err != nil {
		return nil, err
	}
	return RankFriends(interactions, bestFriendsLimit), nil
}

func (c *Client) nativeBestFriends(ctx context.Context, fid int64) ([]Friend, error) {
	body, err := c.getOK(ctx, "/v2/farcaster/user/best_friends", url.Values{
		"fid":   {strconv.FormatInt(fid, 10)},
		"limit": {strconv.Itoa(bestFriendsLimit)},
	})
	if err != nil {
		return nil, err
	}

	var friends []Friend
	for _, u := range gjson.GetBytes(body, "users").Array() {
		friends = append(friends, Friend{
			FID:      u.Get("fid").Int(),
			Username: u.Get("username").String(),
			Score:    int(u.Get("mutual_affinity_score").Float() * 100),
		})
	}
	if len(friends) > bestFriendsLimit {
		friends = friends[:bestFriendsLimit]
	}
	return friends, nil
}

func (c *Client) collectInteractions(ctx context.Context, fid int64) ([]Interaction, error) {
	var reactions, casts, following gjson.Result
	fidStr := strconv.FormatInt(fid, 10)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := c.getOK(gctx, "/v2/farcaster/user/reactions", url.Values{
			"fid":   {fidStr},
			"type":  {"all"},
			"limit": {"100"},
		})
		reactions = gjson.GetBytes(body, "reactions")
		return err
	})
	g.Go(func() error {
		body, err := c.getOK(gctx, "/v2/farcaster/feed/user/casts", url.Values{
			"fid":             {fidStr},
			"limit":           {strconv.Itoa(castsPageLimit)},
			"include_replies": {"true"},
		})
		casts = gjson.GetBytes(body, "casts")
		return err
	})
	g.Go(func() error {
		body, err := c.getOK(gctx, "/v2/farcaster/following", url.Values{
			"fid":        {fidStr},
			"viewer_fid": {fidStr},
			"limit":      {"100"},
		})
		following = gjson.GetBytes(body, "users")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return tally(fid, reactions.Array(), casts.Array(), following.Array()), nil
}

func tally(self int64, reactions, casts, following []gjson.Result) []Interaction {
	byFID := map[int64]*Interaction{}
	get := func(fid int64, username string) *Interaction {
		in, ok := byFID[fid]
		if !ok {
			in = &Interaction{FID: fid}
			byFID[fid] = in
		}
		if in.Username == "" {
			in.Username = username
		}
		return in
	}

	for _, r := range reactions {
		author := r.Get("cast.author")
		fid := author.Get("fid").Int()
		if fid == 0 || fid == self {
			continue
		}
		in := get(fid, author.Get("username").String())
		switch r.Get("reaction_type").String() {
		case "like":
			in.Likes++
		case "recast":
			in.Recasts++
		}
	}

	for _, cast := range casts {
		if parent := cast.Get("parent_author.fid").Int(); parent != 0 && parent != self {
			get(parent, "").Replies++
		}
		for _, m := range cast.Get("mentioned_profiles").Array() {
			if fid := m.Get("fid").Int(); fid != 0 && fid != self {
				get(fid, m.Get("username").String()).Mentions++
			}
		}
	}

	for _, f := range following {
		u := f.Get("user")
		fid := u.Get("fid").Int()
		if fid == 0 || fid == self {
			continue
		}
		in := get(fid, u.Get("username").String())
		in.Following = true
		in.FollowedBy = u.Get("viewer_context.followed_by").Bool()
	}

	out := make([]Interaction, 0, len(byFID))
	for _, in := range byFID {
		out = append(out, *in)
	}
	return out
}
