package farcaster

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	topPostsLimit  = 3
	postTextRunes  = 100
	castsPageLimit = 150
)

var imageMarkers = []string{".jpg", ".png", ".gif", ".webp", "imagedelivery", "imgur"}

type Post struct {
	Image   string `json:"image"`
	Text    string `json:"text"`
	Likes   int64  `json:"likes"`
	Recasts int64  `json:"recasts"`
	Hash    string `json:"hash"`
}

// TopPosts returns the user's three most engaged casts of the current
// calendar year that carry an image embed.
func (c *Client) TopPosts(ctx context.Context, fid int64) ([]Post, error) {
	body, err := c.getOK(ctx, "/v2/farcaster/feed/user/casts", url.Values{
		"fid":             {strconv.FormatInt(fid, 10)},
		"limit":           {strconv.Itoa(castsPageLimit)},
		"include_replies": {"false"},
	})
	if err != nil {
		return nil, err
	}
	return selectTopPosts(gjson.GetBytes(body, "casts").Array(), c.now().Year()), nil
}

func selectTopPosts(casts []gjson.Result, year int) []Post {
	var posts []Post
	for _, cast := range casts {
		ts, err := time.Parse(time.RFC3339, cast.Get("timestamp").String())
		if err != nil || ts.Year() != year {
			continue
		}

		image := ""
		for _, embed := range cast.Get("embeds").Array() {
			if u := embed.Get("url").String(); isImageURL(u) {
				image = u
				break
			}
		}
		if image == "" {
			continue
		}

		posts = append(posts, Post{
			Image:   image,
			Text:    truncateRunes(cast.Get("text").String(), postTextRunes),
			Likes:   cast.Get("reactions.likes_count").Int(),
			Recasts: cast.Get("reactions.recasts_count").Int(),
			Hash:    cast.Get("hash").String(),
		})
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].Likes+posts[i].Recasts > posts[j].Likes+posts[j].Recasts
	})
	if len(posts) > topPostsLimit {
		posts = posts[:topPostsLimit]
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts
}

func isImageURL(u string) bool {
	if u == "" {
		return false
	}
	for _, m := range imageMarkers {
		if strings.Contains(u, m) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
