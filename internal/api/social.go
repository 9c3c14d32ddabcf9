package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"jingle-gift/internal/farcaster"
)

func (s *Server) handleNeynar(w http.ResponseWriter, r *http.Request) {
	if s.social == nil || !s.social.Configured() {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "API key not configured"})
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "Method not allowed"})
		return
	}

	q := r.URL.Query()
	ctx := r.Context()
	limit, _ := strconv.Atoi(q.Get("limit"))

	var (
		raw farcaster.Raw
		err error
	)
	switch action := q.Get("action"); action {
	case "search":
		raw, err = s.social.SearchUsers(ctx, q.Get("q"), limit)
	case "user":
		fid, ok := parseFID(q.Get("fid"))
		if !ok {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "FID required"})
			return
		}
		raw, err = s.social.User(ctx, fid)
	case "users":
		fids, ok := parseFIDList(q.Get("fids"))
		if !ok {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "FIDs required"})
			return
		}
		raw, err = s.social.Users(ctx, fids)
	case "following":
		fid, ok := parseFID(q.Get("fid"))
		if !ok {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "FID required"})
			return
		}
		raw, err = s.social.Following(ctx, fid, limit)
	case "top_casts":
		s.topCasts(w, r, q.Get("fid"))
		return
	case "best_friends":
		s.bestFriends(w, r, q.Get("fid"))
		return
	case "trust":
		s.trust(w, r, q.Get("fid"))
		return
	default:
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Invalid action"})
		return
	}

	if err != nil {
		s.logger.Error("neynar", "request_id", RequestID(ctx), "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "API request failed"})
		return
	}
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(raw.Status)
	_, _ = w.Write(raw.Body)
}

func (s *Server) topCasts(w http.ResponseWriter, r *http.Request, rawFID string) {
	empty := struct {
		Success bool             `json:"success"`
		Images  []farcaster.Post `json:"images"`
	}{Images: []farcaster.Post{}}

	fid, ok := parseFID(rawFID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "FID required"})
		return
	}
	posts, err := s.social.TopPosts(r.Context(), fid)
	if err != nil {
		s.logger.Warn("top casts", "fid", fid, "err", err)
		writeJSON(w, http.StatusOK, empty)
		return
	}
	if posts == nil {
		posts = []farcaster.Post{}
	}
	empty.Success = true
	empty.Images = posts
	writeJSON(w, http.StatusOK, empty)
}

func (s *Server) bestFriends(w http.ResponseWriter, r *http.Request, rawFID string) {
	fid, ok := parseFID(rawFID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "FID required"})
		return
	}
	friends, err := s.social.BestFriends(r.Context(), fid)
	if err != nil {
		s.logger.Error("best friends", "fid", fid, "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "API request failed"})
		return
	}
	if friends == nil {
		friends = []farcaster.Friend{}
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool               `json:"success"`
		Users   []farcaster.Friend `json:"users"`
	}{true, friends})
}

func (s *Server) trust(w http.ResponseWriter, r *http.Request, rawFID string) {
	fid, ok := parseFID(rawFID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "FID required"})
		return
	}
	signals, err := s.social.TrustSignals(r.Context(), fid)
	switch {
	case errors.Is(err, farcaster.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Error: "User not found"})
	case err != nil:
		s.logger.Error("trust signals", "fid", fid, "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "API request failed"})
	default:
		writeJSON(w, http.StatusOK, signals)
	}
}

type warpletMiss struct {
	HasWarplet bool         `json:"hasWarplet"`
	Message    string       `json:"message,omitempty"`
	Error      string       `json:"error,omitempty"`
	Debug      *warpletScan `json:"debug,omitempty"`
}

type warpletScan struct {
	FID             int64    `json:"fid"`
	Addresses       []string `json:"addresses"`
	CheckedContract string   `json:"checkedContract"`
	Chain           string   `json:"chain"`
}

func (s *Server) handleWarplet(w http.ResponseWriter, r *http.Request) {
	if s.social == nil || !s.social.Configured() {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "Neynar API key not configured"})
		return
	}
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "Method not allowed"})
		return
	}
	fid, ok := parseFID(r.URL.Query().Get("fid"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "FID required"})
		return
	}

	warplet, addrs, err := s.social.Warplet(r.Context(), fid)
	switch {
	case errors.Is(err, farcaster.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Error: "User not found"})
		return
	case err != nil:
		s.logger.Error("warplet", "fid", fid, "err", err)
		writeJSON(w, http.StatusBadGateway, apiError{Error: "Failed to fetch user data"})
		return
	}

	if len(addrs) == 0 {
		writeJSON(w, http.StatusNotFound, warpletMiss{Error: "No Ethereum addresses found"})
		return
	}
	if warplet.HasWarplet {
		writeJSON(w, http.StatusOK, warplet)
		return
	}
	writeJSON(w, http.StatusOK, warpletMiss{
		Message: "No Warplet NFT found for this user",
		Debug: &warpletScan{
			FID:             fid,
			Addresses:       addrs,
			CheckedContract: farcaster.WarpletContract,
			Chain:           farcaster.WarpletChain,
		},
	})
}

func parseFIDList(s string) ([]int64, bool) {
	var fids []int64
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		fid, ok := parseFID(part)
		if !ok {
			return nil, false
		}
		fids = append(fids, fid)
	}
	return fids, len(fids) > 0
}
