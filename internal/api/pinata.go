package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"jingle-gift/internal/pinata"
)

type pinataRequest struct {
	Action   string          `json:"action"`
	Data     json.RawMessage `json:"data"`
	IPFSHash string          `json:"ipfsHash"`
}

type pinataFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handlePinata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "Method not allowed"})
		return
	}

	var req pinataRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Invalid JSON body", Details: err.Error()})
		return
	}

	switch req.Action {
	case "upload":
		if s.pinata == nil || !s.pinata.Configured() {
			s.pinataFailed(w, r, pinata.ErrNotConfigured)
			return
		}
		if len(req.Data) == 0 || string(req.Data) == "null" {
			writeJSON(w, http.StatusBadRequest, pinataFailure{Error: "Gift data required"})
			return
		}
		pin, err := s.pinata.UploadGift(r.Context(), req.Data)
		if err != nil {
			s.pinataFailed(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Success bool `json:"success"`
			pinata.Pin
		}{true, pin})

	case "get":
		hash := strings.TrimSpace(req.IPFSHash)
		if hash == "" {
			writeJSON(w, http.StatusBadRequest, pinataFailure{Error: "IPFS hash required"})
			return
		}
		if s.pinata == nil {
			s.pinataFailed(w, r, pinata.ErrNotConfigured)
			return
		}
		data, err := s.pinata.Fetch(r.Context(), hash)
		if err != nil {
			s.pinataFailed(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Success bool            `json:"success"`
			Data    json.RawMessage `json:"data"`
		}{true, data})

	default:
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Invalid action"})
	}
}

func (s *Server) pinataFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("pinata", "request_id", RequestID(r.Context()), "err", err)
	msg := err.Error()
	if errors.Is(err, pinata.ErrNotConfigured) {
		msg = "Pinata JWT not configured"
	}
	writeJSON(w, http.StatusInternalServerError, pinataFailure{Error: msg})
}
