package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"jingle-gift/internal/mailbox"
	"jingle-gift/internal/metrics"
)

type mailboxRequest struct {
	Action       string          `json:"action"`
	RecipientFID FID             `json:"recipientFid"`
	UserFID      FID             `json:"userFid"`
	IPFSHash     string          `json:"ipfsHash"`
	IPFSHashes   json.RawMessage `json:"ipfsHashes"`
}

type mailboxResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message,omitempty"`
	Postcards []mailbox.Record `json:"postcards,omitempty"`
	Marked    *int             `json:"marked,omitempty"`
}

func (s *Server) handleMailbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "Method not allowed"})
		return
	}

	var req mailboxRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Invalid JSON body", Details: err.Error()})
		return
	}
	if req.Action == "" {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Missing action"})
		return
	}
	if s.mailbox == nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "Internal server error", Message: "mailbox store not configured"})
		return
	}

	ctx := r.Context()
	switch req.Action {
	case "send":
		hash := strings.TrimSpace(req.IPFSHash)
		if req.RecipientFID.Missing() || hash == "" {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "Missing recipientFid or ipfsHash"})
			return
		}
		_, err := s.mailbox.Send(ctx, req.RecipientFID.String(), hash)
		metrics.RecordMailbox(req.Action, err)
		if err != nil {
			s.storeFailed(w, r, req.Action, err)
			return
		}
		s.logger.Info("mailbox delivered", "recipient_fid", req.RecipientFID.String(), "ipfs_hash", hash)
		writeJSON(w, http.StatusOK, mailboxResponse{Success: true, Message: "Postcard delivered to mailbox"})

	case "list":
		if req.UserFID.Missing() {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "Missing userFid"})
			return
		}
		records, err := s.mailbox.List(ctx, req.UserFID.String())
		metrics.RecordMailbox(req.Action, err)
		if err != nil {
			s.storeFailed(w, r, req.Action, err)
			return
		}
		if records == nil {
			records = []mailbox.Record{}
		}
		// postcards must be present even when empty
		writeJSON(w, http.StatusOK, struct {
			Success   bool             `json:"success"`
			Postcards []mailbox.Record `json:"postcards"`
		}{true, records})

	case "markRead":
		var hashes []string
		if req.UserFID.Missing() || !isJSONArray(req.IPFSHashes) || json.Unmarshal(req.IPFSHashes, &hashes) != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "Missing userFid or ipfsHashes array"})
			return
		}
		n, err := s.mailbox.MarkRead(ctx, req.UserFID.String(), hashes)
		metrics.RecordMailbox(req.Action, err)
		if err != nil {
			s.storeFailed(w, r, req.Action, err)
			return
		}
		writeJSON(w, http.StatusOK, mailboxResponse{Success: true, Message: "Postcards marked as read", Marked: &n})

	default:
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Unknown action: " + req.Action})
	}
}

func (s *Server) storeFailed(w http.ResponseWriter, r *http.Request, action string, err error) {
	s.logger.Error("mailbox", "action", action, "request_id", RequestID(r.Context()), "err", err)
	writeJSON(w, http.StatusInternalServerError, apiError{Error: "Internal server error", Message: err.Error()})
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "[")
}
