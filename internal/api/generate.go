package api

import (
	"context"
	"net/http"

	"jingle-gift/internal/postcard"
)

const actionGenerateCard = "generateCard"

type generateRequest struct {
	Action string `json:"action"`
	postcard.Request
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !s.geminiConfigured || s.postcards == nil {
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "Gemini API key not configured"})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "Method not allowed"})
		return
	}

	var req generateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Invalid JSON body", Details: err.Error()})
		return
	}
	if req.Action != actionGenerateCard {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "Invalid action"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	res, err := s.postcards.Generate(ctx, req.Request)
	if err != nil {
		s.logger.Error("generate postcard", "request_id", RequestID(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "API request failed", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}
