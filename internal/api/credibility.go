package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/MikeSquared-Agency/credence/internal/credibility"
	"github.com/MikeSquared-Agency/credence/internal/processor"
)

const defaultHistoryLimit = 50

// ReviewRequest is the body of approval, rejection and undo requests.
type ReviewRequest struct {
	TaskID     string `json:"task_id" validate:"required,max=128"`
	ReviewerID string `json:"reviewer_id" validate:"required,max=128"`
	Notes      string `json:"notes,omitempty" validate:"max=1000"`
}

type historyResponse struct {
	Events []credibility.Event `json:"events"`
	Count  int                 `json:"count"`
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.proc.Status(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeProcessorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := s.proc.History(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		s.writeProcessorError(w, r, err)
		return
	}
	if events == nil {
		events = []credibility.Event{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Events: events, Count: len(events)})
}

func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	xp, err := strconv.Atoi(r.URL.Query().Get("xp"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "xp must be an integer")
		return
	}

	conv, err := s.proc.Convert(r.Context(), chi.URLParam(r, "userID"), xp)
	if err != nil {
		s.writeProcessorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) postApproval(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeReview(w, r)
	if !ok {
		return
	}
	res, err := s.proc.Approve(r.Context(), chi.URLParam(r, "userID"), req.TaskID, req.ReviewerID, req.Notes)
	if err != nil {
		s.writeProcessorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postRejection(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeReview(w, r)
	if !ok {
		return
	}
	res, err := s.proc.Reject(r.Context(), chi.URLParam(r, "userID"), req.TaskID, req.ReviewerID, req.Notes)
	if err != nil {
		s.writeProcessorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postUndo(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeReview(w, r)
	if !ok {
		return
	}
	res, err := s.proc.Undo(r.Context(), chi.URLParam(r, "userID"), req.TaskID, req.ReviewerID)
	if err != nil {
		s.writeProcessorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) postDecay(w http.ResponseWriter, r *http.Request) {
	res, err := s.proc.Decay(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.writeProcessorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) decodeReview(w http.ResponseWriter, r *http.Request) (ReviewRequest, bool) {
	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return req, false
	}
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, "invalid field: "+verrs[0].Field())
			return req, false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func (s *Server) writeProcessorError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, credibility.ErrRejectionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, credibility.ErrInvalidXP), errors.Is(err, processor.ErrMissingUserID):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("credibility request failed", "path", r.URL.Path, "user_id", chi.URLParam(r, "userID"), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
