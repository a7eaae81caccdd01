package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/lost-found/internal/database"
	"github.com/kozaktomas/lost-found/internal/matching"
	"go.uber.org/zap"
)

const errMatchNotFound = "match not found"

// MatchesHandler handles match sweep and review endpoints.
type MatchesHandler struct {
	matches database.MatchWriter
	matcher *matching.Matcher
	log     *zap.Logger
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(matches database.MatchWriter, matcher *matching.Matcher, log *zap.Logger) *MatchesHandler {
	return &MatchesHandler{matches: matches, matcher: matcher, log: log}
}

type matchResponse struct {
	ID          string  `json:"id"`
	LostID      string  `json:"lost_id"`
	FoundID     string  `json:"found_id"`
	Score       float64 `json:"score"`
	Status      string  `json:"status"`
	Notes       string  `json:"notes"`
	MatchedAt   string  `json:"matched_at"`
	ConfirmedAt string  `json:"confirmed_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type updateMatchRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func toMatchResponse(m *database.MatchRecord) matchResponse {
	resp := matchResponse{
		ID:        m.ID,
		LostID:    m.LostID,
		FoundID:   m.FoundID,
		Score:     m.Score,
		Status:    string(m.Status),
		Notes:     m.Notes,
		MatchedAt: formatTime(m.MatchedAt),
		CreatedAt: formatTime(m.CreatedAt),
		UpdatedAt: formatTime(m.UpdatedAt),
	}
	if m.ConfirmedAt != nil {
		resp.ConfirmedAt = formatTime(*m.ConfirmedAt)
	}
	return resp
}

// Run handles POST /match/run. The sweep runs in the request and the caller waits for it.
func (h *MatchesHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.matcher.RunFullMatch(r.Context(), matching.SweepOptions{})
	if err != nil {
		h.log.Error("full match sweep failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// List handles GET /match/results.
func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	status := database.MatchStatus(r.URL.Query().Get("status"))
	if status != "" && !database.ValidMatchStatus(status) {
		respondError(w, http.StatusBadRequest, errInvalidStatusParam)
		return
	}
	p := parsePagination(r)

	matches, total, err := h.matches.ListMatches(r.Context(), database.MatchFilter{
		Status: status,
		Limit:  p.Limit,
		Offset: p.offset(),
	})
	if err != nil {
		h.log.Error("list matches", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list matches")
		return
	}

	items := make([]matchResponse, len(matches))
	for i := range matches {
		items[i] = toMatchResponse(&matches[i])
	}
	respondJSON(w, http.StatusOK, newPageResponse(items, total, p))
}

// Get handles GET /match/{id}.
func (h *MatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.matches.GetMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get match")
		return
	}
	if m == nil {
		respondError(w, http.StatusNotFound, errMatchNotFound)
		return
	}
	respondJSON(w, http.StatusOK, toMatchResponse(m))
}

// Update handles PUT /match/{id}.
func (h *MatchesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	id := chi.URLParam(r, "id")
	m, err := h.matcher.UpdateMatchStatus(r.Context(), id, database.MatchStatus(req.Status), req.Notes)
	switch {
	case errors.Is(err, database.ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, errInvalidStatusParam)
		return
	case errors.Is(err, database.ErrNotFound) && m == nil:
		respondError(w, http.StatusNotFound, errMatchNotFound)
		return
	case err != nil:
		h.log.Error("update match status", zap.String("id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update match")
		return
	}
	respondJSON(w, http.StatusOK, toMatchResponse(m))
}

// Delete handles DELETE /match/{id}.
func (h *MatchesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.matches.DeleteMatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errMatchNotFound)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete match")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
