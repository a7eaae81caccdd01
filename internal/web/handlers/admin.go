package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/lost-found/internal/database"
	"go.uber.org/zap"
)

// AdminHandler handles report moderation and dashboard endpoints.
type AdminHandler struct {
	lost  database.LostWriter
	found database.FoundWriter
	stats database.StatsReader
	log   *zap.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(lost database.LostWriter, found database.FoundWriter, stats database.StatsReader, log *zap.Logger) *AdminHandler {
	return &AdminHandler{lost: lost, found: found, stats: stats, log: log}
}

// StatsResponse is the admin dashboard payload.
type StatsResponse struct {
	LostReports  int `json:"lost_reports"`
	FoundReports int `json:"found_reports"`
	Matches      int `json:"matches"`
	Pending      struct {
		Lost    int `json:"lost"`
		Found   int `json:"found"`
		Matches int `json:"matches"`
	} `json:"pending"`
	Approved struct {
		Lost  int `json:"lost"`
		Found int `json:"found"`
	} `json:"approved"`
	ConfirmedMatches int `json:"confirmed_matches"`
}

// AllReportsResponse lists every lost and found report, newest first.
type AllReportsResponse struct {
	Lost  []lostResponse  `json:"lost"`
	Found []foundResponse `json:"found"`
}

// Reports handles GET /admin/reports.
func (h *AdminHandler) Reports(w http.ResponseWriter, r *http.Request) {
	lost, _, err := h.lost.ListLost(r.Context(), database.ReportFilter{})
	if err != nil {
		h.log.Error("list all lost reports", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	found, _, err := h.found.ListFound(r.Context(), database.ReportFilter{})
	if err != nil {
		h.log.Error("list all found reports", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	resp := AllReportsResponse{
		Lost:  make([]lostResponse, len(lost)),
		Found: make([]foundResponse, len(found)),
	}
	for i := range lost {
		resp.Lost[i] = toLostResponse(&lost[i])
	}
	for i := range found {
		resp.Found[i] = toFoundResponse(&found[i])
	}
	respondJSON(w, http.StatusOK, resp)
}

// Approve handles PUT /admin/approve/{type}/{id}.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, database.StatusApproved)
}

// Reject handles PUT /admin/reject/{type}/{id}.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, database.StatusRejected)
}

func (h *AdminHandler) setStatus(w http.ResponseWriter, r *http.Request, status database.ReportStatus) {
	id := chi.URLParam(r, "id")

	switch database.ReportKind(chi.URLParam(r, "type")) {
	case database.KindLost:
		report, err := h.lost.SetLostStatus(r.Context(), id, status)
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errLostNotFound)
			return
		}
		if err != nil {
			h.log.Error("set lost report status", zap.String("id", sanitizeForLog(id)), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to update lost person report")
			return
		}
		respondJSON(w, http.StatusOK, toLostResponse(report))
	case database.KindFound:
		report, err := h.found.SetFoundStatus(r.Context(), id, status)
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errFoundNotFound)
			return
		}
		if err != nil {
			h.log.Error("set found report status", zap.String("id", sanitizeForLog(id)), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to update found person report")
			return
		}
		respondJSON(w, http.StatusOK, toFoundResponse(report))
	default:
		respondError(w, http.StatusBadRequest, "invalid report type")
	}
}

// Stats handles GET /admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.stats.Stats(r.Context())
	if err != nil {
		h.log.Error("load stats", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	var resp StatsResponse
	resp.LostReports = s.LostReports
	resp.FoundReports = s.FoundReports
	resp.Matches = s.Matches
	resp.Pending.Lost = s.PendingLost
	resp.Pending.Found = s.PendingFound
	resp.Pending.Matches = s.PendingMatches
	resp.Approved.Lost = s.ApprovedLost
	resp.Approved.Found = s.ApprovedFound
	resp.ConfirmedMatches = s.ConfirmedMatches
	respondJSON(w, http.StatusOK, resp)
}
