package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/lost-found/internal/constants"
	"github.com/kozaktomas/lost-found/internal/database"
	"github.com/kozaktomas/lost-found/internal/embedding"
	"github.com/kozaktomas/lost-found/internal/matching"
	"go.uber.org/zap"
)

const (
	errNoPhoto            = "please upload a photo"
	errNoFace             = "no face detected in the image, please upload a clear photo with a visible face"
	errEmbeddingService   = "face embedding service unavailable"
	errLostNotFound       = "lost person report not found"
	errFoundNotFound      = "found person report not found"
	errInvalidStatusParam = "invalid status"
)

// ReportsHandler handles lost and found report endpoints.
type ReportsHandler struct {
	lost      database.LostWriter
	found     database.FoundWriter
	extractor embedding.Extractor
	matcher   *matching.Matcher
	log       *zap.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(lost database.LostWriter, found database.FoundWriter, extractor embedding.Extractor, matcher *matching.Matcher, log *zap.Logger) *ReportsHandler {
	return &ReportsHandler{
		lost:      lost,
		found:     found,
		extractor: extractor,
		matcher:   matcher,
		log:       log,
	}
}

type contactResponse struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type lostResponse struct {
	ID            string          `json:"id"`
	PersonName    string          `json:"person_name"`
	Age           int             `json:"age"`
	Gender        string          `json:"gender"`
	LocationLost  string          `json:"location_lost"`
	DateLost      string          `json:"date_lost"`
	Description   string          `json:"description"`
	Contact       contactResponse `json:"contact"`
	PhotoURL      string          `json:"photo_url"`
	ReportedBy    string          `json:"reported_by"`
	Status        string          `json:"status"`
	HasDescriptor bool            `json:"has_descriptor"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

type foundResponse struct {
	ID            string          `json:"id"`
	FoundLocation string          `json:"found_location"`
	FoundDate     string          `json:"found_date"`
	Description   string          `json:"description"`
	EstimatedAge  int             `json:"estimated_age"`
	Gender        string          `json:"gender"`
	Contact       contactResponse `json:"contact"`
	PhotoURL      string          `json:"photo_url"`
	ReportedBy    string          `json:"reported_by"`
	Status        string          `json:"status"`
	HasDescriptor bool            `json:"has_descriptor"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

type candidateResponse struct {
	Lost  lostResponse `json:"lost"`
	Score float64      `json:"score"`
	Match bool         `json:"match"`
}

func toLostResponse(r *database.LostReport) lostResponse {
	return lostResponse{
		ID:            r.ID,
		PersonName:    r.PersonName,
		Age:           r.Age,
		Gender:        r.Gender,
		LocationLost:  r.LocationLost,
		DateLost:      formatTime(r.DateLost),
		Description:   r.Description,
		Contact:       contactResponse{Phone: r.Contact.Phone, Email: r.Contact.Email},
		PhotoURL:      r.PhotoURL,
		ReportedBy:    r.ReportedBy,
		Status:        string(r.Status),
		HasDescriptor: len(r.Descriptor) > 0,
		CreatedAt:     formatTime(r.CreatedAt),
		UpdatedAt:     formatTime(r.UpdatedAt),
	}
}

func toFoundResponse(r *database.FoundReport) foundResponse {
	return foundResponse{
		ID:            r.ID,
		FoundLocation: r.FoundLocation,
		FoundDate:     formatTime(r.FoundDate),
		Description:   r.Description,
		EstimatedAge:  r.EstimatedAge,
		Gender:        r.Gender,
		Contact:       contactResponse{Phone: r.Contact.Phone, Email: r.Contact.Email},
		PhotoURL:      r.PhotoURL,
		ReportedBy:    r.ReportedBy,
		Status:        string(r.Status),
		HasDescriptor: len(r.Descriptor) > 0,
		CreatedAt:     formatTime(r.CreatedAt),
		UpdatedAt:     formatTime(r.UpdatedAt),
	}
}

// parseDate accepts YYYY-MM-DD or RFC 3339; empty input yields the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

// parseOptionalInt parses a non-negative integer form value; empty yields 0.
func parseOptionalInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

// parseReportForm parses a multipart or URL-encoded report form.
func parseReportForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	err := r.ParseMultipartForm(constants.MaxUploadSize)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse form")
		return false
	}
	return true
}

// photoDescriptor extracts the face descriptor of the uploaded photo.
// present is false when the request carries no photo. It writes the error
// response itself and returns ok=false when the request cannot proceed.
func (h *ReportsHandler) photoDescriptor(w http.ResponseWriter, r *http.Request) (descriptor []float32, present, ok bool) {
	if r.MultipartForm == nil || len(r.MultipartForm.File["photo"]) == 0 {
		return nil, false, true
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, errNoPhoto)
		return nil, true, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		respondError(w, http.StatusBadRequest, errNoPhoto)
		return nil, true, false
	}

	descriptor, err = h.extractor.ExtractDescriptor(r.Context(), data)
	if err != nil {
		h.log.Error("face descriptor extraction failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, errEmbeddingService)
		return nil, true, false
	}
	if descriptor == nil {
		respondError(w, http.StatusUnprocessableEntity, errNoFace)
		return nil, true, false
	}
	return descriptor, true, true
}

// readDescriptor parses the form and requires a photo with a detectable face.
func (h *ReportsHandler) readDescriptor(w http.ResponseWriter, r *http.Request) ([]float32, bool) {
	if !parseReportForm(w, r) {
		return nil, false
	}
	descriptor, present, ok := h.photoDescriptor(w, r)
	if !ok {
		return nil, false
	}
	if !present {
		respondError(w, http.StatusBadRequest, errNoPhoto)
		return nil, false
	}
	return descriptor, true
}

// formValue returns the trimmed form value and whether the field was sent at all.
func formValue(r *http.Request, key string) (string, bool) {
	values, ok := r.PostForm[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}

// setString overwrites dst when the field was sent.
func setString(r *http.Request, key string, dst *string) {
	if v, ok := formValue(r, key); ok {
		*dst = v
	}
}

// setInt overwrites dst when the field was sent and parses.
func setInt(r *http.Request, key string, dst *int) error {
	v, ok := formValue(r, key)
	if !ok {
		return nil
	}
	n, err := parseOptionalInt(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

// setDate overwrites dst when the field was sent and parses.
func setDate(r *http.Request, key string, dst *time.Time) error {
	v, ok := formValue(r, key)
	if !ok {
		return nil
	}
	t, err := parseDate(v)
	if err != nil {
		return err
	}
	*dst = t
	return nil
}

func contactFromForm(r *http.Request) database.Contact {
	return database.Contact{
		Phone: strings.TrimSpace(r.FormValue("contact_phone")),
		Email: strings.TrimSpace(r.FormValue("contact_email")),
	}
}

// CreateLost handles POST /lost.
func (h *ReportsHandler) CreateLost(w http.ResponseWriter, r *http.Request) {
	descriptor, ok := h.readDescriptor(w, r)
	if !ok {
		return
	}

	name := strings.TrimSpace(r.FormValue("person_name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "person_name is required")
		return
	}
	age, err := parseOptionalInt(r.FormValue("age"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	dateLost, err := parseDate(r.FormValue("date_lost"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report := &database.LostReport{
		PersonName:   name,
		Age:          age,
		Gender:       strings.TrimSpace(r.FormValue("gender")),
		LocationLost: strings.TrimSpace(r.FormValue("location_lost")),
		DateLost:     dateLost,
		Description:  strings.TrimSpace(r.FormValue("description")),
		Contact:      contactFromForm(r),
		PhotoURL:     strings.TrimSpace(r.FormValue("photo_url")),
		ReportedBy:   strings.TrimSpace(r.FormValue("reported_by")),
		Status:       database.StatusPending,
		Descriptor:   descriptor,
	}
	if err := h.lost.CreateLost(r.Context(), report); err != nil {
		h.log.Error("create lost report", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create lost person report")
		return
	}

	respondJSON(w, http.StatusCreated, toLostResponse(report))
}

// CreateFound handles POST /found. Matching against lost reports starts in the
// background and is not awaited.
func (h *ReportsHandler) CreateFound(w http.ResponseWriter, r *http.Request) {
	descriptor, ok := h.readDescriptor(w, r)
	if !ok {
		return
	}

	age, err := parseOptionalInt(r.FormValue("estimated_age"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	foundDate, err := parseDate(r.FormValue("found_date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report := &database.FoundReport{
		FoundLocation: strings.TrimSpace(r.FormValue("found_location")),
		FoundDate:     foundDate,
		Description:   strings.TrimSpace(r.FormValue("description")),
		EstimatedAge:  age,
		Gender:        strings.TrimSpace(r.FormValue("gender")),
		Contact:       contactFromForm(r),
		PhotoURL:      strings.TrimSpace(r.FormValue("photo_url")),
		ReportedBy:    strings.TrimSpace(r.FormValue("reported_by")),
		Status:        database.StatusPending,
		Descriptor:    descriptor,
	}
	if err := h.found.CreateFound(r.Context(), report); err != nil {
		h.log.Error("create found report", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create found person report")
		return
	}

	h.matcher.MatchNewFoundAsync(report.ID)

	respondJSON(w, http.StatusCreated, toFoundResponse(report))
}

// UpdateLost handles PUT /lost/{id}. Only the fields present in the form
// change; a new photo replaces the descriptor. Status is managed by admins.
func (h *ReportsHandler) UpdateLost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !parseReportForm(w, r) {
		return
	}

	report, err := h.lost.GetLost(r.Context(), id)
	if err != nil {
		h.log.Error("get lost report", zap.String("id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update lost person report")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, errLostNotFound)
		return
	}

	descriptor, present, ok := h.photoDescriptor(w, r)
	if !ok {
		return
	}
	if present {
		report.Descriptor = descriptor
	}

	setString(r, "person_name", &report.PersonName)
	if report.PersonName == "" {
		respondError(w, http.StatusBadRequest, "person_name is required")
		return
	}
	if err := setInt(r, "age", &report.Age); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := setDate(r, "date_lost", &report.DateLost); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	setString(r, "gender", &report.Gender)
	setString(r, "location_lost", &report.LocationLost)
	setString(r, "description", &report.Description)
	setString(r, "contact_phone", &report.Contact.Phone)
	setString(r, "contact_email", &report.Contact.Email)
	setString(r, "photo_url", &report.PhotoURL)

	updated, err := h.lost.UpdateLost(r.Context(), report)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, errLostNotFound)
		return
	}
	if err != nil {
		h.log.Error("update lost report", zap.String("id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update lost person report")
		return
	}
	respondJSON(w, http.StatusOK, toLostResponse(updated))
}

// UpdateFound handles PUT /found/{id}. Editing a found report does not start
// a new matching run; the sweep picks up a changed descriptor.
func (h *ReportsHandler) UpdateFound(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !parseReportForm(w, r) {
		return
	}

	report, err := h.found.GetFound(r.Context(), id)
	if err != nil {
		h.log.Error("get found report", zap.String("id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update found person report")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, errFoundNotFound)
		return
	}

	descriptor, present, ok := h.photoDescriptor(w, r)
	if !ok {
		return
	}
	if present {
		report.Descriptor = descriptor
	}

	if err := setInt(r, "estimated_age", &report.EstimatedAge); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := setDate(r, "found_date", &report.FoundDate); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	setString(r, "found_location", &report.FoundLocation)
	setString(r, "description", &report.Description)
	setString(r, "gender", &report.Gender)
	setString(r, "contact_phone", &report.Contact.Phone)
	setString(r, "contact_email", &report.Contact.Email)
	setString(r, "photo_url", &report.PhotoURL)

	updated, err := h.found.UpdateFound(r.Context(), report)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, errFoundNotFound)
		return
	}
	if err != nil {
		h.log.Error("update found report", zap.String("id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to update found person report")
		return
	}
	respondJSON(w, http.StatusOK, toFoundResponse(updated))
}

// ListLost handles GET /lost.
func (h *ReportsHandler) ListLost(w http.ResponseWriter, r *http.Request) {
	status := database.ReportStatus(r.URL.Query().Get("status"))
	if status != "" && !database.ValidLostStatus(status) {
		respondError(w, http.StatusBadRequest, errInvalidStatusParam)
		return
	}
	p := parsePagination(r)

	reports, total, err := h.lost.ListLost(r.Context(), database.ReportFilter{
		Status: status,
		Name:   r.URL.Query().Get("name"),
		Limit:  p.Limit,
		Offset: p.offset(),
	})
	if err != nil {
		h.log.Error("list lost reports", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list lost person reports")
		return
	}

	items := make([]lostResponse, len(reports))
	for i := range reports {
		items[i] = toLostResponse(&reports[i])
	}
	respondJSON(w, http.StatusOK, newPageResponse(items, total, p))
}

// ListFound handles GET /found.
func (h *ReportsHandler) ListFound(w http.ResponseWriter, r *http.Request) {
	status := database.ReportStatus(r.URL.Query().Get("status"))
	if status != "" && !database.ValidFoundStatus(status) {
		respondError(w, http.StatusBadRequest, errInvalidStatusParam)
		return
	}
	p := parsePagination(r)

	reports, total, err := h.found.ListFound(r.Context(), database.ReportFilter{
		Status: status,
		Limit:  p.Limit,
		Offset: p.offset(),
	})
	if err != nil {
		h.log.Error("list found reports", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list found person reports")
		return
	}

	items := make([]foundResponse, len(reports))
	for i := range reports {
		items[i] = toFoundResponse(&reports[i])
	}
	respondJSON(w, http.StatusOK, newPageResponse(items, total, p))
}

// GetLost handles GET /lost/{id}.
func (h *ReportsHandler) GetLost(w http.ResponseWriter, r *http.Request) {
	report, err := h.lost.GetLost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get lost person report")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, errLostNotFound)
		return
	}
	respondJSON(w, http.StatusOK, toLostResponse(report))
}

// GetFound handles GET /found/{id}.
func (h *ReportsHandler) GetFound(w http.ResponseWriter, r *http.Request) {
	report, err := h.found.GetFound(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get found person report")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, errFoundNotFound)
		return
	}
	respondJSON(w, http.StatusOK, toFoundResponse(report))
}

// DeleteLost handles DELETE /lost/{id}.
func (h *ReportsHandler) DeleteLost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.lost.DeleteLost(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errLostNotFound)
			return
		}
		h.log.Error("delete lost report", zap.String("id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete lost person report")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// DeleteFound handles DELETE /found/{id}.
func (h *ReportsHandler) DeleteFound(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.found.DeleteFound(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errFoundNotFound)
			return
		}
		h.log.Error("delete found report", zap.String("id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to delete found person report")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Candidates handles GET /found/{id}/candidates.
func (h *ReportsHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	limit := constants.DefaultCandidateLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, constants.MaxCandidateLimit)
	}

	candidates, err := h.matcher.Candidates(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondError(w, http.StatusNotFound, errFoundNotFound)
			return
		}
		h.log.Error("candidate lookup", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to find candidates")
		return
	}

	result := make([]candidateResponse, len(candidates))
	for i := range candidates {
		result[i] = candidateResponse{
			Lost:  toLostResponse(&candidates[i].Report),
			Score: candidates[i].Score,
			Match: candidates[i].Match,
		}
	}
	respondJSON(w, http.StatusOK, result)
}
