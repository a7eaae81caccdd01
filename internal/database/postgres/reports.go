package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/lost-found/internal/database"
	"github.com/kozaktomas/lost-found/internal/facematch"
	"github.com/pgvector/pgvector-go"
)

const lostColumns = `id, person_name, age, gender, location_lost, date_lost, description,
	contact_phone, contact_email, photo_url, reported_by, status, descriptor, created_at, updated_at`

const foundColumns = `id, found_location, found_date, description, estimated_age, gender,
	contact_phone, contact_email, photo_url, reported_by, status, descriptor, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

// vectorArg converts a descriptor into a query argument; nil descriptors are stored as NULL.
func vectorArg(descriptor []float32) any {
	if len(descriptor) == 0 {
		return nil
	}
	return pgvector.NewVector(descriptor)
}

func timeArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func scanLost(row scanner) (*database.LostReport, error) {
	var r database.LostReport
	var dateLost sql.NullTime
	var vec *pgvector.Vector
	err := row.Scan(&r.ID, &r.PersonName, &r.Age, &r.Gender, &r.LocationLost, &dateLost, &r.Description,
		&r.Contact.Phone, &r.Contact.Email, &r.PhotoURL, &r.ReportedBy, &r.Status, &vec, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if dateLost.Valid {
		r.DateLost = dateLost.Time
	}
	if vec != nil {
		r.Descriptor = vec.Slice()
	}
	return &r, nil
}

func scanFound(row scanner) (*database.FoundReport, error) {
	var r database.FoundReport
	var foundDate sql.NullTime
	var vec *pgvector.Vector
	err := row.Scan(&r.ID, &r.FoundLocation, &foundDate, &r.Description, &r.EstimatedAge, &r.Gender,
		&r.Contact.Phone, &r.Contact.Email, &r.PhotoURL, &r.ReportedBy, &r.Status, &vec, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if foundDate.Valid {
		r.FoundDate = foundDate.Time
	}
	if vec != nil {
		r.Descriptor = vec.Slice()
	}
	return &r, nil
}

func collectLost(rows *sql.Rows) ([]database.LostReport, error) {
	defer rows.Close()
	var out []database.LostReport
	for rows.Next() {
		r, err := scanLost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lost report: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lost reports: %w", err)
	}
	return out, nil
}

func collectFound(rows *sql.Rows) ([]database.FoundReport, error) {
	defer rows.Close()
	var out []database.FoundReport
	for rows.Next() {
		r, err := scanFound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan found report: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate found reports: %w", err)
	}
	return out, nil
}

// LostRepository provides PostgreSQL-backed lost report storage with an optional
// in-memory HNSW index over eligible descriptors.
type LostRepository struct {
	pool        *Pool
	index       *database.DescriptorIndex
	hnswEnabled bool
	hnswMu      sync.RWMutex
}

// NewLostRepository creates a new PostgreSQL lost report repository.
func NewLostRepository(pool *Pool) *LostRepository {
	return &LostRepository{pool: pool}
}

// GetLost retrieves a lost report by ID, returns nil if not found.
func (r *LostRepository) GetLost(ctx context.Context, id string) (*database.LostReport, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	report, err := scanLost(r.pool.QueryRow(ctx, "SELECT "+lostColumns+" FROM lost_reports WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lost report: %w", err)
	}
	return report, nil
}

// ListLost returns one page of lost reports, newest first.
func (r *LostRepository) ListLost(ctx context.Context, filter database.ReportFilter) ([]database.LostReport, int, error) {
	where := "WHERE ($1::text = '' OR status = $1::text) AND ($2::text = '' OR name_normalized LIKE '%' || $2::text || '%')"
	status := string(filter.Status)
	name := facematch.NormalizeName(filter.Name)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM lost_reports "+where, status, name).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count lost reports: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		"SELECT "+lostColumns+" FROM lost_reports "+where+" ORDER BY created_at DESC LIMIT $3 OFFSET $4",
		status, name, limitArg(filter.Limit), filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query lost reports: %w", err)
	}
	reports, err := collectLost(rows)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// ListEligibleLost returns approved lost reports that have a descriptor.
func (r *LostRepository) ListEligibleLost(ctx context.Context) ([]database.LostReport, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+lostColumns+` FROM lost_reports
		WHERE status = 'approved' AND descriptor IS NOT NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query eligible lost reports: %w", err)
	}
	return collectLost(rows)
}

// NearestLost returns the eligible lost reports closest to the descriptor.
// Uses the in-memory HNSW index if enabled, otherwise falls back to PostgreSQL.
func (r *LostRepository) NearestLost(ctx context.Context, descriptor []float32, limit int) ([]database.LostReport, []float64, error) {
	if len(descriptor) == 0 || limit <= 0 {
		return nil, nil, nil
	}

	r.hnswMu.RLock()
	enabled := r.hnswEnabled && r.index != nil
	r.hnswMu.RUnlock()

	if enabled {
		return r.nearestHNSW(ctx, descriptor, limit)
	}
	return r.nearestPostgres(ctx, descriptor, limit)
}

func (r *LostRepository) nearestHNSW(ctx context.Context, descriptor []float32, limit int) ([]database.LostReport, []float64, error) {
	ids, scores, err := r.index.Search(descriptor, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("HNSW search: %w", err)
	}

	reports := make([]database.LostReport, 0, len(ids))
	outScores := make([]float64, 0, len(ids))
	for i, id := range ids {
		report, err := r.GetLost(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		// Skip entries that changed since they were indexed.
		if report == nil || !report.Eligible() {
			continue
		}
		reports = append(reports, *report)
		outScores = append(outScores, scores[i])
	}
	return reports, outScores, nil
}

func (r *LostRepository) nearestPostgres(ctx context.Context, descriptor []float32, limit int) ([]database.LostReport, []float64, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := "SELECT " + lostColumns + ` FROM lost_reports
		WHERE status = 'approved' AND descriptor IS NOT NULL AND vector_dims(descriptor) = $2
		ORDER BY descriptor <=> $1::vector
		LIMIT $3`
	rows, err := tx.QueryContext(ctx, query, pgvector.NewVector(descriptor), len(descriptor), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("query nearest lost reports: %w", err)
	}
	reports, err := collectLost(rows)
	if err != nil {
		return nil, nil, err
	}

	scores := make([]float64, len(reports))
	for i := range reports {
		scores[i] = facematch.Similarity(descriptor, reports[i].Descriptor)
	}
	return reports, scores, nil
}

// CreateLost stores a new lost report.
func (r *LostRepository) CreateLost(ctx context.Context, report *database.LostReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Status == "" {
		report.Status = database.StatusPending
	}
	if !database.ValidLostStatus(report.Status) {
		return database.ErrInvalidStatus
	}

	query := `
		INSERT INTO lost_reports (id, person_name, name_normalized, age, gender, location_lost, date_lost,
			description, contact_phone, contact_email, photo_url, reported_by, status, descriptor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		report.ID, report.PersonName, facematch.NormalizeName(report.PersonName), report.Age, report.Gender,
		report.LocationLost, timeArg(report.DateLost), report.Description, report.Contact.Phone,
		report.Contact.Email, report.PhotoURL, report.ReportedBy, report.Status, vectorArg(report.Descriptor),
	).Scan(&report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert lost report: %w", err)
	}

	r.syncIndex(report)
	return nil
}

// UpdateLost rewrites the editable columns of a lost report and keeps the
// candidate index in line with the new descriptor.
func (r *LostRepository) UpdateLost(ctx context.Context, report *database.LostReport) (*database.LostReport, error) {
	if _, err := uuid.Parse(report.ID); err != nil {
		return nil, database.ErrNotFound
	}

	query := `
		UPDATE lost_reports SET person_name = $2, name_normalized = $3, age = $4, gender = $5,
			location_lost = $6, date_lost = $7, description = $8, contact_phone = $9,
			contact_email = $10, photo_url = $11, descriptor = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + lostColumns
	updated, err := scanLost(r.pool.QueryRow(ctx, query,
		report.ID, report.PersonName, facematch.NormalizeName(report.PersonName), report.Age, report.Gender,
		report.LocationLost, timeArg(report.DateLost), report.Description, report.Contact.Phone,
		report.Contact.Email, report.PhotoURL, vectorArg(report.Descriptor),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update lost report: %w", err)
	}

	r.syncIndex(updated)
	return updated, nil
}

// SetLostStatus changes the status of a lost report.
func (r *LostRepository) SetLostStatus(ctx context.Context, id string, status database.ReportStatus) (*database.LostReport, error) {
	if !database.ValidLostStatus(status) {
		return nil, database.ErrInvalidStatus
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, database.ErrNotFound
	}

	report, err := scanLost(r.pool.QueryRow(ctx,
		"UPDATE lost_reports SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING "+lostColumns, id, status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update lost report status: %w", err)
	}

	r.syncIndex(report)
	return report, nil
}

// DeleteLost removes a lost report; its matches are removed by the foreign key cascade.
func (r *LostRepository) DeleteLost(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return database.ErrNotFound
	}
	res, err := r.pool.Exec(ctx, "DELETE FROM lost_reports WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete lost report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}

	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswEnabled && r.index != nil {
		r.index.Remove(id)
	}
	return nil
}

// syncIndex keeps the HNSW index in line with the report's eligibility.
func (r *LostRepository) syncIndex(report *database.LostReport) {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if !r.hnswEnabled || r.index == nil {
		return
	}
	if report.Eligible() {
		r.index.Add(report.ID, report.Descriptor)
	} else {
		r.index.Remove(report.ID)
	}
}

// EnableIndex loads or builds the in-memory HNSW index over eligible lost reports.
// If indexPath is provided, it will try to load from disk first and save after building.
func (r *LostRepository) EnableIndex(ctx context.Context, dim int, indexPath string) error {
	reports, err := r.ListEligibleLost(ctx)
	if err != nil {
		return fmt.Errorf("failed to load lost reports: %w", err)
	}

	index := database.NewDescriptorIndex(dim)
	loaded := false
	if indexPath != "" {
		loaded, err = index.Load(indexPath, reports)
		if err != nil {
			// Unreadable file; rebuild from the database.
			loaded = false
		}
	}
	if !loaded {
		index.Build(reports)
		index.SetPath(indexPath)
		if indexPath != "" && len(reports) > 0 {
			if err := index.Save(); err != nil {
				return fmt.Errorf("saving HNSW index: %w", err)
			}
		}
	}

	r.hnswMu.Lock()
	r.index = index
	r.hnswEnabled = true
	r.hnswMu.Unlock()
	return nil
}

// IsIndexEnabled returns whether the in-memory HNSW index is enabled
func (r *LostRepository) IsIndexEnabled() bool {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	return r.hnswEnabled && r.index != nil
}

// IndexCount returns the number of descriptors in the HNSW index
func (r *LostRepository) IndexCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.index == nil {
		return 0
	}
	return r.index.Count()
}

// SaveIndex saves the current HNSW index to disk (if path configured)
func (r *LostRepository) SaveIndex() error {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.index == nil {
		return nil
	}
	return r.index.Save()
}

// FoundRepository provides PostgreSQL-backed found report storage.
type FoundRepository struct {
	pool *Pool
}

// NewFoundRepository creates a new PostgreSQL found report repository.
func NewFoundRepository(pool *Pool) *FoundRepository {
	return &FoundRepository{pool: pool}
}

// GetFound retrieves a found report by ID, returns nil if not found.
func (r *FoundRepository) GetFound(ctx context.Context, id string) (*database.FoundReport, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	report, err := scanFound(r.pool.QueryRow(ctx, "SELECT "+foundColumns+" FROM found_reports WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get found report: %w", err)
	}
	return report, nil
}

// ListFound returns one page of found reports, newest first.
func (r *FoundRepository) ListFound(ctx context.Context, filter database.ReportFilter) ([]database.FoundReport, int, error) {
	status := string(filter.Status)

	var total int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM found_reports WHERE ($1::text = '' OR status = $1::text)", status).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count found reports: %w", err)
	}

	rows, err := r.pool.Query(ctx, "SELECT "+foundColumns+` FROM found_reports
		WHERE ($1::text = '' OR status = $1::text) ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		status, limitArg(filter.Limit), filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query found reports: %w", err)
	}
	reports, err := collectFound(rows)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// ListEligibleFound returns approved found reports that have a descriptor.
func (r *FoundRepository) ListEligibleFound(ctx context.Context) ([]database.FoundReport, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+foundColumns+` FROM found_reports
		WHERE status = 'approved' AND descriptor IS NOT NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query eligible found reports: %w", err)
	}
	return collectFound(rows)
}

// CreateFound stores a new found report.
func (r *FoundRepository) CreateFound(ctx context.Context, report *database.FoundReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Status == "" {
		report.Status = database.StatusPending
	}
	if !database.ValidFoundStatus(report.Status) {
		return database.ErrInvalidStatus
	}

	query := `
		INSERT INTO found_reports (id, found_location, found_date, description, estimated_age, gender,
			contact_phone, contact_email, photo_url, reported_by, status, descriptor)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		report.ID, report.FoundLocation, timeArg(report.FoundDate), report.Description, report.EstimatedAge,
		report.Gender, report.Contact.Phone, report.Contact.Email, report.PhotoURL, report.ReportedBy,
		report.Status, vectorArg(report.Descriptor),
	).Scan(&report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert found report: %w", err)
	}
	return nil
}

// UpdateFound rewrites the editable columns of a found report.
func (r *FoundRepository) UpdateFound(ctx context.Context, report *database.FoundReport) (*database.FoundReport, error) {
	if _, err := uuid.Parse(report.ID); err != nil {
		return nil, database.ErrNotFound
	}

	query := `
		UPDATE found_reports SET found_location = $2, found_date = $3, description = $4,
			estimated_age = $5, gender = $6, contact_phone = $7, contact_email = $8,
			photo_url = $9, descriptor = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + foundColumns
	updated, err := scanFound(r.pool.QueryRow(ctx, query,
		report.ID, report.FoundLocation, timeArg(report.FoundDate), report.Description, report.EstimatedAge,
		report.Gender, report.Contact.Phone, report.Contact.Email, report.PhotoURL, vectorArg(report.Descriptor),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update found report: %w", err)
	}
	return updated, nil
}

// SetFoundStatus changes the status of a found report.
func (r *FoundRepository) SetFoundStatus(ctx context.Context, id string, status database.ReportStatus) (*database.FoundReport, error) {
	if !database.ValidFoundStatus(status) {
		return nil, database.ErrInvalidStatus
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, database.ErrNotFound
	}

	report, err := scanFound(r.pool.QueryRow(ctx,
		"UPDATE found_reports SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING "+foundColumns, id, status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update found report status: %w", err)
	}
	return report, nil
}

// DeleteFound removes a found report and, by cascade, its matches.
func (r *FoundRepository) DeleteFound(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return database.ErrNotFound
	}
	res, err := r.pool.Exec(ctx, "DELETE FROM found_reports WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete found report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// limitArg maps a non-positive limit to NULL, which PostgreSQL treats as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// Compile-time interface checks
var (
	_ database.LostWriter     = (*LostRepository)(nil)
	_ database.IndexRebuilder = (*LostRepository)(nil)
	_ database.FoundWriter    = (*FoundRepository)(nil)
)
