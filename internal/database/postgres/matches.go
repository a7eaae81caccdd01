package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/lost-found/internal/database"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

const matchColumns = `id, lost_id, found_id, score, status, notes, matched_at, confirmed_at, created_at, updated_at`

func scanMatch(row scanner) (*database.MatchRecord, error) {
	var m database.MatchRecord
	var confirmedAt sql.NullTime
	err := row.Scan(&m.ID, &m.LostID, &m.FoundID, &m.Score, &m.Status, &m.Notes,
		&m.MatchedAt, &confirmedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		m.ConfirmedAt = &t
	}
	return &m, nil
}

// MatchRepository provides PostgreSQL-backed match storage.
type MatchRepository struct {
	pool *Pool
}

// NewMatchRepository creates a new PostgreSQL match repository.
func NewMatchRepository(pool *Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

// GetMatch retrieves a match by ID, returns nil if not found.
func (r *MatchRepository) GetMatch(ctx context.Context, id string) (*database.MatchRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	m, err := scanMatch(r.pool.QueryRow(ctx, "SELECT "+matchColumns+" FROM matches WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

// MatchExists checks whether a match is stored for the pair.
func (r *MatchRepository) MatchExists(ctx context.Context, lostID, foundID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM matches WHERE lost_id = $1 AND found_id = $2)", lostID, foundID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check match exists: %w", err)
	}
	return exists, nil
}

// ListMatches returns one page of matches ordered by score, then creation time.
func (r *MatchRepository) ListMatches(ctx context.Context, filter database.MatchFilter) ([]database.MatchRecord, int, error) {
	status := string(filter.Status)

	var total int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM matches WHERE ($1::text = '' OR status = $1::text)", status).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count matches: %w", err)
	}

	rows, err := r.pool.Query(ctx, "SELECT "+matchColumns+` FROM matches
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY score DESC, created_at DESC
		LIMIT $2 OFFSET $3`, status, limitArg(filter.Limit), filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var matches []database.MatchRecord
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, total, nil
}

// CreateMatch inserts a match. A second insert for the same pair fails with
// database.ErrDuplicateMatch, whatever MatchExists reported before.
func (r *MatchRepository) CreateMatch(ctx context.Context, m *database.MatchRecord) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = database.MatchPending
	}

	query := `
		INSERT INTO matches (id, lost_id, found_id, score, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING matched_at, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, m.ID, m.LostID, m.FoundID, m.Score, m.Status, m.Notes).
		Scan(&m.MatchedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("insert match %s/%s: %w", m.LostID, m.FoundID, database.ErrDuplicateMatch)
		}
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// UpdateMatchStatus sets the status and notes; confirming stamps confirmed_at.
func (r *MatchRepository) UpdateMatchStatus(ctx context.Context, id string, status database.MatchStatus, notes string) (*database.MatchRecord, error) {
	if !database.ValidMatchStatus(status) {
		return nil, database.ErrInvalidStatus
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, database.ErrNotFound
	}

	query := `
		UPDATE matches
		SET status = $2,
		    notes = $3,
		    confirmed_at = CASE WHEN $2::text = 'confirmed' THEN NOW() ELSE confirmed_at END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + matchColumns
	m, err := scanMatch(r.pool.QueryRow(ctx, query, id, string(status), notes))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update match status: %w", err)
	}
	return m, nil
}

// DeleteMatch removes a match.
func (r *MatchRepository) DeleteMatch(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return database.ErrNotFound
	}
	res, err := r.pool.Exec(ctx, "DELETE FROM matches WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// ResolvePair marks the lost report found and the found report matched in one transaction.
func (r *MatchRepository) ResolvePair(ctx context.Context, lostID, foundID string) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE lost_reports SET status = 'found', updated_at = NOW() WHERE id = $1", lostID)
	if err != nil {
		return fmt.Errorf("mark lost report found: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("lost report %s: %w", lostID, database.ErrNotFound)
	}

	res, err = tx.ExecContext(ctx,
		"UPDATE found_reports SET status = 'matched', updated_at = NOW() WHERE id = $1", foundID)
	if err != nil {
		return fmt.Errorf("mark found report matched: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("found report %s: %w", foundID, database.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit resolve pair: %w", err)
	}
	return nil
}

// StatsRepository computes dashboard counters.
type StatsRepository struct {
	pool *Pool
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(pool *Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// Stats returns collection counters.
func (r *StatsRepository) Stats(ctx context.Context) (*database.Stats, error) {
	var s database.Stats
	query := `
		SELECT
			(SELECT COUNT(*) FROM lost_reports),
			(SELECT COUNT(*) FROM found_reports),
			(SELECT COUNT(*) FROM matches),
			(SELECT COUNT(*) FROM lost_reports WHERE status = 'pending'),
			(SELECT COUNT(*) FROM found_reports WHERE status = 'pending'),
			(SELECT COUNT(*) FROM lost_reports WHERE status = 'approved'),
			(SELECT COUNT(*) FROM found_reports WHERE status = 'approved'),
			(SELECT COUNT(*) FROM matches WHERE status = 'pending'),
			(SELECT COUNT(*) FROM matches WHERE status = 'confirmed')
	`
	err := r.pool.QueryRow(ctx, query).Scan(&s.LostReports, &s.FoundReports, &s.Matches,
		&s.PendingLost, &s.PendingFound, &s.ApprovedLost, &s.ApprovedFound,
		&s.PendingMatches, &s.ConfirmedMatches)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &s, nil
}

// Compile-time interface checks
var (
	_ database.MatchWriter  = (*MatchRepository)(nil)
	_ database.PairResolver = (*MatchRepository)(nil)
	_ database.StatsReader  = (*StatsRepository)(nil)
)
