// Package mock provides in-memory implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/lost-found/internal/database"
	"github.com/kozaktomas/lost-found/internal/facematch"
)

type pairKey struct {
	lostID  string
	foundID string
}

// MockStore is an in-memory store implementing the report, match, resolver
// and stats interfaces. Like the PostgreSQL store it enforces one match per
// (lost, found) pair independently of MatchExists.
type MockStore struct {
	mu      sync.RWMutex
	lost    map[string]*database.LostReport
	found   map[string]*database.FoundReport
	matches map[string]*database.MatchRecord
	pairs   map[pairKey]string

	// Error injection
	GetFoundError          error
	ListEligibleLostError  error
	ListEligibleFoundError error
	MatchExistsError       error
	CreateMatchError       error
	UpdateMatchError       error
	ResolvePairError       error
	UpdateReportError      error

	// HideExisting makes MatchExists always report false, simulating two
	// writers that both passed the advisory check.
	HideExisting bool

	// CreateMatchCalls counts CreateMatch invocations, including rejected ones.
	CreateMatchCalls int
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{
		lost:    make(map[string]*database.LostReport),
		found:   make(map[string]*database.FoundReport),
		matches: make(map[string]*database.MatchRecord),
		pairs:   make(map[pairKey]string),
	}
}

// AddLost adds a lost report to the store.
func (m *MockStore) AddLost(r database.LostReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lost[r.ID] = &r
}

// AddFound adds a found report to the store.
func (m *MockStore) AddFound(r database.FoundReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.found[r.ID] = &r
}

// AllMatches returns every stored match.
func (m *MockStore) AllMatches() []database.MatchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.MatchRecord, 0, len(m.matches))
	for _, match := range m.matches {
		out = append(out, *match)
	}
	return out
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// GetLost retrieves a lost report by ID
func (m *MockStore) GetLost(ctx context.Context, id string) (*database.LostReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.lost[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// ListLost lists lost reports, newest first
func (m *MockStore) ListLost(ctx context.Context, filter database.ReportFilter) ([]database.LostReport, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name := facematch.NormalizeName(filter.Name)
	var out []database.LostReport
	for _, r := range m.lost {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if name != "" && !strings.Contains(facematch.NormalizeName(r.PersonName), name) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), len(out), nil
}

// ListEligibleLost returns approved lost reports with descriptors
func (m *MockStore) ListEligibleLost(ctx context.Context) ([]database.LostReport, error) {
	if m.ListEligibleLostError != nil {
		return nil, m.ListEligibleLostError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.LostReport
	for _, r := range m.lost {
		if r.Eligible() {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// NearestLost scores every eligible lost report
func (m *MockStore) NearestLost(ctx context.Context, descriptor []float32, limit int) ([]database.LostReport, []float64, error) {
	eligible, err := m.ListEligibleLost(ctx)
	if err != nil {
		return nil, nil, err
	}
	scores := make(map[string]float64, len(eligible))
	for _, r := range eligible {
		scores[r.ID] = facematch.Similarity(descriptor, r.Descriptor)
	}
	sort.SliceStable(eligible, func(i, j int) bool { return scores[eligible[i].ID] > scores[eligible[j].ID] })
	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	out := make([]float64, len(eligible))
	for i, r := range eligible {
		out[i] = scores[r.ID]
	}
	return eligible, out, nil
}

// CreateLost stores a lost report
func (m *MockStore) CreateLost(ctx context.Context, r *database.LostReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = database.StatusPending
	}
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	cp := *r
	m.lost[r.ID] = &cp
	return nil
}

// UpdateLost replaces the editable fields of a lost report
func (m *MockStore) UpdateLost(ctx context.Context, r *database.LostReport) (*database.LostReport, error) {
	if m.UpdateReportError != nil {
		return nil, m.UpdateReportError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.lost[r.ID]
	if !ok {
		return nil, database.ErrNotFound
	}
	updated := *r
	updated.Status = existing.Status
	updated.ReportedBy = existing.ReportedBy
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	m.lost[r.ID] = &updated
	cp := updated
	return &cp, nil
}

// SetLostStatus changes a lost report status
func (m *MockStore) SetLostStatus(ctx context.Context, id string, status database.ReportStatus) (*database.LostReport, error) {
	if !database.ValidLostStatus(status) {
		return nil, database.ErrInvalidStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.lost[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

// DeleteLost removes a lost report and its matches
func (m *MockStore) DeleteLost(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lost[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.lost, id)
	m.deleteMatchesLocked(func(k pairKey) bool { return k.lostID == id })
	return nil
}

// GetFound retrieves a found report by ID
func (m *MockStore) GetFound(ctx context.Context, id string) (*database.FoundReport, error) {
	if m.GetFoundError != nil {
		return nil, m.GetFoundError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.found[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

// ListFound lists found reports, newest first
func (m *MockStore) ListFound(ctx context.Context, filter database.ReportFilter) ([]database.FoundReport, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.FoundReport
	for _, r := range m.found {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, filter.Limit, filter.Offset), len(out), nil
}

// ListEligibleFound returns approved found reports with descriptors
func (m *MockStore) ListEligibleFound(ctx context.Context) ([]database.FoundReport, error) {
	if m.ListEligibleFoundError != nil {
		return nil, m.ListEligibleFoundError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.FoundReport
	for _, r := range m.found {
		if r.Eligible() {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateFound stores a found report
func (m *MockStore) CreateFound(ctx context.Context, r *database.FoundReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = database.StatusPending
	}
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	cp := *r
	m.found[r.ID] = &cp
	return nil
}

// UpdateFound replaces the editable fields of a found report
func (m *MockStore) UpdateFound(ctx context.Context, r *database.FoundReport) (*database.FoundReport, error) {
	if m.UpdateReportError != nil {
		return nil, m.UpdateReportError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.found[r.ID]
	if !ok {
		return nil, database.ErrNotFound
	}
	updated := *r
	updated.Status = existing.Status
	updated.ReportedBy = existing.ReportedBy
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	m.found[r.ID] = &updated
	cp := updated
	return &cp, nil
}

// SetFoundStatus changes a found report status
func (m *MockStore) SetFoundStatus(ctx context.Context, id string, status database.ReportStatus) (*database.FoundReport, error) {
	if !database.ValidFoundStatus(status) {
		return nil, database.ErrInvalidStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.found[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

// DeleteFound removes a found report and its matches
func (m *MockStore) DeleteFound(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.found[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.found, id)
	m.deleteMatchesLocked(func(k pairKey) bool { return k.foundID == id })
	return nil
}

func (m *MockStore) deleteMatchesLocked(pred func(pairKey) bool) {
	for key, matchID := range m.pairs {
		if pred(key) {
			delete(m.pairs, key)
			delete(m.matches, matchID)
		}
	}
}

// GetMatch retrieves a match by ID
func (m *MockStore) GetMatch(ctx context.Context, id string) (*database.MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *match
	return &cp, nil
}

// MatchExists checks whether the pair is stored
func (m *MockStore) MatchExists(ctx context.Context, lostID, foundID string) (bool, error) {
	if m.MatchExistsError != nil {
		return false, m.MatchExistsError
	}
	if m.HideExisting {
		return false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pairs[pairKey{lostID, foundID}]
	return ok, nil
}

// ListMatches lists matches ordered by score, then creation time
func (m *MockStore) ListMatches(ctx context.Context, filter database.MatchFilter) ([]database.MatchRecord, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.MatchRecord
	for _, match := range m.matches {
		if filter.Status != "" && match.Status != filter.Status {
			continue
		}
		out = append(out, *match)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, filter.Limit, filter.Offset), len(out), nil
}

// CreateMatch inserts a match, enforcing pair uniqueness
func (m *MockStore) CreateMatch(ctx context.Context, match *database.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateMatchCalls++
	if m.CreateMatchError != nil {
		return m.CreateMatchError
	}
	key := pairKey{match.LostID, match.FoundID}
	if _, exists := m.pairs[key]; exists {
		return fmt.Errorf("insert match %s/%s: %w", match.LostID, match.FoundID, database.ErrDuplicateMatch)
	}
	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	if match.Status == "" {
		match.Status = database.MatchPending
	}
	now := time.Now()
	match.CreatedAt, match.UpdatedAt = now, now
	if match.MatchedAt.IsZero() {
		match.MatchedAt = now
	}
	cp := *match
	m.matches[match.ID] = &cp
	m.pairs[key] = match.ID
	return nil
}

// UpdateMatchStatus sets status and notes
func (m *MockStore) UpdateMatchStatus(ctx context.Context, id string, status database.MatchStatus, notes string) (*database.MatchRecord, error) {
	if m.UpdateMatchError != nil {
		return nil, m.UpdateMatchError
	}
	if !database.ValidMatchStatus(status) {
		return nil, database.ErrInvalidStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	now := time.Now()
	match.Status = status
	match.Notes = notes
	match.UpdatedAt = now
	if status == database.MatchConfirmed {
		match.ConfirmedAt = &now
	}
	cp := *match
	return &cp, nil
}

// DeleteMatch removes a match
func (m *MockStore) DeleteMatch(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return database.ErrNotFound
	}
	delete(m.matches, id)
	delete(m.pairs, pairKey{match.LostID, match.FoundID})
	return nil
}

// ResolvePair marks the lost report found and the found report matched
func (m *MockStore) ResolvePair(ctx context.Context, lostID, foundID string) error {
	if m.ResolvePairError != nil {
		return m.ResolvePairError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	lost, ok := m.lost[lostID]
	if !ok {
		return fmt.Errorf("lost report %s: %w", lostID, database.ErrNotFound)
	}
	found, ok := m.found[foundID]
	if !ok {
		return fmt.Errorf("found report %s: %w", foundID, database.ErrNotFound)
	}
	lost.Status = database.StatusFound
	found.Status = database.StatusMatched
	return nil
}

// Stats returns collection counters
func (m *MockStore) Stats(ctx context.Context) (*database.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := &database.Stats{
		LostReports:  len(m.lost),
		FoundReports: len(m.found),
		Matches:      len(m.matches),
	}
	for _, r := range m.lost {
		switch r.Status {
		case database.StatusPending:
			s.PendingLost++
		case database.StatusApproved:
			s.ApprovedLost++
		}
	}
	for _, r := range m.found {
		switch r.Status {
		case database.StatusPending:
			s.PendingFound++
		case database.StatusApproved:
			s.ApprovedFound++
		}
	}
	for _, match := range m.matches {
		switch match.Status {
		case database.MatchPending:
			s.PendingMatches++
		case database.MatchConfirmed:
			s.ConfirmedMatches++
		}
	}
	return s, nil
}

// Compile-time interface checks
var (
	_ database.LostWriter   = (*MockStore)(nil)
	_ database.FoundWriter  = (*MockStore)(nil)
	_ database.MatchWriter  = (*MockStore)(nil)
	_ database.PairResolver = (*MockStore)(nil)
	_ database.StatsReader  = (*MockStore)(nil)
)
