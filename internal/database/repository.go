package database

import (
	"context"
)

// LostReader provides read-only access to lost reports
type LostReader interface {
	// GetLost retrieves a lost report by ID, returns nil if not found
	GetLost(ctx context.Context, id string) (*LostReport, error)
	// ListLost returns one page of lost reports (newest first) and the total count for the filter
	ListLost(ctx context.Context, filter ReportFilter) ([]LostReport, int, error)
	// ListEligibleLost returns all approved lost reports that have a descriptor
	ListEligibleLost(ctx context.Context) ([]LostReport, error)
	// NearestLost returns eligible lost reports closest to the descriptor, with similarity scores
	NearestLost(ctx context.Context, descriptor []float32, limit int) ([]LostReport, []float64, error)
}

// LostWriter provides write access to lost reports
type LostWriter interface {
	LostReader

	// CreateLost stores a new report; ID and timestamps are assigned when empty
	CreateLost(ctx context.Context, report *LostReport) error
	// UpdateLost replaces the editable details and the descriptor of an existing report.
	// Status, reporter and timestamps are left alone. Returns ErrNotFound if missing.
	UpdateLost(ctx context.Context, report *LostReport) (*LostReport, error)
	// SetLostStatus changes the report status, returns ErrNotFound if the report does not exist
	SetLostStatus(ctx context.Context, id string, status ReportStatus) (*LostReport, error)
	// DeleteLost removes the report and its matches, returns ErrNotFound if missing
	DeleteLost(ctx context.Context, id string) error
}

// FoundReader provides read-only access to found reports
type FoundReader interface {
	// GetFound retrieves a found report by ID, returns nil if not found
	GetFound(ctx context.Context, id string) (*FoundReport, error)
	// ListFound returns one page of found reports (newest first) and the total count for the filter
	ListFound(ctx context.Context, filter ReportFilter) ([]FoundReport, int, error)
	// ListEligibleFound returns all approved found reports that have a descriptor
	ListEligibleFound(ctx context.Context) ([]FoundReport, error)
}

// FoundWriter provides write access to found reports
type FoundWriter interface {
	FoundReader

	CreateFound(ctx context.Context, report *FoundReport) error
	// UpdateFound replaces the editable details and the descriptor, returns ErrNotFound if missing
	UpdateFound(ctx context.Context, report *FoundReport) (*FoundReport, error)
	SetFoundStatus(ctx context.Context, id string, status ReportStatus) (*FoundReport, error)
	DeleteFound(ctx context.Context, id string) error
}

// MatchReader provides read-only access to match records
type MatchReader interface {
	// GetMatch retrieves a match by ID, returns nil if not found
	GetMatch(ctx context.Context, id string) (*MatchRecord, error)
	// MatchExists checks whether a record exists for the pair
	MatchExists(ctx context.Context, lostID, foundID string) (bool, error)
	// ListMatches returns one page ordered by score then creation time (both descending)
	ListMatches(ctx context.Context, filter MatchFilter) ([]MatchRecord, int, error)
}

// MatchWriter provides write access to match records
type MatchWriter interface {
	MatchReader

	// CreateMatch inserts a record. Returns ErrDuplicateMatch when the pair is
	// already stored; this is enforced by the store, not by a prior read.
	CreateMatch(ctx context.Context, match *MatchRecord) error
	// UpdateMatchStatus sets status and notes, returns ErrNotFound if missing
	UpdateMatchStatus(ctx context.Context, id string, status MatchStatus, notes string) (*MatchRecord, error)
	// DeleteMatch removes a match, returns ErrNotFound if missing
	DeleteMatch(ctx context.Context, id string) error
}

// PairResolver applies the report transitions that follow a confirmed match.
type PairResolver interface {
	// ResolvePair marks the lost report found and the found report matched
	ResolvePair(ctx context.Context, lostID, foundID string) error
}

// StatsReader provides dashboard counters
type StatsReader interface {
	Stats(ctx context.Context) (*Stats, error)
}
