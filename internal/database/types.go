package database

import (
	"time"
)

// ReportKind distinguishes the two report collections.
type ReportKind string

const (
	KindLost  ReportKind = "lost"
	KindFound ReportKind = "found"
)

// ReportStatus is the lifecycle state of a lost or found report.
type ReportStatus string

const (
	StatusPending  ReportStatus = "pending"
	StatusApproved ReportStatus = "approved"
	StatusRejected ReportStatus = "rejected"
	StatusFound    ReportStatus = "found"   // lost reports only, set on match confirmation
	StatusMatched  ReportStatus = "matched" // found reports only, set on match confirmation
)

// MatchStatus is the review state of a match record.
type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchConfirmed MatchStatus = "confirmed"
	MatchRejected  MatchStatus = "rejected"
)

// ValidLostStatus reports whether s is a lost-report status.
func ValidLostStatus(s ReportStatus) bool {
	switch s {
	case StatusPending, StatusApproved, StatusFound, StatusRejected:
		return true
	}
	return false
}

// ValidFoundStatus reports whether s is a found-report status.
func ValidFoundStatus(s ReportStatus) bool {
	switch s {
	case StatusPending, StatusApproved, StatusMatched, StatusRejected:
		return true
	}
	return false
}

// ValidMatchStatus reports whether s is a match status.
func ValidMatchStatus(s MatchStatus) bool {
	switch s {
	case MatchPending, MatchConfirmed, MatchRejected:
		return true
	}
	return false
}

// Contact holds the reporter's contact details.
type Contact struct {
	Phone string
	Email string
}

// LostReport is a report of a missing person.
type LostReport struct {
	ID           string
	PersonName   string
	Age          int
	Gender       string
	LocationLost string
	DateLost     time.Time
	Description  string
	Contact      Contact
	PhotoURL     string
	ReportedBy   string
	Status       ReportStatus
	Descriptor   []float32 // nil until a face descriptor was extracted
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Eligible reports whether the report takes part in matching.
func (r *LostReport) Eligible() bool {
	return r.Status == StatusApproved && len(r.Descriptor) > 0
}

// FoundReport is a report of a person who was found.
type FoundReport struct {
	ID            string
	FoundLocation string
	FoundDate     time.Time
	Description   string
	EstimatedAge  int
	Gender        string
	Contact       Contact
	PhotoURL      string
	ReportedBy    string
	Status        ReportStatus
	Descriptor    []float32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Eligible reports whether the report takes part in matching.
func (r *FoundReport) Eligible() bool {
	return r.Status == StatusApproved && len(r.Descriptor) > 0
}

// MatchRecord is a proposed pairing of one lost and one found report.
// At most one record exists per (LostID, FoundID).
type MatchRecord struct {
	ID          string
	LostID      string
	FoundID     string
	Score       float64 // similarity in [0, 1]
	Status      MatchStatus
	Notes       string
	MatchedAt   time.Time
	ConfirmedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReportFilter narrows report listings.
type ReportFilter struct {
	Status ReportStatus // empty matches all
	Name   string       // lost reports only; normalized substring match on the person name
	Limit  int
	Offset int
}

// MatchFilter narrows match listings.
type MatchFilter struct {
	Status MatchStatus
	Limit  int
	Offset int
}

// Stats summarizes the stored collections for the admin dashboard.
type Stats struct {
	LostReports      int
	FoundReports     int
	Matches          int
	PendingLost      int
	PendingFound     int
	ApprovedLost     int
	ApprovedFound    int
	PendingMatches   int
	ConfirmedMatches int
}
