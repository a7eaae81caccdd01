// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Image processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) of a photo sent to the embedding server
	MaxImageSize = 1024

	// JPEGQuality is used when re-encoding photos before upload
	JPEGQuality = 85
)

// Embedding server constants
const (
	// EmbeddingTimeout bounds a single face embedding request
	EmbeddingTimeout = 30 * time.Second
)

// Matching constants
const (
	// DefaultCandidateLimit is the default number of nearest lost reports returned for a found report
	DefaultCandidateLimit = 10

	// MaxCandidateLimit caps the candidates query parameter
	MaxCandidateLimit = 100
)
