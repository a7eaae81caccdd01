// Package constants provides shared constants used across the codebase.
package constants

// Handler pagination constants
const (
	// DefaultHandlerPageSize is the page size for paginated handler endpoints
	DefaultHandlerPageSize = 20

	// MaxHandlerPageSize caps the limit query parameter
	MaxHandlerPageSize = 100
)

// File upload constants
const (
	// MaxUploadSize is the maximum multipart request size in bytes (10MB)
	MaxUploadSize = 10 << 20
)
