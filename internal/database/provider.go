package database

import (
	"errors"
	"sync"
)

// IndexRebuilder is implemented by repositories that keep an in-memory HNSW index
type IndexRebuilder interface {
	// IndexCount returns the number of descriptors in the index
	IndexCount() int
	// IsIndexEnabled returns whether the index is in use
	IsIndexEnabled() bool
	// SaveIndex saves the current index to disk (if path configured)
	SaveIndex() error
}

// Backend groups the repositories of one storage backend.
type Backend struct {
	Lost     LostWriter
	Found    FoundWriter
	Matches  MatchWriter
	Resolver PairResolver
	Stats    StatsReader
	Index    IndexRebuilder // optional
}

var (
	backendMu sync.RWMutex
	backend   *Backend
)

// ErrBackendNotInitialized is returned by GetBackend before RegisterBackend.
var ErrBackendNotInitialized = errors.New("storage backend not initialized: DATABASE_URL is required")

// RegisterBackend registers the active storage backend.
// This is called by the postgres package to avoid import cycles.
func RegisterBackend(b Backend) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backend = &b
}

// GetBackend returns the registered backend.
func GetBackend() (*Backend, error) {
	backendMu.RLock()
	defer backendMu.RUnlock()
	if backend == nil {
		return nil, ErrBackendNotInitialized
	}
	return backend, nil
}
