package database

// HNSW index parameters for face descriptors
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier over-fetches from the graph so that entries removed
	// since the build can be filtered out and still fill the requested limit.
	HNSWSearchMultiplier = 3
)

// DefaultDescriptorDim is the face descriptor length produced by the embedding service.
const DefaultDescriptorDim = 128
