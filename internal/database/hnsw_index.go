package database

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/lost-found/internal/facematch"
)

// DescriptorIndex wraps an HNSW graph over eligible lost-report descriptors.
// It only narrows the candidate set; scores always come from facematch.Similarity.
type DescriptorIndex struct {
	graph       *hnsw.Graph[string]
	descriptors map[string][]float32 // live entries; graph nodes missing here were removed
	dim         int
	path        string
	mu          sync.RWMutex
}

// NewDescriptorIndex creates an empty index for descriptors of length dim.
func NewDescriptorIndex(dim int) *DescriptorIndex {
	if dim <= 0 {
		dim = DefaultDescriptorDim
	}
	return &DescriptorIndex{
		descriptors: make(map[string][]float32),
		dim:         dim,
	}
}

func (h *DescriptorIndex) newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index content with the eligible reports.
func (h *DescriptorIndex) Build(reports []LostReport) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.descriptors = make(map[string][]float32, len(reports))
	for i := range reports {
		h.addLocked(reports[i].ID, reports[i].Descriptor)
	}
}

// Add inserts or refreshes a single descriptor.
func (h *DescriptorIndex) Add(id string, descriptor []float32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.addLocked(id, descriptor)
}

func (h *DescriptorIndex) addLocked(id string, descriptor []float32) {
	// The graph rejects vectors of a different dimension.
	if len(descriptor) != h.dim {
		return
	}
	if existing, ok := h.descriptors[id]; ok && slices.Equal(existing, descriptor) {
		return
	}
	if h.graph == nil {
		h.graph = h.newGraph()
	}
	// Add replaces a node with the same key, so an edited descriptor moves in the graph.
	h.graph.Add(hnsw.MakeNode(id, slices.Clone(descriptor)))
	h.descriptors[id] = descriptor
}

// Remove drops a descriptor from search results.
func (h *DescriptorIndex) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// The graph keeps the node; results are filtered against descriptors.
	delete(h.descriptors, id)
}

// Search returns up to k IDs nearest to query with their similarity scores,
// best first.
func (h *DescriptorIndex) Search(query []float32, k int) ([]string, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if k <= 0 || len(h.descriptors) == 0 {
		return nil, nil, nil
	}
	if h.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}
	if len(query) != h.dim {
		return nil, nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(query), h.dim)
	}

	neighbors := h.graph.Search(query, k*HNSWSearchMultiplier)

	type hit struct {
		id    string
		score float64
	}
	hits := make([]hit, 0, len(neighbors))
	for _, n := range neighbors {
		desc, ok := h.descriptors[n.Key]
		if !ok {
			continue
		}
		hits = append(hits, hit{id: n.Key, score: facematch.Similarity(query, desc)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}

	ids := make([]string, len(hits))
	scores := make([]float64, len(hits))
	for i, ht := range hits {
		ids[i] = ht.id
		scores[i] = ht.score
	}
	return ids, scores, nil
}

// Count returns the number of live descriptors.
func (h *DescriptorIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.descriptors)
}

// SetPath sets the path for saving/loading the index.
func (h *DescriptorIndex) SetPath(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.path = path
}

// Save persists the graph to disk. Without a path it is a no-op.
func (h *DescriptorIndex) Save() error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.path == "" {
		return nil
	}

	if h.graph == nil {
		// Remove existing file if index is empty (best-effort cleanup).
		_ = os.Remove(h.path)
		return nil
	}

	f, err := os.Create(h.path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if err := h.graph.Export(f); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}
	return nil
}

// Load restores the graph from path and attaches the live reports. It returns
// false when there is no usable file or the file is stale, in which case the
// caller should Build from the reports instead.
func (h *DescriptorIndex) Load(path string, reports []LostReport) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.path = path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return false, fmt.Errorf("failed to load HNSW index: %w", err)
	}
	if saved.Len() != len(reports) {
		return false, nil
	}

	descriptors := make(map[string][]float32, len(reports))
	for i := range reports {
		if _, ok := saved.Lookup(reports[i].ID); !ok {
			return false, nil
		}
		descriptors[reports[i].ID] = reports[i].Descriptor
	}

	h.graph = saved.Graph
	h.descriptors = descriptors
	return true, nil
}
