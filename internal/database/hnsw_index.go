package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// ErrStaleIndex is returned when a persisted graph does not match the reference database.
var ErrStaleIndex = errors.New("HNSW index is stale")

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	Count     int       `json:"count"`
	Dim       int       `json:"dim"`
	Digest    string    `json:"digest"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"`
}

const hnswMetadataVersion = 1

// HNSWIndex wraps an HNSW graph over the reference embeddings. Node keys are
// reference ordinals, so results map straight back into the ReferenceDB.
type HNSWIndex struct {
	graph *hnsw.Graph[int]
	db    *ReferenceDB
	mu    sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{}
}

func newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Build builds the graph from every reference in db. Zero vectors are left
// out since they have no direction to compare.
func (h *HNSWIndex) Build(db *ReferenceDB) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.db = db
	if db.IsEmpty() {
		h.graph = nil
		return nil
	}

	g := newGraph()
	for _, ref := range db.References() {
		if ref.Norm == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(ref.Ordinal, ref.Embedding))
	}

	h.graph = g
	return nil
}

// Search returns the ordinals of up to k references nearest to query.
func (h *HNSWIndex) Search(query []float32, k int) ([]int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.db == nil {
		return nil, errors.New("index not initialized")
	}
	if h.graph == nil || h.graph.Len() == 0 {
		return nil, nil
	}
	if len(query) != h.db.Dim() {
		return nil, dimensionError(len(query), h.db.Dim())
	}

	neighbors := h.graph.Search(query, k)
	ordinals := make([]int, len(neighbors))
	for i, n := range neighbors {
		ordinals[i] = n.Key
	}
	return ordinals, nil
}

// Count returns the number of indexed references.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.graph == nil {
		return 0
	}
	return h.graph.Len()
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil
}

// SaveWithMetadata persists the graph to path and its metadata to path.meta.
func (h *HNSWIndex) SaveWithMetadata(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close HNSW index file: %w", err)
	}

	metadata := HNSWIndexMetadata{
		Count:     h.graph.Len(),
		Dim:       h.db.Dim(),
		Digest:    h.db.Digest(),
		BuildTime: time.Now().UTC(),
		Version:   hnswMetadataVersion,
	}
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// LoadWithMetadata loads a persisted graph built for db. It returns
// ErrStaleIndex when the metadata does not describe db.
func (h *HNSWIndex) LoadWithMetadata(path string, db *ReferenceDB) error {
	metadata, err := LoadHNSWMetadata(path)
	if err != nil {
		return err
	}
	if metadata.Version != hnswMetadataVersion || metadata.Digest != db.Digest() || metadata.Dim != db.Dim() {
		return ErrStaleIndex
	}

	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to open HNSW index: %w", err)
	}
	defer f.Close()

	g := newGraph()
	if err := g.Import(f); err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}
	if g.Len() != metadata.Count {
		return ErrStaleIndex
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = g
	h.db = db
	return nil
}

// BuildOrLoadHNSW returns an index for db, reusing the graph persisted at path
// when it is up to date and rebuilding (and saving) it otherwise. An empty path
// builds an in-memory index only. The boolean reports whether the graph was loaded.
func BuildOrLoadHNSW(path string, db *ReferenceDB) (*HNSWIndex, bool, error) {
	idx := NewHNSWIndex()
	if path != "" {
		if err := idx.LoadWithMetadata(path, db); err == nil {
			return idx, true, nil
		}
	}

	if err := idx.Build(db); err != nil {
		return nil, false, err
	}
	if path != "" {
		if err := idx.SaveWithMetadata(path); err != nil {
			return idx, false, fmt.Errorf("saving HNSW index: %w", err)
		}
	}
	return idx, false, nil
}
