package facematch

import (
	"fmt"
	"slices"

	"github.com/kozaktomas/face-matcher/internal/database"
)

// HNSWMatcher answers queries from an HNSW graph instead of a full scan. The
// graph proposes candidates, which are re-scored exactly; results are
// approximate when the true best reference is not among the candidates.
type HNSWMatcher struct {
	db         *database.ReferenceDB
	index      *database.HNSWIndex
	candidates int
}

// NewHNSWMatcher creates a matcher over db using a graph built from the same db.
func NewHNSWMatcher(db *database.ReferenceDB, index *database.HNSWIndex) *HNSWMatcher {
	return &HNSWMatcher{
		db:         db,
		index:      index,
		candidates: database.HNSWSearchCandidates,
	}
}

// FindMatch implements Matcher. Ties between candidates keep database order.
func (m *HNSWMatcher) FindMatch(query []float32) (Match, error) {
	if m.db == nil || m.db.IsEmpty() {
		return noMatch(), nil
	}

	ordinals, err := m.index.Search(query, m.candidates)
	if err != nil {
		return noMatch(), fmt.Errorf("searching HNSW index: %w", err)
	}
	if len(ordinals) == 0 {
		// Only zero vectors in the database; they are not in the graph.
		return FindMatch(query, m.db)
	}
	slices.Sort(ordinals)

	q := newQuery(query)
	best := noMatch()
	for _, ordinal := range ordinals {
		ref, ok := m.db.Reference(ordinal)
		if !ok {
			continue
		}
		similarity, err := q.similarity(ref)
		if err != nil {
			return noMatch(), fmt.Errorf("comparing with %s: %w", ref.Label, err)
		}
		if !best.Found || similarity > best.Similarity {
			best = Match{Label: ref.Label, Found: true, Similarity: similarity}
		}
	}
	return best, nil
}
