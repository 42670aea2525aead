package facematch

import (
	"fmt"

	"github.com/kozaktomas/face-matcher/internal/database"
	"gonum.org/v1/gonum/floats"
)

// Matcher finds the closest reference identity for a query embedding.
// Implementations are safe for concurrent use.
type Matcher interface {
	FindMatch(query []float32) (Match, error)
}

// FindMatch scans every reference in db and returns the label of the one with
// the highest cosine similarity to query. Ties keep the first reference in
// database order. An empty database yields an absent match scored
// NoMatchSimilarity. A query whose dimensionality differs from the references
// fails with database.ErrDimensionMismatch.
func FindMatch(query []float32, db *database.ReferenceDB) (Match, error) {
	best := noMatch()
	if db == nil || db.IsEmpty() {
		return best, nil
	}
	if len(query) != db.Dim() {
		return best, fmt.Errorf("query has %d dimensions, references have %d: %w",
			len(query), db.Dim(), database.ErrDimensionMismatch)
	}

	q := newQuery(query)
	for _, ref := range db.References() {
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

// LinearMatcher is the exact brute-force matcher over an immutable database.
type LinearMatcher struct {
	db *database.ReferenceDB
}

// NewLinearMatcher creates a matcher scanning db on every query.
func NewLinearMatcher(db *database.ReferenceDB) *LinearMatcher {
	return &LinearMatcher{db: db}
}

// FindMatch implements Matcher.
func (m *LinearMatcher) FindMatch(query []float32) (Match, error) {
	return FindMatch(query, m.db)
}

// queryVector holds the float64 form of a query embedding and its norm so that
// each reference comparison is a single dot product.
type queryVector struct {
	vec  []float64
	norm float64
}

func newQuery(v []float32) queryVector {
	vec := make([]float64, len(v))
	for i, x := range v {
		vec[i] = float64(x)
	}
	return queryVector{vec: vec, norm: floats.Norm(vec, 2)}
}

func (q queryVector) similarity(ref database.Reference) (float64, error) {
	return database.CosineSimilarity64(q.vec, q.norm, ref.Vector, ref.Norm)
}
