package facematch

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/kozaktomas/face-matcher/internal/database"
)

func buildDB(t *testing.T, identities ...database.Identity) *database.ReferenceDB {
	t.Helper()
	db, err := database.NewReferenceDB(identities)
	if err != nil {
		t.Fatalf("failed to build database: %v", err)
	}
	return db
}

func aliceBobDB(t *testing.T) *database.ReferenceDB {
	return buildDB(t,
		database.Identity{Label: "alice", Embeddings: [][]float32{{1, 0}}},
		database.Identity{Label: "bob", Embeddings: [][]float32{{0, 1}}},
	)
}

func TestFindMatch_Scenarios(t *testing.T) {
	tests := []struct {
		name           string
		db             *database.ReferenceDB
		query          []float32
		wantFound      bool
		wantLabel      string
		wantSimilarity float64
	}{
		{
			name:           "exact match",
			db:             aliceBobDB(t),
			query:          []float32{1, 0},
			wantFound:      true,
			wantLabel:      "alice",
			wantSimilarity: 1.0,
		},
		{
			name:           "tie resolved by first encountered",
			db:             aliceBobDB(t),
			query:          []float32{0.7, 0.7},
			wantFound:      true,
			wantLabel:      "alice",
			wantSimilarity: math.Sqrt2 / 2,
		},
		{
			name:           "empty database",
			db:             buildDB(t),
			query:          []float32{1, 0},
			wantFound:      false,
			wantLabel:      "",
			wantSimilarity: NoMatchSimilarity,
		},
		{
			name:           "nil database",
			db:             nil,
			query:          []float32{1, 0},
			wantFound:      false,
			wantSimilarity: NoMatchSimilarity,
		},
		{
			name: "best reference wins across labels",
			db: buildDB(t,
				database.Identity{Label: "alice", Embeddings: [][]float32{{1, 0, 0}, {0.5, 0.5, 0}}},
				database.Identity{Label: "bob", Embeddings: [][]float32{{0, 1, 0}, {0.1, 0.9, 0.1}}},
			),
			query:          []float32{0.1, 0.9, 0.1},
			wantFound:      true,
			wantLabel:      "bob",
			wantSimilarity: 1.0,
		},
		{
			name: "all references opposite still yields a label",
			db: buildDB(t,
				database.Identity{Label: "alice", Embeddings: [][]float32{{-1, 0}}},
				database.Identity{Label: "bob", Embeddings: [][]float32{{-2, 0}}},
			),
			query:          []float32{1, 0},
			wantFound:      true,
			wantLabel:      "alice",
			wantSimilarity: -1.0,
		},
		{
			name:           "zero query scores zero",
			db:             aliceBobDB(t),
			query:          []float32{0, 0},
			wantFound:      true,
			wantLabel:      "alice",
			wantSimilarity: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := FindMatch(tt.query, tt.db)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if match.Found != tt.wantFound {
				t.Errorf("Found = %v, want %v", match.Found, tt.wantFound)
			}
			if match.Label != tt.wantLabel {
				t.Errorf("Label = %q, want %q", match.Label, tt.wantLabel)
			}
			if math.Abs(match.Similarity-tt.wantSimilarity) > 1e-6 {
				t.Errorf("Similarity = %v, want %v", match.Similarity, tt.wantSimilarity)
			}
		})
	}
}

func TestFindMatch_DimensionMismatch(t *testing.T) {
	match, err := FindMatch([]float32{1, 0, 0}, aliceBobDB(t))
	if !errors.Is(err, database.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if match.Found {
		t.Error("expected no match on error")
	}
}

func TestFindMatch_Properties(t *testing.T) {
	db := buildDB(t,
		database.Identity{Label: "alice", Embeddings: [][]float32{{0.2, 0.8, -0.1, 0.3}, {0.1, 0.7, 0, 0.4}}},
		database.Identity{Label: "bob", Embeddings: [][]float32{{-0.5, 0.1, 0.9, 0}}},
		database.Identity{Label: "carol", Embeddings: [][]float32{{0.3, -0.3, 0.3, -0.3}}},
	)
	queries := [][]float32{
		{1, 2, 3, 4},
		{-1, -1, -1, -1},
		{0.3, -0.3, 0.3, -0.3},
		{0, 0, 1, 0},
	}

	for _, q := range queries {
		first, err := FindMatch(q, db)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !first.Found || !slices.Contains(db.Labels(), first.Label) {
			t.Errorf("query %v: label %q not in database", q, first.Label)
		}
		if first.Similarity < -1 || first.Similarity > 1 {
			t.Errorf("query %v: similarity %v out of range", q, first.Similarity)
		}

		for range 5 {
			again, _ := FindMatch(q, db)
			if again != first {
				t.Errorf("query %v: repeated match %+v differs from %+v", q, again, first)
			}
		}
	}

	exact, _ := FindMatch([]float32{0.3, -0.3, 0.3, -0.3}, db)
	if exact.Label != "carol" || math.Abs(exact.Similarity-1) > 1e-6 {
		t.Errorf("expected exact match on carol with score 1, got %+v", exact)
	}
}

func TestFindMatch_ReturnsStoredLabel(t *testing.T) {
	db := buildDB(t,
		database.Identity{Label: "alice ", Embeddings: [][]float32{{1, 0}}},
		database.Identity{Label: " bob", Embeddings: [][]float32{{0, 1}}},
	)
	match, err := FindMatch([]float32{1, 0}, db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match.Label != "alice " {
		t.Errorf("expected label %q, got %q", "alice ", match.Label)
	}
	if !slices.Contains(db.Labels(), match.Label) {
		t.Errorf("label %q not in database %q", match.Label, db.Labels())
	}
}

func TestLinearMatcher(t *testing.T) {
	var m Matcher = NewLinearMatcher(aliceBobDB(t))
	match, err := m.FindMatch([]float32{0, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match.Label != "bob" || math.Abs(match.Similarity-1) > 1e-6 {
		t.Errorf("unexpected match %+v", match)
	}
}
