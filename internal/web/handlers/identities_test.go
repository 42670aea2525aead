package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-matcher/internal/database"
)

func TestIdentitiesHandler_List(t *testing.T) {
	db, err := database.NewReferenceDB([]database.Identity{
		{Label: "zoe_novakova", Embeddings: [][]float32{{1, 0}, {0.9, 0.1}}},
		{Label: "Jiří Novák", Embeddings: [][]float32{{0, 1}}},
		{Label: "bob", Embeddings: [][]float32{{0.5, 0.5}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h := NewIdentitiesHandler(db)

	tests := []struct {
		name       string
		query      string
		wantLabels []string
	}{
		{"all in database order", "", []string{"zoe_novakova", "Jiří Novák", "bob"}},
		{"diacritics ignored", "?q=novak", []string{"zoe_novakova", "Jiří Novák"}},
		{"separator ignored", "?q=zoe%20nov", []string{"zoe_novakova"}},
		{"no hits", "?q=alice", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			h.List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities"+tt.query, nil))

			assertStatusCode(t, recorder, http.StatusOK)
			var result IdentitiesResponse
			parseJSONResponse(t, recorder, &result)

			if result.Dim != 2 {
				t.Errorf("dim = %d, want 2", result.Dim)
			}
			if result.Count != len(tt.wantLabels) || len(result.Identities) != len(tt.wantLabels) {
				t.Fatalf("got %d identities, want %d", len(result.Identities), len(tt.wantLabels))
			}
			for i, want := range tt.wantLabels {
				if result.Identities[i].Label != want {
					t.Errorf("identity %d = %s, want %s", i, result.Identities[i].Label, want)
				}
			}
		})
	}
}

func TestIdentitiesHandler_ListDetails(t *testing.T) {
	db, err := database.NewReferenceDB([]database.Identity{
		{Label: "alice_smith", Embeddings: [][]float32{{1, 0}, {0, 1}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recorder := httptest.NewRecorder()
	NewIdentitiesHandler(db).List(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/identities", nil))

	var result IdentitiesResponse
	parseJSONResponse(t, recorder, &result)
	got := result.Identities[0]
	if got.DisplayName != "Alice Smith" || got.References != 2 {
		t.Errorf("unexpected identity %+v", got)
	}
}
