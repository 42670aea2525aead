package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-matcher/internal/facematch"
	"github.com/kozaktomas/face-matcher/internal/fingerprint"
)

func TestMatchHandler_Match(t *testing.T) {
	h := NewMatchHandler(&stubEmbedder{embedding: []float32{0.7, 0.7}}, facematch.NewLinearMatcher(testDB(t)))

	recorder := httptest.NewRecorder()
	h.Match(recorder, uploadRequest(t, "/api/v1/match", "file", "face.jpg", []byte("x")))

	assertStatusCode(t, recorder, http.StatusOK)
	var result MatchResponse
	parseJSONResponse(t, recorder, &result)

	if !result.Matched || result.Label != "alice" || result.DisplayName != "Alice" {
		t.Errorf("unexpected result %+v", result)
	}
	if math.Abs(result.Similarity-math.Sqrt2/2) > 1e-6 {
		t.Errorf("similarity = %f, want %f", result.Similarity, math.Sqrt2/2)
	}
}

func TestMatchHandler_Errors(t *testing.T) {
	tests := []struct {
		name        string
		embedder    *stubEmbedder
		field       string
		wantStatus  int
		wantMessage string
	}{
		{"missing file", &stubEmbedder{embedding: []float32{1, 0}}, "", http.StatusBadRequest, "no file provided"},
		{"no face", &stubEmbedder{err: fmt.Errorf("embed: %w", fingerprint.ErrNoFace)}, "file", http.StatusUnprocessableEntity, "no face detected"},
		{"model failure", &stubEmbedder{err: errors.New("boom")}, "file", http.StatusInternalServerError, "failed to match image"},
		{"dimension mismatch", &stubEmbedder{embedding: []float32{1}}, "file", http.StatusInternalServerError, "failed to match image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMatchHandler(tt.embedder, facematch.NewLinearMatcher(testDB(t)))

			recorder := httptest.NewRecorder()
			h.Match(recorder, uploadRequest(t, "/api/v1/match", tt.field, "face.jpg", []byte("x")))

			assertStatusCode(t, recorder, tt.wantStatus)
			assertJSONError(t, recorder, tt.wantMessage)
		})
	}
}
