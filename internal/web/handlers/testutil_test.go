package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-matcher/internal/database"
	"github.com/kozaktomas/face-matcher/internal/facematch"
	"github.com/kozaktomas/face-matcher/internal/web/middleware"
	"github.com/kozaktomas/face-matcher/internal/web/static"
)

// stubEmbedder returns a fixed embedding (or error) for every image.
type stubEmbedder struct {
	embedding []float32
	err       error
	calls     int
}

func (s *stubEmbedder) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.embedding, nil
}

func (s *stubEmbedder) Ready(ctx context.Context) error {
	return nil
}

// testDB builds the two-identity database {"alice":[[1,0]],"bob":[[0,1]]}.
func testDB(t *testing.T) *database.ReferenceDB {
	t.Helper()
	db, err := database.NewReferenceDB([]database.Identity{
		{Label: "alice", Embeddings: [][]float32{{1, 0}}},
		{Label: "bob", Embeddings: [][]float32{{0, 1}}},
	})
	if err != nil {
		t.Fatalf("failed to build reference database: %v", err)
	}
	return db
}

// testTemplates parses the embedded page templates.
func testTemplates(t *testing.T) *template.Template {
	t.Helper()
	tmpl, err := static.Templates()
	if err != nil {
		t.Fatalf("failed to parse templates: %v", err)
	}
	return tmpl
}

// newTestIndexHandler wires an index handler over the test database and a temp upload dir.
func newTestIndexHandler(t *testing.T, embedder *stubEmbedder, db *database.ReferenceDB) (*IndexHandler, *middleware.FlashStore, string) {
	t.Helper()
	uploadDir := t.TempDir()
	flashes := middleware.NewFlashStore("test-secret")
	t.Cleanup(flashes.Stop)
	h := NewIndexHandler(uploadDir, flashes, embedder, facematch.NewLinearMatcher(db), testTemplates(t))
	return h, flashes, uploadDir
}

// multipartFile builds a multipart body with one file part. An empty field
// name builds a form with only a text field.
func multipartFile(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if field == "" {
		if err := writer.WriteField("comment", "hello"); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	} else {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("failed to write content: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

// uploadRequest creates a multipart POST request.
func uploadRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()
	body, contentType := multipartFile(t, field, filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
