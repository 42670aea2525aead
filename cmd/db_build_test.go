package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// fileEmbedder embeds an image as the bytes of its content, failing on "bad".
type fileEmbedder struct{}

func (fileEmbedder) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	if string(imageData) == "bad" {
		return nil, errors.New("undecodable")
	}
	out := make([]float32, 2)
	for i := range out {
		out[i] = float32(imageData[i])
	}
	return out, nil
}

func (fileEmbedder) Ready(ctx context.Context) error { return nil }

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCollectImages(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"zoe/1.jpg":                         "ab",
		"alice/2.PNG":                       "cd",
		"alice/1.jpeg":                      "ef",
		"alice/notes.txt":                   "x",
		"empty/readme.md":                   "x",
		".hidden/1.jpg":                     "x",
		"loose.jpg":                         "x",
		strings.Repeat("n", 200) + "/1.jpg": "x",
	})

	groups, err := collectImages(root)
	if err != nil {
		t.Fatalf("collectImages() error = %v", err)
	}

	if len(groups) != 2 || groups[0].Label != "alice" || groups[1].Label != "zoe" {
		t.Fatalf("unexpected groups %+v", groups)
	}
	if groups[0].count() != 2 || filepath.Base(groups[0].Paths[0]) != "1.jpeg" {
		t.Errorf("alice images = %v", groups[0].Paths)
	}
}

func TestCollectImages_MissingDir(t *testing.T) {
	if _, err := collectImages(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestEmbedIdentities(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"alice/1.jpg": "ab",
		"alice/2.jpg": "bad",
		"alice/3.jpg": "cd",
		"bob/1.jpg":   "bad",
		"carol/1.jpg": "ef",
	})
	groups, err := collectImages(root)
	if err != nil {
		t.Fatal(err)
	}

	var done atomic.Int32
	identities, errorCount := embedIdentities(context.Background(), fileEmbedder{}, groups, 3, func() { done.Add(1) })

	if errorCount != 2 {
		t.Errorf("errorCount = %d, want 2", errorCount)
	}
	if done.Load() != 5 {
		t.Errorf("progress callbacks = %d, want 5", done.Load())
	}
	if len(identities) != 2 || identities[0].Label != "alice" || identities[1].Label != "carol" {
		t.Fatalf("unexpected identities %+v", identities)
	}
	alice := identities[0].Embeddings
	if len(alice) != 2 || alice[0][0] != 'a' || alice[1][0] != 'c' {
		t.Errorf("alice embeddings out of order: %v", alice)
	}
}
