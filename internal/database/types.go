package database

import "time"

// Identity is a labeled group of reference embeddings.
type Identity struct {
	Label      string      `json:"label" yaml:"label"`
	Embeddings [][]float32 `json:"embeddings" yaml:"embeddings"`
}

// Reference is a single reference embedding together with its owning label.
// Ordinal is the position of the reference in database iteration order.
type Reference struct {
	Ordinal   int
	Label     string
	Embedding []float32

	// Vector and Norm are float64 copies precomputed at load time.
	Vector []float64
	Norm   float64
}

// snapshotFile is the gob envelope written by SaveSnapshot.
type snapshotFile struct {
	Version    int
	CreatedAt  time.Time
	Dim        int
	Identities []Identity
}

const currentSnapshotVersion = 1
