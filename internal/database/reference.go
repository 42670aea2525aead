package database

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrDimensionMismatch is returned when two vectors of different length are compared.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmptyLabel is returned when an identity has an empty label.
	ErrEmptyLabel = errors.New("identity label is empty")
	// ErrDuplicateLabel is returned when a label appears more than once.
	ErrDuplicateLabel = errors.New("duplicate identity label")
)

func dimensionError(got, want int) error {
	return fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, got, want)
}

// ReferenceDB is the immutable reference database: identities in a fixed
// order, each with one or more reference embeddings. It is built once and
// shared read-only, so it is safe for concurrent use without locking.
type ReferenceDB struct {
	identities []Identity
	refs       []Reference
	dim        int
	digest     string
}

// NewReferenceDB validates identities and builds the database. Labels are kept
// exactly as given and must be non-empty and unique and every embedding must share one dimensionality.
// The input is copied; later changes to it do not affect the database.
func NewReferenceDB(identities []Identity) (*ReferenceDB, error) {
	db := &ReferenceDB{
		identities: make([]Identity, 0, len(identities)),
	}
	seen := make(map[string]struct{}, len(identities))

	for _, ident := range identities {
		label := ident.Label
		if label == "" {
			return nil, ErrEmptyLabel
		}
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLabel, label)
		}
		seen[label] = struct{}{}

		embeddings := make([][]float32, 0, len(ident.Embeddings))
		for i, emb := range ident.Embeddings {
			if len(emb) == 0 {
				return nil, fmt.Errorf("identity %s, embedding %d is empty", label, i)
			}
			if db.dim == 0 {
				db.dim = len(emb)
			}
			if len(emb) != db.dim {
				return nil, fmt.Errorf("identity %s, embedding %d: %w", label, i, dimensionError(len(emb), db.dim))
			}
			vec := append([]float32(nil), emb...)
			embeddings = append(embeddings, vec)

			v64 := toFloat64(vec)
			db.refs = append(db.refs, Reference{
				Ordinal:   len(db.refs),
				Label:     label,
				Embedding: vec,
				Vector:    v64,
				Norm:      floats.Norm(v64, 2),
			})
		}
		db.identities = append(db.identities, Identity{Label: label, Embeddings: embeddings})
	}

	db.digest = computeDigest(db.identities)
	return db, nil
}

// Identities returns identities in database order. Callers must not modify the result.
func (db *ReferenceDB) Identities() []Identity {
	return db.identities
}

// References returns every reference embedding in iteration order. Callers
// must not modify the result.
func (db *ReferenceDB) References() []Reference {
	return db.refs
}

// Reference returns the reference with the given ordinal.
func (db *ReferenceDB) Reference(ordinal int) (Reference, bool) {
	if ordinal < 0 || ordinal >= len(db.refs) {
		return Reference{}, false
	}
	return db.refs[ordinal], true
}

// Labels returns identity labels in database order.
func (db *ReferenceDB) Labels() []string {
	labels := make([]string, len(db.identities))
	for i, ident := range db.identities {
		labels[i] = ident.Label
	}
	return labels
}

// Len returns the number of identities.
func (db *ReferenceDB) Len() int {
	return len(db.identities)
}

// Count returns the total number of reference embeddings.
func (db *ReferenceDB) Count() int {
	return len(db.refs)
}

// Dim returns the embedding dimensionality, or 0 for a database without embeddings.
func (db *ReferenceDB) Dim() int {
	return db.dim
}

// IsEmpty reports whether the database holds no reference embeddings.
func (db *ReferenceDB) IsEmpty() bool {
	return len(db.refs) == 0
}

// Digest identifies the database content; used to detect stale persisted indexes.
func (db *ReferenceDB) Digest() string {
	return db.digest
}

func computeDigest(identities []Identity) string {
	h := sha256.New()
	var buf [4]byte
	for _, ident := range identities {
		h.Write([]byte(ident.Label))
		h.Write([]byte{0})
		for _, emb := range ident.Embeddings {
			for _, x := range emb {
				binary.LittleEndian.PutUint32(buf[:], math.Float32bits(x))
				h.Write(buf[:])
			}
			h.Write([]byte{1})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
