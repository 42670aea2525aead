package database

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE identities (
    position INTEGER PRIMARY KEY,
    label    TEXT NOT NULL UNIQUE
);
CREATE TABLE embeddings (
    identity_position INTEGER NOT NULL REFERENCES identities(position),
    position          INTEGER NOT NULL,
    dim               INTEGER NOT NULL,
    vector            BLOB NOT NULL,
    PRIMARY KEY (identity_position, position)
);
`

// loadSQLite reads identities from a SQLite snapshot in stored order.
func loadSQLite(path string) ([]Identity, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT i.label, e.dim, e.vector
		FROM identities i
		LEFT JOIN embeddings e ON e.identity_position = i.position
		ORDER BY i.position, e.position
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	defer rows.Close()

	var identities []Identity
	for rows.Next() {
		var label string
		var dim sql.NullInt64
		var blob []byte
		if err := rows.Scan(&label, &dim, &blob); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if n := len(identities); n == 0 || identities[n-1].Label != label {
			identities = append(identities, Identity{Label: label})
		}
		if !dim.Valid {
			continue
		}
		vec, err := decodeVector(blob, int(dim.Int64))
		if err != nil {
			return nil, fmt.Errorf("identity %s: %w", label, err)
		}
		last := &identities[len(identities)-1]
		last.Embeddings = append(last.Embeddings, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return identities, nil
}

// saveSQLite writes db to a fresh SQLite file at path.
func saveSQLite(path string, db *ReferenceDB) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer conn.Close()

	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	for i, ident := range db.Identities() {
		if _, err := tx.Exec("INSERT INTO identities (position, label) VALUES (?, ?)", i, ident.Label); err != nil {
			return fmt.Errorf("inserting %s: %w", ident.Label, err)
		}
		for j, emb := range ident.Embeddings {
			if _, err := tx.Exec(
				"INSERT INTO embeddings (identity_position, position, dim, vector) VALUES (?, ?, ?, ?)",
				i, j, len(emb), encodeVector(emb)); err != nil {
				return fmt.Errorf("inserting %s/%d: %w", ident.Label, j, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// encodeVector packs v as little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte, dim int) ([]float32, error) {
	if dim <= 0 || len(buf) != 4*dim {
		return nil, fmt.Errorf("%w: vector of %d bytes does not hold %d values", ErrInvalidSnapshot, len(buf), dim)
	}
	v := make([]float32, dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
