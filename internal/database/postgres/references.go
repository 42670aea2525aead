package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-matcher/internal/database"
)

// ReferenceRepository reads and replaces the reference snapshot table.
type ReferenceRepository struct {
	pool *Pool
}

// NewReferenceRepository creates a new reference repository
func NewReferenceRepository(pool *Pool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

// Load reads every reference embedding in snapshot order and builds the
// reference database.
func (r *ReferenceRepository) Load(ctx context.Context) (*database.ReferenceDB, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT label, embedding
		FROM reference_embeddings
		ORDER BY identity_position, position
	`)
	if err != nil {
		return nil, fmt.Errorf("query reference embeddings: %w", err)
	}
	defer rows.Close()

	var identities []database.Identity
	for rows.Next() {
		var label string
		var vec pgvector.Vector
		if err := rows.Scan(&label, &vec); err != nil {
			return nil, fmt.Errorf("scan reference embedding: %w", err)
		}
		if n := len(identities); n == 0 || identities[n-1].Label != label {
			identities = append(identities, database.Identity{Label: label})
		}
		last := &identities[len(identities)-1]
		last.Embeddings = append(last.Embeddings, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference embeddings: %w", err)
	}

	db, err := database.NewReferenceDB(identities)
	if err != nil {
		return nil, fmt.Errorf("validating reference embeddings: %w", err)
	}
	return db, nil
}

// Replace atomically swaps the stored snapshot for db.
func (r *ReferenceRepository) Replace(ctx context.Context, db *database.ReferenceDB) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM reference_embeddings"); err != nil {
		return fmt.Errorf("clear reference embeddings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reference_embeddings (identity_position, label, position, embedding)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, ident := range db.Identities() {
		for j, emb := range ident.Embeddings {
			if _, err := stmt.ExecContext(ctx, i, ident.Label, j, pgvector.NewVector(emb)); err != nil {
				return fmt.Errorf("insert %s/%d: %w", ident.Label, j, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reference embeddings: %w", err)
	}
	return nil
}

// Count returns the number of identities and reference embeddings stored.
func (r *ReferenceRepository) Count(ctx context.Context) (identities, references int, err error) {
	err = r.pool.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT label), COUNT(*) FROM reference_embeddings",
	).Scan(&identities, &references)
	if err != nil {
		return 0, 0, fmt.Errorf("count reference embeddings: %w", err)
	}
	return identities, references, nil
}
