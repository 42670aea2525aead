//go:build integration

package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, *config.DatabaseConfig, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil || container == nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := Open(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open pool: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}
	return pool, cfg, cleanup
}

func TestMigrate_Idempotent(t *testing.T) {
	pool, _, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}

	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("MigrationsApplied() failed: %v", err)
	}
	if len(applied) != 1 || applied[0] != "001_reference_embeddings.sql" {
		t.Errorf("unexpected applied migrations %v", applied)
	}
}

func TestReferenceRepository(t *testing.T) {
	pool, _, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewReferenceRepository(pool)

	t.Run("EmptyTable", func(t *testing.T) {
		db, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if !db.IsEmpty() {
			t.Errorf("expected empty database, got %d references", db.Count())
		}
	})

	t.Run("ReplaceAndLoadKeepsOrder", func(t *testing.T) {
		src, err := database.NewReferenceDB([]database.Identity{
			{Label: "zoe", Embeddings: [][]float32{{0, 1, 0}, {0, 0.9, 0.1}}},
			{Label: "alice", Embeddings: [][]float32{{1, 0, 0}}},
			{Label: "bob", Embeddings: [][]float32{{0, 0, 1}}},
		})
		if err != nil {
			t.Fatalf("NewReferenceDB() failed: %v", err)
		}
		if err := repo.Replace(ctx, src); err != nil {
			t.Fatalf("Replace() failed: %v", err)
		}

		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if got.Digest() != src.Digest() {
			t.Errorf("loaded labels %v differ from stored %v", got.Labels(), src.Labels())
		}

		identities, references, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Count() failed: %v", err)
		}
		if identities != 3 || references != 4 {
			t.Errorf("Count() = %d/%d, want 3/4", identities, references)
		}
	})

	t.Run("ReplaceDropsPrevious", func(t *testing.T) {
		src, err := database.NewReferenceDB([]database.Identity{
			{Label: "carol", Embeddings: [][]float32{{0.5, 0.5, 0}}},
		})
		if err != nil {
			t.Fatalf("NewReferenceDB() failed: %v", err)
		}
		if err := repo.Replace(ctx, src); err != nil {
			t.Fatalf("Replace() failed: %v", err)
		}

		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		labels := got.Labels()
		if len(labels) != 1 || labels[0] != "carol" {
			t.Errorf("labels = %v, want [carol]", labels)
		}
	})
}

func TestReferenceRepository_LoadWithReadOnlyRole(t *testing.T) {
	pool, cfg, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	src, err := database.NewReferenceDB([]database.Identity{
		{Label: "bob", Embeddings: [][]float32{{0, 1}}},
		{Label: "alice", Embeddings: [][]float32{{1, 0}, {0.8, 0.6}}},
	})
	if err != nil {
		t.Fatalf("NewReferenceDB() failed: %v", err)
	}
	if err := NewReferenceRepository(pool).Replace(ctx, src); err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}

	for _, stmt := range []string{
		"CREATE ROLE reader LOGIN PASSWORD 'reader'",
		"GRANT SELECT ON reference_embeddings TO reader",
	} {
		if _, err := pool.db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}

	readerCfg := *cfg
	readerCfg.URL = strings.Replace(cfg.URL, "test:test@", "reader:reader@", 1)
	reader, err := NewPool(ctx, &readerCfg)
	if err != nil {
		t.Fatalf("NewPool() as reader failed: %v", err)
	}
	defer reader.Close()

	got, err := NewReferenceRepository(reader).Load(ctx)
	if err != nil {
		t.Fatalf("Load() as reader failed: %v", err)
	}
	if got.Digest() != src.Digest() {
		t.Errorf("loaded labels %v differ from stored %v", got.Labels(), src.Labels())
	}

	if _, err := reader.db.ExecContext(ctx, "DELETE FROM reference_embeddings"); err == nil {
		t.Error("expected reader role to be denied writes")
	}
}
