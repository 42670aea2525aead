package database

import "context"

// Source loads the reference database once at startup.
type Source interface {
	Load(ctx context.Context) (*ReferenceDB, error)
}

// SnapshotSource loads the reference database from a snapshot file.
type SnapshotSource struct {
	Path string
}

// Load implements Source.
func (s SnapshotSource) Load(ctx context.Context) (*ReferenceDB, error) {
	return LoadSnapshot(s.Path)
}
