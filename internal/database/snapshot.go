package database

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnsupportedSnapshot is returned for snapshot files with an unknown extension.
var ErrUnsupportedSnapshot = errors.New("unsupported snapshot format")

// ErrInvalidSnapshot is returned when a snapshot cannot be interpreted.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Format is a reference snapshot encoding.
type Format string

const (
	FormatGob  Format = "gob"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	// FormatSQLite snapshots are database files and cannot be streamed.
	FormatSQLite Format = "sqlite"
)

// FormatFromPath picks the snapshot format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gob":
		return FormatGob, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".sqlite", ".sqlite3", ".db":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedSnapshot, path)
	}
}

// LoadSnapshot reads a reference snapshot from disk and builds the database.
func LoadSnapshot(path string) (*ReferenceDB, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	var identities []Identity
	if format == FormatSQLite {
		identities, err = loadSQLite(path)
	} else {
		identities, err = readSnapshot(path, format)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}

	db, err := NewReferenceDB(identities)
	if err != nil {
		return nil, fmt.Errorf("validating snapshot %s: %w", path, err)
	}
	return db, nil
}

func readSnapshot(path string, format Format) ([]Identity, error) {
	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()
	return DecodeSnapshot(bufio.NewReader(f), format)
}

// SaveSnapshot writes db to path in the format implied by its extension.
func SaveSnapshot(path string, db *ReferenceDB) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating snapshot directory: %w", err)
		}
	}
	if format == FormatSQLite {
		return saveSQLite(path, db)
	}

	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, format, db); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// DecodeSnapshot reads identities in snapshot order.
func DecodeSnapshot(r io.Reader, format Format) ([]Identity, error) {
	switch format {
	case FormatGob:
		var snap snapshotFile
		if err := gob.NewDecoder(r).Decode(&snap); err != nil {
			return nil, fmt.Errorf("decoding gob: %w", err)
		}
		if snap.Version > currentSnapshotVersion {
			return nil, fmt.Errorf("%w: version %d is newer than supported %d", ErrInvalidSnapshot, snap.Version, currentSnapshotVersion)
		}
		return snap.Identities, nil
	case FormatJSON:
		return decodeJSON(r)
	case FormatYAML:
		return decodeYAML(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSnapshot, format)
	}
}

// EncodeSnapshot writes db preserving identity order.
func EncodeSnapshot(w io.Writer, format Format, db *ReferenceDB) error {
	switch format {
	case FormatGob:
		snap := snapshotFile{
			Version:    currentSnapshotVersion,
			CreatedAt:  time.Now().UTC(),
			Dim:        db.Dim(),
			Identities: db.Identities(),
		}
		if err := gob.NewEncoder(w).Encode(snap); err != nil {
			return fmt.Errorf("encoding gob: %w", err)
		}
		return nil
	case FormatJSON:
		return encodeJSON(w, db.Identities())
	case FormatYAML:
		return encodeYAML(w, db.Identities())
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedSnapshot, format)
	}
}

// decodeJSON reads an object of label -> [[...], ...] keeping key order,
// which encoding/json discards when decoding into a map.
func decodeJSON(r io.Reader) ([]Identity, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: JSON snapshot must be an object of label to embeddings", ErrInvalidSnapshot)
	}

	var identities []Identity
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading JSON label: %w", err)
		}
		label, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected token %v", ErrInvalidSnapshot, tok)
		}

		var embeddings [][]float32
		if err := dec.Decode(&embeddings); err != nil {
			return nil, fmt.Errorf("reading embeddings for %s: %w", label, err)
		}
		identities = append(identities, Identity{Label: label, Embeddings: embeddings})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading JSON: %w", err)
	}
	return identities, nil
}

func encodeJSON(w io.Writer, identities []Identity) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ident := range identities {
		if i > 0 {
			buf.WriteByte(',')
		}
		label, err := json.Marshal(ident.Label)
		if err != nil {
			return fmt.Errorf("encoding label: %w", err)
		}
		embeddings, err := json.Marshal(ident.Embeddings)
		if err != nil {
			return fmt.Errorf("encoding embeddings for %s: %w", ident.Label, err)
		}
		buf.Write(label)
		buf.WriteByte(':')
		buf.Write(embeddings)
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("indenting JSON: %w", err)
	}
	out.WriteByte('\n')
	if _, err := w.Write(out.Bytes()); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}

// decodeYAML reads a mapping of label -> embeddings via yaml.Node so key order survives.
func decodeYAML(r io.Reader) ([]Identity, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading YAML: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: YAML snapshot must be a mapping of label to embeddings", ErrInvalidSnapshot)
	}

	identities := make([]Identity, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		label := root.Content[i].Value
		var embeddings [][]float32
		if err := root.Content[i+1].Decode(&embeddings); err != nil {
			return nil, fmt.Errorf("reading embeddings for %s: %w", label, err)
		}
		identities = append(identities, Identity{Label: label, Embeddings: embeddings})
	}
	return identities, nil
}

func encodeYAML(w io.Writer, identities []Identity) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, ident := range identities {
		var value yaml.Node
		if err := value.Encode(ident.Embeddings); err != nil {
			return fmt.Errorf("encoding embeddings for %s: %w", ident.Label, err)
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: ident.Label},
			&value,
		)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("writing YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("writing YAML: %w", err)
	}
	return nil
}
