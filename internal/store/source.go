package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/jmoiron/sqlx"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// KVSource reads the legacy key-value table in a single query.
type KVSource struct {
	db    *sqlx.DB
	table string
}

// NewKVSource validates table as a plain (optionally schema-qualified)
// identifier, since it is interpolated into the query.
func NewKVSource(db *sqlx.DB, table string) (*KVSource, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid source table name %q", table)
	}
	return &KVSource{db: db, table: table}, nil
}

func (ks *KVSource) ListEntries(ctx context.Context) ([]Entry, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value []byte `db:"value"`
	}

	query := fmt.Sprintf(`SELECT key, value FROM %s`, ks.table)
	if err := ks.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ks.table, err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{Key: r.Key, Value: json.RawMessage(r.Value)})
	}
	return entries, nil
}

// FileSource reads a JSON export of the key-value table: an array of
// {"key": ..., "value": ...} objects.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (fs *FileSource) ListEntries(ctx context.Context) ([]Entry, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", fs.path, err)
	}
	return entries, nil
}
