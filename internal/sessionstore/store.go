// Package sessionstore backs the optional recentSourceFingerprints
// near-duplicate check with a small SQLite-backed shingle cache. The
// bootstrap pipeline consults it whenever a caller passes a Store and a
// session key; fingerprints are not kept in the JSON session state.
package sessionstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the shingle cache database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the shingle cache at dbPath, enabling WAL mode
// for concurrent reads alongside the writer goroutine.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("sessionstore: create db directory: %w", err)
	}

	escaped := strings.ReplaceAll(dbPath, " ", "%20")
	db, err := sql.Open("sqlite", "file:"+escaped+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessionstore: enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessionstore: initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordFingerprints stores one source's shingle set, replacing any
// prior set recorded under the same session and source id.
func (s *Store) RecordFingerprints(ctx context.Context, sessionKey, sourceID string, shingles []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sessionstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM source_shingles WHERE session_key = ? AND source_id = ?`, sessionKey, sourceID); err != nil {
		return fmt.Errorf("sessionstore: clear prior shingles: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO source_shingles (session_key, source_id, shingle, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sessionstore: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, sh := range shingles {
		if _, err := stmt.ExecContext(ctx, sessionKey, sourceID, sh, now); err != nil {
			return fmt.Errorf("sessionstore: insert shingle: %w", err)
		}
	}

	return tx.Commit()
}

// BestMatch returns the source id in the session whose recorded shingle
// set overlaps most with the given shingles, and the overlap ratio
// (matching shingles over len(shingles)). Returns ("", 0, nil) if the
// session has no prior recorded sources.
func (s *Store) BestMatch(ctx context.Context, sessionKey string, shingles []string) (string, float64, error) {
	if len(shingles) == 0 {
		return "", 0, nil
	}

	counts := make(map[string]int)
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, COUNT(*) FROM source_shingles
		WHERE session_key = ? AND shingle IN (`+placeholders(len(shingles))+`)
		GROUP BY source_id
	`, append([]interface{}{sessionKey}, toAny(shingles)...)...)
	if err != nil {
		return "", 0, fmt.Errorf("sessionstore: query overlap: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sourceID string
		var count int
		if err := rows.Scan(&sourceID, &count); err != nil {
			return "", 0, fmt.Errorf("sessionstore: scan overlap row: %w", err)
		}
		counts[sourceID] = count
	}
	if err := rows.Err(); err != nil {
		return "", 0, fmt.Errorf("sessionstore: iterate overlap rows: %w", err)
	}

	var bestID string
	bestCount := 0
	for id, c := range counts {
		if c > bestCount {
			bestID, bestCount = id, c
		}
	}
	if bestID == "" {
		return "", 0, nil
	}
	return bestID, float64(bestCount) / float64(len(shingles)), nil
}

func placeholders(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("?")
	}
	return sb.String()
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
