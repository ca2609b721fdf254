// Package archive keeps a queryable SQLite mirror of the experiment record
// files. The JSON files remain the canonical record; the archive exists so
// history can be filtered and ranked without re-reading every file.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one archived experiment row.
type Entry struct {
	ID            string
	Iteration     int
	Source        string
	Description   string
	Approach      string
	Success       bool
	Score         float64
	Error         string
	ExecutionTime float64
	MemoryMB      float64
	CreatedAt     time.Time
}

// Stats summarizes the archive contents.
type Stats struct {
	Total      int
	Successful int
	BestScore  float64
}

// Options configures an archive Store.
type Options struct {
	// Path to the SQLite database file. Empty uses an in-memory database.
	Path string

	// DB is an existing connection to use instead of opening one.
	DB *sql.DB
}

// Store is the experiment archive.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	ownsDB bool
}

// New opens the archive, creating the schema if needed.
func New(opts Options) (*Store, error) {
	db := opts.DB
	ownsDB := false

	if db == nil {
		dsn := "file::memory:?cache=shared"
		if opts.Path != "" {
			if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create archive directory: %w", err)
			}
			dsn = "file:" + opts.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
		}

		var err error
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		ownsDB = true
	}

	s := &Store{db: db, ownsDB: ownsDB}
	if err := s.initSchema(); err != nil {
		if ownsDB {
			db.Close()
		}
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database if this store opened it.
func (s *Store) Close() error {
	if s.ownsDB && s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Add inserts or replaces an experiment row.
func (s *Store) Add(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO experiments (
			id, iteration, source, description, approach, success,
			score, error, execution_time, memory_mb, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.Iteration, e.Source, e.Description, e.Approach, e.Success,
		e.Score, nullString(e.Error), e.ExecutionTime, e.MemoryMB, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert experiment: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, iteration, source, description, approach, success,
		       score, error, execution_time, memory_mb, created_at
		FROM experiments
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
}

// Best returns the highest-scoring successful entries.
func (s *Store) Best(ctx context.Context, limit int) ([]Entry, error) {
	return s.query(ctx, `
		SELECT id, iteration, source, description, approach, success,
		       score, error, execution_time, memory_mb, created_at
		FROM experiments
		WHERE success = 1
		ORDER BY score DESC, created_at ASC
		LIMIT ?
	`, limit)
}

// Search matches entries whose description or approach contains the term,
// newest first.
func (s *Store) Search(ctx context.Context, term string, limit int) ([]Entry, error) {
	pattern := "%" + term + "%"
	return s.query(ctx, `
		SELECT id, iteration, source, description, approach, success,
		       score, error, execution_time, memory_mb, created_at
		FROM experiments
		WHERE description LIKE ? OR approach LIKE ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, pattern, pattern, limit)
}

// Summary reports archive-wide statistics.
func (s *Store) Summary(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(success), 0),
		       COALESCE(MAX(CASE WHEN success = 1 THEN score END), 0)
		FROM experiments
	`).Scan(&stats.Total, &stats.Successful, &stats.BestScore)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query experiments: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errText sql.NullString
		var createdAt int64
		if err := rows.Scan(
			&e.ID, &e.Iteration, &e.Source, &e.Description, &e.Approach, &e.Success,
			&e.Score, &errText, &e.ExecutionTime, &e.MemoryMB, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan experiment: %w", err)
		}
		e.Error = errText.String
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
