package regression

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store records run summaries and per-case outcomes. It keeps case ids and the
// names of mismatched fields only; transcripts and field values are never stored.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// RunSummary is one stored run.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Suite          string        `json:"suite"`
	Preset         string        `json:"preset"`
	LexiconVersion string        `json:"lexicon_version"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Total          int           `json:"total"`
	Passed         int           `json:"passed"`
}

// CaseRecord is one stored case outcome.
type CaseRecord struct {
	RunID     string    `json:"run_id"`
	CaseID    string    `json:"case_id"`
	Passed    bool      `json:"passed"`
	Fields    []string  `json:"mismatched,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// OpenStore creates or opens a run store at path. ":memory:" opens a private
// in-memory database.
func OpenStore(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" a single database and serialises writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		suite TEXT NOT NULL,
		preset TEXT NOT NULL,
		lexicon_version TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		total INTEGER NOT NULL,
		passed INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS case_results (
		run_id TEXT NOT NULL,
		case_id TEXT NOT NULL,
		passed INTEGER NOT NULL,
		fields TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, case_id),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_case_results_case ON case_results(case_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores rep and its case outcomes in one transaction.
func (s *Store) SaveRun(ctx context.Context, rep *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, suite, preset, lexicon_version, started_at, duration_ms, total, passed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.Suite, rep.Preset, rep.LexiconVersion,
		rep.StartedAt.UnixNano(), rep.Duration.Milliseconds(), rep.Total, rep.Passed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO case_results (run_id, case_id, passed, fields) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare case insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range rep.Cases {
		passed := 0
		if c.Passed {
			passed = 1
		}
		if _, err := stmt.ExecContext(ctx, rep.RunID, c.CaseID, passed, strings.Join(c.Fields, ",")); err != nil {
			return fmt.Errorf("failed to insert case %s: %w", c.CaseID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suite, preset, lexicon_version, started_at, duration_ms, total, passed
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, durMs int64
		if err := rows.Scan(&r.RunID, &r.Suite, &r.Preset, &r.LexiconVersion, &started, &durMs, &r.Total, &r.Passed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		r.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// CaseHistory returns up to limit outcomes of one case, newest first.
func (s *Store) CaseHistory(ctx context.Context, caseID string, limit int) ([]CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.run_id, c.case_id, c.passed, c.fields, r.started_at
		FROM case_results c JOIN runs r ON r.id = c.run_id
		WHERE c.case_id = ?
		ORDER BY r.started_at DESC LIMIT ?`, caseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query case history: %w", err)
	}
	defer rows.Close()

	var out []CaseRecord
	for rows.Next() {
		var c CaseRecord
		var passed int
		var fields string
		var started int64
		if err := rows.Scan(&c.RunID, &c.CaseID, &passed, &fields, &started); err != nil {
			return nil, fmt.Errorf("failed to scan case result: %w", err)
		}
		c.Passed = passed == 1
		if fields != "" {
			c.Fields = strings.Split(fields, ",")
		}
		c.StartedAt = time.Unix(0, started)
		out = append(out, c)
	}
	return out, rows.Err()
}
