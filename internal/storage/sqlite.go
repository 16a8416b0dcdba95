// Package storage archives completed turns and reusable segmentation
// proposals in SQLite. The archive is a convenience log; session state
// itself lives in memory and carries no durability guarantee.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the turn and proposal archive.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "segmentd.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection sidesteps "database is locked" under concurrent
	// turn commits; the archive write rate is far below where this matters.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migrations not yet recorded in
// schema_version, each inside its own transaction.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Filenames carry the version prefix, so lexical order is apply order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Turns ---

func (s *Store) SaveTurn(t ArchivedTurn) error {
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO turns (id, session_id, created_at, user_input, intent_json, audience_size, metrics_json, response)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.SessionID, created.UTC().Format(time.RFC3339), t.UserInput,
		t.IntentJSON, t.AudienceSize, t.MetricsJSON, t.Response,
	)
	return err
}

// ListTurns returns a session's archived turns, oldest first.
func (s *Store) ListTurns(sessionID string, limit int) ([]ArchivedTurn, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, created_at, user_input, intent_json, audience_size, metrics_json, response
		FROM turns WHERE session_id = ? ORDER BY created_at ASC LIMIT ?`, sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ArchivedTurn
	for rows.Next() {
		var t ArchivedTurn
		var createdAt string
		if err := rows.Scan(&t.ID, &t.SessionID, &createdAt, &t.UserInput, &t.IntentJSON, &t.AudienceSize, &t.MetricsJSON, &t.Response); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		t.CreatedAt = ts
		results = append(results, t)
	}
	return results, rows.Err()
}

// --- Proposals ---

func (s *Store) SaveProposal(p StoredProposal) error {
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO proposals (id, session_id, created_at, payload_json)
		VALUES (?, ?, ?, ?)`,
		p.ID, p.SessionID, created.UTC().Format(time.RFC3339), p.PayloadJSON,
	)
	return err
}

func (s *Store) GetProposal(id string) (StoredProposal, error) {
	var p StoredProposal
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, session_id, created_at, payload_json
		FROM proposals WHERE id = ?`, id,
	).Scan(&p.ID, &p.SessionID, &createdAt, &p.PayloadJSON)
	if err == sql.ErrNoRows {
		return StoredProposal{}, ErrNotFound
	}
	if err != nil {
		return StoredProposal{}, err
	}
	ts, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return StoredProposal{}, fmt.Errorf("parsing created_at: %w", err)
	}
	p.CreatedAt = ts
	return p, nil
}

// ListProposals returns the most recent proposals, newest first.
func (s *Store) ListProposals(limit int) ([]StoredProposal, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, created_at, payload_json
		FROM proposals ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []StoredProposal
	for rows.Next() {
		var p StoredProposal
		var createdAt string
		if err := rows.Scan(&p.ID, &p.SessionID, &createdAt, &p.PayloadJSON); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		p.CreatedAt = ts
		results = append(results, p)
	}
	return results, rows.Err()
}
