package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// runTimeFormat is fixed-width so started_at sorts lexicographically.
const runTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding target profiles, current-role
// profiles and the analysis run history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "trajectory.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
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

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
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

// --- Target profiles ---

// GetTargetProfile returns the raw JSON record stored for userID, or
// ErrNotFound if the user has never saved one.
func (s *Store) GetTargetProfile(userID string) (string, error) {
	var record string
	err := s.db.QueryRow("SELECT record FROM target_profiles WHERE user_id = ?", userID).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return record, err
}

// PutTargetProfile replaces the whole record stored for userID.
func (s *Store) PutTargetProfile(userID, record string) error {
	_, err := s.db.Exec(`
		INSERT INTO target_profiles (user_id, record, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		userID, record, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// --- Role profiles ---

func (s *Store) GetRoleProfile(userID string) (RoleProfile, error) {
	var p RoleProfile
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT user_id, job_role, experience, updated_at
		FROM role_profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.CurrentRole, &p.Experience, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RoleProfile{}, ErrNotFound
	}
	if err != nil {
		return RoleProfile{}, err
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return RoleProfile{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	p.UpdatedAt = t
	return p, nil
}

func (s *Store) PutRoleProfile(p RoleProfile) error {
	_, err := s.db.Exec(`
		INSERT INTO role_profiles (user_id, job_role, experience, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET job_role = excluded.job_role,
			experience = excluded.experience, updated_at = excluded.updated_at`,
		p.UserID, p.CurrentRole, p.Experience, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// --- Analysis runs ---

func (s *Store) StartAnalysisRun(run AnalysisRun) error {
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO analysis_runs (id, user_id, status, target_role, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.UserID, RunRunning, run.TargetRole, startedAt.UTC().Format(runTimeFormat),
	)
	return err
}

// FinishAnalysisRun marks a run as succeeded (errMsg empty) or failed.
func (s *Store) FinishAnalysisRun(id, errMsg string) error {
	status := RunSucceeded
	var lastError sql.NullString
	if errMsg != "" {
		status = RunFailed
		lastError = sql.NullString{String: errMsg, Valid: true}
	}
	res, err := s.db.Exec(`UPDATE analysis_runs SET status = ?, last_error = ?, finished_at = ? WHERE id = ?`,
		status, lastError, time.Now().UTC().Format(runTimeFormat), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAnalysisRuns returns the most recent runs for userID, newest first.
func (s *Store) ListAnalysisRuns(userID string, limit int) ([]AnalysisRun, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, status, target_role, last_error, started_at, finished_at
		FROM analysis_runs WHERE user_id = ? ORDER BY started_at DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AnalysisRun
	for rows.Next() {
		var r AnalysisRun
		var startedAt string
		var lastError, finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.Status, &r.TargetRole, &lastError, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		r.LastError = lastError.String
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at for run %s: %w", r.ID, err)
		}
		if finishedAt.Valid {
			if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt.String); err != nil {
				return nil, fmt.Errorf("parsing finished_at for run %s: %w", r.ID, err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
