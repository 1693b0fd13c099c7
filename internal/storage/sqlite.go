package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kalambet/seedlink/internal/kvstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the settings records and the job queue.
type Store struct {
	db *sql.DB

	// commitMu serializes batched writes so a clear+rewrite never interleaves
	// with another batch.
	commitMu sync.Mutex
}

var _ kvstore.Store = (*Store)(nil)

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
		dsn = filepath.Join(dataDir, "seedlink.db")
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

// --- Records ---

func (s *Store) Get(key string) (kvstore.Value, bool, error) {
	var kind int
	var raw string
	err := s.db.QueryRow("SELECT kind, value FROM records WHERE key = ?", key).Scan(&kind, &raw)
	if err == sql.ErrNoRows {
		return kvstore.Value{}, false, nil
	}
	if err != nil {
		return kvstore.Value{}, false, err
	}
	v, err := kvstore.Parse(kvstore.Kind(kind), raw)
	if err != nil {
		return kvstore.Value{}, false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) Set(key string, v kvstore.Value) error {
	return s.Commit(kvstore.NewBatch().Set(key, v))
}

func (s *Store) Remove(key string) error {
	return s.Commit(kvstore.NewBatch().Remove(key))
}

func (s *Store) Keys() ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM records ORDER BY key ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) ScanPrefix(prefix string) (map[string]kvstore.Value, error) {
	rows, err := s.db.Query(`SELECT key, kind, value FROM records WHERE substr(key, 1, ?) = ?`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]kvstore.Value)
	for rows.Next() {
		var k, raw string
		var kind int
		if err := rows.Scan(&k, &kind, &raw); err != nil {
			return nil, err
		}
		v, err := kvstore.Parse(kvstore.Kind(kind), raw)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", k, err)
		}
		result[k] = v
	}
	return result, rows.Err()
}

// Commit applies the batch in a single transaction.
func (s *Store) Commit(b *kvstore.Batch) error {
	if b.Empty() {
		return nil
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning commit: %w", err)
	}
	defer tx.Rollback()

	if b.Clears() {
		if _, err := tx.Exec("DELETE FROM records"); err != nil {
			return fmt.Errorf("clearing records: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, op := range b.Ops() {
		if op.Delete {
			if _, err := tx.Exec("DELETE FROM records WHERE key = ?", op.Key); err != nil {
				return fmt.Errorf("removing %s: %w", op.Key, err)
			}
			continue
		}
		_, err := tx.Exec(`
			INSERT INTO records (key, kind, value, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET kind = excluded.kind, value = excluded.value, updated_at = excluded.updated_at`,
			op.Key, int(op.Value.Kind), op.Value.Text(), now,
		)
		if err != nil {
			return fmt.Errorf("writing %s: %w", op.Key, err)
		}
	}

	return tx.Commit()
}
