// Package sqlite is the single-file profile and pattern store used when no
// shared database is configured.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/turtacn/ProtocolIQ/internal/domain/corpus"
	"github.com/turtacn/ProtocolIQ/internal/domain/profile"
	"github.com/turtacn/ProtocolIQ/internal/infrastructure/database/sqlite/migrations"
	"github.com/turtacn/ProtocolIQ/pkg/errors"
)

// Store implements profile.RecordStore and corpus.PatternStore.
type Store struct {
	db   *sql.DB
	path string
}

var (
	_ profile.RecordStore = (*Store)(nil)
	_ corpus.PatternStore = (*Store)(nil)
)

// Open creates or opens the database at path in WAL mode and applies pending
// migrations. The special path ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string, busyTimeout time.Duration) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, errors.Wrap(err, errors.CodeStoreError, "failed to create database directory")
			}
		}
	}
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to open sqlite database")
	}
	// one writer; an in-memory database must also stay on one connection
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

// migrate applies every NNN_name.up.sql newer than the recorded version.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return errors.Wrap(err, errors.CodeMigrationFailed, "failed to create schema_migrations table")
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return errors.Wrap(err, errors.CodeMigrationFailed, "failed to read schema version")
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return errors.Wrap(err, errors.CodeMigrationFailed, "failed to read migrations")
	}
	var ups []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return errors.Wrapf(err, errors.CodeMigrationFailed, "failed to read migration %s", name)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, errors.CodeMigrationFailed, "failed to begin migration")
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, errors.CodeMigrationFailed, "migration %s failed", name)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, errors.CodeMigrationFailed, "failed to record migration %s", name)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, errors.CodeMigrationFailed, "failed to commit migration %s", name)
		}
	}
	return nil
}

// SchemaVersion reports the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, errors.Wrap(err, errors.CodeStoreError, "failed to read schema version")
	}
	return v, nil
}

func (s *Store) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM profiles WHERE user_id = ?", userID).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read profile")
	}
	return profile.Decode([]byte(data))
}

func (s *Store) Put(ctx context.Context, userID string, p *profile.Profile) error {
	data, err := profile.Encode(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userID, string(data))
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to write profile")
	}
	return nil
}

// AppendEvent ignores an event whose ID is already stored.
func (s *Store) AppendEvent(ctx context.Context, e profile.ActionEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode action event")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO action_events (id, user_id, action, context, data, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, string(e.Action), e.Context, string(data), e.Timestamp.UnixNano())
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to append action event")
	}
	return nil
}

// Events returns the stored action log of userID, oldest first.
func (s *Store) Events(ctx context.Context, userID string) ([]profile.ActionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM action_events WHERE user_id = ? ORDER BY occurred_at, rowid", userID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read action events")
	}
	defer rows.Close()

	out := []profile.ActionEvent{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreError, "failed to scan action event")
		}
		var e profile.ActionEvent
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode action event")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read action events")
	}
	return out, nil
}

// SavePatterns replaces the stored set in one transaction.
func (s *Store) SavePatterns(ctx context.Context, patterns []corpus.SuccessPattern) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to begin pattern save")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM success_patterns"); err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to clear success patterns")
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO success_patterns (position, id, data) VALUES (?, ?, ?)")
	if err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to prepare pattern insert")
	}
	defer stmt.Close()
	for i, p := range patterns {
		data, err := json.Marshal(p)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode success pattern")
		}
		if _, err := stmt.ExecContext(ctx, i, p.ID, string(data)); err != nil {
			return errors.Wrap(err, errors.CodeStoreError, "failed to insert success pattern")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeStoreError, "failed to commit success patterns")
	}
	return nil
}

// ListPatterns returns the stored set in the order it was saved.
func (s *Store) ListPatterns(ctx context.Context) ([]corpus.SuccessPattern, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM success_patterns ORDER BY position")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read success patterns")
	}
	defer rows.Close()

	out := []corpus.SuccessPattern{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, errors.CodeStoreError, "failed to scan success pattern")
		}
		var p corpus.SuccessPattern
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode success pattern")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStoreError, "failed to read success patterns")
	}
	return out, nil
}
