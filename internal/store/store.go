// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists a manuscript workspace in SQLite: the journal
// specification, the registry snapshot, per-section state and the audit
// trail. Section writes are conditional on the revision and state the
// caller read, and registry writes on the registry version it loaded, so
// two processes racing on the same row cannot both win.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/manuscript-engine/internal/manuscript"
	"github.com/pdiddy/manuscript-engine/internal/registry"
	"github.com/pdiddy/manuscript-engine/pkg/types"
)

const (
	stateDir = ".manuscript"
	dbFile   = "manuscript.db"
)

const (
	metaID       = "manuscript_id"
	metaJournal  = "journal"
	metaRegistry = "registry"
	metaRegVer   = "registry_version"
	metaCreated  = "created_at"
)

// ErrNotInitialized is returned when the workspace holds no manuscript.
var ErrNotInitialized = errors.New("workspace not initialized; run init first")

// ErrAlreadyInitialized is returned by Init on a workspace that already
// holds a manuscript.
var ErrAlreadyInitialized = errors.New("workspace already initialized")

// Store manages the workspace SQLite database. It remembers the registry
// version it last read or wrote; SaveRegistry is conditional on it.
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger

	mu         sync.Mutex
	regVersion int64
}

// Open opens or creates the database at workspace/.manuscript/manuscript.db
// and creates the schema if it does not exist.
func Open(workspace string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Join(workspace, stateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	path := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sections (
			kind TEXT PRIMARY KEY,
			text TEXT NOT NULL DEFAULT '',
			phase TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL,
			revision INTEGER NOT NULL DEFAULT 0,
			stale INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS audit (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			time TEXT NOT NULL,
			section TEXT NOT NULL,
			action TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			revision INTEGER NOT NULL,
			affected TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_section ON audit(section)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Init writes a freshly created manuscript. It fails with
// ErrAlreadyInitialized if the workspace already holds one.
func (s *Store) Init(ctx context.Context, m *manuscript.Manuscript) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM meta WHERE key = ?`, metaID).Scan(&n); err != nil {
		return fmt.Errorf("checking workspace: %w", err)
	}
	if n > 0 {
		return ErrAlreadyInitialized
	}

	if err := putMeta(ctx, tx, metaID, m.ID.String()); err != nil {
		return err
	}
	if err := putMeta(ctx, tx, metaCreated, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := putMetaJSON(ctx, tx, metaJournal, m.Journal); err != nil {
		return err
	}
	if err := putMetaJSON(ctx, tx, metaRegistry, m.Registry.Snapshot()); err != nil {
		return err
	}
	if err := putMeta(ctx, tx, metaRegVer, "0"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sections (kind, text, phase, state, revision, stale, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()
	for _, sec := range m.Sections() {
		if _, err := stmt.ExecContext(ctx,
			string(sec.Kind), sec.Text, string(sec.Phase), string(sec.State),
			sec.Revision, sec.Stale, formatTime(sec.UpdatedAt),
		); err != nil {
			return fmt.Errorf("inserting section %s: %w", sec.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing init: %w", err)
	}
	s.setRegistryVersion(0)
	s.logger.Info("workspace initialized", zap.String("manuscript_id", m.ID.String()), zap.String("path", s.path))
	return nil
}

// Load rebuilds the manuscript from the database. Options are passed to
// manuscript.New after the stored identifier.
func (s *Store) Load(ctx context.Context, opts ...manuscript.Option) (*manuscript.Manuscript, error) {
	idText, err := s.getMeta(ctx, metaID)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idText)
	if err != nil {
		return nil, fmt.Errorf("parsing manuscript id: %w", err)
	}

	var journal types.JournalSpec
	if err := s.getMetaJSON(ctx, metaJournal, &journal); err != nil {
		return nil, err
	}
	// The version is read before the snapshot: a save landing in between
	// makes the next SaveRegistry conflict instead of overwriting it.
	version, err := s.registryVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	var state registry.State
	if err := s.getMetaJSON(ctx, metaRegistry, &state); err != nil {
		return nil, err
	}
	reg, err := registry.FromState(state)
	if err != nil {
		return nil, fmt.Errorf("restoring registry: %w", err)
	}

	sections, err := s.loadSections(ctx)
	if err != nil {
		return nil, err
	}
	audit, err := s.loadAudit(ctx)
	if err != nil {
		return nil, err
	}

	s.setRegistryVersion(version)

	opts = append([]manuscript.Option{manuscript.WithID(id)}, opts...)
	m := manuscript.New(journal, reg, opts...)
	if err := m.Restore(sections, audit); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveRegistry replaces the stored registry snapshot. The write applies
// only while the stored version is the one this Store last read or wrote.
// Otherwise it fails with a RegistryLockedError when the stored snapshot
// froze a structure the caller's snapshot has not, and with a
// registry.ConcurrentModificationError for any other intervening save.
func (s *Store) SaveRegistry(ctx context.Context, reg *registry.Registry) error {
	snap := reg.Snapshot()
	expected := s.loadedRegistryVersion()
	next := expected + 1

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		// Workspaces written before versioning start at 0.
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO meta (key, value) VALUES (?, '0')`, metaRegVer); err != nil {
			return fmt.Errorf("writing %s: %w", metaRegVer, err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE meta SET value = ? WHERE key = ? AND value = ?`,
			strconv.FormatInt(next, 10), metaRegVer, strconv.FormatInt(expected, 10))
		if err != nil {
			return fmt.Errorf("bumping %s: %w", metaRegVer, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking %s: %w", metaRegVer, err)
		}
		if n != 1 {
			return s.registryConflict(ctx, tx, snap, expected)
		}
		return putMetaJSON(ctx, tx, metaRegistry, snap)
	})
	if err != nil {
		return err
	}
	s.setRegistryVersion(next)
	s.logger.Debug("registry saved", zap.Int64("version", next))
	return nil
}

// registryConflict describes why a conditional registry save matched nothing.
func (s *Store) registryConflict(ctx context.Context, tx *sql.Tx, snap registry.State, expected int64) error {
	actual, err := s.registryVersion(ctx, tx)
	if err != nil {
		return err
	}
	var stored registry.State
	var data string
	if err := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaRegistry).Scan(&data); err != nil {
		return fmt.Errorf("reading %s: %w", metaRegistry, err)
	}
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return fmt.Errorf("decoding %s: %w", metaRegistry, err)
	}

	s.logger.Warn("conditional registry save rejected",
		zap.Int64("expected_version", expected),
		zap.Int64("version", actual),
	)
	switch {
	case stored.RefsFrozen && !snap.RefsFrozen:
		return &registry.RegistryLockedError{Structure: registry.StructureReferences, Op: "save registry"}
	case stored.FactsFrozen && !snap.FactsFrozen:
		return &registry.RegistryLockedError{Structure: registry.StructureFacts, Op: "save registry"}
	}
	return &registry.ConcurrentModificationError{Op: "save registry", Expected: expected, Actual: actual}
}

func (s *Store) registryVersion(ctx context.Context, q querier) (int64, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaRegVer).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", metaRegVer, err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s %q: %w", metaRegVer, v, err)
	}
	return n, nil
}

func (s *Store) loadedRegistryVersion() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regVersion
}

func (s *Store) setRegistryVersion(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regVersion = v
}

// SaveJournal replaces the stored journal specification.
func (s *Store) SaveJournal(ctx context.Context, j types.JournalSpec) error {
	return putMetaJSON(ctx, s.db, metaJournal, j)
}

func (s *Store) loadSections(ctx context.Context) ([]manuscript.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, text, phase, state, revision, stale, updated_at FROM sections`)
	if err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()

	var out []manuscript.Section
	for rows.Next() {
		var (
			sec                     manuscript.Section
			kind, phase, state, upd string
		)
		if err := rows.Scan(&kind, &sec.Text, &phase, &state, &sec.Revision, &sec.Stale, &upd); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		sec.Kind = types.SectionKind(kind)
		sec.Phase = types.Phase(phase)
		sec.State = types.SectionState(state)
		sec.UpdatedAt = parseTime(upd)
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (s *Store) loadAudit(ctx context.Context) ([]manuscript.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, time, section, action, reason, revision, affected FROM audit ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying audit trail: %w", err)
	}
	defer rows.Close()

	var out []manuscript.AuditEvent
	for rows.Next() {
		var (
			ev                                    manuscript.AuditEvent
			id, when, section, action, affectedJS string
		)
		if err := rows.Scan(&id, &when, &section, &action, &ev.Reason, &ev.Revision, &affectedJS); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		if ev.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing audit id %q: %w", id, err)
		}
		ev.Time = parseTime(when)
		ev.Section = types.SectionKind(section)
		ev.Action = manuscript.AuditAction(action)
		if err := json.Unmarshal([]byte(affectedJS), &ev.Affected); err != nil {
			return nil, fmt.Errorf("parsing affected sections: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putMeta(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func putMetaJSON(ctx context.Context, db execer, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return putMeta(ctx, db, key, string(data))
}

func (s *Store) getMeta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotInitialized
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) getMetaJSON(ctx context.Context, key string, v any) error {
	data, err := s.getMeta(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
