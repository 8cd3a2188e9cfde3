// Package indexstore persists v3 packet indexes in SQLite so a later
// import of the same recording can seek directly to the packets it needs.
//
// Indexes are keyed by file path and size. Saving an index for a path
// replaces every earlier index for that path, whatever its size.
package indexstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/aedat/internal/aedat"
	"github.com/banshee-data/aedat/internal/monitoring"
	"github.com/banshee-data/aedat/internal/timeutil"
	"github.com/banshee-data/aedat/internal/version"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned by Lookup when no index matches.
var ErrNotFound = errors.New("indexstore: index not found")

// Record describes one stored index without its entries.
type Record struct {
	ID          string
	Path        string
	FileSize    int64
	Complete    bool
	Packets     int
	CreatedAt   time.Time
	ToolVersion string
}

// Store is a SQLite-backed packet index cache. It is safe for concurrent
// use; all access goes through a single connection.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens or creates the database at path and applies pending
// migrations. Use ":memory:" for a private in-memory store.
func Open(path string) (*Store, error) {
	return OpenWithClock(path, timeutil.RealClock{})
}

// OpenWithClock is Open with the clock used to stamp saved indexes.
func OpenWithClock(path string, clock timeutil.Clock) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}

	s := &Store{db: db, clock: clock}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateUp applies all pending migrations.
func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// Closing m would close the shared database handle.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version and dirty state.
func (s *Store) SchemaVersion() (uint, bool, error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// SaveIndex stores ix for the file at path with the given size.
func (s *Store) SaveIndex(path string, size int64, ix *aedat.PacketIndex) error {
	if ix == nil {
		return errors.New("indexstore: nil index")
	}
	path = filepath.Clean(path)
	id := uuid.New().String()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM packet_index_entries WHERE index_id IN (SELECT index_id FROM packet_indexes WHERE path = ?)`, path); err != nil {
		return fmt.Errorf("delete old entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM packet_indexes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete old index: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO packet_indexes (
			index_id, path, file_size, complete, packet_count, created_at_ns, tool_version
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, path, size, ix.Complete, ix.Len(), s.clock.Now().UnixNano(), version.Version,
	)
	if err != nil {
		return fmt.Errorf("insert index: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO packet_index_entries (
			index_id, packet_number, file_offset, event_type, event_size,
			event_number, ts_overflow, timestamp_us
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare entries: %w", err)
	}
	defer stmt.Close()

	for i, e := range ix.Entries {
		var ts sql.NullInt64
		if e.HasTimestamp {
			ts = sql.NullInt64{Int64: e.Timestamp, Valid: true}
		}
		if _, err := stmt.Exec(id, i, e.Offset, e.Type, e.EventSize, e.EventNumber, e.TsOverflow, ts); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	monitoring.Debugf("indexstore: saved %d packets for %s as %s", ix.Len(), path, id)
	return nil
}

// Lookup returns the record stored for path and size, or ErrNotFound.
func (s *Store) Lookup(path string, size int64) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT index_id, path, file_size, complete, packet_count, created_at_ns, tool_version
		FROM packet_indexes
		WHERE path = ? AND file_size = ?`, filepath.Clean(path), size)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// LoadIndex returns the index stored for path and size. A missing index
// is reported as nil with a nil error.
func (s *Store) LoadIndex(path string, size int64) (*aedat.PacketIndex, error) {
	rec, err := s.Lookup(path, size)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT file_offset, event_type, event_size, event_number, ts_overflow, timestamp_us
		FROM packet_index_entries
		WHERE index_id = ?
		ORDER BY packet_number`, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	ix := &aedat.PacketIndex{Complete: rec.Complete, Entries: make([]aedat.PacketEntry, 0, rec.Packets)}
	for rows.Next() {
		var e aedat.PacketEntry
		var ts sql.NullInt64
		if err := rows.Scan(&e.Offset, &e.Type, &e.EventSize, &e.EventNumber, &e.TsOverflow, &ts); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Timestamp, e.HasTimestamp = ts.Int64, ts.Valid
		ix.Entries = append(ix.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ix.Entries) != rec.Packets {
		return nil, fmt.Errorf("index %s holds %d entries, header records %d", rec.ID, len(ix.Entries), rec.Packets)
	}
	return ix, nil
}

// List returns every stored record, newest first.
func (s *Store) List() ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT index_id, path, file_size, complete, packet_count, created_at_ns, tool_version
		FROM packet_indexes
		ORDER BY created_at_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("query indexes: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Delete removes every index stored for path.
func (s *Store) Delete(path string) error {
	path = filepath.Clean(path)
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM packet_index_entries WHERE index_id IN (SELECT index_id FROM packet_indexes WHERE path = ?)`, path); err != nil {
		return fmt.Errorf("delete entries: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM packet_indexes WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var r Record
	var createdNs int64
	if err := row.Scan(&r.ID, &r.Path, &r.FileSize, &r.Complete, &r.Packets, &createdNs, &r.ToolVersion); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, createdNs)
	return &r, nil
}
