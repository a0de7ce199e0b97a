// Package buildcache keeps a manifest of fetched builds in an embedded
// SQLite database. The fetch command consults it to skip installers that
// were already downloaded and verified, and the fetched command reports
// what is on disk.
package buildcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

// walJournalSizeLimit caps the WAL file at 64 MiB.
const walJournalSizeLimit = 67108864

// Entry is one fetched build in the manifest. The product, platform,
// version and build columns form the primary key; re-fetching the same
// build replaces its row.
type Entry struct {
	Product   string
	Platform  string
	Version   string
	Build     string
	Filename  string
	Hash      string
	Size      int64
	Path      string
	FetchedAt time.Time
}

// Store is the manifest database handle. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	stmts statements
}

type statements struct {
	record, lookup, list, remove *sql.Stmt
}

// Manifest queries.
const (
	sqlRecordEntry = `INSERT INTO downloads
		(product, platform, version, build, filename, hash, size, path, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product, platform, version, build) DO UPDATE SET
			filename   = excluded.filename,
			hash       = excluded.hash,
			size       = excluded.size,
			path       = excluded.path,
			fetched_at = excluded.fetched_at`

	sqlLookupEntry = `SELECT product, platform, version, build,
			filename, hash, size, path, fetched_at
		FROM downloads
		WHERE product = ? AND platform = ? AND version = ? AND build = ?`

	sqlListEntries = `SELECT product, platform, version, build,
			filename, hash, size, path, fetched_at
		FROM downloads
		ORDER BY fetched_at DESC, product, version, build`

	sqlRemoveEntry = `DELETE FROM downloads
		WHERE product = ? AND platform = ? AND version = ? AND build = ?`
)

// Open creates or opens the manifest database at dbPath, applying pending
// schema migrations and preparing the repeated statements. The parent
// directory is created when missing. Use ":memory:" for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating manifest directory: %w", err)
		}
	}

	logger.Debug("opening download manifest", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Every pooled connection to ":memory:" opens its own private database,
	// so the pool must stay at a single connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}
	if err := s.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	return nil
}

func (s *Store) prepareStatements(ctx context.Context) error {
	defs := []struct {
		dest **sql.Stmt
		sql  string
		name string
	}{
		{&s.stmts.record, sqlRecordEntry, "recordEntry"},
		{&s.stmts.lookup, sqlLookupEntry, "lookupEntry"},
		{&s.stmts.list, sqlListEntries, "listEntries"},
		{&s.stmts.remove, sqlRemoveEntry, "removeEntry"},
	}

	for i := range defs {
		stmt, err := s.db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", defs[i].name, err)
		}
		*defs[i].dest = stmt
	}

	return nil
}

// Record inserts or replaces a manifest entry.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	s.logger.Debug("recording fetched build",
		slog.String("product", e.Product),
		slog.String("version", e.Version),
		slog.String("build", e.Build))

	_, err := s.stmts.record.ExecContext(ctx,
		e.Product, e.Platform, e.Version, e.Build,
		e.Filename, e.Hash, e.Size, e.Path, e.FetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("record %s %s.%s: %w", e.Product, e.Version, e.Build, err)
	}

	return nil
}

// Lookup returns the manifest entry for one build. Returns (nil, nil) when
// the build was never recorded; callers use the nil entry to distinguish
// "not fetched yet" from a lookup failure.
func (s *Store) Lookup(ctx context.Context, product, platform, version, build string) (*Entry, error) {
	entry, err := scanEntry(s.stmts.lookup.QueryRowContext(ctx, product, platform, version, build))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil entry means "not recorded"
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s %s.%s: %w", product, version, build, err)
	}

	return entry, nil
}

// List returns every manifest entry, most recently fetched first.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	rows, err := s.stmts.list.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}

	return entries, nil
}

// Remove deletes a manifest entry. Removing an absent entry is not an
// error, the manifest just stays unchanged.
func (s *Store) Remove(ctx context.Context, product, platform, version, build string) error {
	s.logger.Debug("removing manifest entry",
		slog.String("product", product),
		slog.String("version", version),
		slog.String("build", build))

	_, err := s.stmts.remove.ExecContext(ctx, product, platform, version, build)
	if err != nil {
		return fmt.Errorf("remove %s %s.%s: %w", product, version, build, err)
	}

	return nil
}

// scanEntry scans a full manifest row into an Entry.
func scanEntry(row interface{ Scan(...any) error }) (*Entry, error) {
	e := &Entry{}

	var fetchedAt int64
	err := row.Scan(
		&e.Product, &e.Platform, &e.Version, &e.Build,
		&e.Filename, &e.Hash, &e.Size, &e.Path, &fetchedAt)
	if err != nil {
		return nil, err
	}

	e.FetchedAt = time.Unix(fetchedAt, 0).UTC()
	return e, nil
}

// Close closes the prepared statements and the database connection.
func (s *Store) Close() error {
	stmts := []*sql.Stmt{s.stmts.record, s.stmts.lookup, s.stmts.list, s.stmts.remove}
	for _, stmt := range stmts {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				s.logger.Warn("closing statement", slog.String("error", err.Error()))
			}
		}
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}

	return nil
}
