package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"archiver-go/internal/archiver"
	"archiver-go/internal/cache/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteCache implements archiver.DiscoveryCache on a SQLite database.
type SQLiteCache struct {
	db    *sql.DB
	clock archiver.Clock
}

// NewSQLiteCache opens (creating if needed) the cache database at path and
// migrates it to the current schema. path can be ":memory:".
func NewSQLiteCache(path string, clock archiver.Clock) (*SQLiteCache, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating cache: %w", err)
	}
	if err := migrations.CheckStatus(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteCache{db: db, clock: clock}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate PRAGMAs.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

func (c *SQLiteCache) Load(root string) ([]*archiver.FileRecord, bool, error) {
	var count int
	err := c.db.QueryRow("SELECT file_count FROM discovery_runs WHERE root = ?", root).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("finding discovery run for %s: %w", root, err)
	}

	rows, err := c.db.Query(`
		SELECT principal_path, sidecar_path, size, hash, relative_path_prefix, paths
		FROM discovered_files WHERE root = ? ORDER BY position`, root)
	if err != nil {
		return nil, false, fmt.Errorf("loading discovered files for %s: %w", root, err)
	}
	defer rows.Close()

	records := make([]*archiver.FileRecord, 0, count)
	for rows.Next() {
		var (
			principal, sidecar, hash, prefix, rawPaths string
			size                                       int64
		)
		if err := rows.Scan(&principal, &sidecar, &size, &hash, &prefix, &rawPaths); err != nil {
			return nil, false, fmt.Errorf("scanning discovered file: %w", err)
		}
		var paths []archiver.PathPair
		if err := json.Unmarshal([]byte(rawPaths), &paths); err != nil {
			return nil, false, fmt.Errorf("decoding paths of %s: %w", principal, err)
		}
		r, err := archiver.RestoreFileRecord(principal, sidecar, size, hash, prefix, paths)
		if err != nil {
			return nil, false, fmt.Errorf("restoring cached record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating discovered files: %w", err)
	}
	if len(records) != count {
		return nil, false, fmt.Errorf("cache for %s holds %d files but recorded %d", root, len(records), count)
	}
	return records, true, nil
}

func (c *SQLiteCache) Save(root string, records []*archiver.FileRecord) (err error) {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec("DELETE FROM discovered_files WHERE root = ?", root); err != nil {
		return fmt.Errorf("clearing discovered files: %w", err)
	}
	if _, err = tx.Exec("DELETE FROM discovery_runs WHERE root = ?", root); err != nil {
		return fmt.Errorf("clearing discovery run: %w", err)
	}
	if _, err = tx.Exec("INSERT INTO discovery_runs (root, discovered_at, file_count) VALUES (?, ?, ?)",
		root, c.clock.Now().UTC(), len(records)); err != nil {
		return fmt.Errorf("recording discovery run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO discovered_files (root, position, principal_path, sidecar_path, size, hash, relative_path_prefix, paths)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		paths, mErr := json.Marshal(r.Paths())
		if mErr != nil {
			err = fmt.Errorf("encoding paths of %s: %w", r.PrincipalPath(), mErr)
			return err
		}
		if _, err = stmt.Exec(root, i, r.PrincipalPath(), r.SidecarPath(), r.Size(), r.Hash(), r.RelativePathPrefix(), string(paths)); err != nil {
			return fmt.Errorf("inserting %s: %w", r.PrincipalPath(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing discovery cache: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

var _ archiver.DiscoveryCache = (*SQLiteCache)(nil)
