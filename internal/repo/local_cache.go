package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS shape_cache (
    project_id TEXT PRIMARY KEY,
    shapes     BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

// cacheTimeout bounds every cache call; the save path runs them on the
// committing goroutine.
const cacheTimeout = 2 * time.Second

// LocalCache keeps the latest serialized shape list of every open project in
// a local sqlite file, so edits survive a failed remote save.
type LocalCache struct {
	db *sql.DB
}

func NewLocalCache(ctx context.Context, db *sql.DB) (*LocalCache, error) {
	if _, err := db.ExecContext(ctx, cacheSchema); err != nil {
		return nil, fmt.Errorf("create cache table: %w", err)
	}
	return &LocalCache{db: db}, nil
}

func (c *LocalCache) Get(projectID string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	var data []byte
	err := c.db.QueryRowContext(ctx, `SELECT shapes FROM shape_cache WHERE project_id = ?`, projectID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache for %s: %w", projectID, err)
	}
	return data, true, nil
}

func (c *LocalCache) Put(projectID string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	_, err := c.db.ExecContext(ctx, `
        INSERT INTO shape_cache (project_id, shapes, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(project_id) DO UPDATE SET shapes = excluded.shapes, updated_at = excluded.updated_at
    `, projectID, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write cache for %s: %w", projectID, err)
	}
	return nil
}

func (c *LocalCache) Delete(projectID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM shape_cache WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("clear cache for %s: %w", projectID, err)
	}
	return nil
}

// OpenSQLite opens (creating if needed) the sqlite file at dbPath.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
