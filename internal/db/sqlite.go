// Package db opens the SQLite metastore that holds projects, access grants
// and compiled explores.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

// PoolMode selects how a metastore pool is configured.
type PoolMode string

const (
	// PoolWrite is a single connection taking the write lock at BEGIN.
	PoolWrite PoolMode = "write"
	// PoolRead is a query-only pool for concurrent readers.
	PoolRead PoolMode = "read"
)

const (
	defaultReadConns = 4
	busyTimeout      = 5 * time.Second
	pingTimeout      = 5 * time.Second
)

// OpenSQLite opens a metastore pool in the given mode. maxOpen sizes the read
// pool (0 means 4) and is ignored for the write pool.
func OpenSQLite(path string, mode PoolMode, maxOpen int) (*sql.DB, error) {
	conns := 1
	switch mode {
	case PoolWrite:
	case PoolRead:
		conns = maxOpen
		if conns <= 0 {
			conns = defaultReadConns
		}
	default:
		return nil, fmt.Errorf("invalid SQLite mode %q: must be %q or %q", mode, PoolRead, PoolWrite)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

// OpenSQLitePair opens the write pool and a read pool of readMaxOpen
// connections over the same metastore file.
func OpenSQLitePair(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = OpenSQLite(path, PoolWrite, 0)
	if err != nil {
		return nil, nil, err
	}
	readDB, err = OpenSQLite(path, PoolRead, readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}
	return writeDB, readDB, nil
}

func buildDSN(path string, mode PoolMode) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", fmt.Sprint(busyTimeout.Milliseconds()))
	params.Set("_synchronous", "NORMAL")
	params.Set("_foreign_keys", "on")
	switch mode {
	case PoolWrite:
		params.Set("_txlock", "immediate")
	case PoolRead:
		params.Set("_query_only", "on")
	}
	return path + "?" + params.Encode()
}
