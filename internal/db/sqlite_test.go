package db

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		mode   PoolMode
		txlock bool
	}{
		{PoolWrite, true},
		{PoolRead, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.mode), func(t *testing.T) {
			dsn := buildDSN("/tmp/meta.sqlite", tc.mode)
			assert.True(t, strings.HasPrefix(dsn, "/tmp/meta.sqlite?"))
			assert.Contains(t, dsn, "_journal_mode=WAL")
			assert.Contains(t, dsn, "_busy_timeout=5000")
			assert.Contains(t, dsn, "_foreign_keys=on")
			if tc.txlock {
				assert.Contains(t, dsn, "_txlock=immediate")
				assert.NotContains(t, dsn, "_query_only")
			} else {
				assert.NotContains(t, dsn, "_txlock")
				assert.Contains(t, dsn, "_query_only=on")
			}
		})
	}
}

func TestOpenSQLite_InvalidMode(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "meta.db"), PoolMode("invalid"), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQLite mode")
}

func TestOpenSQLite_InvalidPath(t *testing.T) {
	_, err := OpenSQLite("/nonexistent/dir/meta.db", PoolWrite, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping sqlite")
}

func TestOpenSQLitePair_PoolSizes(t *testing.T) {
	writeDB, readDB, err := OpenSQLitePair(filepath.Join(t.TempDir(), "meta.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = writeDB.Close()
		_ = readDB.Close()
	})

	assert.Equal(t, 1, writeDB.Stats().MaxOpenConnections)
	assert.Equal(t, 4, readDB.Stats().MaxOpenConnections)

	var fk int
	require.NoError(t, writeDB.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestRunMigrations_CreatesMetastore(t *testing.T) {
	writeDB, readDB := OpenTestSQLite(t)

	for _, table := range []string{"projects", "project_access", "catalog_explores"} {
		var name string
		err := readDB.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}

	// Re-running is a no-op.
	applied, err := RunMigrations(context.Background(), writeDB)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestRunMigrations_CascadesProjectDelete(t *testing.T) {
	writeDB, _ := OpenTestSQLite(t)

	_, err := writeDB.Exec(`INSERT INTO projects (uuid, organization_uuid, name, adapter_type, manifest_uri, created_at, updated_at)
		VALUES ('p1', 'o1', 'shop', 'duckdb', 'manifest.json', 'now', 'now')`)
	require.NoError(t, err)
	_, err = writeDB.Exec(`INSERT INTO catalog_explores (project_uuid, name, explore, compiled_at) VALUES ('p1', 'orders', '{}', 'now')`)
	require.NoError(t, err)
	_, err = writeDB.Exec(`INSERT INTO project_access (project_uuid, principal, role) VALUES ('p1', 'alice', 'owner')`)
	require.Error(t, err, "role is constrained")

	_, err = writeDB.Exec(`DELETE FROM projects WHERE uuid = 'p1'`)
	require.NoError(t, err)

	var n int
	require.NoError(t, writeDB.QueryRow(`SELECT COUNT(*) FROM catalog_explores`).Scan(&n))
	assert.Zero(t, n)
}

func TestOpenSQLitePair_ReadPoolRejectsWrites(t *testing.T) {
	_, readDB := OpenTestSQLite(t)

	_, err := readDB.Exec(`INSERT INTO projects (uuid, organization_uuid, name, adapter_type, manifest_uri, created_at, updated_at)
		VALUES ('p1', 'o1', 'shop', 'duckdb', 'manifest.json', 'now', 'now')`)
	require.Error(t, err)
}

func TestOpenSQLitePair_ConcurrentReadsDuringWrites(t *testing.T) {
	writeDB, readDB := OpenTestSQLite(t)

	_, err := writeDB.Exec(`INSERT INTO projects (uuid, organization_uuid, name, adapter_type, manifest_uri, created_at, updated_at)
		VALUES ('p1', 'o1', 'shop', 'duckdb', 'manifest.json', 'now', 'now')`)
	require.NoError(t, err)

	var wg sync.WaitGroup
	writeErrs := make([]error, 10)
	readErrs := make([]error, 10)
	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, writeErrs[i] = writeDB.Exec(`UPDATE projects SET updated_at = ? WHERE uuid = 'p1'`, i)
		}()
		go func() {
			defer wg.Done()
			var n int
			readErrs[i] = readDB.QueryRow(`SELECT COUNT(*) FROM projects`).Scan(&n)
		}()
	}
	wg.Wait()

	for i := range 10 {
		assert.NoError(t, writeErrs[i], "writer %d", i)
		assert.NoError(t, readErrs[i], "reader %d", i)
	}
}
