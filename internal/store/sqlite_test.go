package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestSQLite opens a SQLite backend in a temp dir.
func createTestSQLite(t *testing.T) (*SQLiteBackend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "medtrack.db")
	b, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b, path
}

func TestOpenSQLite_CreatesNewDatabase(t *testing.T) {
	_, path := createTestSQLite(t)
	_, err := os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpenSQLite_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medtrack.db")
	for i := 0; i < 3; i++ {
		b, err := OpenSQLite(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, b.Close())
	}

	b, err := OpenSQLite(path)
	require.NoError(t, err)
	defer b.Close()

	var version int
	require.NoError(t, b.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSQLiteVersion, version)
}

func TestOpenSQLite_InvalidPath(t *testing.T) {
	_, err := OpenSQLite("/nonexistent/dir/medtrack.db")
	assert.Error(t, err)
}

func TestSQLiteBackend_Pragmas(t *testing.T) {
	b, _ := createTestSQLite(t)
	assert.NoError(t, b.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, b.verifyPragma("busy_timeout", "5000"))
}

func TestSQLiteBackend_GetSetDelete(t *testing.T) {
	b, _ := createTestSQLite(t)
	ctx := context.Background()

	_, ok, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "k", []byte("v1")))
	require.NoError(t, b.Set(ctx, "k", []byte("v2")))
	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, b.Delete(ctx, "k"))
	_, ok, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteBackend_StoreRoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medtrack.db")
	ctx := context.Background()

	b1, err := OpenSQLite(path)
	require.NoError(t, err)
	s1 := New(b1, WithLogger(discardLogger()))
	require.NoError(t, s1.Save(ctx, sampleState("Persisted")))
	require.NoError(t, b1.Close())

	b2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer b2.Close()
	st, err := New(b2, WithLogger(discardLogger())).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", st.Medications[0].Name)
}

func TestSQLiteBackend_CloseNil(t *testing.T) {
	b := &SQLiteBackend{}
	assert.NoError(t, b.Close())
}
