package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "fintrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestLoadEmptyDatabase(t *testing.T) {
	repo := newTestRepo(t)

	txs, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)
}

func TestSaveAndLoadKeepsOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := []core.Transaction{
		{ID: "z", Title: "Coffee", Amount: 4.5, Category: "food", Date: "2024-01-10"},
		{ID: "a", Title: "Salary", Amount: 1000, Category: "income", Date: "2024-01-01"},
		{ID: "m", Title: "Rent", Amount: 400, Category: "housing", Date: "2024-01-02"},
	}
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveReplacesCollection(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, []core.Transaction{
		{ID: "a", Title: "One", Amount: 1, Category: "x", Date: "2024-01-01"},
		{ID: "b", Title: "Two", Amount: 2, Category: "x", Date: "2024-01-01"},
	}))
	require.NoError(t, repo.Save(ctx, []core.Transaction{
		{ID: "c", Title: "Three", Amount: 3, Category: "x", Date: "2024-01-01"},
	}))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)

	require.NoError(t, repo.Save(ctx, nil))
	got, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFailedSaveLeavesPreviousCollection(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	orig := []core.Transaction{{ID: "a", Title: "One", Amount: 1, Category: "x", Date: "2024-01-01"}}
	require.NoError(t, repo.Save(ctx, orig))

	// Duplicate primary keys make the second insert fail mid-save.
	err := repo.Save(ctx, []core.Transaction{
		{ID: "dup", Title: "A", Amount: 1, Category: "x", Date: "2024-01-01"},
		{ID: "dup", Title: "B", Amount: 2, Category: "x", Date: "2024-01-01"},
	})
	require.Error(t, err)

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}

func TestLoadNullColumns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.db.ExecContext(ctx, `INSERT INTO transactions (id) VALUES ('bare')`)
	require.NoError(t, err)

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Transaction{{ID: "bare"}}, got)
}

func TestReopenRunsMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")
	ctx := context.Background()

	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, []core.Transaction{{ID: "a", Title: "T", Amount: 1, Category: "c", Date: "2024-01-01"}}))
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, repo.Ping(ctx))
}

func TestCorruptDatabaseStartsEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fintrack.db")
	garbage := []byte(strings.Repeat("this is not a sqlite database. ", 4))
	require.NoError(t, os.WriteFile(dbPath, garbage, 0o644))

	repo, err := NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	ctx := context.Background()

	txs, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)

	want := []core.Transaction{{ID: "a", Title: "Pay", Amount: 100, Category: "income", Date: "2024-02-01"}}
	require.NoError(t, repo.Save(ctx, want))
	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	moved, err := filepath.Glob(dbPath + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	kept, err := os.ReadFile(moved[0])
	require.NoError(t, err)
	assert.Equal(t, garbage, kept)
}

func TestQuarantineMovesJournals(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "fintrack.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("db"), 0o644))
	require.NoError(t, os.WriteFile(dbPath+"-wal", []byte("wal"), 0o644))

	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	moved, err := quarantine(dbPath, now)
	require.NoError(t, err)
	assert.Equal(t, dbPath+".corrupt-20240301T093000", moved)

	assert.NoFileExists(t, dbPath)
	assert.NoFileExists(t, dbPath+"-wal")
	assert.FileExists(t, moved)
	assert.FileExists(t, moved+"-wal")
}

func TestIsCorrupt(t *testing.T) {
	assert.True(t, isCorrupt(errors.New("ping database: file is not a database (26)")))
	assert.True(t, isCorrupt(errors.New("database disk image is malformed")))
	assert.False(t, isCorrupt(errors.New("unable to open database file: permission denied")))
}
