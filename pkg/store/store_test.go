package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/todoagent/pkg/errorsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "data", "todos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestInsertAndSelectAll(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id1, err := s.Insert(ctx, "buy milk")
			require.NoError(t, err)
			id2, err := s.Insert(ctx, "walk dog")
			require.NoError(t, err)
			assert.Greater(t, id2, id1)

			all, err := s.SelectAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, id1, all[0].ID)
			assert.Equal(t, "buy milk", all[0].Text)
			assert.Equal(t, "walk dog", all[1].Text)
			assert.False(t, all[0].CreatedAt.IsZero())
			assert.WithinDuration(t, time.Now(), all[0].UpdatedAt, time.Minute)
		})
	}
}

func TestSelectWhereMatchesSubstringOnly(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Insert(ctx, "buy milk")
			require.NoError(t, err)
			_, err = s.Insert(ctx, "walk dog")
			require.NoError(t, err)

			got, err := s.SelectWhere(ctx, "milk")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, int64(1), got[0].ID)

			got, err = s.SelectWhere(ctx, "MILK")
			require.NoError(t, err)
			assert.Len(t, got, 1)

			got, err = s.SelectWhere(ctx, "tea")
			require.NoError(t, err)
			assert.Empty(t, got)
			assert.NotNil(t, got)

			_, err = s.Insert(ctx, "Café au lait")
			require.NoError(t, err)
			_, err = s.Insert(ctx, "Überweisung bezahlen")
			require.NoError(t, err)

			got, err = s.SelectWhere(ctx, "CAFÉ")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "Café au lait", got[0].Text)

			got, err = s.SelectWhere(ctx, "überweisung")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, int64(4), got[0].ID)
		})
	}
}

func TestSelectWhereTreatsWildcardsLiterally(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Insert(ctx, "pay 100% of rent")
			require.NoError(t, err)
			_, err = s.Insert(ctx, "call bob")
			require.NoError(t, err)

			got, err := s.SelectWhere(ctx, "%")
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "pay 100% of rent", got[0].Text)

			got, err = s.SelectWhere(ctx, "_")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id, err := s.Insert(ctx, "buy milk")
			require.NoError(t, err)

			require.NoError(t, s.DeleteWhere(ctx, 999))
			all, err := s.SelectAll(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)

			require.NoError(t, s.DeleteWhere(ctx, id))
			all, err = s.SelectAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "todos.db")
	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	_, err = s.Insert(ctx, "persist me")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	all, err := s.SelectAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "persist me", all[0].Text)
}

func TestSQLiteErrorsCarryStoreReason(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.SelectAll(context.Background())
	require.Error(t, err)
	assert.True(t, errorsx.HasReason(err, errorsx.ReasonStore))
}

func TestMemorySeedAdvancesIDs(t *testing.T) {
	m := NewMemoryStore()
	m.Seed(6, "existing")
	id, err := m.Insert(context.Background(), "next")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestOpenDrivers(t *testing.T) {
	s, err := Open(context.Background(), "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(context.Background(), "postgres", "x")
	assert.Error(t, err)
}
