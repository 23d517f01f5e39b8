package history

import (
	"fmt"
	"path/filepath"
	"testing"

	"visual-tracer/internal/compare"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "runs.json"))
	require.NoError(t, err)
	return store
}

func TestStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(Record{
		ID:          "run-1",
		URL:         "https://example.com",
		Sensitivity: 70,
		Status:      StatusQueued,
	}))

	record, ok := store.Get("run-1")
	require.True(t, ok)
	assert.Equal(t, "https://example.com", record.URL)
	assert.Equal(t, StatusQueued, record.Status)
	assert.Equal(t, 70, record.Sensitivity)
	assert.False(t, record.CreatedAt.IsZero())

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestStore_SavePreservesCreatedAt(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(Record{ID: "run-1", Status: StatusQueued}))
	first, _ := store.Get("run-1")

	require.NoError(t, store.Save(Record{ID: "run-1", Status: StatusProcessing}))
	second, _ := store.Get("run-1")

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, StatusProcessing, second.Status)
}

func TestStore_Update(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(Record{ID: "run-1", Status: StatusProcessing}))

	err := store.Update("run-1", func(r *Record) {
		r.Status = StatusDone
		r.Result = &compare.Result{OverallSimilarity: 0.97}
	})
	require.NoError(t, err)

	record, _ := store.Get("run-1")
	assert.Equal(t, StatusDone, record.Status)
	require.NotNil(t, record.Result)
	assert.InDelta(t, 0.97, record.Result.OverallSimilarity, 1e-9)

	assert.Error(t, store.Update("missing", func(r *Record) {}))
}

func TestStore_ListPagination(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(Record{
			ID:     fmt.Sprintf("run-%d", i),
			Status: StatusDone,
		}))
	}

	page1, total := store.List(1, 2)
	assert.Equal(t, 5, total)
	assert.Len(t, page1, 2)

	page3, _ := store.List(3, 2)
	assert.Len(t, page3, 1)

	beyond, _ := store.List(9, 2)
	assert.Empty(t, beyond)

	all, _ := store.List(1, 0)
	assert.Len(t, all, 5)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(Record{ID: "old", Status: StatusDone}))
	require.NoError(t, store.Save(Record{ID: "new", Status: StatusDone}))

	records, _ := store.List(1, 0)
	require.Len(t, records, 2)
	assert.False(t, records[0].CreatedAt.Before(records[1].CreatedAt))
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(Record{ID: "run-1", Status: StatusDone}))

	require.NoError(t, store.Delete("run-1"))
	_, ok := store.Get("run-1")
	assert.False(t, ok)

	assert.Error(t, store.Delete("run-1"))
}
