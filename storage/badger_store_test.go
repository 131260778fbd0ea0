package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()

	store, err := NewBadgerStore("", true)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func TestPersist_WritesOneRecordPerCall(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Persist(ctx, "answer", map[string]any{"text": "42"}))
	require.NoError(t, store.Persist(ctx, "answer", map[string]any{"text": "43"}))
	require.NoError(t, store.Persist(ctx, "vote", map[string]any{"choice": "a"}))

	answers, err := store.CountByEntity("answer")
	require.NoError(t, err)
	assert.Equal(t, 2, answers)

	votes, err := store.CountByEntity("vote")
	require.NoError(t, err)
	assert.Equal(t, 1, votes)

	missing, err := store.CountByEntity("player")
	require.NoError(t, err)
	assert.Equal(t, 0, missing)
}

func TestPersist_HonorsCancelledContext(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Persist(ctx, "answer", map[string]any{"text": "too late"})
	assert.ErrorIs(t, err, context.Canceled)

	count, err := store.CountByEntity("answer")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPersist_RejectsUnmarshalableData(t *testing.T) {
	store := newTestStore(t)

	err := store.Persist(context.Background(), "answer", make(chan int))
	assert.Error(t, err)
}
