package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkade-os/go-swap-engine/repository"
	"github.com/arkade-os/go-swap-engine/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "swaps.db")
	store, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	record := &types.SwapRecord{
		ID:     "swap-1",
		Kind:   types.SwapReverse,
		Status: types.StatusSwapCreated,
	}
	require.NoError(t, store.Save(ctx, record))

	got, err := store.Get(ctx, "swap-1")
	require.NoError(t, err)
	require.Equal(t, record.ID, got.ID)
	require.Equal(t, record.Status, got.Status)
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSaveIsUpsertAndUpdatesIndex(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	record := &types.SwapRecord{ID: "swap-1", Kind: types.SwapReverse, Status: types.StatusSwapCreated}
	require.NoError(t, store.Save(ctx, record))

	record.Status = types.StatusTransactionConfirm
	require.NoError(t, store.Save(ctx, record))

	results, err := store.GetAll(ctx, &repository.Filter{
		Statuses: []types.Status{types.StatusTransactionConfirm},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	results, err = store.GetAll(ctx, &repository.Filter{
		Statuses: []types.Status{types.StatusSwapCreated},
	})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestEmptyFilterSetYieldsEmptyResult(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Save(ctx, &types.SwapRecord{ID: "swap-1", Kind: types.SwapReverse}))

	results, err := store.GetAll(ctx, &repository.Filter{IDs: []types.SwapId{}})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestClearWipesAllRecords(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Save(ctx, &types.SwapRecord{ID: "swap-1", Kind: types.SwapReverse}))
	require.NoError(t, store.Clear(ctx))

	results, err := store.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestDeleteNonExistentIsNotError(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Delete(context.Background(), "nope"))
}
