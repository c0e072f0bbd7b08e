package sqlstore

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
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	record := &types.SwapRecord{ID: "swap-1", Kind: types.SwapSubmarine, Status: types.StatusInvoiceSet}
	require.NoError(t, store.Save(ctx, record))

	got, err := store.Get(ctx, "swap-1")
	require.NoError(t, err)
	require.Equal(t, record.Status, got.Status)
}

func TestSaveUpsertsById(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	record := &types.SwapRecord{ID: "swap-1", Kind: types.SwapSubmarine, Status: types.StatusInvoiceSet}
	require.NoError(t, store.Save(ctx, record))

	record.Status = types.StatusTransactionClaimed
	require.NoError(t, store.Save(ctx, record))

	all, err := store.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, types.StatusTransactionClaimed, all[0].Status)
}

func TestGetAllOrdersByCreatedAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	first := &types.SwapRecord{ID: "swap-1", Kind: types.SwapReverse}
	second := &types.SwapRecord{ID: "swap-2", Kind: types.SwapReverse}
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	all, err := store.GetAll(ctx, &repository.Filter{OrderDirection: repository.OrderDesc})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, types.SwapId("swap-2"), all[0].ID)
}

func TestGetAllEmptyIDSetYieldsNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Save(ctx, &types.SwapRecord{ID: "swap-1", Kind: types.SwapReverse}))

	all, err := store.GetAll(ctx, &repository.Filter{IDs: []types.SwapId{}})
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestGetMissingReturnsErrNotFound(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClearWipesAllRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Save(ctx, &types.SwapRecord{ID: "swap-1", Kind: types.SwapReverse}))
	require.NoError(t, store.Clear(ctx))

	all, err := store.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, all)
}
