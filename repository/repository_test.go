package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arkade-os/go-swap-engine/types"
)

func TestMatchesEmptySetYieldsNoMatch(t *testing.T) {
	r := &types.SwapRecord{ID: "a", Status: types.StatusSwapCreated}
	require.False(t, Matches(r, &Filter{IDs: []types.SwapId{}}))
	require.True(t, Matches(r, &Filter{IDs: nil}))
}

func TestMatchesNarrowsOnAllSetFields(t *testing.T) {
	r := &types.SwapRecord{ID: "a", Kind: types.SwapReverse, Status: types.StatusSwapCreated}

	require.True(t, Matches(r, &Filter{
		IDs:      []types.SwapId{"a"},
		Kinds:    []types.SwapKind{types.SwapReverse},
		Statuses: []types.Status{types.StatusSwapCreated},
	}))
	require.False(t, Matches(r, &Filter{Kinds: []types.SwapKind{types.SwapChain}}))
}

func TestSortRecordsOrdersByCreatedAt(t *testing.T) {
	now := time.Now()
	records := []*types.SwapRecord{
		{ID: "b", CreatedAt: now.Add(2 * time.Minute)},
		{ID: "a", CreatedAt: now},
	}

	SortRecords(records, nil)
	require.Equal(t, types.SwapId("a"), records[0].ID)

	SortRecords(records, &Filter{OrderDirection: OrderDesc})
	require.Equal(t, types.SwapId("b"), records[0].ID)
}
