package eventbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkade-os/go-swap-engine/types"
)

func TestSwapUpdateDispatchedInRegistrationOrder(t *testing.T) {
	bus := New()
	var order []int

	bus.OnSwapUpdate(func(*types.SwapRecord, types.Status) { order = append(order, 1) })
	bus.OnSwapUpdate(func(*types.SwapRecord, types.Status) { order = append(order, 2) })

	bus.EmitSwapUpdate(&types.SwapRecord{ID: "a"}, types.StatusSwapCreated)
	require.Equal(t, []int{1, 2}, order)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	calls := 0
	unsub := bus.OnSwapCompleted(func(*types.SwapRecord) { calls++ })

	bus.EmitSwapCompleted(&types.SwapRecord{ID: "a"})
	unsub()
	bus.EmitSwapCompleted(&types.SwapRecord{ID: "a"})

	require.Equal(t, 1, calls)
}

func TestPanicInOneObserverDoesNotBlockOthers(t *testing.T) {
	bus := New()
	secondCalled := false

	bus.OnSwapFailed(func(*types.SwapRecord, error) { panic("boom") })
	bus.OnSwapFailed(func(*types.SwapRecord, error) { secondCalled = true })

	require.NotPanics(t, func() {
		bus.EmitSwapFailed(&types.SwapRecord{ID: "a"}, errors.New("fail"))
	})
	require.True(t, secondCalled)
}

func TestManyObserversPerStream(t *testing.T) {
	bus := New()
	count := 0
	bus.OnConnected(func() { count++ })
	bus.OnConnected(func() { count++ })

	bus.EmitConnected()
	require.Equal(t, 2, count)
}
