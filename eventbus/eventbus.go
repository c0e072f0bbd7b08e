// Package eventbus implements the in-process fan-out of lifecycle events to
// multiple observers, per spec §4.6: five typed streams dispatched
// synchronously, in registration order, with panics/errors from one
// observer contained so they don't block delivery to the rest.
package eventbus

import (
	"github.com/btcsuite/btclog"

	"github.com/arkade-os/go-swap-engine/types"
)

var log = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// Action names the orchestrator protocol an ActionExecuted event reports,
// per spec §4.6.
type Action string

const (
	ActionClaim           Action = "claim"
	ActionRefund          Action = "refund"
	ActionClaimArk        Action = "claimArk"
	ActionClaimBtc        Action = "claimBtc"
	ActionRefundArk       Action = "refundArk"
	ActionSignServerClaim Action = "signServerClaim"
)

// Unsubscribe removes a previously registered observer.
type Unsubscribe func()

// SwapUpdateFunc observes a status transition.
type SwapUpdateFunc func(record *types.SwapRecord, oldStatus types.Status)

// SwapCompletedFunc observes a swap reaching terminal success.
type SwapCompletedFunc func(record *types.SwapRecord)

// SwapFailedFunc observes a swap reaching terminal failure.
type SwapFailedFunc func(record *types.SwapRecord, err error)

// ActionExecutedFunc observes an orchestrator action completing.
type ActionExecutedFunc func(record *types.SwapRecord, action Action)

// ConnectedFunc observes the connection manager reaching Open.
type ConnectedFunc func()

// DisconnectedFunc observes the connection manager leaving Open.
type DisconnectedFunc func(err error)

// Bus is the five-stream synchronous event dispatcher. The zero value is
// not usable; construct with New.
type Bus struct {
	swapUpdate     []SwapUpdateFunc
	swapCompleted  []SwapCompletedFunc
	swapFailed     []SwapFailedFunc
	actionExecuted []ActionExecutedFunc
	connected      []ConnectedFunc
	disconnected   []DisconnectedFunc
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{}
}

// OnSwapUpdate registers an observer for swap_update and returns its
// Unsubscribe handle.
func (b *Bus) OnSwapUpdate(fn SwapUpdateFunc) Unsubscribe {
	b.swapUpdate = append(b.swapUpdate, fn)
	idx := len(b.swapUpdate) - 1
	return func() { b.swapUpdate[idx] = nil }
}

// OnSwapCompleted registers an observer for swap_completed.
func (b *Bus) OnSwapCompleted(fn SwapCompletedFunc) Unsubscribe {
	b.swapCompleted = append(b.swapCompleted, fn)
	idx := len(b.swapCompleted) - 1
	return func() { b.swapCompleted[idx] = nil }
}

// OnSwapFailed registers an observer for swap_failed.
func (b *Bus) OnSwapFailed(fn SwapFailedFunc) Unsubscribe {
	b.swapFailed = append(b.swapFailed, fn)
	idx := len(b.swapFailed) - 1
	return func() { b.swapFailed[idx] = nil }
}

// OnActionExecuted registers an observer for action_executed.
func (b *Bus) OnActionExecuted(fn ActionExecutedFunc) Unsubscribe {
	b.actionExecuted = append(b.actionExecuted, fn)
	idx := len(b.actionExecuted) - 1
	return func() { b.actionExecuted[idx] = nil }
}

// OnConnected registers an observer for ws_connected.
func (b *Bus) OnConnected(fn ConnectedFunc) Unsubscribe {
	b.connected = append(b.connected, fn)
	idx := len(b.connected) - 1
	return func() { b.connected[idx] = nil }
}

// OnDisconnected registers an observer for ws_disconnected.
func (b *Bus) OnDisconnected(fn DisconnectedFunc) Unsubscribe {
	b.disconnected = append(b.disconnected, fn)
	idx := len(b.disconnected) - 1
	return func() { b.disconnected[idx] = nil }
}

// EmitSwapUpdate dispatches swap_update to every live observer in
// registration order, catching panics so one bad observer doesn't stop
// delivery to the rest.
func (b *Bus) EmitSwapUpdate(record *types.SwapRecord, oldStatus types.Status) {
	for _, fn := range b.swapUpdate {
		if fn == nil {
			continue
		}
		safeCall(func() { fn(record, oldStatus) })
	}
}

// EmitSwapCompleted dispatches swap_completed.
func (b *Bus) EmitSwapCompleted(record *types.SwapRecord) {
	for _, fn := range b.swapCompleted {
		if fn == nil {
			continue
		}
		safeCall(func() { fn(record) })
	}
}

// EmitSwapFailed dispatches swap_failed.
func (b *Bus) EmitSwapFailed(record *types.SwapRecord, err error) {
	for _, fn := range b.swapFailed {
		if fn == nil {
			continue
		}
		safeCall(func() { fn(record, err) })
	}
}

// EmitActionExecuted dispatches action_executed.
func (b *Bus) EmitActionExecuted(record *types.SwapRecord, action Action) {
	for _, fn := range b.actionExecuted {
		if fn == nil {
			continue
		}
		safeCall(func() { fn(record, action) })
	}
}

// EmitConnected dispatches ws_connected.
func (b *Bus) EmitConnected() {
	for _, fn := range b.connected {
		if fn == nil {
			continue
		}
		safeCall(func() { fn() })
	}
}

// EmitDisconnected dispatches ws_disconnected.
func (b *Bus) EmitDisconnected(err error) {
	for _, fn := range b.disconnected {
		if fn == nil {
			continue
		}
		observer := fn
		safeCall(func() { observer(err) })
	}
}

// safeCall invokes fn, recovering and logging any panic so dispatch to
// later observers continues, per spec §4.6: "observer exceptions are
// caught and logged but do not abort dispatch to later observers."
func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("eventbus: observer panicked: %v", r)
		}
	}()
	fn()
}
