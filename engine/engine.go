// Package engine implements the swap lifecycle engine, per spec §4.4: the
// monitored/initial record maps, connection lifecycle, status-update
// handling with its persistence-rollback and auto-action invocation rules,
// and the wait_for_completion/subscribe_to_updates futures. The
// resume-on-Start step and the started-once guard are grounded on
// the teacher's lightning-loop-shaped client (Client.Run/resumeSwaps/
// waitForInitialized), generalized from a single swap type to the
// reverse/submarine/chain union this module tracks.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btclog"

	"github.com/arkade-os/go-swap-engine/connection"
	"github.com/arkade-os/go-swap-engine/eventbus"
	"github.com/arkade-os/go-swap-engine/provider"
	"github.com/arkade-os/go-swap-engine/repository"
	"github.com/arkade-os/go-swap-engine/types"
)

var log = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// ActionRunner invokes the transaction orchestrator for an actionable swap.
// Engine treats it as an opaque dependency so this package stays ignorant
// of the orchestrator's VHTLC/Ark wiring, per spec §4.5's "called by the
// engine" boundary.
type ActionRunner interface {
	Run(ctx context.Context, record *types.SwapRecord) (eventbus.Action, error)
}

// Config carries the subset of config.Options the engine itself consults.
type Config struct {
	EnableAutoActions bool
}

type waiter struct {
	ch chan waitResult
}

type waitResult struct {
	txid string
	err  error
}

// Engine is one lifecycle engine instance, per spec §4.4. Multiple
// instances may run in the same process provided no SwapId is monitored by
// more than one, per spec §5's concurrency model.
type Engine struct {
	cfg      Config
	repo     repository.Repository
	provider *provider.Client
	conn     *connection.Manager
	bus      *eventbus.Bus
	runner   ActionRunner

	started uint32

	mu         sync.RWMutex
	initial    map[types.SwapId]*types.SwapRecord
	monitored  map[types.SwapId]*types.SwapRecord
	inProgress map[types.SwapId]struct{}

	swapMusMu sync.Mutex
	swapMus   map[types.SwapId]*sync.Mutex

	subsMu sync.Mutex
	subs   map[types.SwapId][]subscriber

	waitersMu sync.Mutex
	waiters   map[types.SwapId][]waiter

	cancel context.CancelFunc
}

type subscriber struct {
	id       uint64
	callback func(*types.SwapRecord, error)
}

// New constructs an Engine. conn should already be configured (URL, onOpen
// resubscription, poll fallback) but not yet started; Start calls
// conn.Start.
func New(cfg Config, repo repository.Repository, providerClient *provider.Client, conn *connection.Manager, bus *eventbus.Bus, runner ActionRunner) *Engine {
	return &Engine{
		cfg:        cfg,
		repo:       repo,
		provider:   providerClient,
		conn:       conn,
		bus:        bus,
		runner:     runner,
		initial:    make(map[types.SwapId]*types.SwapRecord),
		monitored:  make(map[types.SwapId]*types.SwapRecord),
		inProgress: make(map[types.SwapId]struct{}),
		swapMus:    make(map[types.SwapId]*sync.Mutex),
		subs:       make(map[types.SwapId][]subscriber),
		waiters:    make(map[types.SwapId][]waiter),
	}
}

// Start runs once per instance: it seeds initial with every record, loads
// only non-terminal records into monitored, starts the connection, and,
// when EnableAutoActions is set, resumes immediately actionable swaps.
// Resumption happens right after conn.Start returns; it does not wait for
// the connection to reach Open.
func (e *Engine) Start(ctx context.Context, records []*types.SwapRecord) error {
	if !atomic.CompareAndSwapUint32(&e.started, 0, 1) {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.mu.Lock()
	for _, r := range records {
		e.initial[r.ID] = r
		if !r.IsFinal() {
			e.monitored[r.ID] = r
		}
	}
	e.mu.Unlock()

	e.conn.Start(runCtx)

	e.mu.RLock()
	pending := make([]*types.SwapRecord, 0, len(e.monitored))
	for _, r := range e.monitored {
		pending = append(pending, r)
	}
	e.mu.RUnlock()

	for _, r := range pending {
		if e.cfg.EnableAutoActions && types.IsActionable(r) {
			e.invokeAction(runCtx, r)
		}
	}

	return nil
}

// Stop closes the connection and releases all subscriptions, retaining
// terminal records in the repository untouched, per spec §4.4's stop
// semantics.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.conn.Stop()

	e.subsMu.Lock()
	e.subs = make(map[types.SwapId][]subscriber)
	e.subsMu.Unlock()
}

// AddSwap inserts record into monitored, per spec §4.4's add_swap.
// Subscribing over the wire is the caller's onOpen callback's
// responsibility (it re-subscribes every monitored id on (re)connect).
func (e *Engine) AddSwap(record *types.SwapRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.monitored[record.ID] = record
}

// RemoveSwap drops id from monitored and its subscriptions, per spec
// §4.4's remove_swap.
func (e *Engine) RemoveSwap(id types.SwapId) {
	e.mu.Lock()
	delete(e.monitored, id)
	e.mu.Unlock()

	e.subsMu.Lock()
	delete(e.subs, id)
	e.subsMu.Unlock()
}

// HandleStatusUpdate implements spec §4.4's handle_status_update: a no-op
// on an unchanged status; otherwise update in-memory then repository with
// rollback-on-persistence-failure, emit SwapUpdate, conditionally invoke
// the orchestrator, and retire the record on reaching a terminal status.
func (e *Engine) HandleStatusUpdate(ctx context.Context, id types.SwapId, newStatus types.Status) error {
	e.mu.Lock()
	record, ok := e.monitored[id]
	if !ok {
		e.mu.Unlock()
		return ErrNotMonitored
	}
	if record.Status == newStatus {
		e.mu.Unlock()
		return nil
	}

	oldStatus := record.Status
	oldRecord := record.Clone()
	record.Status = newStatus
	updated := record.Clone()
	e.mu.Unlock()

	if err := e.repo.Save(ctx, updated); err != nil {
		e.mu.Lock()
		record.Status = oldStatus
		e.mu.Unlock()
		return types.Errorf(types.KindStorage, "engine: persist status update for %s: %w", id, err)
	}

	e.bus.EmitSwapUpdate(updated, oldStatus)
	e.notifySubscribers(id, updated, nil)

	if e.cfg.EnableAutoActions && types.IsActionable(updated) {
		e.invokeAction(ctx, updated)
	}

	if updated.IsFinal() {
		e.mu.Lock()
		delete(e.monitored, id)
		e.mu.Unlock()

		e.resolveWaiters(ctx, updated)

		if !updated.IsSuccess() {
			failErr := fmt.Errorf("engine: swap %s terminated with status %s", id, newStatus)
			e.bus.EmitSwapFailed(updated, failErr)
			e.notifySubscribers(id, updated, failErr)
		} else {
			e.bus.EmitSwapCompleted(updated)
			e.notifySubscribers(id, updated, nil)
		}
	}

	_ = oldRecord
	return nil
}

// invokeAction runs the orchestrator under the swap's own mutex, per spec
// §4.4's "invoke orchestrator via the per-swap mutex" rule — concurrent
// status updates for other swaps proceed independently, but a single
// swap's orchestrator invocations never overlap.
func (e *Engine) invokeAction(ctx context.Context, record *types.SwapRecord) {
	mu := e.swapMutex(record.ID)
	mu.Lock()
	defer mu.Unlock()

	action, err := e.runner.Run(ctx, record)
	if err != nil {
		log.Errorf("engine: orchestrator action for %s failed: %v", record.ID, err)
		return
	}
	e.bus.EmitActionExecuted(record, action)
}

func (e *Engine) swapMutex(id types.SwapId) *sync.Mutex {
	e.swapMusMu.Lock()
	defer e.swapMusMu.Unlock()
	mu, ok := e.swapMus[id]
	if !ok {
		mu = &sync.Mutex{}
		e.swapMus[id] = mu
	}
	return mu
}

// WaitForCompletion implements spec §4.4's wait_for_completion: resolves
// immediately for an already-terminal-success record, rejects
// ErrAlreadyCompleted for an already-completed submarine swap, and
// otherwise blocks on the swap's terminal transition.
func (e *Engine) WaitForCompletion(ctx context.Context, id types.SwapId) (string, error) {
	e.mu.RLock()
	record, monitored := e.monitored[id]
	if !monitored {
		record = e.initial[id]
	}
	e.mu.RUnlock()

	if record == nil {
		return "", ErrNotMonitored
	}

	if record.IsFinal() {
		if record.Kind == types.SwapSubmarine && record.IsSuccess() {
			return "", ErrAlreadyCompleted
		}
		if record.IsSuccess() {
			return e.resolveTxid(ctx, record)
		}
		return "", fmt.Errorf("engine: swap %s terminated with status %s", id, record.Status)
	}

	ch := make(chan waitResult, 1)
	e.waitersMu.Lock()
	e.waiters[id] = append(e.waiters[id], waiter{ch: ch})
	e.waitersMu.Unlock()

	select {
	case res := <-ch:
		return res.txid, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *Engine) resolveWaiters(ctx context.Context, record *types.SwapRecord) {
	e.waitersMu.Lock()
	ws := e.waiters[record.ID]
	delete(e.waiters, record.ID)
	e.waitersMu.Unlock()

	if len(ws) == 0 {
		return
	}

	var res waitResult
	if record.IsSuccess() {
		res.txid, res.err = e.resolveTxid(ctx, record)
	} else {
		res.err = fmt.Errorf("engine: swap %s terminated with status %s", record.ID, record.Status)
	}

	for _, w := range ws {
		w.ch <- res
	}
}

// resolveTxid recovers the confirmed settlement txid for a successfully
// completed swap. Only the reverse-swap variant has a dedicated provider
// endpoint (getReverseSwapTxId, per spec §6.1); submarine and chain success
// is instead observed entirely through status transitions, so this returns
// an empty txid for those kinds rather than guessing at an undefined
// upstream call. An empty id from the reverse-swap endpoint is rejected as
// a KindProtocol error.
func (e *Engine) resolveTxid(ctx context.Context, record *types.SwapRecord) (string, error) {
	if record.Kind != types.SwapReverse {
		return "", nil
	}
	resp, err := e.provider.GetReverseSwapTxID(ctx, record.ID)
	if err != nil {
		return "", types.Errorf(types.KindNetwork, "engine: get reverse swap txid: %w", err)
	}
	if resp.ID == "" {
		return "", types.Errorf(types.KindProtocol, "engine: transaction id not available for settled swap %s", record.ID)
	}
	return string(resp.ID), nil
}

// SubscribeToUpdates registers a per-swap observer, per spec §4.4's
// subscribe_to_updates: many observers per id are supported; the returned
// Unsubscribe drops this observer, and the set is dropped once empty.
func (e *Engine) SubscribeToUpdates(id types.SwapId, callback func(*types.SwapRecord, error)) eventbus.Unsubscribe {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	subID := uint64(1)
	for _, s := range e.subs[id] {
		if s.id >= subID {
			subID = s.id + 1
		}
	}
	e.subs[id] = append(e.subs[id], subscriber{id: subID, callback: callback})

	return func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		remaining := e.subs[id][:0]
		for _, s := range e.subs[id] {
			if s.id != subID {
				remaining = append(remaining, s)
			}
		}
		if len(remaining) == 0 {
			delete(e.subs, id)
		} else {
			e.subs[id] = remaining
		}
	}
}

func (e *Engine) notifySubscribers(id types.SwapId, record *types.SwapRecord, err error) {
	e.subsMu.Lock()
	subs := append([]subscriber(nil), e.subs[id]...)
	e.subsMu.Unlock()

	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("engine: subscriber for %s panicked: %v", id, r)
				}
			}()
			s.callback(record, err)
		}()
	}
}
