package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arkade-os/go-swap-engine/connection"
	"github.com/arkade-os/go-swap-engine/eventbus"
	"github.com/arkade-os/go-swap-engine/provider"
	"github.com/arkade-os/go-swap-engine/repository"
	"github.com/arkade-os/go-swap-engine/types"
)

type memRepo struct {
	mu      sync.Mutex
	records map[types.SwapId]*types.SwapRecord
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[types.SwapId]*types.SwapRecord)}
}

func (r *memRepo) Save(ctx context.Context, rec *types.SwapRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec.Clone()
	return nil
}

func (r *memRepo) Delete(ctx context.Context, id types.SwapId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *memRepo) Get(ctx context.Context, id types.SwapId) (*types.SwapRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (r *memRepo) GetAll(ctx context.Context, f *repository.Filter) ([]*types.SwapRecord, error) {
	return nil, nil
}

func (r *memRepo) Clear(ctx context.Context) error { return nil }
func (r *memRepo) Close() error                    { return nil }

type noopDialer struct{}

func (noopDialer) Dial(ctx context.Context, url string) (connection.Conn, error) {
	return nil, errors.New("no dial in tests")
}

func newTestConnManager() *connection.Manager {
	cfg := connection.DefaultConfig("ws://unused")
	cfg.MaxConsecutiveFailures = 1 << 30 // never trip polling fallback in these tests
	return connection.New(cfg, noopDialer{}, nil, nil, nil)
}

type stubRunner struct {
	mu    sync.Mutex
	calls []types.SwapId
	err   error
}

func (s *stubRunner) Run(ctx context.Context, record *types.SwapRecord) (eventbus.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, record.ID)
	return eventbus.ActionClaim, s.err
}

func newTestEngine(t *testing.T, runner ActionRunner) (*Engine, *memRepo) {
	t.Helper()
	repo := newMemRepo()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(provider.ReverseSwapTxIDResponse{ID: "settled-txid"})
	}))
	t.Cleanup(server.Close)

	provCfg := provider.DefaultConfig()
	provCfg.BaseURL = server.URL
	prov := provider.NewClient(provCfg)

	bus := eventbus.New()
	conn := newTestConnManager()
	e := New(Config{EnableAutoActions: true}, repo, prov, conn, bus, runner)
	return e, repo
}

func reverseRecord(id types.SwapId, status types.Status) *types.SwapRecord {
	return &types.SwapRecord{
		ID:     id,
		Kind:   types.SwapReverse,
		Status: status,
		Reverse: &types.ReverseSwap{
			Preimage: [32]byte{1, 2, 3},
		},
	}
}

func TestStartIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, &stubRunner{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, e.Start(ctx, nil))
	require.ErrorIs(t, e.Start(ctx, nil), ErrAlreadyStarted)
	e.Stop()
}

func TestHandleStatusUpdateSkipsUnchangedStatus(t *testing.T) {
	e, repo := newTestEngine(t, &stubRunner{})
	ctx := context.Background()

	rec := reverseRecord("r1", types.StatusSwapCreated)
	require.NoError(t, e.Start(ctx, []*types.SwapRecord{rec}))
	defer e.Stop()

	err := e.HandleStatusUpdate(ctx, "r1", types.StatusSwapCreated)
	require.NoError(t, err)

	_, err = repo.Get(ctx, "r1")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHandleStatusUpdateInvokesActionWhenActionable(t *testing.T) {
	runner := &stubRunner{}
	e, repo := newTestEngine(t, runner)
	ctx := context.Background()

	rec := reverseRecord("r1", types.StatusSwapCreated)
	require.NoError(t, e.Start(ctx, []*types.SwapRecord{rec}))
	defer e.Stop()

	require.NoError(t, e.HandleStatusUpdate(ctx, "r1", types.StatusTransactionMempool))

	saved, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, types.StatusTransactionMempool, saved.Status)

	runner.mu.Lock()
	require.Equal(t, []types.SwapId{"r1"}, runner.calls)
	runner.mu.Unlock()
}

func TestHandleStatusUpdateRetiresOnTerminalStatus(t *testing.T) {
	e, _ := newTestEngine(t, &stubRunner{})
	ctx := context.Background()

	rec := reverseRecord("r1", types.StatusTransactionConfirm)
	require.NoError(t, e.Start(ctx, []*types.SwapRecord{rec}))
	defer e.Stop()

	require.NoError(t, e.HandleStatusUpdate(ctx, "r1", types.StatusInvoiceSettled))

	err := e.HandleStatusUpdate(ctx, "r1", types.StatusInvoiceExpired)
	require.ErrorIs(t, err, ErrNotMonitored)
}

func TestWaitForCompletionResolvesOnTerminalTransition(t *testing.T) {
	e, _ := newTestEngine(t, &stubRunner{})
	ctx := context.Background()

	rec := reverseRecord("r1", types.StatusTransactionConfirm)
	require.NoError(t, e.Start(ctx, []*types.SwapRecord{rec}))
	defer e.Stop()

	done := make(chan struct{})
	go func() {
		_, err := e.WaitForCompletion(ctx, "r1")
		require.NoError(t, err)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, e.HandleStatusUpdate(ctx, "r1", types.StatusInvoiceSettled))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForCompletion never resolved")
	}
}

func TestWaitForCompletionRejectsAlreadyCompletedSubmarineSwap(t *testing.T) {
	e, _ := newTestEngine(t, &stubRunner{})
	ctx := context.Background()

	rec := &types.SwapRecord{
		ID:        "s1",
		Kind:      types.SwapSubmarine,
		Status:    types.StatusTransactionClaimed,
		Submarine: &types.SubmarineSwap{},
	}
	require.True(t, rec.IsFinal())
	require.True(t, rec.IsSuccess())

	require.NoError(t, e.Start(ctx, []*types.SwapRecord{rec}))
	defer e.Stop()

	_, err := e.WaitForCompletion(ctx, "s1")
	require.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestSubscribeToUpdatesReceivesAndUnsubscribes(t *testing.T) {
	e, _ := newTestEngine(t, &stubRunner{})
	ctx := context.Background()

	rec := reverseRecord("r1", types.StatusSwapCreated)
	require.NoError(t, e.Start(ctx, []*types.SwapRecord{rec}))
	defer e.Stop()

	var mu sync.Mutex
	count := 0
	unsub := e.SubscribeToUpdates("r1", func(r *types.SwapRecord, err error) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	require.NoError(t, e.HandleStatusUpdate(ctx, "r1", types.StatusTransactionMempool))
	unsub()
	require.NoError(t, e.HandleStatusUpdate(ctx, "r1", types.StatusTransactionConfirm))

	mu.Lock()
	require.Equal(t, 1, count)
	mu.Unlock()
}
