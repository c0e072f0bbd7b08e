package arkclient

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/chainntnfs"
)

// vtxoRequest tracks one pending SpendNotification registration.
type vtxoRequest struct {
	script   string
	confChan chan *chainntnfs.TxConfirmation
	errChan  chan error
	cancel   context.CancelFunc
}

// VtxoConfirmationNotifier polls GetVtxos for an unspent VTXO at a script,
// treating its appearance as confirmation, grounded on the
// teacher's mempool.confirmationNotifier polling loop — adapted from
// tracking an onchain txid's block depth to tracking an Ark indexer's view
// of a VTXO's commitment.
type VtxoConfirmationNotifier struct {
	client       *Client
	pollInterval time.Duration

	mu       sync.Mutex
	requests map[string]*vtxoRequest

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewVtxoConfirmationNotifier constructs a notifier; call Start before
// registering any script.
func NewVtxoConfirmationNotifier(client *Client, pollInterval time.Duration) *VtxoConfirmationNotifier {
	return &VtxoConfirmationNotifier{
		client:       client,
		pollInterval: pollInterval,
		requests:     make(map[string]*vtxoRequest),
		quit:         make(chan struct{}),
	}
}

// Start is a no-op: polling begins per script in RegisterSpendConfirmation.
func (n *VtxoConfirmationNotifier) Start() {}

// Stop cancels every pending registration.
func (n *VtxoConfirmationNotifier) Stop() {
	close(n.quit)
	n.wg.Wait()

	n.mu.Lock()
	for _, req := range n.requests {
		req.cancel()
	}
	n.requests = make(map[string]*vtxoRequest)
	n.mu.Unlock()
}

// RegisterSpendConfirmation polls script's VTXO set until an unspent VTXO
// appears, delivering a chainntnfs.TxConfirmation whose BlockHash holds the
// hash of that VTXO's own txid (BlockHeight 0) via the returned event's
// Confirmed channel.
func (n *VtxoConfirmationNotifier) RegisterSpendConfirmation(ctx context.Context, script string) (*chainntnfs.ConfirmationEvent, chan error, error) {
	confChan := make(chan *chainntnfs.TxConfirmation, 1)
	errChan := make(chan error, 1)

	reqCtx, cancel := context.WithCancel(ctx)
	req := &vtxoRequest{script: script, confChan: confChan, errChan: errChan, cancel: cancel}

	n.mu.Lock()
	n.requests[script] = req
	n.mu.Unlock()

	n.wg.Add(1)
	go n.monitor(reqCtx, req)

	return &chainntnfs.ConfirmationEvent{Confirmed: confChan}, errChan, nil
}

func (n *VtxoConfirmationNotifier) monitor(ctx context.Context, req *vtxoRequest) {
	defer n.wg.Done()

	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.quit:
			return
		case <-ticker.C:
			resp, err := n.client.GetVtxos(ctx, req.script)
			if err != nil {
				continue
			}
			for _, v := range resp.Vtxos {
				if v.IsSpent {
					continue
				}
				hash, err := v.Hash()
				if err != nil {
					// Malformed txid from the indexer; keep polling rather
					// than delivering a confirmation we can't identify.
					continue
				}
				select {
				case req.confChan <- &chainntnfs.TxConfirmation{BlockHeight: 0, BlockHash: &hash}:
				case <-ctx.Done():
					return
				case <-n.quit:
					return
				}

				n.mu.Lock()
				delete(n.requests, req.script)
				n.mu.Unlock()
				return
			}
		}
	}
}
