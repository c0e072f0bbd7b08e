package engine

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/arkade-os/go-swap-engine/connection"
	"github.com/arkade-os/go-swap-engine/provider"
	"github.com/arkade-os/go-swap-engine/types"
)

// MonitoredIDs returns a snapshot of every swap id currently monitored, for
// resubscribing on (re)connect and for the poll-fallback sweep.
func (e *Engine) MonitoredIDs() []types.SwapId {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]types.SwapId, 0, len(e.monitored))
	for id := range e.monitored {
		ids = append(ids, id)
	}
	return ids
}

// RealtimeCallbacks builds the onOpen/onMessage/pollFn triple a
// connection.Manager needs to keep e in sync with the counterparty's
// realtime feed, per spec §4.3: resubscribe to every monitored swap when the
// socket (re)opens, translate each inbound provider.UpdateFrame into a
// HandleStatusUpdate call, and poll getSwapStatus per monitored id while the
// manager is in its polling fallback state.
func RealtimeCallbacks(e *Engine) (onOpen func(connection.Conn), onMessage func([]byte), pollFn func(context.Context) error) {
	onOpen = func(conn connection.Conn) {
		for _, id := range e.MonitoredIDs() {
			data, err := json.Marshal(provider.NewSubscribeFrame(id))
			if err != nil {
				log.Errorf("engine: marshal subscribe frame for %s: %v", id, err)
				continue
			}
			if err := conn.WriteMessage(data); err != nil {
				log.Warnf("engine: subscribe %s: %v", id, err)
			}
		}
	}

	onMessage = func(data []byte) {
		var frame provider.UpdateFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warnf("engine: decode update frame: %v", err)
			return
		}
		if frame.Event != "update" {
			return
		}
		for _, ev := range frame.Args {
			if err := e.HandleStatusUpdate(context.Background(), ev.ID, ev.Status); err != nil &&
				!errors.Is(err, ErrNotMonitored) {
				log.Warnf("engine: handle status update for %s: %v", ev.ID, err)
			}
		}
	}

	pollFn = func(ctx context.Context) error {
		return connection.PollAll(ctx, e.MonitoredIDs(), func(ctx context.Context, id types.SwapId) error {
			status, err := e.provider.GetSwapStatus(ctx, id)
			if err != nil {
				return err
			}
			if err := e.HandleStatusUpdate(ctx, id, status.Status); err != nil && !errors.Is(err, ErrNotMonitored) {
				return err
			}
			return nil
		})
	}

	return onOpen, onMessage, pollFn
}
