package arkclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVtxoConfirmationNotifierDeliversOnUnspentVtxo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(VtxosResponse{Vtxos: []Vtxo{{Txid: "t1", Vout: 0, Value: 1000, IsSpent: false}}})
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	client := NewClient(cfg)

	notifier := NewVtxoConfirmationNotifier(client, 10*time.Millisecond)
	notifier.Start()
	defer notifier.Stop()

	ev, errChan, err := notifier.RegisterSpendConfirmation(context.Background(), "deadbeef")
	require.NoError(t, err)

	select {
	case <-ev.Confirmed:
	case err := <-errChan:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("confirmation never delivered")
	}
}
