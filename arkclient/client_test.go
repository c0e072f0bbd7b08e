package arkclient

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	server := httptest.NewServer(handler)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.RetryAttempts = 1
	cfg.RetryDelay = 0

	return NewClient(cfg), server.Close
}

func TestGetInfo(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/info", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Info{Network: "regtest", SignerPubkey: "abc"})
	})
	defer closeFn()

	info, err := client.GetInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "regtest", info.Network)
}

func TestRegisterIntent(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/batch/registerIntent", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(RegisterIntentResponse{IntentID: "intent-1"})
	})
	defer closeFn()

	resp, err := client.RegisterIntent(context.Background(), SignedIntent{
		Message:   RegisterMessage{CosignersPublicKeys: []string{"pub1"}},
		Signature: "sig",
	})
	require.NoError(t, err)
	require.Equal(t, "intent-1", resp.IntentID)
}

func TestDeleteIntent(t *testing.T) {
	called := false
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		require.Equal(t, "/v1/batch/deleteIntent", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	err := client.DeleteIntent(context.Background(), SignedIntent{
		Message:   DeleteMessage{IntentID: "intent-1"},
		Signature: "sig",
	})
	require.NoError(t, err)
	require.True(t, called)
}

func TestSubmitTxNotFoundMapsToErrNotFound(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("unknown tx"))
	})
	defer closeFn()

	_, err := client.SubmitTx(context.Background(), "deadbeef", nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetVtxos(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/indexer/vtxos", r.URL.Path)
		require.Equal(t, "deadbeef", r.URL.Query().Get("script"))
		_ = json.NewEncoder(w).Encode(VtxosResponse{Vtxos: []Vtxo{{Txid: "t1", Vout: 0, Value: 1000}}})
	})
	defer closeFn()

	resp, err := client.GetVtxos(context.Background(), "deadbeef")
	require.NoError(t, err)
	require.Len(t, resp.Vtxos, 1)
	require.Equal(t, "t1", resp.Vtxos[0].Txid)
}

func TestGetEventStreamDeliversDecodedLines(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/batch/events", r.URL.Path)
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		bw := bufio.NewWriter(w)
		for _, topic := range []string{"cosigner_nonces", "forfeit_request"} {
			line, _ := json.Marshal(Event{Topic: topic})
			bw.Write(line)
			bw.WriteByte('\n')
		}
		bw.Flush()
		flusher.Flush()
	})
	defer closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := client.GetEventStream(ctx)
	require.NoError(t, err)

	got := make([]string, 0, 2)
	for ev := range events {
		got = append(got, ev.Topic)
	}
	require.Equal(t, []string{"cosigner_nonces", "forfeit_request"}, got)
}
