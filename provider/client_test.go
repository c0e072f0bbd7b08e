package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkade-os/go-swap-engine/types"
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

func TestGetSwapStatus(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/swap/r1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(SwapStatusResponse{Status: types.StatusTransactionConfirm})
	})
	defer closeFn()

	resp, err := client.GetSwapStatus(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, types.StatusTransactionConfirm, resp.Status)
}

func TestGetSwapStatusNotFound(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such swap"))
	})
	defer closeFn()

	_, err := client.GetSwapStatus(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateReverseSwap(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(CreateReverseResponse{
			ID:            "r1",
			Invoice:       "lntb1...",
			LockupAddress: "tark1...",
		})
	})
	defer closeFn()

	resp, err := client.CreateReverseSwap(context.Background(), types.ReverseRequest{InvoiceAmount: 1000})
	require.NoError(t, err)
	require.Equal(t, types.SwapId("r1"), resp.ID)
}

func TestGetWsURLSchemeSubstitution(t *testing.T) {
	client := NewClient(&Config{BaseURL: "https://provider.example/api"})
	require.Equal(t, "wss://provider.example/api", client.GetWsURL())

	client = NewClient(&Config{BaseURL: "http://localhost:8080"})
	require.Equal(t, "ws://localhost:8080", client.GetWsURL())
}

func TestRetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(SwapStatusResponse{Status: types.StatusSwapCreated})
	})
	defer closeFn()

	resp, err := client.GetSwapStatus(context.Background(), "r1")
	require.NoError(t, err)
	require.Equal(t, types.StatusSwapCreated, resp.Status)
	require.Equal(t, 2, attempts)
}
