package orchestrator

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arkade-os/go-swap-engine/arkclient"
)

var errInjectedTest = errors.New("injected test failure")

func TestJoinBatchRegistersAndResolvesOnCommitmentEvent(t *testing.T) {
	var registeredIntentID = "intent-1"
	var deleteWasCalled bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/batch/registerIntent":
			_ = json.NewEncoder(w).Encode(arkclient.RegisterIntentResponse{IntentID: registeredIntentID})
		case "/v1/batch/deleteIntent":
			deleteWasCalled = true
			w.WriteHeader(http.StatusOK)
		case "/v1/batch/events":
			flusher := w.(http.Flusher)
			bw := bufio.NewWriter(w)
			line, _ := json.Marshal(arkclient.Event{Topic: "commitment", Data: []byte("commit-txid")})
			bw.Write(line)
			bw.WriteByte('\n')
			bw.Flush()
			flusher.Flush()
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	cfg := arkclient.DefaultConfig()
	cfg.BaseURL = server.URL
	ark := arkclient.NewClient(cfg)

	sign := func(msg interface{}) (string, error) { return "sig", nil }
	handler := func(ctx context.Context, ev arkclient.Event) (string, bool, error) {
		if ev.Topic == "commitment" {
			return string(ev.Data), true, nil
		}
		return "", false, nil
	}

	txid, err := JoinBatch(context.Background(), ark, "signer-pub", arkclient.IntentInput{Txid: "t1", Vout: 0}, sign, handler)
	require.NoError(t, err)
	require.Equal(t, "commit-txid", txid)
	require.False(t, deleteWasCalled)
}

func TestJoinBatchDeletesIntentOnHandlerError(t *testing.T) {
	var deleteWasCalled bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/batch/registerIntent":
			_ = json.NewEncoder(w).Encode(arkclient.RegisterIntentResponse{IntentID: "intent-2"})
		case "/v1/batch/deleteIntent":
			deleteWasCalled = true
			w.WriteHeader(http.StatusOK)
		case "/v1/batch/events":
			flusher := w.(http.Flusher)
			bw := bufio.NewWriter(w)
			line, _ := json.Marshal(arkclient.Event{Topic: "forfeit_request", Data: []byte("x")})
			bw.Write(line)
			bw.WriteByte('\n')
			bw.Flush()
			flusher.Flush()
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	cfg := arkclient.DefaultConfig()
	cfg.BaseURL = server.URL
	ark := arkclient.NewClient(cfg)

	sign := func(msg interface{}) (string, error) { return "sig", nil }
	handler := func(ctx context.Context, ev arkclient.Event) (string, bool, error) {
		return "", false, errInjectedTest
	}

	_, err := JoinBatch(context.Background(), ark, "signer-pub", arkclient.IntentInput{}, sign, handler)
	require.Error(t, err)
	require.True(t, deleteWasCalled)
}
