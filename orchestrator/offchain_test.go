package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/arkade-os/go-swap-engine/arkclient"
)

type fakeBuilder struct {
	arkTxB64    string
	checkpoints []string
}

func (b *fakeBuilder) BuildOffchainTx(ctx context.Context, inputs []Input, outputs []Output, checkpointTapscript []byte) (string, []string, error) {
	return b.arkTxB64, b.checkpoints, nil
}

func TestClaimVhtlcWithOffchainTxRunsFullCeremony(t *testing.T) {
	var submittedArkTx string
	var finalizedCheckpoints []string

	// The server's final ark tx must pass validateSignedPsbt: one input
	// carrying a witness utxo and a taproot signature.
	finalTx := wire.NewMsgTx(2)
	finalTx.AddTxIn(&wire.TxIn{})
	finalTx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x51}})
	finalPacket, err := psbt.NewFromUnsignedTx(finalTx)
	require.NoError(t, err)
	finalPacket.Inputs[0].WitnessUtxo = &wire.TxOut{Value: 1000, PkScript: []byte{0x51}}
	finalPacket.Inputs[0].TaprootKeySpendSig = make([]byte, 64)
	finalArkTx, err := finalPacket.B64Encode()
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/tx/submit":
			var payload struct {
				ArkTx         string   `json:"signedArkTx"`
				CheckpointTxs []string `json:"checkpointTxs"`
			}
			_ = json.NewDecoder(r.Body).Decode(&payload)
			submittedArkTx = payload.ArkTx
			_ = json.NewEncoder(w).Encode(arkclient.SubmitTxResponse{
				ArkTxid:             "txid1",
				FinalArkTx:          finalArkTx,
				SignedCheckpointTxs: []string{"cp1-server-signed"},
			})
		case "/v1/tx/finalize":
			var payload struct {
				ArkTxid       string   `json:"arkTxid"`
				CheckpointTxs []string `json:"finalCheckpointTxs"`
			}
			_ = json.NewDecoder(r.Body).Decode(&payload)
			finalizedCheckpoints = payload.CheckpointTxs
			w.WriteHeader(http.StatusOK)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	cfg := arkclient.DefaultConfig()
	cfg.BaseURL = server.URL
	ark := arkclient.NewClient(cfg)

	builder := &fakeBuilder{arkTxB64: "unsigned-ark-tx", checkpoints: []string{"cp1-unsigned"}}
	sign := func(ctx context.Context, psbtB64 string) (string, error) {
		return psbtB64 + "-user-signed", nil
	}

	resp, err := ClaimVhtlcWithOffchainTx(context.Background(), ark, builder, sign,
		Input{Txid: "t1", Vout: 0, Amount: 1000}, Output{Address: "tark1...", Amount: 1000}, []byte("tapscript"))

	require.NoError(t, err)
	require.Equal(t, "txid1", resp.ArkTxid)
	require.Equal(t, "unsigned-ark-tx-user-signed", submittedArkTx)
	require.Equal(t, []string{"cp1-server-signed-user-signed"}, finalizedCheckpoints)
}

func TestClaimVhtlcWithOffchainTxRejectsWrongCheckpointCount(t *testing.T) {
	ark := arkclient.NewClient(arkclient.DefaultConfig())
	builder := &fakeBuilder{arkTxB64: "tx", checkpoints: []string{"cp1", "cp2"}}

	_, err := ClaimVhtlcWithOffchainTx(context.Background(), ark, builder,
		func(ctx context.Context, s string) (string, error) { return s, nil },
		Input{}, Output{}, nil)

	require.ErrorIs(t, err, ErrProtocolCheckpointCount)
}
