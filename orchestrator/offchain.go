package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"

	"github.com/arkade-os/go-swap-engine/arkclient"
	"github.com/arkade-os/go-swap-engine/types"
)

// validateSignedPsbt implements spec §4.5.4 step 4's validation: decode the
// PSBT, require every input to carry a witness UTXO, and require every
// input to carry the signature material the step expects (a finalized
// taproot script-path or key-path signature). It does not verify the
// signature cryptographically against the leaf's public key — that would
// require duplicating the TxBuilder's knowledge of which leaf each input
// spends — but a counterparty or server that returns an unsigned or
// malformed transaction at this stage is refused outright instead of being
// signed over blindly.
func validateSignedPsbt(psbtB64 string) error {
	packet, err := psbt.NewFromRawBytes(strings.NewReader(psbtB64), true)
	if err != nil {
		return types.NewError(types.KindAdversary, fmt.Errorf("orchestrator: decode psbt: %w", err))
	}
	if len(packet.Inputs) == 0 {
		return types.NewError(types.KindAdversary, fmt.Errorf("orchestrator: psbt has no inputs"))
	}
	for i, in := range packet.Inputs {
		if in.WitnessUtxo == nil {
			return types.NewError(types.KindAdversary, fmt.Errorf("orchestrator: psbt input %d missing witness utxo", i))
		}
		if len(in.TaprootScriptSpendSig) == 0 && len(in.TaprootKeySpendSig) == 0 && len(in.FinalScriptWitness) == 0 {
			return types.NewError(types.KindAdversary, fmt.Errorf("orchestrator: psbt input %d carries no signature", i))
		}
	}
	return nil
}

// Input describes one VTXO being spent into an offchain Ark transaction,
// per spec §4.5's claim/refund steps.
type Input struct {
	Txid          string
	Vout          uint32
	Amount        uint64
	Script        string
	TapLeafScript string
	TapTree       string
	Sequence      uint32

	// FeeRate is the sat/kW rate the TxBuilder should use to size the
	// checkpoint transaction, typically sourced from
	// provider.Client.EstimateCheckpointFeeRate. Zero means the builder
	// falls back to its own default.
	FeeRate chainfee.SatPerKWeight
}

// Output describes the single destination of an offchain Ark transaction.
type Output struct {
	Address string
	Amount  uint64
}

// TxBuilder builds the unsigned Ark transaction and its checkpoint
// transaction(s) for a claim or refund, per spec §4.5.4 step 2. The actual
// Ark transaction format (covenant-less VTXO tree encoding) is server- and
// protocol-version-specific wire format outside this module's retrieved
// reference material; callers supply a concrete implementation (typically
// backed by the Ark client SDK's transaction builder) and this package owns
// only the signing ceremony around it.
type TxBuilder interface {
	BuildOffchainTx(ctx context.Context, inputs []Input, outputs []Output, checkpointTapscript []byte) (arkTxB64 string, checkpointTxsB64 []string, err error)
}

// Signer signs a base64-encoded PSBT and returns the signed base64 PSBT.
type Signer func(ctx context.Context, psbtB64 string) (string, error)

// CounterpartySigner requests the counterparty's cooperative signature over
// a base64-encoded PSBT, used by refund_vhtlc_with_offchain_tx's extra step.
type CounterpartySigner func(ctx context.Context, psbtB64 string) (string, error)

// ClaimVhtlcWithOffchainTx implements spec §4.5.4's signing ceremony for
// the claim direction: build, user-sign, submit, validate the server's
// response, sign checkpoints, finalize.
func ClaimVhtlcWithOffchainTx(
	ctx context.Context,
	ark *arkclient.Client,
	builder TxBuilder,
	sign Signer,
	input Input,
	output Output,
	checkpointTapscript []byte,
) (*arkclient.SubmitTxResponse, error) {
	arkTxB64, checkpoints, err := builder.BuildOffchainTx(ctx, []Input{input}, []Output{output}, checkpointTapscript)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build offchain tx: %w", err)
	}
	if len(checkpoints) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one checkpoint, got %d", ErrProtocolCheckpointCount, len(checkpoints))
	}

	signedArkTx, err := sign(ctx, arkTxB64)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: sign ark tx: %w", err)
	}

	resp, err := ark.SubmitTx(ctx, signedArkTx, checkpoints)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: submit tx: %w", err)
	}
	if err := validateSignedPsbt(resp.FinalArkTx); err != nil {
		return nil, fmt.Errorf("orchestrator: validate server-signed ark tx: %w", err)
	}

	signedCheckpoints := make([]string, 0, len(resp.SignedCheckpointTxs))
	for _, cp := range resp.SignedCheckpointTxs {
		signedCp, err := sign(ctx, cp)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: sign checkpoint: %w", err)
		}
		signedCheckpoints = append(signedCheckpoints, signedCp)
	}

	if err := ark.FinalizeTx(ctx, resp.ArkTxid, signedCheckpoints); err != nil {
		return nil, fmt.Errorf("orchestrator: finalize tx: %w", err)
	}

	return resp, nil
}

// RefundVhtlcWithOffchainTx implements spec §4.5.4's refund variant: the
// same skeleton as ClaimVhtlcWithOffchainTx but with the counterparty's
// cooperative signature requested and combined before submission.
func RefundVhtlcWithOffchainTx(
	ctx context.Context,
	ark *arkclient.Client,
	builder TxBuilder,
	sign Signer,
	counterpartySign CounterpartySigner,
	input Input,
	output Output,
	checkpointTapscript []byte,
) (*arkclient.SubmitTxResponse, error) {
	arkTxB64, checkpoints, err := builder.BuildOffchainTx(ctx, []Input{input}, []Output{output}, checkpointTapscript)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build offchain tx: %w", err)
	}
	if len(checkpoints) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one checkpoint, got %d", ErrProtocolCheckpointCount, len(checkpoints))
	}

	counterpartySignedArkTx, err := counterpartySign(ctx, arkTxB64)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: counterparty sign ark tx: %w", err)
	}
	if err := validateSignedPsbt(counterpartySignedArkTx); err != nil {
		return nil, fmt.Errorf("orchestrator: validate counterparty-signed ark tx: %w", err)
	}

	combinedArkTx, err := sign(ctx, counterpartySignedArkTx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: co-sign ark tx: %w", err)
	}

	resp, err := ark.SubmitTx(ctx, combinedArkTx, checkpoints)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: submit tx: %w", err)
	}
	if err := validateSignedPsbt(resp.FinalArkTx); err != nil {
		return nil, fmt.Errorf("orchestrator: validate server-signed ark tx: %w", err)
	}

	signedCheckpoints := make([]string, 0, len(resp.SignedCheckpointTxs))
	for _, cp := range resp.SignedCheckpointTxs {
		counterpartySignedCp, err := counterpartySign(ctx, cp)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: counterparty sign checkpoint: %w", err)
		}
		if err := validateSignedPsbt(counterpartySignedCp); err != nil {
			return nil, fmt.Errorf("orchestrator: validate counterparty-signed checkpoint: %w", err)
		}
		signedCp, err := sign(ctx, counterpartySignedCp)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: co-sign checkpoint: %w", err)
		}
		signedCheckpoints = append(signedCheckpoints, signedCp)
	}

	if err := ark.FinalizeTx(ctx, resp.ArkTxid, signedCheckpoints); err != nil {
		return nil, fmt.Errorf("orchestrator: finalize tx: %w", err)
	}

	return resp, nil
}
