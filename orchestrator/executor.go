package orchestrator

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnd/lnwallet/chainfee"

	"github.com/arkade-os/go-swap-engine/arkclient"
	"github.com/arkade-os/go-swap-engine/provider"
	"github.com/arkade-os/go-swap-engine/types"
)

// checkpointConfTarget is the confirmation target used to size checkpoint
// transactions; one block, matching the teacher's ChainBridge.EstimateFee
// confTarget<=1 "fastest" bucket since a checkpoint only needs to clear the
// very next block to unblock the cooperative finalize step.
const checkpointConfTarget = 1

// VtxoLookup resolves the single non-spent VTXO backing a swap's lockup
// address, per spec §4.5.1 step 2 ("record assumption: one VTXO per swap").
type VtxoLookup func(ctx context.Context, script string) (arkclient.Vtxo, error)

// Executor wires the orchestrator's protocols to the concrete clients and
// signing callbacks a running engine supplies, per spec §4.5's "called by
// the engine when a swap is classified actionable".
type Executor struct {
	Ark      *arkclient.Client
	Provider *provider.Client
	Builder  TxBuilder

	Sign             Signer
	CounterpartySign CounterpartySigner
	SignIntent       IntentSigner
	LookupVtxo       VtxoLookup

	// IsRecoverable reports whether the VTXO backing a reverse claim
	// stems from a pending commitment round and must go through
	// join_batch rather than claim_vhtlc_with_offchain_tx, per spec
	// §4.5.1 step 5.
	IsRecoverable func(vtxo arkclient.Vtxo) bool

	SignerPublicKey string

	// Network selects the Ark address HRP used to independently derive a
	// VHTLC's address before a claim or refund touches its VTXO, per
	// spec §3.2/§4.1's verification contract.
	Network types.Network

	// FeeEstimator supplies the sat/kW checkpoint fee rate, typically
	// provider.Client.EstimateCheckpointFeeRate. Nil leaves Input.FeeRate
	// at zero, letting the TxBuilder apply its own default.
	FeeEstimator func(ctx context.Context, confTarget uint32) (chainfee.SatPerKWeight, error)

	// Confirmations, if set, is consulted before claiming a reverse swap
	// to wait for the lockup VTXO to be visible at the indexer, covering
	// the case where ClaimReverse runs right after the lockup tx is
	// broadcast and the indexer hasn't caught up yet.
	Confirmations *arkclient.VtxoConfirmationNotifier
}

// applyFeeRate fills in.FeeRate from e.FeeEstimator, silently ignoring an
// estimation failure since a stale/zero fee rate only degrades
// confirmation speed, never swap correctness.
func (e *Executor) applyFeeRate(ctx context.Context, in *Input) {
	if e.FeeEstimator == nil {
		return
	}
	rate, err := e.FeeEstimator(ctx, checkpointConfTarget)
	if err != nil {
		return
	}
	in.FeeRate = rate
}

// ClaimReverse implements spec §4.5.1: looks up the VTXO backing the swap's
// lockup address and claims it via join_batch or the offchain-tx ceremony
// depending on recoverability.
func (e *Executor) ClaimReverse(ctx context.Context, record *types.SwapRecord) (string, error) {
	if record.Reverse == nil {
		return "", fmt.Errorf("orchestrator: record %s has no reverse swap data", record.ID)
	}

	if e.LookupVtxo == nil || e.Builder == nil || e.Sign == nil {
		return "", fmt.Errorf("%w: ClaimReverse requires LookupVtxo, Builder, and Sign", ErrMissingDependency)
	}

	if err := verifyReverseVHTLC(ctx, e.Ark, record, e.Network); err != nil {
		return "", err
	}

	if e.Confirmations != nil {
		if err := e.waitForVtxo(ctx, record.Reverse.Response.LockupAddress); err != nil {
			return "", fmt.Errorf("orchestrator: wait for vtxo: %w", err)
		}
	}

	vtxo, err := e.LookupVtxo(ctx, record.Reverse.Response.LockupAddress)
	if err != nil {
		return "", fmt.Errorf("orchestrator: lookup vtxo: %w", err)
	}

	input := Input{
		Txid:   vtxo.Txid,
		Vout:   vtxo.Vout,
		Amount: vtxo.Value,
	}
	output := Output{
		Address: record.Reverse.Response.LockupAddress,
		Amount:  vtxo.Value,
	}
	e.applyFeeRate(ctx, &input)

	if e.IsRecoverable != nil && e.IsRecoverable(vtxo) {
		if e.SignIntent == nil {
			return "", fmt.Errorf("%w: recoverable claim requires SignIntent", ErrMissingDependency)
		}
		txid, err := JoinBatch(ctx, e.Ark, e.SignerPublicKey, arkclient.IntentInput{
			Txid:   vtxo.Txid,
			Vout:   vtxo.Vout,
			Amount: vtxo.Value,
		}, e.SignIntent, e.claimBatchHandler())
		if err != nil {
			return "", fmt.Errorf("orchestrator: join batch: %w", err)
		}
		return txid, nil
	}

	info, err := e.Ark.GetInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("orchestrator: get ark info: %w", err)
	}
	checkpointTapscript := []byte(info.CheckpointTapscript)

	resp, err := ClaimVhtlcWithOffchainTx(ctx, e.Ark, e.Builder, e.Sign, input, output, checkpointTapscript)
	if err != nil {
		return "", err
	}
	return resp.ArkTxid, nil
}

// RefundSubmarine implements spec §4.5.2: refunds the submarine swap's
// lockup via the offchain-tx ceremony with a counterparty cooperative-sign
// step.
func (e *Executor) RefundSubmarine(ctx context.Context, record *types.SwapRecord, input Input, output Output) (string, error) {
	if record.Submarine == nil {
		return "", fmt.Errorf("orchestrator: record %s has no submarine swap data", record.ID)
	}
	if e.Builder == nil || e.Sign == nil || e.CounterpartySign == nil {
		return "", fmt.Errorf("%w: RefundSubmarine requires Builder, Sign, and CounterpartySign", ErrMissingDependency)
	}

	if err := verifySubmarineVHTLC(ctx, e.Ark, record, e.Network); err != nil {
		return "", err
	}

	info, err := e.Ark.GetInfo(ctx)
	if err != nil {
		return "", fmt.Errorf("orchestrator: get ark info: %w", err)
	}
	checkpointTapscript := []byte(info.CheckpointTapscript)
	e.applyFeeRate(ctx, &input)

	resp, err := RefundVhtlcWithOffchainTx(
		ctx, e.Ark, e.Builder, e.Sign, e.CounterpartySign, input, output, checkpointTapscript,
	)
	if err != nil {
		return "", err
	}
	return resp.ArkTxid, nil
}

// ExecuteChain implements spec §4.5.3's action table for a chain swap. It
// executes only the Ark-side legs, claimArk and refundArk. For claimBtc and
// signServerClaim it performs no action and returns
// ErrUnsupportedDirection. The BTC-side refund never reaches it:
// types.Classify maps that case to ActionNone.
func (e *Executor) ExecuteChain(ctx context.Context, record *types.SwapRecord, input Input, output Output) (string, error) {
	if record.Chain == nil {
		return "", fmt.Errorf("orchestrator: record %s has no chain swap data", record.ID)
	}

	action := types.Classify(record)
	switch action {
	case types.ActionChainClaimableArk:
		if e.Builder == nil || e.Sign == nil {
			return "", fmt.Errorf("%w: chain ark claim requires Builder and Sign", ErrMissingDependency)
		}
		if err := verifyChainVHTLC(record, record.Chain.Response.ClaimDetails, e.Network); err != nil {
			return "", err
		}
		info, err := e.Ark.GetInfo(ctx)
		if err != nil {
			return "", fmt.Errorf("orchestrator: get ark info: %w", err)
		}
		e.applyFeeRate(ctx, &input)
		resp, err := ClaimVhtlcWithOffchainTx(ctx, e.Ark, e.Builder, e.Sign, input, output, []byte(info.CheckpointTapscript))
		if err != nil {
			return "", err
		}
		return resp.ArkTxid, nil

	case types.ActionChainRefundable:
		if e.Builder == nil || e.Sign == nil || e.CounterpartySign == nil {
			return "", fmt.Errorf("%w: chain refund requires Builder, Sign, and CounterpartySign", ErrMissingDependency)
		}
		if err := verifyChainVHTLC(record, record.Chain.Response.LockupDetails, e.Network); err != nil {
			return "", err
		}
		info, err := e.Ark.GetInfo(ctx)
		if err != nil {
			return "", fmt.Errorf("orchestrator: get ark info: %w", err)
		}
		e.applyFeeRate(ctx, &input)
		resp, err := RefundVhtlcWithOffchainTx(ctx, e.Ark, e.Builder, e.Sign, e.CounterpartySign, input, output, []byte(info.CheckpointTapscript))
		if err != nil {
			return "", err
		}
		return resp.ArkTxid, nil

	case types.ActionChainClaimableBtc, types.ActionChainSignableServer:
		return "", fmt.Errorf("%w: %s requires BTC-side/server-cooperative tooling outside this module's scope", ErrUnsupportedDirection, action)

	default:
		return "", fmt.Errorf("orchestrator: record %s has no pending chain action", record.ID)
	}
}

// waitForVtxo blocks until script's lockup VTXO is visible at the indexer
// or ctx is cancelled.
func (e *Executor) waitForVtxo(ctx context.Context, script string) error {
	ev, errChan, err := e.Confirmations.RegisterSpendConfirmation(ctx, script)
	if err != nil {
		return err
	}
	select {
	case <-ev.Confirmed:
		return nil
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// claimBatchHandler returns a BatchEventHandler that signs nothing: it
// ignores every event except one on the "commitment" topic, whose payload
// it returns as the commitment txid. Forfeit and commitment transactions
// are not signed by this handler.
func (e *Executor) claimBatchHandler() BatchEventHandler {
	return func(ctx context.Context, ev arkclient.Event) (string, bool, error) {
		if ev.Topic == "commitment" {
			return string(ev.Data), true, nil
		}
		return "", false, nil
	}
}
