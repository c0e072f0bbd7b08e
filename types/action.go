package types

import "github.com/lightningnetwork/lnd/lntypes"

var (
	lntypesZeroPreimage lntypes.Preimage
	lntypesZeroHash     lntypes.Hash
)

// PendingAction identifies which orchestrator protocol, if any, a swap is
// ready to run, per spec §3.1/§4.5.
type PendingAction string

const (
	ActionNone                 PendingAction = "none"
	ActionClaimableReverse     PendingAction = "claimable_reverse"
	ActionRefundableSubmarine  PendingAction = "refundable_submarine"
	ActionChainClaimableArk    PendingAction = "chain_claimable_ark"
	ActionChainClaimableBtc    PendingAction = "chain_claimable_btc"
	ActionChainRefundable      PendingAction = "chain_refundable"
	ActionChainSignableServer  PendingAction = "chain_signable_server_claim"
)

// Classify computes the PendingAction for a record's current (kind, status)
// pair — a pure function of its shape, per spec §4.5's "pure input, no
// hidden state" rule. It does not check secret-material availability; see
// IsActionable for the full actionability predicate (spec §3.2).
func Classify(r *SwapRecord) PendingAction {
	if r == nil {
		return ActionNone
	}
	switch r.Kind {
	case SwapReverse:
		switch r.Status {
		case StatusTransactionMempool, StatusTransactionConfirm:
			return ActionClaimableReverse
		}
	case SwapSubmarine:
		switch r.Status {
		case StatusInvoiceFailedToPay, StatusSwapExpired:
			return ActionRefundableSubmarine
		}
	case SwapChain:
		return classifyChain(r)
	}
	return ActionNone
}

// classifyChain implements the chain-swap action table from spec §4.5.3:
// (type=chain, status, direction) -> action.
func classifyChain(r *SwapRecord) PendingAction {
	if r.Chain == nil {
		return ActionNone
	}
	fromArk := r.Chain.Request.From == "ARK"

	switch r.Status {
	case StatusTransactionConfirm:
		// The user's lockup VTXO/tx is confirmed; the counterparty
		// side claim becomes available once its complementary status
		// has advanced far enough. We model the ARK->BTC claim here
		// and BTC->ARK claim below via the server-confirm status.
		if fromArk {
			return ActionChainClaimableBtc
		}
		return ActionNone
	case StatusTransactionServerConfirm:
		if !fromArk {
			return ActionChainClaimableArk
		}
		return ActionChainSignableServer
	case StatusTransactionServerMempool:
		if fromArk {
			return ActionChainSignableServer
		}
		return ActionNone
	case StatusInvoiceFailedToPay, StatusSwapExpired:
		if fromArk {
			return ActionChainRefundable
		}
		// BTC-side refund is left out of scope per spec §9's open
		// question; it classifies as ActionNone, so the orchestrator
		// is never invoked for it.
		return ActionNone
	}
	return ActionNone
}

// HasSecretMaterial reports whether r carries the secret material its
// PendingAction requires, per spec §3.2's actionability invariant:
//   - reverse claim needs a non-zero preimage
//   - submarine refund needs the invoice (reconstructs the VHTLC)
//   - chain claim needs a non-zero preimage
//   - chain refund needs the preimage hash (always present once created)
func HasSecretMaterial(r *SwapRecord, action PendingAction) bool {
	if r == nil {
		return false
	}
	switch action {
	case ActionClaimableReverse:
		return r.Reverse != nil && r.Reverse.Preimage != lntypesZeroPreimage
	case ActionRefundableSubmarine:
		return r.Submarine != nil && r.Submarine.Request.Invoice != ""
	case ActionChainClaimableArk, ActionChainClaimableBtc:
		return r.Chain != nil && r.Chain.Preimage != lntypesZeroPreimage
	case ActionChainRefundable:
		return r.Chain != nil && r.Chain.Request.PreimageHash != lntypesZeroHash
	case ActionChainSignableServer:
		return true
	default:
		return false
	}
}

// IsActionable implements spec §3.2's full definition: PendingAction != none
// AND the necessary secret material is present.
func IsActionable(r *SwapRecord) bool {
	action := Classify(r)
	if action == ActionNone {
		return false
	}
	return HasSecretMaterial(r, action)
}
