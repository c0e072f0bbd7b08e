package types

import (
	"testing"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/stretchr/testify/require"
)

func TestClassifyDelay(t *testing.T) {
	require.Equal(t, DelayBlocks, ClassifyDelay(511))
	require.Equal(t, DelaySeconds, ClassifyDelay(512))
}

func TestClassifyReverse(t *testing.T) {
	r := &SwapRecord{Kind: SwapReverse, Status: StatusTransactionConfirm}
	require.Equal(t, ActionClaimableReverse, Classify(r))

	r.Status = StatusSwapCreated
	require.Equal(t, ActionNone, Classify(r))
}

func TestIsActionableRequiresSecretMaterial(t *testing.T) {
	r := &SwapRecord{
		Kind:    SwapReverse,
		Status:  StatusTransactionConfirm,
		Reverse: &ReverseSwap{},
	}
	// No preimage yet: classified claimable, but not actionable.
	require.Equal(t, ActionClaimableReverse, Classify(r))
	require.False(t, IsActionable(r))

	r.Reverse.Preimage = lntypes.Preimage{0x01}
	require.True(t, IsActionable(r))
}

func TestClassifyChainArkToBtc(t *testing.T) {
	r := &SwapRecord{
		Kind:   SwapChain,
		Status: StatusTransactionConfirm,
		Chain: &ChainSwap{
			Request: ChainRequest{From: "ARK", To: "BTC"},
		},
	}
	require.Equal(t, ActionChainClaimableBtc, Classify(r))

	r.Status = StatusTransactionServerMempool
	require.Equal(t, ActionChainSignableServer, Classify(r))
}

func TestClassifyChainBtcToArk(t *testing.T) {
	r := &SwapRecord{
		Kind:   SwapChain,
		Status: StatusTransactionServerConfirm,
		Chain: &ChainSwap{
			Request: ChainRequest{From: "BTC", To: "ARK"},
		},
	}
	require.Equal(t, ActionChainClaimableArk, Classify(r))
}

func TestClassifyChainBtcRefundOutOfScope(t *testing.T) {
	r := &SwapRecord{
		Kind:   SwapChain,
		Status: StatusSwapExpired,
		Chain: &ChainSwap{
			Request: ChainRequest{From: "BTC", To: "ARK"},
		},
	}
	require.Equal(t, ActionNone, Classify(r))
}

func TestIsFinalStatusMonotonicSet(t *testing.T) {
	require.True(t, IsReverseFinal(StatusInvoiceSettled))
	require.True(t, IsReverseSuccess(StatusInvoiceSettled))
	require.False(t, IsReverseFinal(StatusTransactionMempool))

	require.True(t, IsSubmarineFinal(StatusTransactionClaimed))
	require.True(t, IsSubmarineSuccess(StatusTransactionClaimed))
}

func TestTerminalKindFor(t *testing.T) {
	kind, ok := TerminalKindFor(StatusTransactionRefunded)
	require.True(t, ok)
	require.Equal(t, TerminalTransactionRefund, kind)

	_, ok = TerminalKindFor(StatusInvoiceSettled)
	require.False(t, ok)
}
