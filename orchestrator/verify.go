package orchestrator

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/arkade-os/go-swap-engine/arkclient"
	"github.com/arkade-os/go-swap-engine/crypto"
	"github.com/arkade-os/go-swap-engine/types"
	"github.com/arkade-os/go-swap-engine/vhtlc"
)

// decodeServerKey parses the Ark server's getInfo signerPubkey (hex-encoded,
// per every other key-shaped field this module receives over the wire) into
// its normalized x-only form.
func decodeServerKey(signerPubkeyHex string) ([32]byte, error) {
	raw, err := hex.DecodeString(signerPubkeyHex)
	if err != nil {
		return [32]byte{}, types.NewError(types.KindProtocol, fmt.Errorf("orchestrator: decode server signer key: %w", err))
	}
	xonly, err := crypto.NormalizeXOnly(raw)
	if err != nil {
		return [32]byte{}, types.NewError(types.KindProtocol, fmt.Errorf("orchestrator: server signer key: %w", err))
	}
	return xonly, nil
}

// verifyVHTLCAddress rebuilds the VHTLC described by opts and asserts its
// derived address matches wantAddress, raising a KindAdversary error on
// mismatch per spec §3.2/§4.1's verification contract: a swap's lockup or
// claim VTXO must never be touched without first confirming the
// counterparty's advertised address is the one the client independently
// derives from the same sender/receiver/server keys and timeouts.
func verifyVHTLCAddress(opts vhtlc.Options, network types.Network, wantAddress string) error {
	script, err := vhtlc.BuildAggregate(opts)
	if err != nil {
		return types.NewError(types.KindInvalidInput, fmt.Errorf("orchestrator: build expected vhtlc: %w", err))
	}

	addr, err := script.Address(network)
	if err != nil {
		return types.NewError(types.KindInvalidInput, fmt.Errorf("orchestrator: derive vhtlc address: %w", err))
	}

	if addr != wantAddress {
		return types.NewError(types.KindAdversary, fmt.Errorf(
			"orchestrator: vhtlc address mismatch: expected %s, counterparty supplied %s", addr, wantAddress,
		))
	}
	return nil
}

// verifyReverseVHTLC rebuilds the reverse swap's VHTLC from its request and
// response (the counterparty is the sender/refund side, the user is the
// receiver/claim side) and checks it against the advertised lockup address,
// per spec §4.5.1 step 2.
func verifyReverseVHTLC(ctx context.Context, ark *arkclient.Client, record *types.SwapRecord, network types.Network) error {
	if record.Reverse == nil {
		return types.Errorf(types.KindState, "orchestrator: record %s has no reverse swap data", record.ID)
	}
	r := record.Reverse

	info, err := ark.GetInfo(ctx)
	if err != nil {
		return types.NewError(types.KindNetwork, fmt.Errorf("orchestrator: get ark info: %w", err))
	}
	server, err := decodeServerKey(info.SignerPubkey)
	if err != nil {
		return err
	}

	sender, err := crypto.NormalizeXOnly(r.Response.RefundPublicKey[:])
	if err != nil {
		return types.NewError(types.KindInvalidInput, err)
	}
	receiver, err := crypto.NormalizeXOnly(r.Request.ClaimPublicKey[:])
	if err != nil {
		return types.NewError(types.KindInvalidInput, err)
	}

	opts := vhtlc.Options{
		Sender:               sender,
		Receiver:             receiver,
		Server:               server,
		PreimageHash:         crypto.Hash160(r.Request.PreimageHash[:]),
		RefundLocktime:       r.Response.Timeouts.UnilateralRefundWithoutReceiver,
		UnilateralClaimDelay: r.Response.Timeouts.UnilateralClaim,
	}
	return verifyVHTLCAddress(opts, network, r.Response.LockupAddress)
}

// verifySubmarineVHTLC rebuilds the submarine swap's VHTLC from its request
// and response (the user is the sender/refund side, the counterparty is the
// receiver/claim side) and checks it against the advertised lockup address,
// per spec §4.5.2's refund precondition.
func verifySubmarineVHTLC(ctx context.Context, ark *arkclient.Client, record *types.SwapRecord, network types.Network) error {
	if record.Submarine == nil {
		return types.Errorf(types.KindState, "orchestrator: record %s has no submarine swap data", record.ID)
	}
	s := record.Submarine

	info, err := ark.GetInfo(ctx)
	if err != nil {
		return types.NewError(types.KindNetwork, fmt.Errorf("orchestrator: get ark info: %w", err))
	}
	server, err := decodeServerKey(info.SignerPubkey)
	if err != nil {
		return err
	}

	sender, err := crypto.NormalizeXOnly(s.Request.RefundPublicKey[:])
	if err != nil {
		return types.NewError(types.KindInvalidInput, err)
	}
	receiver, err := crypto.NormalizeXOnly(s.Response.ClaimPublicKey[:])
	if err != nil {
		return types.NewError(types.KindInvalidInput, err)
	}

	opts := vhtlc.Options{
		Sender:               sender,
		Receiver:             receiver,
		Server:               server,
		PreimageHash:         crypto.Hash160(s.Request.PreimageHash[:]),
		RefundLocktime:       s.Response.Timeouts.UnilateralRefundWithoutReceiver,
		UnilateralClaimDelay: s.Response.Timeouts.UnilateralClaim,
	}
	return verifyVHTLCAddress(opts, network, s.Response.Address)
}

// verifyChainVHTLC rebuilds the Ark-side leg of a chain swap's VHTLC
// (leg.SwapTree is the counterparty's opaque pre-encoded script tree format,
// outside this module's scope — see TxBuilder's doc comment — so verification
// is skipped when the counterparty chose that encoding rather than handing
// back raw timeouts) and checks it against leg's lockup address.
func verifyChainVHTLC(record *types.SwapRecord, leg types.SwapTreeDetails, network types.Network) error {
	if record.Chain == nil {
		return types.Errorf(types.KindState, "orchestrator: record %s has no chain swap data", record.ID)
	}
	if len(leg.SwapTree) > 0 {
		return nil
	}
	c := record.Chain

	server, err := crypto.NormalizeXOnly(leg.ServerPublicKey[:])
	if err != nil {
		return types.NewError(types.KindInvalidInput, err)
	}
	sender, err := crypto.NormalizeXOnly(c.Request.RefundPublicKey[:])
	if err != nil {
		return types.NewError(types.KindInvalidInput, err)
	}
	receiver, err := crypto.NormalizeXOnly(c.Request.ClaimPublicKey[:])
	if err != nil {
		return types.NewError(types.KindInvalidInput, err)
	}

	opts := vhtlc.Options{
		Sender:               sender,
		Receiver:             receiver,
		Server:               server,
		PreimageHash:         crypto.Hash160(c.Request.PreimageHash[:]),
		RefundLocktime:       leg.Timeouts.UnilateralRefundWithoutReceiver,
		UnilateralClaimDelay: leg.Timeouts.UnilateralClaim,
	}
	return verifyVHTLCAddress(opts, network, leg.LockupAddress)
}
