// Package orchestrator implements the transaction orchestrator invoked by
// the lifecycle engine once a swap is classified actionable, per spec §4.5:
// reverse claim, submarine refund, the chain-swap action table, the
// claim/refund-via-offchain-tx signing ceremony, and join_batch. Taproot
// script-path witness assembly is grounded directly on the teacher's itest
// HTLC helpers (swap_test.go's genSuccessWitness/genSuccessControlBlock),
// generalized from the two-leaf onchain HTLC to vhtlc.Script's four leaves.
package orchestrator

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/arkade-os/go-swap-engine/vhtlc"
)

// tapLeafSigHash computes the BIP-341 script-path sighash for leafScript at
// inputIndex, mirroring the teacher's use of SignOutputRaw with
// SIGN_METHOD_TAPROOT_SCRIPT_SPEND but computed locally since this module
// signs with a raw private key rather than an lnd signer RPC.
func tapLeafSigHash(
	tx *wire.MsgTx,
	prevOutFetcher txscript.PrevOutputFetcher,
	inputIndex int,
	leafScript []byte,
) ([32]byte, error) {
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)
	leaf := txscript.NewBaseTapLeaf(leafScript)
	return txscript.CalcTapscriptSignaturehash(
		sigHashes, txscript.SigHashDefault, tx, inputIndex, prevOutFetcher,
		leaf,
	)
}

// SignTapLeaf produces a BIP-340 schnorr signature over leafScript's
// script-path sighash using priv, for use as one of a witness's signature
// elements.
func SignTapLeaf(
	tx *wire.MsgTx,
	prevOutFetcher txscript.PrevOutputFetcher,
	inputIndex int,
	leafScript []byte,
	priv *btcec.PrivateKey,
) ([]byte, error) {
	hash, err := tapLeafSigHash(tx, prevOutFetcher, inputIndex, leafScript)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: sighash: %w", err)
	}
	sig, err := schnorr.Sign(priv, hash[:])
	if err != nil {
		return nil, fmt.Errorf("orchestrator: sign: %w", err)
	}
	return sig.Serialize(), nil
}

// buildWitness assembles a taproot script-path witness: the leaf's own
// stack items in witness order (bottom of the stack first, so the item the
// script consumes first comes last) followed by the leaf script and its
// control block, mirroring
// genSuccessWitness's {preimage, sig, script, controlBlock} layout.
func buildWitness(script *vhtlc.Script, kind vhtlc.LeafKind, stackItems ...[]byte) (wire.TxWitness, error) {
	leafScript, ok := script.LeafScript(kind)
	if !ok {
		return nil, ErrLeafNotFound
	}
	cb, err := script.ControlBlock(kind)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: control block: %w", err)
	}
	cbBytes, err := cb.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: serialize control block: %w", err)
	}

	witness := make(wire.TxWitness, 0, len(stackItems)+2)
	witness = append(witness, stackItems...)
	witness = append(witness, leafScript, cbBytes)
	return witness, nil
}

// ClaimWitness builds the witness for vhtlc.LeafClaim: the receiver reveals
// the preimage and signs, per spec §4.5.1 step 4's "write the preimage into
// the reveal" requirement.
func ClaimWitness(script *vhtlc.Script, preimage [32]byte, receiverSig []byte) (wire.TxWitness, error) {
	if receiverSig == nil {
		return nil, ErrMissingSigner
	}
	return buildWitness(script, vhtlc.LeafClaim, preimage[:], receiverSig)
}

// RefundCooperativeWitness builds the witness for
// vhtlc.LeafRefundCooperative: sender's CHECKSIGVERIFY is evaluated before
// receiver's CHECKSIG, so senderSig must be the top (first-consumed) stack
// item.
func RefundCooperativeWitness(script *vhtlc.Script, senderSig, receiverSig []byte) (wire.TxWitness, error) {
	if senderSig == nil || receiverSig == nil {
		return nil, ErrMissingSigner
	}
	return buildWitness(script, vhtlc.LeafRefundCooperative, receiverSig, senderSig)
}

// ClaimCooperativeWitness builds the witness for vhtlc.LeafClaimCooperative:
// receiver's CHECKSIGVERIFY runs before server's CHECKSIG.
func ClaimCooperativeWitness(script *vhtlc.Script, receiverSig, serverSig []byte) (wire.TxWitness, error) {
	if receiverSig == nil || serverSig == nil {
		return nil, ErrMissingSigner
	}
	return buildWitness(script, vhtlc.LeafClaimCooperative, serverSig, receiverSig)
}

// RefundWithoutReceiverWitness builds the witness for
// vhtlc.LeafRefundWithoutReceiver: sender's CHECKSIGVERIFY runs before the
// CSV gate and server's CHECKSIG.
func RefundWithoutReceiverWitness(script *vhtlc.Script, senderSig, serverSig []byte) (wire.TxWitness, error) {
	if senderSig == nil || serverSig == nil {
		return nil, ErrMissingSigner
	}
	return buildWitness(script, vhtlc.LeafRefundWithoutReceiver, serverSig, senderSig)
}
