package orchestrator

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/keychain"

	"github.com/arkade-os/go-swap-engine/crypto"
)

// LocalSigner derives a swap's VHTLC leaf signing key from a crypto.KeyRing,
// grounded on the teacher's keyring.KeyRing: leaf signatures come from a
// locally derived key rather than a remote-signer RPC. locator pins which
// (family, index) key signs for this swap; callers allocate one locator per
// swap (e.g. derived from the swap id) so a compromised index exposes only
// that swap's leaf keys.
//
// LeafScript and PrevOut identify the single VHTLC input this signer signs
// for; ClaimVhtlcWithOffchainTx and RefundVhtlcWithOffchainTx each deal in
// exactly one checkpoint, per their ErrProtocolCheckpointCount check, so one
// (leaf script, previous output) pair is enough to drive every Sign call for
// a given swap.
type LocalSigner struct {
	ring    *crypto.KeyRing
	locator keychain.KeyLocator

	LeafScript []byte
	PrevOut    *wire.TxOut
}

// NewLocalSigner binds ring to locator.
func NewLocalSigner(ring *crypto.KeyRing, locator keychain.KeyLocator) *LocalSigner {
	return &LocalSigner{ring: ring, locator: locator}
}

// KeyDescriptor returns this signer's public key descriptor, for embedding in
// VHTLC script construction.
func (s *LocalSigner) KeyDescriptor() (keychain.KeyDescriptor, error) {
	desc, _, err := s.ring.DeriveKey(s.locator)
	return desc, err
}

// SignLeaf signs leafScript's script-path sighash at inputIndex with this
// signer's derived private key, for use as one witness signature element.
func (s *LocalSigner) SignLeaf(
	tx *wire.MsgTx,
	prevOutFetcher txscript.PrevOutputFetcher,
	inputIndex int,
	leafScript []byte,
) ([]byte, error) {
	_, priv, err := s.ring.DeriveKey(s.locator)
	if err != nil {
		return nil, err
	}
	return SignTapLeaf(tx, prevOutFetcher, inputIndex, leafScript, priv)
}

// Sign implements the Signer function type: it parses psbtB64, signs input 0
// against s.LeafScript/s.PrevOut, and writes the resulting witness directly
// onto the unsigned transaction's TxIn, mirroring the teacher's
// WalletAnchor.signP2WPKH rather than populating PSBT's taproot partial-sig
// fields, which this module never reads back out.
func (s *LocalSigner) Sign(_ context.Context, psbtB64 string) (string, error) {
	packet, err := psbt.NewFromRawBytes(strings.NewReader(psbtB64), true)
	if err != nil {
		return "", fmt.Errorf("orchestrator: parse psbt: %w", err)
	}
	if len(packet.UnsignedTx.TxIn) == 0 {
		return "", fmt.Errorf("orchestrator: psbt has no inputs to sign")
	}

	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(s.PrevOut.PkScript, s.PrevOut.Value)
	sig, err := s.SignLeaf(packet.UnsignedTx, prevOutFetcher, 0, s.LeafScript)
	if err != nil {
		return "", fmt.Errorf("orchestrator: sign leaf: %w", err)
	}
	packet.UnsignedTx.TxIn[0].Witness = wire.TxWitness{sig, s.LeafScript}

	var buf bytes.Buffer
	if err := packet.Serialize(&buf); err != nil {
		return "", fmt.Errorf("orchestrator: serialize psbt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
