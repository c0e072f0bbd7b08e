// Package crypto implements the leaf-level primitives the VHTLC builder and
// the transaction orchestrator build on: x-only public key normalization,
// preimage hashing, and a chainable MuSig2 session. It mirrors the direct
// btcec/secp256k1 usage found in the teacher's itest swap helpers
// (swap_test.go's musig2 key aggregation and odd-Y tweak handling).
package crypto

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required by BIP-style HASH160 commitments
)

// xonlyError is the type of ErrInvalidKey, which is returned when a
// supplied public key is neither 32 (x-only) nor 33 (compressed) bytes
// long, per spec §4.1.
type xonlyError struct{ msg string }

func (e *xonlyError) Error() string { return e.msg }

// ErrInvalidKey is the sentinel the VHTLC builder classifies as
// types.KindInvalidInput.
var ErrInvalidKey = &xonlyError{msg: "invalid public key length: expected 32 or 33 bytes"}

// NormalizeXOnly reduces a 32-byte x-only or 33-byte compressed public key
// to its 32-byte x-only form, per spec §4.1. Any other length is rejected.
func NormalizeXOnly(key []byte) ([32]byte, error) {
	var out [32]byte

	switch len(key) {
	case 32:
		copy(out[:], key)
		return out, nil

	case 33:
		pub, err := btcec.ParsePubKey(key)
		if err != nil {
			return out, ErrInvalidKey
		}
		copy(out[:], schnorr.SerializePubKey(pub))
		return out, nil

	default:
		return out, ErrInvalidKey
	}
}

// ParseXOnlyPubKey fully parses a normalized x-only key back into a
// *btcec.PublicKey (lifted to the even-Y point, matching BIP-340).
func ParseXOnlyPubKey(xonly [32]byte) (*btcec.PublicKey, error) {
	return schnorr.ParsePubKey(xonly[:])
}

// HashPreimage applies SHA-256 then RIPEMD-160 to preimage, producing the
// 20-byte commitment used inside the VHTLC claim leaf, per spec §3.1's
// VhtlcScript.preimageHash field definition.
func HashPreimage(preimage [32]byte) [20]byte {
	sha := sha256.Sum256(preimage[:])
	return Hash160(sha[:])
}

// Hash160 computes RIPEMD160(data). Callers that need Bitcoin's usual
// HASH160(x) = RIPEMD160(SHA256(x)) must SHA-256 data themselves first, as
// HashPreimage does.
func Hash160(data []byte) [20]byte {
	var out [20]byte
	h := ripemd160.New()
	h.Write(data)
	copy(out[:], h.Sum(nil))
	return out
}
