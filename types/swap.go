package types

import (
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
)

// SwapId is the opaque, counterparty-assigned primary key for a swap
// record.
type SwapId string

// ReverseRequest is the user-supplied request half of a reverse swap.
type ReverseRequest struct {
	ClaimPublicKey [33]byte
	PreimageHash   lntypes.Hash
	InvoiceAmount  uint64
	Description    string
}

// ReverseResponse is the counterparty-supplied response half of a reverse
// swap.
type ReverseResponse struct {
	Invoice         string
	OnchainAmount   uint64
	LockupAddress   string
	RefundPublicKey [33]byte
	Timeouts        TimeoutSet
}

// SubmarineRequest is the user-supplied request half of a submarine swap.
type SubmarineRequest struct {
	Invoice         string
	RefundPublicKey [33]byte

	// PreimageHash is the HTLC hash the submarine invoice commits to.
	// BOLT11 decoding is out of scope (spec §1), so callers must supply
	// this alongside the invoice string at creation time; it is what
	// lets a submarine refund rebuild and verify its VHTLC independently
	// of the invoice encoding.
	PreimageHash lntypes.Hash
}

// SubmarineResponse is the counterparty-supplied response half of a
// submarine swap.
type SubmarineResponse struct {
	ID              SwapId
	Address         string
	ExpectedAmount  uint64
	ClaimPublicKey  [33]byte
	AcceptZeroConf  bool
	Timeouts        TimeoutSet
}

// ChainDirection identifies which side of a chain swap is the Ark leg versus
// the BTC leg.
type ChainDirection struct {
	From string // "ARK" or "BTC"
	To   string // "ARK" or "BTC"
}

// ChainRequest is the user-supplied request half of a chain swap.
type ChainRequest struct {
	From            string
	To              string
	UserLockAmount  uint64
	ClaimPublicKey  [33]byte
	RefundPublicKey [33]byte
	PreimageHash    lntypes.Hash
}

// SwapTreeDetails describes one leg (claim or lockup) of a chain swap's
// VHTLC response, per spec §3.1/§6.1: either a swapTree (already-built
// script description) or a timeouts set plus the server's public key.
type SwapTreeDetails struct {
	LockupAddress     string
	ServerPublicKey   [33]byte
	Amount            uint64
	Timeouts          TimeoutSet
	TimeoutBlockHeight uint32
	SwapTree          []byte // opaque encoded script tree, when present
}

// ChainResponse is the counterparty-supplied response half of a chain swap.
type ChainResponse struct {
	LockupDetails SwapTreeDetails
	ClaimDetails  SwapTreeDetails
}

// ReverseSwap is the reverse-swap variant of SwapRecord.
type ReverseSwap struct {
	Preimage lntypes.Preimage // may be zero-value on a restored record
	Request  ReverseRequest
	Response ReverseResponse
}

// SubmarineSwap is the submarine-swap variant of SwapRecord.
type SubmarineSwap struct {
	Request  SubmarineRequest
	Response SubmarineResponse
}

// ChainSwap is the chain-swap (Ark <-> BTC) variant of SwapRecord.
type ChainSwap struct {
	FeeSatsPerByte uint64
	Preimage       lntypes.Preimage
	EphemeralKey   [33]byte
	ToAddress      string
	Amount         uint64
	Request        ChainRequest
	Response       ChainResponse

	// BtcTxHex is populated once the counterparty has published its
	// lockup transaction on the BTC side.
	BtcTxHex string
}

// SwapRecord is the tagged union stored per swap, per spec §3.1. Exactly one
// of Reverse, Submarine, Chain is populated, selected by Kind.
type SwapRecord struct {
	ID        SwapId
	Kind      SwapKind
	CreatedAt time.Time
	Status    Status

	Reverse   *ReverseSwap
	Submarine *SubmarineSwap
	Chain     *ChainSwap
}

// IsFinal reports whether the record's current status is terminal for its
// kind.
func (r *SwapRecord) IsFinal() bool {
	if r == nil {
		return false
	}
	return IsFinalStatus(r.Kind, r.Status)
}

// IsSuccess reports whether the record's current status is a success
// terminal status for its kind.
func (r *SwapRecord) IsSuccess() bool {
	if r == nil {
		return false
	}
	return IsSuccessStatus(r.Kind, r.Status)
}

// Clone returns a deep-enough copy of r suitable for safe handoff across a
// goroutine boundary (event bus dispatch, repository round-trip). The
// pointer-typed variant fields are copied by value.
func (r *SwapRecord) Clone() *SwapRecord {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Reverse != nil {
		rv := *r.Reverse
		clone.Reverse = &rv
	}
	if r.Submarine != nil {
		sv := *r.Submarine
		clone.Submarine = &sv
	}
	if r.Chain != nil {
		cv := *r.Chain
		clone.Chain = &cv
	}
	return &clone
}
