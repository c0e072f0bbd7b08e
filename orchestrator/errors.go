package orchestrator

import "errors"

var (
	// ErrMissingPreimage is returned when a claim protocol is invoked
	// without the preimage its leaf requires.
	ErrMissingPreimage = errors.New("orchestrator: preimage required for claim")

	// ErrMissingSigner is returned when a protocol needs a private key
	// the caller did not supply.
	ErrMissingSigner = errors.New("orchestrator: signer key required")

	// ErrLeafNotFound is returned when the requested VHTLC leaf is not
	// part of the built script tree.
	ErrLeafNotFound = errors.New("orchestrator: leaf not present in script tree")

	// ErrUnsupportedDirection is returned by Executor.ExecuteChain for the
	// chain-swap actions this engine does not execute: the BTC-side claim
	// (ActionChainClaimableBtc) and the server-claim co-signing
	// (ActionChainSignableServer).
	ErrUnsupportedDirection = errors.New("orchestrator: unsupported chain swap direction")

	// ErrBatchEventTimeout is returned by JoinBatch when the server's
	// signing-round events do not arrive before ctx is canceled.
	ErrBatchEventTimeout = errors.New("orchestrator: timed out waiting for batch signing round")

	// ErrProtocolCheckpointCount is returned when a TxBuilder produces a
	// checkpoint count other than the single checkpoint the offchain-tx
	// signing ceremony expects, per spec §4.5.4 step 2.
	ErrProtocolCheckpointCount = errors.New("orchestrator: unexpected checkpoint count")

	// ErrMissingDependency is returned when an Executor method is invoked
	// without a required collaborator (TxBuilder, VtxoLookup,
	// CounterpartySigner, ...) configured — an embedder wiring gap,
	// caught here rather than left to surface as a nil-pointer panic the
	// moment a swap becomes actionable.
	ErrMissingDependency = errors.New("orchestrator: executor missing required dependency")
)
