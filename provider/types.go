package provider

import "github.com/arkade-os/go-swap-engine/types"

// SwapStatusResponse is getSwapStatus's result, per spec §6.1.
type SwapStatusResponse struct {
	Status types.Status `json:"status"`
}

// CreateSubmarineResponse is createSubmarineSwap's result, per spec §6.1.
type CreateSubmarineResponse struct {
	ID             types.SwapId      `json:"id"`
	Address        string            `json:"address"`
	ExpectedAmount uint64            `json:"expectedAmount"`
	ClaimPublicKey string            `json:"claimPublicKey"`
	AcceptZeroConf bool              `json:"acceptZeroConf"`
	Timeouts       types.TimeoutSet  `json:"timeoutBlockHeights"`
}

// CreateReverseResponse is createReverseSwap's result, per spec §6.1.
type CreateReverseResponse struct {
	ID              types.SwapId     `json:"id"`
	Invoice         string           `json:"invoice"`
	OnchainAmount   uint64           `json:"onchainAmount"`
	LockupAddress   string           `json:"lockupAddress"`
	RefundPublicKey string           `json:"refundPublicKey"`
	Timeouts        types.TimeoutSet `json:"timeoutBlockHeights"`
}

// CreateChainResponse is createChainSwap's result, per spec §6.1.
type CreateChainResponse struct {
	ID            types.SwapId        `json:"id"`
	ClaimDetails  types.SwapTreeDetails `json:"claimDetails"`
	LockupDetails types.SwapTreeDetails `json:"lockupDetails"`
}

// RefundSubmarineResponse is refundSubmarineSwap's result: counterparty
// cooperative-signed PSBTs for both the refund tx and its checkpoint.
type RefundSubmarineResponse struct {
	TransactionPsbtB64 string `json:"transaction"`
	CheckpointPsbtB64  string `json:"checkpoint"`
}

// ReverseSwapTxIDResponse is getReverseSwapTxId's result.
type ReverseSwapTxIDResponse struct {
	ID                types.SwapId `json:"id"`
	TimeoutBlockHeight uint32      `json:"timeoutBlockHeight"`
}

// ChainFeesResponse is getChainFees's result.
type ChainFeesResponse struct {
	MinerFees struct {
		Server uint64 `json:"server"`
		User   struct {
			Claim  uint64 `json:"claim"`
			Lockup uint64 `json:"lockup"`
		} `json:"user"`
	} `json:"minerFees"`
	Percentage float64 `json:"percentage"`
}

// ChainLimitsResponse is getChainLimits's result.
type ChainLimitsResponse struct {
	Min uint64 `json:"min"`
	Max uint64 `json:"max"`
}

// SubscribeFrame is the outbound WS subscribe frame, per spec §6.1.
type SubscribeFrame struct {
	Op      string   `json:"op"`
	Channel string   `json:"channel"`
	Args    []string `json:"args"`
}

// NewSubscribeFrame builds the canonical {op:"subscribe",
// channel:"swap.update", args:[id]} frame.
func NewSubscribeFrame(id types.SwapId) SubscribeFrame {
	return SubscribeFrame{
		Op:      "subscribe",
		Channel: "swap.update",
		Args:    []string{string(id)},
	}
}

// UpdateEvent is one element of an incoming WS update frame's args array,
// per spec §6.1.
type UpdateEvent struct {
	ID     types.SwapId `json:"id"`
	Status types.Status `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// UpdateFrame is the inbound WS frame shape: {event:"update",
// args:[{id,status,error?}]}.
type UpdateFrame struct {
	Event string        `json:"event"`
	Args  []UpdateEvent `json:"args"`
}
