package provider

import (
	"context"

	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
)

// FeeEstimatesResponse mirrors mempool.space's /v1/fees/recommended shape,
// per the teacher's chain_bridge.go GetFeeEstimates usage.
type FeeEstimatesResponse struct {
	FastestFee  int64 `json:"fastestFee"`
	HalfHourFee int64 `json:"halfHourFee"`
	HourFee     int64 `json:"hourFee"`
	EconomyFee  int64 `json:"economyFee"`
	MinimumFee  int64 `json:"minimumFee"`
}

// GetFeeEstimates fetches the provider's recommended sat/vByte fee tiers.
func (c *Client) GetFeeEstimates(ctx context.Context) (*FeeEstimatesResponse, error) {
	var out FeeEstimatesResponse
	if err := c.getJSON(ctx, "/v1/fees/recommended", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EstimateCheckpointFeeRate maps a confirmation target to a sat/kW fee rate
// for sizing Ark checkpoint transactions, grounded directly on the teacher's
// ChainBridge.EstimateFee confTarget-bucketing and sat/vB-to-sat/kW
// conversion (1 vByte = 4 weight units).
func (c *Client) EstimateCheckpointFeeRate(ctx context.Context, confTarget uint32) (chainfee.SatPerKWeight, error) {
	fees, err := c.GetFeeEstimates(ctx)
	if err != nil {
		return 0, err
	}

	var satPerVByte int64
	switch {
	case confTarget <= 1:
		satPerVByte = fees.FastestFee
	case confTarget <= 3:
		satPerVByte = fees.HalfHourFee
	case confTarget <= 6:
		satPerVByte = fees.HourFee
	case confTarget <= 12:
		satPerVByte = fees.EconomyFee
	default:
		satPerVByte = fees.MinimumFee
	}

	return chainfee.SatPerKWeight(satPerVByte * 1000 / 4), nil
}
