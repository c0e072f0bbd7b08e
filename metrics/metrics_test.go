package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/arkade-os/go-swap-engine/eventbus"
	"github.com/arkade-os/go-swap-engine/types"
)

func TestObserveActionExecutedIncrementsCounter(t *testing.T) {
	collectors := NewCollectors("swapengine_test")
	reg := prometheus.NewRegistry()
	collectors.MustRegister(reg)

	observe := collectors.ObserveActionExecuted()
	observe(&types.SwapRecord{ID: "a"}, eventbus.ActionClaim)
	observe(&types.SwapRecord{ID: "b"}, eventbus.ActionClaim)

	metric := &dto.Metric{}
	require.NoError(t, collectors.ActionsExecuted.WithLabelValues("claim").Write(metric))
	require.Equal(t, float64(2), metric.GetCounter().GetValue())
}
