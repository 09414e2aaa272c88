package metrics_test

import (
	"testing"

	"github.com/iamNilotpal/ignite/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	require.NotPanics(t, func() {
		metrics.Register()
		metrics.Register()
		metrics.Register()
	})
}

func TestCountersIncrement(t *testing.T) {
	metrics.Register()

	before := testutil.ToFloat64(metrics.PagesFlushed)
	metrics.PagesFlushed.Inc()
	require.Equal(t, before+1, testutil.ToFloat64(metrics.PagesFlushed))

	before = testutil.ToFloat64(metrics.DeviceErrors)
	metrics.DeviceErrors.Inc()
	require.Equal(t, before+1, testutil.ToFloat64(metrics.DeviceErrors))
}
