package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRecordRequest(t *testing.T) {
	reader := metric.NewManualReader()
	obs := NewWithReader(reader, "placement-predictor-test")
	defer obs.Shutdown()

	ctx := context.Background()
	obs.RecordRequest(ctx, "predict_batch", "success")
	obs.RecordRequest(ctx, "predict_batch", "success")
	obs.RecordDuration(ctx, "predict_batch", 25*time.Millisecond, "success")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	found := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		found[m.Name] = true
		if m.Name == "requests.processed" {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(2), sum.DataPoints[0].Value)
		}
	}
	assert.True(t, found["requests.processed"])
	assert.True(t, found["requests.duration"])
}

func TestNilObservabilityIsSafe(t *testing.T) {
	var obs *Observability
	assert.NotPanics(t, func() {
		obs.RecordRequest(context.Background(), "predict_one", "error")
		obs.RecordDuration(context.Background(), "predict_one", time.Second, "error")
		obs.Shutdown()
	})
}
