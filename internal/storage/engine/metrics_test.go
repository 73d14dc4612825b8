package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcloud/internal/apperr"
)

func TestPutMetricDataAndStatistics(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	start := clock.Now().UnixNano()

	for _, v := range []float64{1, 5, 3} {
		require.NoError(t, e.PutMetricData("app", []MetricRow{{Name: "latency", Value: v}}))
		clock.Advance(time.Second)
	}

	stats, err := e.GetMetricStatistics("app", "latency", start, clock.Now().UnixNano())
	require.NoError(t, err)
	assert.Equal(t, float64(3), stats.SampleCount)
	assert.Equal(t, float64(9), stats.Sum)
	assert.Equal(t, float64(1), stats.Minimum)
	assert.Equal(t, float64(5), stats.Maximum)
	assert.Equal(t, float64(3), stats.Average)
}

func TestMetricStatisticsRangeBounds(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	start := clock.Now().UnixNano()
	require.NoError(t, e.PutMetricData("app", []MetricRow{{Name: "m", Value: 1}}))
	clock.Advance(time.Minute)
	require.NoError(t, e.PutMetricData("app", []MetricRow{{Name: "m", Value: 100}}))

	// End is exclusive, so only the first datapoint is in range.
	stats, err := e.GetMetricStatistics("app", "m", start, start+int64(time.Second))
	require.NoError(t, err)
	assert.Equal(t, float64(1), stats.SampleCount)
	assert.Equal(t, float64(1), stats.Sum)

	empty, err := e.GetMetricStatistics("app", "absent", start, start+int64(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, empty.SampleCount)
	assert.Zero(t, empty.Minimum)
}

func TestListMetricsDistinct(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.NoError(t, e.PutMetricData("app", []MetricRow{
		{Name: "latency", Value: 1},
		{Name: "latency", Value: 2},
		{Name: "errors", Value: 1},
	}))
	require.NoError(t, e.PutMetricData("other", []MetricRow{{Name: "x", Value: 1}}))

	scoped, err := e.ListMetrics("app")
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, "errors", scoped[0].Name)
	assert.Equal(t, "latency", scoped[1].Name)

	all, err := e.ListMetrics("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPutMetricDataValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	err := e.PutMetricData("", []MetricRow{{Name: "m", Value: 1}})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	err = e.PutMetricData("ns", []MetricRow{{Value: 1}})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}
