package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pc-rca/internal/config"
	"pc-rca/internal/models"
)

func TestZScorePolicy_WarmupSuppresses(t *testing.T) {
	p := ZScorePolicy{WarmupN: 10, Threshold: 2}
	for n := 0; n < 10; n++ {
		d := p.Evaluate(1000, 0, 1, n)
		assert.False(t, d.IsAnomaly, "sample %d", n)
		assert.False(t, d.Ready)
		assert.Equal(t, 1000.0, d.ZScore)
	}
	assert.True(t, p.Evaluate(1000, 0, 1, 10).IsAnomaly)
}

func TestZScorePolicy_StrictThreshold(t *testing.T) {
	p := ZScorePolicy{WarmupN: 10, Threshold: 2}

	tests := []struct {
		x, mean, std float64
		anomaly      bool
	}{
		{x: 14, mean: 10, std: 2, anomaly: false}, // z == 2
		{x: 14.0001, mean: 10, std: 2, anomaly: true},
		{x: 13.9, mean: 10, std: 2, anomaly: false},
		{x: 2, mean: 10, std: 2, anomaly: false}, // drops never flag
	}
	for _, test := range tests {
		d := p.Evaluate(test.x, test.mean, test.std, 10)
		assert.Equal(t, test.anomaly, d.IsAnomaly, "x=%v", test.x)
		assert.Equal(t, (test.x-test.mean)/test.std, d.ZScore)
		assert.Equal(t, 2.0, d.Threshold)
	}
}

func TestDeviationPolicy(t *testing.T) {
	p := DeviationPolicy{WarmupN: 2, K: 3, Epsilon: 1e-6}

	d := p.Evaluate(61, 50, 4, 2)
	assert.False(t, d.IsAnomaly)
	assert.Equal(t, 62.0, d.Limit)

	d = p.Evaluate(62.5, 50, 4, 2)
	assert.True(t, d.IsAnomaly)
	assert.Equal(t, 3.0, d.Threshold)
	assert.InDelta(t, 3.125, d.ZScore, 1e-12)

	// zero deviation is floored by epsilon
	d = p.Evaluate(50.1, 50, 0, 2)
	assert.True(t, d.IsAnomaly)
	assert.InDelta(t, 50+3e-6, d.Limit, 1e-12)

	assert.False(t, p.Evaluate(1000, 50, 4, 1).IsAnomaly)
}

// Flat load followed by a spike right after warm-up.
func TestDetector_FlatThenSpikeTrace(t *testing.T) {
	det, err := NewDetector(config.Default())
	require.NoError(t, err)
	assert.Equal(t, models.EventCPUAnomalyZ, det.EventType)

	for i := 0; i < 10; i++ {
		obs, err := det.Observe(50)
		require.NoError(t, err)
		assert.Equal(t, 50.0, obs.Mean)
		assert.Equal(t, math.Sqrt(1e-6), obs.Spread)
		assert.Equal(t, i+1, obs.Count)
		assert.False(t, obs.Decision.IsAnomaly)
		assert.Equal(t, i+1 >= 10, obs.Decision.Ready)
	}

	obs, err := det.Observe(95)
	require.NoError(t, err)

	// mean = 0.2*95 + 0.8*50 = 59, variance = 0.2*(95-59)^2 = 259.2
	assert.InDelta(t, 59.0, obs.Mean, 1e-12)
	assert.InDelta(t, 259.2, det.Estimator.State().Variance, 1e-9)
	assert.InDelta(t, math.Sqrt(259.2+1e-6), obs.Spread, 1e-12)
	assert.InDelta(t, 36/math.Sqrt(259.2+1e-6), obs.Decision.ZScore, 1e-12)
	assert.InDelta(t, 2.2360679, obs.Decision.ZScore, 1e-6)
	assert.Equal(t, 11, obs.Count)
	assert.True(t, obs.Decision.Ready)
	assert.True(t, obs.Decision.IsAnomaly)
}

func TestNewDetector(t *testing.T) {
	cfg := config.Default()
	cfg.Detector = config.DetectorDeviation
	det, err := NewDetector(cfg)
	require.NoError(t, err)
	assert.Equal(t, models.EventCPUAnomaly, det.EventType)
	assert.IsType(t, &DeviationEstimator{}, det.Estimator)
	assert.IsType(t, DeviationPolicy{}, det.Policy)

	cfg.Detector = "median"
	_, err = NewDetector(cfg)
	assert.Error(t, err)
}

func TestDetector_NonFiniteLeavesStateUntouched(t *testing.T) {
	det, err := NewDetector(config.Default())
	require.NoError(t, err)

	_, err = det.Observe(math.Inf(1))
	assert.ErrorIs(t, err, ErrNonFinite)
	assert.Equal(t, 0, det.Estimator.State().SampleCount)
}
