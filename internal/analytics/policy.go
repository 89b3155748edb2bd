package analytics

import "math"

const (
	DefaultWarmupN    = 10
	DefaultZThreshold = 2.0
	DefaultDeviationK = 3.0
)

// Decision is the outcome of evaluating one sample.
type Decision struct {
	IsAnomaly bool    `json:"is_anomaly"`
	Ready     bool    `json:"ready"`
	ZScore    float64 `json:"z_score"`
	Threshold float64 `json:"threshold"`
	// Limit is the signal value above which a sample is anomalous.
	Limit float64 `json:"limit"`
}

// Policy classifies a sample given the estimator output. Implementations are
// stateless; sampleIndex is the estimator's sample count after the update.
type Policy interface {
	Evaluate(x, mean, spread float64, sampleIndex int) Decision
}

// ZScorePolicy flags samples whose z-score strictly exceeds Threshold once
// WarmupN samples have been seen.
type ZScorePolicy struct {
	WarmupN   int
	Threshold float64
}

func (p ZScorePolicy) Evaluate(x, mean, stdDev float64, sampleIndex int) Decision {
	z := (x - mean) / stdDev
	ready := sampleIndex >= p.WarmupN
	return Decision{
		IsAnomaly: ready && z > p.Threshold,
		Ready:     ready,
		ZScore:    z,
		Threshold: p.Threshold,
		Limit:     mean + p.Threshold*stdDev,
	}
}

// DeviationPolicy flags samples above mean + K*max(deviation, Epsilon).
type DeviationPolicy struct {
	WarmupN int
	K       float64
	Epsilon float64
}

func (p DeviationPolicy) Evaluate(x, mean, deviation float64, sampleIndex int) Decision {
	spread := math.Max(deviation, p.Epsilon)
	limit := mean + p.K*spread
	ready := sampleIndex >= p.WarmupN
	return Decision{
		IsAnomaly: ready && x > limit,
		Ready:     ready,
		ZScore:    (x - mean) / spread,
		Threshold: p.K,
		Limit:     limit,
	}
}
