package analytics

import (
	"fmt"

	"pc-rca/internal/config"
	"pc-rca/internal/models"
)

// Detector pairs an estimator with the policy that reads its output.
type Detector struct {
	Name      string
	EventType models.EventType
	Threshold float64
	Estimator Estimator
	Policy    Policy
}

// Observation is the result of feeding one sample through a Detector.
type Observation struct {
	Value    float64
	Mean     float64
	Spread   float64
	Count    int
	Decision Decision
}

func NewDetector(cfg config.Config) (*Detector, error) {
	switch cfg.Detector {
	case config.DetectorZScore, "":
		return &Detector{
			Name:      config.DetectorZScore,
			EventType: models.EventCPUAnomalyZ,
			Threshold: cfg.ZThreshold,
			Estimator: NewEWMAEstimator(cfg.Alpha, cfg.Epsilon),
			Policy:    ZScorePolicy{WarmupN: cfg.WarmupN, Threshold: cfg.ZThreshold},
		}, nil
	case config.DetectorDeviation:
		return &Detector{
			Name:      config.DetectorDeviation,
			EventType: models.EventCPUAnomaly,
			Threshold: cfg.DeviationK,
			Estimator: NewDeviationEstimator(cfg.Alpha),
			Policy:    DeviationPolicy{WarmupN: cfg.WarmupN, K: cfg.DeviationK, Epsilon: cfg.Epsilon},
		}, nil
	default:
		return nil, fmt.Errorf("unknown detector %q", cfg.Detector)
	}
}

// Observe updates the estimator with x and evaluates the policy against the
// post-update sample count.
func (d *Detector) Observe(x float64) (Observation, error) {
	mean, spread, err := d.Estimator.Update(x)
	if err != nil {
		return Observation{}, err
	}
	count := d.Estimator.State().SampleCount

	return Observation{
		Value:    x,
		Mean:     mean,
		Spread:   spread,
		Count:    count,
		Decision: d.Policy.Evaluate(x, mean, spread, count),
	}, nil
}
