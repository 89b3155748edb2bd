package analytics

import (
	"errors"
	"fmt"
	"math"

	"pc-rca/internal/models"
)

var ErrNonFinite = errors.New("non-finite sample")

const (
	DefaultAlpha   = 0.2
	DefaultEpsilon = 1e-6
)

// Estimator folds a scalar signal into a center and a spread estimate.
type Estimator interface {
	Update(x float64) (center, spread float64, err error)
	State() models.EstimatorState
}

// EWMAEstimator keeps an exponentially weighted mean and variance of one signal.
// The mean is moved before the residual is taken, so the variance tracks the
// residual against the updated mean.
type EWMAEstimator struct {
	alpha    float64
	epsilon  float64
	mean     float64
	variance float64
	count    int
}

func NewEWMAEstimator(alpha, epsilon float64) *EWMAEstimator {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return &EWMAEstimator{alpha: alpha, epsilon: epsilon}
}

// Update folds x into the estimate and returns the new mean and standard
// deviation. The standard deviation is floored by sqrt(epsilon).
func (e *EWMAEstimator) Update(x float64) (float64, float64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, 0, fmt.Errorf("%w: %v", ErrNonFinite, x)
	}

	e.count++
	if e.count == 1 {
		e.mean = x
		e.variance = 0
		return e.mean, math.Sqrt(e.epsilon), nil
	}

	e.mean = e.alpha*x + (1-e.alpha)*e.mean
	diff := x - e.mean
	e.variance = e.alpha*diff*diff + (1-e.alpha)*e.variance

	return e.mean, math.Sqrt(e.variance + e.epsilon), nil
}

func (e *EWMAEstimator) State() models.EstimatorState {
	state := models.EstimatorState{Variance: e.variance, SampleCount: e.count}
	if e.count > 0 {
		mean := e.mean
		state.Mean = &mean
	}
	return state
}

// DeviationEstimator keeps an EWMA of the signal and an EWMA of the absolute
// deviation from it.
type DeviationEstimator struct {
	alpha     float64
	mean      float64
	deviation float64
	count     int
}

func NewDeviationEstimator(alpha float64) *DeviationEstimator {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &DeviationEstimator{alpha: alpha}
}

func (e *DeviationEstimator) Update(x float64) (float64, float64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, 0, fmt.Errorf("%w: %v", ErrNonFinite, x)
	}

	e.count++
	if e.count == 1 {
		e.mean = x
	} else {
		e.mean = ewma(e.mean, x, e.alpha)
	}
	e.deviation = ewma(e.deviation, math.Abs(x-e.mean), e.alpha)

	return e.mean, e.deviation, nil
}

func (e *DeviationEstimator) State() models.EstimatorState {
	state := models.EstimatorState{Deviation: e.deviation, SampleCount: e.count}
	if e.count > 0 {
		mean := e.mean
		state.Mean = &mean
	}
	return state
}

func ewma(prev, x, alpha float64) float64 {
	return alpha*x + (1-alpha)*prev
}
