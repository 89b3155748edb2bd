package correlate

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"pc-rca/internal/models"
)

// Before returns the samples in [at-window, at). The input order is kept and
// need not be sorted.
func Before(series []models.MetricSample, at time.Time, window time.Duration) []models.MetricSample {
	start := at.Add(-window)
	var out []models.MetricSample
	for _, m := range series {
		if !m.Timestamp.Before(start) && m.Timestamp.Before(at) {
			out = append(out, m)
		}
	}
	return out
}

// After returns the samples in (at, at+window].
func After(series []models.MetricSample, at time.Time, window time.Duration) []models.MetricSample {
	end := at.Add(window)
	var out []models.MetricSample
	for _, m := range series {
		if m.Timestamp.After(at) && !m.Timestamp.After(end) {
			out = append(out, m)
		}
	}
	return out
}

// MeanCPU returns the mean CPU of samples, or nil when there are none.
func MeanCPU(samples []models.MetricSample) *float64 {
	if len(samples) == 0 {
		return nil
	}
	values := make([]float64, len(samples))
	for i, m := range samples {
		values[i] = m.CPUPct
	}
	mean := stat.Mean(values, nil)
	return &mean
}

// Correlate averages CPU over the window before and after ev. A sample at the
// exact event instant belongs to neither side.
func Correlate(ev models.AnomalyEvent, series []models.MetricSample, window time.Duration) models.CorrelationRecord {
	return models.CorrelationRecord{
		Event:        ev,
		CPUBeforeAvg: MeanCPU(Before(series, ev.Timestamp, window)),
		CPUAfterAvg:  MeanCPU(After(series, ev.Timestamp, window)),
	}
}

// CorrelateAll correlates every event against series in parallel. Records
// are returned in event order.
func CorrelateAll(ctx context.Context, events []models.AnomalyEvent, series []models.MetricSample, window time.Duration) ([]models.CorrelationRecord, error) {
	records := make([]models.CorrelationRecord, len(events))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range events {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records[i] = Correlate(events[i], series, window)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
