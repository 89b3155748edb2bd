package analytics

import (
	"sync"

	"pc-rca/internal/models"
)

const maxRecentAnomalies = 100

// Tracker keeps running counters and the most recent anomalies for readers
// that run alongside the sampling loop.
type Tracker struct {
	anomalies []models.AnomalyEvent
	stats     models.AnalyticsStats
	mu        sync.RWMutex
}

func NewTracker(detector string, warmupN int, threshold float64) *Tracker {
	return &Tracker{
		anomalies: make([]models.AnomalyEvent, 0, maxRecentAnomalies),
		stats: models.AnalyticsStats{
			WarmupN:   warmupN,
			Threshold: threshold,
			Detector:  detector,
		},
	}
}

// Record updates the counters with one evaluated sample. ev is nil for
// normal samples.
func (t *Tracker) Record(sample models.MetricSample, obs Observation, ev *models.AnomalyEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.CurrentCPU = sample.CPUPct
	t.stats.CurrentMem = sample.MemPct
	t.stats.Mean = obs.Mean
	t.stats.StdDev = obs.Spread
	t.stats.ZScore = obs.Decision.ZScore
	t.stats.Ready = obs.Decision.Ready
	t.stats.TotalMetrics++

	if ev != nil {
		t.stats.TotalAnomalies++
		t.stats.LastAnomalyTime = ev.Timestamp

		t.anomalies = append(t.anomalies, *ev)
		if len(t.anomalies) > maxRecentAnomalies {
			t.anomalies = t.anomalies[1:]
		}
	}

	t.stats.AnomalyRate = float64(t.stats.TotalAnomalies) / float64(t.stats.TotalMetrics)
}

func (t *Tracker) Stats() models.AnalyticsStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// RecentAnomalies returns up to limit of the latest anomalies, oldest first.
func (t *Tracker) RecentAnomalies(limit int) []models.AnomalyEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit > len(t.anomalies) || limit < 0 {
		limit = len(t.anomalies)
	}

	out := make([]models.AnomalyEvent, limit)
	copy(out, t.anomalies[len(t.anomalies)-limit:])
	return out
}
