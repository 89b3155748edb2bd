package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pc-rca/internal/models"
)

func TestTracker_Record(t *testing.T) {
	tracker := NewTracker("zscore", 10, 2)
	now := time.Now()

	tracker.Record(models.MetricSample{Timestamp: now, CPUPct: 10, MemPct: 40},
		Observation{Mean: 10, Spread: 0.001}, nil)
	ev := &models.AnomalyEvent{Timestamp: now.Add(time.Second), CPUPct: 90}
	tracker.Record(models.MetricSample{Timestamp: now.Add(time.Second), CPUPct: 90, MemPct: 41},
		Observation{Mean: 26, Spread: 30, Decision: Decision{ZScore: 2.1, Ready: true, IsAnomaly: true}}, ev)

	stats := tracker.Stats()
	assert.Equal(t, int64(2), stats.TotalMetrics)
	assert.Equal(t, int64(1), stats.TotalAnomalies)
	assert.Equal(t, 0.5, stats.AnomalyRate)
	assert.Equal(t, 90.0, stats.CurrentCPU)
	assert.Equal(t, 41.0, stats.CurrentMem)
	assert.Equal(t, 2.1, stats.ZScore)
	assert.True(t, stats.Ready)
	assert.Equal(t, ev.Timestamp, stats.LastAnomalyTime)
	assert.Equal(t, "zscore", stats.Detector)
}

func TestTracker_RecentAnomalies(t *testing.T) {
	tracker := NewTracker("zscore", 10, 2)
	base := time.Now()

	for i := 0; i < maxRecentAnomalies+5; i++ {
		ev := &models.AnomalyEvent{Timestamp: base.Add(time.Duration(i) * time.Second), CPUPct: float64(i)}
		tracker.Record(models.MetricSample{Timestamp: ev.Timestamp}, Observation{}, ev)
	}

	recent := tracker.RecentAnomalies(3)
	assert.Len(t, recent, 3)
	assert.Equal(t, float64(maxRecentAnomalies+2), recent[0].CPUPct)
	assert.Equal(t, float64(maxRecentAnomalies+4), recent[2].CPUPct)

	assert.Len(t, tracker.RecentAnomalies(1000), maxRecentAnomalies)
	assert.Empty(t, NewTracker("zscore", 10, 2).RecentAnomalies(10))
}
