package store

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pc-rca/internal/models"
)

func TestMetricWriter_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "metrics.csv")

	w, err := OpenMetricWriter(path)
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	require.NoError(t, w.Append(models.MetricSample{Timestamp: base, CPUPct: 12.5, MemPct: 40}))
	require.NoError(t, w.Append(models.MetricSample{Timestamp: base.Add(2 * time.Second), CPUPct: 90, MemPct: 41.25}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"timestamp,cpu_pct,mem_pct\n"+
			"2026-03-01 10:00:00,12.5,40\n"+
			"2026-03-01 10:00:02,90,41.25\n",
		string(data))

	series, err := ReadMetrics(path)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.True(t, base.Equal(series[0].Timestamp))
	assert.Equal(t, 12.5, series[0].CPUPct)
	assert.Equal(t, 41.25, series[1].MemPct)
}

func TestMetricWriter_ReopenKeepsSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)

	for i := 0; i < 2; i++ {
		w, err := OpenMetricWriter(path)
		require.NoError(t, err)
		require.NoError(t, w.Append(models.MetricSample{Timestamp: ts, CPUPct: 1, MemPct: 2}))
		require.NoError(t, w.Close())
	}

	series, err := ReadMetrics(path)
	require.NoError(t, err)
	assert.Len(t, series, 2)
}

func TestMetricWriter_AppendAfterCloseIsPersistenceError(t *testing.T) {
	w, err := OpenMetricWriter(filepath.Join(t.TempDir(), "metrics.csv"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = w.Append(models.MetricSample{Timestamp: time.Now()})
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestReadMetrics_Missing(t *testing.T) {
	_, err := ReadMetrics(filepath.Join(t.TempDir(), "metrics.csv"))
	assert.ErrorIs(t, err, ErrInputMissing)
}

func TestReadMetrics_SkipsPartialRowAndSorts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"timestamp,cpu_pct,mem_pct\n"+
			"2026-03-01 10:00:04,30,1\n"+
			"2026-03-01 10:00:02,20,1\r\n"+
			"2026-03-01 10:0"), 0o644))

	series, err := ReadMetrics(path)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 20.0, series[0].CPUPct)
	assert.Equal(t, 30.0, series[1].CPUPct)
}

func TestEventWriter_AppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	w, err := OpenEventWriter(path)
	require.NoError(t, err)
	defer w.Close()

	ts := time.Date(2026, 3, 1, 10, 0, 20, 0, time.Local)
	ev := models.AnomalyEvent{
		Timestamp:  ts,
		EventType:  models.EventCPUAnomalyZ,
		CPUPct:     95,
		CPUEWMA:    59.000000001,
		CPUStd:     16.09968944,
		ZScore:     2.2360679,
		ZThreshold: 2,
		TopProcesses: []models.ProcessObservation{
			{PID: 42, Name: "stress, ng", CPUPct: 88.04},
			{PID: 7, Name: "chrome", CPUPct: 3.1},
		},
	}
	require.NoError(t, w.Append(ev))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"timestamp,event_type,cpu_pct,cpu_ewma,cpu_std,z_score,z_threshold,top_processes\n"+
			"2026-03-01 10:00:20,CPU_ANOMALY_Z,95,59,16.0997,2.2361,2,\"stress, ng(42) cpu=88.0; chrome(7) cpu=3.1\"\n",
		string(data))

	events, err := ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	got := events[0]
	assert.True(t, ts.Equal(got.Timestamp))
	assert.Equal(t, models.EventCPUAnomalyZ, got.EventType)
	assert.Equal(t, 95.0, got.CPUPct)
	assert.Equal(t, 16.0997, got.CPUStd)
	assert.Equal(t, 2.0, got.ZThreshold)
	require.Len(t, got.TopProcesses, 2)
	assert.Equal(t, "stress, ng", got.TopProcesses[0].Name)
	assert.Equal(t, int32(42), got.TopProcesses[0].PID)
}

func TestReadEvents_LegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"timestamp,event_type,cpu_pct,cpu_ewma,cpu_dev_ewma,threshold,top_processes\n"+
			"2026-03-01 10:00:20,CPU_ANOMALY,80,30,5,45,python(9) cpu=70.0\n"), 0o644))

	events, err := ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventCPUAnomaly, events[0].EventType)
	assert.Equal(t, 5.0, events[0].CPUStd)
	assert.True(t, math.IsNaN(events[0].ZScore))
	assert.True(t, math.IsNaN(events[0].ZThreshold))
}

func TestEventWriter_RefusesLegacyHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	legacy := "timestamp,event_type,cpu_pct,cpu_ewma,cpu_dev_ewma,threshold,top_processes\n" +
		"2026-03-01 10:00:20,CPU_ANOMALY,80,30,5,45,python(9) cpu=70.0\n"
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	_, err := OpenEventWriter(path)
	require.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "cpu_dev_ewma")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, legacy, string(data))

	events, err := ReadEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "python(9) cpu=70.0", events[0].TopProcessesText())
}

func TestMetricWriter_RefusesForeignHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,cpu_pct\n2026-03-01 10:00:00,5\n"), 0o644))

	_, err := OpenMetricWriter(path)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestReadEvents_Missing(t *testing.T) {
	_, err := ReadEvents(filepath.Join(t.TempDir(), "events.csv"))
	assert.ErrorIs(t, err, ErrInputMissing)
}

func TestReadEvents_HeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	w, err := OpenEventWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	events, err := ReadEvents(path)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReadMetrics_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	require.NoError(t, os.WriteFile(path, []byte("ts,cpu\n"), 0o644))

	_, err := ReadMetrics(path)
	assert.Error(t, err)
}
