package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pc-rca/internal/config"
	"pc-rca/internal/models"
	"pc-rca/internal/store"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.LogDir = filepath.Join(t.TempDir(), "logs")
	return cfg
}

func seed(t *testing.T, cfg config.Config) {
	metrics, err := store.OpenMetricWriter(cfg.MetricsPath())
	require.NoError(t, err)
	// -70s .. +70s around the event every 10s, one sample on the event instant
	for i := -7; i <= 7; i++ {
		cpu := 10.0
		if i > 0 {
			cpu = 50
		}
		if i == 0 {
			cpu = 95
		}
		require.NoError(t, metrics.Append(models.MetricSample{
			Timestamp: t0.Add(time.Duration(i*10) * time.Second),
			CPUPct:    cpu,
			MemPct:    40,
		}))
	}
	require.NoError(t, metrics.Close())

	events, err := store.OpenEventWriter(cfg.EventsPath())
	require.NoError(t, err)
	require.NoError(t, events.Append(models.AnomalyEvent{
		Timestamp:    t0,
		EventType:    models.EventCPUAnomalyZ,
		CPUPct:       95,
		CPUEWMA:      20,
		CPUStd:       10,
		ZScore:       7.5,
		ZThreshold:   2,
		TopProcesses: []models.ProcessObservation{{PID: 7, Name: "stress", CPUPct: 90}},
	}))
	require.NoError(t, events.Close())
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestDashboard_Status(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg)

	rec := get(t, d.Handler(), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.MetricsPresent)
	assert.False(t, status.EventsPresent)
	assert.Nil(t, status.RangeStart)
	assert.Equal(t, 60, status.WindowSeconds)

	seed(t, cfg)
	rec = get(t, d.Handler(), "/api/status")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.MetricsPresent)
	assert.Equal(t, 15, status.MetricsRows)
	assert.Equal(t, 1, status.EventsRows)
	require.NotNil(t, status.RangeStart)
	assert.True(t, t0.Add(-70*time.Second).Equal(*status.RangeStart))
}

func TestDashboard_Metrics(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg)

	assert.Equal(t, http.StatusNotFound, get(t, d.Handler(), "/api/metrics").Code)

	seed(t, cfg)
	rec := get(t, d.Handler(), "/api/metrics?since="+t0.Add(50*time.Second).Format(time.RFC3339))
	require.Equal(t, http.StatusOK, rec.Code)
	var series []models.MetricSample
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.Len(t, series, 3)

	assert.Equal(t, http.StatusBadRequest, get(t, d.Handler(), "/api/metrics?since=yesterday").Code)
}

func TestDashboard_EventDetail(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg)
	d := New(cfg)

	rec := get(t, d.Handler(), "/api/events")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []EventView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "stress(7) cpu=90.0", events[0].TopProcesses)
	require.NotNil(t, events[0].ZScore)
	assert.Equal(t, 7.5, *events[0].ZScore)

	rec = get(t, d.Handler(), "/api/events/0")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail EventDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))

	// [-60s, 0) and (0, +60s]; the sample on the event instant is in neither
	assert.Len(t, detail.Before, 6)
	assert.Len(t, detail.After, 6)
	assert.Equal(t, 10.0, *detail.CPUBeforeAvg)
	assert.Equal(t, 50.0, *detail.CPUAfterAvg)

	assert.Equal(t, http.StatusNotFound, get(t, d.Handler(), "/api/events/3").Code)
}

func TestDashboard_EventViewNullsMissingColumns(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.LogDir, 0o755))
	require.NoError(t, os.WriteFile(cfg.EventsPath(), []byte(
		"timestamp,event_type,cpu_pct,top_processes\n2026-03-01 10:00:00,CPU_ANOMALY,80,\n"), 0o644))

	rec := get(t, New(cfg).Handler(), "/api/events")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []EventView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Nil(t, events[0].ZScore)
	assert.Equal(t, 80.0, *events[0].CPUPct)
}

func TestDashboard_Page(t *testing.T) {
	cfg := testConfig(t)
	d := New(cfg)

	rec := get(t, d.Handler(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No metrics yet")

	seed(t, cfg)
	rec = get(t, d.Handler(), "/?event=0")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "CPU / MEM trend")
	assert.Contains(t, body, "Event detail")
	assert.Contains(t, body, "10.00")
	assert.Contains(t, body, "50.00")

	assert.Equal(t, http.StatusNotFound, get(t, d.Handler(), "/?event=9").Code)
}

type fakeFeed struct {
	events []models.AnomalyEvent
	err    error
}

func (f *fakeFeed) RecentEvents(context.Context, int64) ([]models.AnomalyEvent, error) {
	return f.events, f.err
}

func TestDashboard_LiveEvents(t *testing.T) {
	cfg := testConfig(t)

	assert.Equal(t, http.StatusNotFound, get(t, New(cfg).Handler(), "/api/events/live").Code)

	feed := &fakeFeed{events: []models.AnomalyEvent{{Timestamp: t0, EventType: models.EventCPUAnomalyZ, CPUPct: 99}}}
	rec := get(t, New(cfg, WithLiveFeed(feed)).Handler(), "/api/events/live")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []EventView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, 99.0, *events[0].CPUPct)

	feed.err = errors.New("redis down")
	assert.Equal(t, http.StatusBadGateway, get(t, New(cfg, WithLiveFeed(feed)).Handler(), "/api/events/live").Code)
}
