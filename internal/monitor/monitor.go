package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"pc-rca/internal/analytics"
	"pc-rca/internal/config"
	"pc-rca/internal/models"
	"pc-rca/internal/sysstat"
)

type State string

const (
	StateWarmingUp State = "WARMING_UP"
	StateActive    State = "ACTIVE"
)

type MetricStore interface {
	Append(models.MetricSample) error
}

type EventStore interface {
	Append(models.AnomalyEvent) error
}

// EventSink receives anomalies after they are persisted. Sink failures are
// logged and never stop the loop.
type EventSink interface {
	PublishEvent(ctx context.Context, ev models.AnomalyEvent) error
}

// Snapshotter is the process ranking used for attribution.
type Snapshotter interface {
	Touch(ctx context.Context) error
	Snapshot(ctx context.Context, topN int) ([]models.ProcessObservation, error)
}

type Option func(*Monitor)

func WithSink(sink EventSink) Option {
	return func(m *Monitor) {
		m.sinks = append(m.sinks, sink)
	}
}

func WithTracker(t *analytics.Tracker) Option {
	return func(m *Monitor) {
		m.tracker = t
	}
}

// WithClock replaces the wall clock and the interval sleep.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(m *Monitor) {
		m.now = now
		m.sleep = sleep
	}
}

// Monitor samples the host at a fixed interval, feeds CPU into the detector
// and records an event with the top processes for every anomaly. It is the
// single writer of both stores.
type Monitor struct {
	cfg      config.Config
	system   sysstat.Provider
	procs    Snapshotter
	detector *analytics.Detector
	metrics  MetricStore
	events   EventStore
	tracker  *analytics.Tracker
	sinks    []EventSink

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	last  time.Time
}

func New(cfg config.Config, system sysstat.Provider, procs Snapshotter, metrics MetricStore, events EventStore, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	detector, err := analytics.NewDetector(cfg)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		cfg:      cfg,
		system:   system,
		procs:    procs,
		detector: detector,
		metrics:  metrics,
		events:   events,
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tracker == nil {
		m.tracker = analytics.NewTracker(detector.Name, cfg.WarmupN, detector.Threshold)
	}
	return m, nil
}

func (m *Monitor) State() State {
	if m.detector.Estimator.State().SampleCount < m.cfg.WarmupN {
		return StateWarmingUp
	}
	return StateActive
}

func (m *Monitor) Tracker() *analytics.Tracker {
	return m.tracker
}

// Run samples until ctx is cancelled or a record cannot be persisted.
// Cancellation takes effect between records, so a stop never leaves half an
// iteration in the stores.
func (m *Monitor) Run(ctx context.Context) error {
	log.WithFields(log.Fields{
		"interval": m.cfg.Interval,
		"detector": m.detector.Name,
		"warmup":   m.cfg.WarmupN,
	}).Info("monitor started")

	m.warmUp(ctx)

	for {
		if ctx.Err() != nil {
			log.Info("monitor stopped")
			return nil
		}

		err := m.Step(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			log.Info("monitor stopped")
			return nil
		case errors.Is(err, errPersist):
			persistenceFailures.Inc()
			return err
		default:
			sampleErrors.Inc()
			log.Warnf("skipping sample: %v", err)
		}
	}
}

// cpu percentages are relative to the previous call, so prime both the host
// and every process once before the first interval.
func (m *Monitor) warmUp(ctx context.Context) {
	if _, err := m.system.CPUPercent(ctx); err != nil {
		log.Warnf("failed to prime host cpu counter: %v", err)
	}
	if err := m.procs.Touch(ctx); err != nil {
		log.Warnf("failed to prime process cpu counters: %v", err)
	}
}

var errPersist = errors.New("failed to persist record")

// Step runs one iteration: touch processes, sleep, read the host, record the
// sample, evaluate it, record an event on anomaly, sleep again. The two
// sleeps keep the per-process accounting window aligned with the host one.
func (m *Monitor) Step(ctx context.Context) error {
	if err := m.procs.Touch(ctx); err != nil {
		log.Warnf("failed to touch processes: %v", err)
	}
	if err := m.sleep(ctx, m.cfg.Interval); err != nil {
		return err
	}

	sample, err := m.read(ctx)
	if err != nil {
		return err
	}

	if err := m.metrics.Append(sample); err != nil {
		return fmt.Errorf("%w: %w", errPersist, err)
	}
	samplesRecorded.Inc()

	obs, err := m.detector.Observe(sample.CPUPct)
	if err != nil {
		return err
	}
	m.observe(sample, obs)

	var ev *models.AnomalyEvent
	if obs.Decision.IsAnomaly {
		ev, err = m.recordEvent(ctx, sample, obs)
		if err != nil {
			return err
		}
	}
	m.tracker.Record(sample, obs, ev)

	return m.sleep(ctx, m.cfg.Interval)
}

func (m *Monitor) read(ctx context.Context) (models.MetricSample, error) {
	cpu, err := m.system.CPUPercent(ctx)
	if err != nil {
		return models.MetricSample{}, err
	}
	mem, err := m.system.MemoryPercent(ctx)
	if err != nil {
		return models.MetricSample{}, err
	}
	if !finite(cpu) || !finite(mem) {
		return models.MetricSample{}, fmt.Errorf("%w: cpu=%v mem=%v", analytics.ErrNonFinite, cpu, mem)
	}

	ts := m.now()
	if ts.Before(m.last) {
		ts = m.last
	}
	m.last = ts

	return models.MetricSample{Timestamp: ts, CPUPct: cpu, MemPct: mem}, nil
}

func (m *Monitor) observe(sample models.MetricSample, obs analytics.Observation) {
	cpuPercent.Set(sample.CPUPct)
	memPercent.Set(sample.MemPct)
	cpuMean.Set(obs.Mean)
	cpuSpread.Set(obs.Spread)
	cpuZScore.Set(obs.Decision.ZScore)

	log.WithFields(log.Fields{
		"cpu":   sample.CPUPct,
		"mem":   sample.MemPct,
		"ewma":  round2(obs.Mean),
		"std":   round2(obs.Spread),
		"z":     round2(obs.Decision.ZScore),
		"limit": round2(obs.Decision.Limit),
		"state": m.State(),
	}).Info("sample")
}

func (m *Monitor) recordEvent(ctx context.Context, sample models.MetricSample, obs analytics.Observation) (*models.AnomalyEvent, error) {
	top, err := m.procs.Snapshot(ctx, m.cfg.TopN)
	if err != nil {
		log.Warnf("failed to snapshot processes, recording event without candidates: %v", err)
	}

	ev := models.AnomalyEvent{
		Timestamp:    sample.Timestamp,
		EventType:    m.detector.EventType,
		CPUPct:       sample.CPUPct,
		CPUEWMA:      obs.Mean,
		CPUStd:       obs.Spread,
		ZScore:       obs.Decision.ZScore,
		ZThreshold:   obs.Decision.Threshold,
		TopProcesses: top,
	}
	if err := m.events.Append(ev); err != nil {
		return nil, fmt.Errorf("%w: %w", errPersist, err)
	}
	anomaliesDetected.WithLabelValues(string(ev.EventType)).Inc()

	log.WithFields(log.Fields{
		"cpu":           ev.CPUPct,
		"z":             round2(ev.ZScore),
		"top_processes": ev.TopProcessesText(),
	}).Warn("CPU anomaly detected")

	for _, sink := range m.sinks {
		if err := sink.PublishEvent(ctx, ev); err != nil {
			log.Warnf("failed to publish event: %v", err)
		}
	}
	return &ev, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
