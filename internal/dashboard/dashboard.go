package dashboard

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"pc-rca/internal/config"
	"pc-rca/internal/correlate"
	"pc-rca/internal/models"
	"pc-rca/internal/server"
	"pc-rca/internal/store"
)

const liveEventLimit = 50

// LiveFeed serves the most recent events straight from the running monitor.
type LiveFeed interface {
	RecentEvents(ctx context.Context, count int64) ([]models.AnomalyEvent, error)
}

type Option func(*Dashboard)

func WithLiveFeed(feed LiveFeed) Option {
	return func(d *Dashboard) {
		d.feed = feed
	}
}

// Dashboard renders the stores for inspection. Both stores are re-read on
// every request, so it follows a monitor that is still appending.
type Dashboard struct {
	cfg    config.Config
	router *mux.Router
	feed   LiveFeed
}

func New(cfg config.Config, opts ...Option) *Dashboard {
	d := &Dashboard{
		cfg:    cfg,
		router: mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.setupRoutes()
	return d
}

func (d *Dashboard) setupRoutes() {
	server.Instrument(d.router)
	d.router.HandleFunc("/", d.pageHandler).Methods(http.MethodGet)
	d.router.HandleFunc("/api/status", d.statusHandler).Methods(http.MethodGet)
	d.router.HandleFunc("/api/metrics", d.metricsHandler).Methods(http.MethodGet)
	d.router.HandleFunc("/api/events", d.eventsHandler).Methods(http.MethodGet)
	d.router.HandleFunc("/api/events/live", d.liveEventsHandler).Methods(http.MethodGet)
	d.router.HandleFunc("/api/events/{index:[0-9]+}", d.eventDetailHandler).Methods(http.MethodGet)
	d.router.Handle("/metrics/prometheus", promhttp.Handler())
}

func (d *Dashboard) Handler() http.Handler {
	return d.router
}

func (d *Dashboard) Run(ctx context.Context) error {
	return server.Serve(ctx, d.cfg.DashboardAddr, d.router)
}

type Status struct {
	MetricsPresent bool       `json:"metrics_present"`
	EventsPresent  bool       `json:"events_present"`
	MetricsRows    int        `json:"metrics_rows"`
	EventsRows     int        `json:"events_rows"`
	RangeStart     *time.Time `json:"range_start"`
	RangeEnd       *time.Time `json:"range_end"`
	WindowSeconds  int        `json:"window_seconds"`
}

type EventView struct {
	Index        int       `json:"index"`
	Timestamp    time.Time `json:"timestamp"`
	EventType    string    `json:"event_type"`
	CPUPct       *float64  `json:"cpu_pct"`
	CPUEWMA      *float64  `json:"cpu_ewma"`
	CPUStd       *float64  `json:"cpu_std"`
	ZScore       *float64  `json:"z_score"`
	ZThreshold   *float64  `json:"z_threshold"`
	TopProcesses string    `json:"top_processes"`
}

type EventDetail struct {
	Event         EventView             `json:"event"`
	WindowSeconds int                   `json:"window_seconds"`
	Before        []models.MetricSample `json:"before"`
	After         []models.MetricSample `json:"after"`
	CPUBeforeAvg  *float64              `json:"cpu_before_avg"`
	CPUAfterAvg   *float64              `json:"cpu_after_avg"`
}

// data is one consistent read of both stores. A missing store is nil.
type data struct {
	metrics []models.MetricSample
	events  []models.AnomalyEvent
}

func (d *Dashboard) load() (*data, error) {
	out := &data{}

	metrics, err := store.ReadMetrics(d.cfg.MetricsPath())
	switch {
	case err == nil:
		out.metrics = metrics
	case !errors.Is(err, store.ErrInputMissing):
		return nil, err
	}

	events, err := store.ReadEvents(d.cfg.EventsPath())
	switch {
	case err == nil:
		out.events = events
	case !errors.Is(err, store.ErrInputMissing):
		return nil, err
	}
	return out, nil
}

func (d *Dashboard) status(data *data) Status {
	s := Status{
		MetricsPresent: data.metrics != nil,
		EventsPresent:  data.events != nil,
		MetricsRows:    len(data.metrics),
		EventsRows:     len(data.events),
		WindowSeconds:  int(d.cfg.DashboardWindow.Seconds()),
	}
	if n := len(data.metrics); n > 0 {
		start, end := data.metrics[0].Timestamp, data.metrics[n-1].Timestamp
		s.RangeStart, s.RangeEnd = &start, &end
	}
	return s
}

func (d *Dashboard) detail(data *data, index int) EventDetail {
	ev := data.events[index]
	rec := correlate.Correlate(ev, data.metrics, d.cfg.DashboardWindow)
	return EventDetail{
		Event:         newEventView(index, ev),
		WindowSeconds: int(d.cfg.DashboardWindow.Seconds()),
		Before:        correlate.Before(data.metrics, ev.Timestamp, d.cfg.DashboardWindow),
		After:         correlate.After(data.metrics, ev.Timestamp, d.cfg.DashboardWindow),
		CPUBeforeAvg:  rec.CPUBeforeAvg,
		CPUAfterAvg:   rec.CPUAfterAvg,
	}
}

func (d *Dashboard) statusHandler(w http.ResponseWriter, r *http.Request) {
	data, err := d.load()
	if err != nil {
		loadFailed(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, d.status(data))
}

func (d *Dashboard) metricsHandler(w http.ResponseWriter, r *http.Request) {
	data, err := d.load()
	if err != nil {
		loadFailed(w, err)
		return
	}
	if data.metrics == nil {
		http.Error(w, "metrics store not found, start the monitor first", http.StatusNotFound)
		return
	}

	series := data.metrics
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid since: "+err.Error(), http.StatusBadRequest)
			return
		}
		series = filterSince(series, since)
	}
	server.WriteJSON(w, http.StatusOK, series)
}

func (d *Dashboard) eventsHandler(w http.ResponseWriter, r *http.Request) {
	data, err := d.load()
	if err != nil {
		loadFailed(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, newEventViews(data.events))
}

func (d *Dashboard) eventDetailHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "invalid event index", http.StatusBadRequest)
		return
	}

	data, err := d.load()
	if err != nil {
		loadFailed(w, err)
		return
	}
	if index >= len(data.events) {
		http.Error(w, "event not found", http.StatusNotFound)
		return
	}
	server.WriteJSON(w, http.StatusOK, d.detail(data, index))
}

func (d *Dashboard) liveEventsHandler(w http.ResponseWriter, r *http.Request) {
	if d.feed == nil {
		http.Error(w, "live feed not configured", http.StatusNotFound)
		return
	}
	events, err := d.feed.RecentEvents(r.Context(), liveEventLimit)
	if err != nil {
		log.Warnf("failed to read live events: %v", err)
		http.Error(w, "live feed unavailable", http.StatusBadGateway)
		return
	}
	server.WriteJSON(w, http.StatusOK, newEventViews(events))
}

func loadFailed(w http.ResponseWriter, err error) {
	log.Errorf("failed to load stores: %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func filterSince(series []models.MetricSample, since time.Time) []models.MetricSample {
	out := make([]models.MetricSample, 0, len(series))
	for _, m := range series {
		if !m.Timestamp.Before(since) {
			out = append(out, m)
		}
	}
	return out
}

func newEventViews(events []models.AnomalyEvent) []EventView {
	views := make([]EventView, len(events))
	for i, ev := range events {
		views[i] = newEventView(i, ev)
	}
	return views
}

func newEventView(index int, ev models.AnomalyEvent) EventView {
	return EventView{
		Index:        index,
		Timestamp:    ev.Timestamp,
		EventType:    string(ev.EventType),
		CPUPct:       nullable(ev.CPUPct),
		CPUEWMA:      nullable(ev.CPUEWMA),
		CPUStd:       nullable(ev.CPUStd),
		ZScore:       nullable(ev.ZScore),
		ZThreshold:   nullable(ev.ZThreshold),
		TopProcesses: ev.TopProcessesText(),
	}
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
