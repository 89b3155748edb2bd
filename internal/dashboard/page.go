package dashboard

import (
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"pc-rca/internal/models"
	"pc-rca/internal/report"
	"pc-rca/internal/store"
)

const (
	chartWidth  = 900
	chartHeight = 240
)

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"opt": report.Optional,
	"ts":  func(t time.Time) string { return t.Format(store.TimeLayout) },
	"tsp": func(t *time.Time) string { return t.Format(store.TimeLayout) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>PC RCA Dashboard</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: right; }
td.text { text-align: left; }
.warn { color: #a60; }
svg { border: 1px solid #ddd; background: #fafafa; }
</style>
</head>
<body>
<h1>PC RCA Dashboard</h1>
<p>CPU anomaly detection + root cause candidates (top processes)</p>

<h2>Status</h2>
<ul>
<li>metrics: {{if .Status.MetricsPresent}}{{.Status.MetricsRows}} rows{{else}}missing{{end}}</li>
<li>events: {{if .Status.EventsPresent}}{{.Status.EventsRows}} rows{{else}}missing{{end}}</li>
<li>window: ±{{.Status.WindowSeconds}}s</li>
{{if .Status.RangeStart}}<li>time range: {{tsp .Status.RangeStart}} ~ {{tsp .Status.RangeEnd}}</li>{{end}}
</ul>

{{if not .Status.MetricsRows}}
<p class="warn">No metrics yet. Run the monitor to start collecting samples.</p>
{{else}}
<h2>CPU / MEM trend</h2>
<svg width="{{.Width}}" height="{{.Height}}">
<polyline fill="none" stroke="#c33" points="{{.CPUPoints}}"/>
<polyline fill="none" stroke="#36c" points="{{.MemPoints}}"/>
</svg>
<p><span style="color:#c33">cpu_pct</span> / <span style="color:#36c">mem_pct</span></p>

<h2>Events</h2>
{{if not .Events}}
<p>No events recorded yet (no anomaly detected).</p>
{{else}}
<table>
<tr><th>#</th><th>timestamp</th><th>event_type</th><th>cpu</th><th>ewma</th><th>std</th><th>z</th><th>z_th</th><th>top_processes</th></tr>
{{range .Events}}
<tr>
<td><a href="/?event={{.Index}}">{{.Index}}</a></td><td>{{ts .Timestamp}}</td><td class="text">{{.EventType}}</td>
<td>{{opt .CPUPct}}</td><td>{{opt .CPUEWMA}}</td><td>{{opt .CPUStd}}</td><td>{{opt .ZScore}}</td><td>{{opt .ZThreshold}}</td>
<td class="text">{{.TopProcesses}}</td>
</tr>
{{end}}
</table>
{{end}}

{{with .Detail}}
<h2>Event detail (pre/post window)</h2>
<ul>
<li>timestamp: {{ts .Event.Timestamp}}</li>
<li>event_type: {{.Event.EventType}}</li>
<li>cpu_pct: {{opt .Event.CPUPct}}</li>
<li>z_score: {{opt .Event.ZScore}} (threshold {{opt .Event.ZThreshold}})</li>
<li>top_processes: {{.Event.TopProcesses}}</li>
<li>cpu before (±{{.WindowSeconds}}s avg): {{opt .CPUBeforeAvg}}, rows {{len .Before}}</li>
<li>cpu after (±{{.WindowSeconds}}s avg): {{opt .CPUAfterAvg}}, rows {{len .After}}</li>
</ul>
{{if and (not .Before) (not .After)}}
<p class="warn">No metrics around the selected event.</p>
{{else}}
<svg width="{{$.Width}}" height="{{$.Height}}">
<polyline fill="none" stroke="#c33" points="{{$.DetailPoints}}"/>
<line x1="{{$.EventX}}" y1="0" x2="{{$.EventX}}" y2="{{$.Height}}" stroke="#000" stroke-dasharray="4"/>
</svg>
{{end}}
{{end}}
{{end}}
</body>
</html>
`))

type pageData struct {
	Status       Status
	Events       []EventView
	Detail       *EventDetail
	Width        int
	Height       int
	CPUPoints    string
	MemPoints    string
	DetailPoints string
	EventX       string
}

func (d *Dashboard) pageHandler(w http.ResponseWriter, r *http.Request) {
	data, err := d.load()
	if err != nil {
		loadFailed(w, err)
		return
	}

	page := pageData{
		Status: d.status(data),
		Events: newEventViews(data.events),
		Width:  chartWidth,
		Height: chartHeight,
	}
	if len(data.metrics) > 0 {
		start, end := data.metrics[0].Timestamp, data.metrics[len(data.metrics)-1].Timestamp
		page.CPUPoints = points(data.metrics, start, end, cpuOf)
		page.MemPoints = points(data.metrics, start, end, memOf)
	}

	if raw := r.URL.Query().Get("event"); raw != "" {
		index, err := strconv.Atoi(raw)
		if err != nil || index < 0 || index >= len(data.events) {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}
		detail := d.detail(data, index)
		page.Detail = &detail

		at := data.events[index].Timestamp
		start, end := at.Add(-d.cfg.DashboardWindow), at.Add(d.cfg.DashboardWindow)
		window := append(append([]models.MetricSample{}, detail.Before...), detail.After...)
		page.DetailPoints = points(window, start, end, cpuOf)
		page.EventX = strconv.FormatFloat(xOf(at, start, end), 'f', 1, 64)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, page); err != nil {
		log.Errorf("failed to render dashboard: %v", err)
	}
}

func cpuOf(m models.MetricSample) float64 { return m.CPUPct }
func memOf(m models.MetricSample) float64 { return m.MemPct }

// points maps samples to SVG coordinates, time on x over [start, end] and
// percent on y over [0, 100].
func points(series []models.MetricSample, start, end time.Time, value func(models.MetricSample) float64) string {
	parts := make([]string, 0, len(series))
	for _, m := range series {
		v := value(m)
		if math.IsNaN(v) {
			continue
		}
		y := chartHeight - (v/100)*chartHeight
		parts = append(parts, fmt.Sprintf("%.1f,%.1f", xOf(m.Timestamp, start, end), y))
	}
	return strings.Join(parts, " ")
}

func xOf(t, start, end time.Time) float64 {
	span := end.Sub(start)
	if span <= 0 {
		return 0
	}
	return float64(t.Sub(start)) / float64(span) * chartWidth
}
