package report

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"pc-rca/internal/config"
	"pc-rca/internal/correlate"
	"pc-rca/internal/models"
	"pc-rca/internal/store"
)

// Placeholder stands in for values that do not exist, such as the average
// of an empty window.
const Placeholder = "-"

// Generate reads both stores, correlates every event and writes the Markdown
// report. It returns the path of the written report.
func Generate(ctx context.Context, cfg config.Config) (string, error) {
	series, err := store.ReadMetrics(cfg.MetricsPath())
	if err != nil {
		return "", err
	}
	events, err := store.ReadEvents(cfg.EventsPath())
	if err != nil {
		return "", err
	}

	records, err := correlate.CorrelateAll(ctx, events, series, cfg.ReportWindow)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfg.ReportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	path := cfg.ReportPath()
	if err := os.WriteFile(path, []byte(Build(series, records, cfg.ReportWindow)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}

	log.WithFields(log.Fields{
		"metrics": len(series),
		"events":  len(events),
		"path":    path,
	}).Info("report saved")
	return path, nil
}

// Build renders the report for an already correlated event list.
func Build(series []models.MetricSample, records []models.CorrelationRecord, window time.Duration) string {
	secs := int(window.Seconds())

	var b strings.Builder
	b.WriteString("# PC RCA Report\n\n")
	fmt.Fprintf(&b, "- metrics rows: %d\n", len(series))
	fmt.Fprintf(&b, "- events rows: %d\n", len(records))
	fmt.Fprintf(&b, "- metrics time range: %s\n", timeRange(series))
	fmt.Fprintf(&b, "- window: ±%ds\n", secs)
	if types := eventTypes(records); len(types) > 0 {
		fmt.Fprintf(&b, "- event types: %s\n", strings.Join(types, ", "))
	}
	if len(series) > 0 {
		mean, p95 := summary(series)
		fmt.Fprintf(&b, "- cpu mean: %s, cpu p95: %s\n", Number(mean), Number(p95))
	}
	b.WriteString("\n")

	if len(records) == 0 {
		b.WriteString("No events recorded (no CPU anomaly detected).\n")
		return b.String()
	}

	b.WriteString("## Events\n\n")
	writeEventTable(&b, records, secs)

	b.WriteString("\n## Reading guide\n\n")
	b.WriteString("- **z** above **z_th**: a statistically rare CPU rise compared to the recent baseline\n")
	b.WriteString("- low **cpu_before** with a high **cpu** at the event: the spike started at the event\n")
	b.WriteString("- high **cpu_after**: sustained load rather than a one-off spike\n")
	b.WriteString("- processes with high CPU in **top_processes** are the root cause candidates\n")
	b.WriteString("- " + Placeholder + " means the window held no samples\n")
	return b.String()
}

func writeEventTable(w io.Writer, records []models.CorrelationRecord, secs int) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{
		"#", "timestamp", "cpu", "ewma", "std", "z", "z_th",
		fmt.Sprintf("cpu_before(%ds avg)", secs),
		fmt.Sprintf("cpu_after(%ds avg)", secs),
		"top_processes",
	})
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_LEFT,
	})

	for i, rec := range records {
		ev := rec.Event
		table.Append([]string{
			strconv.Itoa(i + 1),
			ev.Timestamp.Format(store.TimeLayout),
			Number(ev.CPUPct),
			Number(ev.CPUEWMA),
			Number(ev.CPUStd),
			Number(ev.ZScore),
			Number(ev.ZThreshold),
			Optional(rec.CPUBeforeAvg),
			Optional(rec.CPUAfterAvg),
			escapeCell(ev.TopProcessesText()),
		})
	}
	table.Render()
}

// eventTypes lists the distinct event types in first-seen order.
func eventTypes(records []models.CorrelationRecord) []string {
	var types []string
	seen := make(map[models.EventType]bool)
	for _, rec := range records {
		t := rec.Event.EventType
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, string(t))
	}
	return types
}

// Number formats v with two decimals. NaN renders as the placeholder.
func Number(v float64) string {
	if math.IsNaN(v) {
		return Placeholder
	}
	return fmt.Sprintf("%.2f", v)
}

func Optional(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return Number(*v)
}

func timeRange(series []models.MetricSample) string {
	if len(series) == 0 {
		return Placeholder
	}
	first, last := series[0].Timestamp, series[0].Timestamp
	for _, m := range series[1:] {
		if m.Timestamp.Before(first) {
			first = m.Timestamp
		}
		if m.Timestamp.After(last) {
			last = m.Timestamp
		}
	}
	return first.Format(store.TimeLayout) + " ~ " + last.Format(store.TimeLayout)
}

func summary(series []models.MetricSample) (mean, p95 float64) {
	values := make([]float64, len(series))
	for i, m := range series {
		values[i] = m.CPUPct
	}
	sort.Float64s(values)
	return stat.Mean(values, nil), stat.Quantile(0.95, stat.Empirical, values, nil)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
