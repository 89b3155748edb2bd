package store

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"pc-rca/internal/models"
)

type MetricWriter struct {
	*appender
}

// OpenMetricWriter opens the metric store at path, creating the directory and
// the header when they are absent.
func OpenMetricWriter(path string) (*MetricWriter, error) {
	a, err := openAppender(path, MetricsHeader)
	if err != nil {
		return nil, err
	}
	return &MetricWriter{appender: a}, nil
}

func (w *MetricWriter) Append(m models.MetricSample) error {
	return w.append([]string{
		formatTime(m.Timestamp),
		formatFloat(m.CPUPct),
		formatFloat(m.MemPct),
	})
}

// ReadMetrics loads the metric series ordered by timestamp. Rows that cannot
// be parsed, such as a record still being written, are skipped.
func ReadMetrics(path string) ([]models.MetricSample, error) {
	t, err := readTable(path, "timestamp", "cpu_pct")
	if err != nil {
		return nil, err
	}

	series := make([]models.MetricSample, 0, len(t.rows))
	for i, row := range t.rows {
		m, err := parseMetric(t, row)
		if err != nil {
			log.WithFields(log.Fields{"path": path, "row": i + 2}).Warnf("skipping metric row: %v", err)
			continue
		}
		series = append(series, m)
	}

	sort.SliceStable(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	return series, nil
}

func parseMetric(t *table, row []string) (models.MetricSample, error) {
	raw, _ := t.get(row, "timestamp")
	ts, err := ParseTime(raw)
	if err != nil {
		return models.MetricSample{}, fmt.Errorf("bad timestamp %q: %w", raw, err)
	}
	cpu, err := t.float(row, "cpu_pct")
	if err != nil {
		return models.MetricSample{}, fmt.Errorf("bad cpu_pct: %w", err)
	}
	mem, err := t.float(row, "mem_pct")
	if err != nil {
		return models.MetricSample{}, fmt.Errorf("bad mem_pct: %w", err)
	}
	return models.MetricSample{Timestamp: ts, CPUPct: cpu, MemPct: mem}, nil
}
