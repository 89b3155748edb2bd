package store

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"pc-rca/internal/models"
)

// columns written by older detector versions
var legacyEventColumns = map[string]string{
	"cpu_dev_ewma": "cpu_std",
}

type EventWriter struct {
	*appender
}

func OpenEventWriter(path string) (*EventWriter, error) {
	a, err := openAppender(path, EventsHeader)
	if err != nil {
		return nil, err
	}
	return &EventWriter{appender: a}, nil
}

func (w *EventWriter) Append(ev models.AnomalyEvent) error {
	return w.append([]string{
		formatTime(ev.Timestamp),
		string(ev.EventType),
		formatFloat(ev.CPUPct),
		formatRounded(ev.CPUEWMA),
		formatRounded(ev.CPUStd),
		formatRounded(ev.ZScore),
		formatFloat(ev.ZThreshold),
		ev.TopProcessesText(),
	})
}

// ReadEvents loads the event list in file order. Optional numeric columns
// that are missing read as NaN.
func ReadEvents(path string) ([]models.AnomalyEvent, error) {
	t, err := readTable(path, "timestamp", "cpu_pct")
	if err != nil {
		return nil, err
	}
	for legacy, current := range legacyEventColumns {
		if _, ok := t.columns[current]; ok {
			continue
		}
		if i, ok := t.columns[legacy]; ok {
			t.columns[current] = i
		}
	}

	events := make([]models.AnomalyEvent, 0, len(t.rows))
	for i, row := range t.rows {
		ev, err := parseEvent(t, row)
		if err != nil {
			log.WithFields(log.Fields{"path": path, "row": i + 2}).Warnf("skipping event row: %v", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseEvent(t *table, row []string) (models.AnomalyEvent, error) {
	raw, _ := t.get(row, "timestamp")
	ts, err := ParseTime(raw)
	if err != nil {
		return models.AnomalyEvent{}, fmt.Errorf("bad timestamp %q: %w", raw, err)
	}

	ev := models.AnomalyEvent{Timestamp: ts}
	eventType, _ := t.get(row, "event_type")
	ev.EventType = models.EventType(eventType)

	fields := []struct {
		column string
		dst    *float64
	}{
		{"cpu_pct", &ev.CPUPct},
		{"cpu_ewma", &ev.CPUEWMA},
		{"cpu_std", &ev.CPUStd},
		{"z_score", &ev.ZScore},
		{"z_threshold", &ev.ZThreshold},
	}
	for _, field := range fields {
		v, err := t.float(row, field.column)
		if err != nil {
			return models.AnomalyEvent{}, fmt.Errorf("bad %s: %w", field.column, err)
		}
		*field.dst = v
	}

	top, _ := t.get(row, "top_processes")
	ev.TopProcesses = models.ParseTopProcesses(top)
	return ev, nil
}
