package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TimeLayout is the second-granularity timestamp layout of both stores.
const TimeLayout = "2006-01-02 15:04:05"

var (
	// ErrInputMissing is returned when a store file does not exist at read time.
	ErrInputMissing = errors.New("input missing")
	// ErrPersistence is returned when a record could not be appended.
	ErrPersistence = errors.New("persistence failure")
)

var (
	MetricsHeader = []string{"timestamp", "cpu_pct", "mem_pct"}
	EventsHeader  = []string{
		"timestamp", "event_type",
		"cpu_pct", "cpu_ewma", "cpu_std", "z_score", "z_threshold",
		"top_processes",
	}
)

// appender writes whole CSV records to an append-only file. Each record is
// encoded first and written with a single write, then synced.
type appender struct {
	path string
	f    *os.File
	mu   sync.Mutex
}

func openAppender(path string, header []string) (*appender, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create %s: %v", ErrPersistence, filepath.Dir(path), err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrPersistence, path, err)
	}

	a := &appender{path: path, f: f}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: failed to stat %s: %v", ErrPersistence, path, err)
	}
	if info.Size() == 0 {
		if err := a.append(header); err != nil {
			f.Close()
			return nil, err
		}
		return a, nil
	}
	if err := checkHeader(path, header); err != nil {
		f.Close()
		return nil, err
	}
	return a, nil
}

// checkHeader refuses to append to a file written with a different layout;
// rows would otherwise be read back under the wrong column names.
func checkHeader(path string, header []string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", ErrPersistence, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	existing, err := r.Read()
	if err != nil {
		return fmt.Errorf("%w: failed to read header of %s: %v", ErrPersistence, path, err)
	}
	if !slices.Equal(existing, header) {
		return fmt.Errorf("%w: %s has header %q, expected %q; move it aside to start a new log",
			ErrPersistence, path, strings.Join(existing, ","), strings.Join(header, ","))
	}
	return nil
}

func (a *appender) append(record []string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("%w: failed to encode record for %s: %v", ErrPersistence, a.path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: failed to encode record for %s: %v", ErrPersistence, a.path, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: failed to write %s: %v", ErrPersistence, a.path, err)
	}
	if err := a.f.Sync(); err != nil {
		return fmt.Errorf("%w: failed to sync %s: %v", ErrPersistence, a.path, err)
	}
	return nil
}

func (a *appender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.f.Close()
}

// table is a parsed CSV file addressed by header name.
type table struct {
	path    string
	columns map[string]int
	rows    [][]string
}

func readTable(path string, required ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputMissing, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	t := &table{path: path, columns: make(map[string]int)}
	if len(records) == 0 {
		return t, nil
	}
	for i, name := range records[0] {
		t.columns[name] = i
	}
	for _, name := range required {
		if _, ok := t.columns[name]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, name)
		}
	}
	t.rows = records[1:]
	return t, nil
}

func (t *table) get(row []string, column string) (string, bool) {
	i, ok := t.columns[column]
	if !ok || i >= len(row) {
		return "", false
	}
	return row[i], true
}

func (t *table) float(row []string, column string) (float64, error) {
	s, ok := t.get(row, column)
	if !ok || s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatTime(ts time.Time) string {
	return ts.Local().Format(TimeLayout)
}

// ParseTime reads a store timestamp in the local zone. RFC 3339 values are
// accepted too.
func ParseTime(s string) (time.Time, error) {
	if ts, err := time.ParseInLocation(TimeLayout, s, time.Local); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatRounded(v float64) string {
	return formatFloat(math.Round(v*1e4) / 1e4)
}
