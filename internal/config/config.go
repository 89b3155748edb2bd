package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DetectorZScore    = "zscore"
	DetectorDeviation = "deviation"

	MetricsFile = "metrics.csv"
	EventsFile  = "events.csv"
	ReportFile  = "pc_rca_report.md"
)

// Config is built once at startup and passed by value into every component.
type Config struct {
	Interval        time.Duration `yaml:"interval"`
	Alpha           float64       `yaml:"alpha"`
	Epsilon         float64       `yaml:"epsilon"`
	WarmupN         int           `yaml:"warmup_n"`
	ZThreshold      float64       `yaml:"z_threshold"`
	DeviationK      float64       `yaml:"deviation_k"`
	TopN            int           `yaml:"top_n"`
	Detector        string        `yaml:"detector"`
	LogDir          string        `yaml:"log_dir"`
	ReportDir       string        `yaml:"report_dir"`
	ReportWindow    time.Duration `yaml:"report_window"`
	DashboardWindow time.Duration `yaml:"dashboard_window"`
	RedisAddr       string        `yaml:"redis_addr"`
	StatusAddr      string        `yaml:"status_addr"`
	DashboardAddr   string        `yaml:"dashboard_addr"`
}

func Default() Config {
	return Config{
		Interval:        2 * time.Second,
		Alpha:           0.2,
		Epsilon:         1e-6,
		WarmupN:         10,
		ZThreshold:      2.0,
		DeviationK:      3.0,
		TopN:            3,
		Detector:        DetectorZScore,
		LogDir:          "logs",
		ReportDir:       "reports",
		ReportWindow:    30 * time.Second,
		DashboardWindow: 60 * time.Second,
		DashboardAddr:   "127.0.0.1:8501",
	}
}

// Load overlays the YAML file at path on top of Default. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		errs = append(errs, fmt.Errorf("alpha must be in (0,1], got %v", c.Alpha))
	}
	if c.Epsilon <= 0 {
		errs = append(errs, fmt.Errorf("epsilon must be positive, got %v", c.Epsilon))
	}
	if c.WarmupN < 0 {
		errs = append(errs, fmt.Errorf("warmup_n must not be negative, got %d", c.WarmupN))
	}
	if c.TopN <= 0 {
		errs = append(errs, fmt.Errorf("top_n must be positive, got %d", c.TopN))
	}
	if c.ReportWindow <= 0 || c.DashboardWindow <= 0 {
		errs = append(errs, errors.New("correlation windows must be positive"))
	}
	switch c.Detector {
	case DetectorZScore, DetectorDeviation:
	default:
		errs = append(errs, fmt.Errorf("unknown detector %q", c.Detector))
	}
	if c.LogDir == "" {
		errs = append(errs, errors.New("log_dir must not be empty"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c Config) MetricsPath() string {
	return filepath.Join(c.LogDir, MetricsFile)
}

func (c Config) EventsPath() string {
	return filepath.Join(c.LogDir, EventsFile)
}

func (c Config) ReportPath() string {
	return filepath.Join(c.ReportDir, ReportFile)
}
