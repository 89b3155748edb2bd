package models

import (
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	// EventCPUAnomalyZ is emitted by the z-score detector.
	EventCPUAnomalyZ EventType = "CPU_ANOMALY_Z"
	// EventCPUAnomaly is emitted by the EWMA deviation-band detector.
	EventCPUAnomaly EventType = "CPU_ANOMALY"
)

type MetricSample struct {
	Timestamp time.Time `json:"timestamp"`
	CPUPct    float64   `json:"cpu_pct"`
	MemPct    float64   `json:"mem_pct"`
}

type ProcessObservation struct {
	PID    int32   `json:"pid"`
	Name   string  `json:"name"`
	CPUPct float64 `json:"cpu_pct"`
	MemMB  float64 `json:"mem_mb"`
}

// String renders the observation as name(pid) cpu=value.
func (p ProcessObservation) String() string {
	return fmt.Sprintf("%s(%d) cpu=%.1f", p.Name, p.PID, p.CPUPct)
}

type AnomalyEvent struct {
	Timestamp    time.Time            `json:"timestamp"`
	EventType    EventType            `json:"event_type"`
	CPUPct       float64              `json:"cpu_pct"`
	CPUEWMA      float64              `json:"cpu_ewma"`
	CPUStd       float64              `json:"cpu_std"`
	ZScore       float64              `json:"z_score"`
	ZThreshold   float64              `json:"z_threshold"`
	TopProcesses []ProcessObservation `json:"top_processes"`
}

// TopProcessesText joins the candidate processes with "; ".
func (e AnomalyEvent) TopProcessesText() string {
	parts := make([]string, 0, len(e.TopProcesses))
	for _, p := range e.TopProcesses {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, "; ")
}

// CorrelationRecord holds pre/post window averages for one event. A nil
// average means the window held no samples.
type CorrelationRecord struct {
	Event        AnomalyEvent `json:"event"`
	CPUBeforeAvg *float64     `json:"cpu_before_avg"`
	CPUAfterAvg  *float64     `json:"cpu_after_avg"`
}

type EstimatorState struct {
	Mean        *float64 `json:"mean"`
	Variance    float64  `json:"variance"`
	Deviation   float64  `json:"deviation,omitempty"`
	SampleCount int      `json:"sample_count"`
}

type AnalyticsStats struct {
	CurrentCPU      float64   `json:"current_cpu"`
	CurrentMem      float64   `json:"current_mem"`
	Mean            float64   `json:"mean"`
	StdDev          float64   `json:"std_dev"`
	ZScore          float64   `json:"z_score"`
	AnomalyRate     float64   `json:"anomaly_rate"`
	TotalMetrics    int64     `json:"total_metrics"`
	TotalAnomalies  int64     `json:"total_anomalies"`
	LastAnomalyTime time.Time `json:"last_anomaly_time,omitempty"`
	WarmupN         int       `json:"warmup_n"`
	Threshold       float64   `json:"threshold"`
	Detector        string    `json:"detector"`
	Ready           bool      `json:"ready"`
}
