package monitor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pc-rca/internal/snapshot"
)

var (
	samplesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pcrca_samples_recorded_total",
		Help: "Total number of metric samples appended to the metric store",
	})

	anomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pcrca_anomalies_detected_total",
		Help: "Total number of CPU anomalies detected",
	}, []string{"event_type"})

	sampleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pcrca_sample_errors_total",
		Help: "Total number of iterations skipped because the host could not be read",
	})

	persistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pcrca_persistence_failures_total",
		Help: "Total number of records that could not be appended",
	})

	snapshotFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pcrca_snapshot_failures_total",
		Help: "Total number of processes that could not be read during a snapshot",
	}, []string{"vanished"})

	cpuPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pcrca_cpu_percent",
		Help: "Last sampled host CPU percentage",
	})

	memPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pcrca_mem_percent",
		Help: "Last sampled host memory percentage",
	})

	cpuMean = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pcrca_cpu_mean",
		Help: "Running CPU mean of the detector",
	})

	cpuSpread = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pcrca_cpu_spread",
		Help: "Running CPU spread (standard deviation or mean absolute deviation) of the detector",
	})

	cpuZScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pcrca_cpu_z_score",
		Help: "Standardized deviation of the last CPU sample",
	})
)

// ObserveSnapshotFailure counts a per-process read failure.
func ObserveSnapshotFailure(f snapshot.Failure) {
	snapshotFailures.WithLabelValues(strconv.FormatBool(f.Vanished)).Inc()
}
