// Package metrics records sync run metrics in the Prometheus textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run is what one sync run reports.
type Run struct {
	StorageZone string
	Uploaded    int
	Unchanged   int
	Deleted     int
	Bytes       int64
	LocalFiles  int
	RemoteFiles int
	Duration    time.Duration
	Finished    time.Time
	Success     bool
}

// Recorder owns a private registry, so each run writes only its own series.
type Recorder struct {
	registry *prometheus.Registry

	tasksTotal    *prometheus.CounterVec
	bytesUploaded *prometheus.CounterVec
	filesGauge    *prometheus.GaugeVec
	duration      *prometheus.GaugeVec
	lastRun       *prometheus.GaugeVec
	success       *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		tasksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strict_bunny_sync_tasks_total",
				Help: "Number of executed sync tasks by outcome",
			},
			[]string{"storage_zone", "event"},
		),
		bytesUploaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strict_bunny_sync_bytes_uploaded_total",
				Help: "Bytes uploaded to the store",
			},
			[]string{"storage_zone"},
		),
		filesGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "strict_bunny_sync_files",
				Help: "Number of files found on each side",
			},
			[]string{"storage_zone", "side"},
		),
		duration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "strict_bunny_sync_duration_seconds",
				Help: "Duration of the last sync run",
			},
			[]string{"storage_zone"},
		),
		lastRun: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "strict_bunny_sync_last_run_timestamp_seconds",
				Help: "Unix time the last sync run finished",
			},
			[]string{"storage_zone"},
		),
		success: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "strict_bunny_sync_success",
				Help: "1 if the last sync run succeeded, 0 otherwise",
			},
			[]string{"storage_zone"},
		),
	}
}

// Observe records a finished run.
func (r *Recorder) Observe(run Run) {
	zone := run.StorageZone

	r.tasksTotal.WithLabelValues(zone, "put").Add(float64(run.Uploaded))
	r.tasksTotal.WithLabelValues(zone, "unchanged").Add(float64(run.Unchanged))
	r.tasksTotal.WithLabelValues(zone, "delete").Add(float64(run.Deleted))
	r.bytesUploaded.WithLabelValues(zone).Add(float64(run.Bytes))
	r.filesGauge.WithLabelValues(zone, "local").Set(float64(run.LocalFiles))
	r.filesGauge.WithLabelValues(zone, "remote").Set(float64(run.RemoteFiles))
	r.duration.WithLabelValues(zone).Set(run.Duration.Seconds())
	r.lastRun.WithLabelValues(zone).Set(float64(run.Finished.Unix()))

	if run.Success {
		r.success.WithLabelValues(zone).Set(1)
	} else {
		r.success.WithLabelValues(zone).Set(0)
	}
}

// WriteTextfile atomically writes all series to path for the node exporter
// textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
