package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pageaudit"

// Recorder counts run events. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry          *prometheus.Registry
	targets           *prometheus.CounterVec
	collectorFailures *prometheus.CounterVec
	checkErrors       *prometheus.CounterVec
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_total",
			Help:      "Targets processed, by final status.",
		}, []string{"status"}),
		collectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_failures_total",
			Help:      "Collector stages that failed, by artifact name.",
		}, []string{"artifact"}),
		checkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_errors_total",
			Help:      "Checks that returned an error or panicked.",
		}, []string{"check"}),
	}
	r.registry.MustRegister(r.targets, r.collectorFailures, r.checkErrors)
	return r
}

func (r *Recorder) TargetProcessed(status string) {
	if r == nil {
		return
	}
	r.targets.WithLabelValues(status).Inc()
}

func (r *Recorder) CollectorFailed(artifact string) {
	if r == nil {
		return
	}
	r.collectorFailures.WithLabelValues(artifact).Inc()
}

func (r *Recorder) CheckErrored(check string) {
	if r == nil {
		return
	}
	r.checkErrors.WithLabelValues(check).Inc()
}

// Registry exposes the underlying registry for scraping or inspection.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile dumps the counters in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
