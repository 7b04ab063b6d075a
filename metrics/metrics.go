// Package metrics records per-run cleaning metrics and pushes them to a
// Prometheus Pushgateway.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"airbnb-cleaning/models"
)

const namespace = "listing_cleaning"

// Recorder holds the metrics of a single run on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	stageRows     *prometheus.GaugeVec
	imputedRows   prometheus.Gauge
	filledNames   prometheus.Gauge
	unparsedDates prometheus.Gauge
	duration      prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stageRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_rows",
			Help:      "Rows remaining after each cleaning stage.",
		}, []string{"stage"}),
		imputedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "imputed_availability_rows",
			Help:      "Rows whose availability_365 was imputed with the median.",
		}),
		filledNames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "filled_name_rows",
			Help:      "Rows whose null name was replaced by the host id.",
		}),
		unparsedDates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unparsed_last_review_rows",
			Help:      "Rows whose last_review could not be parsed.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the cleaning run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	r.registry.MustRegister(r.stageRows, r.imputedRows, r.filledNames,
		r.unparsedDates, r.duration, r.lastSuccess)
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveClean records the row counts of a cleaning report.
func (r *Recorder) ObserveClean(report *models.CleanReport) {
	if report == nil {
		return
	}
	for _, st := range report.Stages {
		r.stageRows.WithLabelValues(st.Stage).Set(float64(st.Rows))
	}
	r.stageRows.WithLabelValues("output").Set(float64(report.OutputRows))
	r.imputedRows.Set(float64(report.ImputedRows))
	r.filledNames.Set(float64(report.FilledNames))
	r.unparsedDates.Set(float64(report.UnparsedDates))
}

// ObserveRun records the run duration and, on success, the completion time.
func (r *Recorder) ObserveRun(started time.Time, err error) {
	r.duration.Set(time.Since(started).Seconds())
	if err == nil {
		r.lastSuccess.SetToCurrentTime()
	}
}

// Push sends the metrics to the Pushgateway at url under job, grouped by run id.
func (r *Recorder) Push(ctx context.Context, url, job, runID string) error {
	pusher := push.New(url, job).Gatherer(r.registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
