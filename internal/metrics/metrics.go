// Package metrics exposes Prometheus instrumentation for the store:
// per-operation counters and latencies recorded as calls happen, and
// record-count gauges read from the store at scrape time.
package metrics

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/mesh-intelligence/tripstate/pkg/types"
)

const namespace = "tripstate"

// Result label values.
const (
	ResultOK                = "ok"
	ResultValidation        = "validation"
	ResultInvalidTransition = "invalid_transition"
	ResultNotFound          = "not_found"
	ResultDependentData     = "dependent_data"
	ResultConflict          = "conflict"
	ResultError             = "error"
)

// Result maps an operation error to its result label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, types.ErrValidation):
		return ResultValidation
	case errors.Is(err, types.ErrInvalidTransition):
		return ResultInvalidTransition
	case errors.Is(err, types.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, types.ErrDependentData):
		return ResultDependentData
	case errors.Is(err, types.ErrConcurrencyConflict):
		return ResultConflict
	}
	return ResultError
}

// Recorder counts store operations. A nil *Recorder records nothing.
type Recorder struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder creates the operation metrics and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Store operations by name and result.",
			},
			[]string{"op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Store operation latency.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(r.ops, r.duration)
	return r
}

// Observe records one finished operation.
func (r *Recorder) Observe(op string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.ops.WithLabelValues(op, Result(err)).Inc()
	r.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// StatsSource reports record counts.
type StatsSource interface {
	Stats(ctx context.Context) (*types.StoreStats, error)
}

// StoreCollector reads record counts from the store on every scrape.
type StoreCollector struct {
	source  StatsSource
	timeout time.Duration

	users    *prometheus.Desc
	trips    *prometheus.Desc
	plans    *prometheus.Desc
	messages *prometheus.Desc
}

var _ prometheus.Collector = (*StoreCollector)(nil)

// NewStoreCollector returns a collector over source. Register it with a
// registry to expose the gauges.
func NewStoreCollector(source StatsSource) *StoreCollector {
	return &StoreCollector{
		source:  source,
		timeout: 5 * time.Second,
		users: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "users"),
			"Stored users.", nil, nil),
		trips: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "trips"),
			"Stored trips by status.", []string{"status"}, nil),
		plans: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "plan_versions"),
			"Stored plan versions by status.", []string{"status"}, nil),
		messages: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "chat_messages"),
			"Stored chat messages by stream.", []string{"stream"}, nil),
	}
}

func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.users
	ch <- c.trips
	ch <- c.plans
	ch <- c.messages
}

func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.source.Stats(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.users, err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.users, prometheus.GaugeValue, float64(stats.Users))
	for _, st := range types.TripStatuses {
		ch <- prometheus.MustNewConstMetric(c.trips, prometheus.GaugeValue,
			float64(stats.TripsByStatus[st]), string(st))
	}
	for _, st := range []types.PlanStatus{types.PlanStatusDraft, types.PlanStatusApproved, types.PlanStatusRejected} {
		ch <- prometheus.MustNewConstMetric(c.plans, prometheus.GaugeValue,
			float64(stats.PlansByStatus[st]), string(st))
	}
	ch <- prometheus.MustNewConstMetric(c.messages, prometheus.GaugeValue, float64(stats.TripMessages), "trip")
	ch <- prometheus.MustNewConstMetric(c.messages, prometheus.GaugeValue, float64(stats.PreTripMessages), "pre_trip")
}

// WriteText gathers g and writes it in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
