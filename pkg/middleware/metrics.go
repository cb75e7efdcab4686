package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mocapstream/mocapstream/pkg/capture"
	"github.com/mocapstream/mocapstream/pkg/dispatch"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "mocapstream").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for delivery duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "mocapstream",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// metricsSink wraps a Sink and records delivery metrics.
type metricsSink struct {
	next dispatch.Sink

	framesTotal      prometheus.Counter
	deliveryDuration prometheus.Histogram
	frameSubjects    prometheus.Histogram
	lastSeq          prometheus.Gauge
}

// Metrics wraps next with a Sink that collects Prometheus metrics for
// each delivered frame.
//
// Metrics collected:
//   - mocapstream_frames_delivered_total: Counter of frames delivered
//   - mocapstream_delivery_duration_seconds: Histogram of downstream delivery duration
//   - mocapstream_frame_subjects: Histogram of subjects per frame
//   - mocapstream_last_sequence: Gauge of the most recent frame sequence number
//
// Example:
//
//	sink := middleware.Metrics(appSink,
//	    middleware.WithNamespace("myapp"),
//	)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Metrics(next dispatch.Sink, opts ...MetricsOption) dispatch.Sink {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &metricsSink{
		next: next,

		framesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_delivered_total",
			Help:        "Total number of frames delivered to the sink",
			ConstLabels: config.ConstLabels,
		}),

		deliveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "delivery_duration_seconds",
			Help:        "Downstream frame delivery duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		frameSubjects: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frame_subjects",
			Help:        "Number of subjects present per frame",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0, 1, 2, 4, 8, 16, 32},
		}),

		lastSeq: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "last_sequence",
			Help:        "Sequence number of the most recently delivered frame",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Deliver implements dispatch.Sink.
func (s *metricsSink) Deliver(ctx context.Context, frame *capture.Frame) {
	start := time.Now()
	s.next.Deliver(ctx, frame)

	s.deliveryDuration.Observe(time.Since(start).Seconds())
	s.framesTotal.Inc()
	s.frameSubjects.Observe(float64(len(frame.Subjects)))
	s.lastSeq.Set(float64(frame.Seq))
}

// statsCollector exposes dispatcher counters as Prometheus metrics.
type statsCollector struct {
	stats func() dispatch.Stats

	received   *prometheus.Desc
	delivered  *prometheus.Desc
	dropped    *prometheus.Desc
	decodeErrs *prometheus.Desc
	reconnects *prometheus.Desc
}

// NewStatsCollector returns a prometheus.Collector that reports dispatcher
// counters on every scrape. stats is typically (*mocapstream.Client).Stats
// or (*dispatch.Dispatcher).Stats.
//
// The collector is not registered; pass it to the registry yourself:
//
//	prometheus.MustRegister(middleware.NewStatsCollector(client.Stats))
func NewStatsCollector(stats func() dispatch.Stats, opts ...MetricsOption) prometheus.Collector {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(config.Namespace, config.Subsystem, name),
			help, nil, config.ConstLabels,
		)
	}

	return &statsCollector{
		stats:      stats,
		received:   desc("frames_received_total", "Total frames received from the server"),
		delivered:  desc("dispatch_frames_delivered_total", "Total frames handed to the sink by the dispatcher"),
		dropped:    desc("frames_dropped_total", "Total frames evicted by the backpressure policy"),
		decodeErrs: desc("decode_errors_total", "Total frame payloads that failed to decode"),
		reconnects: desc("reconnects_total", "Total reconnection attempts after the first successful connect"),
	}
}

// Describe implements prometheus.Collector.
func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.received
	ch <- c.delivered
	ch <- c.dropped
	ch <- c.decodeErrs
	ch <- c.reconnects
}

// Collect implements prometheus.Collector.
func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.stats()
	ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(st.FramesReceived))
	ch <- prometheus.MustNewConstMetric(c.delivered, prometheus.CounterValue, float64(st.FramesDelivered))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(st.FramesDropped))
	ch <- prometheus.MustNewConstMetric(c.decodeErrs, prometheus.CounterValue, float64(st.DecodeErrors))
	ch <- prometheus.MustNewConstMetric(c.reconnects, prometheus.CounterValue, float64(st.Reconnects))
}
