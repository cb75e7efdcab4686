package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mocapstream/mocapstream/pkg/capture"
	"github.com/mocapstream/mocapstream/pkg/dispatch"
)

// Default tracer name for mocapstream sinks.
const defaultTracerName = "mocapstream"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "mocapstream").
	TracerName string

	// IncludeSubjects includes per-subject names as a span attribute.
	// Enabled by default.
	IncludeSubjects bool

	// Filter determines which frames to trace.
	// Return true to trace the frame, false to skip.
	// If nil, all frames are traced.
	Filter func(frame *capture.Frame) bool

	// AttributeExtractor extracts custom attributes from the frame.
	// Called for each traced frame.
	AttributeExtractor func(frame *capture.Frame) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeSubjects enables/disables including subject names in traces.
func WithIncludeSubjects(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeSubjects = include
	}
}

// WithFrameFilter sets a filter function for frames.
func WithFrameFilter(filter func(frame *capture.Frame) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(frame *capture.Frame) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// defaultOTelConfig returns the default OpenTelemetry configuration.
func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:      defaultTracerName,
		IncludeSubjects: true,
		Filter:          nil,
	}
}

// otelSink wraps a Sink and traces each frame delivery.
type otelSink struct {
	next   dispatch.Sink
	config OTelConfig
}

// OpenTelemetry wraps next with a Sink that traces every frame delivery.
//
// The middleware:
//   - Creates a span per delivered frame with sequence and subject count
//   - Propagates the span context to the wrapped sink
//   - Records a cancelled delivery as a span error
//
// Example:
//
//	sink := middleware.OpenTelemetry(appSink,
//	    middleware.WithTracerName("my-app"),
//	)
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it
// in your main() before starting the client:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	    sdktrace.WithResource(resource.NewWithAttributes(
//	        semconv.SchemaURL,
//	        semconv.ServiceName("my-app"),
//	    )),
//	)
//	otel.SetTracerProvider(tp)
func OpenTelemetry(next dispatch.Sink, opts ...OTelOption) dispatch.Sink {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	config.tracer = otel.Tracer(config.TracerName)

	return &otelSink{next: next, config: config}
}

// Deliver implements dispatch.Sink.
func (s *otelSink) Deliver(ctx context.Context, frame *capture.Frame) {
	if s.config.Filter != nil && !s.config.Filter(frame) {
		s.next.Deliver(ctx, frame)
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("mocap.frame_seq", int64(frame.Seq)),
		attribute.Int("mocap.subject_count", len(frame.Subjects)),
	}

	if s.config.IncludeSubjects {
		names := make([]string, len(frame.Subjects))
		for i, sub := range frame.Subjects {
			names[i] = sub.Name
		}
		attrs = append(attrs, attribute.StringSlice("mocap.subjects", names))
	}

	if s.config.AttributeExtractor != nil {
		attrs = append(attrs, s.config.AttributeExtractor(frame)...)
	}

	spanCtx, span := s.config.tracer.Start(
		ctx,
		"mocap.frame_delivery",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(time.Now()),
	)
	defer span.End()

	s.next.Deliver(spanCtx, frame)

	if err := spanCtx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
