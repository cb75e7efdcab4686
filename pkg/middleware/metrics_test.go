package middleware

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/mocapstream/mocapstream/pkg/capture"
	"github.com/mocapstream/mocapstream/pkg/dispatch"
)

type recordSink struct {
	frames []*capture.Frame
}

func (s *recordSink) Deliver(_ context.Context, frame *capture.Frame) {
	s.frames = append(s.frames, frame)
}

func testFrame(seq uint64, subjects ...string) *capture.Frame {
	f := &capture.Frame{Seq: seq}
	for _, name := range subjects {
		f.Subjects = append(f.Subjects, capture.Subject{Name: name})
	}
	return f
}

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetrics_RecordsDeliveries(t *testing.T) {
	reg := prometheus.NewRegistry()
	inner := &recordSink{}

	sink := Metrics(inner, WithRegistry(reg))
	ms := sink.(*metricsSink)

	sink.Deliver(context.Background(), testFrame(1, "subject01"))
	sink.Deliver(context.Background(), testFrame(2, "subject01", "subject02"))

	if len(inner.frames) != 2 {
		t.Fatalf("inner sink received %d frames, want 2", len(inner.frames))
	}
	if got := metricCounterValue(t, ms.framesTotal); got != 2 {
		t.Fatalf("frames_delivered_total=%v, want 2", got)
	}
	if got := metricHistogramCount(t, ms.deliveryDuration); got != 2 {
		t.Fatalf("delivery_duration_seconds sample count=%v, want 2", got)
	}
	if got := metricHistogramCount(t, ms.frameSubjects); got != 2 {
		t.Fatalf("frame_subjects sample count=%v, want 2", got)
	}
	if got := metricGaugeValue(t, ms.lastSeq); got != 2 {
		t.Fatalf("last_sequence=%v, want 2", got)
	}
}

func TestMetrics_NamespaceAppliedToMetricNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := Metrics(&recordSink{}, WithRegistry(reg), WithNamespace("myapp"), WithSubsystem("capture"))
	sink.Deliver(context.Background(), testFrame(1))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	want := map[string]bool{
		"myapp_capture_frames_delivered_total":    false,
		"myapp_capture_delivery_duration_seconds": false,
		"myapp_capture_frame_subjects":            false,
		"myapp_capture_last_sequence":             false,
	}
	for _, mf := range families {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestStatsCollector_ReportsDispatcherCounters(t *testing.T) {
	stats := dispatch.Stats{
		FramesReceived:  10,
		FramesDelivered: 8,
		FramesDropped:   2,
		DecodeErrors:    1,
		Reconnects:      3,
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewStatsCollector(func() dispatch.Stats { return stats }))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	got := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			got[mf.GetName()] = m.GetCounter().GetValue()
		}
	}

	want := map[string]float64{
		"mocapstream_frames_received_total":           10,
		"mocapstream_dispatch_frames_delivered_total": 8,
		"mocapstream_frames_dropped_total":            2,
		"mocapstream_decode_errors_total":             1,
		"mocapstream_reconnects_total":                3,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s=%v, want %v", name, got[name], v)
		}
	}
}
