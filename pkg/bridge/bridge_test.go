package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mocapstream/mocapstream/pkg/capture"
	"github.com/mocapstream/mocapstream/pkg/session"
)

func testServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s := New(cfg)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count %d, want %d", s.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func poseFrame(seq uint64) *capture.Frame {
	return &capture.Frame{
		Seq: seq,
		Subjects: []capture.Subject{{
			Name: "subject01",
			Segments: []capture.Segment{
				{Name: "pelvis", Pose: &capture.Pose{
					Translation: capture.Vector3{X: 1.234, Y: 2.345, Z: 0.567},
					Rotation:    capture.Quaternion{W: 1},
				}},
				{Name: "head"},
			},
		}},
	}
}

func TestBridge_FanOutToWebSocket(t *testing.T) {
	s, ts := testServer(t, Config{})
	conn := dialWS(t, ts)
	waitForClients(t, s, 1)

	s.Deliver(context.Background(), poseFrame(7))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var got frameJSON
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Seq != 7 {
		t.Errorf("seq=%d, want 7", got.Seq)
	}
	if len(got.Subjects) != 1 || got.Subjects[0].Name != "subject01" {
		t.Fatalf("unexpected subjects: %+v", got.Subjects)
	}
	segs := got.Subjects[0].Segments
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Occluded || segs[0].Translation == nil || segs[0].Translation.X != 1.234 {
		t.Errorf("pelvis segment wrong: %+v", segs[0])
	}
	if !segs[1].Occluded || segs[1].Translation != nil {
		t.Errorf("occluded segment should have no pose: %+v", segs[1])
	}
}

func TestBridge_SlowClientDropsFrames(t *testing.T) {
	s, ts := testServer(t, Config{SendQueue: 2})
	dialWS(t, ts)
	waitForClients(t, s, 1)

	// Reader never drains, only the send buffer absorbs frames.
	for i := uint64(1); i <= 5; i++ {
		s.Deliver(context.Background(), poseFrame(i))
	}

	if got := s.Dropped(); got == 0 {
		t.Error("expected dropped frames on a stalled client")
	}
}

func TestBridge_SubjectsEndpoint(t *testing.T) {
	s, ts := testServer(t, Config{})

	resp, err := http.Get(ts.URL + "/subjects")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var empty struct {
		Seq      uint64        `json:"seq"`
		Subjects []subjectInfo `json:"subjects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&empty); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if empty.Subjects == nil || len(empty.Subjects) != 0 {
		t.Fatalf("want empty subject list, got %+v", empty.Subjects)
	}

	s.Deliver(context.Background(), poseFrame(3))

	resp, err = http.Get(ts.URL + "/subjects")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var got struct {
		Seq      uint64        `json:"seq"`
		Subjects []subjectInfo `json:"subjects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Seq != 3 {
		t.Errorf("seq=%d, want 3", got.Seq)
	}
	if len(got.Subjects) != 1 || got.Subjects[0].Name != "subject01" {
		t.Fatalf("unexpected subjects: %+v", got.Subjects)
	}
	if len(got.Subjects[0].Segments) != 2 || got.Subjects[0].Segments[0] != "pelvis" {
		t.Fatalf("unexpected segments: %+v", got.Subjects[0].Segments)
	}
}

func TestBridge_Healthz(t *testing.T) {
	var state atomic.Int32
	state.Store(int32(session.Disconnected))
	_, ts := testServer(t, Config{State: func() session.State { return session.State(state.Load()) }})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("disconnected healthz status=%d, want 503", resp.StatusCode)
	}

	state.Store(int32(session.Streaming))
	resp, err = http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("streaming healthz status=%d, want 200", resp.StatusCode)
	}
	var body struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.State != session.Streaming.String() {
		t.Errorf("state=%q, want %q", body.State, session.Streaming.String())
	}
}

func TestBridge_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "bridge_test_total"})
	reg.MustRegister(c)
	c.Inc()

	_, ts := testServer(t, Config{Gatherer: reg})

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status=%d, want 200", resp.StatusCode)
	}
	buf := make([]byte, 64<<10)
	n, _ := resp.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), "bridge_test_total 1") {
		t.Error("expected bridge_test_total in metrics output")
	}
}

func TestBridge_ClientDisconnectUnregisters(t *testing.T) {
	s, ts := testServer(t, Config{})
	conn := dialWS(t, ts)
	waitForClients(t, s, 1)

	conn.Close()
	waitForClients(t, s, 0)
}

func TestBridge_RunShutdown(t *testing.T) {
	s := New(Config{Address: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
