package bridge

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mocapstream/mocapstream/pkg/session"
)

// Router returns the bridge's HTTP handler for mounting in external
// routers or serving directly via Run.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/ws", s.handleWS)
	r.Get("/subjects", s.handleSubjects)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))

	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("upgrade error", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := newClient(s, conn)
	s.register(c)

	go c.writeLoop()
	go c.readLoop()
}

func (s *Server) handleSubjects(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := struct {
		Seq      uint64        `json:"seq"`
		Subjects []subjectInfo `json:"subjects"`
	}{Seq: s.lastSeq, Subjects: s.subjects}
	if resp.Subjects == nil {
		resp.Subjects = []subjectInfo{}
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	state := "unknown"
	healthy := true
	if s.cfg.State != nil {
		st := s.cfg.State()
		state = st.String()
		healthy = st != session.Disconnected
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, struct {
		State   string `json:"state"`
		Clients int    `json:"clients"`
		Dropped uint64 `json:"dropped"`
	}{State: state, Clients: s.ClientCount(), Dropped: s.Dropped()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
