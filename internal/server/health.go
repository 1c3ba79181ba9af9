package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/docqa-go/internal/logging"
)

// checkTimeout caps each dependency check so /api/ready answers promptly
// when a backend hangs.
const checkTimeout = 5 * time.Second

// Pinger reports whether one backend (vector index, blob store, metadata
// database, model host) is reachable. Implementations must be safe for
// concurrent use.
type Pinger interface {
	Ping(ctx context.Context) error
	// Name labels the backend in readiness output, e.g. "qdrant".
	Name() string
}

// MultiPinger pings several backends in order and fails on the first one
// that is unreachable. serve uses it for the startup check.
type MultiPinger struct {
	pingers []Pinger
}

func NewMultiPinger(pingers ...Pinger) *MultiPinger {
	return &MultiPinger{pingers: pingers}
}

func (m *MultiPinger) Ping(ctx context.Context) error {
	for _, p := range m.pingers {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

func (m *MultiPinger) Name() string { return "multi" }

type readyCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// runCheck runs one Pinger under checkTimeout.
func runCheck(ctx context.Context, p Pinger) readyCheck {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	c := readyCheck{Name: p.Name(), OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		c.Error = err.Error()
	}
	return c
}

// handleReady handles GET /api/ready. All backends are checked concurrently
// and reported in registration order; any failure turns the response into
// a 503. /api/health, by contrast, only says the process is up.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	checks := make([]readyCheck, len(s.pingers))
	var wg sync.WaitGroup
	for i, p := range s.pingers {
		wg.Go(func() { checks[i] = runCheck(r.Context(), p) })
	}
	wg.Wait()

	resp := readyResponse{Ready: true, Checks: checks}
	for _, c := range checks {
		if !c.OK {
			resp.Ready = false
			log.Warn("readiness check failed", slog.String("dependency", c.Name), slog.String("error", c.Error))
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}
