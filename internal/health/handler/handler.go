// Package handler serves liveness and readiness probes.
package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"soc-portal/internal/server/respond"
)

// probeTimeout bounds each readiness dependency check.
const probeTimeout = 2 * time.Second

// Pinger checks the datastore (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the access policy engine can evaluate (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Status is the data of a probe response.
type Status struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks,omitempty"`
	Duration string            `json:"duration,omitempty"`
}

// Server serves /healthz and /readyz. Nil dependencies are skipped.
type Server struct {
	pinger  Pinger
	checker PolicyChecker
	logger  *zap.Logger
}

// NewServer returns a health Server. pinger and checker may be nil.
func NewServer(pinger Pinger, checker PolicyChecker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{pinger: pinger, checker: checker, logger: logger}
}

// Live handles GET /healthz. It reports the process is up without touching dependencies.
func (s *Server) Live(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, respond.Envelope{Success: true, Data: Status{Status: "ok"}})
}

// Ready handles GET /readyz. Any failed check answers 503 so load balancers stop routing here.
func (s *Server) Ready(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	checks := make(map[string]string)
	ok := true
	if s.pinger != nil {
		if err := probe(r.Context(), s.pinger.PingContext); err != nil {
			s.logger.Warn("readiness: database ping failed", zap.Error(err))
			checks["database"] = "unavailable"
			ok = false
		} else {
			checks["database"] = "ok"
		}
	}
	if s.checker != nil {
		if err := probe(r.Context(), s.checker.HealthCheck); err != nil {
			s.logger.Warn("readiness: policy engine check failed", zap.Error(err))
			checks["policy"] = "unavailable"
			ok = false
		} else {
			checks["policy"] = "ok"
		}
	}
	st := Status{Status: "ok", Checks: checks, Duration: time.Since(start).Round(time.Millisecond).String()}
	code := http.StatusOK
	if !ok {
		st.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	respond.JSON(w, code, respond.Envelope{Success: ok, Data: st})
}

func probe(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return fn(ctx)
}
