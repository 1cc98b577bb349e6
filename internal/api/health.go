package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/math-marauders-go/internal/engine"
	"github.com/MJE43/math-marauders-go/internal/gates"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResponse is the /health payload
type HealthCheckResponse struct {
	Status        HealthStatus           `json:"status"`
	Timestamp     string                 `json:"timestamp"`
	EngineVersion string                 `json:"engine_version"`
	GitCommit     string                 `json:"git_commit,omitempty"`
	BuildTime     string                 `json:"build_time,omitempty"`
	Uptime        string                 `json:"uptime"`
	Sessions      int                    `json:"sessions"`
	Checks        map[string]HealthCheck `json:"checks"`
	System        SystemInfo             `json:"system"`
	RequestID     string                 `json:"request_id,omitempty"`
}

// HealthCheck represents an individual health check
type HealthCheck struct {
	Status   HealthStatus `json:"status"`
	Message  string       `json:"message,omitempty"`
	Duration string       `json:"duration,omitempty"`
}

// SystemInfo contains runtime information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	NumCPU        int    `json:"num_cpu"`
	MemoryAlloc   string `json:"memory_alloc"`
	GCCycles      uint32 `json:"gc_cycles"`
}

// GET /health
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]HealthCheck{
		"engine":   s.checkEngineHealth(),
		"database": s.checkDatabaseHealth(r.Context()),
	}
	overall := HealthStatusHealthy
	for _, c := range checks {
		if c.Status == HealthStatusUnhealthy {
			overall = HealthStatusUnhealthy
			break
		}
		if c.Status == HealthStatusDegraded {
			overall = HealthStatusDegraded
		}
	}

	status := http.StatusOK
	if overall == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, HealthCheckResponse{
		Status:        overall,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
		Sessions:      s.sessions.len(),
		Checks:        checks,
		System:        systemInfo(),
		RequestID:     middleware.GetReqID(r.Context()),
	})
}

// checkEngineHealth generates a health-check wave twice and checks both agree
func (s *Server) checkEngineHealth() HealthCheck {
	start := time.Now()
	gen := gates.NewGenerator(s.tuning)
	cfg := gen.Config(engine.NormalizeSeed("health"), 1, s.tuning.StartingArmy)
	a, b := gen.Generate(cfg), gen.Generate(cfg)
	if len(a.Forward) == 0 || a.Optimal.Denominator() != b.Optimal.Denominator() {
		return HealthCheck{Status: HealthStatusUnhealthy, Message: "wave generation is not deterministic"}
	}
	return HealthCheck{Status: HealthStatusHealthy, Duration: time.Since(start).String()}
}

func (s *Server) checkDatabaseHealth(ctx context.Context) HealthCheck {
	if s.store == nil {
		return HealthCheck{Status: HealthStatusDegraded, Message: "persistence disabled"}
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		return HealthCheck{Status: HealthStatusUnhealthy, Message: err.Error()}
	}
	return HealthCheck{Status: HealthStatusHealthy, Duration: time.Since(start).String()}
}

func systemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		MemoryAlloc:   humanize.Bytes(m.Alloc),
		GCCycles:      m.NumGC,
	}
}
