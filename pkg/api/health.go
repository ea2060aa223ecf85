package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/googol/pkg/metrics"
)

// ReadyCheck reports whether one part of a node is ready, with a short detail
type ReadyCheck func() (ready bool, detail string)

// HealthServer is the admin HTTP endpoint of a node: /health, /ready and
// /metrics. Only GET is routed; other methods get 405 from the mux.
type HealthServer struct {
	role   string
	mux    *http.ServeMux
	server *http.Server

	mu     sync.RWMutex
	checks map[string]ReadyCheck
}

// HealthResponse is the /health body
type HealthResponse struct {
	Status    string    `json:"status"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
}

// ReadyResponse is the /ready body
type ReadyResponse struct {
	Status    string            `json:"status"`
	Role      string            `json:"role"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// NewHealthServer creates the admin endpoint for a node role
func NewHealthServer(role string) *HealthServer {
	hs := &HealthServer{
		role:   role,
		mux:    http.NewServeMux(),
		checks: make(map[string]ReadyCheck),
	}
	hs.mux.HandleFunc("GET /health", hs.health)
	hs.mux.HandleFunc("GET /ready", hs.ready)
	hs.mux.Handle("GET /metrics", metrics.Handler())
	return hs
}

// AddCheck adds a readiness check under name, replacing any previous one
func (hs *HealthServer) AddCheck(name string, check ReadyCheck) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.checks[name] = check
}

// Start serves on addr and blocks until Shutdown
func (hs *HealthServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	hs.server = &http.Server{
		Handler:           hs.mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	if err := hs.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, if it was started
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	if hs.server == nil {
		return nil
	}
	return hs.server.Shutdown(ctx)
}

// GetHandler returns the mux, for tests and for embedding
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}

func (hs *HealthServer) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Role:      hs.role,
		Timestamp: time.Now(),
		Version:   metrics.Version(),
		Uptime:    metrics.Uptime().Round(time.Second).String(),
	})
}

// ready passes when the critical components (metrics.SetCriticalComponents)
// and every added check pass. The message names the first thing missing.
func (hs *HealthServer) ready(w http.ResponseWriter, _ *http.Request) {
	ready, checks, message := metrics.Readiness()

	hs.mu.RLock()
	names := make([]string, 0, len(hs.checks))
	for name := range hs.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ok, detail := hs.checks[name]()
		checks[name] = detail
		if !ok && ready {
			ready = false
			message = "waiting for " + name
		}
	}
	hs.mu.RUnlock()

	resp := ReadyResponse{
		Status:    "ready",
		Role:      hs.role,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}
	code := http.StatusOK
	if !ready {
		resp.Status = "not ready"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
