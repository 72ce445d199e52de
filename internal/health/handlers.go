package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady toggles readiness. The API clears it when shutdown begins.
func SetReady(v bool) {
	ready.Store(v)
}

// IsReady reports the current readiness flag.
func IsReady() bool {
	return ready.Load()
}

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	// Checker is optional; without it Redis is reported as disabled.
	Checker      Checker
	RedisTimeout time.Duration
	// MenuItems is the number of priced items loaded at startup.
	MenuItems int
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on the loaded menu and dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"menu":  "ok",
		"redis": "disabled",
	}
	healthy := true
	if !IsReady() {
		status["server"] = "shutting down"
		healthy = false
	}
	if h.MenuItems <= 0 {
		status["menu"] = "empty"
		healthy = false
	}
	if h.Checker != nil {
		status["redis"] = "ok"
		if err := h.Checker.PingRedis(r.Context(), h.redisTimeout()); err != nil {
			status["redis"] = err.Error()
			healthy = false
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
