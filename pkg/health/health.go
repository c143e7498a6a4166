// Package health serves Kubernetes-style liveness and readiness probes.
//
// Every check runs in its own goroutine on a fixed interval. A check turns
// unhealthy after FailureThreshold consecutive failures and healthy again
// after SuccessThreshold consecutive successes, so one slow ping does not
// flap the probe.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc reports whether a component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the probe a check contributes to.
type Kind uint8

const (
	// Liveness checks decide whether the process should be restarted.
	Liveness Kind = iota
	// Readiness checks decide whether the process receives traffic.
	Readiness
)

// Default thresholds.
const (
	FailureThreshold = 3
	SuccessThreshold = 1
)

// result is the published outcome of the latest run.
type result struct {
	healthy bool
	err     error
}

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	// Owned by the goroutine running the check.
	fails, oks int

	last atomic.Pointer[result]
}

func newCheck(name string, timeout time.Duration, fn CheckFunc) *check {
	c := &check{name: name, timeout: timeout, fn: fn}
	c.last.Store(&result{healthy: true})
	return c
}

// run executes the check once. Not safe for concurrent use.
func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	healthy := c.last.Load().healthy
	if err != nil {
		c.oks = 0
		c.fails++
		if c.fails >= FailureThreshold {
			healthy = false
		}
	} else {
		c.fails = 0
		c.oks++
		if c.oks >= SuccessThreshold {
			healthy = true
		}
	}
	c.last.Store(&result{healthy: healthy, err: err})
}

// state returns "ok" or the reason the check is failing.
func (c *check) state() (string, bool) {
	r := c.last.Load()
	switch {
	case r.healthy:
		return "ok", true
	case r.err != nil:
		return r.err.Error(), false
	default:
		return "unhealthy", false
	}
}

// Health owns the probe checks of a service.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks [2][]*check
	cancel context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Add registers a check. Checks start out healthy.
func (h *Health) Add(kind Kind, name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[kind] = append(h.checks[kind], newCheck(name, timeout, fn))
}

// AddLivenessCheck registers a liveness check such as goroutine count or
// pool saturation.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Add(Liveness, name, timeout, fn)
}

// AddReadinessCheck registers a readiness check such as a database ping.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Add(Readiness, name, timeout, fn)
}

func (h *Health) snapshot(kind Kind) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*check(nil), h.checks[kind]...)
}

// Start runs every registered check now and then on each interval until
// Stop or ctx is done. Register checks before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	for _, kind := range []Kind{Liveness, Readiness} {
		for _, c := range h.snapshot(kind) {
			go loop(ctx, c, interval)
		}
	}
}

func loop(ctx context.Context, c *check, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		c.run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Stop ends the check goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate: true after startup, false when
// draining before shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, c := range h.snapshot(Readiness) {
		if _, ok := c.state(); !ok {
			return false
		}
	}
	return true
}

// LiveEndpoint serves /livez: 200 when every liveness check passes, 503
// otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, "", h.snapshot(Liveness))
}

// ReadyEndpoint serves /readyz: 200 when the service is marked ready and
// every readiness check passes, 503 otherwise.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	status := ""
	if !h.ready.Load() {
		status = "not_ready"
	}
	writeProbe(w, status, h.snapshot(Readiness))
}

// writeProbe writes {"status": ..., "checks": {name: "ok" | reason}}.
// A non-empty status forces 503.
func writeProbe(w http.ResponseWriter, status string, checks []*check) {
	var (
		e       jx.Encoder
		healthy = status == ""
	)
	e.ObjStart()
	if len(checks) > 0 {
		e.FieldStart("checks")
		e.ObjStart()
		for _, c := range checks {
			msg, ok := c.state()
			healthy = healthy && ok
			e.FieldStart(c.name)
			e.Str(msg)
		}
		e.ObjEnd()
	}
	code := http.StatusOK
	switch {
	case status != "":
		code = http.StatusServiceUnavailable
	case !healthy:
		status, code = "unhealthy", http.StatusServiceUnavailable
	default:
		status = "ok"
	}
	e.FieldStart("status")
	e.Str(status)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

// Register mounts GET /livez and GET /readyz on mux.
func (h *Health) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /livez", h.LiveEndpoint)
	mux.HandleFunc("GET /readyz", h.ReadyEndpoint)
}
