package healthcheck

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"k8s.io/klog/v2"
)

const defaultTimeout = 30 * time.Second

type response struct {
	Status   string            `json:"status,omitempty"`
	Checks   []string          `json:"checks,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
	Degraded map[string]string `json:"degraded,omitempty"`
}

type health struct {
	checkers map[string]HealthChecker
	timeout  time.Duration
}

// Handler serves the aggregated result of all checkers. Any unhealthy checker
// turns the response into a 503; degraded ones are reported with a 200.
func Handler(opts ...Option) http.Handler {
	h := &health{
		checkers: make(map[string]HealthChecker),
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func HandlerFunc(opts ...Option) http.HandlerFunc {
	return Handler(opts...).ServeHTTP
}

type Option func(*health)

// WithChecker registers a named checker, for instance one per pub-sub component.
func WithChecker(name string, s HealthChecker) Option {
	return func(h *health) {
		h.checkers[name] = &timeoutChecker{s}
	}
}

// WithCheckers registers every checker of the map under its key.
func WithCheckers(checkers map[string]HealthChecker) Option {
	return func(h *health) {
		for name, c := range checkers {
			h.checkers[name] = &timeoutChecker{c}
		}
	}
}

// WithTimeout bounds every individual check. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(h *health) {
		h.timeout = timeout
	}
}

func (h *health) check(ctx context.Context) map[string]HealthResult {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	results := make(map[string]HealthResult, len(h.checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(h.checkers))
	for name, checker := range h.checkers {
		go func(name string, checker HealthChecker) {
			defer wg.Done()
			r := checker.IsHealthy(ctx)
			mu.Lock()
			results[name] = r
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()
	return results
}

func (h *health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	results := h.check(r.Context())

	code := http.StatusOK
	resp := response{}
	for name, res := range results {
		resp.Checks = append(resp.Checks, name)
		switch res.Status {
		case Healthy:
		case Degraded:
			if resp.Degraded == nil {
				resp.Degraded = map[string]string{}
			}
			resp.Degraded[name] = res.Description
		default:
			if resp.Errors == nil {
				resp.Errors = map[string]string{}
			}
			resp.Errors[name] = res.Description
			code = http.StatusServiceUnavailable
		}
	}
	sort.Strings(resp.Checks)
	resp.Status = http.StatusText(code)
	if code != http.StatusOK {
		klog.V(4).InfoS("Health check failed", "errors", resp.Errors)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := jsoniter.NewEncoder(w).Encode(resp); err != nil {
		klog.ErrorS(err, "Error writing health response")
	}
}

type timeoutChecker struct {
	checker HealthChecker
}

func (t *timeoutChecker) IsHealthy(ctx context.Context) HealthResult {
	checkerChan := make(chan HealthResult, 1)
	go func() {
		checkerChan <- t.checker.IsHealthy(ctx)
	}()
	select {
	case r := <-checkerChan:
		return r
	case <-ctx.Done():
		return HealthResult{
			Status:      Unhealthy,
			Description: "max check time exceeded",
		}
	}
}
