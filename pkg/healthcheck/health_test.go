package healthcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(r HealthResult) HealthChecker {
	return CheckerFunc(func(ctx context.Context) HealthResult { return r })
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name         string
		opts         []Option
		wantCode     int
		wantErrors   map[string]string
		wantDegraded map[string]string
	}{
		{
			name:     "no checkers",
			wantCode: http.StatusOK,
		},
		{
			name:     "all healthy",
			opts:     []Option{WithChecker("orders", fixed(HealthyResult))},
			wantCode: http.StatusOK,
		},
		{
			name: "degraded stays available",
			opts: []Option{
				WithChecker("orders", fixed(HealthyResult)),
				WithChecker("audit", fixed(HealthResult{Status: Degraded, Description: "slow"})),
			},
			wantCode:     http.StatusOK,
			wantDegraded: map[string]string{"audit": "slow"},
		},
		{
			name: "one unhealthy",
			opts: []Option{WithCheckers(map[string]HealthChecker{
				"orders": fixed(HealthyResult),
				"audit":  fixed(HealthResult{Status: Unhealthy, Description: "connection is closed"}),
			})},
			wantCode:   http.StatusServiceUnavailable,
			wantErrors: map[string]string{"audit": "connection is closed"},
		},
		{
			name: "timeout",
			opts: []Option{
				WithTimeout(10 * time.Millisecond),
				WithChecker("stuck", CheckerFunc(func(ctx context.Context) HealthResult {
					<-ctx.Done()
					time.Sleep(10 * time.Millisecond)
					return HealthyResult
				})),
			},
			wantCode:   http.StatusServiceUnavailable,
			wantErrors: map[string]string{"stuck": "max check time exceeded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Handler(tt.opts...).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantCode, rr.Code)
			var got response
			require.NoError(t, jsoniter.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, http.StatusText(tt.wantCode), got.Status)
			assert.Equal(t, tt.wantErrors, got.Errors)
			assert.Equal(t, tt.wantDegraded, got.Degraded)
		})
	}
}

func TestWorst(t *testing.T) {
	down := HealthResult{Status: Unhealthy, Description: "down"}
	assert.Equal(t, HealthyResult, Worst())
	assert.Equal(t, down, Worst(HealthyResult, down, HealthResult{Status: Degraded}))
	assert.Equal(t, "degraded", Degraded.String())
}
