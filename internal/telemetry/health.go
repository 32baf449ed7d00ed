package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HealthCheckEndpoint is the pattern the readiness probe is served on.
const HealthCheckEndpoint = "/healthz"

const healthCheckTimeout = 5 * time.Second

// NewHealthCheck returns a handler that runs every registered probe and
// reports 503 on the first failure.
func NewHealthCheck(checks []func(context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		for _, check := range checks {
			if err := check(ctx); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		fmt.Fprint(w, "ok")
	})
}
