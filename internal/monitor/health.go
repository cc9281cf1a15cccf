package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"
)

// Worker health classifications.
const (
	HealthHealthy           = "healthy"
	HealthUnhealthy         = "unhealthy"
	HealthTimeout           = "timeout"
	HealthConnectionRefused = "connection_refused"
)

// WorkerHealth is the result of one liveness probe. It feeds observability
// only and never gates queue operations.
type WorkerHealth struct {
	Role         string `json:"role"`
	Endpoint     string `json:"endpoint"`
	Status       string `json:"status"`
	State        string `json:"state,omitempty"`
	CurrentJobID string `json:"current_job_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// CheckWorkerHealth probes a worker's HTTP liveness endpoint. Probe failures
// are classified into the health status, never returned as errors.
func (m *Monitor) CheckWorkerHealth(ctx context.Context, role, endpoint string, timeout time.Duration) WorkerHealth {
	health := WorkerHealth{
		Role:     role,
		Endpoint: endpoint,
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		health.Status = HealthUnhealthy
		health.Error = err.Error()
		return health
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		health.Status = classifyProbeError(err)
		health.Error = err.Error()

		m.logger.Warn("Worker health probe failed",
			slog.String("role", role),
			slog.String("endpoint", endpoint),
			slog.String("status", health.Status),
			slog.String("error", err.Error()),
		)

		return health
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		health.Status = HealthUnhealthy
		health.Error = fmt.Sprintf("unexpected status code %d", resp.StatusCode)
		return health
	}

	health.Status = HealthHealthy

	// state/current_job fields are optional; a body that fails to parse does
	// not make a responding worker unhealthy.
	var body struct {
		State      string `json:"state"`
		CurrentJob string `json:"current_job"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		health.State = body.State
		health.CurrentJobID = body.CurrentJob
	}

	return health
}

func classifyProbeError(err error) string {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return HealthConnectionRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return HealthTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return HealthTimeout
	}

	return HealthUnhealthy
}
