package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDegraded ProbeStatus = "degraded"
	StatusDown     ProbeStatus = "down"
)

// severity orders statuses so the report carries the worst one seen.
func (s ProbeStatus) severity() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results for a liveness or readiness evaluation.
type HealthReport struct {
	Success bool          `json:"success"`
	Status  ProbeStatus   `json:"status"`
	Checks  []ProbeResult `json:"checks"`
}

// Check is a named probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

// NewCheck builds a Check. A nil fn yields a probe that always reports down.
func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	if fn == nil {
		fn = func(context.Context) ProbeResult {
			return ProbeResult{Status: StatusDown, Details: "no probe registered for " + name}
		}
	}
	return Check{Name: name, Run: fn}
}

// defaultProbeTimeout bounds each probe so a hung store cannot hang the ops endpoint.
const defaultProbeTimeout = 3 * time.Second

type probeKind int

const (
	probeLiveness probeKind = iota
	probeReadiness
)

// HealthManager holds the liveness and readiness probes of the worker. Liveness stays up while
// the process runs; readiness follows the store and the job outcomes.
type HealthManager struct {
	mu      sync.RWMutex
	probes  map[probeKind][]Check
	timeout time.Duration
}

// NewHealthManager constructs an empty health manager.
func NewHealthManager() *HealthManager {
	return &HealthManager{
		probes:  make(map[probeKind][]Check),
		timeout: defaultProbeTimeout,
	}
}

// RegisterLiveness adds a liveness probe.
func (m *HealthManager) RegisterLiveness(check Check) { m.register(probeLiveness, check) }

// RegisterReadiness adds a readiness probe.
func (m *HealthManager) RegisterReadiness(check Check) { m.register(probeReadiness, check) }

// EvaluateLiveness runs the liveness probes.
func (m *HealthManager) EvaluateLiveness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, probeLiveness)
}

// EvaluateReadiness runs the readiness probes.
func (m *HealthManager) EvaluateReadiness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, probeReadiness)
}

func (m *HealthManager) register(kind probeKind, check Check) {
	if m == nil || check.Name == "" || check.Run == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[kind] = append(m.probes[kind], check)
}

func (m *HealthManager) evaluate(ctx context.Context, kind probeKind) HealthReport {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.RLock()
	probes := append([]Check(nil), m.probes[kind]...)
	m.mu.RUnlock()

	report := HealthReport{Status: StatusUp, Checks: make([]ProbeResult, 0, len(probes))}
	for _, check := range probes {
		result := m.run(ctx, check)
		if result.Status.severity() > report.Status.severity() {
			report.Status = result.Status
		}
		report.Checks = append(report.Checks, result)
	}
	report.Success = report.Status == StatusUp
	return report
}

// run executes one probe under the manager's timeout. A panicking probe reports down.
func (m *HealthManager) run(ctx context.Context, check Check) (result ProbeResult) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: panicDetails(rec)}
		}
		result.Component = check.Name
		if result.Status == "" {
			result.Status = StatusDown
		}
		if result.Duration <= 0 {
			result.Duration = time.Since(start)
		}
	}()

	return check.Run(probeCtx)
}

func panicDetails(rec any) string {
	switch v := rec.(type) {
	case string:
		return v
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("panic: %v", v)
	}
}

// ResultFromError maps a probe error to a result. Timeouts and cancellations degrade the
// component rather than marking it down.
func ResultFromError(component string, err error, duration time.Duration) ProbeResult {
	result := ProbeResult{Component: component, Status: StatusUp, Duration: max(duration, 0)}
	if err == nil {
		return result
	}

	result.Details = err.Error()
	result.Status = StatusDown
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		result.Status = StatusDegraded
	}
	return result
}
