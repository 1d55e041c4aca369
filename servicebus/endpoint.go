package servicebus

import (
	"sync"
	"time"
)

// HealthStatus classifies an endpoint's reachability as seen by the health
// poller and request outcomes.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthOffline   HealthStatus = "offline"
)

// CircuitState is the breaker position for one endpoint. Transitions:
// CLOSED -> OPEN after FailureThreshold consecutive failures, OPEN -> HALF_OPEN
// once the cooldown elapses, HALF_OPEN -> CLOSED on a successful probe or back
// to OPEN on a failed one.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// latencyAlpha is the smoothing factor of the response time moving average.
const latencyAlpha = 0.1

// Endpoint tracks one remote service: base URL, health, latency average and
// breaker state. All mutable fields are guarded by the endpoint's own mutex
// so breaker transitions stay atomic under concurrent requests.
type Endpoint struct {
	Name     string
	BaseURL  string
	Fallback string // name of the service substituted while the breaker is open

	mu                  sync.Mutex
	status              HealthStatus
	circuit             CircuitState
	consecutiveFailures int
	openUntil           time.Time
	avgResponseTime     time.Duration
}

// NewEndpoint creates a closed-circuit endpoint that is assumed healthy until
// a health check or request says otherwise.
func NewEndpoint(name, baseURL string) *Endpoint {
	return &Endpoint{
		Name:    name,
		BaseURL: baseURL,
		status:  HealthHealthy,
		circuit: CircuitClosed,
	}
}

// Status returns the current health classification.
func (e *Endpoint) Status() HealthStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Circuit returns the breaker state, promoting OPEN to HALF_OPEN when the
// cooldown has elapsed at the given instant.
func (e *Endpoint) Circuit(now time.Time) CircuitState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.circuit == CircuitOpen && !now.Before(e.openUntil) {
		e.circuit = CircuitHalfOpen
	}
	return e.circuit
}

// ConsecutiveFailures returns the current failure streak.
func (e *Endpoint) ConsecutiveFailures() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.consecutiveFailures
}

// AvgResponseTime returns the exponentially smoothed request latency.
func (e *Endpoint) AvgResponseTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.avgResponseTime
}

// RecordSuccess resets the failure streak, closes the breaker and folds the
// observed latency into the moving average.
func (e *Endpoint) RecordSuccess(latency time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.consecutiveFailures = 0
	e.circuit = CircuitClosed
	e.status = HealthHealthy
	if e.avgResponseTime == 0 {
		e.avgResponseTime = latency
	} else {
		e.avgResponseTime = time.Duration(float64(e.avgResponseTime)*(1-latencyAlpha) + float64(latency)*latencyAlpha)
	}
}

// RecordFailure increments the failure streak. Crossing the threshold, or any
// failure while HALF_OPEN, trips the breaker OPEN for the cooldown.
func (e *Endpoint) RecordFailure(threshold int, cooldown time.Duration, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.consecutiveFailures++
	switch {
	case e.circuit == CircuitHalfOpen:
		e.circuit = CircuitOpen
		e.openUntil = now.Add(cooldown)
		e.status = HealthUnhealthy
	case e.consecutiveFailures >= threshold:
		e.circuit = CircuitOpen
		e.openUntil = now.Add(cooldown)
		e.status = HealthUnhealthy
	default:
		e.status = HealthDegraded
	}
}

// SetHealth applies a health poll result without touching the breaker. A
// request failure, not a poll, is what trips the circuit.
func (e *Endpoint) SetHealth(status HealthStatus) {
	e.mu.Lock()
	e.status = status
	e.mu.Unlock()
}
