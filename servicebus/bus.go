package servicebus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agenthub/logging"
)

// Result is the normalized outcome of a service request. Failures are carried
// in ErrorMessage rather than raised; callers branch on Success.
type Result struct {
	Success         bool           `json:"success"`
	Data            map[string]any `json:"data,omitempty"`
	ConfidenceScore float64        `json:"confidence_score,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
}

// Options configure the service bus.
type Options struct {
	// MaxRetries is the per-request retry budget before the failure counts
	// against the breaker.
	MaxRetries int
	// FailureThreshold is the consecutive-failure count that trips a breaker.
	FailureThreshold int
	// CircuitCooldown is how long a tripped breaker stays open before a
	// half-open probe is allowed.
	CircuitCooldown time.Duration
	// RequestTimeout bounds a single HTTP attempt when the caller passes no
	// explicit timeout.
	RequestTimeout time.Duration
	// HealthInterval is the cadence of the background health poller.
	HealthInterval time.Duration
	// HTTPClient overrides the owned default client (e.g. for tests).
	HTTPClient *http.Client
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Bus issues requests to named services with retry, exponential backoff,
// circuit breaking and fallback substitution. It is always advisory from the
// hub's point of view: every failure mode ends in a Result with Success false
// rather than an error the caller must handle.
type Bus struct {
	opts Options

	mu        sync.RWMutex
	endpoints map[string]*Endpoint

	client *http.Client
	logger logging.Logger

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
}

// New creates a service bus with safe defaults (3 retries, breaker trip at 5
// consecutive failures, 60s cooldown, 10s request timeout, 30s health polls).
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{
		MaxRetries:       3,
		FailureThreshold: 5,
		CircuitCooldown:  60 * time.Second,
		RequestTimeout:   10 * time.Second,
		HealthInterval:   30 * time.Second,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.RequestTimeout}
	}

	return &Bus{
		opts:      opts,
		endpoints: make(map[string]*Endpoint),
		client:    client,
		logger:    opts.Logger,
	}
}

// RegisterService adds or replaces a service endpoint.
func (b *Bus) RegisterService(name, baseURL string) *Endpoint {
	ep := NewEndpoint(name, strings.TrimRight(baseURL, "/"))
	b.mu.Lock()
	b.endpoints[name] = ep
	b.mu.Unlock()
	return ep
}

// RegisterFallback names the service substituted while the primary's breaker
// is open. Both services must be registered for substitution to occur.
func (b *Bus) RegisterFallback(primary, fallback string) {
	b.mu.Lock()
	if ep, ok := b.endpoints[primary]; ok {
		ep.Fallback = fallback
	}
	b.mu.Unlock()
}

// Endpoint returns the endpoint record for a service, or nil.
func (b *Bus) Endpoint(name string) *Endpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.endpoints[name]
}

// Start launches the background health poller. Idempotent.
func (b *Bus) Start(ctx context.Context) {
	b.lifecycleMu.Lock()
	defer b.lifecycleMu.Unlock()
	if b.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.healthLoop(loopCtx)
}

// Stop cancels the health poller and waits for it to exit, then releases idle
// connections on the owned client.
func (b *Bus) Stop() {
	b.lifecycleMu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.lifecycleMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	b.client.CloseIdleConnections()
}

// Request posts data to the named service's endpoint path, retrying failed
// attempts with exponential backoff (2^attempt seconds) up to MaxRetries.
// While the breaker is open the call short-circuits, substituting the
// configured fallback service when one is registered.
func (b *Bus) Request(ctx context.Context, service, endpoint string, data map[string]any, timeout time.Duration) Result {
	b.mu.RLock()
	ep, ok := b.endpoints[service]
	b.mu.RUnlock()
	if !ok {
		return Result{ErrorMessage: fmt.Sprintf("unknown service: %s", service)}
	}

	now := time.Now()
	if ep.Circuit(now) == CircuitOpen {
		// Substitution is one level deep so mutual fallbacks cannot recurse.
		if ep.Fallback != "" && ep.Fallback != service {
			b.mu.RLock()
			fb, fbOK := b.endpoints[ep.Fallback]
			b.mu.RUnlock()
			if fbOK && fb.Circuit(now) != CircuitOpen {
				b.logger.Debug("circuit open, substituting fallback", "service", service, "fallback", ep.Fallback)
				return b.requestEndpoint(ctx, fb, endpoint, data, timeout)
			}
		}
		return Result{ErrorMessage: fmt.Sprintf("service unavailable: circuit open for %s", service)}
	}

	return b.requestEndpoint(ctx, ep, endpoint, data, timeout)
}

func (b *Bus) requestEndpoint(ctx context.Context, ep *Endpoint, endpoint string, data map[string]any, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = b.opts.RequestTimeout
	}

	var lastErr error
	for attempt := 0; attempt <= b.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
				lastErr = err
				break
			}
		}

		start := time.Now()
		result, err := b.doRequest(ctx, ep, endpoint, data, timeout)
		elapsed := time.Since(start)
		b.logger.Debug("service request attempt", "service", ep.Name, "endpoint", endpoint, "attempt", attempt, "duration", elapsed, "err", err)

		if err == nil {
			ep.RecordSuccess(elapsed)
			return result
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		// A half-open probe gets exactly one shot; its failure re-opens the
		// breaker without burning the retry budget.
		if ep.Circuit(time.Now()) == CircuitHalfOpen {
			break
		}
	}

	ep.RecordFailure(b.opts.FailureThreshold, b.opts.CircuitCooldown, time.Now())
	b.logger.Warn("service request failed", "service", ep.Name, "endpoint", endpoint, "error", lastErr)
	return Result{ErrorMessage: lastErr.Error()}
}

func (b *Bus) doRequest(ctx context.Context, ep *Endpoint, endpoint string, data map[string]any, timeout time.Duration) (Result, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := ep.BaseURL + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// healthLoop polls every endpoint's /health route on the configured interval,
// marking unreachable services offline. Poll results never trip the breaker;
// only request failures do.
func (b *Bus) healthLoop(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.opts.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.checkAll(ctx)
		}
	}
}

func (b *Bus) checkAll(ctx context.Context) {
	b.mu.RLock()
	endpoints := make([]*Endpoint, 0, len(b.endpoints))
	for _, ep := range b.endpoints {
		endpoints = append(endpoints, ep)
	}
	b.mu.RUnlock()

	for _, ep := range endpoints {
		if ctx.Err() != nil {
			return
		}
		b.checkOne(ctx, ep)
	}
}

func (b *Bus) checkOne(ctx context.Context, ep *Endpoint) {
	reqCtx, cancel := context.WithTimeout(ctx, b.opts.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, ep.BaseURL+"/health", nil)
	if err != nil {
		ep.SetHealth(HealthOffline)
		return
	}

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		ep.SetHealth(HealthOffline)
		b.logger.Debug("health check failed", "service", ep.Name, "error", err)
		return
	}
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		ep.RecordSuccess(time.Since(start))
	case resp.StatusCode >= 500:
		ep.SetHealth(HealthUnhealthy)
	default:
		ep.SetHealth(HealthDegraded)
	}
}

// sleepContext waits for the duration unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
