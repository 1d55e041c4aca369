// Package servicebus is the circuit-breaker-guarded HTTP client the hub uses
// to reach ML and orchestration helper services. Each named service carries
// its own breaker (CLOSED -> OPEN -> HALF_OPEN), consecutive-failure counter
// and smoothed latency; requests retry with exponential backoff and may be
// substituted by a registered fallback while the breaker is open. The bus is
// advisory infrastructure: every failure mode surfaces as a Result with
// Success false, never as an error the hub must handle.
package servicebus
