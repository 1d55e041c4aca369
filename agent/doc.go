// Package agent holds the registration model for hub participants: the Info
// record (role, capabilities, capacity, status) and the goroutine-safe
// Registry that owns all mutation of shared per-agent state.
package agent
