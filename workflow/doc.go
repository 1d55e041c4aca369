// Package workflow provides the shared coordination state for multi-agent
// workflows: a Context per workflow id with merge-on-update semantics and
// per-participant completion tracking, held in a goroutine-safe in-memory
// Store. Completion detection and the resulting broadcast/delete live in the
// hub's coordination monitor.
package workflow
