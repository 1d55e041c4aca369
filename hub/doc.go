// Package hub implements the central agent communication façade: registration
// with per-agent mailboxes, validated soft-failing sends, broadcast and group
// fan-out, request/response correlation with timeout-evicted futures,
// pluggable dynamic request strategies and workflow-scoped shared context
// with completion detection.
//
// Two background loops run while the hub is started. The dispatch loop drains
// each mailbox in capacity-bounded batches sorted by priority (ordering holds
// only within a batch, deliberately not across the backlog) and hands
// messages to registered handlers. The coordination monitor watches workflow
// contexts, broadcasting a completion notice and deleting each context the
// first tick after every participant reports done, and expiring contexts
// idle past the TTL.
//
// Everything on the public surface fails soft: validation problems, unknown
// targets and missing responses come back as false or nil results with a
// warning logged, never as panics, and the advisory service integrations can
// be unreachable without affecting delivery.
package hub
