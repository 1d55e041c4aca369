// Package mailbox implements the per-agent inbound queue drained by the hub's
// dispatch loop: unbounded FIFO with priority reordering applied per drain
// batch rather than across the whole backlog.
package mailbox
