package hub

import (
	"context"
	"time"

	"github.com/hupe1980/agenthub/messaging"
)

// dispatchLoop drains registered mailboxes on the configured cadence. Each
// iteration is shielded so one bad cycle cannot kill the loop.
func (h *Hub) dispatchLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.opts.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.runShielded("dispatch", func() { h.dispatchCycle(ctx) })
		}
	}
}

// dispatchCycle applies the per-agent capacity-bounded priority drain: up to
// (max concurrent - in flight) messages per agent, sorted by priority within
// the batch, each dispatched on its own goroutine.
func (h *Hub) dispatchCycle(ctx context.Context) {
	h.handlerMu.RLock()
	agentIDs := make([]string, 0, len(h.handlers))
	for agentID, table := range h.handlers {
		if len(table) > 0 {
			agentIDs = append(agentIDs, agentID)
		}
	}
	h.handlerMu.RUnlock()

	for _, agentID := range agentIDs {
		if ctx.Err() != nil {
			return
		}

		capacity := h.registry.AvailableCapacity(agentID)
		if capacity == 0 {
			continue
		}

		h.mailboxMu.RLock()
		mb, ok := h.mailboxes[agentID]
		h.mailboxMu.RUnlock()
		if !ok {
			continue
		}

		for _, msg := range mb.DrainBatch(capacity) {
			h.registry.AdjustTaskCount(agentID, 1)
			go h.handleMessage(ctx, agentID, msg)
		}
	}
}

// handleMessage delivers one message to the agent's handler. Handler errors
// and panics are logged with the agent and message ids and never propagated;
// the in-flight count is decremented on every path.
func (h *Hub) handleMessage(ctx context.Context, agentID string, msg *messaging.Message) {
	defer h.registry.AdjustTaskCount(agentID, -1)
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("handler panic", "agent_id", agentID, "message_id", msg.ID, "panic", r)
		}
	}()

	h.handlerMu.RLock()
	handler, ok := h.handlers[agentID][msg.Type]
	h.handlerMu.RUnlock()

	if !ok {
		h.logger.Debug("no handler for message type", "agent_id", agentID, "message_id", msg.ID, "message_type", string(msg.Type))
		h.metrics.RecordDropped(1)
		return
	}

	h.registry.Touch(agentID)
	h.metrics.RecordDelivered(1)

	start := time.Now()
	result, err := handler(ctx, msg)
	if err != nil {
		h.logger.Error("handler failed", "agent_id", agentID, "message_id", msg.ID, "duration", time.Since(start), "error", err)
		return
	}

	if msg.RequiresResponse && result != nil {
		h.SendResponse(ctx, msg, result)
	}
}

// monitorLoop checks workflow contexts for completion on the configured
// cadence and sweeps contexts idle past the TTL.
func (h *Hub) monitorLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.opts.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.runShielded("monitor", h.monitorCycle)
		}
	}
}

func (h *Hub) monitorCycle() {
	for _, wc := range h.workflows.List() {
		if !wc.IsComplete() {
			continue
		}

		// Delete before broadcasting so the completion notice goes out
		// exactly once even if a participant re-marks completion.
		h.workflows.Delete(wc.WorkflowID)

		content := map[string]any{
			"action":      "workflow_completed",
			"workflow_id": wc.WorkflowID,
			"shared_data": wc.SharedData,
		}
		for _, participant := range wc.ParticipatingAgents {
			msg := messaging.NewCoordination(h.opts.Name, participant, wc.WorkflowID, content).Build()
			h.enqueue(msg)
		}
		h.logger.Info("workflow completed", "workflow_id", wc.WorkflowID, "participants", len(wc.ParticipatingAgents))
	}

	if h.opts.WorkflowTTL > 0 {
		cutoff := time.Now().UTC().Add(-h.opts.WorkflowTTL)
		for _, workflowID := range h.workflows.ExpiredBefore(cutoff) {
			h.workflows.Delete(workflowID)
			h.logger.Warn("workflow context expired", "workflow_id", workflowID)
		}
	}
}

// runShielded runs one loop iteration, recovering panics so background loops
// log and keep going instead of dying.
func (h *Hub) runShielded(loop string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("background loop iteration panicked", "loop", loop, "panic", r)
		}
	}()
	fn()
}
