package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agenthub/advisor"
	"github.com/hupe1980/agenthub/agent"
	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/mailbox"
	"github.com/hupe1980/agenthub/messaging"
	"github.com/hupe1980/agenthub/workflow"
)

// Options configure the hub.
type Options struct {
	// Name is the sender id used on hub-originated messages (coordination
	// notices, completion broadcasts).
	Name string

	// DispatchInterval is the cadence of the mailbox drain loop.
	DispatchInterval time.Duration
	// MonitorInterval is the cadence of the workflow completion monitor.
	MonitorInterval time.Duration
	// WorkflowTTL expires workflow contexts whose last update is older than
	// this, bounding merge-forever growth. Zero disables the sweep.
	WorkflowTTL time.Duration

	// Advisor, when set, is consulted for a best-effort routing hint before
	// delivery. Failures and low-confidence answers are ignored.
	Advisor advisor.Provider
	// ConflictChecker, when set, inspects workflow updates. Advisory only.
	ConflictChecker advisor.ConflictChecker

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Hub is the central coordination façade: agent registration, message
// delivery with priority drain batches, response correlation, group
// broadcast and workflow-scoped shared state. All exported methods are
// goroutine-safe and fail soft — routing problems are logged and reported
// through return values, never panics or errors.
type Hub struct {
	opts Options

	registry *agent.Registry

	mailboxMu sync.RWMutex
	mailboxes map[string]*mailbox.Mailbox

	handlerMu sync.RWMutex
	handlers  map[string]map[messaging.MessageType]Handler

	dynamicMu       sync.RWMutex
	dynamicHandlers map[messaging.MessageType]DynamicHandler

	groupMu sync.RWMutex
	groups  map[string]map[string]struct{}

	workflows    *workflow.Store
	correlations *correlationTable
	metrics      *Metrics
	logger       logging.Logger

	lifecycleMu  sync.Mutex
	cancel       context.CancelFunc
	dispatchDone chan struct{}
	monitorDone  chan struct{}
}

// New creates a hub with safe defaults (75ms dispatch cadence, 5s workflow
// monitor, 1h workflow TTL, no advisor, NoOp logger). The built-in agent
// matcher is pre-registered for agent requests; override it with
// RegisterDynamicHandler.
func New(optFns ...func(o *Options)) *Hub {
	opts := Options{
		Name:             "hub",
		DispatchInterval: 75 * time.Millisecond,
		MonitorInterval:  5 * time.Second,
		WorkflowTTL:      time.Hour,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	h := &Hub{
		opts:            opts,
		registry:        agent.NewRegistry(opts.Logger),
		mailboxes:       make(map[string]*mailbox.Mailbox),
		handlers:        make(map[string]map[messaging.MessageType]Handler),
		dynamicHandlers: make(map[messaging.MessageType]DynamicHandler),
		groups:          make(map[string]map[string]struct{}),
		workflows:       workflow.NewStore(),
		correlations:    newCorrelationTable(opts.Logger),
		metrics:         NewMetrics(),
		logger:          opts.Logger,
	}
	h.dynamicHandlers[messaging.MessageTypeAgentRequest] = matchAgentRequest
	return h
}

// Registry exposes the agent registry for status and metric updates.
func (h *Hub) Registry() *agent.Registry { return h.registry }

// Workflows exposes the workflow context store (read-mostly; mutation should
// go through the hub so participants get notified).
func (h *Hub) Workflows() *workflow.Store { return h.workflows }

// Metrics returns a snapshot of the hub counters.
func (h *Hub) Metrics() MetricsSnapshot {
	return h.metrics.snapshot(h.registry.ActiveAgents())
}

// RegisterAgent registers the agent and creates its mailbox and handler
// table. Re-registration is idempotent and keeps the existing mailbox so
// queued messages survive. Never errors to the caller.
func (h *Hub) RegisterAgent(info *agent.Info, handlers map[messaging.MessageType]Handler) bool {
	if !h.registry.Register(info) {
		return false
	}

	h.mailboxMu.Lock()
	if _, exists := h.mailboxes[info.AgentID]; !exists {
		h.mailboxes[info.AgentID] = mailbox.New()
	}
	h.mailboxMu.Unlock()

	h.handlerMu.Lock()
	if _, exists := h.handlers[info.AgentID]; !exists {
		h.handlers[info.AgentID] = make(map[messaging.MessageType]Handler)
	}
	for msgType, handler := range handlers {
		h.handlers[info.AgentID][msgType] = handler
	}
	h.handlerMu.Unlock()

	return true
}

// UnregisterAgent removes the agent, closes its mailbox (discarding queued
// messages) and drops its handlers and group memberships. Unknown ids are a
// no-op, not an error.
func (h *Hub) UnregisterAgent(agentID string) {
	h.registry.Unregister(agentID)

	h.mailboxMu.Lock()
	if mb, ok := h.mailboxes[agentID]; ok {
		mb.Close()
		delete(h.mailboxes, agentID)
	}
	h.mailboxMu.Unlock()

	h.handlerMu.Lock()
	delete(h.handlers, agentID)
	h.handlerMu.Unlock()

	h.groupMu.Lock()
	for group, members := range h.groups {
		delete(members, agentID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	h.groupMu.Unlock()
}

// RegisterHandler binds a handler for one message type on an agent,
// replacing any previous binding. Unknown agents get a handler table created
// so registration order does not matter.
func (h *Hub) RegisterHandler(agentID string, msgType messaging.MessageType, handler Handler) {
	h.handlerMu.Lock()
	if _, ok := h.handlers[agentID]; !ok {
		h.handlers[agentID] = make(map[messaging.MessageType]Handler)
	}
	h.handlers[agentID][msgType] = handler
	h.handlerMu.Unlock()
}

// RegisterDynamicHandler binds a strategy for a dynamic request kind,
// replacing the built-in one.
func (h *Hub) RegisterDynamicHandler(msgType messaging.MessageType, handler DynamicHandler) {
	h.dynamicMu.Lock()
	h.dynamicHandlers[msgType] = handler
	h.dynamicMu.Unlock()
}

// SendMessage validates and routes a message. Validation (both agent ids set
// and distinct, not expired) is the only hard precondition; everything else
// is a soft routing decision. Broadcast fans out to every other registered
// agent; dynamic request kinds go to their registered strategy; everything
// else is enqueued on the target mailbox. When the message requires a
// response a correlation future is armed before delivery.
func (h *Hub) SendMessage(ctx context.Context, msg *messaging.Message) bool {
	if msg == nil {
		return false
	}
	if err := msg.Validate(time.Now()); err != nil {
		h.logger.Warn("rejected message", "message_id", msg.ID, "error", err)
		h.metrics.RecordDropped(1)
		return false
	}

	h.applyRoutingAdvice(ctx, msg)

	if msg.IsBroadcast() {
		return h.fanOut(msg) > 0
	}

	if msg.Type.IsDynamicRequest() {
		h.dynamicMu.RLock()
		handler, ok := h.dynamicHandlers[msg.Type]
		h.dynamicMu.RUnlock()
		if !ok {
			h.logger.Warn("no dynamic handler registered", "message_type", string(msg.Type), "message_id", msg.ID)
			h.metrics.RecordDropped(1)
			return false
		}
		if msg.RequiresResponse {
			h.correlations.arm(msg.ID, msg.ResponseTimeout)
		}
		return handler(ctx, h, msg)
	}

	if msg.RequiresResponse {
		h.correlations.arm(msg.ID, msg.ResponseTimeout)
	}
	if !h.enqueue(msg) {
		h.correlations.evict(msg.ID)
		return false
	}
	return true
}

// applyRoutingAdvice consults the advisor, if any, and reroutes to a
// suggested target when it is registered and differs from the sender. All
// failures are swallowed; advice never blocks delivery.
func (h *Hub) applyRoutingAdvice(ctx context.Context, msg *messaging.Message) {
	if h.opts.Advisor == nil || msg.IsResponse() || msg.IsBroadcast() {
		return
	}

	advice, err := h.opts.Advisor.Advise(ctx, msg)
	if err != nil || advice == nil {
		if err != nil && err != advisor.ErrNoAdvice {
			h.logger.Debug("routing advice unavailable", "message_id", msg.ID, "error", err)
		}
		return
	}

	if advice.TargetAgent == "" || advice.TargetAgent == msg.To || advice.TargetAgent == msg.From {
		return
	}
	if h.registry.Get(advice.TargetAgent) == nil {
		return
	}

	h.logger.Debug("rerouting on advice", "message_id", msg.ID, "from_target", msg.To, "to_target", advice.TargetAgent, "confidence", advice.Confidence)
	msg.To = advice.TargetAgent
}

// fanOut clones the message per registered recipient (sender excluded) and
// returns the number of accepted enqueues.
func (h *Hub) fanOut(msg *messaging.Message) int {
	delivered := 0
	for _, agentID := range h.registry.IDs() {
		if agentID == msg.From {
			continue
		}
		clone := msg.Clone()
		clone.ID = messaging.NewID()
		clone.To = agentID
		if h.enqueue(clone) {
			delivered++
		}
	}
	h.logger.Debug("broadcast fanned out", "message_id", msg.ID, "from", msg.From, "delivered", delivered)
	return delivered
}

// Broadcast sends the content to every registered agent (sender excluded),
// optionally filtered by role, and returns the delivered count.
func (h *Hub) Broadcast(ctx context.Context, from string, content map[string]any, roles ...agent.Role) int {
	delivered := 0
	for _, info := range h.registry.List() {
		if info.AgentID == from {
			continue
		}
		if len(roles) > 0 && !roleMatches(info.Role, roles) {
			continue
		}
		msg := messaging.NewMessage(from, info.AgentID, messaging.MessageTypeBroadcast).Content(content).Build()
		if h.enqueue(msg) {
			delivered++
		}
	}
	return delivered
}

func roleMatches(role agent.Role, roles []agent.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// enqueue pushes onto the target mailbox. Unknown targets are refused;
// targets at capacity are queued anyway with a warning — the drain-rate cap
// self-throttles delivery.
func (h *Hub) enqueue(msg *messaging.Message) bool {
	h.mailboxMu.RLock()
	mb, ok := h.mailboxes[msg.To]
	h.mailboxMu.RUnlock()

	if !ok {
		h.logger.Warn("unknown target agent", "message_id", msg.ID, "to_agent", msg.To)
		h.metrics.RecordDropped(1)
		return false
	}

	if h.registry.AvailableCapacity(msg.To) == 0 {
		h.logger.Warn("target agent at capacity, queuing anyway", "message_id", msg.ID, "to_agent", msg.To)
	}

	if !mb.Push(msg) {
		h.logger.Warn("mailbox closed", "message_id", msg.ID, "to_agent", msg.To)
		h.metrics.RecordDropped(1)
		return false
	}
	h.metrics.RecordSent(1)
	return true
}

// ReceiveMessage pops the next message for an agent, waiting up to timeout.
// Nil within the timeout is not an error. Delivery updates the agent's
// last-seen stamp and in-flight task count; pull-mode consumers signal
// completion with CompleteTask.
func (h *Hub) ReceiveMessage(ctx context.Context, agentID string, timeout time.Duration) *messaging.Message {
	h.mailboxMu.RLock()
	mb, ok := h.mailboxes[agentID]
	h.mailboxMu.RUnlock()
	if !ok {
		return nil
	}

	msg, ok := mb.Pop(ctx, timeout)
	if !ok {
		return nil
	}

	h.registry.Touch(agentID)
	h.registry.AdjustTaskCount(agentID, 1)
	h.metrics.RecordDelivered(1)
	return msg
}

// CompleteTask decrements the agent's in-flight task count (clamped at zero).
// Pull-mode consumers call this when done with a received message.
func (h *Hub) CompleteTask(agentID string) {
	h.registry.AdjustTaskCount(agentID, -1)
}

// SendResponse answers a request. The response is tagged with the parent
// message id; a correlation future waiting on the parent is resolved directly,
// bypassing the mailbox round-trip. Without a waiter the response is routed
// like a normal message, and a response no one can take is dropped quietly.
func (h *Hub) SendResponse(ctx context.Context, parent *messaging.Message, content map[string]any) bool {
	if parent == nil {
		return false
	}

	response := messaging.NewResponse(parent.To, parent.From, parent.ID, content).
		Workflow(parent.WorkflowID).
		Coordination(parent.CoordinationID).
		Build()

	if h.correlations.resolve(parent.ID, response) {
		h.metrics.RecordResponseResolved(1)
		return true
	}

	if h.enqueue(response) {
		return true
	}
	h.logger.Debug("late response dropped, no waiter", "parent_message_id", parent.ID, "to_agent", response.To)
	return false
}

// WaitForResponse blocks until the response for the message id arrives or
// the timeout elapses. Nil means no response — an expected outcome callers
// must handle, not an error. The correlation entry is evicted on return, so
// waiting twice on the same id reports no response.
func (h *Hub) WaitForResponse(ctx context.Context, messageID string, timeout time.Duration) *messaging.Message {
	return h.correlations.wait(ctx, messageID, timeout)
}

// Subscribe adds the agent to a named broadcast group.
func (h *Hub) Subscribe(agentID, group string) {
	h.groupMu.Lock()
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]struct{})
	}
	h.groups[group][agentID] = struct{}{}
	h.groupMu.Unlock()
}

// Unsubscribe removes the agent from a named group. Unknown pairs are a no-op.
func (h *Hub) Unsubscribe(agentID, group string) {
	h.groupMu.Lock()
	if members, ok := h.groups[group]; ok {
		delete(members, agentID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	h.groupMu.Unlock()
}

// BroadcastToGroup sends one message per group member, excluding the sender,
// and returns the delivered count. An unknown group delivers to nobody.
func (h *Hub) BroadcastToGroup(ctx context.Context, from, group string, content map[string]any, msgType messaging.MessageType) int {
	h.groupMu.RLock()
	members := make([]string, 0, len(h.groups[group]))
	for agentID := range h.groups[group] {
		if agentID != from {
			members = append(members, agentID)
		}
	}
	h.groupMu.RUnlock()

	delivered := 0
	for _, agentID := range members {
		msg := messaging.NewMessage(from, agentID, msgType).Content(content).Build()
		if h.enqueue(msg) {
			delivered++
		}
	}
	return delivered
}

// RequestAdditionalAgent asks the agent-matching strategy for an agent with
// the given capabilities. It sends an agent request, awaits its correlated
// response and returns the assigned agent id. Not-ok means no agent matched
// or nobody answered in time.
func (h *Hub) RequestAdditionalAgent(ctx context.Context, requester string, capabilities []string, description string, priority messaging.Priority) (string, bool) {
	msg := messaging.NewMessage(requester, h.opts.Name, messaging.MessageTypeAgentRequest).
		Content(map[string]any{
			"required_capabilities": capabilities,
			"description":           description,
		}).
		Priority(priority).
		RequiresResponse(10 * time.Second).
		Build()

	if !h.SendMessage(ctx, msg) {
		return "", false
	}

	response := h.WaitForResponse(ctx, msg.ID, msg.ResponseTimeout)
	if response == nil {
		return "", false
	}
	granted, _ := response.Content["granted"].(bool)
	assigned, _ := response.Content["assigned_agent"].(string)
	if !granted || assigned == "" {
		return "", false
	}
	return assigned, true
}

// CreateWorkflowContext creates shared coordination state for a workflow and
// notifies every participant with a coordination message carrying the initial
// shared data.
func (h *Hub) CreateWorkflowContext(ctx context.Context, workflowID string, participants []string, initialData map[string]any) bool {
	wc, err := h.workflows.Create(workflowID, participants, initialData)
	if err != nil {
		h.logger.Warn("workflow context not created", "workflow_id", workflowID, "error", err)
		return false
	}

	content := map[string]any{
		"action":       "workflow_created",
		"workflow_id":  workflowID,
		"participants": wc.ParticipatingAgents,
		"shared_data":  wc.SharedData,
	}
	for _, agentID := range wc.ParticipatingAgents {
		msg := messaging.NewCoordination(h.opts.Name, agentID, workflowID, content).Build()
		h.enqueue(msg)
	}
	h.logger.Info("workflow context created", "workflow_id", workflowID, "participants", len(wc.ParticipatingAgents))
	return true
}

// UpdateWorkflowContext merges updates into the workflow context on behalf of
// an agent. Recognized keys: shared_data, coordination_state,
// completion_status, phase, current_step; anything else merges into shared
// data. The conflict checker, when configured, is consulted advisorily; a
// reported conflict is announced to participants but never blocks the merge.
// Other participants are notified of the change with a context share.
func (h *Hub) UpdateWorkflowContext(ctx context.Context, workflowID string, updates map[string]any, agentID string) bool {
	update, completions := buildUpdate(updates)

	if h.opts.ConflictChecker != nil {
		if advice, err := h.opts.ConflictChecker.CheckConflict(ctx, workflowID, agentID, updates); err == nil && advice != nil {
			h.announceConflict(workflowID, agentID, advice)
		}
	}

	wc, err := h.workflows.Update(workflowID, update)
	if err != nil {
		h.logger.Warn("workflow update failed", "workflow_id", workflowID, "agent_id", agentID, "error", err)
		return false
	}
	for _, completed := range completions {
		if err := h.workflows.SetCompleted(workflowID, completed); err != nil {
			h.logger.Warn("completion not recorded", "workflow_id", workflowID, "agent_id", completed, "error", err)
		}
	}

	content := map[string]any{
		"action":      "context_updated",
		"workflow_id": workflowID,
		"updated_by":  agentID,
		"updates":     updates,
	}
	for _, participant := range wc.ParticipatingAgents {
		if participant == agentID {
			continue
		}
		msg := messaging.NewMessage(h.opts.Name, participant, messaging.MessageTypeContextShare).
			Content(content).
			Workflow(workflowID).
			Build()
		h.enqueue(msg)
	}
	return true
}

// buildUpdate translates a free-form update map into store merge semantics.
// Completion flags set to true are returned separately so they pass the
// store's participant check.
func buildUpdate(updates map[string]any) (workflow.Update, []string) {
	update := workflow.Update{
		SharedData:        make(map[string]any),
		CoordinationState: make(map[string]any),
		CompletionStatus:  make(map[string]bool),
	}
	var completions []string

	for key, value := range updates {
		switch key {
		case "shared_data":
			if m, ok := value.(map[string]any); ok {
				for k, v := range m {
					update.SharedData[k] = v
				}
			}
		case "coordination_state":
			if m, ok := value.(map[string]any); ok {
				for k, v := range m {
					update.CoordinationState[k] = v
				}
			}
		case "completion_status":
			if m, ok := value.(map[string]bool); ok {
				for agentID, done := range m {
					update.CompletionStatus[agentID] = done
					if done {
						completions = append(completions, agentID)
					}
				}
			} else if m, ok := value.(map[string]any); ok {
				for agentID, v := range m {
					if done, ok := v.(bool); ok {
						update.CompletionStatus[agentID] = done
						if done {
							completions = append(completions, agentID)
						}
					}
				}
			}
		case "phase":
			if phase, ok := value.(int); ok {
				update.Phase = &phase
			}
		case "current_step":
			if step, ok := value.(string); ok {
				update.CurrentStep = &step
			}
		default:
			update.SharedData[key] = value
		}
	}
	return update, completions
}

func (h *Hub) announceConflict(workflowID, agentID string, advice *advisor.Advice) {
	h.logger.Warn("workflow update conflict reported", "workflow_id", workflowID, "agent_id", agentID, "confidence", advice.Confidence)

	wc, err := h.workflows.Get(workflowID)
	if err != nil {
		return
	}
	content := map[string]any{
		"action":      "conflict_detected",
		"workflow_id": workflowID,
		"updated_by":  agentID,
		"hints":       advice.Hints,
	}
	for _, participant := range wc.ParticipatingAgents {
		msg := messaging.NewMessage(h.opts.Name, participant, messaging.MessageTypeConflictDetected).
			Content(content).
			Workflow(workflowID).
			Build()
		h.enqueue(msg)
	}
}

// Start launches the dispatch and coordination monitor loops. Idempotent.
func (h *Hub) Start(ctx context.Context) {
	h.lifecycleMu.Lock()
	defer h.lifecycleMu.Unlock()
	if h.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.dispatchDone = make(chan struct{})
	h.monitorDone = make(chan struct{})

	go h.dispatchLoop(loopCtx, h.dispatchDone)
	go h.monitorLoop(loopCtx, h.monitorDone)
	h.logger.Info("hub started", "hub_name", h.opts.Name)
}

// Stop cancels both loops and waits for them to exit, so no further mailbox
// draining happens after it returns. In-flight handler goroutines finish on
// their own.
func (h *Hub) Stop(timeout time.Duration) error {
	h.lifecycleMu.Lock()
	cancel := h.cancel
	dispatchDone, monitorDone := h.dispatchDone, h.monitorDone
	h.cancel, h.dispatchDone, h.monitorDone = nil, nil, nil
	h.lifecycleMu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for _, done := range []chan struct{}{dispatchDone, monitorDone} {
		select {
		case <-done:
		case <-deadline.C:
			return fmt.Errorf("hub shutdown timeout after %v", timeout)
		}
	}
	h.logger.Info("hub stopped", "hub_name", h.opts.Name)
	return nil
}
