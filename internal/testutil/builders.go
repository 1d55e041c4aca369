package testutil

import (
	"github.com/hupe1980/agenthub/agent"
	"github.com/hupe1980/agenthub/messaging"
)

// AgentBuilder provides a fluent helper for constructing agent records in
// tests. Example:
//
//	info := NewAgentBuilder("worker-1").Role(agent.RoleSpecialist).Capabilities("infer").Build()
type AgentBuilder struct {
	info agent.Info
}

// NewAgentBuilder creates a builder with default specialist role and the
// default task capacity.
func NewAgentBuilder(agentID string) *AgentBuilder {
	return &AgentBuilder{info: agent.Info{
		AgentID:   agentID,
		AgentType: "test",
		Role:      agent.RoleSpecialist,
	}}
}

// Role sets the agent role (chainable).
func (b *AgentBuilder) Role(role agent.Role) *AgentBuilder { b.info.Role = role; return b }

// Capabilities sets the capability tags (chainable).
func (b *AgentBuilder) Capabilities(tags ...string) *AgentBuilder {
	b.info.Capabilities = tags
	return b
}

// MaxConcurrent sets the task capacity (chainable).
func (b *AgentBuilder) MaxConcurrent(n int) *AgentBuilder {
	b.info.MaxConcurrentTasks = n
	return b
}

// Metric sets one performance metric (chainable).
func (b *AgentBuilder) Metric(name string, value float64) *AgentBuilder {
	if b.info.PerformanceMetrics == nil {
		b.info.PerformanceMetrics = map[string]float64{}
	}
	b.info.PerformanceMetrics[name] = value
	return b
}

// Build returns the assembled record.
func (b *AgentBuilder) Build() *agent.Info {
	info := b.info
	return &info
}

// Notification builds a normal-priority notification between two agents with
// a single payload key.
func Notification(from, to, key string, value any) *messaging.Message {
	return messaging.NewNotification(from, to, map[string]any{key: value}).Build()
}

// PriorityNotification builds a notification with an explicit priority.
func PriorityNotification(from, to string, p messaging.Priority) *messaging.Message {
	return messaging.NewNotification(from, to, map[string]any{"priority": p.String()}).Priority(p).Build()
}
