package workflow

import (
	"time"
)

// Context is the shared coordination state for one multi-agent workflow.
// Callers never mutate a Context directly; the Store hands out copies and
// applies all changes itself so update semantics (merge, not replace) live in
// one place.
type Context struct {
	WorkflowID  string
	Phase       int
	CurrentStep string

	ParticipatingAgents []string
	SharedData          map[string]any
	CoordinationState   map[string]any
	// Dependencies maps an agent to the agents it waits on. Informational;
	// the hub does not enforce ordering from it.
	Dependencies     map[string][]string
	CompletionStatus map[string]bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsComplete reports whether every participant has marked itself complete.
// An empty completion map is not complete; a context with no participants
// never completes on its own.
func (c *Context) IsComplete() bool {
	if len(c.CompletionStatus) == 0 {
		return false
	}
	for _, done := range c.CompletionStatus {
		if !done {
			return false
		}
	}
	return true
}

// HasParticipant reports whether the agent belongs to the workflow.
func (c *Context) HasParticipant(agentID string) bool {
	_, ok := c.CompletionStatus[agentID]
	return ok
}

// clone deep-copies the context one level down (map values are shared).
func (c *Context) clone() *Context {
	clone := *c
	clone.ParticipatingAgents = append([]string(nil), c.ParticipatingAgents...)
	clone.SharedData = cloneMap(c.SharedData)
	clone.CoordinationState = cloneMap(c.CoordinationState)
	clone.CompletionStatus = make(map[string]bool, len(c.CompletionStatus))
	for k, v := range c.CompletionStatus {
		clone.CompletionStatus[k] = v
	}
	clone.Dependencies = make(map[string][]string, len(c.Dependencies))
	for k, v := range c.Dependencies {
		clone.Dependencies[k] = append([]string(nil), v...)
	}
	return &clone
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
