package messaging

import "time"

// Builder assembles a Message fluently. Terminal call is Build; the builder
// is single-use.
type Builder struct {
	message *Message
}

// NewMessage starts a builder for an arbitrary message type with defaults
// applied (generated id, normal priority, UTC creation time, retry budget).
func NewMessage(from, to string, messageType MessageType) *Builder {
	return &Builder{
		message: &Message{
			ID:              NewID(),
			From:            from,
			To:              to,
			Type:            messageType,
			Priority:        PriorityNormal,
			CreatedAt:       time.Now().UTC(),
			MaxRetries:      DefaultMaxRetries,
			ResponseTimeout: DefaultResponseTimeout,
		},
	}
}

// NewRequest starts a request message.
func NewRequest(from, to string, content map[string]any) *Builder {
	return NewMessage(from, to, MessageTypeRequest).Content(content)
}

// NewResponse starts a response message linked to its originating request.
func NewResponse(from, to, parentMessageID string, content map[string]any) *Builder {
	return NewMessage(from, to, MessageTypeResponse).Content(content).ParentMessage(parentMessageID)
}

// NewNotification starts a one-way notification.
func NewNotification(from, to string, content map[string]any) *Builder {
	return NewMessage(from, to, MessageTypeNotification).Content(content)
}

// NewBroadcast starts a broadcast. The To field is filled per recipient at
// fan-out time; builders may leave it empty until then.
func NewBroadcast(from string, content map[string]any) *Builder {
	return NewMessage(from, "*", MessageTypeBroadcast).Content(content)
}

// NewCoordination starts a coordination message scoped to a workflow.
func NewCoordination(from, to, workflowID string, content map[string]any) *Builder {
	return NewMessage(from, to, MessageTypeCoordination).Content(content).Workflow(workflowID)
}

// Content sets the task payload.
func (b *Builder) Content(content map[string]any) *Builder {
	b.message.Content = content
	return b
}

// Context sets the coordination metadata payload.
func (b *Builder) Context(context map[string]any) *Builder {
	b.message.Context = context
	return b
}

// Priority overrides the default normal priority.
func (b *Builder) Priority(priority Priority) *Builder {
	b.message.Priority = priority
	return b
}

// Workflow links the message to a workflow context.
func (b *Builder) Workflow(workflowID string) *Builder {
	b.message.WorkflowID = workflowID
	return b
}

// ParentMessage links a response back to its originating request.
func (b *Builder) ParentMessage(id string) *Builder {
	b.message.ParentMessageID = id
	return b
}

// Coordination groups related coordination messages under one id.
func (b *Builder) Coordination(id string) *Builder {
	b.message.CoordinationID = id
	return b
}

// ExpiresAt sets an absolute delivery deadline. Messages past it are rejected
// at send time.
func (b *Builder) ExpiresAt(t time.Time) *Builder {
	b.message.ExpiresAt = t
	return b
}

// RequiresResponse arms response correlation at send time with the given
// timeout (DefaultResponseTimeout when zero or negative).
func (b *Builder) RequiresResponse(timeout time.Duration) *Builder {
	b.message.RequiresResponse = true
	if timeout > 0 {
		b.message.ResponseTimeout = timeout
	}
	return b
}

// Build returns the assembled message.
func (b *Builder) Build() *Message {
	return b.message
}
