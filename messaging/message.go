package messaging

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// MessageType classifies the intent of a message. Routing only branches on a
// handful of kinds (BROADCAST, the dynamic request kinds and RESPONSE); the
// remainder exist so handlers can dispatch without inspecting payloads.
type MessageType string

const (
	MessageTypeRequest            MessageType = "request"
	MessageTypeResponse           MessageType = "response"
	MessageTypeNotification       MessageType = "notification"
	MessageTypeBroadcast          MessageType = "broadcast"
	MessageTypeCoordination       MessageType = "coordination"
	MessageTypeContextShare       MessageType = "context_share"
	MessageTypeContextRequest     MessageType = "context_request"
	MessageTypeAgentRequest       MessageType = "agent_request"
	MessageTypeResourceRequest    MessageType = "resource_request"
	MessageTypeCapabilityRequest  MessageType = "capability_request"
	MessageTypeResourceAvailable  MessageType = "resource_available"
	MessageTypeResourceUnavail    MessageType = "resource_unavailable"
	MessageTypeAgentAvailable     MessageType = "agent_available"
	MessageTypeAgentBusy          MessageType = "agent_busy"
	MessageTypeConflictDetected   MessageType = "conflict_detected"
	MessageTypeConflictResolution MessageType = "conflict_resolution"
	MessageTypePriorityEscalation MessageType = "priority_escalation"
	MessageTypeStatusUpdate       MessageType = "status_update"
	MessageTypeHeartbeat          MessageType = "heartbeat"
	MessageTypeError              MessageType = "error"
)

// IsDynamicRequest reports whether the type is handled by a pluggable dynamic
// request handler rather than plain mailbox delivery.
func (t MessageType) IsDynamicRequest() bool {
	switch t {
	case MessageTypeAgentRequest, MessageTypeResourceRequest, MessageTypeCapabilityRequest:
		return true
	default:
		return false
	}
}

// Priority orders delivery within a drain batch. Lower values sort first.
type Priority int

const (
	PriorityCritical Priority = iota + 1
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityBackground
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// DefaultResponseTimeout is applied when a request requires a response but no
// timeout was set by the sender.
const DefaultResponseTimeout = 30 * time.Second

// DefaultMaxRetries is the retry budget recorded on new messages. The hub
// never retries on the caller's behalf; the counter is bookkeeping for callers
// that do.
const DefaultMaxRetries = 3

// Validation errors returned by Message.Validate. The hub rejects the send
// and logs a warning; these are never raised past the public surface.
var (
	ErrMissingAgent = errors.New("message requires both from and to agent ids")
	ErrSameAgent    = errors.New("message from and to agent must differ")
	ErrExpired      = errors.New("message is past its expiry deadline")
)

// Message is the unit of communication routed by the hub. Content carries
// task data; Context carries coordination metadata so handlers can separate
// the two without convention. After a successful send a message should be
// treated as immutable.
type Message struct {
	ID              string         `json:"id"`
	From            string         `json:"from_agent"`
	To              string         `json:"to_agent"`
	Type            MessageType    `json:"message_type"`
	Priority        Priority       `json:"priority"`
	Content         map[string]any `json:"content,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	WorkflowID      string         `json:"workflow_id,omitempty"`
	ParentMessageID string         `json:"parent_message_id,omitempty"`
	CoordinationID  string         `json:"coordination_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	ExpiresAt       time.Time      `json:"expires_at,omitempty"`
	RetryCount      int            `json:"retry_count"`
	MaxRetries      int            `json:"max_retries"`

	RequiresResponse bool          `json:"requires_response"`
	ResponseTimeout  time.Duration `json:"response_timeout"`
}

// Validate checks the hard send preconditions: both agent ids set and
// distinct, and the message not already past its expiry at the given instant.
func (m *Message) Validate(now time.Time) error {
	if m.From == "" || m.To == "" {
		return ErrMissingAgent
	}
	if m.From == m.To {
		return ErrSameAgent
	}
	if m.IsExpired(now) {
		return ErrExpired
	}
	return nil
}

// IsExpired reports whether the message carries an expiry deadline that has
// passed at the given instant.
func (m *Message) IsExpired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}

// IsRequest reports whether the message expects request semantics.
func (m *Message) IsRequest() bool { return m.Type == MessageTypeRequest }

// IsResponse reports whether the message answers an earlier request.
func (m *Message) IsResponse() bool { return m.Type == MessageTypeResponse }

// IsBroadcast reports whether the message fans out to all registered agents.
func (m *Message) IsBroadcast() bool { return m.Type == MessageTypeBroadcast }

// Clone returns a copy with independently cloned Content and Context maps.
// Nested values are shared; callers that mutate nested structures must copy
// them first.
func (m *Message) Clone() *Message {
	clone := *m
	clone.Content = maps.Clone(m.Content)
	clone.Context = maps.Clone(m.Context)
	return &clone
}

// String returns a compact representation for logs.
func (m *Message) String() string {
	return fmt.Sprintf("Message{ID: %s, From: %s, To: %s, Type: %s, Priority: %s}",
		m.ID, m.From, m.To, m.Type, m.Priority)
}

// NewID generates a new unique message identifier.
func NewID() string { return uuid.NewString() }
