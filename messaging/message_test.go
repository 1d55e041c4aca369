package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	now := time.Now().UTC()

	t.Run("valid message", func(t *testing.T) {
		msg := NewNotification("a", "b", nil).Build()
		assert.NoError(t, msg.Validate(now))
	})

	t.Run("missing agent ids", func(t *testing.T) {
		msg := NewNotification("", "b", nil).Build()
		assert.ErrorIs(t, msg.Validate(now), ErrMissingAgent)

		msg = NewNotification("a", "", nil).Build()
		assert.ErrorIs(t, msg.Validate(now), ErrMissingAgent)
	})

	t.Run("self addressed", func(t *testing.T) {
		msg := NewNotification("a", "a", nil).Build()
		assert.ErrorIs(t, msg.Validate(now), ErrSameAgent)
	})

	t.Run("expired", func(t *testing.T) {
		msg := NewNotification("a", "b", nil).ExpiresAt(now.Add(-time.Minute)).Build()
		assert.ErrorIs(t, msg.Validate(now), ErrExpired)
	})

	t.Run("future expiry passes", func(t *testing.T) {
		msg := NewNotification("a", "b", nil).ExpiresAt(now.Add(time.Minute)).Build()
		assert.NoError(t, msg.Validate(now))
	})
}

func TestIsExpired(t *testing.T) {
	now := time.Now().UTC()

	msg := NewNotification("a", "b", nil).Build()
	assert.False(t, msg.IsExpired(now), "no deadline means never expired")

	msg.ExpiresAt = now.Add(-time.Second)
	assert.True(t, msg.IsExpired(now))
}

func TestBuilderDefaults(t *testing.T) {
	msg := NewMessage("a", "b", MessageTypeNotification).Build()

	assert.NotEmpty(t, msg.ID)
	assert.Len(t, msg.ID, 36) // UUID length
	assert.Equal(t, PriorityNormal, msg.Priority)
	assert.Equal(t, DefaultMaxRetries, msg.MaxRetries)
	assert.Equal(t, DefaultResponseTimeout, msg.ResponseTimeout)
	assert.False(t, msg.RequiresResponse)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestBuilderRequiresResponse(t *testing.T) {
	msg := NewRequest("a", "b", nil).RequiresResponse(5 * time.Second).Build()
	assert.True(t, msg.RequiresResponse)
	assert.Equal(t, 5*time.Second, msg.ResponseTimeout)

	// zero timeout keeps the default
	msg = NewRequest("a", "b", nil).RequiresResponse(0).Build()
	assert.True(t, msg.RequiresResponse)
	assert.Equal(t, DefaultResponseTimeout, msg.ResponseTimeout)
}

func TestBuilderResponseLinksParent(t *testing.T) {
	req := NewRequest("a", "b", map[string]any{"task": "x"}).Build()
	resp := NewResponse("b", "a", req.ID, map[string]any{"ok": true}).Build()

	assert.Equal(t, MessageTypeResponse, resp.Type)
	assert.Equal(t, req.ID, resp.ParentMessageID)
	assert.True(t, resp.IsResponse())
}

func TestBuilderBroadcast(t *testing.T) {
	msg := NewBroadcast("a", map[string]any{"note": 1}).Build()
	assert.Equal(t, "*", msg.To)
	assert.True(t, msg.IsBroadcast())
}

func TestBuilderCoordination(t *testing.T) {
	msg := NewCoordination("hub", "a", "wf-1", map[string]any{"action": "created"}).Build()
	assert.Equal(t, MessageTypeCoordination, msg.Type)
	assert.Equal(t, "wf-1", msg.WorkflowID)
}

func TestClone(t *testing.T) {
	msg := NewNotification("a", "b", map[string]any{"k": "v"}).
		Context(map[string]any{"meta": 1}).
		Build()

	clone := msg.Clone()
	require.NotSame(t, msg, clone)

	clone.Content["k"] = "changed"
	clone.Context["meta"] = 2
	assert.Equal(t, "v", msg.Content["k"], "content maps must be independent")
	assert.Equal(t, 1, msg.Context["meta"], "context maps must be independent")
}

func TestPriorityOrdering(t *testing.T) {
	assert.Less(t, int(PriorityCritical), int(PriorityHigh))
	assert.Less(t, int(PriorityHigh), int(PriorityNormal))
	assert.Less(t, int(PriorityNormal), int(PriorityLow))
	assert.Less(t, int(PriorityLow), int(PriorityBackground))
}

func TestPriorityString(t *testing.T) {
	assert.Equal(t, "critical", PriorityCritical.String())
	assert.Equal(t, "background", PriorityBackground.String())
	assert.Equal(t, "unknown", Priority(42).String())
}

func TestIsDynamicRequest(t *testing.T) {
	assert.True(t, MessageTypeAgentRequest.IsDynamicRequest())
	assert.True(t, MessageTypeResourceRequest.IsDynamicRequest())
	assert.True(t, MessageTypeCapabilityRequest.IsDynamicRequest())
	assert.False(t, MessageTypeRequest.IsDynamicRequest())
	assert.False(t, MessageTypeBroadcast.IsDynamicRequest())
}
