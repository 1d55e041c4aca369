package hub

import (
	"context"

	"github.com/hupe1980/agenthub/messaging"
)

// Handler processes one message dispatched to an agent. A non-nil result map
// on a message that requires a response is sent back to the requester
// automatically; handlers that call SendResponse themselves should return nil.
// Errors are logged with the agent and message ids and never propagated; the
// agent's in-flight task count is decremented either way.
type Handler func(ctx context.Context, msg *messaging.Message) (map[string]any, error)

// DynamicHandler intercepts a dynamic request kind (agent request, resource
// negotiation, capability query) at send time instead of mailbox delivery.
// Implementations answer the requester themselves, typically via
// Hub.SendResponse, and report whether they accepted the message.
type DynamicHandler func(ctx context.Context, h *Hub, msg *messaging.Message) bool
