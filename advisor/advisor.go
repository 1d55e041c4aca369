// Package advisor defines the advisory hints the hub may consult before
// routing a message or merging a workflow update. Providers are strictly
// best-effort: an error or a low-confidence answer means "no advice" and the
// hub proceeds with default behavior. Delivery never depends on a provider
// being reachable.
package advisor

import (
	"context"
	"errors"

	"github.com/hupe1980/agenthub/messaging"
)

// MinConfidence is the floor below which a hint is discarded as not
// actionable.
const MinConfidence = 0.7

// ErrNoAdvice signals that the provider has nothing actionable to say. It is
// the expected outcome, not a failure.
var ErrNoAdvice = errors.New("no actionable advice")

// Advice is a routing or conflict hint. TargetAgent, when set, suggests a
// better recipient; Hints carries free-form provider output for handlers that
// want it.
type Advice struct {
	TargetAgent string
	Confidence  float64
	Hints       map[string]any
}

// Provider produces advice for a message about to be routed. Implementations
// must be safe for concurrent use.
type Provider interface {
	Advise(ctx context.Context, msg *messaging.Message) (*Advice, error)
}

// ConflictChecker is implemented by providers that can also inspect workflow
// updates for conflicting concurrent changes.
type ConflictChecker interface {
	CheckConflict(ctx context.Context, workflowID, agentID string, updates map[string]any) (*Advice, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, msg *messaging.Message) (*Advice, error)

// Advise calls the wrapped function.
func (f ProviderFunc) Advise(ctx context.Context, msg *messaging.Message) (*Advice, error) {
	return f(ctx, msg)
}
