package advisor

import (
	"context"
	"time"

	"github.com/hupe1980/agenthub/messaging"
	"github.com/hupe1980/agenthub/servicebus"
)

// Service and endpoint names consumed on the bus.
const (
	routingService  = "communication_optimizer"
	routingEndpoint = "optimize_routing"

	conflictService  = "conflict_detector"
	conflictEndpoint = "detect_conflicts"
)

// ServiceBusOptions configure the bus-backed provider.
type ServiceBusOptions struct {
	// RequestTimeout bounds a single advisory call. Advisory calls sit on the
	// send path, so the default is deliberately short.
	RequestTimeout time.Duration
}

// ServiceBusProvider asks the communication optimizer service for routing
// hints and the conflict detector for workflow update conflicts, mapping bus
// results onto the Advice contract with the confidence floor applied.
type ServiceBusProvider struct {
	bus  *servicebus.Bus
	opts ServiceBusOptions
}

// NewServiceBusProvider wraps a service bus as an advice provider.
func NewServiceBusProvider(bus *servicebus.Bus, optFns ...func(o *ServiceBusOptions)) *ServiceBusProvider {
	opts := ServiceBusOptions{RequestTimeout: 2 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ServiceBusProvider{bus: bus, opts: opts}
}

// Advise requests a routing hint for the message.
func (p *ServiceBusProvider) Advise(ctx context.Context, msg *messaging.Message) (*Advice, error) {
	result := p.bus.Request(ctx, routingService, routingEndpoint, map[string]any{
		"message_id":   msg.ID,
		"from_agent":   msg.From,
		"to_agent":     msg.To,
		"message_type": string(msg.Type),
		"priority":     int(msg.Priority),
		"workflow_id":  msg.WorkflowID,
	}, p.opts.RequestTimeout)

	return resultToAdvice(result)
}

// CheckConflict asks the conflict detector whether a workflow update clashes
// with concurrent changes.
func (p *ServiceBusProvider) CheckConflict(ctx context.Context, workflowID, agentID string, updates map[string]any) (*Advice, error) {
	result := p.bus.Request(ctx, conflictService, conflictEndpoint, map[string]any{
		"workflow_id": workflowID,
		"agent_id":    agentID,
		"updates":     updates,
	}, p.opts.RequestTimeout)

	return resultToAdvice(result)
}

func resultToAdvice(result servicebus.Result) (*Advice, error) {
	if !result.Success || result.ConfidenceScore < MinConfidence {
		return nil, ErrNoAdvice
	}
	advice := &Advice{Confidence: result.ConfidenceScore, Hints: result.Data}
	if target, ok := result.Data["target_agent"].(string); ok {
		advice.TargetAgent = target
	}
	return advice, nil
}
