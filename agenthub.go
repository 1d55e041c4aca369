// Package agenthub provides a high-level façade over the communication hub
// and its collaborators (agent registry, workflow store, service bus &
// logging) enabling rapid construction of multi-agent coordination systems.
// Most applications interact with this package by:
//  1. Creating an AgentHub via New() (optionally wiring a service bus or
//     advice provider)
//  2. Registering agents and their message handlers
//  3. Sending messages, awaiting responses and coordinating through workflow
//     contexts
//
// The façade delegates routing to hub.Hub while keeping setup and teardown
// ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a service bus for
// ML-assisted routing and a structured logger. There are no package-level
// singletons: construct one AgentHub at process start and pass it by
// reference, or use Run for scoped acquisition with guaranteed teardown.
package agenthub

import (
	"context"
	"time"

	"github.com/hupe1980/agenthub/advisor"
	"github.com/hupe1980/agenthub/agent"
	"github.com/hupe1980/agenthub/hub"
	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/messaging"
	"github.com/hupe1980/agenthub/servicebus"
)

// DefaultStopTimeout bounds teardown in Stop and Run.
const DefaultStopTimeout = 5 * time.Second

// Options configures the AgentHub instance.
type Options struct {
	// Name is the sender id on hub-originated coordination messages.
	Name string

	// DispatchInterval is the mailbox drain cadence (default 75ms).
	DispatchInterval time.Duration
	// MonitorInterval is the workflow monitor cadence (default 5s).
	MonitorInterval time.Duration
	// WorkflowTTL expires idle workflow contexts (default 1h, 0 disables).
	WorkflowTTL time.Duration

	// ServiceBus, when set, is started and stopped with the hub and becomes
	// the default advice provider and conflict checker unless overridden.
	ServiceBus *servicebus.Bus
	// Advisor overrides the routing-hint provider.
	Advisor advisor.Provider
	// ConflictChecker overrides the workflow conflict checker.
	ConflictChecker advisor.ConflictChecker

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentHub is the high-level façade aggregating the hub and its services.
type AgentHub struct {
	opts Options
	hub  *hub.Hub
	bus  *servicebus.Bus
}

// New creates a new AgentHub instance with optional overrides. A configured
// service bus is wrapped as the advice provider when none is supplied.
func New(optFns ...func(o *Options)) *AgentHub {
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

	if opts.ServiceBus != nil && (opts.Advisor == nil || opts.ConflictChecker == nil) {
		provider := advisor.NewServiceBusProvider(opts.ServiceBus)
		if opts.Advisor == nil {
			opts.Advisor = provider
		}
		if opts.ConflictChecker == nil {
			opts.ConflictChecker = provider
		}
	}

	h := hub.New(func(o *hub.Options) {
		o.Name = opts.Name
		o.DispatchInterval = opts.DispatchInterval
		o.MonitorInterval = opts.MonitorInterval
		o.WorkflowTTL = opts.WorkflowTTL
		o.Advisor = opts.Advisor
		o.ConflictChecker = opts.ConflictChecker
		o.Logger = opts.Logger
	})

	return &AgentHub{opts: opts, hub: h, bus: opts.ServiceBus}
}

// Hub exposes the underlying communication hub.
func (m *AgentHub) Hub() *hub.Hub { return m.hub }

// ServiceBus exposes the configured service bus, or nil.
func (m *AgentHub) ServiceBus() *servicebus.Bus { return m.bus }

// Start launches the hub loops and, when configured, the service bus health
// poller. Idempotent.
func (m *AgentHub) Start(ctx context.Context) {
	if m.bus != nil {
		m.bus.Start(ctx)
	}
	m.hub.Start(ctx)
}

// Stop tears down the hub loops and the owned service bus, waiting up to
// timeout for the loops to exit.
func (m *AgentHub) Stop(timeout time.Duration) error {
	err := m.hub.Stop(timeout)
	if m.bus != nil {
		m.bus.Stop()
	}
	return err
}

// RegisterAgent adds an agent and its handlers to the hub.
func (m *AgentHub) RegisterAgent(info *agent.Info, handlers map[messaging.MessageType]hub.Handler) bool {
	return m.hub.RegisterAgent(info, handlers)
}

// SendMessage routes a message through the hub.
func (m *AgentHub) SendMessage(ctx context.Context, msg *messaging.Message) bool {
	return m.hub.SendMessage(ctx, msg)
}

// Request is a synchronous helper: it sends a request that requires a
// response and waits for the correlated reply, returning nil on timeout.
func (m *AgentHub) Request(ctx context.Context, from, to string, content map[string]any, timeout time.Duration) *messaging.Message {
	msg := messaging.NewRequest(from, to, content).RequiresResponse(timeout).Build()
	if !m.hub.SendMessage(ctx, msg) {
		return nil
	}
	return m.hub.WaitForResponse(ctx, msg.ID, msg.ResponseTimeout)
}

// Run constructs an AgentHub, starts it, invokes fn and guarantees teardown
// on all exit paths. It replaces the singleton-acquisition pattern for
// callers that want scoped lifetime management.
func Run(ctx context.Context, fn func(ctx context.Context, m *AgentHub) error, optFns ...func(o *Options)) error {
	m := New(optFns...)
	m.Start(ctx)
	defer func() { _ = m.Stop(DefaultStopTimeout) }()

	return fn(ctx, m)
}
