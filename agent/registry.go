package agent

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/agenthub/logging"
)

// Registry holds the registration records for all participating agents. All
// methods are goroutine-safe; reads hand out copies so callers can never
// mutate shared state directly.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Info

	active atomic.Int64
	logger logging.Logger
}

// NewRegistry creates an empty registry. A nil logger is replaced with the
// no-op logger.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Registry{
		agents: make(map[string]*Info),
		logger: logger,
	}
}

// Register inserts or overwrites the record keyed by AgentID. Re-registration
// is idempotent. Register never propagates an error to the caller: a record
// without an id is logged and reported as false.
func (r *Registry) Register(info *Info) bool {
	if info == nil || info.AgentID == "" {
		r.logger.Warn("rejected agent registration without agent id")
		return false
	}

	registered := info.clone()
	if registered.MaxConcurrentTasks <= 0 {
		registered.MaxConcurrentTasks = DefaultMaxConcurrentTasks
	}
	if registered.Status == "" {
		registered.Status = StatusAvailable
	}
	registered.CurrentTaskCount = 0
	registered.LastSeen = time.Now().UTC()

	r.mu.Lock()
	_, replaced := r.agents[registered.AgentID]
	r.agents[registered.AgentID] = registered
	r.mu.Unlock()

	if !replaced {
		r.active.Add(1)
	}

	r.logger.Debug("agent registered", "agent_id", registered.AgentID, "role", string(registered.Role), "replaced", replaced)
	return true
}

// Unregister removes the record. Unknown ids are a no-op, not an error; the
// return value reports whether a record was actually removed.
func (r *Registry) Unregister(agentID string) bool {
	r.mu.Lock()
	_, exists := r.agents[agentID]
	if exists {
		delete(r.agents, agentID)
	}
	r.mu.Unlock()

	if exists {
		r.active.Add(-1)
		r.logger.Debug("agent unregistered", "agent_id", agentID)
	}
	return exists
}

// Get returns a copy of the record, or nil when unknown.
func (r *Registry) Get(agentID string) *Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if info, ok := r.agents[agentID]; ok {
		return info.clone()
	}
	return nil
}

// List returns copies of every record in unspecified order.
func (r *Registry) List() []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Info, 0, len(r.agents))
	for _, info := range r.agents {
		out = append(out, info.clone())
	}
	return out
}

// IDs returns every registered agent id in unspecified order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.agents))
	for id := range r.agents {
		out = append(out, id)
	}
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// ActiveAgents exposes the registration gauge for observability.
func (r *Registry) ActiveAgents() int64 { return r.active.Load() }

// Touch updates LastSeen for the agent.
func (r *Registry) Touch(agentID string) {
	r.mu.Lock()
	if info, ok := r.agents[agentID]; ok {
		info.LastSeen = time.Now().UTC()
	}
	r.mu.Unlock()
}

// AdjustTaskCount applies a delta to CurrentTaskCount, clamping at zero, and
// derives Status from the resulting load. Returns the new count, or -1 when
// the agent is unknown.
func (r *Registry) AdjustTaskCount(agentID string, delta int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.agents[agentID]
	if !ok {
		return -1
	}

	info.CurrentTaskCount += delta
	if info.CurrentTaskCount < 0 {
		info.CurrentTaskCount = 0
	}

	if info.Status != StatusOffline {
		if info.CurrentTaskCount >= info.MaxConcurrentTasks {
			info.Status = StatusBusy
		} else {
			info.Status = StatusAvailable
		}
	}
	return info.CurrentTaskCount
}

// AvailableCapacity returns how many messages the agent can take right now
// (max concurrent minus in-flight, floored at zero). Unknown agents have no
// capacity.
func (r *Registry) AvailableCapacity(agentID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.agents[agentID]
	if !ok {
		return 0
	}
	capacity := info.MaxConcurrentTasks - info.CurrentTaskCount
	if capacity < 0 {
		return 0
	}
	return capacity
}

// SetStatus overrides the agent's status (e.g. marking it offline while it
// restarts). Unknown ids are ignored.
func (r *Registry) SetStatus(agentID string, status Status) {
	r.mu.Lock()
	if info, ok := r.agents[agentID]; ok {
		info.Status = status
	}
	r.mu.Unlock()
}

// SetMetric records a performance metric (e.g. success_rate) on the agent.
func (r *Registry) SetMetric(agentID, name string, value float64) {
	r.mu.Lock()
	if info, ok := r.agents[agentID]; ok {
		if info.PerformanceMetrics == nil {
			info.PerformanceMetrics = make(map[string]float64)
		}
		info.PerformanceMetrics[name] = value
	}
	r.mu.Unlock()
}
