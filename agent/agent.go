package agent

import (
	"time"
)

// Role describes an agent's position in a multi-agent workflow.
type Role string

const (
	RoleOrchestrator Role = "orchestrator"
	RoleSpecialist   Role = "specialist"
	RoleValidator    Role = "validator"
	RoleCoordinator  Role = "coordinator"
	RoleUtility      Role = "utility"
)

// Status tracks an agent's availability as seen by the hub.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
)

// DefaultMaxConcurrentTasks bounds how many messages the dispatch loop hands
// an agent at once when the registration does not say otherwise.
const DefaultMaxConcurrentTasks = 3

// Info is the registration record for one participant. CurrentTaskCount,
// Status and LastSeen are mutated only through Registry methods so locking
// stays in one place.
type Info struct {
	AgentID         string
	AgentType       string
	Role            Role
	Capabilities    []string
	Specializations []string

	MaxConcurrentTasks int
	CurrentTaskCount   int

	Status             Status
	LastSeen           time.Time
	PerformanceMetrics map[string]float64
}

// HasCapability reports whether the agent advertises the given capability tag.
func (i *Info) HasCapability(tag string) bool {
	for _, c := range i.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// LoadFactor returns current load as a fraction of capacity in [0, 1].
func (i *Info) LoadFactor() float64 {
	if i.MaxConcurrentTasks <= 0 {
		return 0
	}
	f := float64(i.CurrentTaskCount) / float64(i.MaxConcurrentTasks)
	if f > 1 {
		return 1
	}
	return f
}

// clone returns a copy safe to hand to callers. Slices and the metrics map
// are copied; values are plain.
func (i *Info) clone() *Info {
	clone := *i
	clone.Capabilities = append([]string(nil), i.Capabilities...)
	clone.Specializations = append([]string(nil), i.Specializations...)
	if i.PerformanceMetrics != nil {
		clone.PerformanceMetrics = make(map[string]float64, len(i.PerformanceMetrics))
		for k, v := range i.PerformanceMetrics {
			clone.PerformanceMetrics[k] = v
		}
	}
	return &clone
}
