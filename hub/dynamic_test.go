package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/agenthub/agent"
)

func TestScoreCandidate(t *testing.T) {
	t.Run("no required capabilities keeps everyone eligible", func(t *testing.T) {
		info := &agent.Info{AgentID: "w", MaxConcurrentTasks: 2}
		score, eligible := scoreCandidate(info, nil)
		assert.True(t, eligible)
		// full overlap, zero load, neutral success rate
		assert.InDelta(t, capabilityWeight+loadWeight+successWeight*neutralSuccessRate, score, 1e-9)
	})

	t.Run("zero overlap is ineligible", func(t *testing.T) {
		info := &agent.Info{AgentID: "w", Capabilities: []string{"draw"}, MaxConcurrentTasks: 2}
		_, eligible := scoreCandidate(info, []string{"analyze"})
		assert.False(t, eligible)
	})

	t.Run("partial overlap scores proportionally", func(t *testing.T) {
		full := &agent.Info{AgentID: "full", Capabilities: []string{"analyze", "report"}, MaxConcurrentTasks: 2}
		half := &agent.Info{AgentID: "half", Capabilities: []string{"analyze"}, MaxConcurrentTasks: 2}

		fullScore, _ := scoreCandidate(full, []string{"analyze", "report"})
		halfScore, _ := scoreCandidate(half, []string{"analyze", "report"})
		assert.Greater(t, fullScore, halfScore)
	})

	t.Run("load lowers the score", func(t *testing.T) {
		idle := &agent.Info{AgentID: "idle", MaxConcurrentTasks: 2}
		busy := &agent.Info{AgentID: "busy", MaxConcurrentTasks: 2, CurrentTaskCount: 2}

		idleScore, _ := scoreCandidate(idle, nil)
		busyScore, _ := scoreCandidate(busy, nil)
		assert.Greater(t, idleScore, busyScore)
	})

	t.Run("success rate breaks ties", func(t *testing.T) {
		proven := &agent.Info{AgentID: "proven", MaxConcurrentTasks: 2, PerformanceMetrics: map[string]float64{"success_rate": 0.99}}
		unknown := &agent.Info{AgentID: "unknown", MaxConcurrentTasks: 2}

		provenScore, _ := scoreCandidate(proven, nil)
		unknownScore, _ := scoreCandidate(unknown, nil)
		assert.Greater(t, provenScore, unknownScore)
	})
}

func TestStringSlice(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, stringSlice([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, stringSlice([]any{"a", "b", 3}), "non-strings are skipped")
	assert.Nil(t, stringSlice("not a slice"))
	assert.Nil(t, stringSlice(nil))
}
