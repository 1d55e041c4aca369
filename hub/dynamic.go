package hub

import (
	"context"

	"github.com/hupe1980/agenthub/agent"
	"github.com/hupe1980/agenthub/messaging"
)

// Scoring weights for the built-in agent matcher. Capability fit dominates;
// load and track record break ties.
const (
	capabilityWeight = 0.5
	loadWeight       = 0.3
	successWeight    = 0.2

	// neutralSuccessRate stands in for agents that have not reported a
	// success_rate metric yet.
	neutralSuccessRate = 0.5
)

// matchAgentRequest is the built-in dynamic handler for agent requests. It
// scores every registered agent by capability overlap with the request,
// remaining capacity and the success_rate performance metric, then answers
// the requester with the best candidate or a denial.
func matchAgentRequest(ctx context.Context, h *Hub, msg *messaging.Message) bool {
	required := stringSlice(msg.Content["required_capabilities"])

	bestID := ""
	bestScore := 0.0
	for _, info := range h.registry.List() {
		if info.AgentID == msg.From || info.Status == agent.StatusOffline {
			continue
		}
		score, eligible := scoreCandidate(info, required)
		if !eligible {
			continue
		}
		if score > bestScore {
			bestID, bestScore = info.AgentID, score
		}
	}

	if bestID == "" {
		h.logger.Debug("no agent matched request", "message_id", msg.ID, "requester", msg.From)
		return h.SendResponse(ctx, msg, map[string]any{"granted": false})
	}

	h.logger.Debug("agent request granted", "message_id", msg.ID, "requester", msg.From, "assigned_agent", bestID, "score", bestScore)
	return h.SendResponse(ctx, msg, map[string]any{
		"granted":        true,
		"assigned_agent": bestID,
		"score":          bestScore,
	})
}

// scoreCandidate combines capability overlap, remaining capacity and success
// rate into one score. Agents matching none of the required capabilities are
// ineligible when capabilities were requested at all.
func scoreCandidate(info *agent.Info, required []string) (float64, bool) {
	overlap := 1.0
	if len(required) > 0 {
		matched := 0
		for _, tag := range required {
			if info.HasCapability(tag) {
				matched++
			}
		}
		if matched == 0 {
			return 0, false
		}
		overlap = float64(matched) / float64(len(required))
	}

	successRate := neutralSuccessRate
	if rate, ok := info.PerformanceMetrics["success_rate"]; ok {
		successRate = rate
	}

	score := capabilityWeight*overlap +
		loadWeight*(1-info.LoadFactor()) +
		successWeight*successRate
	return score, true
}

func stringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
