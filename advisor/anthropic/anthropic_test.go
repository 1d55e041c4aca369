package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthub/advisor"
	"github.com/hupe1980/agenthub/messaging"
)

func TestParseAdvice(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		advice, err := parseAdvice(`{"target_agent": "w2", "confidence": 0.8, "reason": "idle"}`)
		require.NoError(t, err)
		assert.Equal(t, "w2", advice.TargetAgent)
		assert.Equal(t, 0.8, advice.Confidence)
		assert.Equal(t, "idle", advice.Hints["reason"])
	})

	t.Run("json wrapped in prose", func(t *testing.T) {
		advice, err := parseAdvice("Here is my assessment:\n{\"target_agent\": \"w1\", \"confidence\": 0.75}\nHope that helps.")
		require.NoError(t, err)
		assert.Equal(t, "w1", advice.TargetAgent)
	})

	t.Run("below confidence floor", func(t *testing.T) {
		_, err := parseAdvice(`{"target_agent": "w2", "confidence": 0.3}`)
		assert.ErrorIs(t, err, advisor.ErrNoAdvice)
	})

	t.Run("no json at all", func(t *testing.T) {
		_, err := parseAdvice("I cannot answer that.")
		assert.ErrorIs(t, err, advisor.ErrNoAdvice)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := parseAdvice(`{"target_agent": `)
		assert.ErrorIs(t, err, advisor.ErrNoAdvice)
	})
}

func TestBuildPrompt(t *testing.T) {
	msg := messaging.NewRequest("a", "b", nil).Workflow("wf-1").Build()

	prompt := buildPrompt(msg, []string{"w1", "w2"})
	assert.Contains(t, prompt, `"from_agent":"a"`)
	assert.Contains(t, prompt, `"workflow_id":"wf-1"`)
	assert.Contains(t, prompt, "candidate_agents")

	prompt = buildPrompt(msg, nil)
	assert.NotContains(t, prompt, "candidate_agents")
}
