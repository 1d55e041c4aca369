package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInitializesCompletion(t *testing.T) {
	s := NewStore()

	wc, err := s.Create("wf-1", []string{"a", "b"}, map[string]any{"goal": "x"})
	require.NoError(t, err)
	assert.Equal(t, "wf-1", wc.WorkflowID)
	assert.Equal(t, map[string]bool{"a": false, "b": false}, wc.CompletionStatus)
	assert.Equal(t, "x", wc.SharedData["goal"])
	assert.False(t, wc.IsComplete())

	_, err = s.Create("wf-1", nil, nil)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGetUnknown(t *testing.T) {
	s := NewStore()
	_, err := s.Get("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMergesWithoutReplacing(t *testing.T) {
	s := NewStore()
	_, err := s.Create("wf-1", []string{"a", "b"}, map[string]any{"keep": 1, "overwrite": "old"})
	require.NoError(t, err)

	phase := 2
	step := "analysis"
	wc, err := s.Update("wf-1", Update{
		Phase:             &phase,
		CurrentStep:       &step,
		SharedData:        map[string]any{"overwrite": "new", "added": true},
		CoordinationState: map[string]any{"lock": "a"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, wc.Phase)
	assert.Equal(t, "analysis", wc.CurrentStep)
	assert.Equal(t, 1, wc.SharedData["keep"], "unmentioned keys survive the merge")
	assert.Equal(t, "new", wc.SharedData["overwrite"])
	assert.Equal(t, true, wc.SharedData["added"])
	assert.Equal(t, "a", wc.CoordinationState["lock"])
}

func TestUpdateCompletionOnlyForParticipants(t *testing.T) {
	s := NewStore()
	_, err := s.Create("wf-1", []string{"a", "b"}, nil)
	require.NoError(t, err)

	wc, err := s.Update("wf-1", Update{CompletionStatus: map[string]bool{"a": true, "ghost": true}})
	require.NoError(t, err)
	assert.True(t, wc.CompletionStatus["a"])
	_, tracked := wc.CompletionStatus["ghost"]
	assert.False(t, tracked, "non-participants are not added by update")
}

func TestUpdateUnknownWorkflow(t *testing.T) {
	s := NewStore()
	_, err := s.Update("ghost", Update{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetCompleted(t *testing.T) {
	s := NewStore()
	_, err := s.Create("wf-1", []string{"a", "b"}, nil)
	require.NoError(t, err)

	require.NoError(t, s.SetCompleted("wf-1", "a"))
	wc, _ := s.Get("wf-1")
	assert.True(t, wc.CompletionStatus["a"])
	assert.False(t, wc.IsComplete())

	require.NoError(t, s.SetCompleted("wf-1", "b"))
	wc, _ = s.Get("wf-1")
	assert.True(t, wc.IsComplete())

	assert.ErrorIs(t, s.SetCompleted("wf-1", "ghost"), ErrNotParticipant)
	assert.ErrorIs(t, s.SetCompleted("ghost", "a"), ErrNotFound)
}

func TestIsCompleteEmptyIsFalse(t *testing.T) {
	wc := &Context{CompletionStatus: map[string]bool{}}
	assert.False(t, wc.IsComplete(), "a workflow with no participants never completes")
}

func TestAddParticipant(t *testing.T) {
	s := NewStore()
	_, err := s.Create("wf-1", []string{"a"}, nil)
	require.NoError(t, err)
	require.NoError(t, s.SetCompleted("wf-1", "a"))

	// a dynamic participant re-opens completion
	require.NoError(t, s.AddParticipant("wf-1", "b"))
	wc, _ := s.Get("wf-1")
	assert.False(t, wc.IsComplete())
	assert.Contains(t, wc.ParticipatingAgents, "b")

	// idempotent for existing participants
	require.NoError(t, s.AddParticipant("wf-1", "b"))
	wc, _ = s.Get("wf-1")
	assert.Len(t, wc.ParticipatingAgents, 2)

	assert.ErrorIs(t, s.AddParticipant("ghost", "b"), ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := NewStore()
	_, err := s.Create("wf-1", []string{"a"}, nil)
	require.NoError(t, err)

	s.Delete("wf-1")
	assert.Equal(t, 0, s.Count())
	s.Delete("wf-1") // no-op
	s.Delete("ghost")
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	_, err := s.Create("wf-1", []string{"a"}, map[string]any{"k": "v"})
	require.NoError(t, err)

	wc, _ := s.Get("wf-1")
	wc.SharedData["k"] = "mutated"
	wc.CompletionStatus["a"] = true

	fresh, _ := s.Get("wf-1")
	assert.Equal(t, "v", fresh.SharedData["k"])
	assert.False(t, fresh.CompletionStatus["a"])
}

func TestExpiredBefore(t *testing.T) {
	s := NewStore()
	_, err := s.Create("old", []string{"a"}, nil)
	require.NoError(t, err)

	assert.Empty(t, s.ExpiredBefore(time.Now().UTC().Add(-time.Hour)))

	expired := s.ExpiredBefore(time.Now().UTC().Add(time.Hour))
	assert.Equal(t, []string{"old"}, expired)
}
