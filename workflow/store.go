package workflow

import (
	"errors"
	"sync"
	"time"
)

// Update describes a merge applied to a workflow context. Nil fields are
// skipped; maps are merged into the existing state, never replacing it
// wholesale.
type Update struct {
	Phase             *int
	CurrentStep       *string
	SharedData        map[string]any
	CoordinationState map[string]any
	CompletionStatus  map[string]bool
}

// Store errors. The hub translates these into soft failures; they exist so
// tests and embedders can branch precisely.
var (
	ErrNotFound       = errors.New("workflow context not found")
	ErrAlreadyExists  = errors.New("workflow context already exists")
	ErrNotParticipant = errors.New("agent is not a workflow participant")
)

// Store is a process-local map of active workflow contexts guarded by an
// RWMutex. Reads hand out copies; all mutation happens through Store methods.
type Store struct {
	mu       sync.RWMutex
	contexts map[string]*Context
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{contexts: make(map[string]*Context)}
}

// Create registers a new workflow context with every participant's completion
// flag initialized to false.
func (s *Store) Create(workflowID string, participants []string, initialData map[string]any) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.contexts[workflowID]; exists {
		return nil, ErrAlreadyExists
	}

	now := time.Now().UTC()
	wc := &Context{
		WorkflowID:          workflowID,
		ParticipatingAgents: append([]string(nil), participants...),
		SharedData:          cloneMap(initialData),
		CoordinationState:   make(map[string]any),
		Dependencies:        make(map[string][]string),
		CompletionStatus:    make(map[string]bool, len(participants)),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for _, id := range participants {
		wc.CompletionStatus[id] = false
	}

	s.contexts[workflowID] = wc
	return wc.clone(), nil
}

// Get returns a copy of the context, or ErrNotFound.
func (s *Store) Get(workflowID string) (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wc, ok := s.contexts[workflowID]
	if !ok {
		return nil, ErrNotFound
	}
	return wc.clone(), nil
}

// Update merges the given changes into the context. SharedData and
// CoordinationState entries overwrite same-named keys but leave the rest of
// the map intact; completion flags only change for the agents named in the
// update. UpdatedAt is bumped on every call.
func (s *Store) Update(workflowID string, update Update) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wc, ok := s.contexts[workflowID]
	if !ok {
		return nil, ErrNotFound
	}

	if update.Phase != nil {
		wc.Phase = *update.Phase
	}
	if update.CurrentStep != nil {
		wc.CurrentStep = *update.CurrentStep
	}
	for k, v := range update.SharedData {
		wc.SharedData[k] = v
	}
	for k, v := range update.CoordinationState {
		wc.CoordinationState[k] = v
	}
	for agentID, done := range update.CompletionStatus {
		if _, participant := wc.CompletionStatus[agentID]; participant {
			wc.CompletionStatus[agentID] = done
		}
	}
	wc.UpdatedAt = time.Now().UTC()

	return wc.clone(), nil
}

// SetCompleted marks one participant done. Unknown workflows return
// ErrNotFound; unknown agents return ErrNotParticipant.
func (s *Store) SetCompleted(workflowID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wc, ok := s.contexts[workflowID]
	if !ok {
		return ErrNotFound
	}
	if _, participant := wc.CompletionStatus[agentID]; !participant {
		return ErrNotParticipant
	}
	wc.CompletionStatus[agentID] = true
	wc.UpdatedAt = time.Now().UTC()
	return nil
}

// AddParticipant grows the participant set mid-flight (dynamic agents). The
// new agent starts incomplete. Adding an existing participant is a no-op.
func (s *Store) AddParticipant(workflowID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wc, ok := s.contexts[workflowID]
	if !ok {
		return ErrNotFound
	}
	if _, exists := wc.CompletionStatus[agentID]; exists {
		return nil
	}
	wc.ParticipatingAgents = append(wc.ParticipatingAgents, agentID)
	wc.CompletionStatus[agentID] = false
	wc.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes the context. Unknown ids are a no-op.
func (s *Store) Delete(workflowID string) {
	s.mu.Lock()
	delete(s.contexts, workflowID)
	s.mu.Unlock()
}

// List returns copies of every active context in unspecified order.
func (s *Store) List() []*Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Context, 0, len(s.contexts))
	for _, wc := range s.contexts {
		out = append(out, wc.clone())
	}
	return out
}

// Count returns the number of active contexts.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}

// ExpiredBefore returns the ids of contexts whose last update precedes the
// cutoff. The coordination monitor sweeps these so merge-forever contexts
// cannot grow unbounded.
func (s *Store) ExpiredBefore(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, wc := range s.contexts {
		if wc.UpdatedAt.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}
