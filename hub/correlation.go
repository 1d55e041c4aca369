package hub

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/messaging"
)

// pending is one armed correlation future. The channel is buffered so a
// response arriving before anyone waits is retained until the waiter shows up
// or the timer evicts the entry.
type pending struct {
	ch    chan *messaging.Message
	timer *time.Timer
}

// correlationTable maps request message ids to response futures. Every entry
// is paired with an eviction timer so a request nobody answers (or nobody
// waits on) cannot leak.
type correlationTable struct {
	mu      sync.Mutex
	entries map[string]*pending
	logger  logging.Logger
}

func newCorrelationTable(logger logging.Logger) *correlationTable {
	return &correlationTable{
		entries: make(map[string]*pending),
		logger:  logger,
	}
}

// arm registers a future for the message id, evicted automatically after
// timeout. Re-arming an id replaces the previous entry.
func (t *correlationTable) arm(messageID string, timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.entries[messageID]; ok {
		prev.timer.Stop()
	}

	p := &pending{ch: make(chan *messaging.Message, 1)}
	p.timer = time.AfterFunc(timeout, func() {
		t.evict(messageID)
		t.logger.Debug("correlation entry timed out", "message_id", messageID)
	})
	t.entries[messageID] = p
}

// resolve delivers a response to the waiting future. The entry stays in the
// table (the buffered channel holds the value) until the waiter collects it
// or the timer fires, so a response racing ahead of WaitForResponse is not
// lost. Returns false when no future is armed for the id.
func (t *correlationTable) resolve(parentMessageID string, response *messaging.Message) bool {
	t.mu.Lock()
	p, ok := t.entries[parentMessageID]
	t.mu.Unlock()

	if !ok {
		return false
	}
	select {
	case p.ch <- response:
		return true
	default:
		// already resolved once; later responses are dropped
		return false
	}
}

// wait blocks until the future resolves, the timeout elapses or the context
// ends. The entry is evicted on every exit path, so a second wait on the same
// id reports no response.
func (t *correlationTable) wait(ctx context.Context, messageID string, timeout time.Duration) *messaging.Message {
	t.mu.Lock()
	p, ok := t.entries[messageID]
	t.mu.Unlock()

	if !ok {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	defer t.evict(messageID)

	select {
	case response := <-p.ch:
		return response
	case <-deadline.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// evict removes the entry and stops its timer. Safe to call repeatedly.
func (t *correlationTable) evict(messageID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.entries[messageID]; ok {
		p.timer.Stop()
		delete(t.entries, messageID)
	}
}

// size returns the number of armed futures (tests and metrics).
func (t *correlationTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
