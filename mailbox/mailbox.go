package mailbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agenthub/messaging"
)

// entry pairs a queued message with its arrival sequence so the batch sort
// stays stable across equal priorities.
type entry struct {
	seq     uint64
	message *messaging.Message
}

// Mailbox is one agent's inbound queue: unbounded FIFO at enqueue time,
// reordered by priority only within a drain batch. It intentionally is not a
// global priority heap — a low-priority message enqueued before a drain cycle
// can be dispatched before a high-priority message enqueued just after, since
// each cycle only sorts what it currently sees.
type Mailbox struct {
	mu      sync.Mutex
	entries []entry
	nextSeq uint64
	closed  bool

	// wakeup carries at most one pending signal; Pop re-checks the queue
	// after every receive so coalesced signals are fine.
	wakeup chan struct{}
}

// New creates an empty open mailbox.
func New() *Mailbox {
	return &Mailbox{wakeup: make(chan struct{}, 1)}
}

// Push enqueues a message. Pushes always succeed while the mailbox is open;
// the return value is false only after Close.
func (m *Mailbox) Push(msg *messaging.Message) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.entries = append(m.entries, entry{seq: m.nextSeq, message: msg})
	m.nextSeq++
	m.mu.Unlock()

	select {
	case m.wakeup <- struct{}{}:
	default:
	}
	return true
}

// Pop removes the oldest message, waiting up to timeout for one to arrive.
// Returns false on timeout, context cancellation or a closed empty mailbox;
// none of these are errors.
func (m *Mailbox) Pop(ctx context.Context, timeout time.Duration) (*messaging.Message, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		m.mu.Lock()
		if len(m.entries) > 0 {
			msg := m.entries[0].message
			m.entries = m.entries[1:]
			m.mu.Unlock()
			return msg, true
		}
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return nil, false
		}

		select {
		case <-m.wakeup:
		case <-deadline.C:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// TryPop removes the oldest message without waiting.
func (m *Mailbox) TryPop() (*messaging.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return nil, false
	}
	msg := m.entries[0].message
	m.entries = m.entries[1:]
	return msg, true
}

// DrainBatch removes up to limit messages, picked by priority ascending with
// ties broken by arrival sequence, and returns them in that order. The sort
// only considers messages queued at the moment of the call: a high-priority
// message arriving right after a drain waits for the next cycle behind
// whatever that cycle already took.
func (m *Mailbox) DrainBatch(limit int) []*messaging.Message {
	if limit <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := limit
	if n > len(m.entries) {
		n = len(m.entries)
	}
	if n == 0 {
		return nil
	}

	sorted := make([]entry, len(m.entries))
	copy(sorted, m.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].message.Priority != sorted[j].message.Priority {
			return sorted[i].message.Priority < sorted[j].message.Priority
		}
		return sorted[i].seq < sorted[j].seq
	})

	taken := make(map[uint64]struct{}, n)
	out := make([]*messaging.Message, n)
	for i := 0; i < n; i++ {
		taken[sorted[i].seq] = struct{}{}
		out[i] = sorted[i].message
	}

	// Keep the remainder in arrival order so plain pops stay FIFO.
	remaining := m.entries[:0]
	for _, e := range m.entries {
		if _, ok := taken[e.seq]; !ok {
			remaining = append(remaining, e)
		}
	}
	m.entries = remaining

	return out
}

// Len returns the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close marks the mailbox closed and wakes any blocked Pop. Queued messages
// are discarded; subsequent pushes fail.
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.entries = nil
	m.mu.Unlock()

	select {
	case m.wakeup <- struct{}{}:
	default:
	}
}

// IsClosed reports whether Close has been called.
func (m *Mailbox) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
