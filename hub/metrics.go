package hub

import "sync/atomic"

// MetricsSnapshot is a point-in-time copy of the hub counters.
type MetricsSnapshot struct {
	ActiveAgents      int64
	MessagesSent      int64
	MessagesDelivered int64
	MessagesDropped   int64
	ResponsesResolved int64
}

// Metrics holds the hub's atomic counters. ActiveAgents is sourced from the
// registry gauge at snapshot time.
type Metrics struct {
	messagesSent      atomic.Int64
	messagesDelivered atomic.Int64
	messagesDropped   atomic.Int64
	responsesResolved atomic.Int64
}

// NewMetrics creates zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordSent counts an accepted send.
func (m *Metrics) RecordSent(delta int) { m.messagesSent.Add(int64(delta)) }

// RecordDelivered counts a message handed to a handler or receiver.
func (m *Metrics) RecordDelivered(delta int) { m.messagesDelivered.Add(int64(delta)) }

// RecordDropped counts a rejected or undeliverable message.
func (m *Metrics) RecordDropped(delta int) { m.messagesDropped.Add(int64(delta)) }

// RecordResponseResolved counts a correlation future resolved by a response.
func (m *Metrics) RecordResponseResolved(delta int) { m.responsesResolved.Add(int64(delta)) }

func (m *Metrics) snapshot(activeAgents int64) MetricsSnapshot {
	return MetricsSnapshot{
		ActiveAgents:      activeAgents,
		MessagesSent:      m.messagesSent.Load(),
		MessagesDelivered: m.messagesDelivered.Load(),
		MessagesDropped:   m.messagesDropped.Load(),
		ResponsesResolved: m.responsesResolved.Load(),
	}
}
