package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthub/messaging"
)

func notification(p messaging.Priority, tag string) *messaging.Message {
	return messaging.NewNotification("a", "b", map[string]any{"tag": tag}).Priority(p).Build()
}

func TestPushPopFIFO(t *testing.T) {
	mb := New()
	require.True(t, mb.Push(notification(messaging.PriorityNormal, "first")))
	require.True(t, mb.Push(notification(messaging.PriorityNormal, "second")))

	msg, ok := mb.Pop(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, "first", msg.Content["tag"])

	msg, ok = mb.Pop(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, "second", msg.Content["tag"])
	assert.Equal(t, 0, mb.Len())
}

func TestPopTimesOut(t *testing.T) {
	mb := New()
	start := time.Now()
	msg, ok := mb.Pop(context.Background(), 30*time.Millisecond)
	assert.False(t, ok)
	assert.Nil(t, msg)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestPopWakesOnPush(t *testing.T) {
	mb := New()
	go func() {
		time.Sleep(20 * time.Millisecond)
		mb.Push(notification(messaging.PriorityNormal, "late"))
	}()

	msg, ok := mb.Pop(context.Background(), time.Second)
	require.True(t, ok)
	assert.Equal(t, "late", msg.Content["tag"])
}

func TestPopHonorsContext(t *testing.T) {
	mb := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := mb.Pop(ctx, time.Second)
	assert.False(t, ok)
}

func TestTryPop(t *testing.T) {
	mb := New()
	_, ok := mb.TryPop()
	assert.False(t, ok)

	mb.Push(notification(messaging.PriorityNormal, "x"))
	msg, ok := mb.TryPop()
	require.True(t, ok)
	assert.Equal(t, "x", msg.Content["tag"])
}

func TestDrainBatchPicksByPriority(t *testing.T) {
	mb := New()
	mb.Push(notification(messaging.PriorityLow, "low"))
	mb.Push(notification(messaging.PriorityBackground, "background"))
	mb.Push(notification(messaging.PriorityNormal, "normal"))
	mb.Push(notification(messaging.PriorityCritical, "critical"))
	mb.Push(notification(messaging.PriorityHigh, "high"))

	batch := mb.DrainBatch(5)
	require.Len(t, batch, 5)
	tags := make([]string, len(batch))
	for i, msg := range batch {
		tags[i] = msg.Content["tag"].(string)
	}
	assert.Equal(t, []string{"critical", "high", "normal", "low", "background"}, tags)
}

func TestDrainBatchSelectsAcrossWholeQueue(t *testing.T) {
	// A capacity-one drain must still pick the highest-priority message even
	// when it sits at the back of the queue.
	mb := New()
	mb.Push(notification(messaging.PriorityLow, "low"))
	mb.Push(notification(messaging.PriorityNormal, "normal"))
	mb.Push(notification(messaging.PriorityCritical, "critical"))

	batch := mb.DrainBatch(1)
	require.Len(t, batch, 1)
	assert.Equal(t, "critical", batch[0].Content["tag"])
	assert.Equal(t, 2, mb.Len())

	// remainder keeps arrival order for plain pops
	msg, ok := mb.TryPop()
	require.True(t, ok)
	assert.Equal(t, "low", msg.Content["tag"])
}

func TestDrainBatchStableWithinPriority(t *testing.T) {
	mb := New()
	mb.Push(notification(messaging.PriorityNormal, "n1"))
	mb.Push(notification(messaging.PriorityNormal, "n2"))
	mb.Push(notification(messaging.PriorityNormal, "n3"))

	batch := mb.DrainBatch(3)
	require.Len(t, batch, 3)
	assert.Equal(t, "n1", batch[0].Content["tag"])
	assert.Equal(t, "n2", batch[1].Content["tag"])
	assert.Equal(t, "n3", batch[2].Content["tag"])
}

func TestDrainBatchLimits(t *testing.T) {
	mb := New()
	assert.Nil(t, mb.DrainBatch(0))
	assert.Nil(t, mb.DrainBatch(-1))
	assert.Nil(t, mb.DrainBatch(3), "empty mailbox drains nothing")

	mb.Push(notification(messaging.PriorityNormal, "only"))
	batch := mb.DrainBatch(10)
	assert.Len(t, batch, 1)
}

func TestClose(t *testing.T) {
	mb := New()
	mb.Push(notification(messaging.PriorityNormal, "queued"))

	mb.Close()
	assert.True(t, mb.IsClosed())
	assert.Equal(t, 0, mb.Len(), "close discards queued messages")
	assert.False(t, mb.Push(notification(messaging.PriorityNormal, "late")))

	_, ok := mb.Pop(context.Background(), 10*time.Millisecond)
	assert.False(t, ok)

	mb.Close() // second close is a no-op
}

func TestCloseWakesBlockedPop(t *testing.T) {
	mb := New()
	done := make(chan bool, 1)
	go func() {
		_, ok := mb.Pop(context.Background(), 5*time.Second)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	mb.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("pop did not return after close")
	}
}
