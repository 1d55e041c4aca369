package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agenthub/logging"
	"github.com/hupe1980/agenthub/messaging"
)

func newTestTable() *correlationTable {
	return newCorrelationTable(logging.NoOpLogger{})
}

func TestCorrelationResolveThenWait(t *testing.T) {
	table := newTestTable()
	table.arm("req-1", time.Second)

	response := messaging.NewResponse("b", "a", "req-1", map[string]any{"ok": true}).Build()

	// the response can land before anyone waits; it must be retained
	require.True(t, table.resolve("req-1", response))

	got := table.wait(context.Background(), "req-1", 100*time.Millisecond)
	require.NotNil(t, got)
	assert.Equal(t, true, got.Content["ok"])
}

func TestCorrelationWaitThenResolve(t *testing.T) {
	table := newTestTable()
	table.arm("req-1", time.Second)

	go func() {
		time.Sleep(20 * time.Millisecond)
		table.resolve("req-1", messaging.NewResponse("b", "a", "req-1", nil).Build())
	}()

	got := table.wait(context.Background(), "req-1", time.Second)
	assert.NotNil(t, got)
}

func TestCorrelationSecondWaitIsNil(t *testing.T) {
	table := newTestTable()
	table.arm("req-1", time.Second)
	require.True(t, table.resolve("req-1", messaging.NewResponse("b", "a", "req-1", nil).Build()))

	require.NotNil(t, table.wait(context.Background(), "req-1", 100*time.Millisecond))

	// the entry is evicted on return, so waiting again reports no response
	assert.Nil(t, table.wait(context.Background(), "req-1", 20*time.Millisecond))
	assert.Equal(t, 0, table.size())
}

func TestCorrelationWaitTimeout(t *testing.T) {
	table := newTestTable()
	table.arm("req-1", time.Second)

	got := table.wait(context.Background(), "req-1", 20*time.Millisecond)
	assert.Nil(t, got)
	assert.Equal(t, 0, table.size(), "timed-out wait evicts the entry")
}

func TestCorrelationTimerEviction(t *testing.T) {
	table := newTestTable()
	table.arm("req-1", 20*time.Millisecond)

	assert.Eventually(t, func() bool { return table.size() == 0 }, time.Second, 5*time.Millisecond)

	// a response after eviction has nowhere to go
	assert.False(t, table.resolve("req-1", messaging.NewResponse("b", "a", "req-1", nil).Build()))
}

func TestCorrelationResolveUnknown(t *testing.T) {
	table := newTestTable()
	assert.False(t, table.resolve("ghost", messaging.NewResponse("b", "a", "ghost", nil).Build()))
}

func TestCorrelationWaitUnknown(t *testing.T) {
	table := newTestTable()
	assert.Nil(t, table.wait(context.Background(), "ghost", 20*time.Millisecond))
}

func TestCorrelationDoubleResolve(t *testing.T) {
	table := newTestTable()
	table.arm("req-1", time.Second)

	first := messaging.NewResponse("b", "a", "req-1", map[string]any{"n": 1}).Build()
	second := messaging.NewResponse("c", "a", "req-1", map[string]any{"n": 2}).Build()

	assert.True(t, table.resolve("req-1", first))
	assert.False(t, table.resolve("req-1", second), "later responses are dropped")

	got := table.wait(context.Background(), "req-1", 100*time.Millisecond)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Content["n"])
}

func TestCorrelationWaitHonorsContext(t *testing.T) {
	table := newTestTable()
	table.arm("req-1", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, table.wait(ctx, "req-1", time.Second))
}
