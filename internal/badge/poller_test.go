package badge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/lagoon-messenger/internal/docstore/memory"
	"github.com/kgellert/lagoon-messenger/internal/rooms"
)

type counts struct {
	mu     sync.Mutex
	values []int64
}

func (c *counts) add(n int64) {
	c.mu.Lock()
	c.values = append(c.values, n)
	c.mu.Unlock()
}

func (c *counts) last() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.values) == 0 {
		return 0, false
	}
	return c.values[len(c.values)-1], true
}

func TestPollerReportsUnreadTotal(t *testing.T) {
	ctx := context.Background()
	dir := rooms.NewDirectory(memory.New(nil), 0)

	room, _, err := dir.Resolve(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, dir.RecordMessage(ctx, room.ID, "bob"))
	require.NoError(t, dir.RecordMessage(ctx, room.ID, "bob"))

	var got counts
	p := New(dir, "alice", 20*time.Millisecond, got.add, nil)
	p.Start()
	defer p.Stop()

	// immediate refresh on start
	require.Eventually(t, func() bool {
		n, ok := got.last()
		return ok && n == 2
	}, 2*time.Second, 5*time.Millisecond)

	// later ticks observe the marked-read room
	require.NoError(t, dir.MarkRead(ctx, room.ID, "alice"))
	require.Eventually(t, func() bool {
		n, ok := got.last()
		return ok && n == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPollerStopIsIdempotent(t *testing.T) {
	dir := rooms.NewDirectory(memory.New(nil), 0)

	var got counts
	p := New(dir, "alice", 10*time.Millisecond, got.add, nil)
	p.Start()

	require.Eventually(t, func() bool {
		_, ok := got.last()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop()

	got.mu.Lock()
	seen := len(got.values)
	got.mu.Unlock()

	// no further refreshes after stop (one tick may already be in flight)
	time.Sleep(50 * time.Millisecond)
	got.mu.Lock()
	after := len(got.values)
	got.mu.Unlock()
	assert.LessOrEqual(t, after, seen+1)
}
