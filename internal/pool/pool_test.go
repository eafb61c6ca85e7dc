package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewPool(t *testing.T) {
	p := New(3)

	assert.Equal(t, 3, p.Capacity())
	assert.Equal(t, Stats{Total: 3, Busy: 0, Available: 3}, p.Stats())

	agents := p.Agents()
	require.Len(t, agents, 3)
	for i, a := range agents {
		assert.Equal(t, fmt.Sprintf("agent-%d", i+1), a.ID)
		assert.False(t, a.Busy)
		assert.Zero(t, a.Completed)
	}

	assert.Equal(t, 1, New(0).Capacity(), "capacity is clamped to one")
}

func TestAcquireSuspendsUntilRelease(t *testing.T) {
	ctx := context.Background()
	p := New(2)

	first, err := p.Acquire(ctx, "W1")
	require.NoError(t, err)
	second, err := p.Acquire(ctx, "W2")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", first)
	assert.Equal(t, "agent-2", second)

	got := make(chan string, 1)
	go func() {
		id, err := p.Acquire(ctx, "W3")
		if err == nil {
			got <- id
		}
	}()

	select {
	case id := <-got:
		t.Fatalf("third acquire should suspend, got %s", id)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, p.Release(first, true))

	select {
	case id := <-got:
		assert.Equal(t, "agent-1", id)
	case <-time.After(time.Second):
		t.Fatal("third acquire was not woken by release")
	}

	info, ok := p.Agent("agent-1")
	require.True(t, ok)
	assert.Equal(t, "W3", info.CurrentItem)
	assert.Equal(t, 1, info.Completed)

	require.NoError(t, p.Release("agent-1", true))
	require.NoError(t, p.Release(second, true))
	assert.Equal(t, 2, p.Stats().Available)
}

func TestAcquirePrefersLeastCompletedSlot(t *testing.T) {
	ctx := context.Background()
	p := New(3)

	acquire := func(item string) string {
		t.Helper()
		id, err := p.Acquire(ctx, item)
		require.NoError(t, err)
		return id
	}

	require.Equal(t, "agent-1", acquire("a"))
	require.Equal(t, "agent-2", acquire("b"))
	require.Equal(t, "agent-3", acquire("c"))

	require.NoError(t, p.Release("agent-1", true))
	require.NoError(t, p.Release("agent-2", true))
	require.NoError(t, p.Release("agent-3", false))

	// completed: agent-1=1, agent-2=1, agent-3=0
	assert.Equal(t, "agent-3", acquire("d"))
	require.NoError(t, p.Release("agent-3", true))

	// all tied at one: lowest slot number wins
	assert.Equal(t, "agent-1", acquire("e"))
	assert.Equal(t, "agent-2", acquire("f"))
	require.NoError(t, p.Release("agent-1", true))

	// idle: agent-1=2, agent-3=1
	assert.Equal(t, "agent-3", acquire("g"))
}

func TestReleaseErrors(t *testing.T) {
	p := New(1)
	assert.Error(t, p.Release("agent-9", true))
	assert.Error(t, p.Release("agent-1", true), "idle slot cannot be released")
}

func TestAcquireContextCancelled(t *testing.T) {
	p := New(1)
	_, err := p.Acquire(context.Background(), "held")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = p.Acquire(ctx, "waiting")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The cancelled waiter must not swallow the next release.
	require.NoError(t, p.Release("agent-1", true))
	id, err := p.Acquire(context.Background(), "later")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", id)
}

func TestWaitersAreServedInArrivalOrder(t *testing.T) {
	ctx := context.Background()
	p := New(1)
	held, err := p.Acquire(ctx, "held")
	require.NoError(t, err)

	order := make(chan string, 3)
	var wg sync.WaitGroup
	for i, name := range []string{"w1", "w2", "w3"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			id, err := p.Acquire(ctx, name)
			if err != nil {
				return
			}
			order <- name
			_ = p.Release(id, true)
		}(name)
		// Give each goroutine time to enqueue before the next one.
		require.Eventually(t, func() bool {
			p.mu.Lock()
			defer p.mu.Unlock()
			return len(p.waiters) == i+1
		}, time.Second, time.Millisecond)
	}

	require.NoError(t, p.Release(held, true))
	wg.Wait()
	close(order)

	var got []string
	for name := range order {
		got = append(got, name)
	}
	assert.Equal(t, []string{"w1", "w2", "w3"}, got)
	assert.Equal(t, 1, p.Stats().Available)
}

func TestExecuteIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	p := New(2)

	ok := p.Execute(ctx, "good", func(context.Context) error { return nil })
	assert.True(t, ok.Success)
	assert.Equal(t, "good", ok.ItemID)
	assert.NotEmpty(t, ok.AgentID)

	failed := p.Execute(ctx, "bad", func(context.Context) error { return errors.New("compile error") })
	assert.False(t, failed.Success)
	assert.Equal(t, "compile error", failed.Error)

	panicked := p.Execute(ctx, "worse", func(context.Context) error { panic("boom") })
	assert.False(t, panicked.Success)
	assert.Contains(t, panicked.Error, "boom")

	assert.Equal(t, Stats{Total: 2, Busy: 0, Available: 2}, p.Stats())

	total := 0
	for _, a := range p.Agents() {
		total += a.Completed
	}
	assert.Equal(t, 1, total, "only successful executions count as completed")
}

func TestRunBatchStreamsAllResults(t *testing.T) {
	p := New(3)
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}

	var inFlight, maxInFlight int32
	results := p.RunBatch(context.Background(), ids, func(ctx context.Context, id string) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		if id == "d" {
			return errors.New("d failed")
		}
		return nil
	})

	seen := make(map[string]Result)
	for res := range results {
		seen[res.ItemID] = res
	}

	require.Len(t, seen, len(ids))
	assert.False(t, seen["d"].Success)
	assert.Equal(t, "d failed", seen["d"].Error)
	assert.True(t, seen["a"].Success)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(3))
	assert.Equal(t, 3, p.Stats().Available)
}

func TestRunBatchStopsDispatchOnCancel(t *testing.T) {
	p := New(1)
	ctx, cancel := context.WithCancel(context.Background())

	results := p.RunBatch(ctx, []string{"a", "b", "c"}, func(ctx context.Context, id string) error {
		if id != "a" {
			return nil
		}
		cancel()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
			return nil
		}
	})

	seen := make(map[string]Result)
	for res := range results {
		seen[res.ItemID] = res
	}
	require.Contains(t, seen, "a")
	assert.True(t, seen["a"].Success, "in-flight item must not be cancelled: %s", seen["a"].Error)
	assert.Less(t, len(seen), 3)
	assert.Equal(t, 1, p.Stats().Available)
}

type recorder struct {
	mu      sync.Mutex
	maxBusy int
	waits   int
}

func (r *recorder) SetPoolBusy(busy int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if busy > r.maxBusy {
		r.maxBusy = busy
	}
}

func (r *recorder) ObserveAcquireWait(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits++
}

func TestRecorderIsNotified(t *testing.T) {
	rec := &recorder{}
	p := New(2, WithRecorder(rec))

	for range p.RunBatch(context.Background(), []string{"a", "b", "c", "d"}, func(context.Context, string) error {
		time.Sleep(time.Millisecond)
		return nil
	}) {
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.LessOrEqual(t, rec.maxBusy, 2)
	assert.Equal(t, 4, rec.waits)
}

func TestAgentElapsedUsesClock(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	p := New(1, WithClock(clock))

	id, err := p.Acquire(context.Background(), "W1")
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(90 * time.Second)
	mu.Unlock()

	info, ok := p.Agent(id)
	require.True(t, ok)
	assert.True(t, info.Busy)
	assert.Equal(t, 90*time.Second, info.Elapsed)

	_, ok = p.Agent("agent-7")
	assert.False(t, ok)
}

// Property: under random concurrent acquire/release, busy never exceeds
// capacity, every waiter eventually acquires, and the pool drains fully.
func TestPoolCapacityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.IntRange(1, 5).Draw(t, "capacity")
		workers := rapid.IntRange(1, 20).Draw(t, "workers")
		p := New(capacity)

		var violations int32
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, err := p.Acquire(context.Background(), fmt.Sprintf("w%d", i))
				if err != nil {
					atomic.AddInt32(&violations, 1)
					return
				}
				if s := p.Stats(); s.Busy > capacity {
					atomic.AddInt32(&violations, 1)
				}
				if err := p.Release(id, i%2 == 0); err != nil {
					atomic.AddInt32(&violations, 1)
				}
			}(i)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("waiters starved")
		}

		if v := atomic.LoadInt32(&violations); v != 0 {
			t.Fatalf("%d capacity or release violations", v)
		}
		if s := p.Stats(); s.Available != capacity {
			t.Fatalf("available = %d after drain, want %d", s.Available, capacity)
		}
	})
}

func TestAcquireTieBreakUsesSlotNumber(t *testing.T) {
	ctx := context.Background()
	p := New(12)

	for i := 1; i <= 12; i++ {
		id, err := p.Acquire(ctx, fmt.Sprintf("W%d", i))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("agent-%d", i), id)
	}
	for i := 1; i <= 12; i++ {
		success := i != 2 && i != 10
		require.NoError(t, p.Release(fmt.Sprintf("agent-%d", i), success))
	}

	// agent-2 and agent-10 tie on zero completions; agent-2 is the lower slot.
	id, err := p.Acquire(ctx, "next")
	require.NoError(t, err)
	assert.Equal(t, "agent-2", id)

	id, err = p.Acquire(ctx, "after")
	require.NoError(t, err)
	assert.Equal(t, "agent-10", id)
}
