package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/glazeui/glaze/pkg/rendertree"
	"github.com/glazeui/glaze/pkg/rendertree/memtree"
	"github.com/glazeui/glaze/pkg/telemetry"
)

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func newTestScheduler(tree rendertree.Tree, clock FrameClock, batchSize int) *Scheduler {
	return NewScheduler(tree, clock, batchSize, zerolog.Nop(), telemetry.Nop().Metrics, nil)
}

func TestSchedulerCommitsAtMostBatchSizePerFrame(t *testing.T) {
	tree := memtree.New()
	for i := 0; i < 25; i++ {
		tree.Add(memtree.NodeSpec{ID: rendertree.NodeID(fmt.Sprintf("n%d", i))})
	}
	clock := NewManualClock()
	sched := newTestScheduler(tree, clock, 10)

	for i := 0; i < 25; i++ {
		sched.Enqueue(PendingWrite{
			SessionID:  "s1",
			Target:     rendertree.NodeID(fmt.Sprintf("n%d", i)),
			Properties: rendertree.Properties{"color": "#fff"},
			Priority:   PriorityMedium,
		})
	}

	if !clock.Step(time.Second) {
		t.Fatal("scheduler did not consume first tick")
	}
	waitFor(t, time.Second, func() bool {
		return sched.Counters().Applied == 10
	}, "first batch of 10")
	if got := sched.Pending(); got != 15 {
		t.Fatalf("pending after first frame = %d, want 15", got)
	}

	clock.Step(time.Second)
	waitFor(t, time.Second, func() bool {
		return sched.Counters().Applied == 20
	}, "second batch of 10")

	clock.Step(time.Second)
	waitFor(t, time.Second, func() bool {
		return sched.Counters().Applied == 25 && sched.Pending() == 0
	}, "final batch of 5")

	c := sched.Counters()
	if c.Frames != 3 {
		t.Fatalf("frames = %d, want 3", c.Frames)
	}
	if c.Dropped != 0 {
		t.Fatalf("dropped = %d, want 0", c.Dropped)
	}
}

func TestSchedulerCommitsHighPriorityFirst(t *testing.T) {
	tree := memtree.New()
	tree.Add(memtree.NodeSpec{ID: "node"})
	clock := NewManualClock()
	sched := newTestScheduler(tree, clock, 1)

	sched.EnqueueAll([]PendingWrite{
		{SessionID: "s1", Target: "node", Properties: rendertree.Properties{"v": "low"}, Priority: PriorityLow},
		{SessionID: "s1", Target: "node", Properties: rendertree.Properties{"v": "high"}, Priority: PriorityHigh},
		{SessionID: "s1", Target: "node", Properties: rendertree.Properties{"v": "medium"}, Priority: PriorityMedium},
	})

	for _, want := range []string{"high", "medium", "low"} {
		clock.Step(time.Second)
		waitFor(t, time.Second, func() bool {
			props, _ := tree.ReadProperties("node")
			return props["v"] == want
		}, "write with value "+want)
	}
}

func TestSchedulerKeepsEnqueueOrderWithinPriority(t *testing.T) {
	tree := memtree.New()
	tree.Add(memtree.NodeSpec{ID: "node"})
	clock := NewManualClock()
	sched := newTestScheduler(tree, clock, 1)

	sched.EnqueueAll([]PendingWrite{
		{SessionID: "s1", Target: "node", Properties: rendertree.Properties{"v": "first"}, Priority: PriorityMedium},
		{SessionID: "s1", Target: "node", Properties: rendertree.Properties{"v": "second"}, Priority: PriorityMedium},
	})

	clock.Step(time.Second)
	waitFor(t, time.Second, func() bool {
		props, _ := tree.ReadProperties("node")
		return props["v"] == "first"
	}, "first enqueued write")

	clock.Step(time.Second)
	waitFor(t, time.Second, func() bool {
		props, _ := tree.ReadProperties("node")
		return props["v"] == "second"
	}, "second enqueued write")
}

func TestSchedulerDropsWritesForVanishedNodes(t *testing.T) {
	tree := memtree.New()
	tree.Add(memtree.NodeSpec{ID: "alive"})
	clock := NewManualClock()
	sched := newTestScheduler(tree, clock, 10)

	sched.EnqueueAll([]PendingWrite{
		{SessionID: "s1", Target: "alive", Properties: rendertree.Properties{"v": "1"}},
		{SessionID: "s1", Target: "gone", Properties: rendertree.Properties{"v": "1"}},
	})

	clock.Step(time.Second)
	waitFor(t, time.Second, func() bool {
		c := sched.Counters()
		return c.Applied == 1 && c.Dropped == 1
	}, "one applied, one dropped")
}

func TestSchedulerClearSessionDropsOnlyThatSession(t *testing.T) {
	tree := memtree.New()
	tree.Add(memtree.NodeSpec{ID: "node"})
	clock := NewManualClock()
	sched := newTestScheduler(tree, clock, 10)

	sched.EnqueueAll([]PendingWrite{
		{SessionID: "old", Target: "node", Properties: rendertree.Properties{"v": "old"}},
		{SessionID: "new", Target: "node", Properties: rendertree.Properties{"v": "new"}},
		{SessionID: "old", Target: "node", Properties: rendertree.Properties{"v": "old2"}},
	})

	if dropped := sched.ClearSession("old"); dropped != 2 {
		t.Fatalf("ClearSession dropped %d, want 2", dropped)
	}
	if got := sched.Pending(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}

	clock.Step(time.Second)
	waitFor(t, time.Second, func() bool {
		props, _ := tree.ReadProperties("node")
		return props["v"] == "new"
	}, "surviving session write")
}

func TestSchedulerFlushWaitsForDrain(t *testing.T) {
	tree := memtree.New()
	tree.Add(memtree.NodeSpec{ID: "node"})
	clock := NewManualClock()
	sched := newTestScheduler(tree, clock, 1)

	sched.EnqueueAll([]PendingWrite{
		{SessionID: "s1", Target: "node", Properties: rendertree.Properties{"a": "1"}},
		{SessionID: "s1", Target: "node", Properties: rendertree.Properties{"b": "2"}},
	})

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- sched.Flush(ctx)
	}()

	select {
	case <-done:
		t.Fatal("flush returned before queue drained")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Step(time.Second)
	clock.Step(time.Second)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("flush returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not return after drain")
	}
}

// gateTree blocks property application until released, exposing the window
// where a batch has left the queue but has not been applied yet.
type gateTree struct {
	*memtree.Tree
	entered chan struct{}
	release chan struct{}
}

func (g *gateTree) ApplyProperties(id rendertree.NodeID, props rendertree.Properties) bool {
	close(g.entered)
	<-g.release
	return g.Tree.ApplyProperties(id, props)
}

func TestSchedulerFlushWaitsForInFlightBatch(t *testing.T) {
	base := memtree.New()
	base.Add(memtree.NodeSpec{ID: "node"})
	tree := &gateTree{Tree: base, entered: make(chan struct{}), release: make(chan struct{})}
	clock := NewManualClock()
	sched := newTestScheduler(tree, clock, 10)

	sched.Enqueue(PendingWrite{SessionID: "s1", Target: "node", Properties: rendertree.Properties{"v": "1"}})
	if !clock.Step(time.Second) {
		t.Fatal("scheduler did not consume tick")
	}

	select {
	case <-tree.entered:
	case <-time.After(time.Second):
		t.Fatal("commit did not start")
	}

	// The queue is empty now but the batch is still being applied.
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- sched.Flush(ctx)
	}()

	select {
	case <-done:
		t.Fatal("flush returned while the batch was still applying")
	case <-time.After(20 * time.Millisecond):
	}

	close(tree.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("flush returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not return after the batch applied")
	}
	if got := sched.Counters().Applied; got != 1 {
		t.Fatalf("applied = %d, want 1", got)
	}
}

// closableClock is a frame clock whose tick channel can be closed.
type closableClock struct {
	ch chan time.Time
}

func (c *closableClock) Ticks() <-chan time.Time { return c.ch }

func TestSchedulerReleasesWaitersWhenClockCloses(t *testing.T) {
	tree := memtree.New()
	tree.Add(memtree.NodeSpec{ID: "node"})
	clock := &closableClock{ch: make(chan time.Time)}
	sched := newTestScheduler(tree, clock, 10)

	sched.Enqueue(PendingWrite{SessionID: "s1", Target: "node", Properties: rendertree.Properties{"v": "1"}})

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done <- sched.Flush(ctx)
	}()

	// Let the flush register its waiter before the clock dies.
	time.Sleep(10 * time.Millisecond)
	close(clock.ch)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("flush returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not return after clock closed")
	}

	// Stranded writes are dropped and the scheduler stays responsive.
	waitFor(t, time.Second, func() bool {
		return sched.Counters().Dropped == 1
	}, "stranded write dropped")

	sched.Enqueue(PendingWrite{SessionID: "s2", Target: "node", Properties: rendertree.Properties{"v": "2"}})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sched.Flush(ctx); err != nil {
		t.Fatalf("flush after clock close returned error: %v", err)
	}
}

func TestSchedulerFlushHonorsContextCancellation(t *testing.T) {
	tree := memtree.New()
	tree.Add(memtree.NodeSpec{ID: "node"})
	clock := NewManualClock()
	sched := newTestScheduler(tree, clock, 1)

	sched.Enqueue(PendingWrite{SessionID: "s1", Target: "node", Properties: rendertree.Properties{"a": "1"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sched.Flush(ctx); err != context.Canceled {
		t.Fatalf("flush error = %v, want context.Canceled", err)
	}
}
