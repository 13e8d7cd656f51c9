package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/glazeui/glaze/pkg/perf"
	"github.com/glazeui/glaze/pkg/rendertree"
	"github.com/glazeui/glaze/pkg/telemetry"
)

// Priority orders pending writes within a frame batch.
type Priority int

const (
	// PriorityHigh writes commit before all others.
	PriorityHigh Priority = iota
	// PriorityMedium is the default for callers that do not care.
	PriorityMedium
	// PriorityLow writes commit after everything else.
	PriorityLow
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// PendingWrite is a property update awaiting its frame.
type PendingWrite struct {
	// SessionID ties the write to the transition that enqueued it.
	SessionID string

	// Target is the node receiving the properties.
	Target rendertree.NodeID

	// Properties are the key/value pairs to apply.
	Properties rendertree.Properties

	// Priority orders the write within its frame batch.
	Priority Priority
}

// SchedulerCounters are cumulative commit statistics.
type SchedulerCounters struct {
	// Applied counts writes committed to the render tree.
	Applied uint64

	// Dropped counts writes skipped because the target node vanished.
	Dropped uint64

	// Frames counts frames in which at least one write was attempted.
	Frames uint64
}

// Scheduler batches property writes and commits them on frame
// boundaries. Writes of equal priority commit in enqueue order.
type Scheduler struct {
	tree      rendertree.Tree
	clock     FrameClock
	batchSize int
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
	frames    *perf.FrameRateSampler

	mu       sync.Mutex
	queue    []PendingWrite
	running  bool
	inCommit int // writes taken from the queue but not yet applied
	counters SchedulerCounters
	waiters  []chan struct{}
}

// NewScheduler creates a scheduler committing at most batchSize writes
// per frame delivered by clock.
func NewScheduler(tree rendertree.Tree, clock FrameClock, batchSize int, logger zerolog.Logger, metrics *telemetry.Metrics, frames *perf.FrameRateSampler) *Scheduler {
	if batchSize <= 0 {
		batchSize = DefaultFrameBatchSize
	}
	return &Scheduler{
		tree:      tree,
		clock:     clock,
		batchSize: batchSize,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		metrics:   metrics,
		frames:    frames,
	}
}

// Enqueue adds a write to the pending queue. The first write enqueued
// while the scheduler is idle starts the commit loop.
func (s *Scheduler) Enqueue(w PendingWrite) {
	s.mu.Lock()
	s.queue = append(s.queue, w)
	if !s.running {
		s.running = true
		go s.commitLoop()
	}
	s.mu.Unlock()
}

// EnqueueAll adds writes preserving their order.
func (s *Scheduler) EnqueueAll(writes []PendingWrite) {
	if len(writes) == 0 {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, writes...)
	if !s.running {
		s.running = true
		go s.commitLoop()
	}
	s.mu.Unlock()
}

// Pending returns the number of writes awaiting commit.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Counters returns a snapshot of the cumulative commit statistics.
func (s *Scheduler) Counters() SchedulerCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// ClearSession drops all pending writes belonging to the given
// session. Already committed writes stay committed.
func (s *Scheduler) ClearSession(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.queue[:0]
	dropped := 0
	for _, w := range s.queue {
		if w.SessionID == sessionID {
			dropped++
			continue
		}
		kept = append(kept, w)
	}
	s.queue = kept
	if dropped > 0 {
		s.logger.Debug().
			Str("session_id", sessionID).
			Int("dropped", dropped).
			Msg("cleared pending writes")
	}
	if len(s.queue) == 0 && s.inCommit == 0 {
		s.notifyWaitersLocked()
	}
	return dropped
}

// Flush blocks until every pending write has been applied, including any
// batch already taken for the current frame, or until ctx is cancelled.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.queue) == 0 && s.inCommit == 0 {
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notifyWaitersLocked closes and clears all drain waiters.
// Callers must hold s.mu.
func (s *Scheduler) notifyWaitersLocked() {
	for _, ch := range s.waiters {
		close(ch)
	}
	s.waiters = nil
}

// takeBatch removes up to batchSize writes in priority order and marks
// them in-commit, so Flush keeps waiting until they are applied.
// Equal priorities keep enqueue order.
func (s *Scheduler) takeBatch() []PendingWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	sort.SliceStable(s.queue, func(i, j int) bool {
		return s.queue[i].Priority < s.queue[j].Priority
	})
	n := s.batchSize
	if n > len(s.queue) {
		n = len(s.queue)
	}
	batch := make([]PendingWrite, n)
	copy(batch, s.queue[:n])
	s.queue = append(s.queue[:0], s.queue[n:]...)
	s.inCommit = n
	return batch
}

func (s *Scheduler) commitLoop() {
	for range s.clock.Ticks() {
		batch := s.takeBatch()
		applied, dropped := 0, 0
		for _, w := range batch {
			if s.tree.ApplyProperties(w.Target, w.Properties) {
				applied++
			} else {
				dropped++
				s.logger.Debug().
					Str("node", string(w.Target)).
					Str("session_id", w.SessionID).
					Msg("write target vanished, skipping")
			}
		}
		if len(batch) > 0 {
			if s.frames != nil {
				s.frames.Tick()
			}
			s.metrics.RecordFrameCommit(applied, dropped)
		}

		s.mu.Lock()
		s.inCommit = 0
		s.counters.Applied += uint64(applied)
		s.counters.Dropped += uint64(dropped)
		if len(batch) > 0 {
			s.counters.Frames++
		}
		if len(s.queue) == 0 {
			s.running = false
			s.notifyWaitersLocked()
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}

	// Clock channel closed. It never ticks again, so queued writes are
	// unfulfillable: drop them, reset state, and release waiters so Flush
	// callers do not hang and a later Enqueue does not go dead waiting on
	// a loop that already exited.
	s.mu.Lock()
	if n := len(s.queue); n > 0 {
		s.counters.Dropped += uint64(n)
		s.queue = nil
		s.logger.Warn().Int("dropped", n).Msg("frame clock closed with writes pending")
	}
	s.running = false
	s.inCommit = 0
	s.notifyWaitersLocked()
	s.mu.Unlock()
}
