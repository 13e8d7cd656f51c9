package stores

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glazeui/glaze/pkg/engine"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glaze.db")
	store, err := Open(context.Background(), Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func record(sessionID, descriptor string, status string, startedAt time.Time) engine.HistoryRecord {
	return engine.HistoryRecord{
		SessionID:         sessionID,
		Descriptor:        descriptor,
		Status:            status,
		Duration:          280 * time.Millisecond,
		UpdateCount:       12,
		AnimationsStarted: 3,
		AnimationsSkipped: 1,
		Violations:        0,
		StartedAt:         startedAt,
	}
}

func TestRecordAndGetTransition(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	if err := store.RecordTransition(ctx, record("s1", "ocean|dark|default", "completed", started)); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}

	row, err := store.GetTransition(ctx, "s1")
	if err != nil {
		t.Fatalf("GetTransition: %v", err)
	}
	if row.Descriptor != "ocean|dark|default" {
		t.Fatalf("descriptor = %q", row.Descriptor)
	}
	if row.Status != StatusCompleted {
		t.Fatalf("status = %q, want completed", row.Status)
	}
	if row.DurationMs != 280 {
		t.Fatalf("duration = %dms, want 280", row.DurationMs)
	}
	if row.UpdateCount != 12 || row.AnimationsStarted != 3 || row.AnimationsSkipped != 1 {
		t.Fatalf("counters = %d/%d/%d", row.UpdateCount, row.AnimationsStarted, row.AnimationsSkipped)
	}
}

func TestGetTransitionNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetTransition(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestListTransitionsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, id := range []string{"s1", "s2", "s3"} {
		rec := record(id, "ocean|dark|default", "completed", base.Add(time.Duration(i)*time.Minute))
		if err := store.RecordTransition(ctx, rec); err != nil {
			t.Fatalf("RecordTransition %s: %v", id, err)
		}
	}

	rows, err := store.ListTransitions(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListTransitions: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].SessionID != "s3" || rows[2].SessionID != "s1" {
		t.Fatalf("order = %s..%s, want s3..s1", rows[0].SessionID, rows[2].SessionID)
	}

	limited, err := store.ListTransitions(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ListTransitions with offset: %v", err)
	}
	if len(limited) != 1 || limited[0].SessionID != "s2" {
		t.Fatalf("paged row = %v, want s2", limited)
	}
}

func TestListByDescriptor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	_ = store.RecordTransition(ctx, record("s1", "ocean|dark|default", "completed", now.Add(-2*time.Minute)))
	_ = store.RecordTransition(ctx, record("s2", "desert|light|default", "completed", now.Add(-time.Minute)))
	_ = store.RecordTransition(ctx, record("s3", "ocean|dark|default", "cancelled", now))

	rows, err := store.ListByDescriptor(ctx, "ocean|dark|default", 10)
	if err != nil {
		t.Fatalf("ListByDescriptor: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].SessionID != "s3" {
		t.Fatalf("newest = %s, want s3", rows[0].SessionID)
	}
}

func TestSummarize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	completed := record("s1", "ocean|dark|default", "completed", now.Add(-3*time.Minute))
	completed.Duration = 200 * time.Millisecond
	_ = store.RecordTransition(ctx, completed)

	completed2 := record("s2", "ocean|dark|default", "completed", now.Add(-2*time.Minute))
	completed2.Duration = 400 * time.Millisecond
	completed2.Violations = 2
	_ = store.RecordTransition(ctx, completed2)

	cancelled := record("s3", "desert|light|default", "cancelled", now.Add(-time.Minute))
	_ = store.RecordTransition(ctx, cancelled)

	failed := record("s4", "missing|dark|default", "failed", now)
	_ = store.RecordTransition(ctx, failed)

	sum, err := store.Summarize(ctx)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Total != 4 || sum.Completed != 2 || sum.Cancelled != 1 || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.AvgDurationMs != 300 {
		t.Fatalf("avg duration = %v, want 300", sum.AvgDurationMs)
	}
	if sum.TotalViolations != 2 {
		t.Fatalf("violations = %d, want 2", sum.TotalViolations)
	}
}

func TestPruneBefore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	_ = store.RecordTransition(ctx, record("old1", "ocean|dark|default", "completed", now.Add(-48*time.Hour)))
	_ = store.RecordTransition(ctx, record("old2", "ocean|dark|default", "completed", now.Add(-36*time.Hour)))
	_ = store.RecordTransition(ctx, record("recent", "ocean|dark|default", "completed", now))

	removed, err := store.PruneBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	rows, _ := store.ListTransitions(ctx, 10, 0)
	if len(rows) != 1 || rows[0].SessionID != "recent" {
		t.Fatalf("surviving rows = %v, want only recent", rows)
	}
}

func TestDuplicateSessionRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec := record("dup", "ocean|dark|default", "completed", time.Now())
	if err := store.RecordTransition(ctx, rec); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := store.RecordTransition(ctx, rec); err == nil {
		t.Fatal("expected unique constraint error for duplicate session id")
	}
}
