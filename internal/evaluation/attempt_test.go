package evaluation

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/primitive-tutor/backend/internal/models"
)

// mockDeliverer records delivered results and can be told to fail.
type mockDeliverer struct {
	mu        sync.Mutex
	delivered []string
	failures  int    // fail the next N deliveries
	failID    string // always fail this attempt id while set
}

func (d *mockDeliverer) Deliver(ctx context.Context, result *models.EvaluationResult) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return context.DeadlineExceeded
	}
	if d.failID != "" && result.AttemptID == d.failID {
		return context.DeadlineExceeded
	}
	d.delivered = append(d.delivered, result.AttemptID)
	return nil
}

func (d *mockDeliverer) setFailID(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failID = id
}

func (d *mockDeliverer) deliveredIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.delivered))
	copy(out, d.delivered)
	return out
}

func (d *mockDeliverer) setFailures(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = n
}

func offlineQueue() (*SubmissionQueue, *mockDeliverer) {
	d := &mockDeliverer{}
	q := NewSubmissionQueue(d)
	q.SetOnline(false)
	return q, d
}

func TestSubmitResultBuildsCanonicalRecord(t *testing.T) {
	q, _ := offlineQueue()
	m := NewAttemptManager(models.PrimitiveFractionBar, "widget-1", q)

	metrics := &models.FractionBarMetrics{TargetFraction: "2/4", CorrectSegments: 2, TotalSegments: 4, Partitions: 4}
	work := json.RawMessage(`{"bars":[2,4]}`)
	result := m.SubmitResult(true, 85, metrics, work)

	if result == nil {
		t.Fatal("SubmitResult returned nil on first submission")
	}
	if result.AttemptID == "" {
		t.Error("AttemptID is empty")
	}
	if result.PrimitiveType != models.PrimitiveFractionBar {
		t.Errorf("PrimitiveType = %q, want %q", result.PrimitiveType, models.PrimitiveFractionBar)
	}
	if result.InstanceID != "widget-1" {
		t.Errorf("InstanceID = %q, want widget-1", result.InstanceID)
	}
	if !result.Success || result.Score != 85 {
		t.Errorf("Success/Score = %v/%v, want true/85", result.Success, result.Score)
	}
	if result.DurationMs < 0 {
		t.Errorf("DurationMs = %d, want >= 0", result.DurationMs)
	}
	if result.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
	if q.Pending() != 1 {
		t.Errorf("queue pending = %d, want 1", q.Pending())
	}
}

func TestSubmitResultFirstWins(t *testing.T) {
	q, _ := offlineQueue()
	m := NewAttemptManager(models.PrimitiveRatioTable, "widget-2", q)

	first := m.SubmitResult(true, 90, nil, nil)
	second := m.SubmitResult(false, 10, nil, nil)

	if first == nil {
		t.Fatal("first submission returned nil")
	}
	if second != nil {
		t.Error("second submission accepted, want nil")
	}
	if !m.HasSubmitted() {
		t.Error("HasSubmitted = false after submission")
	}
	if q.Pending() != 1 {
		t.Errorf("queue pending = %d, want 1 (duplicate not enqueued)", q.Pending())
	}
}

func TestResetAttemptAllowsRetry(t *testing.T) {
	q, _ := offlineQueue()
	m := NewAttemptManager(models.PrimitiveBalanceScale, "widget-3", q)

	first := m.SubmitResult(false, 40, nil, nil)
	m.ResetAttempt()
	second := m.SubmitResult(true, 95, nil, nil)

	if second == nil {
		t.Fatal("submission after reset returned nil")
	}
	if second.AttemptID == first.AttemptID {
		t.Error("retry reused the previous attempt id")
	}

	// Both attempts stay queued
	if q.Pending() != 2 {
		t.Errorf("queue pending = %d, want 2", q.Pending())
	}
}

func TestResetAttemptIdempotent(t *testing.T) {
	q, _ := offlineQueue()
	m := NewAttemptManager(models.PrimitiveMatrix, "widget-4", q)

	m.ResetAttempt()
	m.ResetAttempt()
	if m.HasSubmitted() {
		t.Error("HasSubmitted = true after resets with no submission")
	}
	if r := m.SubmitResult(true, 100, nil, nil); r == nil {
		t.Error("submission after redundant resets returned nil")
	}
}

func TestResetAttemptRestartsClock(t *testing.T) {
	q, _ := offlineQueue()
	m := NewAttemptManager(models.PrimitiveSkipCounting, "widget-5", q)

	before := m.StartedAt()
	time.Sleep(5 * time.Millisecond)
	m.ResetAttempt()

	if !m.StartedAt().After(before) {
		t.Error("StartedAt not advanced by reset")
	}
}

func TestAttemptIDsAreUnique(t *testing.T) {
	q, _ := offlineQueue()
	m := NewAttemptManager(models.PrimitiveFractionBar, "widget-6", q)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		r := m.SubmitResult(true, 80, nil, nil)
		if seen[r.AttemptID] {
			t.Fatalf("duplicate attempt id %s", r.AttemptID)
		}
		seen[r.AttemptID] = true
		m.ResetAttempt()
	}
}
