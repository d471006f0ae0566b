package evaluation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/primitive-tutor/backend/internal/models"
)

// Deliverer is the backend seam the queue flushes through. Delivery must be
// idempotent on the result's attempt id.
type Deliverer interface {
	Deliver(ctx context.Context, result *models.EvaluationResult) error
}

// ResultObserver is notified once per result at enqueue time — before any
// delivery attempt — so observers reflect attempts, not confirmed deliveries.
type ResultObserver interface {
	ObserveResult(result *models.EvaluationResult)
}

// DeliveryError marks a queued result that failed to reach the backend. The
// entry stays queued with an incremented retry count; the learner's locally
// recorded attempt is unaffected.
type DeliveryError struct {
	AttemptID string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver attempt %s: %v", e.AttemptID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type FlushOutcome struct {
	AttemptID string
	Delivered bool
	Err       error
}

type FlushReport struct {
	Attempted int
	Delivered int
	Failed    int
	Outcomes  []FlushOutcome
}

// SubmissionQueue is the order-preserving offline buffer between attempt
// submission and the backend. Enqueue always succeeds; Flush delivers in
// FIFO order and stops at the first failure, leaving the remainder queued.
// Retries are uncapped — exhaustion policy is a UI concern layered on top.
type SubmissionQueue struct {
	deliverer Deliverer

	mu        sync.Mutex
	entries   []*models.QueueEntry
	observers []ResultObserver
	online    bool
	flushing  bool
}

func NewSubmissionQueue(deliverer Deliverer) *SubmissionQueue {
	return &SubmissionQueue{
		deliverer: deliverer,
		online:    true,
	}
}

// AddObserver registers a collaborator (aggregator, competency forwarder)
// notified once per enqueued result.
func (q *SubmissionQueue) AddObserver(obs ResultObserver) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observers = append(q.observers, obs)
}

// Enqueue buffers a result and opportunistically flushes when online.
func (q *SubmissionQueue) Enqueue(result *models.EvaluationResult) {
	q.mu.Lock()
	q.entries = append(q.entries, &models.QueueEntry{
		Result:     result,
		EnqueuedAt: time.Now().UTC(),
	})
	observers := make([]ResultObserver, len(q.observers))
	copy(observers, q.observers)
	online := q.online
	q.mu.Unlock()

	for _, obs := range observers {
		obs.ObserveResult(result)
	}

	if online {
		go q.Flush(context.Background())
	}
}

// Flush attempts delivery of all pending entries in enqueue order, stopping
// at the first failure. Only one flush runs at a time; a flush requested
// while another is in progress reports zero attempts.
func (q *SubmissionQueue) Flush(ctx context.Context) FlushReport {
	q.mu.Lock()
	if q.flushing {
		q.mu.Unlock()
		return FlushReport{}
	}
	q.flushing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.flushing = false
		q.mu.Unlock()
	}()

	var report FlushReport
	for {
		q.mu.Lock()
		if len(q.entries) == 0 {
			q.mu.Unlock()
			return report
		}
		entry := q.entries[0]
		q.mu.Unlock()

		report.Attempted++
		err := q.deliverer.Deliver(ctx, entry.Result)

		q.mu.Lock()
		if err != nil {
			entry.RetryCount++
			q.mu.Unlock()

			report.Failed++
			report.Outcomes = append(report.Outcomes, FlushOutcome{
				AttemptID: entry.Result.AttemptID,
				Err:       &DeliveryError{AttemptID: entry.Result.AttemptID, Err: err},
			})
			log.Printf("WARN: [queue] delivery failed for attempt %s (retry %d): %v",
				entry.Result.AttemptID, entry.RetryCount, err)
			return report
		}

		// Delivered: drop the head. The slice head is stable because only
		// one flush runs and Enqueue appends at the tail.
		q.entries = q.entries[1:]
		q.mu.Unlock()

		report.Delivered++
		report.Outcomes = append(report.Outcomes, FlushOutcome{
			AttemptID: entry.Result.AttemptID,
			Delivered: true,
		})
	}
}

// SetOnline records the connectivity signal from the external collaborator.
// A transition back online triggers a flush of everything buffered while
// offline.
func (q *SubmissionQueue) SetOnline(online bool) {
	q.mu.Lock()
	wasOnline := q.online
	q.online = online
	q.mu.Unlock()

	if online && !wasOnline {
		go q.Flush(context.Background())
	}
}

func (q *SubmissionQueue) IsOnline() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

func (q *SubmissionQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Entries returns a snapshot of the buffered entries in enqueue order.
func (q *SubmissionQueue) Entries() []models.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.QueueEntry, len(q.entries))
	for i, e := range q.entries {
		out[i] = *e
	}
	return out
}
