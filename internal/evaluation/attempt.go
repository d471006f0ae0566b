package evaluation

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/primitive-tutor/backend/internal/models"
)

// AttemptManager tracks the lifecycle of a single graded attempt for one
// widget instance. Only one unsubmitted attempt exists at a time; the first
// submission wins and later calls are no-ops until ResetAttempt.
type AttemptManager struct {
	mu            sync.Mutex
	primitiveType models.PrimitiveType
	instanceID    string
	queue         *SubmissionQueue
	startedAt     time.Time
	hasSubmitted  bool
}

func NewAttemptManager(primitiveType models.PrimitiveType, instanceID string, queue *SubmissionQueue) *AttemptManager {
	return &AttemptManager{
		primitiveType: primitiveType,
		instanceID:    instanceID,
		queue:         queue,
		startedAt:     time.Now(),
	}
}

// SubmitResult builds the canonical EvaluationResult and hands it to the
// submission queue. Returns the created result, or nil when the attempt was
// already submitted. Scores are taken as given: clamping to [0,100] is the
// caller's convention, not enforced here.
func (m *AttemptManager) SubmitResult(success bool, score float64, metrics models.PrimitiveMetrics, studentWork json.RawMessage) *models.EvaluationResult {
	m.mu.Lock()
	if m.hasSubmitted {
		m.mu.Unlock()
		return nil
	}
	m.hasSubmitted = true
	started := m.startedAt
	m.mu.Unlock()

	result := &models.EvaluationResult{
		AttemptID:     uuid.NewString(),
		PrimitiveType: m.primitiveType,
		InstanceID:    m.instanceID,
		Success:       success,
		Score:         score,
		Metrics:       metrics,
		DurationMs:    time.Since(started).Milliseconds(),
		StudentWork:   studentWork,
		Timestamp:     time.Now().UTC(),
	}

	m.queue.Enqueue(result)
	return result
}

// ResetAttempt clears the submitted flag and restarts the attempt clock,
// allowing a retry. Results already submitted stay in the queue and in any
// summary. Idempotent.
func (m *AttemptManager) ResetAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasSubmitted = false
	m.startedAt = time.Now()
}

func (m *AttemptManager) HasSubmitted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasSubmitted
}

func (m *AttemptManager) StartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startedAt
}
