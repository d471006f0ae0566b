package evaluation

import (
	"sync"

	"github.com/primitive-tutor/backend/internal/models"
)

// SessionAggregator is the process-wide rollup over every result observed in
// the current learning session. It reflects attempts as they are enqueued,
// not as they are delivered, so a flaky network never stalls the dashboard.
type SessionAggregator struct {
	mu         sync.Mutex
	total      int
	successful int
	scoreSum   float64
	online     bool
}

func NewSessionAggregator() *SessionAggregator {
	return &SessionAggregator{online: true}
}

// ObserveResult implements ResultObserver; called once per enqueued result.
func (a *SessionAggregator) ObserveResult(result *models.EvaluationResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	if result.Success {
		a.successful++
	}
	a.scoreSum += result.Score
}

// Summary recomputes the rollup on demand. With zero results the average is
// 0, never NaN.
func (a *SessionAggregator) Summary() models.SessionSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	avg := 0.0
	if a.total > 0 {
		avg = a.scoreSum / float64(a.total)
	}
	return models.SessionSummary{
		TotalAttempts:      a.total,
		SuccessfulAttempts: a.successful,
		AverageScore:       avg,
	}
}

// SetOnline stores the connectivity signal supplied by the external
// collaborator; the aggregator never detects connectivity itself.
func (a *SessionAggregator) SetOnline(online bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.online = online
}

func (a *SessionAggregator) IsOnline() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.online
}
