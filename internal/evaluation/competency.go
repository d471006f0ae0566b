package evaluation

import (
	"math"
	"sync"

	"github.com/primitive-tutor/backend/internal/models"
)

// ExpectedScore returns the normalized score a learner with the given
// competency is expected to reach on a primitive of standard difficulty.
// Uses a sigmoid centered on competency 50 with scaling factor 12.5.
func ExpectedScore(competency int) float64 {
	x := float64(competency-50) / 12.5
	return 1.0 / (1.0 + math.Exp(-x))
}

// KFactor returns the adjustment strength based on how many attempts the
// learner has made on this primitive type.
func KFactor(attempts int) float64 {
	if attempts < 20 {
		return 3.0 // New learner: fast convergence
	}
	if attempts < 100 {
		return 2.0 // Intermediate: moderate adjustment
	}
	return 1.0 // Mature: stable, small adjustments
}

// ComputeNewCompetency calculates the updated competency after a graded
// attempt, nudged by how the achieved score compares to expectation.
func ComputeNewCompetency(current int, score float64, attempts int) int {
	expected := ExpectedScore(current)

	actual := score / 100.0
	if actual < 0 {
		actual = 0
	}
	if actual > 1 {
		actual = 1
	}

	adjustment := (actual - expected) * KFactor(attempts)
	updated := float64(current) + adjustment

	if updated < 0 {
		updated = 0
	}
	if updated > 100 {
		updated = 100
	}

	return int(math.Round(updated))
}

// ── Competency Tracker ─────────────────────────────────

// CompetencyUpdate is the payload forwarded to the competency collaborator
// whenever a result is observed.
type CompetencyUpdate struct {
	PrimitiveType models.PrimitiveType `json:"primitive_type"`
	Score         int                  `json:"score"`
	Attempts      int                  `json:"attempts"`
}

type competencyEntry struct {
	score    int
	attempts int
}

// CompetencyTracker maintains an in-process mastery score per primitive type
// and forwards every update to an optional collaborator callback. Each new
// primitive type starts at 50.
type CompetencyTracker struct {
	mu       sync.Mutex
	scores   map[models.PrimitiveType]*competencyEntry
	onUpdate func(CompetencyUpdate)
}

func NewCompetencyTracker(onUpdate func(CompetencyUpdate)) *CompetencyTracker {
	return &CompetencyTracker{
		scores:   make(map[models.PrimitiveType]*competencyEntry),
		onUpdate: onUpdate,
	}
}

// ObserveResult implements ResultObserver.
func (t *CompetencyTracker) ObserveResult(result *models.EvaluationResult) {
	t.mu.Lock()
	entry, ok := t.scores[result.PrimitiveType]
	if !ok {
		entry = &competencyEntry{score: 50}
		t.scores[result.PrimitiveType] = entry
	}
	entry.score = ComputeNewCompetency(entry.score, result.Score, entry.attempts)
	entry.attempts++
	update := CompetencyUpdate{
		PrimitiveType: result.PrimitiveType,
		Score:         entry.score,
		Attempts:      entry.attempts,
	}
	onUpdate := t.onUpdate
	t.mu.Unlock()

	if onUpdate != nil {
		onUpdate(update)
	}
}

// Snapshot returns the current mastery score per primitive type.
func (t *CompetencyTracker) Snapshot() map[models.PrimitiveType]CompetencyUpdate {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[models.PrimitiveType]CompetencyUpdate, len(t.scores))
	for pt, entry := range t.scores {
		out[pt] = CompetencyUpdate{PrimitiveType: pt, Score: entry.score, Attempts: entry.attempts}
	}
	return out
}
