package tutor

import (
	"fmt"

	"github.com/primitive-tutor/backend/internal/models"
)

// HintTracker counts escalating hint requests (1=nudge, 2=specific,
// 3=detailed). Counts are monotonic within a session: requesting the same
// level twice increments twice, and only an explicit Reset clears them —
// never a reconnect.
type HintTracker struct {
	state models.HintState
}

func NewHintTracker() *HintTracker {
	return &HintTracker{}
}

// Record increments the counter for the given level and returns the new
// totals.
func (t *HintTracker) Record(level int) (models.HintState, error) {
	switch level {
	case 1:
		t.state.Level1++
	case 2:
		t.state.Level2++
	case 3:
		t.state.Level3++
	default:
		return t.state, fmt.Errorf("invalid hint level %d (must be 1-3)", level)
	}
	return t.state, nil
}

func (t *HintTracker) Snapshot() models.HintState {
	return t.state
}

func (t *HintTracker) Total() int {
	return t.state.Total()
}

func (t *HintTracker) Reset() {
	t.state = models.HintState{}
}
