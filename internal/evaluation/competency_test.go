package evaluation

import (
	"math"
	"testing"

	"github.com/primitive-tutor/backend/internal/models"
)

func TestExpectedScore(t *testing.T) {
	// At the midpoint the learner is expected to score ~50%
	got := ExpectedScore(50)
	if math.Abs(got-0.5) > 0.01 {
		t.Errorf("ExpectedScore(50) = %f, want ~0.5", got)
	}

	// Strong learner → ~88%
	got = ExpectedScore(75)
	if math.Abs(got-0.88) > 0.05 {
		t.Errorf("ExpectedScore(75) = %f, want ~0.88", got)
	}

	// Struggling learner → ~12%
	got = ExpectedScore(25)
	if math.Abs(got-0.12) > 0.05 {
		t.Errorf("ExpectedScore(25) = %f, want ~0.12", got)
	}

	// Extremes saturate
	if got = ExpectedScore(100); got < 0.95 {
		t.Errorf("ExpectedScore(100) = %f, want >0.95", got)
	}
	if got = ExpectedScore(0); got > 0.05 {
		t.Errorf("ExpectedScore(0) = %f, want <0.05", got)
	}
}

func TestCompetencyKFactor(t *testing.T) {
	tests := []struct {
		attempts int
		want     float64
	}{
		{0, 3.0},
		{19, 3.0},
		{20, 2.0},
		{99, 2.0},
		{100, 1.0},
		{500, 1.0},
	}

	for _, tt := range tests {
		got := KFactor(tt.attempts)
		if got != tt.want {
			t.Errorf("KFactor(%d) = %f, want %f", tt.attempts, got, tt.want)
		}
	}
}

func TestComputeNewCompetency(t *testing.T) {
	// Perfect score at the midpoint → increase
	got := ComputeNewCompetency(50, 100, 0)
	if got != 52 {
		t.Errorf("ComputeNewCompetency(50, 100, 0) = %d, want 52", got)
	}

	// Score matching expectation → no movement
	got = ComputeNewCompetency(50, 50, 0)
	if got != 50 {
		t.Errorf("ComputeNewCompetency(50, 50, 0) = %d, want 50", got)
	}

	// Zero score at the midpoint → decrease
	got = ComputeNewCompetency(50, 0, 0)
	if got >= 50 {
		t.Errorf("ComputeNewCompetency(50, 0, 0) = %d, want <50", got)
	}

	// New learner (K=3) moves faster than a mature one (K=1)
	gotNew := ComputeNewCompetency(50, 100, 5)
	gotMature := ComputeNewCompetency(50, 100, 200)
	if gotNew <= gotMature {
		t.Errorf("new learner adjustment (%d) should exceed mature (%d)", gotNew, gotMature)
	}

	// Bounds hold
	if got = ComputeNewCompetency(100, 100, 0); got > 100 {
		t.Errorf("ComputeNewCompetency(100, 100, 0) = %d, want <= 100", got)
	}
	if got = ComputeNewCompetency(0, 0, 0); got < 0 {
		t.Errorf("ComputeNewCompetency(0, 0, 0) = %d, want >= 0", got)
	}

	// Out-of-range scores are treated as the nearest bound
	if ComputeNewCompetency(50, 150, 0) != ComputeNewCompetency(50, 100, 0) {
		t.Error("score above 100 not clamped")
	}
	if ComputeNewCompetency(50, -10, 0) != ComputeNewCompetency(50, 0, 0) {
		t.Error("score below 0 not clamped")
	}
}

func TestCompetencyTrackerStartsAtFifty(t *testing.T) {
	tracker := NewCompetencyTracker(nil)

	tracker.ObserveResult(makeResult("a-1", models.PrimitiveFractionBar, true, 100))

	snap := tracker.Snapshot()
	entry, ok := snap[models.PrimitiveFractionBar]
	if !ok {
		t.Fatal("no entry for observed primitive type")
	}
	if entry.Score != 52 {
		t.Errorf("score after first perfect result = %d, want 52", entry.Score)
	}
	if entry.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", entry.Attempts)
	}
}

func TestCompetencyTrackerPerTypeIsolation(t *testing.T) {
	tracker := NewCompetencyTracker(nil)

	tracker.ObserveResult(makeResult("a-1", models.PrimitiveFractionBar, true, 100))
	tracker.ObserveResult(makeResult("a-2", models.PrimitiveRatioTable, false, 0))

	snap := tracker.Snapshot()
	if snap[models.PrimitiveFractionBar].Score <= 50 {
		t.Errorf("fraction-bar score = %d, want >50", snap[models.PrimitiveFractionBar].Score)
	}
	if snap[models.PrimitiveRatioTable].Score >= 50 {
		t.Errorf("ratio-table score = %d, want <50", snap[models.PrimitiveRatioTable].Score)
	}
}

func TestCompetencyTrackerForwardsUpdates(t *testing.T) {
	var updates []CompetencyUpdate
	tracker := NewCompetencyTracker(func(u CompetencyUpdate) {
		updates = append(updates, u)
	})

	tracker.ObserveResult(makeResult("a-1", models.PrimitiveMatrix, true, 90))
	tracker.ObserveResult(makeResult("a-2", models.PrimitiveMatrix, true, 90))

	if len(updates) != 2 {
		t.Fatalf("callback fired %d times, want 2", len(updates))
	}
	if updates[0].PrimitiveType != models.PrimitiveMatrix {
		t.Errorf("update type = %q, want %q", updates[0].PrimitiveType, models.PrimitiveMatrix)
	}
	if updates[1].Attempts != 2 {
		t.Errorf("second update attempts = %d, want 2", updates[1].Attempts)
	}
}
