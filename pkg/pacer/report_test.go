package pacer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReport_PerformanceLevels(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig()) // target 0.95

	tests := []struct {
		name string
		rate float64
		want PerformanceLevel
	}{
		{name: "at target", rate: 0.95, want: LevelExcellent},
		{name: "above target", rate: 1.0, want: LevelExcellent},
		{name: "within good margin", rate: 0.91, want: LevelGood},
		{name: "within fair margin", rate: 0.85, want: LevelFair},
		{name: "below fair margin", rate: 0.5, want: LevelPoor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ctrl.performanceLevel(tt.rate))
		})
	}
}

func TestReport_TrendClassification(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []bool
		want     Trend
	}{
		{
			name:     "insufficient history",
			outcomes: []bool{false, false, false},
			want:     TrendStable,
		},
		{
			name:     "improving",
			outcomes: []bool{false, false, false, false, false, true, true, true, true, true},
			want:     TrendImproving,
		},
		{
			name:     "declining",
			outcomes: []bool{true, true, true, true, true, false, false, false, false, false},
			want:     TrendDeclining,
		},
		{
			name:     "stable",
			outcomes: []bool{true, true, true, true, true, true, true, true, true, true},
			want:     TrendStable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl, _ := newTestController(t, testConfig())

			for _, ok := range tt.outcomes {
				kind := ErrorKind("")
				if !ok {
					kind = ErrorServer
				}

				ctrl.RecordOutcome(ok, 0, 0, kind)
			}

			assert.Equal(t, tt.want, ctrl.Report().Trend)
		})
	}
}

func TestReport_HealthyRecommendation(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig())

	for i := 0; i < 10; i++ {
		ctrl.RecordOutcome(true, time.Second, 200, "")
	}

	_ = ctrl.GetDelay()

	snap := ctrl.Report()
	assert.Equal(t, []string{"operating normally"}, snap.Recommendations)
}

func TestReport_UnhealthyRecommendations(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig())

	for i := 0; i < 10; i++ {
		ctrl.RecordOutcome(false, 0, 429, ErrorRateLimited)
	}

	_ = ctrl.GetDelay()

	snap := ctrl.Report()

	assert.Contains(t, joined(snap.Recommendations), "below target")
	assert.Contains(t, joined(snap.Recommendations), "consecutive failures")
	assert.Contains(t, joined(snap.Recommendations), "rate-limit")
}

func TestReport_WindowRequestsPruned(t *testing.T) {
	cfg := testConfig()
	cfg.TimeWindow = time.Minute
	ctrl, clock := newTestController(t, cfg)

	for i := 0; i < 5; i++ {
		ctrl.RecordOutcome(true, 0, 200, "")
	}

	assert.Equal(t, 5, ctrl.Report().WindowRequests)

	// All five records age out of the time window; the count-bounded
	// history is unaffected.
	clock.Advance(2 * time.Minute)

	snap := ctrl.Report()
	assert.Equal(t, 0, snap.WindowRequests)
	assert.InDelta(t, 1.0, snap.RecentSuccessRate, 1e-9)
}

func TestReport_ErrorBreakdownIsACopy(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig())

	ctrl.RecordOutcome(false, 0, 500, ErrorServer)

	snap := ctrl.Report()
	snap.ErrorBreakdown[ErrorServer] = 99

	assert.Equal(t, int64(1), ctrl.Report().ErrorBreakdown[ErrorServer])
}

func joined(recs []string) string {
	out := ""
	for _, r := range recs {
		out += r + "\n"
	}

	return out
}
