package coordinator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/actual-software/llm-pacer/pkg/pacer"
)

// Efficiency scoring thresholds and weights.
const (
	excellentSuccessRate = 0.95
	goodSuccessRate      = 0.85
	poorSuccessRate      = 0.70

	highDelayThreshold    = 5 * time.Second
	maxAcceptableDelay    = 10 * time.Second
	dominantErrorMinCount = 5

	successScoreWeight = 0.4
	delayScoreWeight   = 0.3
	levelScoreWeight   = 0.2
	trendScoreWeight   = 0.1
)

// EfficiencyReport is a system-wide health report across all caller
// classes: the aggregate snapshot, a 0-100 efficiency score and global
// optimization suggestions.
type EfficiencyReport struct {
	Timestamp       time.Time
	Summary         GlobalSnapshot
	EfficiencyScore float64
	Suggestions     []string
}

// Monitor derives system-wide efficiency reports from a coordinator.
type Monitor struct {
	coord  *Coordinator
	logger *zap.Logger
}

// NewMonitor creates a monitor over the given coordinator. The logger may
// be nil.
func NewMonitor(coord *Coordinator, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Monitor{
		coord:  coord,
		logger: logger,
	}
}

// GenerateReport aggregates every class snapshot into an efficiency report.
func (m *Monitor) GenerateReport() EfficiencyReport {
	summary := m.coord.AggregateReport()

	report := EfficiencyReport{
		Timestamp:       time.Now(),
		Summary:         summary,
		EfficiencyScore: efficiencyScore(summary.Classes),
		Suggestions:     suggestions(summary.Classes),
	}

	m.logger.Debug("efficiency report generated",
		zap.Float64("score", report.EfficiencyScore),
		zap.Int("classes", summary.ActiveClasses))

	return report
}

// efficiencyScore averages per-class scores built from success rate,
// current delay, performance level and trend.
func efficiencyScore(classes map[string]pacer.Snapshot) float64 {
	if len(classes) == 0 {
		return 0
	}

	var sum float64

	for _, snap := range classes {
		score := successScore(snap.RecentSuccessRate)*successScoreWeight +
			delayScore(snap.CurrentDelay)*delayScoreWeight +
			levelScore(snap.PerformanceLevel)*levelScoreWeight +
			trendScore(snap.Trend)*trendScoreWeight
		sum += score
	}

	return sum / float64(len(classes))
}

func successScore(rate float64) float64 {
	switch {
	case rate >= excellentSuccessRate:
		return 100
	case rate >= goodSuccessRate:
		return 80
	case rate >= poorSuccessRate:
		return 60
	default:
		score := rate * 60
		if score < 0 {
			score = 0
		}

		return score
	}
}

func delayScore(delay time.Duration) float64 {
	switch {
	case delay <= 1*time.Second:
		return 100
	case delay <= highDelayThreshold:
		return 80
	case delay <= maxAcceptableDelay:
		return 60
	default:
		score := 60 - (delay.Seconds()-maxAcceptableDelay.Seconds())*4
		if score < 20 {
			score = 20
		}

		return score
	}
}

func levelScore(level pacer.PerformanceLevel) float64 {
	switch level {
	case pacer.LevelExcellent:
		return 100
	case pacer.LevelGood:
		return 80
	case pacer.LevelFair:
		return 60
	case pacer.LevelPoor:
		return 30
	default:
		return 30
	}
}

func trendScore(trend pacer.Trend) float64 {
	switch trend {
	case pacer.TrendImproving:
		return 100
	case pacer.TrendStable:
		return 75
	case pacer.TrendDeclining:
		return 40
	default:
		return 50
	}
}

// suggestions derives global optimization advice from the class snapshots.
func suggestions(classes map[string]pacer.Snapshot) []string {
	if len(classes) == 0 {
		return []string{"no caller classes registered; pacing is not configured"}
	}

	var out []string

	var poorPerformers, highDelay, declining []string

	var successSum float64

	totalErrors := make(map[pacer.ErrorKind]int64)

	for _, class := range sortedClassNames(classes) {
		snap := classes[class]
		successSum += snap.RecentSuccessRate

		if snap.PerformanceLevel == pacer.LevelPoor {
			poorPerformers = append(poorPerformers, class)
		}

		if snap.CurrentDelay > highDelayThreshold {
			highDelay = append(highDelay, fmt.Sprintf("%s (%.1fs)", class, snap.CurrentDelay.Seconds()))
		}

		if snap.Trend == pacer.TrendDeclining {
			declining = append(declining, class)
		}

		for kind, count := range snap.ErrorBreakdown {
			totalErrors[kind] += count
		}
	}

	if len(poorPerformers) > 0 {
		out = append(out, fmt.Sprintf(
			"poorly performing classes (%s): check network connectivity and API service status",
			strings.Join(poorPerformers, ", ")))
	}

	if len(highDelay) > 0 {
		out = append(out, fmt.Sprintf(
			"high-delay classes (%s): consider adjusting base delays or checking API response times",
			strings.Join(highDelay, ", ")))
	}

	if len(declining) > 0 {
		out = append(out, fmt.Sprintf(
			"declining classes (%s): watch error logs; a reset or configuration change may be needed",
			strings.Join(declining, ", ")))
	}

	avgSuccess := successSum / float64(len(classes))

	switch {
	case avgSuccess < goodSuccessRate:
		out = append(out, "overall success rate is low: consider a more conservative pacing configuration")
	case avgSuccess >= excellentSuccessRate:
		out = append(out, "overall performance is excellent: aggressive mode could improve throughput")
	}

	if kind, count := dominantError(totalErrors); count > dominantErrorMinCount {
		out = append(out, fmt.Sprintf(
			"frequent %s errors (%d occurrences): check the corresponding service configuration", kind, count))
	}

	if len(out) == 0 {
		out = append(out, "system is operating well; no tuning needed")
	}

	return out
}

func dominantError(tally map[pacer.ErrorKind]int64) (pacer.ErrorKind, int64) {
	var (
		maxKind  pacer.ErrorKind
		maxCount int64
	)

	for kind, count := range tally {
		if count > maxCount || (count == maxCount && kind < maxKind) {
			maxKind = kind
			maxCount = count
		}
	}

	return maxKind, maxCount
}

func sortedClassNames(classes map[string]pacer.Snapshot) []string {
	names := make([]string, 0, len(classes))
	for class := range classes {
		names = append(names, class)
	}

	sort.Strings(names)

	return names
}
