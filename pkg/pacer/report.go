package pacer

import (
	"fmt"
	"time"
)

// Trend classifies the direction of the recent success rate.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// PerformanceLevel classifies how far the recent success rate sits below
// the class target.
type PerformanceLevel string

const (
	LevelExcellent PerformanceLevel = "excellent"
	LevelGood      PerformanceLevel = "good"
	LevelFair      PerformanceLevel = "fair"
	LevelPoor      PerformanceLevel = "poor"
)

const (
	trendThreshold = 0.1

	goodLevelMargin = 0.05
	fairLevelMargin = 0.15

	// Recommendation thresholds.
	excessiveDelayMultiplier = 5.0
	reducibleDelayMultiplier = 1.5
	slowLatencyMinSamples    = 8
	slowLatencyThreshold     = 15 * time.Second
	rateLimitTallyThreshold  = 2
	failureStreakThreshold   = 3
)

// Snapshot is a point-in-time, read-only report derived from one
// controller's state.
type Snapshot struct {
	Class                string
	CurrentDelay         time.Duration
	AdaptiveFactor       float64
	RecentSuccessRate    float64
	OverallSuccessRate   float64
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	WindowRequests       int
	AvgLatency           time.Duration
	ErrorBreakdown       map[ErrorKind]int64
	Trend                Trend
	PerformanceLevel     PerformanceLevel
	TargetSuccessRate    float64
	Recommendations      []string
}

// Report computes a snapshot of the controller state. Aside from pruning
// the time window it does not mutate anything.
func (c *Controller) Report() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneTimeWindow()

	breakdown := make(map[ErrorKind]int64, len(c.errorTally))
	for kind, count := range c.errorTally {
		breakdown[kind] = count
	}

	successRate := c.recentSuccessRate()

	return Snapshot{
		Class:                c.cfg.Class,
		CurrentDelay:         c.currentDelay,
		AdaptiveFactor:       c.adaptiveFactor,
		RecentSuccessRate:    successRate,
		OverallSuccessRate:   c.stats.SuccessRate,
		ConsecutiveFailures:  c.consecutiveFailures,
		ConsecutiveSuccesses: c.consecutiveSuccesses,
		WindowRequests:       c.timeWindow.Len(),
		AvgLatency:           c.stats.AvgLatency,
		ErrorBreakdown:       breakdown,
		Trend:                c.trend(),
		PerformanceLevel:     c.performanceLevel(successRate),
		TargetSuccessRate:    c.cfg.TargetSuccessRate,
		Recommendations:      c.recommendations(successRate),
	}
}

// trend compares the success fraction of the older and newer halves of the
// last trendWindow records.
func (c *Controller) trend() Trend {
	if c.history.Len() < trendWindow {
		return TrendStable
	}

	recent := c.history.Last(trendWindow)
	half := trendWindow / 2

	diff := successFraction(recent[half:]) - successFraction(recent[:half])

	switch {
	case diff > trendThreshold:
		return TrendImproving
	case diff < -trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func (c *Controller) performanceLevel(successRate float64) PerformanceLevel {
	target := c.cfg.TargetSuccessRate

	switch {
	case successRate >= target:
		return LevelExcellent
	case successRate >= target-goodLevelMargin:
		return LevelGood
	case successRate >= target-fairLevelMargin:
		return LevelFair
	default:
		return LevelPoor
	}
}

// recommendations derives human-readable advice from simple threshold
// checks over the current state.
func (c *Controller) recommendations(successRate float64) []string {
	var recs []string

	target := c.cfg.TargetSuccessRate
	base := c.cfg.BaseDelay

	if successRate < target-0.1 {
		recs = append(recs, fmt.Sprintf(
			"success rate (%.1f%%) is below target (%.1f%%); consider increasing the delay",
			successRate*100, target*100))
	}

	if c.consecutiveFailures > failureStreakThreshold {
		recs = append(recs, "repeated consecutive failures; check network and API service status")
	}

	if c.errorTally[ErrorRateLimited] > rateLimitTallyThreshold {
		recs = append(recs, "frequent rate-limit errors; consider raising the base delay")
	}

	if c.currentDelay > time.Duration(float64(base)*excessiveDelayMultiplier) {
		recs = append(recs, "current delay is excessive; check API service performance")
	}

	if c.latencies.Len() > slowLatencyMinSamples && c.meanLatency() > slowLatencyThreshold {
		recs = append(recs, "responses are slow; consider trimming request payloads or checking the network")
	}

	if successRate >= target && c.currentDelay > time.Duration(float64(base)*reducibleDelayMultiplier) {
		recs = append(recs, "performance is good; the delay could be lowered to improve throughput")
	}

	if len(recs) == 0 {
		recs = append(recs, "operating normally")
	}

	return recs
}
