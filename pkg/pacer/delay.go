package pacer

import "time"

// Term weights for the combined delay adjustment. The response-time term
// uses the per-class weight from the configuration instead of a fixed one.
const (
	successRateWeight = 0.35
	errorTypeWeight   = 0.25
	consecutiveWeight = 0.15
	trendWeight       = 0.10
)

const (
	// recentWindow bounds the records considered for the recent success rate.
	recentWindow = 15
	// errorScanWindow bounds the records scanned for error severity.
	errorScanWindow = 20
	// trendWindow is the number of records split into halves for the trend.
	trendWindow = 10
	// recentLatencySamples is the tail compared against the overall mean.
	recentLatencySamples = 5
)

// errorSeverity maps each failure kind to its delay-pressure weight. Rate
// limiting is the strongest signal; client errors barely move the delay.
func errorSeverity(kind ErrorKind) float64 {
	switch kind {
	case ErrorRateLimited:
		return 1.0
	case ErrorServer:
		return 0.5
	case ErrorTimeout:
		return 0.4
	case ErrorNetwork:
		return 0.3
	case ErrorClient:
		return 0.1
	case ErrorUnknown:
		return 0.3
	default:
		return 0.3
	}
}

// computeAdaptiveDelay combines five independent adjustment terms into a
// multiplier on the adaptive base delay. Caller must hold c.mu.
func (c *Controller) computeAdaptiveDelay() time.Duration {
	if c.history.Len() == 0 {
		return c.cfg.BaseDelay
	}

	base := c.cfg.BaseDelay.Seconds() * c.adaptiveFactor

	total := c.successRateAdjustment(c.recentSuccessRate())*successRateWeight +
		c.errorTypeAdjustment()*errorTypeWeight +
		c.responseTimeAdjustment()*c.cfg.ResponseTimeWeight +
		c.consecutiveAdjustment()*consecutiveWeight +
		c.trendAdjustment()*trendWeight

	adjusted := base * (1 + total)

	maxAllowed := c.cfg.BaseDelay.Seconds() * c.cfg.MaxDelayMultiplier
	if adjusted > maxAllowed {
		adjusted = maxAllowed
	}

	return time.Duration(adjusted * float64(time.Second))
}

// successRateAdjustment is piecewise in the distance between the recent
// success rate and the class target: margin above the target earns a
// reduction, deficit below it earns a progressively steeper increase.
func (c *Controller) successRateAdjustment(successRate float64) float64 {
	target := c.cfg.TargetSuccessRate

	switch {
	case successRate >= target:
		maxExcess := 1.0 - target
		if maxExcess > 0 {
			return -0.3 * (successRate - target) / maxExcess
		}

		return -0.1
	case successRate >= target-0.1:
		return 0.1 * (target - successRate) / 0.1
	case successRate >= target-0.2:
		return 0.4 * (target - successRate) / 0.2
	default:
		deficit := (target - successRate) / 0.3
		if deficit > 1 {
			deficit = 1
		}

		return 0.6 * deficit
	}
}

// errorTypeAdjustment averages the severity of failures among the last
// errorScanWindow records, capped at 1.0; zero when none failed.
func (c *Controller) errorTypeAdjustment() float64 {
	recent := c.history.Last(errorScanWindow)

	var sum float64

	failures := 0

	for _, r := range recent {
		if r.Succeeded {
			continue
		}

		sum += errorSeverity(r.ErrorKind)
		failures++
	}

	if failures == 0 {
		return 0
	}

	adjustment := sum / float64(failures)
	if adjustment > 1 {
		adjustment = 1
	}

	return adjustment
}

// responseTimeAdjustment compares the mean of the most recent latencies to
// the mean over the whole latency window. Requires at least
// recentLatencySamples samples.
func (c *Controller) responseTimeAdjustment() float64 {
	if c.latencies.Len() < recentLatencySamples {
		return 0
	}

	overall := meanSeconds(c.latencies.Items())
	recent := meanSeconds(c.latencies.Last(recentLatencySamples))

	switch {
	case recent > overall*3.0:
		return 0.4
	case recent > overall*2.0:
		return 0.2
	case recent > overall*1.3:
		return 0.1
	case recent < overall*0.7:
		return -0.1
	default:
		return 0
	}
}

// consecutiveAdjustment penalizes failure streaks and rewards long success
// streaks. The counters are mutually exclusive, so at most one branch fires.
func (c *Controller) consecutiveAdjustment() float64 {
	switch {
	case c.consecutiveFailures >= 3:
		return 0.3 + float64(c.consecutiveFailures-3)*0.1
	case c.consecutiveFailures >= 2:
		return 0.2
	case c.consecutiveSuccesses >= 15:
		return -0.2
	case c.consecutiveSuccesses >= 8:
		return -0.1
	default:
		return 0
	}
}

// trendAdjustment compares the success fraction of the two halves of the
// last trendWindow records: an improving trend lowers the delay, a
// worsening one raises it.
func (c *Controller) trendAdjustment() float64 {
	if c.history.Len() < trendWindow {
		return 0
	}

	recent := c.history.Last(trendWindow)
	half := trendWindow / 2

	firstHalf := successFraction(recent[:half])
	secondHalf := successFraction(recent[half:])

	return -(secondHalf - firstHalf) * 0.15
}

func successFraction(records []Outcome) float64 {
	if len(records) == 0 {
		return 0
	}

	successes := 0

	for _, r := range records {
		if r.Succeeded {
			successes++
		}
	}

	return float64(successes) / float64(len(records))
}

func meanSeconds(latencies []time.Duration) float64 {
	if len(latencies) == 0 {
		return 0
	}

	var sum float64
	for _, l := range latencies {
		sum += l.Seconds()
	}

	return sum / float64(len(latencies))
}
