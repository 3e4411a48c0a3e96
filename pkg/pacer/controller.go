package pacer

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/actual-software/llm-pacer/internal/window"
)

const (
	// learningRate scales the periodic adaptive-factor drift.
	learningRate = 0.1
	// stabilityThreshold is reported in state exports for diagnostics.
	stabilityThreshold = 0.95

	// adjustmentInterval gates the adaptive-factor drift. Calls landing
	// between adjustments observe a stale factor; that staleness is
	// intentional damping under bursty concurrent load.
	adjustmentInterval = 5 * time.Second

	minAdaptiveFactor = 0.2
	maxAdaptiveFactor = 3.0

	// latencyWindowSize bounds the ring of recent call latencies.
	latencyWindowSize = 50
)

// Controller owns the sliding-window history and adaptive state for one
// caller class. It is safe for concurrent use: GetDelay and RecordOutcome
// each hold the controller mutex for their full duration, so the delay
// computation is atomic with respect to concurrent outcome recording.
type Controller struct {
	logger   *zap.Logger
	recorder StatsRecorder

	mu  sync.Mutex
	cfg Config

	history              *window.Ring[Outcome]
	timeWindow           *window.TimeQueue[Outcome]
	latencies            *window.Ring[time.Duration]
	errorTally           map[ErrorKind]int64
	consecutiveFailures  int
	consecutiveSuccesses int

	adaptiveFactor float64
	lastAdjustment time.Time
	currentDelay   time.Duration
	stats          Stats

	now func() time.Time
}

// NewController creates a controller for one caller class. The logger may
// be nil. The recorder may be nil when no instrumentation is wanted.
// Construction fails only on invalid configuration.
func NewController(cfg Config, logger *zap.Logger, recorder StatsRecorder) (*Controller, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		logger:   logger.With(zap.String("class", cfg.Class)),
		recorder: recorder,
		cfg:      cfg,
		history:  window.NewRing[Outcome](cfg.WindowSize),
		timeWindow: window.NewTimeQueue(func(o Outcome) time.Time {
			return o.Timestamp
		}),
		latencies:      window.NewRing[time.Duration](latencyWindowSize),
		errorTally:     make(map[ErrorKind]int64),
		adaptiveFactor: 1.0,
		currentDelay:   cfg.BaseDelay,
		now:            time.Now,
	}
	c.lastAdjustment = c.now()

	c.logger.Info("adaptive rate controller created",
		zap.Duration("base_delay", cfg.BaseDelay),
		zap.Float64("target_success_rate", cfg.TargetSuccessRate))

	return c, nil
}

// Class returns the caller class this controller serves.
func (c *Controller) Class() string {
	return c.cfg.Class
}

// Config returns a copy of the controller configuration.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cfg
}

// SetBaseDelay updates the base delay live. The new value is clamped into
// [MinDelay, MaxDelay]; all other configuration is fixed at construction.
func (c *Controller) SetBaseDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d < c.cfg.MinDelay {
		d = c.cfg.MinDelay
	}

	if d > c.cfg.MaxDelay {
		d = c.cfg.MaxDelay
	}

	c.cfg.BaseDelay = d

	c.logger.Info("base delay updated", zap.Duration("base_delay", d))
}

// GetDelay returns the delay the next caller should sleep before issuing
// its call. It never blocks; sleeping is the caller's responsibility and
// must happen outside any lock held by this package.
func (c *Controller) GetDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneTimeWindow()

	delay := c.computeAdaptiveDelay()

	if delay < c.cfg.MinDelay {
		delay = c.cfg.MinDelay
	}

	if delay > c.cfg.MaxDelay {
		delay = c.cfg.MaxDelay
	}

	c.currentDelay = delay

	if c.recorder != nil {
		c.recorder.SetDelay(c.cfg.Class, delay)
	}

	return delay
}

// RecordOutcome ingests the result of one completed call. A failed outcome
// with an empty error kind is classified as ErrorUnknown. Latency and
// status code are optional; pass zero when unknown.
func (c *Controller) RecordOutcome(succeeded bool, latency time.Duration, statusCode int, kind ErrorKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	timestamp := c.now()

	if !succeeded && kind == "" {
		kind = ErrorUnknown
	}

	if succeeded {
		kind = ""
	}

	rec := Outcome{
		Timestamp:  timestamp,
		Succeeded:  succeeded,
		ErrorKind:  kind,
		Latency:    latency,
		StatusCode: statusCode,
		Class:      c.cfg.Class,
	}

	c.history.Append(rec)
	c.timeWindow.Append(rec)

	if succeeded {
		c.consecutiveSuccesses++
		c.consecutiveFailures = 0
	} else {
		c.consecutiveFailures++
		c.consecutiveSuccesses = 0
		c.errorTally[kind]++
	}

	if latency > 0 {
		c.latencies.Append(latency)
	}

	c.updateStats(timestamp, succeeded)

	if c.recorder != nil {
		c.recorder.ObserveOutcome(c.cfg.Class, succeeded, kind, latency)
	}

	c.adjustAdaptiveFactor(timestamp)

	c.logger.Debug("outcome recorded",
		zap.Bool("succeeded", succeeded),
		zap.String("error_kind", string(kind)),
		zap.Duration("latency", latency),
		zap.Duration("current_delay", c.currentDelay))
}

// Reset clears all window and counter state, restoring the adaptive factor
// to 1.0 and the current delay to the base delay. Configuration is kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history.Clear()
	c.timeWindow.Clear()
	c.latencies.Clear()
	c.errorTally = make(map[ErrorKind]int64)
	c.consecutiveFailures = 0
	c.consecutiveSuccesses = 0
	c.adaptiveFactor = 1.0
	c.currentDelay = c.cfg.BaseDelay
	c.lastAdjustment = c.now()
	c.stats = Stats{}

	if c.recorder != nil {
		c.recorder.SetDelay(c.cfg.Class, c.currentDelay)
		c.recorder.SetAdaptiveFactor(c.cfg.Class, c.adaptiveFactor)
	}

	c.logger.Info("rate controller reset")
}

// Stats returns a copy of the lifetime statistics.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

// adjustAdaptiveFactor applies the periodic multiplicative drift. It is a
// no-op unless adjustmentInterval has elapsed since the last adjustment.
func (c *Controller) adjustAdaptiveFactor(timestamp time.Time) {
	if timestamp.Sub(c.lastAdjustment) < adjustmentInterval {
		return
	}

	successRate := c.recentSuccessRate()

	switch {
	case successRate >= c.cfg.TargetSuccessRate:
		// Performing at target: shrink toward faster pacing.
		rate := learningRate * 1.2
		if c.cfg.Aggressive {
			rate = learningRate * 2
		}

		c.adaptiveFactor *= 1 - rate*0.5
	case successRate < c.cfg.TargetSuccessRate-0.1:
		// Well below target: grow toward slower pacing.
		c.adaptiveFactor *= 1 + learningRate*1.5
	}

	if c.adaptiveFactor < minAdaptiveFactor {
		c.adaptiveFactor = minAdaptiveFactor
	}

	if c.adaptiveFactor > maxAdaptiveFactor {
		c.adaptiveFactor = maxAdaptiveFactor
	}

	c.lastAdjustment = timestamp

	if c.recorder != nil {
		c.recorder.SetAdaptiveFactor(c.cfg.Class, c.adaptiveFactor)
	}

	c.logger.Debug("adaptive factor adjusted",
		zap.Float64("adaptive_factor", c.adaptiveFactor),
		zap.Float64("recent_success_rate", successRate))
}

// recentSuccessRate computes the success fraction over the most recent
// min(15, len(history)) records; 1.0 when the history is empty.
func (c *Controller) recentSuccessRate() float64 {
	if c.history.Len() == 0 {
		return 1.0
	}

	recent := c.history.Last(recentWindow)

	successes := 0

	for _, r := range recent {
		if r.Succeeded {
			successes++
		}
	}

	return float64(successes) / float64(len(recent))
}

func (c *Controller) pruneTimeWindow() {
	c.timeWindow.Prune(c.now().Add(-c.cfg.TimeWindow))
}

func (c *Controller) updateStats(timestamp time.Time, succeeded bool) {
	c.stats.TotalRequests++

	if succeeded {
		c.stats.SuccessfulRequests++
	} else {
		c.stats.FailedRequests++
	}

	c.stats.SuccessRate = float64(c.stats.SuccessfulRequests) / float64(c.stats.TotalRequests)

	c.stats.AvgLatency = c.meanLatency()
	c.stats.LastUpdated = timestamp
}

func (c *Controller) meanLatency() time.Duration {
	if c.latencies.Len() == 0 {
		return 0
	}

	var sum time.Duration
	for _, l := range c.latencies.Items() {
		sum += l
	}

	return sum / time.Duration(c.latencies.Len())
}
