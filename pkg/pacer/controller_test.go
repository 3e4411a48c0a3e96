package pacer

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeClock drives controller time deterministically in tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func testConfig() Config {
	return Config{
		Class:              "test",
		BaseDelay:          1 * time.Second,
		MinDelay:           100 * time.Millisecond,
		MaxDelay:           20 * time.Second,
		WindowSize:         50,
		TimeWindow:         5 * time.Minute,
		TargetSuccessRate:  0.95,
		MaxDelayMultiplier: 3.0,
		ResponseTimeWeight: 0.3,
	}
}

func newTestController(t *testing.T, cfg Config) (*Controller, *fakeClock) {
	t.Helper()

	ctrl, err := NewController(cfg, zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	clock := newFakeClock()
	ctrl.now = clock.Now
	ctrl.lastAdjustment = clock.Now()

	return ctrl, clock
}

func TestNewController_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "min above base",
			mutate: func(c *Config) { c.MinDelay = 2 * time.Second },
		},
		{
			name:   "base above max",
			mutate: func(c *Config) { c.BaseDelay = 30 * time.Second },
		},
		{
			name:   "target above one",
			mutate: func(c *Config) { c.TargetSuccessRate = 1.5 },
		},
		{
			name:   "negative target",
			mutate: func(c *Config) { c.TargetSuccessRate = -0.5 },
		},
		{
			name:   "multiplier below one",
			mutate: func(c *Config) { c.MaxDelayMultiplier = 0.5 },
		},
		{
			name:   "response time weight above one",
			mutate: func(c *Config) { c.ResponseTimeWeight = 1.5 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := NewController(cfg, zaptest.NewLogger(t), nil)
			require.Error(t, err)
		})
	}
}

func TestGetDelay_EmptyHistoryReturnsBaseDelay(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig())

	assert.Equal(t, 1*time.Second, ctrl.GetDelay())
}

func TestGetDelay_AlwaysClamped(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDelay = 2 * time.Second
	ctrl, clock := newTestController(t, cfg)

	rng := rand.New(rand.NewSource(42))
	kinds := []ErrorKind{ErrorRateLimited, ErrorServer, ErrorTimeout, ErrorNetwork, ErrorClient, ErrorUnknown}

	for i := 0; i < 500; i++ {
		succeeded := rng.Intn(3) > 0
		latency := time.Duration(rng.Intn(5000)) * time.Millisecond

		kind := ErrorKind("")
		if !succeeded {
			kind = kinds[rng.Intn(len(kinds))]
		}

		ctrl.RecordOutcome(succeeded, latency, 0, kind)
		clock.Advance(time.Duration(rng.Intn(7)) * time.Second)

		delay := ctrl.GetDelay()
		require.GreaterOrEqual(t, delay, cfg.MinDelay)
		require.LessOrEqual(t, delay, cfg.MaxDelay)
	}
}

func TestGetDelay_IncreasesOnFailureStreak(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig())

	before := ctrl.GetDelay()

	for i := 0; i < 5; i++ {
		ctrl.RecordOutcome(false, 0, 429, ErrorRateLimited)
	}

	after := ctrl.GetDelay()
	assert.Greater(t, after, before, "failure streak must raise the delay")
}

func TestGetDelay_DecreasesOnRecovery(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig())

	for i := 0; i < 5; i++ {
		ctrl.RecordOutcome(false, 0, 429, ErrorRateLimited)
	}

	peak := ctrl.GetDelay()

	for i := 0; i < 15; i++ {
		ctrl.RecordOutcome(true, 0, 200, "")
	}

	recovered := ctrl.GetDelay()
	assert.Less(t, recovered, peak, "sustained successes must lower the delay from its peak")
}

func TestGetDelay_ErrorSeverityOrdering(t *testing.T) {
	rateLimited, _ := newTestController(t, testConfig())
	clientErrors, _ := newTestController(t, testConfig())

	for i := 0; i < 5; i++ {
		rateLimited.RecordOutcome(false, 0, 429, ErrorRateLimited)
		clientErrors.RecordOutcome(false, 0, 400, ErrorClient)
	}

	assert.GreaterOrEqual(t, rateLimited.GetDelay(), clientErrors.GetDelay(),
		"rate-limit failures must weigh at least as heavily as client errors")
}

func TestController_ConcreteScenario(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig())

	// Five successes at or above target success rate: the delay must not
	// rise above the base.
	for i := 0; i < 5; i++ {
		ctrl.RecordOutcome(true, 1*time.Second, 200, "")
	}

	afterSuccesses := ctrl.GetDelay()
	assert.LessOrEqual(t, afterSuccesses, 1*time.Second)

	// Four consecutive rate-limit failures must strictly raise it.
	for i := 0; i < 4; i++ {
		ctrl.RecordOutcome(false, 0, 429, ErrorRateLimited)
	}

	afterFailures := ctrl.GetDelay()
	assert.Greater(t, afterFailures, afterSuccesses)

	// Reset restores the base delay exactly.
	ctrl.Reset()
	assert.Equal(t, 1*time.Second, ctrl.GetDelay())
}

func TestRecordOutcome_WindowBound(t *testing.T) {
	cfg := testConfig()
	cfg.WindowSize = 10
	ctrl, _ := newTestController(t, cfg)

	for i := 0; i < 30; i++ {
		ctrl.RecordOutcome(false, 0, 500, ErrorServer)
	}

	assert.Equal(t, 10, ctrl.history.Len())

	// The recent success rate reflects only the most recent records.
	for i := 0; i < 15; i++ {
		ctrl.RecordOutcome(true, 0, 200, "")
	}

	ctrl.mu.Lock()
	rate := ctrl.recentSuccessRate()
	ctrl.mu.Unlock()

	assert.InDelta(t, 1.0, rate, 1e-9)
}

func TestRecordOutcome_DefaultsUnknownErrorKind(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig())

	ctrl.RecordOutcome(false, 0, 0, "")

	snap := ctrl.Report()
	assert.Equal(t, int64(1), snap.ErrorBreakdown[ErrorUnknown])
}

func TestRecordOutcome_ConsecutiveCountersMutuallyExclusive(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig())

	ctrl.RecordOutcome(false, 0, 500, ErrorServer)
	ctrl.RecordOutcome(false, 0, 500, ErrorServer)

	snap := ctrl.Report()
	assert.Equal(t, 2, snap.ConsecutiveFailures)
	assert.Equal(t, 0, snap.ConsecutiveSuccesses)

	ctrl.RecordOutcome(true, 0, 200, "")

	snap = ctrl.Report()
	assert.Equal(t, 0, snap.ConsecutiveFailures)
	assert.Equal(t, 1, snap.ConsecutiveSuccesses)
}

func TestAdaptiveFactor_ShrinksWhenAtTarget(t *testing.T) {
	ctrl, clock := newTestController(t, testConfig())

	for i := 0; i < 5; i++ {
		clock.Advance(6 * time.Second)
		ctrl.RecordOutcome(true, 0, 200, "")
	}

	ctrl.mu.Lock()
	factor := ctrl.adaptiveFactor
	ctrl.mu.Unlock()

	assert.Less(t, factor, 1.0)
	assert.GreaterOrEqual(t, factor, minAdaptiveFactor)
}

func TestAdaptiveFactor_GrowsWhenBelowTarget(t *testing.T) {
	ctrl, clock := newTestController(t, testConfig())

	for i := 0; i < 5; i++ {
		clock.Advance(6 * time.Second)
		ctrl.RecordOutcome(false, 0, 429, ErrorRateLimited)
	}

	ctrl.mu.Lock()
	factor := ctrl.adaptiveFactor
	ctrl.mu.Unlock()

	assert.Greater(t, factor, 1.0)
	assert.LessOrEqual(t, factor, maxAdaptiveFactor)
}

func TestAdaptiveFactor_AdjustmentGated(t *testing.T) {
	ctrl, clock := newTestController(t, testConfig())

	// All records land inside the adjustment interval, so the factor must
	// not move regardless of outcome.
	for i := 0; i < 20; i++ {
		clock.Advance(100 * time.Millisecond)
		ctrl.RecordOutcome(false, 0, 429, ErrorRateLimited)
	}

	ctrl.mu.Lock()
	factor := ctrl.adaptiveFactor
	ctrl.mu.Unlock()

	assert.InDelta(t, 1.0, factor, 1e-9)
}

func TestAdaptiveFactor_ClampedAtBounds(t *testing.T) {
	ctrl, clock := newTestController(t, testConfig())

	for i := 0; i < 100; i++ {
		clock.Advance(6 * time.Second)
		ctrl.RecordOutcome(false, 0, 429, ErrorRateLimited)
	}

	ctrl.mu.Lock()
	factor := ctrl.adaptiveFactor
	ctrl.mu.Unlock()

	assert.InDelta(t, maxAdaptiveFactor, factor, 1e-9)
}

func TestReset_RestoresInitialState(t *testing.T) {
	ctrl, clock := newTestController(t, testConfig())

	for i := 0; i < 20; i++ {
		clock.Advance(6 * time.Second)
		ctrl.RecordOutcome(false, 2*time.Second, 429, ErrorRateLimited)
	}

	ctrl.Reset()

	snap := ctrl.Report()
	assert.Equal(t, 1*time.Second, snap.CurrentDelay)
	assert.InDelta(t, 1.0, snap.AdaptiveFactor, 1e-9)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
	assert.Empty(t, snap.ErrorBreakdown)
	assert.Zero(t, ctrl.Stats().TotalRequests)
}

func TestSetBaseDelay_ClampedToBounds(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig())

	ctrl.SetBaseDelay(50 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, ctrl.Config().BaseDelay)

	ctrl.SetBaseDelay(time.Minute)
	assert.Equal(t, 20*time.Second, ctrl.Config().BaseDelay)

	ctrl.SetBaseDelay(2 * time.Second)
	assert.Equal(t, 2*time.Second, ctrl.Config().BaseDelay)
}

func TestStats_LifetimeCounters(t *testing.T) {
	cfg := testConfig()
	cfg.WindowSize = 5
	ctrl, _ := newTestController(t, cfg)

	// Lifetime counters must survive window eviction.
	for i := 0; i < 8; i++ {
		ctrl.RecordOutcome(true, 500*time.Millisecond, 200, "")
	}

	for i := 0; i < 2; i++ {
		ctrl.RecordOutcome(false, 0, 500, ErrorServer)
	}

	stats := ctrl.Stats()
	assert.Equal(t, int64(10), stats.TotalRequests)
	assert.Equal(t, int64(8), stats.SuccessfulRequests)
	assert.Equal(t, int64(2), stats.FailedRequests)
	assert.InDelta(t, 0.8, stats.SuccessRate, 1e-9)
	assert.Equal(t, 500*time.Millisecond, stats.AvgLatency)
}

func TestController_ConcurrentAccess(t *testing.T) {
	ctrl, _ := newTestController(t, testConfig())

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func(worker int) {
			defer wg.Done()

			for j := 0; j < 200; j++ {
				delay := ctrl.GetDelay()
				assert.GreaterOrEqual(t, delay, 100*time.Millisecond)
				assert.LessOrEqual(t, delay, 20*time.Second)

				ctrl.RecordOutcome(j%5 != 0, time.Duration(j)*time.Millisecond, 200, ErrorServer)

				if j%50 == 0 {
					_ = ctrl.Report()
				}
			}
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int64(1600), ctrl.Stats().TotalRequests)
}
