// Package coordinator owns one adaptive rate controller per caller class
// and exposes worker-pool sizing, per-class caller locks and cross-class
// performance aggregation. It holds no call-outcome logic itself; all
// delay computation lives in the pacer package.
package coordinator

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	customerrors "github.com/actual-software/llm-pacer/internal/errors"
	"github.com/actual-software/llm-pacer/internal/metrics"
	"github.com/actual-software/llm-pacer/pkg/pacer"
)

// defaultWorkerCount is the advisory pool size for classes that never had
// one set explicitly.
const defaultWorkerCount = 1

// Coordinator is a registry of rate controllers keyed by caller class.
// Callers never construct controllers directly; a class name never seen
// before is created on first use with its default configuration.
//
// The registry mutex is held only around first-time creation of a
// per-class entry; steady-state traffic goes straight to the already
// created controller, so different classes never contend.
type Coordinator struct {
	logger  *zap.Logger
	metrics *metrics.Registry

	mu          sync.Mutex
	controllers map[string]*pacer.Controller
	locks       map[string]*sync.Mutex
	workers     map[string]int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics registers Prometheus collectors against reg and wires them
// into every controller the coordinator creates.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Coordinator) {
		c.metrics = metrics.NewRegistry(reg)
	}
}

// New creates an empty coordinator. The logger may be nil.
func New(logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Coordinator{
		logger:      logger,
		controllers: make(map[string]*pacer.Controller),
		locks:       make(map[string]*sync.Mutex),
		workers:     make(map[string]int),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RegisterClass creates a controller with an explicit configuration. It
// fails on invalid configuration or when the class is already registered.
func (c *Coordinator) RegisterClass(cfg pacer.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.controllers[cfg.Class]; exists {
		return errAlreadyRegistered(cfg.Class)
	}

	var recorder pacer.StatsRecorder
	if c.metrics != nil {
		recorder = c.metrics
	}

	ctrl, err := pacer.NewController(cfg, c.logger, recorder)
	if err != nil {
		return err
	}

	c.controllers[cfg.Class] = ctrl

	return nil
}

// Controller returns the rate controller for a caller class, creating it
// with the class default configuration on first use.
func (c *Coordinator) Controller(class string) *pacer.Controller {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.controllerLocked(class)
}

func (c *Coordinator) controllerLocked(class string) *pacer.Controller {
	if ctrl, ok := c.controllers[class]; ok {
		return ctrl
	}

	var recorder pacer.StatsRecorder
	if c.metrics != nil {
		recorder = c.metrics
	}

	// Default configurations always validate.
	ctrl, err := pacer.NewController(pacer.DefaultConfig(class), c.logger, recorder)
	if err != nil {
		c.logger.DPanic("default controller construction failed",
			zap.String("class", class), zap.Error(err))

		return nil
	}

	c.controllers[class] = ctrl

	return ctrl
}

// GetDelay returns the delay the next caller of the class should sleep
// before issuing its call. Sleeping happens on the caller's side, outside
// any lock held here.
func (c *Coordinator) GetDelay(class string) time.Duration {
	return c.Controller(class).GetDelay()
}

// RecordOutcome reports the result of one completed call for a class.
func (c *Coordinator) RecordOutcome(class string, succeeded bool, latency time.Duration, statusCode int, kind pacer.ErrorKind) {
	c.Controller(class).RecordOutcome(succeeded, latency, statusCode, kind)
}

// Report returns a point-in-time snapshot for one class.
func (c *Coordinator) Report(class string) pacer.Snapshot {
	return c.Controller(class).Report()
}

// Reset clears the adaptive state of one class, keeping its configuration.
func (c *Coordinator) Reset(class string) {
	c.Controller(class).Reset()
}

// WorkerCount returns the advisory worker-pool size for a class. The
// coordinator does not enforce it; the value only advises whatever pool
// the caller manages.
func (c *Coordinator) WorkerCount(class string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.workers[class]; ok {
		return n
	}

	return defaultWorkerCount
}

// SetWorkerCount stores the advisory worker-pool size for a class.
// Negative values are clamped to zero.
func (c *Coordinator) SetWorkerCount(class string, workers int) {
	if workers < 0 {
		workers = 0
	}

	c.mu.Lock()
	c.workers[class] = workers
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetWorkerCount(class, workers)
	}

	c.logger.Info("worker count updated",
		zap.String("class", class), zap.Int("workers", workers))
}

// Lock returns the per-class mutex for callers that need to guard their
// own cross-goroutine state, such as a shared progress counter. The mutex
// is created on first use and is unrelated to the controller's own lock.
func (c *Coordinator) Lock(class string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.locks[class]; ok {
		return l
	}

	l := &sync.Mutex{}
	c.locks[class] = l

	return l
}

// Classes returns the registered caller classes in sorted order.
func (c *Coordinator) Classes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	classes := make([]string, 0, len(c.controllers))
	for class := range c.controllers {
		classes = append(classes, class)
	}

	sort.Strings(classes)

	return classes
}

// GlobalSnapshot aggregates every registered controller's snapshot.
type GlobalSnapshot struct {
	TotalRequests  int64
	AvgSuccessRate float64
	AvgDelay       time.Duration
	OverallLevel   pacer.PerformanceLevel
	ActiveClasses  int
	Classes        map[string]pacer.Snapshot
}

// AggregateReport collects a snapshot from every registered controller and
// derives cross-class totals and an overall qualitative level.
func (c *Coordinator) AggregateReport() GlobalSnapshot {
	c.mu.Lock()

	controllers := make([]*pacer.Controller, 0, len(c.controllers))
	for _, ctrl := range c.controllers {
		controllers = append(controllers, ctrl)
	}

	c.mu.Unlock()

	global := GlobalSnapshot{
		Classes:      make(map[string]pacer.Snapshot, len(controllers)),
		OverallLevel: pacer.LevelExcellent,
	}

	var successSum float64

	var delaySum time.Duration

	for _, ctrl := range controllers {
		snap := ctrl.Report()
		global.Classes[snap.Class] = snap
		global.TotalRequests += ctrl.Stats().TotalRequests
		successSum += snap.RecentSuccessRate
		delaySum += snap.CurrentDelay
	}

	global.ActiveClasses = len(controllers)

	if len(controllers) > 0 {
		global.AvgSuccessRate = successSum / float64(len(controllers))
		global.AvgDelay = delaySum / time.Duration(len(controllers))
	}

	global.OverallLevel = overallLevel(global.Classes)

	return global
}

// overallLevel classifies the system as excellent while every class sits
// at excellent or good; once any class drops further, the worst class
// level carries.
func overallLevel(classes map[string]pacer.Snapshot) pacer.PerformanceLevel {
	if len(classes) == 0 {
		return pacer.LevelExcellent
	}

	worst := pacer.LevelExcellent

	for _, snap := range classes {
		if levelRank(snap.PerformanceLevel) > levelRank(worst) {
			worst = snap.PerformanceLevel
		}
	}

	if levelRank(worst) <= levelRank(pacer.LevelGood) {
		return pacer.LevelExcellent
	}

	return worst
}

func errAlreadyRegistered(class string) error {
	return customerrors.NewValidationError("caller class is already registered").
		WithComponent("coordinator").
		WithContext("class", class)
}

func levelRank(level pacer.PerformanceLevel) int {
	switch level {
	case pacer.LevelExcellent:
		return 0
	case pacer.LevelGood:
		return 1
	case pacer.LevelFair:
		return 2
	case pacer.LevelPoor:
		return 3
	default:
		return 3
	}
}
