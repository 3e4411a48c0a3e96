package pacer

import (
	"fmt"
	"time"

	customerrors "github.com/actual-software/llm-pacer/internal/errors"
)

// Well-known caller classes. Unregistered classes fall back to the
// content-generator profile.
const (
	ClassContentGenerator = "content_generator"
	ClassOrchestrator     = "orchestrator"
	ClassReact            = "react"

	// ClassUnknown tags controllers created for an empty class name.
	ClassUnknown = "unknown"
)

const (
	defaultBaseDelay  = 1 * time.Second
	defaultMinDelay   = 100 * time.Millisecond
	defaultMaxDelay   = 30 * time.Second
	defaultWindowSize = 50
	defaultTimeWindow = 5 * time.Minute
)

// Config holds the per-class tunable parameters for one Controller. All
// fields are fixed at construction except BaseDelay, which may be updated
// live through Controller.SetBaseDelay.
type Config struct {
	Class              string        `mapstructure:"class"                json:"class"`
	BaseDelay          time.Duration `mapstructure:"base_delay"           json:"base_delay"`
	MinDelay           time.Duration `mapstructure:"min_delay"            json:"min_delay"`
	MaxDelay           time.Duration `mapstructure:"max_delay"            json:"max_delay"`
	WindowSize         int           `mapstructure:"window_size"          json:"window_size"`
	TimeWindow         time.Duration `mapstructure:"time_window"          json:"time_window"`
	Aggressive         bool          `mapstructure:"aggressive"           json:"aggressive"`
	TargetSuccessRate  float64       `mapstructure:"target_success_rate"  json:"target_success_rate"`
	MaxDelayMultiplier float64       `mapstructure:"max_delay_multiplier" json:"max_delay_multiplier"`
	ResponseTimeWeight float64       `mapstructure:"response_time_weight" json:"response_time_weight"`
}

// classProfile carries the per-class tuning that differs between the
// built-in caller classes.
type classProfile struct {
	targetSuccessRate  float64
	maxDelayMultiplier float64
	responseTimeWeight float64
}

func classProfiles() map[string]classProfile {
	return map[string]classProfile{
		ClassContentGenerator: {
			targetSuccessRate:  0.95,
			maxDelayMultiplier: 3.0,
			responseTimeWeight: 0.3,
		},
		ClassOrchestrator: {
			targetSuccessRate:  0.98,
			maxDelayMultiplier: 2.0,
			responseTimeWeight: 0.2,
		},
		ClassReact: {
			targetSuccessRate:  0.90,
			maxDelayMultiplier: 4.0,
			responseTimeWeight: 0.4,
		},
	}
}

// DefaultConfig returns the built-in configuration for a caller class. An
// unrecognized class receives the content-generator profile; an empty
// class name is tagged ClassUnknown so the result always validates.
func DefaultConfig(class string) Config {
	if class == "" {
		class = ClassUnknown
	}

	profile, ok := classProfiles()[class]
	if !ok {
		profile = classProfiles()[ClassContentGenerator]
	}

	return Config{
		Class:              class,
		BaseDelay:          defaultBaseDelay,
		MinDelay:           defaultMinDelay,
		MaxDelay:           defaultMaxDelay,
		WindowSize:         defaultWindowSize,
		TimeWindow:         defaultTimeWindow,
		TargetSuccessRate:  profile.targetSuccessRate,
		MaxDelayMultiplier: profile.maxDelayMultiplier,
		ResponseTimeWeight: profile.responseTimeWeight,
	}
}

// WithDefaults fills zero-valued fields from the class defaults.
func (c Config) WithDefaults() Config {
	def := DefaultConfig(c.Class)

	if c.BaseDelay == 0 {
		c.BaseDelay = def.BaseDelay
	}

	if c.MinDelay == 0 {
		c.MinDelay = def.MinDelay
	}

	if c.MaxDelay == 0 {
		c.MaxDelay = def.MaxDelay
	}

	if c.WindowSize == 0 {
		c.WindowSize = def.WindowSize
	}

	if c.TimeWindow == 0 {
		c.TimeWindow = def.TimeWindow
	}

	if c.TargetSuccessRate == 0 {
		c.TargetSuccessRate = def.TargetSuccessRate
	}

	if c.MaxDelayMultiplier == 0 {
		c.MaxDelayMultiplier = def.MaxDelayMultiplier
	}

	if c.ResponseTimeWeight == 0 {
		c.ResponseTimeWeight = def.ResponseTimeWeight
	}

	return c
}

// Validate checks configuration invariants. It is the one place a
// controller constructor may fail.
func (c Config) Validate() error {
	if c.Class == "" {
		return customerrors.NewValidationError("caller class must not be empty").
			WithComponent("pacer")
	}

	if c.MinDelay < 0 {
		return customerrors.NewValidationError("min_delay must not be negative").
			WithComponent("pacer").
			WithContext("class", c.Class)
	}

	if c.MinDelay > c.BaseDelay || c.BaseDelay > c.MaxDelay {
		return customerrors.NewValidationError(
			fmt.Sprintf("delay bounds must satisfy min <= base <= max, got min=%v base=%v max=%v",
				c.MinDelay, c.BaseDelay, c.MaxDelay)).
			WithComponent("pacer").
			WithContext("class", c.Class)
	}

	if c.TargetSuccessRate <= 0 || c.TargetSuccessRate > 1 {
		return customerrors.NewValidationError(
			fmt.Sprintf("target_success_rate must be in (0, 1], got %v", c.TargetSuccessRate)).
			WithComponent("pacer").
			WithContext("class", c.Class)
	}

	if c.WindowSize < 1 {
		return customerrors.NewValidationError("window_size must be at least 1").
			WithComponent("pacer").
			WithContext("class", c.Class)
	}

	if c.TimeWindow <= 0 {
		return customerrors.NewValidationError("time_window must be positive").
			WithComponent("pacer").
			WithContext("class", c.Class)
	}

	if c.MaxDelayMultiplier < 1 {
		return customerrors.NewValidationError(
			fmt.Sprintf("max_delay_multiplier must be at least 1, got %v", c.MaxDelayMultiplier)).
			WithComponent("pacer").
			WithContext("class", c.Class)
	}

	if c.ResponseTimeWeight < 0 || c.ResponseTimeWeight > 1 {
		return customerrors.NewValidationError(
			fmt.Sprintf("response_time_weight must be in [0, 1], got %v", c.ResponseTimeWeight)).
			WithComponent("pacer").
			WithContext("class", c.Class)
	}

	return nil
}
