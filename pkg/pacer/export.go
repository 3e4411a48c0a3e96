package pacer

import (
	"encoding/json"
	"os"

	"go.uber.org/zap"

	customerrors "github.com/actual-software/llm-pacer/internal/errors"
)

const stateFileMode = 0o600

// exportedConfig is the wire form of a controller configuration in the
// diagnostic state dump. Durations are expressed in seconds.
type exportedConfig struct {
	AgentType             string              `json:"agent_type"`
	BaseDelay             float64             `json:"base_delay"`
	MinDelay              float64             `json:"min_delay"`
	MaxDelay              float64             `json:"max_delay"`
	WindowSize            int                 `json:"window_size"`
	TimeWindow            float64             `json:"time_window"`
	AggressiveMode        bool                `json:"aggressive_mode"`
	CurrentAdaptiveFactor float64             `json:"current_adaptive_factor"`
	LearningRate          float64             `json:"learning_rate"`
	StabilityThreshold    float64             `json:"stability_threshold"`
	AgentConfig           exportedClassConfig `json:"agent_config"`
}

type exportedClassConfig struct {
	TargetSuccessRate  float64 `json:"target_success_rate"`
	MaxDelayMultiplier float64 `json:"max_delay_multiplier"`
	ResponseTimeWeight float64 `json:"response_time_weight"`
}

type exportedStats struct {
	TotalRequests   int64               `json:"total_requests"`
	SuccessRate     float64             `json:"success_rate"`
	AvgResponseTime float64             `json:"avg_response_time"`
	ErrorBreakdown  map[ErrorKind]int64 `json:"error_breakdown"`
}

type exportedState struct {
	Config    exportedConfig `json:"config"`
	Stats     exportedStats  `json:"stats"`
	Timestamp float64        `json:"timestamp"`
}

// ExportConfig returns the controller configuration and adaptive state in
// the diagnostic wire form.
func (c *Controller) ExportConfig() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	ec := c.exportedConfigLocked()

	return map[string]interface{}{
		"agent_type":              ec.AgentType,
		"base_delay":              ec.BaseDelay,
		"min_delay":               ec.MinDelay,
		"max_delay":               ec.MaxDelay,
		"window_size":             ec.WindowSize,
		"time_window":             ec.TimeWindow,
		"aggressive_mode":         ec.AggressiveMode,
		"current_adaptive_factor": ec.CurrentAdaptiveFactor,
		"learning_rate":           ec.LearningRate,
		"stability_threshold":     ec.StabilityThreshold,
		"agent_config": map[string]interface{}{
			"target_success_rate":  ec.AgentConfig.TargetSuccessRate,
			"max_delay_multiplier": ec.AgentConfig.MaxDelayMultiplier,
			"response_time_weight": ec.AgentConfig.ResponseTimeWeight,
		},
	}
}

// SaveState writes a one-way diagnostic dump of the configuration, adaptive
// state and lifetime statistics to the given path. There is no read path;
// this is not a restart checkpoint. I/O failures are surfaced to the caller
// and do not affect controller state.
func (c *Controller) SaveState(path string) error {
	c.mu.Lock()

	state := exportedState{
		Config: c.exportedConfigLocked(),
		Stats: exportedStats{
			TotalRequests:   c.stats.TotalRequests,
			SuccessRate:     c.stats.SuccessRate,
			AvgResponseTime: c.stats.AvgLatency.Seconds(),
			ErrorBreakdown:  copyTally(c.errorTally),
		},
		Timestamp: float64(c.now().UnixNano()) / 1e9,
	}

	c.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return customerrors.NewIOError("failed to encode controller state", err).
			WithComponent("pacer").
			WithOperation("save_state")
	}

	if err := os.WriteFile(path, data, stateFileMode); err != nil {
		return customerrors.NewIOError("failed to write controller state", err).
			WithComponent("pacer").
			WithOperation("save_state").
			WithContext("path", path)
	}

	c.logger.Info("controller state saved", zap.String("path", path))

	return nil
}

// exportedConfigLocked builds the wire form of the configuration. Caller
// must hold c.mu.
func (c *Controller) exportedConfigLocked() exportedConfig {
	return exportedConfig{
		AgentType:             c.cfg.Class,
		BaseDelay:             c.cfg.BaseDelay.Seconds(),
		MinDelay:              c.cfg.MinDelay.Seconds(),
		MaxDelay:              c.cfg.MaxDelay.Seconds(),
		WindowSize:            c.cfg.WindowSize,
		TimeWindow:            c.cfg.TimeWindow.Seconds(),
		AggressiveMode:        c.cfg.Aggressive,
		CurrentAdaptiveFactor: c.adaptiveFactor,
		LearningRate:          learningRate,
		StabilityThreshold:    stabilityThreshold,
		AgentConfig: exportedClassConfig{
			TargetSuccessRate:  c.cfg.TargetSuccessRate,
			MaxDelayMultiplier: c.cfg.MaxDelayMultiplier,
			ResponseTimeWeight: c.cfg.ResponseTimeWeight,
		},
	}
}

func copyTally(tally map[ErrorKind]int64) map[ErrorKind]int64 {
	out := make(map[ErrorKind]int64, len(tally))
	for kind, count := range tally {
		out[kind] = count
	}

	return out
}
