// Package pacer implements an adaptive delay controller for concurrent
// callers of a shared, externally rate-limited API backend. Each caller
// class owns one Controller that observes completed call outcomes and
// advises how long the next caller should wait before issuing its call.
//
// The controller never performs or retries calls itself; it only computes
// a delay and tracks history. Sleeping for the advised delay is the
// caller's responsibility.
package pacer

import "time"

// ErrorKind classifies a failed call outcome.
type ErrorKind string

const (
	// ErrorRateLimited indicates the backend rejected the call for rate
	// limiting (HTTP 429 or equivalent).
	ErrorRateLimited ErrorKind = "rate_limit"
	// ErrorServer indicates a backend-side failure (5xx).
	ErrorServer ErrorKind = "server_error"
	// ErrorTimeout indicates the call exceeded its deadline.
	ErrorTimeout ErrorKind = "timeout"
	// ErrorNetwork indicates a transport-level failure.
	ErrorNetwork ErrorKind = "network"
	// ErrorClient indicates a caller-side failure (4xx other than 429).
	ErrorClient ErrorKind = "client_error"
	// ErrorUnknown is the default classification for unspecified failures.
	ErrorUnknown ErrorKind = "unknown"
)

// Outcome is an immutable record of one completed call. Records are created
// by Controller.RecordOutcome and destroyed only by eviction from the
// bounded history window.
type Outcome struct {
	Timestamp  time.Time
	Succeeded  bool
	ErrorKind  ErrorKind // set only when Succeeded is false
	Latency    time.Duration
	StatusCode int
	Class      string
}

// Stats holds lifetime aggregate statistics for one controller. Counters
// are monotonic and survive window eviction; only Reset clears them.
type Stats struct {
	TotalRequests      int64
	SuccessfulRequests int64
	FailedRequests     int64
	SuccessRate        float64
	AvgLatency         time.Duration
	LastUpdated        time.Time
}

// StatsRecorder receives controller state changes for external
// instrumentation. Implementations must be safe for concurrent use.
type StatsRecorder interface {
	ObserveOutcome(class string, succeeded bool, kind ErrorKind, latency time.Duration)
	SetDelay(class string, delay time.Duration)
	SetAdaptiveFactor(class string, factor float64)
}
