// Package filter contains the pure filtering decision engine.
// This package has NO external dependencies (no MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package filter

import "time"

// Config holds the immutable filtering parameters for one sensor.
type Config struct {
	// Minimum absolute change in the (possibly averaged) raw value
	// required to move the comparison baseline. Must be >= 0.
	ValueDelta float64

	// Number of decimal digits the published value is rounded to.
	// Must be >= 0.
	Precision int

	// When non-nil, every sample is replaced by the arithmetic mean of
	// all samples seen within the window ending at the sample's time.
	AverageWindow *time.Duration

	// When non-nil, a republish is forced at least once per interval
	// even if the value has not changed (liveness heartbeat).
	UpdateInterval *time.Duration
}

// Input is a single sample, or the unavailable sentinel, fed to the engine.
type Input struct {
	// Value is the raw numeric reading. Ignored when Valid is false.
	Value float64

	// Valid is false when the source is unavailable or non-numeric.
	Valid bool

	// Time is the caller-supplied current instant. The engine never
	// reads the clock itself.
	Time time.Time

	// TimerTick is true when this call originates from a periodic poll
	// rather than a change of the watched source.
	TimerTick bool
}

// Outcome is the result of one filtering decision.
type Outcome struct {
	// Value is the rounded value to publish. Nil when the source is
	// unavailable or when nothing should be emitted.
	Value *float64

	// Emit reports whether the caller should publish now.
	Emit bool
}
