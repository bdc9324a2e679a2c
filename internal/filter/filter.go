package filter

import (
	"math"
	"time"
)

// Engine decides, for each incoming sample or timer tick, whether the
// published value changes. Not safe for concurrent use: the caller must
// serialize Ingest calls (one consumer loop per engine instance).
type Engine struct {
	cfg Config

	lastEmitted  *float64 // rounded form of the last published value
	lastRaw      *float64 // baseline for delta comparisons (pre-rounding)
	lastEmission time.Time
	hasEmission  bool

	avg *rollingAverage // nil when averaging is disabled
}

// NewEngine creates an engine with the given config. State starts empty,
// so the first numeric sample always publishes.
func NewEngine(cfg Config) *Engine {
	e := &Engine{cfg: cfg}
	if cfg.AverageWindow != nil {
		e.avg = newRollingAverage(*cfg.AverageWindow)
	}
	return e
}

// Ingest processes one sample and reports whether to publish. It never
// panics for any numeric input; non-numeric states must be normalized to
// Valid=false by the caller.
func (e *Engine) Ingest(in Input) Outcome {
	due := e.updateDue(in.Time)

	// Pure poll with nothing due and no averaging buffer to refresh:
	// skip without touching state.
	if in.TimerTick && !due && e.avg == nil {
		return Outcome{}
	}

	if !in.Valid {
		// A transition into unavailable is always reported, even from a
		// prior unavailable state. Clearing both memories makes the next
		// numeric sample publish unconditionally.
		e.lastRaw = nil
		e.lastEmitted = nil
		e.markEmission(in.Time)
		return Outcome{Emit: true}
	}

	x := in.Value
	if e.avg != nil {
		x = e.avg.update(in.Time, x)
	}

	changed := e.lastRaw == nil || math.Abs(x-*e.lastRaw) >= e.cfg.ValueDelta
	candidate := roundTo(x, e.cfg.Precision)
	differs := e.lastEmitted == nil || candidate != *e.lastEmitted

	if changed {
		// The baseline advances even when the rounded output does not,
		// so a slow drift cannot hide behind a stale comparison point.
		v := x
		e.lastRaw = &v
	}

	if due || (changed && differs) {
		c := candidate
		e.lastEmitted = &c
		e.markEmission(in.Time)
		return Outcome{Value: &c, Emit: true}
	}

	return Outcome{}
}

// updateDue reports whether a forced periodic emission is owed at now.
func (e *Engine) updateDue(now time.Time) bool {
	if e.cfg.UpdateInterval == nil {
		return false
	}
	return !e.hasEmission || now.Sub(e.lastEmission) >= *e.cfg.UpdateInterval
}

func (e *Engine) markEmission(now time.Time) {
	e.lastEmission = now
	e.hasEmission = true
}

// LastEmitted returns a copy of the last published (rounded) value, or nil
// if the engine has never published a numeric value.
func (e *Engine) LastEmitted() *float64 {
	if e.lastEmitted == nil {
		return nil
	}
	v := *e.lastEmitted
	return &v
}

// roundTo rounds x to the given number of decimal digits.
func roundTo(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}
