package core

import "time"

// DefaultInterval is the tick cadence used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// FixedStep helps run simulation updates at a steady interval from a loop that
// is polled more often than the interval, such as a 60 TPS game loop.
type FixedStep struct {
	step        time.Duration
	accumulator time.Duration
	last        time.Time
	now         func() time.Time
}

// NewFixedStep constructs a FixedStep controller firing once per interval.
func NewFixedStep(interval time.Duration) *FixedStep {
	fs := &FixedStep{now: time.Now}
	fs.SetInterval(interval)
	fs.accumulator = fs.step
	return fs
}

// SetInterval changes the cadence. It is safe to call from the main loop.
func (f *FixedStep) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	f.step = interval
}

// Interval returns the configured cadence.
func (f *FixedStep) Interval() time.Duration { return f.step }

// ShouldStep reports whether the simulation should advance by one tick.
// At most one tick is reported per call; a loop that falls behind catches up
// over the following calls instead of bursting.
func (f *FixedStep) ShouldStep() bool {
	now := f.now()
	if f.last.IsZero() {
		f.last = now
	}
	delta := now.Sub(f.last)
	f.last = now
	f.accumulator += delta
	if f.accumulator >= f.step {
		f.accumulator -= f.step
		// Never bank more than one extra step.
		if f.accumulator > f.step {
			f.accumulator = f.step
		}
		return true
	}
	return false
}
