package metronome

import (
	"math"
	"sync/atomic"
)

// DriftPolicy selects what happens to the accumulated drift error when the
// tempo changes mid-playback.
type DriftPolicy int

const (
	// DriftCarry keeps the accumulated error across tempo changes,
	// preserving sub-sample phase continuity.
	DriftCarry DriftPolicy = iota
	// DriftReset zeroes the accumulator on every tempo change.
	DriftReset
)

// DriftTracker bounds the timing error that builds up from playing each beat
// as an integer number of samples. Truncating samplesPerBeat to a whole step
// discards a fractional remainder every beat; the tracker accumulates that
// remainder and, once it leaves [-0.5, 0.5], folds a one-sample correction
// into the next beat's step.
type DriftTracker struct {
	frac float64 // fractional samples gained per beat, in [0, 1)
	acc  atomicFloat64
}

// NewDriftTracker returns a tracker for the given real-valued samples per
// beat. Only the fractional part matters.
func NewDriftTracker(samplesPerBeat float64) *DriftTracker {
	return &DriftTracker{frac: samplesPerBeat - math.Floor(samplesPerBeat)}
}

// AdvanceBeat records the crossing of a beat boundary and returns the
// correction to apply to the next beat's step: -1, 0 or +1 samples.
// The accumulator is back inside [-0.5, 0.5] when this returns.
func (d *DriftTracker) AdvanceBeat() int {
	acc := d.acc.Load() + d.frac
	extra := 0
	switch {
	case acc > 0.5:
		extra = 1
		acc -= 1.0
	case acc < -0.5:
		extra = -1
		acc += 1.0
	}
	d.acc.Store(acc)
	return extra
}

// Step returns the corrected step for the next beat given the nominal
// (truncated) per-beat step.
func (d *DriftTracker) Step(nominal int) int {
	return nominal + d.AdvanceBeat()
}

// Accumulated returns the current drift error in samples.
func (d *DriftTracker) Accumulated() float64 {
	return d.acc.Load()
}

// atomicFloat64 is a float64 published through a single machine word, so the
// control thread can read the live accumulator without taking a lock the
// audio callback could contend on.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (f *atomicFloat64) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat64) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}
