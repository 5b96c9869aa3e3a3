package metronome

import (
	"errors"
	"fmt"

	"github.com/faiface/beep"
)

// ErrInvalidParameter is returned when a tempo, time signature, sample rate
// or click waveform fails validation. The call that introduced the bad value
// is rejected synchronously; ongoing playback is unaffected.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrRunning is returned by operations that are not supported while the
// metronome is playing.
var ErrRunning = errors.New("metronome is running")

// TimeSignature is beats per bar over the note value of one beat, e.g. 4/4.
type TimeSignature struct {
	Beats int
	Unit  int
}

func (ts TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", ts.Beats, ts.Unit)
}

func (ts TimeSignature) valid() bool {
	return ts.Beats > 0 && ts.Unit > 0
}

// Clicks holds the two click timbres as mono waveforms at the engine's
// sample rate: one for the accented downbeat, one for every other beat.
type Clicks struct {
	Accent []float64
	Beat   []float64
}

func (c Clicks) valid() bool {
	return len(c.Accent) > 0 && len(c.Beat) > 0
}

// Bar is one bar of click audio at a fixed tempo. Each beat occupies Step
// samples, the truncation of the real-valued samples-per-beat; the discarded
// remainder is recorded in Frac and realized dynamically by the drift
// tracker, not distributed across the buffer. Immutable once built: a tempo
// change replaces the whole bar.
type Bar struct {
	Samples []float64
	Step    int     // nominal samples per beat, floor(sampleRate * 60 / tempo)
	Frac    float64 // fractional samples per beat discarded by truncation
	Beats   int
	Tempo   float64
}

// Len returns the number of samples in the bar.
func (b *Bar) Len() int {
	return len(b.Samples)
}

// BuildBar synthesizes one bar of samples: a click transient at the start of
// each beat slot, the accent timbre on beat one, silence elsewhere. A click
// longer than the beat slot is truncated to fit. BuildBar touches no shared
// state and is safe to call while another bar is playing.
func BuildBar(tempo float64, sig TimeSignature, sr beep.SampleRate, clicks Clicks) (*Bar, error) {
	if !(tempo > 0) {
		return nil, fmt.Errorf("%w: tempo %v bpm", ErrInvalidParameter, tempo)
	}
	if !sig.valid() {
		return nil, fmt.Errorf("%w: time signature %s", ErrInvalidParameter, sig)
	}
	if sr <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidParameter, sr)
	}
	if !clicks.valid() {
		return nil, fmt.Errorf("%w: empty click waveform", ErrInvalidParameter)
	}

	samplesPerBeat := float64(sr) * 60.0 / tempo
	step := int(samplesPerBeat)
	if step < 1 {
		return nil, fmt.Errorf("%w: tempo %v bpm too fast for %d Hz", ErrInvalidParameter, tempo, sr)
	}

	bar := &Bar{
		Samples: make([]float64, step*sig.Beats),
		Step:    step,
		Frac:    samplesPerBeat - float64(step),
		Beats:   sig.Beats,
		Tempo:   tempo,
	}
	for beat := 0; beat < sig.Beats; beat++ {
		click := clicks.Beat
		if beat == 0 {
			click = clicks.Accent
		}
		copy(bar.Samples[beat*step:(beat+1)*step], click)
	}
	return bar, nil
}
