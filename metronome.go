// Package metronome produces a continuous, drift-corrected click track. One
// bar of samples is synthesized for the current tempo and a sliding window
// over that buffer supplies fixed-size chunks to the audio device, so the
// metronome plays forever without re-synthesis. Tempo can change at any time
// during playback: the playhead is remapped to the equivalent fractional
// position in the new tempo's bar, so the bar never restarts and the change
// is seamless.
//
// Each beat is played as an integer number of samples, which discards the
// fractional part of samplesPerBeat and would otherwise accumulate into
// audible drift. Example: at 145 bpm and 16 kHz, samplesPerBeat is
// 6620.6896..., leaking 0.6896 samples per beat. A drift tracker accumulates
// the leak and stretches or shrinks a beat by one sample whenever the
// accumulated error leaves [-0.5, 0.5], keeping the click within half a
// sample of true time indefinitely.
package metronome

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/faiface/beep"
)

// Tempo limits enforced by AdjustTempo, matching a typical hardware
// metronome's dial range. SetTempo accepts any positive tempo.
const (
	MinTempo = 40.0
	MaxTempo = 300.0
)

// Metronome is a drift-corrected click track generator. It implements
// beep.Streamer, so it is handed directly to the speaker:
//
//	m, _ := metronome.New(120, metronome.TimeSignature{Beats: 4, Unit: 4}, sr)
//	speaker.Init(sr, sr.N(time.Second/400))
//	speaker.Play(m)
//	m.Start()
//
// Two goroutines interact with a Metronome: the speaker's real-time callback
// pulls samples through Stream, and a control goroutine calls everything
// else. Control calls are serialized by an internal mutex the audio callback
// never touches; state crosses between the two sides only through atomic
// single-word publishes.
type Metronome struct {
	// Volume scales all output. Set before Start.
	Volume float64
	// DriftPolicy selects whether accumulated drift carries across tempo
	// changes (the default) or resets. Set before Start.
	DriftPolicy DriftPolicy

	sr     beep.SampleRate
	clicks Clicks
	log    *slog.Logger

	mu    sync.Mutex // serializes control calls
	tempo float64
	sig   TimeSignature

	running atomic.Bool
	state   atomic.Pointer[playState]
}

// New returns a stopped metronome at the given tempo and time signature,
// using the built-in click timbres.
func New(tempo float64, sig TimeSignature, sr beep.SampleRate) (*Metronome, error) {
	if sr <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidParameter, sr)
	}
	m := &Metronome{
		Volume: 1,
		sr:     sr,
		clicks: DefaultClicks(sr),
		log:    slog.Default(),
		tempo:  tempo,
		sig:    sig,
	}
	bar, err := BuildBar(tempo, sig, sr, m.clicks)
	if err != nil {
		return nil, err
	}
	m.state.Store(newPlayState(bar, NewDriftTracker(samplesPerBeat(sr, tempo)), 0))
	return m, nil
}

// Start begins playback from the top of the bar. Starting a running
// metronome does nothing.
func (m *Metronome) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running.Load() {
		return
	}
	// Rewind to beat one with fresh drift, as if the bar had never played.
	cur := m.state.Load()
	m.state.Store(newPlayState(cur.bar, NewDriftTracker(samplesPerBeat(m.sr, m.tempo)), 0))
	m.running.Store(true)
	m.log.Info("metronome started", "tempo", m.tempo, "signature", m.sig.String())
}

// Stop halts playback. The stream stays attached to the speaker and supplies
// silence; no state is torn down, so Start resumes immediately.
func (m *Metronome) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running.Load() {
		return
	}
	m.running.Store(false)
	m.log.Info("metronome stopped")
}

// SetTempo changes the tempo, seamlessly when playing: the playhead moves to
// the same fractional bar position in the new tempo's bar, so the listener
// hears the current bar continue at the new speed rather than restart. On a
// validation failure nothing is published and the old tempo keeps playing.
func (m *Metronome) SetTempo(bpm float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setTempo(bpm)
}

// AdjustTempo shifts the tempo by delta bpm, clamped to
// [MinTempo, MaxTempo]. It backs the +/-1, +/-5 and +/-10 controls of a
// front end.
func (m *Metronome) AdjustTempo(delta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := m.tempo + delta
	if target < MinTempo {
		target = MinTempo
	}
	if target > MaxTempo {
		target = MaxTempo
	}
	return m.setTempo(target)
}

// setTempo builds the new bar off the audio thread, remaps the playhead and
// publishes the whole replacement state in one pointer swap. Callers hold mu.
func (m *Metronome) setTempo(bpm float64) error {
	bar, err := BuildBar(bpm, m.sig, m.sr, m.clicks)
	if err != nil {
		return err
	}

	old := m.state.Load()
	frac := float64(old.cursor.Load()) / float64(old.bar.Len())
	cursor := int(math.Round(frac * float64(bar.Len())))
	if cursor >= bar.Len() {
		cursor = bar.Len() - 1
	}

	drift := NewDriftTracker(samplesPerBeat(m.sr, bpm))
	if m.DriftPolicy == DriftCarry {
		drift.acc.Store(old.drift.Accumulated())
	}

	st := newPlayState(bar, drift, cursor)
	st.bars.Store(old.bars.Load())
	m.state.Store(st)
	m.tempo = bpm
	m.log.Info("tempo changed", "tempo", bpm, "position", frac)
	return nil
}

// SetTimeSignature replaces the time signature. Changing it during playback
// is unsupported: the call is rejected with ErrRunning and must wait for
// Stop.
func (m *Metronome) SetTimeSignature(beats, unit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running.Load() {
		return fmt.Errorf("%w: time signature is fixed during playback", ErrRunning)
	}
	sig := TimeSignature{Beats: beats, Unit: unit}
	bar, err := BuildBar(m.tempo, sig, m.sr, m.clicks)
	if err != nil {
		return err
	}
	old := m.state.Load()
	m.state.Store(newPlayState(bar, old.drift, 0))
	m.sig = sig
	m.log.Info("time signature changed", "signature", sig.String())
	return nil
}

// SetClicks replaces the click timbres. Rejected while running.
func (m *Metronome) SetClicks(clicks Clicks) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running.Load() {
		return fmt.Errorf("%w: click waveforms are fixed during playback", ErrRunning)
	}
	bar, err := BuildBar(m.tempo, m.sig, m.sr, clicks)
	if err != nil {
		return err
	}
	old := m.state.Load()
	m.state.Store(newPlayState(bar, old.drift, 0))
	m.clicks = clicks
	return nil
}

// SetLogger directs control-path log output. The audio callback never logs.
func (m *Metronome) SetLogger(log *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = log
}

// Tempo returns the current tempo in beats per minute.
func (m *Metronome) Tempo() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tempo
}

// TimeSignature returns the current time signature.
func (m *Metronome) TimeSignature() TimeSignature {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sig
}

// Running reports whether the metronome is playing.
func (m *Metronome) Running() bool {
	return m.running.Load()
}

// Position returns the last-known fractional position within the bar, in
// [0, 1).
func (m *Metronome) Position() float64 {
	st := m.state.Load()
	return float64(st.cursor.Load()) / float64(st.bar.Len())
}

// Beat returns the 1-based beat the playhead is on.
func (m *Metronome) Beat() int {
	st := m.state.Load()
	beat := int(st.cursor.Load()) / st.bar.Step
	if beat > st.bar.Beats-1 {
		beat = st.bar.Beats - 1
	}
	return beat + 1
}

// Bars returns the number of complete bars played since Start.
func (m *Metronome) Bars() int {
	return int(m.state.Load().bars.Load())
}

// DriftError returns the current accumulated drift in samples, always within
// [-0.5, 0.5].
func (m *Metronome) DriftError() float64 {
	return m.state.Load().drift.Accumulated()
}

func samplesPerBeat(sr beep.SampleRate, tempo float64) float64 {
	return float64(sr) * 60.0 / tempo
}
