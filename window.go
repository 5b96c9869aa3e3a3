package metronome

import "sync/atomic"

// playState is the unit of atomic publication between the control thread and
// the audio callback. The callback loads whichever state was stored last and
// is the only mutator of the playhead fields from then on; the control thread
// never changes a published state, it builds a replacement and swaps the
// pointer. A pull therefore sees the old (bar, cursor) pair or the new one,
// never a mix.
type playState struct {
	bar   *Bar
	drift *DriftTracker

	cursor   atomic.Int64 // index into bar.Samples, mirrored for the control thread
	beat     int          // 0-based beat index within the bar
	beatLeft int          // output samples remaining in the current beat
	bars     atomic.Int64 // bars completed since Start
}

// newPlayState positions a playhead at cursor within bar. The remainder of
// the beat the cursor lands in plays at the nominal step; drift correction
// resumes at the next boundary.
func newPlayState(bar *Bar, drift *DriftTracker, cursor int) *playState {
	st := &playState{bar: bar, drift: drift}
	beat := cursor / bar.Step
	if beat > bar.Beats-1 {
		beat = bar.Beats - 1
	}
	st.beat = beat
	st.beatLeft = (beat+1)*bar.Step - cursor
	st.cursor.Store(int64(cursor))
	return st
}

// Stream fills samples from the current bar, looping it indefinitely. This is
// the audio callback's pull: it runs on the real-time thread, so it takes no
// locks and allocates nothing. Beat boundaries consult the drift tracker and
// stretch or shrink the beat by at most one sample, realized as a repeat or
// skip of the slot's final (silent) sample. Before Start and after Stop the
// stream stays open and supplies silence.
func (m *Metronome) Stream(samples [][2]float64) (n int, ok bool) {
	if !m.running.Load() {
		for i := range samples {
			samples[i][0] = 0
			samples[i][1] = 0
		}
		return len(samples), true
	}

	st := m.state.Load()
	bar := st.bar
	cursor := int(st.cursor.Load())
	for i := range samples {
		if st.beatLeft == 0 {
			st.beatLeft = st.drift.Step(bar.Step)
			st.beat++
			if st.beat == bar.Beats {
				st.beat = 0
				st.bars.Add(1)
			}
			cursor = st.beat * bar.Step
		}
		v := bar.Samples[cursor] * m.Volume
		samples[i][0] = v
		samples[i][1] = v
		if next := cursor + 1; next < (st.beat+1)*bar.Step {
			cursor = next
		}
		st.beatLeft--
	}
	st.cursor.Store(int64(cursor))
	return len(samples), true
}

// Err implements beep.Streamer. The stream never ends and never fails.
func (m *Metronome) Err() error {
	return nil
}
