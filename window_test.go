package metronome

import (
	"io"
	"log/slog"
	"testing"

	"github.com/faiface/beep"
	"github.com/google/go-cmp/cmp"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// impulseClicks marks beat starts with single distinguishable samples so
// tests can read click onsets straight out of the generated audio.
func impulseClicks() Clicks {
	return Clicks{Accent: []float64{1}, Beat: []float64{0.5}}
}

// pull drains n samples from the stream in chunks of at most chunk frames,
// returning the left channel.
func pull(t *testing.T, m *Metronome, n, chunk int) []float64 {
	t.Helper()

	out := make([]float64, 0, n)
	buf := make([][2]float64, chunk)
	for len(out) < n {
		want := n - len(out)
		if want > chunk {
			want = chunk
		}
		got, ok := m.Stream(buf[:want])
		if !ok || got != want {
			t.Fatalf("Stream returned (%d, %v), want (%d, true)", got, ok, want)
		}
		for _, frame := range buf[:got] {
			if frame[0] != frame[1] {
				t.Fatal("channels diverged")
			}
			out = append(out, frame[0])
		}
	}
	return out
}

func onsets(samples []float64) []int {
	var idx []int
	for i, v := range samples {
		if v != 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

func newTestMetronome(t *testing.T, tempo float64, sr int) *Metronome {
	t.Helper()

	m, err := New(tempo, TimeSignature{Beats: 4, Unit: 4}, beep.SampleRate(sr))
	if err != nil {
		t.Fatal(err)
	}
	m.SetLogger(quietLogger())
	if err := m.SetClicks(impulseClicks()); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestStreamChunkingLossless(t *testing.T) {
	const total = 40000

	whole := newTestMetronome(t, 145, 16000)
	whole.Start()
	wholeOut := pull(t, whole, total, total)

	for _, chunk := range []int{7, 256, 6620} {
		chunked := newTestMetronome(t, 145, 16000)
		chunked.Start()
		chunkedOut := pull(t, chunked, total, chunk)
		if diff := cmp.Diff(wholeOut, chunkedOut); diff != "" {
			t.Fatalf("chunk size %d altered the stream (-whole +chunked):\n%s", chunk, diff)
		}
	}
}

// The 145 bpm / 16 kHz worked example, observed end to end in the output:
// beat onsets land at 0, 6620, 13241, 19861 and the next bar's accent at
// 26482, against an ideal 4-beat span of 26482.76 samples.
func TestStreamOnsetsFollowDriftCorrection(t *testing.T) {
	m := newTestMetronome(t, 145, 16000)
	m.Start()
	out := pull(t, m, 26490, 256)

	got := onsets(out)
	want := []int{0, 6620, 13241, 19861, 26482}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("onset positions (-want +got):\n%s", diff)
	}

	assert(t, out[0], 1.0)     // accent opens the bar
	assert(t, out[6620], 0.5)  // beat 2
	assert(t, out[26482], 1.0) // accent opens the next bar
	assert(t, m.Bars(), 1)
}

func TestStreamLoopsBarSeamlessly(t *testing.T) {
	// 120 bpm at 48 kHz divides evenly: no corrections, the bar repeats
	// verbatim.
	const barLen = 4 * 24000

	m := newTestMetronome(t, 120, 48000)
	m.Start()
	out := pull(t, m, 2*barLen+1, 1024)

	if diff := cmp.Diff(out[:barLen], out[barLen:2*barLen]); diff != "" {
		t.Fatalf("second bar differs from first (-first +second):\n%s", diff)
	}
	assert(t, out[2*barLen], 1.0) // third bar opens with the accent
	assert(t, m.Bars(), 2)
	assert(t, m.DriftError(), 0.0)
}

func TestStreamLongRunBeatSpacing(t *testing.T) {
	const beats = 100
	const spb = 16000 * 60.0 / 145.0

	m := newTestMetronome(t, 145, 16000)
	m.Start()
	total := spb * beats
	out := pull(t, m, int(total)+100, 4096)

	got := onsets(out)
	if len(got) < beats {
		t.Fatalf("got %d onsets, want at least %d", len(got), beats)
	}
	last := got[beats-1]
	avg := float64(last) / float64(beats-1)
	approx(t, avg, spb, 1.0)
	// Cumulative error at the final onset stays sub-sample.
	approx(t, float64(last), spb*float64(beats-1), 1.0)
}

func TestStreamSilentUnlessRunning(t *testing.T) {
	m := newTestMetronome(t, 145, 16000)

	for _, v := range pull(t, m, 512, 128) {
		assert(t, v, 0.0)
	}

	m.Start()
	if len(onsets(pull(t, m, 512, 128))) == 0 {
		t.Fatal("no clicks while running")
	}

	m.Stop()
	for _, v := range pull(t, m, 512, 128) {
		assert(t, v, 0.0)
	}
}

func TestStreamAppliesVolume(t *testing.T) {
	m := newTestMetronome(t, 145, 16000)
	m.Volume = 0.25
	m.Start()

	out := pull(t, m, 10, 10)
	assert(t, out[0], 0.25)
}
