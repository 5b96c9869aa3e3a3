package metronome

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

const clickDuration = 30 * time.Millisecond

// DefaultClicks synthesizes the built-in click timbres: short exponentially
// decaying sine bursts, the accent pitched an octave above the regular beat.
func DefaultClicks(sr beep.SampleRate) Clicks {
	return Clicks{
		Accent: synthClick(sr, 1760, 0.9),
		Beat:   synthClick(sr, 880, 0.7),
	}
}

func synthClick(sr beep.SampleRate, freq, gain float64) []float64 {
	n := sr.N(clickDuration)
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / float64(n)
		env := math.Exp(-6 * t)
		out[i] = gain * env * math.Sin(2*math.Pi*freq*float64(i)/float64(sr))
	}
	return out
}

// LoadClick reads a click waveform from a WAV file, downmixing to mono and
// resampling to rate when the file was recorded at a different one.
func LoadClick(path string, rate beep.SampleRate) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stream, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParameter, path, err)
	}
	defer stream.Close()

	var src beep.Streamer = stream
	if format.SampleRate != rate {
		src = beep.Resample(4, format.SampleRate, rate, stream)
	}

	var out []float64
	buf := make([][2]float64, 512)
	for {
		n, ok := src.Stream(buf)
		for _, frame := range buf[:n] {
			out = append(out, (frame[0]+frame[1])/2)
		}
		if !ok {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParameter, path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s: no samples", ErrInvalidParameter, path)
	}
	return out, nil
}
