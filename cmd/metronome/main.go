package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"github.com/rg1990/metronome"
)

var flagBPM = flag.Float64("bpm", 120.0, "tempo in beats per minute")
var flagBeats = flag.Int("beats", 4, "beats per bar")
var flagUnit = flag.Int("unit", 4, "beat unit (the lower number of the time signature)")
var flagSampleRate = flag.Int("sr", 44100, "sample rate")
var flagVolume = flag.Float64("vol", 1, "volume")
var flagHi = flag.String("hi", "", "WAV file for the accented click")
var flagLo = flag.String("lo", "", "WAV file for the regular click")
var flagLog = flag.String("log", "info", "log level (debug, info, warn, error)")
var flagResetDrift = flag.Bool("reset-drift", false, "reset drift correction on tempo change")

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := initLogger(*flagLog); err != nil {
		return err
	}

	sr := beep.SampleRate(*flagSampleRate)
	sig := metronome.TimeSignature{Beats: *flagBeats, Unit: *flagUnit}
	m, err := metronome.New(*flagBPM, sig, sr)
	if err != nil {
		return err
	}
	m.Volume = *flagVolume
	if *flagResetDrift {
		m.DriftPolicy = metronome.DriftReset
	}
	if err := loadClicks(m, sr); err != nil {
		return err
	}

	if err := speaker.Init(sr, sr.N(time.Second/400)); err != nil {
		return err
	}
	defer speaker.Close()
	speaker.Play(m)
	m.Start()

	ctlc := make(chan os.Signal, 1)
	signal.Notify(ctlc, os.Interrupt)

	fmt.Println("commands: <bpm>, +N, -N, start, stop, quit")
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-ctlc:
			m.Stop()
			return nil
		case line, ok := <-lines:
			if !ok {
				m.Stop()
				return nil
			}
			if done := handle(m, line); done {
				m.Stop()
				return nil
			}
		}
	}
}

// handle applies one control command. Returns true on quit.
func handle(m *metronome.Metronome, line string) bool {
	switch {
	case line == "":
	case line == "q" || line == "quit":
		return true
	case line == "start":
		m.Start()
	case line == "stop":
		m.Stop()
	case line[0] == '+' || line[0] == '-':
		delta, err := strconv.ParseFloat(line, 64)
		if err != nil {
			fmt.Printf("bad adjustment %q\n", line)
			return false
		}
		if err := m.AdjustTempo(delta); err != nil {
			fmt.Println(err)
		}
	default:
		bpm, err := strconv.ParseFloat(line, 64)
		if err != nil {
			fmt.Printf("unknown command %q\n", line)
			return false
		}
		if err := m.SetTempo(bpm); err != nil {
			fmt.Println(err)
		}
	}
	fmt.Printf("tempo %.1f bpm, %s, beat %d\n", m.Tempo(), m.TimeSignature(), m.Beat())
	return false
}

// loadClicks overrides the built-in click timbres with WAV files when the
// -hi / -lo flags are given.
func loadClicks(m *metronome.Metronome, sr beep.SampleRate) error {
	if *flagHi == "" && *flagLo == "" {
		return nil
	}
	clicks := metronome.DefaultClicks(sr)
	if *flagHi != "" {
		accent, err := metronome.LoadClick(*flagHi, sr)
		if err != nil {
			return err
		}
		clicks.Accent = accent
	}
	if *flagLo != "" {
		beat, err := metronome.LoadClick(*flagLo, sr)
		if err != nil {
			return err
		}
		clicks.Beat = beat
	}
	return m.SetClicks(clicks)
}

func initLogger(level string) error {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s", level)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(handler))
	return nil
}
