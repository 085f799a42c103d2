// Package vad implements voice activity detection over the enhanced capture
// stream: per-window amplitude and voice-band spectral analysis, an
// auto-calibration phase, and a sustained-detection state machine emitting
// discrete speech-start / speech-end events plus a continuous level signal.
//
// The detector is synchronous: Process returns immediately with any events
// produced by the samples pushed so far. A Detector maintains
// per-stream state; create one per session. Not safe for concurrent use.
package vad

import (
	"math"
	"time"

	"github.com/livedub/livedub/pkg/audio"
)

const (
	// AnalysisWindow is the duration of one analysis window.
	AnalysisWindow = 200 * time.Millisecond

	// CalibrationWindows is the number of initial windows spent measuring the
	// ambient baseline (~2 s at the 200 ms window size).
	CalibrationWindows = 10

	// ActivationWindows is the number of consecutive active windows required
	// before speech-start is declared.
	ActivationWindows = 3

	// Hangover is the continuous inactivity needed before speech-end is
	// declared.
	Hangover = 800 * time.Millisecond

	// DefaultThreshold is the mean-absolute-amplitude threshold for an active
	// window. Deliberately a small fixed constant tuned for quiet and
	// whispered speech: deriving the threshold from the calibration baseline
	// was found to suppress quiet speech, so the baseline is recorded for
	// diagnostics only. The two values are independently tunable.
	DefaultThreshold = 0.012

	// loudFactor is the multiplier above the threshold at which a window is
	// considered active regardless of its spectral shape.
	loudFactor = 2

	// voiceBandLo / voiceBandHi bound the classic telephony voice band.
	voiceBandLo = 300
	voiceBandHi = 3400

	// minVoiceFraction is the voice-band energy fraction above which a window
	// "has voice frequency content".
	minVoiceFraction = 0.40
)

// EventType enumerates detector outputs.
type EventType int

const (
	// EventLevel reports the analysis level for one window. Emitted for every
	// completed window, speech or not; feeds UI meters.
	EventLevel EventType = iota

	// EventSpeechStart marks the beginning of sustained speech.
	EventSpeechStart

	// EventSpeechEnd marks the end of speech after the hangover elapsed.
	EventSpeechEnd
)

// String returns the human-readable name of the event type.
func (t EventType) String() string {
	switch t {
	case EventLevel:
		return "level"
	case EventSpeechStart:
		return "speech-start"
	case EventSpeechEnd:
		return "speech-end"
	default:
		return "unknown"
	}
}

// Event is one detector output.
type Event struct {
	Type EventType

	// Timestamp of the window that produced the event, relative to stream
	// start. For EventSpeechStart this is the start of the first window of
	// the activation run, so no leading audio is lost.
	Timestamp time.Duration

	// Level is the window's mean absolute amplitude (0.0–1.0).
	Level float64

	// RMS is the window's root-mean-square amplitude. Zero for event types
	// that do not describe a window.
	RMS float64

	// Peak is the window's peak absolute amplitude.
	Peak float64
}

// Calibration is a snapshot of the detector's calibration state.
type Calibration struct {
	// Baseline is the ambient mean absolute amplitude measured during the
	// calibration phase. Diagnostics only; the detection threshold is not
	// derived from it.
	Baseline float64

	// Threshold is the active detection threshold.
	Threshold float64

	// Calibrating is true while the initial measurement phase is running.
	Calibrating bool
}

// Config holds the tuning parameters for a [Detector]. Zero values select the
// package defaults.
type Config struct {
	// SampleRate of the mono stream fed to Process. Required.
	SampleRate int

	// Threshold overrides [DefaultThreshold].
	Threshold float64
}

// Detector is the voice activity detector state machine.
type Detector struct {
	sampleRate int
	windowSize int
	threshold  float64

	// window accumulation
	buf     []float32
	elapsed time.Duration // stream position of the start of buf

	// calibration
	calibrated  int
	baselineSum float64
	baseline    float64

	// sustained-detection state
	activeRun  int
	runStart   time.Duration
	inSpeech   bool
	quietSince time.Duration
	quietValid bool
}

// NewDetector creates a Detector for mono audio at cfg.SampleRate.
func NewDetector(cfg Config) *Detector {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	windowSize := cfg.SampleRate / int(time.Second/AnalysisWindow)
	return &Detector{
		sampleRate: cfg.SampleRate,
		windowSize: windowSize,
		threshold:  threshold,
		buf:        make([]float32, 0, windowSize),
	}
}

// Process consumes one enhanced mono frame and returns any events completed
// windows produced. Frames need not align with analysis windows.
func (d *Detector) Process(frame audio.AudioFrame) []Event {
	var events []Event

	samples := frame.Samples
	for len(samples) > 0 {
		need := d.windowSize - len(d.buf)
		if need > len(samples) {
			d.buf = append(d.buf, samples...)
			break
		}
		d.buf = append(d.buf, samples[:need]...)
		samples = samples[need:]

		events = d.analyzeWindow(events)
		d.buf = d.buf[:0]
		d.elapsed += AnalysisWindow
	}
	return events
}

// Calibration returns a snapshot of the calibration state.
func (d *Detector) Calibration() Calibration {
	return Calibration{
		Baseline:    d.baseline,
		Threshold:   d.threshold,
		Calibrating: d.calibrated < CalibrationWindows,
	}
}

// Reset returns the detector to its initial state, including calibration.
// Used on session restart; mid-session pauses must NOT reset calibration.
func (d *Detector) Reset() {
	d.buf = d.buf[:0]
	d.elapsed = 0
	d.calibrated = 0
	d.baselineSum = 0
	d.baseline = 0
	d.activeRun = 0
	d.inSpeech = false
	d.quietValid = false
}

// analyzeWindow classifies the completed window in d.buf and advances the
// sustained-detection state machine.
func (d *Detector) analyzeWindow(events []Event) []Event {
	var sumAbs, sumSq float64
	var peak float64
	for _, s := range d.buf {
		v := float64(s)
		sumSq += v * v
		if v < 0 {
			v = -v
		}
		sumAbs += v
		if v > peak {
			peak = v
		}
	}
	n := float64(len(d.buf))
	vol := sumAbs / n
	rms := math.Sqrt(sumSq / n)

	events = append(events, Event{Type: EventLevel, Timestamp: d.elapsed, Level: vol, RMS: rms, Peak: peak})

	// Calibration phase: accumulate the ambient baseline, suppress detection.
	if d.calibrated < CalibrationWindows {
		d.baselineSum += vol
		d.calibrated++
		d.baseline = d.baselineSum / float64(d.calibrated)
		return events
	}

	active := false
	if vol > d.threshold*loudFactor {
		// Loud-signal fallback: skip the (comparatively expensive) spectral
		// check when the amplitude alone is unambiguous.
		active = true
	} else if vol > d.threshold {
		frac := VoiceBandFraction(d.buf, d.sampleRate, voiceBandLo, voiceBandHi)
		active = frac >= minVoiceFraction
	}

	if active {
		if d.activeRun == 0 {
			d.runStart = d.elapsed
		}
		d.activeRun++
		d.quietValid = false

		if !d.inSpeech && d.activeRun >= ActivationWindows {
			d.inSpeech = true
			events = append(events, Event{Type: EventSpeechStart, Timestamp: d.runStart, Level: vol})
		}
		return events
	}

	d.activeRun = 0
	if d.inSpeech {
		if !d.quietValid {
			d.quietSince = d.elapsed
			d.quietValid = true
		}
		// Window end is elapsed+AnalysisWindow; speech ends only after the
		// hangover of continuous inactivity.
		if d.elapsed+AnalysisWindow-d.quietSince > Hangover {
			d.inSpeech = false
			d.quietValid = false
			events = append(events, Event{Type: EventSpeechEnd, Timestamp: d.quietSince, Level: vol})
		}
	}
	return events
}
