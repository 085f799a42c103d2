// Package filter implements the two anti-hallucination gates around
// transcription: a pre-filter that scores raw audio before the (paid,
// hallucination-prone) transcription call, and a post-filter that rejects
// transcription results whose confidence metrics or text shape mark them as
// hallucinated.
//
// Both filters are pure decision functions over their input; rejection is a
// designed outcome, not an error.
package filter

import (
	"fmt"
	"math"

	"github.com/livedub/livedub/internal/vad"
)

// Pre-filter defaults.
const (
	// DefaultMinVoiceLikelihood rejects buffers whose voice-likelihood score
	// falls below it.
	DefaultMinVoiceLikelihood = 0.5

	// DefaultMaxNoiseRatio rejects buffers dominated by out-of-band energy.
	DefaultMaxNoiseRatio = 0.8

	// DefaultSendThreshold is the minimum combined confidence for a buffer to
	// be sent to transcription.
	DefaultSendThreshold = 0.4

	// refAmplitude is the mean absolute amplitude at which the amplitude
	// component of the likelihood score saturates. Matches the VAD's working
	// range for normal speech.
	refAmplitude = 0.05

	preVoiceBandLo = 300
	preVoiceBandHi = 3400
)

// PreDecision is the outcome of scoring one audio buffer.
type PreDecision struct {
	// Send reports whether the buffer should be sent to transcription.
	Send bool

	// VoiceLikelihood in [0,1]; higher means more speech-like.
	VoiceLikelihood float64

	// NoiseRatio in [0,1]; the fraction of spectral energy outside the voice
	// band.
	NoiseRatio float64

	// Confidence is the combined send confidence in [0,1].
	Confidence float64

	// Reason describes the rejection for logging. Empty when Send is true.
	Reason string
}

// PreConfig holds the pre-filter thresholds. Zero values select the package
// defaults.
type PreConfig struct {
	MinVoiceLikelihood float64
	MaxNoiseRatio      float64
	SendThreshold      float64
}

// PreFilter scores candidate audio buffers before transcription.
type PreFilter struct {
	cfg PreConfig
}

// NewPreFilter creates a PreFilter.
func NewPreFilter(cfg PreConfig) *PreFilter {
	if cfg.MinVoiceLikelihood <= 0 {
		cfg.MinVoiceLikelihood = DefaultMinVoiceLikelihood
	}
	if cfg.MaxNoiseRatio <= 0 {
		cfg.MaxNoiseRatio = DefaultMaxNoiseRatio
	}
	if cfg.SendThreshold <= 0 {
		cfg.SendThreshold = DefaultSendThreshold
	}
	return &PreFilter{cfg: cfg}
}

// Check scores one mono buffer. An all-silence buffer scores zero likelihood
// and full noise ratio and is always rejected.
func (f *PreFilter) Check(samples []float32, sampleRate int) PreDecision {
	var sumAbs, sumSq float64
	for _, s := range samples {
		v := float64(s)
		sumSq += v * v
		if v < 0 {
			v = -v
		}
		sumAbs += v
	}

	d := PreDecision{NoiseRatio: 1}
	if len(samples) == 0 || sumSq == 0 {
		d.Reason = "silent buffer"
		return d
	}

	vol := sumAbs / float64(len(samples))
	ampScore := math.Min(1, vol/refAmplitude)
	band := vad.VoiceBandFraction(samples, sampleRate, preVoiceBandLo, preVoiceBandHi)

	d.VoiceLikelihood = (ampScore + band) / 2
	d.NoiseRatio = 1 - band
	d.Confidence = d.VoiceLikelihood * (1 - d.NoiseRatio/2)

	switch {
	case d.VoiceLikelihood < f.cfg.MinVoiceLikelihood:
		d.Reason = fmt.Sprintf("voice likelihood %.2f below %.2f", d.VoiceLikelihood, f.cfg.MinVoiceLikelihood)
	case d.NoiseRatio > f.cfg.MaxNoiseRatio:
		d.Reason = fmt.Sprintf("noise ratio %.2f above %.2f", d.NoiseRatio, f.cfg.MaxNoiseRatio)
	case d.Confidence < f.cfg.SendThreshold:
		d.Reason = fmt.Sprintf("confidence %.2f below %.2f", d.Confidence, f.cfg.SendThreshold)
	default:
		d.Send = true
	}
	return d
}
