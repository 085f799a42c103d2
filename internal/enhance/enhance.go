// Package enhance implements the fixed audio enhancement chain applied to
// captured audio before analysis: high-pass filter, low-pass filter, soft-knee
// compressor, and hard limiter, in that order.
//
// The high-pass removes rumble and DC offset from the loopback tap, the
// low-pass removes content above the voice band that would skew the VAD's
// spectral statistics, and the compressor/limiter pair evens out game audio
// whose dialogue volume swings far more than a microphone signal would.
//
// A Chain is stateful (filter memory, envelope follower) and processes one
// mono stream; create one per session. Not safe for concurrent use.
package enhance

import "math"

// Chain defaults, tuned for speech extraction from mixed game/system audio.
const (
	// DefaultHighPassHz removes rumble below the voice fundamental range.
	DefaultHighPassHz = 80

	// DefaultLowPassHz keeps sibilance while cutting game music brilliance.
	DefaultLowPassHz = 8000

	// DefaultCompThreshold is the compressor threshold in linear amplitude.
	DefaultCompThreshold = 0.25

	// DefaultCompRatio is the compression ratio above the threshold.
	DefaultCompRatio = 4.0

	// DefaultLimiterCeiling is the hard limiter ceiling in linear amplitude.
	DefaultLimiterCeiling = 0.95
)

// Config holds the tuning parameters for a [Chain]. Zero values select the
// package defaults.
type Config struct {
	SampleRate     int
	HighPassHz     float64
	LowPassHz      float64
	CompThreshold  float64
	CompRatio      float64
	LimiterCeiling float64
}

// Chain is the fixed enhancement filter chain.
type Chain struct {
	highPass *biquad
	lowPass  *biquad
	comp     compressor
	ceiling  float32
}

// NewChain creates a Chain for mono audio at cfg.SampleRate.
func NewChain(cfg Config) *Chain {
	if cfg.HighPassHz <= 0 {
		cfg.HighPassHz = DefaultHighPassHz
	}
	if cfg.LowPassHz <= 0 {
		cfg.LowPassHz = DefaultLowPassHz
	}
	if cfg.CompThreshold <= 0 {
		cfg.CompThreshold = DefaultCompThreshold
	}
	if cfg.CompRatio <= 1 {
		cfg.CompRatio = DefaultCompRatio
	}
	if cfg.LimiterCeiling <= 0 {
		cfg.LimiterCeiling = DefaultLimiterCeiling
	}

	sr := float64(cfg.SampleRate)
	return &Chain{
		highPass: newHighPass(cfg.HighPassHz, sr),
		lowPass:  newLowPass(cfg.LowPassHz, sr),
		comp: compressor{
			threshold: float32(cfg.CompThreshold),
			ratio:     float32(cfg.CompRatio),
			// Attack/release time constants chosen for speech: fast enough to
			// catch plosives, slow enough not to pump.
			attack:  envCoeff(0.005, sr),
			release: envCoeff(0.100, sr),
		},
		ceiling: float32(cfg.LimiterCeiling),
	}
}

// Process filters samples in place and returns the same slice.
func (c *Chain) Process(samples []float32) []float32 {
	c.highPass.process(samples)
	c.lowPass.process(samples)
	c.comp.process(samples)
	for i, s := range samples {
		if s > c.ceiling {
			samples[i] = c.ceiling
		} else if s < -c.ceiling {
			samples[i] = -c.ceiling
		}
	}
	return samples
}

// Reset clears all filter memory. Call between disjoint audio segments to
// avoid a stale envelope bleeding into fresh audio.
func (c *Chain) Reset() {
	c.highPass.reset()
	c.lowPass.reset()
	c.comp.envelope = 0
}

// ─── Biquad filters ───────────────────────────────────────────────────────────

// biquad is a transposed direct-form-II second-order IIR section.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	z1, z2             float64
}

// newHighPass builds a Butterworth-style high-pass biquad (RBJ cookbook,
// Q = 1/sqrt(2)).
func newHighPass(freq, sampleRate float64) *biquad {
	w0 := 2 * math.Pi * freq / sampleRate
	cosW, sinW := math.Cos(w0), math.Sin(w0)
	alpha := sinW / math.Sqrt2

	a0 := 1 + alpha
	return &biquad{
		b0: (1 + cosW) / 2 / a0,
		b1: -(1 + cosW) / a0,
		b2: (1 + cosW) / 2 / a0,
		a1: -2 * cosW / a0,
		a2: (1 - alpha) / a0,
	}
}

// newLowPass builds a Butterworth-style low-pass biquad.
func newLowPass(freq, sampleRate float64) *biquad {
	w0 := 2 * math.Pi * freq / sampleRate
	cosW, sinW := math.Cos(w0), math.Sin(w0)
	alpha := sinW / math.Sqrt2

	a0 := 1 + alpha
	return &biquad{
		b0: (1 - cosW) / 2 / a0,
		b1: (1 - cosW) / a0,
		b2: (1 - cosW) / 2 / a0,
		a1: -2 * cosW / a0,
		a2: (1 - alpha) / a0,
	}
}

func (f *biquad) process(samples []float32) {
	for i, s := range samples {
		x := float64(s)
		y := f.b0*x + f.z1
		f.z1 = f.b1*x - f.a1*y + f.z2
		f.z2 = f.b2*x - f.a2*y
		samples[i] = float32(y)
	}
}

func (f *biquad) reset() {
	f.z1, f.z2 = 0, 0
}

// ─── Dynamics ─────────────────────────────────────────────────────────────────

// compressor is a feed-forward soft-knee compressor with a one-pole envelope
// follower.
type compressor struct {
	threshold float32
	ratio     float32
	attack    float32
	release   float32
	envelope  float32
}

func (c *compressor) process(samples []float32) {
	for i, s := range samples {
		level := s
		if level < 0 {
			level = -level
		}

		// Envelope follower: fast attack, slow release.
		if level > c.envelope {
			c.envelope += c.attack * (level - c.envelope)
		} else {
			c.envelope += c.release * (level - c.envelope)
		}

		if c.envelope <= c.threshold || c.envelope == 0 {
			continue
		}

		// Gain reduction computed from the envelope, applied to the sample.
		compressed := c.threshold + (c.envelope-c.threshold)/c.ratio
		samples[i] = s * compressed / c.envelope
	}
}

// envCoeff converts a time constant (seconds) into a one-pole smoothing
// coefficient at the given sample rate.
func envCoeff(seconds, sampleRate float64) float32 {
	if seconds <= 0 || sampleRate <= 0 {
		return 1
	}
	return float32(1 - math.Exp(-1/(seconds*sampleRate)))
}
