package enhance

import (
	"math"
	"testing"
)

const testRate = 16000

func tone(freqHz float64, amplitude float32, n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = amplitude * float32(math.Sin(2*math.Pi*freqHz*float64(i)/float64(testRate)))
	}
	return samples
}

// steadyPeak measures the peak of the second half of the buffer, after filter
// transients have settled.
func steadyPeak(samples []float32) float64 {
	var peak float64
	for _, s := range samples[len(samples)/2:] {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
	}
	return peak
}

func TestChainPassesVoiceBand(t *testing.T) {
	c := NewChain(Config{SampleRate: testRate})

	out := c.Process(tone(1000, 0.1, 8000))
	if peak := steadyPeak(out); peak < 0.07 {
		t.Errorf("1 kHz peak after chain = %.3f, want mostly preserved", peak)
	}
}

func TestHighPassRemovesRumble(t *testing.T) {
	f := newHighPass(80, testRate)

	in := tone(20, 0.5, 16000)
	f.process(in)
	if peak := steadyPeak(in); peak > 0.05 {
		t.Errorf("20 Hz peak after high-pass = %.3f, want heavily attenuated", peak)
	}
}

func TestHighPassRemovesDCOffset(t *testing.T) {
	f := newHighPass(80, testRate)

	in := make([]float32, 16000)
	for i := range in {
		in[i] = 0.3
	}
	f.process(in)

	var sum float64
	for _, s := range in[8000:] {
		sum += float64(s)
	}
	if mean := sum / 8000; math.Abs(mean) > 0.01 {
		t.Errorf("steady-state mean after high-pass = %.4f, want ~0", mean)
	}
}

func TestLowPassRemovesHighFrequency(t *testing.T) {
	f := newLowPass(8000, testRate)

	// Near Nyquist, well above the cutoff at this sample rate's terms: use a
	// 44.1 kHz-style scenario instead by filtering at a lower cutoff.
	f = newLowPass(2000, testRate)
	in := tone(7000, 0.5, 16000)
	f.process(in)
	if peak := steadyPeak(in); peak > 0.1 {
		t.Errorf("7 kHz peak after 2 kHz low-pass = %.3f, want attenuated", peak)
	}
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	c := NewChain(Config{SampleRate: testRate})

	loud := tone(1000, 0.8, 16000)
	quiet := tone(1000, 0.05, 16000)

	loudPeak := steadyPeak(c.Process(loud))
	c.Reset()
	quietPeak := steadyPeak(c.Process(quiet))

	// The loud signal is 16x the quiet one on input; compression narrows that
	// gap substantially.
	if ratio := loudPeak / quietPeak; ratio > 12 {
		t.Errorf("loud/quiet ratio after chain = %.1f, want compressed below 12", ratio)
	}
	// Quiet speech below the threshold passes uncompressed.
	if quietPeak < 0.03 {
		t.Errorf("quiet peak = %.3f, want untouched", quietPeak)
	}
}

func TestLimiterClampsToCeiling(t *testing.T) {
	c := NewChain(Config{SampleRate: testRate, CompThreshold: 0.99, CompRatio: 1.01, LimiterCeiling: 0.5})

	in := tone(1000, 1.0, 8000)
	out := c.Process(in)
	for i, s := range out {
		if s > 0.5 || s < -0.5 {
			t.Fatalf("sample %d = %v beyond the 0.5 ceiling", i, s)
		}
	}
}

func TestResetClearsFilterMemory(t *testing.T) {
	c := NewChain(Config{SampleRate: testRate})

	c.Process(tone(1000, 0.8, 8000))
	c.Reset()

	// After a reset, silence in produces silence out; leftover envelope or
	// filter state would leak a transient.
	out := c.Process(make([]float32, 1600))
	for i, s := range out {
		if math.Abs(float64(s)) > 1e-6 {
			t.Fatalf("sample %d = %v after Reset on silent input", i, s)
		}
	}
}

func TestEnvCoeff(t *testing.T) {
	if got := envCoeff(0, testRate); got != 1 {
		t.Errorf("envCoeff(0) = %v, want 1", got)
	}
	fast := envCoeff(0.005, testRate)
	slow := envCoeff(0.100, testRate)
	if fast <= slow {
		t.Errorf("attack coeff %v not faster than release %v", fast, slow)
	}
	if fast <= 0 || fast >= 1 || slow <= 0 || slow >= 1 {
		t.Errorf("coefficients out of (0,1): %v, %v", fast, slow)
	}
}
