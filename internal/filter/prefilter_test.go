package filter

import (
	"math"
	"strings"
	"testing"
)

const testRate = 16000

// tone generates a mono sine of the given frequency and amplitude.
func tone(freqHz float64, amplitude float32, n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = amplitude * float32(math.Sin(2*math.Pi*freqHz*float64(i)/float64(testRate)))
	}
	return samples
}

func TestPreFilterAcceptsVoiceBandAudio(t *testing.T) {
	f := NewPreFilter(PreConfig{})

	// A strong 1 kHz tone sits squarely in the voice band.
	d := f.Check(tone(1000, 0.2, 3200), testRate)
	if !d.Send {
		t.Fatalf("Send = false (%s), want true", d.Reason)
	}
	if d.VoiceLikelihood < 0.8 {
		t.Errorf("VoiceLikelihood = %.2f, want >= 0.8", d.VoiceLikelihood)
	}
	if d.NoiseRatio > 0.2 {
		t.Errorf("NoiseRatio = %.2f, want <= 0.2", d.NoiseRatio)
	}
}

func TestPreFilterRejectsSilence(t *testing.T) {
	f := NewPreFilter(PreConfig{})

	d := f.Check(make([]float32, 3200), testRate)
	if d.Send {
		t.Fatal("Send = true for an all-zero buffer")
	}
	if d.Reason != "silent buffer" {
		t.Errorf("Reason = %q, want %q", d.Reason, "silent buffer")
	}
	if d.VoiceLikelihood != 0 || d.NoiseRatio != 1 {
		t.Errorf("likelihood/noise = %.2f/%.2f, want 0/1", d.VoiceLikelihood, d.NoiseRatio)
	}
}

func TestPreFilterRejectsEmptyBuffer(t *testing.T) {
	f := NewPreFilter(PreConfig{})

	if d := f.Check(nil, testRate); d.Send {
		t.Fatal("Send = true for an empty buffer")
	}
}

func TestPreFilterRejectsOutOfBandEnergy(t *testing.T) {
	f := NewPreFilter(PreConfig{})

	// A quiet 7 kHz whine has neither amplitude nor voice-band energy.
	d := f.Check(tone(7000, 0.01, 3200), testRate)
	if d.Send {
		t.Fatalf("Send = true for out-of-band tone (likelihood %.2f, noise %.2f)",
			d.VoiceLikelihood, d.NoiseRatio)
	}
	if d.Reason == "" {
		t.Error("Reason is empty on rejection")
	}
}

func TestPreFilterCustomThresholds(t *testing.T) {
	// An extreme send threshold rejects even clean speech-band audio.
	f := NewPreFilter(PreConfig{SendThreshold: 0.99})

	d := f.Check(tone(1000, 0.02, 3200), testRate)
	if d.Send {
		t.Fatal("Send = true, want rejection under strict threshold")
	}
	if !strings.Contains(d.Reason, "below") {
		t.Errorf("Reason = %q, want a threshold comparison", d.Reason)
	}
}
