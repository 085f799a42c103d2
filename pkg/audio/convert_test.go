package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestFrameConverterPassThrough(t *testing.T) {
	c := &FrameConverter{Target: Format{SampleRate: 16000, Channels: 1}}

	in := AudioFrame{
		Samples:    []float32{0.1, 0.2, 0.3},
		SampleRate: 16000,
		Channels:   1,
		Timestamp:  time.Second,
	}
	out := c.Convert(in)
	if &out.Samples[0] != &in.Samples[0] {
		t.Error("matching format was copied instead of passed through")
	}
}

func TestFrameConverterStereoDownmixAndResample(t *testing.T) {
	c := &FrameConverter{Target: Format{SampleRate: 16000, Channels: 1}}

	// 48 kHz stereo with constant 0.2/0.4 channels: the mono average is 0.3
	// at one third the sample count.
	samples := make([]float32, 4800*2)
	for i := 0; i < 4800; i++ {
		samples[i*2] = 0.2
		samples[i*2+1] = 0.4
	}
	out := c.Convert(AudioFrame{Samples: samples, SampleRate: 48000, Channels: 2, Timestamp: time.Second})

	if out.SampleRate != 16000 || out.Channels != 1 {
		t.Fatalf("output format %d Hz %d ch, want 16000 Hz mono", out.SampleRate, out.Channels)
	}
	if out.Timestamp != time.Second {
		t.Errorf("Timestamp = %v, want preserved", out.Timestamp)
	}
	if len(out.Samples) != 1600 {
		t.Fatalf("got %d samples, want 1600", len(out.Samples))
	}
	for i, s := range out.Samples {
		if math.Abs(float64(s)-0.3) > 1e-4 {
			t.Fatalf("sample %d = %v, want 0.3", i, s)
		}
	}
}

func TestDownmixMono(t *testing.T) {
	out := DownmixMono([]float32{1, 0, 0.5, 0.5}, 2)
	if len(out) != 2 || out[0] != 0.5 || out[1] != 0.5 {
		t.Errorf("DownmixMono = %v, want [0.5 0.5]", out)
	}

	mono := []float32{0.1, 0.2}
	if got := DownmixMono(mono, 1); &got[0] != &mono[0] {
		t.Error("mono input was copied")
	}
}

func TestResampleFloat32(t *testing.T) {
	// Downsampling a constant signal stays constant.
	in := make([]float32, 480)
	for i := range in {
		in[i] = 0.7
	}
	out := ResampleFloat32(in, 48000, 16000)
	if len(out) != 160 {
		t.Fatalf("got %d samples, want 160", len(out))
	}
	for i, s := range out {
		if s != 0.7 {
			t.Fatalf("sample %d = %v, want 0.7", i, s)
		}
	}

	if got := ResampleFloat32(in, 16000, 16000); &got[0] != &in[0] {
		t.Error("same-rate input was copied")
	}
}

func TestFloat32PCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 1, -1}
	pcm := Float32ToPCM16(in)
	if len(pcm) != len(in)*2 {
		t.Fatalf("pcm length = %d, want %d", len(pcm), len(in)*2)
	}
	out := PCM16ToFloat32(pcm)
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 1e-3 {
			t.Errorf("sample %d: %v -> %v", i, in[i], out[i])
		}
	}
}

func TestFloat32ToPCM16Clamps(t *testing.T) {
	pcm := Float32ToPCM16([]float32{2.0, -2.0})
	hi := int16(binary.LittleEndian.Uint16(pcm[0:2]))
	lo := int16(binary.LittleEndian.Uint16(pcm[2:4]))
	if hi != 32767 {
		t.Errorf("over-range sample = %d, want 32767", hi)
	}
	if lo != -32768 {
		t.Errorf("under-range sample = %d, want -32768", lo)
	}
}

func TestMonoToStereo(t *testing.T) {
	mono := []byte{0x01, 0x02, 0x03, 0x04}
	stereo := MonoToStereo(mono)
	want := []byte{0x01, 0x02, 0x01, 0x02, 0x03, 0x04, 0x03, 0x04}
	if len(stereo) != len(want) {
		t.Fatalf("length = %d, want %d", len(stereo), len(want))
	}
	for i := range want {
		if stereo[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, stereo[i], want[i])
		}
	}
}

func TestEncodeWAV16Header(t *testing.T) {
	pcm := make([]byte, 3200)
	wav := EncodeWAV16(pcm, 16000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if ch := binary.LittleEndian.Uint16(wav[22:24]); ch != 1 {
		t.Errorf("channels = %d, want 1", ch)
	}
	if size := binary.LittleEndian.Uint32(wav[40:44]); size != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", size, len(pcm))
	}
}

func TestFrameDuration(t *testing.T) {
	f := AudioFrame{Samples: make([]float32, 960), SampleRate: 48000, Channels: 2}
	if got := f.Duration(); got != 10*time.Millisecond {
		t.Errorf("Duration = %v, want 10ms", got)
	}

	var zero AudioFrame
	if got := zero.Duration(); got != 0 {
		t.Errorf("zero frame Duration = %v, want 0", got)
	}
}
