package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// FrameConverter normalises captured AudioFrames to a target format. It logs a
// warning on the first format mismatch it sees. Create one per stream; not
// designed for shared use across goroutines.
type FrameConverter struct {
	Target         Format
	warnedMismatch sync.Once
}

// Convert converts a frame to the target format. If the source format already
// matches the target, the frame is returned unchanged (zero allocation).
// Conversion order: downmix first, then resample. Resampling mono is half the
// work of resampling stereo.
func (c *FrameConverter) Convert(frame AudioFrame) AudioFrame {
	if frame.SampleRate == c.Target.SampleRate && frame.Channels == c.Target.Channels {
		return frame
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio frame converter: converting",
			"from", formatString(frame.SampleRate, frame.Channels),
			"to", formatString(c.Target.SampleRate, c.Target.Channels),
		)
	})

	samples := frame.Samples
	if frame.Channels != c.Target.Channels && c.Target.Channels == 1 {
		samples = DownmixMono(samples, frame.Channels)
	}
	if frame.SampleRate != c.Target.SampleRate {
		samples = ResampleFloat32(samples, frame.SampleRate, c.Target.SampleRate)
	}

	return AudioFrame{
		Samples:    samples,
		SampleRate: c.Target.SampleRate,
		Channels:   c.Target.Channels,
		Timestamp:  frame.Timestamp,
	}
}

// DownmixMono averages the channels of interleaved PCM into a mono signal.
// For channels <= 1 the input is returned unchanged.
func DownmixMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// ResampleFloat32 resamples mono float32 PCM from srcRate to dstRate using
// linear interpolation. If srcRate == dstRate, the input is returned unchanged.
func ResampleFloat32(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		return nil
	}

	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// Float32ToPCM16 converts float32 samples in [-1, 1] to 16-bit little-endian
// signed PCM bytes. Out-of-range samples are clamped.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(math.Round(float64(s) * 32767))
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// PCM16ToFloat32 converts 16-bit little-endian signed PCM bytes to float32
// samples in [-1, 1]. A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. The input must be little-endian int16 samples. If srcRate ==
// dstRate, the input is returned unchanged. Used on the playback path, where
// synthesis providers return 16 kHz PCM but output devices usually run at
// 44.1/48 kHz.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	n := len(pcm) / 2
	if n == 0 {
		return pcm
	}

	ratio := float64(srcRate) / float64(dstRate)
	outN := int(float64(n) / ratio)
	if outN == 0 {
		return nil
	}

	out := make([]byte, outN*2)
	for i := 0; i < outN; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		var v int16
		if idx >= n-1 {
			v = int16(binary.LittleEndian.Uint16(pcm[(n-1)*2:]))
		} else {
			a := int16(binary.LittleEndian.Uint16(pcm[idx*2:]))
			b := int16(binary.LittleEndian.Uint16(pcm[(idx+1)*2:]))
			frac := pos - float64(idx)
			v = int16(float64(a)*(1-frac) + float64(b)*frac)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
// Input must be little-endian int16 PCM (2 bytes per sample).
func MonoToStereo(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		out[i*4] = pcm[i*2]
		out[i*4+1] = pcm[i*2+1]
		out[i*4+2] = pcm[i*2]
		out[i*4+3] = pcm[i*2+1]
	}
	return out
}

// formatString returns a human-readable string for a sample rate and channel
// count, e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	layout := "mono"
	if channels == 2 {
		layout = "stereo"
	} else if channels > 2 {
		layout = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, layout)
}
