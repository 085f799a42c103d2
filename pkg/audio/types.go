package audio

import "time"

// AudioFrame represents a single frame of captured audio flowing into the
// pipeline. Frames are the atomic unit of audio transport: the capture tap
// produces them, the enhancement stage filters them, and the VAD analyses them.
//
// Samples are interleaved float32 PCM in the range [-1, 1], matching what the
// native loopback taps (WASAPI, CoreAudio) deliver.
type AudioFrame struct {
	// Samples holds interleaved PCM samples. For stereo, samples alternate
	// L, R, L, R, ...
	Samples []float32

	// SampleRate in Hz (e.g. 48000 for a system loopback tap, 16000 for
	// transcription input).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the audible length of the frame.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := len(f.Samples) / f.Channels
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}
