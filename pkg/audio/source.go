// Package audio defines the capture and playback abstractions and the PCM
// conversion helpers shared by all livedub pipeline stages.
//
// The two boundary abstractions are:
//
//   - [Source]: a continuous feed of captured [AudioFrame] values, typically
//     backed by a system-audio loopback tap (WASAPI on Windows, CoreAudio on
//     macOS) living outside this module.
//   - [Sink]: a playback device that accepts synthesized PCM audio.
//
// This package lives under pkg/ because external code (platform capture
// adapters, playback adapters) is expected to implement [Source] and [Sink].
package audio

import "context"

// Source is a continuous feed of captured audio frames.
//
// A Source is owned by exactly one session at a time; a new session must close
// the previous session's source before opening its own.
type Source interface {
	// Frames returns the read-only channel delivering captured frames in
	// capture order. The channel is closed when the source is closed or the
	// underlying capture device fails; after closure, Err reports the cause.
	Frames() <-chan AudioFrame

	// Err returns the error that terminated the frame stream, or nil if the
	// stream ended because Close was called.
	Err() error

	// Close stops capture and releases the underlying device. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Sink plays synthesized audio on an output device.
//
// Play blocks until the supplied audio has finished playing (or ctx is
// cancelled). The synthesis queue relies on this blocking behaviour to
// serialize playback per device: it calls Play for consecutive jobs on the
// same device strictly in submission order.
//
// Implementations must be safe for concurrent use across different device IDs.
type Sink interface {
	// Play writes 16-bit little-endian mono PCM at the given sample rate to
	// the output device identified by deviceID. An empty deviceID selects the
	// system default output. Returns ctx.Err() if cancelled mid-playback.
	Play(ctx context.Context, pcm []byte, sampleRate int, deviceID string) error
}
