// Package speech defines the Provider interface for text-to-speech backends.
//
// The synthesis queue submits one job per translated chunk. Providers that
// support incremental audio delivery implement [StreamingProvider] in
// addition to [Provider]; the queue forwards each sub-chunk to the playback
// sink as it arrives while still enforcing per-device playback order at job
// granularity.
//
// Implementations must be safe for concurrent use; the queue runs several
// synthesis calls in parallel.
package speech

import "context"

// Request describes one synthesis job.
type Request struct {
	// Text to synthesize.
	Text string

	// VoiceID is the provider-specific voice identifier.
	VoiceID string

	// ModelID optionally selects a specific synthesis model. Empty uses the
	// provider default.
	ModelID string
}

// Audio is synthesized speech audio.
type Audio struct {
	// PCM is 16-bit little-endian signed mono PCM.
	PCM []byte

	// SampleRate of the PCM data in Hz.
	SampleRate int
}

// StreamChunk is one increment of a streaming synthesis response.
type StreamChunk struct {
	// PCM is the audio delta since the previous chunk, in the same format as
	// [Audio.PCM].
	PCM []byte

	// SampleRate of the PCM data in Hz.
	SampleRate int

	// Final marks the last chunk of the job. A Final chunk may carry an empty
	// PCM payload.
	Final bool
}

// Provider is the abstraction over any batch TTS backend.
type Provider interface {
	// Synthesize converts text to speech and returns the complete audio.
	Synthesize(ctx context.Context, req Request) (*Audio, error)
}

// StreamingProvider is implemented by backends that can deliver audio
// incrementally.
type StreamingProvider interface {
	Provider

	// SynthesizeStream converts text to speech, invoking emit for each audio
	// increment as it arrives. emit is called from a single goroutine, in
	// order; the last invocation has Final set. SynthesizeStream returns
	// after the final chunk has been emitted or an error occurred.
	SynthesizeStream(ctx context.Context, req Request, emit func(StreamChunk)) (*Audio, error)
}

// Voice describes an available synthesis voice.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Language is the voice's primary language, when the provider reports it.
	Language string
}

// VoiceLister is implemented by providers whose voice catalogue can be
// enumerated.
type VoiceLister interface {
	// ListVoices returns the provider's current voice catalogue.
	ListVoices(ctx context.Context) ([]Voice, error)
}
