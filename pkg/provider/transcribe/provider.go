// Package transcribe defines the Provider interface for speech-to-text
// backends.
//
// Unlike a live captioning system, livedub does not stream audio continuously
// into the provider: the pipeline segments speech into bounded chunks first
// and submits each chunk as one batch transcription request. This keeps the
// provider contract small (a single Transcribe call) and lets the
// anti-hallucination post-filter inspect per-segment confidence metrics before
// the text travels any further.
//
// Implementations must be safe for concurrent use: the pipeline may have
// several chunks in flight at once.
package transcribe

import "context"

// Request describes one batch transcription submission.
type Request struct {
	// PCM is 16-bit little-endian signed mono PCM audio.
	PCM []byte

	// SampleRate of the PCM data in Hz. Typically 16000.
	SampleRate int

	// LanguageHint is an optional ISO 639-1 code biasing language detection.
	// Empty lets the provider auto-detect.
	LanguageHint string
}

// Provider is the abstraction over any batch speech-to-text backend.
type Provider interface {
	// Transcribe submits one audio chunk and returns the transcription result.
	// Implementations should honour ctx cancellation and return a wrapped
	// ctx.Err() when cancelled.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
