// Package types defines the shared types used across all livedub packages.
//
// These types form the lingua franca between the capture layer, the pipeline
// stages, and the provider abstractions. Each package defines its own domain
// types, but cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// Chunk is the unit of pipeline work: a bounded, sequenced window of speech
// audio together with everything the pipeline learns about it on the way from
// capture to playback.
//
// The sequence number is assigned synchronously at creation time, strictly
// before any asynchronous provider call is issued, and is immutable afterwards.
// It is the sole ordering authority in the pipeline: any "is this the newest
// chunk" decision must compare sequence numbers, never wall-clock completion
// order.
type Chunk struct {
	// Seq is the per-session-segment monotonic sequence number.
	Seq uint64

	// Audio holds mono float32 PCM samples at SampleRate. Consecutive chunks
	// overlap by roughly 200 ms so that words straddling a chunk boundary are
	// fully contained in at least one chunk.
	Audio []float32

	// SampleRate in Hz. The pipeline normalises capture audio to 16 kHz mono
	// before segmentation, so this is 16000 in practice.
	SampleRate int

	// Start marks when the first sample of this chunk was captured, relative
	// to session start.
	Start time.Duration

	// Duration is the audible length of the chunk.
	Duration time.Duration

	// Language is the detected source language, filled in after transcription.
	Language string

	// Text is the original transcription as returned by the provider.
	Text string

	// DedupedText is Text with overlap-duplicated leading words stripped.
	DedupedText string

	// TranslatedText is the translation of DedupedText, empty until the
	// translation stage has run (or permanently empty for skipped chunks).
	TranslatedText string

	// State tracks the chunk's position in the pipeline lifecycle.
	State ChunkState
}

// ChunkState enumerates the lifecycle states of a [Chunk]. The happy path is
// Captured → Filtered → Transcribed → Deduplicated → Translated → Queued →
// Synthesizing → Ready → Playing → Done. The remaining states are terminal.
type ChunkState int

const (
	StateCaptured ChunkState = iota
	StateFiltered
	StateTranscribed
	StateDeduplicated
	StateTranslated
	StateQueued
	StateSynthesizing
	StateReady
	StatePlaying
	StateDone

	// StateRejectedNoise is terminal: the pre-filter judged the audio to be
	// silence or noise and the transcription provider was never called.
	StateRejectedNoise

	// StateRejectedHallucination is terminal: the post-filter judged the
	// transcription to be a hallucination. The text is still surfaced for
	// display, only translation and synthesis are skipped.
	StateRejectedHallucination

	// StateSkippedSameLanguage is terminal: source and target language are
	// equivalent, so translation and synthesis were short-circuited.
	StateSkippedSameLanguage

	// StateSkippedFeedback is terminal: the feedback guard matched the text
	// against recently synthesized output.
	StateSkippedFeedback

	// StateSkippedCooldown is terminal: the chunk arrived inside the global
	// translation cooldown, was too short, or lost the single-flight race.
	StateSkippedCooldown

	// StateError is terminal: a provider call failed. The failure is isolated
	// to this chunk; later chunks proceed normally.
	StateError
)

// String returns the kebab-case name of the state, matching the labels used in
// logs and metrics attributes.
func (s ChunkState) String() string {
	switch s {
	case StateCaptured:
		return "captured"
	case StateFiltered:
		return "filtered"
	case StateTranscribed:
		return "transcribed"
	case StateDeduplicated:
		return "deduplicated"
	case StateTranslated:
		return "translated"
	case StateQueued:
		return "queued"
	case StateSynthesizing:
		return "synthesizing"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StateDone:
		return "done"
	case StateRejectedNoise:
		return "rejected-noise"
	case StateRejectedHallucination:
		return "rejected-hallucination"
	case StateSkippedSameLanguage:
		return "skipped-same-language"
	case StateSkippedFeedback:
		return "skipped-feedback"
	case StateSkippedCooldown:
		return "skipped-cooldown"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a terminal state, i.e. the chunk will not
// advance further through the pipeline.
func (s ChunkState) Terminal() bool {
	switch s {
	case StateDone, StateRejectedNoise, StateRejectedHallucination,
		StateSkippedSameLanguage, StateSkippedFeedback, StateSkippedCooldown,
		StateError:
		return true
	}
	return false
}
