package session

import (
	"time"

	"github.com/livedub/livedub/pkg/types"
)

// EventType enumerates the observable session events intended for UI/overlay
// consumption.
type EventType int

const (
	// EventSpeechActivity reports the VAD level signal and speech state.
	EventSpeechActivity EventType = iota

	// EventTranscriptionUpdate carries a chunk's transcription text, including
	// text the post-filter rejected (flagged, for display only).
	EventTranscriptionUpdate

	// EventTranslationUpdate carries a chunk's translated text.
	EventTranslationUpdate

	// EventTTSProgress reports synthesis job progress.
	EventTTSProgress

	// EventTTSComplete reports synthesis job completion.
	EventTTSComplete

	// EventSessionError reports a non-fatal per-chunk error or a fatal
	// capture failure.
	EventSessionError
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventSpeechActivity:
		return "speech-activity"
	case EventTranscriptionUpdate:
		return "transcription-update"
	case EventTranslationUpdate:
		return "translation-update"
	case EventTTSProgress:
		return "tts-progress"
	case EventTTSComplete:
		return "tts-complete"
	case EventSessionError:
		return "session-error"
	default:
		return "unknown"
	}
}

// Event is one observable session event. Fields beyond Type are populated
// per event kind.
type Event struct {
	Type EventType

	// Seq is the chunk sequence number for chunk-scoped events.
	Seq uint64

	// Speaking and Level describe the VAD state on speech-activity events.
	Speaking bool
	Level    float64

	// Calibrating is true while the VAD baseline measurement is running.
	Calibrating bool

	// Text carries transcription or translation text.
	Text string

	// Language is the detected source language.
	Language string

	// State is the chunk's pipeline state at emission time.
	State types.ChunkState

	// Rejected marks transcription text the post-filter refused; the text is
	// surfaced for display but not translated.
	Rejected bool

	// Reason describes a rejection or skip.
	Reason string

	// JobID identifies the synthesis job on tts-* events.
	JobID string

	// Timestamp is the stream position or wall-derived moment of the event.
	Timestamp time.Duration

	// Err is set on session-error events.
	Err error

	// Fatal marks a session-error that terminated the session (audio capture
	// failure).
	Fatal bool
}
