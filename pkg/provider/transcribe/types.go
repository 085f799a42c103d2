package transcribe

import "time"

// Result is the outcome of one batch transcription call.
type Result struct {
	// Text is the full transcription, segments joined in order.
	Text string

	// Language is the detected (or hinted) ISO 639-1 language code.
	Language string

	// Duration is the audible length of the submitted audio as measured by
	// the provider. Zero if the provider does not report it.
	Duration time.Duration

	// Segments carries per-segment confidence metrics when the backend
	// exposes them (whisper-style decoders do). May be empty; the
	// post-filter treats missing metrics as "no evidence against".
	Segments []Segment
}

// Segment holds the standard whisper-family confidence metrics for one
// decoded segment. The anti-hallucination post-filter keys off these three
// values.
type Segment struct {
	// Text of this segment.
	Text string

	// NoSpeechProb is the decoder's probability that the segment contains no
	// speech at all. High values on non-empty text are the classic
	// hallucination signature.
	NoSpeechProb float64

	// AvgLogprob is the mean log-probability of the decoded tokens. Strongly
	// negative values indicate the decoder was guessing.
	AvgLogprob float64

	// CompressionRatio is the gzip compression ratio of the segment text.
	// High values indicate repetitive, looping output.
	CompressionRatio float64
}
