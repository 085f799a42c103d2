package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/livedub/livedub/pkg/provider/transcribe"
)

// Post-filter defaults, matching the confidence metrics whisper-style
// services expose per segment.
const (
	// DefaultMaxNoSpeechProb rejects results the model itself believes are
	// not speech.
	DefaultMaxNoSpeechProb = 0.7

	// DefaultMinAvgLogprob rejects low-confidence decodes. Only applied when
	// the metric is nonzero; some backends do not report it.
	DefaultMinAvgLogprob = -1.0

	// DefaultMaxCompressionRatio rejects highly repetitive text, the classic
	// looping-hallucination signature. Only applied when nonzero.
	DefaultMaxCompressionRatio = 2.4

	// repeatedRunLen is the repeated-character run length treated as a
	// hallucination.
	repeatedRunLen = 5
)

// PostDecision is the outcome of checking one transcription result.
type PostDecision struct {
	// Accept reports whether the text may continue to translation. The text
	// itself is surfaced to the caller either way.
	Accept bool

	// Reason describes the rejection for logging. Empty when Accept is true.
	Reason string
}

// PostConfig holds the post-filter thresholds. Zero values select the package
// defaults.
type PostConfig struct {
	MaxNoSpeechProb     float64
	MinAvgLogprob       float64
	MaxCompressionRatio float64
}

// PostFilter rejects hallucinated transcription results.
type PostFilter struct {
	cfg PostConfig
}

// NewPostFilter creates a PostFilter.
func NewPostFilter(cfg PostConfig) *PostFilter {
	if cfg.MaxNoSpeechProb <= 0 {
		cfg.MaxNoSpeechProb = DefaultMaxNoSpeechProb
	}
	if cfg.MinAvgLogprob >= 0 {
		cfg.MinAvgLogprob = DefaultMinAvgLogprob
	}
	if cfg.MaxCompressionRatio <= 0 {
		cfg.MaxCompressionRatio = DefaultMaxCompressionRatio
	}
	return &PostFilter{cfg: cfg}
}

// Check evaluates a transcription result's confidence metrics and text shape.
func (f *PostFilter) Check(res *transcribe.Result) PostDecision {
	if d := f.checkMetrics(res.Segments); !d.Accept {
		return d
	}
	return checkText(res.Text)
}

// checkMetrics averages the per-segment confidence metrics. Backends that do
// not report a metric leave it zero; a zero average means "no evidence" and
// never rejects on its own.
func (f *PostFilter) checkMetrics(segments []transcribe.Segment) PostDecision {
	if len(segments) == 0 {
		return PostDecision{Accept: true}
	}

	var noSpeech, logprob, compression float64
	for _, s := range segments {
		noSpeech += s.NoSpeechProb
		logprob += s.AvgLogprob
		compression += s.CompressionRatio
	}
	n := float64(len(segments))
	noSpeech /= n
	logprob /= n
	compression /= n

	switch {
	case noSpeech > f.cfg.MaxNoSpeechProb:
		return PostDecision{Reason: fmt.Sprintf("no_speech_prob %.2f above %.2f", noSpeech, f.cfg.MaxNoSpeechProb)}
	case logprob != 0 && logprob < f.cfg.MinAvgLogprob:
		return PostDecision{Reason: fmt.Sprintf("avg_logprob %.2f below %.2f", logprob, f.cfg.MinAvgLogprob)}
	case compression != 0 && compression > f.cfg.MaxCompressionRatio:
		return PostDecision{Reason: fmt.Sprintf("compression_ratio %.2f above %.2f", compression, f.cfg.MaxCompressionRatio)}
	}
	return PostDecision{Accept: true}
}

// ─── Text pattern rejection ───────────────────────────────────────────────────

var (
	musicMarkerRe = regexp.MustCompile(`(?i)^[\s(\[*]*(music|applause|laughter|sound|noise|silence|musique|musik)\b[^a-z]*$|♪|♫|🎵`)

	outroPhrases = []string{
		"thanks for watching",
		"thank you for watching",
		"don't forget to subscribe",
		"like and subscribe",
		"see you in the next video",
		"see you next time",
		"subtitles by",
		"subscribe to my channel",
		"www.",
	}

	fillerWords = map[string]bool{
		"uh": true, "um": true, "uhm": true, "hmm": true, "hm": true,
		"mm": true, "mhm": true, "mmm": true, "ah": true, "oh": true,
		"eh": true, "huh": true, "er": true, "erm": true,
	}

	promptLeaks = []string{
		"translate the following",
		"you are a professional",
		"output only the translation",
		"as an ai",
		"preserve the tone",
	}
)

// checkText applies the fixed hallucination pattern set.
func checkText(text string) PostDecision {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return PostDecision{Reason: "empty text"}
	}
	lower := strings.ToLower(trimmed)

	if isPunctuationOnly(trimmed) {
		return PostDecision{Reason: "punctuation-only text"}
	}
	if musicMarkerRe.MatchString(trimmed) {
		return PostDecision{Reason: "music/sound marker"}
	}
	for _, phrase := range outroPhrases {
		if strings.Contains(lower, phrase) {
			return PostDecision{Reason: "synthetic outro phrase"}
		}
	}
	if isFillerOnly(lower) {
		return PostDecision{Reason: "filler-only text"}
	}
	if hasRepeatedRun(trimmed, repeatedRunLen) {
		return PostDecision{Reason: "repeated character run"}
	}
	for _, leak := range promptLeaks {
		if strings.Contains(lower, leak) {
			return PostDecision{Reason: "leaked prompt text"}
		}
	}
	return PostDecision{Accept: true}
}

func isPunctuationOnly(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// isFillerOnly reports whether every word (punctuation stripped) is a known
// filler.
func isFillerOnly(lower string) bool {
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !fillerWords[w] {
			return false
		}
	}
	return true
}

// hasRepeatedRun reports whether s contains a run of n identical
// non-whitespace characters.
func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev && !unicode.IsSpace(r) {
			run++
			if run >= n {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}
