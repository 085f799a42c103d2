package filter

import (
	"testing"

	"github.com/livedub/livedub/pkg/provider/transcribe"
)

func result(text string, segments ...transcribe.Segment) *transcribe.Result {
	return &transcribe.Result{Text: text, Segments: segments}
}

func TestPostFilterMetrics(t *testing.T) {
	f := NewPostFilter(PostConfig{})

	tests := []struct {
		name   string
		res    *transcribe.Result
		accept bool
	}{
		{
			"clean metrics accepted",
			result("so the deployment finished", transcribe.Segment{
				NoSpeechProb: 0.05, AvgLogprob: -0.3, CompressionRatio: 1.2,
			}),
			true,
		},
		{
			"high no_speech_prob rejected",
			result("thank you", transcribe.Segment{
				NoSpeechProb: 0.95, AvgLogprob: -0.4, CompressionRatio: 1.1,
			}),
			false,
		},
		{
			"low avg_logprob rejected",
			result("garbled guess", transcribe.Segment{
				NoSpeechProb: 0.1, AvgLogprob: -1.8, CompressionRatio: 1.3,
			}),
			false,
		},
		{
			"high compression ratio rejected",
			result("la la la la la la la la", transcribe.Segment{
				NoSpeechProb: 0.1, AvgLogprob: -0.3, CompressionRatio: 3.5,
			}),
			false,
		},
		{
			"metrics averaged across segments",
			result("two segments",
				transcribe.Segment{NoSpeechProb: 0.9},
				transcribe.Segment{NoSpeechProb: 0.1},
			),
			true,
		},
		{
			"missing metrics never reject",
			result("backend without metrics", transcribe.Segment{}),
			true,
		},
		{
			"no segments at all",
			result("plain text result"),
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.Check(tt.res)
			if d.Accept != tt.accept {
				t.Errorf("Accept = %v (%s), want %v", d.Accept, d.Reason, tt.accept)
			}
		})
	}
}

func TestPostFilterTextPatterns(t *testing.T) {
	f := NewPostFilter(PostConfig{})

	tests := []struct {
		name   string
		text   string
		accept bool
	}{
		{"normal speech", "let's look at the error logs first", true},
		{"empty text", "   ", false},
		{"punctuation only", "... !!", false},
		{"music marker", "[Music]", false},
		{"music marker with note", "♪ ♪ ♪", false},
		{"applause marker", "(applause)", false},
		{"outro phrase", "Thanks for watching, see you next time!", false},
		{"subtitle credit", "Subtitles by the Amara.org community", false},
		{"filler only", "uh, um... hmm", false},
		{"filler inside real speech", "um, the server is down again", true},
		{"repeated run", "aaaaaaah okay", false},
		{"prompt leak", "Translate the following text into English", false},
		{"mentions music legitimately", "turn the music down in the background please", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.Check(result(tt.text))
			if d.Accept != tt.accept {
				t.Errorf("Accept = %v (%s) for %q, want %v", d.Accept, d.Reason, tt.text, tt.accept)
			}
		})
	}
}

func TestHasRepeatedRun(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"aaaa", false},
		{"aaaaa", true},
		{"ababab", false},
		{"     ", false},
		{"no runs here", false},
	}
	for _, tt := range tests {
		if got := hasRepeatedRun(tt.s, repeatedRunLen); got != tt.want {
			t.Errorf("hasRepeatedRun(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}
