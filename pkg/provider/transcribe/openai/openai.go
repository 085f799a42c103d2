// Package openai provides a transcription provider backed by the OpenAI audio
// API (whisper-family models).
//
// The provider requests the verbose JSON response format so that per-segment
// confidence metrics (no_speech_prob, avg_logprob, compression_ratio) are
// available to the anti-hallucination post-filter.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/livedub/livedub/pkg/audio"
	"github.com/livedub/livedub/pkg/provider/transcribe"
)

const defaultModel = "whisper-1"

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Provider implements transcribe.Provider using the OpenAI audio API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	model   string
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithModel overrides the default transcription model ("whisper-1").
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL overrides the default OpenAI API base URL. Useful for
// OpenAI-compatible local servers.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI transcription Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Transcribe implements transcribe.Provider. The PCM payload is wrapped in a
// WAV header and uploaded as a file; the response is decoded from the verbose
// JSON format to recover segment confidence metrics.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	if len(req.PCM) == 0 {
		return nil, fmt.Errorf("openai: empty audio payload")
	}

	wav := audio.EncodeWAV16(req.PCM, req.SampleRate)

	params := oai.AudioTranscriptionNewParams{
		Model:          oai.AudioModel(p.model),
		File:           oai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		ResponseFormat: oai.AudioResponseFormatVerboseJSON,
	}
	if req.LanguageHint != "" {
		params.Language = oai.String(req.LanguageHint)
	}

	var verbose oai.TranscriptionVerbose
	_, err := p.client.Audio.Transcriptions.New(ctx, params,
		option.WithResponseBodyInto(&verbose))
	if err != nil {
		return nil, fmt.Errorf("openai: transcription request: %w", err)
	}

	result := &transcribe.Result{
		Text:     strings.TrimSpace(verbose.Text),
		Language: verbose.Language,
		Duration: time.Duration(verbose.Duration * float64(time.Second)),
	}
	for _, seg := range verbose.Segments {
		result.Segments = append(result.Segments, transcribe.Segment{
			Text:             seg.Text,
			NoSpeechProb:     seg.NoSpeechProb,
			AvgLogprob:       seg.AvgLogprob,
			CompressionRatio: seg.CompressionRatio,
		})
	}
	return result, nil
}
