// Package openai provides a synthesis provider backed by the OpenAI speech
// API.
//
// The API is requested with the raw PCM response format, which delivers
// 24 kHz 16-bit little-endian mono samples, so no container parsing is needed
// before handing audio to the playback sink.
package openai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/livedub/livedub/pkg/provider/speech"
)

const (
	defaultModel = "gpt-4o-mini-tts"

	// pcmSampleRate is fixed by the OpenAI speech API for the pcm response
	// format.
	pcmSampleRate = 24000
)

// Compile-time assertion that Provider implements speech.Provider.
var _ speech.Provider = (*Provider)(nil)

// Provider implements speech.Provider using the OpenAI speech API.
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

// WithModel overrides the default speech model ("gpt-4o-mini-tts").
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI synthesis Provider.
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

// Synthesize implements speech.Provider.
func (p *Provider) Synthesize(ctx context.Context, req speech.Request) (*speech.Audio, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("openai: text must not be empty")
	}
	if req.VoiceID == "" {
		return nil, fmt.Errorf("openai: voiceID must not be empty")
	}

	model := req.ModelID
	if model == "" {
		model = p.model
	}

	resp, err := p.client.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(model),
		Voice:          oai.AudioSpeechNewParamsVoiceUnion{OfString: oai.String(req.VoiceID)},
		Input:          req.Text,
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: speech request: %w", err)
	}
	defer resp.Body.Close()

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read speech response: %w", err)
	}
	return &speech.Audio{PCM: pcm, SampleRate: pcmSampleRate}, nil
}
