// Package whisperserver provides a transcription provider backed by a running
// whisper.cpp server binary, which exposes a REST API at POST /inference.
//
// Each Transcribe call wraps the PCM payload in a WAV header and submits it as
// a multipart/form-data upload. The server is asked for the verbose JSON
// response format so that per-segment confidence metrics are available to the
// anti-hallucination post-filter; older server builds that only return {"text"}
// still work, with the metrics left zero.
package whisperserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/livedub/livedub/pkg/audio"
	"github.com/livedub/livedub/pkg/provider/transcribe"
)

const defaultTimeout = 30 * time.Second

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Provider implements transcribe.Provider against a whisper.cpp server.
type Provider struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets a fixed language code sent with every request, overriding
// auto-detection. Per-request hints still take precedence.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// New creates a Provider that submits inference requests to the whisper.cpp
// server at serverURL (e.g. "http://localhost:8080").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisperserver: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// inferenceResponse mirrors the whisper.cpp server's verbose JSON response.
// The segments array is absent on plain-text responses.
type inferenceResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text             string  `json:"text"`
		NoSpeechProb     float64 `json:"no_speech_prob"`
		AvgLogprob       float64 `json:"avg_logprob"`
		CompressionRatio float64 `json:"compression_ratio"`
	} `json:"segments"`
}

// Transcribe implements transcribe.Provider.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	if len(req.PCM) == 0 {
		return nil, errors.New("whisperserver: empty audio payload")
	}

	wav := audio.EncodeWAV16(req.PCM, req.SampleRate)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("whisperserver: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("whisperserver: write wav data: %w", err)
	}

	lang := req.LanguageHint
	if lang == "" {
		lang = p.language
	}
	if lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return nil, fmt.Errorf("whisperserver: write language field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("whisperserver: write response_format field: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisperserver: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/inference"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("whisperserver: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whisperserver: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisperserver: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisperserver: read response body: %w", err)
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("whisperserver: parse JSON response: %w", err)
	}

	result := &transcribe.Result{
		Text:     strings.TrimSpace(parsed.Text),
		Language: parsed.Language,
		Duration: time.Duration(parsed.Duration * float64(time.Second)),
	}
	for _, seg := range parsed.Segments {
		result.Segments = append(result.Segments, transcribe.Segment{
			Text:             seg.Text,
			NoSpeechProb:     seg.NoSpeechProb,
			AvgLogprob:       seg.AvgLogprob,
			CompressionRatio: seg.CompressionRatio,
		})
	}
	return result, nil
}
