// Package whispernative provides a transcription provider backed by the
// whisper.cpp CGO bindings, eliminating HTTP overhead entirely. The
// whisper.cpp static library (libwhisper.a) and headers (whisper.h) must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH environment
// variables.
//
// The model is loaded once at construction and shared across all concurrent
// Transcribe calls; each call creates its own whisper context, which is the
// unit of thread confinement in whisper.cpp.
//
// The bindings do not expose per-segment decoder confidence, so results carry
// segments with zero metrics. The anti-hallucination post-filter treats zero
// metrics as "no evidence against" and falls back to its text-pattern checks.
package whispernative

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/livedub/livedub/pkg/audio"
	"github.com/livedub/livedub/pkg/provider/transcribe"
)

const defaultLanguage = "auto"

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Provider implements transcribe.Provider using the whisper.cpp Go bindings.
type Provider struct {
	model    whisperlib.Model
	language string
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the fixed language code for transcription (e.g. "en",
// "de"). Defaults to "auto". Per-request hints take precedence.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// New creates a Provider that loads the whisper.cpp model from the given file
// path. The caller must call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whispernative: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whispernative: load model %q: %w", modelPath, err)
	}

	p := &Provider{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements transcribe.Provider. ctx is consulted before the
// inference call; whisper.cpp itself cannot be interrupted mid-inference.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	if len(req.PCM) == 0 {
		return nil, errors.New("whispernative: empty audio payload")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whispernative: %w", err)
	}

	samples := audio.PCM16ToFloat32(req.PCM)

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whispernative: create context: %w", err)
	}

	lang := req.LanguageHint
	if lang == "" {
		lang = p.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whispernative: failed to set language, using default",
			"language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whispernative: process audio: %w", err)
	}

	result := &transcribe.Result{
		Language: wctx.DetectedLanguage(),
	}
	var parts []string
	var end time.Duration
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whispernative: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		result.Segments = append(result.Segments, transcribe.Segment{Text: text})
		if segment.End > end {
			end = segment.End
		}
	}
	result.Text = strings.Join(parts, " ")
	result.Duration = end
	return result, nil
}
