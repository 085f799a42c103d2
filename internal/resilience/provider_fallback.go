package resilience

import (
	"context"

	"github.com/livedub/livedub/pkg/provider/speech"
	"github.com/livedub/livedub/pkg/provider/transcribe"
	"github.com/livedub/livedub/pkg/provider/translate"
)

// Compile-time assertions: each fallback wrapper satisfies the provider
// contract it wraps, so it can be dropped in anywhere a provider is expected.
var (
	_ transcribe.Provider      = (*TranscribeFallback)(nil)
	_ translate.Provider       = (*TranslateFallback)(nil)
	_ speech.Provider          = (*SpeechFallback)(nil)
	_ speech.StreamingProvider = (*SpeechFallback)(nil)
)

// TranscribeFallback composes transcription providers with per-entry breakers.
// A failing primary is bypassed in favour of the next healthy fallback.
type TranscribeFallback struct {
	chain *Chain[transcribe.Provider]
}

// NewTranscribeFallback creates a fallback wrapper with primary as the first
// entry.
func NewTranscribeFallback(primary transcribe.Provider, name string, cfg FallbackConfig) *TranscribeFallback {
	return &TranscribeFallback{chain: NewChain(name, primary, cfg)}
}

// AddFallback appends a fallback provider, tried after all earlier entries.
func (f *TranscribeFallback) AddFallback(name string, p transcribe.Provider) {
	f.chain.Add(name, p)
}

// Transcribe implements transcribe.Provider.
func (f *TranscribeFallback) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	return Try(f.chain, func(p transcribe.Provider) (*transcribe.Result, error) {
		return p.Transcribe(ctx, req)
	})
}

// TranslateFallback composes translation providers with per-entry breakers.
type TranslateFallback struct {
	chain *Chain[translate.Provider]
}

// NewTranslateFallback creates a fallback wrapper with primary as the first
// entry.
func NewTranslateFallback(primary translate.Provider, name string, cfg FallbackConfig) *TranslateFallback {
	return &TranslateFallback{chain: NewChain(name, primary, cfg)}
}

// AddFallback appends a fallback provider, tried after all earlier entries.
func (f *TranslateFallback) AddFallback(name string, p translate.Provider) {
	f.chain.Add(name, p)
}

// Translate implements translate.Provider.
func (f *TranslateFallback) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	return Try(f.chain, func(p translate.Provider) (*translate.Result, error) {
		return p.Translate(ctx, req)
	})
}

// SpeechFallback composes synthesis providers with per-entry breakers. It
// satisfies both the batch and the streaming contracts, so the synthesis
// queue keeps its low-latency streaming path when the primary supports it.
type SpeechFallback struct {
	chain *Chain[speech.Provider]
}

// NewSpeechFallback creates a fallback wrapper with primary as the first
// entry.
func NewSpeechFallback(primary speech.Provider, name string, cfg FallbackConfig) *SpeechFallback {
	return &SpeechFallback{chain: NewChain(name, primary, cfg)}
}

// AddFallback appends a fallback provider, tried after all earlier entries.
func (f *SpeechFallback) AddFallback(name string, p speech.Provider) {
	f.chain.Add(name, p)
}

// Synthesize implements speech.Provider.
func (f *SpeechFallback) Synthesize(ctx context.Context, req speech.Request) (*speech.Audio, error) {
	return Try(f.chain, func(p speech.Provider) (*speech.Audio, error) {
		return p.Synthesize(ctx, req)
	})
}

// SynthesizeStream implements speech.StreamingProvider. Providers that only
// support batch synthesis deliver their audio as one final chunk. Once a
// provider has emitted audio, a mid-stream failure is not retried on a
// fallback: replaying the utterance from the start would duplicate what the
// listener already heard.
func (f *SpeechFallback) SynthesizeStream(ctx context.Context, req speech.Request, emit func(speech.StreamChunk)) (*speech.Audio, error) {
	return Try(f.chain, func(p speech.Provider) (*speech.Audio, error) {
		sp, ok := p.(speech.StreamingProvider)
		if !ok {
			out, err := p.Synthesize(ctx, req)
			if err != nil {
				return nil, err
			}
			if emit != nil {
				emit(speech.StreamChunk{PCM: out.PCM, SampleRate: out.SampleRate, Final: true})
			}
			return out, nil
		}

		emitted := false
		out, err := sp.SynthesizeStream(ctx, req, func(c speech.StreamChunk) {
			if len(c.PCM) > 0 {
				emitted = true
			}
			if emit != nil {
				emit(c)
			}
		})
		if err != nil && emitted {
			return nil, Permanent(err)
		}
		return out, err
	})
}
