// Package mock provides scriptable test doubles for the synthesis provider
// contract, including a streaming variant.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/livedub/livedub/pkg/provider/speech"
)

// Compile-time assertions.
var (
	_ speech.Provider          = (*Provider)(nil)
	_ speech.StreamingProvider = (*Provider)(nil)
)

// Provider is a scriptable speech provider. By default every call returns a
// short silent PCM buffer; DelayFor lets tests make specific jobs slow to
// exercise out-of-order synthesis completion.
type Provider struct {
	// SampleRate of synthesized audio. Defaults to 16000.
	SampleRate int

	// Err, when non-nil, is returned by every call.
	Err error

	// DelayFor maps request text to an artificial synthesis duration.
	DelayFor map[string]time.Duration

	// StreamChunks is the number of increments SynthesizeStream splits the
	// audio into. Defaults to 1.
	StreamChunks int

	mu    sync.Mutex
	calls []speech.Request
}

// silentPCM returns 100 ms of silence at the provider's sample rate.
func (p *Provider) silentPCM() []byte {
	rate := p.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	return make([]byte, rate/10*2)
}

func (p *Provider) rate() int {
	if p.SampleRate > 0 {
		return p.SampleRate
	}
	return 16000
}

func (p *Provider) record(req speech.Request) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
}

func (p *Provider) wait(ctx context.Context, req speech.Request) error {
	if d, ok := p.DelayFor[req.Text]; ok && d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// Synthesize implements speech.Provider.
func (p *Provider) Synthesize(ctx context.Context, req speech.Request) (*speech.Audio, error) {
	p.record(req)
	if err := p.wait(ctx, req); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	return &speech.Audio{PCM: p.silentPCM(), SampleRate: p.rate()}, nil
}

// SynthesizeStream implements speech.StreamingProvider.
func (p *Provider) SynthesizeStream(ctx context.Context, req speech.Request, emit func(speech.StreamChunk)) (*speech.Audio, error) {
	p.record(req)
	if err := p.wait(ctx, req); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}

	pcm := p.silentPCM()
	n := p.StreamChunks
	if n <= 0 {
		n = 1
	}
	if emit != nil {
		step := len(pcm) / n
		if step == 0 {
			step = len(pcm)
		}
		for off := 0; off < len(pcm); off += step {
			end := off + step
			final := false
			if end >= len(pcm) {
				end = len(pcm)
				final = true
			}
			emit(speech.StreamChunk{PCM: pcm[off:end], SampleRate: p.rate(), Final: final})
		}
	}
	return &speech.Audio{PCM: pcm, SampleRate: p.rate()}, nil
}

// Calls returns a snapshot of all requests seen so far.
func (p *Provider) Calls() []speech.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]speech.Request, len(p.calls))
	copy(out, p.calls)
	return out
}
