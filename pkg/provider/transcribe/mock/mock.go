// Package mock provides a scriptable test double for the transcription
// provider contract.
package mock

import (
	"context"
	"sync"

	"github.com/livedub/livedub/pkg/provider/transcribe"
)

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Provider is a scriptable transcribe.Provider. Results are returned in FIFO
// order; when the script is exhausted, Result (or Err) is returned for every
// subsequent call.
type Provider struct {
	// Result is the fallback result once Script is exhausted.
	Result *transcribe.Result

	// Err, when non-nil, is returned instead of a result.
	Err error

	// Script is a FIFO queue of per-call results.
	Script []*transcribe.Result

	// Delay, when non-nil, is invoked before each call returns. Use it to
	// stall individual calls and exercise out-of-order completion.
	Delay func(call int, req transcribe.Request)

	mu    sync.Mutex
	calls []transcribe.Request
}

// Transcribe implements transcribe.Provider.
func (p *Provider) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	p.mu.Lock()
	n := len(p.calls)
	p.calls = append(p.calls, req)
	var result *transcribe.Result
	if len(p.Script) > 0 {
		result = p.Script[0]
		p.Script = p.Script[1:]
	} else {
		result = p.Result
	}
	delay := p.Delay
	p.mu.Unlock()

	if delay != nil {
		delay(n, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if result == nil {
		result = &transcribe.Result{}
	}
	return result, nil
}

// Calls returns a snapshot of all requests seen so far.
func (p *Provider) Calls() []transcribe.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]transcribe.Request, len(p.calls))
	copy(out, p.calls)
	return out
}
