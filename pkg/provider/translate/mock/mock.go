// Package mock provides a scriptable test double for the translation provider
// contract.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/livedub/livedub/pkg/provider/translate"
)

// Compile-time assertion that Provider implements translate.Provider.
var _ translate.Provider = (*Provider)(nil)

// Provider is a scriptable translate.Provider. By default it echoes the input
// text with a "[tl]" prefix, which is enough for pipeline tests to verify
// routing without scripting every call.
type Provider struct {
	// Translate func overrides the default echo behaviour when non-nil.
	Fn func(req translate.Request) (*translate.Result, error)

	// Err, when non-nil, is returned by every call.
	Err error

	// Delay, when non-nil, is invoked before each call returns.
	Delay func(call int, req translate.Request)

	mu    sync.Mutex
	calls []translate.Request
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (*translate.Result, error) {
	p.mu.Lock()
	n := len(p.calls)
	p.calls = append(p.calls, req)
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
	if p.Fn != nil {
		return p.Fn(req)
	}
	return &translate.Result{
		TranslatedText: "[tl] " + strings.TrimSpace(req.Text),
		SourceLanguage: req.SourceLanguage,
	}, nil
}

// Calls returns a snapshot of all requests seen so far.
func (p *Provider) Calls() []translate.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]translate.Request, len(p.calls))
	copy(out, p.calls)
	return out
}
