// Package mock provides test doubles for the audio capture and playback
// abstractions. ScriptedSource replays a pre-built list of frames;
// RecordingSink records every Play call so tests can assert playback order.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/livedub/livedub/pkg/audio"
)

// ScriptedSource implements [audio.Source] by replaying a fixed frame list.
type ScriptedSource struct {
	ch      chan audio.AudioFrame
	err     error
	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
}

// NewScriptedSource creates a source that emits the given frames in order and
// then leaves the channel open until Close (mimicking a live tap that has gone
// quiet). Frame delivery is asynchronous; the internal buffer holds all frames
// so Feed never blocks tests.
func NewScriptedSource(frames ...audio.AudioFrame) *ScriptedSource {
	s := &ScriptedSource{
		ch:      make(chan audio.AudioFrame, len(frames)+64),
		closeCh: make(chan struct{}),
	}
	for _, f := range frames {
		s.ch <- f
	}
	return s
}

// Feed appends another frame to the stream. No-op after Close.
func (s *ScriptedSource) Feed(f audio.AudioFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ch <- f
}

// Frames implements [audio.Source].
func (s *ScriptedSource) Frames() <-chan audio.AudioFrame { return s.ch }

// Err implements [audio.Source].
func (s *ScriptedSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Fail closes the frame stream with the given error, simulating a capture
// device failure.
func (s *ScriptedSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
	close(s.closeCh)
}

// Close implements [audio.Source].
func (s *ScriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	close(s.closeCh)
	return nil
}

// PlayCall records a single [RecordingSink.Play] invocation.
type PlayCall struct {
	PCM        []byte
	SampleRate int
	DeviceID   string
	At         time.Time
}

// RecordingSink implements [audio.Sink] by recording calls. An optional
// per-call delay simulates real playback time so ordering tests can race
// synthesis completion against playback.
type RecordingSink struct {
	// Delay is how long each Play call blocks before returning.
	Delay time.Duration

	// Err, when non-nil, is returned by every Play call.
	Err error

	mu    sync.Mutex
	calls []PlayCall
}

// Play implements [audio.Sink].
func (s *RecordingSink) Play(ctx context.Context, pcm []byte, sampleRate int, deviceID string) error {
	s.mu.Lock()
	s.calls = append(s.calls, PlayCall{
		PCM:        pcm,
		SampleRate: sampleRate,
		DeviceID:   deviceID,
		At:         time.Now(),
	})
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Err
}

// Calls returns a snapshot of all recorded Play calls in invocation order.
func (s *RecordingSink) Calls() []PlayCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayCall, len(s.calls))
	copy(out, s.calls)
	return out
}
