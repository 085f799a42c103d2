package main

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/livedub/livedub/pkg/audio"
)

// frameDuration is the capture granularity of the stdin source.
const frameDuration = 20 * time.Millisecond

// stdinSource adapts a raw signed 16-bit little-endian PCM stream (the output
// of e.g. `ffmpeg -f s16le` or `parec --raw`) into an [audio.Source]. It reads
// fixed 20 ms frames and converts them to float32.
type stdinSource struct {
	r          io.Reader
	sampleRate int
	channels   int

	frames chan audio.AudioFrame

	mu     sync.Mutex
	err    error
	closed bool
	done   chan struct{}
}

var _ audio.Source = (*stdinSource)(nil)

func newStdinSource(r io.Reader, sampleRate, channels int) *stdinSource {
	s := &stdinSource{
		r:          r,
		sampleRate: sampleRate,
		channels:   channels,
		frames:     make(chan audio.AudioFrame, 16),
		done:       make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Frames implements audio.Source.
func (s *stdinSource) Frames() <-chan audio.AudioFrame {
	return s.frames
}

// Err implements audio.Source.
func (s *stdinSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements audio.Source. The read loop notices on its next frame
// boundary and stops; the frame channel is closed by the loop.
func (s *stdinSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
		if c, ok := s.r.(io.Closer); ok {
			c.Close()
		}
	}
	return nil
}

func (s *stdinSource) readLoop() {
	defer close(s.frames)

	samplesPerFrame := s.sampleRate * s.channels / int(time.Second/frameDuration)
	buf := make([]byte, samplesPerFrame*2)
	var elapsed time.Duration

	for {
		select {
		case <-s.done:
			return
		default:
		}

		n, err := io.ReadFull(s.r, buf)
		if n > 0 {
			// Partial trailing frames (truncated to whole samples) still flow
			// through so the stream tail is not dropped.
			pcm := buf[: n-n%2 : n-n%2]
			frame := audio.AudioFrame{
				Samples:    audio.PCM16ToFloat32(pcm),
				SampleRate: s.sampleRate,
				Channels:   s.channels,
				Timestamp:  elapsed,
			}
			elapsed += frame.Duration()
			select {
			case s.frames <- frame:
			case <-s.done:
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && !s.isClosed() {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return
		}
	}
}

func (s *stdinSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// stdoutSink writes synthesized PCM to stdout for an external player to
// consume (e.g. `livedub ... | aplay -f S16_LE -r 24000`). Writes are
// serialized so interleaved jobs never corrupt the byte stream, and each
// write is followed by a sleep for the audible duration so the blocking
// contract of [audio.Sink.Play] holds and per-device ordering stays real.
type stdoutSink struct {
	mu sync.Mutex
	w  io.Writer
}

var _ audio.Sink = (*stdoutSink)(nil)

func newStdoutSink(w io.Writer) *stdoutSink {
	if w == nil {
		w = os.Stdout
	}
	return &stdoutSink{w: w}
}

// Play implements audio.Sink. The deviceID is ignored: a byte stream has one
// destination.
func (s *stdoutSink) Play(ctx context.Context, pcm []byte, sampleRate int, deviceID string) error {
	if len(pcm) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	_, err := s.w.Write(pcm)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if sampleRate <= 0 {
		return nil
	}
	audible := time.Duration(len(pcm)/2) * time.Second / time.Duration(sampleRate)
	timer := time.NewTimer(audible)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
