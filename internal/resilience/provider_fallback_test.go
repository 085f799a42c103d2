package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/livedub/livedub/pkg/provider/speech"
)

// batchSpeech is a synthesis backend without streaming support.
type batchSpeech struct {
	pcm   []byte
	err   error
	calls int
}

func (p *batchSpeech) Synthesize(ctx context.Context, req speech.Request) (*speech.Audio, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &speech.Audio{PCM: p.pcm, SampleRate: 16000}, nil
}

// streamSpeech emits its chunks one by one, optionally failing once failAfter
// chunks already went out.
type streamSpeech struct {
	chunks    [][]byte
	err       error
	failAfter int
	calls     int
}

func (p *streamSpeech) Synthesize(ctx context.Context, req speech.Request) (*speech.Audio, error) {
	return p.SynthesizeStream(ctx, req, nil)
}

func (p *streamSpeech) SynthesizeStream(ctx context.Context, req speech.Request, emit func(speech.StreamChunk)) (*speech.Audio, error) {
	p.calls++
	var all []byte
	for i, c := range p.chunks {
		if p.err != nil && i == p.failAfter {
			return nil, p.err
		}
		if emit != nil {
			emit(speech.StreamChunk{PCM: c, SampleRate: 16000, Final: i == len(p.chunks)-1})
		}
		all = append(all, c...)
	}
	if p.err != nil && p.failAfter >= len(p.chunks) {
		return nil, p.err
	}
	return &speech.Audio{PCM: all, SampleRate: 16000}, nil
}

func TestSpeechFallbackStreamsFromPrimary(t *testing.T) {
	primary := &streamSpeech{chunks: [][]byte{{1, 1}, {2, 2}}}
	fallback := &batchSpeech{pcm: []byte{9}}
	f := NewSpeechFallback(primary, "elevenlabs", FallbackConfig{})
	f.AddFallback("openai", fallback)

	var got [][]byte
	out, err := f.SynthesizeStream(context.Background(), speech.Request{Text: "guten Tag"}, func(c speech.StreamChunk) {
		got = append(got, c.PCM)
	})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	if len(out.PCM) != 4 {
		t.Errorf("got %d PCM bytes, want 4", len(out.PCM))
	}
	if len(got) != 2 {
		t.Errorf("got %d streamed chunks, want 2", len(got))
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times while primary streams fine", fallback.calls)
	}
}

func TestSpeechFallbackDegradesToBatchFallback(t *testing.T) {
	// The primary fails before any audio goes out, so the chain may move on
	// to the batch-only fallback.
	primary := &streamSpeech{err: errors.New("no capacity")}
	batch := &batchSpeech{pcm: []byte{7, 7, 7}}
	f := NewSpeechFallback(primary, "elevenlabs", FallbackConfig{})
	f.AddFallback("openai", batch)

	var got []speech.StreamChunk
	out, err := f.SynthesizeStream(context.Background(), speech.Request{Text: "guten Tag"}, func(c speech.StreamChunk) {
		got = append(got, c)
	})
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	if len(out.PCM) != 3 {
		t.Errorf("got %d PCM bytes, want 3", len(out.PCM))
	}
	// A batch-only provider delivers exactly one final chunk.
	if len(got) != 1 || !got[0].Final {
		t.Fatalf("streamed chunks = %+v, want one final chunk", got)
	}
	if batch.calls != 1 {
		t.Errorf("fallback called %d times, want 1", batch.calls)
	}
}

func TestSpeechFallbackNoRetryAfterEmittedAudio(t *testing.T) {
	primary := &streamSpeech{
		chunks:    [][]byte{{1, 1}, {2, 2}, {3, 3}},
		err:       errors.New("stream reset by peer"),
		failAfter: 2,
	}
	fallback := &batchSpeech{pcm: []byte{9, 9}}
	f := NewSpeechFallback(primary, "elevenlabs", FallbackConfig{})
	f.AddFallback("openai", fallback)

	var emitted int
	_, err := f.SynthesizeStream(context.Background(), speech.Request{Text: "guten Tag"}, func(c speech.StreamChunk) {
		emitted++
	})
	if err == nil {
		t.Fatal("mid-stream failure was swallowed")
	}
	if errors.Is(err, ErrExhausted) {
		t.Errorf("err = %v; a mid-stream failure must surface directly, not as exhaustion", err)
	}
	if emitted != 2 {
		t.Errorf("listener heard %d chunks, want 2", emitted)
	}
	// The listener already heard part of the utterance; replaying it from a
	// fallback would duplicate audio.
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times after audio was emitted", fallback.calls)
	}
}

func TestSpeechFallbackBatchPath(t *testing.T) {
	primary := &batchSpeech{err: errors.New("no capacity")}
	fallback := &batchSpeech{pcm: []byte{5}}
	f := NewSpeechFallback(primary, "elevenlabs", FallbackConfig{})
	f.AddFallback("openai", fallback)

	out, err := f.Synthesize(context.Background(), speech.Request{Text: "guten Tag"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(out.PCM) != 1 {
		t.Errorf("got %d PCM bytes, want 1", len(out.PCM))
	}
}
