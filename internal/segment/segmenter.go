// Package segment slices the active-speech stream into fixed-length
// overlapping chunks and assigns each one a monotonic sequence number.
//
// The sequence number is assigned synchronously at chunk-creation time,
// strictly before the caller issues any asynchronous transcription call, so
// two chunks dispatched concurrently always carry a correct relative order
// even when their results arrive out of order. Sequence numbers are the sole
// ordering authority downstream.
//
// A Segmenter is driven by the session loop (VAD events plus frames) from a
// single goroutine; it is not safe for concurrent use.
package segment

import (
	"time"

	"github.com/livedub/livedub/pkg/audio"
	"github.com/livedub/livedub/pkg/types"
)

const (
	// DefaultChunkDuration is the target audible length of one chunk.
	DefaultChunkDuration = time.Second

	// DefaultOverlap is how much of the previous chunk's tail is repeated at
	// the start of the next chunk, so words straddling a boundary are fully
	// contained in at least one chunk. The deduplicator strips the resulting
	// repeated words from the transcriptions.
	DefaultOverlap = 200 * time.Millisecond

	// DefaultPauseThreshold is the silence gap after which the session
	// context is considered stale: dedup and translation-context state are
	// cleared and the sequence counter restarts for a fresh segment run.
	DefaultPauseThreshold = 2 * time.Second

	// minFlushDuration is the smallest tail flushed as a final chunk on
	// speech-end. Shorter tails are almost always VAD hangover, not words.
	minFlushDuration = 250 * time.Millisecond
)

// Config holds the tuning parameters for a [Segmenter]. Zero durations select
// the package defaults.
type Config struct {
	// SampleRate of the mono stream pushed via Push. Required.
	SampleRate int

	ChunkDuration  time.Duration
	Overlap        time.Duration
	PauseThreshold time.Duration

	// OnPause is invoked (synchronously) when the gap between two speech runs
	// exceeds PauseThreshold, before the first chunk of the new run is
	// created. The session uses it to clear dedup and translation-context
	// state.
	OnPause func(gap time.Duration)
}

// Segmenter accumulates speech audio and emits sequenced chunks.
type Segmenter struct {
	cfg         Config
	chunkSize   int // samples per full chunk
	overlapSize int

	seq       uint64
	inSpeech  bool
	buf       []float32
	bufStart  time.Duration // capture timestamp of buf[0]
	lastEnd   time.Duration // capture timestamp of the end of the last emitted audio
	everSpoke bool
}

// New creates a Segmenter.
func New(cfg Config) *Segmenter {
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = DefaultChunkDuration
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = DefaultOverlap
	}
	if cfg.PauseThreshold <= 0 {
		cfg.PauseThreshold = DefaultPauseThreshold
	}
	return &Segmenter{
		cfg:         cfg,
		chunkSize:   samplesFor(cfg.ChunkDuration, cfg.SampleRate),
		overlapSize: samplesFor(cfg.Overlap, cfg.SampleRate),
	}
}

// SpeechStart tells the segmenter a speech run has begun at ts. If the gap
// since the previous run exceeds the pause threshold, the OnPause hook fires
// and the sequence counter restarts.
func (s *Segmenter) SpeechStart(ts time.Duration) {
	if s.everSpoke {
		if gap := ts - s.lastEnd; gap > s.cfg.PauseThreshold {
			if s.cfg.OnPause != nil {
				s.cfg.OnPause(gap)
			}
			s.seq = 0
		}
	}
	s.inSpeech = true
	s.buf = s.buf[:0]
	s.bufStart = ts
}

// Push appends a frame's samples while in active speech and returns any full
// chunks completed by this frame. Outside active speech the frame is ignored.
func (s *Segmenter) Push(frame audio.AudioFrame) []*types.Chunk {
	if !s.inSpeech {
		return nil
	}
	s.buf = append(s.buf, frame.Samples...)

	var chunks []*types.Chunk
	for len(s.buf) >= s.chunkSize {
		chunks = append(chunks, s.emit(s.buf[:s.chunkSize]))

		// Retain the overlap tail as the head of the next chunk.
		retained := s.buf[s.chunkSize-s.overlapSize:]
		next := make([]float32, len(retained))
		copy(next, retained)
		s.bufStart += s.cfg.ChunkDuration - s.cfg.Overlap
		s.buf = next
	}
	return chunks
}

// SpeechEnd tells the segmenter the speech run ended at ts. Any buffered tail
// at least minFlushDuration long is flushed as a final (short) chunk;
// anything shorter is dropped as hangover.
func (s *Segmenter) SpeechEnd(ts time.Duration) *types.Chunk {
	if !s.inSpeech {
		return nil
	}
	s.inSpeech = false
	s.everSpoke = true
	s.lastEnd = ts

	if len(s.buf) < samplesFor(minFlushDuration, s.cfg.SampleRate) {
		s.buf = s.buf[:0]
		return nil
	}
	chunk := s.emit(s.buf)
	s.buf = s.buf[:0]
	return chunk
}

// Seq returns the sequence number most recently assigned. Zero means no chunk
// has been emitted in the current segment run.
func (s *Segmenter) Seq() uint64 { return s.seq }

// Reset returns the segmenter to its initial state, including the sequence
// counter. Used on session stop.
func (s *Segmenter) Reset() {
	s.seq = 0
	s.inSpeech = false
	s.buf = nil
	s.everSpoke = false
	s.lastEnd = 0
}

// emit creates a sequenced chunk from the given samples. The sequence counter
// is incremented here, synchronously, before the chunk escapes to any
// asynchronous stage.
func (s *Segmenter) emit(samples []float32) *types.Chunk {
	s.seq++
	buf := make([]float32, len(samples))
	copy(buf, samples)

	dur := time.Duration(len(buf)) * time.Second / time.Duration(s.cfg.SampleRate)
	chunk := &types.Chunk{
		Seq:        s.seq,
		Audio:      buf,
		SampleRate: s.cfg.SampleRate,
		Start:      s.bufStart,
		Duration:   dur,
		State:      types.StateCaptured,
	}
	s.lastEnd = s.bufStart + dur
	return chunk
}

// samplesFor converts a duration to a sample count at rate.
func samplesFor(d time.Duration, rate int) int {
	return int(d * time.Duration(rate) / time.Second)
}
