// Package synth implements the bounded-concurrency synthesis queue. Synthesis
// calls against the external TTS service run in parallel (default 3 at a
// time, admission via a weighted semaphore) because they dominate pipeline
// latency, but playback to any given output device is strictly serialized in
// job-submission order: a job may not start playing until every
// earlier-submitted job for the same device has finished playing or been
// abandoned. Word order stays intelligible even when a later chunk
// synthesizes faster than an earlier one.
package synth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/livedub/livedub/internal/observe"
	"github.com/livedub/livedub/pkg/audio"
	"github.com/livedub/livedub/pkg/provider/speech"
)

// DefaultMaxConcurrent is the default cap on parallel synthesis calls.
const DefaultMaxConcurrent = 3

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("synth: queue closed")

// JobStatus is the lifecycle state of one synthesis job. Statuses only move
// forward.
type JobStatus int

const (
	StatusQueued JobStatus = iota
	StatusSynthesizing
	StatusReady
	StatusPlaying
	StatusDone
	StatusError
)

// String returns the human-readable status name.
func (s JobStatus) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusSynthesizing:
		return "synthesizing"
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Job describes one unit of synthesis work.
type Job struct {
	// Text is the translated text to synthesize.
	Text string

	// VoiceID selects the synthesis voice.
	VoiceID string

	// ModelID optionally selects the synthesis model.
	ModelID string

	// SourceText and SourceLanguage describe the pre-translation input, kept
	// on the job for event consumers.
	SourceText     string
	SourceLanguage string

	// DeviceID is the output device; playback is ordered per device. Empty
	// selects the sink's default device.
	DeviceID string

	// OnComplete, when non-nil, is invoked once after playback finished or
	// the job failed.
	OnComplete func(jobID string, err error)
}

// EventType enumerates queue event kinds.
type EventType int

const (
	// EventProgress reports a status transition or, in streaming mode, an
	// audio sub-chunk.
	EventProgress EventType = iota

	// EventComplete reports terminal completion.
	EventComplete
)

// Event is one observable queue event.
type Event struct {
	Type     EventType
	JobID    string
	DeviceID string
	Status   JobStatus

	// PCM / SampleRate / Final carry a streamed audio sub-chunk on
	// EventProgress events produced by streaming synthesis.
	PCM        []byte
	SampleRate int
	Final      bool

	// Err is set on EventComplete for failed jobs.
	Err error
}

// Stats is a snapshot of active job counts by status.
type Stats struct {
	Queued       int
	Synthesizing int
	Ready        int
	Playing      int
}

// Config holds the queue collaborators. Provider and Sink are required.
type Config struct {
	// Provider performs synthesis. A provider that also implements
	// [speech.StreamingProvider] is used in streaming mode.
	Provider speech.Provider

	// Sink plays PCM audio. Play must block until playback completes; the
	// per-device ordering guarantee is built on that contract.
	Sink audio.Sink

	// MaxConcurrent caps parallel synthesis calls. Zero selects
	// [DefaultMaxConcurrent].
	MaxConcurrent int64

	// OnEvent, when non-nil, receives progress and completion events. Called
	// synchronously from queue goroutines; must not block.
	OnEvent func(Event)

	// Logger defaults to slog.Default. Metrics defaults to
	// observe.DefaultMetrics.
	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Queue is the bounded-concurrency synthesis queue. Safe for concurrent use.
type Queue struct {
	cfg Config
	sem *semaphore.Weighted
	log *slog.Logger
	met *observe.Metrics

	mu     sync.Mutex
	closed bool
	jobs   map[string]JobStatus
	turns  map[string]chan struct{} // per device: done channel of the last submitted job

	wg sync.WaitGroup
}

// NewQueue creates a Queue.
func NewQueue(cfg Config) *Queue {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	met := cfg.Metrics
	if met == nil {
		met = observe.DefaultMetrics()
	}
	return &Queue{
		cfg:   cfg,
		sem:   semaphore.NewWeighted(cfg.MaxConcurrent),
		log:   log.With(slog.String("component", "synth-queue")),
		met:   met,
		jobs:  make(map[string]JobStatus),
		turns: make(map[string]chan struct{}),
	}
}

// Enqueue submits a job and returns its ID. The job runs asynchronously;
// completion is observable via OnEvent and job.OnComplete. ctx cancellation
// abandons the job at its next stage boundary.
func (q *Queue) Enqueue(ctx context.Context, job Job) (string, error) {
	id := uuid.NewString()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	prev := q.turns[job.DeviceID]
	done := make(chan struct{})
	q.turns[job.DeviceID] = done
	q.jobs[id] = StatusQueued
	q.wg.Add(1)
	q.mu.Unlock()

	q.met.SynthQueueDepth.Add(ctx, 1)
	q.emit(Event{Type: EventProgress, JobID: id, DeviceID: job.DeviceID, Status: StatusQueued})
	go q.run(ctx, id, job, prev, done)
	return id, nil
}

// Stats returns a snapshot of active job counts.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s Stats
	for _, st := range q.jobs {
		switch st {
		case StatusQueued:
			s.Queued++
		case StatusSynthesizing:
			s.Synthesizing++
		case StatusReady:
			s.Ready++
		case StatusPlaying:
			s.Playing++
		}
	}
	return s
}

// Close stops accepting jobs and waits for all in-flight jobs to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}

// run executes one job: synthesize under the semaphore, then play once the
// device's turn arrives. done is closed when the job's playback slot is
// finished or abandoned, releasing the next job for the same device.
func (q *Queue) run(ctx context.Context, id string, job Job, prev <-chan struct{}, done chan struct{}) {
	defer q.wg.Done()

	err := q.process(ctx, id, job, prev, done)
	close(done)

	q.mu.Lock()
	delete(q.jobs, id)
	q.mu.Unlock()
	q.met.SynthQueueDepth.Add(ctx, -1)

	status := StatusDone
	if err != nil {
		status = StatusError
		q.log.Error("synthesis job failed", slog.String("job", id), slog.String("error", err.Error()))
	}
	q.emit(Event{Type: EventComplete, JobID: id, DeviceID: job.DeviceID, Status: status, Err: err})
	if job.OnComplete != nil {
		job.OnComplete(id, err)
	}
}

func (q *Queue) process(ctx context.Context, id string, job Job, prev <-chan struct{}, done chan struct{}) error {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	q.setStatus(id, job.DeviceID, StatusSynthesizing)

	// Playback runs concurrently so streamed sub-chunks can start playing as
	// soon as the device's turn arrives.
	chunks := make(chan speech.StreamChunk, 64)
	playErr := make(chan error, 1)
	go q.play(ctx, id, job, prev, chunks, playErr)

	sctx, span := observe.StartSpan(ctx, "pipeline.synthesize")
	start := time.Now()
	synthErr := q.synthesize(sctx, id, job, chunks)
	q.met.SynthesizeDuration.Record(ctx, time.Since(start).Seconds())
	if synthErr != nil {
		span.RecordError(synthErr)
	}
	span.End()
	close(chunks)
	q.sem.Release(1)

	if synthErr == nil {
		q.setStatus(id, job.DeviceID, StatusReady)
	}

	pErr := <-playErr
	if synthErr != nil {
		return synthErr
	}
	return pErr
}

// synthesize runs the provider call, forwarding sub-chunks to the playback
// goroutine and the event surface.
func (q *Queue) synthesize(ctx context.Context, id string, job Job, chunks chan<- speech.StreamChunk) error {
	req := speech.Request{Text: job.Text, VoiceID: job.VoiceID, ModelID: job.ModelID}

	if sp, ok := q.cfg.Provider.(speech.StreamingProvider); ok {
		_, err := sp.SynthesizeStream(ctx, req, func(c speech.StreamChunk) {
			q.emit(Event{
				Type: EventProgress, JobID: id, DeviceID: job.DeviceID,
				Status: StatusSynthesizing, PCM: c.PCM, SampleRate: c.SampleRate, Final: c.Final,
			})
			select {
			case chunks <- c:
			case <-ctx.Done():
			}
		})
		return err
	}

	out, err := q.cfg.Provider.Synthesize(ctx, req)
	if err != nil {
		return err
	}
	select {
	case chunks <- speech.StreamChunk{PCM: out.PCM, SampleRate: out.SampleRate, Final: true}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// play waits for the device's playback turn, then writes each audio chunk to
// the sink in arrival order. Sink.Play blocks until audible playback is done,
// so returning from this function means the device is free.
func (q *Queue) play(ctx context.Context, id string, job Job, prev <-chan struct{}, chunks <-chan speech.StreamChunk, result chan<- error) {
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			result <- ctx.Err()
			return
		}
	}

	started := false
	for c := range chunks {
		if len(c.PCM) == 0 {
			continue
		}
		if !started {
			q.setStatus(id, job.DeviceID, StatusPlaying)
			started = true
		}
		if err := q.cfg.Sink.Play(ctx, c.PCM, c.SampleRate, job.DeviceID); err != nil {
			// Drain so the synthesis side never blocks on a dead player.
			for range chunks {
			}
			result <- err
			return
		}
	}
	result <- nil
}

// setStatus advances a job's status. Statuses only move forward, so a Ready
// update arriving after streaming playback already began does not regress it.
func (q *Queue) setStatus(id, deviceID string, status JobStatus) {
	q.mu.Lock()
	cur, ok := q.jobs[id]
	if !ok || status <= cur {
		q.mu.Unlock()
		return
	}
	q.jobs[id] = status
	q.mu.Unlock()

	q.emit(Event{Type: EventProgress, JobID: id, DeviceID: deviceID, Status: status})
}

func (q *Queue) emit(ev Event) {
	if q.cfg.OnEvent != nil {
		q.cfg.OnEvent(ev)
	}
}
