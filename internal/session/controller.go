// Package session implements the session controller: the single owner of all
// per-session pipeline state (VAD calibration, segmenter, dedup buffer,
// translation context, feedback guard, synthesis queue) and the control
// surface the application shell drives.
//
// One Controller supports one active session at a time. Start tears nothing
// down implicitly: a new session may only begin after Stop has fully released
// the previous one's resources. Start and Stop are idempotent.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/livedub/livedub/internal/dedup"
	"github.com/livedub/livedub/internal/enhance"
	"github.com/livedub/livedub/internal/filter"
	"github.com/livedub/livedub/internal/guard"
	"github.com/livedub/livedub/internal/observe"
	"github.com/livedub/livedub/internal/segment"
	"github.com/livedub/livedub/internal/synth"
	"github.com/livedub/livedub/internal/translate"
	"github.com/livedub/livedub/internal/vad"
	"github.com/livedub/livedub/pkg/audio"
	"github.com/livedub/livedub/pkg/provider/speech"
	"github.com/livedub/livedub/pkg/provider/transcribe"
	translator "github.com/livedub/livedub/pkg/provider/translate"
	"github.com/livedub/livedub/pkg/types"
)

// DefaultSampleRate is the internal pipeline sample rate. Capture frames at
// other rates or channel counts are converted on entry.
const DefaultSampleRate = 16000

// ErrInvalidConfig wraps configuration problems detected before a session
// starts.
var ErrInvalidConfig = errors.New("session: invalid configuration")

// prerollWindow bounds the rolling buffer of recent frames kept while no
// speech is active. It must cover the VAD's activation run plus the frame in
// flight, so the audio that triggered the speech-start decision can be
// replayed into the segmenter.
const prerollWindow = time.Second

// prerollFrame is one buffered capture frame awaiting a possible speech-start.
type prerollFrame struct {
	start   time.Duration
	samples []float32
}

// Warmer is implemented by providers that benefit from an eager first call
// (model load, connection pool spin-up) before audio starts flowing.
type Warmer interface {
	Warm(ctx context.Context) error
}

// Config assembles the collaborators and tuning for a [Controller].
type Config struct {
	Transcriber transcribe.Provider
	Translator  translator.Provider
	Synthesizer speech.Provider
	Sink        audio.Sink

	// SourceLanguage is the expected spoken language; empty enables
	// auto-detection from transcription results.
	SourceLanguage string

	// TargetLanguage is the synthesis output language. Required.
	TargetLanguage string

	VoiceID      string
	ModelID      string
	OutputDevice string

	// SampleRate of the internal mono pipeline. Zero selects
	// [DefaultSampleRate].
	SampleRate int

	// Pipeline tuning; zero values select per-package defaults.
	VADThreshold           float64
	ChunkDuration          time.Duration
	ChunkOverlap           time.Duration
	PauseThreshold         time.Duration
	Cooldown               time.Duration
	MinTextLength          int
	MaxConcurrentSynthesis int

	// DisableContext turns off the rolling translation-context window.
	DisableContext bool

	// EventBuffer sizes the event channel. Zero selects 256. Events are
	// dropped, not blocked on, when the consumer falls behind.
	EventBuffer int

	// Logger defaults to slog.Default. Metrics defaults to
	// observe.DefaultMetrics.
	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// SessionState is a point-in-time snapshot of the controller.
type SessionState struct {
	Active      bool
	Calibrating bool
	Baseline    float64
	Threshold   float64
	LastSeq     uint64
	Queue       synth.Stats
}

// Controller drives the capture → playback pipeline for one session.
type Controller struct {
	cfg Config
	log *slog.Logger
	met *observe.Metrics

	events chan Event

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	group  *errgroup.Group

	// per-session components, rebuilt on Start
	enhancer  *enhance.Chain
	detector  *vad.Detector
	segmenter *segment.Segmenter
	pre       *filter.PreFilter
	post      *filter.PostFilter
	deduper   *dedup.Deduplicator
	window    *translate.ContextManager
	guard     *guard.Guard
	queue     *synth.Queue

	// frame-loop state, touched only by the frame goroutine
	speaking bool
	pos      time.Duration // stream position of the next frame
	preroll  []prerollFrame

	// snapshot state for State()
	snapMu  sync.Mutex
	cal     vad.Calibration
	lastSeq uint64

	langMu   sync.Mutex
	lastLang string
}

// NewController validates cfg and creates a Controller. No resources are
// acquired until Start.
func NewController(cfg Config) (*Controller, error) {
	var errs []error
	if cfg.Transcriber == nil {
		errs = append(errs, errors.New("transcriber is required"))
	}
	if cfg.Translator == nil {
		errs = append(errs, errors.New("translator is required"))
	}
	if cfg.Synthesizer == nil {
		errs = append(errs, errors.New("synthesizer is required"))
	}
	if cfg.Sink == nil {
		errs = append(errs, errors.New("playback sink is required"))
	}
	if cfg.TargetLanguage == "" {
		errs = append(errs, errors.New("target language is required"))
	}
	if cfg.VoiceID == "" {
		errs = append(errs, errors.New("voice ID is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	met := cfg.Metrics
	if met == nil {
		met = observe.DefaultMetrics()
	}

	return &Controller{
		cfg:    cfg,
		log:    log.With(slog.String("component", "session")),
		met:    met,
		events: make(chan Event, cfg.EventBuffer),
		pre:    filter.NewPreFilter(filter.PreConfig{}),
		post:   filter.NewPostFilter(filter.PostConfig{}),
	}, nil
}

// Events returns the session event stream. The channel is owned by the
// controller and stays open across sessions.
func (c *Controller) Events() <-chan Event { return c.events }

// State returns a snapshot of the controller state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	active := c.active
	queue := c.queue
	c.mu.Unlock()

	c.snapMu.Lock()
	cal := c.cal
	seq := c.lastSeq
	c.snapMu.Unlock()

	s := SessionState{
		Active:      active,
		Calibrating: cal.Calibrating,
		Baseline:    cal.Baseline,
		Threshold:   cal.Threshold,
		LastSeq:     seq,
	}
	if queue != nil {
		s.Queue = queue.Stats()
	}
	return s
}

// Start begins a session over src. Idempotent: starting an already-active
// session is a no-op. The session runs until Stop, until ctx is cancelled, or
// until audio capture fails.
func (c *Controller) Start(ctx context.Context, src audio.Source) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)

	// Fresh per-session state. Calibration starts over on every session.
	c.enhancer = enhance.NewChain(enhance.Config{SampleRate: c.cfg.SampleRate})
	c.detector = vad.NewDetector(vad.Config{SampleRate: c.cfg.SampleRate, Threshold: c.cfg.VADThreshold})
	c.deduper = dedup.New()
	c.window = translate.NewContextManager(!c.cfg.DisableContext, 0, 0)
	c.guard = guard.New(guard.Config{MinLength: c.cfg.MinTextLength, Cooldown: c.cfg.Cooldown})
	c.segmenter = segment.New(segment.Config{
		SampleRate:     c.cfg.SampleRate,
		ChunkDuration:  c.cfg.ChunkDuration,
		Overlap:        c.cfg.ChunkOverlap,
		PauseThreshold: c.cfg.PauseThreshold,
		OnPause:        c.onPause,
	})
	c.queue = synth.NewQueue(synth.Config{
		Provider:      c.cfg.Synthesizer,
		Sink:          c.cfg.Sink,
		MaxConcurrent: int64(c.cfg.MaxConcurrentSynthesis),
		OnEvent:       c.onQueueEvent,
		Logger:        c.log,
		Metrics:       c.met,
	})
	c.speaking = false
	c.pos = 0
	c.preroll = nil
	c.lastLang = ""
	c.snapMu.Lock()
	c.cal = c.detector.Calibration()
	c.lastSeq = 0
	c.snapMu.Unlock()

	// Warm providers concurrently before audio flows.
	warm, warmCtx := errgroup.WithContext(runCtx)
	for _, p := range []any{c.cfg.Transcriber, c.cfg.Translator, c.cfg.Synthesizer} {
		if w, ok := p.(Warmer); ok {
			warm.Go(func() error { return w.Warm(warmCtx) })
		}
	}
	if err := warm.Wait(); err != nil {
		cancel()
		c.mu.Unlock()
		return fmt.Errorf("session: provider warmup: %w", err)
	}

	g, gctx := errgroup.WithContext(runCtx)
	c.cancel = cancel
	c.group = g
	c.active = true
	c.mu.Unlock()

	c.met.ActiveSessions.Add(ctx, 1)
	c.log.Info("session started",
		slog.String("target_language", c.cfg.TargetLanguage),
		slog.Int("sample_rate", c.cfg.SampleRate),
	)

	g.Go(func() error { return c.runFrames(gctx, src) })

	// Capture failure terminates the session; everything else is per-chunk.
	go func() {
		err := g.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			c.emit(Event{Type: EventSessionError, Err: err, Fatal: true})
			c.log.Error("session terminated by capture failure", slog.String("error", err.Error()))
		}
		c.Stop()
	}()
	return nil
}

// Stop ends the active session: stops accepting frames, waits for in-flight
// chunks, drains the synthesis queue, and resets all session state.
// Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	cancel := c.cancel
	group := c.group
	queue := c.queue
	c.mu.Unlock()

	cancel()
	if group != nil {
		_ = group.Wait()
	}
	if queue != nil {
		queue.Close()
	}

	// Reset every piece of session state. Calibration resets here and only
	// here; mid-session pauses keep it.
	c.detector.Reset()
	c.segmenter.Reset()
	c.enhancer.Reset()
	c.deduper.Clear()
	c.window.Clear()
	c.guard.Reset()

	c.snapMu.Lock()
	c.cal = vad.Calibration{}
	c.lastSeq = 0
	c.snapMu.Unlock()

	c.met.ActiveSessions.Add(context.Background(), -1)
	c.log.Info("session stopped")
}

// ─── Frame loop ───────────────────────────────────────────────────────────────

// runFrames consumes the capture source until it closes or ctx is cancelled.
// A source error is fatal to the session.
func (c *Controller) runFrames(ctx context.Context, src audio.Source) error {
	conv := &audio.FrameConverter{Target: audio.Format{SampleRate: c.cfg.SampleRate, Channels: 1}}
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-src.Frames():
			if !ok {
				if err := src.Err(); err != nil {
					return fmt.Errorf("session: audio capture: %w", err)
				}
				return nil
			}
			c.handleFrame(ctx, conv.Convert(frame))
		}
	}
}

// handleFrame runs the synchronous pipeline stages for one mono frame:
// enhancement, VAD, segmentation. Completed chunks are dispatched to
// asynchronous processing.
func (c *Controller) handleFrame(ctx context.Context, frame audio.AudioFrame) {
	c.enhancer.Process(frame.Samples)

	frameStart := c.pos
	c.pos += frame.Duration()
	if !c.speaking {
		c.bufferPreroll(frameStart, frame.Samples)
	}

	// When speech starts during this frame, the frame's samples reach the
	// segmenter via the preroll replay, not via the direct push below.
	started := false
	for _, ev := range c.detector.Process(frame) {
		switch ev.Type {
		case vad.EventLevel:
			c.emit(Event{
				Type:        EventSpeechActivity,
				Speaking:    c.speaking,
				Level:       ev.Level,
				Calibrating: c.detector.Calibration().Calibrating,
				Timestamp:   ev.Timestamp,
			})
		case vad.EventSpeechStart:
			c.speaking = true
			started = true
			c.segmenter.SpeechStart(ev.Timestamp)
			c.flushPreroll(ctx, ev.Timestamp)
			c.met.SpeechSegments.Add(ctx, 1)
			c.emit(Event{Type: EventSpeechActivity, Speaking: true, Level: ev.Level, Timestamp: ev.Timestamp})
		case vad.EventSpeechEnd:
			c.speaking = false
			if chunk := c.segmenter.SpeechEnd(ev.Timestamp); chunk != nil {
				c.dispatch(ctx, chunk)
			}
			c.emit(Event{Type: EventSpeechActivity, Speaking: false, Level: ev.Level, Timestamp: ev.Timestamp})
		}
	}

	if c.speaking && !started {
		for _, chunk := range c.segmenter.Push(frame) {
			c.dispatch(ctx, chunk)
		}
	}

	c.snapMu.Lock()
	c.cal = c.detector.Calibration()
	c.lastSeq = c.segmenter.Seq()
	c.snapMu.Unlock()
}

// bufferPreroll appends an enhanced frame to the rolling pre-speech buffer and
// drops frames that have aged out of the preroll window.
func (c *Controller) bufferPreroll(start time.Duration, samples []float32) {
	buf := make([]float32, len(samples))
	copy(buf, samples)
	c.preroll = append(c.preroll, prerollFrame{start: start, samples: buf})
	for len(c.preroll) > 0 && c.pos-c.preroll[0].start > prerollWindow {
		c.preroll = c.preroll[1:]
	}
}

// flushPreroll replays the buffered audio from ts onward into the segmenter.
// The VAD declares speech-start only after its activation run, so the run's
// audio, the first words of the utterance, sits in the preroll buffer by the
// time the event arrives.
func (c *Controller) flushPreroll(ctx context.Context, ts time.Duration) {
	for _, pf := range c.preroll {
		samples := pf.samples
		if pf.start < ts {
			skip := int((ts - pf.start) * time.Duration(c.cfg.SampleRate) / time.Second)
			if skip >= len(samples) {
				continue
			}
			samples = samples[skip:]
		}
		for _, chunk := range c.segmenter.Push(audio.AudioFrame{Samples: samples, SampleRate: c.cfg.SampleRate, Channels: 1}) {
			c.dispatch(ctx, chunk)
		}
	}
	c.preroll = c.preroll[:0]
}

// dispatch hands a sequenced chunk to asynchronous processing. The sequence
// number was already assigned, synchronously, by the segmenter.
func (c *Controller) dispatch(ctx context.Context, chunk *types.Chunk) {
	c.met.ChunksInFlight.Add(ctx, 1)
	c.group.Go(func() error {
		defer c.met.ChunksInFlight.Add(ctx, -1)
		// Per-chunk errors are isolated; they surface as events, never as a
		// group error.
		c.processChunk(ctx, chunk)
		return nil
	})
}

// ─── Chunk pipeline ───────────────────────────────────────────────────────────

func (c *Controller) processChunk(ctx context.Context, chunk *types.Chunk) {
	ctx, span := observe.StartSpan(ctx, "pipeline.chunk")
	defer span.End()

	log := c.log.With(slog.Uint64("seq", chunk.Seq))
	if id := observe.CorrelationID(ctx); id != "" {
		log = log.With(slog.String("trace_id", id))
	}

	// Pre-filter: cheap audio heuristics before the paid transcription call.
	pre := c.pre.Check(chunk.Audio, chunk.SampleRate)
	if !pre.Send {
		c.finish(ctx, chunk, types.StateRejectedNoise, pre.Reason)
		return
	}
	chunk.State = types.StateFiltered

	// Transcribe.
	tctx, tspan := observe.StartSpan(ctx, "pipeline.transcribe")
	start := time.Now()
	res, err := c.cfg.Transcriber.Transcribe(tctx, transcribe.Request{
		PCM:          audio.Float32ToPCM16(chunk.Audio),
		SampleRate:   chunk.SampleRate,
		LanguageHint: c.cfg.SourceLanguage,
	})
	c.met.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		tspan.RecordError(err)
		tspan.End()
		c.fail(ctx, chunk, fmt.Errorf("transcribe: %w", err))
		return
	}
	tspan.End()
	chunk.Text = strings.TrimSpace(res.Text)
	chunk.Language = res.Language
	chunk.State = types.StateTranscribed

	// Post-filter. Rejected text is still surfaced for display; only
	// downstream translation/synthesis is skipped.
	post := c.post.Check(res)
	c.emit(Event{
		Type:      EventTranscriptionUpdate,
		Seq:       chunk.Seq,
		Text:      chunk.Text,
		Language:  chunk.Language,
		State:     chunk.State,
		Rejected:  !post.Accept,
		Reason:    post.Reason,
		Timestamp: chunk.Start,
	})
	if !post.Accept {
		c.finish(ctx, chunk, types.StateRejectedHallucination, post.Reason)
		return
	}

	// A source-language change makes the rolling context misleading.
	lang := chunk.Language
	if lang == "" {
		lang = c.cfg.SourceLanguage
	}
	norm := translate.NormalizeLanguage(lang)
	c.langMu.Lock()
	if c.lastLang != "" && norm != "" && norm != c.lastLang {
		c.window.Clear()
		log.Debug("source language changed, context cleared",
			slog.String("from", c.lastLang), slog.String("to", norm))
	}
	if norm != "" {
		c.lastLang = norm
	}
	c.langMu.Unlock()

	// Dedup strips the words repeated by the chunk overlap.
	chunk.DedupedText = c.deduper.Apply(chunk.Seq, chunk.Text)
	chunk.State = types.StateDeduplicated
	if chunk.DedupedText == "" {
		c.finish(ctx, chunk, types.StateDone, "fully overlapped with previous chunk")
		return
	}

	// Same-language short-circuit.
	if translate.SameLanguage(norm, c.cfg.TargetLanguage) {
		c.finish(ctx, chunk, types.StateSkippedSameLanguage, "")
		return
	}

	// Feedback guard: admission into the translate→synthesize critical
	// section.
	adm, verdict := c.guard.Admit(chunk.DedupedText)
	if !verdict.Allow {
		c.finish(ctx, chunk, verdict.State, verdict.Reason)
		return
	}

	// Translate, biased by the rolling context.
	xctx, xspan := observe.StartSpan(ctx, "pipeline.translate")
	start = time.Now()
	tr, err := c.cfg.Translator.Translate(xctx, translator.Request{
		Text:           chunk.DedupedText,
		TargetLanguage: c.cfg.TargetLanguage,
		SourceLanguage: norm,
		ContextHint:    c.window.ContextString(),
	})
	c.met.TranslateDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		xspan.RecordError(err)
		xspan.End()
		adm.Abort()
		c.fail(ctx, chunk, fmt.Errorf("translate: %w", err))
		return
	}
	xspan.End()
	chunk.TranslatedText = tr.TranslatedText
	chunk.State = types.StateTranslated
	c.emit(Event{
		Type:      EventTranslationUpdate,
		Seq:       chunk.Seq,
		Text:      chunk.TranslatedText,
		Language:  norm,
		State:     chunk.State,
		Timestamp: chunk.Start,
	})
	c.window.Add(translate.ContextEntry{
		Source:         chunk.DedupedText,
		Translated:     chunk.TranslatedText,
		SourceLanguage: norm,
		TargetLanguage: c.cfg.TargetLanguage,
		Timestamp:      time.Now(),
	})

	// Synthesize and play, ordered per device by the queue.
	submitted := time.Now()
	_, err = c.queue.Enqueue(ctx, synth.Job{
		Text:           chunk.TranslatedText,
		VoiceID:        c.cfg.VoiceID,
		ModelID:        c.cfg.ModelID,
		SourceText:     chunk.DedupedText,
		SourceLanguage: norm,
		DeviceID:       c.cfg.OutputDevice,
		OnComplete: func(jobID string, jobErr error) {
			c.met.PlaybackDuration.Record(ctx, time.Since(submitted).Seconds())
			if jobErr != nil {
				c.fail(ctx, chunk, fmt.Errorf("synthesize: %w", jobErr))
				return
			}
			c.finish(ctx, chunk, types.StateDone, "")
		},
	})
	if err != nil {
		adm.Abort()
		c.fail(ctx, chunk, fmt.Errorf("enqueue synthesis: %w", err))
		return
	}
	chunk.State = types.StateQueued
	adm.Succeed(chunk.TranslatedText)
}

// finish moves a chunk to a terminal state and records it.
func (c *Controller) finish(ctx context.Context, chunk *types.Chunk, state types.ChunkState, reason string) {
	chunk.State = state
	c.met.RecordChunkFinished(ctx, state.String())
	if reason != "" {
		c.log.Debug("chunk finished",
			slog.Uint64("seq", chunk.Seq),
			slog.String("state", state.String()),
			slog.String("reason", reason),
		)
	}
}

// fail marks a chunk errored and surfaces it without terminating the session.
func (c *Controller) fail(ctx context.Context, chunk *types.Chunk, err error) {
	chunk.State = types.StateError
	c.met.RecordChunkFinished(ctx, types.StateError.String())
	if errors.Is(err, context.Canceled) {
		return
	}
	c.log.Warn("chunk failed", slog.Uint64("seq", chunk.Seq), slog.String("error", err.Error()))
	c.emit(Event{Type: EventSessionError, Seq: chunk.Seq, Err: err, State: types.StateError})
}

// onPause is the segmenter's pause hook: a sustained silence makes the dedup
// and context state stale. Calibration is deliberately kept.
func (c *Controller) onPause(gap time.Duration) {
	c.deduper.Clear()
	c.window.Clear()
	c.log.Debug("pause detected, dedup and context cleared", slog.Duration("gap", gap))
}

// onQueueEvent forwards synthesis queue events to the session event stream.
func (c *Controller) onQueueEvent(ev synth.Event) {
	switch ev.Type {
	case synth.EventProgress:
		c.emit(Event{
			Type:   EventTTSProgress,
			JobID:  ev.JobID,
			Reason: ev.Status.String(),
		})
	case synth.EventComplete:
		c.emit(Event{
			Type:   EventTTSComplete,
			JobID:  ev.JobID,
			Reason: ev.Status.String(),
			Err:    ev.Err,
		})
	}
}

// emit sends an event without blocking; when the consumer falls behind the
// event is dropped.
func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}
