// Package guard suppresses feedback loops: synthesized output re-captured by
// the same system-audio tap would otherwise be translated again, compounding
// into runaway self-translation.
//
// Admission applies a fixed rule order, each rule short-circuiting to a
// skipped terminal state. Suspect input is dropped, never queued: under
// sustained audio a queue would grow without bound and replay the echo later.
package guard

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/livedub/livedub/pkg/types"
)

const (
	// DefaultMinLength is the minimum admitted text length in characters.
	// Shorter fragments are treated as noise.
	DefaultMinLength = 5

	// DefaultCooldown is the minimum gap after a successful translation
	// before the next one is admitted.
	DefaultCooldown = 10 * time.Second

	// recentSize is the capacity of the recent-transcription cache.
	recentSize = 5

	// similarityThreshold is the Jaro-Winkler score above which input is
	// treated as a fuzzy match of the last synthesized output.
	similarityThreshold = 0.90
)

// Config holds the guard tuning parameters. Zero values select the package
// defaults.
type Config struct {
	MinLength int
	Cooldown  time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Verdict is the outcome of an admission check.
type Verdict struct {
	// Allow reports whether the text may enter the translate→synthesize
	// critical section.
	Allow bool

	// State is the terminal chunk state for a denied verdict.
	State types.ChunkState

	// Reason describes the denial for logging. Empty when Allow is true.
	Reason string
}

// Guard holds the per-session feedback-suppression state. Safe for concurrent
// use.
type Guard struct {
	cfg Config
	now func() time.Time

	mu          sync.Mutex
	inFlight    bool
	lastSuccess time.Time
	hasSuccess  bool
	lastInput   string
	lastOutput  string
	recent      []string
}

// New creates a Guard.
func New(cfg Config) *Guard {
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinLength
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Guard{cfg: cfg, now: now}
}

// Admit applies the rule chain to text. On an allowed verdict the returned
// Admission holds the single-flight lock; the caller MUST finish it with
// Succeed or Abort. On a denied verdict the Admission is nil.
func (g *Guard) Admit(text string) (*Admission, Verdict) {
	trimmed := strings.TrimSpace(text)

	g.mu.Lock()
	defer g.mu.Unlock()

	// 1. Length floor.
	if len([]rune(trimmed)) < g.cfg.MinLength {
		return nil, Verdict{State: types.StateSkippedCooldown, Reason: "text below minimum length"}
	}

	// 2. Global cooldown since the last successful translation.
	if g.hasSuccess {
		if since := g.now().Sub(g.lastSuccess); since < g.cfg.Cooldown {
			return nil, Verdict{State: types.StateSkippedCooldown, Reason: "cooldown active"}
		}
	}

	// 3. Single-flight: one chunk at a time in translate→synthesize; the rest
	// are dropped to bound latency growth.
	if g.inFlight {
		return nil, Verdict{State: types.StateSkippedCooldown, Reason: "translation already in flight"}
	}

	norm := normalize(trimmed)

	// 4. Identical to the immediately previous input.
	if g.lastInput != "" && norm == g.lastInput {
		return nil, Verdict{State: types.StateSkippedFeedback, Reason: "identical to previous input"}
	}

	// 5. Present in the recent-transcription cache.
	for _, r := range g.recent {
		if norm == r {
			return nil, Verdict{State: types.StateSkippedFeedback, Reason: "present in recent cache"}
		}
	}

	// 6. Fuzzy self-match against the last synthesized output.
	if g.lastOutput != "" && isSelfEcho(norm, g.lastOutput) {
		return nil, Verdict{State: types.StateSkippedFeedback, Reason: "matches last synthesized output"}
	}

	g.inFlight = true
	g.lastInput = norm
	g.recent = append(g.recent, norm)
	if len(g.recent) > recentSize {
		g.recent = g.recent[len(g.recent)-recentSize:]
	}
	return &Admission{g: g}, Verdict{Allow: true}
}

// Reset clears all guard state, including the cooldown timer. Invoked on
// session stop.
func (g *Guard) Reset() {
	g.mu.Lock()
	g.inFlight = false
	g.hasSuccess = false
	g.lastInput = ""
	g.lastOutput = ""
	g.recent = nil
	g.mu.Unlock()
}

// Admission is the held single-flight lock for one admitted chunk.
type Admission struct {
	g    *Guard
	done bool
}

// Succeed releases the lock and records the translated output for future
// self-echo matching, starting the cooldown.
func (a *Admission) Succeed(translatedOutput string) {
	a.finish(func(g *Guard) {
		g.lastOutput = normalize(translatedOutput)
		g.lastSuccess = g.now()
		g.hasSuccess = true
	})
}

// Abort releases the lock without recording a success; the cooldown does not
// restart.
func (a *Admission) Abort() {
	a.finish(nil)
}

func (a *Admission) finish(record func(*Guard)) {
	a.g.mu.Lock()
	defer a.g.mu.Unlock()
	if a.done {
		return
	}
	a.done = true
	a.g.inFlight = false
	if record != nil {
		record(a.g)
	}
}

// isSelfEcho reports whether normalized input matches the normalized last
// output: substring containment in either direction, or high string
// similarity for near-misses the transcriber introduced.
func isSelfEcho(input, lastOutput string) bool {
	if strings.Contains(input, lastOutput) || strings.Contains(lastOutput, input) {
		return true
	}
	return matchr.JaroWinkler(input, lastOutput, false) >= similarityThreshold
}

// normalize lowercases, strips quotes and punctuation, and collapses
// whitespace, so transcription artifacts do not defeat the comparison.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return b.String()
}
