package guard

import (
	"testing"
	"time"

	"github.com/livedub/livedub/pkg/types"
)

// fakeClock is an advanceable clock for cooldown tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestGuard() (*Guard, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)}
	return New(Config{Now: clock.now}), clock
}

func TestAdmitRejectsShortText(t *testing.T) {
	g, _ := newTestGuard()

	adm, v := g.Admit("hey")
	if adm != nil || v.Allow {
		t.Fatal("short text was admitted")
	}
	if v.State != types.StateSkippedCooldown {
		t.Errorf("State = %v, want %v", v.State, types.StateSkippedCooldown)
	}
}

func TestAdmitCooldown(t *testing.T) {
	g, clock := newTestGuard()

	adm, v := g.Admit("first utterance of the stream")
	if !v.Allow {
		t.Fatalf("first admission denied: %s", v.Reason)
	}
	adm.Succeed("translated first utterance")

	// Within the cooldown window everything is dropped.
	clock.advance(3 * time.Second)
	if _, v := g.Admit("a different second utterance"); v.Allow {
		t.Fatal("admission allowed during cooldown")
	} else if v.State != types.StateSkippedCooldown {
		t.Errorf("State = %v, want %v", v.State, types.StateSkippedCooldown)
	}

	// After the cooldown elapses, new text passes.
	clock.advance(8 * time.Second)
	adm, v = g.Admit("a different second utterance")
	if !v.Allow {
		t.Fatalf("admission denied after cooldown: %s", v.Reason)
	}
	adm.Abort()
}

func TestAbortDoesNotStartCooldown(t *testing.T) {
	g, _ := newTestGuard()

	adm, v := g.Admit("the translation that will fail")
	if !v.Allow {
		t.Fatalf("admission denied: %s", v.Reason)
	}
	adm.Abort()

	// No success was recorded, so the next chunk is not throttled.
	if _, v := g.Admit("and the very next utterance"); !v.Allow {
		t.Fatalf("admission denied after abort: %s", v.Reason)
	}
}

func TestAdmitSingleFlight(t *testing.T) {
	g, _ := newTestGuard()

	adm, v := g.Admit("chunk currently being translated")
	if !v.Allow {
		t.Fatalf("admission denied: %s", v.Reason)
	}

	if _, v := g.Admit("chunk arriving while busy"); v.Allow {
		t.Fatal("second admission allowed while first is in flight")
	} else if v.Reason != "translation already in flight" {
		t.Errorf("Reason = %q", v.Reason)
	}

	adm.Abort()
	if _, v := g.Admit("chunk arriving after release"); !v.Allow {
		t.Fatalf("admission denied after release: %s", v.Reason)
	}
}

func TestAdmitRejectsIdenticalPreviousInput(t *testing.T) {
	g, _ := newTestGuard()

	adm, _ := g.Admit("restart the staging cluster")
	adm.Abort()

	// Same words, different casing and punctuation.
	if _, v := g.Admit("Restart the staging cluster!"); v.Allow {
		t.Fatal("identical input admitted twice")
	} else if v.State != types.StateSkippedFeedback {
		t.Errorf("State = %v, want %v", v.State, types.StateSkippedFeedback)
	}
}

func TestAdmitRecentCache(t *testing.T) {
	g, clock := newTestGuard()

	inputs := []string{
		"first distinct utterance",
		"second distinct utterance",
		"third distinct utterance",
	}
	for _, in := range inputs {
		adm, v := g.Admit(in)
		if !v.Allow {
			t.Fatalf("Admit(%q) denied: %s", in, v.Reason)
		}
		adm.Abort()
		clock.advance(time.Second)
	}

	// Not the immediately previous input, but still in the recent cache.
	if _, v := g.Admit("first distinct utterance"); v.Allow {
		t.Fatal("cached transcription admitted again")
	} else if v.Reason != "present in recent cache" {
		t.Errorf("Reason = %q", v.Reason)
	}
}

func TestAdmitRejectsSelfEcho(t *testing.T) {
	g, clock := newTestGuard()

	adm, v := g.Admit("wie geht es dir heute morgen")
	if !v.Allow {
		t.Fatalf("admission denied: %s", v.Reason)
	}
	adm.Succeed("how are you this morning")
	clock.advance(DefaultCooldown + time.Second)

	tests := []struct {
		name string
		in   string
	}{
		{"exact echo", "how are you this morning"},
		{"echo with trailing words", "how are you this morning everyone"},
		{"near-miss echo", "how are you this mornin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, v := g.Admit(tt.in); v.Allow {
				t.Fatalf("self-echo %q admitted", tt.in)
			} else if v.State != types.StateSkippedFeedback {
				t.Errorf("State = %v, want %v", v.State, types.StateSkippedFeedback)
			}
		})
	}

	// Genuinely new speech still passes.
	if _, v := g.Admit("the weather looks great today"); !v.Allow {
		t.Fatalf("new speech denied: %s", v.Reason)
	}
}

func TestSucceedIsIdempotent(t *testing.T) {
	g, _ := newTestGuard()

	adm, _ := g.Admit("only finished once despite two calls")
	adm.Succeed("output text")
	adm.Abort() // second finish is a no-op

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.hasSuccess {
		t.Error("second finish erased the recorded success")
	}
	if g.inFlight {
		t.Error("inFlight still set after finish")
	}
}

func TestResetClearsState(t *testing.T) {
	g, _ := newTestGuard()

	adm, _ := g.Admit("some state to clear away")
	adm.Succeed("cleared output")
	g.Reset()

	// Cooldown, previous-input, and cache checks all start fresh.
	if _, v := g.Admit("some state to clear away"); !v.Allow {
		t.Fatalf("admission denied after Reset: %s", v.Reason)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello world"},
		{"  spaced   out  ", "spaced out"},
		{"\"quoted\"", "quoted"},
		{"Ümläute bleiben", "ümläute bleiben"},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
