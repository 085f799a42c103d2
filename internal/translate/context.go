// Package translate holds the session-side translation logic around the
// provider contract: the rolling context window that biases successive
// translations toward coherent terminology, and language normalization for
// the same-language short-circuit.
package translate

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultContextCapacity is the number of prior translation pairs kept.
	DefaultContextCapacity = 3

	// DefaultTokenBudget caps the approximate token count of the rendered
	// context string. Oldest entries are evicted first when over budget.
	DefaultTokenBudget = 60
)

// ContextEntry is one prior translation pair.
type ContextEntry struct {
	Source         string
	Translated     string
	SourceLanguage string
	TargetLanguage string
	Timestamp      time.Time
}

// ContextManager is the bounded rolling window of prior translations. Safe
// for concurrent use.
type ContextManager struct {
	mu          sync.Mutex
	enabled     bool
	capacity    int
	tokenBudget int
	entries     []ContextEntry
}

// NewContextManager creates a ContextManager. Zero capacity or budget select
// the package defaults.
func NewContextManager(enabled bool, capacity, tokenBudget int) *ContextManager {
	if capacity <= 0 {
		capacity = DefaultContextCapacity
	}
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	return &ContextManager{
		enabled:     enabled,
		capacity:    capacity,
		tokenBudget: tokenBudget,
	}
}

// Add appends a successfully translated pair, evicting the oldest entries
// beyond the capacity or token budget. No-op when disabled.
func (m *ContextManager) Add(entry ContextEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled {
		return
	}

	m.entries = append(m.entries, entry)
	if len(m.entries) > m.capacity {
		m.entries = m.entries[len(m.entries)-m.capacity:]
	}
	for len(m.entries) > 1 && m.tokens() > m.tokenBudget {
		m.entries = m.entries[1:]
	}
}

// ContextString renders the window as a compact biasing hint for the next
// translation call. Empty when disabled or empty.
func (m *ContextManager) ContextString() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled || len(m.entries) == 0 {
		return ""
	}

	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%q -> %q", e.Source, e.Translated)
	}
	return b.String()
}

// Len returns the number of entries currently held.
func (m *ContextManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Clear empties the window. Invoked on session stop, on a sustained pause,
// and on a detected source-language change.
func (m *ContextManager) Clear() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}

// tokens approximates the rendered context size in tokens. Whitespace-split
// words are close enough for a budget check.
func (m *ContextManager) tokens() int {
	n := 0
	for _, e := range m.entries {
		n += len(strings.Fields(e.Source)) + len(strings.Fields(e.Translated))
	}
	return n
}
