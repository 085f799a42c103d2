// Package dedup removes the duplicated boundary words that chunk overlap
// introduces: each chunk repeats the last ~200 ms of its predecessor's audio,
// so consecutive transcriptions share a word or two at the seam.
//
// The comparison state is sequence-guarded: the stored "previous
// transcription" is only overwritten by the highest sequence number seen so
// far, so a slow chunk completing late cannot clobber newer state. The stored
// value is always the ORIGINAL (pre-dedup) text, because the raw audio
// overlap contains the original words.
package dedup

import (
	"strings"
	"sync"
	"unicode"
)

// Deduplicator holds the sequence-guarded previous-transcription state for
// one session. Safe for concurrent use.
type Deduplicator struct {
	mu      sync.Mutex
	prev    []string // words of the previous original transcription
	prevSeq uint64
	has     bool
}

// New creates an empty Deduplicator.
func New() *Deduplicator {
	return &Deduplicator{}
}

// Apply strips the overlap-duplicated leading words from text and records
// text (un-stripped) as the new previous transcription if seq is the highest
// seen so far. Chunks completing out of order still dedup against whatever
// previous state is stored, they just cannot overwrite newer state.
func (d *Deduplicator) Apply(seq uint64, text string) string {
	words := strings.Fields(text)

	d.mu.Lock()
	defer d.mu.Unlock()

	out := text
	if d.has {
		if n := overlapLen(d.prev, words); n > 0 {
			out = strings.Join(words[n:], " ")
		}
	}
	if !d.has || seq > d.prevSeq {
		d.prev = words
		d.prevSeq = seq
		d.has = true
	}
	return out
}

// Clear resets the comparison state, including the sequence guard. Invoked on
// session stop and on a sustained pause.
func (d *Deduplicator) Clear() {
	d.mu.Lock()
	d.prev = nil
	d.prevSeq = 0
	d.has = false
	d.mu.Unlock()
}

// overlapLen returns the length of the longest suffix of prev that equals a
// prefix of cur, comparing words case-insensitively with surrounding
// punctuation ignored. The ~200 ms audio overlap rarely spans more than a
// couple of words, but the scan covers every feasible length.
func overlapLen(prev, cur []string) int {
	max := len(prev)
	if len(cur) < max {
		max = len(cur)
	}
	for n := max; n > 0; n-- {
		if wordsEqual(prev[len(prev)-n:], cur[:n]) {
			return n
		}
	}
	return 0
}

func wordsEqual(a, b []string) bool {
	for i := range a {
		if normalizeWord(a[i]) != normalizeWord(b[i]) {
			return false
		}
	}
	return true
}

// normalizeWord lowercases and strips leading/trailing punctuation so
// "Hello," matches "hello".
func normalizeWord(w string) string {
	w = strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.ToLower(w)
}
