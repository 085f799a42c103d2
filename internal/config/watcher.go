package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Reload carries one applied configuration change.
type Reload struct {
	Old *Config
	New *Config
}

// snapshot is the last known state of the config file, used to decide whether
// a poll observed a real content change.
type snapshot struct {
	cfg   *Config
	sum   [sha256.Size]byte
	mtime time.Time
}

// Watcher polls a config file and publishes validated changes on a channel.
// Polling keeps the dependency surface small; a few seconds of reload latency
// is irrelevant next to a human editing a YAML file. An edit that fails
// validation is logged and ignored, the previous config stays in effect.
type Watcher struct {
	path     string
	interval time.Duration
	log      *slog.Logger

	reloads  chan Reload
	done     chan struct{}
	stopOnce sync.Once

	mu   sync.Mutex
	snap snapshot
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path and starts polling it in a background
// goroutine. Changes are published via [Watcher.Reloads].
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		log:      slog.Default(),
		reloads:  make(chan Reload, 4),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := readSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.snap = snap

	go w.poll()
	return w, nil
}

// Reloads returns the channel on which config changes are delivered. Slow
// consumers lose intermediate reloads, never the watcher itself.
func (w *Watcher) Reloads() <-chan Reload {
	return w.reloads
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap.cfg
}

// Stop ends the polling goroutine. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if r, ok := w.check(); ok {
				w.publish(r)
			}
		}
	}
}

// check re-reads the file when its mtime moved and reports a Reload when the
// content actually changed and parsed cleanly.
func (w *Watcher) check() (Reload, bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		w.log.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return Reload{}, false
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.snap.mtime)
	w.mu.Unlock()
	if unchanged {
		return Reload{}, false
	}

	snap, err := readSnapshot(w.path)
	if err != nil {
		w.log.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return Reload{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if snap.sum == w.snap.sum {
		// Touched but identical content.
		w.snap.mtime = snap.mtime
		return Reload{}, false
	}
	r := Reload{Old: w.snap.cfg, New: snap.cfg}
	w.snap = snap
	w.log.Info("config watcher: configuration reloaded", "path", w.path)
	return r, true
}

func (w *Watcher) publish(r Reload) {
	select {
	case w.reloads <- r:
	default:
		w.log.Warn("config watcher: reload dropped, consumer too slow")
	}
}

// readSnapshot reads, hashes, and validates the config file in one pass.
func readSnapshot(path string) (snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{cfg: cfg, sum: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
