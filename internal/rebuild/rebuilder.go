// Package rebuild batches per-file index updates into periodic atomic
// rebuilds of the published snapshot.
//
// Rebuilding the snapshot's derived lookup structures after every single
// file is wasteful during bursts (initial indexing of a whole project, a
// branch switch). The rebuilder amortizes that cost: with a period
// configured, at most one rebuild happens per period while updates keep
// arriving, bounding staleness without paying the rebuild cost per file.
package rebuild

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sourcescope/sourcescope/internal/index"
)

// Rebuilder coordinates snapshot rebuilds between indexing workers and the
// published index. Safe for concurrent use.
type Rebuilder struct {
	source *index.FileSymbols
	target *index.SwapIndex
	period time.Duration
	log    *slog.Logger

	mu       sync.Mutex
	pending  int // updates since the last rebuild
	version  uint64
	shutdown bool

	// publishMu serializes build-and-swap so snapshots publish in version
	// order; an earlier-built snapshot can never overwrite a later one.
	publishMu sync.Mutex

	done chan struct{}  // closes the ticker loop
	wg   sync.WaitGroup // ticker loop lifetime
}

// New creates a Rebuilder publishing from source into target.
//
// With period == 0 every update triggers an immediate rebuild. With a
// positive period, rebuilds happen at most once per period (plus once at
// shutdown and once whenever the queue reports idle).
func New(source *index.FileSymbols, target *index.SwapIndex, period time.Duration, log *slog.Logger) *Rebuilder {
	if log == nil {
		log = slog.Default()
	}
	r := &Rebuilder{
		source: source,
		target: target,
		period: period,
		log:    log,
		done:   make(chan struct{}),
	}
	if period > 0 {
		r.wg.Add(1)
		go r.loop()
	}
	return r
}

// NotifyFileIndexed records one completed per-file update and, when running
// without a period, rebuilds immediately.
func (r *Rebuilder) NotifyFileIndexed() {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return
	}
	r.pending++
	immediate := r.period == 0
	r.mu.Unlock()

	if immediate {
		r.rebuild()
	}
}

// Idle forces a rebuild if updates are pending. The background queue calls
// this when it drains, so a finished burst becomes visible without waiting
// out the rest of the period.
func (r *Rebuilder) Idle() {
	r.mu.Lock()
	pending := r.pending > 0 && !r.shutdown
	r.mu.Unlock()

	if pending {
		r.rebuild()
	}
}

// Shutdown halts scheduled rebuilds and performs one final rebuild covering
// pending updates, so no update is silently dropped. Idempotent.
func (r *Rebuilder) Shutdown() {
	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return
	}
	r.shutdown = true
	pending := r.pending > 0
	r.mu.Unlock()

	close(r.done)
	r.wg.Wait()

	if pending {
		r.rebuild()
	}
}

// loop is the periodic rebuild ticker.
func (r *Rebuilder) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			pending := r.pending > 0
			r.mu.Unlock()
			if pending {
				r.rebuild()
			}
		case <-r.done:
			return
		}
	}
}

// rebuild builds a fresh snapshot and atomically publishes it. The version
// is assigned inside the publish critical section, so concurrent callers
// (queue idle racing the ticker or the shutdown rebuild) swap in strictly
// increasing version order and later updates are never overwritten by a
// snapshot built before them.
func (r *Rebuilder) rebuild() {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	r.mu.Lock()
	r.pending = 0
	r.version++
	version := r.version
	r.mu.Unlock()

	start := time.Now()
	snap := r.source.Build(version)
	r.target.Swap(snap)
	r.log.Debug("index rebuilt",
		"version", version,
		"files", snap.FileCount(),
		"symbols", snap.SymbolCount(),
		"took", time.Since(start))
}
