// Package watch turns raw filesystem events into debounced change batches
// for the background indexer. Editors and build tools produce storms of
// writes; the watcher coalesces them so the indexer sees one notification
// per burst.
package watch

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Handler receives a batch of changed file paths after the debounce window
// closes. Called from the watcher's goroutine; it must not block for long.
type Handler func(changed []string)

// Watcher watches a directory tree recursively and delivers debounced
// change batches.
type Watcher struct {
	root     string
	debounce time.Duration
	handler  Handler
	log      *slog.Logger

	fsw      *fsnotify.Watcher
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// New starts watching root and all its non-hidden subdirectories. Events are
// coalesced for the debounce duration (0 means a default of 500ms) before
// handler is invoked with the batch.
func New(root string, debounce time.Duration, handler Handler, log *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		handler:  handler,
		log:      log,
		fsw:      fsw,
		done:     make(chan struct{}),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Stop shuts the watcher down. Pending batches are dropped. Safe to call
// more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fsw.Close()
	})
	w.wg.Wait()
}

// addRecursive registers root and every non-hidden directory beneath it.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (w *Watcher) run() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time
	pending := make(map[string]bool)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		batch := make([]string, 0, len(pending))
		for p := range pending {
			batch = append(batch, p)
		}
		pending = make(map[string]bool)
		w.log.Debug("flushing change batch", "files", len(batch))
		w.handler(batch)
	}

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if hidden(filepath.Base(ev.Name)) {
				continue
			}
			// New directories must be registered before their contents
			// generate events.
			if ev.Op.Has(fsnotify.Create) {
				if err := w.addRecursive(ev.Name); err != nil {
					// Created-then-removed races and plain files both
					// land here; neither is actionable.
					w.log.Debug("watch add failed", "path", ev.Name, "error", err)
				}
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) ||
				ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
				pending[ev.Name] = true
				if timer == nil {
					timer = time.NewTimer(w.debounce)
					timerC = timer.C
				} else {
					if !timer.Stop() {
						select {
						case <-timerC:
						default:
						}
					}
					timer.Reset(w.debounce)
				}
			}

		case <-timerC:
			flush()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}
