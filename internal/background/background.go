// Package background implements the incremental background indexer: it
// receives change notifications, decides what actually needs reprocessing
// using persisted digests, schedules load and index tasks at appropriate
// priorities, and applies results back to the live index and shard storage.
package background

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sourcescope/sourcescope/internal/compiledb"
	"github.com/sourcescope/sourcescope/internal/index"
	"github.com/sourcescope/sourcescope/internal/queue"
	"github.com/sourcescope/sourcescope/internal/rebuild"
	"github.com/sourcescope/sourcescope/internal/shardstore"
	"github.com/sourcescope/sourcescope/internal/vfs"
	"github.com/sourcescope/sourcescope/pkg/types"
)

// Queue priorities, from lowest to highest. Loading persisted shards is
// cheap and resolves most files without reparsing, so it always outranks the
// expensive index tasks: under bursty invalidation the index stays mostly
// fresh instead of committing workers to reparses the cache could answer.
const (
	priIndexFile = iota
	priLoadShards
)

// shardVersion is the registry's record of one file's last reconciled state.
type shardVersion struct {
	digest    types.FileDigest
	hadErrors bool
}

// Source is the per-file classification produced by shard loading.
type Source struct {
	Path            string
	NeedsReIndexing bool
}

// Options configures the background indexer.
type Options struct {
	// Workers is the worker pool size. Defaults to runtime.NumCPU():
	// indexing is CPU- and I/O-heavy, so the pool is sized for heavyweight
	// tasks rather than request concurrency.
	Workers int

	// RebuildPeriod batches snapshot rebuilds; 0 rebuilds on every update.
	RebuildPeriod time.Duration

	// Logger for diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Index is the background indexer. It owns the shard-version registry and
// mediates every write to the live index and to shard storage; collaborators
// are reached only through the interfaces passed to New.
type Index struct {
	log        *slog.Logger
	fs         vfs.FS
	commands   compiledb.CommandProvider
	parse      types.ParseFunc
	storageFor shardstore.Factory

	queue   *queue.Queue
	workers sync.WaitGroup

	// The registry. Guarded by its own lock, distinct from the queue's,
	// so reconciliation never contends with scheduling.
	versionsMu sync.Mutex
	versions   map[string]shardVersion

	symbols   *index.FileSymbols
	published *index.SwapIndex
	rebuilder *rebuild.Rebuilder
}

// New creates a background indexer and starts its worker pool. The pool
// drains one shared priority queue; all indexing happens on those workers.
func New(fsys vfs.FS, commands compiledb.CommandProvider, parse types.ParseFunc,
	storageFor shardstore.Factory, opts Options) *Index {

	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	symbols := index.NewFileSymbols()
	published := index.NewSwapIndex()

	idx := &Index{
		log:        opts.Logger,
		fs:         fsys,
		commands:   commands,
		parse:      parse,
		storageFor: storageFor,
		queue:      queue.New(),
		versions:   make(map[string]shardVersion),
		symbols:    symbols,
		published:  published,
		rebuilder:  rebuild.New(symbols, published, opts.RebuildPeriod, opts.Logger),
	}

	idx.workers.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go func() {
			defer idx.workers.Done()
			idx.queue.Work(idx.rebuilder.Idle)
		}()
	}
	return idx
}

// Snapshot returns the currently published index snapshot. Reads are
// lock-free and always observe a complete, consistent state.
func (idx *Index) Snapshot() *index.Snapshot {
	return idx.published.Current()
}

// Enqueue schedules the changed files for background reconciliation.
// Asynchronous and fire-and-forget; symbols become visible in a later
// snapshot.
func (idx *Index) Enqueue(changedFiles []string) {
	idx.queue.Push(idx.changedFilesTask(changedFiles))
}

// Stop requests an asynchronous wind-down: scheduled rebuilds halt after a
// final one, in-flight tasks finish, queued-but-unstarted tasks are dropped.
func (idx *Index) Stop() {
	idx.rebuilder.Shutdown()
	idx.queue.Stop()
}

// Close stops the indexer and blocks until every worker has returned.
func (idx *Index) Close() {
	idx.Stop()
	idx.workers.Wait()
}

// Drain blocks until all announced work, including follow-up index tasks,
// has been processed. Intended for batch runs; watch-mode callers shut down
// through Stop or Close instead.
func (idx *Index) Drain() {
	idx.queue.Drain()
}

// BlockUntilIdleForTest waits until the queue is empty with no running
// tasks, or the timeout elapses. Deterministic-testing hook only.
func (idx *Index) BlockUntilIdleForTest(timeout time.Duration) bool {
	return idx.queue.BlockUntilIdleForTest(timeout)
}

// changedFilesTask loads persisted shards for the changed files and
// schedules index tasks for the translation units that are stale.
func (idx *Index) changedFilesTask(changedFiles []string) queue.Task {
	return queue.Task{
		QueuePri:  priLoadShards,
		ThreadPri: queue.ThreadNormal,
		Run: func() {
			var tasks []queue.Task
			for _, need := range idx.loadShards(changedFiles) {
				tasks = append(tasks, idx.indexFileTask(need.cmd, need.storage))
			}
			idx.queue.Append(tasks)
		},
	}
}

// indexFileTask runs the external parse action for one translation unit at
// background thread priority.
func (idx *Index) indexFileTask(cmd types.BuildCommand, storage shardstore.Store) queue.Task {
	return queue.Task{
		QueuePri:  priIndexFile,
		ThreadPri: queue.ThreadBackground,
		Run: func() {
			if err := idx.indexTU(cmd, storage); err != nil {
				// One failing unit never takes down the pool; the file
				// stays stale until a later change retries it.
				idx.log.Warn("indexing failed", "file", cmd.Filename, "error", err)
			}
		},
	}
}

// needsIndexing pairs a stale translation unit with the storage its shards
// belong to.
type needsIndexing struct {
	cmd     types.BuildCommand
	storage shardstore.Store
}

// loadShards resolves each changed path's owning build command, groups paths
// by command so each dependency closure is processed once, and loads the
// persisted shards for every closure. It returns one entry per command whose
// closure still needs indexing; commands whose full closure is current are
// resolved entirely from storage.
func (idx *Index) loadShards(changedFiles []string) []needsIndexing {
	// Group by owning command; several changed headers often map to one
	// translation unit.
	cmds := make(map[string]needsIndexing)
	for _, path := range changedFiles {
		cmd, ok := idx.commands.GetCommand(path)
		if !ok {
			idx.log.Debug("no build command, skipping", "file", path)
			continue
		}
		if _, seen := cmds[cmd.Filename]; seen {
			continue
		}
		cmds[cmd.Filename] = needsIndexing{cmd: cmd, storage: idx.storageFor(cmd.Directory)}
	}

	// Closures overlap (shared headers); load each dependency once per
	// batch.
	loaded := make(map[string]bool)

	var stale []needsIndexing
	for _, entry := range sortedByMainFile(cmds) {
		reindex := false
		for _, src := range idx.loadShard(entry.cmd, entry.storage, loaded) {
			if src.NeedsReIndexing {
				reindex = true
			}
		}
		if reindex {
			stale = append(stale, entry)
		}
	}
	return stale
}

// sortedByMainFile returns the map's values in deterministic order.
func sortedByMainFile(cmds map[string]needsIndexing) []needsIndexing {
	keys := make([]string, 0, len(cmds))
	for k := range cmds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]needsIndexing, 0, len(keys))
	for _, k := range keys {
		out = append(out, cmds[k])
	}
	return out
}

// loadShard loads the persisted shards for one translation unit and its
// dependency closure, classifying every dependency. A dependency needs
// re-indexing when no shard exists for it, the persisted digest mismatches
// the file's current on-disk digest, or the persisted shard recorded errors
// (a clean rerun is preferred over stale-but-suspect data). Dependencies
// that are current are merged straight into the live index, skipping the
// parse entirely.
func (idx *Index) loadShard(cmd types.BuildCommand, storage shardstore.Store,
	loadedShards map[string]bool) []Source {

	mainShard, err := storage.LoadShard(cmd.Filename)
	if err != nil {
		// Nothing persisted for this unit at all.
		return []Source{{Path: cmd.Filename, NeedsReIndexing: true}}
	}

	closure := mainShard.Deps
	if len(closure) == 0 {
		closure = []string{cmd.Filename}
	}

	var sources []Source
	for _, dep := range closure {
		if loadedShards[dep] {
			continue
		}
		loadedShards[dep] = true

		var shard *types.IndexShard
		if dep == cmd.Filename {
			shard = mainShard
		} else if shard, err = storage.LoadShard(dep); err != nil {
			sources = append(sources, Source{Path: dep, NeedsReIndexing: true})
			continue
		}

		current, err := vfs.Digest(idx.fs, dep)
		if err != nil {
			// Unreadable on disk; let the parse action sort it out.
			sources = append(sources, Source{Path: dep, NeedsReIndexing: true})
			continue
		}
		persisted, ok := types.DigestFromHex(shard.Digest)
		if !ok || persisted != current || shard.HadErrors {
			sources = append(sources, Source{Path: dep, NeedsReIndexing: true})
			continue
		}

		// Up to date: reuse the persisted result without recompute.
		idx.symbols.Update(dep, shard.Symbols)
		idx.versionsMu.Lock()
		idx.versions[dep] = shardVersion{digest: persisted, hadErrors: shard.HadErrors}
		idx.versionsMu.Unlock()
		idx.rebuilder.NotifyFileIndexed()

		sources = append(sources, Source{Path: dep, NeedsReIndexing: false})
	}
	return sources
}

// indexTU invokes the external parse action for one translation unit and
// reconciles its results.
func (idx *Index) indexTU(cmd types.BuildCommand, storage shardstore.Store) error {
	// Snapshot the registry before the (slow) parse: reconciliation must
	// compare against the state the parse raced from, not whatever a
	// concurrently completing unit wrote meanwhile.
	registrySnapshot := idx.snapshotVersions()

	result, err := idx.parse(cmd)
	if err != nil {
		return fmt.Errorf("parse %s: %w", cmd.Filename, err)
	}
	idx.update(cmd.Filename, result, registrySnapshot, storage, result.HadErrors)
	return nil
}

// snapshotVersions copies the registry under its lock.
func (idx *Index) snapshotVersions() map[string]shardVersion {
	idx.versionsMu.Lock()
	defer idx.versionsMu.Unlock()
	snap := make(map[string]shardVersion, len(idx.versions))
	for k, v := range idx.versions {
		snap[k] = v
	}
	return snap
}

// update reconciles one translation unit's results against the registry:
// only files whose freshly computed digest differs from their registered
// version are persisted and merged. Two units racing to index a shared
// header are therefore safe in either order: whichever reconciles with a
// still-matching digest is a no-op, and only a genuine content change
// forces a rewrite.
func (idx *Index) update(mainFile string, result *types.ParseResult,
	registrySnapshot map[string]shardVersion, storage shardstore.Store, hadErrors bool) {

	for path, shard := range result.Shards {
		digest, err := vfs.Digest(idx.fs, path)
		if err != nil {
			idx.log.Debug("file vanished during indexing", "file", path, "error", err)
			continue
		}

		// Cheap pre-check against the snapshot taken before the parse.
		if v, ok := registrySnapshot[path]; ok && skipUpdate(v, digest, hadErrors) {
			continue
		}

		// Authoritative check-and-replace under the registry lock. The
		// entry is replaced only here, and only whole.
		idx.versionsMu.Lock()
		if v, ok := idx.versions[path]; ok && skipUpdate(v, digest, hadErrors) {
			idx.versionsMu.Unlock()
			continue
		}
		idx.versions[path] = shardVersion{digest: digest, hadErrors: hadErrors}
		idx.versionsMu.Unlock()

		shard.Path = path
		shard.Digest = digest.Hex()
		shard.HadErrors = hadErrors
		if path == mainFile {
			shard.Deps = closureOf(result)
		}

		// Storage failures degrade gracefully: the next run redoes the
		// file.
		if err := storage.StoreShard(path, shard); err != nil {
			idx.log.Warn("failed to persist shard", "file", path, "error", err)
		}

		idx.symbols.Update(path, shard.Symbols)
		idx.rebuilder.NotifyFileIndexed()
	}
}

// skipUpdate reports whether a registered version already covers the new
// digest. An entry that recorded errors never suppresses a clean result for
// the same content; the clean rerun wins.
func skipUpdate(v shardVersion, digest types.FileDigest, hadErrors bool) bool {
	return v.digest == digest && !(v.hadErrors && !hadErrors)
}

// closureOf returns the sorted dependency closure recorded in a parse
// result.
func closureOf(result *types.ParseResult) []string {
	deps := make([]string, 0, len(result.Shards))
	for path := range result.Shards {
		deps = append(deps, path)
	}
	sort.Strings(deps)
	return deps
}
