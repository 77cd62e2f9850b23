package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/sourcescope/sourcescope/internal/background"
	"github.com/sourcescope/sourcescope/internal/compiledb"
	"github.com/sourcescope/sourcescope/internal/config"
	"github.com/sourcescope/sourcescope/internal/queue"
	"github.com/sourcescope/sourcescope/internal/scan"
	"github.com/sourcescope/sourcescope/internal/shardstore"
	"github.com/sourcescope/sourcescope/internal/vfs"
	"github.com/sourcescope/sourcescope/internal/watch"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var (
		root        = flag.String("root", ".", "project root to index")
		cfgPath     = flag.String("config", "sourcescope.yaml", "config file path")
		workers     = flag.Int("workers", 0, "worker pool size (0 = from config)")
		once        = flag.Bool("once", false, "index the tree once and exit")
		verbose     = flag.Bool("v", false, "debug logging")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("sourcescope %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", shardstore.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", shardstore.DriverName)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(*root, *cfgPath, *workers, *once, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(root, cfgPath string, workers int, once bool, log *slog.Logger) error {
	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if workers > 0 {
		cfg.Workers = workers
	}

	log.Info("starting", "version", version, "root", root,
		"workers", cfg.Workers, "storage", cfg.Storage)

	var factory shardstore.Factory
	switch cfg.Storage {
	case config.StorageSQLite:
		factory = shardstore.NewSQLiteBackedFactory(log)
	case config.StorageMemory:
		factory = shardstore.NewMemoryFactory()
	default:
		factory = shardstore.NewDiskBackedFactory(log)
	}

	var commands compiledb.CommandProvider
	if db, err := compiledb.LoadJSONDatabase(root); err == nil {
		log.Info("using compilation database", "entries", len(db.Files()))
		commands = db
	} else {
		log.Info("no compilation database, indexing by extension",
			"extensions", strings.Join(cfg.Extensions, " "))
		commands = &compiledb.FallbackProvider{Root: root, Extensions: cfg.Extensions}
	}

	// Standalone binary: indexing is the foreground work, don't nice it down.
	queue.PreventStarvation()

	fsys := vfs.OSFS{}
	idx := background.New(fsys, commands, scan.ParseFuncFor(fsys), factory, background.Options{
		Workers:       cfg.Workers,
		RebuildPeriod: cfg.RebuildPeriod,
		Logger:        log,
	})
	defer idx.Close()

	if err := enqueueTree(idx, root, cfg.Extensions); err != nil {
		return err
	}

	if once {
		idx.Drain()
		// Close before reading the snapshot so the final rebuild covers
		// every applied update.
		idx.Close()
		snap := idx.Snapshot()
		log.Info("done", "files", snap.FileCount(), "symbols", snap.SymbolCount())
		return nil
	}

	w, err := watch.New(root, cfg.Debounce, idx.Enqueue, log)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	defer w.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())
	return nil
}

// enqueueTree walks the project and announces every indexable file. Top-level
// directories are walked concurrently; big monorepos are wide at the root.
func enqueueTree(idx *background.Index, root string, extensions []string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}

	var g errgroup.Group
	collect := func(dir string) func() error {
		return func() error {
			var batch []string
			err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					if strings.HasPrefix(d.Name(), ".") {
						return filepath.SkipDir
					}
					return nil
				}
				if hasExtension(path, extensions) {
					batch = append(batch, path)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if len(batch) > 0 {
				idx.Enqueue(batch)
			}
			return nil
		}
	}

	var topFiles []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			g.Go(collect(filepath.Join(root, name)))
		} else if hasExtension(name, extensions) {
			topFiles = append(topFiles, filepath.Join(root, name))
		}
	}
	if len(topFiles) > 0 {
		idx.Enqueue(topFiles)
	}
	return g.Wait()
}

func hasExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
