package cmd

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/weft-org/weft/internal/agent"
	"github.com/weft-org/weft/internal/fileutil"
	"github.com/weft-org/weft/internal/logger"
	"github.com/weft-org/weft/internal/logger/tag"
)

// watchDebounce is how long the watcher waits after the last change before
// triggering a run. Editors fire several events per save.
const watchDebounce = 500 * time.Millisecond

// runWatch runs the pipeline once, then re-runs it whenever the definition
// file or the discovery root changes. The loop ends on SIGINT or SIGTERM.
func runWatch(ctx *Context, path string, opts agent.Options) error {
	watchCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	runOnce := func() {
		p, err := loadRunPipeline(ctx, path)
		if err != nil {
			logger.Error(watchCtx, "Pipeline load failed", tag.File(path), tag.Error(err))
			return
		}

		ag := agent.New(p, opts)
		if err := ag.Run(watchCtx); err != nil {
			logger.Error(watchCtx, "Run failed",
				tag.Pipeline(p.Name),
				tag.RunID(ag.RunID()),
				tag.Error(err),
			)
		}

		// Re-runs get fresh IDs even when the first run had one assigned.
		opts.RunID = ""

		for _, dir := range watchDirs(path, ag) {
			if err := watcher.Add(dir); err != nil {
				logger.Debug(watchCtx, "Watch add failed", tag.Dir(dir), tag.Error(err))
			}
		}
	}

	runOnce()
	logger.Info(watchCtx, "Watching for changes", tag.File(path))

	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-watchCtx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
				!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug(watchCtx, "Change detected", tag.File(event.Name))
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
				fire = debounce.C
			} else {
				debounce.Reset(watchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error(watchCtx, "Watcher error", tag.Error(err))

		case <-fire:
			debounce = nil
			fire = nil
			runOnce()
		}
	}
}

// watchDirs returns the directories to watch: the pipeline file's directory
// and the static root of the discovery pattern.
func watchDirs(path string, ag *agent.Agent) []string {
	dirs := []string{filepath.Dir(path)}
	if pattern := ag.Pattern(); pattern != "" {
		base, _ := doublestar.SplitPattern(pattern)
		if base != "" && base != "." && fileutil.IsDir(base) {
			dirs = append(dirs, base)
		}
	}
	return dirs
}
