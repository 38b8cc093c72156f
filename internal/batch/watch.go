package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay unchanged before it is processed.
const DefaultDebounce = 300 * time.Millisecond

// WatchOptions tunes Watch.
type WatchOptions struct {
	// Debounce is the quiet period before a new file is processed.
	// Zero means DefaultDebounce.
	Debounce time.Duration
	// ProcessExisting runs a full pass over dir once the watcher is
	// registered, so files created during that pass are not missed.
	ProcessExisting bool
}

// Watch processes image files created or rewritten in dir once they have been
// quiet for the debounce interval, until ctx is cancelled. Outcome indexes
// count up from zero over the lifetime of the watch, starting with the
// existing files when opts.ProcessExisting is set.
func (r *Runner) Watch(ctx context.Context, dir string, patterns []string, opts WatchOptions, emit func(Outcome)) error {
	if patterns == nil {
		patterns = r.cfg.Patterns
	}
	exts := normalizePatterns(patterns)
	if len(exts) == 0 {
		return errors.New("no patterns to watch")
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if r.cfg.WriteDebug && samePath(r.cfg.OutputDir, dir) {
		return fmt.Errorf("debug output directory %s must differ from the watched directory", dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	logger := r.logger.With("watch_dir", dir)

	// Events raised during the initial pass queue up in the watcher. Files
	// the pass already handled are skipped unless they changed afterwards.
	index := 0
	seen := map[string]time.Time{}
	if opts.ProcessExisting {
		res, err := r.Run(ctx, dir, patterns, emit)
		if err != nil {
			return fmt.Errorf("processing existing files failed: %w", err)
		}
		for _, o := range res.Outcomes {
			if info, statErr := os.Stat(o.Path); statErr == nil {
				seen[o.Path] = info.ModTime()
			}
		}
		index = len(res.Outcomes)
	}

	logger.Info("watching for new images", "patterns", exts, "debounce", debounce)

	tick := debounce / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	pending := map[string]time.Time{}
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped", "processed", index)
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !r.watchable(ev.Name, exts) {
				continue
			}
			pending[ev.Name] = time.Now()

		case <-ticker.C:
			now := time.Now()
			var ready []string
			for name, t := range pending {
				if now.Sub(t) >= debounce {
					ready = append(ready, name)
				}
			}
			sort.Strings(ready)
			for _, name := range ready {
				delete(pending, name)
				if unchangedSince(name, seen) {
					continue
				}
				out := r.processFile(ctx, logger, index, dir, name)
				index++
				if emit != nil {
					emit(out)
				}
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}

func (r *Runner) watchable(path string, exts []string) bool {
	if matchesAnyPattern(path, r.cfg.ExcludePatterns) {
		return false
	}
	ext := filepath.Ext(path)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// unchangedSince reports whether name was already processed and has not been
// modified since. The entry is consumed either way.
func unchangedSince(name string, seen map[string]time.Time) bool {
	mod, ok := seen[name]
	if !ok {
		return false
	}
	delete(seen, name)
	info, err := os.Stat(name)
	return err == nil && info.ModTime().Equal(mod)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
