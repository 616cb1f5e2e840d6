// Package deploy watches the engine data directories and triggers a redeploy
// when schema or customization files change.
package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/imecore/internal/logging"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before triggering.
const DefaultDebounce = 500 * time.Millisecond

// DefaultPatterns are the file name patterns that trigger a redeploy.
var DefaultPatterns = []string{"*.yaml", "*.txt"}

// Config configures a Watcher.
type Config struct {
	// Dirs are watched non-recursively. Empty entries are skipped.
	Dirs []string
	// Patterns are matched against file base names.
	Patterns []string
	Debounce time.Duration
}

// Watcher calls a trigger function once per burst of matching file events.
type Watcher struct {
	watcher  *fsnotify.Watcher
	matchers []glob.Glob
	debounce time.Duration
	trigger  func(changed []string)
	logger   *logging.Logger

	startOnce sync.Once
	started   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a Watcher on config.Dirs. trigger receives the sorted paths
// that changed during the burst and runs on the watcher goroutine.
func New(config Config, trigger func(changed []string), logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if len(config.Patterns) == 0 {
		config.Patterns = DefaultPatterns
	}

	matchers := make([]glob.Glob, 0, len(config.Patterns))
	for _, p := range config.Patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		matchers = append(matchers, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fsw,
		matchers: matchers,
		debounce: config.Debounce,
		trigger:  trigger,
		logger:   logger.WithComponent("deploy"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	for _, dir := range config.Dirs {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			w.logger.Warn("skipping data directory", "dir", dir, "error", err)
			continue
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.logger.Debug("watching data directory", "dir", dir)
	}
	return w, nil
}

// Start begins watching in the background. Only the first call has an effect.
func (w *Watcher) Start() {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.watchLoop()
	})
}

// Stop stops the watcher and, if it was started, waits for the loop to exit,
// including a trigger call in progress. A pending burst is dropped. Stop is
// safe to call more than once and without Start, but must not be called from
// the trigger function.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	if w.started.Load() {
		<-w.doneCh
	}
}

// Done is closed when the watch loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// Matches reports whether a file name matches any configured pattern.
func (w *Watcher) Matches(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.matchers {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)

	timer := time.NewTimer(0)
	<-timer.C
	pending := make(map[string]struct{})

	for {
		select {
		case <-w.stopCh:
			timer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.Matches(ev.Name) {
				continue
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = make(map[string]struct{})

			w.logger.Info("data files changed", "files", len(changed))
			if w.trigger != nil {
				w.trigger(changed)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}
