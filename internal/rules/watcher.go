package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"musicnerd/internal/logging"
)

// ChangeFunc receives a rules file that changed on disk. err is set when
// the new content could not be read or does not satisfy Contract; source
// is only valid when err is nil.
type ChangeFunc func(source string, err error)

// Watcher watches one rules file and reports settled edits. The parent
// directory is watched so editors that replace the file on save still
// produce events.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	onChange    ChangeFunc
	debounceDur time.Duration
	pending     time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats counts watcher activity.
type WatcherStats struct {
	Events      int
	Reloads     int
	Rejected    int
	Errors      int
	LastEvent   time.Time
	LastEventOp string
}

// NewWatcher creates a watcher for path. debounce <= 0 uses 300ms.
func NewWatcher(path string, debounce time.Duration, onChange ChangeFunc) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("rules watcher needs a file path")
	}
	if onChange == nil {
		return nil, fmt.Errorf("rules watcher needs a change callback")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &Watcher{
		watcher:     fw,
		path:        abs,
		onChange:    onChange,
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logging.Rules("watching %s", w.path)

	go w.run(ctx)
	return nil
}

// Run starts the watcher and blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// Stop stops the watcher and waits for its goroutine. Safe to call twice.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.closeWatcher()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.closeWatcher()
	logging.Rules("rules watcher stopped")
}

func (w *Watcher) closeWatcher() {
	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryRules).Error("error closing rules watcher: %v", err)
	}
}

// Stats returns a copy of the watcher counters.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryRules).Error("rules watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.processSettled()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	logging.Get(logging.CategoryRules).Debug("%s event for %s", event.Op, event.Name)

	w.mu.Lock()
	w.stats.Events++
	w.stats.LastEvent = time.Now()
	w.stats.LastEventOp = event.Op.String()
	w.pending = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processSettled() {
	w.mu.Lock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.pending = time.Time{}
	w.mu.Unlock()

	content, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			// Mid-rename; the create event that follows re-arms the timer.
			return
		}
		w.report("", fmt.Errorf("failed to read rules %s: %w", w.path, err))
		return
	}
	source := string(content)
	if err := Validate(source); err != nil {
		w.report("", err)
		return
	}
	w.report(source, nil)
}

func (w *Watcher) report(source string, err error) {
	w.mu.Lock()
	if err != nil {
		w.stats.Rejected++
	} else {
		w.stats.Reloads++
	}
	w.mu.Unlock()

	if err != nil {
		logging.Get(logging.CategoryRules).Warn("rules change rejected: %v", err)
	} else {
		logging.Rules("rules file changed, %d bytes", len(source))
	}
	w.onChange(source, err)
}
