package meals

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultWatchDebounce = 100 * time.Millisecond

var errMissingRefresher = errors.New("refresher is required")

// Refresher reloads the meal collection and republishes it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// WatcherConfig describes how the database file is watched.
type WatcherConfig struct {
	DatabasePath string
	Refresher    Refresher
	Debounce     time.Duration
	Logger       *zap.Logger
}

// Watcher refreshes the store when another process writes to the database
// file. Bursts of file events collapse into one refresh.
type Watcher struct {
	watcher   *fsnotify.Watcher
	refresher Refresher
	debounce  time.Duration
	logger    *zap.Logger
	targets   map[string]struct{}
}

// NewWatcher watches the directory holding the database so journal and
// write-ahead files are seen as they are created.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Refresher == nil {
		return nil, newServiceError(opWatcherRun, reasonMissingStore, errMissingRefresher)
	}
	absolutePath, err := filepath.Abs(cfg.DatabasePath)
	if err != nil {
		return nil, newServiceError(opWatcherRun, reasonWatchFailed, err)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, newServiceError(opWatcherRun, reasonWatchFailed, err)
	}
	if err := fsWatcher.Add(filepath.Dir(absolutePath)); err != nil {
		_ = fsWatcher.Close()
		return nil, newServiceError(opWatcherRun, reasonWatchFailed, err)
	}

	base := filepath.Base(absolutePath)
	return &Watcher{
		watcher:   fsWatcher,
		refresher: cfg.Refresher,
		debounce:  debounce,
		logger:    logger,
		targets: map[string]struct{}{
			base:              {},
			base + "-wal":     {},
			base + "-journal": {},
		},
	}, nil
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer func() {
		_ = w.watcher.Close()
	}()

	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			if err := w.refresher.Refresh(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("database refresh failed",
					zap.String("operation", opWatcherRun),
					zap.Error(err))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("database watch error",
				zap.String("operation", opWatcherRun),
				zap.String("reason", reasonWatchFailed),
				zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	_, ok := w.targets[filepath.Base(event.Name)]
	return ok
}
