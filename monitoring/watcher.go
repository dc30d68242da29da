package monitoring

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ArtifactWatcher reports changes to artifact files after startup. Loaded
// artifacts are never swapped in place; a change only marks the process stale
// so operators know a restart is needed to serve the new models.
type ArtifactWatcher struct {
	dir     string
	files   map[string]struct{}
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	metrics *Metrics
	stale   atomic.Bool
	changes chan string
}

func NewArtifactWatcher(dir string, files []string, logger *zap.Logger, metrics *Metrics) (*ArtifactWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	names := make(map[string]struct{}, len(files))
	for _, f := range files {
		names[f] = struct{}{}
	}
	return &ArtifactWatcher{
		dir:     dir,
		files:   names,
		watcher: watcher,
		logger:  logger,
		metrics: metrics,
		changes: make(chan string, 16),
	}, nil
}

// Run blocks until ctx is done.
func (w *ArtifactWatcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if _, tracked := w.files[name]; !tracked {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.stale.Store(true)
			w.metrics.SetArtifactsStale(true)
			w.logger.Warn("artifact changed on disk; restart to serve it",
				zap.String("file", name),
				zap.String("op", event.Op.String()))
			select {
			case w.changes <- name:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("artifact watcher error", zap.Error(err))
		}
	}
}

func (w *ArtifactWatcher) Stale() bool {
	return w.stale.Load()
}

// Changes delivers the names of changed artifact files, dropping events
// when nobody is reading.
func (w *ArtifactWatcher) Changes() <-chan string {
	return w.changes
}
