package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var errMissingCache = errors.New("store: cached store is required")

// Watcher evicts cache entries when documents change on disk outside this
// process (an editor host touching the workspace directly). It owns an
// fsnotify watch on every namespace directory.
type Watcher struct {
	notifier *fsnotify.Watcher
	cache    *CachedStore
	kinds    map[string]Kind
	logger   *zap.Logger
	done     chan struct{}
}

// NewWatcher starts watching the file store's namespace directories,
// creating them first so the watches can attach.
func NewWatcher(fileStore *FileStore, cache *CachedStore, logger *zap.Logger) (*Watcher, error) {
	if fileStore == nil {
		return nil, errMissingRoot
	}
	if cache == nil {
		return nil, errMissingCache
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watcher := &Watcher{
		notifier: notifier,
		cache:    cache,
		kinds:    make(map[string]Kind, len(Kinds())),
		logger:   logger,
		done:     make(chan struct{}),
	}

	for _, kind := range Kinds() {
		dir := fileStore.NamespaceDir(kind)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			notifier.Close()
			return nil, err
		}
		if err := notifier.Add(dir); err != nil {
			notifier.Close()
			return nil, err
		}
		watcher.kinds[filepath.Clean(dir)] = kind
	}

	go watcher.run()
	return watcher, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.notifier.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.notifier.Errors:
			if !ok {
				return
			}
			w.logger.Warn("workspace watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, documentExtension) {
		return
	}
	kind, ok := w.kinds[filepath.Clean(filepath.Dir(event.Name))]
	if !ok {
		return
	}
	id := strings.TrimSuffix(name, documentExtension)
	w.cache.Invalidate(kind, id)
	w.logger.Debug("evicted cache entry after external change",
		zap.String("kind", string(kind)),
		zap.String("id", id),
		zap.String("op", event.Op.String()))
}

// Close stops watching and waits for the event loop to drain.
func (w *Watcher) Close() error {
	err := w.notifier.Close()
	<-w.done
	return err
}
