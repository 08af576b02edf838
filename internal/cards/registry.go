package cards

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/storyboardlab/cardboard/internal/store"
)

var errMissingWorkspaceRoot = errors.New("workspace root is required")

// RegistryConfig carries the shared dependencies for every manager the
// registry creates.
type RegistryConfig struct {
	Clock        func() time.Time
	IDProvider   IDProvider
	Logger       *zap.Logger
	Layout       LayoutPolicy
	WatchEnabled bool
}

type workspaceEntry struct {
	manager *Manager
	watcher *store.Watcher
}

// Registry owns one manager per workspace root, created on first use and
// reused across calls until explicitly released. It replaces ambient global
// state with an explicit lifecycle.
type Registry struct {
	clock        func() time.Time
	idProvider   IDProvider
	logger       *zap.Logger
	layout       LayoutPolicy
	watchEnabled bool

	mu         sync.Mutex
	workspaces map[string]*workspaceEntry
}

// NewRegistry returns an empty registry. Nil Clock, IDProvider and Logger
// fall back to time.Now, the UUID provider, and a no-op logger.
func NewRegistry(cfg RegistryConfig) *Registry {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Registry{
		clock:        clock,
		idProvider:   idProvider,
		logger:       logger,
		layout:       cfg.Layout,
		watchEnabled: cfg.WatchEnabled,
		workspaces:   make(map[string]*workspaceEntry),
	}
}

// Acquire returns the manager serving the given workspace root, creating
// it on first use. The same cleaned root always maps to the same manager
// until released.
func (r *Registry) Acquire(ctx context.Context, workspaceRoot string) (*Manager, error) {
	if workspaceRoot == "" {
		return nil, errMissingWorkspaceRoot
	}
	root := filepath.Clean(workspaceRoot)

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.workspaces[root]; ok {
		return entry.manager, nil
	}

	fileStore, err := store.NewFileStore(store.FileStoreConfig{Root: root})
	if err != nil {
		return nil, err
	}
	cached := store.NewCachedStore(fileStore, r.logger)
	cached.Warm(ctx)

	var watcher *store.Watcher
	if r.watchEnabled {
		watcher, err = store.NewWatcher(fileStore, cached, r.logger)
		if err != nil {
			r.logger.Warn("workspace watcher unavailable, continuing without cache invalidation",
				zap.String("workspace", root),
				zap.Error(err))
		}
	}

	manager, err := NewManager(ManagerConfig{
		Store:      cached,
		Clock:      r.clock,
		IDProvider: r.idProvider,
		Logger:     r.logger,
		Layout:     r.layout,
	})
	if err != nil {
		if watcher != nil {
			watcher.Close()
		}
		return nil, err
	}

	r.workspaces[root] = &workspaceEntry{manager: manager, watcher: watcher}
	return manager, nil
}

// Release disposes the manager for the given root, stopping its watcher.
// Releasing an unknown root is a no-op.
func (r *Registry) Release(workspaceRoot string) error {
	root := filepath.Clean(workspaceRoot)

	r.mu.Lock()
	entry, ok := r.workspaces[root]
	delete(r.workspaces, root)
	r.mu.Unlock()

	if !ok || entry.watcher == nil {
		return nil
	}
	return entry.watcher.Close()
}

// Close releases every workspace.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := make([]*workspaceEntry, 0, len(r.workspaces))
	for root, entry := range r.workspaces {
		entries = append(entries, entry)
		delete(r.workspaces, root)
	}
	r.mu.Unlock()

	var firstErr error
	for _, entry := range entries {
		if entry.watcher == nil {
			continue
		}
		if err := entry.watcher.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
