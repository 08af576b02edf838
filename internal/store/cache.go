package store

import (
	"bytes"
	"context"
	"sync"

	"go.uber.org/zap"
)

// CachedStore fronts another Store with a write-through memory mirror. The
// inner store stays the single source of truth: every write goes to it
// first, enumeration always hits it, and external changes are handled by
// eviction, never by patching cache state.
type CachedStore struct {
	inner  Store
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[Kind]map[string][]byte
}

// NewCachedStore wraps inner with an empty cache. A nil logger falls back
// to a no-op logger.
func NewCachedStore(inner Store, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := make(map[Kind]map[string][]byte, len(Kinds()))
	for _, kind := range Kinds() {
		cache[kind] = make(map[string][]byte)
	}
	return &CachedStore{inner: inner, logger: logger, cache: cache}
}

// Warm performs a best-effort initial load of every namespace. Storage
// failures are logged and the namespace treated as empty; Warm never fails.
func (s *CachedStore) Warm(ctx context.Context) {
	for _, kind := range Kinds() {
		documents, err := s.inner.LoadAll(ctx, kind)
		if err != nil {
			s.logger.Warn("cache warm failed, treating namespace as empty",
				zap.String("kind", string(kind)),
				zap.Error(err))
			continue
		}
		s.mu.Lock()
		for _, document := range documents {
			s.cache[kind][document.ID] = bytes.Clone(document.Data)
		}
		s.mu.Unlock()
	}
}

// Save writes through to the inner store and only then updates the mirror.
func (s *CachedStore) Save(ctx context.Context, kind Kind, id string, data []byte) error {
	if err := s.inner.Save(ctx, kind, id, data); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[kind][id] = bytes.Clone(data)
	s.mu.Unlock()
	return nil
}

// Load serves cache hits without touching the inner store and fills the
// cache on a miss.
func (s *CachedStore) Load(ctx context.Context, kind Kind, id string) ([]byte, error) {
	s.mu.RLock()
	cached, ok := s.cache[kind][id]
	s.mu.RUnlock()
	if ok {
		return bytes.Clone(cached), nil
	}

	data, err := s.inner.Load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[kind][id] = bytes.Clone(data)
	s.mu.Unlock()
	return data, nil
}

// LoadAll always enumerates the inner store and refreshes the mirror from
// the result.
func (s *CachedStore) LoadAll(ctx context.Context, kind Kind) ([]Document, error) {
	documents, err := s.inner.LoadAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	refreshed := make(map[string][]byte, len(documents))
	for _, document := range documents {
		refreshed[document.ID] = bytes.Clone(document.Data)
	}
	s.mu.Lock()
	s.cache[kind] = refreshed
	s.mu.Unlock()
	return documents, nil
}

// Delete removes the document from the inner store and evicts the mirror
// entry.
func (s *CachedStore) Delete(ctx context.Context, kind Kind, id string) (bool, error) {
	removed, err := s.inner.Delete(ctx, kind, id)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	delete(s.cache[kind], id)
	s.mu.Unlock()
	return removed, nil
}

// Invalidate evicts one cache entry. Used when the underlying document
// changed outside this process.
func (s *CachedStore) Invalidate(kind Kind, id string) {
	s.mu.Lock()
	delete(s.cache[kind], id)
	s.mu.Unlock()
}

var _ Store = (*CachedStore)(nil)
