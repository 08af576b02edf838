package cards

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/storyboardlab/cardboard/internal/store"
)

type sequentialIDProvider struct {
	mu     sync.Mutex
	prefix string
	next   int
}

func newSequentialIDProvider(prefix string) *sequentialIDProvider {
	return &sequentialIDProvider{prefix: prefix}
}

func (p *sequentialIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("%s-%d", p.prefix, p.next), nil
}

type stepClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

func newStepClock(start time.Time, step time.Duration) *stepClock {
	return &stepClock{current: start, step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	fileStore, err := store.NewFileStore(store.FileStoreConfig{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected file store error: %v", err)
	}
	clock := newStepClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), time.Second)
	manager, err := NewManager(ManagerConfig{
		Store:      fileStore,
		Clock:      clock.Now,
		IDProvider: newSequentialIDProvider("id"),
	})
	if err != nil {
		t.Fatalf("unexpected manager error: %v", err)
	}
	return manager
}

func mustCreateCard(t *testing.T, manager *Manager, request CreateCardRequest) Card {
	t.Helper()
	card, err := manager.CreateCard(context.Background(), request)
	if err != nil {
		t.Fatalf("unexpected create card error: %v", err)
	}
	return card
}

func mustCreateChunk(t *testing.T, manager *Manager, request CreateChunkRequest) ContentChunk {
	t.Helper()
	chunk, err := manager.CreateChunk(context.Background(), request)
	if err != nil {
		t.Fatalf("unexpected create chunk error: %v", err)
	}
	return chunk
}

func mustCreateView(t *testing.T, manager *Manager, request CreateViewRequest) CardboardView {
	t.Helper()
	view, err := manager.CreateView(context.Background(), request)
	if err != nil {
		t.Fatalf("unexpected create view error: %v", err)
	}
	return view
}
