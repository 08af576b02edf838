package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fileStore, err := NewFileStore(FileStoreConfig{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected file store error: %v", err)
	}
	return fileStore
}

func TestNewFileStoreRequiresRoot(t *testing.T) {
	if _, err := NewFileStore(FileStoreConfig{}); err == nil {
		t.Fatalf("expected error for missing root")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	fileStore := newTestFileStore(t)
	ctx := context.Background()

	payload := []byte(`{"id":"card-1","content":"hello"}`)
	if err := fileStore.Save(ctx, KindCard, "card-1", payload); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	loaded, err := fileStore.Load(ctx, KindCard, "card-1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if string(loaded) != string(payload) {
		t.Fatalf("unexpected payload: %s", loaded)
	}
}

func TestSaveOverwritesPriorVersion(t *testing.T) {
	fileStore := newTestFileStore(t)
	ctx := context.Background()

	if err := fileStore.Save(ctx, KindCard, "card-1", []byte("v1")); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if err := fileStore.Save(ctx, KindCard, "card-1", []byte("v2")); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	loaded, err := fileStore.Load(ctx, KindCard, "card-1")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if string(loaded) != "v2" {
		t.Fatalf("expected latest version, got %s", loaded)
	}
}

func TestSaveLeavesNoStagingFilesBehind(t *testing.T) {
	fileStore := newTestFileStore(t)
	ctx := context.Background()

	if err := fileStore.Save(ctx, KindCard, "card-1", []byte("data")); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	entries, err := os.ReadDir(fileStore.NamespaceDir(KindCard))
	if err != nil {
		t.Fatalf("unexpected read dir error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "card-1.json" {
		t.Fatalf("unexpected namespace contents: %v", entries)
	}
}

func TestLoadMissingDocumentReturnsNotFound(t *testing.T) {
	fileStore := newTestFileStore(t)

	_, err := fileStore.Load(context.Background(), KindCard, "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadAllMissingNamespaceYieldsEmptySlice(t *testing.T) {
	fileStore := newTestFileStore(t)

	documents, err := fileStore.LoadAll(context.Background(), KindView)
	if err != nil {
		t.Fatalf("unexpected load all error: %v", err)
	}
	if len(documents) != 0 {
		t.Fatalf("expected empty slice, got %d documents", len(documents))
	}
}

func TestLoadAllEnumeratesInFilenameOrder(t *testing.T) {
	fileStore := newTestFileStore(t)
	ctx := context.Background()

	for _, id := range []string{"charlie", "alpha", "bravo"} {
		if err := fileStore.Save(ctx, KindChunk, id, []byte(id)); err != nil {
			t.Fatalf("unexpected save error: %v", err)
		}
	}

	documents, err := fileStore.LoadAll(ctx, KindChunk)
	if err != nil {
		t.Fatalf("unexpected load all error: %v", err)
	}
	if len(documents) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(documents))
	}
	want := []string{"alpha", "bravo", "charlie"}
	for index, document := range documents {
		if document.ID != want[index] {
			t.Fatalf("unexpected enumeration order: %v", documents)
		}
	}
}

func TestLoadAllIgnoresForeignFiles(t *testing.T) {
	fileStore := newTestFileStore(t)
	ctx := context.Background()

	if err := fileStore.Save(ctx, KindCard, "card-1", []byte("x")); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	stray := filepath.Join(fileStore.NamespaceDir(KindCard), "notes.txt")
	if err := os.WriteFile(stray, []byte("ignore me"), 0o644); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	documents, err := fileStore.LoadAll(ctx, KindCard)
	if err != nil {
		t.Fatalf("unexpected load all error: %v", err)
	}
	if len(documents) != 1 {
		t.Fatalf("expected the stray file to be ignored, got %d documents", len(documents))
	}
}

func TestDeleteReportsWhetherDocumentExisted(t *testing.T) {
	fileStore := newTestFileStore(t)
	ctx := context.Background()

	if err := fileStore.Save(ctx, KindCard, "card-1", []byte("x")); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	removed, err := fileStore.Delete(ctx, KindCard, "card-1")
	if err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal to be reported")
	}

	removed, err = fileStore.Delete(ctx, KindCard, "card-1")
	if err != nil {
		t.Fatalf("deleting a missing document must not error: %v", err)
	}
	if removed {
		t.Fatalf("second delete must report nothing removed")
	}
}

func TestNamespacesAreIndependent(t *testing.T) {
	fileStore := newTestFileStore(t)
	ctx := context.Background()

	if err := fileStore.Save(ctx, KindCard, "shared-id", []byte("card")); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if err := fileStore.Save(ctx, KindChunk, "shared-id", []byte("chunk")); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	if _, err := fileStore.Delete(ctx, KindCard, "shared-id"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	loaded, err := fileStore.Load(ctx, KindChunk, "shared-id")
	if err != nil {
		t.Fatalf("chunk namespace must be untouched: %v", err)
	}
	if string(loaded) != "chunk" {
		t.Fatalf("unexpected payload: %s", loaded)
	}
}

func TestAddressValidationRejectsPathEscapes(t *testing.T) {
	fileStore := newTestFileStore(t)
	ctx := context.Background()

	for _, id := range []string{"", "  ", "../escape", "a/b", `a\b`} {
		if err := fileStore.Save(ctx, KindCard, id, []byte("x")); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID for %q, got %v", id, err)
		}
	}
	if err := fileStore.Save(ctx, Kind("folder"), "id", []byte("x")); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}
