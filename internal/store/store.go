// Package store persists entity documents under a workspace root, one JSON
// document per entity id, grouped into a directory per entity kind.
// Directory listing is the enumeration mechanism; there is no index file.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind names one of the three entity namespaces.
type Kind string

const (
	// KindCard is the namespace for card documents.
	KindCard Kind = "card"
	// KindChunk is the namespace for chunk documents.
	KindChunk Kind = "chunk"
	// KindView is the namespace for view documents.
	KindView Kind = "view"
)

const documentExtension = ".json"

var (
	// ErrNotFound indicates that no document exists for the requested id.
	ErrNotFound = errors.New("store: document not found")
	// ErrInvalidID indicates an id that cannot address a document.
	ErrInvalidID = errors.New("store: invalid document id")
	// ErrInvalidKind indicates an unknown entity namespace.
	ErrInvalidKind = errors.New("store: invalid document kind")
	errMissingRoot = errors.New("store: workspace root is required")
)

// Document pairs a persisted blob with the id it is addressed by.
type Document struct {
	ID   string
	Data []byte
}

// Store is the blob persistence contract consumed by the manager. A missing
// id surfaces as ErrNotFound from Load and as (false, nil) from Delete;
// every other failure is a storage error.
type Store interface {
	Save(ctx context.Context, kind Kind, id string, data []byte) error
	Load(ctx context.Context, kind Kind, id string) ([]byte, error)
	LoadAll(ctx context.Context, kind Kind) ([]Document, error)
	Delete(ctx context.Context, kind Kind, id string) (bool, error)
}

// Kinds lists every entity namespace.
func Kinds() []Kind {
	return []Kind{KindCard, KindChunk, KindView}
}

func (k Kind) valid() bool {
	switch k {
	case KindCard, KindChunk, KindView:
		return true
	}
	return false
}

func (k Kind) dirName() string {
	return string(k) + "s"
}

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	// Root is the workspace directory holding the per-kind namespaces.
	Root string
}

// FileStore is the authoritative file-backed implementation of Store.
type FileStore struct {
	root string
}

// NewFileStore validates the configuration and returns a FileStore. The
// root directory is created on demand by the first save.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, errMissingRoot
	}
	return &FileStore{root: root}, nil
}

// NamespaceDir returns the directory backing the given kind.
func (s *FileStore) NamespaceDir(kind Kind) string {
	return filepath.Join(s.root, kind.dirName())
}

// Save writes the document atomically from a reader's perspective: the blob
// lands in a temp file first and is renamed over any prior version.
func (s *FileStore) Save(ctx context.Context, kind Kind, id string, data []byte) error {
	if err := checkAddress(ctx, kind, id); err != nil {
		return err
	}

	dir := s.NamespaceDir(kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create namespace %s: %w", kind, err)
	}

	temp, err := os.CreateTemp(dir, id+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: stage document %s/%s: %w", kind, id, err)
	}
	tempName := temp.Name()
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		os.Remove(tempName)
		return fmt.Errorf("store: write document %s/%s: %w", kind, id, err)
	}
	if err := temp.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("store: close document %s/%s: %w", kind, id, err)
	}
	if err := os.Rename(tempName, s.documentPath(kind, id)); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("store: publish document %s/%s: %w", kind, id, err)
	}
	return nil
}

// Load reads one document, returning ErrNotFound for a missing id.
func (s *FileStore) Load(ctx context.Context, kind Kind, id string) ([]byte, error) {
	if err := checkAddress(ctx, kind, id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.documentPath(kind, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read document %s/%s: %w", kind, id, err)
	}
	return data, nil
}

// LoadAll enumerates a namespace by directory listing, in filename order.
// A missing or empty namespace yields an empty slice.
func (s *FileStore) LoadAll(ctx context.Context, kind Kind) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !kind.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	entries, err := os.ReadDir(s.NamespaceDir(kind))
	if errors.Is(err, os.ErrNotExist) {
		return []Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list namespace %s: %w", kind, err)
	}

	documents := make([]Document, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, documentExtension) {
			continue
		}
		id := strings.TrimSuffix(name, documentExtension)
		data, err := os.ReadFile(filepath.Join(s.NamespaceDir(kind), name))
		if errors.Is(err, os.ErrNotExist) {
			// Deleted between listing and read.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: read document %s/%s: %w", kind, id, err)
		}
		documents = append(documents, Document{ID: id, Data: data})
	}
	return documents, nil
}

// Delete removes a document, reporting whether one actually existed.
func (s *FileStore) Delete(ctx context.Context, kind Kind, id string) (bool, error) {
	if err := checkAddress(ctx, kind, id); err != nil {
		return false, err
	}

	err := os.Remove(s.documentPath(kind, id))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: delete document %s/%s: %w", kind, id, err)
	}
	return true, nil
}

func (s *FileStore) documentPath(kind Kind, id string) string {
	return filepath.Join(s.NamespaceDir(kind), id+documentExtension)
}

func checkAddress(ctx context.Context, kind Kind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !kind.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if strings.ContainsAny(id, `/\`) || id != filepath.Base(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
