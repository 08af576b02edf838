package cards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/storyboardlab/cardboard/internal/store"
)

const (
	// PurposeImportedText marks chunks produced by text import.
	PurposeImportedText = "imported-text"
	// PurposeGeneral is the default purpose of a new chunk.
	PurposeGeneral = "general"

	defaultZoom = 1.0
)

// CreateChunkRequest carries the caller-supplied fields of a new chunk.
// Purpose defaults to "general" and Layout to a 3-column grid.
type CreateChunkRequest struct {
	Name    string
	Purpose string
	CardIDs []string
	Layout  *ChunkLayout
}

// CreateChunk persists a new chunk. When the resolved layout has
// AutoArrange set and CardIDs is non-empty, the referenced cards are
// arranged before the chunk is returned.
func (m *Manager) CreateChunk(ctx context.Context, request CreateChunkRequest) (ContentChunk, error) {
	layout := m.defaultChunkLayout()
	if request.Layout != nil {
		if !request.Layout.Type.valid() {
			cause := fmt.Errorf("%w: unknown layout type %q", ErrInvalidArgument, request.Layout.Type)
			return ContentChunk{}, newServiceError(opCreateChunk, "invalid_layout_type", cause)
		}
		layout = *request.Layout
	}

	purpose := strings.TrimSpace(request.Purpose)
	if purpose == "" {
		purpose = PurposeGeneral
	}

	id, err := m.newID(opCreateChunk)
	if err != nil {
		return ContentChunk{}, err
	}

	chunk := ContentChunk{
		ID:      id,
		Name:    request.Name,
		Purpose: purpose,
		CardIDs: cloneStrings(request.CardIDs),
		Layout:  layout,
	}

	if err := m.saveChunk(ctx, opCreateChunk, chunk); err != nil {
		return ContentChunk{}, err
	}
	if chunk.Layout.AutoArrange && len(chunk.CardIDs) > 0 {
		if _, err := m.AutoArrangeCards(ctx, chunk.CardIDs, chunk.Layout); err != nil {
			return ContentChunk{}, err
		}
	}
	return chunk, nil
}

// GetChunk returns the chunk with the given id or ErrNotFound.
func (m *Manager) GetChunk(ctx context.Context, id string) (ContentChunk, error) {
	return m.loadChunk(ctx, opGetChunk, id)
}

// ListChunks returns every persisted chunk in store enumeration order.
func (m *Manager) ListChunks(ctx context.Context) ([]ContentChunk, error) {
	documents, err := m.store.LoadAll(ctx, store.KindChunk)
	if err != nil {
		m.logError(opListChunks, "enumeration_failed", err)
		return nil, newServiceError(opListChunks, "enumeration_failed", storageFailure(err))
	}

	chunks := make([]ContentChunk, 0, len(documents))
	for _, document := range documents {
		var chunk ContentChunk
		if err := json.Unmarshal(document.Data, &chunk); err != nil {
			m.logError(opListChunks, "decode_failed", err, zap.String("id", document.ID))
			return nil, newServiceError(opListChunks, "decode_failed", storageFailure(err))
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// UpdateChunk merges the patch into the stored chunk. CardIDs order is
// taken exactly as given, never sorted. The auto-arrange coupling applies
// to the resolved chunk, same as in CreateChunk.
func (m *Manager) UpdateChunk(ctx context.Context, id string, patch ChunkPatch) (ContentChunk, error) {
	chunk, err := m.loadChunk(ctx, opUpdateChunk, id)
	if err != nil {
		return ContentChunk{}, err
	}

	if patch.Layout != nil && !patch.Layout.Type.valid() {
		cause := fmt.Errorf("%w: unknown layout type %q", ErrInvalidArgument, patch.Layout.Type)
		return ContentChunk{}, newServiceError(opUpdateChunk, "invalid_layout_type", cause)
	}

	if patch.Name != nil {
		chunk.Name = *patch.Name
	}
	if patch.Purpose != nil {
		chunk.Purpose = *patch.Purpose
	}
	if patch.CardIDs != nil {
		chunk.CardIDs = cloneStrings(*patch.CardIDs)
	}
	if patch.Layout != nil {
		chunk.Layout = *patch.Layout
	}

	if err := m.saveChunk(ctx, opUpdateChunk, chunk); err != nil {
		return ContentChunk{}, err
	}
	if chunk.Layout.AutoArrange && len(chunk.CardIDs) > 0 {
		if _, err := m.AutoArrangeCards(ctx, chunk.CardIDs, chunk.Layout); err != nil {
			return ContentChunk{}, err
		}
	}
	return chunk, nil
}

// DeleteChunk removes the persisted chunk. The cards it references are
// never deleted with it.
func (m *Manager) DeleteChunk(ctx context.Context, id string) (bool, error) {
	removed, err := m.store.Delete(ctx, store.KindChunk, id)
	if err != nil {
		m.logError(opDeleteChunk, "delete_failed", err, zap.String("id", id))
		return false, newServiceError(opDeleteChunk, "delete_failed", storageFailure(err))
	}
	return removed, nil
}

// CreateViewRequest carries the caller-supplied fields of a new view. A
// nil Settings seeds the defaults: zoom 1.0, center {0,0}, metadata shown,
// connections hidden, groupBy "none".
type CreateViewRequest struct {
	Name        string
	Description string
	ChunkIDs    []string
	Settings    *ViewSettings
}

// CreateView persists a new view.
func (m *Manager) CreateView(ctx context.Context, request CreateViewRequest) (CardboardView, error) {
	settings := ViewSettings{
		Zoom:            defaultZoom,
		CenterPoint:     CenterPoint{},
		ShowMetadata:    true,
		ShowConnections: false,
		GroupBy:         m.layout.DefaultGroupBy,
	}
	if request.Settings != nil {
		if request.Settings.Zoom <= 0 {
			cause := fmt.Errorf("%w: zoom must be positive, got %v", ErrInvalidArgument, request.Settings.Zoom)
			return CardboardView{}, newServiceError(opCreateView, "invalid_zoom", cause)
		}
		settings = *request.Settings
	}

	id, err := m.newID(opCreateView)
	if err != nil {
		return CardboardView{}, err
	}

	view := CardboardView{
		ID:           id,
		Name:         request.Name,
		Description:  request.Description,
		ChunkIDs:     cloneStrings(request.ChunkIDs),
		ViewSettings: settings,
	}

	if err := m.saveView(ctx, opCreateView, view); err != nil {
		return CardboardView{}, err
	}
	return view, nil
}

// GetView returns the view with the given id or ErrNotFound.
func (m *Manager) GetView(ctx context.Context, id string) (CardboardView, error) {
	return m.loadView(ctx, opGetView, id)
}

// ListViews returns every persisted view in store enumeration order.
func (m *Manager) ListViews(ctx context.Context) ([]CardboardView, error) {
	documents, err := m.store.LoadAll(ctx, store.KindView)
	if err != nil {
		m.logError(opListViews, "enumeration_failed", err)
		return nil, newServiceError(opListViews, "enumeration_failed", storageFailure(err))
	}

	views := make([]CardboardView, 0, len(documents))
	for _, document := range documents {
		var view CardboardView
		if err := json.Unmarshal(document.Data, &view); err != nil {
			m.logError(opListViews, "decode_failed", err, zap.String("id", document.ID))
			return nil, newServiceError(opListViews, "decode_failed", storageFailure(err))
		}
		views = append(views, view)
	}
	return views, nil
}

// UpdateView merges the patch into the stored view.
func (m *Manager) UpdateView(ctx context.Context, id string, patch ViewPatch) (CardboardView, error) {
	view, err := m.loadView(ctx, opUpdateView, id)
	if err != nil {
		return CardboardView{}, err
	}

	if patch.ViewSettings != nil && patch.ViewSettings.Zoom <= 0 {
		cause := fmt.Errorf("%w: zoom must be positive, got %v", ErrInvalidArgument, patch.ViewSettings.Zoom)
		return CardboardView{}, newServiceError(opUpdateView, "invalid_zoom", cause)
	}

	if patch.Name != nil {
		view.Name = *patch.Name
	}
	if patch.Description != nil {
		view.Description = *patch.Description
	}
	if patch.ChunkIDs != nil {
		view.ChunkIDs = cloneStrings(*patch.ChunkIDs)
	}
	if patch.ViewSettings != nil {
		view.ViewSettings = *patch.ViewSettings
	}

	if err := m.saveView(ctx, opUpdateView, view); err != nil {
		return CardboardView{}, err
	}
	return view, nil
}

// DeleteView removes the persisted view.
func (m *Manager) DeleteView(ctx context.Context, id string) (bool, error) {
	removed, err := m.store.Delete(ctx, store.KindView, id)
	if err != nil {
		m.logError(opDeleteView, "delete_failed", err, zap.String("id", id))
		return false, newServiceError(opDeleteView, "delete_failed", storageFailure(err))
	}
	return removed, nil
}

// ImportRequest carries one bulk text import. SplitBy selects the
// segmentation strategy; Tags are applied to every created card.
type ImportRequest struct {
	Text      string
	ChunkName string
	SplitBy   SplitMode
	Tags      []string
}

// ImportTextAsCards segments the text, creates one card per non-empty
// segment on a fixed grid in text order, and collects the new cards into
// one chunk with purpose "imported-text" preserving segment order.
func (m *Manager) ImportTextAsCards(ctx context.Context, request ImportRequest) (ContentChunk, error) {
	if !request.SplitBy.valid() {
		cause := fmt.Errorf("%w: unknown split mode %q", ErrInvalidArgument, request.SplitBy)
		return ContentChunk{}, newServiceError(opImportText, "invalid_split_mode", cause)
	}

	var segments []string
	switch request.SplitBy {
	case SplitModeParagraph:
		segments = SegmentParagraphs(request.Text)
	case SplitModeSentence:
		segments = SegmentSentences(request.Text)
	case SplitModeCustom:
		// Policy hook for future strategies: the whole text is one segment.
		if trimmed := strings.TrimSpace(request.Text); trimmed != "" {
			segments = []string{trimmed}
		}
	}

	cardIDs := make([]string, 0, len(segments))
	for index, segment := range segments {
		row := index / m.layout.GridColumns
		column := index % m.layout.GridColumns
		position := Position{
			X:      float64(column) * (m.layout.CardWidth + m.layout.GridSpacing),
			Y:      float64(row) * (m.layout.CardHeight + m.layout.GridSpacing),
			Width:  m.layout.CardWidth,
			Height: m.layout.CardHeight,
		}
		card, err := m.CreateCard(ctx, CreateCardRequest{
			Content:  segment,
			Tags:     request.Tags,
			Position: &position,
		})
		if err != nil {
			return ContentChunk{}, err
		}
		cardIDs = append(cardIDs, card.ID)
	}

	id, err := m.newID(opImportText)
	if err != nil {
		return ContentChunk{}, err
	}

	chunk := ContentChunk{
		ID:      id,
		Name:    request.ChunkName,
		Purpose: PurposeImportedText,
		CardIDs: cardIDs,
		Layout: ChunkLayout{
			Type:    LayoutTypeGrid,
			Columns: m.layout.GridColumns,
			Spacing: m.layout.GridSpacing,
		},
	}
	if err := m.saveChunk(ctx, opImportText, chunk); err != nil {
		return ContentChunk{}, err
	}
	return chunk, nil
}

// ExportChunkAsText resolves the chunk's card ids in order, drops ids that
// no longer resolve, and joins the surviving contents with blank lines.
func (m *Manager) ExportChunkAsText(ctx context.Context, chunkID string) (string, error) {
	chunk, err := m.loadChunk(ctx, opExportChunk, chunkID)
	if err != nil {
		return "", err
	}

	contents := make([]string, 0, len(chunk.CardIDs))
	for _, cardID := range chunk.CardIDs {
		card, err := m.loadCard(ctx, opExportChunk, cardID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		contents = append(contents, card.Content)
	}
	return strings.TrimSpace(strings.Join(contents, "\n\n")), nil
}

func (m *Manager) defaultChunkLayout() ChunkLayout {
	return ChunkLayout{
		Type:    LayoutTypeGrid,
		Columns: m.layout.GridColumns,
		Spacing: m.layout.GridSpacing,
	}
}

func (m *Manager) loadChunk(ctx context.Context, operation, id string) (ContentChunk, error) {
	var chunk ContentChunk
	if err := m.loadEntity(ctx, operation, store.KindChunk, id, &chunk); err != nil {
		return ContentChunk{}, err
	}
	return chunk, nil
}

func (m *Manager) saveChunk(ctx context.Context, operation string, chunk ContentChunk) error {
	return m.saveEntity(ctx, operation, store.KindChunk, chunk.ID, chunk)
}

func (m *Manager) loadView(ctx context.Context, operation, id string) (CardboardView, error) {
	var view CardboardView
	if err := m.loadEntity(ctx, operation, store.KindView, id, &view); err != nil {
		return CardboardView{}, err
	}
	return view, nil
}

func (m *Manager) saveView(ctx context.Context, operation string, view CardboardView) error {
	return m.saveEntity(ctx, operation, store.KindView, view.ID, view)
}
