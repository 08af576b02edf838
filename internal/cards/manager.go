// Package cards implements the card/chunk/view domain: entity model,
// mutation operations with append-only revision history, deterministic
// auto-layout, and text import/export, on top of a blob store.
package cards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storyboardlab/cardboard/internal/store"
)

var (
	errMissingStore      = errors.New("entity store is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError attaches an operation.reason code to an underlying cause.
// The cause wraps one of the package sentinels, so errors.Is reaches the
// taxonomy through a ServiceError.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opManagerNew   = "cards.manager.new"
	opCreateCard   = "cards.create_card"
	opGetCard      = "cards.get_card"
	opListCards    = "cards.list_cards"
	opUpdateCard   = "cards.update_card"
	opDeleteCard   = "cards.delete_card"
	opSplitCard    = "cards.split_card"
	opMergeCards   = "cards.merge_cards"
	opArrangeCards = "cards.arrange_cards"
	opCreateChunk  = "cards.create_chunk"
	opGetChunk     = "cards.get_chunk"
	opListChunks   = "cards.list_chunks"
	opUpdateChunk  = "cards.update_chunk"
	opDeleteChunk  = "cards.delete_chunk"
	opCreateView   = "cards.create_view"
	opGetView      = "cards.get_view"
	opListViews    = "cards.list_views"
	opUpdateView   = "cards.update_view"
	opDeleteView   = "cards.delete_view"
	opImportText   = "cards.import_text"
	opExportChunk  = "cards.export_chunk"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// LayoutPolicy fixes the geometry constants used by card creation, split
// placement, and auto-arrange. Zero fields fall back to the defaults.
type LayoutPolicy struct {
	CardWidth      float64
	CardHeight     float64
	GridSpacing    float64
	GridColumns    int
	DefaultCardX   float64
	DefaultCardY   float64
	SplitGap       float64
	DefaultGroupBy string
}

// DefaultLayoutPolicy returns the reference geometry: 250x200 cards on a
// 3-column grid with 20 units of gutter.
func DefaultLayoutPolicy() LayoutPolicy {
	return LayoutPolicy{
		CardWidth:      250,
		CardHeight:     200,
		GridSpacing:    20,
		GridColumns:    3,
		DefaultCardX:   100,
		DefaultCardY:   100,
		SplitGap:       20,
		DefaultGroupBy: "none",
	}
}

func (p LayoutPolicy) withDefaults() LayoutPolicy {
	defaults := DefaultLayoutPolicy()
	if p.CardWidth <= 0 {
		p.CardWidth = defaults.CardWidth
	}
	if p.CardHeight <= 0 {
		p.CardHeight = defaults.CardHeight
	}
	if p.GridSpacing <= 0 {
		p.GridSpacing = defaults.GridSpacing
	}
	if p.GridColumns <= 0 {
		p.GridColumns = defaults.GridColumns
	}
	if p.DefaultCardX <= 0 {
		p.DefaultCardX = defaults.DefaultCardX
	}
	if p.DefaultCardY <= 0 {
		p.DefaultCardY = defaults.DefaultCardY
	}
	if p.SplitGap <= 0 {
		p.SplitGap = defaults.SplitGap
	}
	if p.DefaultGroupBy == "" {
		p.DefaultGroupBy = defaults.DefaultGroupBy
	}
	return p
}

// IDProvider issues unique entity identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// ManagerConfig carries the dependencies of a Manager.
type ManagerConfig struct {
	Store      store.Store
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	Layout     LayoutPolicy
}

// Manager is the domain API over one workspace. Operations may interleave;
// there is no lock across namespaces. Two concurrent updates to the same id
// are a last-write-wins race: whichever save completes last determines the
// persisted state and its history entry. Multi-document operations (split,
// merge, arrange) are not transactional; retrying a failed operation is the
// recovery path.
type Manager struct {
	store      store.Store
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	layout     LayoutPolicy
}

// NewManager validates the configuration and returns a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opManagerNew, "missing_store", errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opManagerNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Manager{
		store:      cfg.Store,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		layout:     cfg.Layout.withDefaults(),
	}, nil
}

// Layout exposes the effective geometry policy.
func (m *Manager) Layout() LayoutPolicy {
	return m.layout
}

func (m *Manager) now() time.Time {
	return m.clock().UTC()
}

func (m *Manager) newID(operation string) (string, error) {
	id, err := m.idProvider.NewID()
	if err != nil {
		m.logError(operation, "id_generation_failed", err)
		return "", newServiceError(operation, "id_generation_failed", err)
	}
	return id, nil
}

// CreateCardRequest carries the caller-supplied fields of a new card.
// Title, Tags and Position are optional; Title is derived from Content when
// absent and Position falls back to the default geometry.
type CreateCardRequest struct {
	Content  string
	Title    string
	Tags     []string
	Position *Position
	Author   string
}

// CreateCard generates an id, derives missing fields, seeds the history
// with a single create entry, persists the card, and returns it.
func (m *Manager) CreateCard(ctx context.Context, request CreateCardRequest) (Card, error) {
	id, err := m.newID(opCreateCard)
	if err != nil {
		return Card{}, err
	}

	title := strings.TrimSpace(request.Title)
	if title == "" {
		title = ExtractTitle(request.Content)
	}

	position := Position{
		X:      m.layout.DefaultCardX,
		Y:      m.layout.DefaultCardY,
		Width:  m.layout.CardWidth,
		Height: m.layout.CardHeight,
	}
	if request.Position != nil {
		position = *request.Position
	}

	now := m.now()
	card := Card{
		ID:      id,
		Title:   title,
		Content: request.Content,
		Tags:    cloneStrings(request.Tags),
		Status:  CardStatusDraft,
		History: []HistoryEntry{{
			Timestamp:  now,
			Content:    request.Content,
			ChangeType: ChangeTypeCreate,
			Author:     request.Author,
		}},
		Position: position,
		Metadata: Metadata{
			WordCount: CountWords(request.Content),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	if err := m.saveCard(ctx, opCreateCard, card); err != nil {
		return Card{}, err
	}
	return card, nil
}

// GetCard returns the card with the given id or ErrNotFound.
func (m *Manager) GetCard(ctx context.Context, id string) (Card, error) {
	return m.loadCard(ctx, opGetCard, id)
}

// ListCards returns every persisted card in store enumeration order.
func (m *Manager) ListCards(ctx context.Context) ([]Card, error) {
	documents, err := m.store.LoadAll(ctx, store.KindCard)
	if err != nil {
		m.logError(opListCards, "enumeration_failed", err)
		return nil, newServiceError(opListCards, "enumeration_failed", storageFailure(err))
	}

	cards := make([]Card, 0, len(documents))
	for _, document := range documents {
		var card Card
		if err := json.Unmarshal(document.Data, &card); err != nil {
			m.logError(opListCards, "decode_failed", err, zap.String("id", document.ID))
			return nil, newServiceError(opListCards, "decode_failed", storageFailure(err))
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// UpdateCard merges the patch into the stored card: top-level fields
// replace, metadata merges field by field. A content change recomputes the
// word count and appends an edit history entry; UpdatedAt is refreshed on
// every call, including an empty patch.
func (m *Manager) UpdateCard(ctx context.Context, id string, patch CardPatch) (Card, error) {
	card, err := m.loadCard(ctx, opUpdateCard, id)
	if err != nil {
		return Card{}, err
	}

	if patch.Status != nil && !patch.Status.valid() {
		cause := fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, *patch.Status)
		return Card{}, newServiceError(opUpdateCard, "invalid_status", cause)
	}

	now := m.now()
	contentChanged := false

	if patch.Title != nil {
		card.Title = *patch.Title
	}
	if patch.Content != nil && *patch.Content != card.Content {
		card.Content = *patch.Content
		contentChanged = true
	}
	if patch.Tags != nil {
		card.Tags = cloneStrings(*patch.Tags)
	}
	if patch.Status != nil {
		card.Status = *patch.Status
	}
	if patch.Position != nil {
		card.Position = *patch.Position
	}
	if patch.Metadata != nil {
		if patch.Metadata.ChunkID != nil {
			card.Metadata.ChunkID = *patch.Metadata.ChunkID
		}
		if patch.Metadata.Color != nil {
			card.Metadata.Color = *patch.Metadata.Color
		}
		if patch.Metadata.Priority != nil {
			card.Metadata.Priority = *patch.Metadata.Priority
		}
	}

	if contentChanged {
		card.Metadata.WordCount = CountWords(card.Content)
		card.History = append(card.History, HistoryEntry{
			Timestamp:  now,
			Content:    card.Content,
			ChangeType: ChangeTypeEdit,
			Author:     patch.Author,
		})
	}
	card.Metadata.UpdatedAt = now

	if err := m.saveCard(ctx, opUpdateCard, card); err != nil {
		return Card{}, err
	}
	return card, nil
}

// DeleteCard removes the persisted card, reporting whether one existed.
// Chunks referencing the card keep their dangling id; weak references are
// filtered by consumers, never repaired here.
func (m *Manager) DeleteCard(ctx context.Context, id string) (bool, error) {
	removed, err := m.store.Delete(ctx, store.KindCard, id)
	if err != nil {
		m.logError(opDeleteCard, "delete_failed", err, zap.String("id", id))
		return false, newServiceError(opDeleteCard, "delete_failed", storageFailure(err))
	}
	return removed, nil
}

// SplitCard cuts the card's content at a rune offset. The trimmed prefix
// stays on the original, the trimmed suffix becomes a new card placed right
// of the original. Both cards record the mutation itself and then a split
// history entry with their post-split content. An offset outside
// [0, len(content)] fails with ErrInvalidArgument and leaves the original
// untouched; clamping would silently corrupt authorial intent.
func (m *Manager) SplitCard(ctx context.Context, id string, splitPoint int) (Card, Card, error) {
	original, err := m.loadCard(ctx, opSplitCard, id)
	if err != nil {
		return Card{}, Card{}, err
	}

	runes := []rune(original.Content)
	if splitPoint < 0 || splitPoint > len(runes) {
		cause := fmt.Errorf("%w: split point %d outside [0, %d]", ErrInvalidArgument, splitPoint, len(runes))
		return Card{}, Card{}, newServiceError(opSplitCard, "split_point_out_of_range", cause)
	}

	prefix := strings.TrimSpace(string(runes[:splitPoint]))
	suffix := strings.TrimSpace(string(runes[splitPoint:]))
	now := m.now()

	newID, err := m.newID(opSplitCard)
	if err != nil {
		return Card{}, Card{}, err
	}

	newCard := Card{
		ID:      newID,
		Title:   ExtractTitle(suffix),
		Content: suffix,
		Tags:    cloneStrings(original.Tags),
		Status:  CardStatusDraft,
		History: []HistoryEntry{
			{Timestamp: now, Content: suffix, ChangeType: ChangeTypeCreate},
			{Timestamp: now, Content: suffix, ChangeType: ChangeTypeSplit},
		},
		Position: Position{
			X:      original.Position.X + original.Position.Width + m.layout.SplitGap,
			Y:      original.Position.Y,
			Width:  original.Position.Width,
			Height: original.Position.Height,
		},
		Metadata: Metadata{
			WordCount: CountWords(suffix),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	original.Content = prefix
	original.Title = ExtractTitle(prefix)
	original.Metadata.WordCount = CountWords(prefix)
	original.Metadata.UpdatedAt = now
	original.History = append(original.History,
		HistoryEntry{Timestamp: now, Content: prefix, ChangeType: ChangeTypeEdit},
		HistoryEntry{Timestamp: now, Content: prefix, ChangeType: ChangeTypeSplit},
	)

	// Not transactional: the new card lands first, then the original is
	// rewritten. A failure in between is recovered by retrying the split.
	if err := m.saveCard(ctx, opSplitCard, newCard); err != nil {
		return Card{}, Card{}, err
	}
	if err := m.saveCard(ctx, opSplitCard, original); err != nil {
		return Card{}, Card{}, err
	}
	return original, newCard, nil
}

// MergeCards concatenates B's content onto A with a blank-line separator,
// keeps A's identity, and deletes B once the merge has been persisted. B's
// history is discarded with it; no cross-reference survives.
func (m *Manager) MergeCards(ctx context.Context, idA, idB string) (Card, error) {
	if idA == idB {
		cause := fmt.Errorf("%w: cannot merge a card with itself", ErrInvalidArgument)
		return Card{}, newServiceError(opMergeCards, "same_card", cause)
	}

	cardA, err := m.loadCard(ctx, opMergeCards, idA)
	if err != nil {
		return Card{}, err
	}
	cardB, err := m.loadCard(ctx, opMergeCards, idB)
	if err != nil {
		return Card{}, err
	}

	now := m.now()
	merged := cardA.Content + "\n\n" + cardB.Content
	cardA.Content = merged
	cardA.Title = ExtractTitle(merged)
	cardA.Tags = unionTags(cardA.Tags, cardB.Tags)
	cardA.Metadata.WordCount = CountWords(merged)
	cardA.Metadata.UpdatedAt = now
	cardA.History = append(cardA.History, HistoryEntry{
		Timestamp:  now,
		Content:    merged,
		ChangeType: ChangeTypeMerge,
	})

	if err := m.saveCard(ctx, opMergeCards, cardA); err != nil {
		return Card{}, err
	}
	if _, err := m.store.Delete(ctx, store.KindCard, idB); err != nil {
		m.logError(opMergeCards, "retire_failed", err, zap.String("id", idB))
		return Card{}, newServiceError(opMergeCards, "retire_failed", storageFailure(err))
	}
	return cardA, nil
}

// AutoArrangeCards assigns deterministic positions to the referenced cards.
// Ids that no longer resolve are dropped silently; duplicate ids are placed
// independently, one slot per occurrence. Grid layouts fill rows of
// layout.Columns (default 3) with layout.Spacing (default 20) gutters using
// the policy card footprint; linear layouts use a single row; freeform
// leaves every position untouched. Repositioned cards are persisted one by
// one and returned in surviving input order.
func (m *Manager) AutoArrangeCards(ctx context.Context, cardIDs []string, layout ChunkLayout) ([]Card, error) {
	if !layout.Type.valid() {
		cause := fmt.Errorf("%w: unknown layout type %q", ErrInvalidArgument, layout.Type)
		return nil, newServiceError(opArrangeCards, "invalid_layout_type", cause)
	}

	resolved := make([]Card, 0, len(cardIDs))
	for _, id := range cardIDs {
		card, err := m.loadCard(ctx, opArrangeCards, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, card)
	}

	if layout.Type == LayoutTypeFreeform {
		return resolved, nil
	}

	columns := layout.Columns
	if columns <= 0 {
		columns = m.layout.GridColumns
	}
	spacing := layout.Spacing
	if spacing <= 0 {
		spacing = m.layout.GridSpacing
	}

	now := m.now()
	for index := range resolved {
		switch layout.Type {
		case LayoutTypeGrid:
			row := index / columns
			column := index % columns
			resolved[index].Position.X = float64(column) * (m.layout.CardWidth + spacing)
			resolved[index].Position.Y = float64(row) * (m.layout.CardHeight + spacing)
		case LayoutTypeLinear:
			resolved[index].Position.X = float64(index) * (m.layout.CardWidth + spacing)
			resolved[index].Position.Y = 0
		}
		resolved[index].Position.Width = m.layout.CardWidth
		resolved[index].Position.Height = m.layout.CardHeight
		resolved[index].Metadata.UpdatedAt = now
		if err := m.saveCard(ctx, opArrangeCards, resolved[index]); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func (m *Manager) loadCard(ctx context.Context, operation, id string) (Card, error) {
	var card Card
	if err := m.loadEntity(ctx, operation, store.KindCard, id, &card); err != nil {
		return Card{}, err
	}
	return card, nil
}

func (m *Manager) saveCard(ctx context.Context, operation string, card Card) error {
	return m.saveEntity(ctx, operation, store.KindCard, card.ID, card)
}

func (m *Manager) loadEntity(ctx context.Context, operation string, kind store.Kind, id string, target any) error {
	if strings.TrimSpace(id) == "" {
		cause := fmt.Errorf("%w: empty %s id", ErrInvalidArgument, kind)
		return newServiceError(operation, "empty_id", cause)
	}

	data, err := m.store.Load(ctx, kind, id)
	if errors.Is(err, store.ErrNotFound) {
		cause := fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
		return newServiceError(operation, "not_found", cause)
	}
	if err != nil {
		m.logError(operation, "load_failed", err, zap.String("id", id))
		return newServiceError(operation, "load_failed", storageFailure(err))
	}
	if err := json.Unmarshal(data, target); err != nil {
		m.logError(operation, "decode_failed", err, zap.String("id", id))
		return newServiceError(operation, "decode_failed", storageFailure(err))
	}
	return nil
}

func (m *Manager) saveEntity(ctx context.Context, operation string, kind store.Kind, id string, entity any) error {
	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		m.logError(operation, "encode_failed", err, zap.String("id", id))
		return newServiceError(operation, "encode_failed", storageFailure(err))
	}
	if err := m.store.Save(ctx, kind, id, data); err != nil {
		m.logError(operation, "save_failed", err, zap.String("id", id))
		return newServiceError(operation, "save_failed", storageFailure(err))
	}
	return nil
}

func storageFailure(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

func cloneStrings(tags []string) []string {
	cloned := make([]string, len(tags))
	copy(cloned, tags)
	return cloned
}

func unionTags(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	union := make([]string, 0, len(a)+len(b))
	for _, tag := range a {
		if _, ok := seen[tag]; !ok {
			seen[tag] = struct{}{}
			union = append(union, tag)
		}
	}
	for _, tag := range b {
		if _, ok := seen[tag]; !ok {
			seen[tag] = struct{}{}
			union = append(union, tag)
		}
	}
	return union
}

func (m *Manager) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	m.logger.Error("cards manager error", attrs...)
}
