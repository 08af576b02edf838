package cards

import (
	"errors"
	"time"
)

// CardStatus enumerates the caller-controlled editorial states of a card.
type CardStatus string

const (
	// CardStatusDraft is the initial state of every new card.
	CardStatusDraft CardStatus = "draft"
	// CardStatusEdited marks a card that has been revised by the author.
	CardStatusEdited CardStatus = "edited"
	// CardStatusReviewed marks a card that has passed review.
	CardStatusReviewed CardStatus = "reviewed"
	// CardStatusFinal marks a card whose content is considered done.
	CardStatusFinal CardStatus = "final"
)

// ChangeType enumerates the kinds of mutation recorded in a card's history.
type ChangeType string

const (
	// ChangeTypeCreate tags the first history entry of every card.
	ChangeTypeCreate ChangeType = "create"
	// ChangeTypeEdit tags a content revision.
	ChangeTypeEdit ChangeType = "edit"
	// ChangeTypeMerge tags the surviving card of a merge.
	ChangeTypeMerge ChangeType = "merge"
	// ChangeTypeSplit tags both halves of a split.
	ChangeTypeSplit ChangeType = "split"
)

// LayoutType enumerates the chunk layout strategies.
type LayoutType string

const (
	// LayoutTypeGrid places cards in reading order on a fixed-column grid.
	LayoutTypeGrid LayoutType = "grid"
	// LayoutTypeLinear places cards on a single row.
	LayoutTypeLinear LayoutType = "linear"
	// LayoutTypeFreeform leaves card positions untouched.
	LayoutTypeFreeform LayoutType = "freeform"
)

// SplitMode enumerates the segmentation strategies for text import.
type SplitMode string

const (
	// SplitModeParagraph segments imported text on blank-line boundaries.
	SplitModeParagraph SplitMode = "paragraph"
	// SplitModeSentence segments imported text on sentence-terminal punctuation.
	SplitModeSentence SplitMode = "sentence"
	// SplitModeCustom keeps the whole text as a single segment.
	SplitModeCustom SplitMode = "custom"
)

var (
	// ErrNotFound indicates that a referenced id does not resolve to a
	// persisted entity of the expected kind.
	ErrNotFound = errors.New("cards: not found")
	// ErrInvalidArgument indicates that a caller-supplied value violates a
	// stated constraint. No partial mutation is performed.
	ErrInvalidArgument = errors.New("cards: invalid argument")
	// ErrStorage indicates an underlying storage failure distinct from a
	// missing document.
	ErrStorage = errors.New("cards: storage failure")
)

// HistoryEntry is one immutable snapshot of a card's content at a point in
// time, tagged with the kind of change that produced it.
type HistoryEntry struct {
	Timestamp  time.Time  `json:"timestamp"`
	Content    string     `json:"content"`
	ChangeType ChangeType `json:"changeType"`
	Author     string     `json:"author,omitempty"`
}

// Position is the layout geometry of a card on the board.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	ZIndex int     `json:"zIndex,omitempty"`
}

// Metadata carries derived and caller-assigned card attributes. WordCount is
// recomputed from content on every content change; CreatedAt never changes
// after creation; UpdatedAt is refreshed on every mutation.
type Metadata struct {
	WordCount int       `json:"wordCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ChunkID   string    `json:"chunkId,omitempty"`
	Color     string    `json:"color,omitempty"`
	Priority  int       `json:"priority,omitempty"`
}

// Card is an atomic unit of written content with its own revision history
// and screen position. History is append-only and always holds at least the
// initial create entry.
type Card struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Tags     []string       `json:"tags"`
	Status   CardStatus     `json:"status"`
	History  []HistoryEntry `json:"history"`
	Position Position       `json:"position"`
	Metadata Metadata       `json:"metadata"`
}

// ChunkLayout describes how a chunk arranges its cards.
type ChunkLayout struct {
	Type        LayoutType `json:"type"`
	Columns     int        `json:"columns,omitempty"`
	Spacing     float64    `json:"spacing,omitempty"`
	AutoArrange bool       `json:"autoArrange,omitempty"`
}

// ContentChunk is an ordered grouping of cards. CardIDs order is
// semantically meaningful and preserved exactly as given; ids are weak
// references and may point at cards that no longer exist.
type ContentChunk struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Purpose string      `json:"purpose"`
	CardIDs []string    `json:"cardIds"`
	Layout  ChunkLayout `json:"layout"`
}

// CenterPoint is the pan origin of a view.
type CenterPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ViewSettings carries the zoom/pan/display configuration of a view.
type ViewSettings struct {
	Zoom            float64     `json:"zoom"`
	CenterPoint     CenterPoint `json:"centerPoint"`
	ShowMetadata    bool        `json:"showMetadata"`
	ShowConnections bool        `json:"showConnections"`
	GroupBy         string      `json:"groupBy,omitempty"`
}

// CardboardView is a named spatial arrangement referencing chunks by id.
// ChunkIDs are weak references, same as a chunk's CardIDs.
type CardboardView struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	ChunkIDs     []string     `json:"chunkIds"`
	ViewSettings ViewSettings `json:"viewSettings"`
}

// MetadataPatch enumerates the caller-patchable metadata fields. WordCount,
// CreatedAt and UpdatedAt are derived and cannot be patched.
type MetadataPatch struct {
	ChunkID  *string
	Color    *string
	Priority *int
}

// CardPatch enumerates the fields a card update may change. Nil fields are
// left untouched; non-nil top-level fields replace, Metadata merges field
// by field.
type CardPatch struct {
	Title    *string
	Content  *string
	Tags     *[]string
	Status   *CardStatus
	Position *Position
	Metadata *MetadataPatch
	Author   string
}

// ChunkPatch enumerates the fields a chunk update may change.
type ChunkPatch struct {
	Name    *string
	Purpose *string
	CardIDs *[]string
	Layout  *ChunkLayout
}

// ViewPatch enumerates the fields a view update may change.
type ViewPatch struct {
	Name         *string
	Description  *string
	ChunkIDs     *[]string
	ViewSettings *ViewSettings
}

func (s CardStatus) valid() bool {
	switch s {
	case CardStatusDraft, CardStatusEdited, CardStatusReviewed, CardStatusFinal:
		return true
	}
	return false
}

func (t LayoutType) valid() bool {
	switch t {
	case LayoutTypeGrid, LayoutTypeLinear, LayoutTypeFreeform:
		return true
	}
	return false
}

func (m SplitMode) valid() bool {
	switch m {
	case SplitModeParagraph, SplitModeSentence, SplitModeCustom:
		return true
	}
	return false
}
