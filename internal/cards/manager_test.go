package cards

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/storyboardlab/cardboard/internal/store"
)

func TestNewManagerRequiresStore(t *testing.T) {
	_, err := NewManager(ManagerConfig{IDProvider: newSequentialIDProvider("id")})
	if err == nil {
		t.Fatalf("expected error for missing store")
	}
}

func TestNewManagerRequiresIDProvider(t *testing.T) {
	fileStore, err := store.NewFileStore(store.FileStoreConfig{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected file store error: %v", err)
	}
	if _, err := NewManager(ManagerConfig{Store: fileStore}); err == nil {
		t.Fatalf("expected error for missing id provider")
	}
}

func TestCreateCardSeedsSingleCreateHistoryEntry(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "Hello world, this is a card."})

	if len(card.History) != 1 {
		t.Fatalf("expected exactly one history entry, got %d", len(card.History))
	}
	if card.History[0].ChangeType != ChangeTypeCreate {
		t.Fatalf("expected create entry, got %q", card.History[0].ChangeType)
	}
	if card.History[0].Content != card.Content {
		t.Fatalf("history content %q does not match card content %q", card.History[0].Content, card.Content)
	}
	if card.Status != CardStatusDraft {
		t.Fatalf("expected draft status, got %q", card.Status)
	}
	if card.Metadata.WordCount != 6 {
		t.Fatalf("expected word count 6, got %d", card.Metadata.WordCount)
	}
	if !card.Metadata.CreatedAt.Equal(card.Metadata.UpdatedAt) {
		t.Fatalf("expected createdAt == updatedAt on creation")
	}
}

func TestCreateCardDerivesTitleWhenAbsent(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "Opening line\nmore text"})
	if card.Title != "Opening line" {
		t.Fatalf("unexpected derived title: %q", card.Title)
	}

	titled := mustCreateCard(t, manager, CreateCardRequest{Content: "body", Title: "Explicit"})
	if titled.Title != "Explicit" {
		t.Fatalf("expected explicit title, got %q", titled.Title)
	}
}

func TestCreateCardAssignsDefaultGeometry(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "x"})
	want := Position{X: 100, Y: 100, Width: 250, Height: 200}
	if card.Position != want {
		t.Fatalf("unexpected default position: %#v", card.Position)
	}
}

func TestLayoutPolicyWithDefaultsBackfillsDefaultPosition(t *testing.T) {
	policy := LayoutPolicy{CardWidth: 300, CardHeight: 180}.withDefaults()
	if policy.DefaultCardX != 100 || policy.DefaultCardY != 100 {
		t.Fatalf("unexpected default origin: %v, %v", policy.DefaultCardX, policy.DefaultCardY)
	}
	if policy.CardWidth != 300 || policy.CardHeight != 180 {
		t.Fatalf("explicit footprint overridden: %v x %v", policy.CardWidth, policy.CardHeight)
	}
}

func TestUpdateCardContentChangeAppendsEditEntry(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "before"})

	content := "after content here"
	updated, err := manager.UpdateCard(context.Background(), card.ID, CardPatch{Content: &content})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	if len(updated.History) != 2 {
		t.Fatalf("expected history to grow by one, got %d entries", len(updated.History))
	}
	last := updated.History[len(updated.History)-1]
	if last.ChangeType != ChangeTypeEdit {
		t.Fatalf("expected edit entry, got %q", last.ChangeType)
	}
	if last.Content != content {
		t.Fatalf("expected last entry content %q, got %q", content, last.Content)
	}
	if updated.Metadata.WordCount != CountWords(content) {
		t.Fatalf("expected word count %d, got %d", CountWords(content), updated.Metadata.WordCount)
	}
	if !updated.Metadata.UpdatedAt.After(card.Metadata.UpdatedAt) {
		t.Fatalf("expected updatedAt to advance")
	}
	if !updated.Metadata.CreatedAt.Equal(card.Metadata.CreatedAt) {
		t.Fatalf("createdAt must never change")
	}
}

func TestUpdateCardEmptyPatchRefreshesOnlyUpdatedAt(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "steady", Tags: []string{"keep"}})

	updated, err := manager.UpdateCard(context.Background(), card.ID, CardPatch{})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if len(updated.History) != len(card.History) {
		t.Fatalf("empty patch must not append history")
	}
	if updated.Content != card.Content {
		t.Fatalf("empty patch must not change content")
	}
	if updated.Metadata.WordCount != card.Metadata.WordCount {
		t.Fatalf("empty patch must not change word count")
	}
	if !reflect.DeepEqual(updated.Tags, card.Tags) {
		t.Fatalf("empty patch must not change tags")
	}
	if !updated.Metadata.UpdatedAt.After(card.Metadata.UpdatedAt) {
		t.Fatalf("empty patch must still refresh updatedAt")
	}
}

func TestUpdateCardSameContentAppendsNothing(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "unchanged"})

	same := card.Content
	updated, err := manager.UpdateCard(context.Background(), card.ID, CardPatch{Content: &same})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if len(updated.History) != 1 {
		t.Fatalf("identical content must not append an edit entry, got %d entries", len(updated.History))
	}
}

func TestUpdateCardMergesMetadataFieldByField(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "meta"})

	chunkID := "chunk-7"
	color := "#aabbcc"
	updated, err := manager.UpdateCard(context.Background(), card.ID, CardPatch{
		Metadata: &MetadataPatch{ChunkID: &chunkID, Color: &color},
	})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Metadata.ChunkID != chunkID || updated.Metadata.Color != color {
		t.Fatalf("unexpected metadata: %#v", updated.Metadata)
	}

	priority := 3
	updated, err = manager.UpdateCard(context.Background(), card.ID, CardPatch{
		Metadata: &MetadataPatch{Priority: &priority},
	})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Metadata.ChunkID != chunkID {
		t.Fatalf("partial metadata patch must not clear earlier fields")
	}
	if updated.Metadata.Priority != priority {
		t.Fatalf("expected priority %d, got %d", priority, updated.Metadata.Priority)
	}
}

func TestUpdateCardUnknownIDFailsWithNotFound(t *testing.T) {
	manager := newTestManager(t)
	_, err := manager.UpdateCard(context.Background(), "missing", CardPatch{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCardRejectsUnknownStatus(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "x"})

	bogus := CardStatus("archived")
	_, err := manager.UpdateCard(context.Background(), card.ID, CardPatch{Status: &bogus})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestDeleteCardReportsRemoval(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "x"})

	removed, err := manager.DeleteCard(context.Background(), card.ID)
	if err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if !removed {
		t.Fatalf("expected removal to be reported")
	}

	removed, err = manager.DeleteCard(context.Background(), card.ID)
	if err != nil {
		t.Fatalf("deleting a missing card must not error: %v", err)
	}
	if removed {
		t.Fatalf("second delete must report nothing removed")
	}
}

func TestSplitCardDividesContentAtOffset(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "A\n\nB", Tags: []string{"shared"}})

	original, created, err := manager.SplitCard(context.Background(), card.ID, 1)
	if err != nil {
		t.Fatalf("unexpected split error: %v", err)
	}
	if original.Content != "A" {
		t.Fatalf("unexpected prefix content: %q", original.Content)
	}
	if created.Content != "B" {
		t.Fatalf("unexpected suffix content: %q", created.Content)
	}
	if original.ID != card.ID {
		t.Fatalf("split must keep the original identity")
	}
	if created.ID == card.ID {
		t.Fatalf("split must mint a new id for the suffix card")
	}
	if !reflect.DeepEqual(created.Tags, card.Tags) {
		t.Fatalf("suffix card should inherit tags, got %#v", created.Tags)
	}
}

func TestSplitCardAppendsSplitEntryAfterMutationEntry(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "left right"})

	original, created, err := manager.SplitCard(context.Background(), card.ID, 4)
	if err != nil {
		t.Fatalf("unexpected split error: %v", err)
	}

	if len(original.History) != 3 {
		t.Fatalf("expected create+edit+split on original, got %d entries", len(original.History))
	}
	if original.History[1].ChangeType != ChangeTypeEdit || original.History[2].ChangeType != ChangeTypeSplit {
		t.Fatalf("unexpected original history order: %#v", original.History)
	}
	if original.History[2].Content != original.Content {
		t.Fatalf("split entry must record post-split content")
	}

	if len(created.History) != 2 {
		t.Fatalf("expected create+split on new card, got %d entries", len(created.History))
	}
	if created.History[0].ChangeType != ChangeTypeCreate || created.History[1].ChangeType != ChangeTypeSplit {
		t.Fatalf("unexpected created history order: %#v", created.History)
	}
}

func TestSplitCardPlacesNewCardToTheRight(t *testing.T) {
	manager := newTestManager(t)
	position := Position{X: 40, Y: 60, Width: 250, Height: 200}
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "ab cd", Position: &position})

	_, created, err := manager.SplitCard(context.Background(), card.ID, 2)
	if err != nil {
		t.Fatalf("unexpected split error: %v", err)
	}
	if created.Position.X != position.X+position.Width+20 {
		t.Fatalf("unexpected x: %v", created.Position.X)
	}
	if created.Position.Y != position.Y {
		t.Fatalf("unexpected y: %v", created.Position.Y)
	}
	if created.Position.Width != position.Width || created.Position.Height != position.Height {
		t.Fatalf("unexpected footprint: %#v", created.Position)
	}
}

func TestSplitCardRejectsOutOfRangeOffset(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "short"})

	for _, splitPoint := range []int{-1, len(card.Content) + 1} {
		_, _, err := manager.SplitCard(context.Background(), card.ID, splitPoint)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument for offset %d, got %v", splitPoint, err)
		}
	}

	reloaded, err := manager.GetCard(context.Background(), card.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if reloaded.Content != card.Content || len(reloaded.History) != len(card.History) {
		t.Fatalf("rejected split must leave the original unchanged")
	}
}

func TestSplitThenMergeRoundTrips(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "A\n\nB"})

	original, created, err := manager.SplitCard(context.Background(), card.ID, 1)
	if err != nil {
		t.Fatalf("unexpected split error: %v", err)
	}

	merged, err := manager.MergeCards(context.Background(), original.ID, created.ID)
	if err != nil {
		t.Fatalf("unexpected merge error: %v", err)
	}
	if merged.Content != "A\n\nB" {
		t.Fatalf("round trip produced %q", merged.Content)
	}
}

func TestMergeCardsUnionsTagsAndRetiresSecondCard(t *testing.T) {
	manager := newTestManager(t)
	cardA := mustCreateCard(t, manager, CreateCardRequest{Content: "alpha", Tags: []string{"x", "y"}})
	cardB := mustCreateCard(t, manager, CreateCardRequest{Content: "beta", Tags: []string{"y", "z"}})

	merged, err := manager.MergeCards(context.Background(), cardA.ID, cardB.ID)
	if err != nil {
		t.Fatalf("unexpected merge error: %v", err)
	}
	if merged.ID != cardA.ID {
		t.Fatalf("merge must preserve the first card's identity")
	}
	if merged.Content != "alpha\n\nbeta" {
		t.Fatalf("unexpected merged content: %q", merged.Content)
	}
	if !reflect.DeepEqual(merged.Tags, []string{"x", "y", "z"}) {
		t.Fatalf("unexpected tag union: %#v", merged.Tags)
	}
	last := merged.History[len(merged.History)-1]
	if last.ChangeType != ChangeTypeMerge || last.Content != merged.Content {
		t.Fatalf("unexpected merge history entry: %#v", last)
	}

	if _, err := manager.GetCard(context.Background(), cardB.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("retired card must be gone, got %v", err)
	}
}

func TestMergeCardsUnknownIDFailsWithNotFound(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "alone"})

	if _, err := manager.MergeCards(context.Background(), card.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := manager.MergeCards(context.Background(), "missing", card.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMergeCardRejectsSelfMerge(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "solo"})

	if _, err := manager.MergeCards(context.Background(), card.ID, card.ID); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestAutoArrangeGridPlacesByReadingOrder(t *testing.T) {
	manager := newTestManager(t)
	ids := make([]string, 0, 5)
	for range 5 {
		ids = append(ids, mustCreateCard(t, manager, CreateCardRequest{Content: "c"}).ID)
	}

	arranged, err := manager.AutoArrangeCards(context.Background(), ids, ChunkLayout{Type: LayoutTypeGrid, Columns: 3})
	if err != nil {
		t.Fatalf("unexpected arrange error: %v", err)
	}
	if len(arranged) != 5 {
		t.Fatalf("expected 5 arranged cards, got %d", len(arranged))
	}

	// Index 3 is row 1, column 0.
	if arranged[3].Position.X != 0 {
		t.Fatalf("expected x=0 for index 3, got %v", arranged[3].Position.X)
	}
	if arranged[3].Position.Y != 220 {
		t.Fatalf("expected y=220 for index 3, got %v", arranged[3].Position.Y)
	}
	// Index 1 is row 0, column 1.
	if arranged[1].Position.X != 270 || arranged[1].Position.Y != 0 {
		t.Fatalf("unexpected position for index 1: %#v", arranged[1].Position)
	}
}

func TestAutoArrangeLinearUsesSingleRow(t *testing.T) {
	manager := newTestManager(t)
	ids := []string{
		mustCreateCard(t, manager, CreateCardRequest{Content: "a"}).ID,
		mustCreateCard(t, manager, CreateCardRequest{Content: "b"}).ID,
	}

	arranged, err := manager.AutoArrangeCards(context.Background(), ids, ChunkLayout{Type: LayoutTypeLinear})
	if err != nil {
		t.Fatalf("unexpected arrange error: %v", err)
	}
	if arranged[0].Position.X != 0 || arranged[0].Position.Y != 0 {
		t.Fatalf("unexpected first position: %#v", arranged[0].Position)
	}
	if arranged[1].Position.X != 270 || arranged[1].Position.Y != 0 {
		t.Fatalf("unexpected second position: %#v", arranged[1].Position)
	}
}

func TestAutoArrangeFreeformLeavesPositionsUntouched(t *testing.T) {
	manager := newTestManager(t)
	position := Position{X: 7, Y: 13, Width: 250, Height: 200}
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "pinned", Position: &position})

	arranged, err := manager.AutoArrangeCards(context.Background(), []string{card.ID}, ChunkLayout{Type: LayoutTypeFreeform})
	if err != nil {
		t.Fatalf("unexpected arrange error: %v", err)
	}
	if arranged[0].Position != position {
		t.Fatalf("freeform must not move cards: %#v", arranged[0].Position)
	}
}

func TestAutoArrangeDropsUnresolvedIDsSilently(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "real"})

	arranged, err := manager.AutoArrangeCards(context.Background(),
		[]string{"ghost-1", card.ID, "ghost-2"},
		ChunkLayout{Type: LayoutTypeGrid})
	if err != nil {
		t.Fatalf("unexpected arrange error: %v", err)
	}
	if len(arranged) != 1 || arranged[0].ID != card.ID {
		t.Fatalf("expected only the surviving card, got %#v", arranged)
	}
}

func TestAutoArrangePlacesDuplicateIDsIndependently(t *testing.T) {
	manager := newTestManager(t)
	card := mustCreateCard(t, manager, CreateCardRequest{Content: "twice"})

	arranged, err := manager.AutoArrangeCards(context.Background(),
		[]string{card.ID, card.ID},
		ChunkLayout{Type: LayoutTypeLinear})
	if err != nil {
		t.Fatalf("unexpected arrange error: %v", err)
	}
	if len(arranged) != 2 {
		t.Fatalf("duplicates must occupy one slot each, got %d", len(arranged))
	}
	if arranged[0].Position.X == arranged[1].Position.X {
		t.Fatalf("each occurrence must be placed independently")
	}
}

func TestAutoArrangeRejectsUnknownLayoutType(t *testing.T) {
	manager := newTestManager(t)
	_, err := manager.AutoArrangeCards(context.Background(), nil, ChunkLayout{Type: "spiral"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
