package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store, err := newMemoryStore(&Config{Dimension: 4})
	require.NoError(t, err)

	t.Run("ShouldUpsertAndSearchByCosine", func(t *testing.T) {
		records := []Record{
			{ID: "a", Text: "alpha", Embedding: []float32{1, 0, 0, 0}, Metadata: map[string]any{"doc_id": "one"}},
			{ID: "b", Text: "bravo", Embedding: []float32{0, 1, 0, 0}, Metadata: map[string]any{"doc_id": "two"}},
		}
		require.NoError(t, store.Upsert(ctx, records))
		matches, err := store.Search(ctx, []float32{1, 0, 0, 0}, SearchOptions{TopK: 1})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "a", matches[0].ID)
	})

	t.Run("ShouldFilterByMetadata", func(t *testing.T) {
		matches, err := store.Search(
			ctx,
			[]float32{0, 1, 0, 0},
			SearchOptions{TopK: 2, Filters: map[string]string{"doc_id": "two"}},
		)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "b", matches[0].ID)
	})

	t.Run("ShouldFetchExistingIDsOnly", func(t *testing.T) {
		records, err := store.Fetch(ctx, []string{"a", "missing"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "a", records[0].ID)
		assert.Equal(t, "alpha", records[0].Text)
	})

	t.Run("ShouldDeleteByID", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, Filter{IDs: []string{"a"}}))
		matches, err := store.Search(ctx, []float32{1, 0, 0, 0}, SearchOptions{TopK: 2, MinScore: 0.1})
		require.NoError(t, err)
		require.Len(t, matches, 0)
	})

	t.Run("ShouldDeleteByMetadata", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, Filter{Metadata: map[string]string{"doc_id": "two"}}))
		records, err := store.Fetch(ctx, []string{"b"})
		require.NoError(t, err)
		require.Len(t, records, 0)
	})

	t.Run("ShouldFailUpsertWhenDimensionMismatch", func(t *testing.T) {
		mismatchStore, err := newMemoryStore(&Config{Dimension: 4})
		require.NoError(t, err)
		upsertErr := mismatchStore.Upsert(ctx, []Record{{ID: "bad", Embedding: []float32{1, 1, 1}}})
		require.Error(t, upsertErr)
	})

	t.Run("ShouldFailSearchWhenQueryDimensionMismatch", func(t *testing.T) {
		otherStore, err := newMemoryStore(&Config{Dimension: 2})
		require.NoError(t, err)
		record := Record{ID: "c", Embedding: []float32{1, 0}}
		require.NoError(t, otherStore.Upsert(ctx, []Record{record}))
		_, searchErr := otherStore.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 1})
		require.Error(t, searchErr)
	})

	t.Run("ShouldDropMatchesScoringExactlyAtTheFloor", func(t *testing.T) {
		floorStore, err := newMemoryStore(&Config{Dimension: 2})
		require.NoError(t, err)
		records := []Record{
			{ID: "f", Text: "foxtrot", Embedding: []float32{1, 0}},
			{ID: "g", Text: "golf", Embedding: []float32{0, 1}},
		}
		require.NoError(t, floorStore.Upsert(ctx, records))
		matches, err := floorStore.Search(ctx, []float32{0, 1}, SearchOptions{TopK: 5, MinScore: 1})
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("ShouldReturnNegativeSimilarityMatchesWithoutFloor", func(t *testing.T) {
		openStore, err := newMemoryStore(&Config{Dimension: 2})
		require.NoError(t, err)
		record := Record{ID: "h", Text: "hotel", Embedding: []float32{1, 0}}
		require.NoError(t, openStore.Upsert(ctx, []Record{record}))
		matches, err := openStore.Search(ctx, []float32{-1, 0}, SearchOptions{TopK: 5})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "h", matches[0].ID)
		assert.Less(t, matches[0].Score, 0.0)
	})

	t.Run("ShouldRespectTopKWhenExceedingAvailableRecords", func(t *testing.T) {
		limitedStore, err := newMemoryStore(&Config{Dimension: 2})
		require.NoError(t, err)
		records := []Record{
			{ID: "d", Text: "delta", Embedding: []float32{1, 0}},
			{ID: "e", Text: "echo", Embedding: []float32{0, 1}},
		}
		require.NoError(t, limitedStore.Upsert(ctx, records))
		matches, err := limitedStore.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 10})
		require.NoError(t, err)
		require.Len(t, matches, 2)
	})
}

func TestValidateConfig(t *testing.T) {
	t.Run("ShouldRejectMissingProvider", func(t *testing.T) {
		err := validateConfig(&Config{Collection: "c", Dimension: 3})
		require.ErrorIs(t, err, errMissingProvider)
	})

	t.Run("ShouldRejectRemoteProviderWithoutDSN", func(t *testing.T) {
		err := validateConfig(&Config{Provider: ProviderQdrant, Collection: "c", Dimension: 3})
		require.ErrorIs(t, err, errMissingDSN)
	})

	t.Run("ShouldRejectNonPositiveDimension", func(t *testing.T) {
		err := validateConfig(&Config{Provider: ProviderMemory, Collection: "c"})
		require.ErrorIs(t, err, errInvalidDimension)
	})

	t.Run("ShouldAcceptMemoryProviderWithoutDSN", func(t *testing.T) {
		err := validateConfig(&Config{Provider: ProviderMemory, Collection: "c", Dimension: 3})
		require.NoError(t, err)
	})
}
