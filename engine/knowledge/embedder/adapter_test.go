package embedder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	queryCalls int
	docCalls   int
	err        error
	vectorLen  int
	mismatch   bool
}

func (c *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	c.docCalls++
	if c.err != nil {
		return nil, c.err
	}
	count := len(texts)
	if c.mismatch {
		count--
	}
	out := make([][]float32, count)
	for i := range out {
		out[i] = make([]float32, c.vectorLen)
	}
	return out, nil
}

func (c *countingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	c.queryCalls++
	if c.err != nil {
		return nil, c.err
	}
	vector := make([]float32, c.vectorLen)
	vector[0] = 1
	return vector, nil
}

func testConfig() *Config {
	return &Config{Provider: ProviderOpenAI, Model: "test-model", Dimension: 4}
}

func TestWrap(t *testing.T) {
	t.Run("ShouldRejectMissingProvider", func(t *testing.T) {
		_, err := Wrap(&Config{Model: "m", Dimension: 4}, &countingEmbedder{vectorLen: 4})
		require.ErrorIs(t, err, errMissingProvider)
	})

	t.Run("ShouldRejectMissingModel", func(t *testing.T) {
		_, err := Wrap(&Config{Provider: ProviderOpenAI, Dimension: 4}, &countingEmbedder{vectorLen: 4})
		require.ErrorIs(t, err, errMissingModel)
	})

	t.Run("ShouldRejectNonPositiveDimension", func(t *testing.T) {
		_, err := Wrap(&Config{Provider: ProviderOpenAI, Model: "m"}, &countingEmbedder{vectorLen: 4})
		require.ErrorIs(t, err, errInvalidDimension)
	})

	t.Run("ShouldRejectNilImplementation", func(t *testing.T) {
		_, err := Wrap(testConfig(), nil)
		require.Error(t, err)
	})
}

func TestAdapter_EmbedDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldDelegateToImplementation", func(t *testing.T) {
		impl := &countingEmbedder{vectorLen: 4}
		adapter, err := Wrap(testConfig(), impl)
		require.NoError(t, err)
		vectors, err := adapter.EmbedDocuments(ctx, []string{"a", "b"})
		require.NoError(t, err)
		assert.Len(t, vectors, 2)
		assert.Equal(t, 1, impl.docCalls)
	})

	t.Run("ShouldFailWhenCountsDoNotMatch", func(t *testing.T) {
		adapter, err := Wrap(testConfig(), &countingEmbedder{vectorLen: 4, mismatch: true})
		require.NoError(t, err)
		_, err = adapter.EmbedDocuments(ctx, []string{"a", "b"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "test-model")
	})

	t.Run("ShouldWrapProviderErrors", func(t *testing.T) {
		backendErr := errors.New("quota exceeded")
		adapter, err := Wrap(testConfig(), &countingEmbedder{err: backendErr})
		require.NoError(t, err)
		_, err = adapter.EmbedDocuments(ctx, []string{"a"})
		require.ErrorIs(t, err, backendErr)
	})
}

func TestAdapter_EmbedQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("ShouldServeRepeatQueriesFromCache", func(t *testing.T) {
		impl := &countingEmbedder{vectorLen: 4}
		adapter, err := Wrap(testConfig(), impl)
		require.NoError(t, err)
		require.NoError(t, adapter.EnableCache(8))
		first, err := adapter.EmbedQuery(ctx, "same question")
		require.NoError(t, err)
		second, err := adapter.EmbedQuery(ctx, "same question")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, impl.queryCalls)
	})

	t.Run("ShouldReturnClonesFromCache", func(t *testing.T) {
		impl := &countingEmbedder{vectorLen: 4}
		adapter, err := Wrap(testConfig(), impl)
		require.NoError(t, err)
		require.NoError(t, adapter.EnableCache(8))
		first, err := adapter.EmbedQuery(ctx, "q")
		require.NoError(t, err)
		first[0] = 99
		second, err := adapter.EmbedQuery(ctx, "q")
		require.NoError(t, err)
		assert.NotEqual(t, float32(99), second[0])
	})

	t.Run("ShouldNotCacheWhenDisabled", func(t *testing.T) {
		impl := &countingEmbedder{vectorLen: 4}
		adapter, err := Wrap(testConfig(), impl)
		require.NoError(t, err)
		_, err = adapter.EmbedQuery(ctx, "q")
		require.NoError(t, err)
		_, err = adapter.EmbedQuery(ctx, "q")
		require.NoError(t, err)
		assert.Equal(t, 2, impl.queryCalls)
	})

	t.Run("ShouldRejectNonPositiveCacheSize", func(t *testing.T) {
		adapter, err := Wrap(testConfig(), &countingEmbedder{vectorLen: 4})
		require.NoError(t, err)
		require.Error(t, adapter.EnableCache(0))
	})
}
