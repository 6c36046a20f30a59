package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appnyang/leafreader/internal/core/domain"
)

func TestBoundaryCache(t *testing.T) {
	c, err := NewBoundaryCache(2)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	pages := []domain.Page{{Index: 0, Start: 0, End: 5, ByteEnd: 5, Text: "hello"}}
	require.NoError(t, c.Put(ctx, "a", pages))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0].End)
	assert.Empty(t, got[0].Text)

	// Callers may not mutate the cached entry
	got[0].End = 99
	again, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(5), again[0].End)
}

func TestBoundaryCache_Evicts(t *testing.T) {
	c, err := NewBoundaryCache(2)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "a", nil))
	require.NoError(t, c.Put(ctx, "b", nil))
	_, err = c.Get(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "c", nil))

	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = c.Get(ctx, "a")
	assert.NoError(t, err)
}

func TestNewBoundaryCache_DefaultSize(t *testing.T) {
	c, err := NewBoundaryCache(0)
	require.NoError(t, err)
	assert.NotNil(t, c)
}
