package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, GroupMembersKey("g1"), []byte(`["a","b"]`), time.Minute))

	got, err := c.Get(ctx, GroupMembersKey("g1"))
	require.NoError(t, err)
	assert.Equal(t, []byte(`["a","b"]`), got)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache()

	_, err := c.Get(context.Background(), UserPermissionsKey("nobody"))
	assert.True(t, IsMiss(err))
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, CategoryListKey(), []byte(`[]`), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, CategoryListKey())
	assert.True(t, IsMiss(err))
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, AutoRecruitGroupsKey(), []byte(`[]`), time.Minute))
	require.NoError(t, c.Delete(ctx, AutoRecruitGroupsKey()))

	_, err := c.Get(ctx, AutoRecruitGroupsKey())
	assert.True(t, IsMiss(err))
}
