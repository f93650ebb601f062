package stockroom

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheBasicOperations(t *testing.T) {
	cache := FactoryNewCache[string](10)

	items := []string{"item1", "item2", "item3", "item4", "item5"}
	for i, item := range items {
		index, err := cache.Register(item, item)
		require.NoError(t, err)
		assert.Equal(t, i, index)
	}

	for i, item := range items {
		index, found := cache.GetIndex(item)
		require.True(t, found)
		assert.Equal(t, i, index)
		assert.Equal(t, item, *cache.GetItem(index))
		assert.Equal(t, item, *cache.GetItem32(uint32(index)))
	}

	_, found := cache.GetIndex("nonexistent")
	assert.False(t, found)
	assert.Equal(t, len(items), cache.Len())
}

func TestCacheCapacity(t *testing.T) {
	const capacity = 5
	cache := FactoryNewCache[int](capacity)

	for i := 0; i < capacity; i++ {
		_, err := cache.Register("item"+strconv.Itoa(i), i)
		require.NoError(t, err)
	}
	_, err := cache.Register("overflow", 100)
	assert.Error(t, err)

	// Re-registering an existing key replaces it in place.
	idx, err := cache.Register("item2", 20)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.Equal(t, 20, *cache.GetItem(idx))
}

func TestCacheClear(t *testing.T) {
	cache := FactoryNewCache[int](3)
	for i := 0; i < 3; i++ {
		_, err := cache.Register(strconv.Itoa(i), i)
		require.NoError(t, err)
	}

	cache.Clear()
	assert.Zero(t, cache.Len())
	_, found := cache.GetIndex("0")
	assert.False(t, found)

	idx, err := cache.Register("again", 7)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestCacheAllAllowsInPlaceUpdates(t *testing.T) {
	cache := FactoryNewCache[[]int](4)
	for i := 0; i < 3; i++ {
		_, err := cache.Register(strconv.Itoa(i), nil)
		require.NoError(t, err)
	}
	for i, item := range cache.All() {
		*item = append(*item, i)
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, []int{i}, *cache.GetItem(i))
	}
}

func TestQueryCacheOverflow(t *testing.T) {
	adm := newTestAdmin(t, WithQueryCacheSize(1))
	pos := ComponentIDOf[Position]()
	vel := ComponentIDOf[Velocity]()
	_, err := adm.NewEntities(1, pos, vel)
	require.NoError(t, err)

	assert.Len(t, adm.GetArchetypes(pos), 1)
	// Served uncached once the cache is full.
	assert.Len(t, adm.GetArchetypes(vel), 1)
	assert.Equal(t, 1, adm.queries.Len())
}
