package cache

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_InsertAndRetrieve(t *testing.T) {
	c := New[string]("test", 3)
	assert.Equal(t, 3, c.GetBudget())

	require.NoError(t, c.Insert("a", "value_a", 1))
	require.NoError(t, c.Insert("b", "value_b", 2))
	assert.Equal(t, 3, c.GetWeight())

	value, ok := c.Retrieve("a")
	require.True(t, ok)
	assert.Equal(t, "value_a", value)

	_, ok = c.Retrieve("missing")
	assert.False(t, ok)

	assert.Equal(t, ErrKeyExists, c.Insert("a", "other", 1))
	value, _ = c.Retrieve("a")
	assert.Equal(t, "value_a", value)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int]("test", 2)

	require.NoError(t, c.Insert("evicted", 0, 1))
	require.NoError(t, c.Insert("a", 1, 1))
	require.NoError(t, c.Insert("b", 2, 1))
	assert.Equal(t, 2, c.GetWeight())

	_, ok := c.Retrieve("evicted")
	assert.False(t, ok)

	// Retrieving a makes b the least recently used item
	_, ok = c.Retrieve("a")
	require.True(t, ok)
	require.NoError(t, c.Insert("c", 3, 1))

	_, ok = c.Retrieve("b")
	assert.False(t, ok)
	for _, key := range []string{"a", "c"} {
		_, ok = c.Retrieve(key)
		assert.True(t, ok)
	}

	// A heavy item evicts everything else
	require.NoError(t, c.Insert("heavy", 4, 2))
	assert.Equal(t, 2, c.GetWeight())
	for _, key := range []string{"a", "c"} {
		_, ok = c.Retrieve(key)
		assert.False(t, ok)
	}
}

func TestCache_Clear(t *testing.T) {
	c := New[string]("test", 1)

	require.NoError(t, c.Insert("cleared", "value", 1))
	c.Clear()

	_, ok := c.Retrieve("cleared")
	assert.False(t, ok)
	assert.Equal(t, 0, c.GetWeight())

	require.NoError(t, c.Insert("cleared", "value", 1))
}

func TestCache_Concurrency(t *testing.T) {
	c := New[int]("test", 50)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				key := strconv.Itoa(worker*100 + j)
				assert.NoError(t, c.Insert(key, j, 1))
				c.Retrieve(key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, c.GetWeight())
}
