package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheSetGetDelete(t *testing.T) {
	c := NewCache()
	c.Set("b", 2)
	c.Set("a", "one")

	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, []string{"a", "b"}, c.Keys())

	c.Delete("b")
	_, ok = c.Get("b")
	assert.False(t, ok)

	c.Clear()
	assert.Empty(t, c.Keys())
}

func TestLookupTyped(t *testing.T) {
	c := NewCache()
	c.Set("n", 7)

	n, ok := Lookup[int](c, "n")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = Lookup[string](c, "n")
	assert.False(t, ok, "wrong type must not match")

	_, ok = Lookup[int](nil, "n")
	assert.False(t, ok)
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d-%d", i, j)
				c.Set(key, j)
				_, _ = c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, c.Keys(), 800)
}
