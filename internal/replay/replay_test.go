package replay

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferEvictsOldest(t *testing.T) {
	t.Parallel()

	b := NewBuffer[int](3)
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []int{3, 4, 5}, b.All())

	last, ok := b.Last()
	require.True(t, ok)
	assert.Equal(t, 5, last)
}

func TestBufferEmpty(t *testing.T) {
	t.Parallel()

	b := NewBuffer[string](4)
	assert.Zero(t, b.Len())
	assert.Empty(t, b.All())

	_, ok := b.Last()
	assert.False(t, ok)
	_, ok = b.Find(func(string) bool { return true })
	assert.False(t, ok)
}

func TestBufferFindNewestFirst(t *testing.T) {
	t.Parallel()

	b := NewBuffer[string](8)
	b.Add("d-1")
	b.Add("d-2")
	b.Add("d-2") // duplicate id, newer wins

	got, ok := b.Find(func(s string) bool { return s == "d-2" })
	require.True(t, ok)
	assert.Equal(t, "d-2", got)

	_, ok = b.Find(func(s string) bool { return s == "d-9" })
	assert.False(t, ok)
}

func TestBufferDefaultCapacity(t *testing.T) {
	t.Parallel()

	b := NewBuffer[int](0)
	for i := 0; i < DefaultCapacity+10; i++ {
		b.Add(i)
	}
	assert.Equal(t, DefaultCapacity, b.Len())
}

func TestBufferConcurrentAddAndRead(t *testing.T) {
	t.Parallel()

	b := NewBuffer[string](16)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Add(fmt.Sprintf("g%d-%d", g, i))
				b.Last()
				b.All()
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 16, b.Len())
}
