package renderer

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResource struct {
	updates int
}

func (c *countingResource) update() error {
	c.updates++
	return nil
}

func (c *countingResource) release() {}

func TestUpdateQueueMarksOnce(t *testing.T) {
	q := newUpdateQueue()
	a, b := &countingResource{}, &countingResource{}

	q.mark(a)
	q.mark(b)
	q.mark(a)
	assert.Equal(t, 2, q.len())

	drained := q.drain()
	require.Len(t, drained, 2)
	assert.Same(t, a, drained[0])
	assert.Same(t, b, drained[1])
	assert.Equal(t, 0, q.len())

	q.mark(a)
	assert.Equal(t, 1, q.len(), "a drained resource can be marked again")
}

func TestUpdateQueueConcurrentMarks(t *testing.T) {
	q := newUpdateQueue()
	resources := make([]*countingResource, 32)
	for i := range resources {
		resources[i] = &countingResource{}
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, r := range resources {
				q.mark(r)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, q.drain(), len(resources))
}

func TestDrawQueueSwapMovesCommands(t *testing.T) {
	var q drawQueue
	q.push(DrawCommand{StartIndex: 1})
	q.push(DrawCommand{StartIndex: 2})

	first := q.swap(nil)
	require.Len(t, first, 2)
	assert.Equal(t, uint32(1), first[0].StartIndex)
	assert.Equal(t, 0, q.len())

	q.push(DrawCommand{StartIndex: 3})
	second := q.swap(first)
	require.Len(t, second, 1)
	assert.Equal(t, uint32(3), second[0].StartIndex)

	// the recycled slice became the pending queue, emptied
	q.push(DrawCommand{StartIndex: 4})
	third := q.swap(second)
	require.Len(t, third, 1)
	assert.Equal(t, uint32(4), third[0].StartIndex)
}

func TestStateCacheSkipsUnchangedState(t *testing.T) {
	c := NewStateCache()
	shader := &fakeShader{}
	other := &fakeShader{}

	assert.True(t, c.SetShader(shader))
	assert.False(t, c.SetShader(shader))
	assert.True(t, c.SetShader(other))

	assert.True(t, c.SetBlendState(nil), "the first bind after a reset is always issued")
	assert.False(t, c.SetBlendState(nil))

	tex := &fakeTexture{}
	assert.True(t, c.SetTexture(0, tex))
	assert.False(t, c.SetTexture(0, tex))
	assert.True(t, c.SetTexture(1, tex))

	rect := common.Rectangle{X: 1, Y: 2, Width: 3, Height: 4}
	assert.True(t, c.SetScissor(true, rect))
	assert.False(t, c.SetScissor(true, rect))
	assert.True(t, c.SetScissor(true, common.Rectangle{Width: 1}))
	assert.True(t, c.SetScissor(false, rect))
	assert.False(t, c.SetScissor(false, common.Rectangle{}))

	assert.True(t, c.SetDrawMode(DrawModeLineList))
	assert.False(t, c.SetDrawMode(DrawModeLineList))

	c.Reset()
	assert.True(t, c.SetShader(other))
	assert.True(t, c.SetTexture(0, tex))
}

func TestStateCacheClearsTargetsOnce(t *testing.T) {
	var c StateCache
	rt := &fakeRenderTarget{}

	assert.True(t, c.NeedsClear(nil))
	assert.False(t, c.NeedsClear(nil))
	assert.True(t, c.NeedsClear(rt))
	assert.False(t, c.NeedsClear(rt))

	c.Reset()
	assert.True(t, c.NeedsClear(nil))
	assert.True(t, c.NeedsClear(rt))
}

func TestStateCacheForget(t *testing.T) {
	c := NewStateCache()
	shader := &fakeShader{}
	require.True(t, c.SetShader(shader))
	c.Forget(shader)
	assert.True(t, c.SetShader(shader))
}

func TestStateCacheInvalidateBindingsKeepsTarget(t *testing.T) {
	c := NewStateCache()
	shader, rt := &fakeShader{}, &fakeRenderTarget{}
	require.True(t, c.SetShader(shader))
	require.True(t, c.SetRenderTarget(rt))
	require.True(t, c.SetScissor(false, common.Rectangle{}))
	require.True(t, c.NeedsClear(rt))

	c.InvalidateBindings()
	assert.True(t, c.SetShader(shader))
	assert.True(t, c.SetScissor(false, common.Rectangle{}))
	assert.False(t, c.SetRenderTarget(rt))
	assert.False(t, c.NeedsClear(rt))
}

func TestPackConstants(t *testing.T) {
	infos := []ConstantInfo{{Name: "a", Size: 4}, {Name: "b", Size: 8}}

	buf, err := PackConstants(infos, [][]float32{{1}, {2, 3}}, 16)
	require.NoError(t, err)
	assert.Len(t, buf, 32)
	assert.Equal(t, []byte{0, 0, 0x80, 0x3f}, buf[0:4])
	assert.Equal(t, []byte{0, 0, 0, 0x40}, buf[16:20])

	buf, err = PackConstants(infos, [][]float32{{1}}, 0)
	require.NoError(t, err)
	assert.Len(t, buf, 12)

	_, err = PackConstants(infos, [][]float32{{1, 2}}, 0)
	assert.ErrorIs(t, err, ErrInvalidConstants)
}
