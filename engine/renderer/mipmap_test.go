package renderer

import (
	"bytes"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(width, height uint32, pixel []byte) []byte {
	return bytes.Repeat(pixel, int(width*height))
}

func TestGenerateMipmapsSolidColor(t *testing.T) {
	levels := GenerateMipmaps(4, 4, solid(4, 4, []byte{200, 100, 50, 255}))
	require.Len(t, levels, 3)

	assert.Equal(t, common.Size2{Width: 4, Height: 4}, levels[0].Size)
	assert.Equal(t, common.Size2{Width: 2, Height: 2}, levels[1].Size)
	assert.Equal(t, common.Size2{Width: 1, Height: 1}, levels[2].Size)

	last := levels[2].Data
	require.Len(t, last, 4)
	assert.InDelta(t, 200, int(last[0]), 1)
	assert.InDelta(t, 100, int(last[1]), 1)
	assert.InDelta(t, 50, int(last[2]), 1)
	assert.Equal(t, byte(255), last[3])
}

func TestGenerateMipmapsLevelSizes(t *testing.T) {
	tests := []struct {
		width, height uint32
		levels        int
	}{
		{1, 1, 1},
		{2, 2, 2},
		{256, 256, 9},
		{64, 16, 7},
		{16, 64, 7},
		{8, 1, 4},
		{1, 8, 4},
		{5, 3, 3},
		{7, 7, 3},
	}
	for _, tt := range tests {
		levels := GenerateMipmaps(tt.width, tt.height, make([]byte, tt.width*tt.height*4))
		require.Len(t, levels, tt.levels, "%dx%d", tt.width, tt.height)

		last := levels[len(levels)-1]
		assert.Equal(t, common.Size2{Width: 1, Height: 1}, last.Size, "%dx%d", tt.width, tt.height)
		for _, level := range levels {
			assert.Len(t, level.Data, int(level.Size.Width*level.Size.Height*4))
		}
	}
}

func TestGenerateMipmapsCopiesBaseLevel(t *testing.T) {
	data := solid(2, 2, []byte{1, 2, 3, 4})
	levels := GenerateMipmaps(2, 2, data)
	data[0] = 99
	assert.Equal(t, byte(1), levels[0].Data[0])
}

func TestGenerateMipmapsIgnoresTransparentColor(t *testing.T) {
	data := []byte{
		255, 0, 0, 255, 0, 0, 255, 0,
		0, 0, 255, 0, 0, 0, 255, 0,
	}
	levels := GenerateMipmaps(2, 2, data)
	require.Len(t, levels, 2)

	// the only opaque sample decides the color, alpha is averaged over all four
	out := levels[1].Data
	assert.InDelta(t, 255, int(out[0]), 1)
	assert.Equal(t, byte(0), out[1])
	assert.Equal(t, byte(0), out[2])
	assert.Equal(t, byte(63), out[3])
}

func TestGenerateMipmapsRowPhaseDuplicates(t *testing.T) {
	// 2x1: the single row is duplicated, so the result averages the two pixels
	data := []byte{100, 100, 100, 255, 100, 100, 100, 255}
	levels := GenerateMipmaps(2, 1, data)
	require.Len(t, levels, 2)
	assert.Equal(t, common.Size2{Width: 1, Height: 1}, levels[1].Size)
	assert.InDelta(t, 100, int(levels[1].Data[0]), 1)
	assert.Equal(t, byte(255), levels[1].Data[3])
}

func TestGenerateMipmapsParallelMatchesSerial(t *testing.T) {
	const size = 512
	data := make([]byte, size*size*4)
	for i := range data {
		data[i] = byte(i * 7)
	}

	serial := GenerateMipmaps(size, size, data)

	m := &mipmapper{pool: worker.NewDynamicWorkerPool(4, 64, time.Second)}
	parallel := m.generate(size, size, data)

	require.Len(t, parallel, len(serial))
	for i := range serial {
		assert.Equal(t, serial[i].Size, parallel[i].Size)
		assert.True(t, bytes.Equal(serial[i].Data, parallel[i].Data), "level %d", i)
	}
}

func TestGenerateMipmapsEmptySize(t *testing.T) {
	assert.Nil(t, GenerateMipmaps(0, 4, nil))
	assert.Nil(t, GenerateMipmaps(4, 0, make([]byte, 64)))
}
