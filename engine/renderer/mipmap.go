package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/chewxy/math32"
)

const (
	gamma    = 2.2
	invGamma = 1.0 / 2.2

	// parallelRowThreshold is the destination row count from which a level is split across the worker pool.
	parallelRowThreshold = 128
	// rowsPerTask is the number of destination rows downsampled by one pool task.
	rowsPerTask = 64
)

// MipLevel is one level of a texture's mip chain in RGBA8.
type MipLevel struct {
	Size common.Size2
	Data []byte
}

// mipmapper produces mip chains, optionally spreading large levels over a worker pool.
type mipmapper struct {
	pool   worker.DynamicWorkerPool
	taskID int
	mu     sync.Mutex
}

func (m *mipmapper) nextID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskID++
	return m.taskID
}

// GenerateMipmaps builds the full mip chain for RGBA8 data of the given size, level 0 first.
// Both dimensions are halved while they are at least 2; after that the remaining dimension is halved
// alone with the missing row or column duplicated, down to 1x1.
//
// Parameters:
//   - width, height: the size of level 0 in pixels
//   - data: level 0 pixels, at least width*height*4 bytes
//
// Returns:
//   - []MipLevel: every level, level 0 included, or nil when either dimension is zero
func GenerateMipmaps(width, height uint32, data []byte) []MipLevel {
	var m mipmapper
	return m.generate(width, height, data)
}

func (m *mipmapper) generate(width, height uint32, data []byte) []MipLevel {
	if width == 0 || height == 0 {
		return nil
	}
	base := make([]byte, width*height*4)
	copy(base, data)
	levels := []MipLevel{{Size: sizeOf(width, height), Data: base}}

	current := base
	for width >= 2 && height >= 2 {
		current = m.downsample(width, height, width*4, current)
		width >>= 1
		height >>= 1
		levels = append(levels, MipLevel{Size: sizeOf(width, height), Data: current})
	}

	if width > height {
		for width >= 2 {
			// duplicate the single row so the 2x2 filter sees two identical rows
			doubled := make([]byte, width*8)
			copy(doubled, current[:width*4])
			copy(doubled[width*4:], current[:width*4])
			current = m.downsample(width, 2, width*4, doubled)
			width >>= 1
			levels = append(levels, MipLevel{Size: sizeOf(width, height), Data: current})
		}
	} else {
		for height >= 2 {
			// duplicate the single column so every row holds two identical pixels
			doubled := make([]byte, height*8)
			for y := uint32(0); y < height; y++ {
				copy(doubled[y*8:y*8+4], current[y*4:y*4+4])
				copy(doubled[y*8+4:y*8+8], current[y*4:y*4+4])
			}
			current = m.downsample(2, height, 8, doubled)
			height >>= 1
			levels = append(levels, MipLevel{Size: sizeOf(width, height), Data: current})
		}
	}

	return levels
}

// downsample halves an RGBA8 image, running row bands on the pool for large levels.
func (m *mipmapper) downsample(width, height, pitch uint32, src []byte) []byte {
	dstWidth := width / 2
	dstHeight := height / 2
	dst := make([]byte, dstWidth*dstHeight*4)

	if m.pool == nil || dstHeight < parallelRowThreshold {
		downsampleRows(dstWidth, pitch, src, dst, 0, dstHeight)
		return dst
	}

	var wg sync.WaitGroup
	for start := uint32(0); start < dstHeight; start += rowsPerTask {
		end := min(start+rowsPerTask, dstHeight)
		wg.Add(1)
		first, last := start, end
		m.pool.SubmitTask(worker.Task{
			ID: m.nextID(),
			Do: func() (any, error) {
				defer wg.Done()
				downsampleRows(dstWidth, pitch, src, dst, first, last)
				return nil, nil
			},
		})
	}
	wg.Wait()
	return dst
}

// downsampleRows averages 2x2 blocks for destination rows [first, last).
// Color is averaged in approximate linear light over the samples with non-zero alpha;
// alpha is averaged over all four samples.
func downsampleRows(dstWidth, pitch uint32, src, dst []byte, first, last uint32) {
	for y := first; y < last; y++ {
		row := src[y*2*pitch:]
		out := dst[y*dstWidth*4:]
		for x := uint32(0); x < dstWidth; x++ {
			p := row[x*8:]
			var r, g, b, a, pixels float32
			for _, off := range [4]uint32{0, 4, pitch, pitch + 4} {
				if p[off+3] > 0 {
					r += math32.Pow(float32(p[off]), gamma)
					g += math32.Pow(float32(p[off+1]), gamma)
					b += math32.Pow(float32(p[off+2]), gamma)
					pixels++
				}
				a += float32(p[off+3])
			}
			if pixels > 0 {
				r /= pixels
				g /= pixels
				b /= pixels
			}
			a *= 0.25
			o := out[x*4:]
			o[0] = uint8(math32.Pow(r, invGamma))
			o[1] = uint8(math32.Pow(g, invGamma))
			o[2] = uint8(math32.Pow(b, invGamma))
			o[3] = uint8(a)
		}
	}
}

func sizeOf(width, height uint32) common.Size2 {
	return common.Size2{Width: float32(width), Height: float32(height)}
}
