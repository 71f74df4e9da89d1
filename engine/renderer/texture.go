package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// Texture is a 2D RGBA8 image on the GPU, optionally with a mip chain.
type Texture struct {
	resource

	size         common.Size2
	dynamic      bool
	mipmaps      bool
	renderTarget bool
	filename     string
	levels       []MipLevel

	// render goroutine only
	object   TextureObject
	uploaded TextureDesc
	synced   bool
}

var _ Resource = &Texture{}

func newTexture(owner *renderer, size common.Size2, dynamic, mipmaps, renderTarget bool) *Texture {
	t := &Texture{
		size:         size,
		dynamic:      dynamic,
		mipmaps:      mipmaps,
		renderTarget: renderTarget,
	}
	t.owner = owner
	return t
}

// Size returns the texture size in pixels.
func (t *Texture) Size() common.Size2 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

// Dynamic reports whether the texture may be re-uploaded.
func (t *Texture) Dynamic() bool { return t.dynamic }

// Mipmaps reports whether a mip chain is generated on upload.
func (t *Texture) Mipmaps() bool { return t.mipmaps }

// RenderTarget reports whether the texture is the color attachment of a render target.
func (t *Texture) RenderTarget() bool { return t.renderTarget }

// Filename returns the file the texture was loaded from, if any.
func (t *Texture) Filename() string { return t.filename }

// Levels returns the staged mip chain, level 0 first.
func (t *Texture) Levels() []MipLevel {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]MipLevel, len(t.levels))
	copy(out, t.levels)
	return out
}

// Object returns the backend object. Render goroutine only.
func (t *Texture) Object() TextureObject { return t.object }

// Upload replaces the texture content with RGBA8 data of the given size.
// The mip chain is regenerated when the texture has mipmaps.
//
// Parameters:
//   - data: RGBA8 pixels, at least width*height*4 bytes
//   - size: the new texture size; both dimensions must be whole pixel counts of at least 1
//
// Returns:
//   - error: ErrNotDynamic for static textures, ErrInvalidSize or ErrInvalidData for bad input
func (t *Texture) Upload(data []byte, size common.Size2) error {
	if !t.dynamic {
		return ErrNotDynamic
	}
	return t.setData(data, size)
}

func (t *Texture) setData(data []byte, size common.Size2) error {
	if !validPixelSize(size) {
		return fmt.Errorf("texture size %vx%v: %w", size.Width, size.Height, ErrInvalidSize)
	}
	width, height := uint32(size.Width), uint32(size.Height)
	if need := pixelBytes(width, height); uint64(len(data)) < need {
		return fmt.Errorf("texture data holds %d bytes, need %d: %w", len(data), need, ErrInvalidData)
	}

	var levels []MipLevel
	if t.mipmaps && t.owner.mipmapsAllowed(width, height) {
		levels = t.owner.mipmaps.generate(width, height, data)
	} else {
		base := make([]byte, pixelBytes(width, height))
		copy(base, data)
		levels = []MipLevel{{Size: size, Data: base}}
	}

	t.mu.Lock()
	t.size = size
	t.levels = levels
	t.freeRequested = false
	t.mu.Unlock()

	t.owner.markDirty(t)
	return nil
}

func (t *Texture) Free() {
	t.mu.Lock()
	t.freeRequested = true
	t.mu.Unlock()
	t.ready.Store(false)
	t.owner.markDirty(t)
}

func (t *Texture) update() error {
	t.mu.Lock()
	freeRequested := t.freeRequested
	t.freeRequested = false
	desc := TextureDesc{
		Size:         t.size,
		Dynamic:      t.dynamic,
		Mipmaps:      t.mipmaps,
		RenderTarget: t.renderTarget,
		LevelCount:   uint32(max(len(t.levels), 1)),
	}
	levels := t.levels
	t.mu.Unlock()

	if freeRequested {
		t.release()
		return nil
	}

	if t.object == nil {
		t.object = t.owner.backend.NewTexture()
		t.synced = false
	}
	if !t.synced || t.uploaded != desc {
		if err := t.object.Init(desc); err != nil {
			return fmt.Errorf("failed to initialize texture: %w", err)
		}
		t.uploaded = desc
		t.synced = true
	}
	for i, level := range levels {
		if err := t.object.UploadMipmap(uint32(i), level.Size, level.Data); err != nil {
			return fmt.Errorf("failed to upload mip level %d: %w", i, err)
		}
	}

	t.ready.Store(true)
	return nil
}

func (t *Texture) release() {
	if t.object != nil {
		t.object.Free()
		t.object = nil
	}
	t.synced = false
	t.ready.Store(false)
}
