package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// RenderTarget is an off-screen color attachment with an optional depth buffer.
// Draw commands with a nil render target draw to the back buffer.
type RenderTarget struct {
	resource

	size        common.Size2
	depthBuffer bool
	clearColor  common.Color
	texture     *Texture

	// render goroutine only
	object RenderTargetObject
	synced bool
}

var _ Resource = &RenderTarget{}

func newRenderTarget(owner *renderer, size common.Size2, depthBuffer bool) *RenderTarget {
	rt := &RenderTarget{
		size:        size,
		depthBuffer: depthBuffer,
		clearColor:  common.ColorBlack,
		texture:     newTexture(owner, size, false, false, true),
	}
	rt.owner = owner
	return rt
}

// Size returns the render target size in pixels.
func (rt *RenderTarget) Size() common.Size2 { return rt.size }

// DepthBuffer reports whether the target has a depth attachment.
func (rt *RenderTarget) DepthBuffer() bool { return rt.depthBuffer }

// Texture returns the color attachment, which can be activated on a layer of later draws.
func (rt *RenderTarget) Texture() *Texture { return rt.texture }

// ClearColor returns the color the target is cleared to on its first use in a frame.
func (rt *RenderTarget) ClearColor() common.Color {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.clearColor
}

// SetClearColor changes the clear color, effective from the next frame.
func (rt *RenderTarget) SetClearColor(color common.Color) {
	rt.mu.Lock()
	rt.clearColor = color
	rt.mu.Unlock()
}

// Object returns the backend object. Render goroutine only.
func (rt *RenderTarget) Object() RenderTargetObject { return rt.object }

func (rt *RenderTarget) Free() {
	rt.mu.Lock()
	rt.freeRequested = true
	rt.mu.Unlock()
	rt.ready.Store(false)
	rt.owner.markDirty(rt)
}

func (rt *RenderTarget) update() error {
	rt.mu.Lock()
	freeRequested := rt.freeRequested
	rt.freeRequested = false
	clearColor := rt.clearColor
	rt.mu.Unlock()

	if freeRequested {
		rt.release()
		return nil
	}
	if rt.synced {
		return nil
	}

	if err := rt.texture.update(); err != nil {
		return err
	}
	if rt.object == nil {
		rt.object = rt.owner.backend.NewRenderTarget()
	}
	err := rt.object.Init(RenderTargetDesc{
		Size:        rt.size,
		DepthBuffer: rt.depthBuffer,
		ClearColor:  clearColor,
		Texture:     rt.texture.object,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize render target: %w", err)
	}
	rt.synced = true
	rt.ready.Store(true)
	return nil
}

func (rt *RenderTarget) release() {
	if rt.object != nil {
		rt.object.Free()
		rt.object = nil
	}
	rt.texture.release()
	rt.synced = false
	rt.ready.Store(false)
}
