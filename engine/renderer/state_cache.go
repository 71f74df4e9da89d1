package renderer

import "github.com/Carmen-Shannon/oxy-gfx/common"

// StateCache records the pipeline state a backend last bound on the device.
// Every Set method reports whether the value differs from the cached one, in which case the backend
// issues the API call; after Reset every Set reports a change.
// A StateCache belongs to one backend and is used from the render goroutine only.
type StateCache struct {
	shader      ShaderObject
	shaderSet   bool
	blend       BlendStateObject
	blendSet    bool
	textures    [TextureLayers]TextureObject
	texturesSet [TextureLayers]bool
	target      RenderTargetObject
	targetSet   bool
	scissor     bool
	scissorRect common.Rectangle
	scissorSet  bool
	drawMode    DrawMode
	drawModeSet bool

	backBufferCleared bool
	cleared           map[RenderTargetObject]struct{}
}

// NewStateCache creates an empty cache.
func NewStateCache() *StateCache {
	return &StateCache{cleared: make(map[RenderTargetObject]struct{})}
}

// Reset forgets all cached state and clear marks. Backends call it at the start of every present.
func (c *StateCache) Reset() {
	cleared := c.cleared
	clear(cleared)
	*c = StateCache{cleared: cleared}
}

// InvalidateBindings forgets the bound shader, blend state, textures, scissor and draw mode but keeps the
// render target and clear marks. Backends whose encoders start from default state call it when a pass begins.
func (c *StateCache) InvalidateBindings() {
	c.shaderSet = false
	c.blendSet = false
	c.texturesSet = [TextureLayers]bool{}
	c.scissorSet = false
	c.drawModeSet = false
}

func (c *StateCache) SetShader(s ShaderObject) bool {
	if c.shaderSet && c.shader == s {
		return false
	}
	c.shader, c.shaderSet = s, true
	return true
}

func (c *StateCache) SetBlendState(b BlendStateObject) bool {
	if c.blendSet && c.blend == b {
		return false
	}
	c.blend, c.blendSet = b, true
	return true
}

func (c *StateCache) SetTexture(layer int, t TextureObject) bool {
	if c.texturesSet[layer] && c.textures[layer] == t {
		return false
	}
	c.textures[layer], c.texturesSet[layer] = t, true
	return true
}

// SetRenderTarget caches the bound target; nil is the back buffer.
func (c *StateCache) SetRenderTarget(rt RenderTargetObject) bool {
	if c.targetSet && c.target == rt {
		return false
	}
	c.target, c.targetSet = rt, true
	return true
}

// SetScissor caches the scissor test; the rectangle only matters while the test is enabled.
func (c *StateCache) SetScissor(enabled bool, rect common.Rectangle) bool {
	if c.scissorSet && c.scissor == enabled && (!enabled || c.scissorRect == rect) {
		return false
	}
	c.scissor, c.scissorRect, c.scissorSet = enabled, rect, true
	return true
}

func (c *StateCache) SetDrawMode(mode DrawMode) bool {
	if c.drawModeSet && c.drawMode == mode {
		return false
	}
	c.drawMode, c.drawModeSet = mode, true
	return true
}

// NeedsClear reports whether rt (nil for the back buffer) has not been cleared in this present yet,
// and marks it cleared.
func (c *StateCache) NeedsClear(rt RenderTargetObject) bool {
	if rt == nil {
		if c.backBufferCleared {
			return false
		}
		c.backBufferCleared = true
		return true
	}
	if _, ok := c.cleared[rt]; ok {
		return false
	}
	if c.cleared == nil {
		c.cleared = make(map[RenderTargetObject]struct{})
	}
	c.cleared[rt] = struct{}{}
	return true
}

// Forget drops every cached reference to objects that are being released.
func (c *StateCache) Forget(obj any) {
	if c.shaderSet && any(c.shader) == obj {
		c.shaderSet = false
	}
	if c.blendSet && any(c.blend) == obj {
		c.blendSet = false
	}
	for i := range c.textures {
		if c.texturesSet[i] && any(c.textures[i]) == obj {
			c.texturesSet[i] = false
		}
	}
	if c.targetSet && any(c.target) == obj {
		c.targetSet = false
	}
	if rt, ok := obj.(RenderTargetObject); ok {
		delete(c.cleared, rt)
	}
}
