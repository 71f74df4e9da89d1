package opengl

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

type texture struct {
	b      *backend
	name   uint32
	size   common.Size2
	levels uint32
}

func (t *texture) Init(desc renderer.TextureDesc) error {
	if !desc.Size.Positive() {
		return fmt.Errorf("texture %vx%v: %w", desc.Size.Width, desc.Size.Height, renderer.ErrInvalidSize)
	}
	t.Free()

	t.name = t.b.dev.CreateTexture()
	t.size = desc.Size
	t.levels = max(desc.LevelCount, 1)

	minFilter, magFilter := textureFilter(t.b.cfg.TextureFiltering, t.levels > 1)
	t.b.dev.TexFilter(t.name, minFilter, magFilter, int32(t.levels-1))

	// render target colour attachments need storage before the framebuffer is built
	if desc.RenderTarget {
		t.b.dev.TexImage(t.name, 0, int32(desc.Size.Width), int32(desc.Size.Height), nil)
	}
	return nil
}

func (t *texture) UploadMipmap(level uint32, size common.Size2, data []byte) error {
	if level >= t.levels {
		return fmt.Errorf("mip level %d of %d: %w", level, t.levels, renderer.ErrInvalidData)
	}
	if len(data) < int(size.Width)*int(size.Height)*4 {
		return fmt.Errorf("mip level %d: %w", level, renderer.ErrInvalidData)
	}
	t.b.dev.TexImage(t.name, int32(level), int32(size.Width), int32(size.Height), data)
	return nil
}

func (t *texture) Free() {
	if t.name == 0 {
		return
	}
	t.b.state.Forget(t)
	t.b.dev.DeleteTexture(t.name)
	t.name = 0
}

// textureFilter maps the configured filtering to GL minification and magnification filters.
func textureFilter(filtering renderer.TextureFiltering, mipmaps bool) (int32, int32) {
	switch filtering {
	case renderer.TextureFilteringLinear:
		if mipmaps {
			return glLinearMipmapNearest, glNearest
		}
		return glLinear, glNearest
	case renderer.TextureFilteringBilinear:
		if mipmaps {
			return glLinearMipmapNearest, glLinear
		}
		return glLinear, glLinear
	case renderer.TextureFilteringTrilinear:
		if mipmaps {
			return glLinearMipmapLinear, glLinear
		}
		return glLinear, glLinear
	default:
		if mipmaps {
			return glNearestMipmapNearest, glNearest
		}
		return glNearest, glNearest
	}
}

type shader struct {
	b               *backend
	program         uint32
	pixelLocations  []int32
	vertexLocations []int32
}

func (s *shader) Init(desc renderer.ShaderDesc) error {
	s.Free()

	program, err := s.b.dev.CreateProgram(string(desc.VertexShader), string(desc.PixelShader))
	if err != nil {
		return fmt.Errorf("failed to create program: %w", err)
	}
	s.program = program
	s.pixelLocations = s.locations(desc.PixelShaderConstants)
	s.vertexLocations = s.locations(desc.VertexShaderConstants)
	return nil
}

func (s *shader) locations(infos []renderer.ConstantInfo) []int32 {
	locations := make([]int32, len(infos))
	for i, info := range infos {
		locations[i] = s.b.dev.UniformLocation(s.program, info.Name)
		if locations[i] < 0 {
			common.Logger().Warn("shader constant not found in program", "name", info.Name)
		}
	}
	return locations
}

func (s *shader) Free() {
	if s.program == 0 {
		return
	}
	s.b.state.Forget(s)
	s.b.dev.DeleteProgram(s.program)
	s.program = 0
	s.pixelLocations = nil
	s.vertexLocations = nil
}

type meshBuffer struct {
	b            *backend
	vao          uint32
	indexBuffer  uint32
	vertexBuffer uint32
	indexSize    uint32
	indexType    uint32
}

func (m *meshBuffer) Init(desc renderer.MeshBufferDesc) error {
	switch desc.IndexSize {
	case 2:
		m.indexType = glUnsignedShort
	case 4:
		m.indexType = glUnsignedInt
	default:
		return fmt.Errorf("index size %d: %w", desc.IndexSize, renderer.ErrInvalidIndexSize)
	}
	m.indexSize = desc.IndexSize

	dev := m.b.dev
	if m.vao == 0 {
		m.vao = dev.CreateVertexArray()
		m.indexBuffer = dev.CreateBuffer()
		m.vertexBuffer = dev.CreateBuffer()
	}

	// the element array binding is part of the vertex array state
	dev.BindVertexArray(m.vao)
	dev.BufferData(glElementArrayBuffer, m.indexBuffer, desc.Indices[:desc.IndexBytes()], desc.DynamicIndices)
	dev.BufferData(glArrayBuffer, m.vertexBuffer, desc.Vertices[:desc.VertexBytes()], desc.DynamicVertices)

	stride := int32(desc.VertexAttributes.VertexSize())
	for _, attr := range desc.VertexAttributes.Layout() {
		xtype := uint32(glFloat)
		if attr.Normalized {
			xtype = glUnsignedByte
		}
		dev.VertexAttrib(attributeLocations[attr.Attribute], int32(attr.Components), xtype, attr.Normalized, stride, int(attr.Offset))
	}
	dev.BindVertexArray(0)
	return nil
}

func (m *meshBuffer) Free() {
	if m.vao == 0 {
		return
	}
	m.b.dev.DeleteVertexArray(m.vao)
	m.b.dev.DeleteBuffer(m.indexBuffer)
	m.b.dev.DeleteBuffer(m.vertexBuffer)
	m.vao, m.indexBuffer, m.vertexBuffer = 0, 0, 0
}

type renderTarget struct {
	b           *backend
	framebuffer uint32
	depthBuffer uint32
	size        common.Size2
}

func (r *renderTarget) Init(desc renderer.RenderTargetDesc) error {
	tex, ok := desc.Texture.(*texture)
	if !ok || tex.name == 0 {
		return fmt.Errorf("render target texture: %w", renderer.ErrNotInitialized)
	}
	r.Free()

	fbo, depth, err := r.b.dev.CreateFramebuffer(tex.name, int32(desc.Size.Width), int32(desc.Size.Height), desc.DepthBuffer)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIncompleteFramebuffer, err)
	}
	r.framebuffer, r.depthBuffer, r.size = fbo, depth, desc.Size
	return nil
}

func (r *renderTarget) Free() {
	if r.framebuffer == 0 {
		return
	}
	r.b.state.Forget(r)
	r.b.dev.DeleteFramebuffer(r.framebuffer, r.depthBuffer)
	r.framebuffer, r.depthBuffer = 0, 0
}

type blendState struct {
	b                           *backend
	enabled                     bool
	srcColor, dstColor, colorOp uint32
	srcAlpha, dstAlpha, alphaOp uint32
}

func (s *blendState) Init(desc renderer.BlendStateDesc) error {
	var err error
	s.enabled = desc.Enabled
	if s.srcColor, err = blendFactor(desc.ColorSource); err != nil {
		return err
	}
	if s.dstColor, err = blendFactor(desc.ColorDest); err != nil {
		return err
	}
	if s.srcAlpha, err = blendFactor(desc.AlphaSource); err != nil {
		return err
	}
	if s.dstAlpha, err = blendFactor(desc.AlphaDest); err != nil {
		return err
	}
	if s.colorOp, err = blendOperation(desc.ColorOperation); err != nil {
		return err
	}
	if s.alphaOp, err = blendOperation(desc.AlphaOperation); err != nil {
		return err
	}
	return nil
}

func (s *blendState) Free() {
	s.b.state.Forget(s)
}

func blendFactor(f renderer.BlendFactor) (uint32, error) {
	switch f {
	case renderer.BlendZero:
		return glZero, nil
	case renderer.BlendOne:
		return glOne, nil
	case renderer.BlendSrcColor:
		return glSrcColor, nil
	case renderer.BlendInvSrcColor:
		return glOneMinusSrcColor, nil
	case renderer.BlendSrcAlpha:
		return glSrcAlpha, nil
	case renderer.BlendInvSrcAlpha:
		return glOneMinusSrcAlpha, nil
	case renderer.BlendDestAlpha:
		return glDstAlpha, nil
	case renderer.BlendInvDestAlpha:
		return glOneMinusDstAlpha, nil
	case renderer.BlendDestColor:
		return glDstColor, nil
	case renderer.BlendInvDestColor:
		return glOneMinusDstColor, nil
	case renderer.BlendSrcAlphaSat:
		return glSrcAlphaSaturate, nil
	case renderer.BlendBlendFactor:
		return glConstantColor, nil
	case renderer.BlendInvBlendFactor:
		return glOneMinusConstant, nil
	default:
		return 0, fmt.Errorf("blend factor %d: %w", f, renderer.ErrInvalidData)
	}
}

func blendOperation(op renderer.BlendOperation) (uint32, error) {
	switch op {
	case renderer.BlendOpAdd:
		return glFuncAdd, nil
	case renderer.BlendOpSubtract:
		return glFuncSubtract, nil
	case renderer.BlendOpRevSubtract:
		return glFuncReverseSubtract, nil
	case renderer.BlendOpMin:
		return glMin, nil
	case renderer.BlendOpMax:
		return glMax, nil
	default:
		return 0, fmt.Errorf("blend operation %d: %w", op, renderer.ErrInvalidData)
	}
}
