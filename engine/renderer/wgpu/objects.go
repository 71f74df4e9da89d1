package wgpu

import (
	"bytes"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

type texture struct {
	b       *backend
	texture handle
	levels  uint32
}

func (t *texture) Init(desc renderer.TextureDesc) error {
	if !desc.Size.Positive() {
		return fmt.Errorf("texture %vx%v: %w", desc.Size.Width, desc.Size.Height, renderer.ErrInvalidSize)
	}
	t.Free()

	t.levels = max(desc.LevelCount, 1)
	usage := wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst
	if desc.RenderTarget {
		usage |= wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc
	}
	tex, err := t.b.dev.CreateTexture(uint32(desc.Size.Width), uint32(desc.Size.Height), t.levels, textureFormat, usage)
	if err != nil {
		return fmt.Errorf("failed to create texture: %w", err)
	}
	t.texture = tex
	return nil
}

func (t *texture) UploadMipmap(level uint32, size common.Size2, data []byte) error {
	if level >= t.levels || len(data) < int(size.Width)*int(size.Height)*4 {
		return fmt.Errorf("mip level %d: %w", level, renderer.ErrInvalidData)
	}
	t.b.dev.WriteTexture(t.texture, level, uint32(size.Width), uint32(size.Height), data)
	return nil
}

func (t *texture) Free() {
	if t.texture == 0 {
		return
	}
	t.b.state.Forget(t)
	t.b.evictTextureGroups(t)
	t.b.release(t.texture)
	t.texture = 0
}

type shader struct {
	b               *backend
	modules         []handle
	vertexModule    handle
	fragmentModule  handle
	vertexEntry     string
	fragmentEntry   string
	attributes      []wgpu.VertexAttribute
	stride          uint64
	vertexConstants []renderer.ConstantInfo
	pixelConstants  []renderer.ConstantInfo
	vertexAlignment uint32
	pixelAlignment  uint32
}

func (s *shader) Init(desc renderer.ShaderDesc) error {
	s.Free()

	if err := s.init(desc); err != nil {
		s.Free()
		return err
	}
	return nil
}

func (s *shader) init(desc renderer.ShaderDesc) error {
	var err error
	if s.vertexModule, err = s.module("vertex", desc.VertexShader); err != nil {
		return fmt.Errorf("vertex shader: %w", err)
	}
	// both stages usually live in one module
	s.fragmentModule = s.vertexModule
	if !bytes.Equal(desc.VertexShader, desc.PixelShader) {
		if s.fragmentModule, err = s.module("fragment", desc.PixelShader); err != nil {
			return fmt.Errorf("pixel shader: %w", err)
		}
	}

	s.vertexEntry = common.Coalesce(desc.VertexShaderFunction, "vsMain")
	s.fragmentEntry = common.Coalesce(desc.PixelShaderFunction, "psMain")
	s.attributes = vertexAttributes(desc.VertexAttributes)
	s.stride = uint64(desc.VertexAttributes.VertexSize())
	s.vertexConstants = desc.VertexShaderConstants
	s.pixelConstants = desc.PixelShaderConstants
	s.vertexAlignment = common.Coalesce(desc.VertexShaderDataAlignment, defaultConstantsAlignment)
	s.pixelAlignment = common.Coalesce(desc.PixelShaderDataAlignment, defaultConstantsAlignment)
	return nil
}

func (s *shader) module(label string, source []byte) (handle, error) {
	if len(source) == 0 {
		return 0, renderer.ErrInvalidData
	}
	m, err := s.b.dev.CreateShaderModule(label, string(source))
	if err != nil {
		return 0, fmt.Errorf("failed to create shader module: %w", err)
	}
	s.modules = append(s.modules, m)
	return m, nil
}

// vertexAttributes maps the interleaved layout onto fixed shader locations.
func vertexAttributes(attrs renderer.VertexAttributes) []wgpu.VertexAttribute {
	layout := attrs.Layout()
	out := make([]wgpu.VertexAttribute, 0, len(layout))
	for _, attr := range layout {
		format := wgpu.VertexFormatFloat32x3
		switch {
		case attr.Normalized:
			format = wgpu.VertexFormatUnorm8x4
		case attr.Components == 2:
			format = wgpu.VertexFormatFloat32x2
		}
		out = append(out, wgpu.VertexAttribute{
			Format:         format,
			Offset:         uint64(attr.Offset),
			ShaderLocation: attributeLocations[attr.Attribute],
		})
	}
	return out
}

func (s *shader) Free() {
	s.b.state.Forget(s)
	s.b.evictPipelines(s)
	for _, m := range s.modules {
		s.b.release(m)
	}
	s.modules = nil
	s.vertexModule, s.fragmentModule = 0, 0
}

type meshBuffer struct {
	b              *backend
	indexBuffer    handle
	indexCapacity  uint64
	indexFormat    wgpu.IndexFormat
	vertexBuffer   handle
	vertexCapacity uint64
}

func (m *meshBuffer) Init(desc renderer.MeshBufferDesc) error {
	switch desc.IndexSize {
	case 2:
		m.indexFormat = wgpu.IndexFormatUint16
	case 4:
		m.indexFormat = wgpu.IndexFormatUint32
	default:
		return fmt.Errorf("index size %d: %w", desc.IndexSize, renderer.ErrInvalidIndexSize)
	}

	var err error
	m.indexBuffer, m.indexCapacity, err = m.upload("indices", wgpu.BufferUsageIndex, m.indexBuffer, m.indexCapacity, desc.Indices[:desc.IndexBytes()], desc.DynamicIndices)
	if err != nil {
		return fmt.Errorf("failed to upload indices: %w", err)
	}
	m.vertexBuffer, m.vertexCapacity, err = m.upload("vertices", wgpu.BufferUsageVertex, m.vertexBuffer, m.vertexCapacity, desc.Vertices[:desc.VertexBytes()], desc.DynamicVertices)
	if err != nil {
		return fmt.Errorf("failed to upload vertices: %w", err)
	}
	return nil
}

// upload writes data into a dynamic buffer that is large enough and recreates the buffer otherwise.
// Queue writes must be a multiple of 4 bytes, so data is padded.
func (m *meshBuffer) upload(label string, usage wgpu.BufferUsage, buffer handle, capacity uint64, data []byte, dynamic bool) (handle, uint64, error) {
	if len(data) == 0 {
		m.b.release(buffer)
		return 0, 0, nil
	}
	if pad := len(data) % 4; pad != 0 {
		data = append(data[:len(data):len(data)], make([]byte, 4-pad)...)
	}
	size := uint64(len(data))
	if buffer == 0 || !dynamic || size > capacity {
		m.b.release(buffer)
		var err error
		if buffer, err = m.b.dev.CreateBuffer(label, usage|wgpu.BufferUsageCopyDst, size); err != nil {
			return 0, 0, err
		}
		capacity = size
	}
	m.b.dev.WriteBuffer(buffer, 0, data)
	return buffer, capacity, nil
}

func (m *meshBuffer) Free() {
	m.b.release(m.indexBuffer)
	m.b.release(m.vertexBuffer)
	m.indexBuffer, m.vertexBuffer = 0, 0
	m.indexCapacity, m.vertexCapacity = 0, 0
}

type renderTarget struct {
	b     *backend
	color handle
	depth handle
	size  common.Size2
}

func (r *renderTarget) Init(desc renderer.RenderTargetDesc) error {
	tex, ok := desc.Texture.(*texture)
	if !ok || tex.texture == 0 {
		return fmt.Errorf("render target texture: %w", renderer.ErrNotInitialized)
	}
	r.Free()

	r.color, r.size = tex.texture, desc.Size
	if desc.DepthBuffer {
		depth, err := r.b.dev.CreateTexture(uint32(desc.Size.Width), uint32(desc.Size.Height), 1, depthFormat, wgpu.TextureUsageRenderAttachment)
		if err != nil {
			return fmt.Errorf("failed to create depth texture: %w", err)
		}
		r.depth = depth
	}
	return nil
}

func (r *renderTarget) Free() {
	r.b.state.Forget(r)
	r.b.release(r.depth)
	// the color texture belongs to the render target's texture resource
	r.color, r.depth = 0, 0
}

type blendState struct {
	b *backend
	// state is nil when blending is disabled
	state *wgpu.BlendState
}

func (s *blendState) Init(desc renderer.BlendStateDesc) error {
	s.Free()

	var state wgpu.BlendState
	factors := []struct {
		in  renderer.BlendFactor
		out *wgpu.BlendFactor
	}{
		{desc.ColorSource, &state.Color.SrcFactor},
		{desc.ColorDest, &state.Color.DstFactor},
		{desc.AlphaSource, &state.Alpha.SrcFactor},
		{desc.AlphaDest, &state.Alpha.DstFactor},
	}
	for _, f := range factors {
		v, ok := blendFactors[f.in]
		if !ok {
			return fmt.Errorf("blend factor %d: %w", f.in, renderer.ErrInvalidData)
		}
		*f.out = v
	}
	var ok bool
	if state.Color.Operation, ok = blendOperations[desc.ColorOperation]; !ok {
		return fmt.Errorf("blend operation %d: %w", desc.ColorOperation, renderer.ErrInvalidData)
	}
	if state.Alpha.Operation, ok = blendOperations[desc.AlphaOperation]; !ok {
		return fmt.Errorf("blend operation %d: %w", desc.AlphaOperation, renderer.ErrInvalidData)
	}
	if desc.Enabled {
		s.state = &state
	}
	return nil
}

func (s *blendState) Free() {
	s.b.state.Forget(s)
	s.b.evictPipelines(s)
	s.state = nil
}

var blendFactors = map[renderer.BlendFactor]wgpu.BlendFactor{
	renderer.BlendZero:           wgpu.BlendFactorZero,
	renderer.BlendOne:            wgpu.BlendFactorOne,
	renderer.BlendSrcColor:       wgpu.BlendFactorSrc,
	renderer.BlendInvSrcColor:    wgpu.BlendFactorOneMinusSrc,
	renderer.BlendSrcAlpha:       wgpu.BlendFactorSrcAlpha,
	renderer.BlendInvSrcAlpha:    wgpu.BlendFactorOneMinusSrcAlpha,
	renderer.BlendDestAlpha:      wgpu.BlendFactorDstAlpha,
	renderer.BlendInvDestAlpha:   wgpu.BlendFactorOneMinusDstAlpha,
	renderer.BlendDestColor:      wgpu.BlendFactorDst,
	renderer.BlendInvDestColor:   wgpu.BlendFactorOneMinusDst,
	renderer.BlendSrcAlphaSat:    wgpu.BlendFactorSrcAlphaSaturated,
	renderer.BlendBlendFactor:    wgpu.BlendFactorConstant,
	renderer.BlendInvBlendFactor: wgpu.BlendFactorOneMinusConstant,
}

var blendOperations = map[renderer.BlendOperation]wgpu.BlendOperation{
	renderer.BlendOpAdd:         wgpu.BlendOperationAdd,
	renderer.BlendOpSubtract:    wgpu.BlendOperationSubtract,
	renderer.BlendOpRevSubtract: wgpu.BlendOperationReverseSubtract,
	renderer.BlendOpMin:         wgpu.BlendOperationMin,
	renderer.BlendOpMax:         wgpu.BlendOperationMax,
}
