package metal

import (
	"bytes"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
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
	tex, err := t.b.dev.CreateTexture(uint32(desc.Size.Width), uint32(desc.Size.Height), t.levels, 1, pixelFormatRGBA8Unorm, desc.RenderTarget)
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
	t.b.dev.ReplaceRegion(t.texture, level, uint32(size.Width), uint32(size.Height), data)
	return nil
}

func (t *texture) Free() {
	if t.texture == 0 {
		return
	}
	t.b.state.Forget(t)
	t.b.release(t.texture)
	t.texture = 0
}

type shader struct {
	b                *backend
	libraries        []handle
	vertexFunction   handle
	fragmentFunction handle
	attributes       []vertexAttribute
	stride           uint32
	vertexConstants  []renderer.ConstantInfo
	pixelConstants   []renderer.ConstantInfo
	vertexAlignment  uint32
	pixelAlignment   uint32
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
	vertexLibrary, err := s.library(desc.VertexShader)
	if err != nil {
		return fmt.Errorf("vertex shader: %w", err)
	}
	// both stages usually live in one source
	fragmentLibrary := vertexLibrary
	if !bytes.Equal(desc.VertexShader, desc.PixelShader) {
		if fragmentLibrary, err = s.library(desc.PixelShader); err != nil {
			return fmt.Errorf("pixel shader: %w", err)
		}
	}

	if s.vertexFunction, err = s.b.dev.CreateFunction(vertexLibrary, desc.VertexShaderFunction); err != nil {
		return fmt.Errorf("vertex function %q: %w", desc.VertexShaderFunction, err)
	}
	if s.fragmentFunction, err = s.b.dev.CreateFunction(fragmentLibrary, desc.PixelShaderFunction); err != nil {
		return fmt.Errorf("fragment function %q: %w", desc.PixelShaderFunction, err)
	}

	s.attributes = vertexAttributes(desc.VertexAttributes)
	s.stride = desc.VertexAttributes.VertexSize()
	s.vertexConstants = desc.VertexShaderConstants
	s.pixelConstants = desc.PixelShaderConstants
	s.vertexAlignment = common.Coalesce(desc.VertexShaderDataAlignment, defaultConstantsAlignment)
	s.pixelAlignment = common.Coalesce(desc.PixelShaderDataAlignment, defaultConstantsAlignment)
	return nil
}

func (s *shader) library(source []byte) (handle, error) {
	lib, err := s.b.dev.CreateLibrary(source, bytes.HasPrefix(source, []byte(metallibMagic)))
	if err != nil {
		return 0, fmt.Errorf("failed to create library: %w", err)
	}
	s.libraries = append(s.libraries, lib)
	return lib, nil
}

// vertexAttributes maps the interleaved layout onto fixed attribute indices.
func vertexAttributes(attrs renderer.VertexAttributes) []vertexAttribute {
	layout := attrs.Layout()
	out := make([]vertexAttribute, 0, len(layout))
	for _, attr := range layout {
		format := uint32(vertexFormatFloat3)
		switch {
		case attr.Normalized:
			format = vertexFormatUChar4Normalized
		case attr.Components == 2:
			format = vertexFormatFloat2
		}
		out = append(out, vertexAttribute{Index: attributeIndices[attr.Attribute], Format: format, Offset: attr.Offset})
	}
	return out
}

func (s *shader) Free() {
	s.b.state.Forget(s)
	s.b.evictPipelines(s)
	s.b.release(s.fragmentFunction)
	s.b.release(s.vertexFunction)
	for _, lib := range s.libraries {
		s.b.release(lib)
	}
	s.libraries = nil
	s.vertexFunction, s.fragmentFunction = 0, 0
}

type meshBuffer struct {
	b              *backend
	indexBuffer    handle
	indexCapacity  int
	indexType      uint32
	indexSize      uint32
	vertexBuffer   handle
	vertexCapacity int
}

func (m *meshBuffer) Init(desc renderer.MeshBufferDesc) error {
	switch desc.IndexSize {
	case 2:
		m.indexType = indexTypeUInt16
	case 4:
		m.indexType = indexTypeUInt32
	default:
		return fmt.Errorf("index size %d: %w", desc.IndexSize, renderer.ErrInvalidIndexSize)
	}
	m.indexSize = desc.IndexSize

	var err error
	m.indexBuffer, m.indexCapacity, err = m.upload(m.indexBuffer, m.indexCapacity, desc.Indices[:desc.IndexBytes()], desc.DynamicIndices)
	if err != nil {
		return fmt.Errorf("failed to upload indices: %w", err)
	}
	m.vertexBuffer, m.vertexCapacity, err = m.upload(m.vertexBuffer, m.vertexCapacity, desc.Vertices[:desc.VertexBytes()], desc.DynamicVertices)
	if err != nil {
		return fmt.Errorf("failed to upload vertices: %w", err)
	}
	return nil
}

// upload writes data into a dynamic buffer that is large enough and recreates the buffer otherwise.
func (m *meshBuffer) upload(buffer handle, capacity int, data []byte, dynamic bool) (handle, int, error) {
	if buffer != 0 && dynamic && len(data) <= capacity && len(data) > 0 {
		m.b.dev.WriteBuffer(buffer, 0, data)
		return buffer, capacity, nil
	}
	m.b.release(buffer)
	if len(data) == 0 {
		return 0, 0, nil
	}
	buffer, err := m.b.dev.CreateBuffer(data, uint32(len(data)))
	if err != nil {
		return 0, 0, err
	}
	return buffer, len(data), nil
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
		depth, err := r.b.dev.CreateTexture(uint32(desc.Size.Width), uint32(desc.Size.Height), 1, 1, pixelFormatDepth32Float, true)
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
	b    *backend
	desc blendDesc
}

func (s *blendState) Init(desc renderer.BlendStateDesc) error {
	s.Free()

	d := blendDesc{Enabled: desc.Enabled}
	factors := []struct {
		in  renderer.BlendFactor
		out *uint32
	}{
		{desc.ColorSource, &d.SrcColor},
		{desc.ColorDest, &d.DestColor},
		{desc.AlphaSource, &d.SrcAlpha},
		{desc.AlphaDest, &d.DestAlpha},
	}
	for _, f := range factors {
		v, ok := blendFactors[f.in]
		if !ok {
			return fmt.Errorf("blend factor %d: %w", f.in, renderer.ErrInvalidData)
		}
		*f.out = v
	}
	var ok bool
	if d.ColorOp, ok = blendOperations[desc.ColorOperation]; !ok {
		return fmt.Errorf("blend operation %d: %w", desc.ColorOperation, renderer.ErrInvalidData)
	}
	if d.AlphaOp, ok = blendOperations[desc.AlphaOperation]; !ok {
		return fmt.Errorf("blend operation %d: %w", desc.AlphaOperation, renderer.ErrInvalidData)
	}
	s.desc = d
	return nil
}

func (s *blendState) Free() {
	s.b.state.Forget(s)
	s.b.evictPipelines(s)
}

var blendFactors = map[renderer.BlendFactor]uint32{
	renderer.BlendZero:           blendZero,
	renderer.BlendOne:            blendOne,
	renderer.BlendSrcColor:       blendSourceColor,
	renderer.BlendInvSrcColor:    blendOneMinusSourceColor,
	renderer.BlendSrcAlpha:       blendSourceAlpha,
	renderer.BlendInvSrcAlpha:    blendOneMinusSourceAlpha,
	renderer.BlendDestAlpha:      blendDestinationAlpha,
	renderer.BlendInvDestAlpha:   blendOneMinusDestinationAlpha,
	renderer.BlendDestColor:      blendDestinationColor,
	renderer.BlendInvDestColor:   blendOneMinusDestinationColor,
	renderer.BlendSrcAlphaSat:    blendSourceAlphaSaturated,
	renderer.BlendBlendFactor:    blendBlendColor,
	renderer.BlendInvBlendFactor: blendOneMinusBlendColor,
}

var blendOperations = map[renderer.BlendOperation]uint32{
	renderer.BlendOpAdd:         blendOpAdd,
	renderer.BlendOpSubtract:    blendOpSubtract,
	renderer.BlendOpRevSubtract: blendOpReverseSubtract,
	renderer.BlendOpMin:         blendOpMin,
	renderer.BlendOpMax:         blendOpMax,
}
