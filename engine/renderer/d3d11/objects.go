package d3d11

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

type texture struct {
	b       *backend
	texture handle
	view    handle
	levels  uint32
}

func (t *texture) Init(desc renderer.TextureDesc) error {
	if !desc.Size.Positive() {
		return fmt.Errorf("texture %vx%v: %w", desc.Size.Width, desc.Size.Height, renderer.ErrInvalidSize)
	}
	t.Free()

	t.levels = max(desc.LevelCount, 1)
	tex, view, err := t.b.dev.CreateTexture(uint32(desc.Size.Width), uint32(desc.Size.Height), t.levels, 1, desc.RenderTarget)
	if err != nil {
		return fmt.Errorf("failed to create texture: %w", err)
	}
	t.texture, t.view = tex, view
	return nil
}

func (t *texture) UploadMipmap(level uint32, size common.Size2, data []byte) error {
	if level >= t.levels || len(data) < int(size.Width)*int(size.Height)*4 {
		return fmt.Errorf("mip level %d: %w", level, renderer.ErrInvalidData)
	}
	t.b.dev.UpdateTexture(t.texture, level, uint32(size.Width), uint32(size.Height), data)
	return nil
}

func (t *texture) Free() {
	if t.texture == 0 {
		return
	}
	t.b.state.Forget(t)
	t.b.release(t.view)
	t.b.release(t.texture)
	t.texture, t.view = 0, 0
}

// constantBuffer is the per-stage constant buffer of a shader.
type constantBuffer struct {
	buffer    handle
	size      uint32
	alignment uint32
	scratch   []byte
}

func (c *constantBuffer) init(dev device, infos []renderer.ConstantInfo, alignment uint32) error {
	if len(infos) == 0 {
		return nil
	}
	c.alignment = common.Coalesce(alignment, constantAlignment)
	_, size := renderer.ConstantOffsets(infos, c.alignment)
	// constant buffer sizes are a multiple of 16 bytes
	c.size = (size + constantAlignment - 1) &^ (constantAlignment - 1)

	buffer, err := dev.CreateBuffer(bindConstantBuffer, nil, c.size, true)
	if err != nil {
		return err
	}
	c.buffer = buffer
	c.scratch = make([]byte, c.size)
	return nil
}

func (c *constantBuffer) upload(dev device, infos []renderer.ConstantInfo, values [][]float32) error {
	packed, err := renderer.PackConstants(infos, values, c.alignment)
	if err != nil {
		return err
	}
	if c.buffer == 0 || len(values) == 0 {
		return nil
	}
	n := copy(c.scratch, packed)
	clear(c.scratch[n:])
	return dev.UploadBuffer(c.buffer, c.scratch)
}

func (c *constantBuffer) free(b *backend) {
	b.release(c.buffer)
	*c = constantBuffer{}
}

type shader struct {
	b               *backend
	vertexShader    handle
	pixelShader     handle
	layout          handle
	vertexConstants constantBuffer
	pixelConstants  constantBuffer
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
	dev := s.b.dev
	vertexCode, err := bytecode(dev, desc.VertexShader, desc.VertexShaderFunction, "vs_4_0")
	if err != nil {
		return fmt.Errorf("vertex shader: %w", err)
	}
	pixelCode, err := bytecode(dev, desc.PixelShader, desc.PixelShaderFunction, "ps_4_0")
	if err != nil {
		return fmt.Errorf("pixel shader: %w", err)
	}

	if s.vertexShader, err = dev.CreateVertexShader(vertexCode); err != nil {
		return fmt.Errorf("failed to create vertex shader: %w", err)
	}
	if s.pixelShader, err = dev.CreatePixelShader(pixelCode); err != nil {
		return fmt.Errorf("failed to create pixel shader: %w", err)
	}
	if s.layout, err = dev.CreateInputLayout(inputElements(desc.VertexAttributes), vertexCode); err != nil {
		return fmt.Errorf("failed to create input layout: %w", err)
	}
	if err := s.vertexConstants.init(dev, desc.VertexShaderConstants, desc.VertexShaderDataAlignment); err != nil {
		return fmt.Errorf("failed to create vertex constant buffer: %w", err)
	}
	if err := s.pixelConstants.init(dev, desc.PixelShaderConstants, desc.PixelShaderDataAlignment); err != nil {
		return fmt.Errorf("failed to create pixel constant buffer: %w", err)
	}
	return nil
}

// bytecode returns compiled shader blobs unchanged and compiles HLSL source otherwise.
func bytecode(dev device, src []byte, entry, target string) ([]byte, error) {
	if bytes.HasPrefix(src, []byte(dxbcMagic)) {
		return src, nil
	}
	return dev.CompileShader(src, entry, target)
}

// inputElements maps the vertex attributes to input layout elements; TEXCOORD0 becomes TEXCOORD index 0.
func inputElements(attrs renderer.VertexAttributes) []inputElement {
	layout := attrs.Layout()
	elements := make([]inputElement, 0, len(layout))
	for _, attr := range layout {
		semantic, index := attr.Semantic, uint32(0)
		if trimmed := strings.TrimRight(semantic, "0123456789"); trimmed != semantic {
			index = uint32(semantic[len(semantic)-1] - '0')
			semantic = trimmed
		}

		format := uint32(formatR32G32B32Float)
		switch {
		case attr.Normalized:
			format = formatR8G8B8A8UNorm
		case attr.Components == 2:
			format = formatR32G32Float
		}
		elements = append(elements, inputElement{Semantic: semantic, SemanticIndex: index, Format: format, Offset: attr.Offset})
	}
	return elements
}

func (s *shader) Free() {
	s.b.state.Forget(s)
	s.b.release(s.layout)
	s.b.release(s.pixelShader)
	s.b.release(s.vertexShader)
	s.layout, s.pixelShader, s.vertexShader = 0, 0, 0
	s.vertexConstants.free(s.b)
	s.pixelConstants.free(s.b)
}

type meshBuffer struct {
	b              *backend
	indexBuffer    handle
	indexCapacity  int
	indexFormat    uint32
	vertexBuffer   handle
	vertexCapacity int
	stride         uint32
}

func (m *meshBuffer) Init(desc renderer.MeshBufferDesc) error {
	switch desc.IndexSize {
	case 2:
		m.indexFormat = formatR16UInt
	case 4:
		m.indexFormat = formatR32UInt
	default:
		return fmt.Errorf("index size %d: %w", desc.IndexSize, renderer.ErrInvalidIndexSize)
	}
	m.stride = desc.VertexAttributes.VertexSize()

	var err error
	m.indexBuffer, m.indexCapacity, err = m.upload(m.indexBuffer, m.indexCapacity, bindIndexBuffer, desc.Indices[:desc.IndexBytes()], desc.DynamicIndices)
	if err != nil {
		return fmt.Errorf("failed to upload indices: %w", err)
	}
	m.vertexBuffer, m.vertexCapacity, err = m.upload(m.vertexBuffer, m.vertexCapacity, bindVertexBuffer, desc.Vertices[:desc.VertexBytes()], desc.DynamicVertices)
	if err != nil {
		return fmt.Errorf("failed to upload vertices: %w", err)
	}
	return nil
}

// upload writes data into a dynamic buffer that is large enough and recreates the buffer otherwise.
// Empty data leaves no buffer bound.
func (m *meshBuffer) upload(buffer handle, capacity int, bind uint32, data []byte, dynamic bool) (handle, int, error) {
	if buffer != 0 && dynamic && len(data) <= capacity && len(data) > 0 {
		return buffer, capacity, m.b.dev.UploadBuffer(buffer, data)
	}
	m.b.release(buffer)
	if len(data) == 0 {
		return 0, 0, nil
	}
	buffer, err := m.b.dev.CreateBuffer(bind, data, uint32(len(data)), dynamic)
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
	view  handle
	depth handle
	size  common.Size2
}

func (r *renderTarget) Init(desc renderer.RenderTargetDesc) error {
	tex, ok := desc.Texture.(*texture)
	if !ok || tex.texture == 0 {
		return fmt.Errorf("render target texture: %w", renderer.ErrNotInitialized)
	}
	r.Free()

	view, err := r.b.dev.CreateRenderTargetView(tex.texture)
	if err != nil {
		return fmt.Errorf("failed to create render target view: %w", err)
	}
	r.view, r.size = view, desc.Size

	if desc.DepthBuffer {
		if r.depth, err = r.b.dev.CreateDepthStencilView(uint32(desc.Size.Width), uint32(desc.Size.Height), 1); err != nil {
			r.Free()
			return fmt.Errorf("failed to create depth stencil view: %w", err)
		}
	}
	return nil
}

func (r *renderTarget) Free() {
	if r.view == 0 {
		return
	}
	r.b.state.Forget(r)
	r.b.release(r.depth)
	r.b.release(r.view)
	r.view, r.depth = 0, 0
}

type blendState struct {
	b     *backend
	state handle
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

	state, err := s.b.dev.CreateBlendState(d)
	if err != nil {
		return fmt.Errorf("failed to create blend state: %w", err)
	}
	s.state = state
	return nil
}

func (s *blendState) Free() {
	if s.state == 0 {
		return
	}
	s.b.state.Forget(s)
	s.b.release(s.state)
	s.state = 0
}

var blendFactors = map[renderer.BlendFactor]uint32{
	renderer.BlendZero:           blendZero,
	renderer.BlendOne:            blendOne,
	renderer.BlendSrcColor:       blendSrcColor,
	renderer.BlendInvSrcColor:    blendInvSrcColor,
	renderer.BlendSrcAlpha:       blendSrcAlpha,
	renderer.BlendInvSrcAlpha:    blendInvSrcAlpha,
	renderer.BlendDestAlpha:      blendDestAlpha,
	renderer.BlendInvDestAlpha:   blendInvDestAlpha,
	renderer.BlendDestColor:      blendDestColor,
	renderer.BlendInvDestColor:   blendInvDestColor,
	renderer.BlendSrcAlphaSat:    blendSrcAlphaSat,
	renderer.BlendBlendFactor:    blendBlendFactor,
	renderer.BlendInvBlendFactor: blendInvBlendFactor,
}

var blendOperations = map[renderer.BlendOperation]uint32{
	renderer.BlendOpAdd:         blendOpAdd,
	renderer.BlendOpSubtract:    blendOpSubtract,
	renderer.BlendOpRevSubtract: blendOpRevSubtract,
	renderer.BlendOpMin:         blendOpMin,
	renderer.BlendOpMax:         blendOpMax,
}
