// Package wgpu implements the renderer backend on WebGPU.
package wgpu

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoSurface is returned when the surface cannot describe itself to WebGPU.
var ErrNoSurface = errors.New("surface has no WebGPU surface descriptor")

// SurfaceSource is implemented by windows that can describe their native surface to WebGPU.
type SurfaceSource interface {
	// SurfaceDescriptor returns the platform surface descriptor, or nil if the window is gone.
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
}

const (
	// uniformAlignment is minUniformBufferOffsetAlignment of the default limits.
	uniformAlignment = 256
	// uniformBufferSize is the initial size of the constant buffer.
	uniformBufferSize = 64 * 1024

	defaultConstantsAlignment = 16
	textureFormat             = wgpu.TextureFormatRGBA8Unorm
	depthFormat               = wgpu.TextureFormatDepth24Plus
)

var attributeLocations = map[renderer.VertexAttributes]uint32{
	renderer.VertexPosition:  0,
	renderer.VertexColor:     1,
	renderer.VertexNormal:    2,
	renderer.VertexTexCoord0: 3,
	renderer.VertexTexCoord1: 4,
}

// pipelineKey identifies a render pipeline: the program, the blending, the topology and the attachments.
type pipelineKey struct {
	shader           *shader
	blend            *blendState
	topology         wgpu.PrimitiveTopology
	stripIndexFormat wgpu.IndexFormat
	colorFormat      wgpu.TextureFormat
	depth            bool
	samples          uint32
}

// textureGroupKey identifies a texture bind group.
type textureGroupKey struct {
	textures  [renderer.TextureLayers]*texture
	filtering renderer.TextureFiltering
}

// pass describes the attachments of the open render pass.
type pass struct {
	colorFormat wgpu.TextureFormat
	depth       bool
	samples     uint32
	size        common.Size2
}

type backend struct {
	dev     device
	cfg     renderer.Config
	size    common.Size2
	surface renderer.Surface
	format  wgpu.TextureFormat
	state   *renderer.StateCache

	samplers      [renderer.TextureFilteringCount]handle
	white         handle
	pipelines     map[pipelineKey]handle
	textureGroups map[textureGroupKey]handle
	uniform       uniformBuffer

	pass         pass
	pipeline     handle
	textureGroup handle
}

var _ renderer.Backend = &backend{}

func newBackend(dev device) *backend {
	return &backend{
		dev:           dev,
		state:         renderer.NewStateCache(),
		pipelines:     make(map[pipelineKey]handle),
		textureGroups: make(map[textureGroupKey]handle),
	}
}

func (b *backend) Name() string { return renderer.BackendWGPU }

func (b *backend) Init(surface renderer.Surface, cfg renderer.Config) error {
	src, ok := surface.(SurfaceSource)
	if !ok {
		return ErrNoSurface
	}
	desc := src.SurfaceDescriptor()
	if desc == nil {
		return ErrNoSurface
	}
	b.cfg = cfg
	b.cfg.SampleCount = max(cfg.SampleCount, 1)
	b.size = cfg.Size
	b.surface = surface

	format, err := b.dev.Init(desc, uint32(cfg.Size.Width), uint32(cfg.Size.Height), b.cfg.SampleCount, cfg.VerticalSync)
	if err != nil {
		return fmt.Errorf("failed to create WebGPU device: %w", err)
	}
	b.format = format

	if err := b.createFixedObjects(); err != nil {
		b.Free()
		return err
	}

	b.state.Reset()
	common.Logger().Info("WebGPU initialized", "adapter", b.dev.Adapter(), "width", cfg.Size.Width, "height", cfg.Size.Height, "samples", b.cfg.SampleCount)
	return nil
}

func (b *backend) createFixedObjects() error {
	filters := [renderer.TextureFilteringCount]struct {
		filter wgpu.FilterMode
		mip    wgpu.MipmapFilterMode
	}{
		renderer.TextureFilteringNone:      {wgpu.FilterModeNearest, wgpu.MipmapFilterModeNearest},
		renderer.TextureFilteringLinear:    {wgpu.FilterModeNearest, wgpu.MipmapFilterModeLinear},
		renderer.TextureFilteringBilinear:  {wgpu.FilterModeLinear, wgpu.MipmapFilterModeNearest},
		renderer.TextureFilteringTrilinear: {wgpu.FilterModeLinear, wgpu.MipmapFilterModeLinear},
	}
	for i, f := range filters {
		sampler, err := b.dev.CreateSampler(f.filter, f.mip)
		if err != nil {
			return fmt.Errorf("failed to create sampler: %w", err)
		}
		b.samplers[i] = sampler
	}

	// empty texture layers sample opaque white
	white, err := b.dev.CreateTexture(1, 1, 1, textureFormat, wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst)
	if err != nil {
		return fmt.Errorf("failed to create default texture: %w", err)
	}
	b.dev.WriteTexture(white, 0, 1, 1, []byte{255, 255, 255, 255})
	b.white = white
	return nil
}

func (b *backend) Free() {
	for key, g := range b.textureGroups {
		b.release(g)
		delete(b.textureGroups, key)
	}
	for key, p := range b.pipelines {
		b.release(p)
		delete(b.pipelines, key)
	}
	for i, s := range b.samplers {
		b.release(s)
		b.samplers[i] = 0
	}
	b.release(b.white)
	b.white = 0
	b.uniform.free(b)
	b.pipeline, b.textureGroup = 0, 0
	b.state.Reset()
	b.dev.Close()
}

func (b *backend) release(h handle) {
	if h != 0 {
		b.dev.Release(h)
	}
}

// evictPipelines releases the cached pipelines built from a shader or blend state that is being freed.
func (b *backend) evictPipelines(obj any) {
	for key, p := range b.pipelines {
		if (key.shader != nil && any(key.shader) == obj) || (key.blend != nil && any(key.blend) == obj) {
			if p == b.pipeline {
				b.pipeline = 0
			}
			b.release(p)
			delete(b.pipelines, key)
		}
	}
}

// evictTextureGroups releases the cached bind groups that reference a texture that is being freed.
func (b *backend) evictTextureGroups(t *texture) {
	for key, g := range b.textureGroups {
		for _, tex := range key.textures {
			if tex == t {
				if g == b.textureGroup {
					b.textureGroup = 0
				}
				b.release(g)
				delete(b.textureGroups, key)
				break
			}
		}
	}
}

// WGSL passes through the shader translator untouched.
func (b *backend) ShaderLanguage() renderer.ShaderLanguage { return renderer.ShaderLanguageWGSL }

func (b *backend) BuiltinShader(name string) (renderer.ShaderSource, bool) {
	src, ok := builtinSources[name]
	if !ok {
		return renderer.ShaderSource{}, false
	}
	return renderer.ShaderSource{
		VertexShader:         []byte(src),
		PixelShader:          []byte(src),
		VertexShaderFunction: "vsMain",
		PixelShaderFunction:  "psMain",
	}, true
}

func (b *backend) NPOTMipmaps() bool { return true }

func (b *backend) NewTexture() renderer.TextureObject           { return &texture{b: b} }
func (b *backend) NewShader() renderer.ShaderObject             { return &shader{b: b} }
func (b *backend) NewMeshBuffer() renderer.MeshBufferObject     { return &meshBuffer{b: b} }
func (b *backend) NewRenderTarget() renderer.RenderTargetObject { return &renderTarget{b: b} }
func (b *backend) NewBlendState() renderer.BlendStateObject     { return &blendState{b: b} }

func (b *backend) Draw(commands []renderer.DrawCommand) error {
	b.state.Reset()
	if err := b.dev.BeginFrame(); err != nil {
		return fmt.Errorf("failed to begin frame: %w", err)
	}
	b.uniform.offset = 0

	for i := range commands {
		if err := b.draw(&commands[i]); err != nil {
			// the surface texture has to be presented before the next frame can acquire one
			if endErr := b.dev.EndFrame(); endErr != nil {
				common.Logger().Error("failed to submit frame", "error", endErr)
			}
			b.uniform.collect(b)
			return fmt.Errorf("draw command %d: %w", i, err)
		}
	}

	if b.state.NeedsClear(nil) {
		b.state.SetRenderTarget(nil)
		b.beginPass(nil, wgpu.LoadOpClear, b.cfg.ClearColor)
	}
	err := b.dev.EndFrame()
	b.uniform.collect(b)
	if err != nil {
		return fmt.Errorf("failed to submit frame: %w", err)
	}
	return nil
}

// beginPass starts a render pass on rt (nil for the surface). Bind groups and pipeline start unset.
func (b *backend) beginPass(rt *renderTarget, loadOp wgpu.LoadOp, clearColor common.Color) {
	c := clearColor.Float4()
	desc := passDesc{LoadOp: loadOp, ClearColor: wgpu.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}}
	p := pass{colorFormat: b.format, samples: b.cfg.SampleCount, size: b.size}
	if rt != nil {
		desc.Color, desc.Depth = rt.color, rt.depth
		p = pass{colorFormat: textureFormat, depth: rt.depth != 0, samples: 1, size: rt.size}
	}
	b.dev.BeginPass(desc)
	b.dev.SetViewport(p.size.Width, p.size.Height)
	b.pass = p
	b.pipeline, b.textureGroup = 0, 0
	b.state.InvalidateBindings()
}

func (b *backend) draw(cmd *renderer.DrawCommand) error {
	// render pass
	var rt *renderTarget
	var target renderer.RenderTargetObject
	clearColor := b.cfg.ClearColor
	if cmd.RenderTarget != nil {
		var ok bool
		if rt, ok = cmd.RenderTarget.Object().(*renderTarget); !ok {
			return fmt.Errorf("render target: %w", renderer.ErrNotInitialized)
		}
		target = rt
		clearColor = cmd.RenderTarget.ClearColor()
	}
	if b.state.SetRenderTarget(target) {
		loadOp := wgpu.LoadOpLoad
		if b.state.NeedsClear(target) {
			loadOp = wgpu.LoadOpClear
		}
		b.beginPass(rt, loadOp, clearColor)
	}

	// scissor rectangle; a disabled test covers the whole pass
	if b.state.SetScissor(cmd.ScissorTest, cmd.ScissorRectangle) {
		x, y, w, h := uint32(0), uint32(0), uint32(b.pass.size.Width), uint32(b.pass.size.Height)
		if cmd.ScissorTest {
			x, y, w, h = clampScissor(cmd.ScissorRectangle, b.pass.size)
		}
		b.dev.SetScissor(x, y, w, h)
	}

	prog, ok := cmd.Shader.Object().(*shader)
	if !ok {
		return fmt.Errorf("shader: %w", renderer.ErrNotInitialized)
	}
	mesh, ok := cmd.MeshBuffer.Object().(*meshBuffer)
	if !ok {
		return fmt.Errorf("mesh buffer: %w", renderer.ErrNotInitialized)
	}

	// pipeline
	topology, err := primitiveTopology(cmd.DrawMode)
	if err != nil {
		return err
	}
	var blend *blendState
	if cmd.BlendState != nil {
		blend, _ = cmd.BlendState.Object().(*blendState)
	}
	pipeline, err := b.pipelineFor(prog, blend, topology, mesh.indexFormat)
	if err != nil {
		return err
	}
	if pipeline != b.pipeline {
		b.dev.SetPipeline(pipeline)
		b.pipeline = pipeline
	}

	// constants live in windows of the shared uniform buffer selected by dynamic offsets
	if err := b.uniform.ensure(b); err != nil {
		return err
	}
	vertexOffset, err := b.writeConstants(prog.vertexConstants, prog.vertexAlignment, cmd.VertexShaderConstants)
	if err != nil {
		return fmt.Errorf("vertex shader constants: %w", err)
	}
	pixelOffset, err := b.writeConstants(prog.pixelConstants, prog.pixelAlignment, cmd.PixelShaderConstants)
	if err != nil {
		return fmt.Errorf("pixel shader constants: %w", err)
	}
	b.dev.SetBindGroup(uniformGroup, b.uniform.bindGroup, []uint32{vertexOffset, pixelOffset})

	// textures
	if err := b.bindTextures(cmd.Textures); err != nil {
		return err
	}

	// geometry
	if mesh.indexBuffer == 0 || mesh.vertexBuffer == 0 || cmd.IndexCount == 0 {
		return nil
	}
	b.dev.SetVertexBuffer(mesh.vertexBuffer)
	b.dev.SetIndexBuffer(mesh.indexBuffer, mesh.indexFormat)
	b.dev.DrawIndexed(cmd.IndexCount, cmd.StartIndex)
	return nil
}

func (b *backend) bindTextures(textures [renderer.TextureLayers]*renderer.Texture) error {
	key := textureGroupKey{filtering: b.cfg.TextureFiltering}
	changed := false
	for layer, tex := range textures {
		var obj renderer.TextureObject
		if tex != nil {
			if t, ok := tex.Object().(*texture); ok && t.texture != 0 {
				key.textures[layer] = t
				obj = t
			}
		}
		if b.state.SetTexture(layer, obj) {
			changed = true
		}
	}
	if !changed && b.textureGroup != 0 {
		return nil
	}

	group, ok := b.textureGroups[key]
	if !ok {
		views := make([]handle, renderer.TextureLayers)
		samplers := make([]handle, renderer.TextureLayers)
		for layer, t := range key.textures {
			views[layer], samplers[layer] = b.white, b.samplers[key.filtering]
			if t != nil {
				views[layer] = t.texture
			}
		}
		var err error
		if group, err = b.dev.CreateTextureBindGroup(views, samplers); err != nil {
			return fmt.Errorf("failed to create texture bind group: %w", err)
		}
		b.textureGroups[key] = group
	}
	if group != b.textureGroup {
		b.dev.SetBindGroup(textureGroup, group, nil)
		b.textureGroup = group
	}
	return nil
}

func (b *backend) pipelineFor(prog *shader, blend *blendState, topology wgpu.PrimitiveTopology, indexFormat wgpu.IndexFormat) (handle, error) {
	key := pipelineKey{
		shader:      prog,
		blend:       blend,
		topology:    topology,
		colorFormat: b.pass.colorFormat,
		depth:       b.pass.depth,
		samples:     b.pass.samples,
	}
	// strip topologies bake the index format into the pipeline
	if topology == wgpu.PrimitiveTopologyLineStrip || topology == wgpu.PrimitiveTopologyTriangleStrip {
		key.stripIndexFormat = indexFormat
	}
	if p, ok := b.pipelines[key]; ok {
		return p, nil
	}

	desc := pipelineDesc{
		VertexModule:     prog.vertexModule,
		VertexEntry:      prog.vertexEntry,
		FragmentModule:   prog.fragmentModule,
		FragmentEntry:    prog.fragmentEntry,
		Attributes:       prog.attributes,
		Stride:           prog.stride,
		Topology:         topology,
		StripIndexFormat: key.stripIndexFormat,
		ColorFormat:      key.colorFormat,
		Depth:            key.depth,
		SampleCount:      key.samples,
	}
	if blend != nil {
		desc.Blend = blend.state
	}
	p, err := b.dev.CreatePipeline(desc)
	if err != nil {
		return 0, fmt.Errorf("failed to create render pipeline: %w", err)
	}
	b.pipelines[key] = p
	return p, nil
}

func (b *backend) writeConstants(infos []renderer.ConstantInfo, alignment uint32, values [][]float32) (uint32, error) {
	packed, err := renderer.PackConstants(infos, values, alignment)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 || len(packed) == 0 {
		return 0, nil
	}
	return b.uniform.write(b, packed)
}

// clampScissor converts the rectangle to whole pixels inside the pass; WebGPU rejects scissors past the attachment.
func clampScissor(r common.Rectangle, size common.Size2) (x, y, w, h uint32) {
	x0 := min(max(r.X, 0), size.Width)
	y0 := min(max(r.Y, 0), size.Height)
	x1 := min(max(r.X+r.Width, x0), size.Width)
	y1 := min(max(r.Y+r.Height, y0), size.Height)
	return uint32(x0), uint32(y0), uint32(x1 - x0), uint32(y1 - y0)
}

func primitiveTopology(mode renderer.DrawMode) (wgpu.PrimitiveTopology, error) {
	switch mode {
	case renderer.DrawModePointList:
		return wgpu.PrimitiveTopologyPointList, nil
	case renderer.DrawModeLineList:
		return wgpu.PrimitiveTopologyLineList, nil
	case renderer.DrawModeLineStrip:
		return wgpu.PrimitiveTopologyLineStrip, nil
	case renderer.DrawModeTriangleList:
		return wgpu.PrimitiveTopologyTriangleList, nil
	case renderer.DrawModeTriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip, nil
	default:
		return 0, fmt.Errorf("draw mode %d: %w", mode, renderer.ErrInvalidDrawMode)
	}
}

func (b *backend) SetSize(size common.Size2) error {
	if err := b.dev.Configure(uint32(size.Width), uint32(size.Height), b.cfg.VerticalSync); err != nil {
		return fmt.Errorf("failed to configure surface: %w", err)
	}
	b.size = size
	b.cfg.Size = size
	return nil
}

// SetFullscreen records the mode; WebGPU surfaces follow the window, which the window layer resizes.
func (b *backend) SetFullscreen(fullscreen bool) error {
	b.cfg.Fullscreen = fullscreen
	return nil
}

func (b *backend) SupportedResolutions() []common.Size2 {
	if p, ok := b.surface.(renderer.DisplayModeProvider); ok {
		return p.VideoModes()
	}
	return []common.Size2{b.size}
}

func (b *backend) ReadPixels() (renderer.Pixels, error) {
	data, width, height, pitch, err := b.dev.ReadFrame()
	if err != nil {
		return renderer.Pixels{}, fmt.Errorf("failed to read frame: %w", err)
	}
	if b.format == wgpu.TextureFormatBGRA8Unorm || b.format == wgpu.TextureFormatBGRA8UnormSrgb {
		for y := 0; y < height; y++ {
			row := data[y*pitch : y*pitch+width*4]
			for i := 0; i+3 < len(row); i += 4 {
				row[i], row[i+2] = row[i+2], row[i]
			}
		}
	}
	return renderer.Pixels{Data: data, Width: width, Height: height, Pitch: pitch}, nil
}

// uniformBuffer is the constant buffer shared by every draw of a frame. Draws address their constants
// with dynamic offsets. A buffer outgrown mid-frame is retired with its bind group until the frame is submitted.
type uniformBuffer struct {
	buffer    handle
	bindGroup handle
	size      uint64
	offset    uint64
	retired   []handle
}

func (u *uniformBuffer) ensure(b *backend) error {
	if u.buffer != 0 {
		return nil
	}
	return u.grow(b)
}

func (u *uniformBuffer) grow(b *backend) error {
	size := max(u.size*2, uniformBufferSize)
	buffer, err := b.dev.CreateBuffer("constants", wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, size)
	if err != nil {
		return fmt.Errorf("failed to create constant buffer: %w", err)
	}
	group, err := b.dev.CreateUniformBindGroup(buffer)
	if err != nil {
		b.release(buffer)
		return fmt.Errorf("failed to create constant bind group: %w", err)
	}
	if u.buffer != 0 {
		u.retired = append(u.retired, u.bindGroup, u.buffer)
	}
	u.buffer, u.bindGroup, u.size = buffer, group, size
	return nil
}

// write copies data to the next aligned window and returns its offset.
func (u *uniformBuffer) write(b *backend, data []byte) (uint32, error) {
	if len(data) > uniformBindingSize {
		return 0, fmt.Errorf("%d bytes exceed the %d byte window: %w", len(data), uniformBindingSize, renderer.ErrInvalidConstants)
	}
	offset := (u.offset + uniformAlignment - 1) &^ (uniformAlignment - 1)
	if u.buffer == 0 || offset+uniformBindingSize > u.size {
		if err := u.grow(b); err != nil {
			return 0, err
		}
		offset = 0
	}
	b.dev.WriteBuffer(u.buffer, offset, data)
	u.offset = offset + uint64(len(data))
	return uint32(offset), nil
}

// collect releases the buffers retired during the submitted frame.
func (u *uniformBuffer) collect(b *backend) {
	for _, h := range u.retired {
		b.release(h)
	}
	u.retired = u.retired[:0]
}

func (u *uniformBuffer) free(b *backend) {
	u.collect(b)
	b.release(u.bindGroup)
	b.release(u.buffer)
	*u = uniformBuffer{}
}
