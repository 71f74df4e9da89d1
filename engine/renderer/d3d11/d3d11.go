// Package d3d11 implements the renderer backend on Direct3D 11.
package d3d11

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

// ErrNoWindow is returned when the surface has no native window handle.
var ErrNoWindow = errors.New("surface has no native window")

// constantAlignment is the register size of an HLSL constant buffer.
const constantAlignment = 16

type backend struct {
	dev     device
	cfg     renderer.Config
	size    common.Size2
	surface renderer.Surface

	backBuffer        handle
	samplers          [renderer.TextureFilteringCount]handle
	rasterizer        handle
	scissorRasterizer handle
	depthStencil      handle
	state             *renderer.StateCache

	views        [renderer.TextureLayers]handle
	viewSamplers [renderer.TextureLayers]handle
}

var _ renderer.Backend = &backend{}

func newBackend(dev device) *backend {
	return &backend{dev: dev, state: renderer.NewStateCache()}
}

func (b *backend) Name() string { return renderer.BackendDirect3D11 }

func (b *backend) Init(surface renderer.Surface, cfg renderer.Config) error {
	hwnd := surface.NativeHandle()
	if hwnd == 0 {
		return ErrNoWindow
	}
	b.cfg = cfg
	b.size = cfg.Size
	b.surface = surface

	backBuffer, err := b.dev.Init(hwnd, uint32(cfg.Size.Width), uint32(cfg.Size.Height), cfg.SampleCount)
	if err != nil {
		return fmt.Errorf("failed to create Direct3D 11 device: %w", err)
	}
	b.backBuffer = backBuffer

	if err := b.createStates(); err != nil {
		b.Free()
		return err
	}
	if cfg.Fullscreen {
		if err := b.dev.SetFullscreenState(true, b.fullscreenMode()); err != nil {
			b.Free()
			return fmt.Errorf("failed to enter fullscreen: %w", err)
		}
	}

	b.state.Reset()
	common.Logger().Info("Direct3D 11 initialized", "width", cfg.Size.Width, "height", cfg.Size.Height, "samples", cfg.SampleCount)
	return nil
}

func (b *backend) createStates() error {
	var err error
	filters := [renderer.TextureFilteringCount]uint32{
		renderer.TextureFilteringNone:      filterMinMagMipPoint,
		renderer.TextureFilteringLinear:    filterMinMagPointMipLinear,
		renderer.TextureFilteringBilinear:  filterMinMagLinearMipPoint,
		renderer.TextureFilteringTrilinear: filterMinMagMipLinear,
	}
	for i, filter := range filters {
		if b.samplers[i], err = b.dev.CreateSampler(filter); err != nil {
			return fmt.Errorf("failed to create sampler state: %w", err)
		}
	}

	multisample := b.cfg.SampleCount > 1
	if b.rasterizer, err = b.dev.CreateRasterizerState(false, multisample); err != nil {
		return fmt.Errorf("failed to create rasterizer state: %w", err)
	}
	if b.scissorRasterizer, err = b.dev.CreateRasterizerState(true, multisample); err != nil {
		return fmt.Errorf("failed to create scissor rasterizer state: %w", err)
	}
	if b.depthStencil, err = b.dev.CreateDepthStencilState(); err != nil {
		return fmt.Errorf("failed to create depth stencil state: %w", err)
	}
	return nil
}

func (b *backend) Free() {
	for i, s := range b.samplers {
		b.release(s)
		b.samplers[i] = 0
	}
	b.release(b.rasterizer)
	b.release(b.scissorRasterizer)
	b.release(b.depthStencil)
	b.rasterizer, b.scissorRasterizer, b.depthStencil = 0, 0, 0
	b.backBuffer = 0
	b.state.Reset()
	b.dev.Close()
}

func (b *backend) release(h handle) {
	if h != 0 {
		b.dev.Release(h)
	}
}

func (b *backend) ShaderLanguage() renderer.ShaderLanguage { return renderer.ShaderLanguageHLSL }

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
	b.dev.SetRasterizerState(b.rasterizer)
	b.dev.SetDepthStencilState(b.depthStencil)

	for i := range commands {
		if err := b.draw(&commands[i]); err != nil {
			return fmt.Errorf("draw command %d: %w", i, err)
		}
	}

	if b.state.NeedsClear(nil) {
		b.dev.SetRenderTarget(b.backBuffer, 0)
		b.dev.SetViewport(b.size.Width, b.size.Height)
		b.dev.ClearRenderTarget(b.backBuffer, 0, b.cfg.ClearColor.Float4())
	}

	if err := b.dev.Present(b.cfg.SyncInterval()); err != nil {
		return fmt.Errorf("failed to present swap chain: %w", err)
	}
	return nil
}

func (b *backend) draw(cmd *renderer.DrawCommand) error {
	// render target
	var (
		target     renderer.RenderTargetObject
		view       = b.backBuffer
		depth      handle
		size       = b.size
		clearColor = b.cfg.ClearColor
	)
	if cmd.RenderTarget != nil {
		rt, ok := cmd.RenderTarget.Object().(*renderTarget)
		if !ok {
			return fmt.Errorf("render target: %w", renderer.ErrNotInitialized)
		}
		target, view, depth, size = rt, rt.view, rt.depth, rt.size
		clearColor = cmd.RenderTarget.ClearColor()
	}
	if b.state.SetRenderTarget(target) {
		b.dev.SetRenderTarget(view, depth)
		b.dev.SetViewport(size.Width, size.Height)
	}
	if b.state.NeedsClear(target) {
		b.dev.ClearRenderTarget(view, depth, clearColor.Float4())
	}

	// scissor test selects the rasterizer variant
	if b.state.SetScissor(cmd.ScissorTest, cmd.ScissorRectangle) {
		if cmd.ScissorTest {
			r := cmd.ScissorRectangle
			b.dev.SetScissorRect(int32(r.X), int32(r.Y), int32(r.X+r.Width), int32(r.Y+r.Height))
			b.dev.SetRasterizerState(b.scissorRasterizer)
		} else {
			b.dev.SetRasterizerState(b.rasterizer)
		}
	}

	// shader stages and constants
	prog, ok := cmd.Shader.Object().(*shader)
	if !ok {
		return fmt.Errorf("shader: %w", renderer.ErrNotInitialized)
	}
	if b.state.SetShader(prog) {
		b.dev.SetShaders(prog.vertexShader, prog.pixelShader, prog.layout)
		b.dev.SetConstantBuffers(prog.vertexConstants.buffer, prog.pixelConstants.buffer)
	}
	if err := prog.pixelConstants.upload(b.dev, cmd.Shader.PixelShaderConstantInfo(), cmd.PixelShaderConstants); err != nil {
		return fmt.Errorf("pixel shader constants: %w", err)
	}
	if err := prog.vertexConstants.upload(b.dev, cmd.Shader.VertexShaderConstantInfo(), cmd.VertexShaderConstants); err != nil {
		return fmt.Errorf("vertex shader constants: %w", err)
	}

	// blend state
	var blend renderer.BlendStateObject
	var blendHandle handle
	if cmd.BlendState != nil {
		if bs, ok := cmd.BlendState.Object().(*blendState); ok {
			blend, blendHandle = bs, bs.state
		}
	}
	if b.state.SetBlendState(blend) {
		b.dev.SetBlendState(blendHandle)
	}

	// textures and samplers; unused layers are bound to null
	changed := false
	for layer, tex := range cmd.Textures {
		var obj renderer.TextureObject
		b.views[layer], b.viewSamplers[layer] = 0, 0
		if tex != nil {
			if t, ok := tex.Object().(*texture); ok {
				obj = t
				b.views[layer], b.viewSamplers[layer] = t.view, b.samplers[b.cfg.TextureFiltering]
			}
		}
		if b.state.SetTexture(layer, obj) {
			changed = true
		}
	}
	if changed {
		b.dev.SetTextures(b.views[:], b.viewSamplers[:])
	}

	// geometry
	mesh, ok := cmd.MeshBuffer.Object().(*meshBuffer)
	if !ok {
		return fmt.Errorf("mesh buffer: %w", renderer.ErrNotInitialized)
	}
	topology, err := primitiveTopology(cmd.DrawMode)
	if err != nil {
		return err
	}
	b.dev.SetBuffers(mesh.vertexBuffer, mesh.stride, mesh.indexBuffer, mesh.indexFormat)
	// the start location is counted in indices, which the device scales by the index format size
	b.dev.DrawIndexed(topology, cmd.IndexCount, cmd.StartIndex)
	return nil
}

func primitiveTopology(mode renderer.DrawMode) (uint32, error) {
	switch mode {
	case renderer.DrawModePointList:
		return topologyPointList, nil
	case renderer.DrawModeLineList:
		return topologyLineList, nil
	case renderer.DrawModeLineStrip:
		return topologyLineStrip, nil
	case renderer.DrawModeTriangleList:
		return topologyTriangleList, nil
	case renderer.DrawModeTriangleStrip:
		return topologyTriangleStrip, nil
	default:
		return 0, fmt.Errorf("draw mode %d: %w", mode, renderer.ErrInvalidDrawMode)
	}
}

func (b *backend) SetSize(size common.Size2) error {
	view, err := b.dev.ResizeBuffers(uint32(size.Width), uint32(size.Height))
	if err != nil {
		return err
	}
	b.backBuffer = view
	b.size = size
	b.cfg.Size = size
	b.state.Reset()
	return nil
}

func (b *backend) SetFullscreen(fullscreen bool) error {
	if err := b.dev.SetFullscreenState(fullscreen, b.fullscreenMode()); err != nil {
		return err
	}
	b.cfg.Fullscreen = fullscreen
	return nil
}

// fullscreenMode is the monitor's current display mode, or the back buffer size when the surface cannot report it.
func (b *backend) fullscreenMode() displayMode {
	if p, ok := b.surface.(renderer.DisplayModeProvider); ok {
		if size, rate := p.DisplayMode(); size.Positive() {
			return displayMode{Width: uint32(size.Width), Height: uint32(size.Height), RefreshRate: uint32(max(rate, 0))}
		}
	}
	return displayMode{Width: uint32(b.size.Width), Height: uint32(b.size.Height)}
}

func (b *backend) SupportedResolutions() []common.Size2 {
	return b.dev.DisplayModes()
}

func (b *backend) ReadPixels() (renderer.Pixels, error) {
	data, width, height, pitch, err := b.dev.ReadBackBuffer()
	if err != nil {
		return renderer.Pixels{}, fmt.Errorf("failed to read back buffer: %w", err)
	}
	return renderer.Pixels{Data: data, Width: width, Height: height, Pitch: pitch}, nil
}
