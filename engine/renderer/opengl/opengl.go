// Package opengl implements the renderer backend on OpenGL 3.3 core and OpenGL ES 3.
package opengl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

var (
	// ErrNoContext is returned when the surface does not own an OpenGL context.
	ErrNoContext = errors.New("surface has no OpenGL context")
	// ErrIncompleteFramebuffer is returned when a render target framebuffer fails its completeness check.
	ErrIncompleteFramebuffer = errors.New("framebuffer is incomplete")
)

// attribute locations are fixed per vertex attribute bit so any program can be paired with any mesh buffer
var attributeLocations = map[renderer.VertexAttributes]uint32{
	renderer.VertexPosition:  0,
	renderer.VertexColor:     1,
	renderer.VertexNormal:    2,
	renderer.VertexTexCoord0: 3,
	renderer.VertexTexCoord1: 4,
}

type backend struct {
	dev     device
	ctx     renderer.GLContext
	surface renderer.Surface
	cfg     renderer.Config
	size    common.Size2
	gles    bool
	state   *renderer.StateCache
}

var _ renderer.Backend = &backend{}

func newBackend(dev device) *backend {
	return &backend{dev: dev, state: renderer.NewStateCache()}
}

func (b *backend) Name() string { return renderer.BackendOpenGL }

func (b *backend) Init(surface renderer.Surface, cfg renderer.Config) error {
	ctx, ok := surface.(renderer.GLContext)
	if !ok {
		return ErrNoContext
	}
	ctx.MakeCurrent()
	if err := b.dev.Init(); err != nil {
		return fmt.Errorf("failed to load OpenGL: %w", err)
	}

	version := b.dev.Version()
	b.gles = strings.HasPrefix(version, "OpenGL ES")
	b.ctx = ctx
	b.surface = surface
	b.cfg = cfg
	b.size = cfg.Size
	b.state.Reset()
	ctx.SwapInterval(cfg.SyncInterval())

	common.Logger().Info("OpenGL initialized", "version", version, "gles", b.gles)
	return nil
}

func (b *backend) Free() {
	b.state.Reset()
	b.ctx = nil
	b.surface = nil
}

func (b *backend) ShaderLanguage() renderer.ShaderLanguage {
	if b.gles {
		return renderer.ShaderLanguageGLSLES
	}
	return renderer.ShaderLanguageGLSL
}

func (b *backend) BuiltinShader(name string) (renderer.ShaderSource, bool) {
	src, ok := builtinSources[name]
	if !ok {
		return renderer.ShaderSource{}, false
	}
	header := glslHeader
	if b.gles {
		header = glslESHeader
	}
	return renderer.ShaderSource{
		VertexShader:         []byte(header + src.vertex),
		PixelShader:          []byte(header + src.pixel),
		VertexShaderFunction: "main",
		PixelShaderFunction:  "main",
	}, true
}

// NPOTMipmaps is false on OpenGL ES, which cannot sample mip chains of non-power-of-two textures everywhere.
func (b *backend) NPOTMipmaps() bool { return !b.gles }

func (b *backend) NewTexture() renderer.TextureObject           { return &texture{b: b} }
func (b *backend) NewShader() renderer.ShaderObject             { return &shader{b: b} }
func (b *backend) NewMeshBuffer() renderer.MeshBufferObject     { return &meshBuffer{b: b} }
func (b *backend) NewRenderTarget() renderer.RenderTargetObject { return &renderTarget{b: b} }
func (b *backend) NewBlendState() renderer.BlendStateObject     { return &blendState{b: b} }

func (b *backend) Draw(commands []renderer.DrawCommand) error {
	b.state.Reset()

	for i := range commands {
		if err := b.draw(&commands[i]); err != nil {
			return fmt.Errorf("draw command %d: %w", i, err)
		}
	}

	// the back buffer is cleared even when no command targets it
	if b.state.NeedsClear(nil) {
		b.dev.BindFramebuffer(0)
		b.dev.Viewport(0, 0, int32(b.size.Width), int32(b.size.Height))
		b.dev.Scissor(false, 0, 0, 0, 0)
		b.dev.Clear(b.cfg.ClearColor.Float4(), false)
	}

	b.ctx.SwapBuffers()
	return nil
}

func (b *backend) draw(cmd *renderer.DrawCommand) error {
	// render target
	var (
		target      renderer.RenderTargetObject
		framebuffer uint32
		size        = b.size
		clearColor  = b.cfg.ClearColor
		depth       bool
	)
	if cmd.RenderTarget != nil {
		rt, ok := cmd.RenderTarget.Object().(*renderTarget)
		if !ok {
			return fmt.Errorf("render target: %w", renderer.ErrNotInitialized)
		}
		target, framebuffer, size, depth = rt, rt.framebuffer, rt.size, rt.depthBuffer != 0
		clearColor = cmd.RenderTarget.ClearColor()
	}
	if b.state.SetRenderTarget(target) {
		b.dev.BindFramebuffer(framebuffer)
		b.dev.Viewport(0, 0, int32(size.Width), int32(size.Height))
	}
	if b.state.NeedsClear(target) {
		// clears ignore the scissor box only when the test is off
		b.dev.Scissor(false, 0, 0, 0, 0)
		b.state.SetScissor(false, common.Rectangle{})
		b.dev.Clear(clearColor.Float4(), depth)
	}

	if b.state.SetScissor(cmd.ScissorTest, cmd.ScissorRectangle) {
		r := cmd.ScissorRectangle
		// GL scissor origin is bottom-left
		b.dev.Scissor(cmd.ScissorTest, int32(r.X), int32(size.Height-r.Y-r.Height), int32(r.Width), int32(r.Height))
	}

	// program and constants
	prog, ok := cmd.Shader.Object().(*shader)
	if !ok {
		return fmt.Errorf("shader: %w", renderer.ErrNotInitialized)
	}
	if b.state.SetShader(prog) {
		b.dev.UseProgram(prog.program)
	}
	if err := setUniforms(b.dev, prog.pixelLocations, cmd.Shader.PixelShaderConstantInfo(), cmd.PixelShaderConstants); err != nil {
		return fmt.Errorf("pixel shader constants: %w", err)
	}
	if err := setUniforms(b.dev, prog.vertexLocations, cmd.Shader.VertexShaderConstantInfo(), cmd.VertexShaderConstants); err != nil {
		return fmt.Errorf("vertex shader constants: %w", err)
	}

	// blending
	var blend renderer.BlendStateObject
	if cmd.BlendState != nil {
		if bs, ok := cmd.BlendState.Object().(*blendState); ok {
			blend = bs
		}
	}
	if b.state.SetBlendState(blend) {
		if bs, ok := blend.(*blendState); ok {
			b.dev.Blend(bs.enabled, bs.srcColor, bs.dstColor, bs.colorOp, bs.srcAlpha, bs.dstAlpha, bs.alphaOp)
		} else {
			b.dev.Blend(false, glOne, glZero, glFuncAdd, glOne, glZero, glFuncAdd)
		}
	}

	// textures
	for layer, tex := range cmd.Textures {
		var obj renderer.TextureObject
		var name uint32
		if tex != nil {
			if t, ok := tex.Object().(*texture); ok {
				obj, name = t, t.name
			}
		}
		if b.state.SetTexture(layer, obj) {
			b.dev.BindTexture(uint32(layer), name)
		}
	}

	// geometry
	mesh, ok := cmd.MeshBuffer.Object().(*meshBuffer)
	if !ok {
		return fmt.Errorf("mesh buffer: %w", renderer.ErrNotInitialized)
	}
	mode, err := drawMode(cmd.DrawMode)
	if err != nil {
		return err
	}
	b.dev.BindVertexArray(mesh.vao)
	b.dev.DrawElements(mode, int32(cmd.IndexCount), mesh.indexType, int(cmd.StartIndex*mesh.indexSize))

	if code := b.dev.Error(); code != glNoError {
		return fmt.Errorf("OpenGL error 0x%x", code)
	}
	return nil
}

func setUniforms(dev device, locations []int32, infos []renderer.ConstantInfo, values [][]float32) error {
	if err := renderer.ValidateConstants(infos, values); err != nil {
		return err
	}
	for i, v := range values {
		if locations[i] < 0 {
			continue
		}
		dev.Uniform(locations[i], v)
	}
	return nil
}

func drawMode(mode renderer.DrawMode) (uint32, error) {
	switch mode {
	case renderer.DrawModePointList:
		return glPoints, nil
	case renderer.DrawModeLineList:
		return glLines, nil
	case renderer.DrawModeLineStrip:
		return glLineStrip, nil
	case renderer.DrawModeTriangleList:
		return glTriangles, nil
	case renderer.DrawModeTriangleStrip:
		return glTriangleStrip, nil
	default:
		return 0, fmt.Errorf("draw mode %d: %w", mode, renderer.ErrInvalidDrawMode)
	}
}

// SetSize only records the size; the default framebuffer follows the window.
func (b *backend) SetSize(size common.Size2) error {
	b.size = size
	b.cfg.Size = size
	return nil
}

// SetFullscreen is handled by the window; the backend only tracks the flag.
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
	width, height := int32(b.size.Width), int32(b.size.Height)
	b.dev.BindFramebuffer(0)
	b.state.SetRenderTarget(nil)
	data := b.dev.ReadPixels(width, height)
	if code := b.dev.Error(); code != glNoError {
		return renderer.Pixels{}, fmt.Errorf("OpenGL error 0x%x", code)
	}

	// GL rows run bottom to top
	pitch := int(width) * 4
	flipped := make([]byte, len(data))
	for y := 0; y < int(height); y++ {
		copy(flipped[y*pitch:(y+1)*pitch], data[(int(height)-1-y)*pitch:])
	}
	return renderer.Pixels{Data: flipped, Width: int(width), Height: int(height), Pitch: pitch}, nil
}
