package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

var errInjected = errors.New("injected failure")

type fakeSurface struct {
	size       common.Size2
	fullscreen bool
}

func (s fakeSurface) Size() common.Size2    { return s.size }
func (s fakeSurface) Fullscreen() bool      { return s.fullscreen }
func (s fakeSurface) NativeHandle() uintptr { return 1 }

type fakeObject struct {
	inits int
	freed int
}

func (o *fakeObject) Free() { o.freed++ }

type fakeTexture struct {
	fakeObject
	backend *fakeBackend
	desc    TextureDesc
	uploads []uint32
}

func (t *fakeTexture) Init(desc TextureDesc) error {
	if t.backend.failTextures {
		return errInjected
	}
	t.inits++
	t.desc = desc
	t.uploads = nil
	return nil
}

func (t *fakeTexture) UploadMipmap(level uint32, _ common.Size2, _ []byte) error {
	t.uploads = append(t.uploads, level)
	return nil
}

type fakeShader struct {
	fakeObject
	desc ShaderDesc
}

func (s *fakeShader) Init(desc ShaderDesc) error {
	s.inits++
	s.desc = desc
	return nil
}

type fakeMeshBuffer struct {
	fakeObject
	desc MeshBufferDesc
}

func (m *fakeMeshBuffer) Init(desc MeshBufferDesc) error {
	m.inits++
	m.desc = desc
	return nil
}

type fakeRenderTarget struct {
	fakeObject
	desc RenderTargetDesc
}

func (rt *fakeRenderTarget) Init(desc RenderTargetDesc) error {
	rt.inits++
	rt.desc = desc
	return nil
}

type fakeBlendState struct {
	fakeObject
	desc BlendStateDesc
}

func (b *fakeBlendState) Init(desc BlendStateDesc) error {
	b.inits++
	b.desc = desc
	return nil
}

// fakeBackend records every call the renderer makes.
type fakeBackend struct {
	inits        int
	frees        int
	npot         bool
	failTextures bool
	sizes        []common.Size2
	fullscreens  []bool
	frames       [][]DrawCommand

	textures      []*fakeTexture
	shaders       []*fakeShader
	meshBuffers   []*fakeMeshBuffer
	renderTargets []*fakeRenderTarget
	blendStates   []*fakeBlendState
}

var _ Backend = &fakeBackend{}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{npot: true}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Init(Surface, Config) error {
	b.inits++
	return nil
}

func (b *fakeBackend) Free() { b.frees++ }

func (b *fakeBackend) ShaderLanguage() ShaderLanguage { return ShaderLanguageGLSL }

func (b *fakeBackend) BuiltinShader(name string) (ShaderSource, bool) {
	switch name {
	case ShaderColor, ShaderTexture:
		return ShaderSource{
			PixelShader:          []byte(name + " ps"),
			VertexShader:         []byte(name + " vs"),
			PixelShaderFunction:  "main",
			VertexShaderFunction: "main",
		}, true
	}
	return ShaderSource{}, false
}

func (b *fakeBackend) NPOTMipmaps() bool { return b.npot }

func (b *fakeBackend) NewTexture() TextureObject {
	t := &fakeTexture{backend: b}
	b.textures = append(b.textures, t)
	return t
}

func (b *fakeBackend) NewShader() ShaderObject {
	s := &fakeShader{}
	b.shaders = append(b.shaders, s)
	return s
}

func (b *fakeBackend) NewMeshBuffer() MeshBufferObject {
	m := &fakeMeshBuffer{}
	b.meshBuffers = append(b.meshBuffers, m)
	return m
}

func (b *fakeBackend) NewRenderTarget() RenderTargetObject {
	rt := &fakeRenderTarget{}
	b.renderTargets = append(b.renderTargets, rt)
	return rt
}

func (b *fakeBackend) NewBlendState() BlendStateObject {
	bs := &fakeBlendState{}
	b.blendStates = append(b.blendStates, bs)
	return bs
}

func (b *fakeBackend) Draw(commands []DrawCommand) error {
	frame := make([]DrawCommand, len(commands))
	copy(frame, commands)
	b.frames = append(b.frames, frame)
	return nil
}

func (b *fakeBackend) SetSize(size common.Size2) error {
	b.sizes = append(b.sizes, size)
	return nil
}

func (b *fakeBackend) SetFullscreen(fullscreen bool) error {
	b.fullscreens = append(b.fullscreens, fullscreen)
	return nil
}

func (b *fakeBackend) SupportedResolutions() []common.Size2 {
	return []common.Size2{{Width: 800, Height: 600}, {Width: 1920, Height: 1080}}
}

func (b *fakeBackend) ReadPixels() (Pixels, error) {
	return Pixels{Data: []byte{255, 0, 0, 255}, Width: 1, Height: 1, Pitch: 4}, nil
}

func (b *fakeBackend) lastFrame() []DrawCommand {
	if len(b.frames) == 0 {
		return nil
	}
	return b.frames[len(b.frames)-1]
}
