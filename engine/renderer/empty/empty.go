// Package empty provides a renderer backend that accepts every resource and command and draws nothing.
// It is used for headless runs and tests.
package empty

import (
	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

func init() {
	renderer.RegisterBackend(renderer.BackendEmpty, func() renderer.Backend { return New() })
}

type backend struct {
	size common.Size2
}

var _ renderer.Backend = &backend{}

// New creates an empty backend.
func New() renderer.Backend {
	return &backend{}
}

func (b *backend) Name() string { return renderer.BackendEmpty }

func (b *backend) Init(_ renderer.Surface, cfg renderer.Config) error {
	b.size = cfg.Size
	common.Logger().Debug("empty backend initialized", "width", b.size.Width, "height", b.size.Height)
	return nil
}

func (b *backend) Free() {}

// WGSL lets shaders pass through untranslated.
func (b *backend) ShaderLanguage() renderer.ShaderLanguage { return renderer.ShaderLanguageWGSL }

func (b *backend) BuiltinShader(name string) (renderer.ShaderSource, bool) {
	switch name {
	case renderer.ShaderColor, renderer.ShaderTexture:
		return renderer.ShaderSource{
			PixelShader:          []byte(name),
			VertexShader:         []byte(name),
			PixelShaderFunction:  "main",
			VertexShaderFunction: "main",
		}, true
	}
	return renderer.ShaderSource{}, false
}

func (b *backend) NPOTMipmaps() bool { return true }

func (b *backend) NewTexture() renderer.TextureObject { return &object[renderer.TextureDesc]{} }
func (b *backend) NewShader() renderer.ShaderObject   { return &object[renderer.ShaderDesc]{} }
func (b *backend) NewMeshBuffer() renderer.MeshBufferObject {
	return &object[renderer.MeshBufferDesc]{}
}
func (b *backend) NewRenderTarget() renderer.RenderTargetObject {
	return &object[renderer.RenderTargetDesc]{}
}
func (b *backend) NewBlendState() renderer.BlendStateObject {
	return &object[renderer.BlendStateDesc]{}
}

func (b *backend) Draw([]renderer.DrawCommand) error { return nil }

func (b *backend) SetSize(size common.Size2) error {
	b.size = size
	return nil
}

func (b *backend) SetFullscreen(bool) error { return nil }

func (b *backend) SupportedResolutions() []common.Size2 {
	return []common.Size2{b.size}
}

// ReadPixels returns an opaque black frame of the current size.
func (b *backend) ReadPixels() (renderer.Pixels, error) {
	width, height := int(b.size.Width), int(b.size.Height)
	data := make([]byte, width*height*4)
	for i := 3; i < len(data); i += 4 {
		data[i] = 255
	}
	return renderer.Pixels{Data: data, Width: width, Height: height, Pitch: width * 4}, nil
}

// object stores the last description it was initialized with.
type object[D any] struct {
	desc D
}

func (o *object[D]) Init(desc D) error {
	o.desc = desc
	return nil
}

func (o *object[D]) UploadMipmap(uint32, common.Size2, []byte) error { return nil }

func (o *object[D]) Free() {
	var zero D
	o.desc = zero
}
