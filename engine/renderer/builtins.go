package renderer

import (
	"fmt"
)

// Asset cache keys of the resources every renderer registers at Init.
const (
	ShaderColor   = "shaderColor"
	ShaderTexture = "shaderTexture"

	BlendNoBlend  = "blendNoBlend"
	BlendAdd      = "blendAdd"
	BlendMultiply = "blendMultiply"
	BlendAlpha    = "blendAlpha"
)

// ModelViewProjection is the vertex constant of both built-in shaders: one column-major 4x4 matrix.
var ModelViewProjection = ConstantInfo{Name: "modelViewProj", Size: 64}

var builtinShaders = []struct {
	name  string
	attrs VertexAttributes
}{
	{ShaderColor, VertexPosition | VertexColor},
	{ShaderTexture, VertexPosition | VertexColor | VertexTexCoord0},
}

var builtinBlendStates = []struct {
	name string
	desc BlendStateDesc
}{
	{BlendNoBlend, BlendStateDesc{
		Enabled:     false,
		ColorSource: BlendOne, ColorDest: BlendZero, ColorOperation: BlendOpAdd,
		AlphaSource: BlendOne, AlphaDest: BlendZero, AlphaOperation: BlendOpAdd,
	}},
	{BlendAdd, BlendStateDesc{
		Enabled:     true,
		ColorSource: BlendOne, ColorDest: BlendOne, ColorOperation: BlendOpAdd,
		AlphaSource: BlendOne, AlphaDest: BlendOne, AlphaOperation: BlendOpAdd,
	}},
	{BlendMultiply, BlendStateDesc{
		Enabled:     true,
		ColorSource: BlendDestColor, ColorDest: BlendZero, ColorOperation: BlendOpAdd,
		AlphaSource: BlendOne, AlphaDest: BlendOne, AlphaOperation: BlendOpAdd,
	}},
	{BlendAlpha, BlendStateDesc{
		Enabled:     true,
		ColorSource: BlendSrcAlpha, ColorDest: BlendInvSrcAlpha, ColorOperation: BlendOpAdd,
		AlphaSource: BlendOne, AlphaDest: BlendOne, AlphaOperation: BlendOpAdd,
	}},
}

// registerBuiltins creates the built-in shaders and blend states and stores them in the asset cache.
func (r *renderer) registerBuiltins() error {
	for _, b := range builtinShaders {
		src, ok := r.backend.BuiltinShader(b.name)
		if !ok {
			return fmt.Errorf("backend %s has no built-in shader %q: %w", r.backend.Name(), b.name, ErrUnsupportedOperation)
		}
		s := r.CreateShaderFromBuffers(
			src.PixelShader, src.VertexShader, b.attrs,
			nil, []ConstantInfo{ModelViewProjection},
			0, 0,
			src.PixelShaderFunction, src.VertexShaderFunction,
		)
		if s == nil {
			return fmt.Errorf("failed to create built-in shader %q: %w", b.name, ErrInvalidData)
		}
		r.assets.Set(b.name, s)
	}

	for _, b := range builtinBlendStates {
		r.assets.Set(b.name, r.CreateBlendState(b.desc))
	}
	return nil
}
