package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// TextureLayers is the number of texture slots a single draw command can bind.
const TextureLayers = 2

// DrawMode is the primitive topology used to interpret a mesh buffer's indices.
type DrawMode int

const (
	// DrawModePointList draws each index as a point.
	DrawModePointList DrawMode = iota
	// DrawModeLineList draws each pair of indices as a line.
	DrawModeLineList
	// DrawModeLineStrip draws a connected line through all indices.
	DrawModeLineStrip
	// DrawModeTriangleList draws each triple of indices as a triangle.
	DrawModeTriangleList
	// DrawModeTriangleStrip draws a connected strip of triangles.
	DrawModeTriangleStrip
)

func (m DrawMode) String() string {
	switch m {
	case DrawModePointList:
		return "point_list"
	case DrawModeLineList:
		return "line_list"
	case DrawModeLineStrip:
		return "line_strip"
	case DrawModeTriangleList:
		return "triangle_list"
	case DrawModeTriangleStrip:
		return "triangle_strip"
	default:
		return "unknown"
	}
}

// TextureFiltering selects the sampler filter used for textures.
type TextureFiltering int

const (
	// TextureFilteringNone uses nearest-neighbour sampling.
	TextureFilteringNone TextureFiltering = iota
	// TextureFilteringLinear uses linear minification and nearest magnification.
	TextureFilteringLinear
	// TextureFilteringBilinear uses linear minification and magnification.
	TextureFilteringBilinear
	// TextureFilteringTrilinear uses linear filtering between mip levels as well.
	TextureFilteringTrilinear
)

// TextureFilteringCount is the number of TextureFiltering modes; backends create one sampler per mode.
const TextureFilteringCount = 4

// VertexAttributes is a bitmask describing the per-vertex fields a shader expects or a mesh buffer provides.
type VertexAttributes uint32

const (
	// VertexPosition is a float3 position.
	VertexPosition VertexAttributes = 1 << iota
	// VertexColor is an RGBA8 color.
	VertexColor
	// VertexNormal is a float3 normal.
	VertexNormal
	// VertexTexCoord0 is the first float2 texture coordinate.
	VertexTexCoord0
	// VertexTexCoord1 is the second float2 texture coordinate.
	VertexTexCoord1
)

// VertexAttribute describes one field of an interleaved vertex.
type VertexAttribute struct {
	// Attribute is the single bit this field represents.
	Attribute VertexAttributes
	// Semantic is the field's HLSL-style semantic name.
	Semantic string
	// Components is the number of components in the field.
	Components uint32
	// Normalized is true for RGBA8 color fields that are read as normalized floats.
	Normalized bool
	// Offset is the byte offset of the field inside the vertex.
	Offset uint32
	// Size is the byte size of the field.
	Size uint32
}

// Layout returns the interleaved layout for the attributes in the mask, in declaration order.
func (a VertexAttributes) Layout() []VertexAttribute {
	layout := make([]VertexAttribute, 0, 5)
	offset := uint32(0)
	add := func(attr VertexAttributes, semantic string, components uint32, normalized bool, size uint32) {
		if a&attr == 0 {
			return
		}
		layout = append(layout, VertexAttribute{
			Attribute:  attr,
			Semantic:   semantic,
			Components: components,
			Normalized: normalized,
			Offset:     offset,
			Size:       size,
		})
		offset += size
	}
	add(VertexPosition, "POSITION", 3, false, 12)
	add(VertexColor, "COLOR", 4, true, 4)
	add(VertexNormal, "NORMAL", 3, false, 12)
	add(VertexTexCoord0, "TEXCOORD0", 2, false, 8)
	add(VertexTexCoord1, "TEXCOORD1", 2, false, 8)
	return layout
}

// VertexSize returns the byte size of one interleaved vertex with these attributes.
func (a VertexAttributes) VertexSize() uint32 {
	size := uint32(0)
	for _, attr := range a.Layout() {
		size += attr.Size
	}
	return size
}

// BlendFactor is a source or destination blend factor.
type BlendFactor int

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDestAlpha
	BlendInvDestAlpha
	BlendDestColor
	BlendInvDestColor
	BlendSrcAlphaSat
	BlendBlendFactor
	BlendInvBlendFactor
)

// BlendOperation combines the weighted source and destination colors.
type BlendOperation int

const (
	BlendOpAdd BlendOperation = iota
	BlendOpSubtract
	BlendOpRevSubtract
	BlendOpMin
	BlendOpMax
)

// ConstantInfo describes one named, sized slot of per-draw shader data.
type ConstantInfo struct {
	// Name is the constant's name in the shader source.
	Name string
	// Size is the constant's size in bytes.
	Size uint32
}

// ShaderLanguage identifies the source language a backend consumes.
type ShaderLanguage int

const (
	ShaderLanguageNone ShaderLanguage = iota
	ShaderLanguageHLSL
	ShaderLanguageGLSL
	ShaderLanguageGLSLES
	ShaderLanguageMSL
	ShaderLanguageWGSL
)

// Config holds the device configuration handed to a backend at Init.
type Config struct {
	// Size is the initial drawable size in pixels.
	Size common.Size2
	// Fullscreen requests exclusive fullscreen at start.
	Fullscreen bool
	// SampleCount is the MSAA sample count; 1 disables multisampling.
	SampleCount uint32
	// TextureFiltering selects the default sampler.
	TextureFiltering TextureFiltering
	// TargetFPS is the desired frame rate used to pick a refresh rate; 0 means unspecified.
	TargetFPS float32
	// VerticalSync waits for vertical blank on present.
	VerticalSync bool
	// ClearColor is the back buffer clear color.
	ClearColor common.Color
}

// SyncInterval returns the present interval for the configured vertical sync.
func (c Config) SyncInterval() int {
	if c.VerticalSync {
		return 1
	}
	return 0
}

// Sentinel errors reported by the renderer and its backends.
var (
	ErrNoShader             = errors.New("no shader set")
	ErrNoMeshBuffer         = errors.New("no mesh buffer set")
	ErrAttributeMismatch    = errors.New("vertex attributes of shader and mesh buffer differ")
	ErrIndexCountExceeded   = errors.New("index count exceeds mesh buffer")
	ErrInvalidConstants     = errors.New("invalid shader constants")
	ErrInvalidDrawMode      = errors.New("invalid draw mode")
	ErrInvalidLayer         = errors.New("invalid texture layer")
	ErrNotDynamic           = errors.New("resource is not dynamic")
	ErrInvalidSize          = errors.New("invalid size")
	ErrInvalidData          = errors.New("invalid data")
	ErrInvalidIndexSize     = errors.New("invalid index size")
	ErrNotInitialized       = errors.New("renderer is not initialized")
	ErrBackendNotAvailable  = errors.New("renderer backend is not available")
	ErrUnsupportedOperation = errors.New("operation is not supported by the backend")
)

// maxTextureDimension bounds texture and render target edges so pixel byte counts stay addressable.
const maxTextureDimension = 1 << 14

// validPixelSize reports whether size describes a whole number of pixels in each dimension,
// between 1 and maxTextureDimension.
func validPixelSize(size common.Size2) bool {
	for _, v := range [2]float32{size.Width, size.Height} {
		if v < 1 || v > maxTextureDimension || v != float32(int32(v)) {
			return false
		}
	}
	return true
}

// pixelBytes is the RGBA8 byte count of a width x height image.
func pixelBytes(width, height uint32) uint64 {
	return uint64(width) * uint64(height) * 4
}
