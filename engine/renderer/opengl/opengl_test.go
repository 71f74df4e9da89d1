package opengl

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/cache"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLink = errors.New("link failed")

// recordingDevice logs every state-changing call as a space separated line.
type recordingDevice struct {
	version     string
	calls       []string
	next        uint32
	failProgram bool
}

func (d *recordingDevice) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *recordingDevice) name() uint32 {
	d.next++
	return d.next
}

func (d *recordingDevice) reset() { d.calls = nil }

func (d *recordingDevice) filter(op string) []string {
	var out []string
	for _, c := range d.calls {
		if strings.SplitN(c, " ", 2)[0] == op {
			out = append(out, c)
		}
	}
	return out
}

func (d *recordingDevice) index(call string) int {
	for i, c := range d.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func (d *recordingDevice) Init() error     { return nil }
func (d *recordingDevice) Version() string { return d.version }
func (d *recordingDevice) Error() uint32   { return glNoError }

func (d *recordingDevice) CreateTexture() uint32 { return d.name() }
func (d *recordingDevice) TexImage(texture uint32, level, width, height int32, data []byte) {
	d.record("TexImage %d %d %d %d %t", texture, level, width, height, data != nil)
}
func (d *recordingDevice) TexFilter(texture uint32, minFilter, magFilter int32, maxLevel int32) {
	d.record("TexFilter %d %d %d %d", texture, minFilter, magFilter, maxLevel)
}
func (d *recordingDevice) DeleteTexture(texture uint32) { d.record("DeleteTexture %d", texture) }

func (d *recordingDevice) CreateProgram(string, string) (uint32, error) {
	if d.failProgram {
		return 0, errLink
	}
	return d.name(), nil
}
func (d *recordingDevice) UniformLocation(_ uint32, name string) int32 {
	if name == renderer.ModelViewProjection.Name {
		return 7
	}
	return -1
}
func (d *recordingDevice) DeleteProgram(program uint32) { d.record("DeleteProgram %d", program) }

func (d *recordingDevice) CreateVertexArray() uint32 { return d.name() }
func (d *recordingDevice) BindVertexArray(vao uint32) {
	d.record("BindVertexArray %d", vao)
}
func (d *recordingDevice) DeleteVertexArray(vao uint32) { d.record("DeleteVertexArray %d", vao) }
func (d *recordingDevice) CreateBuffer() uint32         { return d.name() }
func (d *recordingDevice) BufferData(target, buffer uint32, data []byte, dynamic bool) {
	d.record("BufferData %d %d %d %t", target, buffer, len(data), dynamic)
}
func (d *recordingDevice) DeleteBuffer(buffer uint32) { d.record("DeleteBuffer %d", buffer) }
func (d *recordingDevice) VertexAttrib(location uint32, components int32, xtype uint32, normalized bool, stride int32, offset int) {
	d.record("VertexAttrib %d %d %d %t %d %d", location, components, xtype, normalized, stride, offset)
}

func (d *recordingDevice) CreateFramebuffer(texture uint32, width, height int32, depth bool) (uint32, uint32, error) {
	d.record("CreateFramebuffer %d %d %d %t", texture, width, height, depth)
	var rbo uint32
	if depth {
		rbo = 200
	}
	return 100, rbo, nil
}
func (d *recordingDevice) DeleteFramebuffer(framebuffer, depthBuffer uint32) {
	d.record("DeleteFramebuffer %d %d", framebuffer, depthBuffer)
}
func (d *recordingDevice) BindFramebuffer(framebuffer uint32) {
	d.record("BindFramebuffer %d", framebuffer)
}

func (d *recordingDevice) Viewport(x, y, width, height int32) {
	d.record("Viewport %d %d %d %d", x, y, width, height)
}
func (d *recordingDevice) Clear(color [4]float32, depth bool) {
	d.record("Clear %v %t", color, depth)
}
func (d *recordingDevice) UseProgram(program uint32) { d.record("UseProgram %d", program) }
func (d *recordingDevice) Uniform(location int32, values []float32) {
	d.record("Uniform %d %d", location, len(values))
}
func (d *recordingDevice) Blend(enabled bool, srcColor, dstColor, colorOp, srcAlpha, dstAlpha, alphaOp uint32) {
	d.record("Blend %t %d %d %d %d %d %d", enabled, srcColor, dstColor, colorOp, srcAlpha, dstAlpha, alphaOp)
}
func (d *recordingDevice) BindTexture(unit uint32, texture uint32) {
	d.record("BindTexture %d %d", unit, texture)
}
func (d *recordingDevice) Scissor(enabled bool, x, y, width, height int32) {
	d.record("Scissor %t %d %d %d %d", enabled, x, y, width, height)
}
func (d *recordingDevice) DrawElements(mode uint32, count int32, indexType uint32, offset int) {
	d.record("DrawElements %d %d %d %d", mode, count, indexType, offset)
}

// ReadPixels fills each row with its bottom-up index.
func (d *recordingDevice) ReadPixels(width, height int32) []byte {
	data := make([]byte, int(width)*int(height)*4)
	for y := 0; y < int(height); y++ {
		for x := 0; x < int(width)*4; x++ {
			data[y*int(width)*4+x] = byte(y)
		}
	}
	return data
}

type glSurface struct {
	size     common.Size2
	swaps    int
	interval int
	current  bool
}

func (s *glSurface) Size() common.Size2    { return s.size }
func (s *glSurface) Fullscreen() bool      { return false }
func (s *glSurface) NativeHandle() uintptr { return 0 }
func (s *glSurface) MakeCurrent()          { s.current = true }
func (s *glSurface) SwapBuffers()          { s.swaps++ }
func (s *glSurface) SwapInterval(i int)    { s.interval = i }

type plainSurface struct{}

func (plainSurface) Size() common.Size2    { return common.Size2{Width: 1, Height: 1} }
func (plainSurface) Fullscreen() bool      { return false }
func (plainSurface) NativeHandle() uintptr { return 0 }

func newTestRenderer(t *testing.T, version string, options ...renderer.RendererBuilderOption) (renderer.Renderer, *recordingDevice, *glSurface) {
	t.Helper()
	dev := &recordingDevice{version: version}
	surf := &glSurface{size: common.Size2{Width: 320, Height: 240}}
	r, err := renderer.NewRenderer(append([]renderer.RendererBuilderOption{renderer.WithBackendInstance(newBackend(dev))}, options...)...)
	require.NoError(t, err)
	require.NoError(t, r.Init(surf))
	return r, dev, surf
}

func colorShader(t *testing.T, r renderer.Renderer) *renderer.Shader {
	t.Helper()
	s, ok := cache.Lookup[*renderer.Shader](r.Assets(), renderer.ShaderColor)
	require.True(t, ok)
	return s
}

func quad(t *testing.T, r renderer.Renderer) *renderer.MeshBuffer {
	t.Helper()
	attrs := renderer.VertexPosition | renderer.VertexColor
	m := r.CreateMeshBufferFromData(
		common.SliceToBytes([]uint16{0, 1, 2, 2, 3, 0}), 2, 6, false,
		make([]byte, attrs.VertexSize()*4), attrs, 4, false,
	)
	require.NotNil(t, m)
	return m
}

func TestInitRequiresContext(t *testing.T) {
	b := newBackend(&recordingDevice{version: "3.3.0"})
	assert.ErrorIs(t, b.Init(plainSurface{}, renderer.Config{}), ErrNoContext)
}

func TestInitConfiguresContext(t *testing.T) {
	r, _, surf := newTestRenderer(t, "3.3.0 NVIDIA 550.54")

	assert.True(t, surf.current)
	assert.Equal(t, 1, surf.interval)
	assert.Equal(t, renderer.ShaderLanguageGLSL, r.Backend().ShaderLanguage())
	assert.True(t, r.Backend().NPOTMipmaps())

	src, ok := r.Backend().BuiltinShader(renderer.ShaderTexture)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(src.VertexShader), "#version 330 core"))
	assert.Contains(t, string(src.PixelShader), "texture0")

	_, ok = r.Backend().BuiltinShader("missing")
	assert.False(t, ok)
}

func TestGLESDisablesNPOTMipmaps(t *testing.T) {
	r, dev, _ := newTestRenderer(t, "OpenGL ES 3.2 Mesa 24.0")

	assert.Equal(t, renderer.ShaderLanguageGLSLES, r.Backend().ShaderLanguage())
	assert.False(t, r.Backend().NPOTMipmaps())
	src, _ := r.Backend().BuiltinShader(renderer.ShaderColor)
	assert.True(t, strings.HasPrefix(string(src.PixelShader), "#version 300 es"))

	npot := r.CreateTextureFromData(make([]byte, 6*6*4), common.Size2{Width: 6, Height: 6}, false, true)
	pot := r.CreateTextureFromData(make([]byte, 8*8*4), common.Size2{Width: 8, Height: 8}, false, true)
	require.NotNil(t, npot)
	require.NotNil(t, pot)
	assert.Len(t, npot.Levels(), 1)
	assert.Len(t, pot.Levels(), 4)

	require.NoError(t, r.Present())
	assert.Len(t, dev.filter("TexImage"), 5)
}

func TestEmptyFrameClearsBackBuffer(t *testing.T) {
	r, dev, surf := newTestRenderer(t, "3.3.0", renderer.WithClearColor(common.ColorBlue))
	require.NoError(t, r.Present())

	assert.Equal(t, []string{"Clear [0 0 1 1] false"}, dev.filter("Clear"))
	assert.Less(t, dev.index("BindFramebuffer 0"), dev.index("Clear [0 0 1 1] false"))
	assert.Equal(t, 1, surf.swaps)
}

func TestMeshBufferUploadsInterleavedLayout(t *testing.T) {
	r, dev, _ := newTestRenderer(t, "3.3.0")
	quad(t, r)
	require.NoError(t, r.Present())

	assert.Equal(t, []string{
		fmt.Sprintf("VertexAttrib 0 3 %d false 16 0", glFloat),
		fmt.Sprintf("VertexAttrib 1 4 %d true 16 12", glUnsignedByte),
	}, dev.filter("VertexAttrib"))

	buffers := dev.filter("BufferData")
	require.Len(t, buffers, 2)
	assert.True(t, strings.HasPrefix(buffers[0], fmt.Sprintf("BufferData %d", glElementArrayBuffer)))
	assert.True(t, strings.HasSuffix(buffers[0], "12 false"))
	assert.True(t, strings.HasSuffix(buffers[1], "64 false"))
}

func TestDrawReplaysCommandsWithCachedState(t *testing.T) {
	r, dev, surf := newTestRenderer(t, "3.3.0")
	shader := colorShader(t, r)
	mesh := quad(t, r)
	require.NoError(t, r.Present())
	dev.reset()

	mvp := common.IdentityMatrix()
	r.ActivateShader(shader)
	r.SetShaderConstants([][]float32{mvp.Floats()}, nil)
	require.NoError(t, r.DrawMeshBuffer(mesh, 3, renderer.DrawModeTriangleList, 3))
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleStrip, 0))
	require.NoError(t, r.Present())

	assert.Len(t, dev.filter("Clear"), 1)
	assert.Len(t, dev.filter("UseProgram"), 1, "the program is bound once for both draws")
	assert.Equal(t, []string{"Uniform 7 16", "Uniform 7 16"}, dev.filter("Uniform"))
	assert.Equal(t, []string{
		fmt.Sprintf("DrawElements %d 3 %d 6", glTriangles, glUnsignedShort),
		fmt.Sprintf("DrawElements %d 6 %d 0", glTriangleStrip, glUnsignedShort),
	}, dev.filter("DrawElements"))
	assert.Less(t, dev.index("Clear [0 0 0 1] false"), dev.index(dev.filter("DrawElements")[0]))
	assert.Equal(t, 2, surf.swaps)
}

func TestRenderTargetsAreClearedOncePerFrame(t *testing.T) {
	r, dev, _ := newTestRenderer(t, "3.3.0")
	shader := colorShader(t, r)
	mesh := quad(t, r)
	rt := r.CreateRenderTarget(common.Size2{Width: 64, Height: 32}, true)
	require.NotNil(t, rt)
	rt.SetClearColor(common.ColorRed)
	require.NoError(t, r.Present())
	assert.Contains(t, dev.filter("CreateFramebuffer")[0], "64 32 true")
	dev.reset()

	r.ActivateShader(shader)
	r.ActivateRenderTarget(rt)
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	r.ActivateRenderTarget(nil)
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())

	assert.Equal(t, []string{"Clear [1 0 0 1] true", "Clear [0 0 0 1] false"}, dev.filter("Clear"))
	assert.Equal(t, []string{"BindFramebuffer 100", "BindFramebuffer 0"}, dev.filter("BindFramebuffer"))
	assert.Equal(t, []string{"Viewport 0 0 64 32", "Viewport 0 0 320 240"}, dev.filter("Viewport"))
}

func TestScissorRectangleIsFlipped(t *testing.T) {
	r, dev, _ := newTestRenderer(t, "3.3.0")
	r.ActivateShader(colorShader(t, r))
	mesh := quad(t, r)
	require.NoError(t, r.Present())
	dev.reset()

	r.SetScissorTest(true, common.Rectangle{X: 10, Y: 20, Width: 30, Height: 40})
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())

	assert.Contains(t, dev.filter("Scissor"), "Scissor true 10 180 30 40")
}

func TestBlendStateMapping(t *testing.T) {
	r, dev, _ := newTestRenderer(t, "3.3.0")
	alpha, ok := cache.Lookup[*renderer.BlendState](r.Assets(), renderer.BlendAlpha)
	require.True(t, ok)
	r.ActivateShader(colorShader(t, r))
	r.ActivateBlendState(alpha)
	mesh := quad(t, r)
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())

	assert.Equal(t, []string{
		fmt.Sprintf("Blend true %d %d %d %d %d %d", glSrcAlpha, glOneMinusSrcAlpha, glFuncAdd, glOne, glOne, glFuncAdd),
	}, dev.filter("Blend"))
}

func TestTexturesBindToTheirLayer(t *testing.T) {
	r, dev, _ := newTestRenderer(t, "3.3.0", renderer.WithTextureFiltering(renderer.TextureFilteringTrilinear))
	tex := r.CreateTextureFromData(make([]byte, 4*4*4), common.Size2{Width: 4, Height: 4}, false, true)
	require.NotNil(t, tex)
	shader, ok := cache.Lookup[*renderer.Shader](r.Assets(), renderer.ShaderTexture)
	require.True(t, ok)
	attrs := renderer.VertexPosition | renderer.VertexColor | renderer.VertexTexCoord0
	mesh := r.CreateMeshBufferFromData(
		common.SliceToBytes([]uint32{0, 1, 2}), 4, 3, false,
		make([]byte, attrs.VertexSize()*3), attrs, 3, false,
	)
	require.NotNil(t, mesh)

	r.ActivateShader(shader)
	require.NoError(t, r.ActivateTexture(tex, 1))
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())

	filters := dev.filter("TexFilter")
	require.Len(t, filters, 1)
	assert.True(t, strings.HasSuffix(filters[0], fmt.Sprintf("%d %d 2", glLinearMipmapLinear, glLinear)))

	binds := dev.filter("BindTexture")
	require.Len(t, binds, 2)
	assert.Equal(t, "BindTexture 0 0", binds[0])
	assert.True(t, strings.HasPrefix(binds[1], "BindTexture 1 "))
	assert.Contains(t, dev.filter("DrawElements"), fmt.Sprintf("DrawElements %d 3 %d 0", glTriangles, glUnsignedInt))
}

func TestProgramFailureFailsPresent(t *testing.T) {
	r, dev, _ := newTestRenderer(t, "3.3.0")
	require.NoError(t, r.Present())

	dev.failProgram = true
	s := r.CreateShaderFromBuffers([]byte("fs"), []byte("vs"), renderer.VertexPosition, nil, nil, 0, 0, "main", "main")
	require.NotNil(t, s)
	assert.ErrorIs(t, r.Present(), errLink)
	assert.False(t, s.Ready())
}

func TestReadPixelsFlipsRows(t *testing.T) {
	b := newBackend(&recordingDevice{version: "3.3.0"})
	surf := &glSurface{size: common.Size2{Width: 2, Height: 3}}
	require.NoError(t, b.Init(surf, renderer.Config{Size: surf.size}))

	px, err := b.ReadPixels()
	require.NoError(t, err)
	assert.Equal(t, 8, px.Pitch)
	assert.Equal(t, byte(2), px.Data[0])
	assert.Equal(t, byte(1), px.Data[px.Pitch])
	assert.Equal(t, byte(0), px.Data[2*px.Pitch])
}

func TestTextureFilter(t *testing.T) {
	tests := []struct {
		filtering renderer.TextureFiltering
		mipmaps   bool
		min, mag  int32
	}{
		{renderer.TextureFilteringNone, false, glNearest, glNearest},
		{renderer.TextureFilteringNone, true, glNearestMipmapNearest, glNearest},
		{renderer.TextureFilteringLinear, false, glLinear, glNearest},
		{renderer.TextureFilteringLinear, true, glLinearMipmapNearest, glNearest},
		{renderer.TextureFilteringBilinear, false, glLinear, glLinear},
		{renderer.TextureFilteringBilinear, true, glLinearMipmapNearest, glLinear},
		{renderer.TextureFilteringTrilinear, false, glLinear, glLinear},
		{renderer.TextureFilteringTrilinear, true, glLinearMipmapLinear, glLinear},
	}
	for _, tt := range tests {
		minFilter, magFilter := textureFilter(tt.filtering, tt.mipmaps)
		assert.Equal(t, tt.min, minFilter)
		assert.Equal(t, tt.mag, magFilter)
	}
}

func TestFreeDeletesObjects(t *testing.T) {
	r, dev, _ := newTestRenderer(t, "3.3.0")
	mesh := quad(t, r)
	require.NoError(t, r.Present())
	dev.reset()

	mesh.Free()
	require.NoError(t, r.Present())
	assert.Len(t, dev.filter("DeleteVertexArray"), 1)
	assert.Len(t, dev.filter("DeleteBuffer"), 2)

	r.Free()
	assert.Len(t, dev.filter("DeleteProgram"), 2, "both built-in programs are deleted")
}
