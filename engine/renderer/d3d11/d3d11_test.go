package d3d11

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

var errCompile = errors.New("compile failed")

// recordingDevice logs every call as a space separated line and hands out increasing handles.
type recordingDevice struct {
	calls       []string
	next        handle
	failCompile bool
	closed      bool

	fullscreenErr error
}

func (d *recordingDevice) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *recordingDevice) handle() handle {
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

func (d *recordingDevice) Init(hwnd uintptr, width, height, sampleCount uint32) (handle, error) {
	d.record("Init %d %d %d %d", hwnd, width, height, sampleCount)
	return d.handle(), nil
}
func (d *recordingDevice) Close() { d.closed = true }
func (d *recordingDevice) ResizeBuffers(width, height uint32) (handle, error) {
	d.record("ResizeBuffers %d %d", width, height)
	return d.handle(), nil
}
func (d *recordingDevice) SetFullscreenState(fullscreen bool, mode displayMode) error {
	d.record("SetFullscreenState %t %d %d %d", fullscreen, mode.Width, mode.Height, mode.RefreshRate)
	return d.fullscreenErr
}
func (d *recordingDevice) DisplayModes() []common.Size2 {
	return []common.Size2{{Width: 1920, Height: 1080}, {Width: 1280, Height: 720}}
}
func (d *recordingDevice) Present(syncInterval int) error {
	d.record("Present %d", syncInterval)
	return nil
}
func (d *recordingDevice) ReadBackBuffer() ([]byte, int, int, int, error) {
	return make([]byte, 2*2*4), 2, 2, 8, nil
}

func (d *recordingDevice) CreateSampler(filter uint32) (handle, error) {
	d.record("CreateSampler %d", filter)
	return d.handle(), nil
}
func (d *recordingDevice) CreateRasterizerState(scissor, multisample bool) (handle, error) {
	d.record("CreateRasterizerState %t %t", scissor, multisample)
	return d.handle(), nil
}
func (d *recordingDevice) CreateDepthStencilState() (handle, error) { return d.handle(), nil }

func (d *recordingDevice) CreateTexture(width, height, levels, sampleCount uint32, renderTarget bool) (handle, handle, error) {
	d.record("CreateTexture %d %d %d %d %t", width, height, levels, sampleCount, renderTarget)
	return d.handle(), d.handle(), nil
}
func (d *recordingDevice) UpdateTexture(texture handle, level, width, height uint32, data []byte) {
	d.record("UpdateTexture %d %d %d %d %d", texture, level, width, height, len(data))
}
func (d *recordingDevice) CreateRenderTargetView(texture handle) (handle, error) {
	d.record("CreateRenderTargetView %d", texture)
	return d.handle(), nil
}
func (d *recordingDevice) CreateDepthStencilView(width, height, sampleCount uint32) (handle, error) {
	d.record("CreateDepthStencilView %d %d %d", width, height, sampleCount)
	return d.handle(), nil
}

func (d *recordingDevice) CompileShader(source []byte, entry, target string) ([]byte, error) {
	d.record("CompileShader %s %s", entry, target)
	if d.failCompile {
		return nil, errCompile
	}
	return []byte(dxbcMagic + entry), nil
}
func (d *recordingDevice) CreateVertexShader([]byte) (handle, error) { return d.handle(), nil }
func (d *recordingDevice) CreatePixelShader([]byte) (handle, error)  { return d.handle(), nil }
func (d *recordingDevice) CreateInputLayout(elements []inputElement, _ []byte) (handle, error) {
	d.record("CreateInputLayout %v", elements)
	return d.handle(), nil
}
func (d *recordingDevice) CreateBuffer(bind uint32, data []byte, size uint32, dynamic bool) (handle, error) {
	h := d.handle()
	d.record("CreateBuffer %d %d %d %t %d", bind, len(data), size, dynamic, h)
	return h, nil
}
func (d *recordingDevice) UploadBuffer(buffer handle, data []byte) error {
	d.record("UploadBuffer %d %d", buffer, len(data))
	return nil
}
func (d *recordingDevice) CreateBlendState(desc blendDesc) (handle, error) {
	h := d.handle()
	d.record("CreateBlendState %v %d", desc, h)
	return h, nil
}
func (d *recordingDevice) Release(h handle) { d.record("Release %d", h) }

func (d *recordingDevice) SetRenderTarget(view, depth handle) {
	d.record("SetRenderTarget %d %d", view, depth)
}
func (d *recordingDevice) SetViewport(width, height float32) {
	d.record("SetViewport %v %v", width, height)
}
func (d *recordingDevice) ClearRenderTarget(view, depth handle, color [4]float32) {
	d.record("ClearRenderTarget %d %d %v", view, depth, color)
}
func (d *recordingDevice) SetRasterizerState(state handle) {
	d.record("SetRasterizerState %d", state)
}
func (d *recordingDevice) SetDepthStencilState(handle) {}
func (d *recordingDevice) SetScissorRect(left, top, right, bottom int32) {
	d.record("SetScissorRect %d %d %d %d", left, top, right, bottom)
}
func (d *recordingDevice) SetShaders(vertex, pixel, layout handle) {
	d.record("SetShaders %d %d %d", vertex, pixel, layout)
}
func (d *recordingDevice) SetConstantBuffers(vertex, pixel handle) {
	d.record("SetConstantBuffers %d %d", vertex, pixel)
}
func (d *recordingDevice) SetBlendState(state handle) { d.record("SetBlendState %d", state) }
func (d *recordingDevice) SetTextures(views, samplers []handle) {
	d.record("SetTextures %v %v", views, samplers)
}
func (d *recordingDevice) SetBuffers(vertex handle, stride uint32, index handle, indexFormat uint32) {
	d.record("SetBuffers %d %d %d %d", vertex, stride, index, indexFormat)
}
func (d *recordingDevice) DrawIndexed(topology, count, start uint32) {
	d.record("DrawIndexed %d %d %d", topology, count, start)
}

type windowSurface struct {
	size       common.Size2
	hwnd       uintptr
	fullscreen bool

	// monitor mode reported through renderer.DisplayModeProvider; zero when unknown
	monitor     common.Size2
	refreshRate int
}

func (s *windowSurface) Size() common.Size2    { return s.size }
func (s *windowSurface) Fullscreen() bool      { return s.fullscreen }
func (s *windowSurface) NativeHandle() uintptr { return s.hwnd }
func (s *windowSurface) DisplayMode() (common.Size2, int) {
	return s.monitor, s.refreshRate
}
func (s *windowSurface) VideoModes() []common.Size2 { return []common.Size2{s.monitor} }

func newTestRenderer(t *testing.T, options ...renderer.RendererBuilderOption) (renderer.Renderer, *recordingDevice) {
	t.Helper()
	dev := &recordingDevice{}
	surf := &windowSurface{size: common.Size2{Width: 320, Height: 240}, hwnd: 42}
	r, err := renderer.NewRenderer(append([]renderer.RendererBuilderOption{renderer.WithBackendInstance(newBackend(dev))}, options...)...)
	require.NoError(t, err)
	require.NoError(t, r.Init(surf))
	return r, dev
}

func colorShader(t *testing.T, r renderer.Renderer) *renderer.Shader {
	t.Helper()
	s, ok := cache.Lookup[*renderer.Shader](r.Assets(), renderer.ShaderColor)
	require.True(t, ok)
	return s
}

func quad(t *testing.T, r renderer.Renderer, dynamic bool) *renderer.MeshBuffer {
	t.Helper()
	attrs := renderer.VertexPosition | renderer.VertexColor
	m := r.CreateMeshBufferFromData(
		common.SliceToBytes([]uint16{0, 1, 2, 2, 3, 0}), 2, 6, dynamic,
		make([]byte, attrs.VertexSize()*4), attrs, 4, dynamic,
	)
	require.NotNil(t, m)
	return m
}

func TestInitRequiresWindow(t *testing.T) {
	b := newBackend(&recordingDevice{})
	assert.ErrorIs(t, b.Init(&windowSurface{size: common.Size2{Width: 1, Height: 1}}, renderer.Config{}), ErrNoWindow)
}

func TestInitCreatesFixedStates(t *testing.T) {
	r, dev := newTestRenderer(t, renderer.WithSampleCount(4))

	assert.Equal(t, []string{"Init 42 320 240 4"}, dev.filter("Init"))
	assert.Equal(t, []string{
		fmt.Sprintf("CreateSampler %d", filterMinMagMipPoint),
		fmt.Sprintf("CreateSampler %d", filterMinMagPointMipLinear),
		fmt.Sprintf("CreateSampler %d", filterMinMagLinearMipPoint),
		fmt.Sprintf("CreateSampler %d", filterMinMagMipLinear),
	}, dev.filter("CreateSampler"))
	assert.Equal(t, []string{"CreateRasterizerState false true", "CreateRasterizerState true true"}, dev.filter("CreateRasterizerState"))

	assert.Equal(t, renderer.ShaderLanguageHLSL, r.Backend().ShaderLanguage())
	assert.True(t, r.Backend().NPOTMipmaps())
	src, ok := r.Backend().BuiltinShader(renderer.ShaderTexture)
	require.True(t, ok)
	assert.Equal(t, "vsMain", src.VertexShaderFunction)
	assert.Equal(t, "psMain", src.PixelShaderFunction)
	assert.Contains(t, string(src.PixelShader), "register(t0)")
}

func TestInitEntersRequestedFullscreen(t *testing.T) {
	dev := &recordingDevice{}
	b := newBackend(dev)
	require.NoError(t, b.Init(&windowSurface{hwnd: 1}, renderer.Config{Size: common.Size2{Width: 800, Height: 600}, Fullscreen: true}))
	assert.Equal(t, []string{"SetFullscreenState true 800 600 0"}, dev.filter("SetFullscreenState"))
}

func TestBuiltinShadersCompileWithInputLayouts(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.Present())

	assert.Equal(t, []string{
		"CompileShader vsMain vs_4_0", "CompileShader psMain ps_4_0",
		"CompileShader vsMain vs_4_0", "CompileShader psMain ps_4_0",
	}, dev.filter("CompileShader"))
	assert.Equal(t, []string{
		fmt.Sprintf("CreateInputLayout [{POSITION 0 %d 0} {COLOR 0 %d 12}]", formatR32G32B32Float, formatR8G8B8A8UNorm),
		fmt.Sprintf("CreateInputLayout [{POSITION 0 %d 0} {COLOR 0 %d 12} {TEXCOORD 0 %d 16}]", formatR32G32B32Float, formatR8G8B8A8UNorm, formatR32G32Float),
	}, dev.filter("CreateInputLayout"))

	buffers := dev.filter("CreateBuffer")
	require.Len(t, buffers, 2, "one vertex constant buffer per built-in shader")
	for _, b := range buffers {
		assert.True(t, strings.HasPrefix(b, fmt.Sprintf("CreateBuffer %d 0 64 true", bindConstantBuffer)))
	}
}

func TestCompiledBytecodeSkipsCompiler(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.Present())
	dev.reset()

	s := r.CreateShaderFromBuffers([]byte(dxbcMagic+"ps"), []byte(dxbcMagic+"vs"), renderer.VertexPosition, nil, nil, 0, 0, "main", "main")
	require.NotNil(t, s)
	require.NoError(t, r.Present())
	assert.True(t, s.Ready())
	assert.Empty(t, dev.filter("CompileShader"))
}

func TestEmptyFrameClearsBackBuffer(t *testing.T) {
	r, dev := newTestRenderer(t, renderer.WithClearColor(common.ColorBlue), renderer.WithVerticalSync(false))
	require.NoError(t, r.Present())

	assert.Equal(t, []string{"ClearRenderTarget 1 0 [0 0 1 1]"}, dev.filter("ClearRenderTarget"))
	assert.Less(t, dev.index("ClearRenderTarget 1 0 [0 0 1 1]"), dev.index("Present 0"))
}

func TestDrawReplaysCommandsWithCachedState(t *testing.T) {
	r, dev := newTestRenderer(t)
	shader := colorShader(t, r)
	mesh := quad(t, r, false)
	require.NoError(t, r.Present())
	dev.reset()

	r.ActivateShader(shader)
	r.SetShaderConstants([][]float32{common.IdentityMatrix().Floats()}, nil)
	require.NoError(t, r.DrawMeshBuffer(mesh, 3, renderer.DrawModeTriangleList, 3))
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleStrip, 0))
	require.NoError(t, r.Present())

	assert.Len(t, dev.filter("ClearRenderTarget"), 1)
	assert.Len(t, dev.filter("SetShaders"), 1, "the shader stages are bound once for both draws")
	uploads := dev.filter("UploadBuffer")
	require.Len(t, uploads, 2)
	assert.True(t, strings.HasSuffix(uploads[0], " 64"))
	assert.Equal(t, []string{
		fmt.Sprintf("DrawIndexed %d 3 3", topologyTriangleList),
		fmt.Sprintf("DrawIndexed %d 6 0", topologyTriangleStrip),
	}, dev.filter("DrawIndexed"))
	assert.Less(t, dev.index("ClearRenderTarget 1 0 [0 0 0 1]"), dev.index(dev.filter("DrawIndexed")[0]))
	assert.Equal(t, []string{"Present 1"}, dev.filter("Present"))

	binds := dev.filter("SetBuffers")
	require.Len(t, binds, 2)
	assert.True(t, strings.HasSuffix(binds[0], fmt.Sprintf(" %d", formatR16UInt)))
}

func TestRenderTargetsAreClearedOncePerFrame(t *testing.T) {
	r, dev := newTestRenderer(t)
	shader := colorShader(t, r)
	mesh := quad(t, r, false)
	rt := r.CreateRenderTarget(common.Size2{Width: 64, Height: 32}, true)
	require.NotNil(t, rt)
	rt.SetClearColor(common.ColorRed)
	require.NoError(t, r.Present())
	assert.Equal(t, []string{"CreateTexture 64 32 1 1 true"}, dev.filter("CreateTexture"))
	assert.Equal(t, []string{"CreateDepthStencilView 64 32 1"}, dev.filter("CreateDepthStencilView"))
	dev.reset()

	r.ActivateShader(shader)
	r.ActivateRenderTarget(rt)
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	r.ActivateRenderTarget(nil)
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())

	clears := dev.filter("ClearRenderTarget")
	require.Len(t, clears, 2)
	assert.True(t, strings.HasSuffix(clears[0], "[1 0 0 1]"))
	assert.NotContains(t, clears[0], " 0 [", "the depth view is cleared with the target")
	assert.Equal(t, "ClearRenderTarget 1 0 [0 0 0 1]", clears[1])
	assert.Equal(t, []string{"SetViewport 64 32", "SetViewport 320 240"}, dev.filter("SetViewport"))
	assert.Len(t, dev.filter("SetRenderTarget"), 2)
}

func TestScissorUsesTopLeftOrigin(t *testing.T) {
	r, dev := newTestRenderer(t)
	r.ActivateShader(colorShader(t, r))
	mesh := quad(t, r, false)
	require.NoError(t, r.Present())
	dev.reset()

	r.SetScissorTest(true, common.Rectangle{X: 10, Y: 20, Width: 30, Height: 40})
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	r.SetScissorTest(false, common.Rectangle{})
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())

	assert.Equal(t, []string{"SetScissorRect 10 20 40 60"}, dev.filter("SetScissorRect"))
	// handles 6 and 7 are the plain and scissor rasterizer states
	assert.Equal(t, []string{"SetRasterizerState 6", "SetRasterizerState 7", "SetRasterizerState 6"}, dev.filter("SetRasterizerState"))
}

func TestBlendStateMapping(t *testing.T) {
	r, dev := newTestRenderer(t)
	alpha, ok := cache.Lookup[*renderer.BlendState](r.Assets(), renderer.BlendAlpha)
	require.True(t, ok)
	r.ActivateShader(colorShader(t, r))
	r.ActivateBlendState(alpha)
	mesh := quad(t, r, false)
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())

	want := blendDesc{
		Enabled:  true,
		SrcColor: blendSrcAlpha, DestColor: blendInvSrcAlpha, ColorOp: blendOpAdd,
		SrcAlpha: blendOne, DestAlpha: blendOne, AlphaOp: blendOpAdd,
	}
	var state string
	for _, c := range dev.filter("CreateBlendState") {
		if strings.HasPrefix(c, fmt.Sprintf("CreateBlendState %v ", want)) {
			state = c[strings.LastIndex(c, " ")+1:]
		}
	}
	require.NotEmpty(t, state)
	assert.Equal(t, []string{"SetBlendState " + state}, dev.filter("SetBlendState"))
}

func TestTexturesBindWithConfiguredSampler(t *testing.T) {
	r, dev := newTestRenderer(t, renderer.WithTextureFiltering(renderer.TextureFilteringTrilinear))
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

	assert.Equal(t, []string{"CreateTexture 4 4 3 1 false"}, dev.filter("CreateTexture"))
	assert.Len(t, dev.filter("UpdateTexture"), 3)

	obj, ok := tex.Object().(*texture)
	require.True(t, ok)
	// handle 5 is the trilinear sampler created after the back buffer view and three other samplers
	assert.Equal(t, []string{fmt.Sprintf("SetTextures [0 %d] [0 5]", obj.view)}, dev.filter("SetTextures"))
	binds := dev.filter("SetBuffers")
	require.Len(t, binds, 1)
	assert.True(t, strings.HasSuffix(binds[0], fmt.Sprintf(" %d", formatR32UInt)))
}

func TestCompileFailureFailsPresent(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.Present())

	dev.failCompile = true
	s := r.CreateShaderFromBuffers([]byte("ps"), []byte("vs"), renderer.VertexPosition, nil, nil, 0, 0, "psMain", "vsMain")
	require.NotNil(t, s)
	assert.ErrorIs(t, r.Present(), errCompile)
	assert.False(t, s.Ready())
}

func TestDynamicMeshBufferReusesCapacity(t *testing.T) {
	r, dev := newTestRenderer(t)
	mesh := quad(t, r, true)
	require.NoError(t, r.Present())
	created := len(dev.filter("CreateBuffer"))
	dev.reset()

	require.NoError(t, mesh.UploadIndices(common.SliceToBytes([]uint16{0, 1, 2}), 2, 3))
	require.NoError(t, r.Present())
	assert.Empty(t, dev.filter("CreateBuffer"), "smaller data fits the existing buffers")
	assert.Len(t, dev.filter("UploadBuffer"), 2)
	dev.reset()

	attrs := renderer.VertexPosition | renderer.VertexColor
	require.NoError(t, mesh.UploadVertices(make([]byte, attrs.VertexSize()*8), attrs, 8))
	require.NoError(t, r.Present())
	assert.Len(t, dev.filter("CreateBuffer"), 1, "larger vertex data recreates the vertex buffer")
	assert.Len(t, dev.filter("Release"), 1)
	assert.Greater(t, created, 0)
}

func TestSetSizeRecreatesBackBufferView(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.SetSize(common.Size2{Width: 640, Height: 480}))
	assert.Equal(t, []string{"ResizeBuffers 640 480"}, dev.filter("ResizeBuffers"))

	dev.reset()
	require.NoError(t, r.Present())
	clears := dev.filter("ClearRenderTarget")
	require.Len(t, clears, 1)
	assert.NotEqual(t, "ClearRenderTarget 1 0 [0 0 0 1]", clears[0], "the new back buffer view is used")
	assert.Contains(t, dev.filter("SetViewport"), "SetViewport 640 480")
}

func TestFullscreenAndResolutions(t *testing.T) {
	dev := &recordingDevice{}
	surf := &windowSurface{size: common.Size2{Width: 320, Height: 240}, hwnd: 42, monitor: common.Size2{Width: 2560, Height: 1440}, refreshRate: 144}
	r, err := renderer.NewRenderer(renderer.WithBackendInstance(newBackend(dev)))
	require.NoError(t, err)
	require.NoError(t, r.Init(surf))

	require.NoError(t, r.SetFullscreen(true))
	require.NoError(t, r.SetFullscreen(false))
	assert.Equal(t, []string{
		"SetFullscreenState true 2560 1440 144",
		"SetFullscreenState false 2560 1440 144",
	}, dev.filter("SetFullscreenState"))
	assert.False(t, r.Fullscreen())
	assert.Equal(t, []common.Size2{{Width: 1920, Height: 1080}, {Width: 1280, Height: 720}}, r.SupportedResolutions())
}

func TestFullscreenFallsBackToBackBufferSize(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.SetFullscreen(true))
	assert.Equal(t, []string{"SetFullscreenState true 320 240 0"}, dev.filter("SetFullscreenState"))
}

func TestFullscreenFailureIsReported(t *testing.T) {
	r, dev := newTestRenderer(t)
	dev.fullscreenErr = errors.New("no containing output")
	assert.ErrorContains(t, r.SetFullscreen(true), "no containing output")
	assert.False(t, r.Fullscreen())
}

func TestFreeReleasesStates(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.Present())
	dev.reset()

	r.Free()
	assert.True(t, dev.closed)
	for h := 2; h <= 8; h++ {
		assert.Contains(t, dev.filter("Release"), fmt.Sprintf("Release %d", h))
	}
}

func TestInputElements(t *testing.T) {
	got := inputElements(renderer.VertexPosition | renderer.VertexNormal | renderer.VertexTexCoord1)
	assert.Equal(t, []inputElement{
		{Semantic: "POSITION", Format: formatR32G32B32Float, Offset: 0},
		{Semantic: "NORMAL", Format: formatR32G32B32Float, Offset: 12},
		{Semantic: "TEXCOORD", SemanticIndex: 1, Format: formatR32G32Float, Offset: 24},
	}, got)
}
