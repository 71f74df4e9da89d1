package metal

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

var errLibrary = errors.New("library failed")

// recordingDevice logs every call as a space separated line and hands out increasing handles.
type recordingDevice struct {
	calls       []string
	next        handle
	failLibrary bool
	closed      bool
	drawable    []byte
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

func (d *recordingDevice) Init(window uintptr, width, height, sampleCount uint32, vsync bool) error {
	d.record("Init %d %d %d %d %t", window, width, height, sampleCount, vsync)
	return nil
}
func (d *recordingDevice) Close() { d.closed = true }
func (d *recordingDevice) ResizeDrawable(width, height uint32) {
	d.record("ResizeDrawable %d %d", width, height)
}
func (d *recordingDevice) SetFullscreen(fullscreen bool) error {
	d.record("SetFullscreen %t", fullscreen)
	return nil
}
func (d *recordingDevice) DisplayModes() []common.Size2 {
	return []common.Size2{{Width: 2560, Height: 1600}}
}

func (d *recordingDevice) BeginFrame(slot int) error {
	d.record("BeginFrame %d", slot)
	return nil
}
func (d *recordingDevice) BeginPass(color, depth handle, loadAction uint32, clearColor [4]float32) {
	d.record("BeginPass %d %d %d %v", color, depth, loadAction, clearColor)
}
func (d *recordingDevice) EndFrame() { d.record("EndFrame") }
func (d *recordingDevice) ReadDrawable() ([]byte, int, int, error) {
	return d.drawable, 1, 1, nil
}

func (d *recordingDevice) CreateLibrary(source []byte, binary bool) (handle, error) {
	d.record("CreateLibrary %t", binary)
	if d.failLibrary {
		return 0, errLibrary
	}
	return d.handle(), nil
}
func (d *recordingDevice) CreateFunction(library handle, name string) (handle, error) {
	d.record("CreateFunction %d %s", library, name)
	return d.handle(), nil
}
func (d *recordingDevice) CreatePipeline(desc pipelineDesc) (handle, error) {
	h := d.handle()
	d.record("CreatePipeline %d %d %d %t %d", desc.ColorFormat, desc.DepthFormat, desc.SampleCount, desc.Blend.Enabled, h)
	return h, nil
}
func (d *recordingDevice) CreateSampler(minMagFilter, mipFilter uint32) (handle, error) {
	d.record("CreateSampler %d %d", minMagFilter, mipFilter)
	return d.handle(), nil
}
func (d *recordingDevice) CreateTexture(width, height, levels, sampleCount, format uint32, renderTarget bool) (handle, error) {
	h := d.handle()
	d.record("CreateTexture %d %d %d %d %d %t %d", width, height, levels, sampleCount, format, renderTarget, h)
	return h, nil
}
func (d *recordingDevice) ReplaceRegion(texture handle, level, width, height uint32, data []byte) {
	d.record("ReplaceRegion %d %d %d %d %d", texture, level, width, height, len(data))
}
func (d *recordingDevice) CreateBuffer(data []byte, size uint32) (handle, error) {
	h := d.handle()
	d.record("CreateBuffer %d %d %d", len(data), size, h)
	return h, nil
}
func (d *recordingDevice) WriteBuffer(buffer handle, offset uint32, data []byte) {
	d.record("WriteBuffer %d %d %d", buffer, offset, len(data))
}
func (d *recordingDevice) Release(h handle) { d.record("Release %d", h) }

func (d *recordingDevice) SetViewport(width, height float32) {
	d.record("SetViewport %v %v", width, height)
}
func (d *recordingDevice) SetScissor(x, y, width, height uint32) {
	d.record("SetScissor %d %d %d %d", x, y, width, height)
}
func (d *recordingDevice) SetPipeline(pipeline handle) { d.record("SetPipeline %d", pipeline) }
func (d *recordingDevice) SetVertexBuffer(buffer handle, offset, index uint32) {
	d.record("SetVertexBuffer %d %d %d", buffer, offset, index)
}
func (d *recordingDevice) SetFragmentBuffer(buffer handle, offset, index uint32) {
	d.record("SetFragmentBuffer %d %d %d", buffer, offset, index)
}
func (d *recordingDevice) SetFragmentTexture(texture, sampler handle, index uint32) {
	d.record("SetFragmentTexture %d %d %d", texture, sampler, index)
}
func (d *recordingDevice) DrawIndexed(primitive, count, indexType uint32, indexBuffer handle, offset uint32) {
	d.record("DrawIndexed %d %d %d %d", primitive, count, indexType, offset)
}

type windowSurface struct {
	size       common.Size2
	window     uintptr
	fullscreen bool
}

func (s *windowSurface) Size() common.Size2    { return s.size }
func (s *windowSurface) Fullscreen() bool      { return s.fullscreen }
func (s *windowSurface) NativeHandle() uintptr { return s.window }

func newTestRenderer(t *testing.T, options ...renderer.RendererBuilderOption) (renderer.Renderer, *recordingDevice) {
	t.Helper()
	dev := &recordingDevice{}
	surf := &windowSurface{size: common.Size2{Width: 320, Height: 240}, window: 7}
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

func TestInitRequiresWindow(t *testing.T) {
	b := newBackend(&recordingDevice{})
	assert.ErrorIs(t, b.Init(&windowSurface{size: common.Size2{Width: 1, Height: 1}}, renderer.Config{}), ErrNoWindow)
}

func TestInitCreatesSamplers(t *testing.T) {
	r, dev := newTestRenderer(t, renderer.WithVerticalSync(false))

	assert.Equal(t, []string{"Init 7 320 240 1 false"}, dev.filter("Init"))
	assert.Equal(t, []string{
		fmt.Sprintf("CreateSampler %d %d", filterNearest, mipFilterNearest),
		fmt.Sprintf("CreateSampler %d %d", filterNearest, mipFilterLinear),
		fmt.Sprintf("CreateSampler %d %d", filterLinear, mipFilterNearest),
		fmt.Sprintf("CreateSampler %d %d", filterLinear, mipFilterLinear),
	}, dev.filter("CreateSampler"))

	assert.Equal(t, renderer.ShaderLanguageMSL, r.Backend().ShaderLanguage())
	src, ok := r.Backend().BuiltinShader(renderer.ShaderTexture)
	require.True(t, ok)
	assert.Equal(t, src.VertexShader, src.PixelShader)
	assert.Contains(t, string(src.PixelShader), "[[texture(0)]]")
}

func TestInitEntersRequestedFullscreen(t *testing.T) {
	dev := &recordingDevice{}
	b := newBackend(dev)
	require.NoError(t, b.Init(&windowSurface{window: 1}, renderer.Config{Size: common.Size2{Width: 800, Height: 600}, Fullscreen: true}))
	assert.Equal(t, []string{"SetFullscreen true"}, dev.filter("SetFullscreen"))
}

func TestBuiltinShadersShareOneLibrary(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.Present())

	assert.Equal(t, []string{"CreateLibrary false", "CreateLibrary false"}, dev.filter("CreateLibrary"))
	functions := dev.filter("CreateFunction")
	require.Len(t, functions, 4)
	assert.True(t, strings.HasSuffix(functions[0], " vsMain"))
	assert.True(t, strings.HasSuffix(functions[1], " psMain"))
	// both functions come from the library created just before them
	assert.Equal(t, strings.Fields(functions[0])[1], strings.Fields(functions[1])[1])
}

func TestCompiledLibraryLoadsAsBinary(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.Present())
	dev.reset()

	s := r.CreateShaderFromBuffers([]byte(metallibMagic+"ps"), []byte(metallibMagic+"vs"), renderer.VertexPosition, nil, nil, 0, 0, "fragmentMain", "vertexMain")
	require.NotNil(t, s)
	require.NoError(t, r.Present())
	assert.True(t, s.Ready())
	assert.Equal(t, []string{"CreateLibrary true", "CreateLibrary true"}, dev.filter("CreateLibrary"))
}

func TestLibraryFailureFailsPresent(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.Present())

	dev.failLibrary = true
	s := r.CreateShaderFromBuffers([]byte("ps"), []byte("vs"), renderer.VertexPosition, nil, nil, 0, 0, "psMain", "vsMain")
	require.NotNil(t, s)
	assert.ErrorIs(t, r.Present(), errLibrary)
	assert.False(t, s.Ready())
}

func TestEmptyFrameClearsDrawable(t *testing.T) {
	r, dev := newTestRenderer(t, renderer.WithClearColor(common.ColorBlue))
	require.NoError(t, r.Present())

	assert.Equal(t, []string{
		"BeginFrame 0",
		fmt.Sprintf("BeginPass 0 0 %d [0 0 1 1]", loadActionClear),
		"SetViewport 320 240",
		"EndFrame",
	}, filterAll(dev, "BeginFrame", "BeginPass", "SetViewport", "EndFrame"))
}

func filterAll(dev *recordingDevice, ops ...string) []string {
	var out []string
	for _, c := range dev.calls {
		for _, op := range ops {
			if strings.SplitN(c, " ", 2)[0] == op {
				out = append(out, c)
			}
		}
	}
	return out
}

func TestDrawCachesPipelineAndUsesByteOffsets(t *testing.T) {
	r, dev := newTestRenderer(t)
	shader := colorShader(t, r)
	mesh := quad(t, r)
	require.NoError(t, r.Present())
	dev.reset()

	r.ActivateShader(shader)
	r.SetShaderConstants([][]float32{common.IdentityMatrix().Floats()}, nil)
	require.NoError(t, r.DrawMeshBuffer(mesh, 3, renderer.DrawModeTriangleList, 3))
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleStrip, 0))
	require.NoError(t, r.Present())

	pipelines := dev.filter("CreatePipeline")
	require.Len(t, pipelines, 1)
	assert.True(t, strings.HasPrefix(pipelines[0], fmt.Sprintf("CreatePipeline %d 0 1 false", pixelFormatBGRA8Unorm)))
	assert.Len(t, dev.filter("SetPipeline"), 1)
	assert.Equal(t, []string{
		fmt.Sprintf("DrawIndexed %d 3 %d 6", primitiveTriangle, indexTypeUInt16),
		fmt.Sprintf("DrawIndexed %d 6 %d 0", primitiveTriangleStrip, indexTypeUInt16),
	}, dev.filter("DrawIndexed"))

	// the clear pass is opened by the first draw, not appended at the end
	passes := dev.filter("BeginPass")
	assert.Equal(t, []string{fmt.Sprintf("BeginPass 0 0 %d [0 0 0 1]", loadActionClear)}, passes)

	dev.reset()
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())
	assert.Empty(t, dev.filter("CreatePipeline"), "the pipeline is cached across frames")
	assert.Len(t, dev.filter("SetPipeline"), 1, "a new pass binds the pipeline again")
}

func TestConstantsUseAlignedRingOffsets(t *testing.T) {
	r, dev := newTestRenderer(t)
	shader := colorShader(t, r)
	mesh := quad(t, r)
	require.NoError(t, r.Present())
	dev.reset()

	r.ActivateShader(shader)
	r.SetShaderConstants([][]float32{common.IdentityMatrix().Floats()}, nil)
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())

	creates := dev.filter("CreateBuffer")
	require.Len(t, creates, 1)
	assert.True(t, strings.HasPrefix(creates[0], fmt.Sprintf("CreateBuffer 0 %d ", uniformBufferSize)))
	buf := strings.Fields(creates[0])[3]
	assert.Equal(t, []string{
		fmt.Sprintf("WriteBuffer %s 0 64", buf),
		fmt.Sprintf("WriteBuffer %s 256 64", buf),
	}, dev.filter("WriteBuffer"))
	assert.Contains(t, dev.filter("SetVertexBuffer"), fmt.Sprintf("SetVertexBuffer %s 256 %d", buf, vertexConstantsIndex))
}

func TestFramesCycleUniformSlots(t *testing.T) {
	r, dev := newTestRenderer(t)
	for range 4 {
		require.NoError(t, r.Present())
	}
	assert.Equal(t, []string{"BeginFrame 0", "BeginFrame 1", "BeginFrame 2", "BeginFrame 0"}, dev.filter("BeginFrame"))
}

func TestUniformBufferGrowsAndRetires(t *testing.T) {
	dev := &recordingDevice{}
	b := newBackend(dev)
	var u uniformBuffer

	buf, off, err := u.write(dev, make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), off)
	_, off, err = u.write(dev, make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, uint32(uniformAlignment), off)

	grown, off, err := u.write(dev, make([]byte, uniformBufferSize))
	require.NoError(t, err)
	assert.NotEqual(t, buf, grown)
	assert.Equal(t, uint32(0), off)
	assert.Equal(t, uint32(2*uniformBufferSize), u.size)
	assert.Equal(t, []handle{buf}, u.retired)
	assert.Empty(t, dev.filter("Release"), "the outgrown buffer may still be read by the GPU")

	u.reset(b)
	assert.Equal(t, []string{fmt.Sprintf("Release %d", buf)}, dev.filter("Release"))
	assert.Empty(t, u.retired)
	assert.Equal(t, uint32(0), u.offset)
}

func TestRenderTargetPassesClearOnceThenLoad(t *testing.T) {
	r, dev := newTestRenderer(t)
	shader := colorShader(t, r)
	mesh := quad(t, r)
	rt := r.CreateRenderTarget(common.Size2{Width: 64, Height: 32}, true)
	require.NotNil(t, rt)
	rt.SetClearColor(common.ColorRed)
	require.NoError(t, r.Present())

	textures := dev.filter("CreateTexture")
	require.Len(t, textures, 2)
	assert.True(t, strings.HasPrefix(textures[0], fmt.Sprintf("CreateTexture 64 32 1 1 %d true", pixelFormatRGBA8Unorm)))
	assert.True(t, strings.HasPrefix(textures[1], fmt.Sprintf("CreateTexture 64 32 1 1 %d true", pixelFormatDepth32Float)))
	color, depth := strings.Fields(textures[0])[7], strings.Fields(textures[1])[7]
	dev.reset()

	r.ActivateShader(shader)
	r.ActivateRenderTarget(rt)
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	r.ActivateRenderTarget(nil)
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	r.ActivateRenderTarget(rt)
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())

	assert.Equal(t, []string{
		fmt.Sprintf("BeginPass %s %s %d [1 0 0 1]", color, depth, loadActionClear),
		fmt.Sprintf("BeginPass 0 0 %d [0 0 0 1]", loadActionClear),
		fmt.Sprintf("BeginPass %s %s %d [1 0 0 1]", color, depth, loadActionLoad),
	}, dev.filter("BeginPass"))
	assert.Equal(t, []string{"SetViewport 64 32", "SetViewport 320 240", "SetViewport 64 32"}, dev.filter("SetViewport"))

	pipelines := dev.filter("CreatePipeline")
	require.Len(t, pipelines, 2, "render target and drawable attachments need separate pipelines")
	assert.True(t, strings.HasPrefix(pipelines[0], fmt.Sprintf("CreatePipeline %d %d 1", pixelFormatRGBA8Unorm, pixelFormatDepth32Float)))
	assert.True(t, strings.HasPrefix(pipelines[1], fmt.Sprintf("CreatePipeline %d 0 1", pixelFormatBGRA8Unorm)))
	assert.Len(t, dev.filter("SetPipeline"), 3)
}

func TestScissorIsClampedToPass(t *testing.T) {
	r, dev := newTestRenderer(t)
	r.ActivateShader(colorShader(t, r))
	mesh := quad(t, r)
	require.NoError(t, r.Present())
	dev.reset()

	r.SetScissorTest(true, common.Rectangle{X: -10, Y: 20, Width: 400, Height: 30})
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	r.SetScissorTest(false, common.Rectangle{})
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())

	assert.Equal(t, []string{"SetScissor 0 20 320 30", "SetScissor 0 0 320 240"}, dev.filter("SetScissor"))
}

func TestClampScissor(t *testing.T) {
	size := common.Size2{Width: 100, Height: 50}
	x, y, w, h := clampScissor(common.Rectangle{X: 90, Y: 60, Width: 20, Height: 10}, size)
	assert.Equal(t, [4]uint32{90, 50, 10, 0}, [4]uint32{x, y, w, h})
	x, y, w, h = clampScissor(common.Rectangle{X: 10, Y: 10, Width: -5, Height: 5}, size)
	assert.Equal(t, [4]uint32{10, 10, 0, 5}, [4]uint32{x, y, w, h})
}

func TestTexturesBindWithConfiguredSampler(t *testing.T) {
	dev := &recordingDevice{}
	b := newBackend(dev)
	r, err := renderer.NewRenderer(renderer.WithBackendInstance(b), renderer.WithTextureFiltering(renderer.TextureFilteringBilinear))
	require.NoError(t, err)
	require.NoError(t, r.Init(&windowSurface{size: common.Size2{Width: 320, Height: 240}, window: 7}))

	tex := r.CreateTextureFromData(make([]byte, 4*4*4), common.Size2{Width: 4, Height: 4}, false, true)
	require.NotNil(t, tex)
	shader, ok := cache.Lookup[*renderer.Shader](r.Assets(), renderer.ShaderTexture)
	require.True(t, ok)
	attrs := renderer.VertexPosition | renderer.VertexColor | renderer.VertexTexCoord0
	mesh := r.CreateMeshBufferFromData(
		common.SliceToBytes([]uint16{0, 1, 2, 2, 3, 0}), 2, 6, false,
		make([]byte, attrs.VertexSize()*4), attrs, 4, false,
	)
	require.NotNil(t, mesh)

	r.ActivateShader(shader)
	require.NoError(t, r.ActivateTexture(tex, 0))
	require.NoError(t, r.DrawMeshBuffer(mesh, 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())

	assert.Len(t, dev.filter("ReplaceRegion"), 3)
	obj, ok := tex.Object().(*texture)
	require.True(t, ok)
	assert.Equal(t, []string{
		fmt.Sprintf("SetFragmentTexture %d %d 0", obj.texture, b.samplers[renderer.TextureFilteringBilinear]),
		"SetFragmentTexture 0 0 1",
	}, dev.filter("SetFragmentTexture"))
}

func TestFreeingShaderEvictsPipelines(t *testing.T) {
	r, dev := newTestRenderer(t)
	shader := colorShader(t, r)
	r.ActivateShader(shader)
	require.NoError(t, r.DrawMeshBuffer(quad(t, r), 0, renderer.DrawModeTriangleList, 0))
	require.NoError(t, r.Present())

	pipelines := dev.filter("CreatePipeline")
	require.Len(t, pipelines, 1)
	pipeline := strings.Fields(pipelines[0])[5]
	b, ok := r.Backend().(*backend)
	require.True(t, ok)
	dev.reset()

	shader.Object().Free()
	assert.Contains(t, dev.filter("Release"), "Release "+pipeline)
	assert.Empty(t, b.pipelines)
}

func TestReadPixelsSwizzlesBGRA(t *testing.T) {
	r, dev := newTestRenderer(t)
	dev.drawable = []byte{1, 2, 3, 4}
	px, err := r.Backend().ReadPixels()
	require.NoError(t, err)
	assert.Equal(t, renderer.Pixels{Data: []byte{3, 2, 1, 4}, Width: 1, Height: 1, Pitch: 4}, px)
}

func TestSetSizeResizesDrawable(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.SetSize(common.Size2{Width: 640, Height: 480}))
	assert.Equal(t, []string{"ResizeDrawable 640 480"}, dev.filter("ResizeDrawable"))

	dev.reset()
	require.NoError(t, r.Present())
	assert.Equal(t, []string{"SetViewport 640 480"}, dev.filter("SetViewport"))
}

func TestFullscreenAndResolutions(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.SetFullscreen(true))
	assert.Equal(t, []string{"SetFullscreen true"}, dev.filter("SetFullscreen"))
	assert.Equal(t, []common.Size2{{Width: 2560, Height: 1600}}, r.SupportedResolutions())
}

func TestFreeReleasesSamplersAndCloses(t *testing.T) {
	r, dev := newTestRenderer(t)
	require.NoError(t, r.Present())
	dev.reset()

	r.Free()
	assert.True(t, dev.closed)
	for h := 1; h <= 4; h++ {
		assert.Contains(t, dev.filter("Release"), fmt.Sprintf("Release %d", h))
	}
}
