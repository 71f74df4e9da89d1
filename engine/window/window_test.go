package window

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform records the native calls an engineWindow makes.
type fakePlatform struct {
	sizes       [][2]int
	fullscreens []bool
	titles      []string
	polls       int
	openPolls   int
	closed      bool
	current     bool
	swaps       int
	interval    int
}

func (p *fakePlatform) setSize(width, height int) { p.sizes = append(p.sizes, [2]int{width, height}) }
func (p *fakePlatform) setFullscreen(fullscreen bool) {
	p.fullscreens = append(p.fullscreens, fullscreen)
}
func (p *fakePlatform) setTitle(title string) { p.titles = append(p.titles, title) }
func (p *fakePlatform) pollEvents() bool {
	p.polls++
	return p.polls <= p.openPolls
}
func (p *fakePlatform) close()                { p.closed = true }
func (p *fakePlatform) nativeHandle() uintptr { return 42 }
func (p *fakePlatform) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return &wgpu.SurfaceDescriptor{Label: "fake"}
}
func (p *fakePlatform) makeCurrent()              { p.current = true }
func (p *fakePlatform) swapBuffers()              { p.swaps++ }
func (p *fakePlatform) swapInterval(interval int) { p.interval = interval }
func (p *fakePlatform) displayMode() (common.Size2, int) {
	return common.Size2{Width: 1920, Height: 1080}, 144
}
func (p *fakePlatform) videoModes() []common.Size2 {
	return []common.Size2{{Width: 1280, Height: 720}, {Width: 1920, Height: 1080}, {Width: 1280, Height: 720}}
}

func newTestWindow(options ...WindowBuilderOption) (*engineWindow, *fakePlatform) {
	w := newEngineWindow(options...)
	p := &fakePlatform{}
	w.native = p
	return w, p
}

func TestDefaultsAndOptions(t *testing.T) {
	w := newEngineWindow()
	assert.Equal(t, common.Size2{Width: 1280, Height: 720}, w.Size())
	assert.Equal(t, "oxy-gfx", w.Title())
	assert.False(t, w.Fullscreen())
	assert.True(t, w.resizable)
	assert.True(t, w.closeOnEscape)

	w = newEngineWindow(
		WithTitle("demo"),
		WithWidth(800),
		WithHeight(600),
		WithFullscreen(true),
		WithResizable(false),
		WithOpenGL(true),
		WithCloseOnEscape(false),
		WithMinWidth(100),
		WithMaxHeight(2000),
	)
	assert.Equal(t, common.Size2{Width: 800, Height: 600}, w.Size())
	assert.Equal(t, "demo", w.Title())
	assert.True(t, w.Fullscreen())
	assert.False(t, w.resizable)
	assert.True(t, w.openGL)
	assert.False(t, w.closeOnEscape)
	assert.Equal(t, 100, w.minWidth)
	assert.Equal(t, 2000, w.maxHeight)
}

func TestWindowIsARendererSurface(t *testing.T) {
	w, p := newTestWindow()
	var surface renderer.Surface = w
	assert.Equal(t, uintptr(42), surface.NativeHandle())

	gl, ok := surface.(renderer.GLContext)
	require.True(t, ok)
	gl.MakeCurrent()
	gl.SwapInterval(1)
	gl.SwapBuffers()
	assert.True(t, p.current)
	assert.Equal(t, 1, p.interval)
	assert.Equal(t, 1, p.swaps)

	modes, ok := surface.(renderer.DisplayModeProvider)
	require.True(t, ok)
	size, rate := modes.DisplayMode()
	assert.Equal(t, common.Size2{Width: 1920, Height: 1080}, size)
	assert.Equal(t, 144, rate)
	assert.Equal(t, []common.Size2{{Width: 1280, Height: 720}, {Width: 1920, Height: 1080}}, modes.VideoModes())

	assert.Equal(t, "fake", w.SurfaceDescriptor().Label)
}

func TestSetSizeNotifiesOnlyOnChange(t *testing.T) {
	w, p := newTestWindow()
	var sizes []common.Size2
	w.SetResizeCallback(func(size common.Size2) { sizes = append(sizes, size) })

	w.SetSize(common.Size2{Width: 1280, Height: 720})
	assert.Empty(t, p.sizes)
	assert.Empty(t, sizes)

	w.SetSize(common.Size2{Width: 640, Height: 480})
	assert.Equal(t, [][2]int{{640, 480}}, p.sizes)
	assert.Equal(t, []common.Size2{{Width: 640, Height: 480}}, sizes)

	// the platform reporting the size just set is not a second change
	w.resized(640, 480)
	assert.Len(t, sizes, 1)
	w.resized(1024, 768)
	assert.Equal(t, common.Size2{Width: 1024, Height: 768}, w.Size())
	assert.Len(t, sizes, 2)
}

func TestSetFullscreenNotifiesOnlyOnChange(t *testing.T) {
	w, p := newTestWindow()
	var modes []bool
	w.SetFullscreenCallback(func(fullscreen bool) { modes = append(modes, fullscreen) })

	w.SetFullscreen(false)
	w.SetFullscreen(true)
	w.SetFullscreen(true)
	w.SetFullscreen(false)
	assert.Equal(t, []bool{true, false}, p.fullscreens)
	assert.Equal(t, []bool{true, false}, modes)
	assert.False(t, w.Fullscreen())
}

func TestSetTitleNotifiesOnlyOnChange(t *testing.T) {
	w, p := newTestWindow(WithTitle("a"))
	var titles []string
	w.SetTitleCallback(func(title string) { titles = append(titles, title) })

	w.SetTitle("a")
	w.SetTitle("b")
	assert.Equal(t, []string{"b"}, p.titles)
	assert.Equal(t, []string{"b"}, titles)
	assert.Equal(t, "b", w.Title())
}

func TestProcessMessagesRunsUntilClosed(t *testing.T) {
	w, p := newTestWindow()
	p.openPolls = 3
	updates := 0
	w.SetUpdateCallback(func() { updates++ })

	w.ProcessMessages()
	assert.Equal(t, 3, updates)
	assert.Equal(t, 4, p.polls)

	require.NoError(t, w.Close())
	assert.True(t, p.closed)
	assert.False(t, w.IsRunning())
	assert.Zero(t, w.NativeHandle())
	assert.Nil(t, w.SurfaceDescriptor())
	assert.ErrorIs(t, w.Close(), ErrNotInitialized)
}

func TestKeyCodesMatchGLFW(t *testing.T) {
	keys := map[uint32]glfw.Key{
		common.KeySpace: glfw.KeySpace,
		common.KeyMinus: glfw.KeyMinus,
		common.KeyEqual: glfw.KeyEqual,
		common.KeyA:     glfw.KeyA,
		common.KeyW:     glfw.KeyW,
		common.KeyP:     glfw.KeyP,
		common.KeyEsc:   glfw.KeyEscape,
		common.KeyRight: glfw.KeyRight,
		common.KeyUp:    glfw.KeyUp,
		common.KeyF11:   glfw.KeyF11,
	}
	for code, key := range keys {
		assert.Equal(t, code, uint32(key))
	}
}
