package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer/empty"
	"github.com/Carmen-Shannon/oxy-gfx/engine/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWindow runs a message loop without a platform window. Methods the engine never calls are left
// to the embedded nil interface.
type fakeWindow struct {
	window.Window

	mu           sync.Mutex
	size         common.Size2
	steps        []func(w *fakeWindow)
	onResize     func(size common.Size2)
	onFullscreen func(fullscreen bool)
	onUpdate     func()
	closed       atomic.Bool
	closes       atomic.Int32
}

func newFakeWindow(steps ...func(w *fakeWindow)) *fakeWindow {
	return &fakeWindow{size: common.Size2{Width: 320, Height: 240}, steps: steps}
}

func (w *fakeWindow) Size() common.Size2 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}
func (w *fakeWindow) Fullscreen() bool      { return false }
func (w *fakeWindow) NativeHandle() uintptr { return 1 }
func (w *fakeWindow) SetResizeCallback(callback func(size common.Size2)) {
	w.onResize = callback
}
func (w *fakeWindow) SetFullscreenCallback(callback func(fullscreen bool)) {
	w.onFullscreen = callback
}
func (w *fakeWindow) SetUpdateCallback(callback func()) { w.onUpdate = callback }
func (w *fakeWindow) IsRunning() bool                   { return !w.closed.Load() }
func (w *fakeWindow) Close() error {
	if w.closed.Swap(true) {
		return window.ErrNotInitialized
	}
	w.closes.Add(1)
	return nil
}
func (w *fakeWindow) ProcessMessages() {
	for !w.closed.Load() {
		if len(w.steps) > 0 {
			step := w.steps[0]
			w.steps = w.steps[1:]
			step(w)
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		time.Sleep(time.Millisecond)
	}
}

// resize behaves like the platform reporting a new framebuffer size.
func resize(size common.Size2) func(w *fakeWindow) {
	return func(w *fakeWindow) {
		w.mu.Lock()
		w.size = size
		w.mu.Unlock()
		w.onResize(size)
	}
}

// failingBackend is an empty backend whose Init fails.
type failingBackend struct {
	renderer.Backend
}

var errNoDevice = errors.New("no device")

func (b failingBackend) Init(renderer.Surface, renderer.Config) error { return errNoDevice }

func newTestEngine(t *testing.T, w *fakeWindow, backend renderer.Backend, options ...EngineBuilderOption) *engine {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.WithBackendInstance(backend))
	require.NoError(t, err)
	e, err := NewEngine(append([]EngineBuilderOption{WithWindow(w), WithRenderer(r)}, options...)...)
	require.NoError(t, err)
	return e.(*engine)
}

// runEngine runs e and fails the test if it does not stop in time.
func runEngine(t *testing.T, e *engine) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- e.Run() }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		e.Quit()
		t.Fatal("engine did not stop")
		return nil
	}
}

func TestRunPresentsUntilQuit(t *testing.T) {
	w := newFakeWindow()
	e := newTestEngine(t, w, empty.New())

	var frames atomic.Int32
	e.SetRenderCallback(func(float32) {
		if frames.Add(1) == 3 {
			e.Quit()
		}
	})

	require.NoError(t, runEngine(t, e))
	assert.GreaterOrEqual(t, frames.Load(), int32(3))
	assert.True(t, w.closed.Load())
	assert.Equal(t, int32(1), w.closes.Load())
	// the render goroutine freed the renderer on its way out
	assert.ErrorIs(t, e.Renderer().Present(), renderer.ErrNotInitialized)
}

func TestClosingTheWindowStopsTheEngine(t *testing.T) {
	w := newFakeWindow(
		func(*fakeWindow) {},
		func(w *fakeWindow) { w.closed.Store(true) },
	)
	e := newTestEngine(t, w, empty.New())
	require.NoError(t, runEngine(t, e))

	select {
	case <-e.quitChannel:
	default:
		t.Fatal("quit channel still open")
	}
	assert.False(t, e.running.Load())
}

func TestResizeIsAppliedOnTheRenderGoroutine(t *testing.T) {
	target := common.Size2{Width: 640, Height: 480}
	w := newFakeWindow(resize(target))
	e := newTestEngine(t, w, empty.New())

	var resized []common.Size2
	e.SetResizeCallback(func(size common.Size2) { resized = append(resized, size) })
	e.SetRenderCallback(func(float32) {
		if e.Renderer().Size() == target {
			e.Quit()
		}
	})

	require.NoError(t, runEngine(t, e))
	assert.Equal(t, []common.Size2{target}, resized)
}

func TestFullscreenIsForwardedToTheRenderer(t *testing.T) {
	w := newFakeWindow(func(w *fakeWindow) { w.onFullscreen(true) })
	e := newTestEngine(t, w, empty.New())
	e.SetRenderCallback(func(float32) {
		if e.Renderer().Fullscreen() {
			e.Quit()
		}
	})
	require.NoError(t, runEngine(t, e))
}

func TestInitFailureIsReturned(t *testing.T) {
	w := newFakeWindow()
	e := newTestEngine(t, w, failingBackend{Backend: empty.New()})
	e.SetRenderCallback(func(float32) { t.Error("render callback ran without a renderer") })

	err := runEngine(t, e)
	assert.ErrorIs(t, err, errNoDevice)
	assert.True(t, w.closed.Load())
}

func TestRenderPanicIsRecovered(t *testing.T) {
	w := newFakeWindow()
	e := newTestEngine(t, w, empty.New())
	e.SetRenderCallback(func(float32) { panic("boom") })

	err := runEngine(t, e)
	assert.ErrorIs(t, err, ErrRenderPanic)
	assert.ErrorContains(t, err, "boom")
	assert.True(t, w.closed.Load())
}

func TestTickCallbackRunsAtTheTickRate(t *testing.T) {
	w := newFakeWindow()
	e := newTestEngine(t, w, empty.New(), WithTickRate(1000))

	var ticks atomic.Int32
	e.SetTickCallback(func(dt float32) {
		if dt > 0 && ticks.Add(1) == 5 {
			e.Quit()
		}
	})
	require.NoError(t, runEngine(t, e))
	assert.GreaterOrEqual(t, ticks.Load(), int32(5))
}

func TestWindowChangesAreMergedNotDropped(t *testing.T) {
	w := newFakeWindow()
	e := newTestEngine(t, w, empty.New())
	require.NoError(t, e.renderer.Init(w))
	defer e.renderer.Free()

	var resized []common.Size2
	e.SetResizeCallback(func(size common.Size2) { resized = append(resized, size) })

	e.pushFullscreen(true)
	for i := 1; i <= 40; i++ {
		e.pushResize(common.Size2{Width: float32(100 + i), Height: 100})
	}
	e.applyEvents()

	assert.True(t, e.renderer.Fullscreen())
	assert.Equal(t, common.Size2{Width: 140, Height: 100}, e.renderer.Size())
	assert.Equal(t, []common.Size2{{Width: 140, Height: 100}}, resized)

	// nothing left to apply
	assert.Equal(t, windowChanges{}, e.takeChanges())
	e.pushFullscreen(true)
	e.pushFullscreen(false)
	e.applyEvents()
	assert.False(t, e.renderer.Fullscreen())
	assert.Len(t, resized, 1)
}

func TestOptions(t *testing.T) {
	s := DefaultSettings()
	s.TickRate = 30
	s.TargetFPS = 50
	s.Profiling = true

	w := newFakeWindow()
	e := newTestEngine(t, w, empty.New(), WithSettings(s), WithRenderFrameLimit(100))
	assert.Equal(t, s, e.Settings())
	assert.Equal(t, time.Second/30, e.engineTickRate)
	assert.Equal(t, 10*time.Millisecond, e.renderFrameLimit)
	assert.True(t, e.profilingEnabled.Load())
	assert.Equal(t, w, e.Window())

	e.DisableProfiler()
	assert.False(t, e.profilingEnabled.Load())
	e.EnableProfiler()
	assert.True(t, e.profilingEnabled.Load())

	e.SetTickRate(0)
	assert.Equal(t, time.Second/60, e.engineTickRate)
	e.SetRenderFrameLimit(0)
	assert.Zero(t, e.renderFrameLimit)
}
