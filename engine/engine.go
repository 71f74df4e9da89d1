package engine

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/profiler"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/Carmen-Shannon/oxy-gfx/engine/window"
)

// ErrRenderPanic is returned by Run when the render goroutine recovered from a panic.
var ErrRenderPanic = errors.New("render goroutine panicked")

// windowChanges holds the window state the render goroutine has not applied yet.
// Only the latest size and the latest fullscreen flag are kept.
type windowChanges struct {
	resize     bool
	size       common.Size2
	toggle     bool
	fullscreen bool
}

// engine implements the Engine interface.
// Coordinates engine, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	changesMu sync.Mutex
	changes   windowChanges // Window changes for the render goroutine

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel  chan struct{}
	quitOnce     sync.Once // Ensures quitChannel is only closed once
	shutdownOnce sync.Once

	window   window.Window
	renderer renderer.Renderer
	settings Settings

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)
	resizeCallback func(size common.Size2)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped

	errMu     sync.Mutex
	renderErr error
}

// Engine is the main entry point for the engine.
// It owns the window and the renderer, and orchestrates the tick loop, the render loop and the window message loop.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer drawing into the window.
	//
	// Returns:
	//   - renderer.Renderer: the renderer instance
	Renderer() renderer.Renderer

	// Settings returns the settings the engine was built with.
	//
	// Returns:
	//   - Settings: the engine settings
	Settings() Settings

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, physics, input processing, and animation updates.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called each render frame before Present.
	// Use this to update resources and record draw calls for the frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetResizeCallback registers the function called on the render goroutine after the renderer
	// has been resized to follow the window.
	//
	// Parameters:
	//   - callback: function receiving the new size in pixels
	SetResizeCallback(callback func(size common.Size2))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run initializes the renderer on the render goroutine and runs the window message loop on the calling goroutine.
	// Blocks until the window closes or Quit is called, then frees the renderer and closes the window.
	//
	// Returns:
	//   - error: error if the renderer failed to initialize or the render goroutine panicked
	Run() error

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// A renderer is created from the settings unless WithRenderer supplied one, then a window unless WithWindow
// supplied one. The window gets an OpenGL context when the renderer's backend is OpenGL.
// Must be called from the main goroutine, which later calls Run.
//
// Parameters:
//   - options: functional options for engine configuration (settings, profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: error if the renderer or window could not be created
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		settings:        DefaultSettings(),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.renderer == nil {
		r, err := renderer.NewRenderer(e.settings.RendererOptions()...)
		if err != nil {
			return nil, fmt.Errorf("failed to create renderer: %w", err)
		}
		e.renderer = r
	}

	if e.window == nil {
		openGL := e.renderer.Backend().Name() == renderer.BackendOpenGL
		w, err := window.NewWindow(append(e.settings.WindowOptions(), window.WithOpenGL(openGL))...)
		if err != nil {
			return nil, fmt.Errorf("failed to create window: %w", err)
		}
		e.window = w
	}

	e.window.SetResizeCallback(e.pushResize)
	e.window.SetFullscreenCallback(e.pushFullscreen)

	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Settings() Settings {
	return e.settings
}

func (e *engine) Run() error {
	e.running.Store(true)
	ready := make(chan error, 1)
	e.handle(ready)

	if err := <-ready; err != nil {
		e.shutdown()
		return err
	}

	// Quit may come from any goroutine; the window can only be closed from this one.
	e.window.SetUpdateCallback(func() {
		select {
		case <-e.quitChannel:
			e.shutdown()
		default:
		}
	})
	e.window.ProcessMessages()
	e.shutdown()

	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.renderErr
}

// shutdown stops every goroutine, waits for the render goroutine to free the renderer and closes the window.
func (e *engine) shutdown() {
	e.signalQuit()
	e.wg.Wait()
	e.shutdownOnce.Do(func() {
		if e.window.IsRunning() {
			if err := e.window.Close(); err != nil {
				common.Logger().Warn("failed to close window", "error", err)
			}
		}
		common.Logger().Info("engine stopped")
	})
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running.Store(false)
		close(e.quitChannel)
	})
}

// pushResize records a new window size for the render goroutine without blocking the window goroutine.
// A later size replaces one that has not been applied yet.
func (e *engine) pushResize(size common.Size2) {
	e.changesMu.Lock()
	e.changes.resize, e.changes.size = true, size
	e.changesMu.Unlock()
}

// pushFullscreen records a fullscreen change for the render goroutine.
func (e *engine) pushFullscreen(fullscreen bool) {
	e.changesMu.Lock()
	e.changes.toggle, e.changes.fullscreen = true, fullscreen
	e.changesMu.Unlock()
}

// takeChanges returns the pending window changes and clears them.
func (e *engine) takeChanges() windowChanges {
	e.changesMu.Lock()
	defer e.changesMu.Unlock()
	c := e.changes
	e.changes = windowChanges{}
	return c
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle(ready chan<- error) {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender(ready)
	go e.handleQuit()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender owns the renderer: it initializes it on a locked OS thread, so an OpenGL context stays current,
// then runs the uncapped (or frame-limited) render loop and frees the renderer on exit.
// Each frame applies pending window changes, runs the render callback, presents and resets the draw call counter.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender(ready chan<- error) {
	defer e.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	// Recover from panics inside the render goroutine to avoid crashing the whole process.
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrRenderPanic, r)
			common.Logger().Error("render goroutine recovered from panic", "panic", r)
			e.errMu.Lock()
			e.renderErr = err
			e.errMu.Unlock()
			// Run is still waiting if the panic came from Init.
			select {
			case ready <- err:
			default:
			}
			e.signalQuit()
		}
	}()

	if err := e.renderer.Init(e.window); err != nil {
		ready <- fmt.Errorf("failed to initialize renderer: %w", err)
		return
	}
	defer e.renderer.Free()
	ready <- nil

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			e.applyEvents()

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			// Present logs its own failures; a bad frame does not stop the loop.
			_ = e.renderer.Present()

			if e.profilingEnabled.Load() && e.profiler != nil {
				e.profiler.Tick(e.renderer.DrawCallCount())
			}
			e.renderer.Clear()

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// applyEvents hands pending window changes to the renderer. Render goroutine only.
// Fullscreen goes first because switching modes is usually followed by the matching resize.
func (e *engine) applyEvents() {
	c := e.takeChanges()
	if c.toggle {
		if err := e.renderer.SetFullscreen(c.fullscreen); err != nil {
			common.Logger().Warn("failed to switch fullscreen", "fullscreen", c.fullscreen, "error", err)
		}
	}
	if c.resize {
		if err := e.renderer.SetSize(c.size); err != nil {
			common.Logger().Warn("failed to resize renderer", "width", c.size.Width, "height", c.size.Height, "error", err)
			return
		}
		if e.resizeCallback != nil {
			e.resizeCallback(c.size)
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running.Load() {
		// Send to channel for immediate update in running engine loop
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			// Channel has a pending update, drain and send new value
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		// Engine not running, just update the field
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetResizeCallback(callback func(size common.Size2)) {
	e.resizeCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

// frameDuration converts a rate to a period; 0 for rates <= 0.
func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
