package window

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNotInitialized is returned when the platform window does not exist or has been closed.
var ErrNotInitialized = errors.New("window is not initialized")

// Window provides platform windowing and input event handling.
// Wraps platform-specific window implementations with a common interface.
// A Window is the renderer.Surface every backend draws to.
type Window interface {
	renderer.Surface
	renderer.GLContext
	renderer.DisplayModeProvider

	// Title returns the window title.
	//
	// Returns:
	//   - string: the title displayed in the title bar
	Title() string

	// SetSize resizes the client area. Nothing happens if the size is unchanged.
	//
	// Parameters:
	//   - size: the new size in pixels
	SetSize(size common.Size2)

	// SetFullscreen switches between windowed and fullscreen mode on the current monitor.
	// Nothing happens if the mode is unchanged.
	//
	// Parameters:
	//   - fullscreen: true for fullscreen
	SetFullscreen(fullscreen bool)

	// SetTitle changes the window title. Nothing happens if the title is unchanged.
	//
	// Parameters:
	//   - title: the new title
	SetTitle(title string)

	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the client area changes size.
	//
	// Parameters:
	//   - callback: function receiving the new size in pixels
	SetResizeCallback(callback func(size common.Size2))

	// SetFullscreenCallback sets the function called when the window enters or leaves fullscreen.
	//
	// Parameters:
	//   - callback: function receiving the new mode
	SetFullscreenCallback(callback func(fullscreen bool))

	// SetTitleCallback sets the function called when the title changes.
	//
	// Parameters:
	//   - callback: function receiving the new title
	SetTitleCallback(callback func(title string))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up/zoom in, negative = down/zoom out)
	SetScrollCallback(callback func(delta float32))

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key release events.
	//
	// Parameters:
	//   - callback: function receiving the key code
	SetKeyUpCallback(callback func(keyCode uint32))

	// SetMouseButtonCallback sets the callback for mouse button presses and releases.
	//
	// Parameters:
	//   - callback: function receiving the button, whether it is pressed and the cursor position
	SetMouseButtonCallback(callback func(button MouseButton, pressed bool, x, y int32))

	// SetMouseMoveCallback sets the callback for mouse movement.
	//
	// Parameters:
	//   - callback: function receiving mouse x, y position
	SetMouseMoveCallback(callback func(x, y int32))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// ProcessMessages runs the window message loop.
	// Blocks until the window is closed. Calls OnUpdate callback each iteration.
	ProcessMessages()
}

// MouseButton identifies a mouse button.
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

// platform is the native window underneath an engineWindow. Every method runs on the main thread,
// except the GL context methods which run on the render goroutine.
type platform interface {
	setSize(width, height int)
	setFullscreen(fullscreen bool)
	setTitle(title string)
	// pollEvents dispatches pending events and reports whether the window is still open.
	pollEvents() bool
	close()

	nativeHandle() uintptr
	surfaceDescriptor() *wgpu.SurfaceDescriptor
	makeCurrent()
	swapBuffers()
	swapInterval(interval int)
	displayMode() (common.Size2, int)
	videoModes() []common.Size2
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, the platform window, and event callbacks.
type engineWindow struct {
	// title is the window title displayed in the title bar.
	title string

	// maxWidth is the maximum allowed window width during resize.
	maxWidth int

	// maxHeight is the maximum allowed window height during resize.
	maxHeight int

	// minWidth is the minimum allowed window width during resize.
	minWidth int

	// minHeight is the minimum allowed window height during resize.
	minHeight int

	// width is the current window client area width in pixels.
	width int

	// height is the current window client area height in pixels.
	height int

	// fullscreen is true while the window covers its monitor.
	fullscreen bool

	// resizable lets the user resize the window.
	resizable bool

	// openGL creates an OpenGL 3.3 core context with the window.
	openGL bool

	// closeOnEscape closes the window when Escape is pressed.
	closeOnEscape bool

	// native holds the platform-specific window (glfwWindow).
	native platform

	// onUpdate is called each iteration of the message loop (if set).
	onUpdate func()

	// onResize is called when the client area changes size.
	onResize func(size common.Size2)

	// onFullscreen is called when the window enters or leaves fullscreen.
	onFullscreen func(fullscreen bool)

	// onTitle is called when the title changes.
	onTitle func(title string)

	// onScroll is called for mouse wheel events.
	// Positive delta = scroll up (zoom in), negative = scroll down (zoom out).
	onScroll func(delta float32)

	// onKeyDown is called when a key is pressed.
	onKeyDown func(keyCode uint32)

	// onKeyUp is called when a key is released.
	onKeyUp func(keyCode uint32)

	// onMouseButton is called when a mouse button is pressed or released.
	onMouseButton func(button MouseButton, pressed bool, x, y int32)

	// onMouseMove is called when the mouse moves within the window.
	onMouseMove func(x, y int32)
}

var _ Window = &engineWindow{}

func newEngineWindow(options ...WindowBuilderOption) *engineWindow {
	w := &engineWindow{
		title:         "oxy-gfx",
		maxWidth:      -1,
		maxHeight:     -1,
		minWidth:      -1,
		minHeight:     -1,
		width:         1280,
		height:        720,
		resizable:     true,
		closeOnEscape: true,
	}
	for _, opt := range options {
		opt(w)
	}
	return w
}

// NewWindow creates a new Window with the specified options.
// Applies default values first, then each option in order.
// Must be called from the main goroutine, which then runs ProcessMessages.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the spawned window
//   - error: error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := newEngineWindow(options...)
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("failed to create platform window: %w", err)
	}
	common.Logger().Info("window created", "title", w.title, "width", w.width, "height", w.height, "fullscreen", w.fullscreen)
	return w, nil
}

func (w *engineWindow) Size() common.Size2 {
	return common.Size2{Width: float32(w.width), Height: float32(w.height)}
}

func (w *engineWindow) Fullscreen() bool {
	return w.fullscreen
}

func (w *engineWindow) Title() string {
	return w.title
}

func (w *engineWindow) NativeHandle() uintptr {
	if w.native == nil {
		return 0
	}
	return w.native.nativeHandle()
}

func (w *engineWindow) SetSize(size common.Size2) {
	width, height := int(size.Width), int(size.Height)
	if width == w.width && height == w.height {
		return
	}
	if w.native != nil {
		w.native.setSize(width, height)
	}
	w.resized(width, height)
}

func (w *engineWindow) SetFullscreen(fullscreen bool) {
	if fullscreen == w.fullscreen {
		return
	}
	w.fullscreen = fullscreen
	if w.native != nil {
		w.native.setFullscreen(fullscreen)
	}
	if w.onFullscreen != nil {
		w.onFullscreen(fullscreen)
	}
}

func (w *engineWindow) SetTitle(title string) {
	if title == w.title {
		return
	}
	w.title = title
	if w.native != nil {
		w.native.setTitle(title)
	}
	if w.onTitle != nil {
		w.onTitle(title)
	}
}

// resized records a new client area size, from SetSize or the platform, and notifies on change.
func (w *engineWindow) resized(width, height int) {
	if width == w.width && height == w.height {
		return
	}
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(w.Size())
	}
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(size common.Size2)) {
	w.onResize = callback
}

func (w *engineWindow) SetFullscreenCallback(callback func(fullscreen bool)) {
	w.onFullscreen = callback
}

func (w *engineWindow) SetTitleCallback(callback func(title string)) {
	w.onTitle = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) SetMouseButtonCallback(callback func(button MouseButton, pressed bool, x, y int32)) {
	w.onMouseButton = callback
}

func (w *engineWindow) SetMouseMoveCallback(callback func(x, y int32)) {
	w.onMouseMove = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.native == nil {
		return nil
	}
	return w.native.surfaceDescriptor()
}

func (w *engineWindow) MakeCurrent() {
	if w.native != nil {
		w.native.makeCurrent()
	}
}

func (w *engineWindow) SwapBuffers() {
	if w.native != nil {
		w.native.swapBuffers()
	}
}

func (w *engineWindow) SwapInterval(interval int) {
	if w.native != nil {
		w.native.swapInterval(interval)
	}
}

func (w *engineWindow) DisplayMode() (common.Size2, int) {
	if w.native == nil {
		return w.Size(), 0
	}
	return w.native.displayMode()
}

func (w *engineWindow) VideoModes() []common.Size2 {
	if w.native == nil {
		return nil
	}
	return dedupeModes(w.native.videoModes())
}

// dedupeModes drops repeated resolutions; monitors list each one per refresh rate and bit depth.
func dedupeModes(modes []common.Size2) []common.Size2 {
	out := make([]common.Size2, 0, len(modes))
	seen := make(map[common.Size2]bool, len(modes))
	for _, m := range modes {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func (w *engineWindow) IsRunning() bool {
	return w.native != nil
}

func (w *engineWindow) Close() error {
	if w.native == nil {
		return ErrNotInitialized
	}
	w.native.close()
	w.native = nil
	return nil
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if running := w.native.pollEvents(); !running {
			break
		}

		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}
