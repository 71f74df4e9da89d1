package window

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwWindow holds the GLFW-specific window state.
type glfwWindow struct {
	parent  *engineWindow
	window  *glfw.Window
	running bool

	// windowed position and size restored when leaving fullscreen
	windowedX, windowedY          int
	windowedWidth, windowedHeight int
}

var _ platform = &glfwWindow{}

// newPlatformWindow creates the GLFW window with input callbacks and stores it as the platform window.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
// go-gl/glfw: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw
func newPlatformWindow(w *engineWindow) error {
	runtime.LockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	// Only the OpenGL backend needs a context; the others provide their own graphics API.
	// Reference: https://www.glfw.org/docs/latest/window_guide.html#window_hints_ctx
	if w.openGL {
		glfw.WindowHint(glfw.ClientAPI, glfw.OpenGLAPI)
		glfw.WindowHint(glfw.ContextVersionMajor, 3)
		glfw.WindowHint(glfw.ContextVersionMinor, 3)
		glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
		glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	} else {
		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	}
	resizable := glfw.False
	if w.resizable {
		resizable = glfw.True
	}
	glfw.WindowHint(glfw.Resizable, resizable)

	width, height := w.width, w.height
	var monitor *glfw.Monitor
	if w.fullscreen {
		monitor = glfw.GetPrimaryMonitor()
		if mode := monitor.GetVideoMode(); mode != nil {
			width, height = mode.Width, mode.Height
		}
	}

	win, err := glfw.CreateWindow(width, height, w.title, monitor, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create GLFW window: %w", err)
	}
	win.SetSizeLimits(w.minWidth, w.minHeight, w.maxWidth, w.maxHeight)

	gw := &glfwWindow{
		parent:         w,
		window:         win,
		running:        true,
		windowedWidth:  w.width,
		windowedHeight: w.height,
	}
	gw.windowedX, gw.windowedY = win.GetPos()
	w.native = gw

	// Register GLFW callbacks for input and window events.
	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetKeyCallback
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if w.closeOnEscape && key == glfw.KeyEscape && action == glfw.Press {
			gw.running = false
			win.SetShouldClose(true)
			return
		}
		switch action {
		case glfw.Press, glfw.Repeat:
			if w.onKeyDown != nil {
				w.onKeyDown(uint32(key))
			}
		case glfw.Release:
			if w.onKeyUp != nil {
				w.onKeyUp(uint32(key))
			}
		}
	})

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetScrollCallback
	win.SetScrollCallback(func(_ *glfw.Window, xoff, yoff float64) {
		if w.onScroll != nil {
			w.onScroll(float32(yoff))
		}
	})

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetMouseButtonCallback
	win.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if w.onMouseButton == nil {
			return
		}
		var b MouseButton
		switch button {
		case glfw.MouseButtonLeft:
			b = MouseButtonLeft
		case glfw.MouseButtonRight:
			b = MouseButtonRight
		case glfw.MouseButtonMiddle:
			b = MouseButtonMiddle
		default:
			return
		}
		xpos, ypos := win.GetCursorPos()
		w.onMouseButton(b, action == glfw.Press, int32(xpos), int32(ypos))
	})

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetCursorPosCallback
	win.SetCursorPosCallback(func(_ *glfw.Window, xpos, ypos float64) {
		if w.onMouseMove != nil {
			w.onMouseMove(int32(xpos), int32(ypos))
		}
	})

	// Use framebuffer size callback for pixel-accurate resize events.
	// On high-DPI displays (e.g., macOS Retina), framebuffer size differs from window size.
	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetFramebufferSizeCallback
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		// minimizing reports a zero size the renderer cannot use
		if width == 0 || height == 0 {
			return
		}
		w.resized(width, height)
	})

	// Update stored dimensions to reflect actual framebuffer size (may differ from requested on high-DPI).
	w.width, w.height = win.GetFramebufferSize()

	return nil
}

// setSize converts pixels to screen coordinates before resizing.
func (g *glfwWindow) setSize(width, height int) {
	windowWidth, _ := g.window.GetSize()
	framebufferWidth, _ := g.window.GetFramebufferSize()
	scale := 1.0
	if windowWidth > 0 && framebufferWidth > 0 {
		scale = float64(framebufferWidth) / float64(windowWidth)
	}
	g.window.SetSize(int(float64(width)/scale), int(float64(height)/scale))
}

// setFullscreen moves the window onto its monitor at the monitor's current mode, or back to where it was.
//
// Reference: https://www.glfw.org/docs/latest/window_guide.html#window_full_screen
func (g *glfwWindow) setFullscreen(fullscreen bool) {
	if !fullscreen {
		g.window.SetMonitor(nil, g.windowedX, g.windowedY, g.windowedWidth, g.windowedHeight, 0)
		return
	}
	g.windowedX, g.windowedY = g.window.GetPos()
	g.windowedWidth, g.windowedHeight = g.window.GetSize()
	monitor := g.monitor()
	mode := monitor.GetVideoMode()
	g.window.SetMonitor(monitor, 0, 0, mode.Width, mode.Height, mode.RefreshRate)
}

func (g *glfwWindow) setTitle(title string) {
	g.window.SetTitle(title)
}

// pollEvents polls GLFW for pending events without blocking.
//
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#PollEvents
func (g *glfwWindow) pollEvents() bool {
	glfw.PollEvents()
	return g.running && !g.window.ShouldClose()
}

// close destroys the GLFW window and terminates the GLFW library.
func (g *glfwWindow) close() {
	g.running = false
	g.window.SetShouldClose(true)
	g.window.Destroy()
	glfw.Terminate()
}

func (g *glfwWindow) nativeHandle() uintptr {
	return nativeWindowHandle(g.window)
}

// surfaceDescriptor creates a platform-appropriate wgpu.SurfaceDescriptor from the GLFW window.
// Uses the wgpuglfw bridge package which has per-platform implementations (Windows, X11, Wayland, macOS).
//
// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func (g *glfwWindow) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(g.window)
}

func (g *glfwWindow) makeCurrent() {
	g.window.MakeContextCurrent()
}

func (g *glfwWindow) swapBuffers() {
	g.window.SwapBuffers()
}

func (g *glfwWindow) swapInterval(interval int) {
	glfw.SwapInterval(interval)
}

// monitor returns the monitor a fullscreen window is on, or the primary monitor.
func (g *glfwWindow) monitor() *glfw.Monitor {
	if m := g.window.GetMonitor(); m != nil {
		return m
	}
	return glfw.GetPrimaryMonitor()
}

func (g *glfwWindow) displayMode() (common.Size2, int) {
	mode := g.monitor().GetVideoMode()
	if mode == nil {
		return g.parent.Size(), 0
	}
	return common.Size2{Width: float32(mode.Width), Height: float32(mode.Height)}, mode.RefreshRate
}

func (g *glfwWindow) videoModes() []common.Size2 {
	modes := g.monitor().GetVideoModes()
	out := make([]common.Size2, 0, len(modes))
	for _, m := range modes {
		out = append(out, common.Size2{Width: float32(m.Width), Height: float32(m.Height)})
	}
	return out
}
