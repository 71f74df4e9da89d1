//go:build darwin

package window

import "github.com/go-gl/glfw/v3.3/glfw"

// nativeWindowHandle returns the NSWindow the Metal backend attaches its layer to.
func nativeWindowHandle(win *glfw.Window) uintptr {
	return uintptr(win.GetCocoaWindow())
}
