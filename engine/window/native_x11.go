//go:build linux && !wayland

package window

import "github.com/go-gl/glfw/v3.3/glfw"

func nativeWindowHandle(win *glfw.Window) uintptr {
	return uintptr(win.GetX11Window())
}
