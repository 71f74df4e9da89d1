//go:build windows

package window

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// nativeWindowHandle returns the HWND the Direct3D 11 backend creates its swap chain for.
func nativeWindowHandle(win *glfw.Window) uintptr {
	return uintptr(unsafe.Pointer(win.GetWin32Window()))
}
