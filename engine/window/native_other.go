//go:build !windows && !darwin && !(linux && !wayland)

package window

import "github.com/go-gl/glfw/v3.3/glfw"

// nativeWindowHandle has no use for the handle on these platforms; the OpenGL and WebGPU
// backends reach the window through its context and surface descriptor.
func nativeWindowHandle(*glfw.Window) uintptr {
	return 0
}
