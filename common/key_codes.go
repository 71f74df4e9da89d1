package common

// Key codes passed to the window key callbacks. Printable keys use their ASCII value and the
// rest use GLFW's numbering, so the window forwards GLFW keys without translation.
const (
	KeySpace = 32
	KeyMinus = 45
	KeyEqual = 61

	KeyA = 65
	KeyD = 68
	KeyF = 70
	KeyP = 80
	KeyS = 83
	KeyW = 87

	KeyEsc   = 256
	KeyRight = 262
	KeyLeft  = 263
	KeyDown  = 264
	KeyUp    = 265
	KeyF11   = 300
)
