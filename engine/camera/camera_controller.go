package camera

import "github.com/Carmen-Shannon/oxy-gfx/common"

// CameraController owns the positional state of a 2D camera: where it looks and how far it is zoomed.
// The Camera reads from the controller in Update, so input handlers can drive the controller
// from the window goroutine while the camera is read by the render goroutine.
type CameraController interface {
	// Position returns the world position the camera is centered on.
	//
	// Returns:
	//   - common.Vector2: world-space position
	Position() common.Vector2

	// SetPosition sets the world position directly.
	//
	// Parameters:
	//   - position: world-space position
	SetPosition(position common.Vector2)

	// Zoom returns the current zoom factor.
	//
	// Returns:
	//   - float32: the zoom factor
	Zoom() float32

	// SetZoom sets the zoom factor directly, clamped to the min/max bounds.
	//
	// Parameters:
	//   - zoom: the new zoom factor
	SetZoom(zoom float32)

	// ZoomBy changes the zoom by delta scaled by ZoomSpeed, clamped to the min/max bounds.
	// Positive delta zooms in.
	//
	// Parameters:
	//   - delta: zoom amount, typically a scroll wheel delta
	ZoomBy(delta float32)

	// PanRight moves the camera along world X. The step is scaled by PanSpeed and divided by
	// the zoom so a pan covers the same screen distance at every zoom level.
	// Positive delta moves right, negative moves left.
	//
	// Parameters:
	//   - delta: pan amount
	PanRight(delta float32)

	// PanUp moves the camera along world Y, scaled like PanRight.
	// Positive delta moves up, negative moves down.
	//
	// Parameters:
	//   - delta: pan amount
	PanUp(delta float32)

	// MinZoom returns the smallest allowed zoom factor.
	//
	// Returns:
	//   - float32: minimum zoom
	MinZoom() float32

	// MaxZoom returns the largest allowed zoom factor.
	//
	// Returns:
	//   - float32: maximum zoom
	MaxZoom() float32

	// PanSpeed returns the pan speed multiplier.
	//
	// Returns:
	//   - float32: multiplier for pan input
	PanSpeed() float32

	// ZoomSpeed returns the zoom speed multiplier.
	//
	// Returns:
	//   - float32: multiplier for zoom input
	ZoomSpeed() float32
}
