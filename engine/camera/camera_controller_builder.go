package camera

import "github.com/Carmen-Shannon/oxy-gfx/common"

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithStartPosition sets the initial world position.
//
// Parameters:
//   - position: world-space position
//
// Returns:
//   - CameraControllerOption: functional option to set the position
func WithStartPosition(position common.Vector2) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.position = position
	}
}

// WithStartZoom sets the initial zoom factor. It is clamped to the zoom limits after all options apply.
//
// Parameters:
//   - zoom: the zoom factor
//
// Returns:
//   - CameraControllerOption: functional option to set the zoom
func WithStartZoom(zoom float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.zoom = zoom
	}
}

// WithZoomLimits sets the minimum and maximum zoom factors.
//
// Parameters:
//   - minZoom: smallest zoom factor (must be > 0)
//   - maxZoom: largest zoom factor
//
// Returns:
//   - CameraControllerOption: functional option to set the zoom limits
func WithZoomLimits(minZoom, maxZoom float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		if minZoom > 0 && maxZoom >= minZoom {
			cc.minZoom = minZoom
			cc.maxZoom = maxZoom
		}
	}
}

// WithPanSpeed sets the pan speed multiplier.
//
// Parameters:
//   - speed: multiplier for pan input
//
// Returns:
//   - CameraControllerOption: functional option to set the pan speed
func WithPanSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.panSpeed = speed
	}
}

// WithZoomSpeed sets the zoom speed multiplier.
//
// Parameters:
//   - speed: multiplier for zoom input
//
// Returns:
//   - CameraControllerOption: functional option to set the zoom speed
func WithZoomSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.zoomSpeed = speed
	}
}
