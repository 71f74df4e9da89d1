package camera

import "github.com/Carmen-Shannon/oxy-gfx/common"

type CameraBuilderOption func(*cameraImpl)

// WithPosition sets the world position shown at the viewport center.
//
// Parameters:
//   - position: the initial world position
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's position
func WithPosition(position common.Vector2) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position = position
	}
}

// WithRotation sets the counter-clockwise camera rotation in radians.
//
// Parameters:
//   - rotation: rotation in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's rotation
func WithRotation(rotation float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.rotation = rotation
	}
}

// WithZoom sets the initial zoom factor. Values <= 0 are ignored.
//
// Parameters:
//   - zoom: the zoom factor
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's zoom
func WithZoom(zoom float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		if zoom > 0 {
			c.zoom = zoom
		}
	}
}

// WithContentScale sets the pixels per world unit along each axis.
//
// Parameters:
//   - scale: the content scale
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's content scale
func WithContentScale(scale common.Vector2) CameraBuilderOption {
	return func(c *cameraImpl) {
		if scale.X > 0 && scale.Y > 0 {
			c.contentScale = scale
		}
	}
}

// WithViewport sets the viewport size in pixels.
//
// Parameters:
//   - size: the viewport size
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's viewport
func WithViewport(size common.Size2) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.viewport = size
	}
}

// WithController attaches a camera controller. Its position and zoom replace the camera's.
//
// Parameters:
//   - ctrl: the camera controller to attach
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's controller
func WithController(ctrl CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}
