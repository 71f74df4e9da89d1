package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/Carmen-Shannon/oxy-gfx/engine/renderer"
)

type cameraImpl struct {
	mu *sync.Mutex

	viewport     common.Size2
	contentScale common.Vector2

	position common.Vector2
	rotation float32
	zoom     float32

	viewMatrix                  common.Matrix4
	projectionMatrix            common.Matrix4
	viewProjectionMatrix        common.Matrix4
	inverseViewProjectionMatrix common.Matrix4

	controller CameraController
}

// Camera is an orthographic 2D camera looking down the Z axis.
// One world unit covers zoom * content scale pixels, the camera position maps to the viewport center
// and pixel coordinates grow right and down from the top-left corner.
// A Camera satisfies renderer.Camera so it can be passed to CheckVisibility.
type Camera interface {
	renderer.Camera

	// Position returns the world position at the center of the viewport.
	//
	// Returns:
	//   - common.Vector2: the camera position
	Position() common.Vector2

	// SetPosition moves the camera and recomputes matrices.
	//
	// Parameters:
	//   - position: the new world position
	SetPosition(position common.Vector2)

	// Rotation returns the counter-clockwise camera rotation in radians.
	//
	// Returns:
	//   - float32: the rotation in radians
	Rotation() float32

	// SetRotation sets the camera rotation in radians and recomputes matrices.
	//
	// Parameters:
	//   - rotation: counter-clockwise rotation in radians
	SetRotation(rotation float32)

	// SetZoom sets the zoom factor. Values <= 0 are ignored.
	//
	// Parameters:
	//   - zoom: the new zoom factor (1 = one pixel per world unit at content scale 1)
	SetZoom(zoom float32)

	// SetContentScale sets the per-axis scale from world units to pixels. Non-positive components are ignored.
	//
	// Parameters:
	//   - scale: pixels per world unit along each axis
	SetContentScale(scale common.Vector2)

	// Viewport returns the viewport size in pixels.
	//
	// Returns:
	//   - common.Size2: the viewport size
	Viewport() common.Size2

	// SetViewport sets the viewport size in pixels, typically from a resize callback.
	//
	// Parameters:
	//   - size: the new viewport size
	SetViewport(size common.Size2)

	// ViewMatrix returns the world to camera matrix.
	//
	// Returns:
	//   - common.Matrix4: the view matrix
	ViewMatrix() common.Matrix4

	// ProjectionMatrix returns the orthographic camera to clip matrix.
	//
	// Returns:
	//   - common.Matrix4: the projection matrix
	ProjectionMatrix() common.Matrix4

	// ViewProjectionMatrix returns the combined world to clip matrix, ready for a shader constant.
	//
	// Returns:
	//   - common.Matrix4: the view-projection matrix
	ViewProjectionMatrix() common.Matrix4

	// UnprojectPoint maps a pixel position back to a world position on the Z = 0 plane.
	//
	// Parameters:
	//   - p: the pixel position
	//
	// Returns:
	//   - common.Vector2: the world position
	UnprojectPoint(p common.Vector2) common.Vector2

	// Controller returns the attached CameraController, or nil.
	//
	// Returns:
	//   - CameraController: the attached controller or nil
	Controller() CameraController

	// SetController attaches a CameraController. Update copies its position and zoom into the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)

	// Update reads position and zoom from the controller and recomputes matrices.
	// Should be called once per frame (typically in the tick callback).
	// If no controller is attached, this method does nothing.
	Update()
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera centered on the origin with zoom and content scale 1.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:           &sync.Mutex{},
		viewport:     common.Size2{Width: 1280, Height: 720},
		contentScale: common.Vector2{X: 1, Y: 1},
		zoom:         1,
	}
	for _, option := range options {
		option(c)
	}
	if c.controller != nil {
		c.position = c.controller.Position()
		c.zoom = c.controller.Zoom()
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Zoom() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.zoom
}

func (c *cameraImpl) ContentScale() common.Vector2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentScale
}

func (c *cameraImpl) ProjectPoint(p common.Vector3) common.Vector2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ndc := c.viewProjectionMatrix.TransformPoint(p)
	return common.Vector2{
		X: (ndc.X + 1) / 2 * c.viewport.Width,
		Y: c.viewport.Height - (ndc.Y+1)/2*c.viewport.Height,
	}
}

func (c *cameraImpl) UnprojectPoint(p common.Vector2) common.Vector2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.viewport.Positive() {
		return common.Vector2{}
	}
	ndc := common.Vector3{
		X: 2*p.X/c.viewport.Width - 1,
		Y: 2*(c.viewport.Height-p.Y)/c.viewport.Height - 1,
	}
	world := c.inverseViewProjectionMatrix.TransformPoint(ndc)
	return common.Vector2{X: world.X, Y: world.Y}
}

func (c *cameraImpl) Position() common.Vector2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

func (c *cameraImpl) SetPosition(position common.Vector2) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = position
	c.updateMatrices()
}

func (c *cameraImpl) Rotation() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotation
}

func (c *cameraImpl) SetRotation(rotation float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotation = rotation
	c.updateMatrices()
}

func (c *cameraImpl) SetZoom(zoom float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if zoom <= 0 {
		return
	}
	c.zoom = zoom
	c.updateMatrices()
}

func (c *cameraImpl) SetContentScale(scale common.Vector2) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if scale.X <= 0 || scale.Y <= 0 {
		return
	}
	c.contentScale = scale
	c.updateMatrices()
}

func (c *cameraImpl) Viewport() common.Size2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

func (c *cameraImpl) SetViewport(size common.Size2) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = size
	c.updateMatrices()
}

func (c *cameraImpl) ViewMatrix() common.Matrix4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() common.Matrix4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() common.Matrix4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.position = c.controller.Position()
	if zoom := c.controller.Zoom(); zoom > 0 {
		c.zoom = zoom
	}
	c.updateMatrices()
}

// updateMatrices recalculates the view, projection, view-projection and inverse view-projection matrices.
// The projection is left as identity while the viewport is empty.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	var transform common.Matrix4
	common.Transform2D(transform[:], c.position.X, c.position.Y, c.rotation, 1, 1)
	if !common.Invert4(c.viewMatrix[:], transform[:]) {
		c.viewMatrix = common.IdentityMatrix()
	}

	c.projectionMatrix = common.IdentityMatrix()
	if c.viewport.Positive() {
		halfWidth := c.viewport.Width / (2 * c.zoom * c.contentScale.X)
		halfHeight := c.viewport.Height / (2 * c.zoom * c.contentScale.Y)
		common.Orthographic(c.projectionMatrix[:], -halfWidth, halfWidth, -halfHeight, halfHeight, -1, 1)
	}

	c.viewProjectionMatrix = c.projectionMatrix.Mul(c.viewMatrix)
	if inverse, ok := c.viewProjectionMatrix.Inverse(); ok {
		c.inverseViewProjectionMatrix = inverse
	} else {
		c.inverseViewProjectionMatrix = common.IdentityMatrix()
	}
}
