package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/chewxy/math32"
)

// cameraControllerImpl is the single implementation of CameraController.
type cameraControllerImpl struct {
	mu *sync.Mutex

	position common.Vector2
	zoom     float32

	minZoom float32
	maxZoom float32

	panSpeed  float32
	zoomSpeed float32
}

// Compile-time interface compliance check
var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a new camera controller with sensible defaults:
// centered on the origin, zoom 1 within [0.1, 10], pan speed 1 and zoom speed 0.1.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu:        &sync.Mutex{},
		zoom:      1,
		minZoom:   0.1,
		maxZoom:   10,
		panSpeed:  1,
		zoomSpeed: 0.1,
	}

	for _, option := range options {
		option(cc)
	}

	cc.zoom = cc.clampZoom(cc.zoom)
	return cc
}

// clampZoom limits zoom to [minZoom, maxZoom].
func (cc *cameraControllerImpl) clampZoom(zoom float32) float32 {
	return math32.Max(cc.minZoom, math32.Min(cc.maxZoom, zoom))
}

func (cc *cameraControllerImpl) Position() common.Vector2 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *cameraControllerImpl) SetPosition(position common.Vector2) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position = position
}

func (cc *cameraControllerImpl) Zoom() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.zoom
}

func (cc *cameraControllerImpl) SetZoom(zoom float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.zoom = cc.clampZoom(zoom)
}

// ZoomBy scales the zoom multiplicatively so each scroll step feels the same at every zoom level.
func (cc *cameraControllerImpl) ZoomBy(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.zoom = cc.clampZoom(cc.zoom * (1 + delta*cc.zoomSpeed))
}

func (cc *cameraControllerImpl) PanRight(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position.X += delta * cc.panSpeed / cc.zoom
}

func (cc *cameraControllerImpl) PanUp(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.position.Y += delta * cc.panSpeed / cc.zoom
}

func (cc *cameraControllerImpl) MinZoom() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.minZoom
}

func (cc *cameraControllerImpl) MaxZoom() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.maxZoom
}

func (cc *cameraControllerImpl) PanSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.panSpeed
}

func (cc *cameraControllerImpl) ZoomSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.zoomSpeed
}
