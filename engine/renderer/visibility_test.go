package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/stretchr/testify/assert"
)

// screenCamera maps world units straight to pixels.
type screenCamera struct {
	zoom float32
}

func (c screenCamera) Zoom() float32                { return c.zoom }
func (c screenCamera) ContentScale() common.Vector2 { return common.Vector2{X: 1, Y: 1} }
func (c screenCamera) ProjectPoint(p common.Vector3) common.Vector2 {
	return common.Vector2{X: p.X, Y: p.Y}
}

func translation(x, y float32) common.Matrix4 {
	m := common.IdentityMatrix()
	m[12], m[13] = x, y
	return m
}

func TestViewScreenRoundTrip(t *testing.T) {
	r, _ := newTestRenderer(t, WithSize(testSize))

	for _, p := range []common.Vector2{{X: 0, Y: 0}, {X: 400, Y: 300}, {X: 800, Y: 600}, {X: 123.5, Y: 17.25}} {
		screen := r.ViewToScreenLocation(p)
		back := r.ScreenToViewLocation(screen)
		assert.InDelta(t, p.X, back.X, 1e-3)
		assert.InDelta(t, p.Y, back.Y, 1e-3)
	}

	center := r.ViewToScreenLocation(common.Vector2{X: 400, Y: 300})
	assert.InDelta(t, 0, center.X, 1e-6)
	assert.InDelta(t, 0, center.Y, 1e-6)

	topLeft := r.ViewToScreenLocation(common.Vector2{X: 0, Y: 0})
	assert.InDelta(t, -1, topLeft.X, 1e-6)
	assert.InDelta(t, 1, topLeft.Y, 1e-6)
}

func TestCheckVisibility(t *testing.T) {
	r, _ := newTestRenderer(t, WithSize(testSize))
	cam := screenCamera{zoom: 1}
	box := common.AABB2{Min: common.Vector2{X: -10, Y: -10}, Max: common.Vector2{X: 10, Y: 10}}

	tests := []struct {
		name    string
		x, y    float32
		visible bool
	}{
		{"center", 400, 300, true},
		{"edge", 800, 600, true},
		{"overlapping the left border", -9, 300, true},
		{"exactly one half size outside", -10, 300, true},
		{"outside", -11, 300, false},
		{"far away", 5000, 5000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.visible, r.CheckVisibility(translation(tt.x, tt.y), box, cam))
		})
	}
}

func TestCheckVisibilityAccountsForZoomAndRotation(t *testing.T) {
	r, _ := newTestRenderer(t, WithSize(testSize))
	box := common.AABB2{Min: common.Vector2{X: -10, Y: -10}, Max: common.Vector2{X: 10, Y: 10}}

	assert.False(t, r.CheckVisibility(translation(-15, 300), box, screenCamera{zoom: 1}))
	assert.True(t, r.CheckVisibility(translation(-15, 300), box, screenCamera{zoom: 2}))

	// 45 degree rotation widens the extent to 10*sqrt(2)
	var rotated common.Matrix4
	common.Transform2D(rotated[:], -14, 300, 0.7853982, 1, 1)
	assert.True(t, r.CheckVisibility(rotated, box, screenCamera{zoom: 1}))
}
