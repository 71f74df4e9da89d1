package renderer

import (
	"github.com/Carmen-Shannon/oxy-gfx/common"
	"github.com/chewxy/math32"
)

// Camera projects world positions to screen pixels for visibility checks.
type Camera interface {
	// Zoom returns the camera zoom factor.
	Zoom() float32

	// ContentScale returns the per-axis scale from world units to pixels.
	ContentScale() common.Vector2

	// ProjectPoint maps a world position to a pixel position.
	ProjectPoint(p common.Vector3) common.Vector2
}

func (r *renderer) CheckVisibility(transform common.Matrix4, box common.AABB2, camera Camera) bool {
	size := r.Size()
	return checkVisibility(size, transform, box, camera)
}

func checkVisibility(size common.Size2, transform common.Matrix4, box common.AABB2, camera Camera) bool {
	visible := common.Rectangle{Width: size.Width, Height: size.Height}

	diff := box.Size()
	center := transform.TransformPoint(common.Vector3{
		X: box.Min.X + diff.X/2,
		Y: box.Min.Y + diff.Y/2,
	})
	projected := camera.ProjectPoint(center)

	zoom := camera.Zoom()
	scale := camera.ContentScale()
	halfWidth := diff.X * zoom * scale.X / 2
	halfHeight := diff.Y * zoom * scale.Y / 2

	// extent of the rotated and scaled box in world units
	m := transform
	worldHalfWidth := math32.Max(
		math32.Abs(halfWidth*m[0]+halfHeight*m[4]),
		math32.Abs(halfWidth*m[0]-halfHeight*m[4]),
	)
	worldHalfHeight := math32.Max(
		math32.Abs(halfWidth*m[1]+halfHeight*m[5]),
		math32.Abs(halfWidth*m[1]-halfHeight*m[5]),
	)

	visible.X -= worldHalfWidth
	visible.Y -= worldHalfHeight
	visible.Width += worldHalfWidth * 2
	visible.Height += worldHalfHeight * 2

	return visible.ContainsPoint(projected)
}

func (r *renderer) ViewToScreenLocation(position common.Vector2) common.Vector2 {
	size := r.Size()
	return common.Vector2{
		X: 2*position.X/size.Width - 1,
		Y: 2*(size.Height-position.Y)/size.Height - 1,
	}
}

func (r *renderer) ScreenToViewLocation(position common.Vector2) common.Vector2 {
	size := r.Size()
	return common.Vector2{
		X: (position.X + 1) / 2 * size.Width,
		Y: size.Height - (position.Y+1)/2*size.Height,
	}
}
