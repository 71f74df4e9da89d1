package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectangleContainsPoint(t *testing.T) {
	r := Rectangle{X: 0, Y: 0, Width: 10, Height: 5}

	tests := []struct {
		name string
		p    Vector2
		want bool
	}{
		{"inside", Vector2{X: 5, Y: 2}, true},
		{"min corner", Vector2{X: 0, Y: 0}, true},
		{"max corner", Vector2{X: 10, Y: 5}, true},
		{"left of", Vector2{X: -0.1, Y: 2}, false},
		{"below", Vector2{X: 3, Y: 5.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ContainsPoint(tt.p))
		})
	}
}

func TestMatrixTransformPoint(t *testing.T) {
	var m Matrix4
	Transform2D(m[:], 10, 20, 0, 2, 3)

	p := m.TransformPoint(Vector3{X: 1, Y: 1})
	assert.InDelta(t, 12, p.X, 1e-5)
	assert.InDelta(t, 23, p.Y, 1e-5)
}

func TestMatrixInverse(t *testing.T) {
	var m Matrix4
	Transform2D(m[:], 5, -3, 0.5, 2, 2)

	inv, ok := m.Inverse()
	require.True(t, ok)

	id := m.Mul(inv)
	want := IdentityMatrix()
	for i := range id {
		assert.InDelta(t, want[i], id[i], 1e-5)
	}

	_, ok = Matrix4{}.Inverse()
	assert.False(t, ok)
}

func TestOrthographicMapsCorners(t *testing.T) {
	var m Matrix4
	Orthographic(m[:], 0, 100, 0, 50, -1, 1)

	lo := m.TransformPoint(Vector3{X: 0, Y: 0})
	hi := m.TransformPoint(Vector3{X: 100, Y: 50})
	assert.InDelta(t, -1, lo.X, 1e-5)
	assert.InDelta(t, -1, lo.Y, 1e-5)
	assert.InDelta(t, 1, hi.X, 1e-5)
	assert.InDelta(t, 1, hi.Y, 1e-5)
}

func TestIsPowerOfTwo(t *testing.T) {
	assert.True(t, IsPowerOfTwo(1))
	assert.True(t, IsPowerOfTwo(256))
	assert.False(t, IsPowerOfTwo(0))
	assert.False(t, IsPowerOfTwo(96))
}
