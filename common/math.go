package common

import "github.com/chewxy/math32"

// Vector2 is a 2D point or direction.
type Vector2 struct {
	X, Y float32
}

// Vector3 is a 3D point or direction.
type Vector3 struct {
	X, Y, Z float32
}

// Size2 is a width/height pair.
type Size2 struct {
	Width, Height float32
}

// Positive reports whether both dimensions are greater than zero.
func (s Size2) Positive() bool {
	return s.Width > 0 && s.Height > 0
}

// Rectangle is an axis-aligned rectangle anchored at its minimum corner.
type Rectangle struct {
	X, Y          float32
	Width, Height float32
}

// ContainsPoint reports whether p lies inside the rectangle. Edges are inclusive.
//
// Parameters:
//   - p: the point to test
//
// Returns:
//   - bool: true if the point is inside or on the border of the rectangle
func (r Rectangle) ContainsPoint(p Vector2) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// AABB2 is a 2D axis-aligned bounding box.
type AABB2 struct {
	Min, Max Vector2
}

// Size returns the extent of the box along each axis.
func (b AABB2) Size() Vector2 {
	return Vector2{X: b.Max.X - b.Min.X, Y: b.Max.Y - b.Min.Y}
}

// Center returns the midpoint of the box.
func (b AABB2) Center() Vector2 {
	return Vector2{X: b.Min.X + (b.Max.X-b.Min.X)/2, Y: b.Min.Y + (b.Max.Y-b.Min.Y)/2}
}

// Matrix4 is a 4x4 matrix stored in column-major order (OpenGL convention).
type Matrix4 [16]float32

// IdentityMatrix returns a new identity matrix.
func IdentityMatrix() Matrix4 {
	var m Matrix4
	Identity(m[:])
	return m
}

// TransformPoint transforms p by the matrix, treating it as a position (w = 1).
// The result is divided by w when w is neither 0 nor 1.
//
// Parameters:
//   - p: the point to transform
//
// Returns:
//   - Vector3: the transformed point
func (m Matrix4) TransformPoint(p Vector3) Vector3 {
	x := m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12]
	y := m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13]
	z := m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14]
	w := m[3]*p.X + m[7]*p.Y + m[11]*p.Z + m[15]
	if w != 0 && w != 1 {
		x, y, z = x/w, y/w, z/w
	}
	return Vector3{X: x, Y: y, Z: z}
}

// Mul returns m * o.
func (m Matrix4) Mul(o Matrix4) Matrix4 {
	var out Matrix4
	Mul4(out[:], m[:], o[:])
	return out
}

// Inverse returns the inverse of the matrix and whether it was invertible.
func (m Matrix4) Inverse() (Matrix4, bool) {
	out := m
	ok := Invert4(out[:], m[:])
	return out, ok
}

// Floats returns the matrix as a float slice suitable for a shader constant.
func (m Matrix4) Floats() []float32 {
	out := make([]float32, 16)
	copy(out, m[:])
	return out
}

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order.
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// Orthographic creates an orthographic projection mapping the box
// [left,right]x[bottom,top]x[near,far] onto clip space with depth in [-1, 1].
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - left, right: horizontal bounds
//   - bottom, top: vertical bounds
//   - near, far: depth bounds
func Orthographic(out []float32, left, right, bottom, top, near, far float32) {
	Identity(out)
	out[0] = 2 / (right - left)
	out[5] = 2 / (top - bottom)
	out[10] = -2 / (far - near)
	out[12] = -(right + left) / (right - left)
	out[13] = -(top + bottom) / (top - bottom)
	out[14] = -(far + near) / (far - near)
}

// Transform2D builds a column-major matrix that scales, rotates around Z and then translates.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - posX, posY: translation
//   - rotation: counter-clockwise rotation in radians
//   - scaleX, scaleY: scale factors
func Transform2D(out []float32, posX, posY, rotation, scaleX, scaleY float32) {
	c := math32.Cos(rotation)
	s := math32.Sin(rotation)
	Identity(out)
	out[0] = c * scaleX
	out[1] = s * scaleX
	out[4] = -s * scaleY
	out[5] = c * scaleY
	out[12] = posX
	out[13] = posY
}

// Invert4 computes the inverse of a 4x4 column-major matrix using the Laplace
// expansion (cofactor) method. If the matrix is singular (determinant ≈ 0) the
// output is left unchanged and the function returns false.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - m: source matrix (16 elements, column-major)
//
// Returns:
//   - bool: true if the matrix was successfully inverted, false if singular
func Invert4(out, m []float32) bool {
	s0 := m[0]*m[5] - m[4]*m[1]
	s1 := m[0]*m[6] - m[4]*m[2]
	s2 := m[0]*m[7] - m[4]*m[3]
	s3 := m[1]*m[6] - m[5]*m[2]
	s4 := m[1]*m[7] - m[5]*m[3]
	s5 := m[2]*m[7] - m[6]*m[3]

	c5 := m[10]*m[15] - m[14]*m[11]
	c4 := m[9]*m[15] - m[13]*m[11]
	c3 := m[9]*m[14] - m[13]*m[10]
	c2 := m[8]*m[15] - m[12]*m[11]
	c1 := m[8]*m[14] - m[12]*m[10]
	c0 := m[8]*m[13] - m[12]*m[9]

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if math32.Abs(det) < 1e-12 {
		return false
	}

	invDet := 1.0 / det

	var r [16]float32
	r[0] = (m[5]*c5 - m[6]*c4 + m[7]*c3) * invDet
	r[1] = (-m[1]*c5 + m[2]*c4 - m[3]*c3) * invDet
	r[2] = (m[13]*s5 - m[14]*s4 + m[15]*s3) * invDet
	r[3] = (-m[9]*s5 + m[10]*s4 - m[11]*s3) * invDet

	r[4] = (-m[4]*c5 + m[6]*c2 - m[7]*c1) * invDet
	r[5] = (m[0]*c5 - m[2]*c2 + m[3]*c1) * invDet
	r[6] = (-m[12]*s5 + m[14]*s2 - m[15]*s1) * invDet
	r[7] = (m[8]*s5 - m[10]*s2 + m[11]*s1) * invDet

	r[8] = (m[4]*c4 - m[5]*c2 + m[7]*c0) * invDet
	r[9] = (-m[0]*c4 + m[1]*c2 - m[3]*c0) * invDet
	r[10] = (m[12]*s4 - m[13]*s2 + m[15]*s0) * invDet
	r[11] = (-m[8]*s4 + m[9]*s2 - m[11]*s0) * invDet

	r[12] = (-m[4]*c3 + m[5]*c1 - m[6]*c0) * invDet
	r[13] = (m[0]*c3 - m[1]*c1 + m[2]*c0) * invDet
	r[14] = (-m[12]*s3 + m[13]*s1 - m[14]*s0) * invDet
	r[15] = (m[8]*s3 - m[9]*s1 + m[10]*s0) * invDet

	copy(out, r[:])
	return true
}

// IsPowerOfTwo reports whether v is a non-zero power of two.
func IsPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}
