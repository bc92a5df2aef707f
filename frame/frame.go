// Package frame gives every 3-vector and rigid transform in the odometry
// pipeline a compile-time frame label, so a body-frame point can never be
// added to a world-frame point by accident.
package frame

import "math"

// Tag marks a coordinate frame. Body, Imu and World are the only tags used
// by the pipeline: raw LiDAR returns arrive in Body, the IMU predicts and
// corrects the filter state in Imu, and the voxel map is indexed in World.
type Tag interface {
	frameTag()
}

// Body is the LiDAR sensor frame.
type Body struct{}

func (Body) frameTag() {}

// Imu is the inertial sensor frame the filter state lives in.
type Imu struct{}

func (Imu) frameTag() {}

// World is the fixed frame the voxel map is built in.
type World struct{}

func (World) frameTag() {}

// Vec3 is a 3-vector tagged with the frame it was measured or expressed in.
// Per-point geometry uses plain float64 fields rather than gonum: this type
// is allocated once per LiDAR return, potentially hundreds of thousands of
// times per scan, and a fixed 3-wide value type avoids both the heap
// allocation and the interface dispatch gonum's mat.VecDense would add on
// that hot path.
type Vec3[F Tag] struct {
	X, Y, Z float64
}

// New builds a tagged vector from components.
func New[F Tag](x, y, z float64) Vec3[F] {
	return Vec3[F]{X: x, Y: y, Z: z}
}

// Array returns the vector as a plain array, for interop with untagged math.
func (v Vec3[F]) Array() [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// FromArray builds a tagged vector from a plain array.
func FromArray[F Tag](a [3]float64) Vec3[F] {
	return Vec3[F]{X: a[0], Y: a[1], Z: a[2]}
}

// Add returns the componentwise sum of two vectors in the same frame.
func (v Vec3[F]) Add(o Vec3[F]) Vec3[F] {
	return Vec3[F]{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns the componentwise difference of two vectors in the same frame.
func (v Vec3[F]) Sub(o Vec3[F]) Vec3[F] {
	return Vec3[F]{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns the vector scaled by s.
func (v Vec3[F]) Scale(s float64) Vec3[F] {
	return Vec3[F]{v.X * s, v.Y * s, v.Z * s}
}

// Dot returns the dot product of two vectors in the same frame.
func (v Vec3[F]) Dot(o Vec3[F]) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the cross product, still tagged with the shared frame.
func (v Vec3[F]) Cross(o Vec3[F]) Vec3[F] {
	return Vec3[F]{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

// Norm returns the Euclidean length of the vector.
func (v Vec3[F]) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalized returns v scaled to unit length. If v is the zero vector, the
// zero vector is returned unchanged rather than dividing by zero.
func (v Vec3[F]) Normalized() Vec3[F] {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return v.Scale(1 / n)
}

// CrossMatrix returns the skew-symmetric matrix [v]x such that
// [v]x * w == v.Cross(w) for any w.
func (v Vec3[F]) CrossMatrix() Mat3 {
	return Mat3{
		{0, -v.Z, v.Y},
		{v.Z, 0, -v.X},
		{-v.Y, v.X, 0},
	}
}

// Mat3 is a plain 3x3 row-major matrix, used for rotations and small
// covariance blocks that never enter the 24-dimensional filter state.
type Mat3 [3][3]float64

// Identity3 returns the 3x3 identity matrix.
func Identity3() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Diag3 returns a diagonal 3x3 matrix.
func Diag3(x, y, z float64) Mat3 {
	return Mat3{{x, 0, 0}, {0, y, 0}, {0, 0, z}}
}

// Add returns the componentwise sum of two matrices.
func (m Mat3) Add(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j] + o[i][j]
		}
	}
	return r
}

// Scale returns the matrix scaled by s.
func (m Mat3) Scale(s float64) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][j] * s
		}
	}
	return r
}

// Mul returns the matrix product m*o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += m[i][k] * o[k][j]
			}
			r[i][j] = s
		}
	}
	return r
}

// Transpose returns the matrix transpose.
func (m Mat3) Transpose() Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[j][i] = m[i][j]
		}
	}
	return r
}

// MulVec applies the matrix to a tagged vector, producing a vector in the
// same frame (rotations and skew matrices never change frame by themselves;
// frame changes happen only through Transform.Apply).
func MulVec[F Tag](m Mat3, v Vec3[F]) Vec3[F] {
	return Vec3[F]{
		m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Transform is a rigid transform from frame From to frame To: a rotation
// followed by a translation expressed in To.
type Transform[From, To Tag] struct {
	Rotation    Mat3
	Translation Vec3[To]
}

// Identity returns the identity transform.
func Identity[From, To Tag]() Transform[From, To] {
	return Transform[From, To]{Rotation: Identity3()}
}

// Apply maps a point from From into To.
func (t Transform[From, To]) Apply(p Vec3[From]) Vec3[To] {
	rotated := Vec3[To]{}
	r := t.Rotation
	rotated.X = r[0][0]*p.X + r[0][1]*p.Y + r[0][2]*p.Z
	rotated.Y = r[1][0]*p.X + r[1][1]*p.Y + r[1][2]*p.Z
	rotated.Z = r[2][0]*p.X + r[2][1]*p.Y + r[2][2]*p.Z
	return rotated.Add(t.Translation)
}

// Compose chains two transforms: applying the result is the same as applying
// t1 and then t2 (From -> Mid -> To).
func Compose[From, Mid, To Tag](t1 Transform[From, Mid], t2 Transform[Mid, To]) Transform[From, To] {
	r := t2.Rotation
	tr := t1.Translation
	rotated := Vec3[To]{
		X: r[0][0]*tr.X + r[0][1]*tr.Y + r[0][2]*tr.Z,
		Y: r[1][0]*tr.X + r[1][1]*tr.Y + r[1][2]*tr.Z,
		Z: r[2][0]*tr.X + r[2][1]*tr.Y + r[2][2]*tr.Z,
	}
	return Transform[From, To]{
		Rotation:    t2.Rotation.Mul(t1.Rotation),
		Translation: rotated.Add(t2.Translation),
	}
}
