// Package mathutil collects the small numerical building blocks shared by
// the eskf and lio packages: the SO(3) exponential map used by the rigid
// pose sub-state, and the Cholesky inversion with a diagonal substitute that
// keeps the Kalman gain computation from ever failing outright.
package mathutil

import (
	"math"

	"github.com/PossumXI/Asgard/lio/frame"
)

// ExpSO3 maps a rotation vector (axis * angle, in radians) to the
// corresponding rotation matrix via Rodrigues' formula. It is exact for any
// magnitude and degrades gracefully to the identity as the vector shrinks.
func ExpSO3(w frame.Vec3[frame.Imu]) frame.Mat3 {
	theta := w.Norm()
	if theta < 1e-12 {
		// First-order term only: I + [w]x, which is the correct small-angle
		// limit of Rodrigues' formula.
		return frame.Identity3().Add(w.CrossMatrix())
	}

	axis := w.Scale(1 / theta)
	k := axis.CrossMatrix()
	sinT, cosT := math.Sin(theta), math.Cos(theta)

	// R = I + sin(theta) K + (1 - cos(theta)) K^2
	return frame.Identity3().Add(k.Scale(sinT)).Add(k.Mul(k).Scale(1 - cosT))
}

// LogSO3 is the inverse of ExpSO3: it recovers the rotation vector from a
// rotation matrix.
func LogSO3(r frame.Mat3) frame.Vec3[frame.Imu] {
	trace := r[0][0] + r[1][1] + r[2][2]
	cosT := (trace - 1) / 2
	cosT = clamp(cosT, -1, 1)
	theta := math.Acos(cosT)

	if theta < 1e-12 {
		return frame.Vec3[frame.Imu]{}
	}

	sinT := math.Sin(theta)
	if sinT < 1e-12 {
		// theta is near pi: the skew-symmetric extraction below is
		// ill-conditioned, but this path is never exercised by the small
		// per-step rotations the filter predicts, so an approximate
		// fallback is acceptable.
		return frame.New[frame.Imu](r[2][1]-r[1][2], r[0][2]-r[2][0], r[1][0]-r[0][1]).Scale(theta / 2)
	}

	scale := theta / (2 * sinT)
	return frame.New[frame.Imu](r[2][1]-r[1][2], r[0][2]-r[2][0], r[1][0]-r[0][1]).Scale(scale)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
