// Package spatial implements the uncertainty-aware voxel map: uncertain
// points, probabilistic planes, and the sparse octree that caches them.
package spatial

import (
	"math"

	"github.com/PossumXI/Asgard/lio/frame"
)

// UncertainPoint is a framed 3-point with a 3x3 covariance. The covariance
// is always symmetric PSD by construction: every constructor below builds
// it as a sum of outer products (with nonnegative scalar coefficients),
// which is PSD by definition.
type UncertainPoint[F frame.Tag] struct {
	Point frame.Vec3[F]
	Cov   frame.Mat3
}

// BodyPointNoiseConfig is the per-point uncertainty model applied to raw
// LiDAR returns: range noise along the viewing ray, angular noise
// perpendicular to it.
type BodyPointNoiseConfig struct {
	DistanceStdDev    float64
	DirectionStdDevRad float64
}

// DefaultBodyPointNoiseConfig returns the reference defaults (0.04 m range
// noise, 0.2 rad directional noise).
func DefaultBodyPointNoiseConfig() BodyPointNoiseConfig {
	return BodyPointNoiseConfig{DistanceStdDev: 0.04, DirectionStdDevRad: 0.2}
}

const directionChartEpsilon = 1e-6

// UncertainBodyPoint lifts a raw body-frame point to an uncertain point per
// §4.5: range noise along the viewing ray (u) plus angular noise in the
// tangent plane perpendicular to it, encoded as
//
//	Cov = distanceStdDev^2 * (u ⊗ u) + sin(directionStdDevRad)^2 * (M1⊗M1 + M2⊗M2)
//
// where M1, M2 are the viewing-ray-scaled tangent basis vectors r*(u×b1),
// r*(u×b2), and {b1, b2} is an orthonormal basis of the plane
// perpendicular to u. The chart is guarded against u.Z == 0 by substituting
// a small positive denominator, matching the original body-point model.
func UncertainBodyPoint(p frame.Vec3[frame.Body], cfg BodyPointNoiseConfig) UncertainPoint[frame.Body] {
	r := p.Norm()
	if r == 0 {
		return UncertainPoint[frame.Body]{Point: p}
	}
	u := p.Scale(1 / r)

	denom := u.Z
	if math.Abs(denom) < directionChartEpsilon {
		denom = directionChartEpsilon
	}
	b1 := frame.New[frame.Body](1, 1, -(u.X+u.Y)/denom).Normalized()
	b2 := u.Cross(b1).Normalized()

	m1 := u.Cross(b1).Scale(r)
	m2 := u.Cross(b2).Scale(r)

	sin2 := math.Pow(math.Sin(cfg.DirectionStdDevRad), 2)
	cov := outer(u, u).Scale(cfg.DistanceStdDev * cfg.DistanceStdDev)
	cov = cov.Add(outer(m1, m1).Add(outer(m2, m2)).Scale(sin2))

	return UncertainPoint[frame.Body]{Point: p, Cov: cov}
}

// BodyToImu propagates a body-frame uncertain point into the IMU frame
// through the body->imu extrinsics: the covariance rotates, translation has
// no effect on it. Go methods cannot specialize a generic receiver to one
// frame, so frame-changing propagation is expressed as free functions
// rather than methods on UncertainPoint.
func BodyToImu(up UncertainPoint[frame.Body], bodyToImu frame.Transform[frame.Body, frame.Imu]) UncertainPoint[frame.Imu] {
	r := bodyToImu.Rotation
	return UncertainPoint[frame.Imu]{
		Point: bodyToImu.Apply(up.Point),
		Cov:   r.Mul(up.Cov).Mul(r.Transpose()),
	}
}

// ImuToWorld propagates an IMU-frame uncertain point into the world frame
// through the current pose, additionally folding in the filter's pose
// uncertainty (position and rotation sub-covariances) per §4.5's note that
// world propagation picks up cross-terms from the uncertain pose.
func ImuToWorld(up UncertainPoint[frame.Imu], pose frame.Transform[frame.Imu, frame.World], posCov, rotCov frame.Mat3) UncertainPoint[frame.World] {
	crossWorld := pose.Rotation.Mul(up.Point.CrossMatrix())

	worldPoint := pose.Apply(up.Point)
	r := pose.Rotation
	cov := posCov.Add(r.Mul(up.Cov).Mul(r.Transpose())).Add(crossWorld.Mul(rotCov).Mul(crossWorld.Transpose()))

	return UncertainPoint[frame.World]{Point: worldPoint, Cov: cov}
}

func outer[F frame.Tag](a, b frame.Vec3[F]) frame.Mat3 {
	return frame.Mat3{
		{a.X * b.X, a.X * b.Y, a.X * b.Z},
		{a.Y * b.X, a.Y * b.Y, a.Y * b.Z},
		{a.Z * b.X, a.Z * b.Y, a.Z * b.Z},
	}
}
