package spatial

import (
	"math"

	"github.com/PossumXI/Asgard/lio/frame"
	"github.com/PossumXI/Asgard/lio/internal/mathutil"
	"github.com/PossumXI/Asgard/lio/internal/telemetry"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// PlaneConfig controls plane fitting and the octree lifecycle it drives.
// Defaults match the reference configuration exactly.
type PlaneConfig struct {
	MaxLayer            int
	PlaneInitThreshold  int
	UpdateThreshold     int
	PlaneEigenThreshold float64
	MaxPoints           int
	SigmaRatio          float64
}

// DefaultPlaneConfig returns the reference defaults: max_layer=4,
// plane_init_threshold=5, update_threshold=5, plane_eigen_threshold=0.01,
// max_points=50, sigma_ratio=3.
func DefaultPlaneConfig() PlaneConfig {
	return PlaneConfig{
		MaxLayer:            4,
		PlaneInitThreshold:  5,
		UpdateThreshold:     5,
		PlaneEigenThreshold: 0.01,
		MaxPoints:           50,
		SigmaRatio:          3,
	}
}

// Mat6 is a plain 6x6 matrix used for plane covariance, kept outside gonum
// for the same hot-path-allocation reason as frame.Mat3 — a residual query
// evaluates a 6-vector quadratic form against this matrix for every
// candidate plane on every LiDAR point.
type Mat6 [6][6]float64

// Vec6 is a plain 6-vector, used for the (position, normal) stacked
// quantities the plane residual and covariance math operate on.
type Vec6 [6]float64

func (m Mat6) Add(o Mat6) Mat6 {
	var r Mat6
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			r[i][j] = m[i][j] + o[i][j]
		}
	}
	return r
}

// QuadForm returns e^T * m * e.
func (m Mat6) QuadForm(e Vec6) float64 {
	var mv Vec6
	for i := 0; i < 6; i++ {
		var s float64
		for j := 0; j < 6; j++ {
			s += m[i][j] * e[j]
		}
		mv[i] = s
	}
	var out float64
	for i := 0; i < 6; i++ {
		out += e[i] * mv[i]
	}
	return out
}

// planeFitError models the internal plane-fit error taxonomy (§7): never
// surfaced to callers, only used by the leaf/branch insertion logic to
// decide whether to retry, subdivide, or keep a plane-less leaf.
type planeFitError int

const (
	planeFitOK planeFitError = iota
	planeFitTooFewPoints
	planeFitEigenTooBig
)

// Plane is a probabilistic planar surface: a unit normal, a world-frame
// centroid, a bounding radius, and a 6x6 covariance over (centroid, normal).
type Plane struct {
	Normal   frame.Vec3[frame.World]
	Centroid frame.Vec3[frame.World]
	Radius   float64
	Cov      Mat6
}

// fitPlane fits a plane to a set of uncertain world points, following the
// closed-form Jacobian construction in §4.4 step 4: the centroid's
// sensitivity to each point is I/n, and the normal's sensitivity is derived
// from first-order perturbation of the scatter matrix's smallest
// eigenvector, scaled by 1/(n*(lambda_min - lambda_k)) for each of the two
// other eigenvectors.
func fitPlane(points []UncertainPoint[frame.World], cfg PlaneConfig) (*Plane, planeFitError) {
	n := len(points)
	if n < cfg.PlaneInitThreshold {
		return nil, planeFitTooFewPoints
	}

	var acc mathutil.ScatterAccumulator[frame.World]
	for _, p := range points {
		acc.Add(p.Point)
	}
	mean, scatter := acc.MeanAndCovariance()

	values, vectors := eigenSym3(scatter)
	minIdx := floats.MinIdx(values[:])
	if values[minIdx] >= cfg.PlaneEigenThreshold {
		return nil, planeFitEigenTooBig
	}
	maxVal := floats.Max(values[:])

	vMin := vectors[minIdx]
	var others []int
	for i := 0; i < 3; i++ {
		if i != minIdx {
			others = append(others, i)
		}
	}

	var cov Mat6
	nf := float64(n)
	for _, p := range points {
		diff := p.Point.Sub(mean)

		var mi frame.Mat3
		for _, k := range others {
			vk := vectors[k]
			denom := nf * (values[minIdx] - values[k])
			if denom == 0 {
				telemetry.Logger.WithFields(logrus.Fields{
					"points": n,
				}).Warn("degenerate eigenvalue gap in plane Jacobian, substituting default scale")
				denom = mathutil.DefaultSubstitute
			}
			scale := 1 / denom
			term1 := outer(vk, vk).Scale(diff.Dot(vMin) * scale)
			term2 := outer(vk, vMin).Scale(vk.Dot(diff) * scale)
			mi = mi.Add(term1).Add(term2)
		}

		// J (6x3): rows 0-2 are the centroid sensitivity I/n, rows 3-5 are
		// the normal sensitivity M_i.
		var j [6][3]float64
		for d := 0; d < 3; d++ {
			j[d][d] = 1 / nf
		}
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				j[3+r][c] = mi[r][c]
			}
		}

		contribution := sandwich(j, p.Cov)
		cov = cov.Add(contribution)
	}

	return &Plane{
		Normal:   vMin,
		Centroid: mean,
		Radius:   math.Sqrt(maxVal),
		Cov:      cov,
	}, planeFitOK
}

// sandwich computes J * sigma * J^T for a 6x3 J and a 3x3 sigma, returning
// the 6x6 result.
func sandwich(j [6][3]float64, sigma frame.Mat3) Mat6 {
	var jSigma [6][3]float64
	for i := 0; i < 6; i++ {
		for c := 0; c < 3; c++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += j[i][k] * sigma[k][c]
			}
			jSigma[i][c] = s
		}
	}
	var out Mat6
	for i := 0; i < 6; i++ {
		for k := 0; k < 6; k++ {
			var s float64
			for c := 0; c < 3; c++ {
				s += jSigma[i][c] * j[k][c]
			}
			out[i][k] = s
		}
	}
	return out
}

// eigenSym3 decomposes a symmetric 3x3 matrix via gonum's EigenSym,
// returning eigenvalues and corresponding unit eigenvectors (as World
// vectors, since the scatter matrix this is used for is always the
// world-frame point scatter).
func eigenSym3(m frame.Mat3) ([3]float64, [3]frame.Vec3[frame.World]) {
	sym := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			sym.SetSym(i, j, 0.5*(m[i][j]+m[j][i]))
		}
	}

	var eig mat.EigenSym
	eig.Factorize(sym, true)

	var values [3]float64
	copy(values[:], eig.Values(nil))

	var vectorsDense mat.Dense
	eig.VectorsTo(&vectorsDense)

	var vectors [3]frame.Vec3[frame.World]
	for col := 0; col < 3; col++ {
		vectors[col] = frame.New[frame.World](vectorsDense.At(0, col), vectorsDense.At(1, col), vectorsDense.At(2, col))
	}
	return values, vectors
}
