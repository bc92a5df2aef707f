package mathutil

import "github.com/PossumXI/Asgard/lio/frame"

// ScatterAccumulator folds a stream of tagged points into a running mean and
// 3x3 scatter matrix (the sum of outer products of the centered samples),
// the same running statistic the original plane fitter keeps per leaf
// before converting it to a covariance at query time.
type ScatterAccumulator[F frame.Tag] struct {
	count   int
	sum     frame.Vec3[F]
	squares frame.Mat3
}

// Add folds one more sample into the accumulator.
func (a *ScatterAccumulator[F]) Add(v frame.Vec3[F]) {
	a.count++
	a.sum = a.sum.Add(v)
	outer := frame.Mat3{
		{v.X * v.X, v.X * v.Y, v.X * v.Z},
		{v.Y * v.X, v.Y * v.Y, v.Y * v.Z},
		{v.Z * v.X, v.Z * v.Y, v.Z * v.Z},
	}
	a.squares = a.squares.Add(outer)
}

// MeanAndCovariance returns the centroid and the (biased, population)
// covariance of the accumulated samples. Only meaningful once at least one
// sample has been added.
func (a *ScatterAccumulator[F]) MeanAndCovariance() (frame.Vec3[F], frame.Mat3) {
	n := float64(a.count)
	mean := a.sum.Scale(1 / n)
	meanOuter := frame.Mat3{
		{mean.X * mean.X, mean.X * mean.Y, mean.X * mean.Z},
		{mean.Y * mean.X, mean.Y * mean.Y, mean.Y * mean.Z},
		{mean.Z * mean.X, mean.Z * mean.Y, mean.Z * mean.Z},
	}
	cov := a.squares.Scale(1 / n)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			cov[i][j] -= meanOuter[i][j]
		}
	}
	return mean, cov
}
