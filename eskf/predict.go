package eskf

import (
	"github.com/PossumXI/Asgard/lio/frame"
	"gonum.org/v1/gonum/mat"
)

// ProcessNoiseConfig holds the diagonal process-noise entries (Q) for the
// sub-states that accumulate uncertainty between observations. Defaults
// match the reference configuration: velocity 20, linear acceleration 500,
// angular acceleration 1000, linear bias 0.01, angular bias 0.01.
type ProcessNoiseConfig struct {
	Velocity       float64
	LinearAcc      float64
	AngularAcc     float64
	LinearAccBias  float64
	AngularAccBias float64
}

// DefaultProcessNoiseConfig returns the reference process-noise defaults.
func DefaultProcessNoiseConfig() ProcessNoiseConfig {
	return ProcessNoiseConfig{
		Velocity:       20,
		LinearAcc:      500,
		AngularAcc:     1000,
		LinearAccBias:  0.01,
		AngularAccBias: 0.01,
	}
}

func (c ProcessNoiseConfig) toMatrix() *mat.Dense {
	q := mat.NewDense(StateDim, StateDim, nil)
	fillDiagBlock(q, Velocity, c.Velocity)
	fillDiagBlock(q, LinearAcc, c.LinearAcc)
	fillDiagBlock(q, AngularAcc, c.AngularAcc)
	fillDiagBlock(q, LinearAccBias, c.LinearAccBias)
	fillDiagBlock(q, AngularAccBias, c.AngularAccBias)
	return q
}

func fillDiagBlock(m *mat.Dense, s SubState, v float64) {
	off, dim := s.Span()
	for i := off; i < off+dim; i++ {
		m.Set(i, i, v)
	}
}

// predict advances the nominal state by dtPredict and the covariance by
// dtObserve, per the two-step integration the ESKF core specifies. A
// non-positive dt skips its corresponding step, guarding against
// out-of-order timestamps without raising an error.
func (e *Eskf) predict(dtPredict, dtObserve float64) {
	if dtPredict > 0 {
		e.integrateState(dtPredict)
	}
	if dtObserve > 0 {
		e.propagateCovariance(dtObserve)
	}
}

func (e *Eskf) integrateState(dt float64) {
	oldRotation := e.state.Rotation
	angularAcc := e.state.AngularAcc
	linearAcc := e.state.LinearAcc
	velocity := e.state.Velocity
	gravity := e.state.Gravity

	deltaTheta := angularAcc.Scale(dt)
	deltaT := frame.New[frame.Imu](velocity.X*dt, velocity.Y*dt, velocity.Z*dt)

	delta := mat.NewVecDense(StateDim, nil)
	delta.SetVec(0, deltaTheta.X)
	delta.SetVec(1, deltaTheta.Y)
	delta.SetVec(2, deltaTheta.Z)
	delta.SetVec(3, deltaT.X)
	delta.SetVec(4, deltaT.Y)
	delta.SetVec(5, deltaT.Z)

	rotatedAcc := frame.MulVec(oldRotation, linearAcc)
	deltaV := rotatedAcc.Add(gravity).Scale(dt)
	delta.SetVec(6, deltaV.X)
	delta.SetVec(7, deltaV.Y)
	delta.SetVec(8, deltaV.Z)

	e.state.AddDelta(delta)
}

func (e *Eskf) propagateCovariance(dt float64) {
	oldRotation := e.state.Rotation
	angularAcc := e.state.AngularAcc
	linearAcc := e.state.LinearAcc

	f := mat.NewDense(StateDim, StateDim, nil)
	for i := 0; i < StateDim; i++ {
		f.Set(i, i, 1)
	}
	fc := &Covariance{m: f}

	rotBlock := expSO3(angularAcc.Scale(-dt))
	setBlock(fc.Sub(Rotation), rotBlock)

	dvdr := oldRotation.Mul(linearAcc.CrossMatrix()).Scale(-dt)
	setBlock(fc.Cross(Rotation, Velocity), dvdr)

	setBlock(fc.Cross(Velocity, Position), frame.Diag3(dt, dt, dt))
	setBlock(fc.Cross(Gravity, Velocity), frame.Diag3(dt, dt, dt))
	setBlock(fc.Cross(LinearAcc, Velocity), oldRotation.Scale(-dt))
	setBlock(fc.Cross(AngularAcc, Rotation), frame.Diag3(dt, dt, dt))

	var fp mat.Dense
	fp.Mul(f, e.cov.m)
	var fpft mat.Dense
	fpft.Mul(&fp, f.T())

	q := e.processNoise.toMatrix()
	q.Scale(dt*dt, q)

	fpft.Add(&fpft, q)
	e.cov.m.CloneFrom(&fpft)
	e.cov.Symmetrize()
}

func setBlock(view *mat.Dense, m frame.Mat3) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			view.Set(i, j, m[i][j])
		}
	}
}
