// Package eskf implements the 24-dimensional error-state Kalman filter: the
// named sub-state algebra, SE(3) state propagation, and the generic Kalman
// update kernel shared by the NoModel and DenseModel observation variants.
package eskf

import (
	"github.com/PossumXI/Asgard/lio/frame"
	"github.com/PossumXI/Asgard/lio/internal/mathutil"
	"gonum.org/v1/gonum/mat"
)

// SubState names a contiguous slice of the 24-dimensional flat state vector.
// Offsets and dimensions are fixed at package init from the table in the
// specification this filter implements; init (through mustSpan) asserts
// them at package load so a mistake here fails immediately rather than producing
// silently wrong Jacobians.
type SubState int

const (
	Pose SubState = iota
	Rotation
	Position
	Velocity
	Gravity
	AccWithBias
	Acc
	LinearAcc
	AngularAcc
	Bias
	LinearAccBias
	AngularAccBias
)

// StateDim is the total dimension of the flat state vector.
const StateDim = 24

type span struct {
	offset, dim int
}

var subStateSpans = map[SubState]span{
	Pose:           {0, 6},
	Rotation:       {0, 3},
	Position:       {3, 3},
	Velocity:       {6, 3},
	Gravity:        {9, 3},
	AccWithBias:    {12, 12},
	Acc:            {12, 6},
	LinearAcc:      {12, 3},
	AngularAcc:     {15, 3},
	Bias:           {18, 6},
	LinearAccBias:  {18, 3},
	AngularAccBias: {21, 3},
}

func init() {
	// Fail fast if the offset table above was ever edited inconsistently:
	// every sub-state must fit inside the 24-dimensional state and sit at
	// exactly the offset and dimension listed in the mustSpan calls below.
	for s, sp := range subStateSpans {
		if sp.offset < 0 || sp.offset+sp.dim > StateDim {
			panic("eskf: sub-state out of range")
		}
		_ = s
	}
	mustSpan(Pose, 0, 6)
	mustSpan(Rotation, 0, 3)
	mustSpan(Position, 3, 3)
	mustSpan(Velocity, 6, 3)
	mustSpan(Gravity, 9, 3)
	mustSpan(AccWithBias, 12, 12)
	mustSpan(Acc, 12, 6)
	mustSpan(LinearAcc, 12, 3)
	mustSpan(AngularAcc, 15, 3)
	mustSpan(Bias, 18, 6)
	mustSpan(LinearAccBias, 18, 3)
	mustSpan(AngularAccBias, 21, 3)
}

func mustSpan(s SubState, offset, dim int) {
	got := subStateSpans[s]
	if got.offset != offset || got.dim != dim {
		panic("eskf: sub-state offset table mismatch")
	}
}

// Span returns the offset and dimension of a sub-state within the flat
// 24-dimensional state vector.
func (s SubState) Span() (offset, dim int) {
	sp := subStateSpans[s]
	return sp.offset, sp.dim
}

// Dim returns the dimension of a sub-state.
func (s SubState) Dim() int {
	return subStateSpans[s].dim
}

// State is the nominal filter state: an SE(3) pose (rotation, position),
// velocity and gravity in the world frame, and an IMU bias model (linear
// and angular acceleration estimates plus their biases) in the IMU frame.
// Its layout mirrors the flat 24-vector used for linearization: Rotation at
// [0,3), Position at [3,6), Velocity at [6,9), Gravity at [9,12),
// LinearAcc at [12,15), AngularAcc at [15,18), LinearAccBias at [18,21),
// AngularAccBias at [21,24).
type State struct {
	Rotation       frame.Mat3
	Position       frame.Vec3[frame.World]
	Velocity       frame.Vec3[frame.World]
	Gravity        frame.Vec3[frame.World]
	LinearAcc      frame.Vec3[frame.Imu]
	AngularAcc     frame.Vec3[frame.Imu]
	LinearAccBias  frame.Vec3[frame.Imu]
	AngularAccBias frame.Vec3[frame.Imu]
}

// NewState returns the zero state with an identity pose.
func NewState() State {
	return State{Rotation: frame.Identity3()}
}

// Pose returns the imu-to-world rigid transform implied by the current
// rotation and position.
func (s State) Pose() frame.Transform[frame.Imu, frame.World] {
	return frame.Transform[frame.Imu, frame.World]{Rotation: s.Rotation, Translation: s.Position}
}

// AddDelta applies a 24-dimensional error-state correction to the nominal
// state: the Pose sub-state is updated via the SE(3) right-multiplication
// contract (rotation first, then translation using the updated rotation);
// every other sub-state is updated componentwise.
func (s *State) AddDelta(delta *mat.VecDense) {
	dTheta := frame.New[frame.Imu](delta.AtVec(0), delta.AtVec(1), delta.AtVec(2))
	dPos := frame.New[frame.Imu](delta.AtVec(3), delta.AtVec(4), delta.AtVec(5))

	s.Rotation = s.Rotation.Mul(expSO3(dTheta))
	rotatedDelta := mulMat3Vec(s.Rotation, dPos)
	s.Position = s.Position.Add(frame.New[frame.World](rotatedDelta.X, rotatedDelta.Y, rotatedDelta.Z))

	s.Velocity = s.Velocity.Add(frame.New[frame.World](delta.AtVec(6), delta.AtVec(7), delta.AtVec(8)))
	s.Gravity = s.Gravity.Add(frame.New[frame.World](delta.AtVec(9), delta.AtVec(10), delta.AtVec(11)))
	s.LinearAcc = s.LinearAcc.Add(frame.New[frame.Imu](delta.AtVec(12), delta.AtVec(13), delta.AtVec(14)))
	s.AngularAcc = s.AngularAcc.Add(frame.New[frame.Imu](delta.AtVec(15), delta.AtVec(16), delta.AtVec(17)))
	s.LinearAccBias = s.LinearAccBias.Add(frame.New[frame.Imu](delta.AtVec(18), delta.AtVec(19), delta.AtVec(20)))
	s.AngularAccBias = s.AngularAccBias.Add(frame.New[frame.Imu](delta.AtVec(21), delta.AtVec(22), delta.AtVec(23)))
}

// mulMat3Vec applies a rotation to a tagged vector without changing its
// frame tag, used internally where the vector is already known to live in
// the target frame (the SE(3) += contract keeps translation in World).
func mulMat3Vec[F frame.Tag](m frame.Mat3, v frame.Vec3[F]) frame.Vec3[F] {
	return frame.MulVec(m, v)
}

// Covariance is the 24x24 error-state covariance matrix, with block-view
// accessors keyed by sub-state pairs.
type Covariance struct {
	m *mat.Dense
}

// NewCovariance returns the default initial covariance: the identity scaled
// by 1e-6.
func NewCovariance() *Covariance {
	d := mat.NewDense(StateDim, StateDim, nil)
	for i := 0; i < StateDim; i++ {
		d.Set(i, i, 1e-6)
	}
	return &Covariance{m: d}
}

// Raw returns the underlying dense matrix, for callers (predict, observe)
// that need the full 24x24 block.
func (c *Covariance) Raw() *mat.Dense {
	return c.m
}

// Sub returns the diagonal sub-block of the covariance for a single
// sub-state: view(T.dim x T.dim) at (T.offset, T.offset). The returned
// matrix shares storage with the covariance.
func (c *Covariance) Sub(s SubState) *mat.Dense {
	off, dim := s.Span()
	return c.m.Slice(off, off+dim, off, off+dim).(*mat.Dense)
}

// Cross returns the cross-covariance (sensitivity) block from src to dst:
// view(dst.dim x src.dim) at (dst.offset, src.offset).
func (c *Covariance) Cross(src, dst SubState) *mat.Dense {
	so, sd := src.Span()
	do, dd := dst.Span()
	return c.m.Slice(do, do+dd, so, so+sd).(*mat.Dense)
}

// Cols returns the full-height column block P[:, S]: (StateDim x S.dim).
func (c *Covariance) Cols(s SubState) *mat.Dense {
	off, dim := s.Span()
	return c.m.Slice(0, StateDim, off, off+dim).(*mat.Dense)
}

// Rows returns the full-width row block P[S, :]: (S.dim x StateDim).
func (c *Covariance) Rows(s SubState) *mat.Dense {
	off, dim := s.Span()
	return c.m.Slice(off, off+dim, 0, StateDim).(*mat.Dense)
}

// Symmetrize forces exact symmetry by averaging the matrix with its
// transpose, correcting the floating-point drift that predict/observe
// accumulate over many steps.
func (c *Covariance) Symmetrize() {
	var t mat.Dense
	t.CloneFrom(c.m.T())
	c.m.Add(c.m, &t)
	c.m.Scale(0.5, c.m)
}

func expSO3(w frame.Vec3[frame.Imu]) frame.Mat3 {
	return mathutil.ExpSO3(w)
}
