package eskf

import (
	"math"
	"testing"

	"github.com/PossumXI/Asgard/lio/frame"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSubStateOffsetsMatchTable(t *testing.T) {
	cases := []struct {
		sub            SubState
		offset, dim    int
	}{
		{Pose, 0, 6},
		{Rotation, 0, 3},
		{Position, 3, 3},
		{Velocity, 6, 3},
		{Gravity, 9, 3},
		{AccWithBias, 12, 12},
		{Acc, 12, 6},
		{LinearAcc, 12, 3},
		{AngularAcc, 15, 3},
		{Bias, 18, 6},
		{LinearAccBias, 18, 3},
		{AngularAccBias, 21, 3},
	}
	for _, c := range cases {
		off, dim := c.sub.Span()
		if off != c.offset || dim != c.dim {
			t.Fatalf("sub-state %v: got offset=%d dim=%d, want offset=%d dim=%d", c.sub, off, dim, c.offset, c.dim)
		}
	}
	if StateDim != 24 {
		t.Fatalf("expected StateDim=24, got %d", StateDim)
	}
}

func TestPredictWithZeroDtIsNoOp(t *testing.T) {
	e := New(NewState(), DefaultProcessNoiseConfig())
	e.state.Velocity.X = 1.2
	before := e.State()
	beforeCov := mat.DenseCopyOf(e.Covariance().Raw())

	e.Predict(0, 0)

	after := e.State()
	if after != before {
		t.Fatalf("predict with dt=0 changed the state: before=%+v after=%+v", before, after)
	}
	var diff mat.Dense
	diff.Sub(e.Covariance().Raw(), beforeCov)
	if mat.Norm(&diff, 2) > 1e-12 {
		t.Fatalf("predict with dt=0 changed the covariance")
	}
}

func TestPredictIntegratesVelocityIntoPosition(t *testing.T) {
	e := New(NewState(), DefaultProcessNoiseConfig())
	e.state.Velocity = e.state.Velocity.Add(frame.New[frame.World](2, 0, 0))

	e.Predict(1.0, 1.0)

	pos := e.State().Position
	if math.Abs(pos.X-2.0) > 1e-9 {
		t.Fatalf("expected position.x ~= 2.0 after 1s at 2m/s, got %v", pos.X)
	}
}

func TestPredictGivesQuadraticPositionGrowthUnderConstantAcceleration(t *testing.T) {
	e := New(NewState(), DefaultProcessNoiseConfig())
	e.state.LinearAcc = frame.New[frame.Imu](1.0, 0, 0)

	const dt = 0.01
	const steps = 2000
	for i := 0; i < steps; i++ {
		e.Predict(dt, 0)
	}

	elapsed := dt * steps
	want := 0.5 * 1.0 * elapsed * elapsed
	got := e.State().Position.X
	if math.Abs(got-want)/want > 0.05 {
		t.Fatalf("expected position.x ~= %v (within 5%%) after %vs at constant 1 m/s^2, got %v", want, elapsed, got)
	}
}

func TestCovarianceStaysSymmetricAndPSD(t *testing.T) {
	e := New(NewState(), DefaultProcessNoiseConfig())
	e.state.AngularAcc = frame.New[frame.Imu](0.1, -0.05, 0.2)
	e.state.LinearAcc = frame.New[frame.Imu](0.2, 0.1, 9.5)

	for i := 0; i < 50; i++ {
		e.Predict(0.01, 0.01)
	}

	requireSymmetricPSD(t, e.Covariance().Raw())
}

func TestObserveWithInfiniteNoiseIsNoOp(t *testing.T) {
	e := New(NewState(), DefaultProcessNoiseConfig())
	before := e.State()

	z := mat.NewVecDense(3, []float64{1, 1, 1})
	obs := Observation{
		Sub:       Velocity,
		Model:     NoModel(3),
		Z:         z,
		NoiseDiag: []float64{1e12, 1e12, 1e12},
	}
	e.Observe(obs)

	after := e.State()
	if math.Abs(after.Velocity.X-before.Velocity.X) > 1e-6 ||
		math.Abs(after.Velocity.Y-before.Velocity.Y) > 1e-6 ||
		math.Abs(after.Velocity.Z-before.Velocity.Z) > 1e-6 {
		t.Fatalf("observation with near-infinite noise moved the state: before=%+v after=%+v", before, after)
	}
}

func TestObserveWithTinyNoiseSnapsToMeasurement(t *testing.T) {
	e := New(NewState(), DefaultProcessNoiseConfig())
	// Give the velocity sub-block some prior uncertainty to correct.
	sub := e.Covariance().Sub(Velocity)
	for i := 0; i < 3; i++ {
		sub.Set(i, i, 10.0)
	}

	z := mat.NewVecDense(3, []float64{3, -2, 1})
	obs := Observation{
		Sub:       Velocity,
		Model:     NoModel(3),
		Z:         z,
		NoiseDiag: []float64{1e-9, 1e-9, 1e-9},
	}
	e.Observe(obs)

	v := e.State().Velocity
	require.InDelta(t, 3.0, v.X, 1e-3)
	require.InDelta(t, -2.0, v.Y, 1e-3)
	require.InDelta(t, 1.0, v.Z, 1e-3)
}

func TestNoModelSkipsMultiplyAndMatchesIdentityDenseModel(t *testing.T) {
	e1 := New(NewState(), DefaultProcessNoiseConfig())
	e2 := New(NewState(), DefaultProcessNoiseConfig())

	z := mat.NewVecDense(3, []float64{0.5, -0.25, 0.1})
	noise := []float64{0.01, 0.01, 0.01}

	e1.Observe(Observation{Sub: Velocity, Model: NoModel(3), Z: z, NoiseDiag: noise})

	identity := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		identity.Set(i, i, 1)
	}
	e2.Observe(Observation{Sub: Velocity, Model: DenseModel(identity), Z: z, NoiseDiag: noise})

	v1, v2 := e1.State().Velocity, e2.State().Velocity
	require.InDelta(t, v2.X, v1.X, 1e-9)
	require.InDelta(t, v2.Y, v1.Y, 1e-9)
	require.InDelta(t, v2.Z, v1.Z, 1e-9)
}

func requireSymmetricPSD(t *testing.T, m *mat.Dense) {
	t.Helper()
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if math.Abs(m.At(i, j)-m.At(j, i)) > 1e-9 {
				t.Fatalf("covariance not symmetric at (%d,%d): %v vs %v", i, j, m.At(i, j), m.At(j, i))
			}
		}
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	var eig mat.EigenSym
	ok := eig.Factorize(sym, false)
	if !ok {
		t.Fatalf("eigendecomposition failed")
	}
	for _, v := range eig.Values(nil) {
		if v < -1e-9 {
			t.Fatalf("covariance has a negative eigenvalue: %v", v)
		}
	}
}
