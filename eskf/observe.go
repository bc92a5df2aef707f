package eskf

import (
	"github.com/PossumXI/Asgard/lio/internal/mathutil"
	"gonum.org/v1/gonum/mat"
)

// Observation is a generic measurement against a single sub-state: z is the
// D-dimensional measurement, Model is NoModel or DenseModel, and NoiseDiag
// is the D diagonal entries of the measurement noise R.
type Observation struct {
	Sub       SubState
	Model     Model
	Z         *mat.VecDense
	NoiseDiag []float64
}

// observe runs the generic Kalman update kernel shared by every observation
// variant:
//  1. PHt = P[:, S] * H^T
//  2. HP  = H * P[S, :]
//  3. Sinnov = H * PHt[S, :] + diag(R)
//  4. K = PHt * Sinnov^-1 (Cholesky with a diagonal substitute)
//  5. state += K * z
//  6. P -= K * HP
func (e *Eskf) observe(obs Observation) {
	off, dim := obs.Sub.Span()
	d := obs.Model.Dim()

	cols := e.cov.Cols(obs.Sub)    // StateDim x dim
	rows := e.cov.Rows(obs.Sub)    // dim x StateDim
	pht := obs.Model.RightTranspose(cols) // StateDim x d
	hp := obs.Model.Left(rows)            // d x StateDim

	phtS := pht.Slice(off, off+dim, 0, d) // dim x d
	sInnovDense := obs.Model.Left(phtS)   // d x d

	sInnovSym := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			v := 0.5 * (sInnovDense.At(i, j) + sInnovDense.At(j, i))
			sInnovSym.SetSym(i, j, v)
		}
	}
	for i := 0; i < d && i < len(obs.NoiseDiag); i++ {
		sInnovSym.SetSym(i, i, sInnovSym.At(i, i)+obs.NoiseDiag[i])
	}

	sInv := mathutil.CholeskyInverseWithSubstitute(sInnovSym) // d x d

	k := mat.NewDense(StateDim, d, nil)
	k.Mul(pht, sInv)

	deltaDense := mat.NewDense(StateDim, 1, nil)
	deltaDense.Mul(k, obs.Z)
	delta := mat.NewVecDense(StateDim, nil)
	for i := 0; i < StateDim; i++ {
		delta.SetVec(i, deltaDense.At(i, 0))
	}
	e.state.AddDelta(delta)

	khp := mat.NewDense(StateDim, StateDim, nil)
	khp.Mul(k, hp)
	e.cov.m.Sub(e.cov.m, khp)
	e.cov.Symmetrize()
}
