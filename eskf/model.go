package eskf

import "gonum.org/v1/gonum/mat"

// Model is the measurement Jacobian abstraction the Kalman update kernel is
// generic over. NoModel and DenseModel share the same update math; NoModel
// skips the multiplications entirely since its Jacobian is the identity.
type Model interface {
	// Dim returns the measurement dimension D.
	Dim() int
	// Left computes H * m, where m has S.Dim() rows.
	Left(m mat.Matrix) *mat.Dense
	// RightTranspose computes m * H^T, where m has S.Dim() columns.
	RightTranspose(m mat.Matrix) *mat.Dense
}

// noModel is the identity measurement Jacobian: the observation directly
// reads off the sub-state's own columns/rows of the covariance, with no
// matrix multiply.
type noModel struct {
	dim int
}

// NoModel returns a Model whose Jacobian is the identity over a sub-state
// of dimension dim (the sub-state's own Dim()).
func NoModel(dim int) Model {
	return noModel{dim: dim}
}

func (n noModel) Dim() int { return n.dim }

func (n noModel) Left(m mat.Matrix) *mat.Dense {
	var d mat.Dense
	d.CloneFrom(m)
	return &d
}

func (n noModel) RightTranspose(m mat.Matrix) *mat.Dense {
	var d mat.Dense
	d.CloneFrom(m)
	return &d
}

// denseModel wraps an explicit D x S.dim Jacobian matrix.
type denseModel struct {
	h *mat.Dense
}

// DenseModel returns a Model backed by an explicit D x S.dim Jacobian.
func DenseModel(h *mat.Dense) Model {
	return denseModel{h: h}
}

func (d denseModel) Dim() int {
	r, _ := d.h.Dims()
	return r
}

func (d denseModel) Left(m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(d.h, m)
	return &out
}

func (d denseModel) RightTranspose(m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Mul(m, d.h.T())
	return &out
}
