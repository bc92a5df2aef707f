package mathutil

import "gonum.org/v1/gonum/mat"

// DefaultSubstitute is the diagonal value substituted into an
// otherwise-singular innovation covariance so that the Kalman update never
// fails to produce a gain. 1e-4 is small relative to any realistic sensor
// noise variance, so it only perturbs the result when the matrix would
// otherwise be uninvertible.
const DefaultSubstitute = 1e-4

// CholeskyInverseWithSubstitute inverts a symmetric positive semi-definite
// matrix via its Cholesky factorization, substituting DefaultSubstitute into
// the diagonal whenever the factorization fails to find a positive
// definite matrix. This mirrors the "never fails" contract the filter
// relies on for every observation, however degenerate.
func CholeskyInverseWithSubstitute(sym *mat.SymDense) *mat.Dense {
	n := sym.SymmetricDim()
	working := mat.NewSymDense(n, nil)
	working.CopySym(sym)

	var chol mat.Cholesky
	ok := chol.Factorize(working)
	if !ok {
		substituteDiagonal(working, DefaultSubstitute)
		ok = chol.Factorize(working)
	}
	// Still singular (e.g. the caller passed an exact zero matrix): keep
	// inflating the diagonal, for at most eight more passes, until the
	// factorization succeeds.
	for attempt := 0; !ok && attempt < 8; attempt++ {
		substituteDiagonal(working, DefaultSubstitute)
		ok = chol.Factorize(working)
	}

	inv := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(inv); err != nil {
		// Factorize reported success but inversion still failed; fall back
		// to a heavily regularized diagonal inverse rather than propagate
		// NaNs into the filter state.
		result := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			d := working.At(i, i)
			if d <= 0 {
				d = DefaultSubstitute
			}
			result.Set(i, i, 1/d)
		}
		return result
	}

	result := mat.NewDense(n, n, nil)
	result.Copy(inv)
	return result
}

func substituteDiagonal(sym *mat.SymDense, eps float64) {
	n := sym.SymmetricDim()
	for i := 0; i < n; i++ {
		if sym.At(i, i) <= 0 {
			sym.SetSym(i, i, eps)
		} else {
			sym.SetSym(i, i, sym.At(i, i)+eps)
		}
	}
}

