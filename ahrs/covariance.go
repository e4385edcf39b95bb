package ahrs

import (
	"math"

	"github.com/skelterjohn/go.matrix"
	"gonum.org/v1/gonum/mat"
)

// CovarianceTolerance bounds asymmetry and negative eigenvalues accepted as rounding.
const CovarianceTolerance = 1e-12

// toSym copies the symmetric part of m into a gonum SymDense.
func toSym(m *matrix.DenseMatrix) *mat.SymDense {
	n := m.Rows()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (m.Get(i, j)+m.Get(j, i))/2)
		}
	}
	return sym
}

// IsSymmetric reports whether the square matrix m equals its transpose within tol,
// relative to its largest entry.
func IsSymmetric(m *matrix.DenseMatrix, tol float64) bool {
	if m.Rows() != m.Cols() {
		return false
	}
	d := mat.NewDense(m.Rows(), m.Cols(), m.Array())
	scale := math.Max(mat.Norm(d, math.Inf(1)), 1)
	return mat.EqualApprox(d, d.T(), tol*scale)
}

// MinEigenvalue returns the smallest eigenvalue of the symmetric part of m.
// It returns NaN if the decomposition fails.
func MinEigenvalue(m *matrix.DenseMatrix) float64 {
	var eig mat.EigenSym
	if ok := eig.Factorize(toSym(m), false); !ok {
		return math.NaN()
	}
	vals := eig.Values(nil)
	min := math.Inf(1)
	for _, v := range vals {
		min = math.Min(min, v)
	}
	return min
}

// Trace returns the sum of the diagonal of m.
func Trace(m *matrix.DenseMatrix) float64 {
	return mat.Trace(toSym(m))
}

// CovarianceOK reports whether m is a valid covariance: symmetric and positive
// semi-definite up to CovarianceTolerance.
func CovarianceOK(m *matrix.DenseMatrix) bool {
	if !IsSymmetric(m, CovarianceTolerance) {
		return false
	}
	d := mat.NewDense(m.Rows(), m.Cols(), m.Array())
	scale := math.Max(mat.Norm(d, math.Inf(1)), 1)
	return MinEigenvalue(m) >= -CovarianceTolerance*scale
}
