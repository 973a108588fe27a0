package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// Ridge minimizes ||y - Xw||^2 + alpha * ||w||^2.
type Ridge struct {
	LinearBase
	Alpha float64
}

func NewRidge(opts ...Option) *Ridge {
	p := defaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return &Ridge{LinearBase: LinearBase{FitIntercept: p.fitIntercept}, Alpha: p.alpha}
}

func (r *Ridge) Fit(X, y mat.Matrix) error {
	return r.FitWeighted(X, y, nil)
}

// FitWeighted solves (XᵀX + αI) w = Xᵀy by Cholesky factorization.
func (r *Ridge) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if r.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", r.Alpha)
	}
	d, err := preprocess("Ridge.Fit", X, y, sampleWeight, r.FitIntercept)
	if err != nil {
		return err
	}

	gram := mat.NewSymDense(d.p, nil)
	gram.SymOuterK(1, d.X.T())
	for j := 0; j < d.p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Alpha)
	}
	var xty mat.VecDense
	xty.MulVec(d.X.T(), mat.NewVecDense(d.n, d.y))

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return errors.NewModelError("Ridge.Fit", "matrix is not positive definite, increase alpha", errors.ErrSingularMatrix)
	}
	var beta mat.VecDense
	if err := chol.SolveVecTo(&beta, &xty); err != nil {
		return errors.NewModelError("Ridge.Fit", "ill-conditioned system", err)
	}

	r.setCoef(mat.Col(nil, 0, &beta), d)
	return nil
}

func (r *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	return r.predict("Ridge", X)
}

func (r *Ridge) Score(X, y mat.Matrix) (float64, error) {
	return r.score("Ridge", X, y)
}

func (r *Ridge) GetParams() map[string]interface{} {
	return map[string]interface{}{"alpha": r.Alpha, "fit_intercept": r.FitIntercept}
}
