package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// larsEps guards step lengths and denominators.
const larsEps = 1e-12

// LassoLars fits the lasso path with Least Angle Regression and stops at
// Alpha. The objective is the same as Lasso's:
//
//	1/(2n) ||y - Xw||^2 + alpha*||w||_1
type LassoLars struct {
	LinearBase
	Alpha   float64
	MaxIter int
	// Active lists the feature indices with non-zero coefficients, in the
	// order they entered the path.
	Active []int
	NIter  int
}

func NewLassoLars(opts ...Option) *LassoLars {
	p := defaultParams()
	p.maxIter = 500
	for _, opt := range opts {
		opt(&p)
	}
	return &LassoLars{LinearBase: LinearBase{FitIntercept: p.fitIntercept}, Alpha: p.alpha, MaxIter: p.maxIter}
}

func (l *LassoLars) Fit(X, y mat.Matrix) error {
	return l.FitWeighted(X, y, nil)
}

func (l *LassoLars) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if l.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", l.Alpha)
	}
	d, err := preprocess("LassoLars.Fit", X, y, sampleWeight, l.FitIntercept)
	if err != nil {
		return err
	}
	n, p := d.n, d.p
	nf := float64(n)

	// cov_j = x_jᵀ r / n
	cov := make([]float64, p)
	var c0 mat.VecDense
	c0.MulVec(d.X.T(), mat.NewVecDense(n, d.y))
	for j := range cov {
		cov[j] = c0.AtVec(j) / nf
	}

	coef := make([]float64, p)
	inActive := make([]bool, p)
	excluded := make([]bool, p)
	var active []int
	dropped := false

	iter := 0
	done := false
	for ; iter < l.MaxIter && !done; iter++ {
		if !dropped {
			j, ok := l.nextFeature(d.X, cov, active, inActive, excluded)
			if !ok && len(active) == 0 {
				done = true
				break
			}
			if ok {
				if len(active) == 0 && math.Abs(cov[j]) <= l.Alpha {
					done = true
					break
				}
				active = append(active, j)
				inActive[j] = true
			}
		}
		dropped = false

		var C float64
		for _, j := range active {
			C = math.Max(C, math.Abs(cov[j]))
		}
		if C <= l.Alpha+larsEps {
			done = true
			break
		}

		// w = G⁻¹ s,  G = X_Aᵀ X_A / n
		k := len(active)
		xa := columns(d.X, active)
		gram := mat.NewSymDense(k, nil)
		gram.SymOuterK(1/nf, xa.T())
		s := mat.NewVecDense(k, nil)
		for i, j := range active {
			s.SetVec(i, sign(cov[j]))
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(gram); !ok {
			// the last feature is collinear with the active set
			last := active[k-1]
			active = active[:k-1]
			inActive[last] = false
			excluded[last] = true
			continue
		}
		var w mat.VecDense
		if err := chol.SolveVecTo(&w, s); err != nil {
			return errors.NewModelError("LassoLars.Fit", "ill-conditioned active set", err)
		}

		// a = Xᵀ X_A w / n
		var u, a mat.VecDense
		u.MulVec(xa, &w)
		a.MulVec(d.X.T(), &u)
		a.ScaleVec(1/nf, &a)

		gamma := C - l.Alpha
		hitAlpha := true
		for j := 0; j < p; j++ {
			if inActive[j] || excluded[j] {
				continue
			}
			aj := a.AtVec(j)
			for _, g := range []float64{
				ratio(C-cov[j], 1-aj),
				ratio(C+cov[j], 1+aj),
			} {
				if g > larsEps && g < gamma {
					gamma = g
					hitAlpha = false
				}
			}
		}
		drop := -1
		for i, j := range active {
			g := ratio(-coef[j], w.AtVec(i))
			if g > larsEps && g < gamma {
				gamma = g
				drop = i
				hitAlpha = false
			}
		}

		for i, j := range active {
			coef[j] += gamma * w.AtVec(i)
		}
		for j := 0; j < p; j++ {
			cov[j] -= gamma * a.AtVec(j)
		}

		if drop >= 0 {
			j := active[drop]
			coef[j] = 0
			inActive[j] = false
			active = append(active[:drop], active[drop+1:]...)
			dropped = true
			continue
		}
		if hitAlpha {
			done = true
		}
	}
	if !done {
		errors.Warn(errors.NewConvergenceWarning("LassoLars", l.MaxIter, "path stopped before reaching alpha"))
	}
	if err := errors.CheckNumericalStability("LassoLars.Fit", coef, iter); err != nil {
		return err
	}

	l.NIter = iter
	l.Active = append([]int(nil), active...)
	l.setCoef(coef, d)
	return nil
}

// nextFeature returns the inactive feature with the largest absolute
// correlation. Constant columns are excluded.
func (l *LassoLars) nextFeature(X *mat.Dense, cov []float64, active []int, inActive, excluded []bool) (int, bool) {
	best, bestAbs := -1, -1.0
	for j, c := range cov {
		if inActive[j] || excluded[j] {
			continue
		}
		if mat.Norm(X.ColView(j), 2) == 0 {
			excluded[j] = true
			continue
		}
		if math.Abs(c) > bestAbs {
			best, bestAbs = j, math.Abs(c)
		}
	}
	if best < 0 {
		return 0, false
	}
	if len(active) > 0 {
		var C float64
		for _, j := range active {
			C = math.Max(C, math.Abs(cov[j]))
		}
		// only join when the correlation has caught up with the active set
		if bestAbs < C-1e-9*math.Max(1, C) {
			return 0, false
		}
	}
	return best, true
}

func columns(X *mat.Dense, idx []int) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, len(idx), nil)
	for k, j := range idx {
		out.SetCol(k, mat.Col(nil, j, X))
	}
	return out
}

func ratio(num, den float64) float64 {
	if math.Abs(den) < larsEps {
		return math.Inf(1)
	}
	return num / den
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func (l *LassoLars) Predict(X mat.Matrix) (mat.Matrix, error) {
	return l.predict("LassoLars", X)
}

func (l *LassoLars) Score(X, y mat.Matrix) (float64, error) {
	return l.score("LassoLars", X, y)
}

func (l *LassoLars) GetParams() map[string]interface{} {
	return map[string]interface{}{"alpha": l.Alpha, "max_iter": l.MaxIter, "fit_intercept": l.FitIntercept}
}
