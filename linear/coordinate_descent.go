package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// ElasticNet minimizes
//
//	1/(2n) ||y - Xw||^2 + alpha*l1_ratio*||w||_1 + 0.5*alpha*(1-l1_ratio)*||w||^2
//
// by cyclic coordinate descent. Lasso is ElasticNet with l1_ratio = 1.
type ElasticNet struct {
	LinearBase
	Alpha    float64
	L1Ratio  float64
	MaxIter  int
	Tol      float64
	Positive bool
	// NIter is the number of sweeps the last Fit used.
	NIter int

	name string
}

func NewElasticNet(opts ...Option) *ElasticNet {
	p := defaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return &ElasticNet{
		LinearBase: LinearBase{FitIntercept: p.fitIntercept},
		Alpha:      p.alpha,
		L1Ratio:    p.l1Ratio,
		MaxIter:    p.maxIter,
		Tol:        p.tol,
		Positive:   p.positive,
		name:       "ElasticNet",
	}
}

// Lasso is an ElasticNet with a pure L1 penalty.
type Lasso struct {
	ElasticNet
}

func NewLasso(opts ...Option) *Lasso {
	en := NewElasticNet(opts...)
	en.L1Ratio = 1
	en.name = "Lasso"
	return &Lasso{ElasticNet: *en}
}

func (en *ElasticNet) modelName() string {
	if en.name == "" {
		// gob does not restore unexported fields
		if en.L1Ratio == 1 {
			return "Lasso"
		}
		return "ElasticNet"
	}
	return en.name
}

func (en *ElasticNet) Fit(X, y mat.Matrix) error {
	return en.FitWeighted(X, y, nil)
}

func (en *ElasticNet) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	name := en.modelName()
	if en.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", en.Alpha)
	}
	if en.L1Ratio < 0 || en.L1Ratio > 1 {
		return errors.NewValidationError("l1_ratio", "must be in [0, 1]", en.L1Ratio)
	}
	if en.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be positive", en.MaxIter)
	}
	d, err := preprocess(name+".Fit", X, y, sampleWeight, en.FitIntercept)
	if err != nil {
		return err
	}

	n, p := d.n, d.p
	l1 := en.Alpha * en.L1Ratio * float64(n)
	l2 := en.Alpha * (1 - en.L1Ratio) * float64(n)

	// 列ノルムと残差
	colNorm := make([]float64, p)
	cols := make([][]float64, p)
	for j := 0; j < p; j++ {
		cols[j] = mat.Col(nil, j, d.X)
		for _, v := range cols[j] {
			colNorm[j] += v * v
		}
	}
	resid := append([]float64(nil), d.y...)
	coef := make([]float64, p)

	converged := false
	iter := 0
	for iter = 1; iter <= en.MaxIter; iter++ {
		var wMax, dwMax float64
		for j := 0; j < p; j++ {
			if colNorm[j] == 0 {
				continue
			}
			old := coef[j]
			col := cols[j]
			rho := 0.0
			for i := 0; i < n; i++ {
				rho += col[i] * resid[i]
			}
			rho += colNorm[j] * old

			updated := softThreshold(rho, l1) / (colNorm[j] + l2)
			if en.Positive && updated < 0 {
				updated = 0
			}
			if delta := updated - old; delta != 0 {
				for i := 0; i < n; i++ {
					resid[i] -= delta * col[i]
				}
				coef[j] = updated
				dwMax = math.Max(dwMax, math.Abs(delta))
			}
			wMax = math.Max(wMax, math.Abs(updated))
		}
		if wMax == 0 || dwMax/wMax < en.Tol {
			converged = true
			break
		}
	}
	if iter > en.MaxIter {
		iter = en.MaxIter
	}
	en.NIter = iter
	if !converged {
		errors.Warn(errors.NewConvergenceWarning(name, en.MaxIter,
			"objective did not converge, consider increasing max_iter or alpha"))
	}
	if err := errors.CheckNumericalStability(name+".Fit", coef, iter); err != nil {
		return err
	}

	en.setCoef(coef, d)
	return nil
}

func softThreshold(x, lambda float64) float64 {
	switch {
	case x > lambda:
		return x - lambda
	case x < -lambda:
		return x + lambda
	default:
		return 0
	}
}

func (en *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	return en.predict(en.modelName(), X)
}

func (en *ElasticNet) Score(X, y mat.Matrix) (float64, error) {
	return en.score(en.modelName(), X, y)
}

func (en *ElasticNet) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":         en.Alpha,
		"l1_ratio":      en.L1Ratio,
		"max_iter":      en.MaxIter,
		"tol":           en.Tol,
		"positive":      en.Positive,
		"fit_intercept": en.FitIntercept,
	}
}
