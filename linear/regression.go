// Package linear implements weighted least-squares estimators: ordinary
// least squares, ridge, lasso, elastic net and LARS-lasso.
package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// rcond below which singular values are treated as zero.
const svdRcond = 1e-12

// LinearRegression は最小二乗法による線形回帰モデル
type LinearRegression struct {
	LinearBase
	// Rank is the effective rank of the centered design matrix.
	Rank int
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	p := defaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return &LinearRegression{LinearBase: LinearBase{FitIntercept: p.fitIntercept}}
}

func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	return lr.FitWeighted(X, y, nil)
}

// FitWeighted は SVD で最小ノルム解を求める。
// ランク落ちした計画行列 (重複した指紋ビット等) でも解が得られる。
func (lr *LinearRegression) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	d, err := preprocess("LinearRegression.Fit", X, y, sampleWeight, lr.FitIntercept)
	if err != nil {
		return err
	}

	var svd mat.SVD
	if ok := svd.Factorize(d.X, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD failed to converge", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(svdRcond)
	coef := make([]float64, d.p)
	if rank > 0 {
		var beta mat.VecDense
		svd.SolveVecTo(&beta, mat.NewVecDense(d.n, d.y), rank)
		for j := range coef {
			coef[j] = beta.AtVec(j)
		}
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", coef, 0); err != nil {
		return err
	}

	lr.Rank = rank
	lr.setCoef(coef, d)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	return lr.predict("LinearRegression", X)
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	return lr.score("LinearRegression", X, y)
}

func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{"fit_intercept": lr.FitIntercept}
}
