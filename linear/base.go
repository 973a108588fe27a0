package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/core/parallel"
	"github.com/YuminosukeSato/molpipe/metrics"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// LinearBase holds the fitted parameters common to every linear model.
// Fields are exported so models persist with gob.
type LinearBase struct {
	model.BaseEstimator
	Coef         []float64
	Intercept    float64
	NFeatures    int
	FitIntercept bool
}

// Weights は学習された重み（係数）を返す
func (b *LinearBase) Weights() []float64 {
	return append([]float64(nil), b.Coef...)
}

func (b *LinearBase) predict(name string, X mat.Matrix) (mat.Matrix, error) {
	if !b.IsFitted() {
		return nil, errors.NewNotFittedError(name, "Predict")
	}
	r, c := X.Dims()
	if c != b.NFeatures {
		return nil, errors.NewDimensionError(name+".Predict", b.NFeatures, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := b.Intercept
			for j := 0; j < c; j++ {
				pred += X.At(i, j) * b.Coef[j]
			}
			predictions.Set(i, 0, pred)
		}
	})
	return predictions, nil
}

func (b *LinearBase) score(name string, X, y mat.Matrix) (float64, error) {
	pred, err := b.predict(name, X)
	if err != nil {
		return 0, err
	}
	r, _ := y.Dims()
	return metrics.R2Score(mat.NewVecDense(r, mat.Col(nil, 0, y)), mat.NewVecDense(r, mat.Col(nil, 0, pred)))
}

// setCoef stores coef and derives the intercept from the offsets
// removed by preprocess.
func (b *LinearBase) setCoef(coef []float64, d *design) {
	b.Coef = coef
	b.NFeatures = len(coef)
	b.Intercept = 0
	if b.FitIntercept {
		b.Intercept = d.yOffset
		for j, c := range coef {
			b.Intercept -= d.xOffset[j] * c
		}
	}
	b.SetFitted()
}

// design is the weighted, centered problem every solver works on. Rows are
// scaled by sqrt(w_i) with weights normalized to sum to n, so an unweighted
// solver minimizes sum_i w_i (y_i - x_i b)^2.
type design struct {
	X       *mat.Dense
	y       []float64
	xOffset []float64
	yOffset float64
	n, p    int
}

func preprocess(op string, X, y mat.Matrix, sampleWeight []float64, fitIntercept bool) (*design, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	ry, cy := y.Dims()
	if ry != r {
		return nil, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return nil, errors.NewValueError(op, "y must be a column vector")
	}

	w, err := normalizeWeights(op, sampleWeight, r)
	if err != nil {
		return nil, err
	}

	d := &design{
		X:       mat.NewDense(r, c, nil),
		y:       make([]float64, r),
		xOffset: make([]float64, c),
		n:       r,
		p:       c,
	}
	if fitIntercept {
		for i := 0; i < r; i++ {
			wi := w[i] / float64(r)
			d.yOffset += wi * y.At(i, 0)
			for j := 0; j < c; j++ {
				d.xOffset[j] += wi * X.At(i, j)
			}
		}
	}

	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			sw := math.Sqrt(w[i])
			d.y[i] = sw * (y.At(i, 0) - d.yOffset)
			for j := 0; j < c; j++ {
				d.X.Set(i, j, sw*(X.At(i, j)-d.xOffset[j]))
			}
		}
	})
	return d, nil
}

// normalizeWeights returns weights rescaled to sum to n. nil means uniform.
func normalizeWeights(op string, sampleWeight []float64, n int) ([]float64, error) {
	w := make([]float64, n)
	if sampleWeight == nil {
		for i := range w {
			w[i] = 1
		}
		return w, nil
	}
	if len(sampleWeight) != n {
		return nil, errors.NewDimensionError(op, n, len(sampleWeight), 0)
	}
	var sum float64
	for _, v := range sampleWeight {
		if v < 0 || math.IsNaN(v) {
			return nil, errors.NewValidationError("sample_weight", "must be non-negative", v)
		}
		sum += v
	}
	if sum == 0 {
		return nil, errors.NewValidationError("sample_weight", "must not all be zero", sum)
	}
	for i, v := range sampleWeight {
		w[i] = v * float64(n) / sum
	}
	return w, nil
}
