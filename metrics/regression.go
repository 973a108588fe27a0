package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// Labelled drops the pairs whose true value is NaN (a missing label).
func Labelled(yTrue, yPred []float64) (t, p []float64) {
	for i, v := range yTrue {
		if !math.IsNaN(v) {
			t = append(t, v)
			p = append(p, yPred[i])
		}
	}
	return t, p
}

// MSE は平均二乗誤差
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += d * d
	}
	return sum / float64(n), nil
}

func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score is the coefficient of determination 1 - SS_res/SS_tot. It is
// undefined when y_true is constant; the error is then a *ValueError so
// callers can report the metric as missing.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	return WeightedR2Score(yTrue, yPred, nil)
}

// WeightedR2Score weights each sample; nil means uniform weights.
func WeightedR2Score(yTrue, yPred *mat.VecDense, weights []float64) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if weights != nil && len(weights) != n {
		return 0, errors.NewDimensionError("R2Score", n, len(weights), 0)
	}
	t, p := mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred)
	if v := stat.Variance(t, weights); n < 2 || v == 0 || math.IsNaN(v) {
		return 0, errors.NewValueError("R2Score", "y_true is constant")
	}
	return stat.RSquaredFrom(p, t, weights), nil
}
