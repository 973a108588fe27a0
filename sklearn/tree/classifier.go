// Package tree implements CART decision trees for classification and
// regression. Trees are the base learners of the random forests in
// sklearn/ensemble.
package tree

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// DecisionTreeClassifier is a CART classifier over integer labels.
type DecisionTreeClassifier struct {
	model.BaseEstimator
	Params
	Tree

	ClassLabels []int
	NClasses    int
}

func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{Params: defaultParams("gini")}
	for _, opt := range opts {
		opt(&dt.Params)
	}
	return dt
}

func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted grows the tree with per-sample weights. Rows with zero weight
// are left out, so bootstrap multiplicities can be passed as weights.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	if err := dt.validate("gini", "entropy"); err != nil {
		return err
	}
	Xd, w, err := checkInput("DecisionTreeClassifier.Fit", X, y, sampleWeight)
	if err != nil {
		return err
	}
	n, _ := Xd.Dims()

	seen := map[int]bool{}
	dt.ClassLabels = dt.ClassLabels[:0]
	for i := 0; i < n; i++ {
		label := int(y.At(i, 0))
		if !seen[label] {
			seen[label] = true
			dt.ClassLabels = append(dt.ClassLabels, label)
		}
	}
	sort.Ints(dt.ClassLabels)
	index := make(map[int]int, len(dt.ClassLabels))
	for k, c := range dt.ClassLabels {
		index[c] = k
	}
	yIdx := make([]float64, n)
	for i := range yIdx {
		yIdx[i] = float64(index[int(y.At(i, 0))])
	}

	dt.NClasses = len(dt.ClassLabels)
	dt.Tree = *newBuilder(Xd, yIdx, w, dt.NClasses, dt.Params).build()
	dt.SetFitted()
	return nil
}

// PredictProba returns an n×NClasses matrix of leaf class frequencies.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, dt.NClasses, nil)
	for i := 0; i < n; i++ {
		leaf := dt.leaf(func(j int) float64 { return X.At(i, j) })
		out.SetRow(i, leaf.Value)
	}
	return out, nil
}

func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for k := 1; k < dt.NClasses; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(dt.ClassLabels[best]))
	}
	return out, nil
}

func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.ClassLabels...)
}

// Score returns the mean accuracy.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := X.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// GetFeatureImportances returns impurity-decrease importances summing to 1.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.Importances...)
}

func (dt *DecisionTreeClassifier) GetDepth() int   { return dt.Depth() }
func (dt *DecisionTreeClassifier) GetNLeaves() int { return dt.NLeaves() }

func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.getParams()
}

func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	return dt.setParams(params)
}

func (dt *DecisionTreeClassifier) checkPredict(method string, X mat.Matrix) error {
	if !dt.IsFitted() {
		return errors.NewNotFittedError("DecisionTreeClassifier", method)
	}
	if _, c := X.Dims(); c != dt.NFeatures {
		return errors.NewDimensionError("DecisionTreeClassifier."+method, dt.NFeatures, c, 1)
	}
	return nil
}

// checkInput validates shapes and returns a dense copy of X together with
// the effective sample weights.
func checkInput(op string, X, y mat.Matrix, sampleWeight []float64) (*mat.Dense, []float64, error) {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return nil, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != n {
		return nil, nil, errors.NewDimensionError(op, n, yRows, 0)
	}
	if yCols != 1 {
		return nil, nil, errors.NewValueError(op, "y must be a column vector")
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	if sampleWeight != nil {
		if len(sampleWeight) != n {
			return nil, nil, errors.NewDimensionError(op, n, len(sampleWeight), 0)
		}
		var total float64
		for i, v := range sampleWeight {
			if v < 0 {
				return nil, nil, errors.NewValidationError("sample_weight", "must be non-negative", v)
			}
			w[i] = v
			total += v
		}
		if total == 0 {
			return nil, nil, errors.NewValidationError("sample_weight", "must have a positive sum", total)
		}
	}
	if err := errors.CheckMatrix(op, X, n, d, 0); err != nil {
		return nil, nil, err
	}
	return mat.DenseCopyOf(X), w, nil
}
