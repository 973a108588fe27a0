package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/sklearn/tree"
)

// RandomForestClassifier averages the class distributions of its trees.
type RandomForestClassifier struct {
	model.BaseEstimator
	ForestParams

	Trees       []*tree.DecisionTreeClassifier
	ClassLabels []int
	NFeatures   int
}

func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{ForestParams: defaultParams("sqrt")}
	for _, opt := range opts {
		opt(&rf.ForestParams)
	}
	return rf
}

func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	return rf.FitWeighted(X, y, nil)
}

func (rf *RandomForestClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if err := rf.validate(); err != nil {
		return err
	}
	n, d, err := checkShapes("RandomForestClassifier.Fit", X, y, sampleWeight)
	if err != nil {
		return err
	}

	trees := make([]*tree.DecisionTreeClassifier, rf.NEstimators)
	err = rf.grow(func(i int) error {
		t := tree.NewDecisionTreeClassifier(rf.treeOptions(i, d)...)
		if err := t.FitWeighted(X, y, rf.bootstrapWeights(i, sampleWeight, n)); err != nil {
			return err
		}
		trees[i] = t
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "RandomForestClassifier.Fit")
	}

	// every tree sees all labels, so class columns line up across trees
	rf.Trees = trees
	rf.ClassLabels = trees[0].Classes()
	rf.NFeatures = d
	rf.SetFitted()
	return nil
}

func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "PredictProba")
	}
	n, c := X.Dims()
	if c != rf.NFeatures {
		return nil, errors.NewDimensionError("RandomForestClassifier.PredictProba", rf.NFeatures, c, 1)
	}
	out := mat.NewDense(n, len(rf.ClassLabels), nil)
	for _, t := range rf.Trees {
		p, err := t.PredictProba(X)
		if err != nil {
			return nil, err
		}
		out.Add(out, p)
	}
	out.Scale(1/float64(len(rf.Trees)), out)
	return out, nil
}

func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, k := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, float64(rf.ClassLabels[best]))
	}
	return out, nil
}

func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.ClassLabels...)
}

// FeatureImportances averages the tree importances.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	imp := make([]float64, rf.NFeatures)
	for _, t := range rf.Trees {
		for j, v := range t.GetFeatureImportances() {
			imp[j] += v / float64(len(rf.Trees))
		}
	}
	return imp
}

func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return rf.getParams()
}
