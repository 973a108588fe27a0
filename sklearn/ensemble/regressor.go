package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/metrics"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/sklearn/tree"
)

// RandomForestRegressor averages the predictions of its trees.
type RandomForestRegressor struct {
	model.BaseEstimator
	ForestParams

	Trees     []*tree.DecisionTreeRegressor
	NFeatures int
}

func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	rf := &RandomForestRegressor{ForestParams: defaultParams("all")}
	for _, opt := range opts {
		opt(&rf.ForestParams)
	}
	return rf
}

func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	return rf.FitWeighted(X, y, nil)
}

func (rf *RandomForestRegressor) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	if err := rf.validate(); err != nil {
		return err
	}
	n, d, err := checkShapes("RandomForestRegressor.Fit", X, y, sampleWeight)
	if err != nil {
		return err
	}

	trees := make([]*tree.DecisionTreeRegressor, rf.NEstimators)
	err = rf.grow(func(i int) error {
		t := tree.NewDecisionTreeRegressor(rf.treeOptions(i, d)...)
		if err := t.FitWeighted(X, y, rf.bootstrapWeights(i, sampleWeight, n)); err != nil {
			return err
		}
		trees[i] = t
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "RandomForestRegressor.Fit")
	}
	rf.Trees = trees
	rf.NFeatures = d
	rf.SetFitted()
	return nil
}

func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	n, c := X.Dims()
	if c != rf.NFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", rf.NFeatures, c, 1)
	}
	out := mat.NewDense(n, 1, nil)
	for _, t := range rf.Trees {
		p, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		out.Add(out, p)
	}
	out.Scale(1/float64(len(rf.Trees)), out)
	return out, nil
}

// Score returns R² of the averaged prediction.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := X.Dims()
	return metrics.R2Score(
		mat.NewVecDense(n, mat.Col(nil, 0, y)),
		mat.NewVecDense(n, mat.Col(nil, 0, pred)),
	)
}

func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return rf.getParams()
}
