package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer computes a goodness-of-fit score on labelled data.
type Scorer interface {
	Score(X mat.Matrix, y mat.Matrix) (float64, error)
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Estimator
	Scorer
}

// Classifier is a binary classifier. PredictProba returns an n×2 matrix
// whose second column is the positive-class probability.
type Classifier interface {
	Estimator
	PredictProba(X mat.Matrix) (mat.Matrix, error)
	Classes() []int
}

// ParameterGetter exposes hyperparameters, recorded in artifact metadata.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// PositiveProba returns the positive-class probability for classifiers and
// the raw prediction for everything else.
func PositiveProba(e Estimator, X mat.Matrix) ([]float64, error) {
	if c, ok := e.(Classifier); ok {
		proba, err := c.PredictProba(X)
		if err != nil {
			return nil, err
		}
		r, cols := proba.Dims()
		out := make([]float64, r)
		for i := range out {
			out[i] = proba.At(i, cols-1)
		}
		return out, nil
	}
	pred, err := e.Predict(X)
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, pred), nil
}
