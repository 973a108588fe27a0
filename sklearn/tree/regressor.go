package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/metrics"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// DecisionTreeRegressor is a CART regressor minimizing squared error.
type DecisionTreeRegressor struct {
	model.BaseEstimator
	Params
	Tree
}

func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{Params: defaultParams("squared_error")}
	for _, opt := range opts {
		opt(&dt.Params)
	}
	return dt
}

func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

func (dt *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	if err := dt.validate("squared_error"); err != nil {
		return err
	}
	Xd, w, err := checkInput("DecisionTreeRegressor.Fit", X, y, sampleWeight)
	if err != nil {
		return err
	}
	dt.Tree = *newBuilder(Xd, mat.Col(nil, 0, y), w, 0, dt.Params).build()
	dt.SetFitted()
	return nil
}

func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	n, c := X.Dims()
	if c != dt.NFeatures {
		return nil, errors.NewDimensionError("DecisionTreeRegressor.Predict", dt.NFeatures, c, 1)
	}
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, dt.leaf(func(j int) float64 { return X.At(i, j) }).Value[0])
	}
	return out, nil
}

// Score returns the coefficient of determination.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := X.Dims()
	return metrics.R2Score(
		mat.NewVecDense(n, mat.Col(nil, 0, y)),
		mat.NewVecDense(n, mat.Col(nil, 0, pred)),
	)
}

func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.Importances...)
}

func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.getParams()
}

func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return dt.setParams(params)
}
