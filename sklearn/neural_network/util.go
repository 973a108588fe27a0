package neural_network

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

func gatherRows(X *mat.Dense, rows []int) *mat.Dense {
	_, d := X.Dims()
	out := mat.NewDense(len(rows), d, nil)
	for i, r := range rows {
		out.SetRow(i, X.RawRowView(r))
	}
	return out
}

func colSums(dst []float64, m *mat.Dense) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst[j] += m.At(i, j)
		}
	}
}

// checkTraining validates shapes and returns dense copies with the
// effective weight mask.
func checkTraining(op string, X, Y, W mat.Matrix) (*mat.Dense, *mat.Dense, *mat.Dense, error) {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return nil, nil, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yn, t := Y.Dims()
	if yn != n {
		return nil, nil, nil, errors.NewDimensionError(op, n, yn, 0)
	}
	if W != nil {
		wn, wt := W.Dims()
		if wn != n {
			return nil, nil, nil, errors.NewDimensionError(op, n, wn, 0)
		}
		if wt != t {
			return nil, nil, nil, errors.NewDimensionError(op, t, wt, 1)
		}
	}
	if err := errors.CheckMatrix(op, X, n, d, 0); err != nil {
		return nil, nil, nil, err
	}
	return mat.DenseCopyOf(X), mat.DenseCopyOf(Y), maskWeights(Y, W), nil
}

// JSON numbers decode as float64; ints survive only before a round trip.
func floatParam(m map[string]interface{}, key string) (float64, error) {
	switch v := m[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	}
	return 0, errors.NewSchemaError("network weights", key)
}

func intParam(m map[string]interface{}, key string) (int, error) {
	v, err := floatParam(m, key)
	return int(v), err
}

func trainParamsFrom(mw *model.ModelWeights) (TrainParams, error) {
	var p TrainParams
	var err error
	hp := mw.Hyperparameters
	if p.LearningRate, err = floatParam(hp, "learning_rate"); err != nil {
		return p, err
	}
	if p.Decay, err = floatParam(hp, "decay"); err != nil {
		return p, err
	}
	if p.Momentum, err = floatParam(hp, "momentum"); err != nil {
		return p, err
	}
	if p.NEpochs, err = intParam(hp, "n_epochs"); err != nil {
		return p, err
	}
	if p.BatchSize, err = intParam(hp, "batch_size"); err != nil {
		return p, err
	}
	if p.ValidationSplit, err = floatParam(hp, "validation_split"); err != nil {
		return p, err
	}
	seed, err := floatParam(hp, "random_state")
	if err != nil {
		return p, err
	}
	p.RandomState = uint64(seed)
	loss, ok := hp["loss"].(string)
	if !ok {
		return p, errors.NewSchemaError("network weights", "loss")
	}
	p.Loss, err = ParseLoss(loss)
	return p, err
}
