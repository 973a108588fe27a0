package model

import (
	"encoding/json"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// WeightsVersion is bumped when the tensor layout of a network changes.
const WeightsVersion = "1"

// Tensor は名前付きの重みテンソル (row-major)
type Tensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// size returns the product of Shape.
func (t Tensor) size() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// ModelWeights はニューラルネットワークの重みをJSONで保存するための構造体
type ModelWeights struct {
	ModelType       string                 `json:"model_type"`
	Version         string                 `json:"version"`
	Tensors         []Tensor               `json:"tensors"`
	Features        []string               `json:"features,omitempty"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	IsFitted        bool                   `json:"is_fitted"`
}

func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "decode model weights")
	}
	return nil
}

// Add appends a tensor, copying data.
func (mw *ModelWeights) Add(name string, shape []int, data []float64) {
	mw.Tensors = append(mw.Tensors, Tensor{
		Name:  name,
		Shape: append([]int(nil), shape...),
		Data:  append([]float64(nil), data...),
	})
}

// Tensor looks up a tensor by name and checks its shape.
func (mw *ModelWeights) Tensor(name string, shape ...int) ([]float64, error) {
	for _, t := range mw.Tensors {
		if t.Name != name {
			continue
		}
		if len(t.Shape) != len(shape) {
			return nil, errors.NewValueError("ModelWeights.Tensor", "rank mismatch for "+name)
		}
		for i := range shape {
			if t.Shape[i] != shape[i] {
				return nil, errors.NewDimensionError("ModelWeights.Tensor("+name+")", shape[i], t.Shape[i], i)
			}
		}
		return t.Data, nil
	}
	return nil, errors.NewSchemaError(mw.ModelType+" weights", name)
}

func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewSchemaError("model weights", "model_type")
	}
	if mw.Version == "" {
		return errors.NewSchemaError("model weights", "version")
	}
	if mw.IsFitted && len(mw.Tensors) == 0 {
		return errors.NewValueError("ModelWeights.Validate", "fitted model must have tensors")
	}
	if !mw.IsFitted && len(mw.Tensors) > 0 {
		return errors.NewValueError("ModelWeights.Validate", "unfitted model should not have tensors")
	}
	for _, t := range mw.Tensors {
		if t.size() != len(t.Data) {
			return errors.NewDimensionError("ModelWeights.Validate("+t.Name+")", t.size(), len(t.Data), 0)
		}
	}
	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := &ModelWeights{
		ModelType:       mw.ModelType,
		Version:         mw.Version,
		IsFitted:        mw.IsFitted,
		Features:        append([]string(nil), mw.Features...),
		Hyperparameters: make(map[string]interface{}, len(mw.Hyperparameters)),
		Metadata:        make(map[string]interface{}, len(mw.Metadata)),
	}
	for _, t := range mw.Tensors {
		clone.Add(t.Name, t.Shape, t.Data)
	}
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}
	for k, v := range mw.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
