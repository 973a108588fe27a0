package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	nn "github.com/YuminosukeSato/molpipe/sklearn/neural_network"
	"github.com/YuminosukeSato/molpipe/split"
)

// Artifact is the envelope written by the fit stage. Estimators are only
// populated for the estimator backend and Networks only for the network
// and convolutional backends.
type Artifact struct {
	Model     string    `json:"model"`
	Backend   string    `json:"backend"`
	TaskType  string    `json:"task_type"`
	Mode      string    `json:"mode"`
	Tasks     []string  `json:"tasks"`
	Features  []string  `json:"features"`
	CreatedAt time.Time `json:"created_at"`

	// Estimators are keyed by task name.
	Estimators map[string]model.Estimator `json:"-"`
	// Networks are keyed by task name, or by split.MultitaskKey for a
	// single network predicting every task.
	Networks map[string]*model.ModelWeights `json:"networks,omitempty"`

	nets map[string]predictor
}

type predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Save writes the artifact with the encoding of its backend, creating
// parent directories.
func (a *Artifact) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	if a.Backend == BackendEstimator {
		return model.SaveGob(a, path)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode model artifact")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

// LoadArtifact reads a model artifact. backend may be empty, in which case
// the encoding is inferred from the file name and the backend is read from
// the artifact; otherwise it must match the artifact.
func LoadArtifact(path, backend string) (*Artifact, error) {
	b, err := NormalizeBackend(backend)
	if err != nil {
		return nil, err
	}
	useGob := b == BackendEstimator
	if b == "" {
		useGob = strings.HasSuffix(path, ".gob.gz")
	}

	a := &Artifact{}
	if useGob {
		if err := model.LoadGob(a, path); err != nil {
			return nil, errors.Wrapf(err, "load model %s", path)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		if err := json.Unmarshal(data, a); err != nil {
			return nil, errors.Wrapf(err, "decode model %s", path)
		}
	}
	if b != "" && a.Backend != b {
		return nil, errors.NewValidationError("modeltype", "artifact was written by the "+a.Backend+" backend", backend)
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Artifact) validate() error {
	if _, ok := extensions[a.Backend]; !ok {
		return errors.Wrapf(errors.ErrUnknownBackend, "%q", a.Backend)
	}
	if len(a.Tasks) == 0 {
		return errors.NewSchemaError("model artifact", "tasks")
	}
	if a.Backend == BackendEstimator {
		for _, t := range a.Tasks {
			if e, ok := a.Estimators[t]; !ok || e == nil {
				return errors.NewSchemaError("model artifact", "estimators."+t)
			}
		}
		return nil
	}
	if _, ok := a.Networks[split.MultitaskKey]; ok {
		return nil
	}
	for _, t := range a.Tasks {
		if _, ok := a.Networks[t]; !ok {
			return errors.NewSchemaError("model artifact", "networks."+t)
		}
	}
	return nil
}

func (a *Artifact) network(key string) (predictor, error) {
	if p, ok := a.nets[key]; ok {
		return p, nil
	}
	mw, ok := a.Networks[key]
	if !ok {
		return nil, errors.NewSchemaError("model artifact", "networks."+key)
	}
	var (
		p   predictor
		err error
	)
	if a.Backend == BackendConvolutional {
		p, err = nn.CNN3DFromWeights(mw)
	} else {
		p, err = nn.MLPFromWeights(mw)
	}
	if err != nil {
		return nil, err
	}
	if a.nets == nil {
		a.nets = map[string]predictor{}
	}
	a.nets[key] = p
	return p, nil
}

// PredictTasks returns one prediction column per task in a.Tasks. For
// classification the values are positive-class probabilities. Predictions
// are on the transformed target scale.
func (a *Artifact) PredictTasks(X mat.Matrix) ([][]float64, error) {
	n, d := X.Dims()
	if len(a.Features) > 0 && d != len(a.Features) {
		return nil, errors.NewDimensionError("Artifact.PredictTasks", len(a.Features), d, 1)
	}
	out := make([][]float64, len(a.Tasks))

	if a.Backend == BackendEstimator {
		for j, t := range a.Tasks {
			p, err := model.PositiveProba(a.Estimators[t], X)
			if err != nil {
				return nil, errors.Wrapf(err, "predict task %s", t)
			}
			out[j] = p
		}
		return out, nil
	}

	if _, ok := a.Networks[split.MultitaskKey]; ok {
		net, err := a.network(split.MultitaskKey)
		if err != nil {
			return nil, err
		}
		pred, err := net.Predict(X)
		if err != nil {
			return nil, err
		}
		if _, c := pred.Dims(); c != len(a.Tasks) {
			return nil, errors.NewDimensionError("Artifact.PredictTasks", len(a.Tasks), c, 1)
		}
		for j := range a.Tasks {
			out[j] = mat.Col(nil, j, pred)
		}
		return out, nil
	}
	for j, t := range a.Tasks {
		net, err := a.network(t)
		if err != nil {
			return nil, err
		}
		pred, err := net.Predict(X)
		if err != nil {
			return nil, errors.Wrapf(err, "predict task %s", t)
		}
		out[j] = mat.Col(nil, 0, pred)
		if len(out[j]) != n {
			return nil, errors.NewDimensionError("Artifact.PredictTasks", n, len(out[j]), 0)
		}
	}
	return out, nil
}
