package models

import (
	"math"
	"strings"
	"time"

	"github.com/YuminosukeSato/molpipe/chem"
	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/pkg/log"
	nn "github.com/YuminosukeSato/molpipe/sklearn/neural_network"
	"github.com/YuminosukeSato/molpipe/split"
)

// FitOptions mirrors the fit flags.
type FitOptions struct {
	Model     string
	TaskType  string
	SavedData string // train bundle
	SavedOut  string // artifact path
	Params    Params
}

func (o *FitOptions) validate() error {
	if err := CheckTaskType(o.Model, o.TaskType); err != nil {
		return err
	}
	if o.SavedData == "" {
		return errors.NewValidationError("saved-data", "path to the train bundle is required", o.SavedData)
	}
	if o.SavedOut == "" {
		return errors.NewValidationError("saved-out", "output path is required", o.SavedOut)
	}
	return nil
}

// Fit trains the selected model on the transformed train bundle and writes
// the artifact to SavedOut.
func Fit(opts FitOptions) (a *Artifact, err error) {
	defer errors.Recover(&err, "Fit")
	if err := opts.validate(); err != nil {
		return nil, err
	}
	backend, _ := BackendOf(opts.Model)
	logger := log.GetLoggerWithName("fit").With(log.ModelNameKey, opts.Model, log.BackendKey, backend)
	start := time.Now()

	bundle, err := split.LoadBundle(opts.SavedData)
	if err != nil {
		return nil, err
	}
	ts := &bundle.Transformed
	a = &Artifact{
		Model:     opts.Model,
		Backend:   backend,
		TaskType:  opts.TaskType,
		Mode:      ts.Mode,
		Tasks:     ts.Tasks,
		CreatedAt: time.Now().UTC(),
	}

	switch backend {
	case BackendEstimator:
		err = fitEstimators(a, ts, opts, logger)
	case BackendNetwork:
		err = fitNetworks(a, ts, opts, logger)
	case BackendConvolutional:
		err = fitCNN(a, ts, opts, logger)
	default:
		err = errors.Wrapf(errors.ErrUnknownBackend, "%q", backend)
	}
	if err != nil {
		return nil, err
	}
	if err := a.Save(opts.SavedOut); err != nil {
		return nil, err
	}
	logger.Info("model saved",
		log.FileKey, opts.SavedOut,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return a, nil
}

// taskData returns the labelled training rows of task j.
func taskData(ts *split.TaskSplit, j int) (*split.Data, error) {
	d, err := ts.Task(j)
	if err != nil {
		return nil, err
	}
	if d.Len() == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "task %s has no labelled training rows", ts.Tasks[j])
	}
	return d, nil
}

func fitEstimators(a *Artifact, ts *split.TaskSplit, opts FitOptions, logger log.Logger) error {
	s, _ := lookup(opts.Model)
	a.Estimators = make(map[string]model.Estimator, len(ts.Tasks))
	for j, task := range ts.Tasks {
		d, err := taskData(ts, j)
		if err != nil {
			return err
		}
		if a.Features == nil {
			a.Features = d.FeatureNames
		}
		if opts.TaskType == Classification {
			if err := checkBinary(task, d.Y.Data); err != nil {
				return err
			}
		}
		X, y := d.X.Dense(), d.Y.Dense()
		if X == nil {
			return errors.Wrapf(errors.ErrEmptyData, "task %s has no features", task)
		}
		est := s.newEstimator(opts.Params)
		if wf, ok := est.(model.WeightedFitter); ok {
			err = wf.FitWeighted(X, y, d.W.Col(0))
		} else {
			err = est.Fit(X, y)
		}
		if err != nil {
			return errors.Wrapf(err, "fit %s on task %s", opts.Model, task)
		}
		fields := []any{log.TaskKey, task, log.SamplesKey, d.Len(), log.FeaturesKey, d.X.Cols}
		if sc, ok := est.(model.Scorer); ok {
			if r2, err := sc.Score(X, y); err == nil {
				fields = append(fields, log.R2ScoreKey, r2)
			}
		}
		logger.Info("task fitted", fields...)
		a.Estimators[task] = est
	}
	return nil
}

func fitNetworks(a *Artifact, ts *split.TaskSplit, opts FitOptions, logger log.Logger) error {
	netOpts := append(opts.Params.networkOptions(lossFor(opts.TaskType)),
		nn.WithNHidden(opts.Params.NHidden),
		nn.WithDropout(opts.Params.Dropout),
	)
	a.Networks = map[string]*model.ModelWeights{}

	if opts.Model == MultitaskDNN {
		d, err := ts.Union()
		if err != nil {
			return err
		}
		if d.Len() == 0 {
			return errors.Wrap(errors.ErrEmptyData, "train bundle has no rows")
		}
		if opts.TaskType == Classification {
			if err := checkBinary(split.MultitaskKey, d.Y.Data); err != nil {
				return err
			}
		}
		a.Features = d.FeatureNames
		mlp := nn.NewMLP(netOpts...)
		if err := mlp.Fit(d.X.Dense(), d.Y.Dense(), d.W.Dense()); err != nil {
			return errors.Wrapf(err, "fit %s", opts.Model)
		}
		logger.Info("network fitted",
			log.TargetsKey, len(ts.Tasks),
			log.SamplesKey, d.Len(),
			log.FeaturesKey, d.X.Cols,
			log.LossKey, lastLoss(mlp.History),
		)
		a.Networks[split.MultitaskKey] = mlp.ToWeights()
		return nil
	}

	for j, task := range ts.Tasks {
		d, err := taskData(ts, j)
		if err != nil {
			return err
		}
		if opts.TaskType == Classification {
			if err := checkBinary(task, d.Y.Data); err != nil {
				return err
			}
		}
		if a.Features == nil {
			a.Features = d.FeatureNames
		}
		mlp := nn.NewMLP(netOpts...)
		if err := mlp.Fit(d.X.Dense(), d.Y.Dense(), d.W.Dense()); err != nil {
			return errors.Wrapf(err, "fit %s on task %s", opts.Model, task)
		}
		logger.Info("network fitted",
			log.TaskKey, task,
			log.SamplesKey, d.Len(),
			log.LossKey, lastLoss(mlp.History),
		)
		a.Networks[task] = mlp.ToWeights()
	}
	return nil
}

func fitCNN(a *Artifact, ts *split.TaskSplit, opts FitOptions, logger log.Logger) error {
	loss, err := nn.ParseLoss(opts.Params.LossFunction)
	if err != nil {
		return err
	}
	d, err := ts.Union()
	if err != nil {
		return err
	}
	if d.Len() == 0 {
		return errors.Wrap(errors.ErrEmptyData, "train bundle has no rows")
	}
	g, err := gridEdge(d.FeatureNames)
	if err != nil {
		return err
	}
	a.Features = d.FeatureNames
	cnn := nn.NewCNN3D(g, chem.GridChannels,
		append(opts.Params.networkOptions(loss), nn.WithNFilters(opts.Params.NFilters))...)
	if err := cnn.Fit(d.X.Dense(), d.Y.Dense(), d.W.Dense()); err != nil {
		return errors.Wrapf(err, "fit %s", opts.Model)
	}
	logger.Info("network fitted",
		log.TargetsKey, len(ts.Tasks),
		log.SamplesKey, d.Len(),
		log.FeaturesKey, d.X.Cols,
		log.LossKey, lastLoss(cnn.History),
	)
	a.Networks = map[string]*model.ModelWeights{split.MultitaskKey: cnn.ToWeights()}
	return nil
}

// gridEdge recovers the voxel grid edge length from the feature names. The
// convolutional network only accepts the grid feature on its own.
func gridEdge(names []string) (int, error) {
	for _, n := range names {
		if !strings.HasPrefix(n, "voxel_") {
			return 0, errors.NewValidationError("feature-types", "3D_cnn requires the grid feature type only", n)
		}
	}
	cells := len(names) / chem.GridChannels
	g := int(math.Round(math.Cbrt(float64(cells))))
	if g*g*g*chem.GridChannels != len(names) {
		return 0, errors.NewDimensionError("gridEdge", chem.GridChannels*g*g*g, len(names), 1)
	}
	return g, nil
}

func checkBinary(task string, y []float64) error {
	for _, v := range y {
		if !math.IsNaN(v) && v != 0 && v != 1 {
			return errors.NewValidationError("task-type", "classification requires 0/1 labels for task "+task, v)
		}
	}
	return nil
}

func lastLoss(h nn.History) float64 {
	if len(h.Loss) == 0 {
		return math.NaN()
	}
	return h.Loss[len(h.Loss)-1]
}
