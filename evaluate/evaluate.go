// Package evaluate implements the eval stage: it scores a fitted model on a
// split bundle in the original target units and writes the per-molecule
// predictions, a stats report, an optional plot and an optional run-store
// entry.
package evaluate

import (
	"context"
	"io"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/metrics"
	"github.com/YuminosukeSato/molpipe/models"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/pkg/log"
	"github.com/YuminosukeSato/molpipe/runstore"
	"github.com/YuminosukeSato/molpipe/split"
)

// Options mirrors the eval flags.
type Options struct {
	SavedModel string
	SavedData  string
	ModelType  string // backend; read from the artifact when empty
	TaskType   string // read from the artifact when empty

	ComputeAUC      bool
	ComputeAccuracy bool
	ComputeRecall   bool
	ComputeMCC      bool
	ComputeR2       bool
	ComputeRMS      bool

	CSVOut   string
	StatsOut string
	PlotOut  string
	Registry string

	// Stdout receives the stats report; nil discards it.
	Stdout io.Writer
}

// Metrics lists the requested metrics in report order.
func (o *Options) Metrics() []string {
	var out []string
	for _, m := range []struct {
		on   bool
		name string
	}{
		{o.ComputeAUC, AUC}, {o.ComputeAccuracy, Accuracy}, {o.ComputeRecall, Recall},
		{o.ComputeMCC, MCC}, {o.ComputeR2, R2}, {o.ComputeRMS, RMS},
	} {
		if m.on {
			out = append(out, m.name)
		}
	}
	return out
}

// EnableDefaults switches on every metric that applies to taskType.
func (o *Options) EnableDefaults(taskType string) {
	if taskType == models.Classification {
		o.ComputeAUC, o.ComputeRecall, o.ComputeAccuracy, o.ComputeMCC = true, true, true, true
		return
	}
	o.ComputeR2, o.ComputeRMS = true, true
}

func (o *Options) validate() error {
	if o.SavedModel == "" {
		return errors.NewValidationError("saved-model", "path to the model artifact is required", o.SavedModel)
	}
	if o.SavedData == "" {
		return errors.NewValidationError("saved-data", "path to the split bundle is required", o.SavedData)
	}
	if o.TaskType != "" && o.TaskType != models.Classification && o.TaskType != models.Regression {
		return errors.NewValidationError("task-type", "must be classification or regression", o.TaskType)
	}
	return nil
}

// TaskScores holds the metrics of one task.
type TaskScores struct {
	Task    string
	Samples int
	Scores  map[string]float64
}

// Report is the result of one evaluation.
type Report struct {
	Model    string
	Backend  string
	TaskType string
	Split    string
	Metrics  []string
	Tasks    []TaskScores
	Mean     map[string]float64

	// per-molecule predictions in original units, one column per task
	IDs    []string
	SMILES []string
	True   [][]float64
	Pred   [][]float64
}

// Evaluate runs the stage.
func Evaluate(ctx context.Context, opts Options) (r *Report, err error) {
	defer errors.Recover(&err, "Evaluate")
	if err := opts.validate(); err != nil {
		return nil, err
	}
	a, err := models.LoadArtifact(opts.SavedModel, opts.ModelType)
	if err != nil {
		return nil, err
	}
	taskType := opts.TaskType
	if taskType == "" {
		taskType = a.TaskType
	}
	if taskType != a.TaskType {
		return nil, errors.NewValidationError("task-type", "model was fitted for "+a.TaskType, taskType)
	}
	metricNames := opts.Metrics()
	for _, m := range metricNames {
		if metricTaskType[m] != taskType {
			return nil, errors.NewValidationError("metrics", m+" does not apply to "+taskType+" tasks", m)
		}
	}

	b, err := split.LoadBundle(opts.SavedData)
	if err != nil {
		return nil, err
	}
	if !slices.Equal(b.Transformed.Tasks, a.Tasks) {
		return nil, errors.NewSchemaError("split bundle", "tasks "+strings.Join(a.Tasks, ","))
	}
	logger := log.GetLoggerWithName("eval").With(
		log.ModelNameKey, a.Model,
		log.BackendKey, a.Backend,
		log.SplitKey, b.Split,
	)
	start := time.Now()

	r, err = predict(a, b, taskType)
	if err != nil {
		return nil, err
	}
	r.Metrics = metricNames

	for j, task := range a.Tasks {
		yTrue, yPred := metrics.Labelled(r.True[j], r.Pred[j])
		ts := TaskScores{Task: task, Samples: len(yTrue), Scores: map[string]float64{}}
		for _, m := range metricNames {
			v, err := score(m, yTrue, yPred)
			if err != nil {
				return nil, errors.Wrapf(err, "%s on task %s", m, task)
			}
			ts.Scores[m] = v
			logger.Debug("metric computed", log.TaskKey, task, log.MetricKey, m, log.ValueKey, v)
		}
		r.Tasks = append(r.Tasks, ts)
	}
	r.Mean = map[string]float64{}
	for _, m := range metricNames {
		vals := make([]float64, len(r.Tasks))
		for j, ts := range r.Tasks {
			vals[j] = ts.Scores[m]
		}
		r.Mean[m] = mean(vals)
	}

	if err := r.write(opts); err != nil {
		return nil, err
	}
	if opts.Registry != "" {
		if err := r.record(ctx, opts); err != nil {
			return nil, err
		}
	}
	logger.Info("evaluation complete",
		log.SamplesKey, len(r.IDs),
		log.TargetsKey, len(r.Tasks),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return r, nil
}

// predict scores every molecule of the bundle and maps predictions back to
// the original target units.
func predict(a *models.Artifact, b *split.Bundle, taskType string) (*Report, error) {
	data, err := b.Transformed.Union()
	if err != nil {
		return nil, err
	}
	raw, err := b.Raw.Union()
	if err != nil {
		return nil, err
	}
	if !slices.Equal(data.IDs, raw.IDs) {
		return nil, errors.NewSchemaError("split bundle", "raw.ids")
	}
	r := &Report{
		Model: a.Model, Backend: a.Backend, TaskType: taskType, Split: b.Split,
		IDs: data.IDs, SMILES: data.SMILES,
		True: make([][]float64, len(a.Tasks)),
		Pred: make([][]float64, len(a.Tasks)),
	}
	for j := range a.Tasks {
		r.True[j] = raw.Y.Col(j)
	}
	n := data.Len()
	if n == 0 {
		for j := range r.Pred {
			r.Pred[j] = []float64{}
		}
		return r, nil
	}

	pred, err := a.PredictTasks(data.X.Dense())
	if err != nil {
		return nil, err
	}
	chain := b.Transforms.OutputChain
	for j := range a.Tasks {
		r.Pred[j] = pred[j]
		// probabilities are never on a transformed scale
		if taskType == models.Regression && chain != nil && len(chain.Names) > 0 {
			inv, err := chain.Column(j).InverseTransform(mat.NewDense(n, 1, slices.Clone(pred[j])))
			if err != nil {
				return nil, errors.Wrapf(err, "invert output transforms for task %s", a.Tasks[j])
			}
			r.Pred[j] = mat.Col(nil, 0, inv)
		}
	}
	return r, nil
}

func (r *Report) record(ctx context.Context, opts Options) error {
	store, err := runstore.Open(ctx, opts.Registry)
	if err != nil {
		return err
	}
	defer store.Close()
	run := &runstore.Run{
		Model: r.Model, Backend: r.Backend, TaskType: r.TaskType, Split: r.Split,
		SavedModel: opts.SavedModel, SavedData: opts.SavedData,
	}
	for _, ts := range r.Tasks {
		for _, m := range r.Metrics {
			run.Scores = append(run.Scores, runstore.Score{Task: ts.Task, Metric: m, Value: ts.Scores[m], Samples: ts.Samples})
		}
	}
	if err := store.Record(ctx, run); err != nil {
		return err
	}
	log.GetLoggerWithName("eval").Info("run recorded", log.RunIDKey, run.ID, log.FileKey, opts.Registry)
	return nil
}
