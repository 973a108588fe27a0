// Package pipeline composes featurize, train-test-split, fit and eval into
// the single `model` command. Intermediate artifacts are named after the
// dataset and model so a later run can skip stages and pick them up.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/YuminosukeSato/molpipe/dataset"
	"github.com/YuminosukeSato/molpipe/evaluate"
	"github.com/YuminosukeSato/molpipe/models"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/pkg/log"
	"github.com/YuminosukeSato/molpipe/split"
)

// Options carries the flags of every stage plus the skip switches. The
// split stage's Paths, TrainOut and TestOut are derived and need not be set.
type Options struct {
	Featurize dataset.Options
	Split     split.Options
	Model     string
	TaskType  string
	Params    models.Params

	SkipFeaturization  bool
	SkipTrainTestSplit bool
	SkipFit            bool

	// Registry, when set, records both evaluations in a run store.
	Registry string
	// Stdout receives stage banners and stats reports.
	Stdout io.Writer
}

func DefaultOptions() Options {
	return Options{
		Featurize: dataset.DefaultOptions(),
		Split:     split.DefaultOptions(),
		TaskType:  models.Classification,
		Params:    models.DefaultParams(),
	}
}

// Paths are the artifact locations under DataDir = <out>/<name>.
type Paths struct {
	DataDir    string
	Train      string
	Test       string
	Model      string
	TrainCSV   string
	TrainStats string
	TestCSV    string
	TestStats  string
}

// ArtifactPaths derives the artifact names. The model file extension comes
// from the model's backend.
func ArtifactPaths(out, name, modelName string) (Paths, error) {
	backend, err := models.BackendOf(modelName)
	if err != nil {
		return Paths{}, err
	}
	ext, err := models.Extension(backend)
	if err != nil {
		return Paths{}, err
	}
	dir := filepath.Join(out, name)
	join := func(suffix string) string { return filepath.Join(dir, name+suffix) }
	return Paths{
		DataDir:    dir,
		Train:      join("-train.gob.gz"),
		Test:       join("-test.gob.gz"),
		Model:      filepath.Join(dir, modelName+"."+ext),
		TrainCSV:   join("-train.csv"),
		TrainStats: join("-train-stats.txt"),
		TestCSV:    join("-test.csv"),
		TestStats:  join("-test-stats.txt"),
	}, nil
}

// Result holds the two evaluation reports.
type Result struct {
	Paths Paths
	Train *evaluate.Report
	Test  *evaluate.Report
}

func (o *Options) validate() error {
	if o.Featurize.Name == "" {
		return errors.NewValidationError("name", "dataset name is required", o.Featurize.Name)
	}
	if o.Featurize.Out == "" {
		return errors.NewValidationError("out", "output directory is required", o.Featurize.Out)
	}
	if err := models.CheckTaskType(o.Model, o.TaskType); err != nil {
		return err
	}
	if len(o.Featurize.TargetFields) == 0 {
		return errors.NewValidationError("target-fields", "at least one target field is required", o.Featurize.TargetFields)
	}
	if !o.SkipFeaturization {
		if err := o.Featurize.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the stages in order. Skipped stages expect their artifacts
// at the derived paths.
func Run(ctx context.Context, opts Options) (res *Result, err error) {
	defer errors.Recover(&err, "Run")
	if err := opts.validate(); err != nil {
		return nil, err
	}
	paths, err := ArtifactPaths(opts.Featurize.Out, opts.Featurize.Name, opts.Model)
	if err != nil {
		return nil, err
	}
	out := opts.Stdout
	if out == nil {
		out = io.Discard
	}
	logger := log.GetLoggerWithName("pipeline").With(log.DatasetKey, opts.Featurize.Name, log.ModelNameKey, opts.Model)
	start := time.Now()

	stage := func(name string, skip bool, fn func() error) error {
		if skip {
			banner(out, name, "skipped")
			logger.Info("stage skipped", log.StageKey, name)
			return nil
		}
		banner(out, name, "")
		t := time.Now()
		if err := fn(); err != nil {
			return errors.Wrapf(err, "%s", name)
		}
		logger.Info("stage complete", log.StageKey, name, log.DurationMsKey, time.Since(t).Milliseconds())
		return nil
	}

	if err := stage("featurize", opts.SkipFeaturization, func() error {
		_, err := dataset.Featurize(ctx, opts.Featurize)
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage("train-test-split", opts.SkipTrainTestSplit, func() error {
		s := opts.Split
		s.Paths = []string{paths.DataDir}
		s.TrainOut, s.TestOut = paths.Train, paths.Test
		// the featurized directory may carry more targets than this model uses
		s.TargetFields = opts.Featurize.TargetFields
		_, _, err := split.TrainTestSplit(s)
		return err
	}); err != nil {
		return nil, err
	}

	if err := stage("fit", opts.SkipFit, func() error {
		_, err := models.Fit(models.FitOptions{
			Model:     opts.Model,
			TaskType:  opts.TaskType,
			SavedData: paths.Train,
			SavedOut:  paths.Model,
			Params:    opts.Params,
		})
		return err
	}); err != nil {
		return nil, err
	}

	res = &Result{Paths: paths}
	for _, ev := range []struct {
		name, data, csv, stats string
		dst                    **evaluate.Report
	}{
		{"eval train", paths.Train, paths.TrainCSV, paths.TrainStats, &res.Train},
		{"eval test", paths.Test, paths.TestCSV, paths.TestStats, &res.Test},
	} {
		if err := stage(ev.name, false, func() error {
			eo := evaluate.Options{
				SavedModel: paths.Model,
				SavedData:  ev.data,
				TaskType:   opts.TaskType,
				CSVOut:     ev.csv,
				StatsOut:   ev.stats,
				Registry:   opts.Registry,
				Stdout:     out,
			}
			eo.EnableDefaults(opts.TaskType)
			r, err := evaluate.Evaluate(ctx, eo)
			*ev.dst = r
			return err
		}); err != nil {
			return nil, err
		}
	}
	logger.Info("pipeline complete", log.DurationMsKey, time.Since(start).Milliseconds())
	return res, nil
}

var (
	bannerStyle = color.New(color.FgCyan, color.Bold)
	skipStyle   = color.New(color.FgYellow)
)

func banner(w io.Writer, stage, note string) {
	bannerStyle.Fprintf(w, "==> %s", stage)
	if note != "" {
		skipStyle.Fprintf(w, " (%s)", note)
	}
	fmt.Fprintln(w)
}
