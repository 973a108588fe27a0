package main

import (
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/YuminosukeSato/molpipe/dataset"
	"github.com/YuminosukeSato/molpipe/models"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/split"
)

// featurizeFlags binds the featurize flags onto o. threshold is kept as
// text so an unset flag can be told apart from 0.
type featurizeFlags struct {
	o         *dataset.Options
	threshold string
}

func addFeaturizeFlags(fs *pflag.FlagSet, o *dataset.Options) *featurizeFlags {
	f := &featurizeFlags{o: o}
	fs.StringSliceVar(&o.InputFiles, "input-files", nil, "Input files (csv, sdf, sdf.gz, json, or .gz variants)")
	fs.StringVar(&o.InputType, "input-type", o.InputType, "Input type: csv, sdf, pandas or json")
	fs.StringVar(&o.Delimiter, "delimiter", o.Delimiter, "CSV field delimiter")
	fs.StringSliceVar(&o.Fields, "fields", nil, "Names of the input fields")
	fs.StringSliceVar(&o.FieldTypes, "field-types", nil, "Type of each field: string, float, list-string, list-float, ndarray")
	fs.StringSliceVar(&o.FeatureFields, "feature-fields", nil, "Fields holding user-specified features")
	fs.StringSliceVar(&o.TargetFields, "target-fields", nil, "Fields holding prediction targets")
	fs.StringVar(&o.SplitField, "split-field", "", "Field holding a train/test label")
	fs.StringVar(&o.SmilesField, "smiles-field", o.SmilesField, "Field holding the SMILES string")
	fs.StringVar(&o.IDField, "id-field", "", "Field holding the molecule id (default: smiles-field)")
	fs.StringVar(&f.threshold, "threshold", "", "Binarize targets: values above the threshold become 1")
	fs.StringVar(&o.Name, "name", "", "Dataset name")
	fs.StringVar(&o.Out, "out", "", "Output directory")
	fs.IntVar(&o.Workers, "workers", o.Workers, "Input files featurized concurrently")
	fs.IntVar(&o.GridSize, "grid-size", o.GridSize, "Voxel grid edge length")
	fs.Float64Var(&o.GridResolution, "grid-resolution", o.GridResolution, "Voxel edge in angstroms")
	return f
}

func (f *featurizeFlags) resolve() error {
	if f.threshold == "" {
		f.o.Threshold = nil
		return nil
	}
	v, err := strconv.ParseFloat(f.threshold, 64)
	if err != nil {
		return errors.NewValidationError("threshold", "must be a number", f.threshold)
	}
	f.o.Threshold = &v
	return nil
}

// splitFlags binds the train-test-split flags. withIO adds the flags the
// `model` command derives itself.
type splitFlags struct {
	o            *split.Options
	featureTypes string
}

func addSplitFlags(fs *pflag.FlagSet, o *split.Options, withIO bool) *splitFlags {
	f := &splitFlags{o: o}
	fs.StringSliceVar(&o.InputTransforms, "input-transforms", nil, "Input transforms: normalize-and-truncate")
	fs.StringVar(&o.OutputTransforms, "output-transforms", "", "Comma-separated output transforms: log, normalize")
	fs.StringVar(&f.featureTypes, "feature-types", "", "Comma-separated feature types: fingerprints, descriptors, user-specified, grid")
	fs.StringVar(&o.SplitType, "splittype", o.SplitType, "Split type: scaffold, random or specified")
	fs.BoolVar(&o.WeightPositives, "weight-positives", false, "Weight positives by n_negative/n_positive per task")
	fs.StringVar(&o.Mode, "mode", o.Mode, "singletask or multitask")
	fs.Float64Var(&o.FracTrain, "frac-train", o.FracTrain, "Train fraction for scaffold and random splits")
	fs.Uint64Var(&o.Seed, "seed", 0, "Random split seed")
	if withIO {
		fs.StringSliceVar(&o.Paths, "paths", nil, "Featurized dataset directories")
		fs.StringVar(&o.TrainOut, "train-out", "", "Train bundle output path")
		fs.StringVar(&o.TestOut, "test-out", "", "Test bundle output path")
		fs.StringSliceVar(&o.TargetFields, "target-fields", nil, "Restrict to these tasks (default: the manifest's targets)")
	}
	return f
}

func (f *splitFlags) resolve() {
	f.o.FeatureTypes = split.ParseFeatureTypes(f.featureTypes)
}

func addFitFlags(fs *pflag.FlagSet, p *models.Params, model *string) {
	fs.StringVar(model, "model", "", "Model: "+strings.Join(models.Names(), ", "))
	fs.IntVar(&p.NHidden, "n-hidden", p.NHidden, "Hidden units of the deep networks")
	fs.Float64Var(&p.LearningRate, "learning-rate", p.LearningRate, "SGD learning rate")
	fs.Float64Var(&p.Dropout, "dropout", p.Dropout, "Hidden-layer dropout rate")
	fs.IntVar(&p.NEpochs, "n-epochs", p.NEpochs, "Training epochs")
	fs.IntVar(&p.BatchSize, "batch-size", p.BatchSize, "Minibatch size")
	fs.StringVar(&p.LossFunction, "loss-function", p.LossFunction, "3D_cnn loss: mean_squared_error, mean_absolute_error, binary_crossentropy")
	fs.Float64Var(&p.Decay, "decay", p.Decay, "Learning-rate decay per iteration")
	fs.Float64Var(&p.ValidationSplit, "validation-split", p.ValidationSplit, "Fraction of train rows held out for validation loss")
	fs.IntVar(&p.NFilters, "n-filters", p.NFilters, "3D_cnn convolution filters")
	fs.Float64Var(&p.Alpha, "alpha", p.Alpha, "Regularization strength of ridge, lasso, lasso_lars and elastic_net")
	fs.Float64Var(&p.L1Ratio, "l1-ratio", p.L1Ratio, "elastic_net L1 share")
	fs.IntVar(&p.MaxIter, "max-iter", p.MaxIter, "Iteration limit of iterative solvers")
	fs.IntVar(&p.NEstimators, "n-estimators", p.NEstimators, "Trees per random forest")
	fs.IntVar(&p.NJobs, "n-jobs", p.NJobs, "Random forest workers (0: all CPUs)")
	fs.Uint64Var(&p.RandomState, "random-state", p.RandomState, "Seed for forests and networks")
}
