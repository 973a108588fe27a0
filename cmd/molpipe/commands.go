package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/molpipe/dataset"
	"github.com/YuminosukeSato/molpipe/evaluate"
	"github.com/YuminosukeSato/molpipe/models"
	"github.com/YuminosukeSato/molpipe/pipeline"
	"github.com/YuminosukeSato/molpipe/split"
)

func newFeaturizeCommand() *cobra.Command {
	opts := dataset.DefaultOptions()
	var ff *featurizeFlags
	cmd := &cobra.Command{
		Use:   "featurize",
		Short: "Featurize raw molecule records into a versioned dataset directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ff.resolve(); err != nil {
				return err
			}
			m, err := dataset.Featurize(cmd.Context(), opts)
			if err != nil {
				return err
			}
			cmd.Printf("featurized %d molecules (%d skipped) into version %d\n", m.Molecules, m.Skipped, m.Version)
			return nil
		},
	}
	ff = addFeaturizeFlags(cmd.Flags(), &opts)
	return cmd
}

func newSplitCommand() *cobra.Command {
	opts := split.DefaultOptions()
	var sf *splitFlags
	cmd := &cobra.Command{
		Use:   "train-test-split",
		Short: "Split featurized datasets and fit input/output transforms on train",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sf.resolve()
			train, test, err := split.TrainTestSplit(opts)
			if err != nil {
				return err
			}
			cmd.Printf("train: %s\ntest: %s\n", describe(train), describe(test))
			return nil
		},
	}
	sf = addSplitFlags(cmd.Flags(), &opts, true)
	return cmd
}

func describe(b *split.Bundle) string {
	d, err := b.Raw.Union()
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%d molecules, %d tasks (%s)", d.Len(), len(b.Raw.Tasks), b.Raw.Mode)
}

func newFitCommand() *cobra.Command {
	opts := models.FitOptions{Params: models.DefaultParams()}
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a model on a train bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := models.Fit(opts)
			if err != nil {
				return err
			}
			cmd.Printf("fitted %s (%s backend) on %d tasks: %s\n", a.Model, a.Backend, len(a.Tasks), opts.SavedOut)
			return nil
		},
	}
	fs := cmd.Flags()
	addFitFlags(fs, &opts.Params, &opts.Model)
	fs.StringVar(&opts.TaskType, "task-type", "", "classification or regression")
	fs.StringVar(&opts.SavedData, "saved-data", "", "Train bundle written by train-test-split")
	fs.StringVar(&opts.SavedOut, "saved-out", "", "Model artifact output path")
	return cmd
}

func newEvalCommand() *cobra.Command {
	var opts evaluate.Options
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a fitted model on a split bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Stdout = cmd.OutOrStdout()
			_, err := evaluate.Evaluate(cmd.Context(), opts)
			return err
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.SavedModel, "saved-model", "", "Model artifact written by fit")
	fs.StringVar(&opts.SavedData, "saved-data", "", "Split bundle to evaluate on")
	fs.StringVar(&opts.ModelType, "modeltype", "", "Model backend: estimator, network, convolutional (or sklearn, keras-graph, keras-sequential)")
	fs.StringVar(&opts.TaskType, "task-type", "", "classification or regression (default: from the model)")
	fs.BoolVar(&opts.ComputeAUC, "compute-aucs", false, "Compute ROC AUC")
	fs.BoolVar(&opts.ComputeAccuracy, "compute-accuracy", false, "Compute accuracy")
	fs.BoolVar(&opts.ComputeRecall, "compute-recall", false, "Compute recall")
	fs.BoolVar(&opts.ComputeMCC, "compute-matthews-corrcoef", false, "Compute the Matthews correlation coefficient")
	fs.BoolVar(&opts.ComputeR2, "compute-r2s", false, "Compute R²")
	fs.BoolVar(&opts.ComputeRMS, "compute-rms", false, "Compute RMSE")
	fs.StringVar(&opts.CSVOut, "csv-out", "", "Per-molecule predictions CSV")
	fs.StringVar(&opts.StatsOut, "stats-out", "", "Stats report path")
	fs.StringVar(&opts.PlotOut, "plot-out", "", "ROC or scatter plot (png, svg, pdf)")
	fs.StringVar(&opts.Registry, "registry", "", "SQLite run store to record scores in")
	return cmd
}

func newModelCommand() *cobra.Command {
	opts := pipeline.DefaultOptions()
	var (
		ff *featurizeFlags
		sf *splitFlags
	)
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Run featurize, train-test-split, fit and eval in sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ff.resolve(); err != nil {
				return err
			}
			sf.resolve()
			opts.Stdout = cmd.OutOrStdout()
			_, err := pipeline.Run(cmd.Context(), opts)
			return err
		},
	}
	fs := cmd.Flags()
	ff = addFeaturizeFlags(fs, &opts.Featurize)
	sf = addSplitFlags(fs, &opts.Split, false)
	addFitFlags(fs, &opts.Params, &opts.Model)
	fs.StringVar(&opts.TaskType, "task-type", opts.TaskType, "classification or regression")
	fs.BoolVar(&opts.SkipFeaturization, "skip-featurization", false, "Reuse the featurized dataset directory")
	fs.BoolVar(&opts.SkipTrainTestSplit, "skip-train-test-split", false, "Reuse the train and test bundles")
	fs.BoolVar(&opts.SkipFit, "skip-fit", false, "Reuse the fitted model")
	fs.StringVar(&opts.Registry, "registry", "", "SQLite run store to record scores in")
	return cmd
}
