// Package molpipe turns raw chemical datasets into trained property
// prediction models and evaluation reports.
//
// The pipeline has four stages, each a subcommand of cmd/molpipe and a
// library call:
//
//   - featurize: CSV, SDF or records JSON → versioned dataset directory
//     (dataset.Featurize)
//   - train-test-split: dataset directories → train and test bundles with
//     fitted transforms (split.TrainTestSplit)
//   - fit: train bundle → model artifact (models.Fit)
//   - eval: artifact + bundle → stats, predictions CSV, plot
//     (evaluate.Evaluate)
//
// `molpipe model` runs all four (pipeline.Run) and names the intermediate
// artifacts so later runs can skip stages.
//
// # Quick Start
//
//	molpipe model \
//	    --input-files tox21.csv.gz --fields smiles,NR-AR --field-types string,float \
//	    --target-fields NR-AR --feature-types fingerprints \
//	    --name tox21 --out data --model rf_classifier
//
// or from Go:
//
//	opts := pipeline.DefaultOptions()
//	opts.Featurize.Name, opts.Featurize.Out = "tox21", "data"
//	opts.Featurize.InputFiles = []string{"tox21.csv.gz"}
//	opts.Featurize.Fields = []string{"smiles", "NR-AR"}
//	opts.Featurize.FieldTypes = []string{"string", "float"}
//	opts.Featurize.TargetFields = []string{"NR-AR"}
//	opts.Split.FeatureTypes = []string{"fingerprints"}
//	opts.Model = models.RFClassifier
//	res, err := pipeline.Run(ctx, opts)
//
// # Packages
//
//   - chem: SMILES/SDF parsing, rings, Murcko scaffolds, canonical SMILES,
//     circular fingerprints, descriptors and voxel grids
//   - dataset, split, models, evaluate, pipeline: the stages
//   - linear, sklearn/linear_model, sklearn/tree, sklearn/ensemble,
//     sklearn/neural_network: estimators and networks
//   - metrics: AUC, ROC, accuracy, recall, MCC, R², RMSE
//   - preprocessing: feature scaling and target transforms
//   - core/model: estimator interfaces, gob persistence, tensor weights
//   - core/parallel: row-parallel helpers
//   - runstore: SQLite record of evaluation runs
//   - pkg/errors, pkg/log: typed errors and structured logging
package molpipe
