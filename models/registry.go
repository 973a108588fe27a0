// Package models implements the fit stage: it maps model names to
// backends, trains the selected estimator or network per task on a split
// bundle, and reads and writes the resulting model artifact.
package models

import (
	"encoding/gob"
	"slices"
	"sort"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/linear"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/sklearn/ensemble"
	"github.com/YuminosukeSato/molpipe/sklearn/linear_model"
)

// Model names accepted by --model.
const (
	Logistic      = "logistic"
	RFClassifier  = "rf_classifier"
	RFRegressor   = "rf_regressor"
	Linear        = "linear"
	Ridge         = "ridge"
	Lasso         = "lasso"
	LassoLars     = "lasso_lars"
	ElasticNet    = "elastic_net"
	SingletaskDNN = "singletask_deep_network"
	MultitaskDNN  = "multitask_deep_network"
	CNN3D         = "3D_cnn"
)

// Backends select the artifact encoding and loader.
const (
	BackendEstimator     = "estimator"
	BackendNetwork       = "network"
	BackendConvolutional = "convolutional"
)

// Task types.
const (
	Classification = "classification"
	Regression     = "regression"
)

var backendAliases = map[string]string{
	"sklearn":          BackendEstimator,
	"keras-graph":      BackendNetwork,
	"keras-sequential": BackendConvolutional,
}

var extensions = map[string]string{
	BackendEstimator:     "gob.gz",
	BackendNetwork:       "json",
	BackendConvolutional: "cnn.json",
}

type entry struct {
	backend   string
	taskTypes []string
	// newEstimator is set for the estimator backend.
	newEstimator func(p Params) model.Estimator
}

var both = []string{Classification, Regression}

var registry = map[string]entry{
	Logistic: {BackendEstimator, []string{Classification}, func(p Params) model.Estimator {
		return linear_model.NewLogisticRegression(linear_model.WithLRMaxIter(p.MaxIter))
	}},
	RFClassifier: {BackendEstimator, []string{Classification}, func(p Params) model.Estimator {
		return ensemble.NewRandomForestClassifier(
			ensemble.WithNEstimators(p.NEstimators),
			ensemble.WithRandomState(p.RandomState),
			ensemble.WithNJobs(p.NJobs),
		)
	}},
	RFRegressor: {BackendEstimator, []string{Regression}, func(p Params) model.Estimator {
		return ensemble.NewRandomForestRegressor(
			ensemble.WithNEstimators(p.NEstimators),
			ensemble.WithRandomState(p.RandomState),
			ensemble.WithNJobs(p.NJobs),
		)
	}},
	Linear: {BackendEstimator, []string{Regression}, func(Params) model.Estimator {
		return linear.NewLinearRegression()
	}},
	Ridge: {BackendEstimator, []string{Regression}, func(p Params) model.Estimator {
		return linear.NewRidge(linear.WithAlpha(p.Alpha))
	}},
	Lasso: {BackendEstimator, []string{Regression}, func(p Params) model.Estimator {
		return linear.NewLasso(linear.WithAlpha(p.Alpha), linear.WithMaxIter(p.MaxIter))
	}},
	LassoLars: {BackendEstimator, []string{Regression}, func(p Params) model.Estimator {
		return linear.NewLassoLars(linear.WithAlpha(p.Alpha))
	}},
	ElasticNet: {BackendEstimator, []string{Regression}, func(p Params) model.Estimator {
		return linear.NewElasticNet(linear.WithAlpha(p.Alpha), linear.WithL1Ratio(p.L1Ratio), linear.WithMaxIter(p.MaxIter))
	}},
	SingletaskDNN: {backend: BackendNetwork, taskTypes: both},
	MultitaskDNN:  {backend: BackendNetwork, taskTypes: both},
	CNN3D:         {backend: BackendConvolutional, taskTypes: both},
}

func init() {
	// concrete estimator types stored behind model.Estimator in artifacts
	gob.Register(&linear_model.LogisticRegression{})
	gob.Register(&ensemble.RandomForestClassifier{})
	gob.Register(&ensemble.RandomForestRegressor{})
	gob.Register(&linear.LinearRegression{})
	gob.Register(&linear.Ridge{})
	gob.Register(&linear.Lasso{})
	gob.Register(&linear.LassoLars{})
	gob.Register(&linear.ElasticNet{})
}

// Names lists the registered model names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func lookup(name string) (entry, error) {
	s, ok := registry[name]
	if !ok {
		return entry{}, errors.NewValidationError("model", "unknown model", name)
	}
	return s, nil
}

// BackendOf returns the backend that trains and stores the named model.
func BackendOf(name string) (string, error) {
	s, err := lookup(name)
	if err != nil {
		return "", err
	}
	return s.backend, nil
}

// NormalizeBackend resolves legacy backend names. The empty string is
// returned unchanged.
func NormalizeBackend(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	if b, ok := backendAliases[name]; ok {
		return b, nil
	}
	if _, ok := extensions[name]; ok {
		return name, nil
	}
	return "", errors.NewValidationError("modeltype", "unknown model backend", name)
}

// Extension returns the artifact file extension of a backend.
func Extension(backend string) (string, error) {
	b, err := NormalizeBackend(backend)
	if err != nil {
		return "", err
	}
	ext, ok := extensions[b]
	if !ok {
		return "", errors.Wrapf(errors.ErrUnknownBackend, "%q", backend)
	}
	return ext, nil
}

// CheckTaskType rejects model and task-type combinations that make no
// sense, such as logistic regression on a regression task.
func CheckTaskType(name, taskType string) error {
	s, err := lookup(name)
	if err != nil {
		return err
	}
	if taskType != Classification && taskType != Regression {
		return errors.NewValidationError("task-type", "must be classification or regression", taskType)
	}
	if !slices.Contains(s.taskTypes, taskType) {
		return errors.NewValidationError("model", "does not support "+taskType+" tasks", name)
	}
	return nil
}
