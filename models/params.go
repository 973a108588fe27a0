package models

import (
	nn "github.com/YuminosukeSato/molpipe/sklearn/neural_network"
)

// Params holds the hyperparameter flags of the fit stage. Network fields
// are ignored by the classical estimators and vice versa.
type Params struct {
	// networks
	NHidden         int
	LearningRate    float64
	Dropout         float64
	NEpochs         int
	BatchSize       int
	LossFunction    string // 3D_cnn only; the MLPs pick their loss from the task type
	Decay           float64
	ValidationSplit float64
	NFilters        int

	// classical estimators
	Alpha       float64
	L1Ratio     float64
	MaxIter     int
	NEstimators int
	NJobs       int

	RandomState uint64
}

func DefaultParams() Params {
	return Params{
		NHidden:      500,
		LearningRate: 0.01,
		Dropout:      0.5,
		NEpochs:      50,
		BatchSize:    32,
		LossFunction: string(nn.MeanSquaredError),
		Decay:        1e-4,
		NFilters:     8,
		Alpha:        1.0,
		L1Ratio:      0.5,
		MaxIter:      1000,
		NEstimators:  100,
	}
}

func (p Params) networkOptions(loss nn.Loss) []nn.Option {
	return []nn.Option{
		nn.WithLearningRate(p.LearningRate),
		nn.WithDecay(p.Decay),
		nn.WithNEpochs(p.NEpochs),
		nn.WithBatchSize(p.BatchSize),
		nn.WithValidationSplit(p.ValidationSplit),
		nn.WithRandomState(p.RandomState),
		nn.WithLoss(loss),
	}
}

// lossFor picks the MLP head: sigmoid with cross-entropy for
// classification, linear with squared error for regression.
func lossFor(taskType string) nn.Loss {
	if taskType == Classification {
		return nn.BinaryCrossentropy
	}
	return nn.MeanSquaredError
}
