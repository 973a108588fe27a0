// Package neural_network implements the multilayer perceptrons and the 3D
// convolutional network used for property prediction. Networks are trained
// with minibatch SGD on masked multi-task targets and are persisted as
// named tensors (model.ModelWeights).
package neural_network

import "github.com/YuminosukeSato/molpipe/pkg/errors"

// TrainParams controls the SGD loop shared by every network.
type TrainParams struct {
	LearningRate    float64
	Decay           float64 // lr / (1 + decay * iteration)
	Momentum        float64
	NEpochs         int
	BatchSize       int
	ValidationSplit float64 // the last fraction of rows is held out
	Loss            Loss
	RandomState     uint64
}

// Option configures a network.
type Option func(*config)

type config struct {
	TrainParams
	nHidden  int
	dropout  float64
	nFilters int
}

func WithLearningRate(lr float64) Option { return func(c *config) { c.LearningRate = lr } }
func WithDecay(d float64) Option         { return func(c *config) { c.Decay = d } }
func WithMomentum(m float64) Option      { return func(c *config) { c.Momentum = m } }
func WithNEpochs(n int) Option           { return func(c *config) { c.NEpochs = n } }
func WithBatchSize(n int) Option         { return func(c *config) { c.BatchSize = n } }
func WithLoss(l Loss) Option             { return func(c *config) { c.Loss = l } }
func WithRandomState(s uint64) Option    { return func(c *config) { c.RandomState = s } }

// WithValidationSplit holds out the last fraction of the training rows and
// logs their loss after each epoch.
func WithValidationSplit(f float64) Option { return func(c *config) { c.ValidationSplit = f } }

// WithNHidden sets the width of the shared hidden layer (MLP only).
func WithNHidden(n int) Option { return func(c *config) { c.nHidden = n } }

// WithDropout sets the hidden-layer dropout rate (MLP only).
func WithDropout(p float64) Option { return func(c *config) { c.dropout = p } }

// WithNFilters sets the number of 3x3x3 convolution filters (CNN3D only).
func WithNFilters(n int) Option { return func(c *config) { c.nFilters = n } }

func newConfig(defaultLoss Loss, opts []Option) config {
	c := config{
		TrainParams: TrainParams{
			LearningRate: 0.01,
			Decay:        1e-4,
			Momentum:     0.9,
			NEpochs:      50,
			BatchSize:    32,
			Loss:         defaultLoss,
		},
		nHidden:  500,
		dropout:  0.5,
		nFilters: 8,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (p *TrainParams) validate() error {
	if p.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	}
	if p.Decay < 0 {
		return errors.NewValidationError("decay", "must be non-negative", p.Decay)
	}
	if p.Momentum < 0 || p.Momentum >= 1 {
		return errors.NewValidationError("momentum", "must be in [0, 1)", p.Momentum)
	}
	if p.NEpochs < 1 {
		return errors.NewValidationError("n_epochs", "must be at least 1", p.NEpochs)
	}
	if p.BatchSize < 1 {
		return errors.NewValidationError("batch_size", "must be at least 1", p.BatchSize)
	}
	if p.ValidationSplit < 0 || p.ValidationSplit >= 1 {
		return errors.NewValidationError("validation_split", "must be in [0, 1)", p.ValidationSplit)
	}
	if _, err := ParseLoss(string(p.Loss)); err != nil {
		return err
	}
	return nil
}

func (p *TrainParams) hyperparameters() map[string]interface{} {
	return map[string]interface{}{
		"learning_rate":    p.LearningRate,
		"decay":            p.Decay,
		"momentum":         p.Momentum,
		"n_epochs":         p.NEpochs,
		"batch_size":       p.BatchSize,
		"validation_split": p.ValidationSplit,
		"loss":             string(p.Loss),
		"random_state":     p.RandomState,
	}
}
