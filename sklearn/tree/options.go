package tree

import "github.com/YuminosukeSato/molpipe/pkg/errors"

// Params holds the hyperparameters shared by classifier and regressor trees.
type Params struct {
	Criterion       string
	MaxDepth        int // 0 means unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 means all features
	RandomState     uint64
}

// Option configures a decision tree.
type Option func(*Params)

// WithCriterion sets the impurity measure: "gini" or "entropy" for
// classification, "squared_error" for regression.
func WithCriterion(c string) Option {
	return func(p *Params) { p.Criterion = c }
}

func WithMaxDepth(d int) Option {
	return func(p *Params) { p.MaxDepth = d }
}

func WithMinSamplesSplit(n int) Option {
	return func(p *Params) { p.MinSamplesSplit = n }
}

func WithMinSamplesLeaf(n int) Option {
	return func(p *Params) { p.MinSamplesLeaf = n }
}

// WithMaxFeatures limits the number of features tried at each split.
func WithMaxFeatures(k int) Option {
	return func(p *Params) { p.MaxFeatures = k }
}

// WithRandomState seeds feature subsampling.
func WithRandomState(seed uint64) Option {
	return func(p *Params) { p.RandomState = seed }
}

func defaultParams(criterion string) Params {
	return Params{
		Criterion:       criterion,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

func (p *Params) getParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.Criterion,
		"max_depth":         p.MaxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
		"max_features":      p.MaxFeatures,
		"random_state":      p.RandomState,
	}
}

func (p *Params) setParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			p.Criterion, ok = value.(string)
		case "max_depth":
			p.MaxDepth, ok = value.(int)
		case "min_samples_split":
			p.MinSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			p.MinSamplesLeaf, ok = value.(int)
		case "max_features":
			p.MaxFeatures, ok = value.(int)
		case "random_state":
			p.RandomState, ok = value.(uint64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "wrong type", value)
		}
	}
	return nil
}

func (p *Params) validate(criteria ...string) error {
	valid := false
	for _, c := range criteria {
		if p.Criterion == c {
			valid = true
		}
	}
	if !valid {
		return errors.NewValidationError("criterion", "unsupported criterion", p.Criterion)
	}
	if p.MinSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", p.MinSamplesSplit)
	}
	if p.MinSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", p.MinSamplesLeaf)
	}
	if p.MaxDepth < 0 || p.MaxFeatures < 0 {
		return errors.NewValidationError("max_depth", "must be non-negative", p.MaxDepth)
	}
	return nil
}
