// Package ensemble provides bagged CART forests for classification and
// regression. Trees are grown concurrently; each tree draws its bootstrap
// sample from its own seeded generator, so results do not depend on the
// number of workers.
package ensemble

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/parallel"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/sklearn/tree"
)

// ForestParams holds the hyperparameters shared by both forests.
type ForestParams struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     string // "sqrt", "log2" or "all"
	Bootstrap       bool
	RandomState     uint64
	NJobs           int // 0 means GOMAXPROCS
}

type Option func(*ForestParams)

func WithNEstimators(n int) Option     { return func(p *ForestParams) { p.NEstimators = n } }
func WithMaxDepth(d int) Option        { return func(p *ForestParams) { p.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option { return func(p *ForestParams) { p.MinSamplesSplit = n } }
func WithMinSamplesLeaf(n int) Option  { return func(p *ForestParams) { p.MinSamplesLeaf = n } }
func WithMaxFeatures(m string) Option  { return func(p *ForestParams) { p.MaxFeatures = m } }
func WithBootstrap(b bool) Option      { return func(p *ForestParams) { p.Bootstrap = b } }
func WithRandomState(s uint64) Option  { return func(p *ForestParams) { p.RandomState = s } }
func WithNJobs(n int) Option           { return func(p *ForestParams) { p.NJobs = n } }

func defaultParams(maxFeatures string) ForestParams {
	return ForestParams{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     maxFeatures,
		Bootstrap:       true,
	}
}

func (p *ForestParams) validate() error {
	if p.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", p.NEstimators)
	}
	switch p.MaxFeatures {
	case "sqrt", "log2", "all":
	default:
		return errors.NewValidationError("max_features", "must be sqrt, log2 or all", p.MaxFeatures)
	}
	return nil
}

func (p *ForestParams) featuresPerSplit(d int) int {
	var k int
	switch p.MaxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(d)))
	case "log2":
		k = int(math.Log2(float64(d)))
	default:
		k = d
	}
	return max(1, k)
}

func (p *ForestParams) treeOptions(i, d int) []tree.Option {
	return []tree.Option{
		tree.WithMaxDepth(p.MaxDepth),
		tree.WithMinSamplesSplit(p.MinSamplesSplit),
		tree.WithMinSamplesLeaf(p.MinSamplesLeaf),
		tree.WithMaxFeatures(p.featuresPerSplit(d)),
		tree.WithRandomState(p.RandomState + uint64(i)),
	}
}

func (p *ForestParams) getParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      p.NEstimators,
		"max_depth":         p.MaxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
		"max_features":      p.MaxFeatures,
		"bootstrap":         p.Bootstrap,
		"random_state":      p.RandomState,
	}
}

// bootstrapWeights folds bootstrap multiplicities into the sample weights.
func (p *ForestParams) bootstrapWeights(i int, sampleWeight []float64, n int) []float64 {
	w := make([]float64, n)
	if !p.Bootstrap {
		for j := range w {
			w[j] = 1
		}
	} else {
		rng := rand.New(rand.NewPCG(p.RandomState, uint64(i)))
		for range n {
			w[rng.IntN(n)]++
		}
	}
	if sampleWeight != nil {
		for j := range w {
			w[j] *= sampleWeight[j]
		}
	}
	return w
}

// grow fits NEstimators trees concurrently. fitTree must be safe to call
// from several goroutines for distinct indices.
func (p *ForestParams) grow(fitTree func(i int) error) error {
	return parallel.Each(context.Background(), p.NEstimators, p.NJobs, "forest.tree",
		func(_ context.Context, i int) error { return fitTree(i) })
}

func checkShapes(op string, X, y mat.Matrix, sampleWeight []float64) (int, int, error) {
	n, d := X.Dims()
	if n == 0 || d == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if r, _ := y.Dims(); r != n {
		return 0, 0, errors.NewDimensionError(op, n, r, 0)
	}
	if sampleWeight != nil && len(sampleWeight) != n {
		return 0, 0, errors.NewDimensionError(op, n, len(sampleWeight), 0)
	}
	return n, d, nil
}
