package split

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/YuminosukeSato/molpipe/dataset"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// Split strategies for --splittype.
const (
	ScaffoldSplit  = "scaffold"
	RandomSplit    = "random"
	SpecifiedSplit = "specified"
)

// Splitter partitions table rows into train and test indices.
type Splitter interface {
	Split(t *dataset.Table, fracTrain float64) (train, test []int, err error)
}

// NewSplitter returns the splitter registered for name.
func NewSplitter(name string, seed uint64) (Splitter, error) {
	switch name {
	case ScaffoldSplit:
		return ScaffoldSplitter{}, nil
	case RandomSplit:
		return RandomSplitter{Seed: seed}, nil
	case SpecifiedSplit:
		return SpecifiedSplitter{}, nil
	}
	return nil, errors.NewValidationError("splittype", "must be scaffold, random or specified", name)
}

// ScaffoldSplitter groups molecules by Bemis-Murcko scaffold and assigns
// whole groups, largest first, to train until fracTrain is reached.
// Molecules sharing a scaffold never straddle the two sets.
type ScaffoldSplitter struct{}

func (ScaffoldSplitter) Split(t *dataset.Table, fracTrain float64) ([]int, []int, error) {
	groups := map[string][]int{}
	var keys []string
	for i, s := range t.Scaffolds {
		if _, ok := groups[s]; !ok {
			keys = append(keys, s)
		}
		groups[s] = append(groups[s], i)
	}
	slices.SortStableFunc(keys, func(a, b string) int {
		ga, gb := groups[a], groups[b]
		if len(ga) != len(gb) {
			return len(gb) - len(ga)
		}
		return ga[0] - gb[0]
	})

	cutoff := fracTrain * float64(t.Len())
	var train, test []int
	for _, k := range keys {
		g := groups[k]
		if float64(len(train)+len(g)) > cutoff {
			test = append(test, g...)
		} else {
			train = append(train, g...)
		}
	}
	slices.Sort(train)
	slices.Sort(test)
	return train, test, nil
}

// RandomSplitter shuffles rows with a seeded PCG source.
type RandomSplitter struct {
	Seed uint64
}

func (s RandomSplitter) Split(t *dataset.Table, fracTrain float64) ([]int, []int, error) {
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(t.Len())
	n := int(math.Round(fracTrain * float64(t.Len())))
	train := slices.Clone(perm[:n])
	test := slices.Clone(perm[n:])
	slices.Sort(train)
	slices.Sort(test)
	return train, test, nil
}

// SpecifiedSplitter follows the split column recorded at featurization.
type SpecifiedSplitter struct{}

func (SpecifiedSplitter) Split(t *dataset.Table, _ float64) ([]int, []int, error) {
	var train, test []int
	for i, s := range t.Splits {
		switch s {
		case "train":
			train = append(train, i)
		case "test":
			test = append(test, i)
		default:
			return nil, nil, errors.NewValidationError("split-field",
				"specified split needs train or test for every molecule (id "+t.IDs[i]+")", s)
		}
	}
	return train, test, nil
}
