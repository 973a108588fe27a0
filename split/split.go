package split

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/YuminosukeSato/molpipe/dataset"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/pkg/log"
	"github.com/YuminosukeSato/molpipe/preprocessing"
)

// DefaultFracTrain is the train share for scaffold and random splits.
const DefaultFracTrain = 0.8

// Options mirrors the train-test-split flags.
type Options struct {
	Paths            []string
	FeatureTypes     []string
	SplitType        string
	Mode             string
	WeightPositives  bool
	InputTransforms  []string
	OutputTransforms string
	TrainOut         string
	TestOut          string
	TargetFields     []string
	FracTrain        float64
	Seed             uint64
}

func DefaultOptions() Options {
	return Options{
		SplitType: ScaffoldSplit,
		Mode:      Singletask,
		FracTrain: DefaultFracTrain,
	}
}

// ParseFeatureTypes splits the comma-separated --feature-types value.
func ParseFeatureTypes(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func (o *Options) validate() error {
	if len(o.Paths) == 0 {
		return errors.NewValidationError("paths", "at least one dataset directory is required", o.Paths)
	}
	if len(o.FeatureTypes) == 0 {
		return errors.NewValidationError("feature-types", "at least one feature type is required", o.FeatureTypes)
	}
	if o.Mode != Singletask && o.Mode != Multitask {
		return errors.NewValidationError("mode", "must be singletask or multitask", o.Mode)
	}
	if o.FracTrain <= 0 || o.FracTrain >= 1 {
		return errors.NewValidationError("frac-train", "must be in (0, 1)", o.FracTrain)
	}
	if o.TrainOut == "" || o.TestOut == "" {
		return errors.NewValidationError("train-out", "train-out and test-out are required", o.TrainOut)
	}
	return nil
}

// TrainTestSplit runs the stage and writes both bundles.
func TrainTestSplit(opts Options) (train, test *Bundle, err error) {
	defer errors.Recover(&err, "TrainTestSplit")
	if err := opts.validate(); err != nil {
		return nil, nil, err
	}
	splitter, err := NewSplitter(opts.SplitType, opts.Seed)
	if err != nil {
		return nil, nil, err
	}
	inputNames, err := preprocessing.ParseInputTransforms(opts.InputTransforms)
	if err != nil {
		return nil, nil, err
	}
	outputNames, err := preprocessing.ParseOutputTransforms(opts.OutputTransforms)
	if err != nil {
		return nil, nil, err
	}
	logger := log.GetLoggerWithName("split").With(log.SplitKey, opts.SplitType)

	table, err := dataset.Load(opts.Paths, opts.FeatureTypes, opts.TargetFields)
	if err != nil {
		return nil, nil, err
	}
	trainIdx, testIdx, err := splitter.Split(table, opts.FracTrain)
	if err != nil {
		return nil, nil, err
	}
	if len(trainIdx) == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "train split is empty")
	}
	if len(testIdx) == 0 {
		logger.Warn("test split is empty")
	}

	rawTrain := gather(table, trainIdx)
	rawTest := gather(table, testIdx)
	if opts.WeightPositives {
		for _, b := range []*block{rawTrain, rawTest} {
			if err := b.weightPositives(table.Tasks); err != nil {
				return nil, nil, err
			}
		}
	}

	tf := Transforms{Input: inputNames, Output: outputNames}
	tTrain, tTest := rawTrain.clone(), rawTest.clone()
	if slices.Contains(inputNames, preprocessing.NormalizeAndTruncate) {
		tf.InputScaler = preprocessing.NewTruncatingScaler(preprocessing.TruncationBound)
		if err := tf.InputScaler.Fit(rawTrain.X.Dense()); err != nil {
			return nil, nil, errors.Wrap(err, "fit input transform")
		}
		for _, b := range []*block{tTrain, tTest} {
			if b.X.Rows == 0 {
				continue
			}
			x, err := tf.InputScaler.Transform(b.X.Dense())
			if err != nil {
				return nil, nil, err
			}
			b.X = MatrixFrom(x)
		}
	}
	if len(outputNames) > 0 {
		tf.OutputChain = preprocessing.NewOutputChain(outputNames)
		y, err := tf.OutputChain.FitTransform(rawTrain.Y.Dense())
		if err != nil {
			return nil, nil, errors.Wrap(err, "fit output transforms")
		}
		tTrain.Y = MatrixFrom(y)
		if tTest.Y.Rows > 0 {
			if slices.Contains(outputNames, preprocessing.LogTransform) {
				if err := checkPositive(rawTest.Y); err != nil {
					return nil, nil, err
				}
			}
			y, err := tf.OutputChain.Transform(rawTest.Y.Dense())
			if err != nil {
				return nil, nil, err
			}
			tTest.Y = MatrixFrom(y)
		}
	}

	now := time.Now().UTC()
	train = &Bundle{
		Split: "train", Sources: opts.Paths, CreatedAt: now,
		Raw:         rawTrain.taskSplit(opts.Mode, table),
		Transformed: tTrain.taskSplit(opts.Mode, table),
		Transforms:  tf,
	}
	test = &Bundle{
		Split: "test", Sources: opts.Paths, CreatedAt: now,
		Raw:         rawTest.taskSplit(opts.Mode, table),
		Transformed: tTest.taskSplit(opts.Mode, table),
		Transforms:  tf,
	}
	if err := train.Save(opts.TrainOut); err != nil {
		return nil, nil, err
	}
	if err := test.Save(opts.TestOut); err != nil {
		return nil, nil, err
	}
	logger.Info("train/test split written",
		"train", len(trainIdx),
		"test", len(testIdx),
		log.FeaturesKey, len(table.FeatureNames),
		log.TargetsKey, len(table.Tasks),
	)
	return train, test, nil
}

func checkPositive(y Matrix) error {
	for _, v := range y.Data {
		if v <= 0 {
			return errors.NewValidationError("log", "targets must be positive", v)
		}
	}
	return nil
}

// block is the all-task view of one split before it is cut per mode.
type block struct {
	idx    []int
	IDs    []string
	SMILES []string
	X      Matrix
	Y      Matrix
	W      Matrix
}

func gather(t *dataset.Table, idx []int) *block {
	d, nt := len(t.FeatureNames), len(t.Tasks)
	b := &block{idx: idx, X: NewMatrix(len(idx), d), Y: NewMatrix(len(idx), nt), W: NewMatrix(len(idx), nt)}
	for r, i := range idx {
		b.IDs = append(b.IDs, t.IDs[i])
		b.SMILES = append(b.SMILES, t.SMILES[i])
		copy(b.X.Row(r), t.Row(i))
		for j := 0; j < nt; j++ {
			y := t.Target(i, j)
			b.Y.Set(r, j, y)
			if !math.IsNaN(y) {
				b.W.Set(r, j, 1)
			}
		}
	}
	return b
}

func (b *block) clone() *block {
	c := *b
	c.X = Matrix{Rows: b.X.Rows, Cols: b.X.Cols, Data: slices.Clone(b.X.Data)}
	c.Y = Matrix{Rows: b.Y.Rows, Cols: b.Y.Cols, Data: slices.Clone(b.Y.Data)}
	return &c
}

// weightPositives gives positive rows of each task the weight
// n_negative/n_positive so both classes carry equal total weight.
func (b *block) weightPositives(tasks []string) error {
	for j := range tasks {
		pos, neg := 0, 0
		for i := 0; i < b.Y.Rows; i++ {
			switch y := b.Y.At(i, j); {
			case math.IsNaN(y):
			case y == 1:
				pos++
			case y == 0:
				neg++
			default:
				return errors.NewValidationError("weight-positives", "requires binary labels for task "+tasks[j], y)
			}
		}
		if pos == 0 || neg == 0 {
			continue
		}
		w := float64(neg) / float64(pos)
		for i := 0; i < b.Y.Rows; i++ {
			if b.Y.At(i, j) == 1 {
				b.W.Set(i, j, w)
			}
		}
	}
	return nil
}

// taskSplit cuts the block per mode. Singletask keeps, for each task, only
// the rows labelled for it.
func (b *block) taskSplit(mode string, t *dataset.Table) TaskSplit {
	ts := TaskSplit{Mode: mode, Tasks: slices.Clone(t.Tasks), Data: map[string]*Data{}}
	if mode == Multitask {
		ts.Data[MultitaskKey] = &Data{
			IDs: b.IDs, SMILES: b.SMILES, FeatureNames: t.FeatureNames,
			X: b.X, Y: b.Y, W: b.W,
		}
		return ts
	}
	for j, task := range t.Tasks {
		var rows []int
		for i := 0; i < b.Y.Rows; i++ {
			if !math.IsNaN(b.Y.At(i, j)) {
				rows = append(rows, i)
			}
		}
		d := &Data{
			FeatureNames: t.FeatureNames,
			X:            NewMatrix(len(rows), b.X.Cols),
			Y:            NewMatrix(len(rows), 1),
			W:            NewMatrix(len(rows), 1),
		}
		for r, i := range rows {
			d.IDs = append(d.IDs, b.IDs[i])
			d.SMILES = append(d.SMILES, b.SMILES[i])
			copy(d.X.Row(r), b.X.Row(i))
			d.Y.Set(r, 0, b.Y.At(i, j))
			d.W.Set(r, 0, b.W.At(i, j))
		}
		ts.Data[task] = d
	}
	return ts
}
