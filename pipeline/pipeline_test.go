package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/molpipe/evaluate"
	"github.com/YuminosukeSato/molpipe/models"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/split"
)

const solubility = `smiles,logs
CCO,1.10
CCCO,0.62
CCCCO,0.00
CCCCCO,-0.60
CCCCCCO,-1.24
c1ccccc1,-1.64
c1ccccc1C,-2.21
c1ccccc1CC,-2.77
c1ccccc1O,0.00
c1ccccc1N,-0.41
C1CCCCC1,-3.10
C1CCCCC1O,-0.44
CC(=O)O,1.22
CCC(=O)O,0.58
CCCC(=O)O,0.00
c1ccncc1,1.10
c1ccc2ccccc2c1,-3.60
CCOCC,-0.09
CCN,1.00
CCCN,0.68
`

func regressionOptions(t *testing.T) Options {
	t.Helper()
	src := filepath.Join(t.TempDir(), "solubility.csv")
	require.NoError(t, os.WriteFile(src, []byte(solubility), 0o644))

	opts := DefaultOptions()
	opts.Featurize.Name = "sol"
	opts.Featurize.Out = t.TempDir()
	opts.Featurize.InputFiles = []string{src}
	opts.Featurize.Fields = []string{"smiles", "logs"}
	opts.Featurize.FieldTypes = []string{"string", "float"}
	opts.Featurize.TargetFields = []string{"logs"}
	opts.Split.FeatureTypes = []string{"descriptors"}
	opts.Split.SplitType = split.RandomSplit
	opts.Split.Seed = 11
	opts.Split.InputTransforms = []string{"normalize-and-truncate"}
	opts.Split.OutputTransforms = "normalize"
	opts.Model = models.Ridge
	opts.TaskType = models.Regression
	return opts
}

func TestArtifactPaths(t *testing.T) {
	p, err := ArtifactPaths("/data", "tox", models.MultitaskDNN)
	require.NoError(t, err)
	assert.Equal(t, Paths{
		DataDir:    "/data/tox",
		Train:      "/data/tox/tox-train.gob.gz",
		Test:       "/data/tox/tox-test.gob.gz",
		Model:      "/data/tox/multitask_deep_network.json",
		TrainCSV:   "/data/tox/tox-train.csv",
		TrainStats: "/data/tox/tox-train-stats.txt",
		TestCSV:    "/data/tox/tox-test.csv",
		TestStats:  "/data/tox/tox-test-stats.txt",
	}, p)

	p, err = ArtifactPaths("/data", "tox", models.CNN3D)
	require.NoError(t, err)
	assert.Equal(t, "/data/tox/3D_cnn.cnn.json", p.Model)

	_, err = ArtifactPaths("/data", "tox", "svm")
	assert.Error(t, err)
}

func TestRunRegressionEndToEnd(t *testing.T) {
	opts := regressionOptions(t)
	var stdout bytes.Buffer
	opts.Stdout = &stdout

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)

	for _, p := range []string{res.Paths.Train, res.Paths.Test, res.Paths.Model,
		res.Paths.TrainCSV, res.Paths.TrainStats, res.Paths.TestCSV, res.Paths.TestStats} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}
	assert.Equal(t, []string{evaluate.R2, evaluate.RMS}, res.Train.Metrics)
	assert.Equal(t, 16, len(res.Train.IDs))
	assert.Equal(t, 4, len(res.Test.IDs))
	assert.Greater(t, res.Train.Tasks[0].Scores[evaluate.R2], 0.0)

	out := stdout.String()
	for _, stage := range []string{"featurize", "train-test-split", "fit", "eval train", "eval test"} {
		assert.Contains(t, out, "==> "+stage)
	}
	assert.Contains(t, out, "split: train")
	assert.Contains(t, out, "split: test")

	csv, err := os.ReadFile(res.Paths.TestCSV)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csv), "id,smiles,logs_true,logs_pred\n"))
}

func TestRunSkipsStages(t *testing.T) {
	opts := regressionOptions(t)
	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	var stdout bytes.Buffer
	opts.Stdout = &stdout
	opts.SkipFeaturization = true
	opts.SkipTrainTestSplit = true
	opts.Model = models.RFRegressor
	opts.Params.NEstimators = 10
	opts.Featurize.InputFiles = nil
	opts.Registry = filepath.Join(t.TempDir(), "runs.db")

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "==> featurize (skipped)")
	assert.Contains(t, stdout.String(), "==> train-test-split (skipped)")
	assert.Equal(t, filepath.Join(res.Paths.DataDir, "rf_regressor.gob.gz"), res.Paths.Model)
	_, err = os.Stat(opts.Registry)
	assert.NoError(t, err)

	opts.SkipFit = true
	opts.Model = models.Lasso
	_, err = Run(context.Background(), opts)
	assert.Error(t, err, "lasso artifact was never fitted")
}

func TestRunSkipFeaturizationHonoursTargetFields(t *testing.T) {
	src := filepath.Join(t.TempDir(), "two.csv")
	var b strings.Builder
	b.WriteString("smiles,logs,logp\n")
	for _, line := range strings.Split(strings.TrimSpace(solubility), "\n")[1:] {
		b.WriteString(line + ",0.5\n")
	}
	require.NoError(t, os.WriteFile(src, []byte(b.String()), 0o644))

	opts := regressionOptions(t)
	opts.Featurize.InputFiles = []string{src}
	opts.Featurize.Fields = []string{"smiles", "logs", "logp"}
	opts.Featurize.FieldTypes = []string{"string", "float", "float"}
	opts.Featurize.TargetFields = []string{"logs", "logp"}
	opts.Split.OutputTransforms = ""
	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	opts.SkipFeaturization = true
	opts.Featurize.InputFiles = nil
	opts.Featurize.TargetFields = []string{"logs"}
	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	for _, r := range []*evaluate.Report{res.Train, res.Test} {
		require.Len(t, r.Tasks, 1)
		assert.Equal(t, "logs", r.Tasks[0].Task)
	}

	opts.Featurize.TargetFields = nil
	_, err = Run(context.Background(), opts)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve), "skipping featurization still needs target fields, got %v", err)
}

func TestRunValidatesBeforeWork(t *testing.T) {
	opts := regressionOptions(t)
	opts.Model = models.Logistic

	_, err := Run(context.Background(), opts)
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	_, statErr := os.Stat(filepath.Join(opts.Featurize.Out, opts.Featurize.Name))
	assert.True(t, os.IsNotExist(statErr))

	opts = regressionOptions(t)
	opts.Featurize.Name = ""
	_, err = Run(context.Background(), opts)
	assert.Error(t, err)
}
