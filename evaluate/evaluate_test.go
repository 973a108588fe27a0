package evaluate

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/molpipe/models"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/preprocessing"
	"github.com/YuminosukeSato/molpipe/runstore"
	"github.com/YuminosukeSato/molpipe/split"
)

type fixture struct {
	ids []string
	X   [][]float64
	Y   [][]float64 // one task, raw units
}

func linearFixture(n int) fixture {
	var f fixture
	for i := 0; i < n; i++ {
		x := float64(i)/float64(n)*4 - 2
		f.ids = append(f.ids, "m"+strconv.Itoa(i))
		f.X = append(f.X, []float64{x, math.Sin(float64(i))})
		f.Y = append(f.Y, []float64{10 + 3*x})
	}
	return f
}

func classFixture(n int) fixture {
	f := linearFixture(n)
	for i := range f.Y {
		f.Y[i][0] = 0
		if f.X[i][0] > 0 {
			f.Y[i][0] = 1
		}
	}
	return f
}

func toMatrix(rows [][]float64) split.Matrix {
	m := split.NewMatrix(len(rows), len(rows[0]))
	for i, r := range rows {
		copy(m.Row(i), r)
	}
	return m
}

func ones(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = []float64{1}
	}
	return out
}

// writeBundle saves a singletask bundle for task "y", applying the named
// output transforms to the transformed copy.
func writeBundle(t *testing.T, f fixture, outputs []string) string {
	t.Helper()
	raw := &split.Data{IDs: f.ids, SMILES: f.ids, FeatureNames: []string{"x", "noise"},
		X: toMatrix(f.X), Y: toMatrix(f.Y), W: toMatrix(ones(len(f.ids)))}
	tr := *raw
	tf := split.Transforms{Output: outputs}
	if len(outputs) > 0 {
		tf.OutputChain = preprocessing.NewOutputChain(outputs)
		y, err := tf.OutputChain.FitTransform(raw.Y.Dense())
		require.NoError(t, err)
		tr.Y = split.MatrixFrom(y)
	}
	b := &split.Bundle{
		Split:       "test",
		Raw:         split.TaskSplit{Mode: split.Singletask, Tasks: []string{"y"}, Data: map[string]*split.Data{"y": raw}},
		Transformed: split.TaskSplit{Mode: split.Singletask, Tasks: []string{"y"}, Data: map[string]*split.Data{"y": &tr}},
		Transforms:  tf,
	}
	path := filepath.Join(t.TempDir(), "data-test.gob.gz")
	require.NoError(t, b.Save(path))
	return path
}

func fit(t *testing.T, model, taskType, data string) string {
	t.Helper()
	b, err := models.BackendOf(model)
	require.NoError(t, err)
	ext, err := models.Extension(b)
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), model+"."+ext)
	_, err = models.Fit(models.FitOptions{Model: model, TaskType: taskType, SavedData: data, SavedOut: out, Params: models.DefaultParams()})
	require.NoError(t, err)
	return out
}

func TestEvaluateRegressionInvertsOutputTransforms(t *testing.T) {
	f := linearFixture(40)
	data := writeBundle(t, f, []string{preprocessing.NormalizeTransform})
	saved := fit(t, models.Linear, models.Regression, data)

	dir := t.TempDir()
	var stdout bytes.Buffer
	opts := Options{
		SavedModel: saved, SavedData: data,
		CSVOut:   filepath.Join(dir, "out.csv"),
		StatsOut: filepath.Join(dir, "stats.txt"),
		PlotOut:  filepath.Join(dir, "scatter.svg"),
		Registry: filepath.Join(dir, "runs.db"),
		Stdout:   &stdout,
	}
	opts.EnableDefaults(models.Regression)
	r, err := Evaluate(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{R2, RMS}, r.Metrics)
	require.Len(t, r.Tasks, 1)
	assert.InDelta(t, 1.0, r.Tasks[0].Scores[R2], 1e-6)
	assert.InDelta(t, 0.0, r.Tasks[0].Scores[RMS], 1e-6)
	for i := range f.ids {
		assert.InDelta(t, f.Y[i][0], r.Pred[0][i], 1e-6)
	}

	stats, err := os.ReadFile(opts.StatsOut)
	require.NoError(t, err)
	assert.Equal(t, string(stats), stdout.String())
	assert.Contains(t, string(stats), "mean")
	assert.Contains(t, string(stats), "1.0000")

	fh, err := os.Open(opts.CSVOut)
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "smiles", "y_true", "y_pred"}, rows[0])
	assert.Len(t, rows, 41)

	_, err = os.Stat(opts.PlotOut)
	assert.NoError(t, err)

	store, err := runstore.Open(context.Background(), opts.Registry)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Runs(context.Background(), models.Linear)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Scores, 2)
	assert.Equal(t, "test", runs[0].Split)
}

func TestEvaluateClassification(t *testing.T) {
	f := classFixture(60)
	data := writeBundle(t, f, nil)
	saved := fit(t, models.Logistic, models.Classification, data)

	opts := Options{SavedModel: saved, SavedData: data, ModelType: "sklearn",
		TaskType: models.Classification, PlotOut: filepath.Join(t.TempDir(), "roc.svg")}
	opts.EnableDefaults(models.Classification)
	r, err := Evaluate(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, []string{AUC, Accuracy, Recall, MCC}, r.Metrics)
	s := r.Tasks[0].Scores
	assert.Greater(t, s[AUC], 0.95)
	assert.Greater(t, s[Accuracy], 0.9)
	assert.True(t, s[MCC] >= -1 && s[MCC] <= 1)
	assert.Equal(t, s[AUC], r.Mean[AUC])
	for _, p := range r.Pred[0] {
		assert.True(t, p >= 0 && p <= 1)
	}
	_, err = os.Stat(opts.PlotOut)
	assert.NoError(t, err)
}

func TestEvaluateRejectsMismatches(t *testing.T) {
	f := classFixture(30)
	data := writeBundle(t, f, nil)
	saved := fit(t, models.RFClassifier, models.Classification, data)

	tests := []struct {
		name string
		opts Options
	}{
		{"regression metric", Options{SavedModel: saved, SavedData: data, ComputeR2: true}},
		{"task type", Options{SavedModel: saved, SavedData: data, TaskType: models.Regression}},
		{"backend", Options{SavedModel: saved, SavedData: data, ModelType: "keras-graph"}},
		{"unknown backend", Options{SavedModel: saved, SavedData: data, ModelType: "xgboost"}},
		{"missing model", Options{SavedData: data}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(context.Background(), tt.opts)
			assert.Error(t, err)
		})
	}
}

func TestScoreUndefined(t *testing.T) {
	v, err := score(AUC, []float64{1, 1, 1}, []float64{0.2, 0.7, 0.9})
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	v, err = score(AUC, []float64{0, 1, 0, 1}, []float64{0.5, 0.5, 0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)

	v, err = score(R2, []float64{2, 2, 2}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))

	v, err = score(RMS, nil, nil)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))

	_, err = score("f1", []float64{1}, []float64{1})
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestMeanSkipsUndefined(t *testing.T) {
	assert.Equal(t, 0.5, mean([]float64{0.25, math.NaN(), 0.75}))
	assert.True(t, math.IsNaN(mean([]float64{math.NaN()})))
}

func TestWriteStatsNoMetrics(t *testing.T) {
	r := &Report{Model: "ridge", Backend: "estimator", Split: "train", IDs: []string{"a"}}
	var buf bytes.Buffer
	require.NoError(t, r.WriteStats(&buf))
	assert.True(t, strings.HasSuffix(buf.String(), "no metrics requested\n"))
}
