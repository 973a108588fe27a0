package tree

import (
	"bytes"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// bitData is a toy fingerprint block: bit 0 marks actives, bits 1 and 2
// are noise.
func bitData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 3, []float64{
		0, 0, 0,
		0, 1, 1,
		0, 0, 1,
		0, 1, 0,
		1, 0, 0,
		1, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func TestDecisionTreeClassifier_Criteria(t *testing.T) {
	X, y := bitData()
	for _, criterion := range []string{"gini", "entropy"} {
		t.Run(criterion, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(WithCriterion(criterion))
			if err := dt.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			if dt.GetDepth() != 1 || dt.GetNLeaves() != 2 {
				t.Errorf("depth %d leaves %d, want a single split", dt.GetDepth(), dt.GetNLeaves())
			}
			score, err := dt.Score(X, y)
			if err != nil || score != 1 {
				t.Errorf("Score = %v, %v", score, err)
			}

			imp := dt.GetFeatureImportances()
			if imp[0] != 1 || imp[1] != 0 || imp[2] != 0 {
				t.Errorf("importances = %v, want all weight on bit 0", imp)
			}
		})
	}
}

func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	// x=2 is ambiguous: one active and two inactives
	X := mat.NewDense(7, 1, []float64{0, 0, 2, 2, 2, 5, 5})
	y := mat.NewDense(7, 1, []float64{0, 0, 1, 0, 0, 1, 1})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	proba, err := dt.PredictProba(mat.NewDense(3, 1, []float64{0, 2, 5}))
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float64{{1, 0}, {2.0 / 3, 1.0 / 3}, {0, 1}}
	for i, row := range want {
		for j, w := range row {
			if math.Abs(proba.At(i, j)-w) > 1e-12 {
				t.Errorf("P[%d][%d] = %v, want %v", i, j, proba.At(i, j), w)
			}
		}
	}
	pred, _ := dt.Predict(mat.NewDense(1, 1, []float64{2}))
	if pred.At(0, 0) != 0 {
		t.Errorf("majority class at x=2 should be 0, got %v", pred.At(0, 0))
	}
}

func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 1, []float64{0, 1, 2, 10, 11, 12, 20, 21, 22})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if dt.NClasses != 3 {
		t.Fatalf("NClasses = %d", dt.NClasses)
	}
	pred, err := dt.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(pred, y) {
		t.Errorf("predictions = %v", mat.Col(nil, 0, pred))
	}
	proba, _ := dt.PredictProba(X)
	if _, c := proba.Dims(); c != 3 {
		t.Errorf("proba columns = %d, want 3", c)
	}
}

func TestDecisionTreeClassifier_GrowthLimits(t *testing.T) {
	// alternating labels need a leaf per sample when unconstrained
	X := mat.NewDense(16, 1, nil)
	y := mat.NewDense(16, 1, nil)
	for i := 0; i < 16; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i%2))
	}

	tests := []struct {
		name      string
		opts      []Option
		maxDepth  int
		maxLeaves int
	}{
		{"unlimited", nil, 16, 16},
		{"max depth", []Option{WithMaxDepth(2)}, 2, 4},
		{"min samples", []Option{WithMinSamplesSplit(8), WithMinSamplesLeaf(4)}, 16, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(tt.opts...)
			if err := dt.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			if dt.GetDepth() > tt.maxDepth || dt.GetNLeaves() > tt.maxLeaves {
				t.Errorf("depth %d leaves %d", dt.GetDepth(), dt.GetNLeaves())
			}
		})
	}
}

func TestDecisionTreeClassifier_Params(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	p := dt.GetParams()
	if p["criterion"] != "gini" || p["min_samples_split"] != 2 {
		t.Errorf("defaults = %v", p)
	}
	if err := dt.SetParams(map[string]interface{}{"criterion": "entropy", "max_depth": 4}); err != nil {
		t.Fatal(err)
	}
	if dt.Criterion != "entropy" || dt.MaxDepth != 4 {
		t.Errorf("SetParams not applied: %+v", dt.Params)
	}

	var ve *errors.ValidationError
	if err := dt.SetParams(map[string]interface{}{"max_depth": "deep"}); !errors.As(err, &ve) {
		t.Errorf("wrong type should be a ValidationError, got %v", err)
	}
	if err := dt.SetParams(map[string]interface{}{"n_bits": 1024}); !errors.As(err, &ve) {
		t.Errorf("unknown key should be a ValidationError, got %v", err)
	}
}

func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	X, _ := bitData()
	dt := NewDecisionTreeClassifier()
	var nf *errors.NotFittedError
	if _, err := dt.Predict(X); !errors.As(err, &nf) {
		t.Errorf("Predict: %v", err)
	}
	if _, err := dt.PredictProba(X); !errors.As(err, &nf) {
		t.Errorf("PredictProba: %v", err)
	}
}

func TestDecisionTreeClassifier_SampleWeightDropsRows(t *testing.T) {
	// The last row contradicts its neighbour but carries no weight.
	X := mat.NewDense(5, 1, []float64{0, 1, 2, 3, 3})
	y := mat.NewDense(5, 1, []float64{0, 0, 1, 1, 0})

	dt := NewDecisionTreeClassifier()
	if err := dt.FitWeighted(X, y, []float64{1, 1, 1, 1, 0}); err != nil {
		t.Fatal(err)
	}
	if dt.Nodes[0].NSamples != 4 {
		t.Errorf("root NSamples = %d, want 4", dt.Nodes[0].NSamples)
	}
	proba, err := dt.PredictProba(mat.NewDense(1, 1, []float64{3}))
	if err != nil {
		t.Fatal(err)
	}
	if proba.At(0, 1) != 1 {
		t.Errorf("P(y=1|x=3) = %v, want 1", proba.At(0, 1))
	}

	if err := dt.FitWeighted(X, y, []float64{1, 1, -1, 1, 1}); err == nil {
		t.Error("expected error for negative weight")
	}
}

func TestDecisionTreeRegressor_FitPredict(t *testing.T) {
	// Step function: 1 below 5, 10 above.
	X := mat.NewDense(10, 1, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		if i < 5 {
			y.Set(i, 0, 1)
		} else {
			y.Set(i, 0, 10)
		}
	}

	dt := NewDecisionTreeRegressor(WithMaxDepth(1))
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if dt.Nodes[0].Threshold != 4.5 {
		t.Errorf("root threshold = %v, want 4.5", dt.Nodes[0].Threshold)
	}
	pred, err := dt.Predict(mat.NewDense(2, 1, []float64{2, 8}))
	if err != nil {
		t.Fatal(err)
	}
	if pred.At(0, 0) != 1 || pred.At(1, 0) != 10 {
		t.Errorf("predictions = %v, want [1 10]", mat.Col(nil, 0, pred))
	}
	score, err := dt.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(score-1) > 1e-12 {
		t.Errorf("R2 = %v, want 1", score)
	}
}

func TestDecisionTreeRegressor_Validation(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})

	dt := NewDecisionTreeRegressor(WithCriterion("gini"))
	var ve *errors.ValidationError
	if err := dt.Fit(X, y); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for classifier criterion, got %v", err)
	}

	dt = NewDecisionTreeRegressor()
	if _, err := dt.Predict(X); err == nil {
		t.Error("expected NotFittedError")
	}
	if err := dt.Fit(X, mat.NewDense(3, 1, nil)); err == nil {
		t.Error("expected DimensionError")
	}
}

func TestDecisionTreeClassifier_GobRoundTrip(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{0, 0, 0, 1, 1, 0, 2, 2, 2, 3, 3, 2})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	dt := NewDecisionTreeClassifier()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := model.SaveModelToWriter(dt, &buf); err != nil {
		t.Fatal(err)
	}
	loaded := &DecisionTreeClassifier{}
	if err := model.LoadModelFromReader(loaded, &buf); err != nil {
		t.Fatal(err)
	}
	want, _ := dt.PredictProba(X)
	got, err := loaded.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(want, got) {
		t.Error("loaded tree predicts differently")
	}
}
