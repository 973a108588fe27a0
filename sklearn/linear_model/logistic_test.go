package linear_model

import (
	"bytes"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

func separable() (*mat.Dense, *mat.Dense) {
	// Class 0: points around (1, 1)
	// Class 1: points around (3, 3)
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	return X, y
}

// TestLogisticRegression_FitPredict_Binary tests binary classification
func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	X, y := separable()
	lr := NewLogisticRegression(WithLRMaxIter(1000), WithLRTol(1e-6))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	predictions, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for i := 0; i < 6; i++ {
		if predictions.At(i, 0) != y.At(i, 0) {
			t.Errorf("Sample %d: expected %v, got %v", i, y.At(i, 0), predictions.At(i, 0))
		}
	}

	XTest := mat.NewDense(2, 2, []float64{
		1.0, 1.0,
		3.0, 3.0,
	})
	testPreds, err := lr.Predict(XTest)
	if err != nil {
		t.Fatalf("Failed to predict on test data: %v", err)
	}
	if testPreds.At(0, 0) != 0 || testPreds.At(1, 0) != 1 {
		t.Errorf("unexpected test predictions %v", mat.Formatted(testPreds))
	}
}

// TestLogisticRegression_PredictProba tests probability predictions
func TestLogisticRegression_PredictProba(t *testing.T) {
	X, y := separable()
	lr := NewLogisticRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	probas, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("Failed to predict probabilities: %v", err)
	}
	rows, cols := probas.Dims()
	if rows != 6 || cols != 2 {
		t.Fatalf("Expected probabilities shape (6, 2), got (%d, %d)", rows, cols)
	}
	for i := 0; i < rows; i++ {
		sum := probas.At(i, 0) + probas.At(i, 1)
		if math.Abs(sum-1.0) > 1e-10 {
			t.Errorf("Row %d: probabilities sum to %v, expected 1.0", i, sum)
		}
	}
	if probas.At(0, 1) >= probas.At(5, 1) {
		t.Errorf("positive probability should grow along the class axis")
	}

	pos, err := model.PositiveProba(lr, X)
	if err != nil {
		t.Fatal(err)
	}
	if pos[5] != probas.At(5, 1) {
		t.Errorf("PositiveProba = %v, want %v", pos[5], probas.At(5, 1))
	}
}

func TestLogisticRegression_Score(t *testing.T) {
	X, y := separable()
	lr := NewLogisticRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if score != 1.0 {
		t.Errorf("Expected perfect score, got %v", score)
	}
}

// TestLogisticRegression_Regularization compares coefficient norms for small and large C
func TestLogisticRegression_Regularization(t *testing.T) {
	X, y := separable()

	strong := NewLogisticRegression(WithLRC(0.01))
	weak := NewLogisticRegression(WithLRC(100), WithLRMaxIter(1000))
	if err := strong.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	captureWarnings(t)
	if err := weak.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	norm := func(c []float64) float64 {
		var s float64
		for _, v := range c {
			s += v * v
		}
		return math.Sqrt(s)
	}
	if norm(strong.Coef) >= norm(weak.Coef) {
		t.Errorf("strong regularization norm %v should be below weak %v", norm(strong.Coef), norm(weak.Coef))
	}
}

func TestLogisticRegression_BalancedClassWeight(t *testing.T) {
	// 1 positive among 8 samples
	X := mat.NewDense(8, 1, []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0, 1.2, 1.4})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 0, 0, 0, 1})

	plain := NewLogisticRegression()
	balanced := NewLogisticRegression(WithLRClassWeight("balanced"))
	if err := plain.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := balanced.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	probe := mat.NewDense(1, 1, []float64{1.4})
	p0, _ := plain.PredictProba(probe)
	p1, _ := balanced.PredictProba(probe)
	if p1.At(0, 1) <= p0.At(0, 1) {
		t.Errorf("balanced weighting should raise minority probability: %v <= %v", p1.At(0, 1), p0.At(0, 1))
	}
}

func TestLogisticRegression_SampleWeightZeroIgnoresRow(t *testing.T) {
	X, y := separable()
	// flip a label but give it no weight
	yNoisy := mat.DenseCopyOf(y)
	yNoisy.Set(0, 0, 1)
	w := []float64{0, 1, 1, 1, 1, 1}

	a := NewLogisticRegression()
	if err := a.FitWeighted(X, yNoisy, w); err != nil {
		t.Fatal(err)
	}
	// The same fit without row 0
	b := NewLogisticRegression()
	if err := b.Fit(X.Slice(1, 6, 0, 2), y.Slice(1, 6, 0, 1)); err != nil {
		t.Fatal(err)
	}
	for j := range a.Coef {
		if math.Abs(a.Coef[j]-b.Coef[j]) > 1e-3 {
			t.Errorf("coef[%d] = %v, want %v", j, a.Coef[j], b.Coef[j])
		}
	}
}

func TestLogisticRegression_RejectsMulticlass(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 2})
	y := mat.NewDense(3, 1, []float64{0, 1, 2})
	lr := NewLogisticRegression()
	err := lr.Fit(X, y)
	var valueErr *errors.ValueError
	if !errors.As(err, &valueErr) {
		t.Fatalf("expected ValueError, got %v", err)
	}
}

func TestLogisticRegression_GetSetParams(t *testing.T) {
	lr := NewLogisticRegression()
	params := lr.GetParams()
	if params["C"] != 1.0 {
		t.Errorf("Expected default C=1.0, got %v", params["C"])
	}
	if params["max_iter"] != 100 {
		t.Errorf("Expected default max_iter=100, got %v", params["max_iter"])
	}

	err := lr.SetParams(map[string]interface{}{
		"C":        0.5,
		"max_iter": 500,
		"penalty":  "none",
		"tol":      1e-6,
	})
	if err != nil {
		t.Fatalf("Failed to set params: %v", err)
	}
	if lr.C != 0.5 || lr.MaxIter != 500 || lr.Penalty != "none" || lr.Tol != 1e-6 {
		t.Errorf("params not applied: %+v", lr.GetParams())
	}
	if err := lr.SetParams(map[string]interface{}{"C": "big"}); err == nil {
		t.Error("expected type error")
	}
	if err := lr.SetParams(map[string]interface{}{"gamma": 1.0}); err == nil {
		t.Error("expected unknown parameter error")
	}
}

func TestLogisticRegression_NotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	_, err := lr.Predict(X)
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("Expected NotFittedError from Predict, got %v", err)
	}
	if _, err := lr.PredictProba(X); err == nil {
		t.Error("Expected error when calling PredictProba on unfitted model")
	}
}

func TestLogisticRegression_FeatureMismatch(t *testing.T) {
	X, y := separable()
	lr := NewLogisticRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	_, c := X.Dims()
	wide := mat.NewDense(1, c+1, nil)
	_, err := lr.PredictProba(wide)
	var de *errors.DimensionError
	if !errors.As(err, &de) {
		t.Fatalf("Expected DimensionError for %d columns, got %v", c+1, err)
	}
	if de.Expected != c || de.Got != c+1 {
		t.Errorf("DimensionError = %+v, want expected %d got %d", de, c, c+1)
	}
}

func TestLogisticRegression_GobRoundTrip(t *testing.T) {
	X, y := separable()
	lr := NewLogisticRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := model.SaveModelToWriter(lr, &buf); err != nil {
		t.Fatal(err)
	}
	loaded := &LogisticRegression{}
	if err := model.LoadModelFromReader(loaded, &buf); err != nil {
		t.Fatal(err)
	}
	want, _ := lr.PredictProba(X)
	got, err := loaded.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(want, got, 1e-12) {
		t.Errorf("loaded model predicts differently")
	}
}

// captureWarnings silences convergence warnings for the duration of a test.
func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	errors.SetZerologWarnFunc(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetZerologWarnFunc(nil) })
	return &got
}
