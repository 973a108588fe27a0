package linear

import (
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// denseData は一様乱数の説明変数と y = 1 + Σ 0.5(j+1) x_j + ノイズ を返す
func denseData(rows, cols int) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(42, 42))
	X := mat.NewDense(rows, cols, nil)
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		v := 1.0
		for j := 0; j < cols; j++ {
			x := rng.Float64()*2 - 1
			X.Set(i, j, x)
			v += 0.5 * float64(j+1) * x
		}
		y.Set(i, 0, v+(rng.Float64()-0.5)*0.1)
	}
	return X, y
}

// exactData は y = 1 + 2*x0 - 3*x1 + 0*x2 を満たすノイズなしデータ
func exactData() (*mat.Dense, *mat.Dense) {
	X, _ := denseData(60, 3)
	y := mat.NewDense(60, 1, nil)
	for i := 0; i < 60; i++ {
		y.Set(i, 0, 1+2*X.At(i, 0)-3*X.At(i, 1))
	}
	return X, y
}

func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var got []error
	errors.SetZerologWarnFunc(func(w error) { got = append(got, w) })
	t.Cleanup(func() { errors.SetZerologWarnFunc(nil) })
	return &got
}

func TestLinearRegressionRecoversCoefficients(t *testing.T) {
	X, y := exactData()
	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	want := []float64{2, -3, 0}
	if !floats.EqualApprox(lr.Weights(), want, 1e-8) {
		t.Errorf("Weights() = %v, want %v", lr.Weights(), want)
	}
	if math.Abs(lr.Intercept-1) > 1e-8 {
		t.Errorf("Intercept = %v, want 1", lr.Intercept)
	}
	score, err := lr.Score(X, y)
	if err != nil || math.Abs(score-1) > 1e-10 {
		t.Errorf("Score() = %v, %v, want 1", score, err)
	}
}

func TestLinearRegressionRankDeficient(t *testing.T) {
	X, y := exactData()
	// x0 を複製した列を追加するとランク落ちする
	dup := mat.NewDense(60, 4, nil)
	for i := 0; i < 60; i++ {
		dup.Set(i, 0, X.At(i, 0))
		dup.Set(i, 1, X.At(i, 0))
		dup.Set(i, 2, X.At(i, 1))
		dup.Set(i, 3, X.At(i, 2))
	}

	lr := NewLinearRegression()
	if err := lr.Fit(dup, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if lr.Rank != 3 {
		t.Errorf("Rank = %d, want 3", lr.Rank)
	}
	// 最小ノルム解は係数を等分する
	if math.Abs(lr.Coef[0]-1) > 1e-8 || math.Abs(lr.Coef[1]-1) > 1e-8 {
		t.Errorf("Coef = %v, want duplicated columns to share 2 equally", lr.Coef)
	}
}

func TestLinearRegressionSampleWeights(t *testing.T) {
	X, y := exactData()
	w := make([]float64, 60)
	for i := range w {
		w[i] = 1
	}
	// 外れ値を入れて重み0にする
	for _, i := range []int{3, 17, 42} {
		y.Set(i, 0, 1000)
		w[i] = 0
	}

	lr := NewLinearRegression()
	if err := lr.FitWeighted(X, y, w); err != nil {
		t.Fatalf("FitWeighted() error = %v", err)
	}
	if !floats.EqualApprox(lr.Weights(), []float64{2, -3, 0}, 1e-8) {
		t.Errorf("zero-weight outliers should not move the fit, got %v", lr.Weights())
	}
}

func TestLinearModelsInputValidation(t *testing.T) {
	X, y := exactData()
	tests := []struct {
		name string
		fit  func() error
	}{
		{"row mismatch", func() error { return NewRidge().Fit(X, mat.NewDense(10, 1, nil)) }},
		{"multi-column y", func() error { return NewLasso().Fit(X, mat.NewDense(60, 2, nil)) }},
		{"weight length", func() error { return NewLinearRegression().FitWeighted(X, y, []float64{1}) }},
		{"negative weight", func() error {
			w := make([]float64, 60)
			w[0] = -1
			return NewRidge().FitWeighted(X, y, w)
		}},
		{"negative alpha", func() error { return NewRidge(WithAlpha(-1)).Fit(X, y) }},
		{"bad l1 ratio", func() error { return NewElasticNet(WithL1Ratio(2)).Fit(X, y) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fit(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPredictNotFitted(t *testing.T) {
	_, err := NewLassoLars().Predict(mat.NewDense(1, 3, nil))
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFittedError, got %v", err)
	}
}

func TestRidgeShrinks(t *testing.T) {
	X, y := exactData()
	ols := NewRidge(WithAlpha(0))
	if err := ols.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(ols.Weights(), []float64{2, -3, 0}, 1e-8) {
		t.Errorf("alpha=0 should reduce to least squares, got %v", ols.Weights())
	}

	strong := NewRidge(WithAlpha(100))
	if err := strong.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if floats.Norm(strong.Weights(), 2) >= floats.Norm(ols.Weights(), 2) {
		t.Errorf("ridge should shrink coefficients: %v vs %v", strong.Weights(), ols.Weights())
	}
}

func TestLassoLargeAlphaGivesInterceptOnly(t *testing.T) {
	X, y := exactData()
	lasso := NewLasso(WithAlpha(100))
	if err := lasso.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	for j, c := range lasso.Coef {
		if c != 0 {
			t.Errorf("Coef[%d] = %v, want 0", j, c)
		}
	}
	mean := floats.Sum(mat.Col(nil, 0, y)) / 60
	if math.Abs(lasso.Intercept-mean) > 1e-10 {
		t.Errorf("Intercept = %v, want mean(y) = %v", lasso.Intercept, mean)
	}
}

func TestLassoAndLassoLarsAgree(t *testing.T) {
	X, y := denseData(80, 6)

	for _, alpha := range []float64{0.5, 0.1, 0.01} {
		cd := NewLasso(WithAlpha(alpha), WithTol(1e-12), WithMaxIter(100000))
		if err := cd.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		lars := NewLassoLars(WithAlpha(alpha))
		if err := lars.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		if !floats.EqualApprox(cd.Coef, lars.Coef, 1e-6) {
			t.Errorf("alpha=%v: coordinate descent %v, LARS %v", alpha, cd.Coef, lars.Coef)
		}
		if math.Abs(cd.Intercept-lars.Intercept) > 1e-6 {
			t.Errorf("alpha=%v: intercepts differ %v vs %v", alpha, cd.Intercept, lars.Intercept)
		}
	}
}

func TestLassoLarsDuplicateColumns(t *testing.T) {
	X, y := exactData()
	dup := mat.NewDense(60, 4, nil)
	for i := 0; i < 60; i++ {
		dup.Set(i, 0, X.At(i, 1))
		dup.Set(i, 1, X.At(i, 0))
		dup.Set(i, 2, X.At(i, 1))
		dup.Set(i, 3, X.At(i, 2))
	}
	lars := NewLassoLars(WithAlpha(0.01))
	if err := lars.Fit(dup, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	score, err := lars.Score(dup, y)
	if err != nil || score < 0.99 {
		t.Errorf("Score() = %v, %v", score, err)
	}
}

func TestElasticNetConvergenceWarning(t *testing.T) {
	warnings := captureWarnings(t)
	X, y := exactData()

	en := NewElasticNet(WithAlpha(0.001), WithMaxIter(1), WithTol(1e-12))
	if err := en.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if len(*warnings) != 1 {
		t.Fatalf("expected one warning, got %d", len(*warnings))
	}
	var cw *errors.ConvergenceWarning
	if !errors.As((*warnings)[0], &cw) || cw.Algorithm != "ElasticNet" {
		t.Errorf("expected ElasticNet ConvergenceWarning, got %v", (*warnings)[0])
	}
}

func TestElasticNetPositive(t *testing.T) {
	X, y := exactData()
	en := NewElasticNet(WithAlpha(0.01), WithPositive(true))
	if err := en.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	for j, c := range en.Coef {
		if c < 0 {
			t.Errorf("Coef[%d] = %v, want >= 0", j, c)
		}
	}
}

func TestLinearModelsPersist(t *testing.T) {
	X, y := exactData()
	dir := t.TempDir()

	estimators := map[string]model.Estimator{
		"ols":   NewLinearRegression(),
		"ridge": NewRidge(WithAlpha(0.5)),
		"lasso": NewLasso(WithAlpha(0.05)),
		"lars":  NewLassoLars(WithAlpha(0.05)),
	}
	fresh := map[string]model.Estimator{
		"ols":   &LinearRegression{},
		"ridge": &Ridge{},
		"lasso": &Lasso{},
		"lars":  &LassoLars{},
	}
	for name, est := range estimators {
		t.Run(name, func(t *testing.T) {
			if err := est.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(dir, name+".gob.gz")
			if err := model.SaveModel(est, path); err != nil {
				t.Fatal(err)
			}
			loaded := fresh[name]
			if err := model.LoadModel(loaded, path); err != nil {
				t.Fatal(err)
			}
			want, _ := est.Predict(X)
			got, err := loaded.Predict(X)
			if err != nil {
				t.Fatal(err)
			}
			if !mat.EqualApprox(want, got, 1e-12) {
				t.Error("predictions differ after reload")
			}
		})
	}
}
