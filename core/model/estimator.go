package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース。
// 戻り値は n×1 の列ベクトル。
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator is a supervised single-output model.
type Estimator interface {
	Fitter
	Predictor
	IsFitted() bool
}

// WeightedFitter is implemented by estimators that honour per-sample
// weights. A nil weight slice means uniform weights.
type WeightedFitter interface {
	FitWeighted(X, y mat.Matrix, sampleWeight []float64) error
}
