package model

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	NotFitted EstimatorState = iota
	Fitted
)

// BaseEstimator は全てのモデルの基底となる構造体。
// State は gob で保存できるよう公開している。
type BaseEstimator struct {
	State EstimatorState
}

func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset はモデルを未学習状態に戻す
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}
