package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// AUC はROC曲線下面積を計算する。
// yPred は陽性クラスのスコア。同点のペアは 1/2 として数える (Mann-Whitney U)。
// 片方のクラスしか存在しない場合は定義できないため 0.5 を返し、
// UndefinedMetricWarning を発行する。
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return yPred.AtVec(idx[a]) < yPred.AtVec(idx[b]) })

	// 平均順位 (同点は平均)
	var rankSumPos float64
	var nPos int
	for i := 0; i < n; {
		j := i
		for j+1 < n && yPred.AtVec(idx[j+1]) == yPred.AtVec(idx[i]) {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			if yTrue.AtVec(idx[k]) == 1 {
				rankSumPos += avgRank
				nPos++
			}
		}
		i = j + 1
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("roc_auc", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	u := rankSumPos - float64(nPos*(nPos+1))/2
	return u / float64(nPos*nNeg), nil
}

// ROCPoint is one threshold of the ROC curve.
type ROCPoint struct {
	FPR, TPR, Threshold float64
}

// ROCCurve returns the ROC curve from (0,0) to (1,1), one point per distinct
// score, in decreasing threshold order.
func ROCCurve(yTrue, yPred *mat.VecDense) ([]ROCPoint, error) {
	n, err := checkPair("ROCCurve", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if err := checkBinary("ROCCurve", yTrue); err != nil {
		return nil, err
	}
	idx := make([]int, n)
	var nPos float64
	for i := range idx {
		idx[i] = i
		nPos += yTrue.AtVec(i)
	}
	nNeg := float64(n) - nPos
	sort.Slice(idx, func(a, b int) bool { return yPred.AtVec(idx[a]) > yPred.AtVec(idx[b]) })

	points := []ROCPoint{{0, 0, math.Inf(1)}}
	var tp, fp float64
	for i := 0; i < n; i++ {
		if yTrue.AtVec(idx[i]) == 1 {
			tp++
		} else {
			fp++
		}
		if i+1 < n && yPred.AtVec(idx[i+1]) == yPred.AtVec(idx[i]) {
			continue
		}
		points = append(points, ROCPoint{
			FPR:       errors.SafeDivide(fp, nNeg),
			TPR:       errors.SafeDivide(tp, nPos),
			Threshold: yPred.AtVec(idx[i]),
		})
	}
	return points, nil
}

// Accuracy は正解率を計算する。ラベルは任意の整数値でよい。
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var correct int
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ConfusionMatrix holds binary counts with 1 as the positive label.
type ConfusionMatrix struct {
	TP, FP, TN, FN float64
}

// BinaryConfusion counts outcomes of hard 0/1 predictions.
func BinaryConfusion(yTrue, yPred *mat.VecDense) (ConfusionMatrix, error) {
	n, err := checkPair("BinaryConfusion", yTrue, yPred)
	if err != nil {
		return ConfusionMatrix{}, err
	}
	if err := checkBinary("BinaryConfusion", yTrue); err != nil {
		return ConfusionMatrix{}, err
	}
	if err := checkBinary("BinaryConfusion", yPred); err != nil {
		return ConfusionMatrix{}, err
	}
	var cm ConfusionMatrix
	for i := 0; i < n; i++ {
		switch t, p := yTrue.AtVec(i), yPred.AtVec(i); {
		case t == 1 && p == 1:
			cm.TP++
		case t == 0 && p == 1:
			cm.FP++
		case t == 0 && p == 0:
			cm.TN++
		default:
			cm.FN++
		}
	}
	return cm, nil
}

// Recall = TP / (TP + FN). 陽性が存在しない場合は 0 と警告。
func Recall(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := BinaryConfusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if cm.TP+cm.FN == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("recall", "no true samples", 0))
		return 0, nil
	}
	return cm.TP / (cm.TP + cm.FN), nil
}

// MatthewsCorrCoef はマシューズ相関係数を計算する。値は [-1, 1]。
// 分母が0のとき (どれかの行/列和が0) は 0 を返す。
func MatthewsCorrCoef(yTrue, yPred *mat.VecDense) (float64, error) {
	cm, err := BinaryConfusion(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	den := math.Sqrt((cm.TP + cm.FP) * (cm.TP + cm.FN) * (cm.TN + cm.FP) * (cm.TN + cm.FN))
	if den == 0 {
		return 0, nil
	}
	mcc := (cm.TP*cm.TN - cm.FP*cm.FN) / den
	return errors.ClipValue(mcc, -1, 1), nil
}

// Binarize thresholds scores: s >= threshold becomes 1.
func Binarize(scores *mat.VecDense, threshold float64) *mat.VecDense {
	out := mat.NewVecDense(scores.Len(), nil)
	for i := 0; i < scores.Len(); i++ {
		if scores.AtVec(i) >= threshold {
			out.SetVec(i, 1)
		}
	}
	return out
}
