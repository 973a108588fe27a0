// Package linear_model provides L2-regularized binary logistic regression.
package linear_model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// LogisticRegression is a binary classifier minimizing
//
//	C * sum_i w_i * logloss(y_i, sigmoid(x_i b + b0)) + 0.5 * ||b||^2
//
// with L-BFGS. Penalty "none" drops the L2 term.
type LogisticRegression struct {
	State *model.StateManager

	// Hyperparameters
	Penalty      string  // "l2" or "none"
	C            float64 // inverse regularization strength
	FitIntercept bool
	ClassWeight  string // "balanced" or "none"
	MaxIter      int
	Tol          float64

	// Fitted parameters
	Coef        []float64
	Intercept   float64
	ClassLabels []int
	NIter       int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		State:        model.NewStateManager(),
		Penalty:      "l2",
		C:            1.0,
		FitIntercept: true,
		ClassWeight:  "none",
		MaxIter:      100,
		Tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type ("l2" or "none")
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.FitIntercept = fit
	}
}

// WithLRClassWeight sets "balanced" to reweight classes by n / (2 * n_class).
func WithLRClassWeight(cw string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.ClassWeight = cw
	}
}

func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.MaxIter = maxIter
	}
}

// WithLRTol sets the gradient-norm stopping threshold
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Tol = tol
	}
}

func (lr *LogisticRegression) state() *model.StateManager {
	if lr.State == nil {
		lr.State = model.NewStateManager()
	}
	return lr.State
}

func (lr *LogisticRegression) IsFitted() bool {
	return lr.state().IsFitted()
}

func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	return lr.FitWeighted(X, y, nil)
}

// FitWeighted trains the model with per-sample weights (nil means uniform).
func (lr *LogisticRegression) FitWeighted(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.Penalty != "l2" && lr.Penalty != "none" {
		return errors.NewValidationError("penalty", "must be l2 or none", lr.Penalty)
	}
	if sampleWeight != nil && len(sampleWeight) != nSamples {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, len(sampleWeight), 0)
	}

	classes := extractClasses(y)
	if len(classes) != 2 {
		return errors.NewValueError("LogisticRegression.Fit", "binary labels required, one task is fitted per classifier")
	}

	yBin := make([]float64, nSamples)
	counts := [2]float64{}
	for i := 0; i < nSamples; i++ {
		if int(y.At(i, 0)) == classes[1] {
			yBin[i] = 1
			counts[1]++
		} else {
			counts[0]++
		}
	}
	w := make([]float64, nSamples)
	for i := range w {
		w[i] = 1
		if sampleWeight != nil {
			w[i] = sampleWeight[i]
		}
		if lr.ClassWeight == "balanced" {
			w[i] *= float64(nSamples) / (2 * counts[int(yBin[i])])
		}
	}

	Xd := mat.DenseCopyOf(X)
	obj := &logisticObjective{X: Xd, y: yBin, w: w, C: lr.C, l2: lr.Penalty == "l2", fitIntercept: lr.FitIntercept}

	problem := optimize.Problem{Func: obj.loss, Grad: obj.grad}
	settings := &optimize.Settings{
		GradientThreshold: lr.Tol,
		MajorIterations:   lr.MaxIter,
	}
	result, err := optimize.Minimize(problem, make([]float64, nFeatures+1), settings, &optimize.LBFGS{})
	if result == nil {
		return errors.NewModelError("LogisticRegression.Fit", "optimization failed", err)
	}
	if err != nil || result.Status == optimize.IterationLimit {
		msg := "increase max_iter or scale the input features"
		if err != nil {
			msg = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression(lbfgs)", result.Stats.MajorIterations, msg))
	}
	if err := errors.CheckNumericalStability("LogisticRegression.Fit", result.X, result.Stats.MajorIterations); err != nil {
		return err
	}

	lr.Coef = append([]float64(nil), result.X[:nFeatures]...)
	lr.Intercept = result.X[nFeatures]
	lr.ClassLabels = classes
	lr.NIter = result.Stats.MajorIterations
	lr.state().SetDimensions(nFeatures, nSamples)
	lr.state().SetFitted()
	return nil
}

func extractClasses(y mat.Matrix) []int {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	var classes []int
	for i := 0; i < rows; i++ {
		label := int(y.At(i, 0))
		if !seen[label] {
			seen[label] = true
			classes = append(classes, label)
		}
	}
	sort.Ints(classes)
	return classes
}

// logisticObjective evaluates the penalized weighted log-loss. The last
// parameter is the intercept.
type logisticObjective struct {
	X            *mat.Dense
	y, w         []float64
	C            float64
	l2           bool
	fitIntercept bool
}

func (o *logisticObjective) margins(params []float64) *mat.VecDense {
	_, p := o.X.Dims()
	var z mat.VecDense
	z.MulVec(o.X, mat.NewVecDense(p, params[:p]))
	if o.fitIntercept {
		for i := 0; i < z.Len(); i++ {
			z.SetVec(i, z.AtVec(i)+params[p])
		}
	}
	return &z
}

func (o *logisticObjective) loss(params []float64) float64 {
	z := o.margins(params)
	var f float64
	for i, yi := range o.y {
		zi := z.AtVec(i)
		f += o.w[i] * (softplus(zi) - yi*zi)
	}
	f *= o.C
	if o.l2 {
		for _, b := range params[:len(params)-1] {
			f += 0.5 * b * b
		}
	}
	return f
}

func (o *logisticObjective) grad(grad, params []float64) {
	n, p := o.X.Dims()
	z := o.margins(params)
	resid := mat.NewVecDense(n, nil)
	var sum float64
	for i, yi := range o.y {
		r := o.C * o.w[i] * (errors.Sigmoid(z.AtVec(i)) - yi)
		resid.SetVec(i, r)
		sum += r
	}
	g := mat.NewVecDense(p, grad[:p])
	g.MulVec(o.X.T(), resid)
	if o.l2 {
		for j := 0; j < p; j++ {
			grad[j] += params[j]
		}
	}
	grad[p] = 0
	if o.fitIntercept {
		grad[p] = sum
	}
}

// softplus computes log(1 + exp(z)) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

func (lr *LogisticRegression) decision(op string, X mat.Matrix) ([]float64, error) {
	if err := lr.state().RequireFitted("LogisticRegression", op); err != nil {
		return nil, err
	}
	n, c := X.Dims()
	if err := lr.state().RequireFeatures("LogisticRegression."+op, c); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		z := lr.Intercept
		for j, b := range lr.Coef {
			z += X.At(i, j) * b
		}
		out[i] = errors.Sigmoid(z)
	}
	return out, nil
}

// Predict returns the class label with the larger probability.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.decision("Predict", X)
	if err != nil {
		return nil, err
	}
	predictions := mat.NewDense(len(proba), 1, nil)
	for i, p := range proba {
		label := lr.ClassLabels[0]
		if p >= 0.5 {
			label = lr.ClassLabels[1]
		}
		predictions.Set(i, 0, float64(label))
	}
	return predictions, nil
}

// PredictProba returns an n×2 matrix of class probabilities.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.decision("PredictProba", X)
	if err != nil {
		return nil, err
	}
	probas := mat.NewDense(len(proba), 2, nil)
	for i, p := range proba {
		probas.Set(i, 0, 1-p)
		probas.Set(i, 1, p)
	}
	return probas, nil
}

func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.ClassLabels...)
}

// Score returns the mean accuracy on the given data.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := X.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.Penalty,
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"class_weight":  lr.ClassWeight,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.Penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.FitIntercept, ok = value.(bool)
		case "class_weight":
			lr.ClassWeight, ok = value.(string)
		case "max_iter":
			lr.MaxIter, ok = value.(int)
		case "tol":
			lr.Tol, ok = value.(float64)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if !ok {
			return errors.NewValidationError(key, "wrong type", value)
		}
	}
	return nil
}
