package evaluate

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/metrics"
	"github.com/YuminosukeSato/molpipe/models"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// Metric names, in report column order.
const (
	AUC      = "auc"
	Accuracy = "accuracy"
	Recall   = "recall"
	MCC      = "mcc"
	R2       = "r2"
	RMS      = "rms"
)

// LabelThreshold turns positive-class probabilities into hard labels.
const LabelThreshold = 0.5

var metricTaskType = map[string]string{
	AUC:      models.Classification,
	Accuracy: models.Classification,
	Recall:   models.Classification,
	MCC:      models.Classification,
	R2:       models.Regression,
	RMS:      models.Regression,
}

// score computes one metric. Undefined values come back as NaN after a
// warning rather than as an error, so one degenerate task does not abort
// the report.
func score(metric string, yTrue, yPred []float64) (float64, error) {
	if len(yTrue) == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(metric, "no labelled samples", math.NaN()))
		return math.NaN(), nil
	}
	t := mat.NewVecDense(len(yTrue), yTrue)
	p := mat.NewVecDense(len(yPred), yPred)
	switch metric {
	case AUC:
		return metrics.AUC(t, p)
	case Accuracy:
		return metrics.Accuracy(t, metrics.Binarize(p, LabelThreshold))
	case Recall:
		return metrics.Recall(t, metrics.Binarize(p, LabelThreshold))
	case MCC:
		return metrics.MatthewsCorrCoef(t, metrics.Binarize(p, LabelThreshold))
	case R2:
		r2, err := metrics.R2Score(t, p)
		var ve *errors.ValueError
		if errors.As(err, &ve) {
			errors.Warn(errors.NewUndefinedMetricWarning(R2, "constant y_true", math.NaN()))
			return math.NaN(), nil
		}
		return r2, err
	case RMS:
		return metrics.RMSE(t, p)
	}
	return 0, errors.NewValidationError("metric", "unknown metric", metric)
}

// mean averages the defined values; it is NaN when none are defined.
func mean(values []float64) float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
