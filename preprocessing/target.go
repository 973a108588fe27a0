package preprocessing

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// Transform names accepted on the command line.
const (
	NormalizeAndTruncate = "normalize-and-truncate"
	LogTransform         = "log"
	NormalizeTransform   = "normalize"
)

// TruncationBound is the clip applied by normalize-and-truncate.
const TruncationBound = 5.0

// LogTransformer maps targets through the natural log. NaN is kept.
type LogTransformer struct {
	model.BaseEstimator
	NFeatures int
}

// Fit checks that every labelled value is positive.
func (l *LogTransformer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := X.At(i, j); v <= 0 {
				return errors.NewValidationError("log", "targets must be positive", v)
			}
		}
	}
	l.NFeatures = c
	l.SetFitted()
	return nil
}

func (l *LogTransformer) Transform(X mat.Matrix) (mat.Matrix, error) {
	return l.apply("Transform", X, math.Log)
}

func (l *LogTransformer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := l.Fit(X); err != nil {
		return nil, err
	}
	return l.Transform(X)
}

func (l *LogTransformer) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return l.apply("InverseTransform", X, errors.StabilizeExp)
}

func (l *LogTransformer) apply(method string, X mat.Matrix, f func(float64) float64) (mat.Matrix, error) {
	if !l.IsFitted() {
		return nil, errors.NewNotFittedError("LogTransformer", method)
	}
	r, c := X.Dims()
	if c != l.NFeatures {
		return nil, errors.NewDimensionError("LogTransformer."+method, l.NFeatures, c, 1)
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 { return f(v) }, X)
	return out, nil
}

// ParseOutputTransforms splits the --output-transforms value. "" and "None"
// mean no transform.
func ParseOutputTransforms(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "None" {
		return nil, nil
	}
	var names []string
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		switch name {
		case LogTransform, NormalizeTransform:
			names = append(names, name)
		default:
			return nil, errors.NewValidationError("output-transforms", "must be log or normalize", name)
		}
	}
	return names, nil
}

// ParseInputTransforms validates --input-transforms values.
func ParseInputTransforms(values []string) ([]string, error) {
	var names []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			switch name {
			case "", "None":
			case NormalizeAndTruncate:
				names = append(names, name)
			default:
				return nil, errors.NewValidationError("input-transforms", "must be normalize-and-truncate", name)
			}
		}
	}
	return names, nil
}

// OutputChain applies log and then normalize to targets, and undoes them in
// reverse order. Only the transforms named in Names are active.
type OutputChain struct {
	Names  []string
	Log    *LogTransformer
	Scaler *StandardScaler
}

func NewOutputChain(names []string) *OutputChain {
	c := &OutputChain{Names: names}
	for _, n := range names {
		switch n {
		case LogTransform:
			c.Log = &LogTransformer{}
		case NormalizeTransform:
			c.Scaler = NewStandardScalerDefault()
		}
	}
	return c
}

// FitTransform fits on training targets (NaN marks a missing label).
func (c *OutputChain) FitTransform(Y mat.Matrix) (mat.Matrix, error) {
	out := Y
	var err error
	if c.Log != nil {
		if out, err = c.Log.FitTransform(out); err != nil {
			return nil, err
		}
	}
	if c.Scaler != nil {
		if out, err = c.Scaler.FitTransform(out); err != nil {
			return nil, err
		}
	}
	return mat.DenseCopyOf(out), nil
}

func (c *OutputChain) Transform(Y mat.Matrix) (mat.Matrix, error) {
	out := Y
	var err error
	if c.Log != nil {
		if out, err = c.Log.Transform(out); err != nil {
			return nil, err
		}
	}
	if c.Scaler != nil {
		if out, err = c.Scaler.Transform(out); err != nil {
			return nil, err
		}
	}
	return mat.DenseCopyOf(out), nil
}

// InverseTransform un-normalizes and then exponentiates.
func (c *OutputChain) InverseTransform(Y mat.Matrix) (mat.Matrix, error) {
	out := Y
	var err error
	if c.Scaler != nil {
		if out, err = c.Scaler.InverseTransform(out); err != nil {
			return nil, err
		}
	}
	if c.Log != nil {
		if out, err = c.Log.InverseTransform(out); err != nil {
			return nil, err
		}
	}
	return mat.DenseCopyOf(out), nil
}

// Column returns a single-task view of the chain for task j, used when a
// model predicts one task at a time.
func (c *OutputChain) Column(j int) *OutputChain {
	col := &OutputChain{Names: c.Names}
	if c.Log != nil {
		col.Log = &LogTransformer{BaseEstimator: c.Log.BaseEstimator, NFeatures: 1}
	}
	if c.Scaler != nil {
		s := *c.Scaler
		s.NFeatures = 1
		s.Mean = []float64{c.Scaler.Mean[j]}
		s.Scale = []float64{c.Scaler.Scale[j]}
		col.Scaler = &s
	}
	return col
}
