package neural_network

import (
	"math"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// Loss names an output loss. Binary cross-entropy implies a sigmoid head,
// the others a linear head.
type Loss string

const (
	MeanSquaredError   Loss = "mean_squared_error"
	MeanAbsoluteError  Loss = "mean_absolute_error"
	BinaryCrossentropy Loss = "binary_crossentropy"
)

func ParseLoss(s string) (Loss, error) {
	switch l := Loss(s); l {
	case MeanSquaredError, MeanAbsoluteError, BinaryCrossentropy:
		return l, nil
	}
	return "", errors.NewValidationError("loss_function", "must be mean_squared_error, mean_absolute_error or binary_crossentropy", s)
}

// activate maps a pre-activation to the network output.
func (l Loss) activate(z float64) float64 {
	if l == BinaryCrossentropy {
		return errors.Sigmoid(z)
	}
	return z
}

// eval returns the loss and its derivative with respect to the
// pre-activation z.
func (l Loss) eval(z, y float64) (loss, grad float64) {
	switch l {
	case BinaryCrossentropy:
		p := errors.Sigmoid(z)
		return -(y*errors.StabilizeLog(p) + (1-y)*errors.StabilizeLog(1-p)), p - y
	case MeanAbsoluteError:
		d := z - y
		s := 0.0
		if d > 0 {
			s = 1
		} else if d < 0 {
			s = -1
		}
		return math.Abs(d), s
	default:
		d := z - y
		return d * d, 2 * d
	}
}
