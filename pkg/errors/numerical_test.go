package errors

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestCheckNumericalStability(t *testing.T) {
	tests := []struct {
		name    string
		values  []float64
		wantErr bool
	}{
		{"finite", []float64{0, 1, -2.5}, false},
		{"nan", []float64{1, math.NaN()}, true},
		{"inf", []float64{math.Inf(-1)}, true},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckNumericalStability("loss", tt.values, 3)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ni *NumericalInstabilityError
				if !As(err, &ni) || ni.Iteration != 3 {
					t.Errorf("expected NumericalInstabilityError at iteration 3, got %v", err)
				}
			}
		})
	}
}

func TestCheckMatrix(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, math.NaN(), 4})
	if err := CheckMatrix("weights", m, 2, 2, 0); err == nil {
		t.Error("expected instability error for NaN entry")
	}
	if err := CheckMatrix("weights", mat.NewDense(1, 2, []float64{1, 2}), 1, 2, 0); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

func TestSigmoid(t *testing.T) {
	tests := []struct {
		z, want float64
	}{
		{0, 0.5},
		{1000, 1},
		{-1000, 0},
		{2, 1 / (1 + math.Exp(-2))},
	}
	for _, tt := range tests {
		if got := Sigmoid(tt.z); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Sigmoid(%v) = %v, want %v", tt.z, got, tt.want)
		}
	}
}

func TestStabilizeLog(t *testing.T) {
	if got := StabilizeLog(0); math.IsInf(got, 0) {
		t.Error("StabilizeLog(0) must be finite")
	}
	if got := StabilizeLog(math.E); math.Abs(got-1) > 1e-12 {
		t.Errorf("StabilizeLog(e) = %v", got)
	}
}
