package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
		as   func(error) bool
	}{
		{
			name: "model error wraps cause",
			err:  NewModelError("Ridge.Fit", "singular system", ErrSingularMatrix),
			want: "molpipe: Ridge.Fit: singular system: singular matrix",
			as:   func(e error) bool { var t *ModelError; return As(e, &t) },
		},
		{
			name: "model error without cause",
			err:  NewModelError("MLP.Predict", "no layers", nil),
			want: "molpipe: MLP.Predict: no layers",
			as:   func(e error) bool { var t *ModelError; return As(e, &t) },
		},
		{
			name: "feature dimension",
			err:  NewDimensionError("Artifact.Predict", 1024, 200, 1),
			want: "molpipe: Artifact.Predict: dimension mismatch on axis 1 (features). Expected 1024, got 200",
			as:   func(e error) bool { var t *DimensionError; return As(e, &t) },
		},
		{
			name: "row dimension",
			err:  NewDimensionError("R2Score", 10, 9, 0),
			want: "molpipe: R2Score: dimension mismatch on axis 0 (rows). Expected 10, got 9",
			as:   func(e error) bool { var t *DimensionError; return As(e, &t) },
		},
		{
			name: "not fitted",
			err:  NewNotFittedError("StandardScaler", "Transform"),
			want: "molpipe: StandardScaler: this model is not fitted yet. Call Fit() before using Transform()",
			as:   func(e error) bool { var t *NotFittedError; return As(e, &t) },
		},
		{
			name: "validation",
			err:  NewValidationError("splittype", "must be one of random, scaffold, specified", "stratified"),
			want: "molpipe: validation failed for parameter 'splittype': must be one of random, scaffold, specified (got: stratified)",
			as:   func(e error) bool { var t *ValidationError; return As(e, &t) },
		},
		{
			name: "value",
			err:  NewValueError("log transform", "target NR-AR has non-positive values"),
			want: "molpipe: log transform: target NR-AR has non-positive values",
			as:   func(e error) bool { var t *ValueError; return As(e, &t) },
		},
		{
			name: "schema",
			err:  NewSchemaError("split bundle", "transforms"),
			want: `molpipe: split bundle: missing required key "transforms"`,
			as:   func(e error) bool { var t *SchemaError; return As(e, &t) },
		},
		{
			name: "convergence warning",
			err:  NewConvergenceWarning("Lasso", 1000, "duality gap 0.02"),
			want: "Lasso failed to converge after 1000 iterations: duality gap 0.02",
			as:   func(e error) bool { var t *ConvergenceWarning; return As(e, &t) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("Error() = %q\nwant      %q", tt.err.Error(), tt.want)
			}
			if !tt.as(tt.err) {
				t.Errorf("errors.As failed for %T", tt.err)
			}
		})
	}
}

func TestStackTraceAttached(t *testing.T) {
	err := NewModelError("fit", "failed", Wrap(fmt.Errorf("shard missing"), "load bundle"))
	if !strings.Contains(err.Error(), "shard missing") {
		t.Errorf("cause lost: %v", err)
	}
	if !strings.Contains(fmt.Sprintf("%+v", err), "errors_test.go") {
		t.Error("verbose format should print the stack")
	}
}

func TestWrapKeepsSentinel(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "featurize %s: %d rows", "tox21.csv", 0)
	if !Is(wrapped, ErrEmptyData) {
		t.Error("sentinel lost after Wrapf")
	}
	if !strings.Contains(wrapped.Error(), "featurize tox21.csv: 0 rows") {
		t.Errorf("message = %q", wrapped.Error())
	}
	if !Is(Wrap(ErrUnknownBackend, "load"), ErrUnknownBackend) {
		t.Error("sentinel lost after Wrap")
	}
}

func TestWarnRoutesToZerologSink(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("roc_auc", "only one class present", 0.5))

	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}
	var um *UndefinedMetricWarning
	if !As(got[0], &um) || um.Metric != "roc_auc" {
		t.Errorf("unexpected warning %v", got[0])
	}
}

func TestWarnFallbackHandler(t *testing.T) {
	var got error
	SetWarningHandler(func(w error) { got = w })
	defer SetWarningHandler(func(error) {})

	Warn(NewConvergenceWarning("Lasso", 10, ""))
	if got == nil || !strings.Contains(got.Error(), "Lasso failed to converge after 10 iterations") {
		t.Errorf("fallback handler not called, got %v", got)
	}
}
