package errors

import (
	"errors"
	"strings"
	"testing"
)

// featurize -> fit -> eval, where fit panics inside an estimator.
func TestStageChainStopsAtPanickingStage(t *testing.T) {
	stages := []struct {
		name string
		fn   func() error
	}{
		{"featurize", func() error { return nil }},
		{"fit", func() error {
			var m map[string]float64
			m["alpha"] = 1 // nil map write
			return nil
		}},
		{"eval", func() error { t.Fatal("eval must not run after fit failed"); return nil }},
	}

	var failed string
	var err error
	for _, st := range stages {
		if err = SafeExecute(st.name, st.fn); err != nil {
			failed = st.name
			break
		}
	}

	if failed != "fit" {
		t.Fatalf("expected fit to fail, got %q", failed)
	}
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected *PanicError, got %T", err)
	}
	if !strings.Contains(panicErr.Error(), "panic in fit") {
		t.Errorf("unexpected message %q", panicErr.Error())
	}
	if !strings.Contains(panicErr.String(), "stage_recovery_test.go") {
		t.Error("stack trace should point at the panicking stage")
	}
}

func TestSafeExecuteKeepsTypedErrors(t *testing.T) {
	err := SafeExecute("featurize", func() error {
		return NewValidationError("field-types", "must have the same length as fields", 2)
	})

	var ve *ValidationError
	if !As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.ParamName != "field-types" {
		t.Errorf("ParamName = %q", ve.ParamName)
	}
}
