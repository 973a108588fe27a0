package dataset

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// parseFloat treats empty cells and the usual missing-value spellings as NaN.
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "n/a", "none", "null":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), errors.Wrapf(err, "parse float %q", s)
	}
	return v, nil
}

// splitList accepts "[a, b]", JSON arrays, and semicolon or whitespace
// separated text.
func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var items []any
		if err := json.Unmarshal([]byte(s), &items); err == nil {
			out := make([]string, 0, len(items))
			for _, it := range items {
				out = append(out, jsonScalar(it))
			}
			return out
		}
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	}
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
}

func parseFloatList(s string) ([]float64, error) {
	items := splitList(s)
	out := make([]float64, len(items))
	for i, it := range items {
		v, err := parseFloat(strings.Trim(it, `"'`))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseStringList(s string) []string {
	items := splitList(s)
	for i := range items {
		items[i] = strings.Trim(items[i], `"' `)
	}
	return items
}

// featureValues converts a feature cell according to its declared type.
func featureValues(cell, fieldType string) ([]float64, error) {
	switch fieldType {
	case TypeFloat:
		v, err := parseFloat(cell)
		if err != nil {
			return nil, err
		}
		return []float64{v}, nil
	case TypeListFloat, TypeNDArray:
		return parseFloatList(cell)
	}
	return nil, errors.NewValidationError("feature-fields", "feature fields must be numeric", fieldType)
}

// binarize maps values above the threshold to 1 and the rest to 0.
func binarize(v, threshold float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	if v > threshold {
		return 1
	}
	return 0
}

// jsonScalar renders a decoded JSON value as the text a CSV cell would hold.
func jsonScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
