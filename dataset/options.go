// Package dataset implements the featurize stage: raw molecule records in
// CSV, SDF or records-oriented JSON are parsed, featurized and written as a
// versioned directory of gzip-compressed gob shards with a YAML manifest.
package dataset

import (
	"runtime"
	"slices"

	"github.com/YuminosukeSato/molpipe/chem"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// Field types accepted by --field-types.
const (
	TypeString     = "string"
	TypeFloat      = "float"
	TypeListString = "list-string"
	TypeListFloat  = "list-float"
	TypeNDArray    = "ndarray"
)

// Input types accepted by --input-type.
const (
	InputCSV    = "csv"
	InputSDF    = "sdf"
	InputPandas = "pandas"
	InputJSON   = "json"
)

// Feature types written by Featurize.
const (
	FeatureFingerprints = "fingerprints"
	FeatureDescriptors  = "descriptors"
	FeatureUser         = "user-specified"
	FeatureGrid         = "grid"
)

var fieldTypes = []string{TypeString, TypeFloat, TypeListString, TypeListFloat, TypeNDArray}

// Options mirrors the featurize flags.
type Options struct {
	Name       string
	Out        string
	InputFiles []string
	InputType  string
	Delimiter  string

	Fields        []string
	FieldTypes    []string
	FeatureFields []string
	TargetFields  []string
	SplitField    string
	SmilesField   string
	IDField       string

	// Threshold binarizes targets when non-nil.
	Threshold *float64

	Workers        int
	GridSize       int
	GridResolution float64
}

// DefaultOptions returns the flag defaults.
func DefaultOptions() Options {
	return Options{
		InputType:      InputCSV,
		Delimiter:      ",",
		SmilesField:    "smiles",
		Workers:        runtime.NumCPU(),
		GridSize:       chem.DefaultGridSize,
		GridResolution: chem.DefaultGridResolution,
	}
}

// Validate checks the options before any file is touched. It fills in
// IDField from SmilesField when empty.
func (o *Options) Validate() error {
	if len(o.Fields) != len(o.FieldTypes) {
		return errors.NewValidationError("field-types",
			"must have the same length as fields", len(o.FieldTypes))
	}
	if o.Name == "" {
		return errors.NewValidationError("name", "is required", o.Name)
	}
	if o.Out == "" {
		return errors.NewValidationError("out", "is required", o.Out)
	}
	if len(o.InputFiles) == 0 {
		return errors.NewValidationError("input-files", "at least one input file is required", o.InputFiles)
	}
	switch o.InputType {
	case InputCSV, InputSDF, InputPandas, InputJSON:
	default:
		return errors.NewValidationError("input-type", "must be csv, sdf, pandas or json", o.InputType)
	}
	if o.InputType == InputCSV && len([]rune(o.Delimiter)) != 1 {
		return errors.NewValidationError("delimiter", "must be a single character", o.Delimiter)
	}
	for _, t := range o.FieldTypes {
		if !slices.Contains(fieldTypes, t) {
			return errors.NewValidationError("field-types", "unknown field type", t)
		}
	}
	if len(o.TargetFields) == 0 {
		return errors.NewValidationError("target-fields", "at least one target field is required", o.TargetFields)
	}
	if o.SmilesField == "" {
		return errors.NewValidationError("smiles-field", "is required", o.SmilesField)
	}
	if o.IDField == "" {
		o.IDField = o.SmilesField
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.GridSize < 1 || o.GridResolution <= 0 {
		return errors.NewValidationError("grid", "size and resolution must be positive", o.GridSize)
	}

	for _, f := range o.TargetFields {
		t, ok := o.fieldType(f)
		if !ok {
			return errors.NewValidationError("target-fields", "not declared in fields", f)
		}
		if t != TypeFloat && t != TypeString {
			return errors.NewValidationError("target-fields", "targets must be float or string fields", f)
		}
	}
	for _, f := range o.FeatureFields {
		t, ok := o.fieldType(f)
		if !ok {
			return errors.NewValidationError("feature-fields", "not declared in fields", f)
		}
		if t == TypeString || t == TypeListString {
			return errors.NewValidationError("feature-fields", "feature fields must be numeric", f)
		}
	}
	// smiles and id may be absent from SDF data items; the molecule block
	// supplies them.
	if o.InputType != InputSDF {
		for _, f := range []string{o.SmilesField, o.IDField} {
			if _, ok := o.fieldType(f); !ok {
				return errors.NewValidationError("fields", "must declare smiles and id fields", f)
			}
		}
	}
	if o.SplitField != "" {
		if _, ok := o.fieldType(o.SplitField); !ok {
			return errors.NewValidationError("split-field", "not declared in fields", o.SplitField)
		}
	}
	return nil
}

func (o *Options) fieldType(name string) (string, bool) {
	i := slices.Index(o.Fields, name)
	if i < 0 {
		return "", false
	}
	return o.FieldTypes[i], true
}

// usedFields lists the columns featurize reads from every record.
func (o *Options) usedFields() []string {
	used := []string{o.SmilesField}
	if o.IDField != o.SmilesField {
		used = append(used, o.IDField)
	}
	used = append(used, o.TargetFields...)
	used = append(used, o.FeatureFields...)
	if o.SplitField != "" {
		used = append(used, o.SplitField)
	}
	return used
}
