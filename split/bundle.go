// Package split implements the train-test-split stage. It joins featurized
// datasets, partitions molecules into train and test sets, fits input and
// output transforms on train, and writes one bundle per split holding the
// raw data, the transformed data and the fitted transforms.
package split

import (
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/preprocessing"
)

// Modes for --mode.
const (
	Singletask = "singletask"
	Multitask  = "multitask"
)

// MultitaskKey indexes the single Data entry of a multitask split.
const MultitaskKey = "multitask"

// Matrix is a gob-friendly row-major matrix. Zero rows are allowed, which
// mat.Dense does not support.
type Matrix struct {
	Rows, Cols int
	Data       []float64
}

func NewMatrix(rows, cols int) Matrix {
	return Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// MatrixFrom copies m.
func MatrixFrom(m mat.Matrix) Matrix {
	r, c := m.Dims()
	out := NewMatrix(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Data[i*c+j] = m.At(i, j)
		}
	}
	return out
}

func (m Matrix) At(i, j int) float64     { return m.Data[i*m.Cols+j] }
func (m Matrix) Set(i, j int, v float64) { m.Data[i*m.Cols+j] = v }
func (m Matrix) Row(i int) []float64     { return m.Data[i*m.Cols : (i+1)*m.Cols] }

// Dense wraps the data without copying. It returns nil for an empty matrix.
func (m Matrix) Dense() *mat.Dense {
	if m.Rows == 0 || m.Cols == 0 {
		return nil
	}
	return mat.NewDense(m.Rows, m.Cols, m.Data)
}

// Col copies column j.
func (m Matrix) Col(j int) []float64 {
	out := make([]float64, m.Rows)
	for i := range out {
		out[i] = m.At(i, j)
	}
	return out
}

// Data is one X/Y/W block. Y is NaN and W is 0 where a label is missing.
type Data struct {
	IDs          []string
	SMILES       []string
	FeatureNames []string
	X            Matrix
	Y            Matrix
	W            Matrix
}

func (d *Data) Len() int { return len(d.IDs) }

// TaskSplit groups Data by task (singletask) or under MultitaskKey.
type TaskSplit struct {
	Mode  string
	Tasks []string
	Data  map[string]*Data
}

// Get returns the block for a task, or the multitask block.
func (s *TaskSplit) Get(key string) (*Data, error) {
	d, ok := s.Data[key]
	if !ok || d == nil {
		return nil, errors.NewSchemaError("split bundle", "data."+key)
	}
	return d, nil
}

// Keys lists the Data keys in task order.
func (s *TaskSplit) Keys() []string {
	if s.Mode == Multitask {
		return []string{MultitaskKey}
	}
	return s.Tasks
}

// Task returns the labelled rows of task j as an n×1 block.
func (s *TaskSplit) Task(j int) (*Data, error) {
	if j < 0 || j >= len(s.Tasks) {
		return nil, errors.NewValidationError("task", "index out of range", j)
	}
	if s.Mode != Multitask {
		return s.Get(s.Tasks[j])
	}
	d, err := s.Get(MultitaskKey)
	if err != nil {
		return nil, err
	}
	var rows []int
	for i := 0; i < d.Len(); i++ {
		if !math.IsNaN(d.Y.At(i, j)) {
			rows = append(rows, i)
		}
	}
	out := &Data{
		FeatureNames: d.FeatureNames,
		X:            NewMatrix(len(rows), d.X.Cols),
		Y:            NewMatrix(len(rows), 1),
		W:            NewMatrix(len(rows), 1),
	}
	for r, i := range rows {
		out.IDs = append(out.IDs, d.IDs[i])
		out.SMILES = append(out.SMILES, d.SMILES[i])
		copy(out.X.Row(r), d.X.Row(i))
		out.Y.Set(r, 0, d.Y.At(i, j))
		out.W.Set(r, 0, d.W.At(i, j))
	}
	return out, nil
}

// Union returns one n×T block over every molecule of the split. In
// singletask mode rows are merged by ID in first-seen order and labels a
// task did not keep are NaN with weight 0.
func (s *TaskSplit) Union() (*Data, error) {
	if s.Mode == Multitask {
		return s.Get(MultitaskKey)
	}
	nt := len(s.Tasks)
	index := map[string]int{}
	out := &Data{}
	var xs [][]float64
	var ys, ws [][]float64
	for j, task := range s.Tasks {
		d, err := s.Get(task)
		if err != nil {
			return nil, err
		}
		if out.FeatureNames == nil {
			out.FeatureNames = d.FeatureNames
		}
		for i, id := range d.IDs {
			r, ok := index[id]
			if !ok {
				r = len(out.IDs)
				index[id] = r
				out.IDs = append(out.IDs, id)
				out.SMILES = append(out.SMILES, d.SMILES[i])
				xs = append(xs, d.X.Row(i))
				y := make([]float64, nt)
				for k := range y {
					y[k] = math.NaN()
				}
				ys = append(ys, y)
				ws = append(ws, make([]float64, nt))
			}
			ys[r][j] = d.Y.At(i, 0)
			ws[r][j] = d.W.At(i, 0)
		}
	}
	out.X = NewMatrix(len(xs), len(out.FeatureNames))
	out.Y = NewMatrix(len(xs), nt)
	out.W = NewMatrix(len(xs), nt)
	for r := range xs {
		copy(out.X.Row(r), xs[r])
		copy(out.Y.Row(r), ys[r])
		copy(out.W.Row(r), ws[r])
	}
	return out, nil
}

// Transforms records the transforms fitted on the train split.
type Transforms struct {
	Input       []string
	InputScaler *preprocessing.StandardScaler
	Output      []string
	OutputChain *preprocessing.OutputChain
}

// Bundle is the artifact written for each of train and test.
type Bundle struct {
	Split       string // "train" or "test"
	Sources     []string
	CreatedAt   time.Time
	Raw         TaskSplit
	Transformed TaskSplit
	Transforms  Transforms
}

// Validate checks the keys fit and eval read.
func (b *Bundle) Validate() error {
	for name, ts := range map[string]*TaskSplit{"raw": &b.Raw, "transformed": &b.Transformed} {
		if ts.Mode != Singletask && ts.Mode != Multitask {
			return errors.NewSchemaError("split bundle", name+".mode")
		}
		if len(ts.Tasks) == 0 {
			return errors.NewSchemaError("split bundle", name+".tasks")
		}
		for _, k := range ts.Keys() {
			d, err := ts.Get(k)
			if err != nil {
				return err
			}
			if d.X.Rows != d.Len() || d.Y.Rows != d.Len() || d.W.Rows != d.Len() {
				return errors.NewDimensionError("Bundle.Validate", d.Len(), d.X.Rows, 0)
			}
		}
	}
	if len(b.Transforms.Output) > 0 && b.Transforms.OutputChain == nil {
		return errors.NewSchemaError("split bundle", "transforms.output_chain")
	}
	return nil
}

// Save writes the bundle as gzip-compressed gob, creating parent
// directories.
func (b *Bundle) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	return model.SaveGob(b, path)
}

// LoadBundle reads and validates a bundle.
func LoadBundle(path string) (*Bundle, error) {
	var b Bundle
	if err := model.LoadGob(&b, path); err != nil {
		return nil, errors.Wrapf(err, "load split bundle %s", path)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}
