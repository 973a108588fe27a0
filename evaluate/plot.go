package evaluate

import (
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/molpipe/metrics"
	"github.com/YuminosukeSato/molpipe/models"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// Plot renders a ROC curve per task for classification, or predicted
// against true values for regression. The image format follows the file
// extension (png, svg, pdf, ...).
func (r *Report) Plot(path string) error {
	p := plot.New()
	p.Legend.Top = true
	var err error
	if r.TaskType == models.Classification {
		err = r.plotROC(p)
	} else {
		err = r.plotScatter(p)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	return errors.Wrapf(p.Save(5*vg.Inch, 5*vg.Inch, path), "save plot %s", path)
}

func (r *Report) plotROC(p *plot.Plot) error {
	p.Title.Text = "ROC (" + r.Split + ")"
	p.X.Label.Text = "false positive rate"
	p.Y.Label.Text = "true positive rate"
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = 0, 1, 0, 1

	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return errors.Wrap(err, "plot diagonal")
	}
	diag.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(diag)

	for j, ts := range r.Tasks {
		yTrue, yPred := metrics.Labelled(r.True[j], r.Pred[j])
		if len(yTrue) == 0 {
			continue
		}
		curve, err := metrics.ROCCurve(mat.NewVecDense(len(yTrue), yTrue), mat.NewVecDense(len(yPred), yPred))
		if err != nil {
			return errors.Wrapf(err, "roc curve for task %s", ts.Task)
		}
		pts := make(plotter.XYs, len(curve))
		for i, pt := range curve {
			pts[i] = plotter.XY{X: pt.FPR, Y: pt.TPR}
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "plot task %s", ts.Task)
		}
		l.Color = plotutil.Color(j)
		l.Width = vg.Points(1.5)
		p.Add(l)
		p.Legend.Add(ts.Task, l)
	}
	return nil
}

func (r *Report) plotScatter(p *plot.Plot) error {
	p.Title.Text = "predicted vs true (" + r.Split + ")"
	p.X.Label.Text = "true"
	p.Y.Label.Text = "predicted"

	lo, hi := math.Inf(1), math.Inf(-1)
	for j, ts := range r.Tasks {
		yTrue, yPred := metrics.Labelled(r.True[j], r.Pred[j])
		if len(yTrue) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(yTrue))
		for i := range yTrue {
			pts[i] = plotter.XY{X: yTrue[i], Y: yPred[i]}
			lo = math.Min(lo, math.Min(yTrue[i], yPred[i]))
			hi = math.Max(hi, math.Max(yTrue[i], yPred[i]))
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return errors.Wrapf(err, "plot task %s", ts.Task)
		}
		s.Color = plotutil.Color(j)
		s.Shape = draw.CircleGlyph{}
		s.Radius = vg.Points(2)
		p.Add(s)
		p.Legend.Add(ts.Task, s)
	}
	if lo <= hi {
		ident, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
		if err != nil {
			return errors.Wrap(err, "plot identity")
		}
		ident.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(ident)
	}
	return nil
}
