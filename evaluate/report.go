package evaluate

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

func (r *Report) write(opts Options) error {
	var stats bytes.Buffer
	if err := r.WriteStats(&stats); err != nil {
		return err
	}
	if opts.StatsOut != "" {
		if err := writeFile(opts.StatsOut, stats.Bytes()); err != nil {
			return err
		}
	}
	if opts.Stdout != nil {
		if _, err := opts.Stdout.Write(stats.Bytes()); err != nil {
			return errors.Wrap(err, "write stats")
		}
	}
	if opts.CSVOut != "" {
		var buf bytes.Buffer
		if err := r.WriteCSV(&buf); err != nil {
			return err
		}
		if err := writeFile(opts.CSVOut, buf.Bytes()); err != nil {
			return err
		}
	}
	if opts.PlotOut != "" {
		if err := r.Plot(opts.PlotOut); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

// WriteStats writes the per-task table followed by the mean over tasks.
func (r *Report) WriteStats(w io.Writer) error {
	fmt.Fprintf(w, "model: %s (%s)\n", r.Model, r.Backend)
	fmt.Fprintf(w, "task type: %s\n", r.TaskType)
	fmt.Fprintf(w, "split: %s\n", r.Split)
	fmt.Fprintf(w, "molecules: %d\n\n", len(r.IDs))
	if len(r.Metrics) == 0 {
		_, err := fmt.Fprintln(w, "no metrics requested")
		return errors.Wrap(err, "write stats")
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "task\tn\t%s\n", strings.Join(r.Metrics, "\t"))
	for _, ts := range r.Tasks {
		fmt.Fprintf(tw, "%s\t%d", ts.Task, ts.Samples)
		for _, m := range r.Metrics {
			fmt.Fprintf(tw, "\t%s", formatScore(ts.Scores[m]))
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprint(tw, "mean\t-")
	for _, m := range r.Metrics {
		fmt.Fprintf(tw, "\t%s", formatScore(r.Mean[m]))
	}
	fmt.Fprintln(tw)
	return errors.Wrap(tw.Flush(), "write stats")
}

func formatScore(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// WriteCSV writes one row per molecule: id, smiles, then a true/pred pair
// per task. Missing labels are left empty.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "smiles"}
	for _, ts := range r.Tasks {
		header = append(header, ts.Task+"_true", ts.Task+"_pred")
	}
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for i, id := range r.IDs {
		row := []string{id, r.SMILES[i]}
		for j := range r.Tasks {
			row = append(row, csvFloat(r.True[j][i]), csvFloat(r.Pred[j][i]))
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func csvFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
