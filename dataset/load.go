package dataset

import (
	"path/filepath"
	"slices"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/pkg/log"
)

// Table is the joined view of one or more featurized directories: one row
// per molecule present in the targets and in every selected feature type.
type Table struct {
	IDs       []string
	SMILES    []string
	Scaffolds []string
	Splits    []string

	Tasks        []string
	FeatureNames []string
	X            []float64 // row-major Len() x len(FeatureNames)
	Y            []float64 // row-major Len() x len(Tasks), NaN when missing
}

func (t *Table) Len() int { return len(t.IDs) }

// Row returns the features of row i.
func (t *Table) Row(i int) []float64 {
	d := len(t.FeatureNames)
	return t.X[i*d : (i+1)*d]
}

// Target returns the label of row i for task j.
func (t *Table) Target(i, j int) float64 { return t.Y[i*len(t.Tasks)+j] }

// Load joins the selected feature types of every directory with its
// targets. Feature columns are concatenated in the order featureTypes is
// given. tasks defaults to the first manifest's target fields.
func Load(dirs []string, featureTypes, tasks []string) (*Table, error) {
	if len(dirs) == 0 {
		return nil, errors.NewValidationError("paths", "at least one dataset directory is required", dirs)
	}
	if len(featureTypes) == 0 {
		return nil, errors.NewValidationError("feature-types", "at least one feature type is required", featureTypes)
	}
	logger := log.GetLoggerWithName("dataset")

	out := &Table{}
	seen := map[string]bool{}
	for di, dir := range dirs {
		m, err := LoadManifest(dir)
		if err != nil {
			return nil, err
		}
		if di == 0 && len(tasks) == 0 {
			tasks = m.TargetFields
		}
		taskCols := make([]int, len(tasks))
		for j, task := range tasks {
			taskCols[j] = slices.Index(m.TargetFields, task)
			if taskCols[j] < 0 {
				return nil, errors.NewSchemaError(filepath.Join(dir, ManifestFile), "target_fields."+task)
			}
		}
		out.Tasks = tasks

		features := make([]map[string]int, len(featureTypes))
		shards := make([][]*FeatureShard, len(featureTypes))
		var names []string
		for k, ft := range featureTypes {
			fs, ok := m.FeatureSet(ft)
			if !ok {
				return nil, errors.NewSchemaError(filepath.Join(dir, ManifestFile), "features."+ft)
			}
			features[k] = map[string]int{}
			for si, rel := range fs.Shards {
				var sh FeatureShard
				if err := readShard(dir, rel, &sh); err != nil {
					return nil, err
				}
				if len(sh.X) != len(sh.IDs)*len(sh.Names) {
					return nil, errors.NewDimensionError("Load."+ft, len(sh.IDs)*len(sh.Names), len(sh.X), 0)
				}
				shards[k] = append(shards[k], &sh)
				for r, id := range sh.IDs {
					if _, dup := features[k][id]; !dup {
						features[k][id] = si<<32 | r
					}
				}
			}
			// column names come from the first non-empty shard
			for _, sh := range shards[k] {
				if len(sh.IDs) > 0 {
					names = append(names, sh.Names...)
					break
				}
			}
		}
		if di == 0 {
			out.FeatureNames = names
		} else if !slices.Equal(names, out.FeatureNames) {
			return nil, errors.NewSchemaError(dir, "feature names differ from "+dirs[0])
		}

		dropped, dups := 0, 0
		for _, rel := range m.TargetShards {
			var ts TargetShard
			if err := readShard(dir, rel, &ts); err != nil {
				return nil, err
			}
			nt := len(ts.Tasks)
			if len(ts.Y) != ts.Len()*nt {
				return nil, errors.NewDimensionError("Load.targets", ts.Len()*nt, len(ts.Y), 0)
			}
			for r, id := range ts.IDs {
				if seen[id] {
					dups++
					continue
				}
				row := make([]float64, 0, len(names))
				ok := true
				for k := range featureTypes {
					loc, found := features[k][id]
					if !found {
						ok = false
						break
					}
					sh := shards[k][loc>>32]
					fr := loc & (1<<32 - 1)
					d := len(sh.Names)
					row = append(row, sh.X[fr*d:(fr+1)*d]...)
				}
				if !ok {
					dropped++
					continue
				}
				seen[id] = true
				out.IDs = append(out.IDs, id)
				out.SMILES = append(out.SMILES, ts.SMILES[r])
				out.Scaffolds = append(out.Scaffolds, ts.Scaffolds[r])
				out.Splits = append(out.Splits, ts.Splits[r])
				out.X = append(out.X, row...)
				for _, c := range taskCols {
					out.Y = append(out.Y, ts.Y[r*nt+c])
				}
			}
		}
		if dropped > 0 || dups > 0 {
			logger.Warn("rows dropped while joining",
				log.DatasetKey, m.Name,
				"missing_features", dropped,
				"duplicate_ids", dups,
			)
		}
		logger.Debug("dataset loaded", log.DatasetKey, m.Name, "version", m.Version, log.SamplesKey, out.Len())
	}
	if out.Len() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "no rows after joining features and targets")
	}
	return out, nil
}

// Labelled reports whether row i has a label for task j.
func (t *Table) Labelled(i, j int) bool { return !isMissing(t.Target(i, j)) }
