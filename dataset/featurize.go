package dataset

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/molpipe/chem"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
	"github.com/YuminosukeSato/molpipe/pkg/log"
)

// fileResult summarizes one featurized input file.
type fileResult struct {
	molecules int
	skipped   int
	userCols  int
	grid      bool
}

// Featurize runs the featurize stage and returns the written manifest.
// Each input file becomes one shard per feature type; files are processed
// concurrently, bounded by opts.Workers.
func Featurize(ctx context.Context, opts Options) (manifest *Manifest, err error) {
	defer errors.Recover(&err, "Featurize")
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := log.GetLoggerWithName("featurize").With(log.DatasetKey, opts.Name)
	start := time.Now()

	dir := filepath.Join(opts.Out, opts.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", dir)
	}
	version := 1
	var prev *Manifest
	if m, err := LoadManifest(dir); err == nil {
		prev, version = m, m.Version+1
	}

	// Shards are written to a staging directory and swapped in only after
	// every file featurized, so a failed re-run leaves the old version intact.
	staging, err := os.MkdirTemp(dir, ".staging-")
	if err != nil {
		return nil, errors.Wrapf(err, "create staging directory in %s", dir)
	}
	defer os.RemoveAll(staging)

	results := make([]fileResult, len(opts.InputFiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, path := range opts.InputFiles {
		g.Go(func() error {
			return errors.SafeExecute("featurize "+path, func() error {
				res, err := featurizeFile(gctx, &opts, staging, i, path, logger)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m := &Manifest{
		Name:          opts.Name,
		Version:       version,
		CreatedAt:     time.Now().UTC(),
		InputFiles:    opts.InputFiles,
		InputType:     opts.InputType,
		TargetFields:  opts.TargetFields,
		FeatureFields: opts.FeatureFields,
		IDField:       opts.IDField,
		SmilesField:   opts.SmilesField,
		SplitField:    opts.SplitField,
		Threshold:     opts.Threshold,
	}
	for i, f := range opts.Fields {
		m.Fields = append(m.Fields, Field{Name: f, Type: opts.FieldTypes[i]})
	}

	n := len(opts.InputFiles)
	allGrid := true
	userCols := -1
	for _, r := range results {
		m.Molecules += r.molecules
		m.Skipped += r.skipped
		allGrid = allGrid && r.grid
		if len(opts.FeatureFields) > 0 && r.molecules > 0 {
			if userCols >= 0 && r.userCols != userCols {
				return nil, errors.NewDimensionError("Featurize.user-specified", userCols, r.userCols, 1)
			}
			userCols = r.userCols
		}
	}
	m.TargetShards = shardList(targetsDir, n)
	m.Features = []FeatureSet{
		{Type: FeatureFingerprints, NFeatures: chem.DefaultNBits, Shards: shardList(FeatureFingerprints, n)},
		{Type: FeatureDescriptors, NFeatures: len(chem.DescriptorNames), Shards: shardList(FeatureDescriptors, n)},
	}
	if len(opts.FeatureFields) > 0 {
		m.Features = append(m.Features, FeatureSet{Type: FeatureUser, NFeatures: max(userCols, 0), Shards: shardList(FeatureUser, n)})
	}
	if allGrid && m.Molecules > 0 {
		g := opts.GridSize
		m.Features = append(m.Features, FeatureSet{Type: FeatureGrid, NFeatures: chem.GridChannels * g * g * g, Shards: shardList(FeatureGrid, n)})
	}

	if err := swapShards(dir, staging, prev, m); err != nil {
		return nil, err
	}
	if err := m.Save(dir); err != nil {
		return nil, err
	}
	logger.Info("featurization complete",
		log.SamplesKey, m.Molecules,
		"skipped", m.Skipped,
		"version", m.Version,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return m, nil
}

// swapShards replaces the shard directories of prev with the staged ones
// listed in next. The old manifest is removed first so a crash midway
// never leaves a manifest pointing at missing shards; the caller writes the
// new manifest last.
func swapShards(dir, staging string, prev, next *Manifest) error {
	if err := os.Remove(filepath.Join(dir, ManifestFile)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove old manifest")
	}
	stale := []string{targetsDir, FeatureGrid}
	if prev != nil {
		stale = append(stale, prev.FeatureTypes()...)
	}
	for _, kind := range stale {
		if err := os.RemoveAll(filepath.Join(dir, kind)); err != nil {
			return errors.Wrapf(err, "remove old %s shards", kind)
		}
	}
	kinds := []string{targetsDir}
	for _, fs := range next.Features {
		kinds = append(kinds, fs.Type)
	}
	for _, kind := range kinds {
		if err := os.Rename(filepath.Join(staging, kind), filepath.Join(dir, kind)); err != nil {
			return errors.Wrapf(err, "install %s shards", kind)
		}
	}
	return nil
}

func shardList(kind string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = shardName(kind, i)
	}
	return out
}

type shardFile struct {
	kind string
	v    any
}

// featurizeFile reads one input file and writes its shards.
func featurizeFile(ctx context.Context, o *Options, dir string, idx int, path string, logger log.Logger) (fileResult, error) {
	logger = logger.With(log.FileKey, path)
	src, closer, err := openSource(path, o)
	if err != nil {
		return fileResult{}, err
	}
	defer closer.Close()

	targets := &TargetShard{Tasks: o.TargetFields}
	fps := &FeatureShard{Type: FeatureFingerprints, Names: fingerprintNames(chem.DefaultNBits)}
	desc := &FeatureShard{Type: FeatureDescriptors, Names: chem.DescriptorNames}
	user := &FeatureShard{Type: FeatureUser}
	grid := &FeatureShard{Type: FeatureGrid}
	hasGrid := true

	var res fileResult
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return fileResult{}, err
		}
		rec, err := src.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fileResult{}, err
		}

		smiles := strings.TrimSpace(rec.values[o.SmilesField])
		mol := rec.mol
		if mol == nil {
			if mol, err = chem.ParseSMILES(smiles); err != nil {
				logger.Warn("skipping molecule that failed to parse", "row", row, "smiles", smiles, "error", err.Error())
				res.skipped++
				continue
			}
		}

		y := make([]float64, len(o.TargetFields))
		for j, f := range o.TargetFields {
			v, err := parseFloat(rec.values[f])
			if err != nil {
				errors.Warn(errors.NewDataConversionWarning(f, "float", fmt.Sprintf("row %d: %q treated as missing", row, rec.values[f])))
			}
			if o.Threshold != nil {
				v = binarize(v, *o.Threshold)
			}
			y[j] = v
		}

		var userRow []float64
		for _, f := range o.FeatureFields {
			t, _ := o.fieldType(f)
			vals, err := featureValues(rec.values[f], t)
			if err != nil {
				return fileResult{}, errors.Wrapf(err, "%s row %d field %s", path, row, f)
			}
			userRow = append(userRow, vals...)
		}
		if len(o.FeatureFields) > 0 {
			if targets.Len() == 0 {
				user.Names = userFeatureNames(o, userRow, rec.values)
			} else if len(userRow) != len(user.Names) {
				return fileResult{}, errors.NewDimensionError("Featurize.user-specified", len(user.Names), len(userRow), 1)
			}
		}

		var gridRow []float64
		if hasGrid && mol.HasCoords {
			if gridRow, err = chem.VoxelGrid(mol, o.GridSize, o.GridResolution); err != nil {
				return fileResult{}, err
			}
		} else {
			hasGrid = false
			grid.X = nil
		}

		id := strings.TrimSpace(rec.values[o.IDField])
		if id == "" {
			id = smiles
		}
		targets.IDs = append(targets.IDs, id)
		targets.SMILES = append(targets.SMILES, smiles)
		targets.Scaffolds = append(targets.Scaffolds, chem.ScaffoldKey(mol))
		split := ""
		if o.SplitField != "" {
			split = strings.ToLower(strings.TrimSpace(rec.values[o.SplitField]))
		}
		targets.Splits = append(targets.Splits, split)
		targets.Y = append(targets.Y, y...)

		fps.IDs = append(fps.IDs, id)
		fps.X = append(fps.X, chem.CircularFingerprint(mol, chem.DefaultRadius, chem.DefaultNBits)...)
		desc.IDs = append(desc.IDs, id)
		desc.X = append(desc.X, chem.Descriptors(mol)...)
		user.IDs = append(user.IDs, id)
		user.X = append(user.X, userRow...)
		if hasGrid {
			grid.IDs = append(grid.IDs, id)
			grid.X = append(grid.X, gridRow...)
		}
	}
	res.molecules = targets.Len()
	res.userCols = len(user.Names)

	shards := []shardFile{
		{targetsDir, targets},
		{FeatureFingerprints, fps},
		{FeatureDescriptors, desc},
	}
	if len(o.FeatureFields) > 0 {
		shards = append(shards, shardFile{FeatureUser, user})
	}
	if hasGrid && res.molecules > 0 {
		g := o.GridSize
		grid.Names = gridNames(chem.GridChannels * g * g * g)
		shards = append(shards, shardFile{FeatureGrid, grid})
		res.grid = true
	}
	for _, s := range shards {
		if err := writeShard(dir, shardName(s.kind, idx), s.v); err != nil {
			return fileResult{}, err
		}
	}

	logger.Info("shard written", log.SamplesKey, res.molecules, "skipped", res.skipped)
	return res, nil
}

func fingerprintNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("fp_%04d", i)
	}
	return out
}

func gridNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("voxel_%05d", i)
	}
	return out
}

// userFeatureNames names scalar fields after the field and list fields as
// field[i].
func userFeatureNames(o *Options, first []float64, values map[string]string) []string {
	names := make([]string, 0, len(first))
	for _, f := range o.FeatureFields {
		t, _ := o.fieldType(f)
		if t == TypeFloat {
			names = append(names, f)
			continue
		}
		vals, _ := featureValues(values[f], t)
		for k := range vals {
			names = append(names, fmt.Sprintf("%s[%d]", f, k))
		}
	}
	return names
}

// isMissing reports a NaN label.
func isMissing(v float64) bool { return math.IsNaN(v) }
