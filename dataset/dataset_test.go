package dataset

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/molpipe/chem"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

const testCSV = `id,smiles,activity,logp,split
m1,CCO,0.2,-0.1,train
m2,c1ccccc1O,0.9,1.5,train
m3,not-a-smiles,0.5,0.0,test
m4,CC(=O)O,,0.2,test
m5,c1ccccc1CC(=O)O,0.7,1.4,train
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func csvOptions(t *testing.T, inputs ...string) Options {
	opts := DefaultOptions()
	opts.Name = "toy"
	opts.Out = t.TempDir()
	opts.InputFiles = inputs
	opts.Fields = []string{"id", "smiles", "activity", "logp", "split"}
	opts.FieldTypes = []string{"string", "string", "float", "float", "string"}
	opts.TargetFields = []string{"activity"}
	opts.IDField = "id"
	opts.SplitField = "split"
	opts.Workers = 2
	return opts
}

func TestFeaturizeFieldTypeMismatchFailsBeforeIO(t *testing.T) {
	opts := csvOptions(t, "/does/not/exist.csv")
	opts.FieldTypes = opts.FieldTypes[:2]

	_, err := Featurize(context.Background(), opts)
	require.Error(t, err)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	_, statErr := os.Stat(filepath.Join(opts.Out, opts.Name))
	assert.True(t, os.IsNotExist(statErr), "output directory must not be created")
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
	}{
		{"unknown input type", func(o *Options) { o.InputType = "parquet" }},
		{"target not declared", func(o *Options) { o.TargetFields = []string{"pic50"} }},
		{"string feature", func(o *Options) { o.FeatureFields = []string{"split"} }},
		{"bad delimiter", func(o *Options) { o.Delimiter = ";;" }},
		{"unknown field type", func(o *Options) { o.FieldTypes[0] = "int" }},
		{"no name", func(o *Options) { o.Name = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := csvOptions(t, "x.csv")
			tt.mutate(&o)
			assert.Error(t, o.Validate())
		})
	}

	o := csvOptions(t, "x.csv")
	o.IDField = ""
	require.NoError(t, o.Validate())
	assert.Equal(t, "smiles", o.IDField)
}

func TestFeaturizeCSV(t *testing.T) {
	in := writeFile(t, t.TempDir(), "toy.csv", testCSV)
	opts := csvOptions(t, in)
	opts.FeatureFields = []string{"logp"}

	m, err := Featurize(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, 4, m.Molecules)
	assert.Equal(t, 1, m.Skipped)
	assert.Equal(t, []string{FeatureFingerprints, FeatureDescriptors, FeatureUser}, m.FeatureTypes())

	dir := filepath.Join(opts.Out, opts.Name)
	loaded, err := LoadManifest(dir)
	require.NoError(t, err)
	if diff := cmp.Diff(m, loaded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("manifest changed on reload (-written +loaded):\n%s", diff)
	}

	table, err := Load([]string{dir}, []string{FeatureDescriptors, FeatureUser}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m4", "m5"}, table.IDs)
	assert.Equal(t, []string{"activity"}, table.Tasks)
	assert.Len(t, table.FeatureNames, len(chem.DescriptorNames)+1)
	assert.Equal(t, "logp", table.FeatureNames[len(table.FeatureNames)-1])
	assert.InDelta(t, 1.5, table.Row(1)[len(chem.DescriptorNames)], 1e-12)
	assert.True(t, math.IsNaN(table.Target(2, 0)), "missing label must be NaN")
	assert.False(t, table.Labelled(2, 0))
	assert.Equal(t, "train", table.Splits[0])
	assert.Equal(t, "c1ccccc1", table.Scaffolds[1])
	assert.Equal(t, "", table.Scaffolds[0])
}

func TestFeaturizeThresholdAndVersionBump(t *testing.T) {
	in := writeFile(t, t.TempDir(), "toy.csv", testCSV)
	opts := csvOptions(t, in)
	th := 0.5
	opts.Threshold = &th

	_, err := Featurize(context.Background(), opts)
	require.NoError(t, err)
	m, err := Featurize(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Version)

	table, err := Load([]string{filepath.Join(opts.Out, opts.Name)}, []string{FeatureFingerprints}, nil)
	require.NoError(t, err)
	got := []float64{table.Target(0, 0), table.Target(1, 0), table.Target(3, 0)}
	assert.Equal(t, []float64{0, 1, 1}, got)
	assert.True(t, math.IsNaN(table.Target(2, 0)))
	assert.Len(t, table.FeatureNames, chem.DefaultNBits)
}

func TestFeaturizeFailedRerunKeepsPreviousVersion(t *testing.T) {
	src := t.TempDir()
	good := writeFile(t, src, "toy.csv", testCSV)
	badCell := writeFile(t, src, "bad.csv", "id,smiles,activity,logp,split\nb1,CCN,0.1,notanumber,train\n")

	tests := []struct {
		name   string
		inputs []string
	}{
		{"unparsable feature cell", []string{badCell}},
		{"missing second file", []string{good, filepath.Join(src, "gone.csv")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := csvOptions(t, good)
			opts.FeatureFields = []string{"logp"}
			first, err := Featurize(context.Background(), opts)
			require.NoError(t, err)

			opts.InputFiles = tt.inputs
			_, err = Featurize(context.Background(), opts)
			require.Error(t, err)

			dir := filepath.Join(opts.Out, opts.Name)
			m, err := LoadManifest(dir)
			require.NoError(t, err)
			assert.Equal(t, first.Version, m.Version)

			table, err := Load([]string{dir}, []string{FeatureFingerprints, FeatureUser}, nil)
			require.NoError(t, err, "previous shards must survive a failed re-run")
			assert.Equal(t, []string{"m1", "m2", "m4", "m5"}, table.IDs)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			for _, e := range entries {
				assert.False(t, strings.HasPrefix(e.Name(), ".staging-"), "staging directory left behind: %s", e.Name())
			}
		})
	}
}

func TestFeaturizeMultipleFilesAndJSON(t *testing.T) {
	src := t.TempDir()
	a := writeFile(t, src, "a.json", `[{"id":"j1","smiles":"CCN","activity":1.5,"logp":0.1,"split":"train"},
{"id":"j2","smiles":"CCCl","activity":2,"logp":null,"split":"test"}]`)
	b := writeFile(t, src, "b.jsonl", `{"id":"j3","smiles":"c1ccncc1","activity":0.3,"logp":0.6,"split":"train"}
{"id":"j4","smiles":"C1CCCCC1","activity":"NaN","logp":3.4,"split":"test"}
`)
	opts := csvOptions(t, a, b)
	opts.InputType = InputPandas

	m, err := Featurize(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Molecules)
	assert.Len(t, m.TargetShards, 2)

	table, err := Load([]string{filepath.Join(opts.Out, opts.Name)}, []string{FeatureDescriptors}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"j1", "j2", "j3", "j4"}, table.IDs)
	assert.Equal(t, 2.0, table.Target(1, 0))
	assert.True(t, math.IsNaN(table.Target(3, 0)))
}

func TestLoadUnknownFeatureType(t *testing.T) {
	in := writeFile(t, t.TempDir(), "toy.csv", testCSV)
	opts := csvOptions(t, in)
	_, err := Featurize(context.Background(), opts)
	require.NoError(t, err)

	_, err = Load([]string{filepath.Join(opts.Out, opts.Name)}, []string{FeatureGrid}, nil)
	require.Error(t, err)
	var se *errors.SchemaError
	assert.True(t, errors.As(err, &se))

	_, err = Load([]string{filepath.Join(opts.Out, opts.Name)}, []string{FeatureFingerprints}, []string{"pic50"})
	assert.Error(t, err)
}

func TestFeaturizeSDFWithGrid(t *testing.T) {
	sdf := strings.Join([]string{
		"methanol", "  molpipe", "",
		"  2  1  0  0  0  0  0  0  0  0999 V2000",
		"   -0.7000    0.0000    0.0000 C   0  0  0  0  0  0  0  0  0  0  0  0",
		"    0.7000    0.0000    0.0000 O   0  0  0  0  0  0  0  0  0  0  0  0",
		"  1  2  1  0",
		"M  END",
		"> <activity>", "3.1", "",
		"$$$$", "",
	}, "\n")
	in := writeFile(t, t.TempDir(), "mols.sdf", sdf)

	opts := DefaultOptions()
	opts.Name = "sdf"
	opts.Out = t.TempDir()
	opts.InputFiles = []string{in}
	opts.InputType = InputSDF
	opts.Fields = []string{"activity"}
	opts.FieldTypes = []string{"float"}
	opts.TargetFields = []string{"activity"}
	opts.GridSize = 4

	m, err := Featurize(context.Background(), opts)
	require.NoError(t, err)
	fs, ok := m.FeatureSet(FeatureGrid)
	require.True(t, ok, "grid feature expected for 3D input")
	assert.Equal(t, chem.GridChannels*64, fs.NFeatures)

	table, err := Load([]string{filepath.Join(opts.Out, opts.Name)}, []string{FeatureGrid}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"CO"}, table.SMILES)
	assert.Equal(t, []string{"CO"}, table.IDs)
	sum := 0.0
	for _, v := range table.Row(0) {
		sum += v
	}
	assert.Equal(t, 2.0, sum)
}

func TestParseFloatList(t *testing.T) {
	tests := []struct {
		in   string
		want []float64
	}{
		{"[1, 2, 3]", []float64{1, 2, 3}},
		{"1;2;3", []float64{1, 2, 3}},
		{"1 2 3", []float64{1, 2, 3}},
		{"[1.5,-2]", []float64{1.5, -2}},
	}
	for _, tt := range tests {
		got, err := parseFloatList(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := parseFloatList("[a, b]")
	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, parseStringList("['a', 'b']"))
}

func TestBinarize(t *testing.T) {
	assert.Equal(t, 1.0, binarize(0.6, 0.5))
	assert.Equal(t, 0.0, binarize(0.5, 0.5))
	assert.True(t, math.IsNaN(binarize(math.NaN(), 0.5)))
}
