package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/molpipe/core/model"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// ManifestFile is the name of the manifest inside a dataset directory.
const ManifestFile = "manifest.yaml"

const targetsDir = "targets"

type Field struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// FeatureSet describes one feature type and its shards, relative to the
// dataset directory.
type FeatureSet struct {
	Type      string   `yaml:"type"`
	NFeatures int      `yaml:"n_features"`
	Shards    []string `yaml:"shards"`
}

// Manifest is the schema of a featurized dataset directory.
type Manifest struct {
	Name       string    `yaml:"name"`
	Version    int       `yaml:"version"`
	CreatedAt  time.Time `yaml:"created_at"`
	InputFiles []string  `yaml:"input_files"`
	InputType  string    `yaml:"input_type"`

	Fields        []Field  `yaml:"fields"`
	TargetFields  []string `yaml:"target_fields"`
	FeatureFields []string `yaml:"feature_fields,omitempty"`
	IDField       string   `yaml:"id_field"`
	SmilesField   string   `yaml:"smiles_field"`
	SplitField    string   `yaml:"split_field,omitempty"`
	Threshold     *float64 `yaml:"threshold,omitempty"`

	Molecules    int          `yaml:"molecules"`
	Skipped      int          `yaml:"skipped"`
	TargetShards []string     `yaml:"target_shards"`
	Features     []FeatureSet `yaml:"features"`
}

// FeatureSet returns the entry for a feature type.
func (m *Manifest) FeatureSet(featureType string) (FeatureSet, bool) {
	for _, fs := range m.Features {
		if fs.Type == featureType {
			return fs, true
		}
	}
	return FeatureSet{}, false
}

// FeatureTypes lists the recorded feature types in manifest order.
func (m *Manifest) FeatureTypes() []string {
	out := make([]string, len(m.Features))
	for i, fs := range m.Features {
		out[i] = fs.Type
	}
	return out
}

// LoadManifest reads dir/manifest.yaml.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrapf(err, "parse manifest %s", path)
	}
	if m.Version < 1 {
		return nil, errors.NewSchemaError(path, "version")
	}
	return &m, nil
}

// Save writes the manifest into dir.
func (m *Manifest) Save(dir string) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encode manifest")
	}
	path := filepath.Join(dir, ManifestFile)
	return errors.Wrapf(os.WriteFile(path, b, 0o644), "write manifest %s", path)
}

// TargetShard holds the per-molecule identity columns and the target
// matrix (row-major, NaN for missing labels) of one input file.
type TargetShard struct {
	IDs       []string
	SMILES    []string
	Scaffolds []string
	Splits    []string
	Tasks     []string
	Y         []float64
}

func (s *TargetShard) Len() int { return len(s.IDs) }

// FeatureShard holds one feature type for the molecules of one input file.
type FeatureShard struct {
	Type  string
	IDs   []string
	Names []string
	X     []float64 // row-major len(IDs) x len(Names)
}

func shardName(kind string, i int) string {
	return filepath.Join(kind, fmt.Sprintf("shard-%04d.gob.gz", i))
}

func writeShard(dir, rel string, v any) error {
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	return model.SaveGob(v, path)
}

func readShard(dir, rel string, v any) error {
	return model.LoadGob(v, filepath.Join(dir, rel))
}
