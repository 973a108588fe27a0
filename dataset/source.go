package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/YuminosukeSato/molpipe/chem"
	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// rawRecord is one input row before typing. mol is set for SDF input.
type rawRecord struct {
	values map[string]string
	mol    *chem.Molecule
}

type recordSource interface {
	next() (rawRecord, error)
}

// openSource opens path for the configured input type. Files ending in .gz
// are decompressed transparently.
func openSource(path string, o *Options) (recordSource, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open %s", path)
	}
	var r io.Reader = bufio.NewReader(f)
	closer := io.Closer(f)
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			f.Close()
			return nil, nil, errors.Wrapf(err, "open gzip %s", path)
		}
		r = zr
		closer = multiCloser{zr, f}
	}

	var src recordSource
	switch o.InputType {
	case InputCSV:
		src, err = newCSVSource(r, o)
	case InputSDF:
		src = &sdfSource{rd: chem.NewSDFReader(r), smilesField: o.SmilesField, idField: o.IDField}
	default:
		src, err = newJSONSource(r)
	}
	if err != nil {
		closer.Close()
		return nil, nil, errors.Wrapf(err, "read %s", path)
	}
	return src, closer, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type csvSource struct {
	r      *csv.Reader
	header []string
}

func newCSVSource(r io.Reader, o *Options) (*csvSource, error) {
	cr := csv.NewReader(r)
	cr.Comma = []rune(o.Delimiter)[0]
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	for _, f := range o.usedFields() {
		found := false
		for _, h := range header {
			if h == f {
				found = true
				break
			}
		}
		if !found {
			return nil, errors.NewSchemaError("csv header", f)
		}
	}
	return &csvSource{r: cr, header: header}, nil
}

func (s *csvSource) next() (rawRecord, error) {
	row, err := s.r.Read()
	if err == io.EOF {
		return rawRecord{}, io.EOF
	}
	if err != nil {
		return rawRecord{}, errors.Wrap(err, "read csv row")
	}
	values := make(map[string]string, len(s.header))
	for i, h := range s.header {
		if i < len(row) {
			values[h] = row[i]
		}
	}
	return rawRecord{values: values}, nil
}

// jsonSource reads a records-oriented dataframe export: either a JSON array
// of objects or one object per line.
type jsonSource struct {
	dec   *json.Decoder
	array bool
}

func newJSONSource(r io.Reader) (*jsonSource, error) {
	br := bufio.NewReader(r)
	for {
		c, _, err := br.ReadRune()
		if err == io.EOF {
			return &jsonSource{dec: json.NewDecoder(br)}, nil
		}
		if err != nil {
			return nil, err
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\ufeff' {
			continue
		}
		if err := br.UnreadRune(); err != nil {
			return nil, err
		}
		dec := json.NewDecoder(br)
		dec.UseNumber()
		if c == '[' {
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return &jsonSource{dec: dec, array: true}, nil
		}
		return &jsonSource{dec: dec}, nil
	}
}

func (s *jsonSource) next() (rawRecord, error) {
	if s.array && !s.dec.More() {
		return rawRecord{}, io.EOF
	}
	var obj map[string]any
	if err := s.dec.Decode(&obj); err != nil {
		if err == io.EOF {
			return rawRecord{}, io.EOF
		}
		return rawRecord{}, errors.Wrap(err, "decode json record")
	}
	values := make(map[string]string, len(obj))
	for k, v := range obj {
		values[k] = jsonScalar(v)
	}
	return rawRecord{values: values}, nil
}

type sdfSource struct {
	rd          *chem.SDFReader
	smilesField string
	idField     string
}

// next exposes data items as fields. Records without a SMILES item get the
// canonical SMILES of their molecule block, and a missing id falls back to
// the title line.
func (s *sdfSource) next() (rawRecord, error) {
	rec, err := s.rd.Next()
	if err != nil {
		return rawRecord{}, err
	}
	values := rec.Props
	if strings.TrimSpace(values[s.smilesField]) == "" {
		values[s.smilesField] = chem.CanonicalSMILES(rec.Mol)
	}
	if strings.TrimSpace(values[s.idField]) == "" {
		if rec.Name != "" {
			values[s.idField] = rec.Name
		} else {
			values[s.idField] = values[s.smilesField]
		}
	}
	return rawRecord{values: values, mol: rec.Mol}, nil
}
