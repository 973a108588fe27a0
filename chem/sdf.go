package chem

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// Record is one SDF entry: the molecule, its title line and data items.
type Record struct {
	Name  string
	Mol   *Molecule
	Props map[string]string
}

// SDFReader streams V2000 records. Explicit hydrogen atoms are folded into
// the hydrogen count of their heavy neighbour.
type SDFReader struct {
	sc     *bufio.Scanner
	line   int
	record int
}

func NewSDFReader(r io.Reader) *SDFReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &SDFReader{sc: sc}
}

// ReadSDF reads every record from r. Wrap gzip input before calling.
func ReadSDF(r io.Reader) ([]Record, error) {
	rd := NewSDFReader(r)
	var out []Record
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

func (r *SDFReader) next() (string, bool) {
	if !r.sc.Scan() {
		return "", false
	}
	r.line++
	return strings.TrimRight(r.sc.Text(), "\r"), true
}

func (r *SDFReader) fail(reason string) error {
	return errors.NewValueError("ReadSDF",
		"record "+strconv.Itoa(r.record)+", line "+strconv.Itoa(r.line)+": "+reason)
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (r *SDFReader) Next() (Record, error) {
	// header: title, program, comment, counts. Trailing blank lines at the
	// end of the input are not a record.
	header := make([]string, 0, 4)
	blank := true
	for len(header) < 4 {
		line, ok := r.next()
		if !ok {
			if err := r.sc.Err(); err != nil {
				return Record{}, errors.Wrap(err, "read SDF")
			}
			if blank {
				return Record{}, io.EOF
			}
			r.record++
			return Record{}, r.fail("truncated header")
		}
		blank = blank && strings.TrimSpace(line) == ""
		header = append(header, line)
	}
	r.record++
	title, counts := header[0], header[3]
	if strings.Contains(counts, "V3000") {
		return Record{}, r.fail("V3000 molfiles are not supported")
	}
	nAtoms, err1 := fixedInt(counts, 0, 3)
	nBonds, err2 := fixedInt(counts, 3, 6)
	if err1 != nil || err2 != nil {
		return Record{}, r.fail("bad counts line")
	}

	mol := &Molecule{}
	for i := 0; i < nAtoms; i++ {
		line, ok := r.next()
		if !ok {
			return Record{}, r.fail("truncated atom block")
		}
		at, err := parseAtomLine(line)
		if err != nil {
			return Record{}, r.fail(err.Error())
		}
		if at.Coords != [3]float64{} {
			mol.HasCoords = true
		}
		mol.addAtom(at)
	}
	for i := 0; i < nBonds; i++ {
		line, ok := r.next()
		if !ok {
			return Record{}, r.fail("truncated bond block")
		}
		a, e1 := fixedInt(line, 0, 3)
		b, e2 := fixedInt(line, 3, 6)
		t, e3 := fixedInt(line, 6, 9)
		if e1 != nil || e2 != nil || e3 != nil || a < 1 || b < 1 || a > nAtoms || b > nAtoms {
			return Record{}, r.fail("bad bond line")
		}
		if t < 1 || t > 4 {
			return Record{}, r.fail("unsupported bond type " + strconv.Itoa(t))
		}
		order := BondOrder(t)
		if order == Aromatic {
			mol.Atoms[a-1].Aromatic = true
			mol.Atoms[b-1].Aromatic = true
		}
		mol.addBond(a-1, b-1, order)
	}

	// properties block up to M  END
	chgSeen := false
	for {
		line, ok := r.next()
		if !ok {
			return Record{}, r.fail("missing M  END")
		}
		if strings.HasPrefix(line, "M  END") {
			break
		}
		if strings.HasPrefix(line, "M  CHG") || strings.HasPrefix(line, "M  ISO") {
			isCharge := strings.HasPrefix(line, "M  CHG")
			if isCharge && !chgSeen {
				// M  CHG supersedes the atom block charges.
				for i := range mol.Atoms {
					mol.Atoms[i].Charge = 0
				}
				chgSeen = true
			}
			if err := applyPropertyLine(mol, line, isCharge); err != nil {
				return Record{}, r.fail(err.Error())
			}
		}
	}

	rec := Record{Name: strings.TrimSpace(title), Props: map[string]string{}}
	var key string
	var value []string
	inItem := false
	for {
		line, ok := r.next()
		if !ok {
			break
		}
		if strings.HasPrefix(line, "$$$$") {
			break
		}
		if strings.HasPrefix(line, ">") {
			key = dataKey(line)
			value = value[:0]
			inItem = true
			continue
		}
		if !inItem {
			continue
		}
		if strings.TrimSpace(line) == "" {
			rec.Props[key] = strings.Join(value, "\n")
			inItem = false
			continue
		}
		value = append(value, line)
	}
	if inItem {
		rec.Props[key] = strings.Join(value, "\n")
	}

	rec.Mol = foldHydrogens(mol)
	return rec, nil
}

func fixedInt(line string, from, to int) (int, error) {
	if len(line) < to {
		if len(line) <= from {
			return 0, errors.NewValueError("fixedInt", "line too short")
		}
		to = len(line)
	}
	return strconv.Atoi(strings.TrimSpace(line[from:to]))
}

// atom block charge codes
var chargeCodes = map[int]int{1: 3, 2: 2, 3: 1, 4: 0, 5: -1, 6: -2, 7: -3}

func parseAtomLine(line string) (Atom, error) {
	if len(line) < 34 {
		return Atom{}, errors.NewValueError("parseAtomLine", "atom line too short")
	}
	var at Atom
	for k := 0; k < 3; k++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(line[k*10:k*10+10]), 64)
		if err != nil {
			return Atom{}, errors.NewValueError("parseAtomLine", "bad coordinate")
		}
		at.Coords[k] = v
	}
	at.Symbol = strings.TrimSpace(line[31:34])
	if at.Symbol == "D" || at.Symbol == "T" {
		at.Symbol = "H"
	}
	el, ok := elements[at.Symbol]
	if !ok {
		return Atom{}, errors.NewValueError("parseAtomLine", "unknown element "+at.Symbol)
	}
	at.Number = el.Number
	if code, err := fixedInt(line, 36, 39); err == nil {
		at.Charge = chargeCodes[code]
	}
	return at, nil
}

func applyPropertyLine(mol *Molecule, line string, charge bool) error {
	f := strings.Fields(line)
	if len(f) < 3 {
		return errors.NewValueError("applyPropertyLine", "bad property line")
	}
	n, err := strconv.Atoi(f[2])
	if err != nil || len(f) < 3+2*n {
		return errors.NewValueError("applyPropertyLine", "bad property count")
	}
	for i := 0; i < n; i++ {
		a, e1 := strconv.Atoi(f[3+2*i])
		v, e2 := strconv.Atoi(f[4+2*i])
		if e1 != nil || e2 != nil || a < 1 || a > len(mol.Atoms) {
			return errors.NewValueError("applyPropertyLine", "bad property entry")
		}
		if charge {
			mol.Atoms[a-1].Charge = v
		} else {
			mol.Atoms[a-1].Isotope = v
		}
	}
	return nil
}

// dataKey extracts NAME from a "> <NAME>" data header.
func dataKey(line string) string {
	i := strings.IndexByte(line, '<')
	j := strings.LastIndexByte(line, '>')
	if i < 0 || j <= i {
		return strings.TrimSpace(strings.TrimPrefix(line, ">"))
	}
	return line[i+1 : j]
}

// chargedH is implicitH with the charge folded into the default valence:
// N+ and O+ gain a bond, O- and N- lose one, C+ and C- drop to three.
func (m *Molecule) chargedH(a int) int {
	at := m.Atoms[a]
	if at.Charge == 0 {
		return m.implicitH(a)
	}
	el := elements[at.Symbol]
	if len(el.Defaults) == 0 || at.Aromatic {
		return 0
	}
	v := el.Defaults[0]
	if el.Valence >= 5 {
		v += at.Charge
	} else {
		v -= max(at.Charge, -at.Charge)
	}
	h := v - m.bondValence(a)
	return max(h, 0)
}

// foldHydrogens computes implicit hydrogens on the full graph, then drops
// hydrogen atoms; Subgraph adds one H per removed H bond.
func foldHydrogens(mol *Molecule) *Molecule {
	var heavy []int
	for i := range mol.Atoms {
		if mol.Atoms[i].Number != 1 {
			heavy = append(heavy, i)
			mol.Atoms[i].HCount = mol.chargedH(i)
		}
	}
	if len(heavy) == 0 {
		return mol
	}
	if len(heavy) == len(mol.Atoms) {
		return mol
	}
	return mol.Subgraph(heavy)
}
