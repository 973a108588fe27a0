package chem

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func atomLine(x, y, z float64, sym string, chgCode int) string {
	return fmt.Sprintf("%10.4f%10.4f%10.4f %-3s 0%3d  0  0  0  0  0  0  0  0  0  0", x, y, z, sym, chgCode)
}

func bondLine(a, b, order int) string {
	return fmt.Sprintf("%3d%3d%3d  0", a, b, order)
}

func molBlock(name string, atoms, bonds []string, extra ...string) string {
	lines := []string{name, "  molpipe", ""}
	lines = append(lines, fmt.Sprintf("%3d%3d  0  0  0  0  0  0  0  0999 V2000", len(atoms), len(bonds)))
	lines = append(lines, atoms...)
	lines = append(lines, bonds...)
	lines = append(lines, extra...)
	lines = append(lines, "M  END")
	return strings.Join(lines, "\n") + "\n"
}

func testSDF() string {
	ethanol := molBlock("ethanol",
		[]string{
			atomLine(-1.2, 0, 0, "C", 0),
			atomLine(0, 0.5, 0, "C", 0),
			atomLine(1.2, 0, 0, "O", 0),
			atomLine(1.9, 0.6, 0, "H", 0),
		},
		[]string{bondLine(1, 2, 1), bondLine(2, 3, 1), bondLine(3, 4, 1)},
	) + "> <smiles>\nCCO\n\n> <activity>  (MOL-1)\n0.75\n\n$$$$\n"

	acetate := molBlock("acetate",
		[]string{
			atomLine(0, 0, 0, "C", 0),
			atomLine(1, 0, 0, "C", 0),
			atomLine(2, 1, 0, "O", 0),
			atomLine(2, -1, 0, "O", 3), // overridden by M  CHG
		},
		[]string{bondLine(1, 2, 1), bondLine(2, 3, 2), bondLine(2, 4, 1)},
		"M  CHG  1   4  -1",
	) + "> <activity>\n1.5\n\n$$$$\n"
	return ethanol + acetate
}

func TestReadSDF(t *testing.T) {
	recs, err := ReadSDF(strings.NewReader(testSDF()))
	if err != nil {
		t.Fatalf("ReadSDF: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}

	eth := recs[0]
	if eth.Name != "ethanol" {
		t.Errorf("name = %q", eth.Name)
	}
	if eth.Props["smiles"] != "CCO" || eth.Props["activity"] != "0.75" {
		t.Errorf("props = %v", eth.Props)
	}
	if eth.Mol.NumAtoms() != 3 {
		t.Fatalf("explicit H not folded: %d atoms", eth.Mol.NumAtoms())
	}
	if !eth.Mol.HasCoords {
		t.Error("HasCoords = false")
	}
	if got, want := CanonicalSMILES(eth.Mol), CanonicalSMILES(mustParse(t, "CCO")); got != want {
		t.Errorf("canonical = %q, want %q", got, want)
	}

	ac := recs[1]
	if got, want := CanonicalSMILES(ac.Mol), CanonicalSMILES(mustParse(t, "CC(=O)[O-]")); got != want {
		t.Errorf("canonical = %q, want %q", got, want)
	}
	if ac.Props["activity"] != "1.5" {
		t.Errorf("activity = %q", ac.Props["activity"])
	}
}

func TestReadSDFGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.WriteString(zw, testSDF()); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	zr, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := ReadSDF(zr)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("records = %d, want 2", len(recs))
	}
}

func TestReadSDFErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"bad counts", "t\np\n\nxx\n"},
		{"truncated atoms", molBlock("t", []string{atomLine(0, 0, 0, "C", 0)}, nil)[:40]},
		{"bad bond", molBlock("t", []string{atomLine(0, 0, 0, "C", 0)}, []string{bondLine(1, 5, 1)})},
		{"unknown element", molBlock("t", []string{atomLine(0, 0, 0, "Qq", 0)}, nil)},
		{"v3000", "t\np\n\n  0  0  0     0  0            999 V3000\n"},
		{"missing end", strings.TrimSuffix(molBlock("t", []string{atomLine(0, 0, 0, "C", 0)}, nil), "M  END\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadSDF(strings.NewReader(tt.in)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
