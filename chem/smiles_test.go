package chem

import (
	"testing"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

func TestParseSMILES(t *testing.T) {
	tests := []struct {
		name      string
		smiles    string
		atoms     int
		bonds     int
		hydrogens int
		charge    int
	}{
		{"ethanol", "CCO", 3, 2, 6, 0},
		{"benzene", "c1ccccc1", 6, 6, 6, 0},
		{"acetic acid", "CC(=O)O", 4, 3, 4, 0},
		{"acetonitrile", "CC#N", 3, 2, 3, 0},
		{"pyrrole", "c1cc[nH]c1", 5, 5, 5, 0},
		{"furan", "c1ccoc1", 5, 5, 4, 0},
		{"ammonium", "[NH4+]", 1, 0, 4, 1},
		{"acetate", "CC(=O)[O-]", 4, 3, 3, -1},
		{"salt", "[Na+].[Cl-]", 2, 0, 0, 0},
		{"chlorobenzene", "Clc1ccccc1", 7, 7, 5, 0},
		{"two digit ring", "C%10CCCCC%10", 6, 6, 12, 0},
		{"stereo ignored", "F/C=C/F", 4, 3, 2, 0},
		{"chiral", "N[C@@H](C)C(=O)O", 6, 5, 7, 0},
		{"isotope", "[13CH4]", 1, 0, 4, 0},
		{"pyridine", "c1ccncc1", 6, 6, 5, 0},
		{"sulfoxide", "CS(=O)C", 4, 3, 6, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseSMILES(tt.smiles)
			if err != nil {
				t.Fatalf("ParseSMILES(%q): %v", tt.smiles, err)
			}
			if m.NumAtoms() != tt.atoms {
				t.Errorf("atoms = %d, want %d", m.NumAtoms(), tt.atoms)
			}
			if len(m.Bonds) != tt.bonds {
				t.Errorf("bonds = %d, want %d", len(m.Bonds), tt.bonds)
			}
			h, q := 0, 0
			for _, a := range m.Atoms {
				h += a.HCount
				q += a.Charge
			}
			if h != tt.hydrogens {
				t.Errorf("hydrogens = %d, want %d", h, tt.hydrogens)
			}
			if q != tt.charge {
				t.Errorf("charge = %d, want %d", q, tt.charge)
			}
		})
	}
}

func TestParseSMILESIsotope(t *testing.T) {
	m, err := ParseSMILES("[13CH4]")
	if err != nil {
		t.Fatal(err)
	}
	if m.Atoms[0].Isotope != 13 {
		t.Errorf("isotope = %d, want 13", m.Atoms[0].Isotope)
	}
}

func TestParseSMILESErrors(t *testing.T) {
	tests := []struct {
		name   string
		smiles string
	}{
		{"empty", ""},
		{"unclosed branch", "CC(C"},
		{"extra close", "CC)C"},
		{"unclosed ring", "C1CC"},
		{"unknown organic", "CXC"},
		{"unknown element", "[Xx]"},
		{"unterminated bracket", "[CH3"},
		{"bad percent", "C%1CC"},
		{"dangling bond", "CC="},
		{"double bond symbols", "C==C"},
		{"leading branch", "(C)C"},
		{"self ring", "C11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSMILES(tt.smiles)
			if err == nil {
				t.Fatalf("ParseSMILES(%q) succeeded, want error", tt.smiles)
			}
			var se *SMILESError
			if !errors.As(err, &se) {
				t.Fatalf("error %T is not a *SMILESError", err)
			}
		})
	}
}

func TestRings(t *testing.T) {
	tests := []struct {
		smiles    string
		rings     int
		aromatic  int
		ringAtoms int
	}{
		{"CCO", 0, 0, 0},
		{"C1CCCCC1", 1, 0, 6},
		{"c1ccccc1", 1, 1, 6},
		{"c1ccc2ccccc2c1", 2, 2, 10},
		{"c1ccccc1-c1ccccc1", 2, 2, 12},
		{"C1CC2CCC1C2", 2, 0, 7},
	}

	for _, tt := range tests {
		t.Run(tt.smiles, func(t *testing.T) {
			m, err := ParseSMILES(tt.smiles)
			if err != nil {
				t.Fatal(err)
			}
			if got := m.RingCount(); got != tt.rings {
				t.Errorf("RingCount = %d, want %d", got, tt.rings)
			}
			if got := len(m.Rings()); got != tt.rings {
				t.Errorf("len(Rings) = %d, want %d", got, tt.rings)
			}
			if got := m.AromaticRingCount(); got != tt.aromatic {
				t.Errorf("AromaticRingCount = %d, want %d", got, tt.aromatic)
			}
			n := 0
			for a := range m.Atoms {
				if m.IsRingAtom(a) {
					n++
				}
			}
			if n != tt.ringAtoms {
				t.Errorf("ring atoms = %d, want %d", n, tt.ringAtoms)
			}
		})
	}
}

func TestBiphenylLinkerIsNotRingBond(t *testing.T) {
	m, err := ParseSMILES("c1ccccc1-c1ccccc1")
	if err != nil {
		t.Fatal(err)
	}
	bi := m.BondBetween(5, 6)
	if bi < 0 {
		t.Fatal("linker bond not found")
	}
	if m.IsRingBond(bi) {
		t.Error("biphenyl linker reported as ring bond")
	}
}
