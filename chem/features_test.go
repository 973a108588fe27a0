package chem

import (
	"math"
	"slices"
	"testing"
)

func TestCircularFingerprint(t *testing.T) {
	a := CircularFingerprint(mustParse(t, "CCO"), DefaultRadius, DefaultNBits)
	b := CircularFingerprint(mustParse(t, "OCC"), DefaultRadius, DefaultNBits)
	if len(a) != DefaultNBits {
		t.Fatalf("len = %d, want %d", len(a), DefaultNBits)
	}
	if !slices.Equal(a, b) {
		t.Error("fingerprint depends on atom order")
	}

	on := 0
	for _, v := range a {
		if v != 0 && v != 1 {
			t.Fatalf("non-binary bit %v", v)
		}
		if v == 1 {
			on++
		}
	}
	if on == 0 || on > 9 {
		// three atoms, three iterations: at most nine identifiers
		t.Errorf("bits set = %d, want 1..9", on)
	}

	c := CircularFingerprint(mustParse(t, "c1ccccc1O"), DefaultRadius, DefaultNBits)
	if slices.Equal(a, c) {
		t.Error("ethanol and phenol share a fingerprint")
	}
}

func TestCircularFingerprintRadiusZero(t *testing.T) {
	// every benzene carbon is equivalent
	fp := CircularFingerprint(mustParse(t, "c1ccccc1"), 0, 2048)
	on := 0
	for _, v := range fp {
		if v == 1 {
			on++
		}
	}
	if on != 1 {
		t.Errorf("bits set = %d, want 1", on)
	}
}

func TestDescriptors(t *testing.T) {
	idx := func(name string) int { return slices.Index(DescriptorNames, name) }

	tests := []struct {
		smiles string
		want   map[string]float64
	}{
		{"CCO", map[string]float64{
			"MolWt":               46.069,
			"HeavyAtomCount":      3,
			"NumHeteroatoms":      1,
			"NumHDonors":          1,
			"NumHAcceptors":       1,
			"NumRotatableBonds":   0,
			"RingCount":           0,
			"FractionCSP3":        1,
			"NHOHCount":           1,
			"NOCount":             1,
			"FormalCharge":        0,
			"NumValenceElectrons": 20,
		}},
		{"c1ccccc1", map[string]float64{
			"MolWt":               78.114,
			"HeavyAtomCount":      6,
			"RingCount":           1,
			"NumAromaticRings":    1,
			"FractionCSP3":        0,
			"NumValenceElectrons": 30,
		}},
		{"CCCC", map[string]float64{
			"NumRotatableBonds": 1,
		}},
		{"CC(=O)[O-]", map[string]float64{
			"FormalCharge": -1,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.smiles, func(t *testing.T) {
			d := Descriptors(mustParse(t, tt.smiles))
			if len(d) != len(DescriptorNames) {
				t.Fatalf("len = %d, want %d", len(d), len(DescriptorNames))
			}
			for name, want := range tt.want {
				if got := d[idx(name)]; math.Abs(got-want) > 1e-6 {
					t.Errorf("%s = %v, want %v", name, got, want)
				}
			}
		})
	}
}

func TestVoxelGrid(t *testing.T) {
	m := mustParse(t, "CO")
	if _, err := VoxelGrid(m, 8, 1); err == nil {
		t.Fatal("expected error without coordinates")
	}

	m.HasCoords = true
	m.Atoms[0].Coords = [3]float64{-0.7, 0, 0}
	m.Atoms[1].Coords = [3]float64{0.7, 0, 0}
	size := 8
	grid, err := VoxelGrid(m, size, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(grid) != GridChannels*size*size*size {
		t.Fatalf("len = %d", len(grid))
	}
	at := func(c, x, y, z int) float64 {
		return grid[c*size*size*size+x*size*size+y*size+z]
	}
	// centroid at origin, half box 4 voxels: -0.7 -> 3, 0.7 -> 4
	if at(0, 3, 4, 4) != 1 {
		t.Error("carbon not in channel 0 at (3,4,4)")
	}
	if at(2, 4, 4, 4) != 1 {
		t.Error("oxygen not in channel 2 at (4,4,4)")
	}
	if floatsSum(grid) != 2 {
		t.Errorf("sum = %v, want 2", floatsSum(grid))
	}

	if _, err := VoxelGrid(m, 0, 1); err == nil {
		t.Error("expected error for zero size")
	}
}

func floatsSum(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s
}
