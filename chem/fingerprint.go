package chem

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// Default ECFP4 settings.
const (
	DefaultRadius = 2
	DefaultNBits  = 1024
)

// CircularFingerprint computes a Morgan/ECFP-style bit vector. Each atom
// starts from a hash of its invariants; every iteration rehashes an atom
// with the sorted (bond order, identifier) pairs of its neighbours. All
// identifiers from iterations 0..radius are folded into nBits bits.
func CircularFingerprint(m *Molecule, radius, nBits int) []float64 {
	fp := make([]float64, nBits)
	if nBits <= 0 {
		return fp
	}
	ids := make([]uint64, len(m.Atoms))
	for a := range m.Atoms {
		ids[a] = hashInts(0, m.ecfpInvariant(a)...)
		fp[ids[a]%uint64(nBits)] = 1
	}

	next := make([]uint64, len(ids))
	for r := 1; r <= radius; r++ {
		for a := range m.Atoms {
			pairs := make([][2]uint64, 0, m.Degree(a))
			for _, bi := range m.adj[a] {
				b := m.Bonds[bi]
				pairs = append(pairs, [2]uint64{uint64(b.Order), ids[b.Other(a)]})
			}
			slices.SortFunc(pairs, func(x, y [2]uint64) int {
				if x[0] != y[0] {
					return cmpU64(x[0], y[0])
				}
				return cmpU64(x[1], y[1])
			})
			vals := []uint64{uint64(r), ids[a]}
			for _, p := range pairs {
				vals = append(vals, p[0], p[1])
			}
			next[a] = hashU64(vals)
			fp[next[a]%uint64(nBits)] = 1
		}
		ids, next = next, ids
	}
	return fp
}

// ecfpInvariant follows the Daylight atomic invariants used by ECFP.
func (m *Molecule) ecfpInvariant(a int) []int {
	at := m.Atoms[a]
	ring := 0
	if m.IsRingAtom(a) {
		ring = 1
	}
	return []int{
		m.heavyDegree(a),
		m.bondValence(a) + at.HCount - boolInt(at.Aromatic),
		at.Number,
		at.Isotope,
		at.Charge,
		at.HCount,
		ring,
	}
}

func (m *Molecule) heavyDegree(a int) int {
	d := 0
	for _, n := range m.Neighbors(a) {
		if m.Atoms[n].Number > 1 {
			d++
		}
	}
	return d
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmpU64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func hashInts(seed uint64, vals ...int) uint64 {
	u := make([]uint64, 0, len(vals)+1)
	u = append(u, seed)
	for _, v := range vals {
		u = append(u, uint64(int64(v)))
	}
	return hashU64(u)
}

func hashU64(vals []uint64) uint64 {
	buf := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(buf[8*i:], v)
	}
	return xxhash.Sum64(buf)
}
