// Package chem parses molecules from SMILES and SDF and computes the
// features used by molpipe: circular fingerprints, descriptors, voxel
// grids, Murcko scaffolds and canonical SMILES.
package chem

import "slices"

// BondOrder is the bond multiplicity. Aromatic bonds have their own value.
type BondOrder int

const (
	Single BondOrder = iota + 1
	Double
	Triple
	Aromatic
)

// valence returns the contribution of the bond to the valence of its
// atoms. Aromatic bonds count 1; the extra pi electron is added per atom.
func (o BondOrder) valence() int {
	switch o {
	case Double:
		return 2
	case Triple:
		return 3
	default:
		return 1
	}
}

type Atom struct {
	Symbol   string // element symbol, capitalized
	Number   int
	Aromatic bool
	Charge   int
	Isotope  int
	HCount   int  // total attached hydrogens
	Bracket  bool // hydrogens were given explicitly
	Coords   [3]float64
}

type Bond struct {
	A, B  int
	Order BondOrder
}

// Other returns the atom on the far side of the bond.
func (b Bond) Other(a int) int {
	if b.A == a {
		return b.B
	}
	return b.A
}

// Molecule is a hydrogen-suppressed molecular graph.
type Molecule struct {
	Atoms     []Atom
	Bonds     []Bond
	HasCoords bool

	adj   [][]int // bond indices per atom
	rings *ringInfo
}

func (m *Molecule) addAtom(a Atom) int {
	m.Atoms = append(m.Atoms, a)
	m.adj = append(m.adj, nil)
	m.rings = nil
	return len(m.Atoms) - 1
}

func (m *Molecule) addBond(a, b int, order BondOrder) int {
	m.Bonds = append(m.Bonds, Bond{A: a, B: b, Order: order})
	i := len(m.Bonds) - 1
	m.adj[a] = append(m.adj[a], i)
	m.adj[b] = append(m.adj[b], i)
	m.rings = nil
	return i
}

func (m *Molecule) NumAtoms() int { return len(m.Atoms) }

// BondsOf returns the indices of the bonds incident to atom a.
func (m *Molecule) BondsOf(a int) []int { return m.adj[a] }

// Degree is the number of explicit neighbours of atom a.
func (m *Molecule) Degree(a int) int { return len(m.adj[a]) }

// Neighbors returns the atoms bonded to a.
func (m *Molecule) Neighbors(a int) []int {
	out := make([]int, 0, len(m.adj[a]))
	for _, b := range m.adj[a] {
		out = append(out, m.Bonds[b].Other(a))
	}
	return out
}

// BondBetween returns the bond index joining a and b, or -1.
func (m *Molecule) BondBetween(a, b int) int {
	for _, bi := range m.adj[a] {
		if m.Bonds[bi].Other(a) == b {
			return bi
		}
	}
	return -1
}

// bondValence sums bond valences around a, plus one for aromatic atoms.
func (m *Molecule) bondValence(a int) int {
	v := 0
	for _, b := range m.adj[a] {
		v += m.Bonds[b].Order.valence()
	}
	if m.Atoms[a].Aromatic {
		v++
	}
	return v
}

// implicitH returns the hydrogens an unbracketed atom gets from its default
// valences. Aromatic O and S never carry implicit hydrogens.
func (m *Molecule) implicitH(a int) int {
	at := m.Atoms[a]
	el := elements[at.Symbol]
	if len(el.Defaults) == 0 {
		return 0
	}
	if at.Aromatic && (at.Symbol == "O" || at.Symbol == "S" || at.Symbol == "Se" || at.Symbol == "Te") {
		return 0
	}
	used := m.bondValence(a)
	for _, v := range el.Defaults {
		if v >= used {
			if at.Aromatic && v != el.Defaults[0] {
				return 0
			}
			return v - used
		}
	}
	return 0
}

// Subgraph copies the atoms in keep (in order) together with the bonds
// among them. Hydrogen counts grow by the valence of every dropped bond.
func (m *Molecule) Subgraph(keep []int) *Molecule {
	index := make(map[int]int, len(keep))
	out := &Molecule{HasCoords: m.HasCoords}
	for _, a := range keep {
		index[a] = out.addAtom(m.Atoms[a])
	}
	for _, b := range m.Bonds {
		ia, okA := index[b.A]
		ib, okB := index[b.B]
		switch {
		case okA && okB:
			out.addBond(ia, ib, b.Order)
		case okA:
			out.Atoms[ia].HCount += b.Order.valence()
		case okB:
			out.Atoms[ib].HCount += b.Order.valence()
		}
	}
	return out
}

// components returns the connected components as sorted atom lists.
func (m *Molecule) components() [][]int {
	seen := make([]bool, len(m.Atoms))
	var comps [][]int
	for s := range m.Atoms {
		if seen[s] {
			continue
		}
		comp := []int{s}
		seen[s] = true
		for q := 0; q < len(comp); q++ {
			for _, n := range m.Neighbors(comp[q]) {
				if !seen[n] {
					seen[n] = true
					comp = append(comp, n)
				}
			}
		}
		slices.Sort(comp)
		comps = append(comps, comp)
	}
	return comps
}
