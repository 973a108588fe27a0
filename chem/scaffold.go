package chem

// MurckoScaffold returns the Bemis-Murcko framework: ring systems and the
// linkers between them. Non-ring atoms of degree <= 1 are stripped until
// none remain, then terminal atoms double-bonded to a surviving atom are
// put back, so ring and linker carbonyls stay. Acyclic molecules give an
// empty molecule.
func MurckoScaffold(m *Molecule) *Molecule {
	if m.RingCount() == 0 {
		return &Molecule{}
	}
	removed := make([]bool, len(m.Atoms))
	degree := make([]int, len(m.Atoms))
	for a := range m.Atoms {
		degree[a] = m.Degree(a)
	}

	var queue []int
	for a := range m.Atoms {
		if !m.IsRingAtom(a) && degree[a] <= 1 {
			queue = append(queue, a)
		}
	}
	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		if removed[a] {
			continue
		}
		removed[a] = true
		for _, n := range m.Neighbors(a) {
			if removed[n] {
				continue
			}
			degree[n]--
			if !m.IsRingAtom(n) && degree[n] <= 1 {
				queue = append(queue, n)
			}
		}
	}

	var keep []int
	for a := range m.Atoms {
		if !removed[a] || exocyclicDouble(m, a, removed) {
			keep = append(keep, a)
		}
	}
	return m.Subgraph(keep)
}

// exocyclicDouble reports whether a is a terminal atom whose only bond is a
// double bond to an atom that survived stripping.
func exocyclicDouble(m *Molecule, a int, removed []bool) bool {
	if m.Degree(a) != 1 {
		return false
	}
	for _, b := range m.Bonds {
		if b.Order != Double {
			continue
		}
		switch a {
		case b.A:
			return !removed[b.B]
		case b.B:
			return !removed[b.A]
		}
	}
	return false
}

// ScaffoldKey returns the canonical SMILES of the Murcko scaffold, the
// grouping key for scaffold splits. Acyclic molecules share the key "".
func ScaffoldKey(m *Molecule) string {
	return CanonicalSMILES(MurckoScaffold(m))
}
