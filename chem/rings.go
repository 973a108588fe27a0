package chem

import (
	"math/bits"
	"slices"
)

type ringInfo struct {
	ringBond   []bool
	ringAtom   []bool
	rings      [][]int // atoms in cycle order
	ringBonds  [][]int
	cyclomatic int
}

func (m *Molecule) ringData() *ringInfo {
	if m.rings == nil {
		m.rings = perceiveRings(m)
	}
	return m.rings
}

// IsRingBond reports whether bond b lies on a cycle.
func (m *Molecule) IsRingBond(b int) bool { return m.ringData().ringBond[b] }

// IsRingAtom reports whether atom a lies on a cycle.
func (m *Molecule) IsRingAtom(a int) bool { return m.ringData().ringAtom[a] }

// RingCount is the cyclomatic number E - V + components.
func (m *Molecule) RingCount() int { return m.ringData().cyclomatic }

// Rings returns an approximate smallest set of smallest rings. Each ring
// lists its atoms in cycle order.
func (m *Molecule) Rings() [][]int { return m.ringData().rings }

// AromaticRingCount counts rings whose bonds are all aromatic.
func (m *Molecule) AromaticRingCount() int {
	info := m.ringData()
	n := 0
	for _, rb := range info.ringBonds {
		aromatic := true
		for _, b := range rb {
			if m.Bonds[b].Order != Aromatic {
				aromatic = false
				break
			}
		}
		if aromatic {
			n++
		}
	}
	return n
}

func perceiveRings(m *Molecule) *ringInfo {
	info := &ringInfo{
		ringBond: make([]bool, len(m.Bonds)),
		ringAtom: make([]bool, len(m.Atoms)),
	}
	info.cyclomatic = len(m.Bonds) - len(m.Atoms) + len(m.components())

	// ring bonds are the bonds that are not bridges
	bridges := findBridges(m)
	for b := range m.Bonds {
		if !bridges[b] {
			info.ringBond[b] = true
			info.ringAtom[m.Bonds[b].A] = true
			info.ringAtom[m.Bonds[b].B] = true
		}
	}
	if info.cyclomatic == 0 {
		return info
	}

	type cycle struct {
		atoms []int
		bonds []int
		set   []uint64
	}
	words := (len(m.Bonds) + 63) / 64
	seen := map[string]bool{}
	var candidates []cycle
	for b, isRing := range info.ringBond {
		if !isRing {
			continue
		}
		atoms, path := shortestPath(m, m.Bonds[b].A, m.Bonds[b].B, b, info.ringBond)
		if atoms == nil {
			continue
		}
		c := cycle{atoms: atoms, bonds: append(path, b), set: make([]uint64, words)}
		for _, pb := range c.bonds {
			c.set[pb/64] |= 1 << (pb % 64)
		}
		key := string(bitsKey(c.set))
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, c)
	}
	slices.SortStableFunc(candidates, func(a, b cycle) int {
		if len(a.bonds) != len(b.bonds) {
			return len(a.bonds) - len(b.bonds)
		}
		return slices.Compare(a.set, b.set)
	})

	// keep cycles that are independent over GF(2)
	var basis [][]uint64
	var pivots []int
	for _, c := range candidates {
		if len(basis) == info.cyclomatic {
			break
		}
		v := slices.Clone(c.set)
		for i, bv := range basis {
			p := pivots[i]
			if v[p/64]&(1<<(p%64)) != 0 {
				for w := range v {
					v[w] ^= bv[w]
				}
			}
		}
		p := lowestBit(v)
		if p < 0 {
			continue
		}
		basis = append(basis, v)
		pivots = append(pivots, p)
		info.rings = append(info.rings, c.atoms)
		info.ringBonds = append(info.ringBonds, c.bonds)
	}
	return info
}

func bitsKey(set []uint64) []byte {
	out := make([]byte, 0, len(set)*8)
	for _, w := range set {
		for s := 0; s < 64; s += 8 {
			out = append(out, byte(w>>s))
		}
	}
	return out
}

func lowestBit(v []uint64) int {
	for w, x := range v {
		if x != 0 {
			return w*64 + bits.TrailingZeros64(x)
		}
	}
	return -1
}

// shortestPath finds the shortest path from a to b over ring bonds,
// skipping bond skip. It returns the atoms from a to b and the bonds used.
func shortestPath(m *Molecule, a, b, skip int, ringBond []bool) ([]int, []int) {
	prevAtom := make([]int, len(m.Atoms))
	prevBond := make([]int, len(m.Atoms))
	for i := range prevAtom {
		prevAtom[i] = -2
	}
	prevAtom[a] = -1
	queue := []int{a}
	for q := 0; q < len(queue) && prevAtom[b] == -2; q++ {
		u := queue[q]
		for _, bi := range m.adj[u] {
			if bi == skip || !ringBond[bi] {
				continue
			}
			v := m.Bonds[bi].Other(u)
			if prevAtom[v] != -2 {
				continue
			}
			prevAtom[v] = u
			prevBond[v] = bi
			queue = append(queue, v)
		}
	}
	if prevAtom[b] == -2 {
		return nil, nil
	}
	var atoms, path []int
	for v := b; v != a; v = prevAtom[v] {
		atoms = append(atoms, v)
		path = append(path, prevBond[v])
	}
	atoms = append(atoms, a)
	slices.Reverse(atoms)
	return atoms, path
}

// findBridges marks bonds whose removal disconnects the graph (Tarjan).
func findBridges(m *Molecule) []bool {
	n := len(m.Atoms)
	bridges := make([]bool, len(m.Bonds))
	disc := make([]int, n)
	low := make([]int, n)
	for i := range disc {
		disc[i] = -1
	}
	t := 0
	var dfs func(u, parentBond int)
	dfs = func(u, parentBond int) {
		disc[u] = t
		low[u] = t
		t++
		for _, bi := range m.adj[u] {
			if bi == parentBond {
				continue
			}
			v := m.Bonds[bi].Other(u)
			if disc[v] == -1 {
				dfs(v, bi)
				low[u] = min(low[u], low[v])
				if low[v] > disc[u] {
					bridges[bi] = true
				}
			} else {
				low[u] = min(low[u], disc[v])
			}
		}
	}
	for u := 0; u < n; u++ {
		if disc[u] == -1 {
			dfs(u, -1)
		}
	}
	return bridges
}
