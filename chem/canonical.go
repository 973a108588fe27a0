package chem

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// CanonicalSMILES writes a SMILES string that does not depend on the atom
// order of the input. Atoms are ranked by Weisfeiler-Lehman refinement,
// ties are broken deterministically, and the graph is written depth first
// from the lowest ranked atom following neighbours in rank order.
func CanonicalSMILES(m *Molecule) string {
	if len(m.Atoms) == 0 {
		return ""
	}
	rank := canonicalRanks(m)
	w := &smilesWriter{m: m, rank: rank, visited: make([]bool, len(m.Atoms))}

	comps := m.components()
	starts := make([]int, len(comps))
	for i, comp := range comps {
		starts[i] = slices.MinFunc(comp, func(a, b int) int { return rank[a] - rank[b] })
	}
	slices.SortFunc(starts, func(a, b int) int { return rank[a] - rank[b] })

	parts := make([]string, 0, len(starts))
	for _, s := range starts {
		w.plan(s)
		var sb strings.Builder
		w.digits = map[int]int{}
		w.write(&sb, s, -1)
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, ".")
}

func denseRanks(keys []string) []int {
	uniq := slices.Clone(keys)
	slices.Sort(uniq)
	uniq = slices.Compact(uniq)
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i], _ = slices.BinarySearch(uniq, k)
	}
	return out
}

func countDistinct(r []int) int {
	c := slices.Clone(r)
	slices.Sort(c)
	return len(slices.Compact(c))
}

// atomInvariant is the starting label of WL refinement.
func (m *Molecule) atomInvariant(a int) string {
	at := m.Atoms[a]
	return fmt.Sprintf("%03d|%t|%+d|%d|%d|%d|%t",
		at.Number, at.Aromatic, at.Charge, m.Degree(a), at.HCount, at.Isotope, m.IsRingAtom(a))
}

func canonicalRanks(m *Molecule) []int {
	n := len(m.Atoms)
	keys := make([]string, n)
	for a := range m.Atoms {
		keys[a] = m.atomInvariant(a)
	}
	rank := denseRanks(keys)
	rank = refine(m, rank)
	for countDistinct(rank) < n {
		// break the lowest tie by favouring its first atom
		tied := -1
		counts := map[int]int{}
		for _, r := range rank {
			counts[r]++
		}
		for a, r := range rank {
			if counts[r] > 1 && (tied < 0 || r < rank[tied]) {
				tied = a
			}
		}
		for a := range rank {
			rank[a] *= 2
		}
		rank[tied]--
		rank = refine(m, rank)
	}
	return rank
}

func refine(m *Molecule, rank []int) []int {
	keys := make([]string, len(rank))
	distinct := countDistinct(rank)
	for {
		for a := range m.Atoms {
			nb := make([]string, 0, m.Degree(a))
			for _, bi := range m.adj[a] {
				b := m.Bonds[bi]
				nb = append(nb, fmt.Sprintf("%d:%06d", b.Order, rank[b.Other(a)]))
			}
			slices.Sort(nb)
			keys[a] = fmt.Sprintf("%06d|%s", rank[a], strings.Join(nb, ","))
		}
		next := denseRanks(keys)
		d := countDistinct(next)
		if d == distinct {
			return next
		}
		rank, distinct = next, d
	}
}

type smilesWriter struct {
	m       *Molecule
	rank    []int
	visited []bool

	children map[int][]int // tree children per atom, in rank order
	opens    map[int][]int // ring bonds opened at an atom
	closes   map[int][]int // ring bonds closed at an atom
	digits   map[int]int   // ring bond -> digit
	inUse    [100]bool
}

func (w *smilesWriter) sortedNeighbors(a int) []int {
	nb := w.m.Neighbors(a)
	slices.SortFunc(nb, func(x, y int) int { return w.rank[x] - w.rank[y] })
	return nb
}

// plan runs the DFS that decides tree edges and ring closures.
func (w *smilesWriter) plan(start int) {
	if w.children == nil {
		w.children, w.opens, w.closes = map[int][]int{}, map[int][]int{}, map[int][]int{}
	}
	onPath := map[int]bool{}
	var dfs func(a, parent int)
	dfs = func(a, parent int) {
		w.visited[a] = true
		onPath[a] = true
		for _, n := range w.sortedNeighbors(a) {
			if n == parent {
				continue
			}
			bi := w.m.BondBetween(a, n)
			if w.visited[n] {
				if onPath[n] && !slices.Contains(w.opens[n], bi) {
					w.opens[n] = append(w.opens[n], bi)
					w.closes[a] = append(w.closes[a], bi)
				}
				continue
			}
			w.children[a] = append(w.children[a], n)
			dfs(n, a)
		}
		onPath[a] = false
	}
	dfs(start, -1)
}

func (w *smilesWriter) write(sb *strings.Builder, a, parent int) {
	if parent >= 0 {
		sb.WriteString(w.bondToken(w.m.BondBetween(parent, a)))
	}
	sb.WriteString(w.m.atomToken(a))

	var freed []int
	for _, bi := range w.closes[a] {
		d := w.digits[bi]
		sb.WriteString(w.bondToken(bi))
		sb.WriteString(ringDigit(d))
		freed = append(freed, d)
	}
	for _, bi := range w.opens[a] {
		d := 1
		for w.inUse[d] {
			d++
		}
		w.inUse[d] = true
		w.digits[bi] = d
		sb.WriteString(ringDigit(d))
	}
	for _, d := range freed {
		w.inUse[d] = false
	}

	kids := w.children[a]
	for i, c := range kids {
		if i < len(kids)-1 {
			sb.WriteByte('(')
			w.write(sb, c, a)
			sb.WriteByte(')')
		} else {
			w.write(sb, c, a)
		}
	}
}

func ringDigit(d int) string {
	if d < 10 {
		return strconv.Itoa(d)
	}
	return "%" + strconv.Itoa(d)
}

func (w *smilesWriter) bondToken(bi int) string {
	b := w.m.Bonds[bi]
	bothAromatic := w.m.Atoms[b.A].Aromatic && w.m.Atoms[b.B].Aromatic
	switch b.Order {
	case Double:
		return "="
	case Triple:
		return "#"
	case Aromatic:
		if bothAromatic {
			return ""
		}
		return ":"
	default:
		if bothAromatic {
			return "-"
		}
		return ""
	}
}

func (m *Molecule) atomToken(a int) string {
	at := m.Atoms[a]
	sym := at.Symbol
	if at.Aromatic {
		sym = strings.ToLower(sym)
	}
	_, aromaticOK := aromaticSymbols[sym]
	bare := organic[at.Symbol] && (!at.Aromatic || (aromaticOK && len(sym) == 1))
	if bare && at.Charge == 0 && at.Isotope == 0 && at.HCount == m.implicitH(a) {
		return sym
	}

	var sb strings.Builder
	sb.WriteByte('[')
	if at.Isotope > 0 {
		sb.WriteString(strconv.Itoa(at.Isotope))
	}
	sb.WriteString(sym)
	if at.HCount > 0 {
		sb.WriteByte('H')
		if at.HCount > 1 {
			sb.WriteString(strconv.Itoa(at.HCount))
		}
	}
	switch {
	case at.Charge == 1:
		sb.WriteByte('+')
	case at.Charge == -1:
		sb.WriteByte('-')
	case at.Charge > 1:
		sb.WriteString("+" + strconv.Itoa(at.Charge))
	case at.Charge < -1:
		sb.WriteString(strconv.Itoa(at.Charge))
	}
	sb.WriteByte(']')
	return sb.String()
}
