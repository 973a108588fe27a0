package chem

// DescriptorNames lists the columns returned by Descriptors, in order.
var DescriptorNames = []string{
	"MolWt",
	"HeavyAtomCount",
	"NumHeteroatoms",
	"NumHDonors",
	"NumHAcceptors",
	"NumRotatableBonds",
	"RingCount",
	"NumAromaticRings",
	"FractionCSP3",
	"NHOHCount",
	"NOCount",
	"FormalCharge",
	"NumValenceElectrons",
}

const hydrogenMass = 1.008

// Descriptors computes the physico-chemical descriptor vector.
func Descriptors(m *Molecule) []float64 {
	var (
		molWt, heavy, hetero, donors, acceptors float64
		nhoh, no, charge, valence               float64
		carbons, sp3                            float64
	)
	for a, at := range m.Atoms {
		el := elements[at.Symbol]
		molWt += el.Mass + float64(at.HCount)*hydrogenMass
		valence += float64(el.Valence-at.Charge) + float64(at.HCount)
		charge += float64(at.Charge)
		if at.Number > 1 {
			heavy++
		}
		if at.Number > 1 && at.Number != 6 {
			hetero++
		}
		if at.Symbol == "N" || at.Symbol == "O" {
			no++
			nhoh += float64(at.HCount)
			if at.HCount > 0 {
				donors++
			}
		}
		if m.isAcceptor(a) {
			acceptors++
		}
		if at.Symbol == "C" {
			carbons++
			if m.isSP3(a) {
				sp3++
			}
		}
	}

	fsp3 := 0.0
	if carbons > 0 {
		fsp3 = sp3 / carbons
	}
	return []float64{
		molWt,
		heavy,
		hetero,
		donors,
		acceptors,
		float64(m.rotatableBonds()),
		float64(m.RingCount()),
		float64(m.AromaticRingCount()),
		fsp3,
		nhoh,
		no,
		charge,
		valence,
	}
}

func (m *Molecule) isSP3(a int) bool {
	if m.Atoms[a].Aromatic {
		return false
	}
	for _, bi := range m.adj[a] {
		if m.Bonds[bi].Order != Single {
			return false
		}
	}
	return true
}

// hasMultipleBondToHetero reports whether a carries a double bond to
// N, O, P or S (carbonyl-like centres).
func (m *Molecule) hasMultipleBondToHetero(a int) bool {
	for _, bi := range m.adj[a] {
		b := m.Bonds[bi]
		if b.Order != Double {
			continue
		}
		switch m.Atoms[b.Other(a)].Symbol {
		case "N", "O", "P", "S":
			return true
		}
	}
	return false
}

// isAcceptor approximates the Lipinski acceptor definition: oxygens and
// divalent sulfurs, anions, trivalent non-amide nitrogens, aromatic
// nitrogens without hydrogen, and fluorine.
func (m *Molecule) isAcceptor(a int) bool {
	at := m.Atoms[a]
	switch at.Symbol {
	case "O", "S":
		if at.Charge < 0 {
			return true
		}
		if at.Aromatic {
			return at.Charge == 0
		}
		return at.Charge == 0 && m.bondValence(a)+at.HCount == 2
	case "N":
		if at.Charge != 0 {
			return false
		}
		if at.Aromatic {
			return at.HCount == 0 && m.Degree(a) == 2
		}
		if m.bondValence(a)+at.HCount != 3 {
			return false
		}
		for _, bi := range m.adj[a] {
			b := m.Bonds[bi]
			c := b.Other(a)
			if b.Order == Single && m.Atoms[c].Symbol == "C" && m.hasMultipleBondToHetero(c) {
				return false
			}
		}
		return true
	case "F":
		return true
	}
	return false
}

// rotatableBonds counts single acyclic bonds between non-terminal heavy
// atoms, excluding bonds next to triple bonds and secondary amide C-N.
func (m *Molecule) rotatableBonds() int {
	n := 0
	for bi, b := range m.Bonds {
		if b.Order != Single || m.IsRingBond(bi) {
			continue
		}
		if m.heavyDegree(b.A) < 2 || m.heavyDegree(b.B) < 2 {
			continue
		}
		if m.hasTriple(b.A) || m.hasTriple(b.B) {
			continue
		}
		if m.isAmideNH(b.A, b.B) || m.isAmideNH(b.B, b.A) {
			continue
		}
		n++
	}
	return n
}

func (m *Molecule) hasTriple(a int) bool {
	for _, bi := range m.adj[a] {
		if m.Bonds[bi].Order == Triple {
			return true
		}
	}
	return false
}

func (m *Molecule) isAmideNH(n, c int) bool {
	return m.Atoms[n].Symbol == "N" && m.Atoms[n].HCount == 1 &&
		m.Atoms[c].Symbol == "C" && m.hasMultipleBondToHetero(c)
}
