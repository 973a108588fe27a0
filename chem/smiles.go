package chem

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// SMILESError reports a parse failure with the offending position.
type SMILESError struct {
	SMILES string
	Pos    int
	Reason string
}

func (e *SMILESError) Error() string {
	return fmt.Sprintf("invalid SMILES %q at %d: %s", e.SMILES, e.Pos, e.Reason)
}

type ringOpen struct {
	atom  int
	order BondOrder // 0 when no bond symbol was given
	pos   int
}

type smilesParser struct {
	s   string
	pos int
	mol *Molecule

	prev     int
	bond     BondOrder
	branches []int
	rings    map[int]ringOpen
}

// ParseSMILES parses a SMILES string into a hydrogen-suppressed graph.
// Stereo markers (@, /, \) are accepted and ignored.
func ParseSMILES(s string) (*Molecule, error) {
	if s == "" {
		return nil, errors.WithStack(&SMILESError{SMILES: s, Reason: "empty string"})
	}
	p := &smilesParser{s: s, mol: &Molecule{}, prev: -1, rings: map[int]ringOpen{}}
	if err := p.parse(); err != nil {
		return nil, errors.WithStack(err)
	}
	for i := range p.mol.Atoms {
		if !p.mol.Atoms[i].Bracket {
			p.mol.Atoms[i].HCount = p.mol.implicitH(i)
		}
	}
	return p.mol, nil
}

func (p *smilesParser) fail(reason string) error {
	return &SMILESError{SMILES: p.s, Pos: p.pos, Reason: reason}
}

func (p *smilesParser) parse() error {
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.fail("branch without preceding atom")
			}
			p.branches = append(p.branches, p.prev)
			p.pos++
		case c == ')':
			if len(p.branches) == 0 {
				return p.fail("unbalanced ')'")
			}
			if p.bond != 0 {
				return p.fail("bond symbol before ')'")
			}
			p.prev = p.branches[len(p.branches)-1]
			p.branches = p.branches[:len(p.branches)-1]
			p.pos++
		case c == '.':
			if p.bond != 0 {
				return p.fail("bond symbol before '.'")
			}
			p.prev = -1
			p.pos++
		case c == '-' || c == '=' || c == '#' || c == ':' || c == '/' || c == '\\':
			if p.bond != 0 {
				return p.fail("two consecutive bond symbols")
			}
			p.bond = map[byte]BondOrder{'-': Single, '=': Double, '#': Triple, ':': Aromatic, '/': Single, '\\': Single}[c]
			p.pos++
		case c >= '0' && c <= '9':
			if err := p.ringClosure(int(c - '0')); err != nil {
				return err
			}
			p.pos++
		case c == '%':
			if p.pos+2 >= len(p.s) || !isDigit(p.s[p.pos+1]) || !isDigit(p.s[p.pos+2]) {
				return p.fail("'%' must be followed by two digits")
			}
			n, _ := strconv.Atoi(p.s[p.pos+1 : p.pos+3])
			if err := p.ringClosure(n); err != nil {
				return err
			}
			p.pos += 3
		case c == '[':
			a, err := p.bracketAtom()
			if err != nil {
				return err
			}
			p.attach(a)
		default:
			a, err := p.organicAtom()
			if err != nil {
				return err
			}
			p.attach(a)
		}
	}
	if len(p.branches) > 0 {
		return p.fail("unbalanced '('")
	}
	if len(p.rings) > 0 {
		for n, r := range p.rings {
			p.pos = r.pos
			return p.fail(fmt.Sprintf("unclosed ring %d", n))
		}
	}
	if p.bond != 0 {
		return p.fail("dangling bond symbol")
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *smilesParser) implicitOrder(a, b int, explicit BondOrder) BondOrder {
	if explicit != 0 {
		return explicit
	}
	if p.mol.Atoms[a].Aromatic && p.mol.Atoms[b].Aromatic {
		return Aromatic
	}
	return Single
}

func (p *smilesParser) attach(a Atom) {
	i := p.mol.addAtom(a)
	if p.prev >= 0 {
		p.mol.addBond(p.prev, i, p.implicitOrder(p.prev, i, p.bond))
	}
	p.bond = 0
	p.prev = i
}

func (p *smilesParser) ringClosure(n int) error {
	if p.prev < 0 {
		return p.fail("ring closure without preceding atom")
	}
	open, ok := p.rings[n]
	if !ok {
		p.rings[n] = ringOpen{atom: p.prev, order: p.bond, pos: p.pos}
		p.bond = 0
		return nil
	}
	delete(p.rings, n)
	if open.atom == p.prev {
		return p.fail("ring closure to the same atom")
	}
	if p.mol.BondBetween(open.atom, p.prev) >= 0 {
		return p.fail("ring closure duplicates an existing bond")
	}
	order := open.order
	if p.bond != 0 {
		if order != 0 && order != p.bond {
			return p.fail("conflicting ring closure bonds")
		}
		order = p.bond
	}
	p.mol.addBond(open.atom, p.prev, p.implicitOrder(open.atom, p.prev, order))
	p.bond = 0
	return nil
}

func (p *smilesParser) organicAtom() (Atom, error) {
	rest := p.s[p.pos:]
	// two-letter symbols first
	for _, sym := range []string{"Cl", "Br"} {
		if len(rest) >= 2 && rest[:2] == sym {
			p.pos += 2
			return newAtom(sym, false), nil
		}
	}
	c := rest[:1]
	if organic[c] {
		p.pos++
		return newAtom(c, false), nil
	}
	if sym, ok := aromaticSymbols[c]; ok {
		p.pos++
		return newAtom(sym, true), nil
	}
	return Atom{}, p.fail(fmt.Sprintf("unknown atom %q", c))
}

func newAtom(sym string, aromatic bool) Atom {
	return Atom{Symbol: sym, Number: elements[sym].Number, Aromatic: aromatic}
}

// bracketAtom parses [isotope? symbol chirality? hcount? charge? class?].
func (p *smilesParser) bracketAtom() (Atom, error) {
	start := p.pos
	p.pos++ // '['
	readInt := func() (int, bool) {
		j := p.pos
		for p.pos < len(p.s) && isDigit(p.s[p.pos]) {
			p.pos++
		}
		if j == p.pos {
			return 0, false
		}
		n, _ := strconv.Atoi(p.s[j:p.pos])
		return n, true
	}

	isotope, _ := readInt()

	var a Atom
	rest := p.s[p.pos:]
	switch {
	case len(rest) == 0:
		return Atom{}, p.fail("unterminated bracket atom")
	case rest[0] == '*':
		a = newAtom("*", false)
		p.pos++
	case unicode.IsUpper(rune(rest[0])):
		sym := rest[:1]
		if len(rest) > 1 && unicode.IsLower(rune(rest[1])) {
			if _, ok := elements[rest[:2]]; ok {
				sym = rest[:2]
			}
		}
		if _, ok := elements[sym]; !ok {
			return Atom{}, p.fail(fmt.Sprintf("unknown element %q", sym))
		}
		a = newAtom(sym, false)
		p.pos += len(sym)
	default:
		sym := ""
		if len(rest) > 1 {
			if _, ok := aromaticSymbols[rest[:2]]; ok {
				sym = rest[:2]
			}
		}
		if sym == "" {
			if _, ok := aromaticSymbols[rest[:1]]; ok {
				sym = rest[:1]
			}
		}
		if sym == "" {
			return Atom{}, p.fail(fmt.Sprintf("unknown element %q", rest[:1]))
		}
		a = newAtom(aromaticSymbols[sym], true)
		p.pos += len(sym)
	}
	a.Isotope = isotope
	a.Bracket = true

	// chirality
	for p.pos < len(p.s) && p.s[p.pos] == '@' {
		p.pos++
	}
	for _, tag := range []string{"TH", "AL", "SP", "TB", "OH"} {
		if len(p.s)-p.pos >= 2 && p.s[p.pos:p.pos+2] == tag {
			p.pos += 2
			readInt()
			break
		}
	}

	if p.pos < len(p.s) && p.s[p.pos] == 'H' {
		p.pos++
		a.HCount = 1
		if n, ok := readInt(); ok {
			a.HCount = n
		}
	}

	for p.pos < len(p.s) && (p.s[p.pos] == '+' || p.s[p.pos] == '-') {
		sign := 1
		if p.s[p.pos] == '-' {
			sign = -1
		}
		p.pos++
		if n, ok := readInt(); ok {
			a.Charge += sign * n
		} else {
			a.Charge += sign
		}
	}

	if p.pos < len(p.s) && p.s[p.pos] == ':' {
		p.pos++
		if _, ok := readInt(); !ok {
			return Atom{}, p.fail("atom class needs digits")
		}
	}

	if p.pos >= len(p.s) || p.s[p.pos] != ']' {
		p.pos = start
		return Atom{}, p.fail("malformed bracket atom")
	}
	p.pos++
	return a, nil
}
