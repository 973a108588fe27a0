package tree

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Node is one entry of the flattened tree. Leaves have Feature == -1.
// Samples with x[Feature] <= Threshold go left.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     []float64 // class distribution or regression mean
	NSamples  int
	Impurity  float64
}

// Tree is a fitted CART tree stored as a node slice, gob friendly.
type Tree struct {
	Nodes       []Node
	NFeatures   int
	Importances []float64
}

func (t *Tree) leaf(row func(j int) float64) *Node {
	i := 0
	for t.Nodes[i].Feature >= 0 {
		n := &t.Nodes[i]
		if row(n.Feature) <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return &t.Nodes[i]
}

// Depth returns the length of the longest root-to-leaf path.
func (t *Tree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// NLeaves counts terminal nodes.
func (t *Tree) NLeaves() int {
	c := 0
	for _, n := range t.Nodes {
		if n.Feature < 0 {
			c++
		}
	}
	return c
}

// builder grows a tree depth first. y holds class indices when nClasses > 0
// and regression targets otherwise.
type builder struct {
	X        *mat.Dense
	y        []float64
	w        []float64
	nClasses int
	p        Params
	rng      *rand.Rand

	tree       *Tree
	importance []float64
}

func newBuilder(X *mat.Dense, y, w []float64, nClasses int, p Params) *builder {
	_, d := X.Dims()
	return &builder{
		X:          X,
		y:          y,
		w:          w,
		nClasses:   nClasses,
		p:          p,
		rng:        rand.New(rand.NewPCG(p.RandomState, p.RandomState^0x9e3779b97f4a7c15)),
		tree:       &Tree{NFeatures: d},
		importance: make([]float64, d),
	}
}

func (b *builder) build() *Tree {
	var idx []int
	for i, wi := range b.w {
		if wi > 0 {
			idx = append(idx, i)
		}
	}
	b.grow(idx, 0)

	var total float64
	for _, v := range b.importance {
		total += v
	}
	if total > 0 {
		for j := range b.importance {
			b.importance[j] /= total
		}
	}
	b.tree.Importances = b.importance
	return b.tree
}

// stats accumulates weighted sufficient statistics of a node.
type stats struct {
	weight float64
	counts []float64 // classification
	sum    float64   // regression
	sumSq  float64
}

func (b *builder) newStats() stats {
	if b.nClasses > 0 {
		return stats{counts: make([]float64, b.nClasses)}
	}
	return stats{}
}

func (s *stats) add(y, w float64, sign float64) {
	s.weight += sign * w
	if s.counts != nil {
		s.counts[int(y)] += sign * w
		return
	}
	s.sum += sign * w * y
	s.sumSq += sign * w * y * y
}

func (b *builder) impurity(s *stats) float64 {
	if s.weight <= 0 {
		return 0
	}
	if s.counts == nil {
		mean := s.sum / s.weight
		return math.Max(s.sumSq/s.weight-mean*mean, 0)
	}
	var imp float64
	switch b.p.Criterion {
	case "entropy":
		for _, c := range s.counts {
			if c > 0 {
				p := c / s.weight
				imp -= p * math.Log2(p)
			}
		}
	default:
		imp = 1
		for _, c := range s.counts {
			p := c / s.weight
			imp -= p * p
		}
	}
	return imp
}

func (b *builder) value(s *stats) []float64 {
	if s.counts == nil {
		return []float64{s.sum / s.weight}
	}
	v := make([]float64, len(s.counts))
	for k, c := range s.counts {
		v[k] = c / s.weight
	}
	return v
}

func (b *builder) grow(idx []int, depth int) int {
	s := b.newStats()
	for _, i := range idx {
		s.add(b.y[i], b.w[i], 1)
	}
	imp := b.impurity(&s)
	id := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Feature:  -1,
		Value:    b.value(&s),
		NSamples: len(idx),
		Impurity: imp,
	})

	if imp <= 1e-12 ||
		len(idx) < b.p.MinSamplesSplit ||
		len(idx) < 2*b.p.MinSamplesLeaf ||
		(b.p.MaxDepth > 0 && depth >= b.p.MaxDepth) {
		return id
	}

	feature, threshold, childImp, ok := b.bestSplit(idx, &s)
	if !ok {
		return id
	}
	b.importance[feature] += s.weight*imp - childImp

	var left, right []int
	for _, i := range idx {
		if b.X.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	n := &b.tree.Nodes[id]
	n.Feature, n.Threshold, n.Left, n.Right = feature, threshold, l, r
	return id
}

func (b *builder) candidates() []int {
	_, d := b.X.Dims()
	if b.p.MaxFeatures <= 0 || b.p.MaxFeatures >= d {
		all := make([]int, d)
		for j := range all {
			all[j] = j
		}
		return all
	}
	return b.rng.Perm(d)[:b.p.MaxFeatures]
}

// bestSplit sweeps every candidate feature in sorted order and returns the
// split minimizing the weighted child impurity (weight * impurity summed
// over both children). A zero-gain split is still taken on an impure node.
func (b *builder) bestSplit(idx []int, parent *stats) (feature int, threshold, childImp float64, ok bool) {
	sorted := make([]int, len(idx))
	childImp = math.Inf(1)
	minLeaf := b.p.MinSamplesLeaf

	for _, j := range b.candidates() {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.X.At(sorted[a], j) < b.X.At(sorted[c], j)
		})

		left := b.newStats()
		right := b.newStats()
		right.weight = parent.weight
		right.sum, right.sumSq = parent.sum, parent.sumSq
		if parent.counts != nil {
			copy(right.counts, parent.counts)
		}

		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			left.add(b.y[i], b.w[i], 1)
			right.add(b.y[i], b.w[i], -1)

			if k+1 < minLeaf || len(sorted)-k-1 < minLeaf {
				continue
			}
			v, next := b.X.At(i, j), b.X.At(sorted[k+1], j)
			if v == next {
				continue
			}
			c := left.weight*b.impurity(&left) + right.weight*b.impurity(&right)
			if c < childImp-1e-12 {
				childImp = c
				feature = j
				threshold = v + (next-v)/2
				ok = true
			}
		}
	}
	return feature, threshold, childImp, ok
}
