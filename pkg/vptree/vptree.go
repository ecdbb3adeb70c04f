// Package vptree implements a vantage-point tree: an exact metric-space
// index supporting k-nearest-neighbor search under an arbitrary Lp distance
// function. Grounded on original_source/src/vpTree.h (VpTree, VpNode,
// VpElement, VpTreeData), restructured per the redesign guidance to use an
// index-addressed node arena rather than a pointer-owned tree, and to use a
// binary max-heap (container/heap) in place of std::priority_queue.
package vptree

import (
	"container/heap"
	"context"
	"errors"
	"math"
	mrand "math/rand"
	"sort"

	"github.com/cran/ganGenerativeData/pkg/randsrc"
)

var posInf = float32(math.Inf(1))

// ErrNearestNeighborMismatch is returned by Test when the tree search and
// the brute-force linear search disagree on a result's distance.
var ErrNearestNeighborMismatch = errors.New("vptree: tree and linear search disagree")

// maxCandidates bounds the live candidate heap during a tree search
// (original's cMaxNearestNeighbors).
const maxCandidates = 128

// buildSeed is the fixed vantage-selection seed so that two builds over the
// same data produce an identical tree (original's _uniformIntDistribution.seed(23)).
const buildSeed = 23

// Data is the vector source a Tree is built and searched against. Row ids
// are stable indices into this source, not positions in the tree's internal
// permutation.
type Data interface {
	NumberVector(i int) []float32
	Size() int
}

// Element is one candidate in a k-NN result: a row id and its distance from
// the query/vantage point.
type Element struct {
	Index    int
	Distance float32
}

// Func computes the distance between two feature vectors.
type Func func(a, b []float32) (float32, error)

// node is one arena slot. in/out are indices into Tree.nodes, -1 meaning no
// child. pos is the vantage row's position in the build-time order
// permutation; because child builds only ever touch disjoint sub-ranges of
// that permutation, pos stays valid for the tree's lifetime without needing
// a separate copy of the row id.
type node struct {
	pos       int
	threshold float32
	in, out   int
}

// Tree is a vantage-point tree over a Data source under a fixed distance
// function.
type Tree struct {
	data   Data
	dist   Func
	order  []int
	nodes  []node
	root   int
	rng    *mrand.Rand
	tau    float32
	unique map[float32]struct{}
}

// New creates an unbuilt tree. Call Build before searching.
func New(dist Func) *Tree {
	return &Tree{root: -1, dist: dist, tau: posInf}
}

func (t *Tree) IsBuilt() bool { return t.root != -1 }

// Progress is notified with the number of rows placed into the tree so far,
// once per node, plus a final call with the row count when the build
// completes.
type Progress interface {
	Report(done, total int)
}

// Build constructs the tree from scratch over data. The vantage-selection
// PRNG is reseeded to the fixed build seed so repeated builds over
// unchanged data are reproducible.
func (t *Tree) Build(ctx context.Context, data Data, dist Func, progress Progress) error {
	t.data = data
	t.dist = dist
	t.rng = randsrc.Seeded(buildSeed)
	n := data.Size()
	t.order = make([]int, n)
	for i := range t.order {
		t.order[i] = i
	}
	t.nodes = make([]node, 0, n)
	done := 0
	root, err := t.build(ctx, 0, n, &done, progress)
	if err != nil {
		return err
	}
	t.root = root
	if progress != nil {
		progress.Report(n, n)
	}
	return nil
}

func (t *Tree) build(ctx context.Context, lower, upper int, done *int, progress Progress) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	if progress != nil {
		progress.Report(*done, len(t.order))
	}
	if upper == lower {
		return -1, nil
	}

	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{pos: lower, in: -1, out: -1})

	if upper-lower > 1 {
		vantage := lower + t.rng.Intn(upper-lower)
		t.order[lower], t.order[vantage] = t.order[vantage], t.order[lower]
		median := (upper + lower) / 2

		vantageRow := t.order[lower]
		vantageVec := t.data.NumberVector(vantageRow)
		var selErr error
		quickSelect(t.order[lower+1:upper], median-(lower+1), func(a, b int) bool {
			da, err := t.dist(t.data.NumberVector(a), vantageVec)
			if err != nil {
				selErr = err
			}
			db, err := t.dist(t.data.NumberVector(b), vantageVec)
			if err != nil {
				selErr = err
			}
			return da < db
		})
		if selErr != nil {
			return -1, selErr
		}

		threshold, err := t.dist(vantageVec, t.data.NumberVector(t.order[median]))
		if err != nil {
			return -1, err
		}

		in, err := t.build(ctx, lower+1, median, done, progress)
		if err != nil {
			return -1, err
		}
		out, err := t.build(ctx, median, upper, done, progress)
		if err != nil {
			return -1, err
		}
		t.nodes[idx].threshold = threshold
		t.nodes[idx].in = in
		t.nodes[idx].out = out
	}
	*done++
	return idx, nil
}

// Search returns the k nearest rows to target, ascending by distance, ties
// broken by row id ascending.
func (t *Tree) Search(target []float32, k int) ([]Element, error) {
	h := &maxHeap{}
	heap.Init(h)
	t.tau = posInf
	t.unique = make(map[float32]struct{})

	if err := t.search(t.root, target, k, h); err != nil {
		return nil, err
	}
	return finishResult(h, k, t.rng), nil
}

func (t *Tree) search(n int, target []float32, k int, h *maxHeap) error {
	if n < 0 {
		return nil
	}
	nd := t.nodes[n]
	row := t.order[nd.pos]
	d, err := t.dist(t.data.NumberVector(row), target)
	if err != nil {
		return err
	}
	if d <= t.tau {
		t.unique[d] = struct{}{}
		if len(t.unique) > k || h.Len() > maxCandidates {
			evict(h, t.unique)
			heap.Push(h, Element{Index: row, Distance: d})
			t.tau = (*h)[0].Distance
		} else {
			heap.Push(h, Element{Index: row, Distance: d})
			if len(t.unique) == k {
				t.tau = (*h)[0].Distance
			}
		}
	}

	switch {
	case d < nd.threshold:
		if err := t.search(nd.in, target, k, h); err != nil {
			return err
		}
		if d+t.tau >= nd.threshold {
			return t.search(nd.out, target, k, h)
		}
	case d == nd.threshold:
		if err := t.search(nd.in, target, k, h); err != nil {
			return err
		}
		return t.search(nd.out, target, k, h)
	default:
		if err := t.search(nd.out, target, k, h); err != nil {
			return err
		}
		if d-t.tau <= nd.threshold {
			return t.search(nd.in, target, k, h)
		}
	}
	return nil
}

// LinearSearch is the brute-force k-NN search used by Test to validate the
// tree. It scans the data passed to the last Build, so Build must have
// been called first. It reuses
// whatever running radius a prior Search left behind as its starting bound,
// matching the original's (intentional) carried-over tau between the two
// searches in test().
func (t *Tree) LinearSearch(target []float32, k int) ([]Element, error) {
	h := &maxHeap{}
	heap.Init(h)
	t.unique = make(map[float32]struct{})

	for i := 0; i < t.data.Size(); i++ {
		d, err := t.dist(t.data.NumberVector(i), target)
		if err != nil {
			return nil, err
		}
		if d <= t.tau {
			t.unique[d] = struct{}{}
			if len(t.unique) > k {
				evict(h, t.unique)
				heap.Push(h, Element{Index: i, Distance: d})
				t.tau = (*h)[0].Distance
			} else {
				heap.Push(h, Element{Index: i, Distance: d})
				if len(t.unique) == k {
					t.tau = (*h)[0].Distance
				}
			}
		}
	}
	return finishResult(h, k, t.rng), nil
}

// Test validates the tree's Search against LinearSearch for every row in
// [begin, end), requesting k neighbors each time.
func (t *Tree) Test(begin, end, k int) error {
	n := t.data.Size()
	if begin > n {
		begin = n
	}
	if end > n {
		end = n
	}
	for i := begin; i < end; i++ {
		vec := t.data.NumberVector(i)
		treeResult, err := t.Search(vec, k)
		if err != nil {
			return err
		}
		linearResult, err := t.LinearSearch(vec, k)
		if err != nil {
			return err
		}
		for j := range treeResult {
			if treeResult[j].Distance != linearResult[j].Distance {
				return ErrNearestNeighborMismatch
			}
		}
	}
	return nil
}

// evict drops every heap entry tied at the current maximum distance and
// removes that distance from the unique set, mirroring the original's
// eviction loop over its std::priority_queue.
func evict(h *maxHeap, unique map[float32]struct{}) {
	if h.Len() == 0 {
		return
	}
	tau := (*h)[0].Distance
	for h.Len() > 0 && (*h)[0].Distance == tau {
		heap.Pop(h)
	}
	delete(unique, tau)
}

// finishResult drains the heap into ascending distance order and, when the
// tie-inclusive heap holds more than k elements, keeps every element nearer
// than the k-th distance and fills the remaining slots with a random
// without-replacement draw from the elements tied at that distance. The
// result is then stably sorted by (distance, index).
func finishResult(h *maxHeap, k int, rng *mrand.Rand) []Element {
	all := make([]Element, h.Len())
	for i := len(all) - 1; i >= 0; i-- {
		all[i] = heap.Pop(h).(Element)
	}

	if len(all) > k {
		lo, hi := 0, 0
		if k > 0 {
			boundary := all[k-1].Distance
			lo = sort.Search(len(all), func(i int) bool { return all[i].Distance >= boundary })
			hi = sort.Search(len(all), func(i int) bool { return all[i].Distance > boundary })
		}
		tied := kNearestNeighbors(k-lo, append([]Element(nil), all[lo:hi]...), rng)
		all = append(all[:lo:lo], tied...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Distance != all[j].Distance {
			return all[i].Distance < all[j].Distance
		}
		return all[i].Index < all[j].Index
	})
	return all
}

// kNearestNeighbors downsamples candidates to k elements by repeated
// without-replacement uniform draws, reusing the tree's own vantage-
// selection PRNG stream (the original reuses its single
// _uniformIntDistribution member for both purposes).
func kNearestNeighbors(k int, candidates []Element, rng *mrand.Rand) []Element {
	picked := make([]Element, 0, k)
	for i := 0; i < k; i++ {
		r := rng.Intn(len(candidates))
		picked = append(picked, candidates[r])
		candidates = append(candidates[:r], candidates[r+1:]...)
	}
	return picked
}
