// Copyright © 2024-2025 Chao Zhang <czlabs.bio@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package graph stores node-labeled directed acyclic graphs in CSR
// (compressed sparse row) format, with both in- and out-adjacency views,
// and expands them into the per-character view the alignment engine
// consumes.
package graph

import (
	"fmt"
	"io"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
	"github.com/twotwotwo/sorts/sortutil"
)

// ErrMalformed is the base error for graphs which fail verification:
// cycles, empty labels, adjacency offset inconsistencies, or
// out-of-range vertex ids.
var ErrMalformed = errors.New("malformed graph")

// topoSortRuns is the number of random runs of Kahn's algorithm tried
// when relabeling; the ordering with the smallest directed bandwidth wins.
const topoSortRuns = 5

// Graph is a directed graph in CSR format. Each vertex carries a
// non-empty DNA sequence. Adjacency (out/in) of vertex i is stored in
// AdjOut/AdjIn starting at index OffsetsOut[i]/OffsetsIn[i] and ending
// before index OffsetsOut[i+1]/OffsetsIn[i+1]. Both views cover the same
// edge set; keeping them separately is redundant but convenient for the
// DP sweeps which walk in-edges forward and out-edges backward.
type Graph struct {
	NumVertices int32
	NumEdges    int32

	AdjIn  []int32
	AdjOut []int32

	OffsetsIn  []int32
	OffsetsOut []int32

	// DNA sequence of each vertex
	Labels []string
}

// New returns a graph with n label-less vertices and no edges.
func New(n int32) *Graph {
	return &Graph{
		NumVertices: n,
		Labels:      make([]string, n),
		OffsetsIn:   make([]int32, n+1),
		OffsetsOut:  make([]int32, n+1),
	}
}

// SetLabel assigns the sequence of vertex id. A label may be set once.
func (g *Graph) SetLabel(id int32, seq string) error {
	if id < 0 || id >= g.NumVertices {
		return errors.Wrapf(ErrMalformed, "vertex id %d out of range [0, %d)", id, g.NumVertices)
	}
	if g.Labels[id] != "" {
		return errors.Wrapf(ErrMalformed, "vertex %d labeled twice", id)
	}
	if seq == "" {
		return errors.Wrapf(ErrMalformed, "empty label for vertex %d", id)
	}
	g.Labels[id] = seq
	return nil
}

// InitEdges fills both CSR views from a list of directed edges.
// The edge list is consumed (sorted in place, twice).
func (g *Graph) InitEdges(edges [][2]int32) error {
	for _, e := range edges {
		if e[0] < 0 || e[0] >= g.NumVertices || e[1] < 0 || e[1] >= g.NumVertices {
			return errors.Wrapf(ErrMalformed, "edge (%d, %d) out of range [0, %d)", e[0], e[1], g.NumVertices)
		}
	}

	g.NumEdges = int32(len(edges))

	// pack <from, to> into uint64 keys so the radix sort groups edges by
	// source, then fill offsets and adjacency in one pass
	keys := make([]uint64, len(edges))

	// out-edges
	for i, e := range edges {
		keys[i] = uint64(uint32(e[0]))<<32 | uint64(uint32(e[1]))
	}
	sortutil.Uint64s(keys)

	g.AdjOut = make([]int32, 0, g.NumEdges)
	g.OffsetsOut = make([]int32, g.NumVertices+1)
	fillCSR(keys, g.NumVertices, &g.AdjOut, g.OffsetsOut)

	// in-edges: <to, from>
	for i, e := range edges {
		keys[i] = uint64(uint32(e[1]))<<32 | uint64(uint32(e[0]))
	}
	sortutil.Uint64s(keys)

	g.AdjIn = make([]int32, 0, g.NumEdges)
	g.OffsetsIn = make([]int32, g.NumVertices+1)
	fillCSR(keys, g.NumVertices, &g.AdjIn, g.OffsetsIn)

	return nil
}

func fillCSR(keys []uint64, n int32, adj *[]int32, offsets []int32) {
	var i int
	for v := int32(0); v < n; v++ {
		for i < len(keys) && int32(keys[i]>>32) == v {
			*adj = append(*adj, int32(uint32(keys[i])))
			i++
		}
		offsets[v+1] = int32(i)
	}
}

// EdgeExists reports whether there is an edge from u to v.
func (g *Graph) EdgeExists(u, v int32) bool {
	for i := g.OffsetsOut[u]; i < g.OffsetsOut[u+1]; i++ {
		if g.AdjOut[i] == v {
			return true
		}
	}
	return false
}

// TotalRefLength returns the total reference sequence length
// represented by the graph.
func (g *Graph) TotalRefLength() int64 {
	var total int64
	for _, seq := range g.Labels {
		total += int64(len(seq))
	}
	return total
}

// Verify checks the CSR storage for consistency: labels present,
// adjacency ids in range, offsets monotonic and ending at NumEdges, and
// vertex numbering being a valid topological order.
func (g *Graph) Verify() error {
	if int32(len(g.Labels)) != g.NumVertices {
		return errors.Wrapf(ErrMalformed, "%d labels for %d vertices", len(g.Labels), g.NumVertices)
	}
	for i, seq := range g.Labels {
		if len(seq) == 0 {
			return errors.Wrapf(ErrMalformed, "empty label for vertex %d", i)
		}
	}

	if int32(len(g.AdjIn)) != g.NumEdges || int32(len(g.AdjOut)) != g.NumEdges {
		return errors.Wrapf(ErrMalformed, "adjacency sizes (%d, %d) do not match edge count %d",
			len(g.AdjIn), len(g.AdjOut), g.NumEdges)
	}
	for _, adj := range [2][]int32{g.AdjIn, g.AdjOut} {
		for _, v := range adj {
			if v < 0 || v >= g.NumVertices {
				return errors.Wrapf(ErrMalformed, "adjacency refers to vertex %d, out of range [0, %d)", v, g.NumVertices)
			}
		}
	}

	for _, offsets := range [2][]int32{g.OffsetsIn, g.OffsetsOut} {
		if int32(len(offsets)) != g.NumVertices+1 {
			return errors.Wrapf(ErrMalformed, "offset array size %d for %d vertices", len(offsets), g.NumVertices)
		}
		for i, off := range offsets {
			if off < 0 || off > g.NumEdges {
				return errors.Wrapf(ErrMalformed, "offset %d at position %d out of range [0, %d]", off, i, g.NumEdges)
			}
			if i > 0 && off < offsets[i-1] {
				return errors.Wrapf(ErrMalformed, "offsets decrease at position %d", i)
			}
		}
		if offsets[g.NumVertices] != g.NumEdges {
			return errors.Wrapf(ErrMalformed, "offsets end at %d, want %d", offsets[g.NumVertices], g.NumEdges)
		}
	}

	// topological numbering
	for i := int32(0); i < g.NumVertices; i++ {
		for j := g.OffsetsOut[i]; j < g.OffsetsOut[i+1]; j++ {
			if g.AdjOut[j] <= i {
				return errors.Wrapf(ErrMalformed, "edge (%d, %d) violates topological numbering", i, g.AdjOut[j])
			}
		}
	}

	return nil
}

// Sort relabels the graph in a topologically sorted order. Several
// random-tie runs of Kahn's algorithm are tried and the ordering with
// the smallest directed bandwidth is kept, since the bandwidth bounds
// how far back a DP row has to reach. A cycle is reported as an error.
func (g *Graph) Sort() (bandwidth int64, err error) {
	order := make([]int32, g.NumVertices)
	bandwidth, err = g.topologicalSort(topoSortRuns, order)
	if err != nil {
		return 0, err
	}

	// sorted position to vertex mapping
	rOrder := make([]int32, g.NumVertices)
	for i := int32(0); i < g.NumVertices; i++ {
		rOrder[order[i]] = i
	}

	labels := make([]string, g.NumVertices)
	for i := int32(0); i < g.NumVertices; i++ {
		labels[i] = g.Labels[rOrder[i]]
	}
	g.Labels = labels

	adjIn := make([]int32, 0, g.NumEdges)
	adjOut := make([]int32, 0, g.NumEdges)
	for i := int32(0); i < g.NumVertices; i++ {
		for j := g.OffsetsIn[rOrder[i]]; j < g.OffsetsIn[rOrder[i]+1]; j++ {
			adjIn = append(adjIn, order[g.AdjIn[j]])
		}
	}
	for i := int32(0); i < g.NumVertices; i++ {
		for j := g.OffsetsOut[rOrder[i]]; j < g.OffsetsOut[rOrder[i]+1]; j++ {
			adjOut = append(adjOut, order[g.AdjOut[j]])
		}
	}

	offsetsIn := make([]int32, g.NumVertices+1)
	offsetsOut := make([]int32, g.NumVertices+1)
	for i := int32(0); i < g.NumVertices; i++ {
		offsetsIn[i+1] = offsetsIn[i] + (g.OffsetsIn[rOrder[i]+1] - g.OffsetsIn[rOrder[i]])
		offsetsOut[i+1] = offsetsOut[i] + (g.OffsetsOut[rOrder[i]+1] - g.OffsetsOut[rOrder[i]])
	}

	g.AdjIn, g.AdjOut = adjIn, adjOut
	g.OffsetsIn, g.OffsetsOut = offsetsIn, offsetsOut

	return bandwidth, nil
}

// topologicalSort computes a vertex-to-position mapping with Kahn's
// algorithm, breaking ties randomly, over the given number of runs.
// It returns the bandwidth of the winning ordering.
func (g *Graph) topologicalSort(runs int, finalOrder []int32) (int64, error) {
	inDegree := make([]int32, g.NumVertices)
	for i := int32(0); i < g.NumVertices; i++ {
		inDegree[i] = g.OffsetsIn[i+1] - g.OffsetsIn[i]
	}

	r := rand.New(rand.NewSource(int64(g.NumVertices)*31 + int64(g.NumEdges)))

	var minBandwidth int64 = -1
	deg := make([]int32, g.NumVertices)
	queue := make([]int32, 0, g.NumVertices)
	tmpOrder := make([]int32, g.NumVertices)

	for run := 0; run < runs; run++ {
		copy(deg, inDegree)
		queue = queue[:0]
		for i := int32(0); i < g.NumVertices; i++ {
			if deg[i] == 0 {
				queue = append(queue, i)
			}
		}

		var currentOrder int32
		for len(queue) > 0 {
			k := r.Intn(len(queue))
			v := queue[k]
			queue[k] = queue[len(queue)-1]
			queue = queue[:len(queue)-1]

			tmpOrder[v] = currentOrder
			currentOrder++

			for j := g.OffsetsOut[v]; j < g.OffsetsOut[v+1]; j++ {
				deg[g.AdjOut[j]]--
				if deg[g.AdjOut[j]] == 0 {
					queue = append(queue, g.AdjOut[j])
				}
			}
		}

		if currentOrder != g.NumVertices {
			return 0, errors.Wrapf(ErrMalformed, "cycle detected, only %d of %d vertices ordered",
				currentOrder, g.NumVertices)
		}

		b := g.directedBandwidth(tmpOrder)
		if minBandwidth < 0 || b < minBandwidth {
			minBandwidth = b
			copy(finalOrder, tmpOrder)
		}
	}

	return minBandwidth, nil
}

// directedBandwidth computes the maximum distance between connected
// vertices under the given ordering, counting the width of the chunk
// vertices in between. It bounds the count of prior columns the DP
// needs along a single row.
func (g *Graph) directedBandwidth(order []int32) int64 {
	reverseOrder := make([]int32, g.NumVertices)
	for i := int32(0); i < g.NumVertices; i++ {
		reverseOrder[order[i]] = i
	}

	var bandwidth int64
	for i := int32(0); i < g.NumVertices; i++ {
		for j := g.OffsetsOut[i]; j < g.OffsetsOut[i+1]; j++ {
			fromPos := order[i]
			toPos := order[g.AdjOut[j]]

			b := int64(toPos - fromPos)
			for k := fromPos + 1; k < toPos; k++ {
				b += int64(len(g.Labels[reverseOrder[k]]) - 1)
			}

			if b > bandwidth {
				bandwidth = b
			}
		}
	}
	return bandwidth
}

// LowerBoundBandwidth computes a loose lower bound for the directed
// bandwidth over all orderings, from in-neighborhoods, out-neighborhoods
// and single-insertion bubbles.
func (g *Graph) LowerBoundBandwidth() int64 {
	var lbound int64

	neighborBound := func(adj []int32, offsets []int32) {
		for i := int32(0); i < g.NumVertices; i++ {
			var minimumDist int64 = 1 // minimum width required is 1
			var maxWidth int64
			for j := offsets[i]; j < offsets[i+1]; j++ {
				w := int64(len(g.Labels[adj[j]]))
				if w > maxWidth {
					maxWidth = w
				}
				minimumDist += w
			}
			minimumDist -= maxWidth
			if minimumDist > lbound {
				lbound = minimumDist
			}
		}
	}
	neighborBound(g.AdjOut, g.OffsetsOut)
	neighborBound(g.AdjIn, g.OffsetsIn)

	// single insertion variation: i with out-neighbors {u, v} and u->v
	for i := int32(0); i < g.NumVertices; i++ {
		if g.OffsetsOut[i+1]-g.OffsetsOut[i] != 2 {
			continue
		}
		j := g.OffsetsOut[i]
		u, v := g.AdjOut[j], g.AdjOut[j+1]

		var minimumDist int64 = 1
		if g.EdgeExists(u, v) {
			minimumDist += int64(len(g.Labels[u]))
		} else if g.EdgeExists(v, u) {
			minimumDist += int64(len(g.Labels[v]))
		}
		if minimumDist > lbound {
			lbound = minimumDist
		}
	}

	return lbound
}

// Dump writes the graph in the text input format: vertex count first,
// then one line per vertex with its out-neighbors and sequence.
func (g *Graph) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%d\n", g.NumVertices); err != nil {
		return err
	}
	for i := int32(0); i < g.NumVertices; i++ {
		for j := g.OffsetsOut[i]; j < g.OffsetsOut[i+1]; j++ {
			if _, err := fmt.Fprintf(w, "%d ", g.AdjOut[j]); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s\n", g.Labels[i]); err != nil {
			return err
		}
	}
	return nil
}

// sortAdjacency sorts every per-vertex adjacency list ascending.
// Relabeling leaves the lists in arbitrary order; a fixed order keeps
// the traceback's first-encountered-neighbor tie-break reproducible.
func sortAdjacency(adj []int32, offsets []int32, n int32) {
	for i := int32(0); i < n; i++ {
		s := adj[offsets[i]:offsets[i+1]]
		sort.Slice(s, func(a, b int) bool { return s[a] < s[b] })
	}
}

// SortAdjacency fixes the order of both adjacency views after Sort.
func (g *Graph) SortAdjacency() {
	sortAdjacency(g.AdjIn, g.OffsetsIn, g.NumVertices)
	sortAdjacency(g.AdjOut, g.OffsetsOut, g.NumVertices)
}
