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

package graph

import (
	"github.com/pkg/errors"
)

// Origin maps a char-vertex back to the chunk vertex it came from and
// the character offset within that vertex's sequence.
type Origin struct {
	Vertex int32
	Offset int32
}

// CharGraph is the character-per-vertex view of a chunk graph: every
// chunk vertex of length l becomes l char-vertices joined by a chain,
// and every chunk edge connects the last char-vertex of the source to
// the first char-vertex of the target. The numbering inherits the chunk
// graph's topological order, so u < v holds for every edge u -> v.
//
// The alignment engine treats char-vertices as DP columns and only ever
// reads this structure, so a single CharGraph is shared by all workers.
type CharGraph struct {
	NumVertices int32
	NumEdges    int32

	// one uppercase nucleotide per vertex
	Labels []byte

	AdjIn  []int32
	AdjOut []int32

	OffsetsIn  []int32
	OffsetsOut []int32

	// char-vertex to (chunk vertex, offset) translation
	Origins []Origin
}

// ExpandChars builds the char-vertex view of a chunk graph. The chunk
// graph must already be verified and topologically numbered.
func ExpandChars(g *Graph) (*CharGraph, error) {
	// first char-vertex id of each chunk vertex
	start := make([]int32, g.NumVertices+1)
	for i := int32(0); i < g.NumVertices; i++ {
		start[i+1] = start[i] + int32(len(g.Labels[i]))
	}
	n := start[g.NumVertices]

	cg := &CharGraph{
		NumVertices: n,
		Labels:      make([]byte, 0, n),
		Origins:     make([]Origin, 0, n),
	}

	for i := int32(0); i < g.NumVertices; i++ {
		seq := g.Labels[i]
		for off := 0; off < len(seq); off++ {
			c := seq[off]
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			switch c {
			case 'A', 'C', 'G', 'T', 'N':
			default:
				return nil, errors.Wrapf(ErrMalformed, "vertex %d carries non-nucleotide character %q", i, seq[off])
			}
			cg.Labels = append(cg.Labels, c)
			cg.Origins = append(cg.Origins, Origin{Vertex: i, Offset: int32(off)})
		}
	}

	// intra-chunk chains plus one char edge per chunk edge
	numEdges := n - g.NumVertices + g.NumEdges
	cg.NumEdges = numEdges

	edges := make([][2]int32, 0, numEdges)
	for i := int32(0); i < g.NumVertices; i++ {
		for v := start[i]; v < start[i+1]-1; v++ {
			edges = append(edges, [2]int32{v, v + 1})
		}
		last := start[i+1] - 1
		for j := g.OffsetsOut[i]; j < g.OffsetsOut[i+1]; j++ {
			edges = append(edges, [2]int32{last, start[g.AdjOut[j]]})
		}
	}

	tmp := Graph{NumVertices: n, NumEdges: numEdges}
	if err := tmp.InitEdges(edges); err != nil {
		return nil, err
	}
	cg.AdjIn, cg.AdjOut = tmp.AdjIn, tmp.AdjOut
	cg.OffsetsIn, cg.OffsetsOut = tmp.OffsetsIn, tmp.OffsetsOut

	return cg, cg.Verify()
}

// Verify checks CSR consistency and the topological numbering of the
// char-vertex view.
func (cg *CharGraph) Verify() error {
	if int32(len(cg.Labels)) != cg.NumVertices || int32(len(cg.Origins)) != cg.NumVertices {
		return errors.Wrapf(ErrMalformed, "char graph label/origin sizes (%d, %d) do not match vertex count %d",
			len(cg.Labels), len(cg.Origins), cg.NumVertices)
	}
	if int32(len(cg.AdjIn)) != cg.NumEdges || int32(len(cg.AdjOut)) != cg.NumEdges {
		return errors.Wrapf(ErrMalformed, "char graph adjacency sizes (%d, %d) do not match edge count %d",
			len(cg.AdjIn), len(cg.AdjOut), cg.NumEdges)
	}
	for _, offsets := range [2][]int32{cg.OffsetsIn, cg.OffsetsOut} {
		if int32(len(offsets)) != cg.NumVertices+1 {
			return errors.Wrapf(ErrMalformed, "char graph offset array size %d for %d vertices",
				len(offsets), cg.NumVertices)
		}
		for i := 1; i < len(offsets); i++ {
			if offsets[i] < offsets[i-1] {
				return errors.Wrapf(ErrMalformed, "char graph offsets decrease at position %d", i)
			}
		}
		if offsets[cg.NumVertices] != cg.NumEdges {
			return errors.Wrapf(ErrMalformed, "char graph offsets end at %d, want %d",
				offsets[cg.NumVertices], cg.NumEdges)
		}
	}
	for i := int32(0); i < cg.NumVertices; i++ {
		for j := cg.OffsetsOut[i]; j < cg.OffsetsOut[i+1]; j++ {
			if cg.AdjOut[j] <= i {
				return errors.Wrapf(ErrMalformed, "char edge (%d, %d) violates topological numbering", i, cg.AdjOut[j])
			}
		}
		for j := cg.OffsetsIn[i]; j < cg.OffsetsIn[i+1]; j++ {
			if cg.AdjIn[j] >= i {
				return errors.Wrapf(ErrMalformed, "char in-edge (%d, %d) violates topological numbering", cg.AdjIn[j], i)
			}
		}
	}
	return nil
}

// Bandwidth returns the directed bandwidth of the char-vertex view,
// the largest v-u over all edges u -> v.
func (cg *CharGraph) Bandwidth() int32 {
	var bandwidth int32
	for i := int32(0); i < cg.NumVertices; i++ {
		for j := cg.OffsetsOut[i]; j < cg.OffsetsOut[i+1]; j++ {
			if d := cg.AdjOut[j] - i; d > bandwidth {
				bandwidth = d
			}
		}
	}
	return bandwidth
}
