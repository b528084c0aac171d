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
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

const chainTxt = `4
1 AC
2 GT
3 GCCTG
CT
`

const bubbleTxt = `4
1 2 A
3 C
3 G
T
`

func TestParseTxt(t *testing.T) {
	g, err := ParseTxt(strings.NewReader(chainTxt))
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	if err = g.Verify(); err != nil {
		t.Fatalf("verify: %s", err)
	}

	if g.NumVertices != 4 || g.NumEdges != 3 {
		t.Errorf("got %d vertices, %d edges, want 4, 3", g.NumVertices, g.NumEdges)
	}
	if g.Labels[2] != "GCCTG" {
		t.Errorf("label of vertex 2: %q, want GCCTG", g.Labels[2])
	}
	if g.TotalRefLength() != 11 {
		t.Errorf("total length: %d, want 11", g.TotalRefLength())
	}

	for _, e := range [][2]int32{{0, 1}, {1, 2}, {2, 3}} {
		if !g.EdgeExists(e[0], e[1]) {
			t.Errorf("missing edge (%d, %d)", e[0], e[1])
		}
	}
	if g.EdgeExists(0, 3) {
		t.Error("unexpected edge (0, 3)")
	}
}

func TestParseTxtMalformed(t *testing.T) {
	for _, in := range []string{
		"",             // no vertex count
		"x\nA\n",       // invalid count
		"2\nA\n",       // missing vertex line
		"1\n\n",        // empty vertex line
		"2\n5 A\nC\n",  // neighbor out of range
		"2\nzz A\nC\n", // invalid neighbor id
	} {
		if _, err := ParseTxt(strings.NewReader(in)); err == nil {
			t.Errorf("no error for %q", in)
		}
	}
}

func TestVerifyTopologicalOrder(t *testing.T) {
	g := New(2)
	g.SetLabel(0, "A")
	g.SetLabel(1, "C")
	if err := g.InitEdges([][2]int32{{1, 0}}); err != nil {
		t.Fatalf("init edges: %s", err)
	}
	err := g.Verify()
	if err == nil {
		t.Fatal("no error for back edge")
	}
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("error does not wrap ErrMalformed: %s", err)
	}
}

func TestSortCycle(t *testing.T) {
	g := New(2)
	g.SetLabel(0, "A")
	g.SetLabel(1, "C")
	if err := g.InitEdges([][2]int32{{0, 1}, {1, 0}}); err != nil {
		t.Fatalf("init edges: %s", err)
	}
	if _, err := g.Sort(); !errors.Is(err, ErrMalformed) {
		t.Errorf("cycle not detected: %v", err)
	}
}

func TestSortRelabels(t *testing.T) {
	// numbering is not topological: 2 -> 0 -> 1
	g := New(3)
	g.SetLabel(0, "GT")
	g.SetLabel(1, "CT")
	g.SetLabel(2, "AC")
	if err := g.InitEdges([][2]int32{{2, 0}, {0, 1}}); err != nil {
		t.Fatalf("init edges: %s", err)
	}
	if err := g.Verify(); err == nil {
		t.Fatal("numbering should not verify before sorting")
	}

	bandwidth, err := g.Sort()
	if err != nil {
		t.Fatalf("sort: %s", err)
	}
	g.SortAdjacency()
	if err = g.Verify(); err != nil {
		t.Fatalf("verify after sort: %s", err)
	}
	if bandwidth != 1 {
		t.Errorf("bandwidth: %d, want 1", bandwidth)
	}
	if g.Labels[0] != "AC" || g.Labels[1] != "GT" || g.Labels[2] != "CT" {
		t.Errorf("labels after sort: %v", g.Labels)
	}
}

func TestLowerBoundBandwidth(t *testing.T) {
	g, err := ParseTxt(strings.NewReader(bubbleTxt))
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	lb := g.LowerBoundBandwidth()
	if lb < 1 {
		t.Errorf("lower bound: %d, want >= 1", lb)
	}

	bandwidth, err := g.Sort()
	if err != nil {
		t.Fatalf("sort: %s", err)
	}
	if int64(bandwidth) < lb {
		t.Errorf("bandwidth %d below its lower bound %d", bandwidth, lb)
	}
}

func TestExpandChars(t *testing.T) {
	g, err := ParseTxt(strings.NewReader(chainTxt))
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	cg, err := ExpandChars(g)
	if err != nil {
		t.Fatalf("expand: %s", err)
	}

	if cg.NumVertices != 11 {
		t.Fatalf("char vertices: %d, want 11", cg.NumVertices)
	}
	// chain edges plus one edge per chunk edge
	if cg.NumEdges != 11-4+3 {
		t.Errorf("char edges: %d, want %d", cg.NumEdges, 11-4+3)
	}
	if string(cg.Labels) != "ACGTGCCTGCT" {
		t.Errorf("char labels: %q, want ACGTGCCTGCT", cg.Labels)
	}
	if cg.Bandwidth() != 1 {
		t.Errorf("char bandwidth: %d, want 1", cg.Bandwidth())
	}

	if o := cg.Origins[4]; o.Vertex != 2 || o.Offset != 0 {
		t.Errorf("origin of char vertex 4: %+v, want (2, 0)", o)
	}
	if o := cg.Origins[10]; o.Vertex != 3 || o.Offset != 1 {
		t.Errorf("origin of char vertex 10: %+v, want (3, 1)", o)
	}
}

func TestExpandCharsBubble(t *testing.T) {
	g, err := ParseTxt(strings.NewReader(bubbleTxt))
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	cg, err := ExpandChars(g)
	if err != nil {
		t.Fatalf("expand: %s", err)
	}
	if cg.NumVertices != 4 || cg.NumEdges != 4 {
		t.Errorf("got %d vertices, %d edges, want 4, 4", cg.NumVertices, cg.NumEdges)
	}
	if cg.Bandwidth() != 3 {
		t.Errorf("char bandwidth: %d, want 3", cg.Bandwidth())
	}
	// in-neighbors of the sink
	in := cg.AdjIn[cg.OffsetsIn[3]:cg.OffsetsIn[4]]
	if len(in) != 2 || in[0] != 1 || in[1] != 2 {
		t.Errorf("in-neighbors of vertex 3: %v, want [1 2]", in)
	}
}

func TestExpandCharsLowercaseAndN(t *testing.T) {
	g, err := ParseTxt(strings.NewReader("1\nacgtN\n"))
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	cg, err := ExpandChars(g)
	if err != nil {
		t.Fatalf("expand: %s", err)
	}
	if string(cg.Labels) != "ACGTN" {
		t.Errorf("char labels: %q, want ACGTN", cg.Labels)
	}

	g, _ = ParseTxt(strings.NewReader("1\nAXGT\n"))
	if _, err = ExpandChars(g); !errors.Is(err, ErrMalformed) {
		t.Errorf("non-nucleotide label not rejected: %v", err)
	}
}

func TestDumpRoundTrip(t *testing.T) {
	g, err := ParseTxt(strings.NewReader(chainTxt))
	if err != nil {
		t.Fatalf("parse: %s", err)
	}

	var buf bytes.Buffer
	if err = g.Dump(&buf); err != nil {
		t.Fatalf("dump: %s", err)
	}
	g2, err := ParseTxt(&buf)
	if err != nil {
		t.Fatalf("reparse: %s", err)
	}

	if g2.NumVertices != g.NumVertices || g2.NumEdges != g.NumEdges {
		t.Errorf("round trip changed counts: %d/%d vs %d/%d",
			g2.NumVertices, g2.NumEdges, g.NumVertices, g.NumEdges)
	}
	for i, label := range g.Labels {
		if g2.Labels[i] != label {
			t.Errorf("round trip changed label %d: %q vs %q", i, g2.Labels[i], label)
		}
	}
}
