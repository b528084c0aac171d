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
	"encoding/binary"
	"testing"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
)

func writeVGStream(t *testing.T, chunks ...*VGGraph) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	tmp := make([]byte, binary.MaxVarintLen64)

	n := binary.PutUvarint(tmp, uint64(len(chunks)))
	buf.Write(tmp[:n])

	for _, chunk := range chunks {
		data, err := proto.Marshal(chunk)
		if err != nil {
			t.Fatalf("marshal: %s", err)
		}
		n = binary.PutUvarint(tmp, uint64(len(data)))
		buf.Write(tmp[:n])
		buf.Write(data)
	}
	return &buf
}

func TestParseVG(t *testing.T) {
	// ids deliberately sparse and out of order
	buf := writeVGStream(t,
		&VGGraph{
			Node: []*VGNode{
				{Id: 7, Sequence: "GT"},
				{Id: 3, Sequence: "AC"},
			},
			Edge: []*VGEdge{{From: 3, To: 7}},
		},
		&VGGraph{
			Node: []*VGNode{{Id: 9, Sequence: "CT"}},
			Edge: []*VGEdge{{From: 7, To: 9}},
		},
	)

	g, err := ParseVG(buf)
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	if err = g.Verify(); err != nil {
		t.Fatalf("verify: %s", err)
	}

	if g.NumVertices != 3 || g.NumEdges != 2 {
		t.Fatalf("got %d vertices, %d edges, want 3, 2", g.NumVertices, g.NumEdges)
	}
	// ids map in ascending order: 3 -> 0, 7 -> 1, 9 -> 2
	if g.Labels[0] != "AC" || g.Labels[1] != "GT" || g.Labels[2] != "CT" {
		t.Errorf("labels: %v", g.Labels)
	}
	if !g.EdgeExists(0, 1) || !g.EdgeExists(1, 2) {
		t.Error("missing edges after id remapping")
	}
}

func TestParseVGMalformed(t *testing.T) {
	// reverse-strand edge
	buf := writeVGStream(t, &VGGraph{
		Node: []*VGNode{{Id: 1, Sequence: "A"}, {Id: 2, Sequence: "C"}},
		Edge: []*VGEdge{{From: 1, To: 2, FromStart: true}},
	})
	if _, err := ParseVG(buf); !errors.Is(err, ErrMalformed) {
		t.Errorf("reverse-strand edge not rejected: %v", err)
	}

	// edge to an unknown node
	buf = writeVGStream(t, &VGGraph{
		Node: []*VGNode{{Id: 1, Sequence: "A"}},
		Edge: []*VGEdge{{From: 1, To: 5}},
	})
	if _, err := ParseVG(buf); !errors.Is(err, ErrMalformed) {
		t.Errorf("dangling edge not rejected: %v", err)
	}

	// duplicated node id
	buf = writeVGStream(t, &VGGraph{
		Node: []*VGNode{{Id: 1, Sequence: "A"}, {Id: 1, Sequence: "C"}},
	})
	if _, err := ParseVG(buf); !errors.Is(err, ErrMalformed) {
		t.Errorf("duplicated node id not rejected: %v", err)
	}

	// empty stream
	if _, err := ParseVG(bytes.NewReader(nil)); !errors.Is(err, ErrMalformed) {
		t.Errorf("empty stream not rejected: %v", err)
	}

	// truncated message
	data := writeVGStream(t, &VGGraph{Node: []*VGNode{{Id: 1, Sequence: "A"}}}).Bytes()
	if _, err := ParseVG(bytes.NewReader(data[:len(data)-1])); !errors.Is(err, ErrMalformed) {
		t.Errorf("truncated stream not rejected: %v", err)
	}
}
