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
	"bufio"
	"encoding/binary"
	"io"
	"sort"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// VGNode is a node message of the vg graph format.
type VGNode struct {
	Sequence string `protobuf:"bytes,1,opt,name=sequence,proto3" json:"sequence,omitempty"`
	Name     string `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	Id       int64  `protobuf:"varint,3,opt,name=id,proto3" json:"id,omitempty"`
}

func (m *VGNode) Reset()         { *m = VGNode{} }
func (m *VGNode) String() string { return proto.CompactTextString(m) }
func (*VGNode) ProtoMessage()    {}

// VGEdge is an edge message of the vg graph format.
type VGEdge struct {
	From      int64 `protobuf:"varint,1,opt,name=from,proto3" json:"from,omitempty"`
	To        int64 `protobuf:"varint,2,opt,name=to,proto3" json:"to,omitempty"`
	FromStart bool  `protobuf:"varint,3,opt,name=from_start,json=fromStart,proto3" json:"from_start,omitempty"`
	ToEnd     bool  `protobuf:"varint,4,opt,name=to_end,json=toEnd,proto3" json:"to_end,omitempty"`
	Overlap   int32 `protobuf:"varint,5,opt,name=overlap,proto3" json:"overlap,omitempty"`
}

func (m *VGEdge) Reset()         { *m = VGEdge{} }
func (m *VGEdge) String() string { return proto.CompactTextString(m) }
func (*VGEdge) ProtoMessage()    {}

// VGGraph is one graph chunk of the vg stream; a stream usually carries
// many chunks, each holding a slice of the node and edge sets.
type VGGraph struct {
	Node []*VGNode `protobuf:"bytes,1,rep,name=node,proto3" json:"node,omitempty"`
	Edge []*VGEdge `protobuf:"bytes,2,rep,name=edge,proto3" json:"edge,omitempty"`
}

func (m *VGGraph) Reset()         { *m = VGGraph{} }
func (m *VGGraph) String() string { return proto.CompactTextString(m) }
func (*VGGraph) ProtoMessage()    {}

// maximum size of a single message in the stream, a malformed-input guard
const maxVGMessageSize = 1 << 30

// LoadVG reads a graph from a vg-format file: a length-delimited stream
// of protobuf-encoded graph chunks, each group of messages preceded by a
// varint message count and each message by its varint byte length.
func LoadVG(file string) (*Graph, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open graph file: %s", file)
	}
	defer fh.Close()

	g, err := ParseVG(fh)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse graph file: %s", file)
	}
	return g, nil
}

// ParseVG parses the vg stream from a reader.
func ParseVG(r io.Reader) (*Graph, error) {
	br := bufio.NewReaderSize(r, 1<<20)

	var nodes []*VGNode
	var rawEdges []*VGEdge

	buf := make([]byte, 0, 1<<16)
	for {
		count, err := binary.ReadUvarint(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(ErrMalformed, "truncated vg stream header")
		}

		for i := uint64(0); i < count; i++ {
			size, err := binary.ReadUvarint(br)
			if err != nil {
				return nil, errors.Wrap(ErrMalformed, "truncated vg message length")
			}
			if size > maxVGMessageSize {
				return nil, errors.Wrapf(ErrMalformed, "vg message of %d bytes exceeds limit", size)
			}

			if cap(buf) < int(size) {
				buf = make([]byte, size)
			}
			buf = buf[:size]
			if _, err = io.ReadFull(br, buf); err != nil {
				return nil, errors.Wrap(ErrMalformed, "truncated vg message")
			}

			var chunk VGGraph
			if err = proto.Unmarshal(buf, &chunk); err != nil {
				return nil, errors.Wrap(ErrMalformed, err.Error())
			}
			nodes = append(nodes, chunk.Node...)
			rawEdges = append(rawEdges, chunk.Edge...)
		}
	}

	if len(nodes) == 0 {
		return nil, errors.Wrap(ErrMalformed, "vg stream contains no nodes")
	}

	// vg node ids are arbitrary; map them to 0..n-1 in ascending order,
	// the topological relabeling happens later
	ids := make([]int64, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.Id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	id2idx := make(map[int64]int32, len(ids))
	for i, id := range ids {
		if _, ok := id2idx[id]; ok {
			return nil, errors.Wrapf(ErrMalformed, "duplicated vg node id %d", id)
		}
		id2idx[id] = int32(i)
	}

	g := New(int32(len(nodes)))
	for _, node := range nodes {
		if err := g.SetLabel(id2idx[node.Id], node.Sequence); err != nil {
			return nil, err
		}
	}

	edges := make([][2]int32, 0, len(rawEdges))
	for _, e := range rawEdges {
		if e.FromStart || e.ToEnd {
			return nil, errors.Wrapf(ErrMalformed, "reverse-strand vg edge %d -> %d is not supported", e.From, e.To)
		}
		if e.Overlap != 0 {
			return nil, errors.Wrapf(ErrMalformed, "overlapping vg edge %d -> %d is not supported", e.From, e.To)
		}
		from, ok := id2idx[e.From]
		if !ok {
			return nil, errors.Wrapf(ErrMalformed, "vg edge refers to unknown node %d", e.From)
		}
		to, ok := id2idx[e.To]
		if !ok {
			return nil, errors.Wrapf(ErrMalformed, "vg edge refers to unknown node %d", e.To)
		}
		edges = append(edges, [2]int32{from, to})
	}

	if err := g.InitEdges(edges); err != nil {
		return nil, err
	}
	return g, nil
}
