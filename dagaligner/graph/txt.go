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
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// LoadTxt reads a graph in the text format: the first line holds the
// vertex count n, and lines 1..n describe vertex i-1 as zero or more
// out-neighbor ids (ascending integers) followed by the vertex's DNA
// sequence, whitespace-separated. The file may be gzip-compressed.
func LoadTxt(file string) (*Graph, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open graph file: %s", file)
	}
	defer fh.Close()

	g, err := ParseTxt(fh)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse graph file: %s", file)
	}
	return g, nil
}

// ParseTxt parses the text graph format from a reader.
func ParseTxt(r io.Reader) (*Graph, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<30)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errors.Wrap(ErrMalformed, "empty graph file")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(scanner.Text()), 10, 32)
	if err != nil || n <= 0 {
		return nil, errors.Wrapf(ErrMalformed, "invalid vertex count: %q", scanner.Text())
	}

	g := New(int32(n))
	edges := make([][2]int32, 0, n)

	for i := int32(0); i < int32(n); i++ {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			return nil, errors.Wrapf(ErrMalformed, "%d vertex lines for %d vertices", i, n)
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			return nil, errors.Wrapf(ErrMalformed, "empty line for vertex %d", i)
		}

		// all fields but the last are out-neighbor ids
		for _, f := range fields[:len(fields)-1] {
			to, err := strconv.ParseInt(f, 10, 32)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformed, "invalid neighbor id %q for vertex %d", f, i)
			}
			if to < 0 || to >= n {
				return nil, errors.Wrapf(ErrMalformed, "neighbor id %d of vertex %d out of range [0, %d)", to, i, n)
			}
			edges = append(edges, [2]int32{i, int32(to)})
		}

		if err = g.SetLabel(i, fields[len(fields)-1]); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if err = g.InitEdges(edges); err != nil {
		return nil, err
	}
	return g, nil
}
