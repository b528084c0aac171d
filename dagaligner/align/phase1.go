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

package align

import (
	"github.com/pkg/errors"

	"github.com/czlabs/dagaligner/dagaligner/graph"
)

// rowPair is the two-row ring of one DP sweep. Row i lives at index
// i & 1; only the odd row needs clearing between queries, the even row
// is fully rewritten before it is read.
type rowPair [2][]int32

func newRowPair(n int32) *rowPair {
	return &rowPair{make([]int32, n), make([]int32, n)}
}

func (rp *rowPair) reset() {
	row := rp[1]
	for i := range row {
		row[i] = 0
	}
}

// phase1Forward runs the forward DP of query q over the char graph and
// reports the best local score with its end cell. Columns are visited
// in ascending topological order, so same-row deletion chains resolve
// left to right in a single pass. Among cells tying the maximum the
// most recently scanned one wins, which fixes the reported end cell.
func phase1Forward(q []byte, cg *graph.CharGraph, p *Parameters, rows *rowPair) (bestScore, endCol, endRow int32) {
	rows.reset()

	n := cg.NumVertices
	for i := 0; i < len(q); i++ {
		cur := rows[i&1]
		prev := rows[(i+1)&1]
		qc := q[i]

		for j := int32(0); j < n; j++ {
			matchScore := -p.Mismatch
			if cg.Labels[j] == qc {
				matchScore = p.Match
			}

			// a local alignment may also start fresh at this cell
			currentMax := matchScore
			if currentMax < 0 {
				currentMax = 0
			}

			for k := cg.OffsetsIn[j]; k < cg.OffsetsIn[j+1]; k++ {
				u := cg.AdjIn[k]
				if s := prev[u] + matchScore; s > currentMax {
					currentMax = s
				}
				if s := cur[u] - p.Del; s > currentMax {
					currentMax = s
				}
			}

			if s := prev[j] - p.Ins; s > currentMax {
				currentMax = s
			}

			cur[j] = currentMax

			if currentMax >= bestScore {
				bestScore = currentMax
				endCol = j
				endRow = int32(i)
			}
		}
	}

	return bestScore, endCol, endRow
}

// phase1Reverse runs the same recurrence on the reversed query against
// the transposed graph (out-edges, columns in descending order) to
// recover the start cell of the alignment located by the forward sweep.
//
// When the sweep writes the mirror of the known end cell, that cell must
// hold exactly the match reward (a local alignment read backwards starts
// with a match); the cell is then incremented by one, so the global
// maximum of the reverse DP is attained only at the mirror of the true
// start, with a margin of exactly one over any alternative.
func phase1Reverse(qrev []byte, cg *graph.CharGraph, p *Parameters, b *BestScoreInfo, rows *rowPair) error {
	rows.reset()

	m := int32(len(qrev))
	var bestScore, bestRow, bestCol int32

	for i := int32(0); i < m; i++ {
		cur := rows[i&1]
		prev := rows[(i+1)&1]
		qc := qrev[i]

		for j := cg.NumVertices - 1; j >= 0; j-- {
			matchScore := -p.Mismatch
			if cg.Labels[j] == qc {
				matchScore = p.Match
			}

			currentMax := matchScore
			if currentMax < 0 {
				currentMax = 0
			}

			for k := cg.OffsetsOut[j]; k < cg.OffsetsOut[j+1]; k++ {
				v := cg.AdjOut[k]
				if s := prev[v] + matchScore; s > currentMax {
					currentMax = s
				}
				if s := cur[v] - p.Del; s > currentMax {
					currentMax = s
				}
			}

			if s := prev[j] - p.Ins; s > currentMax {
				currentMax = s
			}

			cur[j] = currentMax

			if currentMax >= bestScore {
				bestScore = currentMax
				bestCol = j
				bestRow = m - 1 - i
			}

			// the mirror of the end cell found by the forward sweep
			if j == b.RefColumnEnd && m-1-i == b.QryRowEnd {
				if currentMax != p.Match {
					return errors.Wrapf(ErrInvariant,
						"query %d: reverse sweep scored %d at the alignment end cell, want the match reward %d",
						b.QueryID, currentMax, p.Match)
				}
				cur[j] = p.Match + 1

				// a single-character alignment starts and ends here, so
				// the tagged value is never re-read by a later cell and
				// must enter the best tracker directly; for longer
				// alignments the propagated +1 still wins the tie later
				if p.Match+1 >= bestScore {
					bestScore = p.Match + 1
					bestCol = j
					bestRow = m - 1 - i
				}
			}
		}
	}

	if bestScore != b.Score+1 {
		return errors.Wrapf(ErrInvariant,
			"query %d: reverse sweep best %d does not exceed forward best %d by exactly 1",
			b.QueryID, bestScore, b.Score)
	}

	b.RefColumnStart = bestCol
	b.QryRowStart = bestRow
	return nil
}
