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
	"unsafe"

	"github.com/pkg/errors"

	"github.com/czlabs/dagaligner/dagaligner/graph"
)

// laneInt is a DP cell type of the precision ladder. The ladder is
// picked once per phase from the maximum query length, the match reward
// and the penalties, so neither cell values nor scoring parameters
// overflow the chosen type.
type laneInt interface {
	~int8 | ~int16 | ~int32
}

// vectorBytes is the width of one logical vector register; the lane
// count of a batch is vectorBytes divided by the cell size.
const vectorBytes = 32

// padByte right-pads queries shorter than the batch height. It matches
// no vertex label, so padded rows never beat a true cell, and per-lane
// best updates are additionally gated on the true query length so a
// padded row cannot steal a tied best cell either.
const padByte = 0

// laneWidth returns the number of queries packed per vector for cell
// type T.
func laneWidth[T laneInt]() int {
	var z T
	return vectorBytes / int(unsafe.Sizeof(z))
}

// laneEnd is the phase-1 result of one lane.
type laneEnd struct {
	score  int32
	endCol int32
	endRow int32
}

// laneScratch is the reusable per-worker state of a lane batch sweep.
type laneScratch[T laneInt] struct {
	rows [2][]T
	sc   []T // per-lane match score of the current cell
	cm   []T // per-lane running maximum of the current cell
	qcs  []byte
}

func newLaneScratch[T laneInt](n int32) *laneScratch[T] {
	w := laneWidth[T]()
	return &laneScratch[T]{
		rows: [2][]T{make([]T, int(n)*w), make([]T, int(n)*w)},
		sc:   make([]T, w),
		cm:   make([]T, w),
		qcs:  make([]byte, w),
	}
}

func (s *laneScratch[T]) reset() {
	row := s.rows[1]
	for i := range row {
		row[i] = 0
	}
}

// phase1ForwardLanes runs the forward DP for up to laneWidth[T] queries
// at once, one lane per query. The graph is shared across lanes, so
// adjacency fetches are scalar while cell updates run lane-wise over
// contiguous W-element groups. Results are byte-identical to the scalar
// sweep per lane.
func phase1ForwardLanes[T laneInt](queries [][]byte, cg *graph.CharGraph, p *Parameters, s *laneScratch[T]) []laneEnd {
	w := laneWidth[T]()
	if len(queries) > w {
		panic("batch exceeds lane width")
	}

	s.reset()

	match, mismatch := T(p.Match), T(p.Mismatch)
	ins, del := T(p.Ins), T(p.Del)

	laneLen := make([]int, w)
	height := 0
	for l, q := range queries {
		laneLen[l] = len(q)
		if len(q) > height {
			height = len(q)
		}
	}

	best := make([]T, w)
	ends := make([]laneEnd, w)

	n := cg.NumVertices
	sc, cm, qcs := s.sc, s.cm, s.qcs

	for i := 0; i < height; i++ {
		cur := s.rows[i&1]
		prev := s.rows[(i+1)&1]

		for l := 0; l < w; l++ {
			if i < laneLen[l] {
				qcs[l] = queries[l][i]
			} else {
				qcs[l] = padByte
			}
		}

		for j := int32(0); j < n; j++ {
			label := cg.Labels[j]
			base := int(j) * w

			for l := 0; l < w; l++ {
				if qcs[l] == label {
					sc[l] = match
				} else {
					sc[l] = -mismatch
				}
			}

			for l := 0; l < w; l++ {
				v := sc[l]
				if v < 0 {
					v = 0
				}
				cm[l] = v
			}

			for k := cg.OffsetsIn[j]; k < cg.OffsetsIn[j+1]; k++ {
				ub := int(cg.AdjIn[k]) * w
				pu := prev[ub : ub+w]
				cu := cur[ub : ub+w]
				for l := 0; l < w; l++ {
					if v := pu[l] + sc[l]; v > cm[l] {
						cm[l] = v
					}
					if v := cu[l] - del; v > cm[l] {
						cm[l] = v
					}
				}
			}

			pj := prev[base : base+w]
			for l := 0; l < w; l++ {
				if v := pj[l] - ins; v > cm[l] {
					cm[l] = v
				}
			}

			copy(cur[base:base+w], cm)

			for l := 0; l < w; l++ {
				if i < laneLen[l] && cm[l] >= best[l] {
					best[l] = cm[l]
					ends[l].endCol = j
					ends[l].endRow = int32(i)
				}
			}
		}
	}

	for l := 0; l < w; l++ {
		ends[l].score = int32(best[l])
	}
	return ends[:len(queries)]
}

// phase1ReverseLanes runs the reverse DP (reversed queries, transposed
// graph) for up to laneWidth[T] queries at once, applying the +1
// coordinate tag of each lane at the mirror of its known end cell and
// recording the start coordinates into the corresponding records.
func phase1ReverseLanes[T laneInt](reversed [][]byte, cg *graph.CharGraph, p *Parameters, bs []*BestScoreInfo, s *laneScratch[T]) error {
	w := laneWidth[T]()
	if len(reversed) > w {
		panic("batch exceeds lane width")
	}

	s.reset()

	match, mismatch := T(p.Match), T(p.Mismatch)
	ins, del := T(p.Ins), T(p.Del)

	laneLen := make([]int32, w)
	height := 0
	for l, q := range reversed {
		laneLen[l] = int32(len(q))
		if len(q) > height {
			height = len(q)
		}
	}

	best := make([]T, w)
	bestRow := make([]int32, w)
	bestCol := make([]int32, w)

	n := cg.NumVertices
	sc, cm, qcs := s.sc, s.cm, s.qcs

	for i := 0; i < height; i++ {
		cur := s.rows[i&1]
		prev := s.rows[(i+1)&1]

		for l := 0; l < w; l++ {
			if int32(i) < laneLen[l] {
				qcs[l] = reversed[l][i]
			} else {
				qcs[l] = padByte
			}
		}

		for j := n - 1; j >= 0; j-- {
			label := cg.Labels[j]
			base := int(j) * w

			for l := 0; l < w; l++ {
				if qcs[l] == label {
					sc[l] = match
				} else {
					sc[l] = -mismatch
				}
			}

			for l := 0; l < w; l++ {
				v := sc[l]
				if v < 0 {
					v = 0
				}
				cm[l] = v
			}

			for k := cg.OffsetsOut[j]; k < cg.OffsetsOut[j+1]; k++ {
				vb := int(cg.AdjOut[k]) * w
				pv := prev[vb : vb+w]
				cv := cur[vb : vb+w]
				for l := 0; l < w; l++ {
					if v := pv[l] + sc[l]; v > cm[l] {
						cm[l] = v
					}
					if v := cv[l] - del; v > cm[l] {
						cm[l] = v
					}
				}
			}

			pj := prev[base : base+w]
			for l := 0; l < w; l++ {
				if v := pj[l] - ins; v > cm[l] {
					cm[l] = v
				}
			}

			copy(cur[base:base+w], cm)

			for l := 0; l < len(reversed); l++ {
				if int32(i) >= laneLen[l] {
					continue
				}
				row := laneLen[l] - 1 - int32(i)

				if cm[l] >= best[l] {
					best[l] = cm[l]
					bestCol[l] = j
					bestRow[l] = row
				}

				if j == bs[l].RefColumnEnd && row == bs[l].QryRowEnd {
					if int32(cm[l]) != p.Match {
						return errors.Wrapf(ErrInvariant,
							"query %d: reverse sweep scored %d at the alignment end cell, want the match reward %d",
							bs[l].QueryID, cm[l], p.Match)
					}
					cur[base+l] = match + 1

					// a single-character alignment starts and ends here,
					// so the tagged value is never re-read by a later
					// cell and must enter the best tracker directly; for
					// longer alignments the propagated +1 still wins the
					// tie later
					if match+1 >= best[l] {
						best[l] = match + 1
						bestCol[l] = j
						bestRow[l] = row
					}
				}
			}
		}
	}

	for l := 0; l < len(reversed); l++ {
		if int32(best[l]) != bs[l].Score+1 {
			return errors.Wrapf(ErrInvariant,
				"query %d: reverse sweep best %d does not exceed forward best %d by exactly 1",
				bs[l].QueryID, best[l], bs[l].Score)
		}
		bs[l].RefColumnStart = bestCol[l]
		bs[l].QryRowStart = bestRow[l]
	}
	return nil
}
