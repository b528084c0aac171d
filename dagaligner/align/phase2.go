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
	"math"

	"github.com/pkg/errors"

	"github.com/czlabs/dagaligner/dagaligner/graph"
)

// deltaInt is the cell type of the vertical-difference matrix; the
// narrowest signed type holding every possible vertical difference is
// picked once per query.
type deltaInt interface {
	~int8 | ~int16 | ~int32
}

// phase2 recomputes the DP inside the rectangle located by the two
// phase-1 sweeps and backtraces it into a CIGAR and the list of visited
// columns.
func phase2(q []byte, cg *graph.CharGraph, p *Parameters, b *BestScoreInfo) error {
	// vertical differences lie in [-ins, match+del]
	maxParam := p.Match + p.Del
	if p.Ins > maxParam {
		maxParam = p.Ins
	}
	switch {
	case maxParam <= math.MaxInt8:
		return phase2Banded[int8](q, cg, p, b)
	case maxParam <= math.MaxInt16:
		return phase2Banded[int16](q, cg, p, b)
	default:
		return phase2Banded[int32](q, cg, p, b)
	}
}

// phase2Banded recomputes the DP inside the rectangle and backtraces
// it. In-edges reaching columns left of the rectangle are treated as
// absent: the band is closed on the left.
//
// Instead of materializing the score matrix, only the vertical
// difference H(i,j) - H(i-1,j) of every cell is kept; it is at least
// -ins and at most match+del (a match right after a deletion in the row
// above), so a narrow signed cell suffices and the row above is
// reconstructed on the fly during the backtrace.
func phase2Banded[D deltaInt](q []byte, cg *graph.CharGraph, p *Parameters, b *BestScoreInfo) error {
	width := int(b.RefColumnEnd - b.RefColumnStart + 1)
	height := int(b.QryRowEnd - b.QryRowStart + 1)
	j0 := b.RefColumnStart
	i0 := b.QryRowStart

	if width <= 0 || height <= 0 {
		return errors.Wrapf(ErrInvariant, "query %d: empty alignment rectangle %dx%d", b.QueryID, height, width)
	}

	delta := make([][]D, height)
	for i := range delta {
		delta[i] = make([]D, width)
	}

	finalRow := make([]int32, width)

	// recompute within the rectangle
	{
		rows := [2][]int32{make([]int32, width), make([]int32, width)}

		for i := 0; i < height; i++ {
			cur := rows[i&1]
			prev := rows[(i+1)&1]
			qc := q[int(i0)+i]

			for j := 0; j < width; j++ {
				jg := int32(j) + j0

				matchScore := -p.Mismatch
				if cg.Labels[jg] == qc {
					matchScore = p.Match
				}

				fromInsertion := prev[j] - p.Ins
				fromMatch := matchScore // also handles the case when in-degree is zero
				fromDeletion := int32(-1)

				for k := cg.OffsetsIn[jg]; k < cg.OffsetsIn[jg+1]; k++ {
					u := cg.AdjIn[k]
					if u < j0 {
						continue
					}
					if s := prev[u-j0] + matchScore; s > fromMatch {
						fromMatch = s
					}
					if s := cur[u-j0] - p.Del; s > fromDeletion {
						fromDeletion = s
					}
				}

				score := fromMatch
				if fromInsertion > score {
					score = fromInsertion
				}
				if fromDeletion > score {
					score = fromDeletion
				}
				if score < 0 {
					score = 0
				}

				cur[j] = score
				delta[i][j] = D(score - prev[j])
			}

			if i == height-1 {
				copy(finalRow, cur)
			}
		}
	}

	var recomputed int32
	for _, s := range finalRow {
		if s > recomputed {
			recomputed = s
		}
	}
	if recomputed != b.Score {
		return errors.Wrapf(ErrInvariant, "query %d: recomputed score %d does not match phase-1 score %d",
			b.QueryID, recomputed, b.Score)
	}
	if finalRow[b.RefColumnEnd-j0] != recomputed {
		return errors.Wrapf(ErrInvariant, "query %d: recomputed best is not at the phase-1 end column %d",
			b.QueryID, b.RefColumnEnd)
	}

	// backtrace from the end cell
	currentRow := finalRow
	aboveRow := make([]int32, width)

	col := width - 1
	row := height - 1

	ops := make([]byte, 0, height+width)
	usedCols := make([]int32, 0, width)

backtrace:
	for col >= 0 && row >= 0 {
		usedCols = append(usedCols, int32(col)+j0)
		if currentRow[col] <= 0 {
			break
		}

		// retrieve the row above from the vertical differences
		for i := 0; i < width; i++ {
			aboveRow[i] = currentRow[i] - int32(delta[row][i])
		}

		jg := int32(col) + j0

		matchScore := -p.Mismatch
		if cg.Labels[jg] == q[int(i0)+row] {
			matchScore = p.Match
		}

		fromInsertion := aboveRow[col] - p.Ins

		fromMatch := matchScore
		fromMatchPos := col

		fromDeletion := int32(-1)
		fromDeletionPos := -1

		for k := cg.OffsetsIn[jg]; k < cg.OffsetsIn[jg+1]; k++ {
			u := cg.AdjIn[k]
			if u < j0 {
				continue
			}
			fromCol := int(u - j0)

			if s := aboveRow[fromCol] + matchScore; fromMatch < s {
				fromMatch = s
				fromMatchPos = fromCol
			}
			if s := currentRow[fromCol] - p.Del; fromDeletion < s {
				fromDeletion = s
				fromDeletionPos = fromCol
			}
		}

		switch {
		case currentRow[col] == fromMatch:
			if matchScore == p.Match {
				ops = append(ops, '=')
			} else {
				ops = append(ops, 'X')
			}

			// the alignment started in this cell
			if fromMatchPos == col {
				break backtrace
			}

			col = fromMatchPos
			row--
			currentRow, aboveRow = aboveRow, currentRow

		case fromDeletionPos >= 0 && currentRow[col] == fromDeletion:
			ops = append(ops, 'D')
			col = fromDeletionPos

		case currentRow[col] == fromInsertion:
			ops = append(ops, 'I')
			row--
			currentRow, aboveRow = aboveRow, currentRow

		default:
			return errors.Wrapf(ErrInvariant, "query %d: cell (%d, %d) reachable from no predecessor",
				b.QueryID, row, col)
		}
	}

	// ops were emitted end to start
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	cigar := compactCigar(ops)

	score, err := CigarScore(cigar, p)
	if err != nil {
		return errors.Wrapf(err, "query %d", b.QueryID)
	}
	if score != b.Score {
		return errors.Wrapf(ErrInvariant, "query %d: cigar %q scores %d, want %d", b.QueryID, cigar, score, b.Score)
	}

	for i, j := 0, len(usedCols)-1; i < j; i, j = i+1, j-1 {
		usedCols[i], usedCols[j] = usedCols[j], usedCols[i]
	}

	b.Cigar = cigar
	b.RefColumns = usedCols
	return nil
}
