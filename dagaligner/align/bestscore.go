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

// BestScoreInfo is the per-query alignment record. Phase 1 fills Score
// and the end coordinates, the reverse sweep the start coordinates, and
// phase 2 the CIGAR and the visited columns. Records live in disjoint
// slots of a result slice indexed by query number and are never shared
// across workers.
type BestScoreInfo struct {
	Score int32

	// inclusive char-vertex columns of the best local alignment
	RefColumnStart int32
	RefColumnEnd   int32

	// inclusive query rows of the best local alignment
	QryRowStart int32
	QryRowEnd   int32

	// '+' if the query aligned in its given orientation,
	// '-' if its reverse complement did
	Strand byte

	QueryID int

	Cigar string

	// char-vertex columns visited by the traceback, ordered from the
	// start of the alignment to its end (consecutive repeats kept)
	RefColumns []int32
}
