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
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/czlabs/dagaligner/dagaligner/graph"
)

// AC -> GT -> GCCTG -> CT, spelling ACGTGCCTGCT
const chainTxt = `4
1 AC
2 GT
3 GCCTG
CT
`

// SNV bubble: A -> {C, G} -> T
const bubbleTxt = `4
1 2 A
3 C
3 G
T
`

var unitParams = Parameters{Match: 1, Mismatch: 1, Ins: 1, Del: 1}

func mkCharGraph(t *testing.T, txt string) *graph.CharGraph {
	t.Helper()
	g, err := graph.ParseTxt(strings.NewReader(txt))
	if err != nil {
		t.Fatalf("parse graph: %s", err)
	}
	if err = g.Verify(); err != nil {
		t.Fatalf("verify graph: %s", err)
	}
	cg, err := graph.ExpandChars(g)
	if err != nil {
		t.Fatalf("expand graph: %s", err)
	}
	return cg
}

func alignAll(t *testing.T, cg *graph.CharGraph, par *Parameters, scalar bool, queries ...string) []BestScoreInfo {
	t.Helper()
	al, err := New(cg, par, &Options{Scalar: scalar})
	if err != nil {
		t.Fatalf("new aligner: %s", err)
	}
	reads := make([][]byte, len(queries))
	for i, q := range queries {
		reads[i] = []byte(q)
	}
	records, err := al.Align(context.Background(), reads, ModeLocal)
	if err != nil {
		t.Fatalf("align: %s", err)
	}
	return records
}

func alignOne(t *testing.T, cg *graph.CharGraph, par *Parameters, scalar bool, query string) BestScoreInfo {
	t.Helper()
	return alignAll(t, cg, par, scalar, query)[0]
}

func checkRefColumns(t *testing.T, b *BestScoreInfo) {
	t.Helper()
	for i := 1; i < len(b.RefColumns); i++ {
		if b.RefColumns[i] < b.RefColumns[i-1] {
			t.Errorf("visited columns decrease at %d: %v", i, b.RefColumns)
			return
		}
	}
	if len(b.RefColumns) > 0 {
		if b.RefColumns[0] < b.RefColumnStart || b.RefColumns[len(b.RefColumns)-1] > b.RefColumnEnd {
			t.Errorf("visited columns %v leave the rectangle [%d, %d]",
				b.RefColumns, b.RefColumnStart, b.RefColumnEnd)
		}
	}
}

func TestPerfectChainMatch(t *testing.T) {
	cg := mkCharGraph(t, chainTxt)

	for _, scalar := range []bool{true, false} {
		b := alignOne(t, cg, &unitParams, scalar, "ACGTGCCTGCT")

		if b.Score != 11 {
			t.Errorf("scalar=%v: score %d, want 11", scalar, b.Score)
		}
		if b.Cigar != "11=" {
			t.Errorf("scalar=%v: cigar %q, want 11=", scalar, b.Cigar)
		}
		if b.Strand != '+' {
			t.Errorf("scalar=%v: strand %c, want +", scalar, b.Strand)
		}
		if b.QryRowStart != 0 || b.QryRowEnd != 10 {
			t.Errorf("scalar=%v: query rows [%d, %d], want [0, 10]", scalar, b.QryRowStart, b.QryRowEnd)
		}
		if b.RefColumnStart != 0 || b.RefColumnEnd != 10 {
			t.Errorf("scalar=%v: ref columns [%d, %d], want [0, 10]", scalar, b.RefColumnStart, b.RefColumnEnd)
		}
		checkRefColumns(t, &b)
	}
}

func TestBubblePathChoice(t *testing.T) {
	cg := mkCharGraph(t, bubbleTxt)

	b := alignOne(t, cg, &unitParams, false, "ACT")
	if b.Score != 3 || b.Cigar != "3=" {
		t.Errorf("got score %d cigar %q, want 3 and 3=", b.Score, b.Cigar)
	}
	// the C branch is char vertex 1
	want := []int32{0, 1, 3}
	got := make([]int32, 0, 3)
	for _, c := range b.RefColumns {
		if len(got) == 0 || got[len(got)-1] != c {
			got = append(got, c)
		}
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("visited columns %v, want %v", got, want)
	}

	b = alignOne(t, cg, &unitParams, false, "AGT")
	if b.Score != 3 || b.Cigar != "3=" {
		t.Errorf("got score %d cigar %q, want 3 and 3=", b.Score, b.Cigar)
	}
}

func TestMismatchTolerance(t *testing.T) {
	cg := mkCharGraph(t, chainTxt)

	// one substitution in the middle
	b := alignOne(t, cg, &unitParams, false, "ACGTGCATGCT")
	if b.Score != 9 {
		t.Errorf("score %d, want 9", b.Score)
	}
	if b.Cigar != "6=1X4=" {
		t.Errorf("cigar %q, want 6=1X4=", b.Cigar)
	}
	checkRefColumns(t, &b)
}

func TestDeletionTolerance(t *testing.T) {
	cg := mkCharGraph(t, chainTxt)

	// one reference base skipped by the query
	b := alignOne(t, cg, &unitParams, false, "ACGTCCTGCT")
	if b.Score != 9 {
		t.Errorf("score %d, want 9", b.Score)
	}
	if !strings.Contains(b.Cigar, "D") {
		t.Errorf("cigar %q contains no deletion", b.Cigar)
	}
	if score, err := CigarScore(b.Cigar, &unitParams); err != nil || score != b.Score {
		t.Errorf("cigar %q scores %d (%v), want %d", b.Cigar, score, err, b.Score)
	}
	checkRefColumns(t, &b)
}

func TestInsertionTolerance(t *testing.T) {
	cg := mkCharGraph(t, chainTxt)

	// one extra query base
	b := alignOne(t, cg, &unitParams, false, "ACGTAGCCTGCT")
	if b.Score != 10 {
		t.Errorf("score %d, want 10", b.Score)
	}
	if !strings.Contains(b.Cigar, "I") {
		t.Errorf("cigar %q contains no insertion", b.Cigar)
	}
	if score, err := CigarScore(b.Cigar, &unitParams); err != nil || score != b.Score {
		t.Errorf("cigar %q scores %d (%v), want %d", b.Cigar, score, err, b.Score)
	}
}

func TestLocalTrimming(t *testing.T) {
	cg := mkCharGraph(t, chainTxt)

	b := alignOne(t, cg, &unitParams, false, "TTACGTGCCTGCTAA")
	if b.Score != 11 || b.Cigar != "11=" {
		t.Errorf("got score %d cigar %q, want 11 and 11=", b.Score, b.Cigar)
	}
	if b.QryRowStart != 2 || b.QryRowEnd != 12 {
		t.Errorf("query rows [%d, %d], want [2, 12]", b.QryRowStart, b.QryRowEnd)
	}
}

func TestReverseStrand(t *testing.T) {
	cg := mkCharGraph(t, chainTxt)

	// reverse complement of ACGTGCCTGCT
	b := alignOne(t, cg, &unitParams, false, "AGCAGGCACGT")
	if b.Strand != '-' {
		t.Errorf("strand %c, want -", b.Strand)
	}
	if b.Score != 11 || b.Cigar != "11=" {
		t.Errorf("got score %d cigar %q, want 11 and 11=", b.Score, b.Cigar)
	}
}

func TestStrandTieKeepsForward(t *testing.T) {
	// palindromic reference: both orientations score equally
	cg := mkCharGraph(t, "1\nACGT\n")

	b := alignOne(t, cg, &unitParams, false, "ACGT")
	if b.Strand != '+' {
		t.Errorf("strand %c on a tie, want +", b.Strand)
	}
	if b.Score != 4 {
		t.Errorf("score %d, want 4", b.Score)
	}
}

func TestRowMajorTieBreak(t *testing.T) {
	// every A row scores 1; the last scanned cell must win
	cg := mkCharGraph(t, "1\nA\n")
	par := Parameters{Match: 1, Mismatch: 9, Ins: 9, Del: 9}

	rows := newRowPair(cg.NumVertices)
	score, endCol, endRow := phase1Forward([]byte("AA"), cg, &par, rows)
	if score != 1 {
		t.Fatalf("score %d, want 1", score)
	}
	if endRow != 1 || endCol != 0 {
		t.Errorf("end cell (%d, %d), want (1, 0)", endRow, endCol)
	}
}

func TestSingleVertexGraph(t *testing.T) {
	cg := mkCharGraph(t, "1\nA\n")

	b := alignOne(t, cg, &unitParams, false, "A")
	if b.Score != 1 || b.Cigar != "1=" {
		t.Errorf("got score %d cigar %q, want 1 and 1=", b.Score, b.Cigar)
	}
	if b.QryRowStart != 0 || b.QryRowEnd != 0 || b.RefColumnStart != 0 || b.RefColumnEnd != 0 {
		t.Errorf("unexpected rectangle: %+v", b)
	}
}

func TestQueryLongerThanGraph(t *testing.T) {
	cg := mkCharGraph(t, "2\n1 ACG\nTG\n")

	b := alignOne(t, cg, &unitParams, false, "ACGTGTTTTTTT")
	if b.Score != 5 {
		t.Errorf("score %d, want 5 (longest path)", b.Score)
	}
	if b.Cigar != "5=" {
		t.Errorf("cigar %q, want 5=", b.Cigar)
	}
}

func TestZeroScoreQuery(t *testing.T) {
	cg := mkCharGraph(t, "1\nAAAA\n")

	records := alignAll(t, cg, &unitParams, false, "CCCC", "AAAA")

	b := records[0]
	if b.Score != 0 || b.Cigar != "" || len(b.RefColumns) != 0 {
		t.Errorf("unaligned query got %+v, want an empty record", b)
	}
	if records[1].Score != 4 {
		t.Errorf("aligned query scored %d, want 4", records[1].Score)
	}
}

func TestEmptyQueryRejected(t *testing.T) {
	cg := mkCharGraph(t, "1\nA\n")
	al, err := New(cg, &unitParams, nil)
	if err != nil {
		t.Fatalf("new aligner: %s", err)
	}

	if _, err = al.Align(context.Background(), [][]byte{{}}, ModeLocal); err == nil {
		t.Error("empty query not rejected")
	}
	if _, err = al.Align(context.Background(), nil, ModeLocal); err == nil {
		t.Error("empty query set not rejected")
	}
}

func TestInvalidMode(t *testing.T) {
	cg := mkCharGraph(t, "1\nA\n")
	al, err := New(cg, &unitParams, nil)
	if err != nil {
		t.Fatalf("new aligner: %s", err)
	}
	if _, err = al.Align(context.Background(), [][]byte{[]byte("A")}, Mode(42)); err == nil {
		t.Error("invalid mode not rejected")
	}
}

func TestCancellation(t *testing.T) {
	cg := mkCharGraph(t, chainTxt)
	al, err := New(cg, &unitParams, nil)
	if err != nil {
		t.Fatalf("new aligner: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err = al.Align(ctx, [][]byte{[]byte("ACGT")}, ModeLocal); err == nil {
		t.Error("cancelled context not reported")
	}
}

// a reference with bubbles and uneven chunk sizes, for the differential
// and idempotence tests
const mixedTxt = `7
1 2 ACGTA
3 GG
3 C
4 5 TTACG
6 CAG
6 TG
ACCTGA
`

var mixedQueries = []string{
	"ACGTAGGTTACGCAGACCTGA", // exact path
	"ACGTACTTACGTGACCTGA",   // exact path via the other branches
	"ACGTAGGTTACGCAGACCTGA"[3:18],
	"ACGTAGTTACGCAGACCTGA",   // deletion
	"ACGTAGGGTTACGCAGACCTGA", // insertion
	"ACGTAGGTTACGCATACCTGA",  // substitution
	"TCAGGTCTGCGTAACCTACGT",  // reverse complement of an exact path
	"GGGGGGGGGGGG",           // mostly unalignable
	"A",
	"TTTTTTT",
}

func TestScalarAndLanesAgree(t *testing.T) {
	cg := mkCharGraph(t, mixedTxt)

	for _, par := range []Parameters{
		unitParams,
		{Match: 2, Mismatch: 3, Ins: 2, Del: 1},
		{Match: 1, Mismatch: 0, Ins: 1, Del: 0},
	} {
		p := par
		scalarRecords := alignAll(t, cg, &p, true, mixedQueries...)
		laneRecords := alignAll(t, cg, &p, false, mixedQueries...)

		if !reflect.DeepEqual(scalarRecords, laneRecords) {
			t.Errorf("parameters %+v: scalar and lane-packed records differ:\n%+v\nvs\n%+v",
				p, scalarRecords, laneRecords)
		}
	}
}

func TestPrecisionLadder(t *testing.T) {
	// long query forces 16-bit cells
	label := strings.Repeat("ACGT", 64)
	cg := mkCharGraph(t, "1\n"+label+"\n")

	b := alignOne(t, cg, &unitParams, false, label)
	if b.Score != int32(len(label)) {
		t.Errorf("16-bit lanes: score %d, want %d", b.Score, len(label))
	}

	// large match reward forces 32-bit cells
	par := Parameters{Match: 3000, Mismatch: 1, Ins: 1, Del: 1}
	b = alignOne(t, mkCharGraph(t, chainTxt), &par, false, "ACGTGCCTGCT")
	if b.Score != 11*3000 {
		t.Errorf("32-bit lanes: score %d, want %d", b.Score, 11*3000)
	}
}

func TestTracebackIdempotent(t *testing.T) {
	cg := mkCharGraph(t, mixedTxt)

	first := alignAll(t, cg, &unitParams, false, mixedQueries...)
	second := alignAll(t, cg, &unitParams, false, mixedQueries...)
	if !reflect.DeepEqual(first, second) {
		t.Error("two identical runs produced different records")
	}
}

func TestCigarReproducesScore(t *testing.T) {
	cg := mkCharGraph(t, mixedTxt)

	for _, par := range []Parameters{unitParams, {Match: 2, Mismatch: 1, Ins: 2, Del: 2}} {
		p := par
		for _, b := range alignAll(t, cg, &p, false, mixedQueries...) {
			if b.Score == 0 {
				continue
			}
			score, err := CigarScore(b.Cigar, &p)
			if err != nil {
				t.Fatalf("cigar %q: %s", b.Cigar, err)
			}
			if score != b.Score {
				t.Errorf("cigar %q scores %d, want %d", b.Cigar, score, b.Score)
			}
			if b.RefColumnStart > b.RefColumnEnd || b.QryRowStart > b.QryRowEnd {
				t.Errorf("empty rectangle in %+v", b)
			}
			checkRefColumns(t, &b)
		}
	}
}
