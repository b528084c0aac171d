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

import "testing"

func TestCompactCigar(t *testing.T) {
	for _, c := range []struct {
		ops  string
		want string
	}{
		{"", ""},
		{"=", "1="},
		{"===", "3="},
		{"===XX==", "3=2X2="},
		{"=D=I=", "1=1D1=1I1="},
		{"DDDD", "4D"},
	} {
		if got := compactCigar([]byte(c.ops)); got != c.want {
			t.Errorf("compact %q: got %q, want %q", c.ops, got, c.want)
		}
	}
}

func TestCigarScore(t *testing.T) {
	p := Parameters{Match: 2, Mismatch: 3, Ins: 1, Del: 4}

	for _, c := range []struct {
		cigar string
		want  int32
	}{
		{"", 0},
		{"10=", 20},
		{"3=2X2=", 10 - 6},
		{"5=1D5=", 20 - 4},
		{"5=2I5=", 20 - 2},
		{"12=", 24},
	} {
		got, err := CigarScore(c.cigar, &p)
		if err != nil {
			t.Fatalf("score %q: %s", c.cigar, err)
		}
		if got != c.want {
			t.Errorf("score %q: got %d, want %d", c.cigar, got, c.want)
		}
	}

	for _, bad := range []string{"=", "3", "3M", "1=X"} {
		if _, err := CigarScore(bad, &p); err == nil {
			t.Errorf("no error for %q", bad)
		}
	}
}

func TestReverseComplement(t *testing.T) {
	if got := string(reverseComplement([]byte("ACGTN"))); got != "NACGT" {
		t.Errorf("got %q, want NACGT", got)
	}
	if got := string(reverseSeq([]byte("ACGT"))); got != "TGCA" {
		t.Errorf("got %q, want TGCA", got)
	}
	s := []byte("acgTn")
	toUpper(s)
	if string(s) != "ACGTN" {
		t.Errorf("got %q, want ACGTN", s)
	}
}
