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

var complementTable [256]byte

func init() {
	for i := range complementTable {
		complementTable[i] = byte(i)
	}
	for _, p := range [][2]byte{
		{'A', 'T'}, {'C', 'G'}, {'G', 'C'}, {'T', 'A'},
		{'a', 't'}, {'c', 'g'}, {'g', 'c'}, {'t', 'a'},
	} {
		complementTable[p[0]] = p[1]
	}
}

// reverseSeq returns a reversed copy of s.
func reverseSeq(s []byte) []byte {
	r := make([]byte, len(s))
	for i, c := range s {
		r[len(s)-1-i] = c
	}
	return r
}

// reverseComplement returns the reverse complement of s. Ambiguous
// bases (e.g. N) are kept as-is.
func reverseComplement(s []byte) []byte {
	r := make([]byte, len(s))
	for i, c := range s {
		r[len(s)-1-i] = complementTable[c]
	}
	return r
}

// toUpper upper-cases s in place; query sequences are normalized once
// at load so the DP only compares uppercase nucleotides.
func toUpper(s []byte) {
	for i, c := range s {
		if c >= 'a' && c <= 'z' {
			s[i] = c - ('a' - 'A')
		}
	}
}
