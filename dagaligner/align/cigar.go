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
	"bytes"
	"strconv"

	"github.com/pkg/errors"
)

// compactCigar run-length compacts a sequence of raw CIGAR operations
// ('=', 'X', 'I', 'D', one byte per op) into "<count><op>" groups.
func compactCigar(ops []byte) string {
	if len(ops) == 0 {
		return ""
	}

	var buf bytes.Buffer
	buf.Grow(len(ops))

	count := 1
	for i := 1; i <= len(ops); i++ {
		if i < len(ops) && ops[i] == ops[i-1] {
			count++
			continue
		}
		buf.WriteString(strconv.Itoa(count))
		buf.WriteByte(ops[i-1])
		count = 1
	}
	return buf.String()
}

// CigarScore evaluates a compact CIGAR string under the scoring scheme:
// '=' adds the match reward, 'X', 'I' and 'D' subtract the mismatch,
// insertion and deletion penalties.
func CigarScore(cigar string, p *Parameters) (int32, error) {
	var score int32
	var count int32

	for i := 0; i < len(cigar); i++ {
		c := cigar[i]
		if c >= '0' && c <= '9' {
			count = count*10 + int32(c-'0')
			continue
		}
		if count == 0 {
			return 0, errors.Errorf("cigar group with no count: %q", cigar)
		}
		switch c {
		case '=':
			score += count * p.Match
		case 'X':
			score -= count * p.Mismatch
		case 'I':
			score -= count * p.Ins
		case 'D':
			score -= count * p.Del
		default:
			return 0, errors.Errorf("invalid cigar operation %q in %q", c, cigar)
		}
		count = 0
	}
	if count != 0 {
		return 0, errors.Errorf("cigar ends mid-group: %q", cigar)
	}
	return score, nil
}
