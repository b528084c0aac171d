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

// Package align implements local alignment of query sequences against a
// node-labeled DAG: a forward DP sweep locates the end of the best local
// alignment of each query, a reverse sweep over the transposed graph
// recovers its start, and a banded recomputation inside the located
// rectangle produces the CIGAR and the visited vertex path.
package align

import (
	"github.com/pkg/errors"
)

// ErrMalformedQuery covers unusable query records, e.g. empty sequences.
var ErrMalformedQuery = errors.New("malformed query")

// ErrInvariant marks cross-check failures between the alignment phases.
// These are fatal: a recomputed score disagreeing with phase 1, a CIGAR
// not reproducing the stored score, or a reverse-sweep margin other
// than 1 means the engine state is corrupt.
var ErrInvariant = errors.New("alignment invariant violated")

// Mode selects the alignment mode.
type Mode int

const (
	// ModeLocal is Smith-Waterman-style local alignment with a 0 floor.
	ModeLocal Mode = iota
)

// Parameters holds the linear gap model: a match reward and mismatch,
// insertion and deletion penalties, all non-negative. Penalties are
// subtracted during the DP.
type Parameters struct {
	Match    int32
	Mismatch int32
	Ins      int32
	Del      int32
}

// Validate rejects negative scoring parameters.
func (p *Parameters) Validate() error {
	if p.Match < 0 || p.Mismatch < 0 || p.Ins < 0 || p.Del < 0 {
		return errors.Errorf("scoring parameters must be non-negative: match=%d mismatch=%d ins=%d del=%d",
			p.Match, p.Mismatch, p.Ins, p.Del)
	}
	return nil
}
