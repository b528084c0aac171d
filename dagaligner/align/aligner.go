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
	"math"
	"os"
	"time"

	"github.com/exascience/pargo/parallel"
	"github.com/pkg/errors"
	logging "github.com/shenwei356/go-logging"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"gonum.org/v1/gonum/stat"

	"github.com/czlabs/dagaligner/dagaligner/graph"
)

// Options configures an Aligner.
type Options struct {
	// Scalar forces the scalar phase-1 kernels instead of the
	// lane-packed ones. Both produce identical records.
	Scalar bool

	// Verbose draws a progress bar over phase-1 batches on stderr.
	Verbose bool

	// Logger receives per-phase timing lines; nil silences them.
	Logger *logging.Logger
}

// Aligner aligns query sequences against a shared read-only char graph.
// The graph and scoring parameters are immutable for the aligner's
// lifetime; every worker owns its DP scratch exclusively, and result
// records occupy disjoint slots indexed by query number, so no locking
// is involved anywhere.
type Aligner struct {
	cg  *graph.CharGraph
	par Parameters
	opt Options
}

// New returns an aligner over the given char graph.
func New(cg *graph.CharGraph, par *Parameters, opt *Options) (*Aligner, error) {
	if cg == nil || cg.NumVertices == 0 {
		return nil, errors.New("nil or empty graph")
	}
	if err := par.Validate(); err != nil {
		return nil, err
	}
	if opt == nil {
		opt = &Options{}
	}
	return &Aligner{cg: cg, par: *par, opt: *opt}, nil
}

// Align aligns all reads in the requested mode and returns one record
// per read, in input order.
func (al *Aligner) Align(ctx context.Context, reads [][]byte, mode Mode) ([]BestScoreInfo, error) {
	switch mode {
	case ModeLocal:
		return al.alignLocal(ctx, reads)
	default:
		return nil, errors.Errorf("invalid alignment mode %d", mode)
	}
}

// alignLocal runs the three phases: a forward sweep of each read in
// both orientations, strand selection, a reverse sweep of the winning
// orientation to recover start coordinates, and the banded traceback.
func (al *Aligner) alignLocal(ctx context.Context, reads [][]byte) ([]BestScoreInfo, error) {
	if len(reads) == 0 {
		return nil, errors.Wrap(ErrMalformedQuery, "empty query set")
	}

	// phase 1 aligns each read and its reverse complement; slot 2r
	// holds the forward orientation of read r, slot 2r+1 the reverse
	// complement
	readSetP1 := make([][]byte, 2*len(reads))
	maxReadLength := 0
	for r, read := range reads {
		if len(read) == 0 {
			return nil, errors.Wrapf(ErrMalformedQuery, "query %d is empty", r)
		}
		fwd := make([]byte, len(read))
		copy(fwd, read)
		toUpper(fwd)
		readSetP1[2*r] = fwd
		readSetP1[2*r+1] = reverseComplement(fwd)

		if len(read) > maxReadLength {
			maxReadLength = len(read)
		}
	}

	//
	// phase 1: best score and end location, both orientations
	//
	timeStart := time.Now()

	endsP1 := make([]laneEnd, len(readSetP1))
	durations, err := al.runPhase1Forward(ctx, readSetP1, maxReadLength, endsP1)
	if err != nil {
		return nil, err
	}
	al.logPhase("phase 1", time.Since(timeStart), durations)

	//
	// strand selection: forward orientation wins ties
	//
	records := make([]BestScoreInfo, len(reads))
	active := make([]int, 0, len(reads)) // reads entering phases 1R and 2
	winning := make([][]byte, 0, len(reads))

	for r := range reads {
		fwd, rc := endsP1[2*r], endsP1[2*r+1]

		b := &records[r]
		b.QueryID = r
		if fwd.score >= rc.score {
			b.Score = fwd.score
			b.RefColumnEnd = fwd.endCol
			b.QryRowEnd = fwd.endRow
			b.Strand = '+'
			winning = append(winning, readSetP1[2*r])
		} else {
			b.Score = rc.score
			b.RefColumnEnd = rc.endCol
			b.QryRowEnd = rc.endRow
			b.Strand = '-'
			winning = append(winning, readSetP1[2*r+1])
		}

		// a read with no positive-scoring cell anywhere gets an empty
		// record instead of an error
		if b.Score == 0 {
			*b = BestScoreInfo{QueryID: r, Strand: '+'}
			winning = winning[:len(winning)-1]
			continue
		}
		active = append(active, r)
	}

	if len(active) == 0 {
		return records, ctx.Err()
	}

	//
	// phase 1 reverse: start locations of the winning orientation
	//
	timeStart = time.Now()

	reversed := make([][]byte, len(active))
	actives := make([]*BestScoreInfo, len(active))
	for i, r := range active {
		reversed[i] = reverseSeq(winning[i])
		actives[i] = &records[r]
	}

	durations, err = al.runPhase1Reverse(ctx, reversed, maxReadLength, actives)
	if err != nil {
		return nil, err
	}
	al.logPhase("phase 1R", time.Since(timeStart), durations)

	//
	// phase 2: banded recompute and traceback
	//
	timeStart = time.Now()

	errs := make([]error, len(active))
	parallel.Range(0, len(active), 0, func(low, high int) {
		for i := low; i < high; i++ {
			if ctx.Err() != nil {
				return
			}
			errs[i] = phase2(winning[i], al.cg, &al.par, actives[i])
		}
	})
	if err := ctx.Err(); err != nil {
		return records, err
	}
	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}
	al.logPhase("phase 2", time.Since(timeStart), nil)

	return records, nil
}

// runPhase1Forward dispatches the forward sweep over lane batches (or
// single reads for the scalar engine), picking the cell precision from
// the maximum possible score and the largest penalty.
func (al *Aligner) runPhase1Forward(ctx context.Context, readSet [][]byte, maxReadLength int, ends []laneEnd) ([]float64, error) {
	if al.opt.Scalar {
		return al.scalarRange(ctx, len(readSet), func(i int, rows *rowPair) error {
			score, endCol, endRow := phase1Forward(readSet[i], al.cg, &al.par, rows)
			ends[i] = laneEnd{score: score, endCol: endCol, endRow: endRow}
			return nil
		})
	}

	maxScore := int64(maxReadLength) * int64(al.par.Match)
	for _, v := range []int32{al.par.Mismatch, al.par.Ins, al.par.Del} {
		if int64(v) > maxScore {
			maxScore = int64(v)
		}
	}
	switch {
	case maxScore <= math.MaxInt8:
		return forwardBatches[int8](ctx, al, readSet, ends)
	case maxScore <= math.MaxInt16:
		return forwardBatches[int16](ctx, al, readSet, ends)
	default:
		return forwardBatches[int32](ctx, al, readSet, ends)
	}
}

// runPhase1Reverse dispatches the reverse sweep. The ladder bound is
// offset by 1 because the sweep augments the end cell's score by 1.
func (al *Aligner) runPhase1Reverse(ctx context.Context, reversed [][]byte, maxReadLength int, bs []*BestScoreInfo) ([]float64, error) {
	if al.opt.Scalar {
		return al.scalarRange(ctx, len(reversed), func(i int, rows *rowPair) error {
			return phase1Reverse(reversed[i], al.cg, &al.par, bs[i], rows)
		})
	}

	maxScore := int64(maxReadLength) * int64(al.par.Match)
	for _, v := range []int32{al.par.Mismatch, al.par.Ins, al.par.Del} {
		if int64(v) > maxScore {
			maxScore = int64(v)
		}
	}
	switch {
	case maxScore <= math.MaxInt8-1:
		return reverseBatches[int8](ctx, al, reversed, bs)
	case maxScore <= math.MaxInt16-1:
		return reverseBatches[int16](ctx, al, reversed, bs)
	default:
		return reverseBatches[int32](ctx, al, reversed, bs)
	}
}

// scalarRange runs f over every read with a per-worker two-row ring.
func (al *Aligner) scalarRange(ctx context.Context, n int, f func(i int, rows *rowPair) error) ([]float64, error) {
	durations := make([]float64, n)
	errs := make([]error, n)
	parallel.Range(0, n, 0, func(low, high int) {
		rows := newRowPair(al.cg.NumVertices)
		for i := low; i < high; i++ {
			if ctx.Err() != nil {
				return
			}
			t := time.Now()
			errs[i] = f(i, rows)
			durations[i] = time.Since(t).Seconds()
		}
	})
	if err := ctx.Err(); err != nil {
		return durations, err
	}
	for _, e := range errs {
		if e != nil {
			return durations, e
		}
	}
	return durations, nil
}

func forwardBatches[T laneInt](ctx context.Context, al *Aligner, readSet [][]byte, ends []laneEnd) ([]float64, error) {
	w := laneWidth[T]()
	numBatches := (len(readSet) + w - 1) / w

	bar, barDone := al.progressBar("phase 1", numBatches)
	durations := make([]float64, numBatches)

	parallel.Range(0, numBatches, 0, func(low, high int) {
		scratch := newLaneScratch[T](al.cg.NumVertices)
		for b := low; b < high; b++ {
			if ctx.Err() != nil {
				return
			}
			t := time.Now()

			start := b * w
			end := start + w
			if end > len(readSet) {
				end = len(readSet)
			}
			copy(ends[start:end], phase1ForwardLanes[T](readSet[start:end], al.cg, &al.par, scratch))

			d := time.Since(t)
			durations[b] = d.Seconds()
			if bar != nil {
				bar.EwmaIncrBy(1, d)
			}
		}
	})
	barDone()

	return durations, ctx.Err()
}

func reverseBatches[T laneInt](ctx context.Context, al *Aligner, reversed [][]byte, bs []*BestScoreInfo) ([]float64, error) {
	w := laneWidth[T]()
	numBatches := (len(reversed) + w - 1) / w

	durations := make([]float64, numBatches)
	errs := make([]error, numBatches)

	parallel.Range(0, numBatches, 0, func(low, high int) {
		scratch := newLaneScratch[T](al.cg.NumVertices)
		for b := low; b < high; b++ {
			if ctx.Err() != nil {
				return
			}
			t := time.Now()

			start := b * w
			end := start + w
			if end > len(reversed) {
				end = len(reversed)
			}
			errs[b] = phase1ReverseLanes[T](reversed[start:end], al.cg, &al.par, bs[start:end], scratch)

			durations[b] = time.Since(t).Seconds()
		}
	})

	if err := ctx.Err(); err != nil {
		return durations, err
	}
	for _, e := range errs {
		if e != nil {
			return durations, e
		}
	}
	return durations, nil
}

// progressBar returns a phase-1 progress bar when verbose, plus a
// function waiting for it to drain.
func (al *Aligner) progressBar(name string, total int) (*mpb.Bar, func()) {
	if !al.opt.Verbose {
		return nil, func() {}
	}

	pbs := mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
	bar := pbs.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name+": ", decor.WC{W: len(name) + 2, C: decor.DindentRight}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
			decor.EwmaETA(decor.ET_STYLE_GO, 10),
			decor.OnComplete(decor.Name(""), ". done"),
		),
	)
	return bar, func() {
		bar.SetTotal(int64(total), true)
		pbs.Wait()
	}
}

// logPhase reports a phase's wall time plus the mean and standard
// deviation of its work-unit times.
func (al *Aligner) logPhase(name string, elapsed time.Duration, unitSeconds []float64) {
	if al.opt.Logger == nil {
		return
	}
	if len(unitSeconds) == 0 {
		al.opt.Logger.Infof("%s: %s", name, elapsed)
		return
	}
	mean, stdev := stat.MeanStdDev(unitSeconds, nil)
	al.opt.Logger.Infof("%s: %s, %d work units, unit time mean %.6fs, stdev %.6fs",
		name, elapsed, len(unitSeconds), mean, stdev)
}
