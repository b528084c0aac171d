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

package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"

	"github.com/czlabs/dagaligner/dagaligner/align"
	"github.com/czlabs/dagaligner/dagaligner/graph"
)

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "align queries to a reference graph",
	Long: `align queries to a reference graph

Attention:
  1. The reference graph (-m vg or -m txt) must be acyclic; it is
     verified and relabeled in topological order before alignment.
  2. Queries should be (gzipped) FASTA or FASTQ records.
  3. Each query is reported once, on whichever strand scores higher;
     ties keep the forward strand.

Output format:
  Tab-delimited, one record per query, in input order, with 0-based
  positions.

    1.  query,   Query sequence ID.
    2.  qlen,    Query sequence length.
    3.  qstart,  Start of alignment in the query.
    4.  qend,    End of alignment in the query (inclusive).
    5.  strand,  Aligned strand of the query.
    6.  rstart,  Start in the reference as a (vertex, offset) tuple.
    7.  rend,    End in the reference as a (vertex, offset) tuple.
    8.  score,   Alignment score.
    9.  cigar,   CIGAR string over =, X, I and D.
    10. path,    Visited reference vertices, "-"-separated.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}

		outputLog := opt.Verbose || opt.Log2File

		timeStart := time.Now()
		defer func() {
			if outputLog {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		// ---------------------------------------------------------------

		mode := getFlagString(cmd, "mode")
		rfile := getFlagString(cmd, "ref")
		qfile := getFlagString(cmd, "query")
		outFile := getFlagString(cmd, "out-file")

		if rfile == "" {
			checkError(fmt.Errorf("flag -r/--ref needed"))
		}
		if qfile == "" {
			checkError(fmt.Errorf("flag -q/--query needed"))
		}
		for _, file := range []string{rfile, qfile} {
			if isStdin(file) {
				continue
			}
			if ok, _ := pathutil.Exists(file); !ok {
				checkError(fmt.Errorf("file not accessible: %s", file))
			}
		}

		par := &align.Parameters{
			Match:    int32(getFlagNonNegativeInt(cmd, "match")),
			Mismatch: int32(getFlagNonNegativeInt(cmd, "mismatch")),
			Ins:      int32(getFlagNonNegativeInt(cmd, "ins")),
			Del:      int32(getFlagNonNegativeInt(cmd, "del")),
		}
		checkError(par.Validate())

		scalar := getFlagBool(cmd, "scalar")
		debug := getFlagBool(cmd, "debug")

		if outputLog {
			log.Infof("dagaligner v%s", VERSION)
			log.Info()
			log.Infof("reference file: %s (in %s format)", rfile, mode)
			log.Infof("query file: %s", qfile)
			log.Infof("scoring: match=%d, mismatch=%d, ins=%d, del=%d", par.Match, par.Mismatch, par.Ins, par.Del)
			log.Infof("threads: %d", opt.NumCPUs)
			log.Info()
		}

		// ---------------------------------------------------------------
		// loading the reference graph

		var g *graph.Graph
		var err error
		switch mode {
		case "vg":
			g, err = graph.LoadVG(rfile)
		case "txt":
			g, err = graph.LoadTxt(rfile)
		default:
			checkError(fmt.Errorf("invalid graph format: %q, please choose from vg or txt", mode))
		}
		checkError(err)
		checkError(g.Verify())

		bandwidth, err := g.Sort()
		checkError(err)
		g.SortAdjacency()
		checkError(g.Verify())

		if outputLog {
			log.Infof("reference graph loaded: %d vertices, %d edges, total length %d",
				g.NumVertices, g.NumEdges, g.TotalRefLength())
			log.Infof("topological relabeling done, bandwidth: %d (loose lower bound: %d)",
				bandwidth, g.LowerBoundBandwidth())
		}

		cg, err := graph.ExpandChars(g)
		checkError(err)

		if outputLog {
			log.Infof("character graph: %d vertices, %d edges, bandwidth: %d",
				cg.NumVertices, cg.NumEdges, cg.Bandwidth())
			log.Info()
		}

		if debug {
			checkError(g.Dump(os.Stderr))
		}

		// ---------------------------------------------------------------
		// reading queries

		reads := make([][]byte, 0, 1024)
		names := make([]string, 0, 1024)

		fastxReader, err := fastx.NewReader(nil, qfile, "")
		checkError(err)
		var record *fastx.Record
		for {
			record, err = fastxReader.Read()
			if err != nil {
				if err == io.EOF {
					break
				}
				checkError(errors.Wrapf(err, "failed to read query file: %s", qfile))
				break
			}
			if len(record.Seq.Seq) == 0 {
				checkError(fmt.Errorf("empty query: %s", record.ID))
			}

			read := make([]byte, len(record.Seq.Seq))
			copy(read, record.Seq.Seq)
			reads = append(reads, read)
			names = append(names, string(record.ID))
		}
		fastxReader.Close()

		if len(reads) == 0 {
			checkError(fmt.Errorf("no queries in file: %s", qfile))
		}
		if outputLog {
			log.Infof("%d queries loaded", len(reads))
		}

		// ---------------------------------------------------------------
		// alignment

		var logger = log
		if !outputLog {
			logger = nil
		}
		al, err := align.New(cg, par, &align.Options{
			Scalar:  scalar,
			Verbose: opt.Verbose,
			Logger:  logger,
		})
		checkError(err)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		records, err := al.Align(ctx, reads, align.ModeLocal)
		checkError(err)

		// ---------------------------------------------------------------
		// output

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		var pathBuf bytes.Buffer
		for i := range records {
			b := &records[i]

			// a read with score 0 did not align anywhere; its record
			// carries no reference location
			if b.Score == 0 {
				fmt.Fprintf(outfh, "%s\t%d\t%d\t%d\t%c\t\t\t0\t\t\n",
					names[b.QueryID], len(reads[b.QueryID]),
					b.QryRowStart, b.QryRowEnd,
					b.Strand)
				continue
			}

			so := cg.Origins[b.RefColumnStart]
			eo := cg.Origins[b.RefColumnEnd]

			fmt.Fprintf(outfh, "%s\t%d\t%d\t%d\t%c\t(%d,%d)\t(%d,%d)\t%d\t%s\t%s\n",
				names[b.QueryID], len(reads[b.QueryID]),
				b.QryRowStart, b.QryRowEnd,
				b.Strand,
				so.Vertex, so.Offset,
				eo.Vertex, eo.Offset,
				b.Score,
				b.Cigar,
				pathString(cg, b, &pathBuf))
		}

		if outputLog {
			log.Infof("done aligning, results saved to: %s", outFile)
		}
	},
}

// pathString renders the distinct original vertices visited by the
// traceback, from the start of the alignment to its end.
func pathString(cg *graph.CharGraph, b *align.BestScoreInfo, buf *bytes.Buffer) string {
	buf.Reset()

	last := cg.Origins[b.RefColumnStart].Vertex
	buf.WriteString(strconv.Itoa(int(last)))

	for _, c := range b.RefColumns {
		if c < b.RefColumnStart || c > b.RefColumnEnd {
			continue
		}
		if v := cg.Origins[c].Vertex; v != last {
			last = v
			buf.WriteByte('-')
			buf.WriteString(strconv.Itoa(int(v)))
		}
	}
	return buf.String()
}

func init() {
	RootCmd.AddCommand(alignCmd)

	alignCmd.Flags().StringP("mode", "m", "txt",
		formatFlagUsage(`Reference graph format (vg or txt).`))
	alignCmd.Flags().StringP("ref", "r", "",
		formatFlagUsage(`Reference graph file, optionally gzip-compressed.`))
	alignCmd.Flags().StringP("query", "q", "",
		formatFlagUsage(`Query file (FASTA or FASTQ, optionally gzip-compressed).`))
	alignCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports a ".gz" suffix ("-" for stdout).`))

	alignCmd.Flags().IntP("match", "", 1,
		formatFlagUsage(`Match reward.`))
	alignCmd.Flags().IntP("mismatch", "", 1,
		formatFlagUsage(`Mismatch penalty (subtracted).`))
	alignCmd.Flags().IntP("ins", "", 1,
		formatFlagUsage(`Insertion penalty (subtracted).`))
	alignCmd.Flags().IntP("del", "", 1,
		formatFlagUsage(`Deletion penalty (subtracted).`))

	alignCmd.Flags().BoolP("scalar", "", false,
		formatFlagUsage(`Use the scalar alignment kernels instead of the lane-packed ones.`))
	alignCmd.Flags().BoolP("debug", "", false,
		formatFlagUsage(`Dump the relabeled reference graph to stderr.`))

	alignCmd.SetUsageTemplate(usageTemplate("-m {vg|txt} -r <graph> -q <query.fq.gz> [-o result.tsv]"))
}
