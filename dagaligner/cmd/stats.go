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
	"fmt"

	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"

	"github.com/czlabs/dagaligner/dagaligner/graph"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "print statistics of a reference graph",
	Long: `print statistics of a reference graph

The graph is verified and relabeled in topological order first, the
same way the align command prepares it.

`,
	Run: func(cmd *cobra.Command, args []string) {
		getOptions(cmd)

		mode := getFlagString(cmd, "mode")
		rfile := getFlagString(cmd, "ref")
		dump := getFlagBool(cmd, "dump")

		if rfile == "" {
			checkError(fmt.Errorf("flag -r/--ref needed"))
		}
		if !isStdin(rfile) {
			if ok, _ := pathutil.Exists(rfile); !ok {
				checkError(fmt.Errorf("file not accessible: %s", rfile))
			}
		}

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

		cg, err := graph.ExpandChars(g)
		checkError(err)

		outfh, _, w, err := outStream("-", false, -1)
		checkError(err)
		defer func() {
			outfh.Flush()
			w.Close()
		}()

		fmt.Fprintf(outfh, "vertices\t%d\n", g.NumVertices)
		fmt.Fprintf(outfh, "edges\t%d\n", g.NumEdges)
		fmt.Fprintf(outfh, "total-length\t%d\n", g.TotalRefLength())
		fmt.Fprintf(outfh, "bandwidth\t%d\n", bandwidth)
		fmt.Fprintf(outfh, "bandwidth-lower-bound\t%d\n", g.LowerBoundBandwidth())
		fmt.Fprintf(outfh, "char-vertices\t%d\n", cg.NumVertices)
		fmt.Fprintf(outfh, "char-edges\t%d\n", cg.NumEdges)
		fmt.Fprintf(outfh, "char-bandwidth\t%d\n", cg.Bandwidth())

		if dump {
			outfh.Flush()
			checkError(g.Dump(w))
		}
	},
}

func init() {
	RootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringP("mode", "m", "txt",
		formatFlagUsage(`Reference graph format (vg or txt).`))
	statsCmd.Flags().StringP("ref", "r", "",
		formatFlagUsage(`Reference graph file, optionally gzip-compressed.`))
	statsCmd.Flags().BoolP("dump", "", false,
		formatFlagUsage(`Dump the relabeled graph in the text format after the statistics.`))

	statsCmd.SetUsageTemplate(usageTemplate("-m {vg|txt} -r <graph>"))
}
