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
	"os"

	"github.com/mattn/go-colorable"
	logging "github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"
)

// VERSION of dagaligner
const VERSION = "0.1.0"

var log = logging.MustGetLogger("dagaligner")

// RootCmd is the base command of dagaligner.
var RootCmd = &cobra.Command{
	Use:   "dagaligner",
	Short: "align sequencing reads to a reference sequence graph",
	Long: fmt.Sprintf(`
dagaligner v%s -- local alignment of sequencing reads to a reference DAG

Documentation: https://github.com/czlabs/dagaligner

The reference is a directed acyclic sequence graph in vg (protobuf) or
plain text format. Each query is aligned to the best-scoring path in the
graph under a linear gap model, on whichever strand scores higher.

`, VERSION),
}

// Execute runs the root command; argument and input errors exit non-zero.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	logFormat := logging.MustStringFormatter(`%{time:15:04:05.000} %{color}[%{level:.4s}]%{color:reset} %{message}`)
	backend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	logging.SetBackend(logging.NewBackendFormatter(backend, logFormat))

	RootCmd.PersistentFlags().IntP("threads", "t", 0,
		formatFlagUsage(`Number of worker threads (0 for all CPUs).`))
	RootCmd.PersistentFlags().BoolP("quiet", "", false,
		formatFlagUsage(`Do not print any verbose information.`))
	RootCmd.PersistentFlags().StringP("log", "", "",
		formatFlagUsage(`Log file (appended to stderr logging).`))

	RootCmd.CompletionOptions.DisableDefaultCmd = true
}

// addLog tees logging into a file, in addition to stderr when verbose.
func addLog(logfile string, verbose bool) *os.File {
	fh, err := os.Create(logfile)
	checkError(err)

	fileFormat := logging.MustStringFormatter(`%{time:15:04:05.000} [%{level:.4s}] %{message}`)
	fileBackend := logging.NewBackendFormatter(logging.NewLogBackend(fh, "", 0), fileFormat)

	if verbose {
		stderrFormat := logging.MustStringFormatter(`%{time:15:04:05.000} %{color}[%{level:.4s}]%{color:reset} %{message}`)
		stderrBackend := logging.NewBackendFormatter(logging.NewLogBackend(colorable.NewColorableStderr(), "", 0), stderrFormat)
		logging.SetBackend(stderrBackend, fileBackend)
	} else {
		logging.SetBackend(fileBackend)
	}
	return fh
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dagaligner v%s\n", VERSION)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
