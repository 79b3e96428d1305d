// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
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

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pkg/profile"
	"github.com/shenwei356/kgraph"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// VERSION of kgraph
const VERSION = "0.1.0"

var stopProfile interface{ Stop() }

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "kgraph",
	Short: "Bloom-filter-backed k-mer graph for tagging, labeling and partitioning reads",
	Long: fmt.Sprintf(`kgraph - a compact k-mer graph for tagging, labeling and partitioning reads

K-mers are stored in a multi-table Bloom filter. A sparse subset of k-mers,
the tags, are kept exactly. Tags can be linked to labels, and reads sharing
paths in the graph are grouped into components.

Version: v%s

Author: Wei Shen <shenwei356@gmail.com>

`, VERSION),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		kgraph.Threads = opt.NumCPUs

		if opt.Debug {
			log.SetLevel(log.DebugLevel)
		} else if opt.Verbose {
			log.SetLevel(log.InfoLevel)
		} else {
			log.SetLevel(log.WarnLevel)
		}
		if opt.LogFile != "" {
			addLog(opt.LogFile)
		}

		// go tool pprof -http=:8080 cpu.pprof
		if opt.CPUProfile {
			stopProfile = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet)
		} else if opt.MemProfile {
			stopProfile = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopProfile != nil {
			stopProfile.Stop()
		}
	},
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	log.SetOutput(os.Stderr)

	defaultThreads := runtime.NumCPU()

	RootCmd.PersistentFlags().IntP("threads", "j", defaultThreads,
		formatFlagUsage("Number of CPU cores to use. By default, it uses all available cores."))
	RootCmd.PersistentFlags().BoolP("quiet", "q", false,
		formatFlagUsage("Do not print any verbose information. But you can write them to file with --log."))
	RootCmd.PersistentFlags().BoolP("debug", "", false,
		formatFlagUsage("Print debug information."))
	RootCmd.PersistentFlags().StringP("log", "", "",
		formatFlagUsage("Log file."))
	RootCmd.PersistentFlags().BoolP("pprof-cpu", "", false,
		formatFlagUsage("Write a CPU profile to the current directory."))
	RootCmd.PersistentFlags().BoolP("pprof-mem", "", false,
		formatFlagUsage("Write a memory profile to the current directory."))

	RootCmd.CompletionOptions.DisableDefaultCmd = true
	RootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
}
