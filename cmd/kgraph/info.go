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
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shenwei356/kgraph"
	"github.com/shenwei356/xopen"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Summarize graphs",
	Long: `Summarize graphs

By default, only info.toml is read. With -l/--load, the whole graph is
loaded, checked, and summarized from the data.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		load := getFlagBool(cmd, "load")
		outFile := getFlagString(cmd, "out-file")

		if len(args) == 0 {
			checkError(fmt.Errorf("graph directories needed"))
		}

		outfh, err := xopen.Wopen(outFile)
		checkError(err)
		defer outfh.Close()

		fmt.Fprintln(outfh, strings.Join([]string{"graph", "k", "tables", "table_sizes",
			"occupied_bins", "fpr", "tag_density", "tags", "labels", "tag_label_pairs", "strict", "size"}, "\t"))

		var info *kgraph.Info
		for _, dir := range args {
			if load {
				g, err := kgraph.NewFromDir(dir)
				checkError(err)
				info = g.Info()
			} else {
				info, err = kgraph.ReadInfo(filepath.Join(dir, kgraph.FileInfo))
				checkError(err)
			}

			sizes := make([]string, len(info.TableSizes))
			for i, s := range info.TableSizes {
				sizes[i] = humanize.Comma(int64(s))
			}
			fmt.Fprintf(outfh, "%s\t%d\t%d\t%s\t%d\t%.6f\t%d\t%d\t%d\t%d\t%v\t%s\n",
				dir, info.K, len(info.TableSizes), strings.Join(sizes, ","),
				info.Occupied, info.FPR, info.TagDensity, info.Tags,
				info.Labels, info.LabelLinks, info.Strict, dirSize(dir))

			if opt.Verbose {
				log.Debugf("%s: %s", dir, fileSizes(dir, kgraph.FilePresence, kgraph.FileTags, kgraph.FileLabels))
			}
		}
	},
}

func fileSize(file string) string {
	fi, err := os.Stat(file)
	if err != nil {
		return "-"
	}
	return humanize.Bytes(uint64(fi.Size()))
}

func dirSize(dir string) string {
	var n int64
	for _, file := range []string{kgraph.FilePresence, kgraph.FileTags, kgraph.FileLabels, kgraph.FileInfo} {
		fi, err := os.Stat(filepath.Join(dir, file))
		if err != nil {
			continue
		}
		n += fi.Size()
	}
	return humanize.Bytes(uint64(n))
}

func init() {
	RootCmd.AddCommand(infoCmd)

	infoCmd.Flags().BoolP("load", "l", false,
		formatFlagUsage(`Load the whole graph instead of reading info.toml.`))
	infoCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file ("-" for stdout).`))

	infoCmd.SetUsageTemplate(usageTemplate("<graph dir> [<graph dir> ...]"))
}
