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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shenwei356/kgraph"
	"github.com/shenwei356/kgraph/iterator"
	"github.com/shenwei356/kgraph/reads"
	"github.com/shenwei356/xopen"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts/sortutil"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query reads against a graph",
	Long: `Query reads against a graph

Output (TSV):
  read      read name
  kmers     number of k-mers
  present   number of k-mers present in the graph, with false positives
  tags      number of tags in the read
  hdns      number of high-degree nodes, i.e., k-mers with > 2 neighbors
  labels    labels linked to the tags, comma-separated

Reads shorter than k are skipped.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		timeStart := time.Now()
		defer logElapsed(opt.Verbose, timeStart)

		dbDir := getFlagString(cmd, "graph")
		if dbDir == "" {
			checkError(fmt.Errorf("flag -d/--graph needed"))
		}
		outFile := getFlagString(cmd, "out-file")
		maxLabels := getFlagNonNegativeInt(cmd, "max-labels")

		files := getFileList(args, true)

		if opt.Verbose {
			log.Infof("loading graph from %s ...", dbDir)
		}
		g, err := kgraph.NewFromDir(dbDir)
		checkError(err)
		if opt.Verbose {
			log.Infof("  k: %d, tags: %d, labels: %d", g.K(), g.Tags().Len(), g.Labels().NLabels())
		}

		outfh, err := xopen.Wopen(outFile)
		checkError(err)
		defer outfh.Close()
		bw := bufio.NewWriter(outfh)
		defer bw.Flush()

		fmt.Fprintln(bw, "read\tkmers\tpresent\ttags\thdns\tlabels")

		var nReads, nSkipped int
		for _, file := range files {
			parser, err := reads.NewFastxParser(file)
			checkError(err)

			var record *reads.Record
			for {
				record, err = parser.Next()
				if err != nil {
					if err == io.EOF {
						break
					}
					checkError(errors.Wrapf(err, "file: %s", file))
				}

				ok, err := queryRead(bw, g, record, maxLabels)
				checkError(err)
				if ok {
					nReads++
				} else {
					nSkipped++
				}
			}
		}
		if opt.Verbose {
			log.Infof("%d reads queried, %d skipped", nReads, nSkipped)
		}
	},
}

// queryRead writes the result of a read. It returns false if the read is skipped.
func queryRead(w io.Writer, g *kgraph.Graph, record *reads.Record, maxLabels int) (bool, error) {
	present, total, err := g.Table().Contains(record.Seq)
	if err != nil {
		if errors.Is(err, iterator.ErrShortSeq) {
			log.Debugf("skip short read: %s", record.Name)
			return false, nil
		}
		return false, errors.Wrapf(err, "read: %s", record.Name)
	}

	tags, err := g.SequenceTags(record.Seq)
	if err != nil {
		return false, errors.Wrapf(err, "read: %s", record.Name)
	}
	hdns, err := g.HighDegreeNodes(record.Seq)
	if err != nil {
		return false, errors.Wrapf(err, "read: %s", record.Name)
	}

	seen := make(map[uint64]struct{}, 8)
	values := make([]uint64, 0, 8)
	for _, tag := range tags {
		for _, lb := range g.Labels().LabelsOf(tag) {
			if _, ok := seen[lb.Value]; ok {
				continue
			}
			seen[lb.Value] = struct{}{}
			values = append(values, lb.Value)
		}
	}
	sortutil.Uint64s(values)
	if maxLabels > 0 && len(values) > maxLabels {
		values = values[:maxLabels]
	}

	labels := make([]string, len(values))
	for i, v := range values {
		labels[i] = strconv.FormatUint(v, 10)
	}
	_, err = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
		record.Name, total, present, len(tags), len(hdns), strings.Join(labels, ","))
	return true, err
}

func init() {
	RootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringP("graph", "d", "",
		formatFlagUsage(`Graph directory created by "kgraph build".`))
	queryCmd.Flags().IntP("max-labels", "m", 0,
		formatFlagUsage(`Maximum number of labels to output for each read, 0 for all.`))
	queryCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports a ".gz" suffix ("-" for stdout).`))

	queryCmd.SetUsageTemplate(usageTemplate("-d <graph dir> [-o <out.tsv.gz>] <seq files>"))
}
