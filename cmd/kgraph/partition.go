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
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/kgraph"
	"github.com/shenwei356/kgraph/partition"
	"github.com/shenwei356/kgraph/reads"
	"github.com/shenwei356/xopen"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Partition reads into connected components",
	Long: `Partition reads into connected components

Reads are inserted into a new graph, and reads sharing k-mers, or linked
via paths of at most 2*tag-density+1 k-mers, are grouped into components.
Reads are then written with the component ID appended to the name
after a tab. Reads with no tags in any component get the ID 0.

Partition maps (tag to component ID) from other runs with the same k
can be merged with --load-pmap.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		timeStart := time.Now()
		defer logElapsed(opt.Verbose, timeStart)

		gopt := graphOptions(cmd)
		outFile := getFlagString(cmd, "out-file")
		pmapFile := getFlagString(cmd, "pmap")
		loadPmaps := getFlagStringSlice(cmd, "load-pmap")
		outDir := getFlagString(cmd, "out-dir")
		force := getFlagBool(cmd, "force")
		unassigned := getFlagBool(cmd, "output-unassigned")

		files := getFileList(args, true)
		for _, file := range files {
			if isStdin(file) {
				checkError(fmt.Errorf("stdin is not supported, reads are read twice"))
			}
		}
		if outDir != "" {
			checkOutDir(outDir, force)
		}

		g, err := kgraph.New(gopt)
		checkError(err)
		p := partition.New(g, &partition.Options{
			StopAtFirstTag: getFlagBool(cmd, "stop-at-first-tag"),
		})

		if opt.Verbose {
			log.Infof("kgraph v%s", VERSION)
			log.Infof("  %d input file(s) given", len(files))
			log.Infof("  k: %d, tag density: %d", gopt.K, gopt.TagDensity)
			log.Info("partitioning reads ...")
		}

		consumeFiles(opt, files, func(parser reads.Parser) (*kgraph.ConsumeStats, error) {
			n, skipped, err := p.ConsumeReads(parser)
			return &kgraph.ConsumeStats{Reads: uint64(n), Skipped: uint64(skipped)}, err
		})

		for _, file := range loadPmaps {
			checkError(p.LoadFromFile(file))
			log.Debugf("partition map merged: %s", file)
		}

		if opt.Verbose {
			dist, nUnassigned, err := p.SizeDistribution()
			checkError(err)
			log.Infof("  %s tags in %s components, %d unassigned",
				humanize.Comma(int64(p.NTags())), humanize.Comma(int64(p.NComponents())), nUnassigned)
			logSizeDistribution(dist)
		}

		outfh, err := xopen.Wopen(outFile)
		checkError(err)
		defer outfh.Close()

		var nComponents int // summed over files
		for _, file := range files {
			parser, err := reads.NewFastxParser(file)
			checkError(err)
			n, err := p.OutputPartitioned(parser, outfh, unassigned)
			checkError(errors.Wrapf(err, "file: %s", file))
			nComponents += n
		}
		if opt.Verbose {
			log.Infof("reads of %d components saved to %s", nComponents, outFile)
		}

		if pmapFile != "" {
			n, err := p.WriteToFile(pmapFile)
			checkError(err)
			if opt.Verbose {
				log.Infof("partition map saved to %s (%s)", pmapFile, humanize.Bytes(uint64(n)))
			}
		}

		if outDir != "" {
			checkError(errors.Wrapf(g.Save(outDir), "save graph"))
			if opt.Verbose {
				log.Infof("graph saved to %s (%s)", outDir, fileSize(filepath.Join(outDir, kgraph.FilePresence)))
			}
		}
	},
}

func logSizeDistribution(dist map[uint64]int) {
	sizes := make([]uint64, 0, len(dist))
	for size := range dist {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })

	log.Debug("component size distribution (tags: components):")
	for _, size := range sizes {
		log.Debugf("  %d: %d", size, dist[size])
	}
}

func init() {
	RootCmd.AddCommand(partitionCmd)

	addGraphFlags(partitionCmd)

	partitionCmd.Flags().BoolP("stop-at-first-tag", "F", false,
		formatFlagUsage(`Stop searching around new k-mers at the first tag found, faster but might miss some joins.`))
	partitionCmd.Flags().StringSliceP("load-pmap", "L", []string{},
		formatFlagUsage(`Partition map files to merge.`))

	partitionCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file of partitioned reads, supports and recommends a ".gz" suffix ("-" for stdout).`))
	partitionCmd.Flags().BoolP("output-unassigned", "U", false,
		formatFlagUsage(`Output reads without any assigned tag, with a component ID of 0.`))
	partitionCmd.Flags().StringP("pmap", "P", "",
		formatFlagUsage(`Out file of the partition map.`))
	partitionCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory of the graph, optional.`))
	partitionCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))

	partitionCmd.SetUsageTemplate(usageTemplate("[-k <k>] [-s <size>] [-P <pmap>] [-o <out.fa.gz>] <seq files>"))
}
