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
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/kgraph"
	"github.com/shenwei356/kgraph/reads"
	"github.com/shenwei356/xopen"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a k-mer graph from FASTA/Q files",
	Long: `Build a k-mer graph from FASTA/Q files

Attention:
  1. The first and last k-mers of every read are tagged, and at most
     -d/--tag-density k-mers are passed between two tags.
  2. Labels:
       none       no labels
       index      the 0-based index of each read across all files
       partition  the partition ID after the last tab of each read name,
                  e.g., output of "kgraph partition"
  3. Table sizes are the largest -n/--tables primes below -s/--table-size.

Output files in -O/--out-dir:
  presence.bin   presence table
  tags.bin       tags
  labels.bin     tag-label pairs
  info.toml      summary

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		timeStart := time.Now()
		defer logElapsed(opt.Verbose, timeStart)

		gopt := graphOptions(cmd)

		var lmode kgraph.LabelMode
		switch label := getFlagString(cmd, "label"); label {
		case "none":
			lmode = kgraph.NoLabel
		case "index":
			lmode = kgraph.LabelByIndex
		case "partition":
			lmode = kgraph.LabelByPartitionID
		default:
			checkError(fmt.Errorf("invalid value of --label: %s, available: none, index, partition", label))
		}

		outDir := getFlagString(cmd, "out-dir")
		checkOutDir(outDir, getFlagBool(cmd, "force"))

		files := getFileList(args, true)
		if opt.Verbose {
			log.Infof("kgraph v%s", VERSION)
			log.Infof("  %d input file(s) given", len(files))
			log.Infof("  k: %d, tag density: %d, strict: %v", gopt.K, gopt.TagDensity, gopt.Strict)
		}

		g, err := kgraph.New(gopt)
		checkError(err)
		if opt.Verbose {
			log.Infof("  table sizes: %v, %s in total", g.Table().Sizes(), humanize.Bytes(tableBytes(g)))
		}

		copt := &kgraph.ConsumeOptions{
			Label:     lmode,
			Normalize: getFlagBool(cmd, "normalize"),
		}
		stats := consumeFiles(opt, files, func(p reads.Parser) (*kgraph.ConsumeStats, error) {
			s, err := g.ConsumeReads(p, copt, nil)
			if err == nil {
				copt.IndexOffset += s.Reads + s.Skipped
			}
			return s, err
		})

		if opt.Verbose {
			log.Infof("%s reads consumed, %s skipped", humanize.Comma(int64(stats.Reads)), humanize.Comma(int64(stats.Skipped)))
			log.Infof("  %s new k-mers, %s tags, %d labels",
				humanize.Comma(int64(stats.NewKmers)), humanize.Comma(int64(g.Tags().Len())), g.Labels().NLabels())
			log.Infof("  estimated false positive rate: %.6f", g.Table().FalsePositiveRate())
		}

		checkError(errors.Wrapf(g.Save(outDir), "save graph"))
		if opt.Verbose {
			log.Infof("graph saved to %s (%s)", outDir,
				fileSizes(outDir, kgraph.FilePresence, kgraph.FileTags, kgraph.FileLabels))
		}

		if tagsFile := getFlagString(cmd, "tags-text"); tagsFile != "" {
			outfh, err := xopen.Wopen(tagsFile)
			checkError(err)
			n, err := g.WriteTagsText(outfh)
			checkError(err)
			checkError(outfh.Close())
			if opt.Verbose {
				log.Infof("%s tags saved to %s", humanize.Comma(int64(n)), tagsFile)
			}
		}
	},
}

// graphOptions returns the options of a new graph from flags.
func graphOptions(cmd *cobra.Command) *kgraph.Options {
	k := getFlagPositiveInt(cmd, "kmer")
	if k > 32 {
		checkError(fmt.Errorf("the value of flag -k/--kmer should be in range of [1, 32]"))
	}
	size := getFlagFloat64(cmd, "table-size")
	if size < 2 {
		checkError(fmt.Errorf("the value of flag -s/--table-size should be >= 2"))
	}
	return &kgraph.Options{
		K:          k,
		TableSize:  uint64(size),
		NTables:    getFlagPositiveInt(cmd, "tables"),
		TagDensity: getFlagPositiveInt(cmd, "tag-density"),
		Strict:     getFlagBool(cmd, "strict"),
	}
}

func addGraphFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("kmer", "k", 21,
		formatFlagUsage(`K-mer size, <= 32.`))
	cmd.Flags().Float64P("table-size", "s", 1e8,
		formatFlagUsage(`Upper bound of the size of each presence table, in bits.`))
	cmd.Flags().IntP("tables", "n", 4,
		formatFlagUsage(`Number of presence tables.`))
	cmd.Flags().IntP("tag-density", "d", kgraph.DefaultTagDensity,
		formatFlagUsage(`Maximum number of k-mers between two tags.`))
	cmd.Flags().BoolP("strict", "", false,
		formatFlagUsage(`Reject reads with bases other than A, C, G, T, and make the new k-mer counting exact under concurrency.`))
}

func tableBytes(g *kgraph.Graph) uint64 {
	var n uint64
	for _, size := range g.Table().Sizes() {
		n += (size + 7) / 8
	}
	return n
}

// consumeFiles feeds files one by one to fn, with a progress bar.
func consumeFiles(opt *Options, files []string,
	fn func(p reads.Parser) (*kgraph.ConsumeStats, error)) *kgraph.ConsumeStats {
	pbs, bar := fileProgress(opt.Verbose, len(files), "processed files: ")

	total := &kgraph.ConsumeStats{}
	for _, file := range files {
		parser, err := reads.NewFastxParser(file)
		checkError(err)

		stats, err := fn(parser)
		checkError(errors.Wrapf(err, "file: %s", file))
		total.Reads += stats.Reads
		total.Skipped += stats.Skipped
		total.NewKmers += stats.NewKmers
		total.Tags += stats.Tags

		if bar != nil {
			bar.Increment()
		}
		log.Debugf("%s: %d reads, %d skipped", file, stats.Reads, stats.Skipped)
	}
	if pbs != nil {
		pbs.Wait()
	}
	return total
}

func init() {
	RootCmd.AddCommand(buildCmd)

	addGraphFlags(buildCmd)

	buildCmd.Flags().StringP("label", "l", "none",
		formatFlagUsage(`Label type, available values: none, index, partition.`))
	buildCmd.Flags().BoolP("normalize", "N", false,
		formatFlagUsage(`Convert reads to upper case and skip reads with bases other than A, C, G, T.`))

	buildCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))
	buildCmd.Flags().StringP("tags-text", "t", "",
		formatFlagUsage(`Also write tags as k-mers in plain text to this file, supports a ".gz" suffix.`))
	buildCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existing output directory.`))

	buildCmd.SetUsageTemplate(usageTemplate("[-k <k>] [-s <size>] [-n <tables>] [-l <label>] -O <out dir> <seq files>"))
}
