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
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
)

// Options contains the global flags.
type Options struct {
	NumCPUs    int
	Verbose    bool
	Debug      bool
	LogFile    string
	CPUProfile bool
	MemProfile bool
}

func getOptions(cmd *cobra.Command) *Options {
	threads := getFlagInt(cmd, "threads")
	if threads < 1 {
		checkError(fmt.Errorf("value of -j/--threads should be >= 1: %d", threads))
	}
	return &Options{
		NumCPUs:    threads,
		Verbose:    !getFlagBool(cmd, "quiet"),
		Debug:      getFlagBool(cmd, "debug"),
		LogFile:    getFlagString(cmd, "log"),
		CPUProfile: getFlagBool(cmd, "pprof-cpu"),
		MemProfile: getFlagBool(cmd, "pprof-mem"),
	}
}

func addLog(file string) {
	fh, err := os.Create(file)
	checkError(errors.Wrapf(err, "create log file"))
	log.SetOutput(io.MultiWriter(os.Stderr, fh))
}

func checkError(err error) {
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func formatFlagUsage(s string) string {
	return "► " + s
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	value, err := cmd.Flags().GetInt(flag)
	checkError(err)
	return value
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	value := getFlagInt(cmd, flag)
	if value <= 0 {
		checkError(fmt.Errorf("value of flag --%s should be greater than 0", flag))
	}
	return value
}

func getFlagNonNegativeInt(cmd *cobra.Command, flag string) int {
	value := getFlagInt(cmd, flag)
	if value < 0 {
		checkError(fmt.Errorf("value of flag --%s should be greater than or equal to 0", flag))
	}
	return value
}

func getFlagFloat64(cmd *cobra.Command, flag string) float64 {
	value, err := cmd.Flags().GetFloat64(flag)
	checkError(err)
	return value
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	value, err := cmd.Flags().GetBool(flag)
	checkError(err)
	return value
}

func getFlagString(cmd *cobra.Command, flag string) string {
	value, err := cmd.Flags().GetString(flag)
	checkError(err)
	return value
}

func getFlagStringSlice(cmd *cobra.Command, flag string) []string {
	value, err := cmd.Flags().GetStringSlice(flag)
	checkError(err)
	return value
}

func isStdin(file string) bool {
	return file == "-"
}

// getFileList returns files from positional arguments, or stdin if none given.
func getFileList(args []string, checkFile bool) []string {
	if len(args) == 0 {
		return []string{"-"}
	}
	files := make([]string, 0, len(args))
	for _, file := range args {
		if isStdin(file) {
			files = append(files, file)
			continue
		}
		if checkFile {
			if _, err := os.Stat(file); err != nil {
				checkError(errors.Wrapf(err, "checking file: %s", file))
			}
		}
		files = append(files, file)
	}
	return files
}

// checkOutDir makes sure an output directory is absent or removable.
func checkOutDir(dir string, force bool) {
	if dir == "" {
		checkError(fmt.Errorf("flag -O/--out-dir needed"))
	}
	if _, err := os.Stat(dir); err == nil {
		if !force {
			checkError(fmt.Errorf("output directory exists, use --force to overwrite: %s", dir))
		}
		checkError(os.RemoveAll(dir))
	}
	checkError(os.MkdirAll(filepath.Dir(filepath.Clean(dir)), 0755))
}

// fileProgress returns a progress bar of processed files.
// Both returned values are nil if verbose is false.
func fileProgress(verbose bool, n int, name string) (*mpb.Progress, *mpb.Bar) {
	if !verbose {
		return nil, nil
	}
	pbs := mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
	bar := pbs.AddBar(int64(n),
		mpb.BarStyle("[=>-]<+"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name), C: decor.DidentRight}),
			decor.Name("", decor.WCSyncSpaceR),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
			decor.AverageETA(decor.ET_STYLE_GO),
			decor.OnComplete(decor.Name(""), ". done"),
		),
	)
	return pbs, bar
}

func logElapsed(verbose bool, start time.Time) {
	if verbose {
		log.Infof("elapsed time: %s", time.Since(start))
	}
}

func fileSizes(dir string, files ...string) string {
	var b strings.Builder
	for i, file := range files {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(file)
		b.WriteString(": ")
		b.WriteString(fileSize(filepath.Join(dir, file)))
	}
	return b.String()
}

func usageTemplate(s string) string {
	return fmt.Sprintf(`Usage:{{if .Runnable}}
  {{.UseLine}} %s{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`, s)
}
