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

package kgraph

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/shenwei356/kgraph/kmer"
)

// MustDecoder returns a function decoding codes of k-mers,
// which reuses the byte slice.
func MustDecoder(k int) func(code uint64) []byte {
	buf := make([]byte, k)

	return func(code uint64) []byte {
		for i := k - 1; i >= 0; i-- {
			buf[i] = kmer.Code2Base[code&3]
			code >>= 2
		}
		return buf
	}
}

// WriteTagsText writes tags as k-mers, one per line, in ascending order of tags.
func (g *Graph) WriteTagsText(w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	decoder := MustDecoder(g.k)

	var n int
	for _, tag := range g.tags.ToArray() {
		if _, err := bw.Write(decoder(tag)); err != nil {
			return n, err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return n, err
		}
		n++
	}
	return n, bw.Flush()
}

// ReadTagsText adds tags from k-mers in plain text, one per line.
// Empty lines are ignored. It returns the number of k-mers read.
func (g *Graph) ReadTagsText(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	tags := make([]uint64, 0, 1024)

	var line []byte
	var h uint64
	var err error
	for scanner.Scan() {
		line = bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if len(line) != g.k {
			return 0, errors.Wrapf(ErrKMismatch, "k-mer of %d bases: %s", len(line), line)
		}
		if !kmer.IsValid(line) {
			return 0, errors.Wrapf(kmer.ErrIllegalBase, "k-mer: %s", line)
		}
		h, err = kmer.Hash(line, g.k)
		if err != nil {
			return 0, err
		}
		tags = append(tags, h)
	}
	if err = scanner.Err(); err != nil {
		return 0, err
	}

	g.tags.AddMany(tags)
	return len(tags), nil
}
