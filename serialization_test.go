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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func newTestGraph(t *testing.T, k int) *Graph {
	g, err := New(&Options{K: k, TableSize: 100003, NTables: 3, TagDensity: 5})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{
		"AAGTTTGAATCATTCAACTATCTAGTTTTCAGAGAACAATGTTCTCTAAAGAATAGAAAAGAGTCATTGTG",
		"CGGTGATGATGGCGGGAAGGATCCACCTGACTG",
	} {
		if _, _, err = g.ConsumeSequenceAndTag([]byte(s)); err != nil {
			t.Fatal(err)
		}
	}
	return g
}

func TestTagsSerialization(t *testing.T) {
	k := 11
	g := newTestGraph(t, k)

	// ----------------------------------------

	file := filepath.Join(t.TempDir(), "tags.bin.gz")

	N, err := g.WriteTagsToFile(file)
	if err != nil {
		t.Errorf("writing tags to file: %s", err)
		return
	}
	if N != 18+8*int(g.Tags().Len()) {
		t.Errorf("unexpected number of bytes: %d", N)
		return
	}

	// ----------------------------------------

	g2, err := New(&Options{K: k, TableSize: 100003, NTables: 3, TagDensity: 40})
	if err != nil {
		t.Error(err)
		return
	}
	if err = g2.LoadTags(file); err != nil {
		t.Errorf("loading tags: %s", err)
		return
	}

	if g2.TagDensity() != g.TagDensity() {
		t.Errorf("tag densities unmatched: %d vs %d", g2.TagDensity(), g.TagDensity())
		return
	}

	tags, tags2 := g.Tags().ToArray(), g2.Tags().ToArray()
	if len(tags) != len(tags2) {
		t.Errorf("number of tags unmatched: %d vs %d", len(tags), len(tags2))
		return
	}
	for i, tag := range tags {
		if tag != tags2[i] {
			t.Errorf("tags unmatched: %d vs %d", tag, tags2[i])
			return
		}
	}

	// ----------------------------------------

	g3, err := New(&Options{K: k + 1, TableSize: 100003, NTables: 3})
	if err != nil {
		t.Error(err)
		return
	}
	if err = g3.LoadTags(file); !errors.Is(err, ErrKMismatch) {
		t.Errorf("expected ErrKMismatch, got %v", err)
		return
	}
	if g3.Tags().Len() != 0 {
		t.Errorf("tags should not be added from an invalid file")
	}
}

func TestTagsSerializationErrors(t *testing.T) {
	k := 11
	g := newTestGraph(t, k)

	var buf bytes.Buffer
	if _, err := g.WriteTags(&buf); err != nil {
		t.Error(err)
		return
	}
	data := buf.Bytes()

	type Case struct {
		name   string
		data   []byte
		expect error
	}

	mutate := func(i int, b byte) []byte {
		d := make([]byte, len(data))
		copy(d, data)
		d[i] = b
		return d
	}

	cases := []Case{
		{"short header", data[:10], ErrBrokenFile},
		{"truncated", data[:len(data)-3], ErrBrokenFile},
		{"version", mutate(0, Version+1), ErrVersionMismatch},
		{"type", mutate(1, TypeTags+1), ErrInvalidFileFormat},
		{"k", mutate(5, byte(k+1)), ErrKMismatch},
		{"density", mutate(17, 0), ErrInvalidTagDensity},
	}

	for _, c := range cases {
		_, _, err := readTags(bytes.NewReader(c.data), k)
		if !errors.Is(err, c.expect) {
			t.Errorf("%s: expected %v, got %v", c.name, c.expect, err)
		}
	}

	tags, density, err := readTags(bytes.NewReader(data), k)
	if err != nil {
		t.Error(err)
		return
	}
	if density != 5 || uint64(len(tags)) != g.Tags().Len() {
		t.Errorf("unexpected density %d or number of tags %d", density, len(tags))
	}
}

func TestTagsText(t *testing.T) {
	k := 11
	g := newTestGraph(t, k)

	file := filepath.Join(t.TempDir(), "tags.txt")
	outfh, err := os.Create(file)
	if err != nil {
		t.Errorf("failed to write file: %s", file)
		return
	}
	n, err := g.WriteTagsText(outfh)
	outfh.Close()
	if err != nil {
		t.Error(err)
		return
	}
	if uint64(n) != g.Tags().Len() {
		t.Errorf("number of written tags unmatched: %d vs %d", n, g.Tags().Len())
		return
	}

	// ----------------------------------------

	fh, err := os.Open(file)
	if err != nil {
		t.Error(err)
		return
	}
	defer fh.Close()

	g2, err := New(&Options{K: k, TableSize: 100003, NTables: 3, TagDensity: 5})
	if err != nil {
		t.Error(err)
		return
	}
	n2, err := g2.ReadTagsText(fh)
	if err != nil {
		t.Errorf("reading tags from a text file: %s", err)
		return
	}
	if n2 != n {
		t.Errorf("number of tags unmatched: %d vs %d", n, n2)
		return
	}

	tags, tags2 := g.Tags().ToArray(), g2.Tags().ToArray()
	for i, tag := range tags {
		if tag != tags2[i] {
			t.Errorf("tags unmatched: %d vs %d", tag, tags2[i])
			return
		}
	}

	// ----------------------------------------

	if _, err = g2.ReadTagsText(bytes.NewBufferString("ACGT\n")); !errors.Is(err, ErrKMismatch) {
		t.Errorf("expected ErrKMismatch, got %v", err)
	}
	if _, err = g2.ReadTagsText(bytes.NewBufferString("ACGTNACGTAC\n")); err == nil {
		t.Errorf("illegal bases should be rejected")
	}
}

func TestMustDecoder(t *testing.T) {
	decoder := MustDecoder(5)
	s := []byte("ACGTT")
	h := uint64(0)
	for _, b := range s {
		h = h<<2 | uint64(bytes.IndexByte([]byte("ATCG"), b))
	}
	if string(decoder(h)) != "ACGTT" {
		t.Errorf("unexpected decoding: %s", decoder(h))
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestTagsTextWriteError(t *testing.T) {
	g, err := New(&Options{K: 11, TableSize: 100003, NTables: 3, TagDensity: 1})
	if err != nil {
		t.Error(err)
		return
	}
	// more tags than a bufio buffer holds
	for i := 0; i < 600; i++ {
		g.Tags().Add(uint64(i))
	}

	n, err := g.WriteTagsText(failingWriter{})
	if err == nil {
		t.Errorf("write errors should be returned")
		return
	}
	if n >= 600 {
		t.Errorf("unexpected number of written tags: %d", n)
	}
}
