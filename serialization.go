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
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shenwei356/kgraph/labels"
	"github.com/shenwei356/kgraph/presence"
	"github.com/shenwei356/xopen"
	log "github.com/sirupsen/logrus"
)

var be = binary.BigEndian

// Version is the version of the binary format of tag sets.
var Version uint8 = 4

// TypeTags marks a file of a tag set.
var TypeTags uint8 = 3

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("kgraph: invalid binary format")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("kgraph: broken file")

// ErrVersionMismatch means version mismatch between files and program.
var ErrVersionMismatch = errors.New("kgraph: version mismatch")

// ErrKMismatch means the k-mer size of a file differs from the graph.
var ErrKMismatch = errors.New("kgraph: k-mer size mismatch")

// File names in a graph directory.
const (
	FilePresence = "presence.bin"
	FileTags     = "tags.bin"
	FileLabels   = "labels.bin"
	FileInfo     = "info.toml"
)

// WriteTagsToFile writes the tag set to a file,
// optional with file extensions of .gz, .xz, .zst, .bz2.
func (g *Graph) WriteTagsToFile(file string) (int, error) {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return 0, err
	}
	defer outfh.Close()

	return g.WriteTags(outfh)
}

// WriteTags writes the tag set.
//
// Header (18 bytes):
//
//	Version, 1 byte
//	Type tag, 1 byte
//	K, uint32
//	Number of tags, uint64
//	Tag density, uint32
//
// Data: tags in uint64, in ascending order.
func (g *Graph) WriteTags(w io.Writer) (int, error) {
	tags := g.tags.ToArray()

	var N int
	buf := make([]byte, 18)
	buf[0] = Version
	buf[1] = TypeTags
	be.PutUint32(buf[2:6], uint32(g.k))
	be.PutUint64(buf[6:14], uint64(len(tags)))
	be.PutUint32(buf[14:18], uint32(g.tagDensity))
	_, err := w.Write(buf)
	if err != nil {
		return N, err
	}
	N += len(buf)

	bw := bufio.NewWriter(w)
	for _, tag := range tags {
		be.PutUint64(buf[:8], tag)
		_, err = bw.Write(buf[:8])
		if err != nil {
			return N, err
		}
		N += 8
	}
	return N, bw.Flush()
}

// LoadTags adds tags from a file. The tag density of the
// graph is replaced with the one in the file.
func (g *Graph) LoadTags(file string) error {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return err
	}
	defer fh.Close()

	tags, density, err := readTags(fh, g.k)
	if err != nil {
		return errors.Wrapf(err, "read tags: %s", file)
	}
	g.tags.AddMany(tags)
	g.tagDensity = density
	log.Debugf("%d tags loaded from %s", len(tags), file)
	return nil
}

func readTags(r io.Reader, k int) ([]uint64, int, error) {
	buf := make([]byte, 18)
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return nil, 0, brokenFile(err)
	}
	if buf[0] != Version {
		return nil, 0, errors.Wrapf(ErrVersionMismatch, "got %d, expected %d", buf[0], Version)
	}
	if buf[1] != TypeTags {
		return nil, 0, errors.Wrapf(ErrInvalidFileFormat, "type tag %d, expected %d", buf[1], TypeTags)
	}
	_k := int(be.Uint32(buf[2:6]))
	if _k != k {
		return nil, 0, errors.Wrapf(ErrKMismatch, "k=%d, expected %d", _k, k)
	}
	n := be.Uint64(buf[6:14])
	density := int(be.Uint32(buf[14:18]))
	if density < 1 {
		return nil, 0, ErrInvalidTagDensity
	}

	tags := make([]uint64, 0, min(n, 1<<20))
	for i := uint64(0); i < n; i++ {
		_, err = io.ReadFull(r, buf[:8])
		if err != nil {
			return nil, 0, brokenFile(err)
		}
		tags = append(tags, be.Uint64(buf[:8]))
	}
	return tags, density, nil
}

// LoadLabels adds tag-label pairs from a file, and the tags
// are also added to the tag set.
func (g *Graph) LoadLabels(file string) error {
	l, err := labels.NewFromFile(file, g.k)
	if err != nil {
		return err
	}
	if _, err = g.labels.Merge(l); err != nil {
		return err
	}
	g.tags.AddMany(l.Tags())
	log.Debugf("%d tag-label pairs loaded from %s", l.NLinks(), file)
	return nil
}

// Save writes the presence table, tags, labels and a summary to a directory.
func (g *Graph) Save(dir string) error {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	if _, err = g.table.WriteToFile(filepath.Join(dir, FilePresence)); err != nil {
		return errors.Wrapf(err, "save presence table")
	}
	if _, err = g.WriteTagsToFile(filepath.Join(dir, FileTags)); err != nil {
		return errors.Wrapf(err, "save tags")
	}
	if _, err = g.labels.WriteToFile(filepath.Join(dir, FileLabels)); err != nil {
		return errors.Wrapf(err, "save labels")
	}
	return WriteInfo(filepath.Join(dir, FileInfo), g.Info())
}

// NewFromDir loads a graph saved by Save.
func NewFromDir(dir string) (*Graph, error) {
	info, err := ReadInfo(filepath.Join(dir, FileInfo))
	if err != nil {
		return nil, errors.Wrapf(err, "read info")
	}

	t, err := presence.NewFromFile(filepath.Join(dir, FilePresence))
	if err != nil {
		return nil, err
	}
	if t.K() != info.K {
		return nil, errors.Wrapf(ErrKMismatch, "k of presence table: %d, info file: %d", t.K(), info.K)
	}

	g, err := NewFromTable(t, info.TagDensity, info.Strict)
	if err != nil {
		return nil, err
	}
	if err = g.LoadTags(filepath.Join(dir, FileTags)); err != nil {
		return nil, err
	}
	if err = g.LoadLabels(filepath.Join(dir, FileLabels)); err != nil {
		return nil, err
	}
	return g, nil
}

func brokenFile(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrBrokenFile
	}
	return err
}
