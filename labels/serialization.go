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

package labels

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

var be = binary.BigEndian

// Version is the version of the binary format.
var Version uint8 = 4

// TypeTag marks a file of tag-label pairs.
var TypeTag uint8 = 6

// size of a record: uint64 tag and uint64 label.
const recordSize = 16

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("labels: invalid binary format")

// ErrBrokenFile means the file is not complete or has partial records.
var ErrBrokenFile = errors.New("labels: broken file")

// ErrVersionMismatch means version mismatch between files and program.
var ErrVersionMismatch = errors.New("labels: version mismatch")

// ErrKMismatch means the k-mer size of a file differs from the expected one.
var ErrKMismatch = errors.New("labels: k-mer size mismatch")

// NewFromFile reads a Linker from a file, the k-mer size must be k.
func NewFromFile(file string, k int) (*Linker, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	l, err := Read(fh, k)
	if err != nil {
		return nil, errors.Wrapf(err, "read labels: %s", file)
	}
	return l, nil
}

// WriteToFile writes a Linker to a file,
// optional with file extensions of .gz, .xz, .zst, .bz2.
func (l *Linker) WriteToFile(file string) (int, error) {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return 0, err
	}
	defer outfh.Close()

	return l.Write(outfh)
}

// Write writes all tag-label pairs, sorted by tags.
//
// Header (14 bytes):
//
//	Version, 1 byte
//	Type tag, 1 byte
//	K, uint32
//	Number of records, uint64
//
// Data: records of a uint64 tag and a uint64 label value.
func (l *Linker) Write(w io.Writer) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tags := l.tags()

	var N int
	buf := make([]byte, 14)
	buf[0] = Version
	buf[1] = TypeTag
	be.PutUint32(buf[2:6], uint32(l.k))
	be.PutUint64(buf[6:14], uint64(l.nLinks))
	_, err := w.Write(buf)
	if err != nil {
		return N, err
	}
	N += len(buf)

	bw := bufio.NewWriter(w)
	rec := make([]byte, recordSize)
	for _, tag := range tags {
		be.PutUint64(rec[:8], tag)
		for _, lb := range l.tagLabels[tag] {
			be.PutUint64(rec[8:], lb.Value)
			_, err = bw.Write(rec)
			if err != nil {
				return N, err
			}
			N += recordSize
		}
	}
	return N, bw.Flush()
}

// Read reads a Linker from an io.Reader, the k-mer size must be k.
func Read(r io.Reader, k int) (*Linker, error) {
	buf := make([]byte, 14)

	_, err := io.ReadFull(r, buf)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrBrokenFile
		}
		return nil, err
	}
	if buf[0] != Version {
		return nil, errors.Wrapf(ErrVersionMismatch, "got %d, expected %d", buf[0], Version)
	}
	if buf[1] != TypeTag {
		return nil, errors.Wrapf(ErrInvalidFileFormat, "type tag %d, expected %d", buf[1], TypeTag)
	}
	_k := int(be.Uint32(buf[2:6]))
	if _k != k {
		return nil, errors.Wrapf(ErrKMismatch, "k=%d, expected %d", _k, k)
	}
	n := be.Uint64(buf[6:14])

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data)%recordSize != 0 {
		return nil, errors.Wrapf(ErrBrokenFile, "%d bytes left after the last complete record", len(data)%recordSize)
	}
	if uint64(len(data)/recordSize) != n {
		return nil, errors.Wrapf(ErrBrokenFile, "%d records found, expected %d", len(data)/recordSize, n)
	}

	l := NewLinker(k)
	for i := 0; i < len(data); i += recordSize {
		l.link(be.Uint64(data[i:i+8]), l.intern(be.Uint64(data[i+8:i+16])))
	}
	return l, nil
}
