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

package presence

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/shenwei356/kgraph/kmer"
	"github.com/shenwei356/xopen"
)

var be = binary.BigEndian

// Version is the version of the binary format.
var Version uint8 = 4

// TypeTag marks a file of a presence table.
var TypeTag uint8 = 2

// maximum number of tables accepted when reading a file.
const maxTables = 1 << 10

// maxTableSize is the largest table size accepted from a file, in bits.
const maxTableSize = 1 << 48

// chunkSize is the number of bytes of table data read at a time.
const chunkSize = 1 << 20

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("presence: invalid binary format")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("presence: broken file")

// ErrVersionMismatch means version mismatch between files and program.
var ErrVersionMismatch = errors.New("presence: version mismatch")

// NewFromFile creates a Table from a file.
func NewFromFile(file string) (*Table, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	t, err := Read(fh)
	if err != nil {
		return nil, errors.Wrapf(err, "read presence table: %s", file)
	}
	return t, nil
}

// Load replaces the content of the table with the one in a file.
// The k-mer size must be the same. The table is untouched if any
// error occurs.
func (t *Table) Load(file string) error {
	t2, err := NewFromFile(file)
	if err != nil {
		return err
	}
	if t2.k != t.k {
		return errors.Wrapf(ErrKMismatch, "load %s: k=%d, expected %d", file, t2.k, t.k)
	}

	t.sizes = t2.sizes
	t.tables = t2.tables
	t.nOccupied.Store(t2.nOccupied.Load())
	t.nUnique.Store(t2.nUnique.Load())
	return nil
}

// WriteToFile writes a Table to a file,
// optional with file extensions of .gz, .xz, .zst, .bz2.
func (t *Table) WriteToFile(file string) (int, error) {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return 0, err
	}
	defer outfh.Close()

	return t.Write(outfh)
}

// Write writes a Table. It should not be called
// along with concurrent insertions.
//
// Header:
//
//	Version, 1 byte
//	Type tag, 1 byte
//	K, uint32
//	Number of tables, uint64
//	Table sizes, uint64 * number of tables
//
// Data: bit arrays, ceil(size/8) bytes for each table,
// bin b is stored in bit b%8 of byte b/8.
func (t *Table) Write(w io.Writer) (int, error) {
	var N int
	var err error

	buf := make([]byte, 14)
	buf[0] = Version
	buf[1] = TypeTag
	be.PutUint32(buf[2:6], uint32(t.k))
	be.PutUint64(buf[6:14], uint64(len(t.sizes)))
	_, err = w.Write(buf)
	if err != nil {
		return N, err
	}
	N += len(buf)

	for _, size := range t.sizes {
		be.PutUint64(buf[:8], size)
		_, err = w.Write(buf[:8])
		if err != nil {
			return N, err
		}
		N += 8
	}

	for i, words := range t.tables {
		data := make([]byte, len(words)<<3)
		for j, v := range words {
			binary.LittleEndian.PutUint64(data[j<<3:], v)
		}
		data = data[:(t.sizes[i]+7)>>3]

		_, err = w.Write(data)
		if err != nil {
			return N, err
		}
		N += len(data)
	}

	return N, nil
}

// Read reads a Table from an io.Reader.
func Read(r io.Reader) (*Table, error) {
	buf := make([]byte, 14)

	_, err := io.ReadFull(r, buf[:2])
	if err != nil {
		return nil, brokenFile(err)
	}
	if buf[0] != Version {
		return nil, errors.Wrapf(ErrVersionMismatch, "got %d, expected %d", buf[0], Version)
	}
	if buf[1] != TypeTag {
		return nil, errors.Wrapf(ErrInvalidFileFormat, "type tag %d, expected %d", buf[1], TypeTag)
	}

	_, err = io.ReadFull(r, buf[2:14])
	if err != nil {
		return nil, brokenFile(err)
	}
	k := int(be.Uint32(buf[2:6]))
	if err = kmer.CheckK(k); err != nil {
		return nil, err
	}
	n := be.Uint64(buf[6:14])
	if n == 0 || n > maxTables {
		return nil, errors.Wrapf(ErrInvalidFileFormat, "number of tables: %d", n)
	}

	sizes := make([]uint64, n)
	for i := range sizes {
		_, err = io.ReadFull(r, buf[:8])
		if err != nil {
			return nil, brokenFile(err)
		}
		sizes[i] = be.Uint64(buf[:8])
		if sizes[i] == 0 || sizes[i] > maxTableSize {
			return nil, errors.Wrapf(ErrInvalidFileFormat, "table size: %d", sizes[i])
		}
	}

	// tables grow with the data read, so a corrupt header
	// can not trigger a huge allocation.
	t := &Table{k: k, sizes: sizes, tables: make([][]uint64, n)}
	for i, size := range sizes {
		if t.tables[i], err = readTable(r, size); err != nil {
			return nil, errors.Wrapf(err, "table %d", i)
		}
	}

	// the number of unique k-mers is not saved,
	// the occupied bins of the first table is a lower bound.
	occupied := popcount(t.tables[0])
	t.nOccupied.Store(occupied)
	t.nUnique.Store(occupied)

	return t, nil
}

// readTable reads ceil(size/8) bytes of a table. Bits beyond size are cleared.
func readTable(r io.Reader, size uint64) ([]uint64, error) {
	nWords := (size + 63) >> 6
	nBytes := (size + 7) >> 3
	words := make([]uint64, 0, min(nWords, chunkSize>>3))
	buf := make([]byte, min(nWords<<3, chunkSize))

	var m, j uint64
	for nBytes > 0 {
		m = min(nBytes, uint64(len(buf)))
		clear(buf)
		if _, err := io.ReadFull(r, buf[:m]); err != nil {
			return nil, brokenFile(err)
		}
		for j = 0; j < m; j += 8 {
			words = append(words, binary.LittleEndian.Uint64(buf[j:]))
		}
		nBytes -= m
	}

	if rem := size & 63; rem != 0 {
		words[len(words)-1] &= 1<<rem - 1
	}
	return words, nil
}

func brokenFile(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrBrokenFile
	}
	return err
}
