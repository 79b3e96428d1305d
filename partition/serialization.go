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

package partition

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
	log "github.com/sirupsen/logrus"
	"github.com/twotwotwo/sorts/sortutil"
)

var be = binary.BigEndian

// Version is the version of the binary format.
var Version uint8 = 4

// TypeTag marks a file of a partition map.
var TypeTag uint8 = 5

const recordSize = 16

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("partition: invalid binary format")

// ErrBrokenFile means the file is not complete or has partial records.
var ErrBrokenFile = errors.New("partition: broken file")

// ErrVersionMismatch means version mismatch between files and program.
var ErrVersionMismatch = errors.New("partition: version mismatch")

// ErrKMismatch means different k-mer sizes.
var ErrKMismatch = errors.New("partition: k-mer size mismatch")

// WriteToFile writes the partition map to a file,
// optional with file extensions of .gz, .xz, .zst, .bz2.
func (p *Partitioner) WriteToFile(file string) (int, error) {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return 0, err
	}
	defer outfh.Close()

	return p.Write(outfh)
}

// Write writes the partition map, i.e., the component ID of every tag.
//
// Header (14 bytes):
//
//	Version, 1 byte
//	Type tag, 1 byte
//	K, uint32
//	Number of records, uint64
//
// Data: records of a uint64 tag and a uint64 component ID, sorted by tags.
func (p *Partitioner) Write(w io.Writer) (int, error) {
	if _, err := p.acquire(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tags := make([]uint64, 0, len(p.tagComponent))
	for tag := range p.tagComponent {
		tags = append(tags, tag)
	}
	sortutil.Uint64s(tags)

	var N int
	buf := make([]byte, 14)
	buf[0] = Version
	buf[1] = TypeTag
	be.PutUint32(buf[2:6], uint32(p.k))
	be.PutUint64(buf[6:14], uint64(len(tags)))
	_, err := w.Write(buf)
	if err != nil {
		return N, err
	}
	N += len(buf)

	bw := bufio.NewWriter(w)
	rec := make([]byte, recordSize)
	for _, tag := range tags {
		be.PutUint64(rec[:8], tag)
		be.PutUint64(rec[8:], p.tagComponent[tag].ID)
		_, err = bw.Write(rec)
		if err != nil {
			return N, err
		}
		N += recordSize
	}
	return N, bw.Flush()
}

// LoadFromFile merges a partition map from a file.
func (p *Partitioner) LoadFromFile(file string) error {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return err
	}
	defer fh.Close()

	if err = p.Load(fh); err != nil {
		return errors.Wrapf(err, "read partition map: %s", file)
	}
	return nil
}

// Load merges a partition map. Tags of the same component in the map
// end up in one component, merged with existing components sharing
// any of the tags. Nothing is changed if the map is invalid.
func (p *Partitioner) Load(r io.Reader) error {
	if _, err := p.acquire(); err != nil {
		return err
	}

	buf := make([]byte, 14)
	_, err := io.ReadFull(r, buf)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrBrokenFile
		}
		return err
	}
	if buf[0] != Version {
		return errors.Wrapf(ErrVersionMismatch, "got %d, expected %d", buf[0], Version)
	}
	if buf[1] != TypeTag {
		return errors.Wrapf(ErrInvalidFileFormat, "type tag %d, expected %d", buf[1], TypeTag)
	}
	k := int(be.Uint32(buf[2:6]))
	if k != p.k {
		return errors.Wrapf(ErrKMismatch, "k=%d, expected %d", k, p.k)
	}
	n := be.Uint64(buf[6:14])

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(data)%recordSize != 0 || uint64(len(data)/recordSize) != n {
		return errors.Wrapf(ErrBrokenFile, "%d bytes of records, expected %d records", len(data), n)
	}

	groups := make(map[uint64][]uint64, 128)
	var id uint64
	for i := 0; i < len(data); i += recordSize {
		id = be.Uint64(data[i+8 : i+16])
		groups[id] = append(groups[id], be.Uint64(data[i:i+8]))
	}
	for _, tags := range groups {
		p.assign(tags)
	}
	log.Debugf("%d tags in %d components loaded", n, len(groups))
	return nil
}
