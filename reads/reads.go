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

// Package reads provides streams of sequence records for the graph.
package reads

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// ErrNoPartitionID means no partition ID is found in a read name.
var ErrNoPartitionID = errors.New("reads: no partition ID found in read name")

func init() {
	seq.ValidateSeq = false
}

// Record is a sequence record.
type Record struct {
	Name []byte
	Seq  []byte
	Qual []byte // empty for FASTA records
}

// Parser is a finite and non-restartable stream of records.
// Next returns io.EOF after the last record.
type Parser interface {
	Next() (*Record, error)
	IsComplete() bool
}

// FastxParser reads records from FASTA/Q files.
type FastxParser struct {
	files  []string
	i      int
	reader *fastx.Reader
	done   bool
}

// NewFastxParser creates a Parser of FASTA/Q files, "-" for stdin.
func NewFastxParser(files ...string) (*FastxParser, error) {
	if len(files) == 0 {
		files = []string{"-"}
	}
	p := &FastxParser{files: files}
	var err error
	p.reader, err = fastx.NewReader(nil, files[0], "")
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Next returns the next record. The record is not reused.
func (p *FastxParser) Next() (*Record, error) {
	if p.done {
		return nil, io.EOF
	}

	var record *fastx.Record
	var err error
	for {
		record, err = p.reader.Read()
		if err == nil {
			break
		}
		if err != io.EOF {
			return nil, err
		}

		p.i++
		if p.i == len(p.files) {
			p.done = true
			return nil, io.EOF
		}
		p.reader, err = fastx.NewReader(nil, p.files[p.i], "")
		if err != nil {
			return nil, err
		}
	}

	return &Record{
		Name: append([]byte{}, record.Name...),
		Seq:  append([]byte{}, record.Seq.Seq...),
		Qual: append([]byte{}, record.Seq.Qual...),
	}, nil
}

// IsComplete tells whether all records are returned.
func (p *FastxParser) IsComplete() bool {
	return p.done
}

// File returns the file being read.
func (p *FastxParser) File() string {
	if p.i < len(p.files) {
		return p.files[p.i]
	}
	return ""
}

// SliceParser is a Parser of records in memory.
type SliceParser struct {
	records []*Record
	i       int
}

// NewSliceParser creates a Parser from records.
func NewSliceParser(records []*Record) *SliceParser {
	return &SliceParser{records: records}
}

// NewSliceParserFromSeqs creates a Parser from sequences,
// records are named by their 0-based indexes.
func NewSliceParserFromSeqs(seqs ...string) *SliceParser {
	records := make([]*Record, len(seqs))
	for i, s := range seqs {
		records[i] = &Record{Name: []byte(strconv.Itoa(i)), Seq: []byte(s)}
	}
	return &SliceParser{records: records}
}

// Next returns the next record.
func (p *SliceParser) Next() (*Record, error) {
	if p.i == len(p.records) {
		return nil, io.EOF
	}
	p.i++
	return p.records[p.i-1], nil
}

// IsComplete tells whether all records are returned.
func (p *SliceParser) IsComplete() bool {
	return p.i == len(p.records)
}

// ParsePartitionID parses the partition ID after the last tab of a read name,
// e.g., "read1\t42".
func ParsePartitionID(name []byte) (uint64, error) {
	i := bytes.LastIndexByte(name, '\t')
	if i < 0 || i == len(name)-1 {
		return 0, ErrNoPartitionID
	}
	id, err := strconv.ParseUint(string(bytes.TrimSpace(name[i+1:])), 10, 64)
	if err != nil {
		return 0, ErrNoPartitionID
	}
	return id, nil
}
