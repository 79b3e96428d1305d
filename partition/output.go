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
	"fmt"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/shenwei356/kgraph"
	"github.com/shenwei356/kgraph/iterator"
	"github.com/shenwei356/kgraph/kmer"
	"github.com/shenwei356/kgraph/reads"
)

// ConsumeReads streams all reads through the partitioner with
// kgraph.Threads workers. Reads shorter than k or with illegal
// bases in strict mode are skipped.
// It returns the numbers of consumed and skipped reads.
func (p *Partitioner) ConsumeReads(parser reads.Parser) (n, skipped int, err error) {
	threads := kgraph.Threads
	if threads < 1 {
		threads = 1
	}

	var mu sync.Mutex
	var firstErr error
	var wg sync.WaitGroup
	tokens := make(chan int, threads)

	var record *reads.Record
	for {
		record, err = parser.Next()
		if err != nil {
			if err == io.EOF {
				err = nil
			}
			break
		}

		tokens <- 1
		wg.Add(1)
		go func(record *reads.Record) {
			defer func() {
				wg.Done()
				<-tokens
			}()

			_, err := p.ConsumeSequence(record.Seq)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				n++
				return
			}
			if errors.Is(err, iterator.ErrShortSeq) || errors.Is(err, kmer.ErrIllegalBase) {
				skipped++
				return
			}
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "read: %s", record.Name)
			}
		}(record)
	}
	wg.Wait()

	if err != nil {
		return n, skipped, err
	}
	return n, skipped, firstErr
}

// OutputPartitioned writes reads in FASTA/Q format with the component ID
// appended to the read name after a tab. Reads without any assigned tag
// get the ID 0 and are written only if outputUnassigned is true.
// It returns the number of distinct components written.
func (p *Partitioner) OutputPartitioned(parser reads.Parser, w io.Writer, outputUnassigned bool) (int, error) {
	bw := bufio.NewWriter(w)
	components := make(map[uint64]struct{}, 128)

	var record *reads.Record
	var id uint64
	var ok bool
	var err error
	for {
		record, err = parser.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return 0, err
		}

		id, ok, err = p.ComponentOfSequence(record.Seq)
		if err != nil {
			if errors.Is(err, iterator.ErrShortSeq) {
				ok = false
			} else {
				return 0, err
			}
		}
		if !ok {
			if !outputUnassigned {
				continue
			}
			id = 0
		} else {
			components[id] = struct{}{}
		}

		if len(record.Qual) > 0 {
			fmt.Fprintf(bw, "@%s\t%d\n%s\n+\n%s\n", record.Name, id, record.Seq, record.Qual)
		} else {
			fmt.Fprintf(bw, ">%s\t%d\n%s\n", record.Name, id, record.Seq)
		}
	}
	return len(components), bw.Flush()
}
