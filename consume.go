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
	"io"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/shenwei356/kgraph/iterator"
	"github.com/shenwei356/kgraph/kmer"
	"github.com/shenwei356/kgraph/reads"
	log "github.com/sirupsen/logrus"
)

// LabelMode decides the label of each read in ConsumeReads.
type LabelMode int

const (
	// NoLabel does not link tags to labels.
	NoLabel LabelMode = iota
	// LabelByIndex uses the 0-based index of a read as its label.
	LabelByIndex
	// LabelByPartitionID uses the partition ID after the last tab of a read name.
	LabelByPartitionID
)

// ConsumeOptions contains options of ConsumeReads.
type ConsumeOptions struct {
	Label LabelMode

	// IndexOffset is the label of the first read for LabelByIndex,
	// e.g., the number of reads consumed from previous files.
	IndexOffset uint64

	// Normalize converts reads to upper case and skips reads
	// with bases other than A, C, G, T.
	Normalize bool
}

// ConsumeStats summarizes a ConsumeReads call.
type ConsumeStats struct {
	Reads    uint64 // reads consumed
	Skipped  uint64 // reads skipped for being short or invalid
	NewKmers uint64
	Tags     uint64 // tags found in all reads, with duplicates
}

// ReadFunc is called after each read is consumed.
// It might be called concurrently.
type ReadFunc func(r *reads.Record, n int, tags []uint64)

type readJob struct {
	idx    uint64
	record *reads.Record
}

// ConsumeReads consumes all reads from a Parser with Threads workers.
// Labels are decided in the reading goroutine, so they are deterministic
// regardless of the concurrency. fn is optional.
func (g *Graph) ConsumeReads(p reads.Parser, opt *ConsumeOptions, fn ReadFunc) (*ConsumeStats, error) {
	if opt == nil {
		opt = &ConsumeOptions{}
	}
	threads := Threads
	if threads < 1 {
		threads = 1
	}

	stats := &ConsumeStats{}
	var nReads, nSkipped, nNew, nTags atomic.Uint64

	ch := make(chan readJob, threads)
	var wg sync.WaitGroup
	tokens := make(chan int, threads)

	var errOnce sync.Once
	var firstErr error
	setErr := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	done := make(chan int)
	go func() {
		for job := range ch {
			tokens <- 1
			wg.Add(1)
			go func(job readJob) {
				defer func() {
					wg.Done()
					<-tokens
				}()

				s := job.record.Seq
				if opt.Normalize {
					var err error
					if s, err = kmer.Normalize(s); err != nil {
						log.Debugf("skip read with illegal bases: %s", job.record.Name)
						nSkipped.Add(1)
						return
					}
				}

				var n int
				var tags []uint64
				var err error
				switch opt.Label {
				case LabelByIndex:
					n, tags, err = g.ConsumeSequenceAndTagWithLabel(s, job.idx)
				case LabelByPartitionID:
					var id uint64
					id, err = reads.ParsePartitionID(job.record.Name)
					if err != nil {
						setErr(errors.Wrapf(err, "read: %s", job.record.Name))
						return
					}
					n, tags, err = g.ConsumeSequenceAndTagWithLabel(s, id)
				default:
					n, tags, err = g.ConsumeSequenceAndTag(s)
				}
				if err != nil {
					if errors.Is(err, iterator.ErrShortSeq) || errors.Is(err, kmer.ErrIllegalBase) {
						nSkipped.Add(1)
						return
					}
					setErr(errors.Wrapf(err, "read: %s", job.record.Name))
					return
				}

				nReads.Add(1)
				nNew.Add(uint64(n))
				nTags.Add(uint64(len(tags)))
				if fn != nil {
					fn(job.record, n, tags)
				}
			}(job)
		}
		wg.Wait()
		done <- 1
	}()

	idx := opt.IndexOffset
	var readErr error
	for {
		record, err := p.Next()
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break
		}
		ch <- readJob{idx: idx, record: record}
		idx++
	}
	close(ch)
	<-done

	if readErr != nil {
		return nil, readErr
	}
	if firstErr != nil {
		return nil, firstErr
	}

	stats.Reads = nReads.Load()
	stats.Skipped = nSkipped.Load()
	stats.NewKmers = nNew.Load()
	stats.Tags = nTags.Load()
	log.Debugf("consumed %d reads (%d skipped), %d new k-mers", stats.Reads, stats.Skipped, stats.NewKmers)
	return stats, nil
}
