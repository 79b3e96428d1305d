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

// Package exact implements an exact k-mer counting table
// with one counter for every possible canonical k-mer code.
package exact

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/shenwei356/kgraph/iterator"
	"github.com/shenwei356/kgraph/kmer"
)

// MaxK is the largest k-mer size supported, 4^14 counters take 1 GiB.
const MaxK = 14

// ErrKTooLarge means k > MaxK.
var ErrKTooLarge = errors.New("exact: k-mer size too large for an exact table")

// ErrKMismatch means two tables have different k-mer sizes.
var ErrKMismatch = errors.New("exact: k-mer size mismatch")

// Table counts every canonical k-mer exactly.
// Counts saturate at math.MaxUint32.
type Table struct {
	k      int
	counts []uint32
}

// New creates an exact counting table.
func New(k int) (*Table, error) {
	if err := kmer.CheckK(k); err != nil {
		return nil, err
	}
	if k > MaxK {
		return nil, ErrKTooLarge
	}
	return &Table{k: k, counts: make([]uint32, 1<<(k<<1))}, nil
}

// K returns the k-mer size.
func (t *Table) K() int { return t.k }

// Len returns the number of counters, i.e., 4^k.
func (t *Table) Len() int { return len(t.counts) }

// Count increases the count of a k-mer code, it's safe for concurrent use.
func (t *Table) Count(h uint64) {
	p := &t.counts[h]
	for {
		v := atomic.LoadUint32(p)
		if v == math.MaxUint32 || atomic.CompareAndSwapUint32(p, v, v+1) {
			return
		}
	}
}

// Get returns the count of a k-mer code.
func (t *Table) Get(h uint64) uint32 {
	return atomic.LoadUint32(&t.counts[h])
}

// GetKmer returns the count of a k-mer.
func (t *Table) GetKmer(s []byte) (uint32, error) {
	h, err := kmer.Hash(s, t.k)
	if err != nil {
		return 0, err
	}
	return t.Get(h), nil
}

// Set sets the count of a k-mer code.
func (t *Table) Set(h uint64, c uint32) {
	atomic.StoreUint32(&t.counts[h], c)
}

// Consume counts all k-mers of a sequence and
// returns the number of k-mers.
func (t *Table) Consume(s []byte) (int, error) {
	iter, err := iterator.NewKmerIterator(s, t.k)
	if err != nil {
		return 0, err
	}
	var n int
	var h uint64
	var ok bool
	for {
		h, _, _, ok = iter.Next()
		if !ok {
			break
		}
		t.Count(h)
		n++
	}
	return n, nil
}

// NDistinct returns the number of k-mers with non-zero counts.
func (t *Table) NDistinct() int {
	var n int
	for i := range t.counts {
		if atomic.LoadUint32(&t.counts[i]) > 0 {
			n++
		}
	}
	return n
}

// Update adds counts of another table.
func (t *Table) Update(o *Table) error {
	if t.k != o.k {
		return ErrKMismatch
	}
	var c uint64
	for i, v := range o.counts {
		if v == 0 {
			continue
		}
		c = uint64(t.counts[i]) + uint64(v)
		if c > math.MaxUint32 {
			c = math.MaxUint32
		}
		t.counts[i] = uint32(c)
	}
	return nil
}

// Clear resets all counts.
func (t *Table) Clear() {
	clear(t.counts)
}
