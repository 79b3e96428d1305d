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

// Package presence implements a probabilistic k-mer set with multiple
// bit tables of different sizes, i.e., a Bloom filter whose hash
// functions are the table-size moduli of one canonical k-mer code.
//
// Bits are only set and never cleared. TestAndSet is lock-free and
// safe for concurrent use.
package presence

import (
	"errors"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/shenwei356/kgraph/iterator"
	"github.com/shenwei356/kgraph/kmer"
)

// ErrInvalidTableSize means no tables or a table of size 0.
var ErrInvalidTableSize = errors.New("presence: invalid table size")

// ErrShapeMismatch means two tables have different k or table sizes.
var ErrShapeMismatch = errors.New("presence: both tables must have the same k and table sizes")

// ErrKMismatch means the k of a file differs from the k of a table.
var ErrKMismatch = errors.New("presence: k-mer size mismatch")

// number of lock stripes in strict mode.
const nStripes = 1 << 10

// Table is a multi-table presence structure.
type Table struct {
	k      int
	sizes  []uint64
	tables [][]uint64 // bits of bin b: tables[i][b>>6] & (1<<(b&63))

	nOccupied atomic.Uint64 // occupied bins of the first table
	nUnique   atomic.Uint64 // k-mers reported as new

	locks []sync.Mutex // lock stripes, only in strict mode
}

// New creates a Table with given table sizes.
func New(k int, sizes []uint64) (*Table, error) {
	if err := kmer.CheckK(k); err != nil {
		return nil, err
	}
	if len(sizes) == 0 {
		return nil, ErrInvalidTableSize
	}
	for _, size := range sizes {
		if size == 0 {
			return nil, ErrInvalidTableSize
		}
	}

	t := &Table{k: k, sizes: append([]uint64{}, sizes...)}
	t.tables = make([][]uint64, len(sizes))
	for i, size := range sizes {
		t.tables[i] = make([]uint64, (size+63)>>6)
	}
	return t, nil
}

// NewWithPrimes creates a Table with n tables whose sizes are
// the n largest primes smaller than size.
func NewWithPrimes(k int, size uint64, n int) (*Table, error) {
	sizes, err := GetNPrimesNearX(n, size)
	if err != nil {
		return nil, err
	}
	return New(k, sizes)
}

// SetStrict makes concurrent TestAndSet calls with the same hash
// report the k-mer as new exactly once. It should be called before
// any insertion.
func (t *Table) SetStrict(strict bool) {
	if strict {
		t.locks = make([]sync.Mutex, nStripes)
	} else {
		t.locks = nil
	}
}

// K returns the k-mer size.
func (t *Table) K() int { return t.k }

// Sizes returns the table sizes.
func (t *Table) Sizes() []uint64 { return t.sizes }

// NTables returns the number of tables.
func (t *Table) NTables() int { return len(t.sizes) }

// NOccupied returns the number of occupied bins in the first table.
func (t *Table) NOccupied() uint64 { return t.nOccupied.Load() }

// NUniqueKmers returns the number of k-mers reported as new.
func (t *Table) NUniqueKmers() uint64 { return t.nUnique.Load() }

// TestAndSet sets the bits of h in all tables, and reports
// whether the k-mer is new, i.e., at least one bit was unset before.
func (t *Table) TestAndSet(h uint64) bool {
	if t.locks != nil {
		l := &t.locks[h%nStripes]
		l.Lock()
		defer l.Unlock()
	}

	var isNew bool
	var bin, bit, old uint64
	for i, size := range t.sizes {
		bin = h % size
		bit = 1 << (bin & 63)
		old = atomic.OrUint64(&t.tables[i][bin>>6], bit)
		if old&bit == 0 {
			isNew = true
			if i == 0 {
				t.nOccupied.Add(1)
			}
		}
	}
	if isNew {
		t.nUnique.Add(1)
	}
	return isNew
}

// Count is an alias of TestAndSet that ignores the newness.
func (t *Table) Count(h uint64) {
	t.TestAndSet(h)
}

// Get tells whether h is present in all tables.
func (t *Table) Get(h uint64) bool {
	var bin uint64
	for i, size := range t.sizes {
		bin = h % size
		if atomic.LoadUint64(&t.tables[i][bin>>6])&(1<<(bin&63)) == 0 {
			return false
		}
	}
	return true
}

// Add inserts all k-mers of a sequence and returns the number of new k-mers.
func (t *Table) Add(s []byte) (int, error) {
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
		if t.TestAndSet(h) {
			n++
		}
	}
	return n, nil
}

// Contains returns the number of present k-mers and the total number of k-mers.
func (t *Table) Contains(s []byte) (present int, total int, err error) {
	iter, err := iterator.NewKmerIterator(s, t.k)
	if err != nil {
		return 0, 0, err
	}
	var h uint64
	var ok bool
	for {
		h, _, _, ok = iter.Next()
		if !ok {
			break
		}
		total++
		if t.Get(h) {
			present++
		}
	}
	return present, total, nil
}

// SameShape tells whether two tables have the same k and table sizes.
func (t *Table) SameShape(o *Table) bool {
	if t.k != o.k || len(t.sizes) != len(o.sizes) {
		return false
	}
	for i, size := range t.sizes {
		if size != o.sizes[i] {
			return false
		}
	}
	return true
}

// UpdateFrom merges bits of another table with the same shape.
// The unique k-mer counter is left unchanged.
func (t *Table) UpdateFrom(o *Table) error {
	if !t.SameShape(o) {
		return ErrShapeMismatch
	}
	var old, w uint64
	for i, words := range t.tables {
		for j := range o.tables[i] {
			w = atomic.LoadUint64(&o.tables[i][j])
			if w == 0 {
				continue
			}
			old = atomic.OrUint64(&words[j], w)
			if i == 0 {
				t.nOccupied.Add(uint64(bits.OnesCount64(w &^ old)))
			}
		}
	}
	return nil
}

// Occupancy returns the fraction of set bits of each table.
func (t *Table) Occupancy() []float64 {
	fracs := make([]float64, len(t.tables))
	for i, words := range t.tables {
		fracs[i] = float64(popcount(words)) / float64(t.sizes[i])
	}
	return fracs
}

// FalsePositiveRate estimates the false positive rate of Get
// from the occupancy of all tables.
func (t *Table) FalsePositiveRate() float64 {
	fpr := 1.0
	for _, f := range t.Occupancy() {
		fpr *= f
	}
	return fpr
}

func popcount(words []uint64) uint64 {
	var n int
	for i := range words {
		n += bits.OnesCount64(atomic.LoadUint64(&words[i]))
	}
	return uint64(n)
}
