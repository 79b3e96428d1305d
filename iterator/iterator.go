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

package iterator

import (
	"errors"
	"sync"

	"github.com/shenwei356/kgraph/kmer"
)

// ErrInvalidK means k < 1 or K > 32
var ErrInvalidK = errors.New("k-mer iterator: invalid k-mer size (1 <= k <= 32)")

// ErrShortSeq means the sequence is shorter than k.
var ErrShortSeq = errors.New("k-mer iterator: sequence too short")

var poolIterator = &sync.Pool{New: func() interface{} {
	return &Iterator{}
}}

// Iterator is a rolling k-mer iterator, it returns codes of
// both strands along with the canonical one.
// The sequence should be validated before,
// illegal bases produce meaningless codes.
type Iterator struct {
	s []byte
	k int

	finished bool
	idx      int
	end      int
	first    bool

	preCode   uint64
	preCodeRC uint64

	mask  uint64 // 4^k-1
	shift uint   // (k-1)*2
}

// NewKmerIterator returns a k-mer code iterator.
func NewKmerIterator(s []byte, k int) (*Iterator, error) {
	if k < 1 || k > 32 {
		return nil, ErrInvalidK
	}
	if len(s) < k {
		return nil, ErrShortSeq
	}

	iter := poolIterator.Get().(*Iterator)
	iter.s = s
	iter.k = k
	iter.finished = false
	iter.idx = 0
	iter.end = len(s) - k + 1
	iter.first = true
	iter.mask = kmer.Mask(k)
	iter.shift = uint(k-1) << 1

	return iter, nil
}

// Next returns the canonical code, and codes of the positive
// and negative strands of the next k-mer.
func (iter *Iterator) Next() (h, f, r uint64, ok bool) {
	if iter.finished {
		return 0, 0, 0, false
	}

	if iter.idx == iter.end { // recycle the Iterator
		iter.finished = true
		iter.s = nil
		poolIterator.Put(iter)
		return 0, 0, 0, false
	}

	if !iter.first {
		c := kmer.Base2Code[iter.s[iter.idx+iter.k-1]] & 3

		// compute code from previous one
		f = (iter.preCode<<2)&iter.mask | c

		// compute code of revcomp kmer from previous one
		r = (c^1)<<iter.shift | iter.preCodeRC>>2
	} else {
		_, f, r = kmer.HashBoth(iter.s[iter.idx:], iter.k)
		iter.first = false
	}

	iter.preCode = f
	iter.preCodeRC = r
	iter.idx++

	if f < r {
		return f, f, r, true
	}
	return r, f, r, true
}

// Index returns current 0-baesd index.
func (iter *Iterator) Index() int {
	return iter.idx - 1
}

// Hashes returns canonical codes of all k-mers in s.
func Hashes(s []byte, k int) ([]uint64, error) {
	iter, err := NewKmerIterator(s, k)
	if err != nil {
		return nil, err
	}
	hashes := make([]uint64, 0, len(s)-k+1)
	var h uint64
	var ok bool
	for {
		h, _, _, ok = iter.Next()
		if !ok {
			break
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}
