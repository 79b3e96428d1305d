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
	"testing"

	"github.com/shenwei356/kgraph/kmer"
	"github.com/shenwei356/kmers"
)

func TestKmerIterator(t *testing.T) {
	_s := "AAGTTTGAATCATTCAACTATCTAGTTTTCAGAGAACAATGTTCTCTAAAGAATAGAAAAGAGTCATTGTGCGGTGATGATGGCGGGAAGGATCCACCTG"
	sequence := []byte(_s)

	for _, k := range []int{1, 10, 21, 32} {
		iter, err := NewKmerIterator(sequence, k)
		if err != nil {
			t.Errorf("fail to create an iterator: %s", err)
			return
		}

		var h, f, r uint64
		var ok bool
		var n int
		for {
			h, f, r, ok = iter.Next()
			if !ok {
				break
			}
			idx := iter.Index()
			s := sequence[idx : idx+k]

			if f != kmer.HashForward(s, k) {
				t.Errorf("k=%d, %d: unexpected forward code", k, idx)
				return
			}

			// the reverse complement of s from an independent implementation
			code, err := kmers.Encode(s)
			if err != nil {
				t.Error(err)
				return
			}
			rc := kmers.Decode(kmers.MustRevComp(code, k), k)
			if string(kmer.RevHash(r, k)) != string(rc) {
				t.Errorf("k=%d, %d: unexpected reverse complement code: %s vs %s",
					k, idx, kmer.RevHash(r, k), rc)
				return
			}

			if h != kmer.MustHash(s, k) {
				t.Errorf("k=%d, %d: unexpected canonical code", k, idx)
				return
			}
			n++
		}

		if n != len(_s)-k+1 {
			t.Errorf("k-mers number error")
		}
	}
}

func TestKmerIteratorErrors(t *testing.T) {
	if _, err := NewKmerIterator([]byte("ACG"), 4); err != ErrShortSeq {
		t.Errorf("expected ErrShortSeq, got %v", err)
	}
	if _, err := NewKmerIterator([]byte("ACG"), 33); err != ErrInvalidK {
		t.Errorf("expected ErrInvalidK, got %v", err)
	}
}
