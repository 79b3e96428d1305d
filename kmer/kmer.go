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

package kmer

import (
	"errors"
)

// ErrKOverflow means k < 1 or k > 32.
var ErrKOverflow = errors.New("kmer: k-mer size overflow, valid range is [1, 32]")

// ErrShortSeq means the sequence is shorter than k.
var ErrShortSeq = errors.New("kmer: sequence shorter than k")

// ErrIllegalBase means a base other than A, C, G, T is detected.
var ErrIllegalBase = errors.New("kmer: illegal base")

// Codes of the four bases. Complementing a code is code^1,
// so A<->T and C<->G are swapped with a single XOR.
const (
	CodeA uint64 = 0
	CodeT uint64 = 1
	CodeC uint64 = 2
	CodeG uint64 = 3
)

// Base2Code maps a byte to its 2-bit code.
// Lower-case bases share codes with upper-case ones,
// other bytes are mapped to 4 and callers should mask
// the value with 3 if they skip validation.
var Base2Code = [256]uint64{
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 0, 4, 2, 4, 4, 4, 3, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 1, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 0, 4, 2, 4, 4, 4, 3, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 1, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
}

// Code2Base maps a 2-bit code back to a base.
var Code2Base = [4]byte{'A', 'T', 'C', 'G'}

// Bases lists the four bases in code order, for walking neighbors.
var Bases = [4]uint64{CodeA, CodeT, CodeC, CodeG}

// code returns the 2-bit code of a base. Illegal bases are
// folded into [0, 3] and the result is meaningless.
func code(b byte) uint64 {
	return Base2Code[b] & 3
}

// CheckK checks if k is in the valid range.
func CheckK(k int) error {
	if k < 1 || k > 32 {
		return ErrKOverflow
	}
	return nil
}

// Mask returns the bit mask of a k-mer code, i.e., 4^k - 1.
func Mask(k int) uint64 {
	return ^uint64(0) >> (64 - uint(k<<1))
}

// HashForward packs the bases of s into 2 bits each,
// most-significant base first. Only the first k bases are used.
func HashForward(s []byte, k int) uint64 {
	var h uint64
	for i := 0; i < k; i++ {
		h = h<<2 | code(s[i])
	}
	return h
}

// Hash computes the canonical hash of the first k bases of s,
// i.e., the smaller one of the forward code and the code
// of the reverse complement sequence.
func Hash(s []byte, k int) (uint64, error) {
	if err := CheckK(k); err != nil {
		return 0, err
	}
	if len(s) < k {
		return 0, ErrShortSeq
	}
	h, _, _ := hash(s, k)
	return h, nil
}

// MustHash is like Hash but skips all checks.
func MustHash(s []byte, k int) uint64 {
	h, _, _ := hash(s, k)
	return h
}

// HashBoth returns the canonical, forward and reverse complement codes.
func HashBoth(s []byte, k int) (h, f, r uint64) {
	return hash(s, k)
}

func hash(s []byte, k int) (uint64, uint64, uint64) {
	var f, r uint64
	for i := 0; i < k; i++ {
		f = f<<2 | code(s[i])
		r = r<<2 | (code(s[k-1-i]) ^ 1)
	}
	if f < r {
		return f, f, r
	}
	return r, f, r
}

// RevHash decodes the forward packing of a code to a k-mer.
// It does not recover the strand of the original sequence.
func RevHash(h uint64, k int) []byte {
	s := make([]byte, k)
	for i := k - 1; i >= 0; i-- {
		s[i] = Code2Base[h&3]
		h >>= 2
	}
	return s
}

// RevComp returns the reverse complement of a sequence of A, C, G, T.
func RevComp(s []byte) []byte {
	rc := make([]byte, len(s))
	n := len(s) - 1
	for i, b := range s {
		rc[n-i] = Code2Base[code(b)^1]
	}
	return rc
}

// Canonical returns the smaller one of the two strand codes.
func Canonical(f, r uint64) uint64 {
	if f < r {
		return f
	}
	return r
}

// NextF returns the forward code after appending base c.
func NextF(f, c uint64, k int) uint64 {
	return (f<<2)&Mask(k) | c
}

// NextR returns the reverse complement code after appending base c.
func NextR(r, c uint64, k int) uint64 {
	return r>>2 | (c^1)<<uint((k-1)<<1)
}

// PrevF returns the forward code after prepending base c.
func PrevF(f, c uint64, k int) uint64 {
	return f>>2 | c<<uint((k-1)<<1)
}

// PrevR returns the reverse complement code after prepending base c.
func PrevR(r, c uint64, k int) uint64 {
	return (r<<2)&Mask(k) | (c ^ 1)
}

// IsValid tells if s only contains upper-case A, C, G, T.
func IsValid(s []byte) bool {
	for _, b := range s {
		switch b {
		case 'A', 'C', 'G', 'T':
		default:
			return false
		}
	}
	return true
}

// Normalize converts a sequence to upper case in place
// and rejects bases other than A, C, G, T.
func Normalize(s []byte) ([]byte, error) {
	for i, b := range s {
		switch b {
		case 'A', 'C', 'G', 'T':
		case 'a', 'c', 'g', 't':
			s[i] = b - 32
		default:
			return s, ErrIllegalBase
		}
	}
	return s, nil
}
