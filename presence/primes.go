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
	"errors"
	"math"
)

// ErrNotEnoughPrimes means there are not enough primes below x.
var ErrNotEnoughPrimes = errors.New("presence: unable to find enough primes")

// GetNPrimesNearX returns the n largest primes smaller than x,
// in descending order.
func GetNPrimesNearX(n int, x uint64) ([]uint64, error) {
	if n < 1 {
		return nil, ErrInvalidTableSize
	}
	primes := make([]uint64, 0, n)
	for i := x - 1; i >= 2 && i < x && len(primes) < n; i-- {
		if isPrime(i) {
			primes = append(primes, i)
		}
	}
	if len(primes) < n {
		return nil, ErrNotEnoughPrimes
	}
	return primes, nil
}

func isPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n < 4 {
		return true
	}
	if n&1 == 0 {
		return false
	}
	m := uint64(math.Sqrt(float64(n))) + 1
	for i := uint64(3); i <= m; i += 2 {
		if n%i == 0 && n != i {
			return false
		}
	}
	return true
}
