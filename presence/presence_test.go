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
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shenwei356/kgraph/kmer"
	"github.com/stretchr/testify/require"
)

func TestGetNPrimesNearX(t *testing.T) {
	type Case struct {
		n      int
		x      uint64
		primes []uint64
	}
	cases := []Case{
		{1, 10, []uint64{7}},
		{3, 20, []uint64{19, 17, 13}},
		{4, 12, []uint64{11, 7, 5, 3}},
		{5, 12, []uint64{11, 7, 5, 3, 2}},
	}
	for _, c := range cases {
		primes, err := GetNPrimesNearX(c.n, c.x)
		require.NoError(t, err)
		require.Equal(t, c.primes, primes)
	}

	_, err := GetNPrimesNearX(6, 12)
	require.ErrorIs(t, err, ErrNotEnoughPrimes)
}

func TestNew(t *testing.T) {
	_, err := New(21, []uint64{101, 0})
	require.ErrorIs(t, err, ErrInvalidTableSize)

	_, err = New(21, nil)
	require.ErrorIs(t, err, ErrInvalidTableSize)

	_, err = New(33, []uint64{101})
	require.ErrorIs(t, err, kmer.ErrKOverflow)
}

func TestTestAndSet(t *testing.T) {
	tb, err := NewWithPrimes(21, 100003, 4)
	require.NoError(t, err)

	hashes := []uint64{0, 1, 12345, 99999999, 1 << 40}
	for _, h := range hashes {
		require.False(t, tb.Get(h))
		require.True(t, tb.TestAndSet(h))
		require.True(t, tb.Get(h))
		require.False(t, tb.TestAndSet(h))
	}
	require.Equal(t, uint64(len(hashes)), tb.NUniqueKmers())
	require.Equal(t, uint64(len(hashes)), tb.NOccupied())

	// bits are never cleared
	for _, h := range hashes {
		tb.Count(h + 7)
		require.True(t, tb.Get(h))
	}
}

func TestAddSequence(t *testing.T) {
	tb, err := NewWithPrimes(4, 1000, 3)
	require.NoError(t, err)

	s := []byte("ATGGACCAGATG")
	n, err := tb.Add(s)
	require.NoError(t, err)
	require.Equal(t, 9, n)

	present, total, err := tb.Contains(s)
	require.NoError(t, err)
	require.Equal(t, 9, present)
	require.Equal(t, 9, total)

	n, err = tb.Add(kmer.RevComp(s))
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestConcurrentDistinct(t *testing.T) {
	tb, err := New(31, []uint64{1000003, 1000033, 1000037})
	require.NoError(t, err)

	var wg sync.WaitGroup
	n := 8
	per := 10000
	for g := 0; g < n; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				tb.TestAndSet(uint64(g*per + i))
			}
		}(g)
	}
	wg.Wait()

	require.Equal(t, uint64(n*per), tb.NUniqueKmers())
	require.Equal(t, uint64(n*per), tb.NOccupied())
}

func TestConcurrentSameKmerStrict(t *testing.T) {
	tb, err := New(31, []uint64{2000000, 2000001, 2000003})
	require.NoError(t, err)
	tb.SetStrict(true)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var news int
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for h := uint64(0); h < 200; h++ {
				if tb.TestAndSet(h * 7919) {
					mu.Lock()
					news++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 200, news)
	require.Equal(t, uint64(200), tb.NUniqueKmers())
}

func TestUpdateFrom(t *testing.T) {
	a, _ := New(21, []uint64{101, 103})
	b, _ := New(21, []uint64{101, 103})
	c, _ := New(21, []uint64{101, 107})

	a.TestAndSet(1)
	b.TestAndSet(2)
	b.TestAndSet(1)

	require.NoError(t, a.UpdateFrom(b))
	require.True(t, a.Get(1))
	require.True(t, a.Get(2))
	require.Equal(t, uint64(2), a.NOccupied())

	require.ErrorIs(t, a.UpdateFrom(c), ErrShapeMismatch)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "t.pt")

	tb, err := NewWithPrimes(21, 10007, 3)
	require.NoError(t, err)

	present := make([]uint64, 0, 100)
	for i := uint64(0); i < 100; i++ {
		h := i * 1000003
		tb.TestAndSet(h)
		present = append(present, h)
	}

	n, err := tb.WriteToFile(file)
	require.NoError(t, err)
	size := 14 + 8*3
	for _, s := range tb.Sizes() {
		size += int((s + 7) / 8)
	}
	require.Equal(t, size, n)

	tb2, err := NewFromFile(file)
	require.NoError(t, err)
	require.Equal(t, tb.Sizes(), tb2.Sizes())
	require.Equal(t, tb.NOccupied(), tb2.NOccupied())
	for _, h := range present {
		require.True(t, tb2.Get(h))
	}
	for i := uint64(0); i < 1000; i++ {
		h := i*7 + 3
		require.Equal(t, tb.Get(h), tb2.Get(h))
	}

	// compressed
	fileGz := filepath.Join(dir, "t.pt.gz")
	_, err = tb.WriteToFile(fileGz)
	require.NoError(t, err)
	tb3, err := NewWithPrimes(21, 101, 2)
	require.NoError(t, err)
	require.NoError(t, tb3.Load(fileGz))
	for _, h := range present {
		require.True(t, tb3.Get(h))
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tb, _ := New(21, []uint64{101})
	tb.TestAndSet(5)
	var buf bytes.Buffer
	_, err := tb.Write(&buf)
	require.NoError(t, err)
	data := buf.Bytes()

	target, _ := New(21, []uint64{211})
	target.TestAndSet(42)

	// bad version
	bad := append([]byte{}, data...)
	bad[0] = Version + 1
	file := filepath.Join(dir, "bad-version")
	require.NoError(t, os.WriteFile(file, bad, 0644))
	require.ErrorIs(t, target.Load(file), ErrVersionMismatch)
	require.True(t, target.Get(42))
	require.Equal(t, []uint64{211}, target.Sizes())
	require.Equal(t, uint64(1), target.NUniqueKmers())

	// bad type
	bad = append([]byte{}, data...)
	bad[1] = TypeTag + 1
	_, err = Read(bytes.NewReader(bad))
	require.ErrorIs(t, err, ErrInvalidFileFormat)

	// truncated
	_, err = Read(bytes.NewReader(data[:len(data)-1]))
	require.ErrorIs(t, err, ErrBrokenFile)

	// different k
	other, _ := New(25, []uint64{101})
	file = filepath.Join(dir, "k25")
	_, err = other.WriteToFile(file)
	require.NoError(t, err)
	require.ErrorIs(t, target.Load(file), ErrKMismatch)
	require.True(t, target.Get(42))

	// corrupt table sizes in the header
	header := func(size uint64) []byte {
		h := make([]byte, 22)
		h[0], h[1] = Version, TypeTag
		be.PutUint32(h[2:6], 21)
		be.PutUint64(h[6:14], 1)
		be.PutUint64(h[14:22], size)
		return h
	}
	_, err = Read(bytes.NewReader(header(1 << 62)))
	require.ErrorIs(t, err, ErrInvalidFileFormat)
	_, err = Read(bytes.NewReader(header(0)))
	require.ErrorIs(t, err, ErrInvalidFileFormat)
	_, err = Read(bytes.NewReader(append(header(1<<40), 1, 2, 3)))
	require.ErrorIs(t, err, ErrBrokenFile)
}

func TestLoadPaddingBits(t *testing.T) {
	tb, _ := New(21, []uint64{101})
	var buf bytes.Buffer
	_, err := tb.Write(&buf)
	require.NoError(t, err)

	// 13 bytes of data, bins 96-100 in the last byte, the other 3 bits are padding
	data := buf.Bytes()
	data[len(data)-1] = 0xff

	tb2, err := Read(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, uint64(5), tb2.NOccupied())
	for h := uint64(96); h < 101; h++ {
		require.True(t, tb2.Get(h))
	}
	require.False(t, tb2.Get(95))

	// padding bits are not written back either
	buf.Reset()
	_, err = tb2.Write(&buf)
	require.NoError(t, err)
	require.Equal(t, byte(0x1f), buf.Bytes()[buf.Len()-1])
}
