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
	"bytes"
	"math/rand"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/shenwei356/kgraph"
	"github.com/shenwei356/kgraph/iterator"
	"github.com/shenwei356/kgraph/kmer"
	"github.com/shenwei356/kgraph/reads"
	"github.com/stretchr/testify/require"
)

func randSeq(r *rand.Rand, n int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = "ACGT"[r.Intn(4)]
	}
	return s
}

func newGraph(t *testing.T, k, density int) *kgraph.Graph {
	g, err := kgraph.New(&kgraph.Options{K: k, TableSize: 1000003, NTables: 4, TagDensity: density})
	require.NoError(t, err)
	return g
}

// four sequences: A-B and B-C overlap, D is unrelated.
func fourSeqs(seed int64) (a, b, c, d []byte) {
	r := rand.New(rand.NewSource(seed))
	base := randSeq(r, 300)
	return base[0:100], base[70:200], base[170:300], randSeq(r, 120)
}

func componentsOf(t *testing.T, g *kgraph.Graph, p *Partitioner, s []byte) map[uint64]struct{} {
	tags, err := g.SequenceTags(s)
	require.NoError(t, err)
	require.NotEmpty(t, tags)
	ids := make(map[uint64]struct{}, 1)
	for _, tag := range tags {
		id, ok := p.ComponentOf(tag)
		require.True(t, ok)
		ids[id] = struct{}{}
	}
	return ids
}

func TestTransitiveMerge(t *testing.T) {
	for _, stopAtFirst := range []bool{false, true} {
		for _, order := range [][]int{{0, 1, 2, 3}, {0, 2, 3, 1}, {3, 2, 1, 0}} {
			g := newGraph(t, 21, 10)
			p := New(g, &Options{StopAtFirstTag: stopAtFirst})

			a, b, c, d := fourSeqs(1)
			seqs := [][]byte{a, b, c, d}
			for _, i := range order {
				_, err := p.ConsumeSequence(seqs[i])
				require.NoError(t, err)
			}

			abc := make(map[uint64]struct{})
			for _, s := range [][]byte{a, b, c} {
				for id := range componentsOf(t, g, p, s) {
					abc[id] = struct{}{}
				}
			}
			require.Len(t, abc, 1, "order: %v", order)

			ids := componentsOf(t, g, p, d)
			require.Len(t, ids, 1)
			for id := range ids {
				_, ok := abc[id]
				require.False(t, ok)
			}

			require.Equal(t, 2, p.NComponents())
			require.Equal(t, int(g.Tags().Len()), p.NTags())
		}
	}
}

func TestComponentIDs(t *testing.T) {
	g := newGraph(t, 21, 10)
	p := New(g, nil)
	a, b, c, d := fourSeqs(2)

	idA, err := p.ConsumeSequence(a)
	require.NoError(t, err)
	require.Equal(t, uint64(1), idA)

	idC, err := p.ConsumeSequence(c)
	require.NoError(t, err)
	require.Equal(t, uint64(2), idC)

	idD, err := p.ConsumeSequence(d)
	require.NoError(t, err)
	require.Equal(t, uint64(3), idD)

	// b bridges a and c, the survivor keeps its ID and the other one is deleted
	idB, err := p.ConsumeSequence(b)
	require.NoError(t, err)
	require.Contains(t, []uint64{idA, idC}, idB)
	require.Equal(t, 2, p.NComponents())

	_, err = p.TagsOf(idA + idC - idB)
	require.ErrorIs(t, err, ErrUnknownComponent)

	id, ok, err := p.ComponentOfSequence(a)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, idB, id)

	// join
	idJ, err := p.JoinComponents(idB, idD)
	require.NoError(t, err)
	require.Equal(t, 1, p.NComponents())
	tags, err := p.TagsOf(idJ)
	require.NoError(t, err)
	require.Equal(t, g.Tags().ToArray(), tags)

	_, err = p.JoinComponents(idJ, 100)
	require.ErrorIs(t, err, ErrUnknownComponent)
}

func TestStaleGraph(t *testing.T) {
	g := newGraph(t, 21, 10)
	p := New(g, nil)
	g.Close()

	_, err := p.ConsumeSequence([]byte("ACGTACGTACGTACGTACGTACGTAAAA"))
	require.ErrorIs(t, err, ErrStaleGraph)
	_, err = p.FindAllTags(0, 0)
	require.ErrorIs(t, err, ErrStaleGraph)
	_, _, err = p.SizeDistribution()
	require.ErrorIs(t, err, ErrStaleGraph)
	_, err = p.Write(&bytes.Buffer{})
	require.ErrorIs(t, err, ErrStaleGraph)

	// collected
	p = func() *Partitioner {
		return New(newGraph(t, 21, 10), nil)
	}()
	runtime.GC()
	runtime.GC()
	_, err = p.ConsumeSequence([]byte("ACGTACGTACGTACGTACGTACGTAAAA"))
	require.ErrorIs(t, err, ErrStaleGraph)
}

func TestFindAllTags(t *testing.T) {
	k := 15
	g := newGraph(t, k, 6)
	p := New(g, nil)
	s := randSeq(rand.New(rand.NewSource(7)), 60)
	_, tags, err := g.ConsumeSequenceAndTag(s)
	require.NoError(t, err)

	hashes, err := iterator.Hashes(s, k)
	require.NoError(t, err)
	isTag := make(map[uint64]struct{}, len(tags))
	for _, tag := range tags {
		isTag[tag] = struct{}{}
	}

	// tags are not expanded, only the nearest ones on both sides are reachable
	mid := len(hashes) / 2
	expected := make([]uint64, 0, 2)
	for i := mid - 1; i >= 0; i-- {
		if _, ok := isTag[hashes[i]]; ok {
			expected = append(expected, hashes[i])
			break
		}
	}
	for i := mid + 1; i < len(hashes); i++ {
		if _, ok := isTag[hashes[i]]; ok {
			expected = append(expected, hashes[i])
			break
		}
	}
	sort.Slice(expected, func(i, j int) bool { return expected[i] < expected[j] })

	_, f, r := kmer.HashBoth(s[mid:], k)
	found, err := p.FindAllTags(f, r)
	require.NoError(t, err)
	sort.Slice(found, func(i, j int) bool { return found[i] < found[j] })
	require.Equal(t, expected, found)

	swept, err := p.SweepForTags(s, 0)
	require.NoError(t, err)
	require.Equal(t, tags, swept)
}

func TestQueueDesync(t *testing.T) {
	q := &queue{}
	q.push(1, 2, 0)
	_, _, _, err := q.pop()
	require.NoError(t, err)

	q.push(3, 4, 1)
	q.breadths = append(q.breadths, 2)
	_, _, _, err = q.pop()
	require.ErrorIs(t, err, ErrTraversalDesync)
}

func TestSizeDistribution(t *testing.T) {
	g := newGraph(t, 21, 10)
	p := New(g, nil)
	a, b, c, d := fourSeqs(3)
	for _, s := range [][]byte{a, b, c, d} {
		_, err := p.ConsumeSequence(s)
		require.NoError(t, err)
	}

	dist, unassigned, err := p.SizeDistribution()
	require.NoError(t, err)
	require.Equal(t, uint64(0), unassigned)
	var n int
	for _, c := range dist {
		n += c
	}
	require.Equal(t, 2, n)

	// tags added bypassing the partitioner
	_, _, err = g.ConsumeSequenceAndTag(randSeq(rand.New(rand.NewSource(9)), 50))
	require.NoError(t, err)
	_, unassigned, err = p.SizeDistribution()
	require.NoError(t, err)
	require.Greater(t, unassigned, uint64(0))
}

func TestSaveLoadAndMerge(t *testing.T) {
	g := newGraph(t, 21, 10)
	p := New(g, nil)
	a, b, c, d := fourSeqs(4)
	for _, s := range [][]byte{a, b, c, d} {
		_, err := p.ConsumeSequence(s)
		require.NoError(t, err)
	}

	file := filepath.Join(t.TempDir(), "pmap.bin.gz")
	n, err := p.WriteToFile(file)
	require.NoError(t, err)
	require.Equal(t, 14+recordSize*p.NTags(), n)

	sizes := func(p *Partitioner) []uint64 {
		list := make([]uint64, 0, 2)
		for _, c := range p.Components() {
			list = append(list, c.Size)
		}
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
		return list
	}

	g2 := newGraph(t, 21, 10)
	p2 := New(g2, nil)
	require.NoError(t, p2.LoadFromFile(file))
	require.Equal(t, sizes(p), sizes(p2))
	require.Equal(t, p.NTags(), p2.NTags())

	// merging the same map changes nothing
	require.NoError(t, p2.Merge(p))
	require.Equal(t, sizes(p), sizes(p2))

	g3 := newGraph(t, 25, 10)
	p3 := New(g3, nil)
	require.ErrorIs(t, p3.LoadFromFile(file), ErrKMismatch)
	require.ErrorIs(t, p3.Merge(p), ErrKMismatch)
	require.Equal(t, 0, p3.NComponents())

	var buf bytes.Buffer
	_, err = p.Write(&buf)
	require.NoError(t, err)
	data := buf.Bytes()
	require.ErrorIs(t, p2.Load(bytes.NewReader(data[:len(data)-1])), ErrBrokenFile)
	data[0]++
	require.ErrorIs(t, p2.Load(bytes.NewReader(data)), ErrVersionMismatch)

	runtime.KeepAlive(g)
	runtime.KeepAlive(g2)
	runtime.KeepAlive(g3)
}

func TestConsumeReadsAndOutput(t *testing.T) {
	// one worker keeps the order of reads
	threads := kgraph.Threads
	kgraph.Threads = 1
	defer func() { kgraph.Threads = threads }()

	g := newGraph(t, 21, 10)
	p := New(g, nil)
	a, b, c, d := fourSeqs(5)

	records := []*reads.Record{
		{Name: []byte("a"), Seq: a},
		{Name: []byte("b"), Seq: b},
		{Name: []byte("c"), Seq: c},
		{Name: []byte("d"), Seq: d},
		{Name: []byte("short"), Seq: []byte("ACGT")},
	}
	n, skipped, err := p.ConsumeReads(reads.NewSliceParser(records))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, 1, skipped)

	var buf bytes.Buffer
	nc, err := p.OutputPartitioned(reads.NewSliceParser(records), &buf, true)
	require.NoError(t, err)
	require.Equal(t, p.NComponents(), nc)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 10)
	require.Equal(t, ">short\t0", lines[8])

	idA, _, _ := p.ComponentOfSequence(a)
	require.Equal(t, ">a\t"+strconv.FormatUint(idA, 10), lines[0])

	runtime.KeepAlive(g)
}

func TestContainedRead(t *testing.T) {
	for _, stopAtFirst := range []bool{false, true} {
		for seed := int64(10); seed < 15; seed++ {
			g := newGraph(t, 21, 10)
			p := New(g, &Options{StopAtFirstTag: stopAtFirst})
			a := randSeq(rand.New(rand.NewSource(seed)), 100)

			idA, err := p.ConsumeSequence(a)
			require.NoError(t, err)

			// all k-mers are known, and no tag of a is in it
			idB, err := p.ConsumeSequence(a[3:27])
			require.NoError(t, err)
			require.Equal(t, idA, idB, "seed: %d, stop at first tag: %v", seed, stopAtFirst)
			require.Equal(t, 1, p.NComponents())

			runtime.KeepAlive(g)
		}
	}
}

func TestShortOverlap(t *testing.T) {
	for _, stopAtFirst := range []bool{false, true} {
		for seed := int64(20); seed < 25; seed++ {
			g := newGraph(t, 21, 10)
			p := New(g, &Options{StopAtFirstTag: stopAtFirst})
			r := rand.New(rand.NewSource(seed))
			a := randSeq(r, 100)

			idA, err := p.ConsumeSequence(a)
			require.NoError(t, err)

			// two k-mers shared with a, after 40 new bases
			b := append(randSeq(r, 40), a[3:25]...)
			idB, err := p.ConsumeSequence(b)
			require.NoError(t, err)
			require.Equal(t, idA, idB, "seed: %d, stop at first tag: %v", seed, stopAtFirst)
			require.Equal(t, 1, p.NComponents())

			runtime.KeepAlive(g)
		}
	}
}
