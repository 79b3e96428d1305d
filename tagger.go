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
	"sort"

	"github.com/cznic/sortutil"
	"github.com/pkg/errors"
	"github.com/shenwei356/kgraph/iterator"
	"github.com/shenwei356/kgraph/kmer"
	"github.com/shenwei356/kgraph/labels"
)

// KmerFunc receives every k-mer of a consumed sequence: the 0-based
// position, the canonical code, codes of both strands, and whether the
// k-mer was absent before.
type KmerFunc func(i int, h, f, r uint64, isNew bool)

// ConsumeSequenceAndTag inserts all k-mers of a sequence and tags some of them.
// It returns the number of new k-mers and the tags found in the sequence,
// including existing ones, in ascending order.
func (g *Graph) ConsumeSequenceAndTag(s []byte) (int, []uint64, error) {
	return g.ConsumeSequenceAndTagFunc(s, nil, nil)
}

// ConsumeSequenceAndTagWithLabel is like ConsumeSequenceAndTag,
// and it also links all the tags to the label of a raw value.
func (g *Graph) ConsumeSequenceAndTagWithLabel(s []byte, raw uint64) (int, []uint64, error) {
	return g.ConsumeSequenceAndTagFunc(s, g.labels.Intern(raw), nil)
}

// ConsumeSequenceAndTagFunc is the general form of ConsumeSequenceAndTag.
// lb and fn are optional.
//
// The first and the last k-mers are always tagged.
// A k-mer already being a tag restarts the counting of distance,
// and a k-mer is tagged whenever the distance to the previous tag
// reaches the tag density.
func (g *Graph) ConsumeSequenceAndTagFunc(s []byte, lb *labels.Label, fn KmerFunc) (int, []uint64, error) {
	if g.closed.Load() {
		return 0, nil, ErrClosed
	}

	var err error
	s, err = g.checkSeq(s)
	if err != nil {
		return 0, nil, err
	}

	iter, err := iterator.NewKmerIterator(s, g.k)
	if err != nil {
		return 0, nil, err
	}

	density := g.tagDensity
	tags := make([]uint64, 0, len(s)/density+2)

	var n, since, i int
	var h, f, r, last uint64
	var ok, isNew, tagged bool
	for i = 0; ; i++ {
		h, f, r, ok = iter.Next()
		if !ok {
			break
		}

		isNew = g.table.TestAndSet(h)
		if isNew {
			n++
		}
		if fn != nil {
			fn(i, h, f, r, isNew)
		}
		last = h

		if i == 0 {
			g.tags.Add(h)
			tags = append(tags, h)
			since, tagged = 1, true
			continue
		}

		tagged = false
		if !isNew && g.tags.Contains(h) {
			tags = append(tags, h)
			since, tagged = 1, true
		} else {
			since++
		}

		if since >= density {
			g.tags.Add(h)
			if !tagged {
				tags = append(tags, h)
			}
			since, tagged = 1, true
		}
	}

	if !tagged {
		g.tags.Add(last)
		tags = append(tags, last)
	}

	tags = uniqUint64s(tags)

	if lb != nil {
		g.labels.LinkAll(tags, lb)
	}

	return n, tags, nil
}

// checkSeq validates and upper-cases a sequence in strict mode.
// The input is not modified.
func (g *Graph) checkSeq(s []byte) ([]byte, error) {
	if !g.strict || kmer.IsValid(s) {
		return s, nil
	}
	s2, err := kmer.Normalize(append([]byte{}, s...))
	if err != nil {
		return nil, errors.Wrapf(err, "sequence rejected")
	}
	return s2, nil
}

// SequenceTags returns existing tags in a sequence, without inserting k-mers.
func (g *Graph) SequenceTags(s []byte) ([]uint64, error) {
	iter, err := iterator.NewKmerIterator(s, g.k)
	if err != nil {
		return nil, err
	}
	tags := make([]uint64, 0, 8)
	var h uint64
	var ok bool
	for {
		h, _, _, ok = iter.Next()
		if !ok {
			break
		}
		if g.tags.Contains(h) {
			tags = append(tags, h)
		}
	}
	return uniqUint64s(tags), nil
}

// uniqUint64s sorts and removes duplicates.
func uniqUint64s(list []uint64) []uint64 {
	if len(list) < 2 {
		return list
	}
	sort.Sort(sortutil.Uint64Slice(list))
	return list[:sortutil.Dedupe(sortutil.Uint64Slice(list))]
}
