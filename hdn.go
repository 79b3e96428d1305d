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
	"github.com/shenwei356/kgraph/iterator"
)

// HighDegreeNodes returns k-mers of a sequence with more than two
// present neighbors, in ascending order.
func (g *Graph) HighDegreeNodes(s []byte) ([]uint64, error) {
	iter, err := iterator.NewKmerIterator(s, g.k)
	if err != nil {
		return nil, err
	}
	hdns := make([]uint64, 0, 4)
	var h, f, r uint64
	var ok bool
	for {
		h, f, r, ok = iter.Next()
		if !ok {
			break
		}
		if g.Degree(f, r) > 2 {
			hdns = append(hdns, h)
		}
	}
	return uniqUint64s(hdns), nil
}

// LabelAcrossHighDegreeNodes tags the k-mers before, at and after
// every high-degree node in a sequence, and links them to a label.
// It returns the number of tags linked.
func (g *Graph) LabelAcrossHighDegreeNodes(s []byte, hdns []uint64, raw uint64) (int, error) {
	if g.closed.Load() {
		return 0, ErrClosed
	}
	iter, err := iterator.NewKmerIterator(s, g.k)
	if err != nil {
		return 0, err
	}
	hdnSet := make(map[uint64]struct{}, len(hdns))
	for _, h := range hdns {
		hdnSet[h] = struct{}{}
	}

	hashes := make([]uint64, 0, len(s)-g.k+1)
	var h uint64
	var ok bool
	for {
		h, _, _, ok = iter.Next()
		if !ok {
			break
		}
		hashes = append(hashes, h)
	}

	tags := make([]uint64, 0, 8)
	for i, h := range hashes {
		if _, ok = hdnSet[h]; !ok {
			continue
		}
		if i > 0 {
			tags = append(tags, hashes[i-1])
		}
		tags = append(tags, h)
		if i+1 < len(hashes) {
			tags = append(tags, hashes[i+1])
		}
	}
	if len(tags) == 0 {
		return 0, nil
	}
	tags = uniqUint64s(tags)

	g.tags.AddMany(tags)
	g.labels.LinkAll(tags, g.labels.Intern(raw))
	return len(tags), nil
}
