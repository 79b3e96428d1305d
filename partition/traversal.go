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
	"github.com/pkg/errors"
	"github.com/shenwei356/kgraph"
	"github.com/shenwei356/kgraph/iterator"
	"github.com/shenwei356/kgraph/kmer"
	"github.com/twotwotwo/sorts/sortutil"
)

// ErrTraversalDesync means the node queue and the breadth queue of
// a graph search are out of step.
var ErrTraversalDesync = errors.New("partition: desynchronization between traversal and breadth tracking")

// queue holds nodes, i.e., pairs of forward and reverse complement
// codes, along with their breadths.
type queue struct {
	nodes    []uint64
	breadths []int
	hn, hb   int // heads
}

func (q *queue) push(f, r uint64, breadth int) {
	q.nodes = append(q.nodes, f, r)
	q.breadths = append(q.breadths, breadth)
}

func (q *queue) empty() bool {
	return q.hn == len(q.nodes)
}

func (q *queue) pop() (f, r uint64, breadth int, err error) {
	if len(q.nodes)-q.hn != (len(q.breadths)-q.hb)<<1 {
		return 0, 0, 0, ErrTraversalDesync
	}
	f, r = q.nodes[q.hn], q.nodes[q.hn+1]
	breadth = q.breadths[q.hb]
	q.hn += 2
	q.hb++
	return f, r, breadth, nil
}

// FindAllTags returns all tags within 2*TagDensity+1 steps from
// a k-mer. The k-mer itself is not reported as a tag.
func (p *Partitioner) FindAllTags(f, r uint64) ([]uint64, error) {
	g, err := p.acquire()
	if err != nil {
		return nil, err
	}
	return p.findTags(g, f, r, false, nil)
}

// findTags runs a breadth-first search from a k-mer over present k-mers.
// Tags are collected but not expanded, except those in skip, which are
// neither reported nor a reason to stop.
func (p *Partitioner) findTags(g *kgraph.Graph, f, r uint64, stopAtFirst bool,
	skip map[uint64]struct{}) ([]uint64, error) {
	maxBreadth := 2*g.TagDensity() + 1
	tags := g.Tags()

	q := &queue{
		nodes:    make([]uint64, 0, 64),
		breadths: make([]int, 0, 32),
	}
	seen := make(map[uint64]struct{}, 64)
	seen[kmer.Canonical(f, r)] = struct{}{}
	q.push(f, r, 0)

	found := make([]uint64, 0, 4)
	var h uint64
	var curBreadth int
	first := true
	for !q.empty() {
		f, r, breadth, err := q.pop()
		if err != nil {
			return nil, errors.Wrapf(err, "search from %s", kmer.RevHash(f, p.k))
		}
		if breadth < curBreadth {
			return nil, errors.Wrapf(ErrTraversalDesync, "search from %s: breadth %d after %d",
				kmer.RevHash(f, p.k), breadth, curBreadth)
		}
		curBreadth = breadth

		h = kmer.Canonical(f, r)
		if !first && tags.Contains(h) {
			if _, ok := skip[h]; !ok {
				found = append(found, h)
				if stopAtFirst {
					break
				}
				continue
			}
		}
		first = false

		if breadth >= maxBreadth {
			continue
		}

		g.Neighbors(f, r, func(nf, nr uint64) {
			nh := kmer.Canonical(nf, nr)
			if _, ok := seen[nh]; ok {
				return
			}
			seen[nh] = struct{}{}
			q.push(nf, nr, breadth+1)
		})
	}
	return found, nil
}

// SweepForTags searches around all k-mers of a sequence, up to
// rangeLimit steps, and returns tags found, including those in
// the sequence.
func (p *Partitioner) SweepForTags(s []byte, rangeLimit int) ([]uint64, error) {
	g, err := p.acquire()
	if err != nil {
		return nil, err
	}

	iter, err := iterator.NewKmerIterator(s, p.k)
	if err != nil {
		return nil, err
	}

	tags := g.Tags()
	q := &queue{
		nodes:    make([]uint64, 0, 2*len(s)),
		breadths: make([]int, 0, len(s)),
	}
	seen := make(map[uint64]struct{}, len(s))
	var h, f, r uint64
	var ok bool
	for {
		h, f, r, ok = iter.Next()
		if !ok {
			break
		}
		if _, ok = seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		q.push(f, r, 0)
	}

	found := make(map[uint64]struct{}, 8)
	var breadth int
	for !q.empty() {
		f, r, breadth, err = q.pop()
		if err != nil {
			return nil, errors.Wrapf(err, "sweep from %s", s)
		}

		h = kmer.Canonical(f, r)
		if tags.Contains(h) {
			found[h] = struct{}{}
			continue
		}
		if breadth >= rangeLimit {
			continue
		}

		g.Neighbors(f, r, func(nf, nr uint64) {
			nh := kmer.Canonical(nf, nr)
			if _, ok := seen[nh]; ok {
				return
			}
			seen[nh] = struct{}{}
			q.push(nf, nr, breadth+1)
		})
	}

	list := make([]uint64, 0, len(found))
	for h = range found {
		list = append(list, h)
	}
	sortutil.Uint64s(list)
	return list, nil
}

// ComponentOfSequence returns the component of the first tag
// in a sequence that is assigned to a component.
func (p *Partitioner) ComponentOfSequence(s []byte) (uint64, bool, error) {
	if _, err := p.acquire(); err != nil {
		return 0, false, err
	}
	iter, err := iterator.NewKmerIterator(s, p.k)
	if err != nil {
		return 0, false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var h uint64
	var ok bool
	var c *Component
	for {
		h, _, _, ok = iter.Next()
		if !ok {
			break
		}
		if c, ok = p.tagComponent[h]; ok {
			return c.ID, true, nil
		}
	}
	return 0, false, nil
}
