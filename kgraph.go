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

// Package kgraph builds a compact k-mer graph from DNA sequences.
//
// A Graph composes a probabilistic presence table of canonical k-mers,
// a set of tags, i.e., k-mers sampled along every consumed sequence
// as landmarks of the implicit de Bruijn graph, and a linker between
// tags and caller-supplied labels.
package kgraph

import (
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/shenwei356/kgraph/kmer"
	"github.com/shenwei356/kgraph/labels"
	"github.com/shenwei356/kgraph/presence"
)

// Threads is the maximum concurrency number for ConsumeReads.
var Threads = runtime.NumCPU()

// DefaultTagDensity is the default maximum distance between two tags.
const DefaultTagDensity = 40

// ErrInvalidTagDensity means the tag density is smaller than 1.
var ErrInvalidTagDensity = errors.New("kgraph: invalid tag density")

// ErrClosed means the graph is closed.
var ErrClosed = errors.New("kgraph: graph closed")

// Options contains parameters of a Graph.
type Options struct {
	K          int    // k-mer size, [1, 32]
	TableSize  uint64 // table sizes are the largest primes below it
	NTables    int    // number of tables
	TagDensity int    // maximum distance between two tags

	// Strict enables validation of sequences and makes
	// concurrent insertions of a k-mer report it as new only once.
	Strict bool
}

// DefaultOptions returns the default options.
func DefaultOptions() *Options {
	return &Options{
		K:          21,
		TableSize:  1e6,
		NTables:    4,
		TagDensity: DefaultTagDensity,
	}
}

// Graph is a k-mer graph.
type Graph struct {
	k          int
	tagDensity int
	strict     bool

	table  *presence.Table
	tags   *TagSet
	labels *labels.Linker

	closed atomic.Bool
}

// New creates a Graph.
func New(opt *Options) (*Graph, error) {
	t, err := presence.NewWithPrimes(opt.K, opt.TableSize, opt.NTables)
	if err != nil {
		return nil, err
	}
	return NewFromTable(t, opt.TagDensity, opt.Strict)
}

// NewFromTable creates a Graph from an existing presence table.
func NewFromTable(t *presence.Table, tagDensity int, strict bool) (*Graph, error) {
	if tagDensity < 1 {
		return nil, ErrInvalidTagDensity
	}
	t.SetStrict(strict)
	return &Graph{
		k:          t.K(),
		tagDensity: tagDensity,
		strict:     strict,
		table:      t,
		tags:       NewTagSet(),
		labels:     labels.NewLinker(t.K()),
	}, nil
}

// K returns the k-mer size.
func (g *Graph) K() int { return g.k }

// TagDensity returns the maximum distance between two tags.
func (g *Graph) TagDensity() int { return g.tagDensity }

// Strict tells whether sequences are validated.
func (g *Graph) Strict() bool { return g.strict }

// Table returns the presence table.
func (g *Graph) Table() *presence.Table { return g.table }

// Tags returns the tag set.
func (g *Graph) Tags() *TagSet { return g.tags }

// Labels returns the tag-label linker.
func (g *Graph) Labels() *labels.Linker { return g.labels }

// Close marks the graph as destroyed. Observers holding weak
// references to the graph fail on their next operations.
func (g *Graph) Close() {
	g.closed.Store(true)
}

// Closed tells whether the graph is closed.
func (g *Graph) Closed() bool {
	return g.closed.Load()
}

// Get tells whether a k-mer code is present.
func (g *Graph) Get(h uint64) bool {
	return g.table.Get(h)
}

// Neighbors calls fn for each present k-mer adjacent to a k-mer
// of forward code f and reverse complement code r.
func (g *Graph) Neighbors(f, r uint64, fn func(f, r uint64)) {
	var nf, nr uint64
	for _, c := range kmer.Bases {
		nf, nr = kmer.NextF(f, c, g.k), kmer.NextR(r, c, g.k)
		if g.table.Get(kmer.Canonical(nf, nr)) {
			fn(nf, nr)
		}
		nf, nr = kmer.PrevF(f, c, g.k), kmer.PrevR(r, c, g.k)
		if g.table.Get(kmer.Canonical(nf, nr)) {
			fn(nf, nr)
		}
	}
}

// Degree returns the number of present neighbors of a k-mer.
func (g *Graph) Degree(f, r uint64) int {
	var n int
	g.Neighbors(f, r, func(_, _ uint64) { n++ })
	return n
}
