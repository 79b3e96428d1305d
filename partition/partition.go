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

// Package partition groups tags of a graph into connected components
// while sequences stream in.
//
// A Partitioner only holds a weak reference to its graph. The graph
// must be kept alive by the caller, and every operation fails with
// ErrStaleGraph once the graph is collected or closed.
package partition

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/shenwei356/kgraph"
	log "github.com/sirupsen/logrus"
)

// ErrStaleGraph means the graph is destroyed.
var ErrStaleGraph = errors.New("partition: stale reference to a destroyed graph")

// ErrUnknownComponent means no component has the given ID.
var ErrUnknownComponent = errors.New("partition: unknown component")

// Options contains options of a Partitioner.
type Options struct {
	// StopAtFirstTag stops each graph search from a new k-mer
	// at the first tag found, instead of collecting all tags in range.
	StopAtFirstTag bool
}

// Component is a set of tags believed to be connected.
type Component struct {
	ID   uint64
	tags *roaring64.Bitmap
}

// Partitioner assigns tags to components.
type Partitioner struct {
	graph weak.Pointer[kgraph.Graph]
	k     int
	opt   Options

	nextID atomic.Uint64 // IDs start from 1

	mu           sync.Mutex
	tagComponent map[uint64]*Component
	components   map[uint64]*Component
}

// New creates a Partitioner observing a graph. opt is optional.
func New(g *kgraph.Graph, opt *Options) *Partitioner {
	p := &Partitioner{
		graph:        weak.Make(g),
		k:            g.K(),
		tagComponent: make(map[uint64]*Component, 1024),
		components:   make(map[uint64]*Component, 128),
	}
	if opt != nil {
		p.opt = *opt
	}
	return p
}

// acquire returns the graph if it is still alive.
func (p *Partitioner) acquire() (*kgraph.Graph, error) {
	g := p.graph.Value()
	if g == nil || g.Closed() {
		return nil, ErrStaleGraph
	}
	return g, nil
}

// ConsumeSequence inserts a sequence into the graph, and merges its tags,
// along with tags reachable from its new k-mers and from runs of
// known k-mers, into one component.
// It returns the ID of the component.
func (p *Partitioner) ConsumeSequence(s []byte) (uint64, error) {
	g, err := p.acquire()
	if err != nil {
		return 0, err
	}

	// pairs of forward and reverse complement codes
	starts := make([]uint64, 0, 64)
	prevKnown := false
	_, tags, err := g.ConsumeSequenceAndTagFunc(s, nil, func(_ int, _, f, r uint64, isNew bool) {
		if isNew {
			starts = append(starts, f, r)
			prevKnown = false
			return
		}
		// the first k-mer of each run of known k-mers
		if !prevKnown {
			starts = append(starts, f, r)
			prevKnown = true
		}
	})
	if err != nil {
		return 0, err
	}

	// tags just created by the sequence belong to no component yet,
	// searches pass through them.
	own := make(map[uint64]struct{}, len(tags))
	p.mu.Lock()
	for _, tag := range tags {
		if _, ok := p.tagComponent[tag]; !ok {
			own[tag] = struct{}{}
		}
	}
	p.mu.Unlock()

	var found []uint64
	for i := 0; i < len(starts); i += 2 {
		found, err = p.findTags(g, starts[i], starts[i+1], p.opt.StopAtFirstTag, own)
		if err != nil {
			return 0, err
		}
		tags = append(tags, found...)
	}

	return p.assign(tags), nil
}

// assign merges all components of the tags, together with the tags,
// into one component.
func (p *Partitioner) assign(tags []uint64) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var root *Component
	others := make([]*Component, 0, 4)
	for _, tag := range tags {
		c, ok := p.tagComponent[tag]
		if !ok || c == root {
			continue
		}
		if root == nil {
			root = c
			continue
		}
		dup := false
		for _, o := range others {
			if o == c {
				dup = true
				break
			}
		}
		if !dup {
			others = append(others, c)
		}
	}

	if root == nil {
		root = &Component{ID: p.nextID.Add(1), tags: roaring64.New()}
		p.components[root.ID] = root
	} else if len(others) > 0 {
		root = p.merge(root, others)
	}

	for _, tag := range tags {
		root.tags.Add(tag)
		p.tagComponent[tag] = root
	}
	return root.ID
}

// merge unions components into the largest one, and the others are deleted.
func (p *Partitioner) merge(root *Component, others []*Component) *Component {
	for i, c := range others {
		if c.tags.GetCardinality() > root.tags.GetCardinality() ||
			(c.tags.GetCardinality() == root.tags.GetCardinality() && c.ID < root.ID) {
			others[i], root = root, c
		}
	}

	var tag uint64
	for _, c := range others {
		it := c.tags.Iterator()
		for it.HasNext() {
			tag = it.Next()
			p.tagComponent[tag] = root
		}
		root.tags.Or(c.tags)
		delete(p.components, c.ID)
	}
	log.Debugf("%d components merged into component %d", len(others), root.ID)
	return root
}

// JoinComponents merges two components and returns the ID of the survivor.
func (p *Partitioner) JoinComponents(a, b uint64) (uint64, error) {
	if _, err := p.acquire(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ca, ok := p.components[a]
	if !ok {
		return 0, ErrUnknownComponent
	}
	cb, ok := p.components[b]
	if !ok {
		return 0, ErrUnknownComponent
	}
	if ca == cb {
		return a, nil
	}
	return p.merge(ca, []*Component{cb}).ID, nil
}

// Merge merges the components of another Partitioner of the same k.
func (p *Partitioner) Merge(o *Partitioner) error {
	if _, err := p.acquire(); err != nil {
		return err
	}
	if o.k != p.k {
		return ErrKMismatch
	}

	o.mu.Lock()
	groups := make([][]uint64, 0, len(o.components))
	for _, c := range o.components {
		groups = append(groups, c.tags.ToArray())
	}
	o.mu.Unlock()

	for _, tags := range groups {
		p.assign(tags)
	}
	return nil
}

// ComponentOf returns the ID of the component of a tag.
func (p *Partitioner) ComponentOf(tag uint64) (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.tagComponent[tag]
	if !ok {
		return 0, false
	}
	return c.ID, true
}

// TagsOf returns tags of a component in ascending order.
func (p *Partitioner) TagsOf(id uint64) ([]uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.components[id]
	if !ok {
		return nil, ErrUnknownComponent
	}
	return c.tags.ToArray(), nil
}

// NComponents returns the number of components.
func (p *Partitioner) NComponents() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.components)
}

// NTags returns the number of tags assigned to components.
func (p *Partitioner) NTags() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tagComponent)
}

// ComponentSize is the ID and number of tags of a component.
type ComponentSize struct {
	ID   uint64
	Size uint64
}

// Components returns sizes of all components, sorted by ID.
func (p *Partitioner) Components() []ComponentSize {
	p.mu.Lock()
	sizes := make([]ComponentSize, 0, len(p.components))
	for id, c := range p.components {
		sizes = append(sizes, ComponentSize{ID: id, Size: c.tags.GetCardinality()})
	}
	p.mu.Unlock()

	sort.Slice(sizes, func(i, j int) bool { return sizes[i].ID < sizes[j].ID })
	return sizes
}

// SizeDistribution counts components of each size, and returns
// the number of tags of the graph not assigned to any component.
func (p *Partitioner) SizeDistribution() (map[uint64]int, uint64, error) {
	g, err := p.acquire()
	if err != nil {
		return nil, 0, err
	}

	dist := make(map[uint64]int, 16)
	for _, c := range p.Components() {
		dist[c.Size]++
	}

	var unassigned uint64
	p.mu.Lock()
	for _, tag := range g.Tags().ToArray() {
		if _, ok := p.tagComponent[tag]; !ok {
			unassigned++
		}
	}
	p.mu.Unlock()
	return dist, unassigned, nil
}
