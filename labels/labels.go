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

// Package labels links tags to labels, e.g., read indexes or partition IDs.
// A tag may carry many labels and a label may be linked to many tags.
// All methods of Linker are safe for concurrent use.
package labels

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/twotwotwo/sorts/sortutil"
)

// Label is an interned label. Labels with the same value
// share the same object, so they can be compared by pointer.
type Label struct {
	Value uint64
}

// Linker stores the many-to-many relation between tags and labels.
type Linker struct {
	k int

	mu        sync.RWMutex
	labels    map[uint64]*Label
	tagLabels map[uint64][]*Label
	labelTags map[*Label]*roaring64.Bitmap
	nLinks    int
}

// NewLinker creates a Linker for tags of k-mer size k.
func NewLinker(k int) *Linker {
	return &Linker{
		k:         k,
		labels:    make(map[uint64]*Label, 1024),
		tagLabels: make(map[uint64][]*Label, 1024),
		labelTags: make(map[*Label]*roaring64.Bitmap, 1024),
	}
}

// K returns the k-mer size of tags.
func (l *Linker) K() int { return l.k }

// Intern returns the label of a raw value, a new one is created
// on the first sight of the value.
func (l *Linker) Intern(raw uint64) *Label {
	l.mu.RLock()
	lb, ok := l.labels[raw]
	l.mu.RUnlock()
	if ok {
		return lb
	}

	l.mu.Lock()
	lb = l.intern(raw)
	l.mu.Unlock()
	return lb
}

func (l *Linker) intern(raw uint64) *Label {
	lb, ok := l.labels[raw]
	if !ok {
		lb = &Label{Value: raw}
		l.labels[raw] = lb
		l.labelTags[lb] = roaring64.New()
	}
	return lb
}

// Link links a tag to a label, and returns false if the pair exists.
func (l *Linker) Link(tag uint64, lb *Label) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.link(tag, lb)
}

// LinkRaw interns a raw label value and links it to a tag.
func (l *Linker) LinkRaw(tag uint64, raw uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.link(tag, l.intern(raw))
}

// LinkAll links some tags to a label.
// It returns the number of new pairs.
func (l *Linker) LinkAll(tags []uint64, lb *Label) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, tag := range tags {
		if l.link(tag, lb) {
			n++
		}
	}
	return n
}

func (l *Linker) link(tag uint64, lb *Label) bool {
	tags, ok := l.labelTags[lb]
	if !ok { // a label from another Linker
		lb = l.intern(lb.Value)
		tags = l.labelTags[lb]
	}
	if !tags.CheckedAdd(tag) {
		return false
	}
	l.tagLabels[tag] = append(l.tagLabels[tag], lb)
	l.nLinks++
	return true
}

// LabelsOf returns all labels linked to a tag.
func (l *Linker) LabelsOf(tag uint64) []*Label {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lbs := l.tagLabels[tag]
	if len(lbs) == 0 {
		return nil
	}
	return append([]*Label{}, lbs...)
}

// TagsOf returns all tags linked to a label, in ascending order.
func (l *Linker) TagsOf(lb *Label) []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tags, ok := l.labelTags[lb]
	if !ok {
		if lb2, ok2 := l.labels[lb.Value]; ok2 {
			tags = l.labelTags[lb2]
		} else {
			return nil
		}
	}
	return tags.ToArray()
}

// Has tells whether a tag is linked to a label.
func (l *Linker) Has(tag uint64, lb *Label) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tags, ok := l.labelTags[lb]
	return ok && tags.Contains(tag)
}

// Labels returns all labels sorted by value.
func (l *Linker) Labels() []*Label {
	l.mu.RLock()
	lbs := make([]*Label, 0, len(l.labels))
	for _, lb := range l.labels {
		lbs = append(lbs, lb)
	}
	l.mu.RUnlock()

	sort.Slice(lbs, func(i, j int) bool { return lbs[i].Value < lbs[j].Value })
	return lbs
}

// Tags returns all tags with labels, in ascending order.
func (l *Linker) Tags() []uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tags()
}

// tags needs the lock held.
func (l *Linker) tags() []uint64 {
	tags := make([]uint64, 0, len(l.tagLabels))
	for tag := range l.tagLabels {
		tags = append(tags, tag)
	}
	sortutil.Uint64s(tags)
	return tags
}

// NLabels returns the number of labels.
func (l *Linker) NLabels() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.labels)
}

// NLinks returns the number of tag-label pairs.
func (l *Linker) NLinks() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nLinks
}

// Merge adds all pairs of another Linker, and returns the number of new pairs.
func (l *Linker) Merge(o *Linker) (int, error) {
	if o.k != l.k {
		return 0, ErrKMismatch
	}
	if o == l {
		return 0, nil
	}

	// pairs of tags and label values, copied so only one lock is held at a time
	o.mu.RLock()
	pairs := make([]uint64, 0, o.nLinks<<1)
	for tag, lbs := range o.tagLabels {
		for _, lb := range lbs {
			pairs = append(pairs, tag, lb.Value)
		}
	}
	o.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	for i := 0; i < len(pairs); i += 2 {
		if l.link(pairs[i], l.intern(pairs[i+1])) {
			n++
		}
	}
	return n, nil
}
