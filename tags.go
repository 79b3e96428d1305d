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
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
)

// TagSet is a growing set of tags, safe for concurrent use.
type TagSet struct {
	mu sync.RWMutex
	bm *roaring64.Bitmap
}

// NewTagSet creates an empty TagSet.
func NewTagSet() *TagSet {
	return &TagSet{bm: roaring64.New()}
}

// Add adds a tag and returns false if it exists.
func (s *TagSet) Add(tag uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bm.CheckedAdd(tag)
}

// AddMany adds some tags.
func (s *TagSet) AddMany(tags []uint64) {
	s.mu.Lock()
	s.bm.AddMany(tags)
	s.mu.Unlock()
}

// Contains tells whether a k-mer code is a tag.
func (s *TagSet) Contains(tag uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bm.Contains(tag)
}

// Len returns the number of tags.
func (s *TagSet) Len() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bm.GetCardinality()
}

// ToArray returns all tags in ascending order.
func (s *TagSet) ToArray() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bm.ToArray()
}

// Union adds all tags of another set.
func (s *TagSet) Union(o *TagSet) {
	o.mu.RLock()
	other := o.bm.Clone()
	o.mu.RUnlock()

	s.mu.Lock()
	s.bm.Or(other)
	s.mu.Unlock()
}
