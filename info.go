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
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Info contains the summary of a saved graph.
type Info struct {
	Version     uint8    `toml:"version" comment:"Binary format"`
	K           int      `toml:"k" comment:"Presence table"`
	TableSizes  []uint64 `toml:"table-sizes"`
	Occupied    uint64   `toml:"occupied-bins"`
	UniqueKmers uint64   `toml:"unique-kmers"`
	FPR         float64  `toml:"false-positive-rate"`
	TagDensity  int      `toml:"tag-density" comment:"Tags and labels"`
	Tags        uint64   `toml:"tags"`
	Labels      int      `toml:"labels"`
	LabelLinks  int      `toml:"tag-label-pairs"`
	Strict      bool     `toml:"strict"`
}

// Info returns the summary of the graph.
func (g *Graph) Info() *Info {
	return &Info{
		Version:     Version,
		K:           g.k,
		TableSizes:  g.table.Sizes(),
		Occupied:    g.table.NOccupied(),
		UniqueKmers: g.table.NUniqueKmers(),
		FPR:         g.table.FalsePositiveRate(),
		TagDensity:  g.tagDensity,
		Tags:        g.tags.Len(),
		Labels:      g.labels.NLabels(),
		LabelLinks:  g.labels.NLinks(),
		Strict:      g.strict,
	}
}

// WriteInfo writes the summary to a TOML file.
func WriteInfo(file string, info *Info) error {
	data, err := toml.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(file, data, 0644)
}

// ReadInfo reads the summary from a TOML file.
func ReadInfo(file string) (*Info, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	info := &Info{}
	err = toml.Unmarshal(data, info)
	return info, err
}
