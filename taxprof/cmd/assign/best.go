// Copyright © 2020-2021 Wei Shen <shenwei356@gmail.com>
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

package assign

import (
	"github.com/shenwei356/taxprof/taxprof/cmd/paf"
)

// MinQueryCoverage is the minimum fraction of the read covered by an alignment.
const MinQueryCoverage = 0.9

// Pass tells if an alignment is usable: a primary one covering
// at least 90% of the read.
func Pass(r *paf.Record) bool {
	if !r.IsPrimary() {
		return false
	}
	return float64(r.AlnLen) >= MinQueryCoverage*float64(r.QLen)
}

// BestAlignment holds the targets with the highest identity of a read.
type BestAlignment struct {
	PIdent  float64
	Targets []string    // tied targets, distinct, in encounter order
	Record  *paf.Record // the first record reaching PIdent
}

// Selector selects the best alignments of reads.
type Selector struct {
	best  map[string]*BestAlignment
	reads []string
}

// NewSelector creates a Selector.
func NewSelector() *Selector {
	return &Selector{
		best:  make(map[string]*BestAlignment, 1024),
		reads: make([]string, 0, 1024),
	}
}

// Add checks an alignment with Pass and updates the best alignment of the read.
// It returns false if the alignment is filtered out.
func (s *Selector) Add(r *paf.Record) bool {
	if !Pass(r) {
		return false
	}

	b, ok := s.best[r.QName]
	if !ok {
		s.best[r.QName] = &BestAlignment{
			PIdent:  r.PIdent,
			Targets: []string{r.TName},
			Record:  r,
		}
		s.reads = append(s.reads, r.QName)
		return true
	}

	switch {
	case r.PIdent > b.PIdent:
		b.PIdent = r.PIdent
		b.Targets = b.Targets[:0]
		b.Targets = append(b.Targets, r.TName)
		b.Record = r
	case r.PIdent == b.PIdent:
		for _, t := range b.Targets {
			if t == r.TName {
				return true
			}
		}
		b.Targets = append(b.Targets, r.TName)
	}
	return true
}

// Result returns the best alignments, keyed by read.
func (s *Selector) Result() map[string]*BestAlignment { return s.best }

// Reads returns reads with at least one usable alignment, in encounter order.
func (s *Selector) Reads() []string { return s.reads }

// SelectBest returns the best alignments of all reads.
func SelectBest(records []*paf.Record) map[string]*BestAlignment {
	s := NewSelector()
	for _, r := range records {
		s.Add(r)
	}
	return s.Result()
}
