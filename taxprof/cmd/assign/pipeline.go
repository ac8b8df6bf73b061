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
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/taxprof/taxprof/cmd/lineage"
	"github.com/shenwei356/taxprof/taxprof/cmd/paf"
	"github.com/twotwotwo/sorts"
)

// Result holds the outputs of all stages of a run.
type Result struct {
	Records int // all alignment records
	Passed  int // records passing the filter

	Best       map[string]*BestAlignment
	Reassigned map[string]*ReassignedHit
	Hits       map[string]*ReadHit
}

// Pipeline classifies reads of a PAF file.
type Pipeline struct {
	Classifier *Classifier
	Reassigner *Reassigner
}

// Run parses the file, selects the best alignments, reassigns multi-mapping
// reads and classifies them. A malformed line aborts the run.
func (p *Pipeline) Run(ctx context.Context, file string) (*Result, error) {
	res := &Result{}
	s := NewSelector()
	err := paf.ForEach(file, func(r *paf.Record) error {
		res.Records++
		if s.Add(r) {
			res.Passed++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Best = s.Result()

	reassigner := p.Reassigner
	if reassigner == nil {
		reassigner = &Reassigner{}
	}
	res.Reassigned = reassigner.Reassign(res.Best)

	if p.Classifier == nil {
		return res, nil
	}
	res.Hits, err = p.Classifier.Classify(ctx, res.Reassigned)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}
	return res, nil
}

// SampleID returns the sample of a read, i.e., the part before the first ".".
func SampleID(read string) string {
	if i := strings.IndexByte(read, '.'); i >= 0 {
		return read[:i]
	}
	return read
}

// GroupBySample splits hits by the sample IDs of reads.
func GroupBySample(hits map[string]*ReadHit) map[string]map[string]*ReadHit {
	groups := make(map[string]map[string]*ReadHit, 8)
	var sample string
	var m map[string]*ReadHit
	var ok bool
	for read, h := range hits {
		sample = SampleID(read)
		if m, ok = groups[sample]; !ok {
			m = make(map[string]*ReadHit, 1024)
			groups[sample] = m
		}
		m[read] = h
	}
	return groups
}

// SortedReads returns the keys of a map in lexicographic order.
func SortedReads[V any](m map[string]V) []string {
	reads := make([]string, 0, len(m))
	for read := range m {
		reads = append(reads, read)
	}
	sorts.Quicksort(sort.StringSlice(reads))
	return reads
}

// Exclude returns hits whose TaxIds are not in the given set,
// and the number of removed ones.
func Exclude(hits map[string]*ReadHit, taxids map[uint32]struct{}) (map[string]*ReadHit, int) {
	if len(taxids) == 0 {
		return hits, 0
	}
	kept := make(map[string]*ReadHit, len(hits))
	var n int
	var ok bool
	for read, h := range hits {
		if h.Assigned {
			if _, ok = taxids[h.TaxId]; ok {
				n++
				continue
			}
		}
		kept[read] = h
	}
	return kept, n
}

// Lineages returns the lineages of hits ordered by read IDs.
func Lineages(hits map[string]*ReadHit) []lineage.Lineage {
	lineages := make([]lineage.Lineage, 0, len(hits))
	for _, read := range SortedReads(hits) {
		lineages = append(lineages, hits[read].Lineage)
	}
	return lineages
}
