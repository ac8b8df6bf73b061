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

	"github.com/pkg/errors"
	"github.com/shenwei356/taxprof/taxprof/cmd/acc2taxid"
	"github.com/shenwei356/taxprof/taxprof/cmd/lineage"
	"github.com/shenwei356/taxprof/taxprof/cmd/paf"
)

// ReadHit is the classification of a read.
type ReadHit struct {
	Read      string
	Target    string
	Accession string
	PIdent    float64
	Record    *paf.Record

	TaxId    uint32 // 0 if Assigned is false
	Assigned bool
	Lineage  lineage.Lineage
}

// Classifier maps reassigned hits to TaxIds and lineages.
type Classifier struct {
	Accessions acc2taxid.Resolver
	Lineages   lineage.Resolver
}

// Classify resolves the accession of every hit, and then the lineages of all
// distinct TaxIds in a single call. Reads whose accession is not found are
// kept as unassigned with an empty lineage.
func (c *Classifier) Classify(ctx context.Context, hits map[string]*ReassignedHit) (map[string]*ReadHit, error) {
	result := make(map[string]*ReadHit, len(hits))
	taxids := make([]uint32, 0, 1024)
	seen := make(map[uint32]struct{}, 1024)

	var rh *ReadHit
	var ok bool
	for read, h := range hits {
		rh = &ReadHit{
			Read:      read,
			Target:    h.Target,
			Accession: acc2taxid.Accession(h.Target),
			PIdent:    h.PIdent,
			Record:    h.Record,
		}
		rh.TaxId, rh.Assigned = c.Accessions.Resolve(h.Target)
		if rh.Assigned {
			if _, ok = seen[rh.TaxId]; !ok {
				seen[rh.TaxId] = struct{}{}
				taxids = append(taxids, rh.TaxId)
			}
		} else {
			rh.TaxId = 0
		}
		result[read] = rh
	}

	var lineages map[uint32]lineage.Lineage
	if len(taxids) > 0 {
		var err error
		lineages, err = c.Lineages.ResolveLineages(ctx, taxids)
		if err != nil {
			return nil, errors.Wrap(err, "resolve lineages")
		}
	}

	empty := lineage.Lineage{}
	var l lineage.Lineage
	for _, rh = range result {
		if !rh.Assigned {
			rh.Lineage = empty
			continue
		}
		if l, ok = lineages[rh.TaxId]; ok && l != nil {
			rh.Lineage = l
		} else {
			rh.Lineage = empty
		}
	}
	return result, nil
}
