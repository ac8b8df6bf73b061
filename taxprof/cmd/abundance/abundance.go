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

package abundance

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/shenwei356/taxprof/taxprof/cmd/lineage"
)

// Scale is the multiplier of rates, i.e., reads per million.
const Scale = 1000000

// ErrInvalidRank means the rank is not one of lineage.Ranks.
var ErrInvalidRank = errors.New("abundance: invalid rank")

// KeyBy decides how taxa are identified in a profile.
type KeyBy int

const (
	// ByTaxId identifies taxa by TaxIds.
	ByTaxId KeyBy = iota
	// ByName identifies taxa by names.
	ByName
)

func (k KeyBy) String() string {
	switch k {
	case ByTaxId:
		return "taxid"
	case ByName:
		return "name"
	}
	return fmt.Sprintf("KeyBy(%d)", int(k))
}

// ParseKeyBy parses "taxid" or "name".
func ParseKeyBy(s string) (KeyBy, error) {
	switch s {
	case "taxid":
		return ByTaxId, nil
	case "name":
		return ByName, nil
	}
	return ByTaxId, fmt.Errorf("invalid key type: %s, available: taxid, name", s)
}

// TaxonAbundance is the abundance of a taxon at a rank.
type TaxonAbundance struct {
	Key     string
	Rank    string
	Hits    int
	Rate    float64 // Hits / Total * Scale
	Taxon   lineage.Taxon
	Lineage lineage.Lineage // lineage of the first read of the taxon
}

// Profile is the abundance of all taxa at a rank.
type Profile struct {
	Rank  string
	KeyBy KeyBy
	Total int // number of reads with a taxon at the rank

	Taxa []*TaxonAbundance // in descending order of Rate

	idx map[string]int
}

// Get returns the abundance of a taxon.
func (p *Profile) Get(key string) (*TaxonAbundance, bool) {
	i, ok := p.idx[key]
	if !ok {
		return nil, false
	}
	return p.Taxa[i], true
}

// Len returns the number of taxa.
func (p *Profile) Len() int { return len(p.Taxa) }

// Compute counts reads of every taxon at the rank and computes rates.
// Reads without a taxon at the rank are ignored. Taxa with equal rates
// keep the order of their first reads.
func Compute(lineages []lineage.Lineage, rank string, by KeyBy) (*Profile, error) {
	if !lineage.IsCanonicalRank(rank) {
		return nil, ErrInvalidRank
	}
	if by != ByTaxId && by != ByName {
		return nil, fmt.Errorf("abundance: invalid key type: %s", by)
	}

	p := &Profile{
		Rank:  rank,
		KeyBy: by,
		Taxa:  make([]*TaxonAbundance, 0, 128),
		idx:   make(map[string]int, 128),
	}

	var t lineage.Taxon
	var ok bool
	var key string
	var i int
	for _, l := range lineages {
		if t, ok = l[rank]; !ok {
			continue
		}
		if by == ByName {
			key = t.Name
		} else {
			key = t.TaxId
		}

		p.Total++
		if i, ok = p.idx[key]; ok {
			p.Taxa[i].Hits++
			continue
		}
		p.idx[key] = len(p.Taxa)
		p.Taxa = append(p.Taxa, &TaxonAbundance{
			Key:     key,
			Rank:    rank,
			Hits:    1,
			Taxon:   t,
			Lineage: l,
		})
	}

	if p.Total == 0 {
		return p, nil
	}

	total := float64(p.Total)
	for _, ta := range p.Taxa {
		ta.Rate = float64(ta.Hits) / total * Scale
	}

	// rates are proportional to hits
	sort.SliceStable(p.Taxa, func(i, j int) bool { return p.Taxa[i].Hits > p.Taxa[j].Hits })
	for i, ta := range p.Taxa {
		p.idx[ta.Key] = i
	}
	return p, nil
}

// ComputeRanks computes profiles at multiple ranks.
func ComputeRanks(lineages []lineage.Lineage, ranks []string, by KeyBy) ([]*Profile, error) {
	profiles := make([]*Profile, 0, len(ranks))
	for _, rank := range ranks {
		p, err := Compute(lineages, rank, by)
		if err != nil {
			return nil, errors.Wrap(err, rank)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
