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

package lineage

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/shenwei356/bio/taxdump"
	"github.com/shenwei356/util/pathutil"
	"github.com/twotwotwo/sorts"
)

// Taxdump resolves lineages in process from NCBI taxonomy dump files.
type Taxdump struct {
	*taxdump.Taxonomy
	Dir string

	once     sync.Once
	children map[uint32][]uint32
}

// LoadTaxdump loads nodes.dmp and names.dmp, and merged.dmp and delnodes.dmp
// if they exist, from a directory.
func LoadTaxdump(dir string) (*Taxdump, error) {
	t, err := taxdump.NewTaxonomyWithRankFromNCBI(filepath.Join(dir, "nodes.dmp"))
	if err != nil {
		return nil, fmt.Errorf("err on loading Taxonomy nodes: %s", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 3)
	load := func(i int, name string, required bool, fn func(string) error) {
		defer wg.Done()
		file := filepath.Join(dir, name)
		existed, err := pathutil.Exists(file)
		if err != nil {
			errs[i] = fmt.Errorf("err on checking file %s: %s", name, err)
			return
		}
		if !existed {
			if required {
				errs[i] = fmt.Errorf("%s not found in %s", name, dir)
			}
			return
		}
		if err = fn(file); err != nil {
			errs[i] = fmt.Errorf("err on loading %s: %s", name, err)
		}
	}

	wg.Add(3)
	go load(0, "names.dmp", true, t.LoadNamesFromNCBI)
	go load(1, "delnodes.dmp", false, t.LoadDeletedNodesFromNCBI)
	go load(2, "merged.dmp", false, t.LoadMergedNodesFromNCBI)
	wg.Wait()

	for _, err = range errs {
		if err != nil {
			return nil, err
		}
	}

	return &Taxdump{Taxonomy: t, Dir: dir}, nil
}

// Lineage returns the lineage of a TaxId. Merged TaxIds follow the merge,
// deleted and unknown ones get an empty lineage.
func (t *Taxdump) Lineage(taxid uint32) Lineage {
	id, ok := t.TaxId(taxid)
	if !ok {
		return Lineage{}
	}

	l := make(Lineage, len(Ranks))
	var rank string
	for _, _taxid := range t.LineageTaxIds(id) {
		rank = t.Rank(_taxid)
		if !IsCanonicalRank(rank) {
			continue
		}
		l[rank] = Taxon{
			Name:  t.Name(_taxid),
			TaxId: strconv.FormatUint(uint64(_taxid), 10),
		}
	}
	return l
}

// ResolveLineages returns lineages of all given TaxIds.
func (t *Taxdump) ResolveLineages(ctx context.Context, taxids []uint32) (map[uint32]Lineage, error) {
	lineages := make(map[uint32]Lineage, len(taxids))
	for i, taxid := range taxids {
		if i&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, ok := lineages[taxid]; ok {
			continue
		}
		lineages[taxid] = t.Lineage(taxid)
	}
	return lineages, nil
}

func (t *Taxdump) buildChildren() {
	t.children = make(map[uint32][]uint32, len(t.Nodes))
	for child, parent := range t.Nodes {
		if child == parent { // root
			continue
		}
		t.children[parent] = append(t.children[parent], child)
	}
	for _, c := range t.children {
		sorts.Quicksort(uint32Slice(c))
	}
}

// ListSubtreeMembers returns the TaxId and all its descendants,
// in breadth-first order. Unknown TaxIds return nothing.
func (t *Taxdump) ListSubtreeMembers(ctx context.Context, taxid uint32) ([]uint32, error) {
	t.once.Do(t.buildChildren)

	id, ok := t.TaxId(taxid)
	if !ok {
		return nil, nil
	}

	members := []uint32{id}
	for i := 0; i < len(members); i++ {
		if i&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		members = append(members, t.children[members[i]]...)
	}
	return members, nil
}
