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
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Ranks are the canonical ranks kept in a Lineage, from the top to the bottom.
var Ranks = []string{
	"superkingdom",
	"kingdom",
	"phylum",
	"class",
	"order",
	"family",
	"genus",
	"species",
}

var rankIdx map[string]int

func init() {
	rankIdx = make(map[string]int, len(Ranks))
	for i, r := range Ranks {
		rankIdx[r] = i
	}
}

// IsCanonicalRank tells if a rank is kept in lineages.
func IsCanonicalRank(rank string) bool {
	_, ok := rankIdx[rank]
	return ok
}

// Taxon is a node at a rank.
type Taxon struct {
	Name  string
	TaxId string
}

// Lineage maps a canonical rank to the taxon at that rank.
// Absent ranks are omitted. A Lineage is shared by all reads of a TaxId
// and must not be modified.
type Lineage map[string]Taxon

// NewLineage builds a Lineage from parallel lists of names, TaxIds and ranks,
// keeping canonical ranks only.
func NewLineage(names, taxids, ranks []string) Lineage {
	l := make(Lineage, len(Ranks))
	for i, rank := range ranks {
		if i >= len(names) || i >= len(taxids) {
			break
		}
		if !IsCanonicalRank(rank) {
			continue
		}
		l[rank] = Taxon{Name: names[i], TaxId: taxids[i]}
	}
	return l
}

// At returns the taxon at a rank.
func (l Lineage) At(rank string) (Taxon, bool) {
	t, ok := l[rank]
	return t, ok
}

// Empty means no taxon at any rank.
func (l Lineage) Empty() bool { return len(l) == 0 }

// Join returns the names, TaxIds and ranks of the lineage from the top,
// each joined with sep.
func (l Lineage) Join(sep string) (names, taxids, ranks string) {
	_names := make([]string, 0, len(l))
	_taxids := make([]string, 0, len(l))
	_ranks := make([]string, 0, len(l))
	for _, rank := range Ranks {
		t, ok := l[rank]
		if !ok {
			continue
		}
		_names = append(_names, t.Name)
		_taxids = append(_taxids, t.TaxId)
		_ranks = append(_ranks, rank)
	}
	return strings.Join(_names, sep), strings.Join(_taxids, sep), strings.Join(_ranks, sep)
}

func (l Lineage) String() string {
	names, _, _ := l.Join(";")
	return names
}

// Resolver resolves TaxIds to lineages, in batches.
type Resolver interface {
	// ResolveLineages returns a lineage for every given TaxId.
	// TaxIds without lineage (deleted, unknown) get empty lineages.
	ResolveLineages(ctx context.Context, taxids []uint32) (map[uint32]Lineage, error)

	// ListSubtreeMembers returns the TaxId and all its descendants.
	ListSubtreeMembers(ctx context.Context, taxid uint32) ([]uint32, error)
}

// ParseLineageOutput parses the tabular output of "taxonkit lineage
// --show-lineage-ranks --show-lineage-taxids": TaxId, names, TaxIds and ranks,
// the last three are separated by ";". Rows of other shapes mean no lineage.
func ParseLineageOutput(r io.Reader) (map[uint32]Lineage, error) {
	lineages := make(map[uint32]Lineage, 1024)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)

	var line string
	var items []string
	var taxid uint64
	var err error
	var n int
	for scanner.Scan() {
		n++
		line = strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		items = strings.Split(line, "\t")

		taxid, err = strconv.ParseUint(strings.TrimSpace(items[0]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid TaxId in line %d of lineage output: %q", n, items[0])
		}

		if len(items) != 4 {
			lineages[uint32(taxid)] = Lineage{}
			continue
		}
		if items[1] == "" {
			lineages[uint32(taxid)] = Lineage{}
			continue
		}
		lineages[uint32(taxid)] = NewLineage(
			strings.Split(items[1], ";"),
			strings.Split(items[2], ";"),
			strings.Split(items[3], ";"),
		)
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read lineage output")
	}
	return lineages, nil
}

// fill adds empty lineages for TaxIds missing in the map.
func fill(lineages map[uint32]Lineage, taxids []uint32) {
	for _, taxid := range taxids {
		if _, ok := lineages[taxid]; !ok {
			lineages[taxid] = Lineage{}
		}
	}
}

type uint32Slice []uint32

func (s uint32Slice) Len() int           { return len(s) }
func (s uint32Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s uint32Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
