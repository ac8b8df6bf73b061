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
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/shenwei356/taxprof/taxprof/cmd/paf"
	"github.com/zeebo/wyhash"
)

// ReassignedHit is the single target chosen for a read.
type ReassignedHit struct {
	Target string
	PIdent float64
	Record *paf.Record
}

// Tally counts, for each target, the reads listing it among their tied
// best targets. It is built once and only read afterwards.
type Tally map[string]int

// NewTally builds the tally from all best alignments.
func NewTally(best map[string]*BestAlignment) Tally {
	t := make(Tally, len(best))
	for _, b := range best {
		for _, target := range b.Targets {
			t[target]++
		}
	}
	return t
}

// Reassigner picks one target for every read.
// Reads with a single best target keep it. For the others, the tied targets
// are shuffled with a random source seeded by the read ID and Seed, and the
// first one with the highest tally wins. So the result depends only on Seed
// and the input.
type Reassigner struct {
	Seed    uint64
	Threads int
}

// Choose picks the target of a read.
func (r *Reassigner) Choose(read string, targets []string, tally Tally) string {
	if len(targets) == 1 {
		return targets[0]
	}

	shuffled := make([]string, len(targets))
	copy(shuffled, targets)
	rng := rand.New(rand.NewPCG(wyhash.HashString(read, r.Seed), r.Seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	chosen := shuffled[0]
	max := tally[chosen]
	var n int
	for _, t := range shuffled[1:] {
		n = tally[t]
		if n > max {
			max = n
			chosen = t
		}
	}
	return chosen
}

// Reassign builds the tally first, then picks targets for reads in parallel.
func (r *Reassigner) Reassign(best map[string]*BestAlignment) map[string]*ReassignedHit {
	hits := make(map[string]*ReassignedHit, len(best))
	if len(best) == 0 {
		return hits
	}

	tally := NewTally(best)

	reads := make([]string, 0, len(best))
	for read := range best {
		reads = append(reads, read)
	}
	chosen := make([]string, len(reads))

	threads := r.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	chunkSize := (len(reads) + threads - 1) / threads

	var wg sync.WaitGroup
	for start := 0; start < len(reads); start += chunkSize {
		end := start + chunkSize
		if end > len(reads) {
			end = len(reads)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				chosen[i] = r.Choose(reads[i], best[reads[i]].Targets, tally)
			}
		}(start, end)
	}
	wg.Wait()

	var b *BestAlignment
	for i, read := range reads {
		b = best[read]
		hits[read] = &ReassignedHit{
			Target: chosen[i],
			PIdent: b.PIdent,
			Record: b.Record,
		}
	}
	return hits
}
