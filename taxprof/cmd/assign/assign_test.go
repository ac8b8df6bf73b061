package assign

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shenwei356/taxprof/taxprof/cmd/acc2taxid"
	"github.com/shenwei356/taxprof/taxprof/cmd/lineage"
	"github.com/shenwei356/taxprof/taxprof/cmd/paf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(read, target string, qlen, nmatch, alnlen int, primary bool) string {
	tp := "P"
	if !primary {
		tp = "S"
	}
	return fmt.Sprintf("%s\t%d\t0\t%d\t+\t%s\t10000\t0\t%d\t%d\t%d\t60\ttp:A:%s",
		read, qlen, qlen, target, alnlen, nmatch, alnlen, tp)
}

func rec(t *testing.T, read, target string, qlen, nmatch, alnlen int, primary bool) *paf.Record {
	r, err := paf.ParseLine(line(read, target, qlen, nmatch, alnlen, primary))
	require.NoError(t, err)
	return r
}

func TestPass(t *testing.T) {
	assert.True(t, Pass(rec(t, "r", "A", 100, 90, 100, true)))
	assert.True(t, Pass(rec(t, "r", "A", 200, 160, 180, true)))
	assert.False(t, Pass(rec(t, "r", "A", 100, 80, 89, true)))
	assert.False(t, Pass(rec(t, "r", "A", 100, 100, 100, false)))

	r, err := paf.ParseLine("r\t100\t0\t100\t+\tA\t1000\t0\t100\t100\t100\t60")
	require.NoError(t, err)
	assert.False(t, Pass(r))
}

func TestSelector(t *testing.T) {
	s := NewSelector()
	assert.True(t, s.Add(rec(t, "r1", "A", 100, 90, 100, true)))
	assert.True(t, s.Add(rec(t, "r1", "B", 100, 90, 100, true)))
	assert.True(t, s.Add(rec(t, "r1", "B", 100, 90, 100, true)))
	assert.True(t, s.Add(rec(t, "r2", "A", 100, 90, 100, true)))
	assert.True(t, s.Add(rec(t, "r2", "B", 100, 95, 100, true)))
	assert.True(t, s.Add(rec(t, "r2", "C", 100, 95, 100, true)))
	assert.True(t, s.Add(rec(t, "r2", "D", 100, 92, 100, true)))
	assert.False(t, s.Add(rec(t, "r3", "A", 100, 100, 50, true)))

	best := s.Result()
	assert.Len(t, best, 2)
	assert.Equal(t, []string{"r1", "r2"}, s.Reads())

	assert.Equal(t, []string{"A", "B"}, best["r1"].Targets)
	assert.Equal(t, 0.9, best["r1"].PIdent)
	assert.Equal(t, "A", best["r1"].Record.TName)

	assert.Equal(t, []string{"B", "C"}, best["r2"].Targets)
	assert.Equal(t, 0.95, best["r2"].PIdent)
	assert.Equal(t, "B", best["r2"].Record.TName)
}

func TestSelectBestFilter(t *testing.T) {
	records := []*paf.Record{
		rec(t, "r1", "A", 100, 89, 89, true), // higher identity but too short
		rec(t, "r1", "B", 100, 80, 100, true),
		rec(t, "r2", "C", 1000, 800, 850, true),
	}
	best := SelectBest(records)
	assert.Len(t, best, 1)
	assert.Equal(t, []string{"B"}, best["r1"].Targets)
}

func TestSelectBestOrderIndependent(t *testing.T) {
	records := []*paf.Record{
		rec(t, "r", "A", 100, 90, 100, true),
		rec(t, "r", "B", 100, 99, 100, true),
		rec(t, "r", "C", 100, 99, 100, true),
		rec(t, "r", "D", 100, 95, 100, true),
		rec(t, "r", "E", 100, 99, 100, true),
		rec(t, "r", "C", 100, 99, 100, true),
	}
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })
		b := SelectBest(records)["r"]
		assert.Equal(t, 0.99, b.PIdent)
		assert.ElementsMatch(t, []string{"B", "C", "E"}, b.Targets)
	}
}

func TestTally(t *testing.T) {
	best := map[string]*BestAlignment{
		"r1": {Targets: []string{"A", "B"}},
		"r2": {Targets: []string{"A"}},
		"r3": {Targets: []string{"A", "C"}},
	}
	assert.Equal(t, Tally{"A": 3, "B": 1, "C": 1}, NewTally(best))
	assert.Len(t, NewTally(nil), 0)
}

func TestReassign(t *testing.T) {
	best := make(map[string]*BestAlignment, 100)
	for i := 0; i < 50; i++ {
		best[fmt.Sprintf("u%d", i)] = &BestAlignment{PIdent: 1, Targets: []string{"A"}}
	}
	for i := 0; i < 50; i++ {
		best[fmt.Sprintf("m%d", i)] = &BestAlignment{PIdent: 0.9, Targets: []string{"B", "A", "C"}}
	}
	best["t1"] = &BestAlignment{PIdent: 0.9, Targets: []string{"D", "E"}}
	best["t2"] = &BestAlignment{PIdent: 0.9, Targets: []string{"D", "E"}}

	r := &Reassigner{Seed: 11, Threads: 4}
	hits := r.Reassign(best)
	require.Len(t, hits, len(best))

	for read, h := range hits {
		assert.Contains(t, best[read].Targets, h.Target)
		assert.Equal(t, best[read].PIdent, h.PIdent)
		if strings.HasPrefix(read, "u") || strings.HasPrefix(read, "m") {
			assert.Equal(t, "A", h.Target, read)
		}
	}

	for _, threads := range []int{1, 3, 16} {
		again := (&Reassigner{Seed: 11, Threads: threads}).Reassign(best)
		for read, h := range hits {
			assert.Equal(t, h.Target, again[read].Target)
		}
	}
}

func TestReassignSeedMatters(t *testing.T) {
	best := make(map[string]*BestAlignment, 200)
	for i := 0; i < 200; i++ {
		best[fmt.Sprintf("r%d", i)] = &BestAlignment{Targets: []string{"A", "B"}}
	}
	a := (&Reassigner{Seed: 1}).Reassign(best)
	b := (&Reassigner{Seed: 2}).Reassign(best)

	var diff, nA int
	for read := range best {
		if a[read].Target != b[read].Target {
			diff++
		}
		if a[read].Target == "A" {
			nA++
		}
	}
	assert.True(t, diff > 0)
	assert.True(t, nA > 0 && nA < 200)
}

func TestReassignEmpty(t *testing.T) {
	assert.Len(t, (&Reassigner{}).Reassign(nil), 0)
	assert.Len(t, SelectBest(nil), 0)
}

type fakeLineages struct {
	lineages map[uint32]lineage.Lineage
	calls    int
	err      error
}

func (f *fakeLineages) ResolveLineages(ctx context.Context, taxids []uint32) (map[uint32]lineage.Lineage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	m := make(map[uint32]lineage.Lineage, len(taxids))
	for _, taxid := range taxids {
		if l, ok := f.lineages[taxid]; ok {
			m[taxid] = l
		}
	}
	return m, nil
}

func (f *fakeLineages) ListSubtreeMembers(ctx context.Context, taxid uint32) ([]uint32, error) {
	return []uint32{taxid}, nil
}

var speciesX = lineage.Lineage{"species": {Name: "X", TaxId: "1001"}}

func TestClassify(t *testing.T) {
	fl := &fakeLineages{lineages: map[uint32]lineage.Lineage{1001: speciesX}}
	c := &Classifier{
		Accessions: acc2taxid.MapResolver{"A1": 1001, "A2": 1001, "A3": 1003},
		Lineages:   fl,
	}
	hits := map[string]*ReassignedHit{
		"r1": {Target: "A1.1", PIdent: 1},
		"r2": {Target: "A2.3", PIdent: 0.9},
		"r3": {Target: "A3", PIdent: 0.9},
		"r4": {Target: "Z9.1", PIdent: 0.9},
	}
	res, err := c.Classify(context.Background(), hits)
	require.NoError(t, err)
	require.Len(t, res, 4)
	assert.Equal(t, 1, fl.calls)

	assert.True(t, res["r1"].Assigned)
	assert.Equal(t, uint32(1001), res["r1"].TaxId)
	assert.Equal(t, "A1", res["r1"].Accession)
	assert.Equal(t, speciesX, res["r1"].Lineage)
	assert.Equal(t, speciesX, res["r2"].Lineage)

	assert.True(t, res["r3"].Assigned)
	assert.True(t, res["r3"].Lineage.Empty())

	assert.False(t, res["r4"].Assigned)
	assert.Equal(t, uint32(0), res["r4"].TaxId)
	assert.True(t, res["r4"].Lineage.Empty())

	fl.err = fmt.Errorf("taxonomy data not found")
	_, err = c.Classify(context.Background(), hits)
	assert.Error(t, err)

	fl.calls = 0
	res, err = c.Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, res, 0)
	assert.Equal(t, 0, fl.calls)
}

func writePAF(t *testing.T, lines ...string) string {
	file := filepath.Join(t.TempDir(), "reads.paf")
	require.NoError(t, os.WriteFile(file, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return file
}

func TestPipeline(t *testing.T) {
	file := writePAF(t,
		line("s1.r1", "A1.1", 150, 150, 150, true),
		line("s1.r2", "A1.1", 150, 150, 150, true),
		line("s1.r2", "A2.1", 150, 140, 150, false),
		line("s2.r1", "A2.1", 150, 100, 100, true),
	)
	p := &Pipeline{
		Classifier: &Classifier{
			Accessions: acc2taxid.MapResolver{"A1": 1001},
			Lineages:   &fakeLineages{lineages: map[uint32]lineage.Lineage{1001: speciesX}},
		},
		Reassigner: &Reassigner{Seed: 1, Threads: 2},
	}
	res, err := p.Run(context.Background(), file)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Records)
	assert.Equal(t, 2, res.Passed)
	assert.Len(t, res.Best, 2)
	assert.Equal(t, []string{"A1.1"}, res.Best["s1.r1"].Targets)
	assert.Equal(t, []string{"A1.1"}, res.Best["s1.r2"].Targets)
	assert.Equal(t, "A1.1", res.Reassigned["s1.r1"].Target)
	assert.Equal(t, "A1.1", res.Reassigned["s1.r2"].Target)
	assert.Equal(t, speciesX, res.Hits["s1.r2"].Lineage)

	groups := GroupBySample(res.Hits)
	assert.Len(t, groups, 1)
	assert.Len(t, groups["s1"], 2)
	assert.Equal(t, []string{"s1.r1", "s1.r2"}, SortedReads(res.Hits))
	assert.Equal(t, []lineage.Lineage{speciesX, speciesX}, Lineages(res.Hits))
}

func TestPipelineEmptyAndMalformed(t *testing.T) {
	p := &Pipeline{Classifier: &Classifier{
		Accessions: acc2taxid.MapResolver{},
		Lineages:   &fakeLineages{},
	}}

	file := filepath.Join(t.TempDir(), "empty.paf")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	res, err := p.Run(context.Background(), file)
	require.NoError(t, err)
	assert.Len(t, res.Best, 0)
	assert.Len(t, res.Reassigned, 0)
	assert.Len(t, res.Hits, 0)

	file = writePAF(t, line("r1", "A1", 150, 150, 150, true), "r2\t150\tx")
	_, err = p.Run(context.Background(), file)
	require.Error(t, err)
	var pe *paf.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
}

func TestSampleID(t *testing.T) {
	assert.Equal(t, "sample1", SampleID("sample1.read42"))
	assert.Equal(t, "read", SampleID("read"))
}

func TestExclude(t *testing.T) {
	hits := map[string]*ReadHit{
		"r1": {TaxId: 9606, Assigned: true},
		"r2": {TaxId: 562, Assigned: true},
		"r3": {},
	}
	kept, n := Exclude(hits, map[uint32]struct{}{9606: {}, 0: {}})
	assert.Equal(t, 1, n)
	assert.Len(t, kept, 2)
	assert.NotContains(t, kept, "r1")

	kept, n = Exclude(hits, nil)
	assert.Equal(t, 0, n)
	assert.Len(t, kept, 3)
}
