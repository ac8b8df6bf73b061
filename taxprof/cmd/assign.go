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

package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/taxprof/taxprof/cmd/assign"
	"github.com/spf13/cobra"
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign reads to taxa from read alignments",
	Long: `Assign reads to taxa from read alignments

Steps:
  1. Alignments (PAF format) that are not primary (tp:A:P) or cover
     less than 90% of the read are filtered out.
  2. For every read, targets with the highest identity (nmatch/alnlen)
     are kept.
  3. Reads with multiple best targets are reassigned to the target
     supported by the most reads. Ties are broken randomly, and the
     result is reproducible with the same --seed.
  4. Targets are mapped to TaxIds with the accession-to-TaxId database
     (version suffixes of target names are removed), and TaxIds to
     lineages.

Output (tab-delimited, sorted by read):
  1. read
  2. sample, the part of the read before the first "."
  3. target
  4. pident
  5. number of best targets before reassignment
  6. taxid, empty for unassigned reads
  7. lineage names, separated by ";"
  8. lineage TaxIds, separated by ";"
  9. lineage ranks, separated by ";"

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		outFile := getFlagString(cmd, "out-file")
		seed := getFlagUint64(cmd, "seed")
		noHeader := getFlagBool(cmd, "no-header-row")

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		if len(files) > 1 {
			checkError(fmt.Errorf("only one input file is allowed, use \"taxprof profile\" for multiple files"))
		}
		file := files[0]
		if opt.Verbose {
			if isStdin(file) {
				log.Info("no files given, reading from stdin")
			}
		}

		accessions, closer := getAccessionResolver(cmd, opt)
		defer closer.Close()
		resolver := getLineageResolver(cmd, opt)

		p := &assign.Pipeline{
			Classifier: &assign.Classifier{Accessions: accessions, Lineages: resolver},
			Reassigner: &assign.Reassigner{Seed: seed, Threads: opt.NumCPUs},
		}

		if opt.Verbose {
			log.Infof("processing file: %s", file)
		}
		res, err := p.Run(context.Background(), file)
		checkError(err)
		if opt.Verbose {
			logResult(res)
		}

		outfh, err := newOutFile(outFile, opt.CompressionLevel)
		checkError(err)

		if !noHeader {
			outfh.WriteString("read\tsample\ttarget\tpident\ttargets\ttaxid\tlineage\tlineage_taxids\tlineage_ranks\n")
		}
		var h *assign.ReadHit
		var taxid, names, taxids, ranks string
		for _, read := range assign.SortedReads(res.Hits) {
			h = res.Hits[read]
			taxid = ""
			if h.Assigned {
				taxid = strconv.FormatUint(uint64(h.TaxId), 10)
			}
			names, taxids, ranks = h.Lineage.Join(";")
			fmt.Fprintf(outfh, "%s\t%s\t%s\t%.6f\t%d\t%s\t%s\t%s\t%s\n",
				read, assign.SampleID(read), h.Target, h.PIdent,
				len(res.Best[read].Targets), taxid, names, taxids, ranks)
		}
		checkError(outfh.Close())
	},
}

func logResult(res *assign.Result) {
	var multi, unassigned int
	for _, b := range res.Best {
		if len(b.Targets) > 1 {
			multi++
		}
	}
	for _, h := range res.Hits {
		if !h.Assigned {
			unassigned++
		}
	}
	log.Infof("  %s alignments, %s passed the filter", humanize.Comma(int64(res.Records)), humanize.Comma(int64(res.Passed)))
	log.Infof("  %s reads, %s with multiple best targets", humanize.Comma(int64(len(res.Best))), humanize.Comma(int64(multi)))
	log.Infof("  %s reads unassigned", humanize.Comma(int64(unassigned)))
}

func init() {
	RootCmd.AddCommand(assignCmd)

	assignCmd.Flags().StringP("out-file", "o", "-", `out file ("-" for stdout, suffix .gz for gzipped out)`)
	assignCmd.Flags().Uint64P("seed", "s", 1, `seed for breaking ties of multi-mapping reads`)
	assignCmd.Flags().BoolP("no-header-row", "H", false, `do not print header row`)

	addAccessionFlags(assignCmd)
	addTaxonomyFlags(assignCmd)
}
