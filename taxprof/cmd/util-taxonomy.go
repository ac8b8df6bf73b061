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
	"fmt"
	"io"

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/taxprof/taxprof/cmd/acc2taxid"
	"github.com/shenwei356/taxprof/taxprof/cmd/lineage"
	"github.com/spf13/cobra"
)

func addAccessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("db", "d", "", `accession-to-TaxId database directory or table file created by "taxprof index"`)
	cmd.Flags().StringSliceP("taxid-map", "T", []string{}, `tabular two-column files mapping reference IDs to TaxIds, used when -d/--db is not given`)
}

func addTaxonomyFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("taxdump", "X", "", `directory of NCBI taxonomy dump files: names.dmp, nodes.dmp, optional with merged.dmp and delnodes.dmp. If not given, taxonkit is called`)
	cmd.Flags().StringP("taxonkit", "", "taxonkit", `path of taxonkit`)
	cmd.Flags().StringP("data-dir", "", lineage.DefaultDataDir, `data directory of taxonkit`)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// getAccessionResolver opens the database, or loads mapping files.
func getAccessionResolver(cmd *cobra.Command, opt *Options) (acc2taxid.Resolver, io.Closer) {
	dbPath := getFlagString(cmd, "db")
	mapFiles := getFlagStringSlice(cmd, "taxid-map")

	if dbPath != "" {
		if opt.Verbose {
			log.Infof("opening accession-to-TaxId database: %s", dbPath)
		}
		t, err := acc2taxid.OpenDB(dbPath)
		checkError(err)
		if opt.Verbose {
			log.Infof("  %s accessions", humanize.Comma(int64(t.Len())))
		}
		return t, t
	}

	if len(mapFiles) == 0 {
		checkError(fmt.Errorf("flag -d/--db or -T/--taxid-map needed"))
	}
	if opt.Verbose {
		log.Infof("loading TaxId mapping file(s): %d", len(mapFiles))
	}
	m, err := acc2taxid.LoadMapResolver(mapFiles...)
	checkError(err)
	if opt.Verbose {
		log.Infof("  %s accessions", humanize.Comma(int64(len(m))))
	}
	return m, nopCloser{}
}

// getLineageResolver loads the taxonomy dump files in process if
// -X/--taxdump is given, or calls taxonkit.
func getLineageResolver(cmd *cobra.Command, opt *Options) lineage.Resolver {
	dir := getFlagString(cmd, "taxdump")
	if dir != "" {
		if opt.Verbose {
			log.Infof("loading Taxonomy from: %s", dir)
		}
		t, err := lineage.LoadTaxdump(dir)
		checkError(err)
		if opt.Verbose {
			log.Infof("  %s nodes and %s names loaded",
				humanize.Comma(int64(len(t.Nodes))), humanize.Comma(int64(len(t.Names))))
		}
		return t
	}

	t, err := lineage.NewTaxonKit(getFlagString(cmd, "taxonkit"), getFlagString(cmd, "data-dir"))
	checkError(err)
	if opt.Verbose {
		log.Infof("lineages will be resolved with %s (data directory: %s)", t.Bin, t.DataDir)
	}
	return t
}
