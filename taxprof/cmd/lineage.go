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
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
)

var lineageCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Query lineages of TaxIds at canonical ranks",
	Long: `Query lineages of TaxIds at canonical ranks

Only these ranks are kept:
  superkingdom, kingdom, phylum, class, order, family, genus, species

Input:
  TaxIds given by -t/--taxids, or files with one TaxId per line.

Output (tab-delimited):
  1. taxid
  2. lineage names, separated by ";"
  3. lineage TaxIds, separated by ";"
  4. lineage ranks, separated by ";"

With --list-subtree, TaxIds of the subtree of every TaxId are listed:
  1. taxid
  2. member TaxId

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
		listSubtree := getFlagBool(cmd, "list-subtree")

		taxids := getFlagTaxIds(cmd, "taxids")
		if len(taxids) == 0 || len(args) > 0 {
			files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
			for _, file := range files {
				_taxids, err := readTaxIds(file)
				checkError(err)
				taxids = append(taxids, _taxids...)
			}
		}
		if opt.Verbose {
			log.Infof("%d TaxIds given", len(taxids))
		}

		resolver := getLineageResolver(cmd, opt)

		outfh, err := newOutFile(outFile, opt.CompressionLevel)
		checkError(err)

		ctx := context.Background()

		if listSubtree {
			for _, taxid := range taxids {
				members, err := resolver.ListSubtreeMembers(ctx, taxid)
				if err != nil {
					outfh.Discard()
					checkError(err)
				}
				for _, m := range members {
					fmt.Fprintf(outfh, "%d\t%d\n", taxid, m)
				}
			}
			checkError(outfh.Close())
			return
		}

		lineages, err := resolver.ResolveLineages(ctx, taxids)
		if err != nil {
			outfh.Discard()
			checkError(err)
		}

		var names, _taxids, ranks string
		for _, taxid := range taxids {
			names, _taxids, ranks = lineages[taxid].Join(";")
			fmt.Fprintf(outfh, "%d\t%s\t%s\t%s\n", taxid, names, _taxids, ranks)
		}
		checkError(outfh.Close())
	},
}

// readTaxIds reads TaxIds from the first column of a file.
func readTaxIds(file string) ([]uint32, error) {
	if !isStdin(file) {
		fi, err := os.Stat(file)
		if err != nil {
			return nil, fmt.Errorf("fail to read %s: %s", file, err)
		}
		if fi.Size() == 0 {
			return nil, nil
		}
	}

	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, fmt.Errorf("fail to read %s: %s", file, err)
	}
	defer fh.Close()

	taxids := make([]uint32, 0, 1024)
	var line string
	var i int
	for {
		line, err = fh.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" && line[0] != '#' {
			if i = strings.IndexByte(line, '\t'); i >= 0 {
				line = line[:i]
			}
			taxid, e := strconv.ParseUint(line, 10, 32)
			if e != nil {
				return nil, fmt.Errorf("invalid TaxId in %s: %s", file, line)
			}
			taxids = append(taxids, uint32(taxid))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fail to read %s: %s", file, err)
		}
	}
	return taxids, nil
}

func init() {
	RootCmd.AddCommand(lineageCmd)

	lineageCmd.Flags().StringP("out-file", "o", "-", `out file ("-" for stdout, suffix .gz for gzipped out)`)
	lineageCmd.Flags().StringSliceP("taxids", "t", []string{}, `TaxIds, comma separated`)
	lineageCmd.Flags().BoolP("list-subtree", "", false, `list TaxIds of subtrees`)

	addTaxonomyFlags(lineageCmd)
}
