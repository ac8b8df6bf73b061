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
	"os"
	"path/filepath"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/taxprof/taxprof/cmd/acc2taxid"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build an accession-to-TaxId database",
	Long: `Build an accession-to-TaxId database

Input:
  1. NCBI accession2taxid files (nucl_gb.accession2taxid.gz etc.),
     with 4 columns: accession, accession.version, taxid, gi.
  2. Or tabular two-column files: accession, taxid.
     Version suffixes of accessions are removed.

Output:
  A directory with a memory-mapped hash table (acc2taxid.bin) and
  a meta data file (__db.yml).
  For duplicated accessions, the last one wins.

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

		outDir := getFlagString(cmd, "out-dir")
		force := getFlagBool(cmd, "force")
		alias := getFlagString(cmd, "alias")
		chunkSize := getFlagPositiveInt(cmd, "chunk-size")

		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir needed"))
		}

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		if opt.Verbose {
			if len(files) == 1 && isStdin(files[0]) {
				log.Info("no files given, reading from stdin")
			} else {
				log.Infof("%d input file(s) given", len(files))
			}
		}

		if alias == "" {
			alias = filepath.Base(filepath.Clean(outDir))
		}

		makeOutDir(outDir, force)

		if opt.Verbose {
			log.Infof("building database from %d file(s) ...", len(files))
		}
		info, err := acc2taxid.BuildDB(files, outDir, alias, opt.NumCPUs, chunkSize)
		checkError(err)

		if opt.Verbose {
			log.Infof("%s accessions saved to database: %s", humanize.Comma(int64(info.NumKeys)), outDir)
		}
	},
}

func init() {
	RootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringP("out-dir", "O", "", `output directory`)
	indexCmd.Flags().BoolP("force", "", false, `overwrite output directory`)
	indexCmd.Flags().StringP("alias", "a", "", `database alias/name, default: basename of --out-dir`)
	indexCmd.Flags().IntP("chunk-size", "", 100000, `number of lines of a chunk for parallel parsing`)
}
