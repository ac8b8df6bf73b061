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
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/taxprof/taxprof/cmd/acc2taxid"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
	prettytable "github.com/tatsushid/go-prettytable"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print information of accession-to-TaxId databases",
	Long: `Print information of accession-to-TaxId databases

Input can be database directories or bare table files.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		outFile := getFlagString(cmd, "out-file")
		tabular := getFlagBool(cmd, "tabular")

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		if len(files) == 1 && isStdin(files[0]) {
			checkError(fmt.Errorf("no database given"))
		}

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(strings.ToLower(outFile), ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		type dbStat struct {
			path    string
			alias   string
			version string
			keys    int
			slots   uint64
			size    int64
			sources int
		}
		stats := make([]dbStat, 0, len(files))

		for _, path := range files {
			s := dbStat{path: path, alias: "-"}

			isDir, err := pathutil.DirExists(path)
			checkError(err)
			if isDir {
				info, err := acc2taxid.DBInfoFromFile(filepath.Join(path, acc2taxid.DBInfoFile))
				checkError(err)
				s.alias = info.Alias
				s.sources = len(info.Sources)
			}

			t, err := acc2taxid.OpenDB(path)
			checkError(err)
			s.version = fmt.Sprintf("v%d", t.Version)
			s.keys = t.Len()
			s.slots = t.NumSlots
			fi, err := os.Stat(t.Path)
			checkError(err)
			s.size = fi.Size()
			checkError(t.Close())

			stats = append(stats, s)
		}

		if tabular {
			outfh.WriteString("path\talias\tversion\tkeys\tslots\tsize\tsources\n")
			for _, s := range stats {
				outfh.WriteString(strings.Join([]string{
					s.path, s.alias, s.version,
					humanize.Comma(int64(s.keys)),
					humanize.Comma(int64(s.slots)),
					humanize.Bytes(uint64(s.size)),
					humanize.Comma(int64(s.sources)),
				}, "\t") + "\n")
			}
			return
		}

		columns := []prettytable.Column{
			{Header: "path"},
			{Header: "alias"},
			{Header: "version", AlignRight: true},
			{Header: "keys", AlignRight: true},
			{Header: "slots", AlignRight: true},
			{Header: "size", AlignRight: true},
			{Header: "sources", AlignRight: true},
		}
		tbl, err := prettytable.NewTable(columns...)
		checkError(err)
		tbl.Separator = "  "

		for _, s := range stats {
			tbl.AddRow(
				s.path,
				s.alias,
				s.version,
				humanize.Comma(int64(s.keys)),
				humanize.Comma(int64(s.slots)),
				humanize.Bytes(uint64(s.size)),
				s.sources,
			)
		}
		outfh.Write(tbl.Bytes())
	},
}

func init() {
	RootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringP("out-file", "o", "-", `out file ("-" for stdout)`)
	infoCmd.Flags().BoolP("tabular", "T", false, `output in machine-friendly tabular format`)
}
