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
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/taxprof/taxprof/cmd/abundance"
	"github.com/shenwei356/taxprof/taxprof/cmd/assign"
	"github.com/shenwei356/taxprof/taxprof/cmd/lineage"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Compute taxonomic profiles from read alignments",
	Long: `Compute taxonomic profiles from read alignments

Reads are assigned to taxa in the same way as "taxprof assign", then the
abundance of every taxon at each rank is computed:

  rate = hits / total * 1000000

where total is the number of reads having a taxon at the rank. Reads
without a taxon at the rank are ignored.

Multiple input files (samples) are processed in parallel, and a profile
file is written for each one: <out-dir>/<file name without .paf[.gz]>.profile.tsv.
With --split-samples, reads of a file are split by sample IDs, i.e., the
parts of read IDs before the first ".", and one profile is written for each
sample: <out-dir>/<file name>.<sample>.profile.tsv.

Reads of taxa in subtrees of -e/--exclude-taxids (e.g., host 9606) are
removed before computing the abundance.

Output (tab-delimited, ordered by rate for each rank):
  1. rank
  2. key, TaxId or name, decided by -k/--key-by
  3. name
  4. taxid
  5. hits
  6. rate, reads per million
  7. lineage names, separated by ";"
  8. lineage TaxIds, separated by ";"

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
		ranks := getFlagStringSlice(cmd, "ranks")
		keyBy, err := abundance.ParseKeyBy(getFlagString(cmd, "key-by"))
		checkError(err)
		seed := getFlagUint64(cmd, "seed")
		excludeTaxids := getFlagTaxIds(cmd, "exclude-taxids")
		splitSamples := getFlagBool(cmd, "split-samples")
		gzipped := getFlagBool(cmd, "gzip")
		inDir := getFlagString(cmd, "in-dir")
		reFileStr := getFlagString(cmd, "file-regexp")

		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir needed"))
		}
		if len(ranks) == 0 {
			checkError(fmt.Errorf("flag -r/--ranks needed"))
		}
		for _, rank := range ranks {
			if !lineage.IsCanonicalRank(rank) {
				checkError(fmt.Errorf("invalid rank: %s, available: %s", rank, strings.Join(lineage.Ranks, ", ")))
			}
		}

		// ---------------------------------------------------------------
		// input files

		var files []string
		if inDir != "" {
			reFile, err := regexp.Compile("(?i)" + reFileStr)
			checkError(err)
			files, err = getFileListFromDir(inDir, reFile, opt.NumCPUs)
			checkError(err)
			if len(args) > 0 {
				files = append(files, getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)...)
			}
		} else {
			files = getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		}
		if len(files) == 0 {
			checkError(fmt.Errorf("no input files given"))
		}
		if opt.Verbose {
			if len(files) == 1 && isStdin(files[0]) {
				log.Info("no files given, reading from stdin")
			} else {
				log.Infof("%d input file(s) given", len(files))
			}
		}

		names := make(map[string]string, len(files))
		for _, file := range files {
			name := "stdin"
			if !isStdin(file) {
				name = filepathTrimExtension(file)
			}
			if f, ok := names[name]; ok {
				checkError(fmt.Errorf("files with the same name: %s, %s", f, file))
			}
			names[name] = file
		}

		makeOutDir(outDir, force)

		// ---------------------------------------------------------------
		// resolvers

		accessions, closer := getAccessionResolver(cmd, opt)
		defer closer.Close()
		resolver := getLineageResolver(cmd, opt)

		ctx := context.Background()

		exclude := make(map[uint32]struct{}, 1024)
		for _, taxid := range excludeTaxids {
			members, err := resolver.ListSubtreeMembers(ctx, taxid)
			checkError(err)
			for _, m := range members {
				exclude[m] = struct{}{}
			}
		}
		if opt.Verbose && len(excludeTaxids) > 0 {
			log.Infof("%s TaxIds in subtrees of %d TaxId(s) to exclude",
				humanize.Comma(int64(len(exclude))), len(excludeTaxids))
		}

		p := &assign.Pipeline{
			Classifier: &assign.Classifier{Accessions: accessions, Lineages: resolver},
			Reassigner: &assign.Reassigner{Seed: seed, Threads: opt.NumCPUs},
		}

		suffix := ".profile.tsv"
		if gzipped {
			suffix += ".gz"
		}

		// ---------------------------------------------------------------
		// process files

		showProgress := opt.Verbose && len(files) > 1

		var pbs *mpb.Progress
		var bar *mpb.Bar
		var chDuration chan time.Duration
		var doneDuration chan int
		if showProgress {
			pbs = mpb.New(mpb.WithWidth(79), mpb.WithOutput(os.Stderr))
			bar = pbs.AddBar(int64(len(files)),
				mpb.BarStyle("[=>-]<+"),
				mpb.PrependDecorators(
					decor.Name("processed files: ", decor.WC{W: len("processed files: "), C: decor.DidentRight}),
					decor.Name("", decor.WCSyncSpaceR),
					decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
				),
				mpb.AppendDecorators(
					decor.EwmaETA(decor.ET_STYLE_GO, 60),
				),
			)

			chDuration = make(chan time.Duration, opt.NumCPUs)
			doneDuration = make(chan int)
			go func() {
				for t := range chDuration {
					bar.Increment()
					bar.DecoratorEwmaUpdate(t)
				}
				doneDuration <- 1
			}()
		}

		var wg sync.WaitGroup
		tokens := make(chan int, opt.NumCPUs)
		var mu sync.Mutex
		var nReads, nExcluded int

		for _, file := range files {
			tokens <- 1
			wg.Add(1)

			go func(file string) {
				startTime := time.Now()
				defer func() {
					wg.Done()
					<-tokens

					if showProgress {
						chDuration <- time.Since(startTime)
					}
				}()

				res, err := p.Run(ctx, file)
				checkError(err)

				hits, n := assign.Exclude(res.Hits, exclude)

				mu.Lock()
				nReads += len(res.Hits)
				nExcluded += n
				mu.Unlock()

				name := "stdin"
				if !isStdin(file) {
					name = filepathTrimExtension(file)
				}

				if !splitSamples {
					checkError(writeProfiles(filepath.Join(outDir, name+suffix), hits, ranks, keyBy, opt))
				} else {
					for sample, group := range assign.GroupBySample(hits) {
						checkError(writeProfiles(filepath.Join(outDir, name+"."+sample+suffix), group, ranks, keyBy, opt))
					}
				}

				if opt.Verbose && !showProgress {
					log.Infof("processed file: %s", file)
					logResult(res)
				}
			}(file)
		}
		wg.Wait()

		if showProgress {
			close(chDuration)
			<-doneDuration
			pbs.Wait()
		}

		if opt.Verbose {
			log.Infof("%s reads assigned", humanize.Comma(int64(nReads)))
			if len(excludeTaxids) > 0 {
				log.Infof("%s reads excluded", humanize.Comma(int64(nExcluded)))
			}
			log.Infof("profiles saved to: %s", outDir)
		}
	},
}

// writeProfiles computes profiles of the hits at the ranks and writes them to a file.
func writeProfiles(file string, hits map[string]*assign.ReadHit, ranks []string, keyBy abundance.KeyBy, opt *Options) error {
	profiles, err := abundance.ComputeRanks(assign.Lineages(hits), ranks, keyBy)
	if err != nil {
		return err
	}

	outfh, err := newOutFile(file, opt.CompressionLevel)
	if err != nil {
		return err
	}

	outfh.WriteString("rank\tkey\tname\ttaxid\thits\trate\tlineage\tlineage_taxids\n")
	var names, taxids string
	for _, p := range profiles {
		for _, t := range p.Taxa {
			names, taxids, _ = t.Lineage.Join(";")
			fmt.Fprintf(outfh, "%s\t%s\t%s\t%s\t%d\t%.6f\t%s\t%s\n",
				p.Rank, t.Key, t.Taxon.Name, t.Taxon.TaxId, t.Hits, t.Rate, names, taxids)
		}
	}
	return outfh.Close()
}

func init() {
	RootCmd.AddCommand(profileCmd)

	profileCmd.Flags().StringP("out-dir", "O", "", `output directory`)
	profileCmd.Flags().BoolP("force", "", false, `overwrite output directory`)
	profileCmd.Flags().BoolP("gzip", "z", false, `gzip output files`)
	profileCmd.Flags().StringP("in-dir", "I", "", `directory containing PAF files, directory symlinks are followed`)
	profileCmd.Flags().StringP("file-regexp", "r", `\.paf(\.gz|\.xz|\.zst)?$`, `regular expression for matching PAF files in -I/--in-dir, case ignored`)

	profileCmd.Flags().StringSliceP("ranks", "R", lineage.Ranks, `ranks to compute abundance at`)
	profileCmd.Flags().StringP("key-by", "k", "taxid", `identify taxa by "taxid" or "name"`)
	profileCmd.Flags().Uint64P("seed", "s", 1, `seed for breaking ties of multi-mapping reads`)
	profileCmd.Flags().StringSliceP("exclude-taxids", "e", []string{}, `exclude reads of taxa in subtrees of these TaxIds, e.g., 9606 for human reads`)
	profileCmd.Flags().BoolP("split-samples", "S", false, `split reads by sample IDs (prefixes of read IDs before the first ".")`)

	addAccessionFlags(profileCmd)
	addTaxonomyFlags(profileCmd)
}
