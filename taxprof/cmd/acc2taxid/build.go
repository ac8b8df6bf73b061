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

package acc2taxid

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shenwei356/breader"
)

type pair struct {
	key   string
	taxid uint32
}

// parseMappingLine parses a line of NCBI accession2taxid file
// (accession, accession.version, taxid, gi) or a two-column file (accession, taxid).
func parseMappingLine(line string) (interface{}, bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" || line[0] == '#' {
		return nil, false, nil
	}

	items := strings.Split(line, "\t")
	var acc, s string
	switch {
	case len(items) >= 3:
		acc, s = items[0], items[2]
	case len(items) == 2:
		acc, s = items[0], items[1]
	default:
		return nil, false, fmt.Errorf("invalid accession2taxid line: %q", line)
	}
	if acc == "accession" { // header row
		return nil, false, nil
	}

	taxid, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, false, fmt.Errorf("invalid TaxId: %q in line: %q", s, line)
	}
	key := Accession(acc)
	if key == "" {
		return nil, false, fmt.Errorf("empty accession in line: %q", line)
	}
	return pair{key: key, taxid: uint32(taxid)}, true, nil
}

// Build reads accession2taxid files and writes a table to outFile.
// Files are parsed in chunks of chunkSize lines by the given number of threads.
// The table is written to a temporary file first and renamed when finished.
func Build(files []string, outFile string, threads int, chunkSize int) (Header, error) {
	w := NewWriter()

	for _, file := range files {
		reader, err := breader.NewBufferedReader(file, threads, chunkSize, parseMappingLine)
		if err != nil {
			return w.Header, errors.Wrap(err, file)
		}

		var firstErr error
		var p pair
		for chunk := range reader.Ch { // drain all chunks to release the reader
			if firstErr != nil {
				continue
			}
			if chunk.Err != nil {
				firstErr = errors.Wrap(chunk.Err, file)
				continue
			}
			for _, data := range chunk.Data {
				p = data.(pair)
				if err = w.Add(p.key, p.taxid); err != nil {
					firstErr = errors.Wrap(err, file)
					break
				}
			}
		}
		if firstErr != nil {
			return w.Header, firstErr
		}
	}

	tmpFile := outFile + ".tmp"
	fh, err := os.Create(tmpFile)
	if err != nil {
		return w.Header, errors.Wrapf(err, "failed to write acc2taxid table file: %s", outFile)
	}
	if _, err = w.WriteTo(fh); err != nil {
		fh.Close()
		os.Remove(tmpFile)
		return w.Header, errors.Wrapf(err, "failed to write acc2taxid table file: %s", outFile)
	}
	if err = fh.Close(); err != nil {
		os.Remove(tmpFile)
		return w.Header, errors.Wrapf(err, "failed to write acc2taxid table file: %s", outFile)
	}
	if err = os.Rename(tmpFile, outFile); err != nil {
		return w.Header, errors.Wrapf(err, "failed to write acc2taxid table file: %s", outFile)
	}

	return w.Header, nil
}
