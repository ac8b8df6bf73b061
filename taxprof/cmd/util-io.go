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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gzip "github.com/klauspost/pgzip"
)

// BufferSize is size of buffer
var BufferSize = 65536 //os.Getpagesize()

func outStream(file string, gzipped bool, level int) (*bufio.Writer, io.WriteCloser, *os.File, error) {
	var w *os.File
	if file == "-" {
		w = os.Stdout
	} else {
		dir := filepath.Dir(file)
		fi, err := os.Stat(dir)
		if err == nil && !fi.IsDir() {
			return nil, nil, nil, fmt.Errorf("can not write file into a non-directory path: %s", dir)
		}
		if os.IsNotExist(err) {
			os.MkdirAll(dir, 0755)
		}

		w, err = os.Create(file)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("fail to write %s: %s", file, err)
		}
	}

	if gzipped {
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("fail to write %s: %s", file, err)
		}
		return bufio.NewWriterSize(gw, BufferSize), gw, w, nil
	}
	return bufio.NewWriterSize(w, BufferSize), nil, w, nil
}

// outFile is an output written to a temporary file first,
// which is renamed to the final name on Close.
type outFile struct {
	*bufio.Writer
	gw io.WriteCloser
	w  *os.File

	file string
	tmp  string
}

// newOutFile creates an output file, gzipped if the name ends with ".gz".
// "-" means stdout.
func newOutFile(file string, level int) (*outFile, error) {
	gzipped := strings.HasSuffix(strings.ToLower(file), ".gz")
	o := &outFile{file: file, tmp: file}
	if !isStdout(file) {
		o.tmp = file + ".tmp"
	}

	var err error
	o.Writer, o.gw, o.w, err = outStream(o.tmp, gzipped, level)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Close flushes and closes the file, and renames it.
func (o *outFile) Close() error {
	if err := o.Flush(); err != nil {
		return fmt.Errorf("fail to write %s: %s", o.file, err)
	}
	if o.gw != nil {
		if err := o.gw.Close(); err != nil {
			return fmt.Errorf("fail to write %s: %s", o.file, err)
		}
	}
	if isStdout(o.file) {
		return nil
	}
	if err := o.w.Close(); err != nil {
		return fmt.Errorf("fail to write %s: %s", o.file, err)
	}
	return os.Rename(o.tmp, o.file)
}

// Discard closes and removes the temporary file.
func (o *outFile) Discard() {
	if o.gw != nil {
		o.gw.Close()
	}
	if isStdout(o.file) {
		return
	}
	o.w.Close()
	os.Remove(o.tmp)
}
