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

package paf

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
)

// Reader reads PAF records from a (gzipped) file, one line at a time.
// A Reader is forward-only; open a new one to read the file again.
type Reader struct {
	file string
	fh   *xopen.Reader
	line int
	err  error
}

// NewReader opens a PAF file, "-" for stdin.
func NewReader(file string) (*Reader, error) {
	if file != "-" {
		info, err := os.Stat(file)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read PAF file: %s", file)
		}
		if info.Size() == 0 {
			return &Reader{file: file, err: io.EOF}, nil
		}
	}

	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read PAF file: %s", file)
	}
	return &Reader{file: file, fh: fh}, nil
}

// Next returns the next record, or io.EOF when the file is exhausted.
// Reading stops at the first malformed line, which is returned as a *ParseError.
func (r *Reader) Next() (*Record, error) {
	if r.err != nil {
		return nil, r.err
	}

	var line string
	var err error
	for {
		line, err = r.fh.ReadString('\n')
		if err != nil && err != io.EOF {
			r.err = errors.Wrapf(err, "failed to read PAF file: %s", r.file)
			return nil, r.err
		}
		if line == "" && err == io.EOF {
			r.err = io.EOF
			return nil, io.EOF
		}
		r.line++

		if len(line) > 0 && line[len(line)-1] == '\n' {
			line = line[:len(line)-1]
		}
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if line != "" {
			break
		}
		if err == io.EOF {
			r.err = io.EOF
			return nil, io.EOF
		}
	}

	rec, perr := parseLine(line)
	if perr != nil {
		r.err = &ParseError{File: r.file, Line: r.line, Msg: perr.Error(), Err: ErrInvalidFormat}
		return nil, r.err
	}
	if err == io.EOF { // last line without newline
		r.err = io.EOF
	}
	return rec, nil
}

// Line returns the number of lines read so far.
func (r *Reader) Line() int { return r.line }

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.fh == nil {
		return nil
	}
	return r.fh.Close()
}

// ForEach calls fn for every record of the file, in file order.
// Each call reads the file from the beginning.
func ForEach(file string, fn func(*Record) error) error {
	r, err := NewReader(file)
	if err != nil {
		return err
	}
	defer r.Close()

	var rec *Record
	for {
		rec, err = r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err = fn(rec); err != nil {
			return err
		}
	}
}

// ReadAll reads all records of a file.
func ReadAll(file string) ([]*Record, error) {
	records := make([]*Record, 0, 1024)
	err := ForEach(file, func(r *Record) error {
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
