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
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// NumFixedFields is the number of mandatory columns of a PAF line.
const NumFixedFields = 12

// ErrInvalidFormat means a line does not follow the PAF format.
var ErrInvalidFormat = errors.New("paf: invalid format")

// TagType is the value type of an optional tag.
type TagType uint8

const (
	// TagInt is for tags of type "i".
	TagInt TagType = iota
	// TagString is for all other types, which are kept verbatim.
	TagString
)

// Tag is an optional field in the form of key:type:value.
// Only one of Int and Str is meaningful, depending on Type.
type Tag struct {
	Type TagType
	Int  int64
	Str  string
}

func (t Tag) String() string {
	if t.Type == TagInt {
		return strconv.FormatInt(t.Int, 10)
	}
	return t.Str
}

// Record is one alignment in PAF format.
type Record struct {
	QName  string
	QLen   int
	QStart int
	QEnd   int
	Strand byte

	TName  string
	TLen   int
	TStart int
	TEnd   int

	NMatch int // number of residue matches
	AlnLen int // alignment block length
	MapQ   int

	PIdent float64 // NMatch / AlnLen

	Tags map[string]Tag
}

// Tag returns the optional tag of the given key.
func (r *Record) Tag(key string) (Tag, bool) {
	t, ok := r.Tags[key]
	return t, ok
}

// IsPrimary tells whether the aligner flagged the record as a primary alignment (tp:A:P).
func (r *Record) IsPrimary() bool {
	t, ok := r.Tags["tp"]
	return ok && t.Type == TagString && t.Str == "P"
}

// QueryCoverage is the proportion of the query covered by the alignment block.
func (r *Record) QueryCoverage() float64 {
	if r.QLen == 0 {
		return 0
	}
	return float64(r.AlnLen) / float64(r.QLen)
}

func (r *Record) String() string {
	return fmt.Sprintf("%s(%d) -> %s(%d): %d/%d", r.QName, r.QLen, r.TName, r.TLen, r.NMatch, r.AlnLen)
}

// ParseError reports a malformed PAF line.
type ParseError struct {
	File string
	Line int // 1-based, 0 for a standalone line
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	var where string
	switch {
	case e.File != "" && e.Line > 0:
		where = fmt.Sprintf("%s:%d: ", e.File, e.Line)
	case e.Line > 0:
		where = fmt.Sprintf("line %d: ", e.Line)
	}
	if e.Err != nil {
		return fmt.Sprintf("paf: %s%s: %s", where, e.Msg, e.Err)
	}
	return fmt.Sprintf("paf: %s%s", where, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseLine parses one PAF line.
func ParseLine(line string) (*Record, error) {
	r, err := parseLine(line)
	if err != nil {
		return nil, &ParseError{Msg: err.Error(), Err: ErrInvalidFormat}
	}
	return r, nil
}

func parseLine(line string) (*Record, error) {
	line = strings.TrimRight(line, "\r\n")
	items := strings.Split(line, "\t")
	if len(items) < NumFixedFields {
		return nil, fmt.Errorf("%d fields found, at least %d needed", len(items), NumFixedFields)
	}

	r := &Record{QName: items[0], TName: items[5]}

	var err error
	ints := [...]struct {
		name string
		col  int
		v    *int
	}{
		{"qlen", 1, &r.QLen},
		{"qstart", 2, &r.QStart},
		{"qend", 3, &r.QEnd},
		{"tlen", 6, &r.TLen},
		{"tstart", 7, &r.TStart},
		{"tend", 8, &r.TEnd},
		{"nmatch", 9, &r.NMatch},
		{"alnlen", 10, &r.AlnLen},
		{"mapq", 11, &r.MapQ},
	}
	for _, f := range ints {
		*f.v, err = strconv.Atoi(items[f.col])
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %q", f.name, items[f.col])
		}
	}

	if len(items[4]) != 1 || (items[4][0] != '+' && items[4][0] != '-') {
		return nil, fmt.Errorf("invalid strand: %q", items[4])
	}
	r.Strand = items[4][0]

	if r.AlnLen <= 0 {
		return nil, fmt.Errorf("invalid alnlen: %d", r.AlnLen)
	}
	r.PIdent = float64(r.NMatch) / float64(r.AlnLen)

	if len(items) > NumFixedFields {
		r.Tags = make(map[string]Tag, len(items)-NumFixedFields)
		for _, item := range items[NumFixedFields:] {
			key, tag, err := parseTag(item)
			if err != nil {
				return nil, err
			}
			r.Tags[key] = tag
		}
	}

	return r, nil
}

func parseTag(s string) (string, Tag, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 3 || parts[0] == "" {
		return "", Tag{}, fmt.Errorf("invalid tag: %q", s)
	}
	if parts[1] == "i" {
		v, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return "", Tag{}, fmt.Errorf("invalid integer tag: %q", s)
		}
		return parts[0], Tag{Type: TagInt, Int: v}, nil
	}
	return parts[0], Tag{Type: TagString, Str: parts[2]}, nil
}
