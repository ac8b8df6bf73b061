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
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/cliutil"
	"github.com/zeebo/xxh3"
)

// Resolver maps a reference name to a TaxId.
// A miss is not an error, the read is just left unassigned.
type Resolver interface {
	Resolve(name string) (uint32, bool)
}

// Accession returns the reference name with the version suffix stripped,
// i.e., everything from the first ".".
func Accession(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

// Table is a memory-mapped accession-to-TaxId table.
// It is read-only and safe for concurrent use.
type Table struct {
	Header
	Path string

	fh   *os.File
	data mmap.MMap

	mask  uint64
	slots []byte
	blob  []byte
}

func (t *Table) String() string {
	return fmt.Sprintf("%s: %s", t.Path, t.Header.String())
}

// Open maps a table file into memory.
func Open(file string) (*Table, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open acc2taxid table file: %s", file)
	}

	info, err := fh.Stat()
	if err != nil {
		fh.Close()
		return nil, errors.Wrapf(err, "failed to stat acc2taxid table file: %s", file)
	}
	if info.Size() < headerSize {
		fh.Close()
		return nil, ErrTruncatedTableFile
	}

	data, err := mmap.Map(fh, mmap.RDONLY, 0)
	if err != nil {
		fh.Close()
		return nil, errors.Wrapf(err, "failed to map acc2taxid table file: %s", file)
	}

	t := &Table{Path: file, fh: fh, data: data}
	if err = t.parseHeader(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *Table) parseHeader() error {
	data := []byte(t.data)
	if !bytes.Equal(data[:8], Magic[:]) {
		return ErrInvalidTableFormat
	}

	t.Version = data[8]
	if t.Version != Version {
		return ErrVersionMismatch
	}

	t.NumKeys = be.Uint64(data[12:20])
	t.NumSlots = be.Uint64(data[20:28])
	t.BlobSize = be.Uint64(data[28:36])

	if t.NumSlots == 0 || t.NumSlots&(t.NumSlots-1) != 0 || t.NumKeys >= t.NumSlots {
		return ErrInvalidTableFormat
	}
	end := headerSize + t.NumSlots*slotSize
	if uint64(len(data)) != end+t.BlobSize {
		return ErrTruncatedTableFile
	}

	t.mask = t.NumSlots - 1
	t.slots = data[headerSize:end]
	t.blob = data[end:]
	return nil
}

// Lookup returns the TaxId of an accession.
func (t *Table) Lookup(key string) (uint32, bool) {
	j := xxh3.HashString(key) & t.mask
	var s []byte
	var off, l uint64
	for i := uint64(0); i < t.NumSlots; i++ {
		s = t.slots[j*slotSize : j*slotSize+slotSize]
		off = be.Uint64(s[0:8])
		if off == 0 {
			return 0, false
		}
		l = uint64(be.Uint32(s[12:16]))
		if l == uint64(len(key)) && string(t.blob[off-1:off-1+l]) == key {
			return be.Uint32(s[8:12]), true
		}
		j = (j + 1) & t.mask
	}
	return 0, false
}

// Resolve looks up the accession of a reference name.
func (t *Table) Resolve(name string) (uint32, bool) {
	return t.Lookup(Accession(name))
}

// Len returns the number of keys.
func (t *Table) Len() int { return int(t.NumKeys) }

// Close unmaps and closes the file.
func (t *Table) Close() error {
	if t.data != nil {
		if err := t.data.Unmap(); err != nil {
			return err
		}
		t.data = nil
	}
	return t.fh.Close()
}

// ------------------------------------------------------------------------

// MapResolver is an in-memory resolver for small reference sets.
type MapResolver map[string]uint32

// LoadMapResolver reads tabular two-column files mapping reference IDs to TaxIds.
// Keys are stored as accessions, the later files override the former ones.
func LoadMapResolver(files ...string) (MapResolver, error) {
	m := make(MapResolver, 1024)
	var taxid uint64
	for _, file := range files {
		kvs, err := cliutil.ReadKVs(file, false)
		if err != nil {
			return nil, errors.Wrap(err, file)
		}
		for k, v := range kvs {
			taxid, err = strconv.ParseUint(v, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid TaxId: %s", v)
			}
			m[Accession(k)] = uint32(taxid)
		}
	}
	return m, nil
}

// Resolve looks up the accession of a reference name.
func (m MapResolver) Resolve(name string) (uint32, bool) {
	taxid, ok := m[Accession(name)]
	return taxid, ok
}
