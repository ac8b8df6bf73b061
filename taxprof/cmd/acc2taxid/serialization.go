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
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
)

// Version is the version of table format.
const Version uint8 = 1

// Magic number of table file.
var Magic = [8]byte{'.', 'a', 'c', 'c', '2', 't', 'i', 'd'}

// ErrInvalidTableFormat means invalid table format.
var ErrInvalidTableFormat = errors.New("acc2taxid: invalid table format")

// ErrTruncatedTableFile means the file is truncated.
var ErrTruncatedTableFile = errors.New("acc2taxid: truncated table file")

// ErrVersionMismatch means version mismatch between files and program.
var ErrVersionMismatch = errors.New("acc2taxid: version mismatch")

// ErrEmptyKey means an empty accession is added.
var ErrEmptyKey = errors.New("acc2taxid: empty key")

var be = binary.BigEndian

// 8 bytes magic, 4 bytes meta info, 3 x 8 bytes sizes.
const headerSize = 36

// offset+1 (8 bytes), taxid (4 bytes), key length (4 bytes)
const slotSize = 16

// Header contains metadata of a table.
type Header struct {
	Version  uint8
	NumKeys  uint64
	NumSlots uint64 // power of 2
	BlobSize uint64 // total length of keys
}

func (h Header) String() string {
	return fmt.Sprintf("acc2taxid table v%d: #keys: %d, #slots: %d, key bytes: %d",
		h.Version, h.NumKeys, h.NumSlots, h.BlobSize)
}

// ------------------------------------------------------------------------

// Writer collects accession-taxid pairs and writes them as an open-addressing
// hash table: a slot array probed linearly from xxh3(key), followed by all keys.
// The load factor is kept at or below 0.5.
type Writer struct {
	Header

	keys   []string
	taxids []uint32
}

// NewWriter creates a Writer.
func NewWriter() *Writer {
	return &Writer{
		Header: Header{Version: Version},
		keys:   make([]string, 0, 1024),
		taxids: make([]uint32, 0, 1024),
	}
}

// Add adds a pair. For duplicated keys, the last one wins.
func (w *Writer) Add(key string, taxid uint32) error {
	if key == "" {
		return ErrEmptyKey
	}
	w.keys = append(w.keys, key)
	w.taxids = append(w.taxids, taxid)
	return nil
}

// Len returns the number of added pairs, including duplicates.
func (w *Writer) Len() int { return len(w.keys) }

// WriteTo builds the table and writes it. Header is updated.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	numSlots := roundup64(uint64(len(w.keys)) * 2)
	mask := numSlots - 1

	// key index + 1 of every slot
	table := make([]uint32, numSlots)
	var dups uint64
	var j uint64
	var k uint32
	for i, key := range w.keys {
		j = xxh3.HashString(key) & mask
		for {
			k = table[j]
			if k == 0 {
				table[j] = uint32(i + 1)
				break
			}
			if w.keys[k-1] == key {
				table[j] = uint32(i + 1)
				dups++
				break
			}
			j = (j + 1) & mask
		}
	}

	var blobSize uint64
	for _, k = range table {
		if k > 0 {
			blobSize += uint64(len(w.keys[k-1]))
		}
	}

	w.NumKeys = uint64(len(w.keys)) - dups
	w.NumSlots = numSlots
	w.BlobSize = blobSize

	bw := bufio.NewWriterSize(out, 1<<16)
	var N int64

	// 8 bytes magic number
	n, err := bw.Write(Magic[:])
	N += int64(n)
	if err != nil {
		return N, err
	}

	// 4 bytes meta info, 24 bytes sizes
	var buf [headerSize - 8]byte
	buf[0] = w.Version
	be.PutUint64(buf[4:12], w.NumKeys)
	be.PutUint64(buf[12:20], w.NumSlots)
	be.PutUint64(buf[20:28], w.BlobSize)
	n, err = bw.Write(buf[:])
	N += int64(n)
	if err != nil {
		return N, err
	}

	// slots
	var slot [slotSize]byte
	var offset uint64
	var key string
	for _, k = range table {
		if k == 0 {
			slot = [slotSize]byte{}
		} else {
			key = w.keys[k-1]
			be.PutUint64(slot[0:8], offset+1)
			be.PutUint32(slot[8:12], w.taxids[k-1])
			be.PutUint32(slot[12:16], uint32(len(key)))
			offset += uint64(len(key))
		}
		n, err = bw.Write(slot[:])
		N += int64(n)
		if err != nil {
			return N, err
		}
	}

	// keys, in the same order as slots
	for _, k = range table {
		if k == 0 {
			continue
		}
		n, err = bw.WriteString(w.keys[k-1])
		N += int64(n)
		if err != nil {
			return N, err
		}
	}

	return N, bw.Flush()
}

func roundup64(x uint64) uint64 {
	if x == 0 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return x + 1
}
