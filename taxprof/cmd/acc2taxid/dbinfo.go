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
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"gopkg.in/yaml.v2"
)

// DBInfoFile is the meta data file in a database directory.
const DBInfoFile = "__db.yml"

// DBTableFile is the default table file name in a database directory.
const DBTableFile = "acc2taxid.bin"

// DBVersion is the version of database.
const DBVersion uint8 = 1

// DBInfo is the meta data of a database.
type DBInfo struct {
	Version      uint8    `yaml:"version"`
	TableVersion uint8    `yaml:"tableVersion"`
	Alias        string   `yaml:"alias"`
	NumKeys      uint64   `yaml:"keys"`
	NumSlots     uint64   `yaml:"slots"`
	Table        string   `yaml:"table"`
	Sources      []string `yaml:"sources"`

	path string
}

func (i DBInfo) String() string {
	return fmt.Sprintf("acc2taxid database (v%d): %s, table: %s (v%d), #keys: %d, #slots: %d, #sources: %d",
		i.Version, i.Alias, i.Table, i.TableVersion, i.NumKeys, i.NumSlots, len(i.Sources))
}

// Path returns the directory of the database.
func (i DBInfo) Path() string { return i.path }

// DBInfoFromFile reads DBInfo from a file.
func DBInfoFromFile(file string) (DBInfo, error) {
	info := DBInfo{}

	r, err := os.Open(file)
	if err != nil {
		return info, fmt.Errorf("fail to open acc2taxid database info file: %s", file)
	}
	defer r.Close()

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return info, fmt.Errorf("fail to read acc2taxid database info file: %s", file)
	}

	err = yaml.Unmarshal(data, &info)
	if err != nil {
		return info, fmt.Errorf("fail to unmarshal acc2taxid database info")
	}

	if info.Version != DBVersion {
		return info, ErrVersionMismatch
	}

	p, _ := filepath.Abs(file)
	info.path = filepath.Dir(p)
	return info, nil
}

// WriteTo dumps DBInfo to file.
func (i DBInfo) WriteTo(file string) (int, error) {
	data, err := yaml.Marshal(i)
	if err != nil {
		return 0, fmt.Errorf("fail to marshal database info")
	}

	dir := filepath.Dir(file)
	dirExisted, err := pathutil.DirExists(dir)
	if err != nil {
		return 0, fmt.Errorf("fail to write acc2taxid database info file: %s", file)
	}
	if !dirExisted {
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return 0, fmt.Errorf("fail to write acc2taxid database info file: %s", file)
		}
	}

	err = ioutil.WriteFile(file, data, 0644)
	if err != nil {
		return 0, fmt.Errorf("fail to write acc2taxid database info file: %s", file)
	}
	return len(data), nil
}

// Check checks if the table file exists.
func (i DBInfo) Check() error {
	file := filepath.Join(i.path, i.Table)
	ok, err := pathutil.Exists(file)
	if err != nil {
		return fmt.Errorf("error on checking acc2taxid table file: %s: %s", file, err)
	}
	if !ok {
		return fmt.Errorf("acc2taxid table file missing: %s", file)
	}
	return nil
}

// BuildDB builds a database directory from accession2taxid files.
func BuildDB(files []string, outDir string, alias string, threads int, chunkSize int) (DBInfo, error) {
	info := DBInfo{
		Version:      DBVersion,
		TableVersion: Version,
		Alias:        alias,
		Table:        DBTableFile,
		Sources:      make([]string, 0, len(files)),
	}
	for _, file := range files {
		info.Sources = append(info.Sources, filepath.Base(file))
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return info, errors.Wrap(err, outDir)
	}

	h, err := Build(files, filepath.Join(outDir, DBTableFile), threads, chunkSize)
	if err != nil {
		return info, err
	}
	info.NumKeys = h.NumKeys
	info.NumSlots = h.NumSlots

	if _, err = info.WriteTo(filepath.Join(outDir, DBInfoFile)); err != nil {
		return info, err
	}
	info.path, _ = filepath.Abs(outDir)
	return info, nil
}

// OpenDB opens the table of a database directory, or a bare table file.
func OpenDB(path string) (*Table, error) {
	isDir, err := pathutil.DirExists(path)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	if !isDir {
		return Open(path)
	}

	info, err := DBInfoFromFile(filepath.Join(path, DBInfoFile))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	if err = info.Check(); err != nil {
		return nil, err
	}
	return Open(filepath.Join(info.path, info.Table))
}
