package acc2taxid

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/shenwei356/xopen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTable(t *testing.T, w *Writer) string {
	file := filepath.Join(t.TempDir(), "t.bin")
	fh, err := os.Create(file)
	require.NoError(t, err)
	_, err = w.WriteTo(fh)
	require.NoError(t, err)
	require.NoError(t, fh.Close())
	return file
}

func writeFile(t *testing.T, name string, content string) string {
	file := filepath.Join(t.TempDir(), name)
	w, err := xopen.Wopen(file)
	require.NoError(t, err)
	_, err = w.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return file
}

func TestAccession(t *testing.T) {
	assert.Equal(t, "NC_045512", Accession("NC_045512.2"))
	assert.Equal(t, "NC_045512", Accession("NC_045512"))
	assert.Equal(t, "", Accession(".1"))
}

func TestTable(t *testing.T) {
	w := NewWriter()
	n := 1000
	for i := 0; i < n; i++ {
		require.NoError(t, w.Add(fmt.Sprintf("ACC%06d", i), uint32(i+1)))
	}
	file := writeTable(t, w)
	assert.Equal(t, uint64(n), w.NumKeys)

	tbl, err := Open(file)
	require.NoError(t, err)
	defer tbl.Close()

	assert.Equal(t, n, tbl.Len())
	assert.Equal(t, Version, tbl.Version)
	assert.True(t, tbl.NumSlots >= uint64(2*n))

	for i := 0; i < n; i++ {
		taxid, ok := tbl.Lookup(fmt.Sprintf("ACC%06d", i))
		require.True(t, ok)
		require.Equal(t, uint32(i+1), taxid)
	}

	_, ok := tbl.Lookup("ACC")
	assert.False(t, ok)
	_, ok = tbl.Lookup("ACC9999999")
	assert.False(t, ok)
	_, ok = tbl.Lookup("")
	assert.False(t, ok)

	taxid, ok := tbl.Resolve("ACC000042.3")
	assert.True(t, ok)
	assert.Equal(t, uint32(43), taxid)
}

func TestTableDuplicates(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.Add("A", 1))
	require.NoError(t, w.Add("B", 2))
	require.NoError(t, w.Add("A", 3))
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, ErrEmptyKey, w.Add("", 4))

	tbl, err := Open(writeTable(t, w))
	require.NoError(t, err)
	defer tbl.Close()

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, uint64(2), tbl.BlobSize)
	taxid, ok := tbl.Lookup("A")
	assert.True(t, ok)
	assert.Equal(t, uint32(3), taxid)
}

func TestEmptyTable(t *testing.T) {
	tbl, err := Open(writeTable(t, NewWriter()))
	require.NoError(t, err)
	defer tbl.Close()

	assert.Equal(t, 0, tbl.Len())
	_, ok := tbl.Resolve("NC_045512.2")
	assert.False(t, ok)
}

func TestOpenInvalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.bin"))
	assert.Error(t, err)

	file := filepath.Join(dir, "short.bin")
	require.NoError(t, os.WriteFile(file, []byte(".acc2t"), 0644))
	_, err = Open(file)
	assert.Equal(t, ErrTruncatedTableFile, err)

	file = filepath.Join(dir, "magic.bin")
	require.NoError(t, os.WriteFile(file, make([]byte, headerSize+slotSize), 0644))
	_, err = Open(file)
	assert.Equal(t, ErrInvalidTableFormat, err)

	w := NewWriter()
	require.NoError(t, w.Add("NC_045512", 2697049))
	data, err := os.ReadFile(writeTable(t, w))
	require.NoError(t, err)

	file = filepath.Join(dir, "truncated.bin")
	require.NoError(t, os.WriteFile(file, data[:len(data)-1], 0644))
	_, err = Open(file)
	assert.Equal(t, ErrTruncatedTableFile, err)

	data[8] = Version + 1
	file = filepath.Join(dir, "version.bin")
	require.NoError(t, os.WriteFile(file, data, 0644))
	_, err = Open(file)
	assert.Equal(t, ErrVersionMismatch, err)
}

const ncbiMapping = `accession	accession.version	taxid	gi
NC_045512	NC_045512.2	2697049	1798174254
NC_001802	NC_001802.1	11676	9629357

NC_000913	NC_000913.3	511145	556503834
`

func TestBuild(t *testing.T) {
	in := writeFile(t, "nucl.accession2taxid.gz", ncbiMapping)
	extra := writeFile(t, "extra.tsv", "# custom\nMN908947.3\t2697049\n")
	out := filepath.Join(t.TempDir(), "t.bin")

	h, err := Build([]string{in, extra}, out, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), h.NumKeys)

	_, err = os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(err))

	tbl, err := Open(out)
	require.NoError(t, err)
	defer tbl.Close()

	for name, expected := range map[string]uint32{
		"NC_045512.2": 2697049,
		"NC_001802.1": 11676,
		"NC_000913.3": 511145,
		"MN908947.1":  2697049,
	} {
		taxid, ok := tbl.Resolve(name)
		assert.True(t, ok, name)
		assert.Equal(t, expected, taxid, name)
	}
	_, ok := tbl.Resolve("accession")
	assert.False(t, ok)
}

func TestBuildInvalid(t *testing.T) {
	in := writeFile(t, "bad.tsv", "NC_045512\tNC_045512.2\tnot-a-taxid\t0\n")
	_, err := Build([]string{in}, filepath.Join(t.TempDir(), "t.bin"), 1, 10)
	assert.Error(t, err)

	in = writeFile(t, "bad2.tsv", "NC_045512\n")
	_, err = Build([]string{in}, filepath.Join(t.TempDir(), "t.bin"), 1, 10)
	assert.Error(t, err)
}

func TestDB(t *testing.T) {
	in := writeFile(t, "nucl.accession2taxid", ncbiMapping)
	dir := filepath.Join(t.TempDir(), "db")

	info, err := BuildDB([]string{in}, dir, "nucl", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.NumKeys)

	info2, err := DBInfoFromFile(filepath.Join(dir, DBInfoFile))
	require.NoError(t, err)
	assert.Equal(t, "nucl", info2.Alias)
	assert.Equal(t, []string{"nucl.accession2taxid"}, info2.Sources)
	assert.Equal(t, info.NumSlots, info2.NumSlots)
	assert.NoError(t, info2.Check())

	for _, path := range []string{dir, filepath.Join(dir, DBTableFile)} {
		tbl, err := OpenDB(path)
		require.NoError(t, err)
		taxid, ok := tbl.Resolve("NC_001802.1")
		assert.True(t, ok)
		assert.Equal(t, uint32(11676), taxid)
		require.NoError(t, tbl.Close())
	}

	require.NoError(t, os.Remove(filepath.Join(dir, DBTableFile)))
	_, err = OpenDB(dir)
	assert.Error(t, err)
}

func TestDBVersionMismatch(t *testing.T) {
	file := writeFile(t, DBInfoFile, "version: 9\nalias: x\n")
	_, err := DBInfoFromFile(file)
	assert.True(t, errors.Is(err, ErrVersionMismatch))
}

func TestMapResolver(t *testing.T) {
	a := writeFile(t, "a.tsv", "NC_045512.2\t2697049\nNC_001802\t11676\n")
	b := writeFile(t, "b.tsv", "NC_001802.1\t12721\n")

	m, err := LoadMapResolver(a, b)
	require.NoError(t, err)
	assert.Len(t, m, 2)

	taxid, ok := m.Resolve("NC_045512.9")
	assert.True(t, ok)
	assert.Equal(t, uint32(2697049), taxid)

	taxid, ok = m.Resolve("NC_001802.1")
	assert.True(t, ok)
	assert.Equal(t, uint32(12721), taxid)

	_, ok = m.Resolve("NC_000913.3")
	assert.False(t, ok)

	bad := writeFile(t, "c.tsv", "X\tabc\n")
	_, err = LoadMapResolver(bad)
	assert.Error(t, err)

	var _ Resolver = m
	var _ Resolver = (*Table)(nil)
}
