package cmd

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/shenwei356/xopen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilepathTrimExtension(t *testing.T) {
	assert.Equal(t, "sample", filepathTrimExtension("dir/sample.paf.gz"))
	assert.Equal(t, "sample", filepathTrimExtension("sample.PAF"))
	assert.Equal(t, "sample.tsv", filepathTrimExtension("sample.tsv.xz"))
	assert.Equal(t, "sample", filepathTrimExtension("sample"))
}

func TestOutFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sub", "a.tsv.gz")

	o, err := newOutFile(file, -1)
	require.NoError(t, err)
	_, err = o.WriteString("a\t1\n")
	require.NoError(t, err)

	_, err = os.Stat(file)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, o.Close())

	_, err = os.Stat(file + ".tmp")
	assert.True(t, os.IsNotExist(err))

	r, err := xopen.Ropen(file)
	require.NoError(t, err)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "a\t1\n", line)
	r.Close()

	o, err = newOutFile(filepath.Join(dir, "b.tsv"), -1)
	require.NoError(t, err)
	o.Discard()
	files, err := filepath.Glob(filepath.Join(dir, "b.tsv*"))
	require.NoError(t, err)
	assert.Len(t, files, 0)
}

func TestGetFileListFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "s2"), 0755))
	for _, f := range []string{"s1.paf", "s2/s2.paf.gz", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644))
	}

	files, err := getFileListFromDir(dir, regexp.MustCompile(`(?i)\.paf(\.gz)?$`), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "s1.paf"), filepath.Join(dir, "s2", "s2.paf.gz")}, files)
}
