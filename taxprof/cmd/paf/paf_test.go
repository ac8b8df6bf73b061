package paf

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shenwei356/xopen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const line1 = "r1\t150\t0\t150\t+\tNC_045512.2\t29903\t100\t250\t147\t150\t60\ttp:A:P\tcm:i:25\tcg:Z:150M"

func TestParseLine(t *testing.T) {
	r, err := ParseLine(line1 + "\n")
	require.NoError(t, err)

	assert.Equal(t, "r1", r.QName)
	assert.Equal(t, 150, r.QLen)
	assert.Equal(t, byte('+'), r.Strand)
	assert.Equal(t, "NC_045512.2", r.TName)
	assert.Equal(t, 29903, r.TLen)
	assert.Equal(t, 100, r.TStart)
	assert.Equal(t, 250, r.TEnd)
	assert.Equal(t, 147, r.NMatch)
	assert.Equal(t, 150, r.AlnLen)
	assert.Equal(t, 60, r.MapQ)
	assert.Equal(t, float64(147)/float64(150), r.PIdent)
	assert.Equal(t, 1.0, r.QueryCoverage())

	tag, ok := r.Tag("cm")
	require.True(t, ok)
	assert.Equal(t, TagInt, tag.Type)
	assert.Equal(t, int64(25), tag.Int)

	tag, ok = r.Tag("cg")
	require.True(t, ok)
	assert.Equal(t, TagString, tag.Type)
	assert.Equal(t, "150M", tag.String())

	assert.True(t, r.IsPrimary())
}

func TestParseLineNoTags(t *testing.T) {
	r, err := ParseLine("q\t100\t0\t100\t-\tt\t1000\t0\t100\t90\t100\t0")
	require.NoError(t, err)
	assert.Nil(t, r.Tags)
	assert.False(t, r.IsPrimary())
	assert.Equal(t, 0.9, r.PIdent)
}

func TestParseLineTagValueWithColon(t *testing.T) {
	r, err := ParseLine("q\t100\t0\t100\t+\tt\t1000\t0\t100\t90\t100\t0\tds:Z:a:b")
	require.NoError(t, err)
	tag, _ := r.Tag("ds")
	assert.Equal(t, "a:b", tag.Str)
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "q\t100\t0\t100\t+\tt\t1000\t0\t100\t90\t100"},
		{"non-numeric qlen", "q\tabc\t0\t100\t+\tt\t1000\t0\t100\t90\t100\t0"},
		{"non-numeric mapq", "q\t100\t0\t100\t+\tt\t1000\t0\t100\t90\t100\tx"},
		{"zero alnlen", "q\t100\t0\t100\t+\tt\t1000\t0\t100\t0\t0\t0"},
		{"bad strand", "q\t100\t0\t100\t*\tt\t1000\t0\t100\t90\t100\t0"},
		{"bad tag", "q\t100\t0\t100\t+\tt\t1000\t0\t100\t90\t100\t0\ttp"},
		{"bad int tag", "q\t100\t0\t100\t+\tt\t1000\t0\t100\t90\t100\t0\tcm:i:x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, 0, perr.Line)
			assert.True(t, errors.Is(err, ErrInvalidFormat))
		})
	}
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

func TestReader(t *testing.T) {
	content := strings.Join([]string{
		line1,
		"r2\t100\t0\t100\t+\tA1.1\t1000\t0\t100\t100\t100\t60\ttp:A:S",
		"",
		"r3\t100\t0\t100\t+\tA2\t1000\t0\t100\t50\t100\t60",
	}, "\n") // no trailing newline

	for _, name := range []string{"a.paf", "a.paf.gz"} {
		t.Run(name, func(t *testing.T) {
			file := writeFile(t, name, content)

			r, err := NewReader(file)
			require.NoError(t, err)
			defer r.Close()

			var names []string
			for {
				rec, err := r.Next()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				names = append(names, rec.QName)
			}
			assert.Equal(t, []string{"r1", "r2", "r3"}, names)

			_, err = r.Next()
			assert.Equal(t, io.EOF, err)
		})
	}
}

func TestReaderParseErrorLine(t *testing.T) {
	file := writeFile(t, "bad.paf", line1+"\n"+line1+"\nbad line\n"+line1+"\n")

	records, err := ReadAll(file)
	require.Error(t, err)
	assert.Nil(t, records)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, file, perr.File)
	assert.Contains(t, err.Error(), ":3:")
}

func TestForEachRestartable(t *testing.T) {
	file := writeFile(t, "a.paf", line1+"\n"+line1+"\n")

	for i := 0; i < 2; i++ {
		var n int
		require.NoError(t, ForEach(file, func(r *Record) error {
			n++
			return nil
		}))
		assert.Equal(t, 2, n)
	}

	stop := errors.New("stop")
	err := ForEach(file, func(r *Record) error { return stop })
	assert.Equal(t, stop, err)
}

func TestEmptyFile(t *testing.T) {
	file := writeFile(t, "empty.paf", "")
	records, err := ReadAll(file)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(os.TempDir(), "taxprof-no-such-file.paf"))
	assert.Error(t, err)
}
