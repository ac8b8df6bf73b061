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

package lineage

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/twotwotwo/sorts"
)

// DefaultDataDir is the default directory of taxonkit.
const DefaultDataDir = "~/.taxonkit"

// TaxonKit resolves lineages by running the taxonkit command.
type TaxonKit struct {
	Bin     string // path of taxonkit, default "taxonkit"
	DataDir string // directory of NCBI taxonomy dump files, "~" is expanded
}

// NewTaxonKit creates a TaxonKit with the data directory expanded.
func NewTaxonKit(bin string, dataDir string) (*TaxonKit, error) {
	if bin == "" {
		bin = "taxonkit"
	}
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	dir, err := homedir.Expand(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand taxonkit data directory %s: %s", dataDir, err)
	}
	return &TaxonKit{Bin: bin, DataDir: dir}, nil
}

func (t *TaxonKit) run(ctx context.Context, stdin string, args ...string) ([]byte, error) {
	bin := t.Bin
	if bin == "" {
		bin = "taxonkit"
	}
	if t.DataDir != "" {
		args = append(args, "--data-dir", t.DataDir)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("taxonkit %s: %s", args[0], ctx.Err())
		}
		return nil, fmt.Errorf("failed to execute taxonkit %s: %v: %s",
			args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// ResolveLineages runs "taxonkit lineage" once for all TaxIds.
func (t *TaxonKit) ResolveLineages(ctx context.Context, taxids []uint32) (map[uint32]Lineage, error) {
	if len(taxids) == 0 {
		return make(map[uint32]Lineage), nil
	}

	ids := make([]uint32, len(taxids))
	copy(ids, taxids)
	sorts.Quicksort(uint32Slice(ids))

	var buf strings.Builder
	var prev uint32
	for i, taxid := range ids {
		if i > 0 && taxid == prev {
			continue
		}
		buf.WriteString(strconv.FormatUint(uint64(taxid), 10))
		buf.WriteByte('\n')
		prev = taxid
	}

	out, err := t.run(ctx, buf.String(), "lineage", "--show-lineage-ranks", "--show-lineage-taxids")
	if err != nil {
		return nil, err
	}

	lineages, err := ParseLineageOutput(bytes.NewReader(out))
	if err != nil {
		return nil, err
	}
	fill(lineages, ids)
	return lineages, nil
}

// ListSubtreeMembers runs "taxonkit list" for a TaxId.
func (t *TaxonKit) ListSubtreeMembers(ctx context.Context, taxid uint32) ([]uint32, error) {
	id := strconv.FormatUint(uint64(taxid), 10)
	out, err := t.run(ctx, "", "list", "--ids", id, "--indent", "")
	if err != nil {
		return nil, err
	}

	members := make([]uint32, 0, 128)
	var v uint64
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err = strconv.ParseUint(line, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid TaxId in taxonkit list output: %q", line)
		}
		members = append(members, uint32(v))
	}
	return members, nil
}
