// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pileup

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
)

// DefaultDepthThreshold is the depth a position must exceed to count as
// covered.
const DefaultDepthThreshold = 10

// Depth columns of a two-sample samtools mpileup row, 0-based.  Each sample
// contributes (depth, bases, quals) after the (chrom, pos, ref) prefix.
var depthCols = [NSample]int{3, 6}

// maxLineLen bounds a single mpileup row; the bases column of a deep
// position can be long.
const maxLineLen = 1 << 28

// CoverageOpts defines the behavior of SummarizeCoverage.
type CoverageOpts struct {
	// DepthThreshold is the depth a position must strictly exceed to count
	// toward coverage.  Zero means DefaultDepthThreshold.
	DepthThreshold int
}

// RegionCoverage summarizes one pileup file.
type RegionCoverage struct {
	// End is the region end, taken from the file name.
	End PosType
	// Rows is the number of pileup positions read.
	Rows int
	// AvgDepth is the mean depth of each sample.
	AvgDepth Pair
	// Coverage is the fraction of positions with depth above the threshold,
	// per sample.
	Coverage Pair
}

// CoverageSummary holds per-region coverage for a directory of pileup files.
// It is not modified after SummarizeCoverage returns.
type CoverageSummary struct {
	regions map[Key]RegionCoverage
	// MaxDepth is the largest single-position depth seen in any sample.
	MaxDepth int
}

// Len returns the number of regions with data.
func (c *CoverageSummary) Len() int { return len(c.regions) }

// Lookup returns the coverage of the region starting at key.  ok is false
// when no pileup rows were seen for it.
func (c *CoverageSummary) Lookup(key Key) (rc RegionCoverage, ok bool) {
	rc, ok = c.regions[key]
	return
}

// Keys returns the region keys, sorted by chromosome then start.
func (c *CoverageSummary) Keys() []Key {
	keys := make([]Key, 0, len(c.regions))
	for k := range c.regions {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// Depth returns the mean depths as chrom -> start -> per-sample mean.
func (c *CoverageSummary) Depth() map[int]map[PosType]Pair {
	return c.view(func(rc RegionCoverage) Pair { return rc.AvgDepth })
}

// Coverage returns the covered fractions as chrom -> start -> per-sample
// fraction.
func (c *CoverageSummary) Coverage() map[int]map[PosType]Pair {
	return c.view(func(rc RegionCoverage) Pair { return rc.Coverage })
}

func (c *CoverageSummary) view(get func(RegionCoverage) Pair) map[int]map[PosType]Pair {
	m := make(map[int]map[PosType]Pair)
	for k, rc := range c.regions {
		byStart, ok := m[k.Chrom]
		if !ok {
			byStart = make(map[PosType]Pair)
			m[k.Chrom] = byStart
		}
		byStart[k.Start] = get(rc)
	}
	return m
}

// isPileupName reports whether a directory entry should be treated as a
// pileup file.
func isPileupName(name string) bool {
	return strings.Contains(name, "pileup")
}

// SummarizeCoverage reads every pileup file in dir and returns per-region
// mean depth and covered fraction for both samples.  Entries whose names do
// not contain "pileup" are ignored.
func SummarizeCoverage(ctx context.Context, dir string, opts CoverageOpts) (*CoverageSummary, error) {
	var paths []string
	lister := file.List(ctx, dir, false)
	for lister.Scan() {
		if lister.IsDir() || !isPileupName(filepath.Base(lister.Path())) {
			continue
		}
		paths = append(paths, lister.Path())
	}
	if err := lister.Err(); err != nil {
		return nil, errors.E(errors.NotExist, "pileup directory", dir, err)
	}
	return SummarizeCoverageFiles(ctx, paths, opts)
}

// SummarizeCoverageFiles is SummarizeCoverage over an explicit list of
// pileup files.  The result does not depend on the order of paths.
func SummarizeCoverageFiles(ctx context.Context, paths []string, opts CoverageOpts) (*CoverageSummary, error) {
	if opts.DepthThreshold == 0 {
		opts.DepthThreshold = DefaultDepthThreshold
	}
	summary := &CoverageSummary{regions: make(map[Key]RegionCoverage)}
	for _, path := range paths {
		region, err := ParseFileName(filepath.Base(path))
		if err != nil {
			return nil, errors.E(errors.Invalid, err)
		}
		key := Key{Chrom: region.Chrom, Start: region.Start}
		if _, ok := summary.regions[key]; ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("more than one pileup file starts at chr%d:%d", key.Chrom, key.Start))
		}
		rc, maxDepth, err := summarizeFile(ctx, path, opts.DepthThreshold)
		if err != nil {
			return nil, err
		}
		if maxDepth > summary.MaxDepth {
			summary.MaxDepth = maxDepth
		}
		if rc.Rows == 0 {
			log.Debug.Printf("pileup.SummarizeCoverage: %s has no rows, skipping", path)
			continue
		}
		rc.End = region.End
		summary.regions[key] = rc
	}
	log.Printf("pileup.SummarizeCoverage: %d region(s) from %d file(s), max depth %d", len(summary.regions), len(paths), summary.MaxDepth)
	return summary, nil
}

// summarizeFile computes the coverage of a single pileup file.
func summarizeFile(ctx context.Context, path string, threshold int) (rc RegionCoverage, maxDepth int, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		err = errors.E(errors.NotExist, "pileup file", path, err)
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	var (
		depthTotal [NSample]int64
		nAbove     [NSample]int
	)
	scanner := bufio.NewScanner(infile.Reader(ctx))
	scanner.Buffer(make([]byte, 64*1024), maxLineLen)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if len(curLine) == 0 {
			continue
		}
		fields := bytes.Split(curLine, []byte{'\t'})
		if len(fields) <= depthCols[NSample-1] {
			err = errors.E(errors.Invalid, fmt.Sprintf("%s line %d: expected at least %d columns, got %d", path, lineIdx, depthCols[NSample-1]+1, len(fields)))
			return
		}
		for i, col := range depthCols {
			var depth int
			if depth, err = strconv.Atoi(gunsafe.BytesToString(fields[col])); err != nil {
				err = errors.E(errors.Invalid, fmt.Sprintf("%s line %d: non-integer depth in column %d", path, lineIdx, col), err)
				return
			}
			depthTotal[i] += int64(depth)
			if depth > threshold {
				nAbove[i]++
			}
			if depth > maxDepth {
				maxDepth = depth
			}
		}
		rc.Rows++
	}
	if err = scanner.Err(); err != nil {
		err = errors.E(err, "reading", path)
		return
	}
	if rc.Rows == 0 {
		return
	}
	for i := range depthCols {
		rc.AvgDepth[i] = float64(depthTotal[i]) / float64(rc.Rows)
		rc.Coverage[i] = float64(nAbove[i]) / float64(rc.Rows)
	}
	return
}
