package interval

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/klauspost/compress/gzip"
)

// MaxChrom is the largest chromosome number accepted.  Sex chromosomes are
// out of scope.
const MaxChrom = 22

// Regions maps chromosome number to its region set.
type Regions map[int]*RegionSet

// Chroms returns the chromosome numbers in ascending order.
func (r Regions) Chroms() []int {
	chroms := make([]int, 0, len(r))
	for chrom := range r {
		chroms = append(chroms, chrom)
	}
	sort.Ints(chroms)
	return chroms
}

// Len returns the total number of intervals across all chromosomes.
func (r Regions) Len() int {
	n := 0
	for _, s := range r {
		n += s.Len()
	}
	return n
}

// Each calls fn for every interval, chromosomes ascending, intervals in set
// order.  It stops at the first error.
func (r Regions) Each(fn func(chrom int, iv Interval) error) error {
	for _, chrom := range r.Chroms() {
		for _, iv := range r[chrom].Intervals() {
			if err := fn(chrom, iv); err != nil {
				return err
			}
		}
	}
	return nil
}

// Restrict returns the intervals of r that overlap region q, unclipped and in
// set order.
func (r Regions) Restrict(q Region) Regions {
	out := Regions{}
	set, ok := r[q.Chrom]
	if !ok {
		return out
	}
	for _, iv := range set.Intervals() {
		if iv.End < q.Start || iv.Start > q.End {
			continue
		}
		if out[q.Chrom] == nil {
			out[q.Chrom] = &RegionSet{}
		}
		out[q.Chrom].appendRaw(iv)
	}
	return out
}

// MergeOpts defines the behavior of Merge.
type MergeOpts struct {
	// Collapse runs RegionSet.Collapse on every chromosome once all sources
	// are inserted, removing overlaps that single-pass insertion leaves
	// behind.
	Collapse bool
	// SanityCheck verifies that every source interval is contained in some
	// merged interval.
	SanityCheck bool
}

// Merged is the result of merging several region sources.
type Merged struct {
	// Regions holds the merged intervals.
	Regions Regions
	// Sources holds the original, unmerged intervals of each source, keyed by
	// source name and then chromosome, in input order.
	Sources map[string]map[int][]Interval
	// Order lists the source names in the order they were added.
	Order []string
}

// NewMerged returns an empty Merged.
func NewMerged() *Merged {
	return &Merged{
		Regions: Regions{},
		Sources: map[string]map[int][]Interval{},
	}
}

// Add inserts iv into the merged set of chrom and records it as an original
// interval of source.
func (m *Merged) Add(source string, chrom int, iv Interval) {
	set, ok := m.Regions[chrom]
	if !ok {
		set = &RegionSet{}
		m.Regions[chrom] = set
	}
	set.Insert(iv)
	src, ok := m.Sources[source]
	if !ok {
		src = map[int][]Interval{}
		m.Sources[source] = src
		m.Order = append(m.Order, source)
	}
	src[chrom] = append(src[chrom], iv)
}

// Check verifies that each original interval of every source is contained in
// an interval of the merged set.
func (m *Merged) Check() error {
	for _, source := range m.Order {
		for chrom, ivs := range m.Sources[source] {
			set, ok := m.Regions[chrom]
			if !ok {
				return errors.E(errors.Invalid, fmt.Sprintf("bug in interval manipulation: chromosome %d of %s missing from merged regions", chrom, source))
			}
			for _, iv := range ivs {
				if _, err := set.Find(iv); err != nil {
					return errors.E(err, fmt.Sprintf("chr%d in %s", chrom, source))
				}
			}
		}
	}
	return nil
}

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

var (
	headerMarker = []byte("seqname")
	chrPrefix    = []byte("chr")
)

// ParseChrom converts "chr7" or "7" to 7.  Only chromosomes 1..MaxChrom are
// accepted.
func ParseChrom(tok []byte) (int, error) {
	chrom, err := strconv.Atoi(gunsafe.BytesToString(bytes.TrimPrefix(tok, chrPrefix)))
	if err != nil {
		return 0, err
	}
	if chrom < 1 || chrom > MaxChrom {
		return 0, fmt.Errorf("chromosome %s out of range", tok)
	}
	return chrom, nil
}

// ScanRegions reads whitespace-delimited "seqname start end ..." rows from r,
// calling fn for each one.  Rows mentioning "seqname" (in any case) are
// treated as headers and skipped, as are rows with fewer than three tokens.
// A non-integer chromosome or coordinate is an error; name is used to label
// it.
func ScanRegions(r io.Reader, name string, fn func(chrom int, iv Interval)) error {
	scanner := bufio.NewScanner(r)
	var tokens [3][]byte
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		if bytes.Contains(bytes.ToLower(curLine), headerMarker) {
			continue
		}
		if getTokens(tokens[:], curLine) != 3 {
			continue
		}
		chrom, err := ParseChrom(tokens[0])
		if err != nil {
			return fmt.Errorf("interval.ScanRegions: unexpected non-integer chromosome in %s line %d: %v", name, lineIdx, err)
		}
		start, err := strconv.Atoi(gunsafe.BytesToString(tokens[1]))
		if err != nil {
			return fmt.Errorf("interval.ScanRegions: unexpected non-integer in %s line %d: %v", name, lineIdx, err)
		}
		end, err := strconv.Atoi(gunsafe.BytesToString(tokens[2]))
		if err != nil {
			return fmt.Errorf("interval.ScanRegions: unexpected non-integer in %s line %d: %v", name, lineIdx, err)
		}
		if start < 0 || end < start || end >= PosTypeMax {
			return fmt.Errorf("interval.ScanRegions: invalid coordinate pair on %s line %d", name, lineIdx)
		}
		fn(chrom, Interval{Start: PosType(start), End: PosType(end)})
	}
	return scanner.Err()
}

// scanRegionFile opens path, transparently decompressing .gz input, and runs
// ScanRegions over it.
func scanRegionFile(ctx context.Context, path string, fn func(chrom int, iv Interval)) (err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return errors.E(errors.NotExist, "region file", path, err)
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			return
		}
	}
	return ScanRegions(reader, path, fn)
}

// Merge reads each region file and merges its intervals, chromosome by
// chromosome, into one set.  The original intervals of each file are kept in
// Merged.Sources.
func Merge(ctx context.Context, paths []string, opts MergeOpts) (*Merged, error) {
	m := NewMerged()
	for _, path := range paths {
		if err := scanRegionFile(ctx, path, func(chrom int, iv Interval) {
			m.Add(path, chrom, iv)
		}); err != nil {
			return nil, err
		}
	}
	if opts.Collapse {
		before := m.Regions.Len()
		for _, set := range m.Regions {
			set.Collapse()
		}
		if after := m.Regions.Len(); after != before {
			log.Printf("interval.Merge: collapse joined overlapping regions left by single-pass merging: %d -> %d region(s)", before, after)
		}
	}
	log.Printf("interval.Merge: %d merged region(s) from %d source(s)", m.Regions.Len(), len(paths))
	if opts.SanityCheck {
		if err := m.Check(); err != nil {
			return nil, err
		}
		log.Debug.Printf("interval.Merge: sanity check passed")
	}
	return m, nil
}
