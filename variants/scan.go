package variants

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"

	"github.com/biogo/store/interval"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/bgzf"
	region "github.com/grailbio/seqinspector/interval"
)

// recordRange is a Record stored in the interval tree.  Ranges are
// half-open.
type recordRange struct {
	rec Record
	uid uintptr
}

func (r recordRange) Overlap(b interval.IntRange) bool {
	return r.rec.Pos+r.rec.RefLen > b.Start && r.rec.Pos < b.End
}
func (r recordRange) ID() uintptr { return r.uid }
func (r recordRange) Range() interval.IntRange {
	return interval.IntRange{Start: r.rec.Pos, End: r.rec.Pos + r.rec.RefLen}
}

// query is a half-open range used to search the tree.
type query struct {
	start, end int
}

func (q query) Overlap(b interval.IntRange) bool {
	return q.end > b.Start && q.start < b.End
}

// ScanSource loads a whole VCF, plain or BGZF-compressed, into memory and
// answers queries from a per-contig interval tree.  It does not need an
// index.
type ScanSource struct {
	path  string
	trees map[string]*interval.IntTree
	n     int
}

// OpenScan reads the VCF at path.
func OpenScan(ctx context.Context, path string) (src *ScanSource, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, errors.E(errors.NotExist, "vcf", path, err)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	var r io.Reader = in.Reader(ctx)
	if fileio.DetermineType(path) == fileio.Gzip {
		var bgzfReader *bgzf.Reader
		if bgzfReader, err = bgzf.NewReader(r, runtime.NumCPU()); err != nil {
			return nil, errors.E(errors.Invalid, "bgzf", path, err)
		}
		defer func() {
			if cerr := bgzfReader.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		r = bgzfReader
	}
	src = &ScanSource{path: path, trees: make(map[string]*interval.IntTree)}
	if err = src.load(r); err != nil {
		return nil, err
	}
	log.Debug.Printf("variants.OpenScan: %d record(s) from %s", src.n, path)
	return src, nil
}

func (s *ScanSource) load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<26)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		rec, err := parseVCFLine(line)
		if err != nil {
			return errors.E(errors.Invalid, fmt.Sprintf("%s line %d", s.path, lineIdx), err)
		}
		tree, ok := s.trees[rec.Chrom]
		if !ok {
			tree = &interval.IntTree{}
			s.trees[rec.Chrom] = tree
		}
		if err := tree.Insert(recordRange{rec: rec, uid: uintptr(s.n)}, true); err != nil {
			return errors.E(errors.Invalid, fmt.Sprintf("%s line %d", s.path, lineIdx), err)
		}
		s.n++
	}
	if err := scanner.Err(); err != nil {
		return errors.E(err, "reading", s.path)
	}
	for _, tree := range s.trees {
		tree.AdjustRanges()
	}
	return nil
}

// Query implements Source.
func (s *ScanSource) Query(ctx context.Context, r region.Region) ([]Record, error) {
	tree, ok := s.trees[chromName(r.Chrom)]
	if !ok {
		return nil, nil
	}
	hits := tree.Get(query{start: int(r.Start), end: int(r.End) + 1})
	recs := make([]Record, 0, len(hits))
	for _, h := range hits {
		recs = append(recs, h.(recordRange).rec)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Pos != recs[j].Pos {
			return recs[i].Pos < recs[j].Pos
		}
		return recs[i].RefLen < recs[j].RefLen
	})
	return recs, nil
}

// Close implements Source.
func (s *ScanSource) Close() error { return nil }
