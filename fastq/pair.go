package fastq

import (
	"context"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/klauspost/compress/gzip"
)

// PairStats summarizes a concordant pair of FASTQ files.
type PairStats struct {
	// Pairs is the number of read pairs.
	Pairs int
	// MinLen and MaxLen bound the read lengths over both mates.
	MinLen, MaxLen int
	// Bases counts the bases of both mates.
	Bases int64
}

// MeanLen returns the mean read length over both mates.
func (s PairStats) MeanLen() float64 {
	if s.Pairs == 0 {
		return 0
	}
	return float64(s.Bases) / float64(2*s.Pairs)
}

// ScanPair reads r1 and r2 in lockstep.  The files must hold the same number
// of well-formed records, and the i-th records of both must carry the same
// read name.  name labels errors.
func ScanPair(r1, r2 io.Reader, name string) (PairStats, error) {
	var (
		stats  PairStats
		s1, s2 = NewScanner(r1), NewScanner(r2)
		a, b   Read
	)
	for {
		ok1, ok2 := s1.Scan(&a), s2.Scan(&b)
		if err := s1.Err(); err != nil {
			return stats, errors.E(errors.Invalid, fmt.Sprintf("%s R1 record %d", name, s1.N()+1), err)
		}
		if err := s2.Err(); err != nil {
			return stats, errors.E(errors.Invalid, fmt.Sprintf("%s R2 record %d", name, s2.N()+1), err)
		}
		if !ok1 || !ok2 {
			if ok1 != ok2 {
				return stats, errors.E(errors.Invalid, fmt.Sprintf("%s: mates have different read counts (%d vs %d so far)", name, s1.N(), s2.N()))
			}
			return stats, nil
		}
		if a.Name() != b.Name() {
			return stats, errors.E(errors.Invalid, fmt.Sprintf("%s record %d: mate names differ: %s vs %s", name, s1.N(), a.Name(), b.Name()))
		}
		for i, n := range []int{len(a.Seq), len(b.Seq)} {
			if (stats.Pairs == 0 && i == 0) || n < stats.MinLen {
				stats.MinLen = n
			}
			if n > stats.MaxLen {
				stats.MaxLen = n
			}
			stats.Bases += int64(n)
		}
		stats.Pairs++
	}
}

// CheckPair opens the two mates of a sample, decompressing gzip input, and
// runs ScanPair over them.
func CheckPair(ctx context.Context, path1, path2 string) (stats PairStats, err error) {
	var in [2]file.File
	var r [2]io.Reader
	for i, path := range []string{path1, path2} {
		if in[i], err = file.Open(ctx, path); err != nil {
			return stats, errors.E(errors.NotExist, "fastq", path, err)
		}
		defer func(f file.File) {
			if cerr := f.Close(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}(in[i])
		r[i] = in[i].Reader(ctx)
		if fileio.DetermineType(path) == fileio.Gzip {
			var gz *gzip.Reader
			if gz, err = gzip.NewReader(r[i]); err != nil {
				return stats, errors.E(errors.Invalid, "gzip", path, err)
			}
			r[i] = gz
		}
	}
	return ScanPair(r[0], r[1], path1)
}
