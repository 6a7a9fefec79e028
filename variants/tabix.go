package variants

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/brentp/irelate/interfaces"
	"github.com/carbocation/bix"
	"github.com/carbocation/vcfgo"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/seqinspector/interval"
)

// TabixLocus is a 0-based, half-open query range, as used by tabix.
type TabixLocus struct {
	chrom      string
	start, end int
}

var _ interfaces.IPosition = TabixLocus{}

// LocusFromRegion converts the closed, 1-based region r to a tabix locus.
func LocusFromRegion(r interval.Region) TabixLocus {
	return TabixLocus{chrom: chromName(r.Chrom), start: int(r.Start) - 1, end: int(r.End)}
}

// Chrom implements interfaces.IPosition.
func (tl TabixLocus) Chrom() string { return tl.chrom }

// Start implements interfaces.IPosition.
func (tl TabixLocus) Start() uint32 {
	if tl.start < 0 {
		return 0
	}
	return uint32(tl.start)
}

// End implements interfaces.IPosition.
func (tl TabixLocus) End() uint32 { return uint32(tl.end) }

// TabixSource reads a bgzip-compressed VCF through its tabix index.
type TabixSource struct {
	path string
	tbx  *bix.Bix
}

// OpenTabix opens the VCF at path.  The index must be at path + ".tbi".
func OpenTabix(path string) (*TabixSource, error) {
	tbx, err := bix.New(path)
	if err != nil {
		return nil, errors.E(errors.NotExist, "tabix-indexed vcf", path, err)
	}
	return &TabixSource{path: path, tbx: tbx}, nil
}

// Query implements Source.
func (s *TabixSource) Query(ctx context.Context, r interval.Region) (recs []Record, err error) {
	vals, err := s.tbx.Query(LocusFromRegion(r))
	if err != nil {
		return nil, errors.E(fmt.Sprintf("tabix query %s in %s", r, s.path), err)
	}
	defer func() {
		if cerr := vals.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for {
		v, err := vals.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.E(fmt.Sprintf("tabix query %s in %s", r, s.path), err)
		}
		// Unwrap to the underlying vcfgo.Variant.
		wrapped, ok := v.(interfaces.VarWrap)
		if !ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d in %s: not a variant", v.Chrom(), v.Start(), s.path))
		}
		variant, ok := wrapped.IVariant.(*vcfgo.Variant)
		if !ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("%s:%d in %s: not a vcf variant", v.Chrom(), v.Start(), s.path))
		}
		recs = append(recs, recordFromVariant(variant))
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Pos < recs[j].Pos })
	return recs, nil
}

func recordFromVariant(v *vcfgo.Variant) Record {
	rec := Record{
		Chrom:  v.Chromosome,
		Pos:    int(v.Pos),
		RefLen: len(v.Reference),
		Qual:   float64(v.Quality),
	}
	if rec.RefLen == 0 {
		rec.RefLen = 1
	}
	line := v.String()
	if tab := strings.LastIndexByte(line, '\t'); tab >= 0 {
		rec.Last = line[tab+1:]
	}
	return rec
}

// Close implements Source.
func (s *TabixSource) Close() error {
	return s.tbx.Close()
}
