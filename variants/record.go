// Package variants counts confident variant calls per target region, one
// count per sample, from the compressed VCFs produced by bcftools call.
package variants

import (
	"bytes"
	"context"
	"strconv"

	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/seqinspector/interval"
	"github.com/pkg/errors"
)

// DefaultMinQual is the smallest QUAL value counted as a confident call.
const DefaultMinQual = 20

// Record is a single variant call.
type Record struct {
	// Chrom is the contig name as written in the VCF, e.g. "chr7".
	Chrom string
	// Pos is the 1-based position.
	Pos int
	// RefLen is the length of the REF allele.
	RefLen int
	// Qual is the Phred-scaled QUAL column.  A missing value ('.') reads as 0.
	Qual float64
	// Last is the text of the last column, normally the per-sample genotype
	// likelihoods.
	Last string
}

// Source answers per-region variant queries for one sample.
type Source interface {
	// Query returns the records overlapping r, in position order.
	Query(ctx context.Context, r interval.Region) ([]Record, error)
	// Close releases the resources held by the source.
	Close() error
}

// Minimum number of columns in a VCF data line: CHROM POS ID REF ALT QUAL.
const minVCFCols = 6

// parseVCFLine parses a tab-separated VCF data line.
func parseVCFLine(line []byte) (Record, error) {
	fields := bytes.Split(line, []byte{'\t'})
	if len(fields) < minVCFCols {
		return Record{}, errors.Errorf("vcf line has %d columns, want at least %d: %q", len(fields), minVCFCols, line)
	}
	pos, err := strconv.Atoi(gunsafe.BytesToString(fields[1]))
	if err != nil {
		return Record{}, errors.Wrapf(err, "vcf POS %q", fields[1])
	}
	rec := Record{
		Chrom:  string(fields[0]),
		Pos:    pos,
		RefLen: len(fields[3]),
		Last:   string(fields[len(fields)-1]),
	}
	if q := fields[5]; !(len(q) == 1 && q[0] == '.') {
		if rec.Qual, err = strconv.ParseFloat(gunsafe.BytesToString(q), 64); err != nil {
			return Record{}, errors.Wrapf(err, "vcf QUAL %q", q)
		}
	}
	if rec.RefLen == 0 {
		rec.RefLen = 1
	}
	return rec, nil
}

// overlaps reports whether rec overlaps the closed 1-based range of r.
func overlaps(rec Record, r interval.Region) bool {
	end := rec.Pos + rec.RefLen - 1
	return rec.Pos <= int(r.End) && end >= int(r.Start)
}

// chromName returns the contig name used in the VCFs for chrom.
func chromName(chrom int) string {
	return "chr" + strconv.Itoa(chrom)
}
